package extract

import (
	"fmt"
	"net/url"
	"strings"
)

// RepoRef identifies a remote repository.
type RepoRef struct {
	Host  string
	Owner string
	Repo  string
}

// CloneURL returns the canonical https clone URL.
func (r RepoRef) CloneURL() string {
	return fmt.Sprintf("https://%s/%s/%s", r.Host, r.Owner, r.Repo)
}

// ParseRepoURL validates and normalises a submission repository URL.
// Only https://<host>/<owner>/<repo> shapes are accepted, and the host must
// be in allowedHosts. A trailing ".git" or "/" is stripped.
func ParseRepoURL(raw string, allowedHosts []string) (RepoRef, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return RepoRef{}, newError(KindInvalidURL, fmt.Errorf("parse %q: %w", raw, err))
	}
	if u.Scheme != "https" {
		return RepoRef{}, newError(KindInvalidURL, fmt.Errorf("scheme %q not allowed, want https", u.Scheme))
	}
	if u.User != nil {
		return RepoRef{}, newError(KindInvalidURL, fmt.Errorf("credentials in URL are not allowed"))
	}

	host := strings.ToLower(u.Hostname())
	allowed := false
	for _, h := range allowedHosts {
		if host == strings.ToLower(h) {
			allowed = true
			break
		}
	}
	if !allowed {
		return RepoRef{}, newError(KindInvalidURL, fmt.Errorf("host %q not in allowed hosts", host))
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return RepoRef{}, newError(KindInvalidURL, fmt.Errorf("path %q is not owner/repo", u.Path))
	}

	repo := strings.TrimSuffix(parts[1], ".git")
	if repo == "" {
		return RepoRef{}, newError(KindInvalidURL, fmt.Errorf("empty repository name"))
	}

	return RepoRef{Host: host, Owner: parts[0], Repo: repo}, nil
}
