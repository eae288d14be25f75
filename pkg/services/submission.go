package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/vibejudge/vibejudge/pkg/extract"
	"github.com/vibejudge/vibejudge/pkg/ids"
	"github.com/vibejudge/vibejudge/pkg/models"
	"github.com/vibejudge/vibejudge/pkg/store"
)

// SubmissionService handles submission intake and the read views built on
// top of persisted scorecards.
type SubmissionService struct {
	st           store.Store
	allowedHosts []string
	logger       *slog.Logger
}

// NewSubmissionService creates a submission service. allowedHosts gates the
// repo URLs accepted at intake, matching the extractor's parser.
func NewSubmissionService(st store.Store, allowedHosts []string, logger *slog.Logger) *SubmissionService {
	return &SubmissionService{
		st:           st,
		allowedHosts: allowedHosts,
		logger:       logger.With("component", "submissions"),
	}
}

// SubmissionInput is one intake request.
type SubmissionInput struct {
	TeamName string `json:"team_name"`
	RepoURL  string `json:"repo_url"`
}

// Create registers a submission. Team name and repo URL are each unique
// within the hackathon.
func (s *SubmissionService) Create(ctx context.Context, orgID, hackID string, in SubmissionInput) (*models.Submission, error) {
	_, hack, err := loadOwnedHackathon(ctx, s.st, orgID, hackID)
	if err != nil {
		return nil, err
	}
	if hack.Status == models.HackathonArchived {
		return nil, NewValidationError("hackathon", "is archived")
	}

	teamName := strings.TrimSpace(in.TeamName)
	if teamName == "" {
		return nil, NewValidationError("team_name", "must not be empty")
	}
	if _, err := extract.ParseRepoURL(in.RepoURL, s.allowedHosts); err != nil {
		return nil, NewValidationError("repo_url", err.Error())
	}

	existing, err := s.listSubmissions(ctx, hackID)
	if err != nil {
		return nil, err
	}
	for _, other := range existing {
		if strings.EqualFold(other.TeamName, teamName) {
			return nil, fmt.Errorf("team %q: %w", teamName, ErrAlreadyExists)
		}
		if other.RepoURL == in.RepoURL {
			return nil, fmt.Errorf("repository %s: %w", in.RepoURL, ErrAlreadyExists)
		}
	}

	now := time.Now().UTC()
	sub := &models.Submission{
		SubID:     ids.NewSubmissionID(),
		HackID:    hackID,
		TeamName:  teamName,
		RepoURL:   in.RepoURL,
		Status:    models.SubmissionPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	item, err := store.NewItem(store.HackPK(hackID), store.SubSK(sub.SubID), sub)
	if err != nil {
		return nil, err
	}
	item.GSI1PK = store.GSI1Sub(sub.SubID)
	item.GSI1SK = store.HackSK(hackID)
	if err := s.st.PutIfAbsent(ctx, item); err != nil {
		return nil, fmt.Errorf("create submission: %w", err)
	}

	if _, err := mutateHackathon(ctx, s.st, hackID, func(hack *models.Hackathon) error {
		hack.SubmissionCount++
		return nil
	}); err != nil {
		s.logger.Error("Failed to bump submission count", "hack_id", hackID, "error", err)
	}

	s.logger.Info("Submission created", "hack_id", hackID, "sub_id", sub.SubID, "team", teamName)
	return sub, nil
}

// Get loads one submission within an owned hackathon.
func (s *SubmissionService) Get(ctx context.Context, orgID, hackID, subID string) (*models.Submission, error) {
	if _, _, err := loadOwnedHackathon(ctx, s.st, orgID, hackID); err != nil {
		return nil, err
	}
	return s.loadSubmission(ctx, hackID, subID)
}

// List returns all submissions of an owned hackathon.
func (s *SubmissionService) List(ctx context.Context, orgID, hackID string) ([]*models.Submission, error) {
	if _, _, err := loadOwnedHackathon(ctx, s.st, orgID, hackID); err != nil {
		return nil, err
	}
	return s.listSubmissions(ctx, hackID)
}

// LeaderboardEntry is one ranked row of the hackathon leaderboard. Entries
// without a score (not yet analyzed) trail the ranked ones with rank 0.
type LeaderboardEntry struct {
	Rank           int                     `json:"rank,omitempty"`
	SubID          string                  `json:"sub_id"`
	TeamName       string                  `json:"team_name"`
	Status         models.SubmissionStatus `json:"status"`
	OverallScore   *float64                `json:"overall_score,omitempty"`
	Recommendation models.Recommendation   `json:"recommendation,omitempty"`
	Confidence     float64                 `json:"confidence,omitempty"`
	TotalCostUSD   *float64                `json:"total_cost_usd,omitempty"`
}

// Leaderboard returns the hackathon's submissions ordered by overall score
// descending, earliest submission winning ties.
func (s *SubmissionService) Leaderboard(ctx context.Context, orgID, hackID string) ([]LeaderboardEntry, error) {
	if _, _, err := loadOwnedHackathon(ctx, s.st, orgID, hackID); err != nil {
		return nil, err
	}
	subs, err := s.listSubmissions(ctx, hackID)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(subs, func(i, j int) bool {
		si, sj := subs[i], subs[j]
		switch {
		case si.OverallScore != nil && sj.OverallScore == nil:
			return true
		case si.OverallScore == nil && sj.OverallScore != nil:
			return false
		case si.OverallScore != nil && *si.OverallScore != *sj.OverallScore:
			return *si.OverallScore > *sj.OverallScore
		}
		return si.CreatedAt.Before(sj.CreatedAt)
	})

	entries := make([]LeaderboardEntry, 0, len(subs))
	rank := 0
	for _, sub := range subs {
		entry := LeaderboardEntry{
			SubID:        sub.SubID,
			TeamName:     sub.TeamName,
			Status:       sub.Status,
			OverallScore: sub.OverallScore,
			TotalCostUSD: sub.TotalCostUSD,
		}
		if sub.OverallScore != nil {
			rank++
			entry.Rank = rank
			if summary, err := s.loadSummary(ctx, sub.SubID); err == nil {
				entry.Recommendation = summary.Recommendation
				entry.Confidence = summary.Confidence
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Scorecard is the full judging record of one submission.
type Scorecard struct {
	Submission *models.Submission        `json:"submission"`
	Summary    *models.SubmissionSummary `json:"summary,omitempty"`
	Results    []*models.AgentResult     `json:"agent_results,omitempty"`
}

// Scorecard resolves a submission by id alone (via the sub-id index), checks
// ownership of the owning hackathon, and returns summary plus per-agent
// results. Submissions not yet analyzed return with a nil summary.
func (s *SubmissionService) Scorecard(ctx context.Context, orgID, subID string) (*Scorecard, error) {
	items, err := s.st.QueryGSI1(ctx, store.GSI1Sub(subID), store.PrefixHack)
	if err != nil {
		return nil, fmt.Errorf("resolve submission: %w", err)
	}
	var sub *models.Submission
	for _, item := range items {
		// The index also holds this submission's artifact rows; the
		// submission row is the one keyed under its hackathon partition.
		if strings.HasPrefix(item.PK, "HACK#") {
			var decoded models.Submission
			if err := item.Unmarshal(&decoded); err != nil {
				return nil, fmt.Errorf("decode submission: %w", err)
			}
			sub = &decoded
			break
		}
	}
	if sub == nil {
		return nil, ErrNotFound
	}
	if _, _, err := loadOwnedHackathon(ctx, s.st, orgID, sub.HackID); err != nil {
		return nil, err
	}

	card := &Scorecard{Submission: sub}
	if summary, err := s.loadSummary(ctx, subID); err == nil {
		card.Summary = summary
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	scoreItems, err := s.st.Query(ctx, store.SubPK(subID), store.PrefixScore)
	if err != nil {
		return nil, fmt.Errorf("query agent results: %w", err)
	}
	for _, item := range scoreItems {
		var result models.AgentResult
		if err := item.Unmarshal(&result); err != nil {
			return nil, fmt.Errorf("decode agent result: %w", err)
		}
		card.Results = append(card.Results, &result)
	}
	return card, nil
}

func (s *SubmissionService) listSubmissions(ctx context.Context, hackID string) ([]*models.Submission, error) {
	items, err := s.st.Query(ctx, store.HackPK(hackID), store.PrefixSub)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	subs := make([]*models.Submission, 0, len(items))
	for _, item := range items {
		var sub models.Submission
		if err := item.Unmarshal(&sub); err != nil {
			return nil, fmt.Errorf("decode submission: %w", err)
		}
		subs = append(subs, &sub)
	}
	return subs, nil
}

func (s *SubmissionService) loadSubmission(ctx context.Context, hackID, subID string) (*models.Submission, error) {
	item, err := s.st.Get(ctx, store.HackPK(hackID), store.SubSK(subID))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load submission: %w", err)
	}
	var sub models.Submission
	if err := item.Unmarshal(&sub); err != nil {
		return nil, fmt.Errorf("decode submission: %w", err)
	}
	return &sub, nil
}

func (s *SubmissionService) loadSummary(ctx context.Context, subID string) (*models.SubmissionSummary, error) {
	item, err := s.st.Get(ctx, store.SubPK(subID), store.SKSummary)
	if err != nil {
		return nil, err
	}
	var summary models.SubmissionSummary
	if err := item.Unmarshal(&summary); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	return &summary, nil
}
