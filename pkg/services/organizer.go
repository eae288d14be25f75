package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/vibejudge/vibejudge/pkg/ids"
	"github.com/vibejudge/vibejudge/pkg/models"
	"github.com/vibejudge/vibejudge/pkg/store"
)

const apiKeyPrefix = "vjk_"

// OrganizerService manages organizer accounts and API-key authentication.
// Raw keys are returned exactly once at registration; only the SHA-256
// digest is stored.
type OrganizerService struct {
	st     store.Store
	logger *slog.Logger
}

// NewOrganizerService creates an organizer service.
func NewOrganizerService(st store.Store, logger *slog.Logger) *OrganizerService {
	return &OrganizerService{st: st, logger: logger.With("component", "organizers")}
}

// Register creates an organizer and returns the profile with the raw API key.
func (s *OrganizerService) Register(ctx context.Context, email string, tier models.OrganizerTier) (*models.Organizer, string, error) {
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, "", NewValidationError("email", "not a valid address")
	}
	if tier == "" {
		tier = models.TierFree
	}
	if !tier.Valid() {
		return nil, "", NewValidationError("tier", fmt.Sprintf("unknown tier %q", tier))
	}

	existing, err := s.st.QueryGSI1(ctx, store.GSI1Email(email), "")
	if err != nil {
		return nil, "", fmt.Errorf("check email: %w", err)
	}
	if len(existing) > 0 {
		return nil, "", fmt.Errorf("organizer with email %s: %w", email, ErrAlreadyExists)
	}

	orgID := ids.NewOrganizerID()
	apiKey, err := newAPIKey(orgID)
	if err != nil {
		return nil, "", fmt.Errorf("generate api key: %w", err)
	}

	now := time.Now().UTC()
	org := &models.Organizer{
		OrgID:            orgID,
		Email:            email,
		Tier:             tier,
		CredentialDigest: digest(apiKey),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	item, err := store.NewItem(store.OrgPK(orgID), store.SKProfile, org)
	if err != nil {
		return nil, "", err
	}
	item.GSI1PK = store.GSI1Email(email)
	item.GSI1SK = store.SKProfile
	if err := s.st.PutIfAbsent(ctx, item); err != nil {
		return nil, "", fmt.Errorf("create organizer: %w", err)
	}

	s.logger.Info("Organizer registered", "org_id", orgID, "tier", tier)
	return org, apiKey, nil
}

// Authenticate resolves the organizer behind a raw API key. Every failure
// mode collapses to ErrUnauthorized so callers cannot probe for accounts.
func (s *OrganizerService) Authenticate(ctx context.Context, apiKey string) (*models.Organizer, error) {
	orgID, ok := parseAPIKey(apiKey)
	if !ok {
		return nil, ErrUnauthorized
	}

	item, err := s.st.Get(ctx, store.OrgPK(orgID), store.SKProfile)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("load organizer: %w", err)
	}

	var org models.Organizer
	if err := item.Unmarshal(&org); err != nil {
		return nil, fmt.Errorf("decode organizer: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(org.CredentialDigest), []byte(digest(apiKey))) != 1 {
		return nil, ErrUnauthorized
	}
	return &org, nil
}

// GetOrganizer loads one organizer profile.
func (s *OrganizerService) GetOrganizer(ctx context.Context, orgID string) (*models.Organizer, error) {
	item, err := s.st.Get(ctx, store.OrgPK(orgID), store.SKProfile)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load organizer: %w", err)
	}
	var org models.Organizer
	if err := item.Unmarshal(&org); err != nil {
		return nil, fmt.Errorf("decode organizer: %w", err)
	}
	return &org, nil
}

// newAPIKey returns "vjk_{org_id}_{hex secret}". The embedded org id lets
// authentication resolve the profile without a key index.
func newAPIKey(orgID string) (string, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return "", err
	}
	return apiKeyPrefix + orgID + "_" + hex.EncodeToString(secret), nil
}

func parseAPIKey(apiKey string) (orgID string, ok bool) {
	rest, found := strings.CutPrefix(apiKey, apiKeyPrefix)
	if !found {
		return "", false
	}
	i := strings.LastIndex(rest, "_")
	if i <= 0 || i == len(rest)-1 {
		return "", false
	}
	return rest[:i], true
}

func digest(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:])
}
