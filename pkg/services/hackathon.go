package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vibejudge/vibejudge/pkg/ids"
	"github.com/vibejudge/vibejudge/pkg/models"
	"github.com/vibejudge/vibejudge/pkg/retry"
	"github.com/vibejudge/vibejudge/pkg/store"
)

// HackathonService manages the hackathon lifecycle. The detail row under
// HACK#{id}/META is authoritative; a listing row under ORG#{org}/HACK#{id}
// mirrors it for per-organizer listings.
type HackathonService struct {
	st     store.Store
	logger *slog.Logger
}

// NewHackathonService creates a hackathon service.
func NewHackathonService(st store.Store, logger *slog.Logger) *HackathonService {
	return &HackathonService{st: st, logger: logger.With("component", "hackathons")}
}

// HackathonInput carries the mutable configuration of a hackathon.
type HackathonInput struct {
	Name           string              `json:"name"`
	Rubric         *models.Rubric      `json:"rubric"`
	AgentsEnabled  []models.AgentName  `json:"agents_enabled"`
	AIPolicyMode   models.AIPolicyMode `json:"ai_policy_mode"`
	BudgetLimitUSD *float64            `json:"budget_limit_usd"`
}

// Create makes a new draft hackathon.
func (s *HackathonService) Create(ctx context.Context, orgID string, in HackathonInput) (*models.Hackathon, error) {
	now := time.Now().UTC()
	hack := &models.Hackathon{
		HackID:         ids.NewHackathonID(),
		OrgID:          orgID,
		Name:           in.Name,
		Status:         models.HackathonDraft,
		AgentsEnabled:  in.AgentsEnabled,
		AIPolicyMode:   in.AIPolicyMode,
		BudgetLimitUSD: in.BudgetLimitUSD,
		AnalysisStatus: models.AnalysisNotStarted,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if in.Rubric != nil {
		hack.Rubric = *in.Rubric
	}
	if hack.AIPolicyMode == "" {
		hack.AIPolicyMode = models.PolicyAIAssisted
	}
	if err := hack.Validate(); err != nil {
		return nil, NewValidationError("hackathon", err.Error())
	}

	item, err := store.NewItem(store.HackPK(hack.HackID), store.SKMeta, hack)
	if err != nil {
		return nil, err
	}
	item.GSI1PK = store.GSI1Hack(hack.HackID)
	item.GSI1SK = store.SKMeta
	if err := s.st.PutIfAbsent(ctx, item); err != nil {
		return nil, fmt.Errorf("create hackathon: %w", err)
	}
	if err := writeListingRow(ctx, s.st, hack); err != nil {
		return nil, err
	}

	s.logger.Info("Hackathon created", "hack_id", hack.HackID, "org_id", orgID)
	return hack, nil
}

// Get loads one hackathon after an ownership check.
func (s *HackathonService) Get(ctx context.Context, orgID, hackID string) (*models.Hackathon, error) {
	_, hack, err := loadOwnedHackathon(ctx, s.st, orgID, hackID)
	return hack, err
}

// List returns the organizer's hackathons.
func (s *HackathonService) List(ctx context.Context, orgID string) ([]*models.Hackathon, error) {
	items, err := s.st.Query(ctx, store.OrgPK(orgID), store.PrefixHack)
	if err != nil {
		return nil, fmt.Errorf("query hackathons: %w", err)
	}
	hacks := make([]*models.Hackathon, 0, len(items))
	for _, item := range items {
		var hack models.Hackathon
		if err := item.Unmarshal(&hack); err != nil {
			return nil, fmt.Errorf("decode hackathon: %w", err)
		}
		hacks = append(hacks, &hack)
	}
	return hacks, nil
}

// Update changes rubric, agents, policy or budget. Configuration is frozen
// once the hackathon has left {draft, configured}.
func (s *HackathonService) Update(ctx context.Context, orgID, hackID string, in HackathonInput) (*models.Hackathon, error) {
	if _, _, err := loadOwnedHackathon(ctx, s.st, orgID, hackID); err != nil {
		return nil, err
	}
	return mutateHackathon(ctx, s.st, hackID, func(hack *models.Hackathon) error {
		if !hack.Status.Mutable() {
			return ErrImmutable
		}
		if in.Name != "" {
			hack.Name = in.Name
		}
		if in.Rubric != nil {
			hack.Rubric = *in.Rubric
		}
		if in.AgentsEnabled != nil {
			hack.AgentsEnabled = in.AgentsEnabled
		}
		if in.AIPolicyMode != "" {
			hack.AIPolicyMode = in.AIPolicyMode
		}
		if in.BudgetLimitUSD != nil {
			hack.BudgetLimitUSD = in.BudgetLimitUSD
		}
		if err := hack.Validate(); err != nil {
			return NewValidationError("hackathon", err.Error())
		}
		return nil
	})
}

// Activate moves a draft hackathon to configured, freezing nothing yet but
// marking it ready for submissions.
func (s *HackathonService) Activate(ctx context.Context, orgID, hackID string) (*models.Hackathon, error) {
	return s.transition(ctx, orgID, hackID, models.HackathonConfigured)
}

// Archive moves a completed hackathon to archived.
func (s *HackathonService) Archive(ctx context.Context, orgID, hackID string) (*models.Hackathon, error) {
	return s.transition(ctx, orgID, hackID, models.HackathonArchived)
}

// Delete removes a hackathon. Only empty drafts can be deleted.
func (s *HackathonService) Delete(ctx context.Context, orgID, hackID string) error {
	_, hack, err := loadOwnedHackathon(ctx, s.st, orgID, hackID)
	if err != nil {
		return err
	}
	if hack.Status != models.HackathonDraft {
		return fmt.Errorf("%w: only draft hackathons can be deleted", ErrImmutable)
	}
	if hack.SubmissionCount > 0 {
		return NewValidationError("hackathon", "has submissions")
	}
	if err := s.st.Delete(ctx, store.HackPK(hackID), store.SKMeta); err != nil {
		return fmt.Errorf("delete hackathon: %w", err)
	}
	if err := s.st.Delete(ctx, store.OrgPK(orgID), store.HackSK(hackID)); err != nil {
		return fmt.Errorf("delete hackathon listing: %w", err)
	}
	s.logger.Info("Hackathon deleted", "hack_id", hackID, "org_id", orgID)
	return nil
}

// CostSummary returns the hackathon's running cost aggregates; a zero-value
// summary when nothing has been analyzed yet.
func (s *HackathonService) CostSummary(ctx context.Context, orgID, hackID string) (*models.HackathonCostSummary, error) {
	if _, _, err := loadOwnedHackathon(ctx, s.st, orgID, hackID); err != nil {
		return nil, err
	}
	item, err := s.st.Get(ctx, store.HackPK(hackID), store.SKCostSummary)
	if errors.Is(err, store.ErrNotFound) {
		return &models.HackathonCostSummary{HackID: hackID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cost summary: %w", err)
	}
	var summary models.HackathonCostSummary
	if err := item.Unmarshal(&summary); err != nil {
		return nil, fmt.Errorf("decode cost summary: %w", err)
	}
	return &summary, nil
}

func (s *HackathonService) transition(ctx context.Context, orgID, hackID string, next models.HackathonStatus) (*models.Hackathon, error) {
	if _, _, err := loadOwnedHackathon(ctx, s.st, orgID, hackID); err != nil {
		return nil, err
	}
	return mutateHackathon(ctx, s.st, hackID, func(hack *models.Hackathon) error {
		if !hack.Status.CanTransitionTo(next) {
			return NewValidationError("status",
				fmt.Sprintf("cannot move from %s to %s", hack.Status, next))
		}
		hack.Status = next
		return nil
	})
}

// loadOwnedHackathon resolves the detail row and enforces ownership.
func loadOwnedHackathon(ctx context.Context, st store.Store, orgID, hackID string) (*store.Item, *models.Hackathon, error) {
	item, err := st.Get(ctx, store.HackPK(hackID), store.SKMeta)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load hackathon: %w", err)
	}
	var hack models.Hackathon
	if err := item.Unmarshal(&hack); err != nil {
		return nil, nil, fmt.Errorf("decode hackathon: %w", err)
	}
	if hack.OrgID != orgID {
		return nil, nil, ErrNotOwner
	}
	return item, &hack, nil
}

// mutateHackathon is a retried read-modify-write over the detail row that
// re-mirrors the listing row on success. Validation failures are permanent.
func mutateHackathon(ctx context.Context, st store.Store, hackID string, mutate func(*models.Hackathon) error) (*models.Hackathon, error) {
	var result *models.Hackathon
	err := retry.Default().Do(ctx, func(ctx context.Context) error {
		item, err := st.Get(ctx, store.HackPK(hackID), store.SKMeta)
		if err != nil {
			return retry.MarkPermanent(err)
		}
		var hack models.Hackathon
		if err := item.Unmarshal(&hack); err != nil {
			return retry.MarkPermanent(err)
		}
		if err := mutate(&hack); err != nil {
			return retry.MarkPermanent(err)
		}
		hack.UpdatedAt = time.Now().UTC()

		updated, err := store.NewItem(item.PK, item.SK, &hack)
		if err != nil {
			return retry.MarkPermanent(err)
		}
		updated.GSI1PK = item.GSI1PK
		updated.GSI1SK = item.GSI1SK
		if err := st.UpdateVersioned(ctx, updated, item.Version); err != nil {
			return err
		}
		result = &hack
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := writeListingRow(ctx, st, result); err != nil {
		return nil, err
	}
	return result, nil
}

// writeListingRow mirrors the hackathon into its organizer's partition.
func writeListingRow(ctx context.Context, st store.Store, hack *models.Hackathon) error {
	listing, err := store.NewItem(store.OrgPK(hack.OrgID), store.HackSK(hack.HackID), hack)
	if err != nil {
		return err
	}
	if err := st.Put(ctx, listing); err != nil {
		return fmt.Errorf("write hackathon listing: %w", err)
	}
	return nil
}
