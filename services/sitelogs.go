package services

import (
	"context"
	"errors"
	"strings"

	"github.com/Mike-mible/cjic/database"
	"github.com/Mike-mible/cjic/models"
)

type SiteLogService struct {
	base
	drafts *DraftService
}

func NewSiteLogService(d Deps, drafts *DraftService) *SiteLogService {
	return &SiteLogService{base: newBase(d), drafts: drafts}
}

// Create stores a new log as DRAFT or SUBMITTED and drops the author's
// saved form.
func (s *SiteLogService) Create(ctx context.Context, actor *models.User, in models.SiteLogCreate) (*models.SiteLog, error) {
	if err := s.require(actor, models.CapSubmitSiteLogs); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.SiteID) == "" {
		return nil, ErrMissingSite
	}
	if strings.TrimSpace(in.ForemanName) == "" {
		in.ForemanName = actor.Name
	}
	log, err := models.NewSiteLog(in, actor.ID, s.now())
	if err != nil {
		return nil, invalid("%s", err)
	}

	sctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.siteExists(sctx, log.SiteID); err != nil {
		return nil, err
	}
	created, err := s.store.CreateSiteLog(sctx, log)
	if err != nil {
		if errors.Is(err, database.ErrMissingReference) {
			return nil, ErrMissingSite
		}
		return nil, storeError(err)
	}

	s.drafts.discard(ctx, actor.ID, DraftSiteLog)
	s.log.Info(ctx, "site log created", "log_id", created.ID, "site_id", created.SiteID, "status", created.Status)
	return created, nil
}

func (s *SiteLogService) siteExists(ctx context.Context, siteID string) error {
	if _, err := s.store.GetSite(ctx, siteID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrMissingSite
		}
		return storeError(err)
	}
	return nil
}

// Review records an APPROVED or REJECTED decision on a SUBMITTED log. The
// store applies it only while the log is still SUBMITTED, so a second
// reviewer racing the first gets ErrNotReviewable.
func (s *SiteLogService) Review(ctx context.Context, reviewer *models.User, logID string, review models.SiteLogReview) (*models.SiteLog, error) {
	if err := s.require(reviewer, models.CapReviewSiteLogs); err != nil {
		return nil, err
	}
	if review.Decision != models.LogApproved && review.Decision != models.LogRejected {
		return nil, invalid("decision must be APPROVED or REJECTED")
	}

	sctx, cancel := s.withTimeout(ctx)
	defer cancel()

	reviewed, err := s.store.ReviewSiteLog(sctx, logID, review.Decision, review.Feedback, reviewer.ID)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrConflict):
			return nil, ErrNotReviewable
		case errors.Is(err, database.ErrNotFound):
			return nil, ErrNotFound
		}
		return nil, storeError(err)
	}

	s.log.Info(ctx, "site log reviewed", "log_id", logID, "decision", review.Decision, "reviewer_id", reviewer.ID)
	return reviewed, nil
}

// List returns logs newest first.
func (s *SiteLogService) List(ctx context.Context, f models.SiteLogFilter) ([]models.SiteLog, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, invalid("unknown status %q", f.Status)
	}
	sctx, cancel := s.withTimeout(ctx)
	defer cancel()

	logs, err := s.store.ListSiteLogs(sctx, f)
	if err != nil {
		// a malformed site id matches no log
		if errors.Is(err, database.ErrNotFound) {
			return []models.SiteLog{}, nil
		}
		return nil, storeError(err)
	}
	return logs, nil
}

// ReviewQueue lists the logs waiting on a decision.
func (s *SiteLogService) ReviewQueue(ctx context.Context, reviewer *models.User) ([]models.SiteLog, error) {
	if err := s.require(reviewer, models.CapReviewSiteLogs); err != nil {
		return nil, err
	}
	return s.List(ctx, models.SiteLogFilter{Status: models.LogSubmitted})
}

func (s *SiteLogService) Get(ctx context.Context, id string) (*models.SiteLog, error) {
	sctx, cancel := s.withTimeout(ctx)
	defer cancel()

	l, err := s.store.GetSiteLog(sctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, storeError(err)
	}
	return l, nil
}

// Submit sends the author's DRAFT for review.
func (s *SiteLogService) Submit(ctx context.Context, actor *models.User, id string) (*models.SiteLog, error) {
	return s.transition(ctx, actor, id, models.LogDraft, models.LogSubmitted)
}

// Revise reopens a REJECTED log as a DRAFT so the author can correct and
// resubmit it.
func (s *SiteLogService) Revise(ctx context.Context, actor *models.User, id string) (*models.SiteLog, error) {
	return s.transition(ctx, actor, id, models.LogRejected, models.LogDraft)
}

func (s *SiteLogService) transition(ctx context.Context, actor *models.User, id string, from, to models.LogStatus) (*models.SiteLog, error) {
	if err := s.require(actor, models.CapSubmitSiteLogs); err != nil {
		return nil, err
	}
	if !models.LogTransitionAllowed(from, to) {
		return nil, ErrIllegalTransition
	}

	sctx, cancel := s.withTimeout(ctx)
	defer cancel()

	l, err := s.store.TransitionSiteLog(sctx, id, from, to, actor.ID)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrConflict):
			return nil, ErrIllegalTransition
		case errors.Is(err, database.ErrNotFound):
			return nil, ErrNotFound
		}
		return nil, storeError(err)
	}

	s.log.Info(ctx, "site log status changed", "log_id", id, "from", from, "to", to)
	return l, nil
}

// SaveDraft rewrites the editable fields of the author's DRAFT log.
func (s *SiteLogService) SaveDraft(ctx context.Context, actor *models.User, id string, in models.SiteLogCreate) (*models.SiteLog, error) {
	if err := s.require(actor, models.CapSubmitSiteLogs); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.SiteID) == "" {
		return nil, ErrMissingSite
	}
	if strings.TrimSpace(in.ForemanName) == "" {
		in.ForemanName = actor.Name
	}
	in.Status = models.LogDraft
	edit, err := models.NewSiteLog(in, actor.ID, s.now())
	if err != nil {
		return nil, invalid("%s", err)
	}
	edit.ID = id

	sctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.siteExists(sctx, edit.SiteID); err != nil {
		return nil, err
	}
	updated, err := s.store.UpdateSiteLogDraft(sctx, edit)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrConflict):
			return nil, ErrIllegalTransition
		case errors.Is(err, database.ErrNotFound):
			return nil, ErrNotFound
		case errors.Is(err, database.ErrMissingReference):
			return nil, ErrMissingSite
		}
		return nil, storeError(err)
	}
	return updated, nil
}
