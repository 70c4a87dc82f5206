package services

import (
	"context"
	"errors"
	"strings"

	"github.com/Mike-mible/cjic/database"
	"github.com/Mike-mible/cjic/models"
)

// HazardNotifier is told about reports whose hazard level escalates.
type HazardNotifier interface {
	NotifyHazard(ctx context.Context, report *models.SafetyReport) error
}

type SafetyService struct {
	base
	drafts   *DraftService
	notifier HazardNotifier
}

func NewSafetyService(d Deps, drafts *DraftService, notifier HazardNotifier) *SafetyService {
	return &SafetyService{base: newBase(d), drafts: drafts, notifier: notifier}
}

// Create appends a safety report. Reports are never edited afterwards.
func (s *SafetyService) Create(ctx context.Context, actor *models.User, in models.SafetyReportCreate) (*models.SafetyReport, error) {
	if err := s.require(actor, models.CapSubmitSafetyReports); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.SiteID) == "" {
		return nil, ErrMissingSite
	}
	report, err := models.NewSafetyReport(in, actor.ID, s.now())
	if err != nil {
		return nil, invalid("%s", err)
	}

	sctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.store.GetSite(sctx, report.SiteID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrMissingSite
		}
		return nil, storeError(err)
	}
	created, err := s.store.CreateSafetyReport(sctx, report)
	if err != nil {
		if errors.Is(err, database.ErrMissingReference) {
			return nil, ErrMissingSite
		}
		return nil, storeError(err)
	}

	s.drafts.discard(ctx, actor.ID, DraftSafetyReport)
	s.log.Info(ctx, "safety report filed", "report_id", created.ID, "site_id", created.SiteID, "hazard_level", created.HazardLevel)

	if created.HazardLevel.Escalates() && s.notifier != nil {
		if err := s.notifier.NotifyHazard(ctx, created); err != nil {
			s.log.Error(ctx, "hazard notification failed", "report_id", created.ID, "error", err)
		} else {
			s.log.Info(ctx, "hazard notification sent", "report_id", created.ID, "hazard_level", created.HazardLevel)
		}
	}
	return created, nil
}

// List returns reports newest first. An empty siteID lists every site.
func (s *SafetyService) List(ctx context.Context, siteID string) ([]models.SafetyReport, error) {
	sctx, cancel := s.withTimeout(ctx)
	defer cancel()

	reports, err := s.store.ListSafetyReports(sctx, siteID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return []models.SafetyReport{}, nil
		}
		return nil, storeError(err)
	}
	return reports, nil
}
