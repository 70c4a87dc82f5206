package services

import (
	"context"

	"github.com/Mike-mible/cjic/models"
	"golang.org/x/sync/errgroup"
)

type SiteSummary struct {
	SiteID         string  `json:"siteId"`
	Name           string  `json:"name"`
	Progress       int     `json:"progress"`
	Budget         float64 `json:"budget"`
	Spent          float64 `json:"spent"`
	Logs           int     `json:"logs"`
	PendingReviews int     `json:"pendingReviews"`
	Workers        int     `json:"workers"`
}

type Portfolio struct {
	TotalWorkers   int           `json:"totalWorkers"`
	PendingReviews int           `json:"pendingReviews"`
	ActiveSites    int           `json:"activeSites"`
	TotalBudget    float64       `json:"totalBudget"`
	TotalSpent     float64       `json:"totalSpent"`
	IncidentRatio  float64       `json:"incidentRatio"`
	Sites          []SiteSummary `json:"sites"`
}

type ExecutiveSummary struct {
	Portfolio
	OpenHazards int    `json:"openHazards"`
	Insight     string `json:"insight"`
}

// AnalyticsService computes read-only figures across every site.
type AnalyticsService struct {
	base
	insights *InsightService
}

func NewAnalyticsService(d Deps, insights *InsightService) *AnalyticsService {
	return &AnalyticsService{base: newBase(d), insights: insights}
}

func (s *AnalyticsService) Portfolio(ctx context.Context, actor *models.User) (*Portfolio, error) {
	if err := s.require(actor, models.CapViewPortfolio); err != nil {
		return nil, err
	}
	p, _, _, err := s.load(ctx, false)
	return p, err
}

func (s *AnalyticsService) Executive(ctx context.Context, actor *models.User) (*ExecutiveSummary, error) {
	if err := s.require(actor, models.CapViewExecutiveSummary); err != nil {
		return nil, err
	}
	p, logs, reports, err := s.load(ctx, true)
	if err != nil {
		return nil, err
	}

	summary := &ExecutiveSummary{Portfolio: *p}
	for _, r := range reports {
		if r.HazardLevel.Escalates() {
			summary.OpenHazards++
		}
	}
	summary.Insight = s.insights.Summarize(ctx, logs)
	return summary, nil
}

// load fetches sites, logs and, when asked, safety reports in parallel.
func (s *AnalyticsService) load(ctx context.Context, withReports bool) (*Portfolio, []models.SiteLog, []models.SafetyReport, error) {
	sctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		sites   []models.Site
		logs    []models.SiteLog
		reports []models.SafetyReport
	)
	g, gctx := errgroup.WithContext(sctx)
	g.Go(func() error {
		var err error
		sites, err = s.store.ListSites(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		logs, err = s.store.ListSiteLogs(gctx, models.SiteLogFilter{})
		return err
	})
	if withReports {
		g.Go(func() error {
			var err error
			reports, err = s.store.ListSafetyReports(gctx, "")
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, nil, storeError(err)
	}
	return summarize(sites, logs), logs, reports, nil
}

func summarize(sites []models.Site, logs []models.SiteLog) *Portfolio {
	p := &Portfolio{Sites: make([]SiteSummary, 0, len(sites))}
	index := make(map[string]int, len(sites))
	for i, site := range sites {
		index[site.ID] = i
		p.Sites = append(p.Sites, SiteSummary{
			SiteID:   site.ID,
			Name:     site.Name,
			Progress: site.Progress,
			Budget:   site.Budget,
			Spent:    site.Spent,
		})
		p.TotalBudget += site.Budget
		p.TotalSpent += site.Spent
		if site.Active() {
			p.ActiveSites++
		}
	}

	incidents := 0
	for _, l := range logs {
		p.TotalWorkers += l.WorkersCount
		pending := l.Status == models.LogSubmitted
		if pending {
			p.PendingReviews++
		}
		if l.HasIncident() {
			incidents++
		}
		if i, ok := index[l.SiteID]; ok {
			p.Sites[i].Logs++
			p.Sites[i].Workers += l.WorkersCount
			if pending {
				p.Sites[i].PendingReviews++
			}
		}
	}
	if len(logs) > 0 {
		p.IncidentRatio = float64(incidents) / float64(len(logs))
	}
	return p
}
