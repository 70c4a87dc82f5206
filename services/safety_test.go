package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Mike-mible/cjic/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu      sync.Mutex
	reports []*models.SafetyReport
	err     error
}

func (n *recordingNotifier) NotifyHazard(ctx context.Context, r *models.SafetyReport) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reports = append(n.reports, r)
	return n.err
}

func reportInput(siteID string, level models.HazardLevel) models.SafetyReportCreate {
	return models.SafetyReportCreate{
		SiteID:         siteID,
		HazardLevel:    level,
		PPECompliance:  true,
		Observations:   "Open edge on level 5",
		ActionRequired: "Install guardrail",
	}
}

func TestSafetyCreate_NotifiesOnEscalation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	officer := e.seedUser(t, "sol", models.RoleSafetyOfficer, models.StatusActive)
	n := &recordingNotifier{}
	svc := NewSafetyService(e.deps, e.drafts, n)

	low, err := svc.Create(ctx, officer, reportInput(e.site.ID, models.HazardLow))
	require.NoError(t, err)
	assert.Equal(t, "2024-05-15", low.Date)
	assert.Empty(t, n.reports)

	critical, err := svc.Create(ctx, officer, reportInput(e.site.ID, models.HazardCritical))
	require.NoError(t, err)
	require.Len(t, n.reports, 1)
	assert.Equal(t, critical.ID, n.reports[0].ID)

	_, err = svc.Create(ctx, officer, reportInput(e.site.ID, models.HazardHigh))
	require.NoError(t, err)
	assert.Len(t, n.reports, 2)
}

func TestSafetyCreate_NotificationFailureDoesNotFailIntake(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	officer := e.seedUser(t, "sol", models.RoleSafetyOfficer, models.StatusActive)
	svc := NewSafetyService(e.deps, e.drafts, &recordingNotifier{err: errors.New("broker down")})

	r, err := svc.Create(ctx, officer, reportInput(e.site.ID, models.HazardCritical))
	require.NoError(t, err)

	reports, err := svc.List(ctx, e.site.ID)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, r.ID, reports[0].ID)
}

func TestSafetyCreate_Errors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	officer := e.seedUser(t, "sol", models.RoleSafetyOfficer, models.StatusActive)
	foreman := e.seedUser(t, "fay", models.RoleForeman, models.StatusActive)
	supervisor := e.seedUser(t, "sue", models.RoleSiteSupervisor, models.StatusActive)
	svc := NewSafetyService(e.deps, e.drafts, nil)

	_, err := svc.Create(ctx, foreman, reportInput(e.site.ID, models.HazardLow))
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Create(ctx, officer, reportInput("", models.HazardLow))
	assert.ErrorIs(t, err, ErrMissingSite)

	_, err = svc.Create(ctx, officer, reportInput("nowhere", models.HazardLow))
	assert.ErrorIs(t, err, ErrMissingSite)

	_, err = svc.Create(ctx, officer, reportInput(e.site.ID, "Severe"))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Create(ctx, supervisor, reportInput(e.site.ID, models.HazardMedium))
	assert.NoError(t, err)
}

func TestSafetyList_MalformedSiteIDIsEmpty(t *testing.T) {
	e := newEnv(t)
	e.deps.Store = unparsableSiteID{Store: e.store}
	svc := NewSafetyService(e.deps, e.drafts, nil)

	reports, err := svc.List(context.Background(), "not-a-uuid")
	require.NoError(t, err)
	assert.NotNil(t, reports)
	assert.Empty(t, reports)
}
