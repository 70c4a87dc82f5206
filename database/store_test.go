package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Mike-mible/cjic/models"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStoreWithMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewStore(db), mock
}

var (
	testTime = time.Date(2024, 5, 15, 17, 30, 0, 0, time.UTC)
	testDate = time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC)
)

func userRowsFixture(status string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "email", "phone", "role", "site_id", "status",
		"last_active", "avatar", "bio", "onboarded_at", "created_at", "updated_at"}).
		AddRow("u-1", "Michael Chen", "m.chen@buildstream.com", nil, "FOREMAN", "site-1", status,
			nil, nil, nil, nil, testTime, testTime)
}

func siteLogRowsFixture(status, feedback string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "date", "shift", "site_id", "block_name", "foreman_name",
		"author_id", "status", "workers_count", "work_completed", "material_usage", "equipment_usage",
		"incidents", "photos", "engineer_feedback", "reviewed_by", "reviewed_at", "created_at", "updated_at"}).
		AddRow("log-1", testDate, "Day", "site-1", "Tower A", "Michael Chen", "u-1", status, 45,
			"Foundation pouring completed for Sector 1.",
			`[{"item":"Cement","quantity":"500","unit":"bags"}]`, `[{"item":"Tower Crane","hours":8}]`,
			"", "{https://example.com/a.jpg}", feedback, nil, nil, testTime, testTime)
}

func TestMapError(t *testing.T) {
	assert.Nil(t, mapError(nil))
	assert.ErrorIs(t, mapError(sql.ErrNoRows), ErrNotFound)
	assert.ErrorIs(t, mapError(&pq.Error{Code: "23505", Constraint: "credentials_email_key"}), ErrDuplicate)
	assert.ErrorIs(t, mapError(&pq.Error{Code: "23503"}), ErrMissingReference)
	assert.ErrorIs(t, mapError(&pq.Error{Code: "22P02"}), ErrNotFound)
	assert.ErrorContains(t, mapError(errors.New("db down")), "db error: db down")
}

func TestCreateCredential_Duplicate(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectExec(`(?s)^\s*INSERT\s+INTO\s+credentials`).
		WithArgs("u-1", "a@b.c", "hash", testTime).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "credentials_email_key"})

	err := s.CreateCredential(context.Background(), &models.Credential{ID: "u-1", Email: "a@b.c", PasswordHash: "hash", CreatedAt: testTime})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestGetCredentialByEmail(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectQuery(`(?s)SELECT\s+id,\s*email,\s*password_hash,\s*created_at\s+FROM\s+credentials\s+WHERE\s+email\s*=\s*LOWER\(\$1\)`).
		WithArgs("A@B.C").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "created_at"}).
			AddRow("u-1", "a@b.c", "hash", testTime))
	mock.ExpectQuery(`FROM\s+credentials`).
		WithArgs("ghost@b.c").
		WillReturnError(sql.ErrNoRows)

	c, err := s.GetCredentialByEmail(context.Background(), "A@B.C")
	require.NoError(t, err)
	assert.Equal(t, "u-1", c.ID)
	assert.Equal(t, "hash", c.PasswordHash)

	_, err = s.GetCredentialByEmail(context.Background(), "ghost@b.c")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateUser_IsIdempotent(t *testing.T) {
	s, mock := newStoreWithMock(t)
	u, err := models.NewUser("u-1", "Michael Chen", "m.chen@buildstream.com", "", "site-1", models.RoleForeman, models.StatusPending)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		mock.ExpectExec(`(?s)INSERT\s+INTO\s+users.*ON\s+CONFLICT\s+\(id\)\s+DO\s+NOTHING`).
			WillReturnResult(sqlmock.NewResult(0, int64(1-i)))
		mock.ExpectQuery(`(?s)SELECT\s+id,\s*name,.*FROM\s+users\s+WHERE\s+id\s*=\s*\$1`).
			WithArgs("u-1").
			WillReturnRows(userRowsFixture("PENDING"))
	}

	first, err := s.CreateUser(context.Background(), u)
	require.NoError(t, err)
	second, err := s.CreateUser(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, models.StatusPending, first.Status)
	require.NotNil(t, first.SiteID)
	assert.Equal(t, "site-1", *first.SiteID)
	assert.Nil(t, first.Phone)
}

func TestUpdateUserStatus(t *testing.T) {
	s, mock := newStoreWithMock(t)
	q := `(?s)UPDATE\s+users\s+SET\s+status\s*=\s*\$3,\s*updated_at\s*=\s*NOW\(\)\s+WHERE\s+id\s*=\s*\$1\s+AND\s+status\s*=\s*\$2`

	mock.ExpectExec(q).WithArgs("u-1", "PENDING", "ACTIVE").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.UpdateUserStatus(context.Background(), "u-1", models.StatusPending, models.StatusActive))

	mock.ExpectExec(q).WithArgs("u-1", "PENDING", "ACTIVE").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`FROM\s+users\s+WHERE\s+id`).WithArgs("u-1").WillReturnRows(userRowsFixture("ACTIVE"))
	err := s.UpdateUserStatus(context.Background(), "u-1", models.StatusPending, models.StatusActive)
	assert.ErrorIs(t, err, ErrConflict)

	mock.ExpectExec(q).WithArgs("ghost", "PENDING", "ACTIVE").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`FROM\s+users\s+WHERE\s+id`).WithArgs("ghost").WillReturnError(sql.ErrNoRows)
	err = s.UpdateUserStatus(context.Background(), "ghost", models.StatusPending, models.StatusActive)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCompleteOnboarding(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectExec(`(?s)UPDATE\s+users\s+SET.*onboarded_at\s*=\s*COALESCE\(onboarded_at,\s*NOW\(\)\)`).
		WithArgs("u-1", "555-0100", "", "", "", true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`FROM\s+users\s+WHERE\s+id`).WithArgs("u-1").WillReturnRows(userRowsFixture("ACTIVE"))

	u, err := s.CompleteOnboarding(context.Background(), "u-1", OnboardingFields{Phone: "555-0100"}, true)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, u.Status)

	mock.ExpectExec(`(?s)UPDATE\s+users\s+SET`).WillReturnResult(sqlmock.NewResult(0, 0))
	_, err = s.CompleteOnboarding(context.Background(), "ghost", OnboardingFields{}, false)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateSiteLog_RoundTrip(t *testing.T) {
	s, mock := newStoreWithMock(t)
	l, err := models.NewSiteLog(models.SiteLogCreate{
		Date:           "2024-05-15",
		SiteID:         "site-1",
		BlockName:      "Tower A",
		ForemanName:    "Michael Chen",
		WorkersCount:   45,
		WorkCompleted:  "Foundation pouring completed for Sector 1.",
		MaterialUsage:  []models.MaterialUsage{{Item: "Cement", Quantity: "500", Unit: "bags"}},
		EquipmentUsage: []models.EquipmentUsage{{Item: "Tower Crane", Hours: 8}},
		Photos:         []string{"https://example.com/a.jpg"},
		Status:         models.LogSubmitted,
	}, "u-1", testTime)
	require.NoError(t, err)

	mock.ExpectQuery(`(?s)INSERT\s+INTO\s+site_logs.*RETURNING\s+id,\s*date`).
		WithArgs(l.ID, "2024-05-15", "Day", "site-1", "Tower A", "Michael Chen", "u-1", "SUBMITTED", 45,
			l.WorkCompleted, `[{"item":"Cement","quantity":"500","unit":"bags"}]`,
			`[{"item":"Tower Crane","hours":8}]`, "", sqlmock.AnyArg(), "", testTime, testTime).
		WillReturnRows(siteLogRowsFixture("SUBMITTED", ""))

	got, err := s.CreateSiteLog(context.Background(), l)
	require.NoError(t, err)
	assert.Equal(t, "log-1", got.ID)
	assert.Equal(t, "2024-05-15", got.Date)
	assert.Equal(t, models.LogSubmitted, got.Status)
	assert.Equal(t, 45, got.WorkersCount)
	assert.Equal(t, l.MaterialUsage, got.MaterialUsage)
	assert.Equal(t, l.EquipmentUsage, got.EquipmentUsage)
	assert.Equal(t, []string{"https://example.com/a.jpg"}, got.Photos)
	assert.Equal(t, testTime, got.Timestamp)
}

func TestCreateSiteLog_MissingSite(t *testing.T) {
	s, mock := newStoreWithMock(t)
	l, err := models.NewSiteLog(models.SiteLogCreate{SiteID: "nowhere"}, "u-1", testTime)
	require.NoError(t, err)

	mock.ExpectQuery(`INSERT\s+INTO\s+site_logs`).WillReturnError(&pq.Error{Code: "23503", Constraint: "site_logs_site_id_fkey"})
	_, err = s.CreateSiteLog(context.Background(), l)
	assert.ErrorIs(t, err, ErrMissingReference)
}

func TestListSiteLogs_FilterAndOrder(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectQuery(`(?s)FROM\s+site_logs\s+WHERE\s+site_id\s*=\s*\$1\s+AND\s+status\s*=\s*\$2\s+ORDER\s+BY\s+created_at\s+DESC`).
		WithArgs("site-1", "SUBMITTED").
		WillReturnRows(siteLogRowsFixture("SUBMITTED", ""))

	logs, err := s.ListSiteLogs(context.Background(), models.SiteLogFilter{SiteID: "site-1", Status: models.LogSubmitted})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "Tower A", logs[0].BlockName)

	mock.ExpectQuery(`(?s)FROM\s+site_logs\s+ORDER\s+BY\s+created_at\s+DESC`).
		WillReturnRows(siteLogRowsFixture("DRAFT", ""))
	logs, err = s.ListSiteLogs(context.Background(), models.SiteLogFilter{})
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestReviewSiteLog(t *testing.T) {
	s, mock := newStoreWithMock(t)
	q := `(?s)UPDATE\s+site_logs\s+SET\s+status\s*=\s*\$2.*WHERE\s+id\s*=\s*\$1\s+AND\s+status\s*=\s*'SUBMITTED'\s+RETURNING`

	mock.ExpectQuery(q).
		WithArgs("log-1", "APPROVED", "", "eng-1").
		WillReturnRows(siteLogRowsFixture("APPROVED", ""))
	got, err := s.ReviewSiteLog(context.Background(), "log-1", models.LogApproved, "", "eng-1")
	require.NoError(t, err)
	assert.Equal(t, models.LogApproved, got.Status)

	// a second decision finds no SUBMITTED row
	mock.ExpectQuery(q).WithArgs("log-1", "REJECTED", "late", "eng-2").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`SELECT\s+EXISTS`).WithArgs("log-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	_, err = s.ReviewSiteLog(context.Background(), "log-1", models.LogRejected, "late", "eng-2")
	assert.ErrorIs(t, err, ErrConflict)

	mock.ExpectQuery(q).WithArgs("ghost", "APPROVED", "", "eng-1").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`SELECT\s+EXISTS`).WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	_, err = s.ReviewSiteLog(context.Background(), "ghost", models.LogApproved, "", "eng-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransitionSiteLog(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectQuery(`(?s)UPDATE\s+site_logs\s+SET\s+status\s*=\s*\$3.*author_id\s*=\s*\$4`).
		WithArgs("log-1", "DRAFT", "SUBMITTED", "u-1").
		WillReturnRows(siteLogRowsFixture("SUBMITTED", ""))
	got, err := s.TransitionSiteLog(context.Background(), "log-1", models.LogDraft, models.LogSubmitted, "u-1")
	require.NoError(t, err)
	assert.Equal(t, models.LogSubmitted, got.Status)
}

func TestUpdateSiteLogDraft_Conflict(t *testing.T) {
	s, mock := newStoreWithMock(t)
	l, err := models.NewSiteLog(models.SiteLogCreate{SiteID: "site-1"}, "u-1", testTime)
	require.NoError(t, err)

	mock.ExpectQuery(`(?s)UPDATE\s+site_logs\s+SET.*status\s*=\s*'DRAFT'`).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`SELECT\s+EXISTS`).WithArgs(l.ID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	_, err = s.UpdateSiteLogDraft(context.Background(), l)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestSafetyReports(t *testing.T) {
	s, mock := newStoreWithMock(t)
	r, err := models.NewSafetyReport(models.SafetyReportCreate{
		Date: "2024-05-15", SiteID: "site-1", HazardLevel: models.HazardCritical,
		Observations: "Open trench without barrier",
	}, "so-1", testTime)
	require.NoError(t, err)

	cols := []string{"id", "date", "site_id", "author_id", "hazard_level", "ppe_compliance",
		"observations", "action_required", "photos", "created_at"}
	mock.ExpectQuery(`(?s)INSERT\s+INTO\s+safety_reports`).
		WithArgs(r.ID, "2024-05-15", "site-1", "so-1", "Critical", false, "Open trench without barrier", "", sqlmock.AnyArg(), testTime).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(r.ID, testDate, "site-1", "so-1", "Critical", false, "Open trench without barrier", "", "{}", testTime))

	got, err := s.CreateSafetyReport(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, models.HazardCritical, got.HazardLevel)
	assert.False(t, got.PPECompliance)
	assert.Empty(t, got.Photos)

	mock.ExpectQuery(`(?s)FROM\s+safety_reports\s+WHERE\s+site_id\s*=\s*\$1\s+ORDER\s+BY\s+created_at\s+DESC`).
		WithArgs("site-1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(r.ID, testDate, "site-1", "so-1", "Critical", false, "Open trench without barrier", "", "{}", testTime))
	list, err := s.ListSafetyReports(context.Background(), "site-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, *got, list[0])
}

func TestListSites(t *testing.T) {
	s, mock := newStoreWithMock(t)
	mock.ExpectQuery(`(?s)SELECT\s+id,\s*name,\s*location.*FROM\s+sites\s+ORDER\s+BY\s+created_at`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "location", "progress", "budget", "spent", "created_at"}).
			AddRow("site-1", "Skyline Towers", "Downtown Metro", 65, 5000000.0, 3200000.0, testTime))

	sites, err := s.ListSites(context.Background())
	require.NoError(t, err)
	require.Len(t, sites, 1)
	assert.Equal(t, "Skyline Towers", sites[0].Name)
	assert.Equal(t, 65, sites[0].Progress)
}

func TestBootstrap(t *testing.T) {
	s, mock := newStoreWithMock(t)
	site, err := models.NewSite("Skyline Towers", "Downtown Metro", 5000000)
	require.NoError(t, err)
	admin, err := models.NewUser("adm-1", "James Miller", "james.m@buildstream.com", "", site.ID, models.RoleSuperAdmin, models.StatusActive)
	require.NoError(t, err)
	cred := &models.Credential{ID: "adm-1", Email: admin.Email, PasswordHash: "hash", CreatedAt: testTime}

	mock.ExpectBegin()
	mock.ExpectExec(`pg_advisory_xact_lock`).WithArgs(bootstrapLockKey).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`NOT\s+EXISTS`).WillReturnRows(sqlmock.NewRows([]string{"empty"}).AddRow(true))
	mock.ExpectExec(`INSERT\s+INTO\s+sites`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT\s+INTO\s+credentials`).WithArgs("adm-1", admin.Email, "hash", testTime).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT\s+INTO\s+users`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`FROM\s+users\s+WHERE\s+id`).WithArgs("adm-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "phone", "role", "site_id", "status",
			"last_active", "avatar", "bio", "onboarded_at", "created_at", "updated_at"}).
			AddRow("adm-1", "James Miller", admin.Email, nil, "SUPER_ADMIN", site.ID, "ACTIVE", nil, nil, nil, nil, testTime, testTime))
	mock.ExpectCommit()

	gotSite, gotAdmin, err := s.Bootstrap(context.Background(), site, cred, admin)
	require.NoError(t, err)
	assert.Equal(t, site.ID, gotSite.ID)
	assert.Equal(t, models.RoleSuperAdmin, gotAdmin.Role)
	assert.Equal(t, models.StatusActive, gotAdmin.Status)
}

func TestBootstrap_AlreadyDone(t *testing.T) {
	s, mock := newStoreWithMock(t)
	site, _ := models.NewSite("Skyline Towers", "Downtown Metro", 0)
	admin, _ := models.NewUser("adm-1", "James Miller", "j@b.c", "", "", models.RoleSuperAdmin, models.StatusActive)

	mock.ExpectBegin()
	mock.ExpectExec(`pg_advisory_xact_lock`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`NOT\s+EXISTS`).WillReturnRows(sqlmock.NewRows([]string{"empty"}).AddRow(false))
	mock.ExpectRollback()

	_, _, err := s.Bootstrap(context.Background(), site, &models.Credential{ID: "adm-1"}, admin)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestMigrateUsesEmbeddedFS(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	orig := gooseUp
	t.Cleanup(func() { gooseUp = orig })

	var gotDir string
	gooseUp = func(ctx context.Context, _ *sql.DB, dir string) error {
		gotDir = dir
		return nil
	}
	require.NoError(t, Migrate(context.Background(), db))
	assert.Equal(t, ".", gotDir)

	gooseUp = func(context.Context, *sql.DB, string) error { return errors.New("boom") }
	assert.ErrorContains(t, Migrate(context.Background(), db), "migrations: boom")
}

func TestWithTxRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()
	err = WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		return errors.New("nope")
	})
	assert.EqualError(t, err, "nope")
	assert.NoError(t, mock.ExpectationsWereMet())
}
