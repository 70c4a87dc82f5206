// Package memory is an in-process implementation of the store used for
// local runs without Postgres and for service tests. It honours the same
// conditional-update rules as the SQL store.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/Mike-mible/cjic/database"
	"github.com/Mike-mible/cjic/models"
)

type Store struct {
	mu          sync.Mutex
	seq         int64
	credentials map[string]models.Credential
	users       map[string]models.User
	sites       map[string]models.Site
	logs        map[string]entry[models.SiteLog]
	reports     []models.SafetyReport

	// FailNext, when set, is returned by the next mutating call.
	FailNext error
}

type entry[T any] struct {
	seq int64
	v   T
}

func New() *Store {
	return &Store{
		credentials: make(map[string]models.Credential),
		users:       make(map[string]models.User),
		sites:       make(map[string]models.Site),
		logs:        make(map[string]entry[models.SiteLog]),
	}
}

func (s *Store) fail() error {
	err := s.FailNext
	s.FailNext = nil
	return err
}

// AddSite inserts a site directly. It is used for seeding.
func (s *Store) AddSite(site models.Site) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sites[site.ID] = site
}

func (s *Store) CreateCredential(ctx context.Context, c *models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return err
	}
	return s.insertCredential(*c)
}

func (s *Store) insertCredential(c models.Credential) error {
	if _, ok := s.credentials[c.ID]; ok {
		return database.ErrDuplicate
	}
	for _, existing := range s.credentials {
		if existing.Email == c.Email {
			return database.ErrDuplicate
		}
	}
	s.credentials[c.ID] = c
	return nil
}

func (s *Store) GetCredentialByEmail(ctx context.Context, email string) (*models.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = models.NormalizeEmail(email)
	for _, c := range s.credentials {
		if c.Email == email {
			c := c
			return &c, nil
		}
	}
	return nil, database.ErrNotFound
}

func (s *Store) DeleteCredential(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.credentials, id)
	delete(s.users, id)
	return nil
}

func (s *Store) UpdatePassword(ctx context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.credentials[id]
	if !ok {
		return database.ErrNotFound
	}
	c.PasswordHash = hash
	s.credentials[id] = c
	return nil
}

func (s *Store) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return nil, err
	}
	return s.insertUser(*u)
}

func (s *Store) insertUser(u models.User) (*models.User, error) {
	if existing, ok := s.users[u.ID]; ok {
		return &existing, nil
	}
	if _, ok := s.credentials[u.ID]; !ok {
		return nil, database.ErrMissingReference
	}
	if u.SiteID != nil {
		if _, ok := s.sites[*u.SiteID]; !ok {
			return nil, database.ErrMissingReference
		}
	}
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return nil, database.ErrDuplicate
		}
	}
	s.users[u.ID] = u
	return &u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		if !users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].CreatedAt.Before(users[j].CreatedAt)
		}
		return users[i].ID < users[j].ID
	})
	return users, nil
}

func (s *Store) UpdateUserStatus(ctx context.Context, id string, from, to models.UserStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return err
	}
	u, ok := s.users[id]
	if !ok {
		return database.ErrNotFound
	}
	if u.Status != from {
		return database.ErrConflict
	}
	u.Status = to
	u.UpdatedAt = time.Now().UTC()
	s.users[id] = u
	return nil
}

func (s *Store) CompleteOnboarding(ctx context.Context, id string, f database.OnboardingFields, promote bool) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return nil, err
	}
	u, ok := s.users[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	if f.SiteID != "" {
		if _, ok := s.sites[f.SiteID]; !ok {
			return nil, database.ErrMissingReference
		}
		u.SiteID = strPtr(f.SiteID)
	}
	if f.Phone != "" {
		u.Phone = strPtr(f.Phone)
	}
	if f.Avatar != "" {
		u.Avatar = strPtr(f.Avatar)
	}
	if f.Bio != "" {
		u.Bio = strPtr(f.Bio)
	}
	now := time.Now().UTC()
	if u.OnboardedAt == nil {
		u.OnboardedAt = &now
	}
	if promote && u.Status == models.StatusPending {
		u.Status = models.StatusActive
	}
	u.UpdatedAt = now
	s.users[id] = u
	return &u, nil
}

func (s *Store) TouchLastActive(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.LastActive = &at
		s.users[id] = u
	}
	return nil
}

func (s *Store) ListSites(ctx context.Context) ([]models.Site, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sites := make([]models.Site, 0, len(s.sites))
	for _, site := range s.sites {
		sites = append(sites, site)
	}
	sort.Slice(sites, func(i, j int) bool { return sites[i].CreatedAt.Before(sites[j].CreatedAt) })
	return sites, nil
}

func (s *Store) GetSite(ctx context.Context, id string) (*models.Site, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	site, ok := s.sites[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &site, nil
}

func (s *Store) CreateSiteLog(ctx context.Context, l *models.SiteLog) (*models.SiteLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return nil, err
	}
	if _, ok := s.sites[l.SiteID]; !ok {
		return nil, database.ErrMissingReference
	}
	if _, ok := s.logs[l.ID]; ok {
		return nil, database.ErrDuplicate
	}
	s.seq++
	s.logs[l.ID] = entry[models.SiteLog]{seq: s.seq, v: cloneLog(*l)}
	out := cloneLog(*l)
	return &out, nil
}

func (s *Store) GetSiteLog(ctx context.Context, id string) (*models.SiteLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.logs[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	out := cloneLog(e.v)
	return &out, nil
}

func (s *Store) ListSiteLogs(ctx context.Context, f models.SiteLogFilter) ([]models.SiteLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := make([]entry[models.SiteLog], 0, len(s.logs))
	for _, e := range s.logs {
		if f.SiteID != "" && e.v.SiteID != f.SiteID {
			continue
		}
		if f.Status != "" && e.v.Status != f.Status {
			continue
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.v.Timestamp.Equal(b.v.Timestamp) {
			return a.v.Timestamp.After(b.v.Timestamp)
		}
		return a.seq > b.seq
	})
	logs := make([]models.SiteLog, len(entries))
	for i, e := range entries {
		logs[i] = cloneLog(e.v)
	}
	return logs, nil
}

func (s *Store) ReviewSiteLog(ctx context.Context, id string, decision models.LogStatus, feedback, reviewerID string) (*models.SiteLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return nil, err
	}
	e, ok := s.logs[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	if e.v.Status != models.LogSubmitted {
		return nil, database.ErrConflict
	}
	now := time.Now().UTC()
	e.v.Status = decision
	e.v.EngineerFeedback = feedback
	e.v.ReviewedBy = strPtr(reviewerID)
	e.v.ReviewedAt = &now
	e.v.UpdatedAt = now
	s.logs[id] = e
	out := cloneLog(e.v)
	return &out, nil
}

func (s *Store) TransitionSiteLog(ctx context.Context, id string, from, to models.LogStatus, authorID string) (*models.SiteLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return nil, err
	}
	e, ok := s.logs[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	if e.v.Status != from || e.v.AuthorID != authorID {
		return nil, database.ErrConflict
	}
	e.v.Status = to
	e.v.UpdatedAt = time.Now().UTC()
	s.logs[id] = e
	out := cloneLog(e.v)
	return &out, nil
}

func (s *Store) UpdateSiteLogDraft(ctx context.Context, l *models.SiteLog) (*models.SiteLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return nil, err
	}
	e, ok := s.logs[l.ID]
	if !ok {
		return nil, database.ErrNotFound
	}
	if e.v.Status != models.LogDraft || e.v.AuthorID != l.AuthorID {
		return nil, database.ErrConflict
	}
	if _, ok := s.sites[l.SiteID]; !ok {
		return nil, database.ErrMissingReference
	}
	updated := cloneLog(*l)
	updated.Status = e.v.Status
	updated.EngineerFeedback = e.v.EngineerFeedback
	updated.Timestamp = e.v.Timestamp
	updated.UpdatedAt = time.Now().UTC()
	e.v = updated
	s.logs[l.ID] = e
	out := cloneLog(updated)
	return &out, nil
}

func (s *Store) CreateSafetyReport(ctx context.Context, r *models.SafetyReport) (*models.SafetyReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return nil, err
	}
	if _, ok := s.sites[r.SiteID]; !ok {
		return nil, database.ErrMissingReference
	}
	s.reports = append(s.reports, cloneReport(*r))
	out := cloneReport(*r)
	return &out, nil
}

func (s *Store) ListSafetyReports(ctx context.Context, siteID string) ([]models.SafetyReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reports := []models.SafetyReport{}
	// reports is in insertion order; walk it backwards for newest first
	for i := len(s.reports) - 1; i >= 0; i-- {
		if siteID == "" || s.reports[i].SiteID == siteID {
			reports = append(reports, cloneReport(s.reports[i]))
		}
	}
	sort.SliceStable(reports, func(i, j int) bool { return reports[i].Timestamp.After(reports[j].Timestamp) })
	return reports, nil
}

func (s *Store) NeedsBootstrap(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users) == 0 && len(s.sites) == 0, nil
}

func (s *Store) Bootstrap(ctx context.Context, site *models.Site, cred *models.Credential, admin *models.User) (*models.Site, *models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.users) > 0 || len(s.sites) > 0 {
		return nil, nil, database.ErrConflict
	}
	s.sites[site.ID] = *site
	if err := s.insertCredential(*cred); err != nil {
		delete(s.sites, site.ID)
		return nil, nil, err
	}
	u, err := s.insertUser(*admin)
	if err != nil {
		delete(s.sites, site.ID)
		delete(s.credentials, cred.ID)
		return nil, nil, err
	}
	return site, u, nil
}

func strPtr(s string) *string {
	return &s
}

// cloneLog copies l so callers never share slices or pointers with the
// stored value.
func cloneLog(l models.SiteLog) models.SiteLog {
	l.MaterialUsage = slices.Clone(l.MaterialUsage)
	l.EquipmentUsage = slices.Clone(l.EquipmentUsage)
	l.Photos = slices.Clone(l.Photos)
	if l.ReviewedBy != nil {
		l.ReviewedBy = strPtr(*l.ReviewedBy)
	}
	if l.ReviewedAt != nil {
		at := *l.ReviewedAt
		l.ReviewedAt = &at
	}
	return l
}

func cloneReport(r models.SafetyReport) models.SafetyReport {
	r.Photos = slices.Clone(r.Photos)
	return r
}
