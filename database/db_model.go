package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Mike-mible/cjic/models"
	"github.com/lib/pq"
)

// Rows mirror the snake_case columns. Conversion to and from the domain
// models happens only in this file.

type userRow struct {
	ID          string         `db:"id"`
	Name        string         `db:"name"`
	Email       string         `db:"email"`
	Phone       sql.NullString `db:"phone"`
	Role        string         `db:"role"`
	SiteID      sql.NullString `db:"site_id"`
	Status      string         `db:"status"`
	LastActive  sql.NullTime   `db:"last_active"`
	Avatar      sql.NullString `db:"avatar"`
	Bio         sql.NullString `db:"bio"`
	OnboardedAt sql.NullTime   `db:"onboarded_at"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

const userColumns = `id, name, email, phone, role, site_id, status, last_active, avatar, bio, onboarded_at, created_at, updated_at`

func (r *userRow) dest() []any {
	return []any{&r.ID, &r.Name, &r.Email, &r.Phone, &r.Role, &r.SiteID, &r.Status,
		&r.LastActive, &r.Avatar, &r.Bio, &r.OnboardedAt, &r.CreatedAt, &r.UpdatedAt}
}

func (r *userRow) toModel() *models.User {
	return &models.User{
		ID:          r.ID,
		Name:        r.Name,
		Email:       r.Email,
		Phone:       nullString(r.Phone),
		Role:        models.Role(r.Role),
		SiteID:      nullString(r.SiteID),
		Status:      models.UserStatus(r.Status),
		LastActive:  nullTime(r.LastActive),
		Avatar:      nullString(r.Avatar),
		Bio:         nullString(r.Bio),
		OnboardedAt: nullTime(r.OnboardedAt),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

type siteRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Location  string    `db:"location"`
	Progress  int       `db:"progress"`
	Budget    float64   `db:"budget"`
	Spent     float64   `db:"spent"`
	CreatedAt time.Time `db:"created_at"`
}

const siteColumns = `id, name, location, progress, budget, spent, created_at`

func (r *siteRow) dest() []any {
	return []any{&r.ID, &r.Name, &r.Location, &r.Progress, &r.Budget, &r.Spent, &r.CreatedAt}
}

func (r *siteRow) toModel() *models.Site {
	return &models.Site{
		ID:        r.ID,
		Name:      r.Name,
		Location:  r.Location,
		Progress:  r.Progress,
		Budget:    r.Budget,
		Spent:     r.Spent,
		CreatedAt: r.CreatedAt,
	}
}

type siteLogRow struct {
	ID               string         `db:"id"`
	Date             time.Time      `db:"date"`
	Shift            string         `db:"shift"`
	SiteID           string         `db:"site_id"`
	BlockName        string         `db:"block_name"`
	ForemanName      string         `db:"foreman_name"`
	AuthorID         string         `db:"author_id"`
	Status           string         `db:"status"`
	WorkersCount     int            `db:"workers_count"`
	WorkCompleted    string         `db:"work_completed"`
	MaterialUsage    []byte         `db:"material_usage"`
	EquipmentUsage   []byte         `db:"equipment_usage"`
	Incidents        string         `db:"incidents"`
	Photos           pq.StringArray `db:"photos"`
	EngineerFeedback string         `db:"engineer_feedback"`
	ReviewedBy       sql.NullString `db:"reviewed_by"`
	ReviewedAt       sql.NullTime   `db:"reviewed_at"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
}

const siteLogColumns = `id, date, shift, site_id, block_name, foreman_name, author_id, status, workers_count, ` +
	`work_completed, material_usage, equipment_usage, incidents, photos, engineer_feedback, ` +
	`reviewed_by, reviewed_at, created_at, updated_at`

func (r *siteLogRow) dest() []any {
	return []any{&r.ID, &r.Date, &r.Shift, &r.SiteID, &r.BlockName, &r.ForemanName, &r.AuthorID,
		&r.Status, &r.WorkersCount, &r.WorkCompleted, &r.MaterialUsage, &r.EquipmentUsage,
		&r.Incidents, &r.Photos, &r.EngineerFeedback, &r.ReviewedBy, &r.ReviewedAt,
		&r.CreatedAt, &r.UpdatedAt}
}

func (r *siteLogRow) toModel() (*models.SiteLog, error) {
	l := &models.SiteLog{
		ID:               r.ID,
		Date:             r.Date.Format(models.DateLayout),
		Shift:            models.Shift(r.Shift),
		SiteID:           r.SiteID,
		BlockName:        r.BlockName,
		ForemanName:      r.ForemanName,
		AuthorID:         r.AuthorID,
		Status:           models.LogStatus(r.Status),
		WorkersCount:     r.WorkersCount,
		WorkCompleted:    r.WorkCompleted,
		MaterialUsage:    []models.MaterialUsage{},
		EquipmentUsage:   []models.EquipmentUsage{},
		Incidents:        r.Incidents,
		Photos:           []string(r.Photos),
		EngineerFeedback: r.EngineerFeedback,
		ReviewedBy:       nullString(r.ReviewedBy),
		ReviewedAt:       nullTime(r.ReviewedAt),
		Timestamp:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	if l.Photos == nil {
		l.Photos = []string{}
	}
	if len(r.MaterialUsage) > 0 {
		if err := json.Unmarshal(r.MaterialUsage, &l.MaterialUsage); err != nil {
			return nil, fmt.Errorf("decode material_usage: %w", err)
		}
	}
	if len(r.EquipmentUsage) > 0 {
		if err := json.Unmarshal(r.EquipmentUsage, &l.EquipmentUsage); err != nil {
			return nil, fmt.Errorf("decode equipment_usage: %w", err)
		}
	}
	return l, nil
}

// siteLogArgs returns the insert arguments in siteLogColumns order, minus
// the review columns.
func siteLogArgs(l *models.SiteLog) ([]any, error) {
	materials, err := json.Marshal(nonNil(l.MaterialUsage))
	if err != nil {
		return nil, fmt.Errorf("encode material_usage: %w", err)
	}
	equipment, err := json.Marshal(nonNil(l.EquipmentUsage))
	if err != nil {
		return nil, fmt.Errorf("encode equipment_usage: %w", err)
	}
	return []any{l.ID, l.Date, string(l.Shift), l.SiteID, l.BlockName, l.ForemanName, l.AuthorID,
		string(l.Status), l.WorkersCount, l.WorkCompleted, string(materials), string(equipment), l.Incidents,
		pq.Array(nonNil(l.Photos)), l.EngineerFeedback, l.Timestamp, l.UpdatedAt}, nil
}

type safetyReportRow struct {
	ID             string         `db:"id"`
	Date           time.Time      `db:"date"`
	SiteID         string         `db:"site_id"`
	AuthorID       string         `db:"author_id"`
	HazardLevel    string         `db:"hazard_level"`
	PPECompliance  bool           `db:"ppe_compliance"`
	Observations   string         `db:"observations"`
	ActionRequired string         `db:"action_required"`
	Photos         pq.StringArray `db:"photos"`
	CreatedAt      time.Time      `db:"created_at"`
}

const safetyReportColumns = `id, date, site_id, author_id, hazard_level, ppe_compliance, observations, action_required, photos, created_at`

func (r *safetyReportRow) dest() []any {
	return []any{&r.ID, &r.Date, &r.SiteID, &r.AuthorID, &r.HazardLevel, &r.PPECompliance,
		&r.Observations, &r.ActionRequired, &r.Photos, &r.CreatedAt}
}

func (r *safetyReportRow) toModel() *models.SafetyReport {
	photos := []string(r.Photos)
	if photos == nil {
		photos = []string{}
	}
	return &models.SafetyReport{
		ID:             r.ID,
		Date:           r.Date.Format(models.DateLayout),
		SiteID:         r.SiteID,
		AuthorID:       r.AuthorID,
		HazardLevel:    models.HazardLevel(r.HazardLevel),
		PPECompliance:  r.PPECompliance,
		Observations:   r.Observations,
		ActionRequired: r.ActionRequired,
		Photos:         photos,
		Timestamp:      r.CreatedAt,
	}
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func toNullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
