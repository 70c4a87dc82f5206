package models

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type LogStatus string
type Shift string

const (
	LogDraft     LogStatus = "DRAFT"
	LogSubmitted LogStatus = "SUBMITTED"
	LogApproved  LogStatus = "APPROVED"
	LogRejected  LogStatus = "REJECTED"
	LogFinalized LogStatus = "FINALIZED"
)

const (
	ShiftDay   Shift = "Day"
	ShiftNight Shift = "Night"
)

// DateLayout is the calendar-day format used for log and report dates.
const DateLayout = "2006-01-02"

func (s LogStatus) Valid() bool {
	switch s {
	case LogDraft, LogSubmitted, LogApproved, LogRejected, LogFinalized:
		return true
	}
	return false
}

// Terminal reports whether a review decision has already been recorded.
func (s LogStatus) Terminal() bool {
	return s == LogApproved || s == LogRejected || s == LogFinalized
}

func (s Shift) Valid() bool {
	return s == ShiftDay || s == ShiftNight
}

var logTransitions = map[LogStatus][]LogStatus{
	LogDraft:     {LogSubmitted},
	LogSubmitted: {LogApproved, LogRejected},
	LogRejected:  {LogDraft},
}

func LogTransitionAllowed(from, to LogStatus) bool {
	for _, next := range logTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type MaterialUsage struct {
	Item     string `json:"item"`
	Quantity string `json:"quantity"`
	Unit     string `json:"unit"`
}

type EquipmentUsage struct {
	Item  string  `json:"item"`
	Hours float64 `json:"hours"`
}

type SiteLog struct {
	ID               string           `json:"id"`
	Date             string           `json:"date"`
	Shift            Shift            `json:"shift"`
	SiteID           string           `json:"siteId"`
	BlockName        string           `json:"blockName"`
	ForemanName      string           `json:"foremanName"`
	AuthorID         string           `json:"authorId"`
	Status           LogStatus        `json:"status"`
	WorkersCount     int              `json:"workersCount"`
	WorkCompleted    string           `json:"workCompleted"`
	MaterialUsage    []MaterialUsage  `json:"materialUsage"`
	EquipmentUsage   []EquipmentUsage `json:"equipmentUsage"`
	Incidents        string           `json:"incidents"`
	Photos           []string         `json:"photos"`
	EngineerFeedback string           `json:"engineerFeedback"`
	ReviewedBy       *string          `json:"reviewedBy,omitempty"`
	ReviewedAt       *time.Time       `json:"reviewedAt,omitempty"`
	Timestamp        time.Time        `json:"timestamp"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

// HasIncident reports whether the shift recorded any incident text.
func (l *SiteLog) HasIncident() bool {
	return strings.TrimSpace(l.Incidents) != ""
}

type SiteLogCreate struct {
	Date           string           `json:"date"`
	Shift          Shift            `json:"shift"`
	SiteID         string           `json:"siteId"`
	BlockName      string           `json:"blockName"`
	ForemanName    string           `json:"foremanName"`
	WorkersCount   int              `json:"workersCount"`
	WorkCompleted  string           `json:"workCompleted"`
	MaterialUsage  []MaterialUsage  `json:"materialUsage"`
	EquipmentUsage []EquipmentUsage `json:"equipmentUsage"`
	Incidents      string           `json:"incidents"`
	Photos         []string         `json:"photos"`
	Status         LogStatus        `json:"status"`
}

type SiteLogReview struct {
	Decision LogStatus `json:"decision"`
	Feedback string    `json:"feedback"`
}

type SiteLogFilter struct {
	SiteID string
	Status LogStatus
}

// NewSiteLog fills defaults and validates a log before it is stored. Site
// presence is checked by the caller since it has its own error kind.
func NewSiteLog(in SiteLogCreate, authorID string, now time.Time) (*SiteLog, error) {
	if in.Status == "" {
		in.Status = LogDraft
	}
	if in.Status != LogDraft && in.Status != LogSubmitted {
		return nil, errors.New("initial status must be DRAFT or SUBMITTED")
	}
	if in.Shift == "" {
		in.Shift = ShiftDay
	}
	if !in.Shift.Valid() {
		return nil, errors.New("shift must be Day or Night")
	}
	if in.WorkersCount < 0 {
		return nil, errors.New("workers count must be non-negative")
	}
	if in.Date == "" {
		in.Date = now.UTC().Format(DateLayout)
	}
	if _, err := time.Parse(DateLayout, in.Date); err != nil {
		return nil, errors.New("date must be formatted YYYY-MM-DD")
	}
	for _, e := range in.EquipmentUsage {
		if e.Hours < 0 {
			return nil, errors.New("equipment hours must be non-negative")
		}
	}

	log := &SiteLog{
		ID:             uuid.New().String(),
		Date:           in.Date,
		Shift:          in.Shift,
		SiteID:         strings.TrimSpace(in.SiteID),
		BlockName:      strings.TrimSpace(in.BlockName),
		ForemanName:    strings.TrimSpace(in.ForemanName),
		AuthorID:       authorID,
		Status:         in.Status,
		WorkersCount:   in.WorkersCount,
		WorkCompleted:  in.WorkCompleted,
		MaterialUsage:  in.MaterialUsage,
		EquipmentUsage: in.EquipmentUsage,
		Incidents:      in.Incidents,
		Photos:         in.Photos,
		Timestamp:      now.UTC(),
		UpdatedAt:      now.UTC(),
	}
	if log.MaterialUsage == nil {
		log.MaterialUsage = []MaterialUsage{}
	}
	if log.EquipmentUsage == nil {
		log.EquipmentUsage = []EquipmentUsage{}
	}
	if log.Photos == nil {
		log.Photos = []string{}
	}
	return log, nil
}
