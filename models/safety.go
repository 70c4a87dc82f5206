package models

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type HazardLevel string

const (
	HazardLow      HazardLevel = "Low"
	HazardMedium   HazardLevel = "Medium"
	HazardHigh     HazardLevel = "High"
	HazardCritical HazardLevel = "Critical"
)

var hazardRank = map[HazardLevel]int{
	HazardLow:      1,
	HazardMedium:   2,
	HazardHigh:     3,
	HazardCritical: 4,
}

// Rank returns the ordinal of the level, or 0 for an unknown level.
func (h HazardLevel) Rank() int {
	return hazardRank[h]
}

func (h HazardLevel) Valid() bool {
	return h.Rank() > 0
}

// Escalates reports whether management should be told about the report
// out of band.
func (h HazardLevel) Escalates() bool {
	return h.Rank() >= HazardHigh.Rank()
}

// SafetyReport is append-only: once stored it has no status to change.
type SafetyReport struct {
	ID             string      `json:"id"`
	Date           string      `json:"date"`
	SiteID         string      `json:"siteId"`
	AuthorID       string      `json:"authorId"`
	HazardLevel    HazardLevel `json:"hazardLevel"`
	PPECompliance  bool        `json:"ppeCompliance"`
	Observations   string      `json:"observations"`
	ActionRequired string      `json:"actionRequired"`
	Photos         []string    `json:"photos"`
	Timestamp      time.Time   `json:"timestamp"`
}

type SafetyReportCreate struct {
	Date           string      `json:"date"`
	SiteID         string      `json:"siteId"`
	HazardLevel    HazardLevel `json:"hazardLevel"`
	PPECompliance  bool        `json:"ppeCompliance"`
	Observations   string      `json:"observations"`
	ActionRequired string      `json:"actionRequired"`
	Photos         []string    `json:"photos"`
}

func NewSafetyReport(in SafetyReportCreate, authorID string, now time.Time) (*SafetyReport, error) {
	if !in.HazardLevel.Valid() {
		return nil, errors.New("hazard level must be Low, Medium, High or Critical")
	}
	if in.Date == "" {
		in.Date = now.UTC().Format(DateLayout)
	}
	if _, err := time.Parse(DateLayout, in.Date); err != nil {
		return nil, errors.New("date must be formatted YYYY-MM-DD")
	}

	report := &SafetyReport{
		ID:             uuid.New().String(),
		Date:           in.Date,
		SiteID:         strings.TrimSpace(in.SiteID),
		AuthorID:       authorID,
		HazardLevel:    in.HazardLevel,
		PPECompliance:  in.PPECompliance,
		Observations:   in.Observations,
		ActionRequired: in.ActionRequired,
		Photos:         in.Photos,
		Timestamp:      now.UTC(),
	}
	if report.Photos == nil {
		report.Photos = []string{}
	}
	return report, nil
}
