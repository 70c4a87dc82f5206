package models

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Site struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Location  string    `json:"location"`
	Progress  int       `json:"progress"`
	Budget    float64   `json:"budget"`
	Spent     float64   `json:"spent"`
	CreatedAt time.Time `json:"createdAt"`
}

type SiteCreate struct {
	Name     string  `json:"name"`
	Location string  `json:"location"`
	Budget   float64 `json:"budget"`
}

func (s *Site) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.New("site name is required")
	}
	if s.Progress < 0 || s.Progress > 100 {
		return errors.New("site progress must be between 0 and 100")
	}
	if s.Budget < 0 || s.Spent < 0 {
		return errors.New("site budget and spent must be non-negative")
	}
	return nil
}

// Active reports whether work on the site is still in progress.
func (s *Site) Active() bool {
	return s.Progress < 100
}

func NewSite(name, location string, budget float64) (*Site, error) {
	site := &Site{
		ID:        uuid.New().String(),
		Name:      strings.TrimSpace(name),
		Location:  strings.TrimSpace(location),
		Budget:    budget,
		CreatedAt: time.Now().UTC(),
	}
	if err := site.Validate(); err != nil {
		return nil, err
	}
	return site, nil
}
