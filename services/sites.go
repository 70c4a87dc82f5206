package services

import (
	"context"

	"github.com/Mike-mible/cjic/models"
)

type SiteService struct {
	base
}

func NewSiteService(d Deps) *SiteService {
	return &SiteService{base: newBase(d)}
}

// List returns every site, oldest first.
func (s *SiteService) List(ctx context.Context) ([]models.Site, error) {
	sctx, cancel := s.withTimeout(ctx)
	defer cancel()

	sites, err := s.store.ListSites(sctx)
	if err != nil {
		return nil, storeError(err)
	}
	return sites, nil
}
