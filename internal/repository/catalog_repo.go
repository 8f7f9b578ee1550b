package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/planflow/planflow/internal/domain/catalog"
)

// CatalogStore reads the service catalog and answers clinical-rule
// prerequisite questions from it.
type CatalogStore struct {
	db *gorm.DB
}

func NewCatalogStore(db *gorm.DB) *CatalogStore {
	return &CatalogStore{db: db}
}

func (s *CatalogStore) GetByID(ctx context.Context, id uuid.UUID) (*catalog.Service, error) {
	var svc catalog.Service
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&svc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, catalog.ErrServiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading service %s: %w", id, err)
	}
	return &svc, nil
}

func (s *CatalogStore) GetByCode(ctx context.Context, serviceCode string) (*catalog.Service, error) {
	var svc catalog.Service
	err := s.db.WithContext(ctx).Where("service_code = ?", serviceCode).First(&svc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, catalog.ErrServiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading service %s: %w", serviceCode, err)
	}
	return &svc, nil
}

func (s *CatalogStore) HasPrerequisites(ctx context.Context, serviceID uuid.UUID) (bool, error) {
	svc, err := s.GetByID(ctx, serviceID)
	if err != nil {
		return false, err
	}
	return svc.RequiresPrerequisite, nil
}
