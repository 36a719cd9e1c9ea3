// Package customerstore is a minimal, concrete implementation of the
// external CustomerStore contract (spec §6): create a customer record
// from a CustomerProfile + ContactRecord, and look up a customer by id.
// Grounded on the teacher's gorm repository style
// (application/repository/custom_agent.go), narrowed to a tenant-free
// schema since this spec carries no tenant concept.
package customerstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/corlin/hicrm-core/internal/types"
)

// ErrNotFound is returned when a customer id is unknown.
var ErrNotFound = errors.New("customer not found")

// Store is the external CustomerStore contract consumed by the
// discovery workflow's initialContact stage and the database-query
// tool's underlying schema.
type Store interface {
	CreateFromDiscovery(ctx context.Context, profile types.CustomerProfile, record types.ContactRecord) (string, error)
	GetByID(ctx context.Context, id string) (*Customer, error)
}

// Customer is the persisted row backing a CustomerProfile.
type Customer struct {
	ID             string `gorm:"primaryKey"`
	Name           string
	Industry       string
	Size           string
	Score          float64
	Budget         string
	Status         string
	Notes          string
	LastContactAt  *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (Customer) TableName() string { return "customers" }

type gormStore struct {
	db *gorm.DB
}

// New builds a Store backed by db. Callers own migration of the
// `customers` table (AutoMigrate or an external migration tool); this
// package only issues CRUD statements against it.
func New(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// CreateFromDiscovery persists profile as a customer row, recording
// record as its initial contact outcome (spec §4.12 initialContact
// stage: "on success, create a persistent customer record").
func (s *gormStore) CreateFromDiscovery(ctx context.Context, profile types.CustomerProfile, record types.ContactRecord) (string, error) {
	id := profile.ID
	if id == "" {
		id = record.CustomerID
	}

	status := "prospect"
	if record.Success {
		status = "contacted"
	}

	row := Customer{
		ID:       id,
		Name:     profile.Name,
		Industry: profile.Industry,
		Size:     profile.Size,
		Score:    profile.Score,
		Budget:   profile.Budget,
		Status:   status,
		Notes:    record.Outcome,
	}
	if record.Success {
		now := record.CreatedAt
		if now.IsZero() {
			now = time.Now()
		}
		row.LastContactAt = &now
	}

	if err := s.db.WithContext(ctx).
		Where("id = ?", id).
		Assign(row).
		FirstOrCreate(&Customer{}).Error; err != nil {
		return "", types.NewError(types.KindBackend, "create customer record failed", err)
	}
	return id, nil
}

// GetByID looks up a customer by id, used by agent tools needing a
// business-data lookup (spec §6).
func (s *gormStore) GetByID(ctx context.Context, id string) (*Customer, error) {
	var row Customer
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, types.NewError(types.KindBackend, "customer lookup failed", err)
	}
	return &row, nil
}
