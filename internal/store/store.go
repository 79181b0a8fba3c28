// Package store persists compositions as rows carrying the Module JSON
// document (spec §6), the only package allowed to import both gorm and
// internal/expr/module — everything else reaches the expression core
// through Store, never through gorm directly.
package store

import (
	"fmt"
	"time"

	"github.com/3merillon/rmt-compose-poc-sub004/internal/expr/module"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// CompositionRecord is the gorm row backing one composition. Document
// holds module.ToJSON()'s output; computed values are never persisted,
// matching the core's own "recompile and re-evaluate on load" contract.
type CompositionRecord struct {
	ID        string `gorm:"primarykey"`
	OwnerID   string `gorm:"index"`
	Document  string `gorm:"type:jsonb;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (CompositionRecord) TableName() string { return "compositions" }

// Store wraps a *gorm.DB scoped to compositions.
type Store struct {
	db *gorm.DB
}

// Open connects to dsn and migrates the compositions table.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("store: connecting to database: %w", err)
	}
	if err := db.AutoMigrate(&CompositionRecord{}); err != nil {
		return nil, fmt.Errorf("store: migrating schema: %w", err)
	}
	return &Store{db: db}, nil
}

// New wraps an already-open *gorm.DB, for callers (and tests) that manage
// the connection themselves.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Create inserts a new composition record from m, owned by ownerID.
func (s *Store) Create(id, ownerID string, m *module.Module) error {
	doc, err := m.ToJSON()
	if err != nil {
		return fmt.Errorf("store: serializing composition %s: %w", id, err)
	}
	rec := CompositionRecord{ID: id, OwnerID: ownerID, Document: string(doc)}
	if err := s.db.Create(&rec).Error; err != nil {
		return fmt.Errorf("store: creating composition %s: %w", id, err)
	}
	return nil
}

// Load fetches id's document and rebuilds a live Module from it.
func (s *Store) Load(id string) (*module.Module, error) {
	var rec CompositionRecord
	if err := s.db.First(&rec, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("store: loading composition %s: %w", id, err)
	}
	m, err := module.FromJSON([]byte(rec.Document))
	if err != nil {
		return nil, fmt.Errorf("store: decoding composition %s: %w", id, err)
	}
	return m, nil
}

// Save re-serializes m and overwrites id's existing document. It inserts
// nothing: when no record has that id, no row changes and no error is
// returned.
func (s *Store) Save(id string, m *module.Module) error {
	doc, err := m.ToJSON()
	if err != nil {
		return fmt.Errorf("store: serializing composition %s: %w", id, err)
	}
	err = s.db.Model(&CompositionRecord{}).
		Where("id = ?", id).
		Update("document", string(doc)).Error
	if err != nil {
		return fmt.Errorf("store: saving composition %s: %w", id, err)
	}
	return nil
}

// Exists reports whether id has a composition record.
func (s *Store) Exists(id string) (bool, error) {
	var count int64
	if err := s.db.Model(&CompositionRecord{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("store: checking composition %s: %w", id, err)
	}
	return count > 0, nil
}

// Delete hard-deletes id's composition record.
func (s *Store) Delete(id string) error {
	if err := s.db.Delete(&CompositionRecord{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("store: deleting composition %s: %w", id, err)
	}
	return nil
}
