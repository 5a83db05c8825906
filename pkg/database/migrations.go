package database

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/narwhalmedia/simulcast/pkg/interfaces"
	"github.com/narwhalmedia/simulcast/pkg/models"
)

// Migration represents an applied database migration
type Migration struct {
	ID        uint      `gorm:"primaryKey"`
	Version   string    `gorm:"uniqueIndex;not null"`
	Name      string    `gorm:"not null"`
	AppliedAt time.Time `gorm:"not null"`
}

// MigrationFunc is a function that performs a migration
type MigrationFunc func(*gorm.DB) error

// MigrationEntry represents a single migration
type MigrationEntry struct {
	Version string
	Name    string
	Up      MigrationFunc
}

// Migrator applies versioned migrations in order, each in its own transaction.
type Migrator struct {
	db         *gorm.DB
	logger     interfaces.Logger
	migrations []MigrationEntry
}

// NewMigrator creates a new migrator instance
func NewMigrator(db *gorm.DB, logger interfaces.Logger) *Migrator {
	return &Migrator{
		db:         db,
		logger:     logger,
		migrations: getAllMigrations(),
	}
}

// Migrate runs all pending migrations
func (m *Migrator) Migrate() error {
	if err := m.db.AutoMigrate(&Migration{}); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	pending, err := m.GetPendingMigrations()
	if err != nil {
		return err
	}

	for _, migration := range pending {
		m.logger.Info("Running migration",
			interfaces.String("version", migration.Version),
			interfaces.String("name", migration.Name))

		err := m.db.Transaction(func(tx *gorm.DB) error {
			if err := migration.Up(tx); err != nil {
				return err
			}
			return tx.Create(&Migration{
				Version:   migration.Version,
				Name:      migration.Name,
				AppliedAt: time.Now().UTC(),
			}).Error
		})
		if err != nil {
			return fmt.Errorf("failed to run migration %s: %w", migration.Version, err)
		}
	}

	return nil
}

// GetPendingMigrations returns the migrations not recorded as applied.
func (m *Migrator) GetPendingMigrations() ([]MigrationEntry, error) {
	if !m.db.Migrator().HasTable(&Migration{}) {
		return m.migrations, nil
	}

	var appliedMigrations []Migration
	if err := m.db.Find(&appliedMigrations).Error; err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	applied := make(map[string]bool, len(appliedMigrations))
	for _, migration := range appliedMigrations {
		applied[migration.Version] = true
	}

	var pending []MigrationEntry
	for _, migration := range m.migrations {
		if !applied[migration.Version] {
			pending = append(pending, migration)
		}
	}
	return pending, nil
}

// RunMigrations runs all pending database migrations
func RunMigrations(db *gorm.DB, logger interfaces.Logger) error {
	return NewMigrator(db, logger).Migrate()
}

func getAllMigrations() []MigrationEntry {
	return []MigrationEntry{
		{
			Version: "20250101_001",
			Name:    "Create catalog schema",
			Up:      migration001CreateCatalogSchema,
		},
		{
			Version: "20250101_002",
			Name:    "Add read path indexes",
			Up:      migration002AddReadIndexes,
		},
	}
}

func migration001CreateCatalogSchema(tx *gorm.DB) error {
	if err := tx.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to migrate catalog models: %w", err)
	}
	return nil
}

func migration002AddReadIndexes(tx *gorm.DB) error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_mappings_anime_sequence ON episode_mappings(anime_id, season, episode_type, number)",
		"CREATE INDEX IF NOT EXISTS idx_mappings_pending_release ON episode_mappings(needs_classification, release_date_time)",
		"CREATE INDEX IF NOT EXISTS idx_variants_mapping_release ON episode_variants(mapping_id, release_date_time)",
		"CREATE INDEX IF NOT EXISTS idx_rules_lookup ON rules(platform, series_id, season_id)",
	}
	for _, index := range indexes {
		if err := tx.Exec(index).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}
