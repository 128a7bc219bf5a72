package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/threadchat-backend/internal/domain/chat"
)

// Migration is one versioned schema step. Up runs inside a transaction and
// must be safe to re-run against a partially migrated schema.
type Migration struct {
	Version int
	Name    string
	Up      func(tx *gorm.DB) error
}

type schemaMigration struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"type:text;not null"`
	AppliedAt time.Time `gorm:"not null"`
}

func (schemaMigration) TableName() string { return "schema_migrations" }

func Migrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_threads_and_messages",
			Up: func(tx *gorm.DB) error {
				if tx.Dialector.Name() == DriverPostgres {
					if err := tx.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
						return fmt.Errorf("enable uuid-ossp: %w", err)
					}
				}
				return tx.AutoMigrate(&chat.Thread{}, &chat.Message{})
			},
		},
		{
			Version: 2,
			Name:    "index_messages_created_at",
			Up: func(tx *gorm.DB) error {
				return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_messages_thread_created_at ON messages(thread_id, created_at);`).Error
			},
		},
	}
}

// Migrate applies every migration not yet recorded in schema_migrations.
func (s *Service) Migrate(ctx context.Context) error {
	applied, err := RunMigrations(ctx, s.db, Migrations())
	if err != nil {
		return err
	}
	if len(applied) > 0 {
		s.log.Info("Applied migrations", "versions", applied)
	}
	return nil
}

func RunMigrations(ctx context.Context, db *gorm.DB, migrations []Migration) ([]int, error) {
	db = db.WithContext(ctx)
	if err := db.AutoMigrate(&schemaMigration{}); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}
	var applied []int
	for _, m := range migrations {
		ran := false
		err := db.Transaction(func(tx *gorm.DB) error {
			var existing schemaMigration
			err := tx.Where("version = ?", m.Version).Take(&existing).Error
			if err == nil {
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			if err := m.Up(tx); err != nil {
				return err
			}
			ran = true
			return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&schemaMigration{
				Version:   m.Version,
				Name:      m.Name,
				AppliedAt: time.Now().UTC(),
			}).Error
		})
		if err != nil {
			return applied, fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
		}
		if ran {
			applied = append(applied, m.Version)
		}
	}
	return applied, nil
}
