package job

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const sqliteDirPerm os.FileMode = 0o750

// sqlStore keeps job records in a SQLite table through GORM.
type sqlStore struct {
	db *gorm.DB
}

// NewSQLiteStore opens (creating if needed) the database at path and
// migrates the jobs table.
func NewSQLiteStore(path string) (Store, error) { //nolint:ireturn
	if path == "" {
		return nil, errors.New("empty sqlite path")
	}
	if err := os.MkdirAll(filepath.Dir(path), sqliteDirPerm); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}
	db.Exec("PRAGMA journal_mode=WAL")

	if err := db.AutoMigrate(&Job{}); err != nil {
		return nil, fmt.Errorf("migrate jobs: %w", err)
	}
	return &sqlStore{db: db}, nil
}

func (s *sqlStore) SaveJob(ctx context.Context, j *Job) error {
	if err := s.db.WithContext(ctx).Save(j).Error; err != nil {
		return fmt.Errorf("save job %s: %w", j.ID, err)
	}
	return nil
}

func (s *sqlStore) LoadJobs(ctx context.Context) ([]*Job, error) {
	var jobs []*Job
	if err := s.db.WithContext(ctx).Order("created_at").Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("load jobs: %w", err)
	}
	return jobs, nil
}

func (s *sqlStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB instance: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}
