// Package sqlite implements a token store backend on SQLite via GORM.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/staybook/frontdesk/internal/components/tokenstore"
	"github.com/staybook/frontdesk/internal/platform/cfg"
)

// FileName is the database file created inside data_dir.
const FileName = "frontdesk.db"

func init() {
	tokenstore.Register("sqlite", func(raw map[string]any) (tokenstore.Backend, error) {
		var c Config
		if err := cfg.Decode(raw, &c); err != nil {
			return nil, err
		}
		return Open(c)
	})
}

// Config is the [token_store.drivers.sqlite] table.
type Config struct {
	DataDir string `mapstructure:"data_dir"`
}

// Entry is one stored key.
type Entry struct {
	Key       string `gorm:"column:entry_key;primaryKey"`
	Value     string `gorm:"column:entry_value;not null"`
	UpdatedAt int64  `gorm:"column:updated_at"`
}

func (Entry) TableName() string { return "kv_entries" }

// Backend stores entries in a single table.
type Backend struct {
	db *gorm.DB
}

// Open opens (or creates) the database and runs AutoMigrate.
func Open(c Config) (*Backend, error) {
	if c.DataDir == "" {
		return nil, fmt.Errorf("data_dir is required for sqlite driver")
	}
	if err := os.MkdirAll(c.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(filepath.Join(c.DataDir, FileName)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Backend{db: db}, nil
}

func (b *Backend) Name() string { return "sqlite" }

func (b *Backend) Load(ctx context.Context, key string) (string, error) {
	var e Entry
	err := b.db.WithContext(ctx).Where("entry_key = ?", key).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", tokenstore.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return e.Value, nil
}

func (b *Backend) Save(ctx context.Context, key, value string) error {
	e := Entry{Key: key, Value: value, UpdatedAt: time.Now().Unix()}
	return b.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&e).Error
}

func (b *Backend) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return b.db.WithContext(ctx).Where("entry_key IN ?", keys).Delete(&Entry{}).Error
}

// Close closes the database connection.
func (b *Backend) Close() error {
	if b.db == nil {
		return nil
	}
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ tokenstore.Backend = (*Backend)(nil)
