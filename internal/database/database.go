package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var _ DB = (*Client)(nil) // Ensure Client implements DB

// DB is the persistence used by the engine and the admin API.
type DB interface {
	RunDB
	Close() error
}

// Client wraps the gorm.DB instance.
type Client struct {
	db *gorm.DB
}

// New opens the sqlite database at dbpath and performs migrations.
func New(dbpath string) (*Client, error) {
	if dir := filepath.Dir(dbpath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dbpath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	if err := db.AutoMigrate(
		&Run{},
		&SectionResult{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Client{db: db}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks the connection.
func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
