// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lib/pq"
	"github.com/poiesic/lostfound/storage"
)

//go:embed migrations/*.sql
var migrations embed.FS

// uniqueViolation is the SQLSTATE PostgreSQL reports for a duplicate key.
const uniqueViolation = pq.ErrorCode("23505")

// Open connects to the database at dsn and checks it answers.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return db, nil
}

// Migrate brings the schema up to the latest embedded version.
func Migrate(db *sql.DB) error {
	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("postgres: migration source: %w", err)
	}
	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("postgres: migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("postgres: migrate up: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a duplicate key error.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// Repositories bundles every PostgreSQL repository sharing one handle.
type Repositories struct {
	DB            *sql.DB
	Listings      *ListingRepository
	Users         *UserRepository
	Notifications *NotificationRepository
	Thresholds    *ThresholdRepository
}

// NewRepositories creates all repositories over db.
func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		DB:            db,
		Listings:      NewListingRepository(db),
		Users:         NewUserRepository(db),
		Notifications: NewNotificationRepository(db),
		Thresholds:    NewThresholdRepository(db),
	}
}

// Close closes the shared database handle.
func (r *Repositories) Close() error {
	return r.DB.Close()
}

var (
	_ storage.ListingRepository      = (*ListingRepository)(nil)
	_ storage.UserRepository         = (*UserRepository)(nil)
	_ storage.NotificationRepository = (*NotificationRepository)(nil)
	_ storage.ThresholdRepository    = (*ThresholdRepository)(nil)
)
