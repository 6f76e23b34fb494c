// Package migration creates the schema on startup so a fresh install is
// usable out of the box. Postgres runs the embedded SQL migrations; other
// dialects fall back to the model-driven schema.
package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	contentdomain "github.com/placehub/placehub/internal/content/domain"
	discountdomain "github.com/placehub/placehub/internal/discount/domain"
	ledgerdomain "github.com/placehub/placehub/internal/ledger/domain"
	placementdomain "github.com/placehub/placehub/internal/placement/domain"
	referraldomain "github.com/placehub/placehub/internal/referral/domain"
	rentaldomain "github.com/placehub/placehub/internal/rental/domain"
	sitedomain "github.com/placehub/placehub/internal/site/domain"
	"gorm.io/gorm"
)

func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// AutoMigrate builds the schema from the models for dialects without SQL
// migrations (mysql, sqlite).
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&ledgerdomain.Account{},
		&ledgerdomain.Transaction{},
		&discountdomain.DiscountTier{},
		&sitedomain.Site{},
		&contentdomain.ContentItem{},
		&placementdomain.Placement{},
		&referraldomain.PromoCode{},
		&rentaldomain.SiteSlotRental{},
		&rentaldomain.RentalEvent{},
	)
}
