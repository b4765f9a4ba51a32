package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	auditdomain "github.com/smallbiznis/workdesk/internal/audit/domain"
	directorydomain "github.com/smallbiznis/workdesk/internal/directory/domain"
	invoicedomain "github.com/smallbiznis/workdesk/internal/invoice/domain"
	taxdomain "github.com/smallbiznis/workdesk/internal/taxrate/domain"
	workorderdomain "github.com/smallbiznis/workdesk/internal/workorder/domain"
	"gorm.io/gorm"
)

const migrationsDir = "sql"

//go:embed sql/*.sql
var embeddedMigrations embed.FS

// Models lists every table owned by the application, in dependency order.
func Models() []any {
	return []any{
		&directorydomain.Department{},
		&directorydomain.Company{},
		&directorydomain.Employee{},
		&directorydomain.Admin{},
		&workorderdomain.WorkOrder{},
		&taxdomain.TaxRate{},
		&taxdomain.TaxRateVersion{},
		&invoicedomain.InvoiceSequence{},
		&invoicedomain.Invoice{},
		&auditdomain.AuditLog{},
	}
}

// Apply runs the versioned SQL migrations on postgres and falls back to AutoMigrate for the
// embedded dialects used in development.
func Apply(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if conn.Dialector.Name() != "postgres" {
		return conn.AutoMigrate(Models()...)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}

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
	// migrator.Close would close the shared *sql.DB.

	return nil
}
