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
	auditdomain "github.com/smallbiznis/progresspay/internal/audit/domain"
	lienwaiverdomain "github.com/smallbiznis/progresspay/internal/lienwaiver/domain"
	payappdomain "github.com/smallbiznis/progresspay/internal/payapp/domain"
	sovdomain "github.com/smallbiznis/progresspay/internal/sov/domain"
	"github.com/smallbiznis/progresspay/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed sql/*.sql
var embeddedMigrations embed.FS

const migrationsDir = "sql"

// Run brings the schema up to date. Postgres gets the versioned SQL
// migrations; other dialects are auto-migrated from the models.
func Run(conn *gorm.DB, log *zap.Logger) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	if !db.IsPostgres(conn) {
		log.Info("auto-migrating schema", zap.String("dialect", conn.Dialector.Name()))
		return AutoMigrate(conn)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	log.Info("applying sql migrations")
	return RunMigrations(sqlDB)
}

func RunMigrations(sqlDB *sql.DB) error {
	if sqlDB == nil {
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

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
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
	// Closing the migrator would close the shared *sql.DB.

	return nil
}

// Models lists every persisted model in dependency order.
func Models() []any {
	return []any{
		&sovdomain.LineItem{},
		&payappdomain.PayApplication{},
		&payappdomain.LineItem{},
		&lienwaiverdomain.LienWaiver{},
		&auditdomain.AuditLog{},
	}
}

// AutoMigrate creates missing tables and columns. SQLite's migrator cannot
// re-parse numeric(p,s) columns of an existing table, so there existing
// tables only gain the columns they lack.
func AutoMigrate(conn *gorm.DB) error {
	if conn.Dialector.Name() != "sqlite" {
		if err := conn.AutoMigrate(Models()...); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
		return nil
	}

	migrator := conn.Migrator()
	for _, model := range Models() {
		if !migrator.HasTable(model) {
			if err := migrator.CreateTable(model); err != nil {
				return fmt.Errorf("auto-migrate: %w", err)
			}
			continue
		}

		stmt := &gorm.Statement{DB: conn}
		if err := stmt.Parse(model); err != nil {
			return fmt.Errorf("auto-migrate: parse %T: %w", model, err)
		}
		for _, field := range stmt.Schema.Fields {
			if field.DBName == "" || migrator.HasColumn(model, field.DBName) {
				continue
			}
			if err := migrator.AddColumn(model, field.DBName); err != nil {
				return fmt.Errorf("auto-migrate: add %s.%s: %w", stmt.Schema.Table, field.DBName, err)
			}
		}
	}
	return nil
}
