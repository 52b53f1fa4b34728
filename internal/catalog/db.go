package catalog

import (
	"database/sql"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	// Pure Go driver registered as "sqlite".
	_ "modernc.org/sqlite"
)

// OpenDB opens the catalog database. driver is "sqlite" or "postgres".
func OpenDB(driver, dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}

	switch driver {
	case "postgres":
		db, err := gorm.Open(postgres.Open(dsn), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		return db, nil
	case "sqlite":
		conn, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite: %w", err)
		}
		// One connection keeps ":memory:" databases alive and shared.
		conn.SetMaxOpenConns(1)

		db, err := gorm.Open(&sqlite.Dialector{Conn: conn}, cfg)
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to open sqlite: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER '%s'", driver)
	}
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Account{}, &Category{}, &Product{}); err != nil {
		return fmt.Errorf("failed to migrate catalog: %w", err)
	}

	return nil
}
