package database

import (
	"fmt"

	"github.com/Brownbull/gabeda-backend/internal/common/config"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// MySQL implements the Database interface using MySQL
type MySQL struct {
	*store
	cfg *config.DatabaseConfig
}

// NewMySQL creates a new MySQL instance
func NewMySQL(cfg *config.DatabaseConfig) (Database, error) {
	gormDB, err := gorm.Open(mysql.Open(cfg.GetDSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	st, err := newStore(gormDB)
	if err != nil {
		return nil, err
	}
	return &MySQL{store: st, cfg: cfg}, nil
}
