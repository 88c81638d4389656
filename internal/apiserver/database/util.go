package database

import (
	"context"
	"errors"

	"github.com/Brownbull/gabeda-backend/internal/common/cnst"

	"gorm.io/gorm"
)

// DefaultTenantName is the tenant seeded on first start
const DefaultTenantName = "default"

// InitDefaultTenant seeds the default tenant and the elevated operator if they don't exist
func InitDefaultTenant(ctx context.Context, db Database, operator string) error {
	if _, err := db.GetTenantByName(ctx, DefaultTenantName); err != nil {
		if !errors.Is(err, cnst.ErrTenantNotFound) {
			return err
		}
		tenant := &Tenant{
			Name:     DefaultTenantName,
			Industry: "retail",
		}
		if err := db.CreateTenant(ctx, tenant); err != nil {
			return err
		}
	}

	if operator == "" {
		return nil
	}
	_, err := db.GetUserByUsername(ctx, operator)
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return db.CreateUser(ctx, &User{
		Username:   operator,
		IsElevated: true,
		IsActive:   true,
	})
}
