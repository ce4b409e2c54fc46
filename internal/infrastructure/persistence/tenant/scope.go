// Package tenant provides per-dealer database scoping for GORM.
//
// Every dealing table carries a tenant_id column holding the owning
// dealer's id. Repositories apply TenantScope on reads and counts so a
// cross-dealer row can never be returned by omission.
package tenant

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrTenantIDRequired is returned when a dealer id is required but missing
var ErrTenantIDRequired = errors.New("tenant_id is required but was not provided")

// TenantScope filters queries to rows owned by the given dealer
func TenantScope(dealerID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("tenant_id = ?", dealerID)
	}
}

// RequireTenant returns a scope that fails the query when the dealer id
// is the zero UUID. Use it on paths where an unscoped query would leak
// rows across dealers.
func RequireTenant(dealerID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if dealerID == uuid.Nil {
			_ = db.AddError(ErrTenantIDRequired)
			return db
		}
		return db.Where("tenant_id = ?", dealerID)
	}
}
