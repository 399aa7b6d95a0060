package state

import (
	"context"
	"reflect"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Gateway is the remote persistence boundary for the state container. The
// container is the authority for the current session; the gateway only
// mirrors it. SyncAll uses delete-all-then-reinsert semantics so deletions
// need no separate bookkeeping, and Upsert writes a single record keyed by
// id. Failures are logged by the caller and never rolled back locally.
type Gateway interface {
	// FetchAll loads every record of dst's element type. dst must be a
	// pointer to a slice of models.
	FetchAll(ctx context.Context, dst any) error

	// SyncAll replaces the stored collection with records. tables lists the
	// model types to clear first; passing child models (e.g. a plan's
	// allocations) keeps owned rows from leaking across replaces.
	SyncAll(ctx context.Context, records any, tables ...any) error

	// Upsert inserts or updates a single record by primary key.
	Upsert(ctx context.Context, record any) error
}

// GormGateway persists collections to a relational store through GORM.
type GormGateway struct {
	db *gorm.DB
}

// NewGormGateway creates a gateway over an open GORM handle.
func NewGormGateway(db *gorm.DB) *GormGateway {
	return &GormGateway{db: db}
}

// FetchAll loads every record of dst's element type.
func (g *GormGateway) FetchAll(ctx context.Context, dst any) error {
	return g.db.WithContext(ctx).Find(dst).Error
}

// SyncAll clears the given tables and reinserts records in one transaction.
func (g *GormGateway) SyncAll(ctx context.Context, records any, tables ...any) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, table := range tables {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).
				Unscoped().Delete(table).Error; err != nil {
				return err
			}
		}
		if reflect.ValueOf(records).Len() == 0 {
			return nil
		}
		return tx.Session(&gorm.Session{FullSaveAssociations: true}).
			CreateInBatches(records, 200).Error
	})
}

// Upsert inserts or updates a single record by primary key.
func (g *GormGateway) Upsert(ctx context.Context, record any) error {
	return g.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(record).Error
}
