package datastore

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/soundscout/soundscout-go/internal/errors"
)

// createIdempotent inserts value, treating a duplicate-key violation as an
// already-present no-op. This is the primary correctness mechanism under
// at-least-once delivery: re-running a persist stage must not fail or mutate.
func (ds *DataStore) createIdempotent(table string, value any) error {
	if ds.DB == nil {
		return fmt.Errorf("database connection is not initialized")
	}
	err := ds.DB.Create(value).Error
	if err == nil {
		return nil
	}
	if errors.IsUniqueConstraint(err) {
		ds.logger.Warn("duplicate row skipped", "table", table)
		return nil
	}
	return errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("table", table).
		Build()
}

// createMulti bulk-inserts rows with insert-or-ignore semantics and returns
// the number of rows actually written. One conflicting element never aborts
// the batch.
func createMulti[T any](ds *DataStore, table string, rows []T) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if ds.DB == nil {
		return 0, fmt.Errorf("database connection is not initialized")
	}
	tx := ds.DB.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(rows, 200)
	if tx.Error != nil {
		return 0, errors.New(tx.Error).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("table", table).
			Build()
	}
	return int(tx.RowsAffected), nil
}

// upsertMulti bulk-inserts rows, replacing all non-key columns on conflict.
// Used by the metadata refresh flows, where newer platform data wins.
func upsertMulti[T any](ds *DataStore, table string, rows []T) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if ds.DB == nil {
		return 0, fmt.Errorf("database connection is not initialized")
	}
	tx := ds.DB.Clauses(clause.OnConflict{UpdateAll: true}).CreateInBatches(rows, 200)
	if tx.Error != nil {
		return 0, errors.New(tx.Error).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("table", table).
			Build()
	}
	return int(tx.RowsAffected), nil
}

// getByID loads a single row by primary key, mapping not-found to (nil, nil)
// so callers can treat absence as "nothing to do" rather than an error.
func getByID[T any](ds *DataStore, id string) (*T, error) {
	if ds.DB == nil {
		return nil, fmt.Errorf("database connection is not initialized")
	}
	var row T
	err := ds.DB.First(&row, "id = ?", id).Error
	switch {
	case err == nil:
		return &row, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	default:
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("id", id).
			Build()
	}
}

// missingIDs returns the subset of ids with no corresponding row, in one
// query rather than one per id.
func missingIDs[T any](ds *DataStore, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var model T
	var present []string
	if err := ds.DB.Model(&model).Where("id IN ?", ids).Pluck("id", &present).Error; err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	presentSet := make(map[string]bool, len(present))
	for _, id := range present {
		presentSet[id] = true
	}
	missing := make([]string, 0, len(ids)-len(present))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !presentSet[id] && !seen[id] {
			missing = append(missing, id)
			seen[id] = true
		}
	}
	return missing, nil
}

// list pages through all rows of an entity.
func list[T any](ds *DataStore, skip, limit int) ([]T, error) {
	var rows []T
	if err := ds.DB.Offset(skip).Limit(limit).Find(&rows).Error; err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return rows, nil
}
