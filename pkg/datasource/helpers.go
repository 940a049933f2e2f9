package datasource

import (
	"context"

	"gorm.io/gorm"
)

// getByField retrieves a single record of type T by matching field=value,
// converting gorm.ErrRecordNotFound to notFoundErr.
func getByField[T any](db *gorm.DB, ctx context.Context, field string, value any, notFoundErr error) (*T, error) {
	var result T
	if err := db.WithContext(ctx).Where(field+" = ?", value).First(&result).Error; err != nil {
		return nil, convertNotFoundError(err, notFoundErr)
	}
	return &result, nil
}

// listWhere retrieves all records of type T matching an optional condition.
// Returns an empty slice (not nil) on success with no records.
func listWhere[T any](db *gorm.DB, ctx context.Context, query string, args ...any) ([]*T, error) {
	results := []*T{}
	q := db.WithContext(ctx)
	if query != "" {
		q = q.Where(query, args...)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// updateByField applies columns to records of type T matching field=value.
// Returns notFoundErr if no rows were affected. A map is used so zero values
// such as false and 0 are written.
func updateByField[T any](db *gorm.DB, ctx context.Context, field string, value any, columns map[string]any, notFoundErr error) error {
	var model T
	result := db.WithContext(ctx).Model(&model).Where(field+" = ?", value).Updates(columns)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return notFoundErr
	}
	return nil
}

// deleteByField deletes records of type T matching field=value.
// Returns notFoundErr if no rows were affected.
func deleteByField[T any](db *gorm.DB, ctx context.Context, field string, value any, notFoundErr error) error {
	var model T
	result := db.WithContext(ctx).Where(field+" = ?", value).Delete(&model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return notFoundErr
	}
	return nil
}
