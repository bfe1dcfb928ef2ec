// Package option holds composable query modifiers for the generic store.
package option

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// QueryOption mutates a query before it runs.
type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type queryFunc func(db *gorm.DB) *gorm.DB

func (f queryFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

// QuerySortBy orders by a column; Desc flips the direction.
type QuerySortBy struct {
	Column string
	Desc   bool
}

// WithSortBy appends one ORDER BY clause per sort key in the given order.
func WithSortBy(sorts ...QuerySortBy) QueryOption {
	return queryFunc(func(db *gorm.DB) *gorm.DB {
		for _, s := range sorts {
			column := strings.TrimSpace(s.Column)
			if column == "" {
				continue
			}
			dir := "ASC"
			if s.Desc {
				dir = "DESC"
			}
			db = db.Order(fmt.Sprintf("%s %s", column, dir))
		}
		return db
	})
}

// WithWhere adds a raw condition, for filters a zero-valued struct cannot express.
func WithWhere(query string, args ...any) QueryOption {
	return queryFunc(func(db *gorm.DB) *gorm.DB {
		return db.Where(query, args...)
	})
}

// WithLimit caps the number of rows returned.
func WithLimit(n int) QueryOption {
	return queryFunc(func(db *gorm.DB) *gorm.DB {
		if n <= 0 {
			return db
		}
		return db.Limit(n)
	})
}
