package option

import (
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/fundops/pkg/db/pagination"
	"gorm.io/gorm"
)

// QueryOption mutates a gorm statement before execution.
type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type queryOptionFunc func(db *gorm.DB) *gorm.DB

func (f queryOptionFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

type Operator string

const (
	EQ  Operator = "="
	GT  Operator = ">"
	GTE Operator = ">="
	LT  Operator = "<"
	LTE Operator = "<="
)

type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

func ApplyOperator(cond Condition) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		field := strings.TrimSpace(cond.Field)
		if field == "" {
			return db
		}
		return db.Where(fmt.Sprintf("%s %s ?", field, cond.Operator), cond.Value)
	})
}

// ApplyPagination applies a cursor page token and limit+1 fetch so the
// caller can detect a next page.
func ApplyPagination(p pagination.Pagination) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if token := strings.TrimSpace(p.PageToken); token != "" {
			cursor, err := pagination.DecodeCursor(token)
			if err == nil && cursor.CreatedAt != "" {
				if at, parseErr := time.Parse(time.RFC3339, cursor.CreatedAt); parseErr == nil {
					db = db.Where("created_at < ?", at)
				}
			}
		}
		size := p.PageSize
		if size <= 0 {
			size = 10
		}
		return db.Limit(size + 1)
	})
}

func WithSortBy(clause string) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if strings.TrimSpace(clause) == "" {
			return db
		}
		return db.Order(clause)
	})
}

// WithQuerySortBy validates a caller-supplied sort field against an
// allowlist and falls back to the default clause when rejected.
func WithQuerySortBy(field, direction string, allowed map[string]bool) string {
	field = strings.TrimSpace(field)
	if field == "" || !allowed[field] {
		return ""
	}
	direction = strings.ToLower(strings.TrimSpace(direction))
	if direction != "asc" && direction != "desc" {
		direction = "asc"
	}
	return fmt.Sprintf("%s %s", field, direction)
}
