package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

const (
	defaultOrgName = "Main"
	defaultOrgSlug = "main"
)

// EnsureDefaultOrg seeds the default organization for startup bootstrap.
func EnsureDefaultOrg(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	return ensureOrg(db, node.Generate().Int64())
}

// EnsureDefaultOrgWithID seeds the default organization under a fixed
// identifier so single-tenant deployments keep a stable org id across
// restarts.
func EnsureDefaultOrgWithID(db *gorm.DB, id int64) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if id == 0 {
		return errors.New("seed org id is required")
	}

	return ensureOrg(db, id)
}

func ensureOrg(db *gorm.DB, id int64) error {
	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		err := tx.WithContext(ctx).
			Raw(`SELECT id FROM organizations WHERE slug = ?`, defaultOrgSlug).
			Scan(&existing).Error
		if err != nil {
			return err
		}
		if existing != 0 {
			return nil
		}

		now := time.Now().UTC()
		return tx.WithContext(ctx).Exec(
			`INSERT INTO organizations (id, name, slug, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?)`,
			id,
			defaultOrgName,
			defaultOrgSlug,
			now,
			now,
		).Error
	})
}
