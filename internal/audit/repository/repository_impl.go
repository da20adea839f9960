package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/fundops/internal/audit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() auditdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *auditdomain.AuditLog) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO audit_logs (
			id, org_id, actor_type, actor_id, action, target_type, target_id,
			metadata, ip_address, user_agent, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.OrgID,
		entry.ActorType,
		entry.ActorID,
		entry.Action,
		entry.TargetType,
		entry.TargetID,
		entry.Metadata,
		entry.IPAddress,
		entry.UserAgent,
		entry.CreatedAt,
	).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter auditdomain.ListFilter) ([]auditdomain.AuditLog, error) {
	query := `SELECT id, org_id, actor_type, actor_id, action, target_type, target_id,
		 metadata, ip_address, user_agent, created_at
		 FROM audit_logs
		 WHERE org_id = ?`
	args := []any{orgID}

	if action := strings.TrimSpace(filter.Action); action != "" {
		query += ` AND action = ?`
		args = append(args, action)
	}
	if targetType := strings.TrimSpace(filter.TargetType); targetType != "" {
		query += ` AND target_type = ?`
		args = append(args, targetType)
	}
	if targetID := strings.TrimSpace(filter.TargetID); targetID != "" {
		query += ` AND target_id = ?`
		args = append(args, targetID)
	}
	if actorType := strings.TrimSpace(filter.ActorType); actorType != "" {
		query += ` AND actor_type = ?`
		args = append(args, actorType)
	}
	if filter.StartAt != nil {
		query += ` AND created_at >= ?`
		args = append(args, *filter.StartAt)
	}
	if filter.EndAt != nil {
		query += ` AND created_at <= ?`
		args = append(args, *filter.EndAt)
	}
	if filter.Cursor != nil {
		query += ` AND (created_at < ? OR (created_at = ? AND id < ?))`
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.CreatedAt, filter.Cursor.ID)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	var entries []auditdomain.AuditLog
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
