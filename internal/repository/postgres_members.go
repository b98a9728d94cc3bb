package repository

import (
	"context"
	"database/sql"
	"fmt"

	"answerafter-admin/internal/domain"
)

// PostgresMembersRepo 租户成员身份Repository实现
type PostgresMembersRepo struct {
	db *sql.DB
}

// NewPostgresMembersRepo 创建成员Repository
func NewPostgresMembersRepo(db *sql.DB) *PostgresMembersRepo {
	return &PostgresMembersRepo{db: db}
}

var _ MembersRepo = (*PostgresMembersRepo)(nil)

// ListMembers 列出租户全部成员
func (r *PostgresMembersRepo) ListMembers(ctx context.Context, tenantID string) ([]domain.Member, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id::text, COALESCE(auth_user_id, '') as auth_user_id
		 FROM user_profiles
		 WHERE tenant_id = $1::uuid`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	members := []domain.Member{}
	for rows.Next() {
		var m domain.Member
		if err := rows.Scan(&m.UserID, &m.AuthUserID); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}
	return members, nil
}

// DeleteUserRoles 删除用户的角色分配行
func (r *PostgresMembersRepo) DeleteUserRoles(ctx context.Context, userID string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM user_roles WHERE user_id = $1::uuid`,
		userID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete user roles: %w", err)
	}
	return result.RowsAffected()
}

// DeleteUserProfile 删除用户profile行
// 匹配0行不视为错误：重跑teardown时该行可能已删除
func (r *PostgresMembersRepo) DeleteUserProfile(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM user_profiles WHERE user_id = $1::uuid`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user profile: %w", err)
	}
	return nil
}
