package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"answerafter-admin/internal/domain"
)

// PostgresTenantsRepo 租户Repository实现
type PostgresTenantsRepo struct {
	db *sql.DB
}

// NewPostgresTenantsRepo 创建租户Repository
func NewPostgresTenantsRepo(db *sql.DB) *PostgresTenantsRepo {
	return &PostgresTenantsRepo{db: db}
}

// 确保实现了接口
var _ TenantsRepo = (*PostgresTenantsRepo)(nil)

// GetTenant 根据tenant_id获取租户信息
func (r *PostgresTenantsRepo) GetTenant(ctx context.Context, tenantID string) (*domain.Tenant, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant_id is required")
	}

	query := `
		SELECT
			tenant_id::text,
			tenant_name,
			COALESCE(status, 'active') as status,
			COALESCE(telephony_subaccount_sid, '') as telephony_subaccount_sid,
			COALESCE(telephony_subaccount_token, '') as telephony_subaccount_token
		FROM tenants
		WHERE tenant_id = $1::uuid
	`

	var tenant domain.Tenant
	err := r.db.QueryRowContext(ctx, query, tenantID).Scan(
		&tenant.TenantID,
		&tenant.TenantName,
		&tenant.Status,
		&tenant.TelephonySubaccountSID,
		&tenant.TelephonySubaccountToken,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("tenant '%s': %w", tenantID, ErrTenantNotFound)
		}
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}

	return &tenant, nil
}

// ListTenants 查询租户列表（支持分页、按status过滤）
func (r *PostgresTenantsRepo) ListTenants(ctx context.Context, status string, page, size int) ([]domain.Tenant, int, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 50
	}
	offset := (page - 1) * size

	where := []string{}
	args := []any{}
	argIdx := 1

	if status != "" {
		where = append(where, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, status)
		argIdx++
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM tenants %s`, whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count tenants: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT
			tenant_id::text,
			tenant_name,
			COALESCE(status, 'active') as status,
			COALESCE(telephony_subaccount_sid, '') as telephony_subaccount_sid
		FROM tenants
		%s
		ORDER BY tenant_name
		LIMIT $%d OFFSET $%d
	`, whereClause, argIdx, argIdx+1)

	args = append(args, size, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	tenants := []domain.Tenant{}
	for rows.Next() {
		var tenant domain.Tenant
		if err := rows.Scan(
			&tenant.TenantID,
			&tenant.TenantName,
			&tenant.Status,
			&tenant.TelephonySubaccountSID,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan tenant: %w", err)
		}
		tenants = append(tenants, tenant)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate tenants: %w", err)
	}

	return tenants, total, nil
}

// DeleteTenant 硬删除租户行（teardown最后一步，此时子表已清空）
func (r *PostgresTenantsRepo) DeleteTenant(ctx context.Context, tenantID string) error {
	if tenantID == "" {
		return fmt.Errorf("tenant_id is required")
	}

	result, err := r.db.ExecContext(ctx,
		`DELETE FROM tenants WHERE tenant_id = $1::uuid`,
		tenantID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete tenant: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("tenant '%s': %w", tenantID, ErrTenantNotFound)
	}

	return nil
}
