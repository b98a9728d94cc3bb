package repository

import (
	"context"
	"errors"

	"answerafter-admin/internal/domain"
)

// ErrTenantNotFound 租户不存在（含已删除后的重复teardown场景）
var ErrTenantNotFound = errors.New("tenant not found")

// TenantsRepo 租户Repository接口
// 使用强类型领域模型，不使用map[string]any
// 设计原则：Repository层只负责数据访问，teardown编排逻辑在teardown包
type TenantsRepo interface {
	// GetTenant 根据tenant_id获取租户信息
	// 租户不存在时返回包装了ErrTenantNotFound的错误
	GetTenant(ctx context.Context, tenantID string) (*domain.Tenant, error)

	// ListTenants 查询租户列表（支持分页、按status过滤）
	ListTenants(ctx context.Context, status string, page, size int) ([]domain.Tenant, int, error)

	// DeleteTenant 硬删除租户行
	// teardown saga 的最后一步：此时所有子表行已清除，外键不再阻塞
	DeleteTenant(ctx context.Context, tenantID string) error
}
