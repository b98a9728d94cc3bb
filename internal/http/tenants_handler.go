package httpapi

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"answerafter-admin/internal/repository"
	"answerafter-admin/internal/teardown"
)

// TenantsHandler 租户管理API
// teardown 端点是这里唯一的破坏性操作，读端点配合操作员的失败重试流程
type TenantsHandler struct {
	Tenants      repository.TenantsRepo
	Orchestrator *teardown.Orchestrator
	Logger       *zap.Logger
}

func NewTenantsHandler(tenants repository.TenantsRepo, orchestrator *teardown.Orchestrator, logger *zap.Logger) *TenantsHandler {
	return &TenantsHandler{Tenants: tenants, Orchestrator: orchestrator, Logger: logger}
}

// ListTenants GET /admin/api/v1/tenants
func (h *TenantsHandler) ListTenants(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	page := parseInt(r.URL.Query().Get("page"), 1)
	size := parseInt(r.URL.Query().Get("size"), 50)

	items, total, err := h.Tenants.ListTenants(r.Context(), status, page, size)
	if err != nil {
		h.Logger.Error("Failed to list tenants", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   "failed to list tenants",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"items":   items,
		"total":   total,
	})
}

// GetTenant GET /admin/api/v1/tenants/{id}
func (h *TenantsHandler) GetTenant(w http.ResponseWriter, r *http.Request, tenantID string) {
	tenant, err := h.Tenants.GetTenant(r.Context(), tenantID)
	if err != nil {
		if errors.Is(err, repository.ErrTenantNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]any{
				"success": false,
				"error":   "tenant not found",
			})
			return
		}
		h.Logger.Error("Failed to get tenant", zap.String("tenant_id", tenantID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   "failed to get tenant",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"tenant":  tenant,
	})
}

// TeardownTenant DELETE /admin/api/v1/tenants/{id}
//
// 状态码按失败类别：400非法id / 404租户不存在 / 409同租户teardown进行中 /
// 500数据层致命失败。响应总是带已执行步骤的审计账目（可观测性）。
func (h *TenantsHandler) TeardownTenant(w http.ResponseWriter, r *http.Request, tenantID string) {
	report, err := h.Orchestrator.Teardown(r.Context(), tenantID)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, teardown.ErrInvalidTenantID):
			status = http.StatusBadRequest
		case errors.Is(err, repository.ErrTenantNotFound):
			status = http.StatusNotFound
		case errors.Is(err, teardown.ErrTeardownInProgress):
			status = http.StatusConflict
		}

		body := map[string]any{
			"success": false,
			"error":   err.Error(),
		}
		if report != nil {
			body["steps"] = report.Steps
		}
		writeJSON(w, status, body)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "tenant deleted",
		"steps":   report.Steps,
	})
}
