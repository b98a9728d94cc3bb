package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterAdminTenantRoutes 注册租户管理路由
// DELETE /admin/api/v1/tenants/{id} 触发teardown saga
func (r *Router) RegisterAdminTenantRoutes(h *TenantsHandler) {
	r.Handle("/admin/api/v1/tenants", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.ListTenants(w, req)
	})

	r.Handle("/admin/api/v1/tenants/", func(w http.ResponseWriter, req *http.Request) {
		id := strings.TrimPrefix(req.URL.Path, "/admin/api/v1/tenants/")
		if id == "" || strings.Contains(id, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		switch req.Method {
		case http.MethodGet:
			h.GetTenant(w, req, id)
		case http.MethodDelete:
			h.TeardownTenant(w, req, id)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
}

// RegisterHealthRoutes 注册健康检查路由
func (r *Router) RegisterHealthRoutes() {
	r.Handle("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
}
