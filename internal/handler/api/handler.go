package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/collabpad/backend/internal/service/collab"
	"github.com/zhouzirui/collabpad/backend/pkg/utils"
)

// Handler 只读的会话与文档查询接口
type Handler struct {
	svc *collab.Service
}

// New 创建查询处理器
func New(svc *collab.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes 注册查询路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/users", h.handleListUsers)
	r.Get("/document", h.handleGetDocument)
}

// handleListUsers 列出当前连接的用户及其光标
func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.svc.Users())
}

// handleGetDocument 返回共享文档的当前内容
func (h *Handler) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.svc.Document())
}
