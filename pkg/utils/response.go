package utils

import (
	"encoding/json"
	"log"
	"net/http"
)

// ErrorResponse 是 REST 接口统一的错误结构。
type ErrorResponse struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

// RespondJSON 发送JSON响应。文档与用户列表是实时数据，禁止缓存。
func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[http] failed to encode response: %v", err)
	}
}

// RespondError 发送错误响应
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, ErrorResponse{Error: message, Status: status})
}

// NotFound 以 JSON 形式返回 404，供 API 路由组使用。
func NotFound(w http.ResponseWriter, r *http.Request) {
	RespondError(w, http.StatusNotFound, "resource not found: "+r.URL.Path)
}

// MethodNotAllowed 以 JSON 形式返回 405。
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	RespondError(w, http.StatusMethodNotAllowed, r.Method+" is not supported on "+r.URL.Path)
}
