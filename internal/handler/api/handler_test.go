package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/collabpad/backend/internal/model/session"
	"github.com/zhouzirui/collabpad/backend/internal/service/collab"
	"github.com/zhouzirui/collabpad/backend/internal/service/document"
	"github.com/zhouzirui/collabpad/backend/internal/service/registry/registrytest"
)

func setupRouter() (*chi.Mux, *collab.Service) {
	svc := collab.NewService(collab.WithInitialContent("draft"))
	handler := New(svc)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, svc
}

func TestListUsers(t *testing.T) {
	r, svc := setupRouter()
	conn := svc.Attach(registrytest.NewPeer())
	id, err := conn.Open(context.Background())
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/users", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var users []session.UserInfo
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if len(users) != 1 || users[0].ID != id {
		t.Fatalf("unexpected users: %+v", users)
	}
}

func TestListUsersEmptyIsArray(t *testing.T) {
	r, _ := setupRouter()

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/users", nil))

	if body := resp.Body.String(); body != "[]\n" {
		t.Fatalf("expected empty array, got %q", body)
	}
}

func TestGetDocument(t *testing.T) {
	r, _ := setupRouter()

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/document", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if got := resp.Header().Get("Cache-Control"); got != "no-store" {
		t.Fatalf("expected no-store, got %q", got)
	}
	var snap document.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if snap.Content != "draft" || snap.Length != 5 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}
