package rewardaccount

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"rewardvault/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newRouter(f *fixture) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Error())
	NewHandler(f.svc).Register(r)
	return r
}

func do(t *testing.T, r *gin.Engine, method, path string, body any, admin string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if admin != "" {
		req.Header.Set(middleware.AdminIDHeader, admin)
	}

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	out := map[string]any{}
	if resp.Body.Len() > 0 {
		_ = json.Unmarshal(resp.Body.Bytes(), &out)
	}
	return resp, out
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

var createBody = map[string]any{
	"service_name": "Netflix",
	"account_type": "Premium",
	"category":     "STREAMING_SERVICE",
	"credentials":  "user:pass",
}

func TestHandlerRequiresActor(t *testing.T) {
	r := newRouter(newFixture(t))

	resp, body := do(t, r, http.MethodGet, "/v1/reward-accounts", nil, "")
	require.Equal(t, http.StatusUnauthorized, resp.Code)
	require.Equal(t, "UNAUTHORIZED", errorCode(body))
}

func TestHandlerCreateAndReadCredentials(t *testing.T) {
	r := newRouter(newFixture(t))

	resp, body := do(t, r, http.MethodPost, "/v1/reward-accounts", createBody, "admin-1")
	require.Equal(t, http.StatusCreated, resp.Code)
	require.Equal(t, "AVAILABLE", body["status"])
	require.Equal(t, "admin-1", body["created_by"])
	require.NotContains(t, body, "credentials")
	require.NotContains(t, body, "encrypted_credentials")
	require.NotContains(t, resp.Body.String(), "user:pass")

	id, _ := body["id"].(string)
	require.NotEmpty(t, id)

	resp, body = do(t, r, http.MethodPost, "/v1/reward-accounts/"+id+"/credentials", map[string]any{}, "admin-2")
	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Equal(t, "VALIDATION_FAILED", errorCode(body))

	resp, body = do(t, r, http.MethodPost, "/v1/reward-accounts/"+id+"/credentials",
		map[string]any{"access_reason": "winner support"}, "admin-2")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "user:pass", body["credentials"])
	require.Equal(t, "no-store", resp.Header().Get("Cache-Control"))

	resp, body = do(t, r, http.MethodGet, "/v1/reward-accounts/"+id+"/audit?action=ACCESSED", nil, "admin-2")
	require.Equal(t, http.StatusOK, resp.Code)
	items, _ := body["items"].([]any)
	require.Len(t, items, 1)
}

func TestHandlerAssignLifecycle(t *testing.T) {
	f := newFixture(t)
	r := newRouter(f)
	f.submission(t, 7, nil)
	f.submission(t, 8, nil)

	_, body := do(t, r, http.MethodPost, "/v1/reward-accounts", createBody, "admin-1")
	id := body["id"].(string)
	base := "/v1/reward-accounts/" + id

	resp, body := do(t, r, http.MethodGet, base+"/validate-assignment?submission_id=7", nil, "admin-1")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, true, body["is_valid"])

	resp, body = do(t, r, http.MethodPost, base+"/assign", map[string]any{"submission_id": 7}, "admin-1")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "ASSIGNED", body["status"])
	require.EqualValues(t, 7, body["assigned_to_submission_id"])

	resp, body = do(t, r, http.MethodPost, base+"/assign", map[string]any{"submission_id": 8}, "admin-1")
	require.Equal(t, http.StatusConflict, resp.Code)
	require.Equal(t, "CONFLICT", errorCode(body))

	resp, body = do(t, r, http.MethodDelete, base, nil, "admin-1")
	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Equal(t, "BAD_REQUEST", errorCode(body))

	resp, body = do(t, r, http.MethodPost, base+"/unassign", nil, "admin-1")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "AVAILABLE", body["status"])
	require.Nil(t, body["assigned_to_submission_id"])

	resp, _ = do(t, r, http.MethodDelete, base, nil, "admin-1")
	require.Equal(t, http.StatusNoContent, resp.Code)

	resp, body = do(t, r, http.MethodGet, base, nil, "admin-1")
	require.Equal(t, http.StatusNotFound, resp.Code)
	require.Equal(t, "NOT_FOUND", errorCode(body))
}

func TestHandlerRejectsBadInput(t *testing.T) {
	r := newRouter(newFixture(t))

	resp, body := do(t, r, http.MethodGet, "/v1/reward-accounts/not-a-number", nil, "admin-1")
	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Equal(t, "BAD_REQUEST", errorCode(body))

	resp, body = do(t, r, http.MethodGet, "/v1/reward-accounts?sort_by=encrypted_credentials", nil, "admin-1")
	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Equal(t, "VALIDATION_FAILED", errorCode(body))

	resp, body = do(t, r, http.MethodPost, "/v1/reward-accounts/bulk/status",
		map[string]any{"ids": []string{"1"}, "status": "ASSIGNED"}, "admin-1")
	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Equal(t, "VALIDATION_FAILED", errorCode(body))
}

func TestHandlerBulkCreateAndList(t *testing.T) {
	r := newRouter(newFixture(t))

	resp, body := do(t, r, http.MethodPost, "/v1/reward-accounts/bulk", map[string]any{
		"items": []map[string]any{
			createBody,
			{"service_name": "Spotify", "category": "STREAMING_SERVICE", "credentials": "x"},
		},
	}, "admin-1")
	require.Equal(t, http.StatusOK, resp.Code)

	summary := body["summary"].(map[string]any)
	require.EqualValues(t, 2, summary["total"])
	require.EqualValues(t, 1, summary["successful"])
	require.EqualValues(t, 1, summary["failed"])

	resp, body = do(t, r, http.MethodGet, "/v1/reward-accounts?category=STREAMING_SERVICE&page=1&limit=5", nil, "admin-1")
	require.Equal(t, http.StatusOK, resp.Code)
	items := body["items"].([]any)
	require.Len(t, items, 1)
	info := body["page_info"].(map[string]any)
	require.EqualValues(t, 1, info["total"])
	require.EqualValues(t, 5, info["limit"])
}
