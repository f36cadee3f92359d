package inventory

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"rewardvault/pkg/middleware"
	"rewardvault/services/rewardaccount"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, r *Reporter, path, admin string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	gin.SetMode(gin.TestMode)
	e := gin.New()
	e.Use(middleware.Error())
	NewHandler(r).Register(e)

	req := httptest.NewRequest(http.MethodGet, path, nil)
	if admin != "" {
		req.Header.Set(middleware.AdminIDHeader, admin)
	}
	resp := httptest.NewRecorder()
	e.ServeHTTP(resp, req)

	out := map[string]any{}
	_ = json.Unmarshal(resp.Body.Bytes(), &out)
	return resp, out
}

func TestHandlerStats(t *testing.T) {
	r := newReporter(countFunc(func() ([]rewardaccount.StatusCategoryCount, error) {
		return []rewardaccount.StatusCategoryCount{
			{Status: rewardaccount.StatusAvailable, Category: rewardaccount.CategoryOther, Count: 3},
			{Status: rewardaccount.StatusAssigned, Category: rewardaccount.CategoryOther, Count: 1},
		}, nil
	}), nil)

	resp, _ := serve(t, r, "/v1/inventory/stats", "")
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	resp, body := serve(t, r, "/v1/inventory/stats", "admin-1")
	require.Equal(t, http.StatusOK, resp.Code)
	require.EqualValues(t, 4, body["total"])
	require.EqualValues(t, 3, body["available"])

	resp, body = serve(t, r, "/v1/inventory/analytics", "admin-1")
	require.Equal(t, http.StatusOK, resp.Code)
	require.EqualValues(t, 0.25, body["distribution_rate"])
	require.EqualValues(t, 0.75, body["availability_rate"])
}

func TestHandlerHidesStoreErrors(t *testing.T) {
	r := newReporter(countFunc(func() ([]rewardaccount.StatusCategoryCount, error) {
		return nil, errors.New("connection refused to 10.0.0.1")
	}), nil)

	resp, body := serve(t, r, "/v1/inventory/stats", "admin-1")
	require.Equal(t, http.StatusInternalServerError, resp.Code)
	require.NotContains(t, resp.Body.String(), "10.0.0.1")
	require.NotEmpty(t, body["error"])
}
