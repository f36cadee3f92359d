package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"rewardvault/pkg/errutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
	gin.SetMode(gin.TestMode)
}

type errorBody struct {
	Error struct {
		Code    string           `json:"code"`
		Message string           `json:"message"`
		Details []errutil.Detail `json:"details"`
	} `json:"error"`
}

func serve(r *gin.Engine, path string, header map[string]string) (*httptest.ResponseRecorder, errorBody) {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	var body errorBody
	_ = json.Unmarshal(resp.Body.Bytes(), &body)
	return resp, body
}

func TestErrorRendersBaseError(t *testing.T) {
	r := gin.New()
	r.Use(Error())
	r.GET("/conflict", func(c *gin.Context) {
		_ = c.Error(errutil.Conflict("reward account is not available", errors.New("driver detail")))
	})
	r.GET("/plain", func(c *gin.Context) {
		_ = c.Error(errors.New("pq: connection refused"))
	})

	resp, body := serve(r, "/conflict", nil)
	require.Equal(t, http.StatusConflict, resp.Code)
	require.Equal(t, "CONFLICT", body.Error.Code)
	require.Equal(t, "reward account is not available", body.Error.Message)
	require.NotContains(t, resp.Body.String(), "driver detail")

	resp, body = serve(r, "/plain", nil)
	require.Equal(t, http.StatusInternalServerError, resp.Code)
	require.Equal(t, "INTERNAL", body.Error.Code)
	require.NotContains(t, resp.Body.String(), "pq:")
}

func TestActor(t *testing.T) {
	r := gin.New()
	r.Use(Error())
	r.GET("/me", Actor(), func(c *gin.Context) {
		c.String(http.StatusOK, ActorFrom(c.Request.Context()))
	})

	resp, body := serve(r, "/me", nil)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
	require.Equal(t, "UNAUTHORIZED", body.Error.Code)

	resp, _ = serve(r, "/me", map[string]string{AdminIDHeader: " admin-7 "})
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "admin-7", resp.Body.String())
}
