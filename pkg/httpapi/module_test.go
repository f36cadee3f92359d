package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"rewardvault/pkg/config"
	"rewardvault/pkg/errutil"
	"rewardvault/pkg/health"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestEngineOpsEndpoints(t *testing.T) {
	r := NewEngine(&config.Config{})
	registerOpsEndpoints(r, health.ProvideHealth(health.HealthParams{}))
	r.GET("/boom", func(c *gin.Context) {
		_ = c.Error(errutil.NotFound("reward account not found", nil))
	})

	for path, want := range map[string]int{
		"/healthz": http.StatusOK,
		"/readyz":  http.StatusOK,
		"/metrics": http.StatusOK,
		"/boom":    http.StatusNotFound,
	} {
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, want, resp.Code, path)
	}
}
