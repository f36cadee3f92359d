package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/vault-client-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("health", fx.Provide(ProvideHealth))

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"

	checkTimeout = 2 * time.Second
)

type Dependency struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type Health struct {
	Status  string       `json:"status"`
	Message string       `json:"message"`
	Deps    []Dependency `json:"deps"`
}

type HealthService interface {
	Liveness(c *gin.Context)
	Readiness(c *gin.Context)
}

type check struct {
	name string
	ping func(ctx context.Context) error
}

type health struct {
	checks []check
}

type HealthParams struct {
	fx.In
	DB    *gorm.DB      `optional:"true"`
	Redis *redis.Client `optional:"true"`
	Vault *vault.Client `optional:"true"`
}

func ProvideHealth(p HealthParams) HealthService {
	h := &health{}

	if p.DB != nil {
		h.checks = append(h.checks, check{name: p.DB.Name(), ping: func(ctx context.Context) error {
			sql, err := p.DB.DB()
			if err != nil {
				return err
			}
			return sql.PingContext(ctx)
		}})
	}

	if p.Redis != nil {
		h.checks = append(h.checks, check{name: "redis", ping: func(ctx context.Context) error {
			return p.Redis.Ping(ctx).Err()
		}})
	}

	if p.Vault != nil {
		h.checks = append(h.checks, check{name: "vault", ping: func(ctx context.Context) error {
			_, err := p.Vault.System.ReadHealthStatus(ctx)
			return err
		}})
	}

	return h
}

func (h *health) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, &Health{
		Status:  statusHealthy,
		Message: "OK",
	})
}

// Readiness pings every configured dependency and answers 503 when any of
// them fails.
func (h *health) Readiness(c *gin.Context) {
	this := &Health{
		Status:  statusHealthy,
		Message: "OK",
		Deps:    make([]Dependency, 0, len(h.checks)),
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
	defer cancel()

	code := http.StatusOK
	for _, chk := range h.checks {
		dep := Dependency{
			Name:    chk.name,
			Status:  statusHealthy,
			Message: "OK",
		}

		if err := chk.ping(ctx); err != nil {
			dep.Status = statusUnhealthy
			dep.Message = err.Error()
			this.Status = statusUnhealthy
			this.Message = "dependency unavailable"
			code = http.StatusServiceUnavailable
		}

		this.Deps = append(this.Deps, dep)
	}

	c.JSON(code, this)
}
