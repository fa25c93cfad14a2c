package apiv1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/doherty-labs/health-app-demo/pkg/common"
	"github.com/doherty-labs/health-app-demo/pkg/repository"
)

type HealthGroup struct {
	routeGroup *echo.Group
	backend    *repository.PostgresBackend
	rdb        *common.RedisClient
}

func NewHealthGroup(g *echo.Group, backend *repository.PostgresBackend, rdb *common.RedisClient) *HealthGroup {
	group := &HealthGroup{
		routeGroup: g,
		backend:    backend,
		rdb:        rdb,
	}

	g.GET("", group.HealthCheck)
	return group
}

func (g *HealthGroup) HealthCheck(ctx echo.Context) error {
	c := ctx.Request().Context()

	if err := g.backend.Ping(c); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "postgres unavailable")
	}
	if err := g.rdb.Ping(c).Err(); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "redis unavailable")
	}

	return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
