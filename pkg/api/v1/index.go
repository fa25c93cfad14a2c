package apiv1

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

type IndexGroup struct {
	routeGroup *echo.Group

	// baseCtx scopes background rebuilds to the process lifetime so a
	// shutdown aborts any in-flight migration instead of orphaning it
	baseCtx context.Context

	// reindexers maps logical index name to its rebuild entrypoint
	reindexers map[string]func(ctx context.Context) error
}

func NewIndexGroup(g *echo.Group, baseCtx context.Context, reindexers map[string]func(ctx context.Context) error) *IndexGroup {
	group := &IndexGroup{
		routeGroup: g,
		baseCtx:    baseCtx,
		reindexers: reindexers,
	}

	g.POST("/:name/reindex", group.Reindex)
	return group
}

// Reindex kicks off a full rebuild of the named index. The rebuild runs in
// the background: it can hold the migration lock for a long time and the
// read alias keeps serving throughout, so there is nothing to wait on.
func (g *IndexGroup) Reindex(ctx echo.Context) error {
	name := ctx.Param("name")
	recreate, ok := g.reindexers[name]
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown index")
	}

	go func() {
		if err := recreate(g.baseCtx); err != nil {
			log.Error().Err(err).Str("index", name).Msg("reindex failed")
		}
	}()

	return ctx.JSON(http.StatusAccepted, map[string]string{"status": "reindex started", "index": name})
}
