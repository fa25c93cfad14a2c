package apiv1

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReindexRunsInBackgroundUnderProcessContext(t *testing.T) {
	baseCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan context.Context, 1)
	e := echo.New()
	NewIndexGroup(e.Group("/api/v1/index"), baseCtx, map[string]func(ctx context.Context) error{
		"patient": func(ctx context.Context) error {
			received <- ctx
			return nil
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/index/patient/reindex", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var rebuildCtx context.Context
	select {
	case rebuildCtx = <-received:
	case <-time.After(time.Second):
		t.Fatal("rebuild never started")
	}

	// The rebuild inherits the process context, so cancelling it aborts any
	// in-flight rebuild instead of orphaning it
	assert.NoError(t, rebuildCtx.Err())
	cancel()
	assert.ErrorIs(t, rebuildCtx.Err(), context.Canceled)
}

func TestReindexUnknownIndex(t *testing.T) {
	e := echo.New()
	NewIndexGroup(e.Group("/api/v1/index"), context.Background(), map[string]func(ctx context.Context) error{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/index/unknown/reindex", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
