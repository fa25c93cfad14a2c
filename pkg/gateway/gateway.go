package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	apiv1 "github.com/doherty-labs/health-app-demo/pkg/api/v1"
	"github.com/doherty-labs/health-app-demo/pkg/cache"
	"github.com/doherty-labs/health-app-demo/pkg/common"
	"github.com/doherty-labs/health-app-demo/pkg/index"
	"github.com/doherty-labs/health-app-demo/pkg/repository"
	"github.com/doherty-labs/health-app-demo/pkg/types"
)

// Gateway owns the component graph: redis, postgres, the index backend, one
// sync service per entity index, and the HTTP server that fronts them.
type Gateway struct {
	Config types.AppConfig

	rdb        *common.RedisClient
	backend    *repository.PostgresBackend
	store      index.IndexStore
	lock       *common.RedisLock
	snapshots  *cache.Cache
	httpServer *echo.Echo

	// Services maps logical index name to its sync service
	Services map[string]*index.Service

	Patients     repository.PatientRepository
	Practices    repository.PracticeRepository
	Appointments repository.AppointmentRepository

	ctx        context.Context
	cancelFunc context.CancelFunc
}

// NewGateway loads the configuration and builds a gateway against real
// backends.
func NewGateway() (*Gateway, error) {
	configManager, err := common.NewConfigManager[types.AppConfig]()
	if err != nil {
		return nil, err
	}
	return NewGatewayFromConfig(configManager.GetConfig())
}

// NewGatewayFromConfig builds a gateway against real backends: redis,
// postgres with migrations applied, and the configured search cluster.
// Callers that need the configuration before the graph comes up (logging
// setup in the entrypoints) load it themselves and pass it in.
func NewGatewayFromConfig(cfg types.AppConfig) (*Gateway, error) {
	rdb, err := common.NewRedisClient(cfg.Database.Redis, common.WithClientName("gateway"))
	if err != nil {
		return nil, err
	}

	backend, err := repository.NewPostgresBackend(cfg.Database.Postgres)
	if err != nil {
		return nil, err
	}
	if err := backend.RunMigrations(); err != nil {
		return nil, err
	}

	store, err := index.NewElasticIndexStore(cfg.Elastic)
	if err != nil {
		return nil, err
	}

	return NewGatewayWithComponents(cfg, rdb, backend, store)
}

// NewGatewayWithComponents wires the graph from caller-supplied backends,
// letting local setups swap in miniredis or the in-memory index store.
func NewGatewayWithComponents(cfg types.AppConfig, rdb *common.RedisClient, backend *repository.PostgresBackend, store index.IndexStore) (*Gateway, error) {
	ctx, cancel := context.WithCancel(context.Background())

	gw := &Gateway{
		Config:     cfg,
		rdb:        rdb,
		backend:    backend,
		store:      store,
		lock:       common.NewRedisLock(rdb),
		snapshots:  cache.New(rdb, cfg.Cache.TTL),
		ctx:        ctx,
		cancelFunc: cancel,
	}

	gw.Services = map[string]*index.Service{}
	for _, logical := range []index.LogicalIndex{
		index.PatientIndex(),
		index.PracticeIndex(),
		index.AppointmentIndex(),
	} {
		gw.Services[logical.Name] = index.NewService(logical, store, gw.lock, cfg.Index)
	}

	patients := repository.NewPatientPostgresRepository(backend, gw.Services[index.PatientIndexName])
	gw.Patients = patients
	gw.Practices = repository.NewPracticePostgresRepository(backend, gw.Services[index.PracticeIndexName], gw.snapshots)
	gw.Appointments = repository.NewAppointmentPostgresRepository(backend, gw.Services[index.AppointmentIndexName], patients)

	// Appointment documents embed the patient snapshot, so a committed
	// patient write must also refresh that patient's appointment documents
	patients.OnChange(func(ctx context.Context, patientId int64) error {
		return gw.Appointments.UpdateIndexByPatientID(ctx, patientId)
	})

	if err := gw.initHTTP(); err != nil {
		return nil, err
	}

	return gw, nil
}

func (gw *Gateway) initHTTP() error {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())

	cors := gw.Config.Gateway.HTTP.CORS
	if len(cors.AllowedOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cors.AllowedOrigins,
			AllowHeaders: cors.AllowedHeaders,
			AllowMethods: cors.AllowedMethods,
		}))
	}

	apiv1.NewHealthGroup(e.Group("/api/v1/health"), gw.backend, gw.rdb)
	apiv1.NewSearchGroup(e.Group("/api/v1"), gw.Patients, gw.Practices, gw.Appointments)
	apiv1.NewIndexGroup(e.Group("/api/v1/index"), gw.ctx, gw.reindexers())

	gw.httpServer = e
	return nil
}

// reindexers maps logical index name to its rebuild entrypoint
func (gw *Gateway) reindexers() map[string]func(ctx context.Context) error {
	return map[string]func(ctx context.Context) error{
		index.PatientIndexName:     gw.Patients.RecreateIndex,
		index.PracticeIndexName:    gw.Practices.RecreateIndex,
		index.AppointmentIndexName: gw.Appointments.RecreateIndex,
	}
}

// Start runs the HTTP server until the context is cancelled
func (gw *Gateway) Start() error {
	addr := fmt.Sprintf("%s:%d", gw.Config.Gateway.HTTP.Host, gw.Config.Gateway.HTTP.Port)
	log.Info().Str("addr", addr).Msg("gateway http server starting")

	if err := gw.httpServer.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// CreateIndexes provisions every registered entity index that does not
// already exist. Safe to run on every boot; replicas racing through startup
// serialize on the init lock so an index is only ever provisioned once.
func (gw *Gateway) CreateIndexes(ctx context.Context) error {
	lockKey := common.Keys.GatewayInitLock("indexes")
	if err := gw.lock.Acquire(ctx, lockKey, common.RedisLockOptions{TtlS: 60, Blocking: true}); err != nil {
		return err
	}
	defer func() {
		if err := gw.lock.Release(lockKey); err != nil {
			log.Error().Err(err).Msg("failed to release init lock")
		}
	}()

	for name, svc := range gw.Services {
		if err := svc.EnsureIndex(ctx); err != nil {
			return fmt.Errorf("failed to ensure index %s: %w", name, err)
		}
	}
	return nil
}

// ReindexAll rebuilds every registered entity index in parallel. Each rebuild
// holds its own per-index migration lock, so concurrent entity rebuilds do
// not serialize against each other.
func (gw *Gateway) ReindexAll(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for name, recreate := range gw.reindexers() {
		name, recreate := name, recreate
		g.Go(func() error {
			started := time.Now()
			if err := recreate(ctx); err != nil {
				return fmt.Errorf("failed to reindex %s: %w", name, err)
			}
			log.Info().Str("index", name).Dur("took", time.Since(started)).Msg("reindex finished")
			return nil
		})
	}
	return g.Wait()
}

// ResetIndexes deletes every generation behind every registered index and
// provisions fresh empty ones. Destructive; meant for development resets.
func (gw *Gateway) ResetIndexes(ctx context.Context) error {
	for name, svc := range gw.Services {
		if err := svc.DeleteIndex(ctx); err != nil {
			return fmt.Errorf("failed to delete index %s: %w", name, err)
		}
		log.Info().Str("index", name).Msg("index deleted")
	}
	return gw.CreateIndexes(ctx)
}

// Shutdown stops the HTTP server and closes every backend connection
func (gw *Gateway) Shutdown(ctx context.Context) error {
	gw.cancelFunc()

	if gw.httpServer != nil {
		if err := gw.httpServer.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("failed to shut down http server")
		}
	}
	if err := gw.store.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close index store")
	}
	if err := gw.backend.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close postgres")
	}
	return gw.rdb.Close()
}
