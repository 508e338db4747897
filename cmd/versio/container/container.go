package container

import (
	"context"
	"fmt"

	"github.com/versio-data/versio/cmd/versio/repository"
	"github.com/versio-data/versio/cmd/versio/service"
	"github.com/versio-data/versio/common/blob"
	"github.com/versio-data/versio/common/bootstrap"
	"github.com/versio-data/versio/common/cache"
	"github.com/versio-data/versio/common/ratelimit"
	rediscommon "github.com/versio-data/versio/common/redis"
)

// Container holds all initialized services and repositories (singleton pattern)
type Container struct {
	// Components
	Components *bootstrap.Components
	Redis      *rediscommon.Client
	Blobs      *blob.Registry
	Limiter    *ratelimit.RateLimiter

	// Repositories
	DatasetRepo  *repository.DatasetRepository
	ArtifactRepo *repository.ArtifactRepository
	VersionRepo  *repository.VersionRepository
	PointerRepo  *repository.PointerRepository
	SchemaRepo   *repository.SchemaSnapshotRepository

	// Services
	Datasets *service.DatasetService
	Store    *service.ArtifactStore
	Graph    *service.VersionGraph
	Registry *service.PointerRegistry
	Schemas  *service.SchemaTracker
	Composer *service.VersionComposer
}

// NewContainer initializes all services and repositories once
func NewContainer(ctx context.Context, components *bootstrap.Components) (*Container, error) {
	cfg := components.Config

	c := &Container{Components: components}

	// Redis is only needed for the redis cache backend and the rate
	// limiter; a file-backed single-node deployment runs without it
	needRedis := cfg.Cache.Backend == "redis" || cfg.RateLimit.Enabled
	if needRedis {
		redisRaw, err := rediscommon.Connect(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		c.Redis = rediscommon.NewClient(redisRaw, components.Logger)
		c.Limiter = ratelimit.NewRateLimiter(redisRaw, components.Logger)

		if cfg.Cache.Backend == "redis" && cfg.Cache.Enabled {
			swapCache(components, cache.NewRedisCache(c.Redis, cfg.Service.Name+":"))
		}
	}

	// Blob backends: register everything configured, write to the default
	blobs := blob.NewRegistry(cfg.Blob.Scheme)
	fileBackend, err := blob.NewFileBackend(cfg.Blob.FileRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to init file blob backend: %w", err)
	}
	blobs.Register(fileBackend)

	if cfg.Blob.Scheme == "s3" || cfg.Blob.S3AccessKey != "" {
		s3Backend, err := blob.NewS3Backend(ctx, cfg.Blob)
		if err != nil {
			return nil, fmt.Errorf("failed to init s3 blob backend: %w", err)
		}
		blobs.Register(s3Backend)
	}
	c.Blobs = blobs

	// Initialize repositories
	c.DatasetRepo = repository.NewDatasetRepository(components.DB)
	c.ArtifactRepo = repository.NewArtifactRepository(components.DB)
	c.VersionRepo = repository.NewVersionRepository(components.DB)
	c.PointerRepo = repository.NewPointerRepository(components.DB)
	c.SchemaRepo = repository.NewSchemaSnapshotRepository(components.DB)

	// Initialize services (bottom-up: dependencies first)
	c.Store = service.NewArtifactStore(c.ArtifactRepo, blobs, components.Logger)
	c.Graph = service.NewVersionGraph(c.VersionRepo, c.PointerRepo, c.Store, components.Logger)
	c.Registry = service.NewPointerRegistry(
		c.PointerRepo,
		c.VersionRepo,
		c.Graph,
		components.Cache,
		cfg.Cache.DefaultTTL,
		components.Logger,
	)
	c.Schemas = service.NewSchemaTracker(c.SchemaRepo, c.VersionRepo, components.Logger)
	c.Datasets = service.NewDatasetService(c.DatasetRepo, c.VersionRepo, c.Store, components.Logger)
	c.Composer = service.NewVersionComposer(
		c.DatasetRepo,
		c.Store,
		c.Graph,
		c.Registry,
		c.Schemas,
		components.Logger,
	)

	return c, nil
}

// swapCache replaces the bootstrap's default memory cache with another
// backend. The displaced cache is closed here so its janitor goroutine
// stops; the bootstrap cleanup closure closes whatever Components.Cache
// holds at shutdown, which after the swap is the replacement.
func swapCache(components *bootstrap.Components, replacement cache.Cache) {
	if components.Cache != nil {
		if err := components.Cache.Close(); err != nil {
			components.Logger.Warn("failed to close replaced cache backend", "error", err)
		}
	}
	components.Cache = replacement
}

// Close releases container-owned resources not managed by bootstrap
func (c *Container) Close() error {
	if c.Redis != nil {
		return c.Redis.Close()
	}
	return nil
}
