package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/edu-cms/pkg/educms"
	redisevents "github.com/tendant/edu-cms/pkg/educms/events/redis"
	fsmedia "github.com/tendant/edu-cms/pkg/educms/media/fs"
	memorymedia "github.com/tendant/edu-cms/pkg/educms/media/memory"
	s3media "github.com/tendant/edu-cms/pkg/educms/media/s3"
	"github.com/tendant/edu-cms/pkg/educms/repo/memory"
	"github.com/tendant/edu-cms/pkg/educms/repo/mongodb"
	repopg "github.com/tendant/edu-cms/pkg/educms/repo/postgres"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Database types
const (
	DatabaseMemory   = "memory"
	DatabasePostgres = "postgres"
	DatabaseMongo    = "mongodb"
)

// Media backend types
const (
	MediaMemory = "memory"
	MediaFS     = "fs"
	MediaS3     = "s3"
)

const defaultMongoDatabase = "educms"

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:           "8080",
		Environment:    "development",
		DatabaseType:   DatabaseMemory,
		Media:          MediaConfig{Type: MediaMemory},
		RedisChannel:   redisevents.DefaultChannel,
		DeleteAttempts: 3,
		DeleteBackoff:  100 * time.Millisecond,
	}
}

// ServerConfig represents server configuration for the educms service
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Database configuration
	DatabaseURL   string
	DatabaseType  string // "memory", "postgres", "mongodb"
	DBSchema      string // Postgres schema to use; empty keeps the server default
	MongoDatabase string // Mongo database name; taken from the URL path when empty

	Media MediaConfig

	// Event publishing; disabled when RedisURL is empty
	RedisURL     string
	RedisChannel string

	// Deletion orchestration
	DeleteAttempts int
	DeleteBackoff  time.Duration
}

// MediaConfig selects and configures the media backend.
type MediaConfig struct {
	Type    string // "memory", "fs", "s3"
	BaseDir string // fs only
	S3      s3media.Config
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	switch c.DatabaseType {
	case DatabaseMemory:
	case DatabasePostgres, DatabaseMongo:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database_url is required when using %s", c.DatabaseType)
		}
	default:
		return errors.New("database_type must be 'memory', 'postgres' or 'mongodb'")
	}

	switch c.Media.Type {
	case MediaMemory:
	case MediaFS:
		if c.Media.BaseDir == "" {
			return errors.New("media base_dir is required for fs media")
		}
	case MediaS3:
		if c.Media.S3.Bucket == "" {
			return errors.New("media bucket is required for s3 media")
		}
	default:
		return fmt.Errorf("unsupported media backend type: %s", c.Media.Type)
	}

	if c.DeleteAttempts < 1 {
		return errors.New("delete_attempts must be at least 1")
	}
	if c.DeleteBackoff < 0 {
		return errors.New("delete_backoff must not be negative")
	}
	return nil
}

// Runtime holds a built service together with the resources it owns.
type Runtime struct {
	Service educms.Service
	Media   educms.MediaStore

	closers []func()
}

// Close releases database pools, clients and connections in reverse order.
func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.closers = nil
}

// BuildService creates a Service instance from the server configuration.
// Extra options are applied after the configured ones.
func (c *ServerConfig) BuildService(ctx context.Context, extra ...educms.Option) (*Runtime, error) {
	rt := &Runtime{}
	ok := false
	defer func() {
		if !ok {
			rt.Close()
		}
	}()

	repo, err := c.buildRepository(ctx, rt)
	if err != nil {
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}

	media, err := c.buildMediaStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build media store: %w", err)
	}
	rt.Media = media

	opts := []educms.Option{
		educms.WithRepository(repo),
		educms.WithMediaStore(media),
		educms.WithDeleteAttempts(c.DeleteAttempts),
		educms.WithDeleteBackoff(c.DeleteBackoff),
	}

	if c.RedisURL != "" {
		client, err := redisevents.Dial(ctx, c.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect event sink: %w", err)
		}
		rt.closers = append(rt.closers, func() { _ = client.Close() })
		opts = append(opts, educms.WithEventSink(redisevents.New(client, c.RedisChannel)))
	}

	svc, err := educms.New(append(opts, extra...)...)
	if err != nil {
		return nil, err
	}
	rt.Service = svc
	ok = true
	return rt, nil
}

// buildRepository creates a Repository based on the configuration
func (c *ServerConfig) buildRepository(ctx context.Context, rt *Runtime) (educms.Repository, error) {
	switch c.DatabaseType {
	case DatabaseMemory:
		return memory.New(), nil

	case DatabasePostgres:
		pool, err := c.openPostgres(ctx)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, pool.Close)
		repo := repopg.NewWithPool(pool)
		if err := repo.Migrate(ctx); err != nil {
			return nil, err
		}
		return repo, nil

	case DatabaseMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(c.DatabaseURL))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
		}
		rt.closers = append(rt.closers, func() { _ = client.Disconnect(context.Background()) })

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx, nil); err != nil {
			return nil, fmt.Errorf("mongodb ping failed: %w", err)
		}
		repo := mongodb.New(client.Database(c.mongoDatabase()))
		if err := repo.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		return repo, nil

	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

// openPostgres creates a pool whose sessions use DBSchema, creating the
// schema first when it is missing.
func (c *ServerConfig) openPostgres(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(c.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	schema := c.DBSchema
	if schema != "" {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			if _, err := conn.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{schema}.Sanitize()); err != nil {
				return err
			}
			_, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize())
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return pool, nil
}

func (c *ServerConfig) mongoDatabase() string {
	if c.MongoDatabase != "" {
		return c.MongoDatabase
	}
	if u, err := url.Parse(c.DatabaseURL); err == nil {
		if name := strings.Trim(u.Path, "/"); name != "" {
			return name
		}
	}
	return defaultMongoDatabase
}

// buildMediaStore creates a MediaStore based on the media configuration
func (c *ServerConfig) buildMediaStore(ctx context.Context) (educms.MediaStore, error) {
	switch c.Media.Type {
	case MediaMemory:
		return memorymedia.New(), nil
	case MediaFS:
		return fsmedia.New(fsmedia.Config{BaseDir: c.Media.BaseDir})
	case MediaS3:
		return s3media.New(ctx, c.Media.S3)
	default:
		return nil, fmt.Errorf("unsupported media backend type: %s", c.Media.Type)
	}
}
