// Package db persists analysis job history in SurrealDB over an
// auto-reconnecting WebSocket connection.
package db

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/contrib/rews"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	"github.com/surrealdb/surrealdb.go/pkg/logger"
	"github.com/surrealdb/surrealdb.go/surrealcbor"
)

func init() {
	// WebSocket upgrades fail when wss negotiates HTTP/2 via ALPN.
	gorillaws.DefaultDialer.TLSClientConfig = &tls.Config{
		NextProtos: []string{"http/1.1"},
	}
}

// Auth levels accepted in Config.AuthLevel.
const (
	AuthRoot     = "root"
	AuthDatabase = "database"
)

// ErrInvalidAuthLevel is returned for an AuthLevel other than root or database.
var ErrInvalidAuthLevel = errors.New("invalid auth level")

// Config holds SurrealDB connection configuration.
type Config struct {
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string
	AuthLevel string // AuthRoot (default) or AuthDatabase
}

// auth builds the sign-in credentials for the configured level. Database
// users only exist inside their namespace and database.
func (cfg Config) auth() (surrealdb.Auth, error) {
	switch cfg.AuthLevel {
	case "", AuthRoot:
		return surrealdb.Auth{Username: cfg.Username, Password: cfg.Password}, nil
	case AuthDatabase:
		return surrealdb.Auth{
			Namespace: cfg.Namespace,
			Database:  cfg.Database,
			Username:  cfg.Username,
			Password:  cfg.Password,
		}, nil
	}
	return surrealdb.Auth{}, fmt.Errorf("%w: %q", ErrInvalidAuthLevel, cfg.AuthLevel)
}

// Client holds the job history connection.
type Client struct {
	conn   *rews.Connection[*gorillaws.Connection]
	db     *surrealdb.DB
	logger logger.Logger
}

// NewClient connects, signs in and selects the job history database.
func NewClient(ctx context.Context, cfg Config, log *slog.Logger) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	sdkLogger := logger.New(log.Handler())

	auth, err := cfg.auth()
	if err != nil {
		return nil, err
	}

	conn := newConnection(cfg.URL, sdkLogger)
	sdkLogger.Info("connecting to job history store", "url", cfg.URL)
	if err := conn.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	db, err := openDB(ctx, conn, cfg, auth)
	if err != nil {
		_ = conn.Close(ctx)
		return nil, err
	}

	sdkLogger.Info("job history store ready",
		"namespace", cfg.Namespace,
		"database", cfg.Database,
		"auth_level", cfg.AuthLevel,
	)
	return &Client{conn: conn, db: db, logger: sdkLogger}, nil
}

// newConnection builds a reconnecting connection. gorillaws appends /rpc
// itself, so a trailing /rpc in url is dropped.
func newConnection(url string, sdkLogger logger.Logger) *rews.Connection[*gorillaws.Connection] {
	codec := surrealcbor.New()
	baseURL := strings.TrimSuffix(url, "/rpc")

	conn := rews.New(
		func(ctx context.Context) (*gorillaws.Connection, error) {
			return gorillaws.New(&connection.Config{
				BaseURL:     baseURL,
				Marshaler:   codec,
				Unmarshaler: codec,
				Logger:      sdkLogger,
			}), nil
		},
		5*time.Second,
		codec,
		sdkLogger,
	)

	retryer := rews.NewExponentialBackoffRetryer()
	retryer.InitialDelay = time.Second
	retryer.MaxDelay = 30 * time.Second
	retryer.Multiplier = 2.0
	retryer.MaxRetries = 10
	conn.Retryer = retryer
	return conn
}

func openDB(ctx context.Context, conn *rews.Connection[*gorillaws.Connection], cfg Config, auth surrealdb.Auth) (*surrealdb.DB, error) {
	db, err := surrealdb.FromConnection(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("from connection: %w", err)
	}
	if _, err := db.SignIn(ctx, auth); err != nil {
		return nil, fmt.Errorf("signin as %s: %w", cfg.Username, err)
	}
	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		return nil, fmt.Errorf("use %s/%s: %w", cfg.Namespace, cfg.Database, err)
	}
	return db, nil
}

// Close closes the connection.
func (c *Client) Close(ctx context.Context) error {
	c.logger.Info("closing job history connection")
	return c.conn.Close(ctx)
}

// InitSchema defines the analysis_job table and its indexes.
func (c *Client) InitSchema(ctx context.Context) error {
	if _, err := surrealdb.Query[any](ctx, c.db, SchemaSQL, nil); err != nil {
		return fmt.Errorf("init schema: %w", wrapQueryError(err))
	}
	c.logger.Info("job history schema ready", "table", "analysis_job")
	return nil
}

// WipeData deletes every recorded job and returns how many there were.
// The schema is kept. Use for testing only.
func (c *Client) WipeData(ctx context.Context) (int, error) {
	results, err := surrealdb.Query[[]map[string]any](ctx, c.db, "DELETE analysis_job RETURN BEFORE", nil)
	if err != nil {
		return 0, fmt.Errorf("wipe jobs: %w", wrapQueryError(err))
	}
	n := 0
	if results != nil && len(*results) > 0 {
		n = len((*results)[0].Result)
	}
	c.logger.Warn("job history wiped", "deleted", n)
	return n, nil
}
