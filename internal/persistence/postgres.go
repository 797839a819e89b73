package persistence

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spec-kit/support-chat/internal/config"
)

const pgChangeChannel = "support_kv_changes"

const pgSchema = `
CREATE TABLE IF NOT EXISTS support_kv (
    key        TEXT PRIMARY KEY,
    value      BYTEA NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Postgres backs the KV and Notifier contracts with a single key-value
// table; LISTEN/NOTIFY carries cross-process change notifications.
type Postgres struct {
	Pool   *pgxpool.Pool
	dsn    string
	logger *zap.Logger
}

// NewPostgres establishes a connection pool and ensures the kv table exists.
func NewPostgres(ctx context.Context, cfg config.PostgresConfig, logger *zap.Logger) (*Postgres, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.ConnMaxIdleSec > 0 {
		poolCfg.MaxConnIdleTime = time.Duration(cfg.ConnMaxIdleSec) * time.Second
	}
	if cfg.ConnMaxLifeSec > 0 {
		poolCfg.MaxConnLifetime = time.Duration(cfg.ConnMaxLifeSec) * time.Second
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("connected to postgres")
	return &Postgres{Pool: pool, dsn: cfg.DSN, logger: logger}, nil
}

// Get returns the value at key, or (nil, nil) when absent.
func (p *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := p.Pool.QueryRow(ctx, `SELECT value FROM support_kv WHERE key=$1`, key).Scan(&value)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Set upserts value at key.
func (p *Postgres) Set(ctx context.Context, key string, value []byte) error {
	_, err := p.Pool.Exec(ctx, `
        INSERT INTO support_kv (key, value, updated_at) VALUES ($1, $2, NOW())
        ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=NOW()`,
		key, value)
	return err
}

// Incr atomically bumps the decimal counter stored at key.
func (p *Postgres) Incr(ctx context.Context, key string) (int64, error) {
	var next int64
	err := p.Pool.QueryRow(ctx, `
        INSERT INTO support_kv (key, value, updated_at) VALUES ($1, '1'::bytea, NOW())
        ON CONFLICT (key) DO UPDATE
            SET value = (convert_from(support_kv.value, 'UTF8')::bigint + 1)::text::bytea,
                updated_at = NOW()
        RETURNING convert_from(value, 'UTF8')::bigint`,
		key).Scan(&next)
	return next, err
}

// Close releases pool resources.
func (p *Postgres) Close() error {
	if p != nil && p.Pool != nil {
		p.Pool.Close()
	}
	return nil
}

// Ping verifies database connectivity.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.Pool.Ping(ctx)
}

// Publish announces a key change with the writer's origin id.
func (p *Postgres) Publish(ctx context.Context, key, origin string) error {
	_, err := p.Pool.Exec(ctx, `SELECT pg_notify($1, $2)`, pgChangeChannel, key+"|"+origin)
	return err
}

// Subscribe holds a dedicated connection in LISTEN mode and forwards
// notifications until the returned cancel runs.
func (p *Postgres) Subscribe(ctx context.Context, fn func(key, origin string)) (func(), error) {
	listenCtx, cancel := context.WithCancel(ctx)

	conn, err := pgx.Connect(listenCtx, p.dsn)
	if err != nil {
		cancel()
		return nil, err
	}
	if _, err := conn.Exec(listenCtx, `LISTEN `+pgChangeChannel); err != nil {
		cancel()
		_ = conn.Close(context.Background())
		return nil, err
	}

	go func() {
		defer func() { _ = conn.Close(context.Background()) }()
		for {
			notification, err := conn.WaitForNotification(listenCtx)
			if err != nil {
				if listenCtx.Err() == nil {
					p.logger.Warn("kv change listener stopped", zap.Error(err))
				}
				return
			}
			key, origin, ok := splitChangePayload(notification.Payload)
			if !ok {
				continue
			}
			fn(key, origin)
		}
	}()

	return cancel, nil
}
