// Package app assembles the services from configuration. The api, worker and
// admin commands share it so every process sees the same backends.
package app

import (
	"context"
	"log"

	"classattend/internal/attendance"
	"classattend/internal/auth"
	"classattend/internal/cache"
	"classattend/internal/catalog"
	"classattend/internal/config"
	"classattend/internal/identity"
	"classattend/internal/membership"
	"classattend/internal/qrcode"
	"classattend/internal/queue"
	"classattend/internal/seed"
	"classattend/internal/store"
	"classattend/internal/store/memory"
	"classattend/internal/store/migrations"
	"classattend/internal/store/postgres"
)

// Repository is everything a backend store provides.
type Repository interface {
	identity.Repository
	catalog.Repository
	membership.Repository
	attendance.Repository
	qrcode.Repository
}

// Tally is the attendance projection read by the ledger and fed by the worker.
type Tally interface {
	attendance.TallyReader
	attendance.TallyWriter
}

// Components are the wired services plus the backends behind them.
type Components struct {
	Config config.App

	DB    *store.DB
	Redis *store.Redis
	Repo  Repository

	Queue       queue.Queue
	Tally       Tally
	Roster      membership.RosterCache
	Revocations auth.Revoker

	Users   *identity.Service
	Catalog *catalog.Service
	Members *membership.Engine
	Ledger  *attendance.Ledger
	Codes   *qrcode.Service
}

// Build opens the configured backends and wires the services over them.
func Build(cfg config.App) (*Components, error) {
	c := &Components{Config: cfg}

	switch cfg.StoreBackend {
	case "memory":
		log.Println("store: in-memory, data is lost on exit")
		c.Repo = memory.New()
	default:
		db, err := store.NewDB(cfg.DatabaseURL, cfg.DBMaxOpenConns, cfg.DBQueryTimeout)
		if err != nil {
			if db == nil {
				return nil, err
			}
			log.Printf("warning: db not reachable: %v", err)
		}
		c.DB = db
		c.Repo = postgres.New(db.Client)
	}

	if cfg.CacheBackend == "redis" || cfg.QueueBackend == "redis" {
		c.Redis = store.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	}

	if cfg.CacheBackend == "redis" {
		c.Tally = cache.NewTally(c.Redis.Client)
		c.Roster = cache.NewRoster(c.Redis.Client, cfg.RosterCacheTTL)
		c.Revocations = cache.NewRevocations(c.Redis.Client)
	} else {
		c.Tally = cache.NewMemoryTally()
		c.Roster = cache.NewMemoryRoster(cfg.RosterCacheTTL)
		c.Revocations = cache.NewMemoryRevocations()
	}

	if cfg.QueueBackend == "redis" {
		c.Queue = queue.NewRedisQueue(c.Redis.Client, cfg.QueueKey)
	} else {
		c.Queue = queue.NewInMemory(256)
	}

	c.Users = identity.NewService(c.Repo)
	c.Catalog = catalog.NewService(c.Repo)
	c.Members = membership.NewEngine(c.Repo, c.Roster)
	c.Codes = qrcode.NewService(c.Repo)
	c.Ledger = attendance.NewLedger(c.Repo, c.Codes, c.Queue, c.Tally)
	return c, nil
}

// Migrate applies the schema when the store is Postgres.
func (c *Components) Migrate(ctx context.Context) error {
	if c.DB == nil {
		return nil
	}
	return migrations.Run(ctx, c.DB.Client)
}

// Seed loads the demo dataset into an empty store.
func (c *Components) Seed(ctx context.Context, password string) (bool, error) {
	return seed.Run(ctx, seed.Services{
		Users:   c.Users,
		Catalog: c.Catalog,
		Members: c.Members,
		Ledger:  c.Ledger,
	}, password)
}

// Sessions returns the session manager for the configured secret.
func (c *Components) Sessions() *auth.Sessions {
	return &auth.Sessions{
		Key:     c.Config.SessionSecret,
		Issuer:  c.Config.SessionIssuer,
		TTL:     c.Config.SessionTTL,
		Secure:  c.Config.Production(),
		Users:   c.Users,
		Revoked: c.Revocations,
	}
}

// Healthy reports per-backend reachability. Backends not in use are omitted.
func (c *Components) Healthy(ctx context.Context) (map[string]bool, bool) {
	status := map[string]bool{}
	ok := true
	if c.DB != nil {
		status["db"] = c.DB.Healthy(ctx)
		ok = ok && status["db"]
	}
	if c.Redis != nil {
		status["redis"] = c.Redis.Healthy(ctx)
		ok = ok && status["redis"]
	}
	return status, ok
}

// Close releases the backends.
func (c *Components) Close() {
	if err := c.DB.Close(); err != nil {
		log.Printf("close db: %v", err)
	}
	if err := c.Redis.Close(); err != nil {
		log.Printf("close redis: %v", err)
	}
}
