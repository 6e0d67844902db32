// Package main provides the router binary: it accepts the game server's
// channel connection and serves the request/reply protocol.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/multibot-games/pacrouter/internal/comm"
	"github.com/multibot-games/pacrouter/internal/config"
	"github.com/multibot-games/pacrouter/internal/game/agent"
	"github.com/multibot-games/pacrouter/internal/observability"
	"github.com/multibot-games/pacrouter/internal/router"
	"github.com/multibot-games/pacrouter/internal/server"
	"github.com/multibot-games/pacrouter/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	// Decision-type registry: built-ins plus YAML-defined types.
	registry := agent.NewRegistry()
	if err := registry.Register("random", agent.RandomFactory(cfg.Agents.RandomSeed)); err != nil {
		logger.Fatal("registering built-in types", zap.Error(err))
	}
	if cfg.Agents.DefinitionsDir != "" {
		if err := agent.RegisterDefinitions(registry, cfg.Agents.DefinitionsDir, cfg.Agents.ScriptInstructionLimit); err != nil {
			logger.Fatal("loading agent definitions",
				zap.String("dir", cfg.Agents.DefinitionsDir), zap.Error(err))
		}
	}
	logger.Info("decision types registered", zap.Int("count", registry.Types()))

	// Optional policy persistence.
	var pool *postgres.Pool
	var store router.PolicyStore
	if cfg.Database.Enabled {
		dbStart := time.Now()
		pool, err = postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			logger.Fatal("connecting to database", zap.Error(err))
		}
		store = postgres.NewPolicyRepository(pool.DB())
		logger.Info("policy store connected",
			zap.String("host", cfg.Database.Host),
			zap.Duration("elapsed", time.Since(dbStart)),
		)
	}

	acceptor, err := comm.Listen(cfg.Channel.Addr(), cfg.Channel.WriteTimeout)
	if err != nil {
		logger.Fatal("listening on channel address",
			zap.String("addr", cfg.Channel.Addr()), zap.Error(err))
	}

	lifecycle := server.NewLifecycle(logger)

	lifecycle.Add("router", &server.FuncService{
		StartFn: func() error {
			logger.Info("channel listening", zap.String("addr", acceptor.Addr().String()))
			for {
				messenger, err := acceptor.Accept()
				if err != nil {
					return err
				}
				logger.Info("game server connected",
					zap.String("peer", messenger.RemoteAddr().String()))

				controller, err := router.New(messenger, registry, router.Config{
					AttackerTeam: cfg.Router.AttackerTeam,
					Store:        store,
				}, observability.ComponentLogger(logger, "router"))
				if err != nil {
					return err
				}

				if err := controller.Run(ctx); err != nil {
					logger.Warn("channel session ended", zap.Error(err))
				}
				if err := controller.Close(); err != nil {
					logger.Warn("releasing instances", zap.Error(err))
				}
				messenger.Close()
			}
		},
		StopFn: func() {
			acceptor.Close()
		},
	})

	if pool != nil {
		lifecycle.Add("postgres", &server.FuncService{
			StartFn: func() error {
				for {
					time.Sleep(30 * time.Second)
					if err := pool.Health(ctx, 5*time.Second); err != nil {
						logger.Warn("database health check failed", zap.Error(err))
					}
				}
			},
			StopFn: func() {
				pool.Close()
			},
		})
	}

	logger.Info("router initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("addr", cfg.Channel.Addr()),
		zap.String("attacker_team", cfg.Router.AttackerTeam),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("router error", zap.Error(err))
	}
}
