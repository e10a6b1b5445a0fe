package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/gestaozabele/servicos-publicos/internal/auth"
	"github.com/gestaozabele/servicos-publicos/internal/config"
	"github.com/gestaozabele/servicos-publicos/internal/db"
	"github.com/gestaozabele/servicos-publicos/internal/demanda"
	"github.com/gestaozabele/servicos-publicos/internal/demanda/metrics"
	"github.com/gestaozabele/servicos-publicos/internal/directory"
	"github.com/gestaozabele/servicos-publicos/internal/events"
	internalhttp "github.com/gestaozabele/servicos-publicos/internal/http"
	"github.com/gestaozabele/servicos-publicos/internal/telemetry"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("api encerrada com erro")
	}
}

func run() error {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn().Err(err).Msg("falha ao encerrar tracing")
		}
	}()

	readyChecks := map[string]internalhttp.ReadyCheck{}

	var (
		store demanda.Store
		dir   directory.Directory
	)
	switch cfg.StorageDriver {
	case config.StorageMemory:
		static := directory.NewStatic()
		if cfg.DirectorySeed != "" {
			static, err = directory.LoadStatic(cfg.DirectorySeed)
			if err != nil {
				return fmt.Errorf("directory seed: %w", err)
			}
		}
		store = demanda.NewMemoryStore()
		dir = static
		log.Warn().Msg("armazenamento em memória: dados serão perdidos ao reiniciar")
	default:
		pool, err := db.NewPool(ctx, cfg.DBDSN)
		if err != nil {
			return fmt.Errorf("db: %w", err)
		}
		defer pool.Close()
		readyChecks["db"] = pool.Ping
		store = demanda.NewPostgresStore(pool)
		dir = directory.NewPostgresDirectory(pool)
	}

	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis parse: %w", err)
		}
		redisClient := redis.NewClient(redisOpts)
		defer redisClient.Close()
		readyChecks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
		dir = directory.NewCached(dir, redisClient, cfg.DirectoryCacheTTL)
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		kafka, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, log.Logger)
		if err != nil {
			return fmt.Errorf("kafka: %w", err)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := kafka.Close(flushCtx); err != nil {
				log.Warn().Err(err).Msg("falha ao encerrar publisher kafka")
			}
		}()
		publisher = kafka
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewWithRegistry(registry)

	engine, err := demanda.NewEngine(demanda.EngineDeps{
		Store:     store,
		Directory: dir,
		Publisher: publisher,
		Metrics:   m,
		Logger:    log.Logger,
		Municipio: demanda.Municipio{Cidade: cfg.Municipio.Cidade, UF: cfg.Municipio.UF},
	})
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	handler := internalhttp.NewRouter(cfg, internalhttp.Deps{
		Workflow:    engine,
		Lister:      demanda.NewProjection(store, m),
		JWT:         auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessTTL),
		Scope:       directory.NewRBAC(dir),
		Logger:      log.Logger,
		Registry:    registry,
		ReadyChecks: readyChecks,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("storage", cfg.StorageDriver).Msgf("API ouvindo em :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("encerrando...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
