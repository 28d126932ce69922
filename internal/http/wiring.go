package httpapi

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/example/campus-carpool/internal/config"
	"github.com/example/campus-carpool/internal/dispatch"
	"github.com/example/campus-carpool/internal/geo"
	"github.com/example/campus-carpool/internal/ingest"
	"github.com/example/campus-carpool/internal/observability"
	"github.com/example/campus-carpool/internal/storage"
)

// NewServerFromConfig wires the server with Redis, Postgres and Kafka when
// they are configured and in-memory fallbacks otherwise. The returned close
// func releases whatever was opened.
func NewServerFromConfig(ctx context.Context, cfg config.ServerConfig, logger *zap.Logger) (*Server, func() error, error) {
	var closers []func() error
	var checks []func(context.Context) error
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}

	var dir geo.Directory
	if cfg.RedisAddr != "" {
		rd := geo.NewRedisDirectory(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisGeoKey)
		closers = append(closers, rd.Close)
		checks = append(checks, rd.Ping)
		dir = rd
		logger.Info("live driver directory", zap.String("backend", "redis"), zap.String("addr", cfg.RedisAddr))
	} else {
		dir = geo.NewIndex()
		logger.Info("live driver directory", zap.String("backend", "memory"))
	}

	var (
		rides storage.RideStore
		fuel  storage.FuelPriceStore
		unis  storage.UniversityStore
	)
	if cfg.PGDSN != "" {
		ps, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			_ = closeAll()
			return nil, nil, err
		}
		closers = append(closers, ps.Close)
		checks = append(checks, ps.Ping)
		if cfg.RunMigrations {
			if err := ps.Migrate(ctx, storage.SeedUniversities()); err != nil {
				_ = closeAll()
				return nil, nil, err
			}
			logger.Info("migration applied")
		}
		if cfg.FuelPriceDefault > 0 {
			if _, err := ps.Current(ctx); errors.Is(err, storage.ErrNotFound) {
				if err := ps.Set(ctx, cfg.FuelPriceDefault); err != nil {
					_ = closeAll()
					return nil, nil, err
				}
			}
		}
		rides, fuel, unis = ps, ps, ps.Universities()
	} else {
		rides = storage.NewMemoryStore()
		fuel = storage.NewMemoryFuelPrices(cfg.FuelPriceDefault)
		unis = storage.NewMemoryUniversities(storage.SeedUniversities())
	}
	if p, err := fuel.Current(ctx); err == nil {
		observability.FuelPrice.Set(float64(p))
	}

	var pub PresencePublisher
	if len(cfg.KafkaBrokers) > 0 {
		kp := ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		closers = append(closers, kp.Close)
		pub = kp
	}

	s := NewServer(Deps{
		Directory:    dir,
		Prices:       fuel,
		Universities: unis,
		Rides:        rides,
		Publisher:    pub,
		WSReg:        dispatch.NewWSRegistry(logger),
		Rates:        cfg.RateTable,
		Split:        cfg.Split(),
		SpeedMps:     cfg.DefaultSpeedMps,
		TopN:         cfg.MatcherTopN,
		Logger:       logger,
		AdminToken:   cfg.AdminToken,
		Ready: func(ctx context.Context) error {
			for _, c := range checks {
				if err := c(ctx); err != nil {
					return err
				}
			}
			return nil
		},
	})
	return s, closeAll, nil
}
