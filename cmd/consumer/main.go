package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/example/campus-carpool/internal/config"
	"github.com/example/campus-carpool/internal/geo"
	"github.com/example/campus-carpool/internal/ingest"
	"github.com/example/campus-carpool/internal/logging"
	"github.com/example/campus-carpool/internal/models"
)

var (
	msgsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_messages_consumed_total",
		Help: "Total driver presence messages consumed",
	})
	msgsInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_messages_invalid_total",
		Help: "Total presence messages rejected as malformed",
	})
	redisUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_redis_updates_total",
		Help: "Total successful redis updates",
	})
	redisErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_redis_errors_total",
		Help: "Total redis errors",
	})
)

func init() {
	prometheus.MustRegister(msgsConsumed, msgsInvalid, redisUpdates, redisErrors)
}

func main() {
	var metricsAddr string
	flag.StringVar(&metricsAddr, "metrics-addr", ":2112", "address to serve prometheus metrics on")
	flag.Parse()

	logger, err := logging.NewLogger(getenv("LOG_LEVEL", "info"))
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	brokers := config.SplitAndTrim(os.Getenv("KAFKA_BROKERS"))
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}
	topic := getenv("KAFKA_TOPIC", "driver-presence")
	group := getenv("KAFKA_GROUP", "carpool-presence-consumer")
	geoKey := getenv("REDIS_GEO_KEY", geo.DefaultGeoKey)

	rc := redis.NewClient(&redis.Options{Addr: getenv("REDIS_ADDR", "localhost:6379"), Password: os.Getenv("REDIS_PASSWORD")})
	radapter := &redisAdapter{c: rc}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
		mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			if err := rc.Ping(r.Context()).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(200)
			w.Write([]byte("ready"))
		})
		logger.Info("metrics/health listening", zap.String("addr", metricsAddr))
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := kafka.NewReader(kafka.ReaderConfig{Brokers: brokers, Topic: topic, GroupID: group, MinBytes: 10e3, MaxBytes: 10e6})
	defer func() {
		_ = r.Close()
		_ = rc.Close()
	}()

	logger.Info("consumer listening", zap.String("topic", topic), zap.Strings("brokers", brokers), zap.String("group", group))

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("shutting down consumer")
				return
			}
			logger.Warn("kafka read error", zap.Error(err), zap.Duration("backoff", backoff))
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second
		msgsConsumed.Inc()

		d, err := ingest.DecodePresence(m.Value)
		if err != nil {
			msgsInvalid.Inc()
			logger.Warn("invalid presence message", zap.ByteString("key", m.Key), zap.Error(err))
			continue
		}

		if err := updateRedisWithRetry(ctx, radapter, geoKey, d, time.Now(), 3, 200*time.Millisecond); err != nil {
			if errors.Is(err, models.ErrInvalidDistance) {
				msgsInvalid.Inc()
				logger.Warn("presence position not storable", zap.String("driver_id", d.ID), zap.Error(err))
				continue
			}
			redisErrors.Inc()
			logger.Error("redis update failed", zap.String("driver_id", d.ID), zap.Error(err))
			continue
		}
		redisUpdates.Inc()
	}
}

// RedisUpdater is the subset of redis operations the consumer writes with.
type RedisUpdater interface {
	GeoAdd(ctx context.Context, key string, loc *redis.GeoLocation) error
	HSet(ctx context.Context, key string, values map[string]interface{}) error
	SetLive(ctx context.Context, key, id string, live bool) error
}

type redisAdapter struct{ c *redis.Client }

func (r *redisAdapter) GeoAdd(ctx context.Context, key string, loc *redis.GeoLocation) error {
	return r.c.GeoAdd(ctx, key, loc).Err()
}

func (r *redisAdapter) HSet(ctx context.Context, key string, values map[string]interface{}) error {
	return r.c.HSet(ctx, key, values).Err()
}

func (r *redisAdapter) SetLive(ctx context.Context, key, id string, live bool) error {
	if live {
		return r.c.SAdd(ctx, key, id).Err()
	}
	return r.c.SRem(ctx, key, id).Err()
}

// updateRedisWithRetry writes the driver's position, attributes and live
// flag in the same layout geo.RedisDirectory reads. The whole write is
// retried with doubling delay since every step is idempotent.
func updateRedisWithRetry(ctx context.Context, rc RedisUpdater, geoKey string, d models.DriverCandidate, now time.Time, attempts int, delay time.Duration) error {
	if err := geo.CheckStorable(d.Location); err != nil {
		return fmt.Errorf("driver %s: %w", d.ID, err)
	}
	write := func() error {
		if err := rc.GeoAdd(ctx, geoKey, &redis.GeoLocation{Longitude: d.Location.Lon, Latitude: d.Location.Lat, Name: d.ID}); err != nil {
			return err
		}
		if err := rc.HSet(ctx, geo.MetaKey(d.ID), geo.MetaFields(d, now)); err != nil {
			return err
		}
		return rc.SetLive(ctx, geo.DefaultLiveKey, d.ID, d.Live)
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = write(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
