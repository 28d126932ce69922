package geo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/campus-carpool/internal/models"
)

// Redis layout shared with cmd/consumer.
const (
	DefaultGeoKey  = "drivers_geo"
	DefaultLiveKey = "drivers_live"
)

// MaxGeoLatitude is the largest |latitude| GEOADD accepts.
const MaxGeoLatitude = 85.05112878

// CheckStorable reports whether p can be written to a Redis GEO set. Points
// past MaxGeoLatitude are valid coordinates Redis cannot index.
func CheckStorable(p models.GeoPoint) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if math.Abs(p.Lat) > MaxGeoLatitude {
		return fmt.Errorf("%w: latitude %v outside redis geo range", models.ErrInvalidDistance, p.Lat)
	}
	return nil
}

// RedisDirectory implements Directory with a GEO set for positions, one hash
// per driver for attributes and a plain set of live driver ids.
type RedisDirectory struct {
	client  *redis.Client
	geoKey  string
	liveKey string
}

func NewRedisDirectory(addr, password, geoKey string) *RedisDirectory {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return NewRedisDirectoryFromClient(c, geoKey)
}

func NewRedisDirectoryFromClient(c *redis.Client, geoKey string) *RedisDirectory {
	if geoKey == "" {
		geoKey = DefaultGeoKey
	}
	return &RedisDirectory{client: c, geoKey: geoKey, liveKey: DefaultLiveKey}
}

func (r *RedisDirectory) Ping(ctx context.Context) error { return r.client.Ping(ctx).Err() }

func (r *RedisDirectory) Close() error { return r.client.Close() }

func (r *RedisDirectory) Upsert(ctx context.Context, d models.DriverCandidate) error {
	if err := CheckStorable(d.Location); err != nil {
		return fmt.Errorf("%w: driver %s: %w", models.ErrInvalidCandidate, d.ID, err)
	}
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.GeoAdd(ctx, r.geoKey, &redis.GeoLocation{Longitude: d.Location.Lon, Latitude: d.Location.Lat, Name: d.ID})
		p.HSet(ctx, MetaKey(d.ID), MetaFields(d, time.Now()))
		if d.Live {
			p.SAdd(ctx, r.liveKey, d.ID)
		} else {
			p.SRem(ctx, r.liveKey, d.ID)
		}
		return nil
	})
	return err
}

func (r *RedisDirectory) Get(ctx context.Context, id string) (models.DriverCandidate, error) {
	pipe := r.client.Pipeline()
	pos := pipe.GeoPos(ctx, r.geoKey, id)
	meta := pipe.HGetAll(ctx, MetaKey(id))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return models.DriverCandidate{}, err
	}
	if len(meta.Val()) == 0 {
		return models.DriverCandidate{}, ErrDriverNotFound
	}
	var p *redis.GeoPos
	if v := pos.Val(); len(v) == 1 {
		p = v[0]
	}
	return candidateFromRedis(id, p, meta.Val()), nil
}

// Live reads every id in the live set. Records come back as stored; a
// missing position surfaces as NaN coordinates for the filter to reject.
func (r *RedisDirectory) Live(ctx context.Context) ([]models.DriverCandidate, error) {
	ids, err := r.client.SMembers(ctx, r.liveKey).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	pipe := r.client.Pipeline()
	pos := pipe.GeoPos(ctx, r.geoKey, ids...)
	metas := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		metas[i] = pipe.HGetAll(ctx, MetaKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	positions := pos.Val()
	out := make([]models.DriverCandidate, 0, len(ids))
	for i, id := range ids {
		var p *redis.GeoPos
		if i < len(positions) {
			p = positions[i]
		}
		out = append(out, candidateFromRedis(id, p, metas[i].Val()))
	}
	return out, nil
}

func MetaKey(id string) string { return "driver:meta:" + id }

// MetaFields is the attribute hash written for a driver.
func MetaFields(d models.DriverCandidate, updated time.Time) map[string]interface{} {
	return map[string]interface{}{
		"gender":        string(d.Gender),
		"university_id": d.UniversityID,
		"vehicle_class": string(d.VehicleClass),
		"live":          strconv.FormatBool(d.Live),
		"updated":       updated.UTC().Format(time.RFC3339),
	}
}

func candidateFromRedis(id string, pos *redis.GeoPos, meta map[string]string) models.DriverCandidate {
	d := models.DriverCandidate{
		ID:           id,
		Gender:       models.Gender(meta["gender"]),
		UniversityID: meta["university_id"],
		VehicleClass: models.VehicleClass(meta["vehicle_class"]),
		Live:         meta["live"] == "true",
		Location:     models.GeoPoint{Lat: math.NaN(), Lon: math.NaN()},
	}
	if pos != nil {
		d.Location = models.GeoPoint{Lat: pos.Latitude, Lon: pos.Longitude}
	}
	if v, ok := meta["updated"]; ok {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			d.Updated = t
		}
	}
	return d
}
