package mirror

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// RedisCommands is the subset of redis operations the mirror needs.
type RedisCommands interface {
	HSet(ctx context.Context, key string, values map[string]interface{}) error
	GeoAdd(ctx context.Context, key string, loc *redis.GeoLocation) error
	ZRem(ctx context.Context, key string, member string) error
	Publish(ctx context.Context, channel string, payload []byte) error
}

type redisAdapter struct{ c *redis.Client }

// NewRedisCommands wraps a go-redis client.
func NewRedisCommands(c *redis.Client) RedisCommands { return &redisAdapter{c: c} }

func (r *redisAdapter) HSet(ctx context.Context, key string, values map[string]interface{}) error {
	return r.c.HSet(ctx, key, values).Err()
}

func (r *redisAdapter) GeoAdd(ctx context.Context, key string, loc *redis.GeoLocation) error {
	return r.c.GeoAdd(ctx, key, loc).Err()
}

func (r *redisAdapter) ZRem(ctx context.Context, key string, member string) error {
	return r.c.ZRem(ctx, key, member).Err()
}

func (r *redisAdapter) Publish(ctx context.Context, channel string, payload []byte) error {
	return r.c.Publish(ctx, channel, payload).Err()
}

// RedisMirror keeps a hash per driver, a geo set of available drivers and
// publishes every change on a pub/sub channel.
type RedisMirror struct {
	cmd     RedisCommands
	geoKey  string
	channel string
}

func NewRedisMirror(cmd RedisCommands, geoKey, channel string) *RedisMirror {
	return &RedisMirror{cmd: cmd, geoKey: geoKey, channel: channel}
}

func (r *RedisMirror) Update(ctx context.Context, driverID int64, s State) error {
	id := strconv.FormatInt(driverID, 10)
	fields := map[string]interface{}{
		"available": strconv.FormatBool(s.Available),
		"latitude":  formatCoord(s.Latitude),
		"longitude": formatCoord(s.Longitude),
		"updatedAt": strconv.FormatInt(s.UpdatedAt, 10),
	}
	if err := r.cmd.HSet(ctx, stateKey(id), fields); err != nil {
		return err
	}

	if s.Available && s.Latitude != nil && s.Longitude != nil {
		if err := r.cmd.GeoAdd(ctx, r.geoKey, &redis.GeoLocation{Name: id, Latitude: *s.Latitude, Longitude: *s.Longitude}); err != nil {
			return err
		}
	} else if err := r.cmd.ZRem(ctx, r.geoKey, id); err != nil {
		return err
	}

	if r.channel == "" {
		return nil
	}
	payload, err := json.Marshal(Event{DriverID: driverID, State: s})
	if err != nil {
		return err
	}
	return r.cmd.Publish(ctx, r.channel, payload)
}

func stateKey(id string) string { return "driver:state:" + id }

func formatCoord(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}
