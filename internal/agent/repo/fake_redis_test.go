package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// memRedis is an in-memory RedisClient backed by go-redis result constructors.
type memRedis struct {
	lists   map[string][]string
	strings map[string]string
	ttls    map[string]time.Duration
	failAll error
}

func newMemRedis() *memRedis {
	return &memRedis{
		lists:   map[string][]string{},
		strings: map[string]string{},
		ttls:    map[string]time.Duration{},
	}
}

func asString(v interface{}) string {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

func (m *memRedis) RPush(_ context.Context, key string, values ...interface{}) *redis.IntCmd {
	if m.failAll != nil {
		return redis.NewIntResult(0, m.failAll)
	}
	for _, v := range values {
		m.lists[key] = append(m.lists[key], asString(v))
	}
	return redis.NewIntResult(int64(len(m.lists[key])), nil)
}

func (m *memRedis) LRange(_ context.Context, key string, _, _ int64) *redis.StringSliceCmd {
	if m.failAll != nil {
		return redis.NewStringSliceResult(nil, m.failAll)
	}
	return redis.NewStringSliceResult(append([]string(nil), m.lists[key]...), nil)
}

func (m *memRedis) Expire(_ context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	if m.failAll != nil {
		return redis.NewBoolResult(false, m.failAll)
	}
	_, okList := m.lists[key]
	_, okStr := m.strings[key]
	if !okList && !okStr {
		return redis.NewBoolResult(false, nil)
	}
	m.ttls[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (m *memRedis) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if m.failAll != nil {
		return redis.NewStatusResult("", m.failAll)
	}
	m.strings[key] = asString(value)
	m.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (m *memRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if m.failAll != nil {
		return redis.NewStringResult("", m.failAll)
	}
	v, ok := m.strings[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := m.lists[k]; ok {
			delete(m.lists, k)
			n++
		}
		if _, ok := m.strings[k]; ok {
			delete(m.strings, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}
