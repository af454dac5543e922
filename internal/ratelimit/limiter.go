// Package ratelimit caps how often clients may trigger calls to the paid
// third parties (image host, automation hook, mail relay). Counters use fixed
// hourly and daily windows and are persisted to BoltDB when a database is given.
package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketRateLimits = []byte("rate_limits")

// Level is the scope a counter applies to
type Level string

const (
	LevelGlobal Level = "global"
	LevelIP     Level = "ip"
	LevelAction Level = "action"
)

// Config contains rate limit configuration
type Config struct {
	// Global limits all upstream calls together
	Global *Limit `yaml:"global,omitempty"`

	// PerIP limits each client address
	PerIP *Limit `yaml:"per_ip,omitempty"`

	// PerAction limits each action (upload, submit, proof) across clients
	PerAction map[string]*Limit `yaml:"per_action,omitempty"`

	FlushInterval time.Duration `yaml:"flush_interval,omitempty"`
}

// Limit is a pair of window limits. Zero disables a window.
type Limit struct {
	PerHour int `yaml:"per_hour" json:"per_hour"`
	PerDay  int `yaml:"per_day" json:"per_day"`
}

// Counter tracks one key's usage
type Counter struct {
	HourlyCount int       `json:"hourly_count"`
	DailyCount  int       `json:"daily_count"`
	HourStart   time.Time `json:"hour_start"`
	DayStart    time.Time `json:"day_start"`
}

// Request identifies the caller and the action being attempted
type Request struct {
	Action string
	IP     string
}

// Result is the outcome of Allow
type Result struct {
	Allowed    bool
	DeniedBy   Level
	DeniedKey  string
	RetryAfter time.Duration
}

// Limiter enforces Config. It is safe for concurrent use.
type Limiter struct {
	db       *bolt.DB
	config   Config
	counters map[string]*Counter
	mu       sync.Mutex
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewLimiter creates a limiter. db may be nil, in which case counters live
// only in memory and reset on restart.
func NewLimiter(db *bolt.DB, cfg Config) (*Limiter, error) {
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = 10 * time.Second
	}

	l := &Limiter{
		db:       db,
		config:   cfg,
		counters: make(map[string]*Counter),
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}

	if db != nil {
		err := db.Update(func(tx *bolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists(bucketRateLimits)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create rate limits bucket: %w", err)
		}

		if err := l.loadCounters(); err != nil {
			return nil, fmt.Errorf("failed to load counters: %w", err)
		}
	}

	go l.maintainLoop()

	return l, nil
}

// Allow checks every applicable limit and, when all pass, counts the call
func (l *Limiter) Allow(ctx context.Context, req Request) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	checks := l.checks(req)

	for _, c := range checks {
		counter := l.counter(c.key, now)
		counter.reset(now)

		if c.limit.PerHour > 0 && counter.HourlyCount >= c.limit.PerHour {
			return Result{DeniedBy: c.level, DeniedKey: c.key, RetryAfter: counter.HourStart.Add(time.Hour).Sub(now)}
		}
		if c.limit.PerDay > 0 && counter.DailyCount >= c.limit.PerDay {
			return Result{DeniedBy: c.level, DeniedKey: c.key, RetryAfter: counter.DayStart.Add(24 * time.Hour).Sub(now)}
		}
	}

	for _, c := range checks {
		counter := l.counters[c.key]
		counter.HourlyCount++
		counter.DailyCount++
	}

	return Result{Allowed: true}
}

// Usage returns the current window counts for a key, zero when unknown
func (l *Limiter) Usage(level Level, key string) Counter {
	l.mu.Lock()
	defer l.mu.Unlock()

	counter, ok := l.counters[makeKey(level, key)]
	if !ok {
		return Counter{}
	}

	c := *counter
	c.reset(l.now())
	return c
}

// Stop ends background maintenance and flushes counters
func (l *Limiter) Stop() error {
	l.stopOnce.Do(func() { close(l.stopCh) })
	if l.db == nil {
		return nil
	}
	return l.persistCounters()
}

// prune drops counters whose hourly and daily windows have both expired.
// They would reset to zero on next use anyway.
func (l *Limiter) prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for key, c := range l.counters {
		if now.Sub(c.HourStart) >= time.Hour && now.Sub(c.DayStart) >= 24*time.Hour {
			delete(l.counters, key)
			removed++
		}
	}
	return removed
}

type limitCheck struct {
	level Level
	key   string
	limit *Limit
}

func (l *Limiter) checks(req Request) []limitCheck {
	var checks []limitCheck

	if l.config.Global != nil {
		checks = append(checks, limitCheck{LevelGlobal, makeKey(LevelGlobal, "global"), l.config.Global})
	}

	if req.Action != "" {
		if limit := l.config.PerAction[req.Action]; limit != nil {
			checks = append(checks, limitCheck{LevelAction, makeKey(LevelAction, req.Action), limit})
		}
	}

	if req.IP != "" && l.config.PerIP != nil {
		checks = append(checks, limitCheck{LevelIP, makeKey(LevelIP, req.IP), l.config.PerIP})
	}

	return checks
}

func (l *Limiter) counter(key string, now time.Time) *Counter {
	counter, ok := l.counters[key]
	if !ok {
		counter = &Counter{HourStart: now, DayStart: now}
		l.counters[key] = counter
	}
	return counter
}

func (c *Counter) reset(now time.Time) {
	if now.Sub(c.HourStart) >= time.Hour {
		c.HourlyCount = 0
		c.HourStart = now
	}
	if now.Sub(c.DayStart) >= 24*time.Hour {
		c.DailyCount = 0
		c.DayStart = now
	}
}

func (l *Limiter) loadCounters() error {
	return l.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRateLimits).ForEach(func(k, v []byte) error {
			var counter Counter
			if err := json.Unmarshal(v, &counter); err != nil {
				return nil // skip corrupt entries
			}
			l.counters[string(k)] = &counter
			return nil
		})
	})
}

func (l *Limiter) persistCounters() error {
	l.mu.Lock()
	snapshot := make(map[string][]byte, len(l.counters))
	for key, counter := range l.counters {
		data, err := json.Marshal(counter)
		if err != nil {
			continue
		}
		snapshot[key] = data
	}
	l.mu.Unlock()

	// the bucket is rewritten so pruned keys disappear from disk too
	return l.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketRateLimits); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		bucket, err := tx.CreateBucket(bucketRateLimits)
		if err != nil {
			return err
		}
		for key, data := range snapshot {
			if err := bucket.Put([]byte(key), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (l *Limiter) maintainLoop() {
	ticker := time.NewTicker(l.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			l.prune()
			if l.db != nil {
				l.persistCounters()
			}
		}
	}
}

func makeKey(level Level, key string) string {
	return string(level) + ":" + key
}
