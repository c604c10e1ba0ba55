// Package store publishes finished coverage reports to Redis.
//
// Every theme table of a run is written under its own key, the run's theme
// list keeps publish order, and a global list keeps run ids newest first.
// Stored reports are output only; the report driver never reads them back.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/hapi-coverage/pkg/report"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	// ErrNotFound indicates the requested report was not found
	ErrNotFound = errors.New("report not found")

	// ErrInvalidReport indicates the stored value could not be decoded
	ErrInvalidReport = errors.New("invalid stored report")
)

// StoredReport is the JSON value written for one theme.
type StoredReport struct {
	RunID    string       `json:"run_id"`
	Theme    string       `json:"theme"`
	Rows     []report.Row `json:"rows"`
	Markdown string       `json:"markdown"`
	StoredAt time.Time    `json:"stored_at"`
}

// Store writes reports of one run to Redis.
type Store struct {
	redis     *redis.Client
	runID     string
	ttl       time.Duration
	logger    zerolog.Logger
	announced bool
}

// New creates a store for runID. ttl of zero keeps reports until deleted.
func New(redisClient *redis.Client, runID string, ttl time.Duration, logger zerolog.Logger) (*Store, error) {
	if redisClient == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if runID == "" {
		return nil, fmt.Errorf("run id is required")
	}
	if ttl < 0 {
		return nil, fmt.Errorf("ttl must be >= 0 (got %v)", ttl)
	}

	return &Store{
		redis:  redisClient,
		runID:  runID,
		ttl:    ttl,
		logger: logger.With().Str("component", "report-store").Logger(),
	}, nil
}

// RunID returns the run this store writes to.
func (s *Store) RunID() string {
	return s.runID
}

// Publish stores a theme report. The first publish also records the run id.
func (s *Store) Publish(ctx context.Context, r report.ThemeReport) error {
	key := ReportKey{RunID: s.runID, Theme: r.Theme}

	data, err := json.Marshal(StoredReport{
		RunID:    s.runID,
		Theme:    r.Theme,
		Rows:     r.Rows,
		Markdown: r.Markdown,
		StoredAt: time.Now().UTC(),
	})
	if err != nil {
		StoreErrors.WithLabelValues("publish").Inc()
		return fmt.Errorf("marshal report: %w", err)
	}

	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, key.String(), data, s.ttl)
	pipe.RPush(ctx, ThemesKey(s.runID), r.Theme)
	if s.ttl > 0 {
		pipe.Expire(ctx, ThemesKey(s.runID), s.ttl)
	}
	if !s.announced {
		pipe.LPush(ctx, RunsKey, s.runID)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		StoreWrites.WithLabelValues("error").Inc()
		StoreErrors.WithLabelValues("publish").Inc()
		return fmt.Errorf("redis publish %s: %w", key, err)
	}
	s.announced = true

	StoreWrites.WithLabelValues("ok").Inc()
	StoreBytes.Add(float64(len(data)))

	s.logger.Debug().
		Str("key", key.String()).
		Int("bytes", len(data)).
		Msg("Published theme report")

	return nil
}

// Reader reads stored reports back, for any run.
type Reader struct {
	redis *redis.Client
}

// NewReader creates a reader.
func NewReader(redisClient *redis.Client) *Reader {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Reader{redis: redisClient}
}

// Get returns the stored report of theme in run.
// Returns ErrNotFound if it does not exist.
func (r *Reader) Get(ctx context.Context, runID, theme string) (*StoredReport, error) {
	key := ReportKey{RunID: runID, Theme: theme}

	data, err := r.redis.Get(ctx, key.String()).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		StoreErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var stored StoredReport
	if err := json.Unmarshal(data, &stored); err != nil {
		StoreErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}

	return &stored, nil
}

// Themes returns the themes published for run, in publish order.
func (r *Reader) Themes(ctx context.Context, runID string) ([]string, error) {
	themes, err := r.redis.LRange(ctx, ThemesKey(runID), 0, -1).Result()
	if err != nil {
		StoreErrors.WithLabelValues("themes").Inc()
		return nil, fmt.Errorf("redis lrange: %w", err)
	}
	return themes, nil
}

// Runs returns up to limit run ids, newest first. limit <= 0 returns all.
func (r *Reader) Runs(ctx context.Context, limit int64) ([]string, error) {
	stop := limit - 1
	if limit <= 0 {
		stop = -1
	}
	runs, err := r.redis.LRange(ctx, RunsKey, 0, stop).Result()
	if err != nil {
		StoreErrors.WithLabelValues("runs").Inc()
		return nil, fmt.Errorf("redis lrange: %w", err)
	}
	return runs, nil
}
