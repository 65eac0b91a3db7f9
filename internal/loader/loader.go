// Package loader refreshes the cities, photos and quotes tables from the spreadsheet.
package loader

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kjstillabower/our-story/internal/cache"
	"github.com/kjstillabower/our-story/internal/models"
	"github.com/kjstillabower/our-story/internal/observability"
	"github.com/kjstillabower/our-story/internal/records"
	"github.com/kjstillabower/our-story/internal/sheets"
)

// Kind identifies one of the three tables.
type Kind string

const (
	Cities Kind = "cities"
	Photos Kind = "photos"
	Quotes Kind = "quotes"
)

// Kinds lists every table in refresh order.
var Kinds = []Kind{Cities, Photos, Quotes}

// ErrInFlight is returned when a refresh of the same table is still running.
var ErrInFlight = errors.New("refresh already in flight")

// TableNames maps each kind to its sheet name in the spreadsheet.
type TableNames map[Kind]string

// ApplyFunc receives the outcome of one table refresh. recs is nil when err is set.
// RefreshAll calls it from several goroutines at once.
type ApplyFunc func(kind Kind, recs []records.Record, err error)

// Loader fetches tables and keeps a snapshot of each successful payload in a cache.
type Loader struct {
	fetcher  sheets.ValuesFetcher
	names    TableNames
	cache    cache.Cache
	cacheTTL time.Duration
	logger   *zap.Logger
	inFlight map[Kind]*atomic.Bool
}

// New returns a Loader. cache may be nil to disable snapshots.
func New(fetcher sheets.ValuesFetcher, names TableNames, snapshots cache.Cache, cacheTTL time.Duration, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	inFlight := make(map[Kind]*atomic.Bool, len(Kinds))
	for _, k := range Kinds {
		inFlight[k] = &atomic.Bool{}
	}
	return &Loader{
		fetcher:  fetcher,
		names:    names,
		cache:    snapshots,
		cacheTTL: cacheTTL,
		logger:   logger,
		inFlight: inFlight,
	}
}

// Refresh fetches one table and maps its rows to records.
// An overlapping call for the same kind returns ErrInFlight without fetching.
func (l *Loader) Refresh(ctx context.Context, kind Kind) ([]records.Record, error) {
	guard, ok := l.inFlight[kind]
	if !ok {
		return nil, fmt.Errorf("unknown table kind %q", kind)
	}
	if !guard.CompareAndSwap(false, true) {
		observability.SchedulerTicksSkippedTotal.WithLabelValues("table_" + string(kind)).Inc()
		return nil, ErrInFlight
	}
	defer guard.Store(false)

	name := l.names[kind]
	table, err := l.fetcher.Values(ctx, name)
	if err != nil {
		observability.TableRefreshErrorsTotal.WithLabelValues(string(kind), string(sheets.CategorizeError(err))).Inc()
		return nil, err
	}
	recs := records.FromTable(table.Values)
	observability.TableRecords.WithLabelValues(string(kind)).Set(float64(len(recs)))
	l.storeSnapshot(ctx, table)
	return recs, nil
}

func (l *Loader) storeSnapshot(ctx context.Context, table models.Table) {
	if l.cache == nil {
		return
	}
	if err := l.cache.Set(ctx, table.Name, table, l.cacheTTL); err != nil {
		observability.CacheOperationsTotal.WithLabelValues("set", "error").Inc()
		l.logger.Warn("snapshot cache set failed", zap.String("table", table.Name), zap.Error(err))
		return
	}
	observability.CacheOperationsTotal.WithLabelValues("set", "success").Inc()
}

// RefreshAll refreshes every table concurrently. Each outcome is passed to apply as soon as
// it is known, so one failing table never holds back the others. The returned error
// combines every failure and is meant for logging.
func (l *Loader) RefreshAll(ctx context.Context, apply ApplyFunc) error {
	errs := make([]error, len(Kinds))
	var g errgroup.Group
	for i, kind := range Kinds {
		i, kind := i, kind
		g.Go(func() error {
			recs, err := l.Refresh(ctx, kind)
			if errors.Is(err, ErrInFlight) {
				l.logger.Debug("table refresh skipped, previous still running", zap.String("table", string(kind)))
				return nil
			}
			if err != nil {
				l.logger.Warn("table refresh failed", zap.String("table", string(kind)), zap.Error(err))
				errs[i] = fmt.Errorf("%s: %w", kind, err)
			}
			apply(kind, recs, err)
			return nil
		})
	}
	_ = g.Wait()
	return multierr.Combine(errs...)
}

// Restore replays cached snapshots through apply so the page has data before the first fetch.
// It returns how many tables were restored.
func (l *Loader) Restore(ctx context.Context, apply ApplyFunc) int {
	if l.cache == nil {
		return 0
	}
	restored := 0
	for _, kind := range Kinds {
		name := l.names[kind]
		table, ok, err := l.cache.Get(ctx, name)
		switch {
		case err != nil:
			observability.CacheOperationsTotal.WithLabelValues("get", "error").Inc()
			l.logger.Warn("snapshot cache get failed", zap.String("table", name), zap.Error(err))
			continue
		case !ok:
			observability.CacheOperationsTotal.WithLabelValues("get", "miss").Inc()
			continue
		}
		observability.CacheOperationsTotal.WithLabelValues("get", "hit").Inc()
		recs := records.FromTable(table.Values)
		if len(recs) == 0 {
			continue
		}
		apply(kind, recs, nil)
		restored++
	}
	return restored
}
