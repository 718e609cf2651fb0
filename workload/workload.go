// Package workload generates write load against a table through
// the client. It is used to check that replacing tablets under load
// loses no more than the rows that lived in the replaced tablets.
package workload

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jrife/tablets/catalog"
	"github.com/jrife/tablets/client"
	"github.com/jrife/tablets/utils/log"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

var (
	// ErrStarted is returned by Start when the workload is already running
	ErrStarted = errors.New("workload already started")
	// ErrNotStarted is returned when waiting for a workload that never started
	ErrNotStarted = errors.New("workload not started")
)

// Writer writes rows. *client.Client implements it.
type Writer interface {
	Write(ctx context.Context, tableID string, key []byte, value []byte) error
}

// Workload inserts rows with sequential row numbers from
// a number of concurrent writers
type Workload struct {
	Client Writer
	Table  string
	// Writers is the number of concurrent writers. Defaults to 1.
	Writers int
	// RowsPerSecond limits the combined write rate. Zero means no limit.
	RowsPerSecond float64
	// Rows bounds the number of rows the workload attempts
	// to insert. Zero means write until stopped.
	Rows int64
	// AllowNotFound tolerates writes that fail because
	// the tablet they were addressed to was replaced
	AllowNotFound bool
	// Key maps a row number to its key. The default
	// spreads rows evenly over the first letter of the key.
	Key    func(row int64) []byte
	Logger *zap.Logger

	mu       sync.Mutex
	group    *errgroup.Group
	cancel   context.CancelFunc
	next     int64
	inserted int64
	failed   int64
}

// DefaultKey returns a key starting with a letter
// between a and z followed by the row number
func DefaultKey(row int64) []byte {
	return []byte(fmt.Sprintf("%c%012d", 'a'+row%26, row))
}

// Start starts the writers. They run until Rows rows
// were attempted, StopAndJoin is called, ctx is
// canceled or a write fails with an intolerable error.
func (workload *Workload) Start(ctx context.Context) error {
	workload.mu.Lock()
	defer workload.mu.Unlock()

	if workload.group != nil {
		return ErrStarted
	}

	writers := workload.Writers

	if writers <= 0 {
		writers = 1
	}

	limit := rate.Inf

	if workload.RowsPerSecond > 0 {
		limit = rate.Limit(workload.RowsPerSecond)
	}

	if workload.Key == nil {
		workload.Key = DefaultKey
	}

	workload.Logger = log.OrNop(workload.Logger).With(zap.String("table_id", workload.Table))
	limiter := rate.NewLimiter(limit, writers)
	ctx, workload.cancel = context.WithCancel(ctx)
	workload.group, ctx = errgroup.WithContext(ctx)

	for i := 0; i < writers; i++ {
		writer := i

		workload.group.Go(func() error {
			return workload.write(ctx, writer, limiter)
		})
	}

	workload.Logger.Info("started workload", zap.Int("writers", writers), zap.Int64("rows", workload.Rows))

	return nil
}

func (workload *Workload) write(ctx context.Context, writer int, limiter *rate.Limiter) error {
	for {
		if err := limiter.Wait(ctx); err != nil {
			return nil
		}

		row := atomic.AddInt64(&workload.next, 1) - 1

		if workload.Rows > 0 && row >= workload.Rows {
			return nil
		}

		err := workload.Client.Write(ctx, workload.Table, workload.Key(row), []byte(fmt.Sprintf("row-%d", row)))

		switch {
		case err == nil:
			atomic.AddInt64(&workload.inserted, 1)
		case ctx.Err() != nil:
			return nil
		case workload.tolerable(err):
			atomic.AddInt64(&workload.failed, 1)
			workload.Logger.Debug("tolerated write failure", zap.Int("writer", writer), zap.Int64("row", row), zap.Error(err))
		default:
			return fmt.Errorf("could not write row %d: %w", row, err)
		}
	}
}

func (workload *Workload) tolerable(err error) bool {
	if !workload.AllowNotFound {
		return false
	}

	return errors.Is(err, catalog.ErrNotFound) || errors.Is(err, client.ErrRetriesExhausted) || client.IsStaleLocation(err)
}

// RowsInserted returns the number of rows written successfully so far
func (workload *Workload) RowsInserted() int64 {
	return atomic.LoadInt64(&workload.inserted)
}

// WriteFailures returns the number of tolerated write failures so far
func (workload *Workload) WriteFailures() int64 {
	return atomic.LoadInt64(&workload.failed)
}

// Wait waits for the writers to finish on their own and
// returns the first intolerable write error
func (workload *Workload) Wait() error {
	workload.mu.Lock()
	group := workload.group
	workload.mu.Unlock()

	if group == nil {
		return ErrNotStarted
	}

	return group.Wait()
}

// StopAndJoin stops the writers, waits for them to
// exit and returns the first intolerable write error
func (workload *Workload) StopAndJoin() error {
	workload.mu.Lock()
	group, cancel := workload.group, workload.cancel
	workload.mu.Unlock()

	if group == nil {
		return ErrNotStarted
	}

	cancel()
	err := group.Wait()

	workload.Logger.Info("stopped workload", zap.Int64("rows_inserted", workload.RowsInserted()), zap.Int64("write_failures", workload.WriteFailures()))

	return err
}
