package metadata

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Recorder is notified about the outcome of every refresh cycle
type Recorder interface {
	RefreshCompleted(success bool, clients int)
}

type noopRecorder struct{}

func (noopRecorder) RefreshCompleted(bool, int) {}

// Refresher periodically reloads the metadata from its source into the store.
// It is the only writer of the store.
type Refresher struct {
	log      *zap.Logger
	source   Source
	store    *Store
	interval time.Duration
	timeout  time.Duration
	recorder Recorder
}

// NewRefresher creates a refresher, a zero timeout means the load is only bound by the interval
func NewRefresher(
	log *zap.Logger,
	source Source,
	store *Store,
	interval time.Duration,
	timeout time.Duration,
) *Refresher {
	if timeout <= 0 {
		timeout = interval
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Refresher{
		log:      log,
		source:   source,
		store:    store,
		interval: interval,
		timeout:  timeout,
		recorder: noopRecorder{},
	}
}

// WithRecorder sets the recorder receiving refresh outcomes
func (r *Refresher) WithRecorder(recorder Recorder) *Refresher {
	if recorder != nil {
		r.recorder = recorder
	}
	return r
}

// Interval is the time between two refresh cycles
func (r *Refresher) Interval() time.Duration {
	return r.interval
}

// Refresh runs a single cycle. If the source can not be loaded the store is emptied
// so no stale data is served; the error is returned for the caller's information only.
func (r *Refresher) Refresh(ctx context.Context) error {
	cycle := uuid.New().String()
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	md, err := r.source.Load(ctx)
	if err != nil {
		r.store.Update(map[string]any{})
		r.recorder.RefreshCompleted(false, 0)
		r.log.Error("Metadata update failed",
			zap.String("cycle", cycle),
			zap.String("source", r.source.String()),
			zap.Error(err))
		return err
	}
	r.store.Update(md)
	r.recorder.RefreshCompleted(true, len(md))
	r.log.Info("Metadata update successful",
		zap.String("cycle", cycle),
		zap.Int("clients", len(md)))
	return nil
}

// Run refreshes once synchronously and then on every interval until ctx is done.
// The initial cycle has completed when started is closed.
func (r *Refresher) Run(ctx context.Context, started chan<- struct{}) {
	_ = r.Refresh(ctx)
	if started != nil {
		close(started)
	}
	if r.interval <= 0 {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.log.Debug("metadata refresher stopped")
			return
		case <-ticker.C:
			// a pending tick may race with cancellation, a cancelled cycle would empty the store
			if ctx.Err() != nil {
				r.log.Debug("metadata refresher stopped")
				return
			}
			_ = r.Refresh(ctx)
		}
	}
}
