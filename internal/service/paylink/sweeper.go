package paylink

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/corebank/internal/metrics"
	"github.com/josh-kwaku/corebank/internal/service/payment"
)

const sweepBatch = 50

type staleLister interface {
	ListStaleIDs(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}

type canceler interface {
	CancelStale(ctx context.Context, id uuid.UUID) (bool, error)
}

// Sweeper cancels intents nobody can pay any more because every paylink
// issued for them expired unused.
type Sweeper struct {
	intents  staleLister
	payments canceler
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time
	metrics  *metrics.Recorder
}

func NewSweeper(intents staleLister, payments canceler, logger *slog.Logger, interval time.Duration, m *metrics.Recorder) *Sweeper {
	return &Sweeper{
		intents:  intents,
		payments: payments,
		logger:   logger,
		interval: interval,
		now:      func() time.Time { return time.Now().UTC() },
		metrics:  m,
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("paylink sweeper started", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("paylink sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass and returns how many intents it canceled.
func (s *Sweeper) Sweep(ctx context.Context) int {
	ids, err := s.intents.ListStaleIDs(ctx, s.now(), sweepBatch)
	if err != nil {
		s.logger.Error("failed to list stale intents", "error", err)
		return 0
	}

	ctx = payment.WithActor(ctx, "sweeper")
	canceled := 0
	for _, id := range ids {
		ok, err := s.payments.CancelStale(ctx, id)
		if err != nil {
			s.logger.Error("failed to cancel stale intent", "intent_id", id, "error", err)
			continue
		}
		if ok {
			canceled++
		}
	}

	if canceled > 0 {
		s.logger.Info("stale intents canceled", "count", canceled)
	}
	s.metrics.IntentsSwept(canceled)
	return canceled
}
