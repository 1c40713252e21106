package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"goldbridge/internal/alerting"
	"goldbridge/internal/config"
	"goldbridge/internal/oracle"
	"goldbridge/internal/provider"
	"goldbridge/internal/scheduler"
	"goldbridge/internal/storage"
	"goldbridge/internal/zone"
)

// RateSink receives the refreshed native asset rate. The internal exchange
// implements it.
type RateSink interface {
	SetRate(pair provider.TradingPair, rate decimal.Decimal) error
}

// Service orchestrates oracle sampling, zone refresh, snapshot persistence,
// and stability alerting.
type Service struct {
	scheduler *scheduler.Scheduler
	source    oracle.Source
	cache     *oracle.Cache
	zones     *zone.Registry
	snapshots storage.SnapshotStore
	notifier  alerting.Notifier
	rateSink  RateSink
	logger    zerolog.Logger

	threshold decimal.Decimal
	alertsOn  bool
	channels  []string
	cooldown  time.Duration
	lastAlert time.Time

	locker  storage.AdvisoryLocker
	lockKey int64
}

// New constructs the feed service. snapshots, notifier, and rateSink are
// optional; a nil value skips that path.
func New(cfg *config.Config, sched *scheduler.Scheduler, source oracle.Source, cache *oracle.Cache, zones *zone.Registry, snapshots storage.SnapshotStore, notifier alerting.Notifier, rateSink RateSink, logger zerolog.Logger) *Service {
	var locker storage.AdvisoryLocker
	if l, ok := snapshots.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Service{
		scheduler: sched,
		source:    source,
		cache:     cache,
		zones:     zones,
		snapshots: snapshots,
		notifier:  notifier,
		rateSink:  rateSink,
		logger:    logger.With().Str("component", "feed").Logger(),
		// Alerts fire when |deviation| crosses the circuit-breaker
		// threshold, not the pricing band (stability.global_threshold).
		threshold: decimal.NewFromFloat(cfg.Stability.CircuitBreakerThreshold),
		alertsOn:  cfg.Alerting.Enabled,
		channels:  cfg.Alerting.Channels,
		cooldown:  cfg.Alerting.Cooldown,
		locker:    locker,
		lockKey:   cfg.Feed.AdvisoryLockKey,
	}
}

// Run begins the aligned sampling loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessBucket)
}

// ProcessBucket 执行单个时间桶的采样逻辑。
func (s *Service) ProcessBucket(ctx context.Context, bucket time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("bucket", bucket).Msg("skip bucket because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	return s.executeBucket(ctx, bucket)
}

func (s *Service) executeBucket(ctx context.Context, bucket time.Time) error {
	sample, err := s.source.CurrentPrice(ctx)
	if err != nil {
		return fmt.Errorf("fetch reference price: %w", err)
	}
	if sample.Price.IsZero() {
		return fmt.Errorf("reference price returned zero")
	}

	s.cache.Store(sample)

	if s.rateSink != nil {
		pair := provider.TradingPair{Base: "GLD", Quote: "USD"}
		if err := s.rateSink.SetRate(pair, sample.Price); err != nil {
			s.logger.Error().Err(err).Msg("failed to refresh exchange rate")
		}
	}

	deviation := decimal.Zero
	if sample.Target.Sign() > 0 {
		deviation = sample.Price.Sub(sample.Target).Div(sample.Target)
	}

	s.refreshZones(bucket, sample, deviation)

	s.logger.Info().Time("bucket", bucket).
		Str("price", sample.Price.String()).
		Str("deviation", deviation.String()).
		Msg("sample recorded")

	s.maybeAlert(ctx, bucket, sample, deviation)
	return nil
}

// refreshZones applies the fresh reference prices to every zone and
// persists a snapshot per zone. Zone-local velocity and throttle knobs stay
// untouched; only the price-derived fields move.
func (s *Service) refreshZones(bucket time.Time, sample oracle.Sample, deviation decimal.Decimal) {
	for _, z := range s.zones.ListZones() {
		z.Indicators.CurrentReferencePrice = sample.Price
		z.Indicators.TargetReferencePrice = sample.Target
		z.StabilityDeviation = deviation
		if err := s.zones.UpsertZone(z); err != nil {
			s.logger.Error().Err(err).Str("zone", z.ID).Msg("failed to refresh zone")
			continue
		}

		if s.snapshots == nil {
			continue
		}
		snap := zone.Snapshot{
			Bucket:             bucket,
			ZoneID:             z.ID,
			StabilityDeviation: deviation,
			ReferencePrice:     sample.Price,
			TargetPrice:        sample.Target,
			Volatility:         z.Indicators.Volatility,
			LiquidityDepth:     z.Indicators.LiquidityDepth,
		}
		if err := s.snapshots.UpsertSnapshot(context.Background(), snap); err != nil {
			s.logger.Error().Err(err).Str("zone", z.ID).Msg("failed to persist snapshot")
		}
	}
}

func (s *Service) maybeAlert(ctx context.Context, bucket time.Time, sample oracle.Sample, deviation decimal.Decimal) {
	if !s.alertsOn || s.notifier == nil || s.threshold.IsZero() {
		return
	}
	if deviation.Abs().LessThanOrEqual(s.threshold) {
		return
	}
	if s.cooldown > 0 && !s.lastAlert.IsZero() && bucket.Sub(s.lastAlert) < s.cooldown {
		s.logger.Debug().Time("bucket", bucket).Msg("alert suppressed by cooldown")
		return
	}

	note := alerting.Notification{
		Bucket:         bucket,
		ZoneID:         "global",
		Deviation:      deviation,
		Threshold:      s.threshold,
		ReferencePrice: sample.Price,
		TargetPrice:    sample.Target,
		Direction:      classifyDeviation(deviation),
		Channels:       s.channels,
	}
	if err := s.notifier.Notify(ctx, note); err != nil {
		s.logger.Error().Err(err).Time("bucket", bucket).Msg("failed to dispatch alert")
		return
	}
	s.lastAlert = bucket
}

func classifyDeviation(d decimal.Decimal) string {
	switch d.Sign() {
	case 1:
		return "up"
	case -1:
		return "down"
	default:
		return "flat"
	}
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
