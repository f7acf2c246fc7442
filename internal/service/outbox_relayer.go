package service

import (
	"context"
	"strconv"
	"time"

	"Civic_Report/internal/metrics"
	"Civic_Report/internal/model"
	"Civic_Report/internal/repository/mysql"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Sender func(ctx context.Context, ob *model.GamificationOutbox) error

// EventPublisher 消息队列生产者
type EventPublisher interface {
	Send(ctx context.Context, key string, value []byte, headers map[string]string) error
}

type RelayerConfig struct {
	BatchSize int
	Interval  time.Duration
	MaxRetry  int
}

// OutboxRelayer 从 outbox 表读取事件异步投递
type OutboxRelayer struct {
	repo    *mysql.OutboxRepository
	cfg     RelayerConfig
	sender  Sender
	metrics *metrics.Collector
	logger  *zap.Logger
}

func NewOutboxRelayer(db *gorm.DB, sender Sender, cfg RelayerConfig, m *metrics.Collector, logger *zap.Logger) *OutboxRelayer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.MaxRetry <= 0 {
		cfg.MaxRetry = 5
	}
	return &OutboxRelayer{
		repo:    &mysql.OutboxRepository{DB: db},
		cfg:     cfg,
		sender:  sender,
		metrics: m,
		logger:  logger,
	}
}

// Run outbox启动器
func (r *OutboxRelayer) Run(ctx context.Context) {
	t := time.NewTicker(r.cfg.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.DrainOnce(ctx)
		}
	}
}

// DrainOnce 投递一批，返回成功条数
func (r *OutboxRelayer) DrainOnce(ctx context.Context) int {
	rows, err := r.repo.List(ctx, r.cfg.BatchSize, r.cfg.MaxRetry)
	if err != nil {
		r.logger.Error("outbox query failed", zap.Error(err))
		return 0
	}
	sent := 0
	for i := range rows {
		ob := rows[i]
		if err = r.sender(ctx, &ob); err != nil {
			r.metrics.RecordOutbox(false)
			r.logger.Warn("outbox send failed",
				zap.Uint64("id", ob.ID),
				zap.String("event", ob.EventType),
				zap.Int("retry", ob.Retry),
				zap.Error(err))
			if err = r.repo.RetryUpdate(ctx, ob.ID); err != nil {
				r.logger.Error("outbox retry update failed", zap.Uint64("id", ob.ID), zap.Error(err))
			}
			continue
		}
		r.metrics.RecordOutbox(true)
		if err = r.repo.SuccessUpdate(ctx, ob.ID); err != nil {
			r.logger.Error("outbox success update failed", zap.Uint64("id", ob.ID), zap.Error(err))
			continue
		}
		sent++
	}
	return sent
}

// KafkaSender 以用户 id 为 key，同一用户的事件落在同一分区
func KafkaSender(p EventPublisher) Sender {
	return func(ctx context.Context, ob *model.GamificationOutbox) error {
		return p.Send(ctx, ob.UserID, ob.Payload, map[string]string{
			"event_type": ob.EventType,
			"outbox_id":  strconv.FormatUint(ob.ID, 10),
		})
	}
}

// ChainSenders 依次投递，任一失败整条事件重试
func ChainSenders(senders ...Sender) Sender {
	return func(ctx context.Context, ob *model.GamificationOutbox) error {
		for _, s := range senders {
			if err := s(ctx, ob); err != nil {
				return err
			}
		}
		return nil
	}
}

// LogSender 未配置 Kafka 时使用，只打日志
func LogSender(logger *zap.Logger) Sender {
	return func(ctx context.Context, ob *model.GamificationOutbox) error {
		logger.Info("outbox event",
			zap.Uint64("id", ob.ID),
			zap.String("event", ob.EventType),
			zap.String("user_id", ob.UserID),
			zap.ByteString("payload", ob.Payload))
		return nil
	}
}
