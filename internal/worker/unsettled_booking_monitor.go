package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-hotel-reservation/internal/pkg/logger"
)

// UnsettledFlagger は長期決済待ち予約を異常記録として残すインターフェース
type UnsettledFlagger interface {
	FlagUnsettledBookings(ctx context.Context, olderThan time.Duration) (int, error)
}

// UnsettledBookingMonitor は決済待ちのまま放置された予約を監視するワーカー
// 記録とメトリクス更新のみを行い、自動キャンセルはしない
type UnsettledBookingMonitor struct {
	reconciliation UnsettledFlagger
	interval       time.Duration
	staleAfter     time.Duration
	stopCh         chan struct{}
	doneCh         chan struct{}
}

// NewUnsettledBookingMonitor は新しいモニターを作成
func NewUnsettledBookingMonitor(
	rs UnsettledFlagger,
	interval time.Duration,
	staleAfter time.Duration,
) *UnsettledBookingMonitor {
	return &UnsettledBookingMonitor{
		reconciliation: rs,
		interval:       interval,
		staleAfter:     staleAfter,
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
	}
}

// Start はモニターを開始
func (m *UnsettledBookingMonitor) Start(ctx context.Context) {
	logger.Info("決済待ち監視ワーカー開始",
		zap.Duration("interval", m.interval),
		zap.Duration("stale_after", m.staleAfter),
	)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	defer close(m.doneCh)

	for {
		select {
		case <-ctx.Done():
			logger.Info("決済待ち監視ワーカー停止（コンテキストキャンセル）")
			return
		case <-m.stopCh:
			logger.Info("決済待ち監視ワーカー停止（シグナル受信）")
			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

// Stop はモニターを停止
func (m *UnsettledBookingMonitor) Stop() {
	close(m.stopCh)
	<-m.doneCh
}

// sweep は長期決済待ちの予約を走査して記録する
func (m *UnsettledBookingMonitor) sweep(ctx context.Context) {
	log := logger.Get()
	log.Debug("決済待ち予約の走査開始")

	count, err := m.reconciliation.FlagUnsettledBookings(ctx, m.staleAfter)
	if err != nil {
		log.Error("決済待ち予約の走査失敗", zap.Error(err))
		return
	}

	if count > 0 {
		log.Warn("長期決済待ちの予約を検出", zap.Int("count", count))
	} else {
		log.Debug("長期決済待ちの予約なし")
	}
}
