package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrCacheMiss = errors.New("キャッシュが見つかりません")
)

// AvailabilityCacheInterface は空室照会キャッシュのインターフェース
type AvailabilityCacheInterface interface {
	Get(ctx context.Context, roomID string, checkIn, checkOut time.Time) (bool, error)
	Set(ctx context.Context, roomID string, checkIn, checkOut time.Time, available bool, ttl time.Duration) error
	InvalidateRoom(ctx context.Context, roomID string) error
}

// AvailabilityCache は客室×期間ごとの空室照会結果をキャッシュする
// あくまで参考情報のキャッシュであり、予約確定時の判定には使用しない
type AvailabilityCache struct {
	client *redis.Client
}

// NewAvailabilityCache は新しいAvailabilityCacheインスタンスを作成する
func NewAvailabilityCache(client *redis.Client) *AvailabilityCache {
	return &AvailabilityCache{client: client}
}

// Get は空室照会結果をキャッシュから取得する
func (c *AvailabilityCache) Get(ctx context.Context, roomID string, checkIn, checkOut time.Time) (bool, error) {
	val, err := c.client.Get(ctx, c.key(roomID, checkIn, checkOut)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, ErrCacheMiss
		}
		return false, fmt.Errorf("キャッシュ取得に失敗: %w", err)
	}
	return val == 1, nil
}

// Set は空室照会結果をキャッシュに保存する
func (c *AvailabilityCache) Set(ctx context.Context, roomID string, checkIn, checkOut time.Time, available bool, ttl time.Duration) error {
	val := 0
	if available {
		val = 1
	}
	if err := c.client.Set(ctx, c.key(roomID, checkIn, checkOut), val, ttl).Err(); err != nil {
		return fmt.Errorf("キャッシュ保存に失敗: %w", err)
	}
	return nil
}

// InvalidateRoom は客室の空室キャッシュをまとめて無効化する
// 予約確定・キャンセル時に呼び出す
func (c *AvailabilityCache) InvalidateRoom(ctx context.Context, roomID string) error {
	pattern := fmt.Sprintf("availability:%s:*", roomID)
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("キャッシュ無効化に失敗: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("キャッシュ走査に失敗: %w", err)
	}
	return nil
}

func (c *AvailabilityCache) key(roomID string, checkIn, checkOut time.Time) string {
	const layout = "2006-01-02"
	return fmt.Sprintf("availability:%s:%s:%s", roomID, checkIn.Format(layout), checkOut.Format(layout))
}

var _ AvailabilityCacheInterface = (*AvailabilityCache)(nil)
