package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-hotel-reservation/internal/domain/payment"
	"github.com/sanosuguru/go-hotel-reservation/internal/pkg/logger"
)

// Publisher は決済確定イベントをRabbitMQへ発行する
// 通知は fire-and-forget であり、発行失敗は呼び出し元でログされるのみで
// 決済確定処理を妨げない
type Publisher struct {
	url       string
	paidQueue string
}

// NewPublisher は新しいPublisherを作成する
func NewPublisher(url, paidQueue string) *Publisher {
	return &Publisher{url: url, paidQueue: paidQueue}
}

// PublishBookingPaid は booking.paid キューへイベントを発行する
// 接続は発行ごとに確立する（発行頻度が低く、常駐接続の再接続管理より単純なため）
func (p *Publisher) PublishBookingPaid(ctx context.Context, ev payment.BookingPaidEvent) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("ブローカー接続に失敗: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("チャネル作成に失敗: %w", err)
	}
	defer ch.Close()

	// キューを冪等に宣言（durable: ブローカー再起動でもメッセージを保持）
	if _, err := ch.QueueDeclare(p.paidQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("キュー宣言に失敗: %w", err)
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("イベントのシリアライズに失敗: %w", err)
	}

	if err := ch.PublishWithContext(ctx,
		"",          // デフォルトエクスチェンジ
		p.paidQueue, // ルーティングキー = キュー名
		false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	); err != nil {
		return fmt.Errorf("イベント発行に失敗: %w", err)
	}

	logger.Debug("決済確定イベントを発行",
		zap.String("queue", p.paidQueue),
		zap.String("booking_id", ev.BookingID),
	)
	return nil
}

var _ payment.Notifier = (*Publisher)(nil)
