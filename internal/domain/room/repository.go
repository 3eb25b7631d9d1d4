package room

import "context"

// Repository は客室カタログの読み取りインターフェース
// 予約エンジンが必要とするのは客室の解決（客室ID → ホテルID・室料）のみ
type Repository interface {
	// GetByID はIDから客室を取得する
	GetByID(ctx context.Context, id string) (*Room, error)

	// GetHotelByID はIDからホテルを取得する
	GetHotelByID(ctx context.Context, id string) (*Hotel, error)
}
