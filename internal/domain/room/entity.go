package room

import "time"

// Room は客室エンティティを表す
// 客室カタログの管理は外部コラボレーターの責務であり、
// 本エンジンは客室ID・所属ホテル・室料の読み取りのみを行う
type Room struct {
	ID           string
	HotelID      string
	RoomNumber   string
	RoomType     string
	NightlyPrice int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Hotel はホテルエンティティを表す（参照専用）
type Hotel struct {
	ID          string
	Name        string
	OwnerUserID string
	City        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
