package room

import "errors"

// Room ドメインのエラー定義
var (
	ErrRoomNotFound  = errors.New("客室が見つかりません")
	ErrHotelNotFound = errors.New("ホテルが見つかりません")
)
