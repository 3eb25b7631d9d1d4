package booking

import "errors"

// Booking ドメインのエラー定義
var (
	ErrBookingNotFound     = errors.New("予約が見つかりません")
	ErrRoomUnavailable     = errors.New("指定期間に空室がありません")
	ErrRoomBusy            = errors.New("同じ客室への予約が処理中です。しばらくしてから再試行してください")
	ErrBookingNotPending   = errors.New("予約は決済待ちではありません")
	ErrAlreadyPaid         = errors.New("予約は既に決済済みです")
	ErrAlreadyCancelled    = errors.New("予約は既にキャンセルされています")
	ErrInvalidStayRange    = errors.New("チェックイン日はチェックアウト日より前である必要があります")
	ErrInvalidGuestCount   = errors.New("宿泊人数は1人以上である必要があります")
	ErrInvalidTotalAmount  = errors.New("合計金額が不正です")
	ErrRoomIDRequired      = errors.New("客室IDは必須です")
	ErrGuestUserIDRequired = errors.New("ユーザーIDは必須です")
)
