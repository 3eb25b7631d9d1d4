package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-hotel-reservation/internal/domain/room"
)

type roomRow struct {
	ID           string    `db:"id"`
	HotelID      string    `db:"hotel_id"`
	RoomNumber   string    `db:"room_number"`
	RoomType     string    `db:"room_type"`
	NightlyPrice int       `db:"nightly_price"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

type hotelRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	OwnerUserID string    `db:"owner_user_id"`
	City        string    `db:"city"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// RoomRepository は客室カタログの読み取り実装
// カタログの更新系は外部コラボレーターの責務のため持たない
type RoomRepository struct{ db *sqlx.DB }

func NewRoomRepository(db *sqlx.DB) *RoomRepository { return &RoomRepository{db: db} }

func (r *RoomRepository) GetByID(ctx context.Context, id string) (*room.Room, error) {
	var row roomRow
	query := `SELECT id, hotel_id, room_number, room_type, nightly_price, created_at, updated_at FROM rooms WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, room.ErrRoomNotFound
		}
		return nil, fmt.Errorf("客室取得に失敗: %w", err)
	}
	return &room.Room{
		ID: row.ID, HotelID: row.HotelID, RoomNumber: row.RoomNumber,
		RoomType: row.RoomType, NightlyPrice: row.NightlyPrice,
		CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt,
	}, nil
}

func (r *RoomRepository) GetHotelByID(ctx context.Context, id string) (*room.Hotel, error) {
	var row hotelRow
	query := `SELECT id, name, owner_user_id, city, created_at, updated_at FROM hotels WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, room.ErrHotelNotFound
		}
		return nil, fmt.Errorf("ホテル取得に失敗: %w", err)
	}
	return &room.Hotel{
		ID: row.ID, Name: row.Name, OwnerUserID: row.OwnerUserID, City: row.City,
		CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt,
	}, nil
}

var _ room.Repository = (*RoomRepository)(nil)
