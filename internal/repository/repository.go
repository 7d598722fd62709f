package repository

import (
	"context"
	"database/sql"
	"time"

	"cellar_monitor/internal/models"
)

// EventRepo is the append-only alert journal.
type EventRepo interface {
	Append(ctx context.Context, e models.AlertEvent) error
	List(ctx context.Context, from, to time.Time, typ string) ([]models.AlertEvent, error)
}

type Repository struct {
	EventRepo EventRepo
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		EventRepo: NewEventSQLite(db),
	}
}
