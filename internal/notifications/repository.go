package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines data access for notification records.
type Repository interface {
	Create(ctx context.Context, n *Notification) error
	Get(ctx context.Context, id uuid.UUID) (*Notification, error)
	GetByEventKey(ctx context.Context, recipientID uuid.UUID, eventKey string) (*Notification, error)
	ListByRecipient(ctx context.Context, recipientID uuid.UUID, limit int) ([]Notification, error)
	MarkRead(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkAllRead(ctx context.Context, recipientID uuid.UUID, ids []uuid.UUID, at time.Time) error
	UnreadCount(ctx context.Context, recipientID uuid.UUID) (int64, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a gorm-backed notification repository and
// migrates the notifications table.
func NewGormRepository(db *gorm.DB) (Repository, error) {
	if err := db.AutoMigrate(&Notification{}); err != nil {
		return nil, fmt.Errorf("failed to migrate notifications: %w", err)
	}
	return &gormRepository{db: db}, nil
}

func (r *gormRepository) Create(ctx context.Context, n *Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *gormRepository) Get(ctx context.Context, id uuid.UUID) (*Notification, error) {
	var n Notification
	err := r.db.WithContext(ctx).First(&n, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *gormRepository) GetByEventKey(ctx context.Context, recipientID uuid.UUID, eventKey string) (*Notification, error) {
	var n Notification
	err := r.db.WithContext(ctx).
		First(&n, "recipient_id = ? AND event_key = ?", recipientID, eventKey).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *gormRepository) ListByRecipient(ctx context.Context, recipientID uuid.UUID, limit int) ([]Notification, error) {
	var result []Notification
	query := r.db.WithContext(ctx).
		Where("recipient_id = ?", recipientID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&result).Error
	return result, err
}

func (r *gormRepository) MarkRead(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&Notification{}).
		Where("id = ? AND status = ?", id, StatusUnread).
		Updates(map[string]interface{}{"status": StatusRead, "read_at": at}).Error
}

func (r *gormRepository) MarkAllRead(ctx context.Context, recipientID uuid.UUID, ids []uuid.UUID, at time.Time) error {
	query := r.db.WithContext(ctx).Model(&Notification{}).
		Where("recipient_id = ? AND status = ?", recipientID, StatusUnread)
	if len(ids) > 0 {
		query = query.Where("id IN ?", ids)
	}
	return query.Updates(map[string]interface{}{"status": StatusRead, "read_at": at}).Error
}

func (r *gormRepository) UnreadCount(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Notification{}).
		Where("recipient_id = ? AND status = ?", recipientID, StatusUnread).
		Count(&count).Error
	return count, err
}
