package audit

import (
	"context"
	"time"

	"github.com/datavault/datavault/model"
	"github.com/datavault/datavault/params"
	"gorm.io/gorm"
)

// Filter narrows the event listing. Zero values mean "no constraint".
type Filter struct {
	UserID  uint
	Action  string
	Success *bool
	Since   time.Time
	Until   time.Time
	Limit   int
	Offset  int
}

type AuditEventRepository interface {
	RecordEvent(ctx context.Context, event *model.AuditEvent) error
	FindEvents(ctx context.Context, filter Filter) ([]*model.AuditEvent, error)
}

type auditEventRepository struct {
	db *gorm.DB
}

func (r *auditEventRepository) RecordEvent(ctx context.Context, event *model.AuditEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *auditEventRepository) FindEvents(ctx context.Context, filter Filter) ([]*model.AuditEvent, error) {
	q := r.db.WithContext(ctx).Model(&model.AuditEvent{})
	if filter.UserID != 0 {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.Action != "" {
		q = q.Where("action = ?", filter.Action)
	}
	if filter.Success != nil {
		q = q.Where("success = ?", *filter.Success)
	}
	if !filter.Since.IsZero() {
		q = q.Where("created_at >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		q = q.Where("created_at < ?", filter.Until)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = params.AuditQueryDefaultLimit
	}
	if limit > params.AuditQueryMaxLimit {
		limit = params.AuditQueryMaxLimit
	}

	var events []*model.AuditEvent
	err := q.Order("created_at DESC").Limit(limit).Offset(filter.Offset).Find(&events).Error
	return events, err
}

func NewAuditEventRepository(db *gorm.DB) AuditEventRepository {
	return &auditEventRepository{
		db: db,
	}
}
