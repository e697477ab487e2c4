// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Report
// model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/campus-market/internal/domain"
)

// CreateReport inserts r as pending.
func CreateReport(ctx context.Context, db *gorm.DB, r *domain.Report) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	r.CreatedAt, r.UpdatedAt = now, now
	if r.Status == "" {
		r.Status = domain.ReportPending
	}
	return db.WithContext(ctx).Create(r).Error
}

// GetReport fetches a report by ID.
func GetReport(ctx context.Context, db *gorm.DB, id string) (*domain.Report, error) {
	var r domain.Report
	if err := db.WithContext(ctx).Where("id = ?", id).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// CountReports returns the number of reports, optionally by status.
func CountReports(ctx context.Context, db *gorm.DB, status string) (int64, error) {
	var total int64
	q := db.WithContext(ctx).Model(&domain.Report{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	return total, q.Count(&total).Error
}

// ListReportsPage returns reports, optionally by status, newest first.
func ListReportsPage(ctx context.Context, db *gorm.DB, status string, offset, limit int) ([]domain.Report, error) {
	var out []domain.Report
	q := db.WithContext(ctx)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Order("created_at desc, id desc").Offset(offset).Limit(limit).Find(&out).Error
	return out, err
}

// ResolveReport sets the status of report id and records who handled it.
func ResolveReport(ctx context.Context, db *gorm.DB, id, status, adminID string) error {
	now := time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.Report{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":      status,
			"resolved_by": adminID,
			"resolved_at": now,
			"updated_at":  now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
