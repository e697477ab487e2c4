package services

import (
	"context"
	"errors"
	"slices"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/campus-market/internal/domain"
	"github.com/tbourn/campus-market/internal/repo"
)

var (
	reportReasons     = []string{"spam", "inappropriate", "scam", "other"}
	reportResolutions = []string{domain.ReportReviewed, domain.ReportResolved, domain.ReportDismissed}
)

// ReportInput is a complaint about a listing or a user.
type ReportInput struct {
	TargetType  string
	TargetID    string
	Reason      string
	Description string
}

// ReportService files and triages reports.
type ReportService struct {
	DB *gorm.DB
}

// File records a pending report after checking that the target exists.
func (s *ReportService) File(ctx context.Context, reporter Actor, in ReportInput) (*domain.Report, error) {
	in.TargetID = strings.TrimSpace(in.TargetID)
	in.Description = strings.TrimSpace(in.Description)

	v := &ValidationError{}
	if in.TargetType != domain.ReportTargetListing && in.TargetType != domain.ReportTargetUser {
		v.Add("target_type", "target_type must be listing or user")
	}
	if in.TargetID == "" {
		v.Add("target_id", "target_id is required")
	}
	if !slices.Contains(reportReasons, in.Reason) {
		v.Add("reason", "reason must be one of spam, inappropriate, scam, other")
	}
	if in.TargetType == domain.ReportTargetUser && in.TargetID == reporter.ID {
		v.Add("target_id", "you cannot report yourself")
	}
	if len(in.Description) > maxDescriptionRunes {
		v.Add("description", "description is too long")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	switch in.TargetType {
	case domain.ReportTargetListing:
		if _, err := repo.GetListing(ctx, s.DB, in.TargetID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil, ErrListingNotFound
			}
			return nil, err
		}
	case domain.ReportTargetUser:
		if _, err := repo.GetUser(ctx, s.DB, in.TargetID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil, ErrUserNotFound
			}
			return nil, err
		}
	}

	r := &domain.Report{
		ReporterID:  reporter.ID,
		TargetType:  in.TargetType,
		TargetID:    in.TargetID,
		Reason:      in.Reason,
		Description: in.Description,
	}
	if err := repo.CreateReport(ctx, s.DB, r); err != nil {
		return nil, err
	}
	return r, nil
}

// List returns reports, optionally by status, newest first.
func (s *ReportService) List(ctx context.Context, status string, page, pageSize int) (Page[domain.Report], error) {
	page, pageSize, offset := normalizePage(page, pageSize)
	out := Page[domain.Report]{Items: []domain.Report{}, Page: page, PageSize: pageSize}
	if status != "" && status != domain.ReportPending && !slices.Contains(reportResolutions, status) {
		return out, invalid("status", "unknown report status")
	}
	total, err := repo.CountReports(ctx, s.DB, status)
	if err != nil {
		return out, err
	}
	out.Total = total
	if total == 0 {
		return out, nil
	}
	items, err := repo.ListReportsPage(ctx, s.DB, status, offset, pageSize)
	if err != nil {
		return out, err
	}
	out.Items = items
	return out, nil
}

// Resolve moves a report to reviewed, resolved or dismissed.
func (s *ReportService) Resolve(ctx context.Context, admin Actor, id, status string) (*domain.Report, error) {
	if !slices.Contains(reportResolutions, status) {
		return nil, invalid("status", "status must be one of reviewed, resolved, dismissed")
	}
	if err := repo.ResolveReport(ctx, s.DB, id, status, admin.ID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}
	r, err := repo.GetReport(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}
	return r, nil
}
