package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ncapportal/internal/util"
	"ncapportal/pkg/domain"
	"ncapportal/services/portal/internal/store"
)

// SubmitAppeal generates the appeal letter and files the appeal. The appeal
// row and the violation's move to under_review land in one transaction; a
// concurrent duplicate submission loses on the storage-level uniqueness of
// the violation id and surfaces ErrAlreadyAppealed.
func (a *App) SubmitAppeal(ctx context.Context, user domain.User, violationID, notes string, analysis *domain.AnalysisResult) (domain.Appeal, error) {
	violation, err := a.violationForUser(user, violationID)
	if err != nil {
		return domain.Appeal{}, err
	}
	if !domain.CanTransitionViolation(violation.Status, domain.ViolationUnderReview) {
		return domain.Appeal{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, violation.Status, domain.ViolationUnderReview)
	}
	var result domain.AnalysisResult
	if analysis != nil {
		if err := ValidateAnalysis(*analysis); err != nil {
			return domain.Appeal{}, err
		}
		result = *analysis
	} else {
		result = a.analyzer.analyze(violation, a.evidenceTextFn(ctx))
	}

	now := a.now()
	appeal := domain.Appeal{
		ID:            util.NewID(),
		ViolationID:   violation.ID,
		PlateNumber:   violation.PlateNumber,
		ViolationType: violation.ViolationType,
		Location:      violation.Location,
		Date:          violation.Date,
		Fine:          violation.Fine,
		Status:        domain.AppealPending,
		Letter:        BuildAppealLetter(violation, result, notes, now),
		Notes:         strings.TrimSpace(notes),
		Analysis:      &result,
		UserID:        user.ID,
		SubmittedDate: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := a.store.CreateAppeal(appeal, domain.ViolationUnderReview); err != nil {
		if errors.Is(err, store.ErrAppealExists) {
			return domain.Appeal{}, ErrAlreadyAppealed
		}
		return domain.Appeal{}, fmt.Errorf("create appeal: %w", err)
	}
	return appeal, nil
}

// GetAppeal returns one appeal, readable by its submitter or an admin.
func (a *App) GetAppeal(user domain.User, appealID string) (domain.Appeal, error) {
	appeal, ok, err := a.store.GetAppeal(appealID)
	if err != nil {
		return domain.Appeal{}, fmt.Errorf("fetch appeal: %w", err)
	}
	if !ok {
		return domain.Appeal{}, ErrNotFound
	}
	if user.Role != domain.RoleAdmin && appeal.UserID != user.ID {
		return domain.Appeal{}, ErrForbidden
	}
	return appeal, nil
}

// AppealStats counts appeals by status for the admin dashboard.
type AppealStats struct {
	Total       int `json:"total"`
	Pending     int `json:"pending"`
	UnderReview int `json:"underReview"`
	Approved    int `json:"approved"`
	Denied      int `json:"denied"`
}

// AdminListAppeals returns appeals newest first, optionally filtered by
// status, together with counts over the full set.
func (a *App) AdminListAppeals(statusFilter string) ([]domain.Appeal, AppealStats, error) {
	appeals, err := a.store.ListAppeals()
	if err != nil {
		return nil, AppealStats{}, fmt.Errorf("list appeals: %w", err)
	}
	var stats AppealStats
	for _, ap := range appeals {
		stats.Total++
		switch ap.Status {
		case domain.AppealPending:
			stats.Pending++
		case domain.AppealUnderReview:
			stats.UnderReview++
		case domain.AppealApproved:
			stats.Approved++
		case domain.AppealDenied:
			stats.Denied++
		}
	}
	if statusFilter == "" {
		return appeals, stats, nil
	}
	filtered := make([]domain.Appeal, 0, len(appeals))
	for _, ap := range appeals {
		if string(ap.Status) == statusFilter {
			filtered = append(filtered, ap)
		}
	}
	return filtered, stats, nil
}

// AdminDecide applies an admin decision to an appeal. The appeal transition
// table is enforced, the linked violation is forced to the mapped status,
// and both rows change in one transaction.
func (a *App) AdminDecide(appealID, rawDecision string) (domain.Appeal, error) {
	decision, ok := domain.ParseAppealDecision(rawDecision)
	if !ok {
		return domain.Appeal{}, fmt.Errorf("%w: decision must be approved, denied or under_review", ErrValidation)
	}
	appeal, found, err := a.store.GetAppeal(appealID)
	if err != nil {
		return domain.Appeal{}, fmt.Errorf("fetch appeal: %w", err)
	}
	if !found {
		return domain.Appeal{}, ErrNotFound
	}
	if !domain.CanTransitionAppeal(appeal.Status, decision) {
		return domain.Appeal{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, appeal.Status, decision)
	}
	violationStatus, _ := domain.ViolationStatusForDecision(decision)
	if err := a.store.ApplyDecision(appealID, decision, violationStatus); err != nil {
		return domain.Appeal{}, fmt.Errorf("apply decision: %w", err)
	}
	appeal, found, err = a.store.GetAppeal(appealID)
	if err != nil || !found {
		return domain.Appeal{}, fmt.Errorf("reload appeal: %w", err)
	}
	return appeal, nil
}
