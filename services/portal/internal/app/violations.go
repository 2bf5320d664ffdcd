package app

import (
	"context"
	"fmt"

	"ncapportal/pkg/domain"
)

// PlateSearchResult is the public lookup response: every violation recorded
// against the normalized plate, plus registered vehicle info when a citizen
// has claimed the plate.
type PlateSearchResult struct {
	PlateNumber string             `json:"plateNumber"`
	Vehicle     *domain.Vehicle    `json:"vehicle,omitempty"`
	Violations  []domain.Violation `json:"violations"`
}

// SearchByPlate looks up violations for a raw plate query. The query is
// normalized before matching so "abc 1234" and "ABC1234" hit the same records.
func (a *App) SearchByPlate(ctx context.Context, rawPlate string) (PlateSearchResult, error) {
	plate := domain.NormalizePlate(rawPlate)
	if plate == "" {
		return PlateSearchResult{}, fmt.Errorf("%w: plate number is required", ErrValidation)
	}
	violations, err := a.store.ListViolationsByPlate(plate)
	if err != nil {
		return PlateSearchResult{}, fmt.Errorf("list violations: %w", err)
	}
	result := PlateSearchResult{PlateNumber: plate, Violations: violations}
	vehicles, err := a.store.ListVehiclesByPlate(plate)
	if err != nil {
		return PlateSearchResult{}, fmt.Errorf("list vehicles: %w", err)
	}
	if len(vehicles) > 0 {
		result.Vehicle = &vehicles[0]
	}
	return result, nil
}

// MyViolations returns violations across all of the user's registered plates,
// newest first. A user with no vehicles gets an empty list without touching
// the violations table.
func (a *App) MyViolations(ctx context.Context, user domain.User) ([]domain.Violation, error) {
	vehicles, err := a.store.ListVehiclesByOwner(user.ID)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	if len(vehicles) == 0 {
		return []domain.Violation{}, nil
	}
	plates := make([]string, 0, len(vehicles))
	for _, v := range vehicles {
		plates = append(plates, v.PlateNumber)
	}
	// Stored plates are already canonical; normalize again anyway so a record
	// written before normalization was enforced cannot poison the query set.
	plates = domain.NormalizePlates(plates)
	if len(plates) == 0 {
		return []domain.Violation{}, nil
	}
	violations, err := a.store.ListViolationsByPlates(plates)
	if err != nil {
		return nil, fmt.Errorf("list violations: %w", err)
	}
	return violations, nil
}

// GetViolation returns one violation with presigned evidence URLs. Citizens
// may read violations on their own plates or uploads; admins may read any.
func (a *App) GetViolation(ctx context.Context, user domain.User, violationID string) (domain.Violation, error) {
	violation, err := a.violationForUser(user, violationID)
	if err != nil {
		return domain.Violation{}, err
	}
	a.attachEvidenceURLs(ctx, &violation)
	return violation, nil
}

// SettlePayment marks an unpaid violation as paid. Paying an already-paid
// violation is a no-op success; paying a dismissed or under-review one is
// rejected by the transition table.
func (a *App) SettlePayment(ctx context.Context, user domain.User, violationID string) (domain.Violation, error) {
	violation, err := a.violationForUser(user, violationID)
	if err != nil {
		return domain.Violation{}, err
	}
	if violation.Status == domain.ViolationPaid {
		return violation, nil
	}
	if !domain.CanTransitionViolation(violation.Status, domain.ViolationPaid) {
		return domain.Violation{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, violation.Status, domain.ViolationPaid)
	}
	if err := a.store.SetViolationPaid(violationID); err != nil {
		return domain.Violation{}, fmt.Errorf("settle payment: %w", err)
	}
	violation, ok, err := a.store.GetViolation(violationID)
	if err != nil || !ok {
		return domain.Violation{}, fmt.Errorf("reload violation: %w", err)
	}
	return violation, nil
}

// violationForUser fetches a violation and enforces read access: admin, the
// uploader, or an owner of a vehicle registered on the plate.
func (a *App) violationForUser(user domain.User, violationID string) (domain.Violation, error) {
	violation, ok, err := a.store.GetViolation(violationID)
	if err != nil {
		return domain.Violation{}, fmt.Errorf("fetch violation: %w", err)
	}
	if !ok {
		return domain.Violation{}, ErrNotFound
	}
	if user.Role == domain.RoleAdmin || violation.UserID == user.ID {
		return violation, nil
	}
	vehicles, err := a.store.ListVehiclesByOwner(user.ID)
	if err != nil {
		return domain.Violation{}, fmt.Errorf("list vehicles: %w", err)
	}
	for _, v := range vehicles {
		if v.PlateNumber == violation.PlateNumber {
			return violation, nil
		}
	}
	return domain.Violation{}, ErrForbidden
}

// attachEvidenceURLs mints short-lived presigned URLs for stored evidence
// keys. A failed presign skips the file rather than failing the read.
func (a *App) attachEvidenceURLs(ctx context.Context, violation *domain.Violation) {
	if a.objects == nil || len(violation.FileKeys) == 0 {
		return
	}
	urls := make([]string, 0, len(violation.FileKeys))
	for _, key := range violation.FileKeys {
		url, err := a.objects.PresignGet(ctx, key, a.presignTTL)
		if err != nil {
			continue
		}
		urls = append(urls, url)
	}
	violation.FileURLs = urls
}
