package store

import (
	"errors"

	"ncapportal/pkg/domain"
)

// ErrAppealExists is returned when a violation already has an appeal.
// CreateAppeal enforces at-most-one appeal per violation at the storage
// layer, so a lost race still cannot produce a duplicate.
var ErrAppealExists = errors.New("appeal already exists for violation")

// Store defines persistence for users, vehicles, violations, and appeals.
type Store interface {
	// users
	SaveUser(domain.User) error
	HasUserEmail(email string) (bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)
	ListUsers() ([]domain.User, error)

	// vehicles
	SaveVehicle(domain.Vehicle) error
	GetVehicle(id string) (domain.Vehicle, bool, error)
	ListVehiclesByOwner(ownerID string) ([]domain.Vehicle, error)
	ListVehiclesByPlate(plate string) ([]domain.Vehicle, error)
	DeleteVehicle(id string) error

	// violations
	SaveViolation(domain.Violation) error
	GetViolation(id string) (domain.Violation, bool, error)
	ListViolationsByPlate(plate string) ([]domain.Violation, error)
	ListViolationsByPlates(plates []string) ([]domain.Violation, error)
	SetViolationPaid(id string) error

	// appeals
	// CreateAppeal atomically inserts the appeal and moves the linked
	// violation to the given status. Returns ErrAppealExists when the
	// violation already has an appeal.
	CreateAppeal(appeal domain.Appeal, violationStatus domain.ViolationStatus) error
	GetAppeal(id string) (domain.Appeal, bool, error)
	GetAppealByViolation(violationID string) (domain.Appeal, bool, error)
	ListAppeals() ([]domain.Appeal, error)
	// ApplyDecision atomically updates the appeal status and the linked
	// violation status in one transaction.
	ApplyDecision(appealID string, appealStatus domain.AppealStatus, violationStatus domain.ViolationStatus) error
}

// SessionStore issues and resolves session tokens.
type SessionStore interface {
	NewSession(userID string) (string, error)
	GetUserIDByToken(token string) (string, bool, error)
	DeleteSession(token string) error
}
