package app

import (
	"fmt"
	"strings"

	"ncapportal/internal/util"
	"ncapportal/pkg/domain"
)

// VehicleInput carries the citizen-editable vehicle fields. The plate is
// normalized at the write site; the stored form is the canonical one.
type VehicleInput struct {
	PlateNumber string `json:"plateNumber"`
	Type        string `json:"type"`
	Brand       string `json:"brand"`
	Model       string `json:"model"`
	Year        string `json:"year"`
}

// AddVehicle registers a vehicle for the user. Duplicate plates across owners
// are allowed; ownership transfer is out of scope.
func (a *App) AddVehicle(user domain.User, in VehicleInput) (domain.Vehicle, error) {
	plate := domain.NormalizePlate(in.PlateNumber)
	if plate == "" {
		return domain.Vehicle{}, fmt.Errorf("%w: plate number is required", ErrValidation)
	}
	now := a.now()
	vehicle := domain.Vehicle{
		ID:          util.NewID(),
		PlateNumber: plate,
		Type:        strings.TrimSpace(in.Type),
		Brand:       strings.TrimSpace(in.Brand),
		Model:       strings.TrimSpace(in.Model),
		Year:        strings.TrimSpace(in.Year),
		OwnerID:     user.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := a.store.SaveVehicle(vehicle); err != nil {
		return domain.Vehicle{}, fmt.Errorf("save vehicle: %w", err)
	}
	return vehicle, nil
}

// ListMyVehicles returns the user's registered vehicles.
func (a *App) ListMyVehicles(user domain.User) ([]domain.Vehicle, error) {
	return a.store.ListVehiclesByOwner(user.ID)
}

// UpdateVehicle edits an owned vehicle. Only non-empty fields are applied;
// a supplied plate is re-normalized before the write.
func (a *App) UpdateVehicle(user domain.User, vehicleID string, in VehicleInput) (domain.Vehicle, error) {
	vehicle, err := a.ownedVehicle(user, vehicleID)
	if err != nil {
		return domain.Vehicle{}, err
	}
	if in.PlateNumber != "" {
		plate := domain.NormalizePlate(in.PlateNumber)
		if plate == "" {
			return domain.Vehicle{}, fmt.Errorf("%w: plate number is required", ErrValidation)
		}
		vehicle.PlateNumber = plate
	}
	if v := strings.TrimSpace(in.Type); v != "" {
		vehicle.Type = v
	}
	if v := strings.TrimSpace(in.Brand); v != "" {
		vehicle.Brand = v
	}
	if v := strings.TrimSpace(in.Model); v != "" {
		vehicle.Model = v
	}
	if v := strings.TrimSpace(in.Year); v != "" {
		vehicle.Year = v
	}
	vehicle.UpdatedAt = a.now()
	if err := a.store.SaveVehicle(vehicle); err != nil {
		return domain.Vehicle{}, fmt.Errorf("update vehicle: %w", err)
	}
	return vehicle, nil
}

// DeleteVehicle removes an owned vehicle. Violations keep their plate and
// remain addressable via plate search.
func (a *App) DeleteVehicle(user domain.User, vehicleID string) error {
	if _, err := a.ownedVehicle(user, vehicleID); err != nil {
		return err
	}
	if err := a.store.DeleteVehicle(vehicleID); err != nil {
		return fmt.Errorf("delete vehicle: %w", err)
	}
	return nil
}

func (a *App) ownedVehicle(user domain.User, vehicleID string) (domain.Vehicle, error) {
	vehicle, ok, err := a.store.GetVehicle(vehicleID)
	if err != nil {
		return domain.Vehicle{}, fmt.Errorf("fetch vehicle: %w", err)
	}
	if !ok {
		return domain.Vehicle{}, ErrNotFound
	}
	if vehicle.OwnerID != user.ID {
		return domain.Vehicle{}, ErrForbidden
	}
	return vehicle, nil
}
