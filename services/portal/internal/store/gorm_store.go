package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ncapportal/pkg/domain"
)

// GormStore implements Store using GORM + Postgres.
//
// The unique index on appeals.violation_id is the storage-level guarantee
// behind the at-most-one-appeal invariant: a second concurrent insert loses
// the race at the database, not at an application pre-check.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&UserModel{}, &VehicleModel{}, &ViolationModel{}, &AppealModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// SaveUser registers or updates a user.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "email", "password_hash", "role", "updated_at"}),
	}).Create(&model).Error
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// ListUsers returns all users ordered by created_at.
func (s *GormStore) ListUsers() ([]domain.User, error) {
	var models []UserModel
	if err := s.db.Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.User, 0, len(models))
	for _, m := range models {
		res = append(res, userFromModel(m))
	}
	return res, nil
}

// SaveVehicle stores or updates a vehicle.
func (s *GormStore) SaveVehicle(v domain.Vehicle) error {
	model := vehicleToModel(v)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"plate_number", "type", "brand", "model", "year", "updated_at"}),
	}).Create(&model).Error
}

// GetVehicle retrieves a vehicle.
func (s *GormStore) GetVehicle(id string) (domain.Vehicle, bool, error) {
	var model VehicleModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Vehicle{}, false, nil
		}
		return domain.Vehicle{}, false, err
	}
	return vehicleFromModel(model), true, nil
}

// ListVehiclesByOwner returns the owner's vehicles ordered by created_at.
func (s *GormStore) ListVehiclesByOwner(ownerID string) ([]domain.Vehicle, error) {
	var models []VehicleModel
	if err := s.db.Order("created_at ASC").Where("owner_id = ?", ownerID).Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Vehicle, 0, len(models))
	for _, m := range models {
		res = append(res, vehicleFromModel(m))
	}
	return res, nil
}

// ListVehiclesByPlate returns vehicles matching a normalized plate.
func (s *GormStore) ListVehiclesByPlate(plate string) ([]domain.Vehicle, error) {
	var models []VehicleModel
	if err := s.db.Where("plate_number = ?", plate).Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Vehicle, 0, len(models))
	for _, m := range models {
		res = append(res, vehicleFromModel(m))
	}
	return res, nil
}

// DeleteVehicle removes a vehicle record.
func (s *GormStore) DeleteVehicle(id string) error {
	return s.db.Delete(&VehicleModel{}, "id = ?", id).Error
}

// SaveViolation stores or updates a violation.
func (s *GormStore) SaveViolation(v domain.Violation) error {
	model, err := violationToModel(v)
	if err != nil {
		return err
	}
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"plate_number", "violation_type", "location", "date", "fine",
			"ticket_number", "status", "coordinates", "file_keys", "notes",
			"user_id", "paid_at", "updated_at",
		}),
	}).Create(&model).Error
}

// GetViolation retrieves a violation.
func (s *GormStore) GetViolation(id string) (domain.Violation, bool, error) {
	var model ViolationModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Violation{}, false, nil
		}
		return domain.Violation{}, false, err
	}
	v, err := violationFromModel(model)
	if err != nil {
		return domain.Violation{}, false, err
	}
	return v, true, nil
}

// ListViolationsByPlate returns violations for one plate, date descending.
func (s *GormStore) ListViolationsByPlate(plate string) ([]domain.Violation, error) {
	return s.listViolations("plate_number = ?", plate)
}

// ListViolationsByPlates returns violations across a plate set, date
// descending. Callers must never pass an empty set; the app layer
// short-circuits before reaching the store.
func (s *GormStore) ListViolationsByPlates(plates []string) ([]domain.Violation, error) {
	return s.listViolations("plate_number IN ?", plates)
}

func (s *GormStore) listViolations(cond string, arg any) ([]domain.Violation, error) {
	var models []ViolationModel
	if err := s.db.Order("date DESC").Where(cond, arg).Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Violation, 0, len(models))
	for _, m := range models {
		v, err := violationFromModel(m)
		if err != nil {
			return nil, err
		}
		res = append(res, v)
	}
	return res, nil
}

// SetViolationPaid marks a violation settled and records the timestamp.
func (s *GormStore) SetViolationPaid(id string) error {
	now := time.Now().UTC()
	return s.db.Model(&ViolationModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     string(domain.ViolationPaid),
			"paid_at":    now,
			"updated_at": now,
		}).Error
}

// CreateAppeal inserts the appeal and flips the violation status in one
// transaction. The unique violation_id index turns a duplicate submission
// into ErrAppealExists instead of a second appeal.
func (s *GormStore) CreateAppeal(appeal domain.Appeal, violationStatus domain.ViolationStatus) error {
	model, err := appealToModel(appeal)
	if err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAppealExists
			}
			return err
		}
		return tx.Model(&ViolationModel{}).
			Where("id = ?", appeal.ViolationID).
			Updates(map[string]any{
				"status":     string(violationStatus),
				"updated_at": time.Now().UTC(),
			}).Error
	})
}

// GetAppeal retrieves an appeal.
func (s *GormStore) GetAppeal(id string) (domain.Appeal, bool, error) {
	var model AppealModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Appeal{}, false, nil
		}
		return domain.Appeal{}, false, err
	}
	a, err := appealFromModel(model)
	if err != nil {
		return domain.Appeal{}, false, err
	}
	return a, true, nil
}

// GetAppealByViolation looks up the appeal referencing a violation.
func (s *GormStore) GetAppealByViolation(violationID string) (domain.Appeal, bool, error) {
	var model AppealModel
	if err := s.db.First(&model, "violation_id = ?", violationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Appeal{}, false, nil
		}
		return domain.Appeal{}, false, err
	}
	a, err := appealFromModel(model)
	if err != nil {
		return domain.Appeal{}, false, err
	}
	return a, true, nil
}

// ListAppeals returns all appeals, most recently submitted first.
func (s *GormStore) ListAppeals() ([]domain.Appeal, error) {
	var models []AppealModel
	if err := s.db.Order("submitted_date DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Appeal, 0, len(models))
	for _, m := range models {
		a, err := appealFromModel(m)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, nil
}

// ApplyDecision writes the appeal and violation status in one transaction.
func (s *GormStore) ApplyDecision(appealID string, appealStatus domain.AppealStatus, violationStatus domain.ViolationStatus) error {
	now := time.Now().UTC()
	return s.db.Transaction(func(tx *gorm.DB) error {
		var model AppealModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&model, "id = ?", appealID).Error; err != nil {
			return err
		}
		if err := tx.Model(&AppealModel{}).
			Where("id = ?", appealID).
			Updates(map[string]any{
				"status":     string(appealStatus),
				"updated_at": now,
			}).Error; err != nil {
			return err
		}
		return tx.Model(&ViolationModel{}).
			Where("id = ?", model.ViolationID).
			Updates(map[string]any{
				"status":     string(violationStatus),
				"updated_at": now,
			}).Error
	})
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Name:         m.Name,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Role:         domain.UserRole(m.Role),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func vehicleToModel(v domain.Vehicle) VehicleModel {
	return VehicleModel{
		ID:          v.ID,
		PlateNumber: v.PlateNumber,
		Type:        v.Type,
		Brand:       v.Brand,
		Model:       v.Model,
		Year:        v.Year,
		OwnerID:     v.OwnerID,
		CreatedAt:   v.CreatedAt,
		UpdatedAt:   v.UpdatedAt,
	}
}

func vehicleFromModel(m VehicleModel) domain.Vehicle {
	return domain.Vehicle{
		ID:          m.ID,
		PlateNumber: m.PlateNumber,
		Type:        m.Type,
		Brand:       m.Brand,
		Model:       m.Model,
		Year:        m.Year,
		OwnerID:     m.OwnerID,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func violationToModel(v domain.Violation) (ViolationModel, error) {
	model := ViolationModel{
		ID:            v.ID,
		PlateNumber:   v.PlateNumber,
		ViolationType: v.ViolationType,
		Location:      v.Location,
		Date:          v.Date,
		Fine:          v.Fine,
		TicketNumber:  v.TicketNumber,
		Status:        string(v.Status),
		Notes:         v.Notes,
		UserID:        v.UserID,
		PaidAt:        v.PaidAt,
		CreatedAt:     v.CreatedAt,
		UpdatedAt:     v.UpdatedAt,
	}
	if v.Coordinates != nil {
		raw, err := json.Marshal(v.Coordinates)
		if err != nil {
			return ViolationModel{}, fmt.Errorf("marshal coordinates: %w", err)
		}
		model.Coordinates = datatypes.JSON(raw)
	}
	if len(v.FileKeys) > 0 {
		raw, err := json.Marshal(v.FileKeys)
		if err != nil {
			return ViolationModel{}, fmt.Errorf("marshal file keys: %w", err)
		}
		model.FileKeys = datatypes.JSON(raw)
	}
	return model, nil
}

func violationFromModel(m ViolationModel) (domain.Violation, error) {
	v := domain.Violation{
		ID:            m.ID,
		PlateNumber:   m.PlateNumber,
		ViolationType: m.ViolationType,
		Location:      m.Location,
		Date:          m.Date,
		Fine:          m.Fine,
		TicketNumber:  m.TicketNumber,
		Status:        domain.ViolationStatus(m.Status),
		Notes:         m.Notes,
		UserID:        m.UserID,
		PaidAt:        m.PaidAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
	if len(m.Coordinates) > 0 {
		var coords domain.Coordinates
		if err := json.Unmarshal(m.Coordinates, &coords); err != nil {
			return domain.Violation{}, fmt.Errorf("unmarshal coordinates: %w", err)
		}
		v.Coordinates = &coords
	}
	if len(m.FileKeys) > 0 {
		if err := json.Unmarshal(m.FileKeys, &v.FileKeys); err != nil {
			return domain.Violation{}, fmt.Errorf("unmarshal file keys: %w", err)
		}
	}
	return v, nil
}

func appealToModel(a domain.Appeal) (AppealModel, error) {
	model := AppealModel{
		ID:            a.ID,
		ViolationID:   a.ViolationID,
		PlateNumber:   a.PlateNumber,
		ViolationType: a.ViolationType,
		Location:      a.Location,
		Date:          a.Date,
		Fine:          a.Fine,
		Status:        string(a.Status),
		Letter:        a.Letter,
		Notes:         a.Notes,
		UserID:        a.UserID,
		SubmittedDate: a.SubmittedDate,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
	if a.Analysis != nil {
		raw, err := json.Marshal(a.Analysis)
		if err != nil {
			return AppealModel{}, fmt.Errorf("marshal analysis: %w", err)
		}
		model.Analysis = datatypes.JSON(raw)
	}
	return model, nil
}

func appealFromModel(m AppealModel) (domain.Appeal, error) {
	a := domain.Appeal{
		ID:            m.ID,
		ViolationID:   m.ViolationID,
		PlateNumber:   m.PlateNumber,
		ViolationType: m.ViolationType,
		Location:      m.Location,
		Date:          m.Date,
		Fine:          m.Fine,
		Status:        domain.AppealStatus(m.Status),
		Letter:        m.Letter,
		Notes:         m.Notes,
		UserID:        m.UserID,
		SubmittedDate: m.SubmittedDate,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
	if len(m.Analysis) > 0 {
		var analysis domain.AnalysisResult
		if err := json.Unmarshal(m.Analysis, &analysis); err != nil {
			return domain.Appeal{}, fmt.Errorf("unmarshal analysis: %w", err)
		}
		a.Analysis = &analysis
	}
	return a, nil
}
