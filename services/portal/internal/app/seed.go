package app

import (
	"fmt"

	"ncapportal/internal/util"
	"ncapportal/pkg/domain"
)

// SampleViolations is the dataset the one-shot seeder loads: ten unpaid
// violations across Metro Manila camera sites.
func SampleViolations() []domain.Violation {
	return []domain.Violation{
		{PlateNumber: "296-XHV", ViolationType: "Illegal Parking", Location: "EDSA, Quezon City", Date: "2024-05-01", Fine: 1000, TicketNumber: "NCAP-2024-000001", Coordinates: &domain.Coordinates{Lat: 14.6325, Lng: 121.0437}},
		{PlateNumber: "296-XHV", ViolationType: "Overspeeding", Location: "C5, Pasig", Date: "2024-05-10", Fine: 2000, TicketNumber: "NCAP-2024-000002", Coordinates: &domain.Coordinates{Lat: 14.5616, Lng: 121.0786}},
		{PlateNumber: "ZGD-605", ViolationType: "Disregarding Traffic Signs", Location: "Commonwealth, QC", Date: "2024-05-05", Fine: 1500, TicketNumber: "NCAP-2024-000003", Coordinates: &domain.Coordinates{Lat: 14.7041, Lng: 121.0492}},
		{PlateNumber: "ABC-123", ViolationType: "No Seatbelt", Location: "Ortigas, Pasig", Date: "2024-05-03", Fine: 500, TicketNumber: "NCAP-2024-000004", Coordinates: &domain.Coordinates{Lat: 14.5876, Lng: 121.0636}},
		{PlateNumber: "XYZ-789", ViolationType: "Illegal U-Turn", Location: "Taft, Manila", Date: "2024-05-04", Fine: 1200, TicketNumber: "NCAP-2024-000005", Coordinates: &domain.Coordinates{Lat: 14.5611, Lng: 120.9947}},
		{PlateNumber: "DEF-456", ViolationType: "Obstruction", Location: "Aurora Blvd, QC", Date: "2024-05-06", Fine: 800, TicketNumber: "NCAP-2024-000006", Coordinates: &domain.Coordinates{Lat: 14.6197, Lng: 121.0531}},
		{PlateNumber: "GHI-321", ViolationType: "Reckless Driving", Location: "Roxas Blvd, Manila", Date: "2024-05-07", Fine: 2500, TicketNumber: "NCAP-2024-000007", Coordinates: &domain.Coordinates{Lat: 14.5553, Lng: 120.9830}},
		{PlateNumber: "JKL-654", ViolationType: "No Plate", Location: "Makati Ave, Makati", Date: "2024-05-08", Fine: 1000, TicketNumber: "NCAP-2024-000008", Coordinates: &domain.Coordinates{Lat: 14.5614, Lng: 121.0270}},
		{PlateNumber: "MNO-987", ViolationType: "Beating the Red Light", Location: "Quezon Ave, QC", Date: "2024-05-09", Fine: 3000, TicketNumber: "NCAP-2024-000009", Coordinates: &domain.Coordinates{Lat: 14.6467, Lng: 121.0425}},
		{PlateNumber: "PQR-852", ViolationType: "Counterflow", Location: "España, Manila", Date: "2024-05-11", Fine: 3500, TicketNumber: "NCAP-2024-000010", Coordinates: &domain.Coordinates{Lat: 14.6091, Lng: 120.9902}},
	}
}

// Seed writes the sample violations. Plates are normalized at the write
// site, the same path every other write takes, so seeded records are always
// findable by a normalized search.
func (a *App) Seed() (int, error) {
	samples := SampleViolations()
	for _, v := range samples {
		now := a.now()
		v.ID = util.NewID()
		v.PlateNumber = domain.NormalizePlate(v.PlateNumber)
		v.Status = domain.ViolationUnpaid
		v.CreatedAt = now
		v.UpdatedAt = now
		if err := a.store.SaveViolation(v); err != nil {
			return 0, fmt.Errorf("seed violation %s: %w", v.TicketNumber, err)
		}
	}
	return len(samples), nil
}
