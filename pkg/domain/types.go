package domain

import "time"

type ViolationStatus string

const (
	ViolationUnpaid      ViolationStatus = "unpaid"
	ViolationUnderReview ViolationStatus = "under_review"
	ViolationDismissed   ViolationStatus = "dismissed"
	ViolationPaid        ViolationStatus = "paid"
)

type AppealStatus string

const (
	AppealPending     AppealStatus = "pending"
	AppealUnderReview AppealStatus = "under_review"
	AppealApproved    AppealStatus = "approved"
	AppealDenied      AppealStatus = "denied"
)

type UserRole string

const (
	RoleCitizen UserRole = "citizen"
	RoleAdmin   UserRole = "admin"
)

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Vehicle struct {
	ID          string    `json:"id"`
	PlateNumber string    `json:"plateNumber"`
	Type        string    `json:"type"`
	Brand       string    `json:"brand"`
	Model       string    `json:"model"`
	Year        string    `json:"year"`
	OwnerID     string    `json:"ownerId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Coordinates locates where a camera captured the violation.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Violation struct {
	ID            string          `json:"id"`
	PlateNumber   string          `json:"plateNumber"`
	ViolationType string          `json:"violationType"`
	Location      string          `json:"location"`
	Date          string          `json:"date"`
	Fine          int             `json:"fine"`
	TicketNumber  string          `json:"ticketNumber"`
	Status        ViolationStatus `json:"status"`
	Coordinates   *Coordinates    `json:"coordinates,omitempty"`
	// FileKeys are object-storage keys; presigned URLs are minted on read.
	FileKeys  []string   `json:"-"`
	FileURLs  []string   `json:"fileUrls,omitempty"`
	Notes     string     `json:"notes,omitempty"`
	UserID    string     `json:"userId,omitempty"`
	PaidAt    *time.Time `json:"paidAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// AnalysisResult is the contract a real inference engine must satisfy if it
// replaces the stub. Issues and recommendations keep their insertion order.
type AnalysisResult struct {
	Verdict          Verdict          `json:"verdict"`
	Confidence       int              `json:"confidence"`
	PlateNumberMatch bool             `json:"plateNumberMatch"`
	ImageQuality     ImageQuality     `json:"imageQuality"`
	ViolationDetails ViolationDetails `json:"violationDetails"`
	Issues           []string         `json:"issues"`
	Recommendations  []string         `json:"recommendations"`
}

type Verdict string

const (
	VerdictValid  Verdict = "valid"
	VerdictUnfair Verdict = "unfair"
)

type ImageQuality string

const (
	QualityGood ImageQuality = "good"
	QualityPoor ImageQuality = "poor"
)

// ViolationDetails carries the fields the analysis claims to have read from
// the evidence.
type ViolationDetails struct {
	ExtractedPlate    string `json:"extractedPlate"`
	ExtractedLocation string `json:"extractedLocation"`
	ExtractedTime     string `json:"extractedTime"`
	WeatherConditions string `json:"weatherConditions"`
}

type Appeal struct {
	ID            string          `json:"id"`
	ViolationID   string          `json:"violationId"`
	PlateNumber   string          `json:"plateNumber"`
	ViolationType string          `json:"violationType"`
	Location      string          `json:"location"`
	Date          string          `json:"date"`
	Fine          int             `json:"fine"`
	Status        AppealStatus    `json:"status"`
	Letter        string          `json:"letter,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	Analysis      *AnalysisResult `json:"analysisResult,omitempty"`
	UserID        string          `json:"userId,omitempty"`
	SubmittedDate time.Time       `json:"submittedDate"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// ChatMessage is one turn of the advisory conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
