package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	ledongpdf "github.com/ledongthuc/pdf"

	"ncapportal/internal/util"
	"ncapportal/pkg/domain"
	"ncapportal/pkg/storage"
)

var allowedEvidenceExts = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".pdf":  "application/pdf",
}

// EvidenceFile is one uploaded evidence attachment.
type EvidenceFile struct {
	Name        string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// ViolationInput carries the citizen-supplied fields of a ticket upload.
type ViolationInput struct {
	PlateNumber   string              `json:"plateNumber"`
	ViolationType string              `json:"violationType"`
	Location      string              `json:"location"`
	Date          string              `json:"date"`
	Fine          int                 `json:"fine"`
	Notes         string              `json:"notes"`
	Coordinates   *domain.Coordinates `json:"coordinates,omitempty"`
}

// UploadViolation stores evidence files in object storage and records a new
// violation in status unpaid. Evidence is limited to jpg/png/pdf under the
// configured size cap; the plate is normalized at the write site.
func (a *App) UploadViolation(ctx context.Context, user domain.User, in ViolationInput, files []EvidenceFile) (domain.Violation, error) {
	plate := domain.NormalizePlate(in.PlateNumber)
	if plate == "" || strings.TrimSpace(in.ViolationType) == "" || strings.TrimSpace(in.Date) == "" {
		return domain.Violation{}, fmt.Errorf("%w: plate number, violation type and date are required", ErrValidation)
	}
	if in.Fine < 0 {
		return domain.Violation{}, fmt.Errorf("%w: fine must not be negative", ErrValidation)
	}
	for _, f := range files {
		if err := a.validateEvidence(f); err != nil {
			return domain.Violation{}, err
		}
	}

	now := a.now()
	keys := make([]string, 0, len(files))
	for _, f := range files {
		if a.objects == nil {
			return domain.Violation{}, fmt.Errorf("object storage not configured")
		}
		key := storage.EvidenceKey(user.ID, f.Name, now)
		contentType := f.ContentType
		if contentType == "" {
			contentType = allowedEvidenceExts[strings.ToLower(path.Ext(f.Name))]
		}
		if err := a.objects.Put(ctx, key, f.Reader, f.Size, contentType); err != nil {
			return domain.Violation{}, fmt.Errorf("upload evidence %q: %w", f.Name, err)
		}
		keys = append(keys, key)
	}

	violation := domain.Violation{
		ID:            util.NewID(),
		PlateNumber:   plate,
		ViolationType: strings.TrimSpace(in.ViolationType),
		Location:      strings.TrimSpace(in.Location),
		Date:          strings.TrimSpace(in.Date),
		Fine:          in.Fine,
		TicketNumber:  a.newTicketNumber(now.Year()),
		Status:        domain.ViolationUnpaid,
		Coordinates:   in.Coordinates,
		FileKeys:      keys,
		Notes:         strings.TrimSpace(in.Notes),
		UserID:        user.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := a.store.SaveViolation(violation); err != nil {
		return domain.Violation{}, fmt.Errorf("save violation: %w", err)
	}
	a.attachEvidenceURLs(ctx, &violation)
	return violation, nil
}

func (a *App) validateEvidence(f EvidenceFile) error {
	ext := strings.ToLower(path.Ext(f.Name))
	if _, ok := allowedEvidenceExts[ext]; !ok {
		return fmt.Errorf("%w: evidence %q must be jpg, png or pdf", ErrValidation, f.Name)
	}
	if f.Size > a.maxUploadBytes {
		return fmt.Errorf("%w: evidence %q exceeds %d bytes", ErrValidation, f.Name, a.maxUploadBytes)
	}
	return nil
}

func (a *App) newTicketNumber(year int) string {
	return fmt.Sprintf("NCAP-%d-%06d", year, a.analyzer.intn(1000000))
}

// evidenceText downloads the first PDF attachment and extracts its plain
// text. Returns false when no PDF exists or its text cannot be read.
func (a *App) evidenceText(ctx context.Context, violation domain.Violation) (string, bool) {
	if a.objects == nil {
		return "", false
	}
	for _, key := range violation.FileKeys {
		if strings.ToLower(path.Ext(key)) != ".pdf" {
			continue
		}
		rc, err := a.objects.Get(ctx, key)
		if err != nil {
			continue
		}
		data, err := io.ReadAll(io.LimitReader(rc, a.maxUploadBytes))
		rc.Close()
		if err != nil {
			continue
		}
		text, err := extractPDFText(data)
		if err != nil || strings.TrimSpace(text) == "" {
			continue
		}
		return text, true
	}
	return "", false
}

func extractPDFText(data []byte) (string, error) {
	reader, err := ledongpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}
