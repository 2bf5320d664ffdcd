package app

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"ncapportal/pkg/domain"
)

// analyzer produces placeholder fairness analyses. The output shape is the
// contract a real inference engine must satisfy; the randomness itself is a
// stand-in and not a behavior anything may depend on.
type analyzer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newAnalyzer(rng *rand.Rand) *analyzer {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &analyzer{rng: rng}
}

func (an *analyzer) intn(n int) int {
	an.mu.Lock()
	defer an.mu.Unlock()
	return an.rng.Intn(n)
}

func (an *analyzer) chance(p float64) bool {
	an.mu.Lock()
	defer an.mu.Unlock()
	return an.rng.Float64() < p
}

// Analyze runs the fairness-analysis stub against a violation the user may
// read. When a PDF evidence attachment yields extractable text, the plate
// match is computed from it instead of drawn.
func (a *App) Analyze(ctx context.Context, user domain.User, violationID string) (domain.AnalysisResult, error) {
	violation, err := a.violationForUser(user, violationID)
	if err != nil {
		return domain.AnalysisResult{}, err
	}
	return a.analyzer.analyze(violation, a.evidenceTextFn(ctx)), nil
}

// evidenceTextFn defers the object-storage round trip until the analyzer
// decides it needs the text.
func (a *App) evidenceTextFn(ctx context.Context) func(domain.Violation) (string, bool) {
	return func(v domain.Violation) (string, bool) {
		return a.evidenceText(ctx, v)
	}
}

func (an *analyzer) analyze(violation domain.Violation, evidenceText func(domain.Violation) (string, bool)) domain.AnalysisResult {
	result := domain.AnalysisResult{
		Verdict:      domain.VerdictValid,
		Confidence:   70 + an.intn(30),
		ImageQuality: domain.QualityGood,
		ViolationDetails: domain.ViolationDetails{
			ExtractedPlate:    violation.PlateNumber,
			ExtractedLocation: violation.Location,
			ExtractedTime:     "14:32",
			WeatherConditions: "Clear",
		},
		Issues:          []string{},
		Recommendations: []string{},
	}
	if an.chance(0.5) {
		result.Verdict = domain.VerdictUnfair
	}
	if an.chance(0.2) {
		result.ImageQuality = domain.QualityPoor
	}

	if text, ok := evidenceText(violation); ok {
		normalized := domain.NormalizePlate(text)
		result.PlateNumberMatch = strings.Contains(normalized, violation.PlateNumber)
	} else {
		result.PlateNumberMatch = an.chance(0.7)
	}

	if result.Verdict == domain.VerdictUnfair {
		if !result.PlateNumberMatch {
			result.Issues = append(result.Issues, "Plate number hindi clear sa larawan")
		}
		if result.ImageQuality == domain.QualityPoor {
			result.Issues = append(result.Issues, "Malabo ang larawan ng violation")
		}
		result.Issues = append(result.Issues, "Walang clear na violation na nakita")
		result.Recommendations = []string{
			"Mag-file ng formal appeal",
			"Mag-request ng clearer evidence",
			"Kumuha ng legal assistance",
		}
	} else {
		result.Recommendations = []string{
			"Bayaran ang fine o mag-file ng appeal kung may valid reason",
			"I-review ang traffic rules para sa future",
		}
	}
	return result
}

// ValidateAnalysis checks a caller-supplied analysis snapshot against the
// stub contract before it is persisted on an appeal.
func ValidateAnalysis(result domain.AnalysisResult) error {
	if result.Verdict != domain.VerdictValid && result.Verdict != domain.VerdictUnfair {
		return fmt.Errorf("%w: verdict must be valid or unfair", ErrValidation)
	}
	if result.Confidence < 70 || result.Confidence > 99 {
		return fmt.Errorf("%w: confidence must be between 70 and 99", ErrValidation)
	}
	if result.ImageQuality != domain.QualityGood && result.ImageQuality != domain.QualityPoor {
		return fmt.Errorf("%w: image quality must be good or poor", ErrValidation)
	}
	return nil
}
