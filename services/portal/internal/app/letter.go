package app

import (
	"fmt"
	"strings"
	"time"

	"ncapportal/pkg/domain"
)

// BuildAppealLetter assembles the formal appeal letter from the violation,
// the analysis snapshot, and optional citizen notes. Dates are rendered in
// the en-PH day-first convention.
func BuildAppealLetter(violation domain.Violation, result domain.AnalysisResult, notes string, now time.Time) string {
	office := "Local Government Unit"
	if parts := strings.SplitN(violation.Location, ",", 2); len(parts) == 2 {
		office = strings.TrimSpace(parts[1])
	}
	verdictLabel := "Valid Violation"
	if result.Verdict == domain.VerdictUnfair {
		verdictLabel = "Possibly Unfair Violation"
	}
	plateCheck := "Unverified"
	if result.PlateNumberMatch {
		plateCheck = "Verified"
	}

	var b strings.Builder
	b.WriteString("PORMAL NA APELA PARA SA TRAFFIC VIOLATION\n\n")
	fmt.Fprintf(&b, "Petsa: %s\n\n", now.Format("1/2/2006"))
	fmt.Fprintf(&b, "Sa: Traffic Violation Review Office\n     %s\n\n", office)
	fmt.Fprintf(&b, "Paksa: Appeal para sa Traffic Violation Ticket %s\n\n", violation.TicketNumber)
	b.WriteString("Mahal na mga Opisyal,\n\n")
	fmt.Fprintf(&b, "Ako po ay nais mag-file ng formal appeal para sa traffic violation ticket na natanggap ko noong %s sa %s.\n\n", violation.Date, violation.Location)
	b.WriteString("DETALYE NG VIOLATION:\n")
	fmt.Fprintf(&b, "- Ticket Number: %s\n", violation.TicketNumber)
	fmt.Fprintf(&b, "- Violation Type: %s\n", violation.ViolationType)
	fmt.Fprintf(&b, "- Plate Number: %s\n", violation.PlateNumber)
	fmt.Fprintf(&b, "- Fine Amount: ₱%d\n\n", violation.Fine)
	b.WriteString("DAHILAN NG APELA:\n")
	b.WriteString("Batay sa AI analysis na ginawa gamit ang advanced image recognition technology, natuklasan ang mga sumusunod na issues:\n\n")
	for _, issue := range result.Issues {
		fmt.Fprintf(&b, "• %s\n", issue)
	}
	b.WriteString("\nAI ANALYSIS RESULTS:\n")
	fmt.Fprintf(&b, "- Verdict: %s\n", verdictLabel)
	fmt.Fprintf(&b, "- Confidence Level: %d%%\n", result.Confidence)
	fmt.Fprintf(&b, "- Image Quality Assessment: %s\n", result.ImageQuality)
	fmt.Fprintf(&b, "- Plate Number Verification: %s\n", plateCheck)
	if notes = strings.TrimSpace(notes); notes != "" {
		fmt.Fprintf(&b, "\nDAGDAG NA IMPORMASYON:\n%s\n", notes)
	}
	b.WriteString("\nSa kadahilanang ito, hinihiling ko po ang inyong consideration para sa dismissal ng violation ticket na ito. Nakaattach po ang mga supporting documents at evidence.\n\n")
	b.WriteString("Maraming salamat sa inyong oras at consideration.\n\n")
	b.WriteString("Taos-pusong nagmamakaawa,\n\n")
	b.WriteString("_____________________\n[Inyong Pangalan]\n[Contact Information]\n[Petsa]\n\n")
	b.WriteString("ATTACHMENTS:\n- Original Ticket Photo/Document\n- AI Analysis Report\n- Supporting Evidence (if any)")
	return b.String()
}
