// internal/command/indicators.go - Indicator verdicts and records
package command

import "fmt"

// Verdict is the reputation bucket of an indicator. The numeric values
// match the scoring scale the orchestration host uses.
type Verdict int

const (
	VerdictUnknown    Verdict = 0
	VerdictBenign     Verdict = 1
	VerdictSuspicious Verdict = 2
	VerdictMalicious  Verdict = 3
)

func (v Verdict) String() string {
	switch v {
	case VerdictBenign:
		return "benign"
	case VerdictSuspicious:
		return "suspicious"
	case VerdictMalicious:
		return "malicious"
	default:
		return "unknown"
	}
}

// ScoreVerdict buckets a raw 0-100 reputation score. A zero score means the
// vendor has no opinion. The suspicious boundary sits at exactly half the
// threshold, using real division: threshold 65 makes 33 suspicious and 32
// benign.
func ScoreVerdict(score, threshold int) Verdict {
	switch {
	case score == 0:
		return VerdictUnknown
	case score >= threshold:
		return VerdictMalicious
	case float64(score) >= float64(threshold)/2:
		return VerdictSuspicious
	default:
		return VerdictBenign
	}
}

// Indicator types surfaced by commands
const (
	IndicatorTypeIP     = "ip"
	IndicatorTypeDomain = "domain"
	IndicatorTypeURL    = "url"
	IndicatorTypeCVE    = "cve"
)

// Indicator is a standard indicator record surfaced for downstream
// correlation, carrying the verdict and any standard-context fields.
type Indicator struct {
	Type        string                 `json:"type"`
	Value       string                 `json:"value"`
	Verdict     Verdict                `json:"verdict"`
	Score       int                    `json:"score,omitempty"`
	Description string                 `json:"description,omitempty"`
	Fields      map[string]interface{} `json:"fields,omitempty"`
}

// Relationship links two indicators, e.g. an IP related to a URL.
type Relationship struct {
	Name        string `json:"name"`
	EntityA     string `json:"entity_a"`
	EntityAType string `json:"entity_a_type"`
	EntityB     string `json:"entity_b"`
	EntityBType string `json:"entity_b_type"`
	Brand       string `json:"brand,omitempty"`
}

// verdictDescription is the malicious-description text attached to scored
// indicators.
func verdictDescription(score int) string {
	return fmt.Sprintf("Hello World returned reputation %d", score)
}
