package report

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/marketsight/marketsight/internal/atomicio"
)

// Analysis modes recorded on a run.
const (
	ModeML       = "ML"
	ModeStatOnly = "STAT_ONLY"
)

// RunReport summarizes one completed analysis run. It is immutable once
// written; the JSON and text renderings are views over the same counts.
type RunReport struct {
	RunID         string    `json:"run_id"`
	GeneratedAt   time.Time `json:"generated_at"`
	Scope         string    `json:"scope"`
	Mode          string    `json:"mode"`
	TotalListings int       `json:"total_listings"`
	DQFailures    int       `json:"dq_failures"`
	Anomalies     int       `json:"anomalies"`
	Opportunities int       `json:"opportunities"`
	Risks         int       `json:"risks"`

	DeviationThresholdPct float64 `json:"deviation_threshold_pct"`
	SigmaMultiplier       float64 `json:"sigma_multiplier"`
}

// RenderText produces the human-readable rendering. No computation happens
// here, only formatting of the counts.
func (r *RunReport) RenderText() string {
	rule := strings.Repeat("=", 80)
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n", rule)
	fmt.Fprintf(&b, "%30sMarketSight - Analysis Report\n", "")
	fmt.Fprintf(&b, "%s\n", rule)
	fmt.Fprintf(&b, "Generated: %s\n", r.GeneratedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Run ID:    %s\n", r.RunID)
	fmt.Fprintf(&b, "Scope:     %s\n", r.Scope)
	fmt.Fprintf(&b, "Mode:      %s\n\n", r.Mode)

	fmt.Fprintf(&b, "PIPELINE EXECUTION SUMMARY\n%s\n", rule)
	fmt.Fprintf(&b, "Total Listings Considered:     %d\n", r.TotalListings)
	fmt.Fprintf(&b, "Data Quality Failures:         %d\n\n", r.DQFailures)

	fmt.Fprintf(&b, "ANOMALY DETECTION RESULTS\n%s\n", rule)
	fmt.Fprintf(&b, "Total Anomalies Detected:      %d\n", r.Anomalies)
	fmt.Fprintf(&b, "  Investment Opportunities:    %d (Under-Priced)\n", r.Opportunities)
	fmt.Fprintf(&b, "  Market Risks:                %d (Over-Priced)\n\n", r.Risks)

	if r.Mode == ModeML {
		fmt.Fprintf(&b, "DEVIATION THRESHOLD APPLIED:   +/-%.0f%% from predicted price\n", r.DeviationThresholdPct)
	} else {
		fmt.Fprintf(&b, "SIGMA THRESHOLD APPLIED:       %.1f std deviations from group mean\n", r.SigmaMultiplier)
	}
	fmt.Fprintf(&b, "%s\nEnd of Report\n%s\n", rule, rule)

	return b.String()
}

// Write persists the JSON and text renderings atomically into dir, one pair
// per invocation named by scope and timestamp. Returns the two paths.
func (r *RunReport) Write(dir string) (jsonPath, textPath string, err error) {
	stamp := r.GeneratedAt.UTC().Format("20060102_150405")
	base := fmt.Sprintf("report_%s_%s", sanitize(r.Scope), stamp)

	jsonPath = filepath.Join(dir, base+".json")
	if err = atomicio.WriteJSONAtomic(jsonPath, r); err != nil {
		return "", "", fmt.Errorf("failed to write json report: %w", err)
	}

	textPath = filepath.Join(dir, base+".txt")
	if err = atomicio.WriteFileAtomic(textPath, []byte(r.RenderText())); err != nil {
		return "", "", fmt.Errorf("failed to write text report: %w", err)
	}

	log.Info().Str("json", jsonPath).Str("text", textPath).Msg("run report written")
	return jsonPath, textPath, nil
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
