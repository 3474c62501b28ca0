// Package report renders command results as plain text, JSON or YAML
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/JonnyWalker81/nillabg/internal/models"
	"gopkg.in/yaml.v3"
)

// Format selects the output encoding
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a --format flag value
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, json or yaml)", s)
	}
}

// Encode writes v as JSON or YAML
func Encode(w io.Writer, v any, f Format) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("format %q has no structured encoding", f)
	}
}

// Metrics writes the per-bucket metrics report. The text form prints one
// section per bucket and one line per metric:
//
//	=== Morning ===
//	carb_ratio: 10.00 ±0.00 (median 10.00, n=1)
func Metrics(w io.Writer, r *models.MetricsReport, f Format) error {
	if f != FormatText {
		return Encode(w, r, f)
	}

	var b strings.Builder
	for _, bucket := range r.Buckets {
		fmt.Fprintf(&b, "\n=== %s ===\n", title(string(bucket.Bucket)))
		if bucket.Empty() {
			b.WriteString("No records\n")
			continue
		}
		for _, m := range bucket.Metrics {
			fmt.Fprintf(&b, "%s: %.2f%s ±%.2f (median %.2f, n=%d)\n",
				m.Metric, m.Stats.Mean, unit(m.Metric), m.Stats.StdDev, m.Stats.Median, m.Stats.Count)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Build writes the loader counters of a warehouse build
func Build(w io.Writer, s *models.BuildSummary, f Format) error {
	if f != FormatText {
		return Encode(w, s, f)
	}
	_, err := fmt.Fprintf(w,
		"glucose:    %d rows, %d loaded, %d skipped\n"+
			"treatments: %d rows, %d loaded, %d skipped (%d meals, %d doses, %d priming, %d stale doses removed)\n",
		s.Glucose.Rows, s.Glucose.Loaded, s.Glucose.Skipped,
		s.Treatments.Rows, s.Treatments.Loaded, s.Treatments.Skipped,
		s.Treatments.Meals, s.Treatments.Doses, s.Treatments.Priming, s.Treatments.Removed,
	)
	return err
}

// Classes writes meal counts per class
func Classes(w io.Writer, counts map[models.MealClass]int, f Format) error {
	if f != FormatText {
		return Encode(w, counts, f)
	}
	for _, c := range []models.MealClass{models.MealClassHypo, models.MealClassSnack, models.MealClassMeal} {
		if _, err := fmt.Fprintf(w, "%s: %d\n", c, counts[c]); err != nil {
			return err
		}
	}
	return nil
}

// Verification writes the timestamp consistency report
func Verification(w io.Writer, r *models.VerifyReport, f Format) error {
	if f != FormatText {
		return Encode(w, r, f)
	}
	var b strings.Builder
	for _, m := range r.Mismatches {
		fmt.Fprintf(&b, "%s mismatch id=%d (%s): stored %d, expected %d\n", m.Table, m.ID, m.Reason, m.Stored, m.Expected)
	}
	if r.Missing > 0 {
		fmt.Fprintf(&b, "%d staging rows have no fact\n", r.Missing)
	}
	if r.OK() {
		fmt.Fprintf(&b, "All timestamps match (%d facts checked).\n", r.Checked)
	} else {
		fmt.Fprintf(&b, "%d of %d facts mismatched.\n", len(r.Mismatches), r.Checked)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Cleanup writes the doses removed, or to be removed, by a cleanup pass
func Cleanup(w io.Writer, r *models.CleanupReport, f Format) error {
	if f != FormatText {
		return Encode(w, r, f)
	}
	verb := "removed"
	if r.DryRun {
		verb = "would remove"
	}
	var b strings.Builder
	for _, d := range r.Removed {
		units := 0.0
		if d.Units != nil {
			units = *d.Units
		}
		fmt.Fprintf(&b, "fact_id=%d treatment=%d ts=%d %s %.2f U\n", d.FactID, d.TreatmentID, d.TS, d.Name, units)
	}
	fmt.Fprintf(&b, "%s %d of %d doses\n", verb, len(r.Removed), r.Examined)
	_, err := io.WriteString(w, b.String())
	return err
}

// Exclusions formats exclusion counts as "reason=n" pairs in a stable order
func Exclusions(counts map[models.ExclusionReason]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[models.ExclusionReason(k)]))
	}
	return strings.Join(parts, " ")
}

func unit(m models.Metric) string {
	if m == models.MetricInsulinSensitivity {
		return " mmol/L per U"
	}
	return ""
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
