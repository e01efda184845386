package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"

	"khata/internal/core"
	"khata/internal/report"
)

// ReportPolicy holds the tunable numbers of the reporting engine. It is read
// from an optional TOML file; missing keys keep their defaults.
type ReportPolicy struct {
	// Location names the IANA zone that defines day and month boundaries.
	Location      string            `toml:"location"`
	TrendBand     decimal.Decimal   `toml:"trend_band"`
	AverageWindow int               `toml:"average_window"`
	TopCategories int               `toml:"top_categories"`
	Categories    []string          `toml:"categories"`
	Outstanding   OutstandingPolicy `toml:"outstanding"`
	MaxDayBuckets int               `toml:"max_day_buckets"`
}

type OutstandingPolicy struct {
	IncludeZero bool            `toml:"include_zero"`
	Sign        string          `toml:"sign"`
	Low         decimal.Decimal `toml:"low"`
	High        decimal.Decimal `toml:"high"`
	Limit       int             `toml:"limit"`
}

// DefaultReportPolicy mirrors the defaults of the report package.
func DefaultReportPolicy() ReportPolicy {
	th := report.DefaultThresholds()
	return ReportPolicy{
		Location:      "UTC",
		TrendBand:     report.DefaultTrendBand(),
		AverageWindow: report.MonthlyAverageWindow,
		TopCategories: 5,
		Categories:    append([]string(nil), core.KnownCategories...),
		Outstanding: OutstandingPolicy{
			Sign: string(report.SignAny),
			Low:  th.Low,
			High: th.High,
		},
		MaxDayBuckets: 366,
	}
}

// LoadReportPolicy reads path over the defaults. An empty path returns the
// defaults. Unknown keys are rejected so typos do not pass silently.
func LoadReportPolicy(path string) (ReportPolicy, error) {
	p := DefaultReportPolicy()
	if path == "" {
		return p, nil
	}
	md, err := toml.DecodeFile(path, &p)
	if err != nil {
		return p, fmt.Errorf("decode report policy %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return p, fmt.Errorf("report policy %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

// Validate checks ranges and that the location can be loaded.
func (p ReportPolicy) Validate() error {
	var errors []string
	if _, err := time.LoadLocation(p.Location); err != nil {
		errors = append(errors, fmt.Sprintf("invalid location '%s': %v", p.Location, err))
	}
	if p.TrendBand.IsNegative() || p.TrendBand.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		errors = append(errors, fmt.Sprintf("invalid trend band %s: must be in [0, 1)", p.TrendBand))
	}
	if p.AverageWindow < 1 {
		errors = append(errors, fmt.Sprintf("invalid average window %d: must be at least 1", p.AverageWindow))
	}
	if p.TopCategories < 0 {
		errors = append(errors, fmt.Sprintf("invalid top categories %d: must not be negative", p.TopCategories))
	}
	switch report.SignFilter(p.Outstanding.Sign) {
	case report.SignAny, report.SignPositive, report.SignNegative:
	default:
		errors = append(errors, fmt.Sprintf("invalid outstanding sign '%s': must be any, positive or negative", p.Outstanding.Sign))
	}
	if p.Outstanding.Low.IsNegative() || p.Outstanding.High.LessThan(p.Outstanding.Low) {
		errors = append(errors, fmt.Sprintf("invalid tier thresholds %s/%s: need 0 <= low <= high", p.Outstanding.Low, p.Outstanding.High))
	}
	if p.MaxDayBuckets < 1 {
		errors = append(errors, fmt.Sprintf("invalid max day buckets %d: must be at least 1", p.MaxDayBuckets))
	}
	if len(errors) > 0 {
		return fmt.Errorf("report policy validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// Loc returns the configured location, UTC when it cannot be loaded.
func (p ReportPolicy) Loc() *time.Location {
	loc, err := time.LoadLocation(p.Location)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SummaryOptions converts the policy for report.Recompute.
func (p ReportPolicy) SummaryOptions() report.SummaryOptions {
	band := p.TrendBand
	return report.SummaryOptions{
		Location:      p.Loc(),
		AverageWindow: p.AverageWindow,
		TrendBand:     &band,
		TopCategories: p.TopCategories,
	}
}

// RankPolicy converts the policy for report.Rank.
func (p ReportPolicy) RankPolicy() report.Policy {
	return report.Policy{
		IncludeZero: p.Outstanding.IncludeZero,
		Sign:        report.SignFilter(p.Outstanding.Sign),
		Thresholds:  &report.Thresholds{Low: p.Outstanding.Low, High: p.Outstanding.High},
		Limit:       p.Outstanding.Limit,
	}
}
