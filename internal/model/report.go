package model

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"
)

// SectionReport is one nested audit section (on-page, technical, ...).
// Sections are produced by the external analysis service; each carries its
// own score and recommendations and is rendered independently.
type SectionReport struct {
	// Score is the section score in [0, 100].
	Score float64 `json:"score"`

	// Recommendations are human-readable improvement suggestions.
	Recommendations []string `json:"recommendations,omitempty"`

	// Checks holds the raw per-check values the section was scored from.
	// Shape is section-specific; consumers render whatever is present.
	Checks map[string]any `json:"checks,omitempty"`
}

// Summary aggregates issue counts across all sections. The producer is the
// sole source of truth for these numbers; no recomputation happens here.
type Summary struct {
	CriticalIssues int `json:"criticalIssues"`
	WarningIssues  int `json:"warningIssues"`
	PassedChecks   int `json:"passedChecks"`
	TotalChecks    int `json:"totalChecks"`
}

// AuditReport is the scored result of a single audit. Only URL, AnalyzedAt
// and OverallScore are required; every other part is optional and a partial
// report must still render.
type AuditReport struct {
	URL          string    `json:"url"`
	AnalyzedAt   time.Time `json:"analyzedAt"`
	OverallScore float64   `json:"overallScore"`

	Summary *Summary `json:"summary,omitempty"`

	OnPageSEO        *SectionReport `json:"onPageSEO,omitempty"`
	TechnicalSEO     *SectionReport `json:"technicalSEO,omitempty"`
	OffPageSEO       *SectionReport `json:"offPageSEO,omitempty"`
	Security         *SectionReport `json:"security,omitempty"`
	LighthouseResult *SectionReport `json:"lighthouseResult,omitempty"`

	// Screenshot is a base64-encoded PNG, present when the audit was
	// requested with includeScreenshot and the analyzer captured one.
	Screenshot string `json:"screenshot,omitempty"`
}

// Sections returns the present sections in stable rendering order.
func (r *AuditReport) Sections() map[string]*SectionReport {
	out := map[string]*SectionReport{}
	for name, sec := range map[string]*SectionReport{
		"onPageSEO":        r.OnPageSEO,
		"technicalSEO":     r.TechnicalSEO,
		"offPageSEO":       r.OffPageSEO,
		"security":         r.Security,
		"lighthouseResult": r.LighthouseResult,
	} {
		if sec != nil {
			out[name] = sec
		}
	}
	return out
}

// SectionOrder is the stable rendering order for report sections.
var SectionOrder = []string{"onPageSEO", "technicalSEO", "offPageSEO", "security", "lighthouseResult"}

// MalformedReportError reports a missing or malformed required field in an
// external report body.
type MalformedReportError struct {
	Field  string
	Reason string
}

func (e *MalformedReportError) Error() string {
	return fmt.Sprintf("malformed report: field %q: %s", e.Field, e.Reason)
}

// ParseReport validates and decodes an external report body. Required
// fields are url (absolute http/https), analyzedAt (RFC 3339) and
// overallScore (0..100); anything else may be missing and the report is
// still accepted.
func ParseReport(data []byte) (*AuditReport, error) {
	var raw struct {
		URL          *string         `json:"url"`
		AnalyzedAt   json.RawMessage `json:"analyzedAt"`
		OverallScore *float64        `json:"overallScore"`

		Summary          *Summary       `json:"summary"`
		OnPageSEO        *SectionReport `json:"onPageSEO"`
		TechnicalSEO     *SectionReport `json:"technicalSEO"`
		OffPageSEO       *SectionReport `json:"offPageSEO"`
		Security         *SectionReport `json:"security"`
		LighthouseResult *SectionReport `json:"lighthouseResult"`
		Screenshot       string         `json:"screenshot"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &MalformedReportError{Field: "report", Reason: err.Error()}
	}

	if raw.URL == nil || *raw.URL == "" {
		return nil, &MalformedReportError{Field: "url", Reason: "missing"}
	}
	u, err := url.Parse(*raw.URL)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &MalformedReportError{Field: "url", Reason: "not an absolute http(s) URL"}
	}

	if len(raw.AnalyzedAt) == 0 || string(raw.AnalyzedAt) == "null" {
		return nil, &MalformedReportError{Field: "analyzedAt", Reason: "missing"}
	}
	var analyzedAt time.Time
	if err := json.Unmarshal(raw.AnalyzedAt, &analyzedAt); err != nil {
		return nil, &MalformedReportError{Field: "analyzedAt", Reason: "not an RFC 3339 timestamp"}
	}

	if raw.OverallScore == nil {
		return nil, &MalformedReportError{Field: "overallScore", Reason: "missing"}
	}
	if *raw.OverallScore < 0 || *raw.OverallScore > 100 {
		return nil, &MalformedReportError{Field: "overallScore", Reason: "outside [0, 100]"}
	}

	return &AuditReport{
		URL:              *raw.URL,
		AnalyzedAt:       analyzedAt,
		OverallScore:     *raw.OverallScore,
		Summary:          raw.Summary,
		OnPageSEO:        raw.OnPageSEO,
		TechnicalSEO:     raw.TechnicalSEO,
		OffPageSEO:       raw.OffPageSEO,
		Security:         raw.Security,
		LighthouseResult: raw.LighthouseResult,
		Screenshot:       raw.Screenshot,
	}, nil
}
