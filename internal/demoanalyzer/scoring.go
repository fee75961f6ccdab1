package demoanalyzer

import (
	"encoding/base64"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/amine-CS96/seo-expert/internal/model"
)

type outcome int

const (
	outcomePass outcome = iota
	outcomeWarning
	outcomeCritical
)

type check struct {
	name           string
	outcome        outcome
	recommendation string
	value          any
}

// sectionBuilder accumulates checks and folds them into a SectionReport.
// Scoring weights: pass counts full, warning half, critical zero.
type sectionBuilder struct {
	checks []check
}

func (b *sectionBuilder) pass(name string, value any) {
	b.checks = append(b.checks, check{name: name, outcome: outcomePass, value: value})
}

func (b *sectionBuilder) warn(name, recommendation string, value any) {
	b.checks = append(b.checks, check{name: name, outcome: outcomeWarning, recommendation: recommendation, value: value})
}

func (b *sectionBuilder) critical(name, recommendation string, value any) {
	b.checks = append(b.checks, check{name: name, outcome: outcomeCritical, recommendation: recommendation, value: value})
}

func (b *sectionBuilder) build() *model.SectionReport {
	sec := &model.SectionReport{Checks: map[string]any{}}
	if len(b.checks) == 0 {
		sec.Score = 100
		return sec
	}
	var points float64
	for _, c := range b.checks {
		switch c.outcome {
		case outcomePass:
			points += 1
		case outcomeWarning:
			points += 0.5
			sec.Recommendations = append(sec.Recommendations, c.recommendation)
		case outcomeCritical:
			sec.Recommendations = append(sec.Recommendations, c.recommendation)
		}
		sec.Checks[c.name] = c.value
	}
	sec.Score = math.Round(100 * points / float64(len(b.checks)))
	return sec
}

func (b *sectionBuilder) tally(s *model.Summary) {
	for _, c := range b.checks {
		s.TotalChecks++
		switch c.outcome {
		case outcomePass:
			s.PassedChecks++
		case outcomeWarning:
			s.WarningIssues++
		case outcomeCritical:
			s.CriticalIssues++
		}
	}
}

// scoreInput carries everything the scorer looks at beyond the parsed page.
type scoreInput struct {
	finalURL      string
	facts         *PageFacts
	headers       http.Header
	checkedLinks  int
	brokenLinks   int
	fetchDuration time.Duration
	pageBytes     int
	screenshot    []byte
}

// buildReport folds page facts, response headers and probe results into a
// full audit report.
func buildReport(in scoreInput) *model.AuditReport {
	onPage := scoreOnPage(in.facts)
	technical := scoreTechnical(in.facts, in.headers)
	offPage := scoreOffPage(in.facts, in.checkedLinks, in.brokenLinks)
	security := scoreSecurity(in.facts, in.headers)
	perf := scorePerformance(in.headers, in.fetchDuration, in.pageBytes)

	summary := &model.Summary{}
	var overall float64
	for _, b := range []*sectionBuilder{onPage, technical, offPage, security, perf} {
		b.tally(summary)
	}

	report := &model.AuditReport{
		URL:              in.finalURL,
		AnalyzedAt:       time.Now().UTC(),
		Summary:          summary,
		OnPageSEO:        onPage.build(),
		TechnicalSEO:     technical.build(),
		OffPageSEO:       offPage.build(),
		Security:         security.build(),
		LighthouseResult: perf.build(),
	}

	overall = (report.OnPageSEO.Score + report.TechnicalSEO.Score +
		report.OffPageSEO.Score + report.Security.Score +
		report.LighthouseResult.Score) / 5
	report.OverallScore = math.Round(overall*10) / 10

	if len(in.screenshot) > 0 {
		report.Screenshot = base64.StdEncoding.EncodeToString(in.screenshot)
	}

	return report
}

func scoreOnPage(f *PageFacts) *sectionBuilder {
	b := &sectionBuilder{}

	switch titleLen := len([]rune(f.Title)); {
	case titleLen == 0:
		b.critical("title", "Add a <title> tag; it is the single strongest on-page signal.", "")
	case titleLen < 30 || titleLen > 60:
		b.warn("title", fmt.Sprintf("Keep the title between 30 and 60 characters (currently %d).", titleLen), f.Title)
	default:
		b.pass("title", f.Title)
	}

	switch descLen := len([]rune(f.MetaDescription)); {
	case descLen == 0:
		b.critical("metaDescription", "Add a meta description; search engines use it for the result snippet.", "")
	case descLen < 70 || descLen > 160:
		b.warn("metaDescription", fmt.Sprintf("Keep the meta description between 70 and 160 characters (currently %d).", descLen), f.MetaDescription)
	default:
		b.pass("metaDescription", f.MetaDescription)
	}

	switch len(f.H1s) {
	case 0:
		b.critical("h1", "Add exactly one <h1> describing the page topic.", 0)
	case 1:
		b.pass("h1", f.H1s[0])
	default:
		b.warn("h1", fmt.Sprintf("Use a single <h1>; found %d.", len(f.H1s)), len(f.H1s))
	}

	if f.H2Count == 0 {
		b.warn("headingStructure", "Break the content up with <h2> subheadings.", map[string]int{"h2": f.H2Count, "h3": f.H3Count})
	} else {
		b.pass("headingStructure", map[string]int{"h2": f.H2Count, "h3": f.H3Count})
	}

	if f.ImagesTotal == 0 {
		b.pass("imageAlt", "no images")
	} else {
		coverage := float64(f.ImagesWithAlt) / float64(f.ImagesTotal)
		value := fmt.Sprintf("%d/%d images have alt text", f.ImagesWithAlt, f.ImagesTotal)
		switch {
		case coverage >= 1:
			b.pass("imageAlt", value)
		case coverage >= 0.5:
			b.warn("imageAlt", "Add alt text to the remaining images.", value)
		default:
			b.critical("imageAlt", "Most images are missing alt text; add descriptive alt attributes.", value)
		}
	}

	switch {
	case f.WordCount < 100:
		b.critical("contentLength", "The page has very little text content; thin pages rank poorly.", f.WordCount)
	case f.WordCount < 300:
		b.warn("contentLength", "Aim for at least 300 words of meaningful content.", f.WordCount)
	default:
		b.pass("contentLength", f.WordCount)
	}

	if f.OGTitle && f.OGDescription {
		b.pass("openGraph", true)
	} else {
		b.warn("openGraph", "Add og:title and og:description for richer social previews.", false)
	}

	return b
}

func scoreTechnical(f *PageFacts, headers http.Header) *sectionBuilder {
	b := &sectionBuilder{}

	if f.Canonical != "" {
		b.pass("canonical", f.Canonical)
	} else {
		b.warn("canonical", "Declare a canonical URL to consolidate duplicate-content signals.", "")
	}

	if f.Viewport != "" {
		b.pass("viewport", f.Viewport)
	} else {
		b.critical("viewport", "Add a viewport meta tag; the page is not mobile friendly without one.", "")
	}

	if strings.Contains(strings.ToLower(f.MetaRobots), "noindex") {
		b.critical("robots", "The page is marked noindex and will not appear in search results.", f.MetaRobots)
	} else {
		b.pass("robots", f.MetaRobots)
	}

	if f.Lang != "" {
		b.pass("htmlLang", f.Lang)
	} else {
		b.warn("htmlLang", "Declare the document language with the html lang attribute.", "")
	}

	if f.HasFavicon {
		b.pass("favicon", true)
	} else {
		b.warn("favicon", "Add a favicon; browsers and result pages display it.", false)
	}

	if f.HasStructuredData {
		b.pass("structuredData", true)
	} else {
		b.warn("structuredData", "Add JSON-LD structured data to qualify for rich results.", false)
	}

	contentType := headers.Get("Content-Type")
	if strings.Contains(strings.ToLower(contentType), "charset") {
		b.pass("charset", contentType)
	} else {
		b.warn("charset", "Declare the character encoding in the Content-Type header.", contentType)
	}

	return b
}

func scoreOffPage(f *PageFacts, checked, broken int) *sectionBuilder {
	b := &sectionBuilder{}

	if f.InternalLinks > 0 {
		b.pass("internalLinks", f.InternalLinks)
	} else {
		b.warn("internalLinks", "Link to related pages on the same site; crawlers discover content through internal links.", 0)
	}

	if f.ExternalLinks > 0 {
		b.pass("externalLinks", f.ExternalLinks)
	} else {
		b.warn("externalLinks", "Reference relevant external sources where appropriate.", 0)
	}

	value := fmt.Sprintf("%d broken of %d checked", broken, checked)
	switch {
	case checked == 0:
		b.pass("brokenLinks", "no links checked")
	case broken == 0:
		b.pass("brokenLinks", value)
	case broken <= 2:
		b.warn("brokenLinks", "Fix or remove the broken links found on the page.", value)
	default:
		b.critical("brokenLinks", "The page has many broken links; fix or remove them.", value)
	}

	return b
}

func scoreSecurity(f *PageFacts, headers http.Header) *sectionBuilder {
	b := &sectionBuilder{}

	if f.HTTPS {
		b.pass("https", true)
	} else {
		b.critical("https", "Serve the site over HTTPS; browsers flag plain HTTP pages as not secure.", false)
	}

	if f.HTTPS {
		if headers.Get("Strict-Transport-Security") != "" {
			b.pass("hsts", headers.Get("Strict-Transport-Security"))
		} else {
			b.warn("hsts", "Add a Strict-Transport-Security header to enforce HTTPS.", "")
		}
	}

	if headers.Get("Content-Security-Policy") != "" {
		b.pass("contentSecurityPolicy", true)
	} else {
		b.warn("contentSecurityPolicy", "Add a Content-Security-Policy header to mitigate XSS.", false)
	}

	if strings.EqualFold(headers.Get("X-Content-Type-Options"), "nosniff") {
		b.pass("contentTypeOptions", "nosniff")
	} else {
		b.warn("contentTypeOptions", "Set X-Content-Type-Options: nosniff.", headers.Get("X-Content-Type-Options"))
	}

	if headers.Get("X-Frame-Options") != "" ||
		strings.Contains(headers.Get("Content-Security-Policy"), "frame-ancestors") {
		b.pass("framingProtection", true)
	} else {
		b.warn("framingProtection", "Protect against clickjacking with X-Frame-Options or a frame-ancestors directive.", false)
	}

	if headers.Get("Referrer-Policy") != "" {
		b.pass("referrerPolicy", headers.Get("Referrer-Policy"))
	} else {
		b.warn("referrerPolicy", "Set a Referrer-Policy header to control referrer leakage.", "")
	}

	return b
}

// scorePerformance approximates a performance audit from response metadata.
// No lab metrics are collected; weight, latency and caching headers stand in
// for them.
func scorePerformance(headers http.Header, fetchDuration time.Duration, pageBytes int) *sectionBuilder {
	b := &sectionBuilder{}

	weight := fmt.Sprintf("%.1f KiB", float64(pageBytes)/1024)
	switch {
	case pageBytes < 1500*1024:
		b.pass("pageWeight", weight)
	case pageBytes < 3000*1024:
		b.warn("pageWeight", "Reduce the page weight below 1.5 MiB; heavy pages load slowly on mobile.", weight)
	default:
		b.critical("pageWeight", "The page is very heavy; compress images and trim unused assets.", weight)
	}

	latency := fetchDuration.Round(time.Millisecond).String()
	switch {
	case fetchDuration < time.Second:
		b.pass("responseTime", latency)
	case fetchDuration < 3*time.Second:
		b.warn("responseTime", "Bring the server response under one second.", latency)
	default:
		b.critical("responseTime", "The server took several seconds to respond; investigate backend latency.", latency)
	}

	encoding := strings.ToLower(headers.Get("Content-Encoding"))
	if strings.Contains(encoding, "gzip") || strings.Contains(encoding, "br") || strings.Contains(encoding, "zstd") {
		b.pass("compression", encoding)
	} else {
		b.warn("compression", "Enable gzip or brotli compression for text responses.", encoding)
	}

	if headers.Get("Cache-Control") != "" {
		b.pass("caching", headers.Get("Cache-Control"))
	} else {
		b.warn("caching", "Set Cache-Control headers so repeat visits are served from cache.", "")
	}

	return b
}
