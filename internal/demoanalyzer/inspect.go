package demoanalyzer

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PageFacts is everything the scorer needs, extracted in one pass over the
// document.
type PageFacts struct {
	Title           string
	MetaDescription string
	MetaRobots      string
	Canonical       string
	Viewport        string
	Lang            string

	H1s     []string
	H2Count int
	H3Count int

	ImagesTotal   int
	ImagesWithAlt int

	InternalLinks int
	ExternalLinks int
	// LinkURLs are resolved absolute http(s) link targets, deduplicated,
	// in document order. Candidates for the broken-link probe.
	LinkURLs []string

	WordCount int

	HasFavicon        bool
	OGTitle           bool
	OGDescription     bool
	HasStructuredData bool

	HTTPS bool
}

// InspectHTML extracts PageFacts from a fetched document. base is the final
// page URL, used to resolve relative links and classify them.
func InspectHTML(base *url.URL, body []byte) (*PageFacts, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}

	facts := &PageFacts{
		HTTPS: base.Scheme == "https",
	}

	facts.Title = strings.TrimSpace(doc.Find("head title").First().Text())
	facts.Lang = strings.TrimSpace(getAttr(doc.Find("html").First(), "lang"))

	doc.Find("head meta").Each(func(_ int, meta *goquery.Selection) {
		name := strings.ToLower(getAttr(meta, "name"))
		property := strings.ToLower(getAttr(meta, "property"))
		content := strings.TrimSpace(getAttr(meta, "content"))
		switch {
		case name == "description":
			facts.MetaDescription = content
		case name == "robots":
			facts.MetaRobots = content
		case name == "viewport":
			facts.Viewport = content
		case property == "og:title":
			facts.OGTitle = true
		case property == "og:description":
			facts.OGDescription = true
		}
	})

	doc.Find("head link").Each(func(_ int, link *goquery.Selection) {
		rel := strings.ToLower(getAttr(link, "rel"))
		switch {
		case rel == "canonical":
			facts.Canonical = strings.TrimSpace(getAttr(link, "href"))
		case strings.Contains(rel, "icon"):
			facts.HasFavicon = true
		}
	})

	doc.Find("h1").Each(func(_ int, h *goquery.Selection) {
		facts.H1s = append(facts.H1s, strings.TrimSpace(h.Text()))
	})
	facts.H2Count = doc.Find("h2").Length()
	facts.H3Count = doc.Find("h3").Length()

	doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		facts.ImagesTotal++
		if alt, ok := img.Attr("alt"); ok && strings.TrimSpace(alt) != "" {
			facts.ImagesWithAlt++
		}
	})

	seen := map[string]struct{}{}
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(getAttr(a, "href"))
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "tel:") ||
			strings.HasPrefix(href, "javascript:") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		if abs.Hostname() == base.Hostname() {
			facts.InternalLinks++
		} else {
			facts.ExternalLinks++
		}
		abs.Fragment = ""
		key := abs.String()
		if _, dup := seen[key]; !dup {
			seen[key] = struct{}{}
			facts.LinkURLs = append(facts.LinkURLs, key)
		}
	})

	facts.HasStructuredData = doc.Find(`script[type="application/ld+json"]`).Length() > 0

	facts.WordCount = len(strings.Fields(doc.Find("body").Text()))

	return facts, nil
}

// getAttr safely retrieves an attribute value from a goquery selection.
func getAttr(sel *goquery.Selection, attrName string) string {
	v, _ := sel.Attr(attrName)
	return v
}
