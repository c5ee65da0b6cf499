package features

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/nao1215/phishguard/internal/model"
)

// externalRatioThreshold is the share of external resources above which a
// resource feature is set.
const externalRatioThreshold = 0.5

// ParseDocument parses an HTML document.
// The parser follows the HTML5 algorithm, so malformed markup still yields
// a tree; only read errors fail.
func ParseDocument(r io.Reader) (*goquery.Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%w: parse document: %w", ErrExtraction, err)
	}
	return goquery.NewDocumentFromNode(root), nil
}

// applyDocumentFeatures fills the DOM-derived fields of v.
func applyDocumentFeatures(pageURL string, doc *goquery.Document, v *model.FeatureVector) {
	v.Favicon = flag(hasFavicon(doc))
	v.RequestURL = externalResourceFlag(doc.Find("img[src]"), "src", pageURL)
	v.AnchorURL = externalResourceFlag(doc.Find("a[href]"), "href", pageURL)
	v.LinksInScriptTags = externalResourceFlag(doc.Find("script[src]"), "src", pageURL)
	v.ServerFormHandler = flag(hasSuspiciousFormHandler(doc))
}

// hasFavicon reports whether a <link> element declares an icon relation.
func hasFavicon(doc *goquery.Document) bool {
	found := false
	doc.Find("link[rel]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		rel, _ := s.Attr("rel")
		if strings.Contains(strings.ToLower(rel), "icon") {
			found = true
			return false
		}
		return true
	})
	return found
}

// externalResourceFlag returns 1 when more than half of the selected
// elements reference something other than the page itself. A value is
// internal only if it contains the full page URL.
func externalResourceFlag(sel *goquery.Selection, attr, pageURL string) int {
	total := sel.Length()
	if total == 0 {
		return 0
	}

	external := 0
	sel.Each(func(_ int, s *goquery.Selection) {
		val, _ := s.Attr(attr)
		if !strings.Contains(val, pageURL) {
			external++
		}
	})

	return flag(float64(external)/float64(total) > externalRatioThreshold)
}

// hasSuspiciousFormHandler reports whether any form submits to an empty
// action, to about:blank, or to an action without a scheme separator.
func hasSuspiciousFormHandler(doc *goquery.Document) bool {
	found := false
	doc.Find("form[action]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		action, _ := s.Attr("action")
		if action == "" || strings.HasPrefix(action, "about:blank") || !strings.Contains(action, "://") {
			found = true
			return false
		}
		return true
	})
	return found
}
