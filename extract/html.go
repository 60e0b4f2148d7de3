package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// noiseSelectors are stripped before the fallback text extraction.
var noiseSelectors = []string{
	"script", "style", "nav", "header", "footer",
	"aside", "noscript", "iframe", "svg", "form",
}

// HTMLExtractor extracts text, metadata, links, and structured data
// from rendered HTML.
type HTMLExtractor struct{}

// NewHTML creates an HTMLExtractor.
func NewHTML() *HTMLExtractor {
	return &HTMLExtractor{}
}

// Extract runs the full extraction over rendered HTML. baseURL is the
// final page URL used to resolve relative references.
func (e *HTMLExtractor) Extract(html []byte, baseURL string) (*Content, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	base, _ := url.Parse(baseURL)

	return &Content{
		Text:           e.Text(html, baseURL),
		Metadata:       extractMetadata(doc, base),
		Links:          extractLinks(doc, base),
		StructuredData: extractStructuredData(doc),
	}, nil
}

// Text returns the main article body as plain text with paragraph
// breaks preserved. Readability strips boilerplate (navigation, ads,
// sidebars); when it finds no article the whole document is used with
// noise elements removed.
func (e *HTMLExtractor) Text(html []byte, baseURL string) string {
	pageURL, _ := url.Parse(baseURL)

	article, err := readability.FromReader(bytes.NewReader(html), pageURL)
	if err == nil && strings.TrimSpace(article.Content) != "" {
		if text := textFromHTMLFragment(article.Content); text != "" {
			return text
		}
	}

	return fallbackText(html)
}

// textFromHTMLFragment converts a cleaned HTML fragment to plain text,
// one paragraph per block element.
func textFromHTMLFragment(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	return blockText(doc)
}

// fallbackText extracts text from the whole document after removing
// non-content elements.
func fallbackText(html []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find(strings.Join(noiseSelectors, ", ")).Remove()
	return blockText(doc)
}

// blockText walks block-level elements and joins their collapsed text
// with blank lines.
func blockText(doc *goquery.Document) string {
	var paragraphs []string
	doc.Find("p, h1, h2, h3, h4, h5, h6, li, blockquote, pre, td, figcaption").Each(func(_ int, s *goquery.Selection) {
		// Skip containers that hold other block elements to avoid
		// duplicating nested text.
		if s.Find("p, li, blockquote").Length() > 0 {
			return
		}
		text := collapseWhitespace(s.Text())
		if text != "" {
			paragraphs = append(paragraphs, text)
		}
	})

	if len(paragraphs) == 0 {
		if body := collapseWhitespace(doc.Find("body").Text()); body != "" {
			return body
		}
		return ""
	}
	return strings.Join(paragraphs, "\n\n")
}

// extractMetadata gathers metadata in priority order: OpenGraph,
// Twitter Cards, standard meta tags, title, canonical link, html lang.
func extractMetadata(doc *goquery.Document, base *url.URL) Metadata {
	meta := Metadata{
		OGTitle:       metaProperty(doc, "og:title"),
		OGDescription: metaProperty(doc, "og:description"),
		Author:        metaName(doc, "author"),
	}

	meta.Title = firstNonEmpty(
		meta.OGTitle,
		metaName(doc, "twitter:title"),
		collapseWhitespace(doc.Find("title").First().Text()),
	)

	meta.Description = firstNonEmpty(
		meta.OGDescription,
		metaName(doc, "twitter:description"),
		metaName(doc, "description"),
	)

	if image := metaProperty(doc, "og:image"); image != "" {
		meta.OGImage = resolveRef(base, image)
	}

	if canonical, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok {
		meta.CanonicalURL = resolveRef(base, canonical)
	}

	if lang, ok := doc.Find("html").First().Attr("lang"); ok {
		meta.Language = strings.TrimSpace(lang)
	}

	meta.PublishedTime = extractPublishedTime(doc)

	return meta
}

// extractPublishedTime checks publication-date meta tags in priority
// order, then any <time datetime>.
func extractPublishedTime(doc *goquery.Document) string {
	if v := metaProperty(doc, "article:published_time"); v != "" {
		return v
	}
	for _, name := range []string{"date", "pubdate", "publishdate"} {
		if v := metaName(doc, name); v != "" {
			return v
		}
	}
	if v := metaAttr(doc, "itemprop", "datePublished"); v != "" {
		return v
	}
	if dt, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
		return strings.TrimSpace(dt)
	}
	return ""
}

// extractLinks returns every anchor with an href, resolved against the
// base URL, in document order. Duplicates are preserved. Fragment-only,
// javascript:, mailto:, and tel: references are skipped.
func extractLinks(doc *goquery.Document, base *url.URL) []Link {
	var links []Link
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		lower := strings.ToLower(href)
		if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "tel:") {
			return
		}

		resolved := resolveRef(base, href)
		if resolved == "" {
			return
		}

		links = append(links, Link{
			Href: resolved,
			Text: collapseWhitespace(s.Text()),
			Rel:  strings.TrimSpace(s.AttrOr("rel", "")),
		})
	})
	return links
}

func metaName(doc *goquery.Document, name string) string {
	return metaAttr(doc, "name", name)
}

func metaProperty(doc *goquery.Document, property string) string {
	return metaAttr(doc, "property", property)
}

func metaAttr(doc *goquery.Document, attr, value string) string {
	selector := fmt.Sprintf(`meta[%s=%q]`, attr, value)
	content, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(content)
}

func resolveRef(base *url.URL, ref string) string {
	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base == nil {
		return parsed.String()
	}
	return base.ResolveReference(parsed).String()
}

func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(s, " "))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
