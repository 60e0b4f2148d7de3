package extract

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// extractStructuredData collects JSON-LD payloads and Schema.org
// microdata from a document.
func extractStructuredData(doc *goquery.Document) StructuredData {
	data := StructuredData{
		JSONLD: extractJSONLD(doc),
	}

	typeSet := make(map[string]struct{})
	data.Microdata = extractMicrodata(doc, typeSet)

	if len(typeSet) > 0 {
		types := make([]string, 0, len(typeSet))
		for t := range typeSet {
			types = append(types, t)
		}
		sort.Strings(types)
		data.SchemaOrgTypes = types
	}

	return data
}

// extractJSONLD parses every ld+json script leniently: malformed
// payloads are dropped, top-level arrays are flattened.
func extractJSONLD(doc *goquery.Document) []any {
	var payloads []any
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}

		var parsed any
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			return
		}

		if list, ok := parsed.([]any); ok {
			payloads = append(payloads, list...)
			return
		}
		payloads = append(payloads, parsed)
	})
	return payloads
}

// extractMicrodata flattens top-level itemscope elements into nested
// mappings and records every distinct itemtype URI.
func extractMicrodata(doc *goquery.Document, typeSet map[string]struct{}) []map[string]any {
	var items []map[string]any
	doc.Find("[itemscope]").Each(func(_ int, s *goquery.Selection) {
		// Nested scopes are captured recursively by their parent.
		if s.ParentsFiltered("[itemscope]").Length() > 0 {
			return
		}
		items = append(items, microdataItem(s, typeSet))
	})
	return items
}

// microdataItem builds the property mapping for one itemscope element.
func microdataItem(scope *goquery.Selection, typeSet map[string]struct{}) map[string]any {
	item := make(map[string]any)

	if itemtype, ok := scope.Attr("itemtype"); ok {
		itemtype = strings.TrimSpace(itemtype)
		if itemtype != "" {
			item["@type"] = itemtype
			typeSet[itemtype] = struct{}{}
		}
	}

	scope.Find("[itemprop]").Each(func(_ int, prop *goquery.Selection) {
		// Only direct properties of this scope: skip props whose
		// nearest enclosing itemscope is a descendant scope.
		nearest := prop.ParentsFiltered("[itemscope]").First()
		if nearest.Length() > 0 && !nearest.IsSelection(scope) {
			return
		}

		name := strings.TrimSpace(prop.AttrOr("itemprop", ""))
		if name == "" {
			return
		}

		var value any
		if _, nested := prop.Attr("itemscope"); nested {
			value = microdataItem(prop, typeSet)
		} else {
			value = microdataValue(prop)
		}

		// Repeated property names accumulate into a list.
		switch existing := item[name].(type) {
		case nil:
			item[name] = value
		case []any:
			item[name] = append(existing, value)
		default:
			item[name] = []any{existing, value}
		}
	})

	return item
}

// microdataValue extracts the value of a non-scope itemprop element per
// the HTML microdata rules: content, href/src, datetime, then text.
func microdataValue(prop *goquery.Selection) string {
	for _, attr := range []string{"content", "href", "src", "datetime"} {
		if v, ok := prop.Attr(attr); ok {
			return strings.TrimSpace(v)
		}
	}
	return collapseWhitespace(prop.Text())
}
