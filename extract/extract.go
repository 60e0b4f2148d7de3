// Package extract turns fetched documents into structured artifacts:
// clean text, metadata, links, and structured-data graphs.
package extract

// Metadata holds page-level metadata gathered from meta tags, the
// document title, and (for PDFs) the document information dictionary.
type Metadata struct {
	Title         string `json:"title,omitempty"`
	Description   string `json:"description,omitempty"`
	OGTitle       string `json:"og_title,omitempty"`
	OGDescription string `json:"og_description,omitempty"`
	OGImage       string `json:"og_image,omitempty"`
	CanonicalURL  string `json:"canonical_url,omitempty"`
	Language      string `json:"language,omitempty"`
	Author        string `json:"author,omitempty"`
	PublishedTime string `json:"published_time,omitempty"`
	PDFPages      int    `json:"pdf_pages,omitempty"`
	PDFAuthor     string `json:"pdf_author,omitempty"`
}

// IsZero reports whether no metadata field is populated.
func (m Metadata) IsZero() bool {
	return m == Metadata{}
}

// Link is an anchor extracted from a page, href resolved against the
// page URL. Duplicates are preserved in document order.
type Link struct {
	Href string `json:"href"`
	Text string `json:"text"`
	Rel  string `json:"rel,omitempty"`
}

// StructuredData aggregates JSON-LD payloads and Schema.org microdata.
type StructuredData struct {
	JSONLD         []any            `json:"json_ld,omitempty"`
	Microdata      []map[string]any `json:"microdata,omitempty"`
	SchemaOrgTypes []string         `json:"schema_org_types,omitempty"`
}

// IsZero reports whether no structured data was found.
func (s StructuredData) IsZero() bool {
	return len(s.JSONLD) == 0 && len(s.Microdata) == 0 && len(s.SchemaOrgTypes) == 0
}

// Content is the full extraction result for an HTML document.
type Content struct {
	Text           string
	Metadata       Metadata
	Links          []Link
	StructuredData StructuredData
}
