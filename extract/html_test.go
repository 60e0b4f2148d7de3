package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articleHTML = `<!DOCTYPE html>
<html lang="en-US">
<head>
<title>Fallback Title</title>
<meta property="og:title" content="OG Title">
<meta property="og:description" content="OG description.">
<meta property="og:image" content="/images/cover.png">
<meta name="twitter:title" content="Twitter Title">
<meta name="description" content="Meta description.">
<meta name="author" content="Jane Doe">
<meta property="article:published_time" content="2024-01-15T10:00:00Z">
<link rel="canonical" href="https://example.com/canonical">
</head>
<body>
<nav><a href="/home">Home</a> <a href="/about">About</a></nav>
<article>
<h1>A Long Form Article</h1>
<p>The first paragraph contains enough prose to satisfy the readability
threshold, describing the subject of the article in some depth and with
several complete sentences of meaningful content for the extractor.</p>
<p>The second paragraph continues the discussion with more substantive
text so that the main body is clearly distinguishable from the chrome
that surrounds it on the page.</p>
<p>See <a href="/related" rel="nofollow">related   coverage</a> for more.</p>
</article>
<footer>Copyright footer boilerplate</footer>
</body>
</html>`

func TestExtractText(t *testing.T) {
	e := NewHTML()
	text := e.Text([]byte(articleHTML), "https://example.com/article")

	assert.Contains(t, text, "first paragraph")
	assert.Contains(t, text, "second paragraph")
	assert.Contains(t, text, "\n\n", "paragraph breaks preserved")
}

func TestExtractTextFallbackStripsNoise(t *testing.T) {
	html := `<html><body>
<nav>navigation junk</nav>
<script>var x = 1;</script>
<p>visible content</p>
<footer>footer junk</footer>
</body></html>`

	e := NewHTML()
	text := e.Text([]byte(html), "https://example.com")

	assert.Contains(t, text, "visible content")
	assert.NotContains(t, text, "navigation junk")
	assert.NotContains(t, text, "var x = 1")
	assert.NotContains(t, text, "footer junk")
}

func TestExtractMetadataPriority(t *testing.T) {
	e := NewHTML()
	content, err := e.Extract([]byte(articleHTML), "https://example.com/article")
	require.NoError(t, err)

	meta := content.Metadata
	assert.Equal(t, "OG Title", meta.Title, "OpenGraph beats twitter and <title>")
	assert.Equal(t, "OG description.", meta.Description)
	assert.Equal(t, "https://example.com/images/cover.png", meta.OGImage, "og:image resolved against base")
	assert.Equal(t, "https://example.com/canonical", meta.CanonicalURL)
	assert.Equal(t, "en-US", meta.Language)
	assert.Equal(t, "Jane Doe", meta.Author)
	assert.Equal(t, "2024-01-15T10:00:00Z", meta.PublishedTime)
}

func TestExtractMetadataFallbacks(t *testing.T) {
	html := `<html><head>
<title>  Plain   Title  </title>
<meta name="twitter:description" content="Twitter description.">
</head><body></body></html>`

	e := NewHTML()
	content, err := e.Extract([]byte(html), "https://example.com")
	require.NoError(t, err)

	assert.Equal(t, "Plain Title", content.Metadata.Title)
	assert.Equal(t, "Twitter description.", content.Metadata.Description)
}

func TestExtractLinks(t *testing.T) {
	html := `<html><body>
<a href="/one">First</a>
<a href="https://other.com/page" rel="nofollow noopener">  Second   link </a>
<a href="/one">First again</a>
<a href="#fragment">skip</a>
<a href="javascript:void(0)">skip</a>
<a href="mailto:a@b.c">skip</a>
</body></html>`

	e := NewHTML()
	content, err := e.Extract([]byte(html), "https://example.com/base/")
	require.NoError(t, err)

	require.Len(t, content.Links, 3, "duplicates preserved, non-http refs skipped")
	assert.Equal(t, "https://example.com/one", content.Links[0].Href)
	assert.Equal(t, "First", content.Links[0].Text)
	assert.Equal(t, "https://other.com/page", content.Links[1].Href)
	assert.Equal(t, "Second link", content.Links[1].Text, "whitespace collapsed")
	assert.Equal(t, "nofollow noopener", content.Links[1].Rel)
	assert.Equal(t, "https://example.com/one", content.Links[2].Href)
}

func TestExtractEmptyDocument(t *testing.T) {
	e := NewHTML()
	content, err := e.Extract([]byte("<html><body></body></html>"), "https://example.com")
	require.NoError(t, err)

	assert.Empty(t, content.Text)
	assert.True(t, content.Metadata.IsZero())
	assert.Empty(t, content.Links)
	assert.True(t, content.StructuredData.IsZero())
}
