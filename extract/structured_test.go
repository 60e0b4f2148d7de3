package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONLD(t *testing.T) {
	html := `<html><head>
<script type="application/ld+json">
{"@context": "https://schema.org", "@type": "Article", "headline": "Hello"}
</script>
<script type="application/ld+json">
[{"@type": "Person", "name": "Jane"}, {"@type": "Person", "name": "John"}]
</script>
<script type="application/ld+json">
{this is not valid json
</script>
</head><body></body></html>`

	e := NewHTML()
	content, err := e.Extract([]byte(html), "https://example.com")
	require.NoError(t, err)

	payloads := content.StructuredData.JSONLD
	require.Len(t, payloads, 3, "arrays flattened, malformed dropped")

	first, ok := payloads[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Article", first["@type"])
	assert.Equal(t, "Hello", first["headline"])

	second, ok := payloads[1].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Jane", second["name"])
}

func TestExtractMicrodata(t *testing.T) {
	html := `<html><body>
<div itemscope itemtype="https://schema.org/Product">
  <span itemprop="name">Widget</span>
  <meta itemprop="sku" content="W-100">
  <div itemprop="offers" itemscope itemtype="https://schema.org/Offer">
    <span itemprop="price">9.99</span>
  </div>
</div>
</body></html>`

	e := NewHTML()
	content, err := e.Extract([]byte(html), "https://example.com")
	require.NoError(t, err)

	items := content.StructuredData.Microdata
	require.Len(t, items, 1, "only top-level scopes at the root")

	product := items[0]
	assert.Equal(t, "https://schema.org/Product", product["@type"])
	assert.Equal(t, "Widget", product["name"])
	assert.Equal(t, "W-100", product["sku"], "content attribute wins over text")

	offer, ok := product["offers"].(map[string]any)
	require.True(t, ok, "nested scope flattened into nested mapping")
	assert.Equal(t, "https://schema.org/Offer", offer["@type"])
	assert.Equal(t, "9.99", offer["price"])

	assert.ElementsMatch(t,
		[]string{"https://schema.org/Offer", "https://schema.org/Product"},
		content.StructuredData.SchemaOrgTypes,
	)
}

func TestExtractMicrodataRepeatedProps(t *testing.T) {
	html := `<html><body>
<div itemscope itemtype="https://schema.org/Recipe">
  <span itemprop="ingredient">flour</span>
  <span itemprop="ingredient">water</span>
</div>
</body></html>`

	e := NewHTML()
	content, err := e.Extract([]byte(html), "https://example.com")
	require.NoError(t, err)

	recipe := content.StructuredData.Microdata[0]
	assert.Equal(t, []any{"flour", "water"}, recipe["ingredient"])
}

func TestSchemaOrgTypesDistinct(t *testing.T) {
	html := `<html><body>
<div itemscope itemtype="https://schema.org/Article"></div>
<div itemscope itemtype="https://schema.org/Article"></div>
</body></html>`

	e := NewHTML()
	content, err := e.Extract([]byte(html), "https://example.com")
	require.NoError(t, err)

	assert.Equal(t, []string{"https://schema.org/Article"}, content.StructuredData.SchemaOrgTypes)
	assert.Len(t, content.StructuredData.Microdata, 2)
}
