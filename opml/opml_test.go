package opml

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOPML_ValidFile(t *testing.T) {
	opmlContent := `<?xml version="1.0" encoding="UTF-8"?>
<opml version="2.0">
  <head>
    <title>News Sources</title>
  </head>
  <body>
    <outline text="World" title="World">
      <outline type="rss" text="BBC World" title="BBC World" xmlUrl="https://feeds.bbci.co.uk/news/world/rss.xml"/>
      <outline type="rss" text="Reuters" xmlUrl="https://www.reuters.com/world/rss" category="wire"/>
    </outline>
    <outline type="rss" text="Tech Feed" xmlUrl="https://example.com/tech.xml"/>
  </body>
</opml>`

	sources, err := Parse(strings.NewReader(opmlContent))
	require.NoError(t, err)
	require.Len(t, sources, 3)

	assert.Equal(t, "https://feeds.bbci.co.uk/news/world/rss.xml", sources[0].URL)
	assert.Equal(t, "BBC World", sources[0].Title)
	assert.Equal(t, "World", sources[0].Category, "Category should be inherited from the group")

	assert.Equal(t, "Reuters", sources[1].Title, "Text should be used when title is missing")
	assert.Equal(t, "wire", sources[1].Category, "Explicit category should win")

	assert.Equal(t, "Tech Feed", sources[2].Title)
	assert.Empty(t, sources[2].Category)
}

func TestParseOPML_Invalid(t *testing.T) {
	_, err := Parse(strings.NewReader("<opml><body>"))
	assert.Error(t, err)
}

func TestGenerate_RoundTrip(t *testing.T) {
	sources := []Source{
		{URL: "https://a.example.com/rss", Title: "A", Category: "world"},
		{URL: "https://b.example.com/rss"},
		{URL: "https://c.example.com/rss", Title: "C", Category: "world"},
	}

	var buf bytes.Buffer
	require.NoError(t, Generate(&buf, "rag-news sources", sources))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "<?xml"), "Should start with XML header")
	assert.Contains(t, out, `<title>rag-news sources</title>`)
	assert.Contains(t, out, `xmlUrl="https://b.example.com/rss"`)

	parsed, err := Parse(strings.NewReader(out))
	require.NoError(t, err)
	require.Len(t, parsed, 3)

	assert.Equal(t, "https://a.example.com/rss", parsed[0].URL)
	assert.Equal(t, "https://c.example.com/rss", parsed[1].URL, "Grouped feeds should stay together")
	assert.Equal(t, "world", parsed[1].Category)
	assert.Equal(t, "https://b.example.com/rss", parsed[2].URL)
	assert.Equal(t, "https://b.example.com/rss", parsed[2].Title, "URL should stand in for a missing title")
}

func TestGenerate_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Generate(&buf, "empty", nil))

	parsed, err := Parse(&buf)
	require.NoError(t, err)
	assert.Empty(t, parsed)
}

func TestDiff(t *testing.T) {
	local := []Source{
		{URL: "https://a.example.com/rss"},
		{URL: "https://B.example.com/rss/"},
		{URL: "https://only-local.example.com/rss"},
		{URL: "https://a.example.com/rss"},
	}
	remote := []string{
		"https://b.example.com/rss",
		"https://a.example.com/rss",
		"https://only-remote.example.com/rss",
	}

	d := Diff(local, remote)
	assert.Equal(t, []string{"https://only-local.example.com/rss"}, d.OnlyLocal)
	assert.Equal(t, []string{"https://only-remote.example.com/rss"}, d.OnlyRemote)
	assert.Equal(t, []string{"https://B.example.com/rss/", "https://a.example.com/rss"}, d.Shared)
	assert.False(t, d.InSync())

	d = Diff([]Source{{URL: "https://a.example.com/rss"}}, []string{"https://a.example.com/rss"})
	assert.True(t, d.InSync())
}
