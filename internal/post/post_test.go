package post

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExport(t *testing.T) {
	data := []byte(`[
		{"id": "1841", "url": "https://x.com/ada/status/1841", "content": "Threads on error handling", "author_handle": "ada", "tags": ["go"]},
		{"id": "2042", "url": "https://x.com/tom/status/2042", "content": "On vector search"}
	]`)

	posts, err := ParseExport(data)
	require.NoError(t, err)
	require.Len(t, posts, 2)

	assert.Equal(t, "1841", posts[0].ID)
	assert.Equal(t, "ada", posts[0].AuthorHandle)
	assert.Equal(t, []string{"go"}, posts[0].Tags)
	assert.Equal(t, "On vector search", posts[1].Content)
}

func TestParseExport_MissingID(t *testing.T) {
	_, err := ParseExport([]byte(`[{"url": "https://example.com", "content": "x"}]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no id")
}

func TestParseExport_MissingContent(t *testing.T) {
	_, err := ParseExport([]byte(`[{"id": "9", "url": "https://example.com"}]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no content")
}

func TestParseExport_MalformedJSON(t *testing.T) {
	_, err := ParseExport([]byte(`{"not": "an array"}`))
	assert.Error(t, err)
}

func TestMarshalExport_RoundTrip(t *testing.T) {
	posted := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	posts := []Post{
		{
			ID:           "1841",
			URL:          "https://x.com/ada/status/1841",
			Content:      "Threads on error handling",
			AuthorHandle: "ada",
			PostedAt:     &posted,
			ArchivedAt:   posted.Add(time.Hour),
			Tags:         []string{"go"},
			Notes:        "keep",
		},
		{ID: "2042", URL: "https://x.com/tom/status/2042", Content: "On vector search"},
	}

	data, err := MarshalExport(posts)
	require.NoError(t, err)

	got, err := ParseExport(data)
	require.NoError(t, err)
	assert.Equal(t, posts, got)
}

func TestMarshalExport_EmptyArchiveIsAnArray(t *testing.T) {
	data, err := MarshalExport(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))

	got, err := ParseExport(data)
	require.NoError(t, err)
	assert.Empty(t, got)
}
