package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeEvidence() []Evidence {
	return []Evidence{
		{Index: 1, ID: "a", URL: "https://example.com/a", AuthorHandle: "@alice"},
		{Index: 2, ID: "b", URL: "https://example.com/b"},
		{Index: 3, ID: "c", URL: "https://example.com/c"},
	}
}

func TestParseCitations(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		evidence []Evidence
		want     []int
	}{
		{
			name:     "duplicates collapse and out of range dropped",
			text:     "See [1] and [5] and [1]",
			evidence: threeEvidence(),
			want:     []int{1},
		},
		{
			name:     "sorted ascending regardless of text order",
			text:     "[3] then [1] then [2]",
			evidence: threeEvidence(),
			want:     []int{1, 2, 3},
		},
		{
			name:     "no markers",
			text:     "no citations here",
			evidence: threeEvidence(),
			want:     []int{},
		},
		{
			name:     "zero index references nothing",
			text:     "[0] and [2]",
			evidence: threeEvidence(),
			want:     []int{2},
		},
		{
			name:     "empty evidence drops everything",
			text:     "[1][2][3]",
			evidence: nil,
			want:     []int{},
		},
		{
			name:     "non-integer brackets ignored",
			text:     "[one] [1a] [ 2 ] [3]",
			evidence: threeEvidence(),
			want:     []int{3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseCitations(tt.text, tt.evidence)
			require.Len(t, got, len(tt.want))
			for i, idx := range tt.want {
				assert.Equal(t, idx, got[i].Index)
			}
		})
	}
}

func TestParseCitationsResolvesEvidenceFields(t *testing.T) {
	got := ParseCitations("as noted in [1]", threeEvidence())
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].PostID)
	assert.Equal(t, "https://example.com/a", got[0].URL)
	assert.Equal(t, "@alice", got[0].AuthorHandle)
}

func TestParseCitationsOffsetIndices(t *testing.T) {
	evidence := []Evidence{
		{Index: 4, ID: "d", URL: "u4"},
		{Index: 5, ID: "e", URL: "u5"},
	}
	got := ParseCitations("[4] beats [1]", evidence)
	require.Len(t, got, 1)
	assert.Equal(t, 4, got[0].Index)
	assert.Equal(t, "d", got[0].PostID)
}
