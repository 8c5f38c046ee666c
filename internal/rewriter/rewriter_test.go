package rewriter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleister1102/webmirror/internal/errorwrapper"
)

func TestParseRules(t *testing.T) {
	tests := []struct {
		name        string
		original    string
		replacement string
		expected    []RewriteRule
		wantErr     bool
	}{
		{
			name:        "single pair",
			original:    "a.com",
			replacement: "b.com",
			expected:    []RewriteRule{{Original: "a.com", Replacement: "b.com"}},
		},
		{
			name:        "multiple pairs with spacing and www",
			original:    " WWW.One.com , two.com",
			replacement: "uno.com,dos.com ",
			expected: []RewriteRule{
				{Original: "one.com", Replacement: "uno.com"},
				{Original: "two.com", Replacement: "dos.com"},
			},
		},
		{name: "both empty", original: "", replacement: "", expected: nil},
		{name: "one sided original", original: "a.com", replacement: "", wantErr: true},
		{name: "one sided replacement", original: "", replacement: "b.com", wantErr: true},
		{name: "mismatched lengths", original: "a.com,b.com", replacement: "c.com", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules, err := ParseRules(tt.original, tt.replacement)
			if tt.wantErr {
				require.Error(t, err)
				var vErr *errorwrapper.ValidationError
				assert.ErrorAs(t, err, &vErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, rules)
		})
	}
}

func TestRewriter_Apply(t *testing.T) {
	rw := NewRewriter([]RewriteRule{{Original: "example.com", Replacement: "mirror.test"}})

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "bare and www occurrences",
			input:    `https://www.example.com/a"example.com"`,
			expected: `https://mirror.test/a"mirror.test"`,
		},
		{
			name:     "escaped double quotes in script",
			input:    `var host = "\"example.com\"";`,
			expected: `var host = "\"mirror.test\"";`,
		},
		{
			name:     "escaped single quotes",
			input:    `\'example.com\'`,
			expected: `\'mirror.test\'`,
		},
		{
			name:     "percent encoded quotes",
			input:    `redirect=%22example.com%22`,
			expected: `redirect=%22mirror.test%22`,
		},
		{
			name:     "inline script api host",
			input:    `fetch("https://www.example.com/api")`,
			expected: `fetch("https://mirror.test/api")`,
		},
		{
			name:     "untouched text",
			input:    `nothing to see here`,
			expected: `nothing to see here`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, rw.Apply(tt.input))
		})
	}
}

func TestRewriter_OrderedRules(t *testing.T) {
	// Later rules may re-match earlier output; that is accepted, not
	// guarded against.
	rw := NewRewriter([]RewriteRule{
		{Original: "a.com", Replacement: "b.com"},
		{Original: "b.com", Replacement: "c.com"},
	})
	assert.Equal(t, "c.com c.com", rw.Apply("a.com b.com"))
}

func TestRewriter_NoRules(t *testing.T) {
	rw := NewRewriter(nil)
	assert.False(t, rw.HasRules())
	assert.Equal(t, "www.a.com", rw.Apply("www.a.com"))
}
