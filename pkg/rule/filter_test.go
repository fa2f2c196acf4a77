package rule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/fdsec/pkg/types"
)

func TestParsePatterns(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"empty string returns empty slice", "", []string{}},
		{"single pattern", "fdsec.*", []string{"fdsec.*"}},
		{"multiple patterns comma-separated", "fdsec.*,line.*,eicar", []string{"fdsec.*", "line.*", "eicar"}},
		{"patterns with spaces are trimmed", " fdsec.* , line.* , ", []string{"fdsec.*", "line.*"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParsePatterns(tt.input))
		})
	}
}

func corpus() []*types.Signature {
	return []*types.Signature{
		{ID: "fdsec.eicar.1"},
		{ID: "fdsec.test.pe.1"},
		{ID: "vendor.trojan.7", Categories: []string{"Trojan", "pe"}},
		{ID: "line.12"},
	}
}

func ids(sigs []*types.Signature) []string {
	out := make([]string, 0, len(sigs))
	for _, s := range sigs {
		out = append(out, s.ID)
	}
	return out
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name     string
		config   FilterConfig
		expected []string
	}{
		{
			name:     "empty config keeps everything",
			config:   FilterConfig{},
			expected: []string{"fdsec.eicar.1", "fdsec.test.pe.1", "vendor.trojan.7", "line.12"},
		},
		{
			name:     "include prefix",
			config:   FilterConfig{Include: []string{`^fdsec\.`}},
			expected: []string{"fdsec.eicar.1", "fdsec.test.pe.1"},
		},
		{
			name:     "include multiple patterns",
			config:   FilterConfig{Include: []string{"eicar", `^line\.`}},
			expected: []string{"fdsec.eicar.1", "line.12"},
		},
		{
			name:     "exclude only",
			config:   FilterConfig{Exclude: []string{"test"}},
			expected: []string{"fdsec.eicar.1", "vendor.trojan.7", "line.12"},
		},
		{
			name:     "include then exclude",
			config:   FilterConfig{Include: []string{`^fdsec\.`}, Exclude: []string{"pe"}},
			expected: []string{"fdsec.eicar.1"},
		},
		{
			name:     "include matches none",
			config:   FilterConfig{Include: []string{"nomatch"}},
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filtered, err := Filter(corpus(), tt.config)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ids(filtered))
		})
	}
}

func TestFilter_Categories(t *testing.T) {
	filtered, err := Filter(corpus(), FilterConfig{Include: []string{"category:trojan"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"vendor.trojan.7"}, ids(filtered))

	filtered, err = Filter(corpus(), FilterConfig{Exclude: []string{"category:pe", "^line"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"fdsec.eicar.1", "fdsec.test.pe.1"}, ids(filtered))
}

func TestFilter_InvalidRegex(t *testing.T) {
	_, err := Filter(corpus(), FilterConfig{Include: []string{"[invalid"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid regex pattern")

	_, err = Filter(corpus(), FilterConfig{Exclude: []string{"(unclosed"}})
	require.Error(t, err)
}

func TestFilter_NilSignatures(t *testing.T) {
	filtered, err := Filter(nil, FilterConfig{Include: []string{"x"}})
	require.NoError(t, err)
	assert.Empty(t, filtered)
}
