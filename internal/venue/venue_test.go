// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package venue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/confpapers/pkg/types"
)

func TestLookup(t *testing.T) {
	for _, name := range []string{"neurips", "NeurIPS", " ICLR ", "icml", "CVPR"} {
		a, err := Lookup(name)
		require.NoError(t, err, name)
		assert.NotNil(t, a)
	}

	_, err := Lookup("eccv")
	assert.ErrorIs(t, err, types.ErrUnknownVenue)
}

func TestResolve(t *testing.T) {
	tests := []struct {
		input    string
		wantTag  string
		wantBase string
	}{
		{"icml", "icml", ""},
		{"https://icml.cc/", "icml", "https://icml.cc"},
		{"https://www.neurips.cc", "neurips", "https://www.neurips.cc"},
		{"https://papers.cool/venue/CVPR.2024", "cvpr", "https://papers.cool"},
		{"neurips 2024", "neurips", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			a, base, err := Resolve(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTag, a.Tag())
			assert.Equal(t, tt.wantBase, base)
		})
	}

	for _, bad := range []string{"eccv", "https://example.com", ""} {
		_, _, err := Resolve(bad)
		assert.ErrorIs(t, err, types.ErrUnknownVenue, bad)
	}
}

func TestDefaultTargets(t *testing.T) {
	got := DefaultTargets()
	assert.ElementsMatch(t, []types.Target{
		{Venue: "CVPR", Year: 2024},
		{Venue: "CVPR", Year: 2025},
		{Venue: "ICLR", Year: 2024},
		{Venue: "ICML", Year: 2025},
		{Venue: "NeurIPS", Year: 2023},
		{Venue: "NeurIPS", Year: 2024},
	}, got)

	assert.Equal(t, []int{2023, 2024}, DefaultYears("NeurIPS"))
	assert.Empty(t, DefaultYears("eccv"))
}

func TestAdapterVariants(t *testing.T) {
	var _ AffordanceResolver = NewNeurIPS()
	var _ AffordanceResolver = NewICLR()
	var _ AffordanceResolver = NewICML()
	var _ PDFGuesser = NewCVPR()
	var _ EventAware = NewCVPR()

	assert.Equal(t, []string{"cvpr", "iclr", "icml", "neurips"}, Names())
	assert.True(t, NewCVPR().LazyLoaded())
	assert.False(t, NewICML().LazyLoaded())
}
