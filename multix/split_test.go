package multix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitQuantity_Weighted(t *testing.T) {
	t.Parallel()
	shares := splitQuantity(100, []string{"a", "b", "c"},
		map[string]float64{"a": 0.5, "b": 0.3, "c": 0.2})

	require.Len(t, shares, 3)
	assert.Equal(t, 50.0, shares["a"])
	assert.Equal(t, 30.0, shares["b"])
	assert.Equal(t, 20.0, shares["c"])
}

func TestSplitQuantity_NilWeightsSplitEvenly(t *testing.T) {
	t.Parallel()
	shares := splitQuantity(90, []string{"a", "b", "c"}, nil)

	require.Len(t, shares, 3)
	assert.Equal(t, 30.0, shares["a"])
	assert.Equal(t, 30.0, shares["b"])
	assert.Equal(t, 30.0, shares["c"])
}

func TestSplitQuantity_EmptyWeightsSplitEvenly(t *testing.T) {
	t.Parallel()
	shares := splitQuantity(90, []string{"a", "b", "c"}, map[string]float64{})

	require.Len(t, shares, 3)
	assert.Equal(t, 30.0, shares["a"])
	assert.Equal(t, 30.0, shares["b"])
	assert.Equal(t, 30.0, shares["c"])
}

func TestSplitQuantity_UnnormalizedWeights(t *testing.T) {
	t.Parallel()
	// 5:3:2 behaves the same as 0.5:0.3:0.2.
	shares := splitQuantity(100, []string{"a", "b", "c"},
		map[string]float64{"a": 5, "b": 3, "c": 2})

	assert.Equal(t, 50.0, shares["a"])
	assert.Equal(t, 30.0, shares["b"])
	assert.Equal(t, 20.0, shares["c"])
}

func TestSplitQuantity_ChildrenSumToParent(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		qty     float64
		weights map[string]float64
	}{
		{"thirds", 1, map[string]float64{"a": 1, "b": 1, "c": 1}},
		{"sevenths", 0.1, map[string]float64{"a": 1, "b": 2, "c": 4}},
		{"tiny", 0.00000003, map[string]float64{"a": 0.5, "b": 0.5}},
		{"skewed", 123.456789, map[string]float64{"a": 0.91, "b": 0.06, "c": 0.03}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			shares := splitQuantity(tc.qty, []string{"a", "b", "c"}, tc.weights)
			require.NotEmpty(t, shares)

			var sum float64
			for _, q := range shares {
				assert.Positive(t, q)
				sum += q
			}
			assert.InDelta(t, tc.qty, sum, 1e-12)
		})
	}
}

func TestSplitQuantity_ZeroShareVenueDropped(t *testing.T) {
	t.Parallel()
	shares := splitQuantity(100, []string{"a", "b"},
		map[string]float64{"a": 1, "b": 0})

	require.Len(t, shares, 1)
	assert.Equal(t, 100.0, shares["a"])
}

func TestSplitQuantity_Degenerate(t *testing.T) {
	t.Parallel()
	assert.Nil(t, splitQuantity(100, nil, nil))
	assert.Nil(t, splitQuantity(100, []string{"a"}, map[string]float64{"a": 0}))
}
