package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFiltersParse(t *testing.T) {
	preds, err := Filters{"frequency_hz__gte": 50.0}.Parse()
	require.NoError(t, err)
	require.Len(t, preds, 1)
	assert.Equal(t, "frequency_hz", preds[0].Field)
	assert.Equal(t, OpGte, preds[0].Op)
	assert.Equal(t, 50.0, preds[0].Value)
}

func TestFiltersParseDefaultsToEq(t *testing.T) {
	preds, err := Filters{"measurement_id": int64(4)}.Parse()
	require.NoError(t, err)
	require.Len(t, preds, 1)
	assert.Equal(t, "measurement_id", preds[0].Field)
	assert.Equal(t, OpEq, preds[0].Op)
}

func TestFiltersParseSplitsOnLastSeparator(t *testing.T) {
	// the field name itself may contain double underscores
	preds, err := Filters{"distance_to_current_injection_m__lt": 10.0}.Parse()
	require.NoError(t, err)
	assert.Equal(t, "distance_to_current_injection_m", preds[0].Field)
	assert.Equal(t, OpLt, preds[0].Op)
}

func TestFiltersParseUnknownOperator(t *testing.T) {
	_, err := Filters{"id__like": 1}.Parse()
	assert.Error(t, err)
}

func TestFiltersParseAllOperators(t *testing.T) {
	for suffix, want := range map[string]Op{
		"eq": OpEq, "ne": OpNe, "lt": OpLt, "lte": OpLte, "gt": OpGt, "gte": OpGte, "in": OpIn,
	} {
		preds, err := Filters{"id__" + suffix: 1}.Parse()
		require.NoError(t, err)
		assert.Equal(t, want, preds[0].Op, suffix)
	}
}
