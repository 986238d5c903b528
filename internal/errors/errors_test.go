package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindString(t *testing.T) {
	assert.Equal(t, "data_access", DataAccess.String())
	assert.Equal(t, "validation", Validation.String())
	assert.Equal(t, "numeric_solve", NumericSolve.String())
}

func TestEAndMessage(t *testing.T) {
	err := E(Validation, "bad input")
	assert.EqualError(t, err, "bad input")
	assert.True(t, IsValidation(err))
	assert.False(t, IsDataAccess(err))
	assert.False(t, IsNumericSolve(err))
}

func TestEf(t *testing.T) {
	err := Ef(DataAccess, "no measurement with id %d", 42)
	assert.EqualError(t, err, "no measurement with id 42")
	assert.True(t, IsDataAccess(err))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(DataAccess, cause, "query failed")
	assert.True(t, IsDataAccess(err))
	assert.ErrorContains(t, err, "query failed")
	assert.ErrorContains(t, err, "connection refused")
	assert.ErrorIs(t, err, cause)
}

func TestWrapfThroughLayers(t *testing.T) {
	inner := E(NumericSolve, "singular matrix")
	outer := Wrapf(DataAccess, inner, "processing measurement %d", 7)
	// the outermost kind wins for classification
	assert.True(t, IsDataAccess(outer))
	require.ErrorIs(t, outer, inner)
}

func TestIsOnForeignError(t *testing.T) {
	err := fmt.Errorf("plain")
	assert.False(t, IsValidation(err))
	assert.False(t, IsDataAccess(err))
	assert.False(t, IsNumericSolve(err))
	assert.False(t, IsValidation(nil))
}
