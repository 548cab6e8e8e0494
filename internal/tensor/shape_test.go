package tensor

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShapeNumElements(t *testing.T) {
	assert.Equal(t, 1, Shape{}.NumElements())
	assert.Equal(t, 3, Shape{3}.NumElements())
	assert.Equal(t, 12, Shape{3, 2, 2}.NumElements())
}

func TestShapeValidate(t *testing.T) {
	require.NoError(t, Shape{1, 3, 2, 2}.Validate())
	require.NoError(t, Shape{}.Validate(), "scalars are valid tensors")

	err := Shape{3, 0}.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidShape))

	err = Shape{2, math.MaxInt/2 + 1}.Validate()
	require.Error(t, err, "element count must not wrap around")
	assert.True(t, errors.Is(err, ErrInvalidShape))
	require.NoError(t, Shape{2, math.MaxInt / 2}.Validate())

	err = Shape{}.ValidateNonScalar()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidShape))
}

func TestShapeComputeStrides(t *testing.T) {
	assert.Equal(t, []int{12, 4, 2, 1}, Shape{1, 3, 2, 2}.ComputeStrides())
	assert.Empty(t, Shape{}.ComputeStrides())
}

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		a, b Shape
		want Shape
	}{
		{Shape{3, 1}, Shape{3, 5}, Shape{3, 5}},
		{Shape{5}, Shape{3, 5}, Shape{3, 5}},
		{Shape{1, 3, 1, 1}, Shape{1, 3, 2, 2}, Shape{1, 3, 2, 2}},
		{Shape{2, 2}, Shape{2, 2}, Shape{2, 2}},
	}
	for _, tt := range tests {
		got, err := BroadcastShapes(tt.a, tt.b)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%v with %v", tt.a, tt.b)
	}

	_, err := BroadcastShapes(Shape{3, 4}, Shape{3, 5})
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}

func TestShapeString(t *testing.T) {
	assert.Equal(t, "[3, 2, 2]", Shape{3, 2, 2}.String())
	assert.Equal(t, "[]", Shape{}.String())
}
