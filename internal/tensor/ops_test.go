package tensor

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErf(t *testing.T) {
	x, err := FromFloat32([]float32{-1, 0, 0.5}, Shape{1, 3})
	require.NoError(t, err)

	y, err := Erf(x)
	require.NoError(t, err)
	assert.Equal(t, Shape{1, 3}, y.Shape())
	for i, v := range x.AsFloat32() {
		assert.InDelta(t, math.Erf(float64(v)), float64(y.AsFloat32()[i]), 1e-7)
	}
}

func TestMapRejectsIntegers(t *testing.T) {
	x, err := FromInt64([]int64{1, 2}, Shape{2})
	require.NoError(t, err)
	_, err = Erf(x)
	assert.True(t, errors.Is(err, ErrUnsupportedDType))
}

func TestAddBroadcast(t *testing.T) {
	a, err := FromFloat32([]float32{1, 2, 3, 4, 5, 6}, Shape{2, 3})
	require.NoError(t, err)
	b, err := FromFloat32([]float32{10, 20, 30}, Shape{3})
	require.NoError(t, err)

	sum, err := Add(a, b)
	require.NoError(t, err)
	assert.Equal(t, []float32{11, 22, 33, 14, 25, 36}, sum.AsFloat32())

	col, err := FromFloat32([]float32{100, 200}, Shape{2, 1})
	require.NoError(t, err)
	sum, err = Add(a, col)
	require.NoError(t, err)
	assert.Equal(t, []float32{101, 102, 103, 204, 205, 206}, sum.AsFloat32())
}

func TestBinaryOps(t *testing.T) {
	a, err := FromFloat32([]float32{6, 8}, Shape{2})
	require.NoError(t, err)
	b, err := FromFloat32([]float32{2, 4}, Shape{2})
	require.NoError(t, err)

	sub, err := Sub(a, b)
	require.NoError(t, err)
	assert.Equal(t, []float32{4, 4}, sub.AsFloat32())

	mul, err := Mul(a, b)
	require.NoError(t, err)
	assert.Equal(t, []float32{12, 32}, mul.AsFloat32())

	div, err := Div(a, b)
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 2}, div.AsFloat32())

	c, err := FromFloat32([]float32{1, 2, 3}, Shape{3})
	require.NoError(t, err)
	_, err = Add(a, c)
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}

func TestReshape(t *testing.T) {
	x, err := FromFloat32([]float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, Shape{1, 3, 2, 2})
	require.NoError(t, err)

	y, err := Reshape(x, []int64{0, -1})
	require.NoError(t, err)
	assert.Equal(t, Shape{1, 12}, y.Shape())
	assert.Equal(t, x.AsFloat32(), y.AsFloat32())

	_, err = Reshape(x, []int64{5, -1})
	assert.True(t, errors.Is(err, ErrShapeMismatch))

	_, err = Reshape(x, []int64{-1, -1})
	assert.True(t, errors.Is(err, ErrInvalidShape))
}

func TestFlatten(t *testing.T) {
	x, err := Zeros(Shape{2, 3, 4})
	require.NoError(t, err)

	y, err := Flatten(x, 1)
	require.NoError(t, err)
	assert.Equal(t, Shape{2, 12}, y.Shape())

	y, err = Flatten(x, 0)
	require.NoError(t, err)
	assert.Equal(t, Shape{1, 24}, y.Shape())

	y, err = Flatten(x, -1)
	require.NoError(t, err)
	assert.Equal(t, Shape{6, 4}, y.Shape())
}

func TestBatchNormDefaults(t *testing.T) {
	x, err := FromFloat32([]float32{1, 2, 3, 4, 5, 6}, Shape{1, 3, 2})
	require.NoError(t, err)
	scale, _ := Ones(Shape{3})
	bias, _ := Zeros(Shape{3})
	mean, _ := Zeros(Shape{3})
	variance, _ := Ones(Shape{3})

	y, err := BatchNorm(x, scale, bias, mean, variance, 1e-5)
	require.NoError(t, err)
	inv := 1 / math.Sqrt(1+1e-5)
	for i, v := range x.AsFloat32() {
		assert.InDelta(t, float64(v)*inv, float64(y.AsFloat32()[i]), 1e-6)
	}
}

func TestBatchNormPerChannel(t *testing.T) {
	x, err := FromFloat32([]float32{1, 1, 2, 2}, Shape{1, 2, 2})
	require.NoError(t, err)
	scale, _ := FromFloat32([]float32{2, 1}, Shape{2})
	bias, _ := FromFloat32([]float32{0, 10}, Shape{2})
	mean, _ := FromFloat32([]float32{1, 0}, Shape{2})
	variance, _ := FromFloat32([]float32{1, 4}, Shape{2})

	y, err := BatchNorm(x, scale, bias, mean, variance, 0)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 11, 11}, y.AsFloat32())
}

func TestBatchNormShapeErrors(t *testing.T) {
	p, _ := Ones(Shape{3})

	x, _ := Zeros(Shape{3})
	_, err := BatchNorm(x, p, p, p, p, 1e-5)
	assert.True(t, errors.Is(err, ErrShapeMismatch), "rank 1 input")

	x, _ = Zeros(Shape{1, 4, 2})
	_, err = BatchNorm(x, p, p, p, p, 1e-5)
	assert.True(t, errors.Is(err, ErrShapeMismatch), "channel count")
}

func TestChannelValues(t *testing.T) {
	x, err := FromFloat32([]float32{1, 2, 3, 4, 5, 6, 7, 8}, Shape{2, 2, 2})
	require.NoError(t, err)
	values, err := ChannelValues(x)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 2, 5, 6}, {3, 4, 7, 8}}, values)
}
