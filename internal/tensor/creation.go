package tensor

import "math/rand"

// Zeros creates a Float32 tensor filled with zeros.
func Zeros(shape Shape) (*RawTensor, error) {
	return NewRaw(shape, Float32)
}

// Full creates a Float32 tensor filled with value.
func Full(shape Shape, value float32) (*RawTensor, error) {
	t, err := NewRaw(shape, Float32)
	if err != nil {
		return nil, err
	}
	data := t.AsFloat32()
	for i := range data {
		data[i] = value
	}
	return t, nil
}

// Ones creates a Float32 tensor filled with ones.
func Ones(shape Shape) (*RawTensor, error) {
	return Full(shape, 1)
}

// Rand creates a Float32 tensor with values uniformly distributed in [0, 1),
// drawn from rng. Two generators created from the same seed produce identical
// tensors.
//
// Example:
//
//	rng := rand.New(rand.NewSource(42))
//	x, err := tensor.Rand(tensor.Shape{1, 3}, rng)
func Rand(shape Shape, rng *rand.Rand) (*RawTensor, error) {
	t, err := NewRaw(shape, Float32)
	if err != nil {
		return nil, err
	}
	data := t.AsFloat32()
	for i := range data {
		data[i] = rng.Float32()
	}
	return t, nil
}
