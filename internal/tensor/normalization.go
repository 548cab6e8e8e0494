package tensor

import (
	"math"

	"github.com/pkg/errors"
)

// BatchNorm normalizes x per channel with the given statistics:
//
//	y = (x - mean[c]) / sqrt(variance[c] + epsilon) * scale[c] + bias[c]
//
// x has layout [N, C, D1, ..., Dk] and every parameter tensor has shape [C].
// The statistics are taken as given; computing them from a batch is the
// caller's concern.
func BatchNorm(x, scale, bias, mean, variance *RawTensor, epsilon float32) (*RawTensor, error) {
	channels, err := ChannelCount(x)
	if err != nil {
		return nil, err
	}
	for _, p := range []*RawTensor{scale, bias, mean, variance} {
		if p.DType() != Float32 {
			return nil, errors.Wrapf(ErrUnsupportedDType, "batch norm parameter %s", p)
		}
		if !p.Shape().Equal(Shape{channels}) {
			return nil, errors.Wrapf(ErrShapeMismatch, "batch norm parameter %v for %d channels", p.Shape(), channels)
		}
	}

	out, err := NewRaw(x.Shape(), Float32)
	if err != nil {
		return nil, err
	}
	src, dst := x.AsFloat32(), out.AsFloat32()
	g, b, m, v := scale.AsFloat32(), bias.AsFloat32(), mean.AsFloat32(), variance.AsFloat32()

	spatial := x.Shape()[2:].NumElements()
	for i := range src {
		c := (i / spatial) % channels
		invStd := float32(1 / math.Sqrt(float64(v[c]+epsilon)))
		dst[i] = (src[i]-m[c])*invStd*g[c] + b[c]
	}
	return out, nil
}

// ChannelCount validates that x is a Float32 tensor with layout [N, C, ...]
// and returns C.
func ChannelCount(x *RawTensor) (int, error) {
	if x.DType() != Float32 {
		return 0, errors.Wrapf(ErrUnsupportedDType, "batch norm input %s", x)
	}
	if len(x.Shape()) < 2 {
		return 0, errors.Wrapf(ErrShapeMismatch, "batch norm expects [N, C, ...], got %v", x.Shape())
	}
	return x.Shape()[1], nil
}

// ChannelValues gathers the values of every channel of an [N, C, ...] tensor,
// widened to float64. Result i holds all N*D1*...*Dk values of channel i.
func ChannelValues(x *RawTensor) ([][]float64, error) {
	channels, err := ChannelCount(x)
	if err != nil {
		return nil, err
	}
	spatial := x.Shape()[2:].NumElements()
	perChannel := x.NumElements() / channels
	out := make([][]float64, channels)
	for c := range out {
		out[c] = make([]float64, 0, perChannel)
	}
	for i, v := range x.AsFloat32() {
		c := (i / spatial) % channels
		out[c] = append(out[c], float64(v))
	}
	return out, nil
}
