package nn

import (
	"github.com/born-ml/onnxgen/internal/onnx"
	"github.com/born-ml/onnxgen/internal/tensor"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
	"k8s.io/klog/v2"
)

// Defaults shared with torch.nn.BatchNorm2d.
const (
	DefaultBatchNormEpsilon  = 1e-5
	DefaultBatchNormMomentum = 0.1
)

// BatchNorm2d normalizes each channel of an [N, C, H, W] input.
//
// In inference mode it uses the running statistics:
//
//	y = (x - running_mean) / sqrt(running_var + eps) * weight + bias
//
// In training mode it normalizes with the mean and population variance of
// the batch and folds them into the running statistics:
//
//	running_mean = (1 - momentum) * running_mean + momentum * mean
//	running_var  = (1 - momentum) * running_var  + momentum * unbiased_var
//
// A fresh module has weight 1, bias 0, running_mean 0 and running_var 1,
// and starts in training mode like its PyTorch counterpart.
type BatchNorm2d struct {
	name        string
	numFeatures int
	epsilon     float32
	momentum    float32
	training    bool

	weight      *Parameter // [C]
	bias        *Parameter // [C]
	runningMean *Parameter // [C] buffer
	runningVar  *Parameter // [C] buffer
}

// NewBatchNorm2d creates a batch normalization layer over numFeatures
// channels. Parameter names are prefixed with name.
func NewBatchNorm2d(name string, numFeatures int) (*BatchNorm2d, error) {
	if numFeatures <= 0 {
		return nil, errors.Wrapf(tensor.ErrInvalidShape, "BatchNorm2d %s: num_features must be positive, got %d",
			name, numFeatures)
	}
	shape := tensor.Shape{numFeatures}
	ones, err := tensor.Ones(shape)
	if err != nil {
		return nil, err
	}
	zeros, err := tensor.Zeros(shape)
	if err != nil {
		return nil, err
	}
	return &BatchNorm2d{
		name:        name,
		numFeatures: numFeatures,
		epsilon:     DefaultBatchNormEpsilon,
		momentum:    DefaultBatchNormMomentum,
		training:    true,
		weight:      NewParameter(name+".weight", ones),
		bias:        NewParameter(name+".bias", zeros),
		runningMean: NewBuffer(name+".running_mean", zeros.Clone()),
		runningVar:  NewBuffer(name+".running_var", ones.Clone()),
	}, nil
}

// Name returns the layer name.
func (bn *BatchNorm2d) Name() string {
	return bn.name
}

// NumFeatures returns the number of channels C.
func (bn *BatchNorm2d) NumFeatures() int {
	return bn.numFeatures
}

// Epsilon returns the value added to the variance for numerical stability.
func (bn *BatchNorm2d) Epsilon() float32 {
	return bn.epsilon
}

// Momentum returns the weight of a new batch in the running statistics.
func (bn *BatchNorm2d) Momentum() float32 {
	return bn.momentum
}

// SetTraining switches between batch statistics (true) and running statistics.
func (bn *BatchNorm2d) SetTraining(training bool) {
	bn.training = training
}

// Training reports whether the layer uses batch statistics.
func (bn *BatchNorm2d) Training() bool {
	return bn.training
}

// Weight returns the per-channel scale.
func (bn *BatchNorm2d) Weight() *Parameter { return bn.weight }

// Bias returns the per-channel shift.
func (bn *BatchNorm2d) Bias() *Parameter { return bn.bias }

// RunningMean returns the running mean buffer.
func (bn *BatchNorm2d) RunningMean() *Parameter { return bn.runningMean }

// RunningVar returns the running variance buffer.
func (bn *BatchNorm2d) RunningVar() *Parameter { return bn.runningVar }

// Parameters returns weight, bias, running_mean and running_var, in the
// order ONNX BatchNormalization takes them.
func (bn *BatchNorm2d) Parameters() []*Parameter {
	return []*Parameter{bn.weight, bn.bias, bn.runningMean, bn.runningVar}
}

// Forward normalizes input of shape [N, C, H, W].
func (bn *BatchNorm2d) Forward(input *tensor.RawTensor) (*tensor.RawTensor, error) {
	if err := bn.checkInput(input); err != nil {
		return nil, err
	}

	mean, variance := bn.runningMean.Tensor(), bn.runningVar.Tensor()
	if bn.training {
		var err error
		if mean, variance, err = bn.batchStatistics(input); err != nil {
			return nil, err
		}
	}

	out, err := tensor.BatchNorm(input, bn.weight.Tensor(), bn.bias.Tensor(), mean, variance, bn.epsilon)
	if err != nil {
		return nil, errors.WithMessagef(err, "BatchNorm2d %s", bn.name)
	}
	return out, nil
}

func (bn *BatchNorm2d) checkInput(input *tensor.RawTensor) error {
	shape := input.Shape()
	if len(shape) != 4 {
		return errors.Wrapf(tensor.ErrShapeMismatch, "BatchNorm2d %s: expected [N, C, H, W], got %v", bn.name, shape)
	}
	if shape[1] != bn.numFeatures {
		return errors.Wrapf(tensor.ErrShapeMismatch, "BatchNorm2d %s: expected %d channels, got %v",
			bn.name, bn.numFeatures, shape)
	}
	return nil
}

// batchStatistics computes per-channel mean and population variance of the
// batch and updates the running statistics.
func (bn *BatchNorm2d) batchStatistics(input *tensor.RawTensor) (mean, variance *tensor.RawTensor, err error) {
	channels, err := tensor.ChannelValues(input)
	if err != nil {
		return nil, nil, err
	}
	n := len(channels[0])
	if n < 2 {
		return nil, nil, errors.Wrapf(tensor.ErrShapeMismatch,
			"BatchNorm2d %s: expected more than 1 value per channel when training, got input %v", bn.name, input.Shape())
	}

	means := make([]float32, bn.numFeatures)
	vars := make([]float32, bn.numFeatures)
	runningMean := bn.runningMean.Tensor().Clone()
	runningVar := bn.runningVar.Tensor().Clone()
	rm, rv := runningMean.AsFloat32(), runningVar.AsFloat32()
	m := bn.momentum
	for c, values := range channels {
		mu, popVar := stat.PopMeanVariance(values, nil)
		unbiased := popVar * float64(n) / float64(n-1)
		means[c] = float32(mu)
		vars[c] = float32(popVar)
		rm[c] = (1-m)*rm[c] + m*float32(mu)
		rv[c] = (1-m)*rv[c] + m*float32(unbiased)
	}
	bn.runningMean.SetTensor(runningMean)
	bn.runningVar.SetTensor(runningVar)
	klog.V(2).Infof("BatchNorm2d %s: batch mean %v, variance %v", bn.name, means, vars)

	if mean, err = tensor.FromFloat32(means, tensor.Shape{bn.numFeatures}); err != nil {
		return nil, nil, err
	}
	if variance, err = tensor.FromFloat32(vars, tensor.Shape{bn.numFeatures}); err != nil {
		return nil, nil, err
	}
	return mean, variance, nil
}

// Export emits a BatchNormalization node reading the parameters from
// initializers. ONNX weighs the running statistics the other way around,
// so the momentum attribute is 1 - momentum.
func (bn *BatchNorm2d) Export(b *onnx.GraphBuilder, input string) (string, error) {
	inputs := []string{input}
	for _, p := range bn.Parameters() {
		name, err := p.export(b)
		if err != nil {
			return "", errors.WithMessagef(err, "exporting %s", bn.name)
		}
		inputs = append(inputs, name)
	}
	out, err := b.AddNode("BatchNormalization", inputs,
		onnx.AttrFloat("epsilon", bn.epsilon),
		onnx.AttrFloat("momentum", 1-bn.momentum),
	)
	if err != nil {
		return "", errors.WithMessagef(err, "exporting %s", bn.name)
	}
	return out, nil
}
