package nn

import (
	"fmt"
	"math"
	"math/rand"
)

// Layer is a dense layer; Weights is row-major with one row per output.
type Layer struct {
	In         int       `json:"in"`
	Out        int       `json:"out"`
	Weights    []float64 `json:"weights"`
	Bias       []float64 `json:"bias"`
	Activation string    `json:"activation"`
}

// Network is a feed-forward stack of dense layers.
type Network struct {
	Layers []Layer `json:"layers"`

	acts []Activation
}

// LayerSpec describes one layer for NewNetwork.
type LayerSpec struct {
	Out        int
	Activation string
}

// NewNetwork builds a network with weights and biases drawn uniformly from
// [-1/sqrt(in), 1/sqrt(in)].
func NewNetwork(inputs int, specs []LayerSpec, rng *rand.Rand) (*Network, error) {
	if inputs <= 0 {
		return nil, fmt.Errorf("network inputs must be positive, got %d", inputs)
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("network requires at least one layer")
	}
	if rng == nil {
		return nil, fmt.Errorf("network initialisation requires a random source")
	}

	net := &Network{Layers: make([]Layer, 0, len(specs))}
	in := inputs
	for i, spec := range specs {
		if spec.Out <= 0 {
			return nil, fmt.Errorf("layer %d: width must be positive, got %d", i, spec.Out)
		}
		bound := 1 / math.Sqrt(float64(in))
		layer := Layer{
			In:         in,
			Out:        spec.Out,
			Weights:    make([]float64, in*spec.Out),
			Bias:       make([]float64, spec.Out),
			Activation: spec.Activation,
		}
		for w := range layer.Weights {
			layer.Weights[w] = (rng.Float64()*2 - 1) * bound
		}
		for b := range layer.Bias {
			layer.Bias[b] = (rng.Float64()*2 - 1) * bound
		}
		net.Layers = append(net.Layers, layer)
		in = spec.Out
	}
	if err := net.bind(); err != nil {
		return nil, err
	}
	return net, nil
}

func (n *Network) bind() error {
	n.acts = make([]Activation, len(n.Layers))
	for i, layer := range n.Layers {
		act, err := GetActivation(layer.Activation)
		if err != nil {
			return fmt.Errorf("layer %d: %w", i, err)
		}
		n.acts[i] = act
	}
	return nil
}

func (n *Network) Inputs() int {
	if len(n.Layers) == 0 {
		return 0
	}
	return n.Layers[0].In
}

func (n *Network) Outputs() int {
	if len(n.Layers) == 0 {
		return 0
	}
	return n.Layers[len(n.Layers)-1].Out
}

// Trace keeps the per-layer values of a forward pass for backprop.
type Trace struct {
	Input  []float64
	Pre    [][]float64
	Post   [][]float64
	Output []float64
}

func (n *Network) Forward(input []float64) (Trace, error) {
	if len(input) != n.Inputs() {
		return Trace{}, fmt.Errorf("network expects %d inputs, got %d", n.Inputs(), len(input))
	}
	if len(n.acts) != len(n.Layers) {
		if err := n.bind(); err != nil {
			return Trace{}, err
		}
	}

	trace := Trace{
		Input: append([]float64(nil), input...),
		Pre:   make([][]float64, len(n.Layers)),
		Post:  make([][]float64, len(n.Layers)),
	}
	x := trace.Input
	for l, layer := range n.Layers {
		pre := make([]float64, layer.Out)
		post := make([]float64, layer.Out)
		for o := 0; o < layer.Out; o++ {
			total := layer.Bias[o]
			row := layer.Weights[o*layer.In : (o+1)*layer.In]
			for i, w := range row {
				total += w * x[i]
			}
			pre[o] = total
			post[o] = n.acts[l].Func(total)
		}
		trace.Pre[l] = pre
		trace.Post[l] = post
		x = post
	}
	trace.Output = x
	return trace, nil
}

// Gradients mirrors the layer parameter layout.
type Gradients struct {
	Weights [][]float64
	Bias    [][]float64
}

// Backward returns parameter gradients given dLoss/dOutput for a trace.
func (n *Network) Backward(trace Trace, gradOutput []float64) (Gradients, error) {
	if len(gradOutput) != n.Outputs() {
		return Gradients{}, fmt.Errorf("gradient expects %d outputs, got %d", n.Outputs(), len(gradOutput))
	}
	if len(trace.Pre) != len(n.Layers) {
		return Gradients{}, fmt.Errorf("trace has %d layers, network has %d", len(trace.Pre), len(n.Layers))
	}

	grads := Gradients{
		Weights: make([][]float64, len(n.Layers)),
		Bias:    make([][]float64, len(n.Layers)),
	}
	delta := append([]float64(nil), gradOutput...)
	for l := len(n.Layers) - 1; l >= 0; l-- {
		layer := n.Layers[l]
		for o := range delta {
			delta[o] *= n.acts[l].Derivative(trace.Pre[l][o])
		}
		input := trace.Input
		if l > 0 {
			input = trace.Post[l-1]
		}
		gw := make([]float64, len(layer.Weights))
		for o := 0; o < layer.Out; o++ {
			for i := 0; i < layer.In; i++ {
				gw[o*layer.In+i] = delta[o] * input[i]
			}
		}
		grads.Weights[l] = gw
		grads.Bias[l] = append([]float64(nil), delta...)

		if l == 0 {
			break
		}
		prev := make([]float64, layer.In)
		for o := 0; o < layer.Out; o++ {
			for i := 0; i < layer.In; i++ {
				prev[i] += layer.Weights[o*layer.In+i] * delta[o]
			}
		}
		delta = prev
	}
	return grads, nil
}

// Clone returns a deep copy.
func (n *Network) Clone() *Network {
	out := &Network{Layers: make([]Layer, len(n.Layers)), acts: append([]Activation(nil), n.acts...)}
	for i, layer := range n.Layers {
		layer.Weights = append([]float64(nil), layer.Weights...)
		layer.Bias = append([]float64(nil), layer.Bias...)
		out.Layers[i] = layer
	}
	return out
}
