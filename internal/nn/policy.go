package nn

import (
	"fmt"
	"math"
	"math/rand"
)

const logProbEpsilon = 1e-8

type PolicyConfig struct {
	Inputs       int
	Hidden       []int
	Actions      int
	LearningRate float64
	// OutputBias is added to every output bias after initialisation so the
	// untrained policy does not favour standing still.
	OutputBias float64
}

func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		Inputs:       8,
		Hidden:       []int{32, 16},
		Actions:      4,
		LearningRate: 0.001,
		OutputBias:   0.1,
	}
}

// Policy is a softmax policy over a ReLU MLP trained with REINFORCE.
type Policy struct {
	net *Network
	opt *Adam
}

func NewPolicy(cfg PolicyConfig, rng *rand.Rand) (*Policy, error) {
	if cfg.Actions <= 1 {
		return nil, fmt.Errorf("policy requires at least two actions, got %d", cfg.Actions)
	}
	if cfg.LearningRate <= 0 {
		return nil, fmt.Errorf("policy learning rate must be positive, got %f", cfg.LearningRate)
	}
	specs := make([]LayerSpec, 0, len(cfg.Hidden)+1)
	for _, width := range cfg.Hidden {
		specs = append(specs, LayerSpec{Out: width, Activation: "relu"})
	}
	specs = append(specs, LayerSpec{Out: cfg.Actions, Activation: "identity"})

	net, err := NewNetwork(cfg.Inputs, specs, rng)
	if err != nil {
		return nil, fmt.Errorf("policy network: %w", err)
	}
	out := &net.Layers[len(net.Layers)-1]
	for i := range out.Bias {
		out.Bias[i] += cfg.OutputBias
	}
	return &Policy{net: net, opt: NewAdam(cfg.LearningRate)}, nil
}

// Decision is one policy evaluation, kept so a later update can reuse it.
type Decision struct {
	Trace  Trace
	Probs  []float64
	Greedy int
}

func (p *Policy) Decide(observation []float64) (Decision, error) {
	trace, err := p.net.Forward(observation)
	if err != nil {
		return Decision{}, err
	}
	probs := Softmax(trace.Output)
	return Decision{Trace: trace, Probs: probs, Greedy: Argmax(probs)}, nil
}

// Reinforce takes one gradient step on -log(pi(action)) * reward and
// returns the loss before the step.
func (p *Policy) Reinforce(d Decision, action int, reward float64) (float64, error) {
	if action < 0 || action >= len(d.Probs) {
		return 0, fmt.Errorf("action %d outside [0, %d)", action, len(d.Probs))
	}
	pa := d.Probs[action]
	loss := -math.Log(pa+logProbEpsilon) * reward

	// d/dz_j of -r*log(p_a+eps) through the softmax.
	scale := -reward * pa / (pa + logProbEpsilon)
	grad := make([]float64, len(d.Probs))
	for j, pj := range d.Probs {
		indicator := 0.0
		if j == action {
			indicator = 1
		}
		grad[j] = scale * (indicator - pj)
	}

	grads, err := p.net.Backward(d.Trace, grad)
	if err != nil {
		return 0, err
	}
	p.opt.Step(p.net, grads)
	return loss, nil
}

func (p *Policy) Network() *Network {
	return p.net
}

func (p *Policy) Updates() int {
	return p.opt.Steps()
}
