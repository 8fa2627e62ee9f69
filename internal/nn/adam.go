package nn

import "math"

// Adam applies the Adam update rule to a network's parameters in place.
type Adam struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64

	step int
	mw   [][]float64
	vw   [][]float64
	mb   [][]float64
	vb   [][]float64
}

func NewAdam(learningRate float64) *Adam {
	return &Adam{
		LearningRate: learningRate,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
	}
}

func (a *Adam) Step(net *Network, grads Gradients) {
	if a.mw == nil {
		a.mw = zerosLike(grads.Weights)
		a.vw = zerosLike(grads.Weights)
		a.mb = zerosLike(grads.Bias)
		a.vb = zerosLike(grads.Bias)
	}
	a.step++
	c1 := 1 - math.Pow(a.Beta1, float64(a.step))
	c2 := 1 - math.Pow(a.Beta2, float64(a.step))
	for l := range net.Layers {
		a.update(net.Layers[l].Weights, grads.Weights[l], a.mw[l], a.vw[l], c1, c2)
		a.update(net.Layers[l].Bias, grads.Bias[l], a.mb[l], a.vb[l], c1, c2)
	}
}

func (a *Adam) update(params, grad, m, v []float64, c1, c2 float64) {
	for i, g := range grad {
		m[i] = a.Beta1*m[i] + (1-a.Beta1)*g
		v[i] = a.Beta2*v[i] + (1-a.Beta2)*g*g
		mHat := m[i] / c1
		vHat := v[i] / c2
		params[i] -= a.LearningRate * mHat / (math.Sqrt(vHat) + a.Epsilon)
	}
}

func (a *Adam) Steps() int {
	return a.step
}

func zerosLike(src [][]float64) [][]float64 {
	out := make([][]float64, len(src))
	for i, row := range src {
		out[i] = make([]float64, len(row))
	}
	return out
}
