package nn

import (
	"math"
	"testing"
)

func TestAvgAndStd(t *testing.T) {
	avg, err := Avg([]float64{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("avg: %v", err)
	}
	if avg != 2.5 {
		t.Fatalf("unexpected avg: %f", avg)
	}
	std, err := Std([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if err != nil {
		t.Fatalf("std: %v", err)
	}
	if std != 2 {
		t.Fatalf("unexpected std: %f", std)
	}
	if _, err := Avg(nil); err == nil {
		t.Fatal("expected empty avg error")
	}
}

func TestSoftmaxSumsToOneAndKeepsOrder(t *testing.T) {
	probs := Softmax([]float64{1000, 1001, 999, 1000})
	sum := 0.0
	for _, p := range probs {
		if math.IsNaN(p) || p <= 0 {
			t.Fatalf("invalid probability in %+v", probs)
		}
		sum += p
	}
	if math.Abs(sum-1) > 1e-12 {
		t.Fatalf("expected probabilities to sum to 1, got %f", sum)
	}
	if Argmax(probs) != 1 {
		t.Fatalf("expected argmax 1, got %d", Argmax(probs))
	}
}

func TestArgmaxPrefersLowestIndexOnTie(t *testing.T) {
	if got := Argmax([]float64{0.2, 0.5, 0.5, 0.1}); got != 1 {
		t.Fatalf("expected tie to resolve to index 1, got %d", got)
	}
}

func TestPearson(t *testing.T) {
	r, ok, err := Pearson([]float64{1, 2, 3, 4}, []float64{2, 4, 6, 8})
	if err != nil || !ok {
		t.Fatalf("pearson: ok=%v err=%v", ok, err)
	}
	if math.Abs(r-1) > 1e-12 {
		t.Fatalf("expected perfect correlation, got %f", r)
	}
	_, ok, err = Pearson([]float64{1, 1, 1}, []float64{1, 2, 3})
	if err != nil {
		t.Fatalf("pearson constant: %v", err)
	}
	if ok {
		t.Fatal("expected zero-variance series to report no correlation")
	}
	if _, _, err := Pearson([]float64{1}, []float64{1, 2}); err == nil {
		t.Fatal("expected length mismatch error")
	}
}

func TestSat(t *testing.T) {
	if Sat(5, 1, -1) != 1 || Sat(-5, 1, -1) != -1 || Sat(0.3, 1, -1) != 0.3 {
		t.Fatal("unexpected saturation")
	}
}
