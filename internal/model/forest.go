package model

import (
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sync"
)

// Forest is a bagged ensemble of regression trees. Each tree is fit on a
// bootstrap sample drawn from a per-tree seeded RNG, so training is
// deterministic for a given seed regardless of worker scheduling.
type Forest struct {
	Trees       []*regressionTree `json:"trees"`
	NumFeatures int               `json:"num_features"`
}

// ForestParams controls ensemble training.
type ForestParams struct {
	NumTrees int
	MaxDepth int
	MinLeaf  int
	Seed     int64
	Workers  int
}

// TrainForest fits the ensemble. Tree fitting parallelizes across workers;
// the result does not depend on the degree of parallelism.
func TrainForest(X [][]float64, y []float64, p ForestParams) (*Forest, error) {
	if len(X) == 0 || len(X) != len(y) {
		return nil, fmt.Errorf("invalid training data: %d rows, %d targets", len(X), len(y))
	}
	for i, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("non-finite target at row %d", i)
		}
	}
	if p.NumTrees <= 0 {
		p.NumTrees = 100
	}
	if p.MaxDepth <= 0 {
		p.MaxDepth = 15
	}
	if p.MinLeaf <= 0 {
		p.MinLeaf = 1
	}
	if p.Workers <= 0 {
		p.Workers = runtime.NumCPU()
	}

	f := &Forest{
		Trees:       make([]*regressionTree, p.NumTrees),
		NumFeatures: len(X[0]),
	}

	n := len(X)
	sem := make(chan struct{}, p.Workers)
	var wg sync.WaitGroup
	for t := 0; t < p.NumTrees; t++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(t int) {
			defer wg.Done()
			defer func() { <-sem }()
			rng := rand.New(rand.NewSource(p.Seed + int64(t)))
			idx := make([]int, n)
			for i := range idx {
				idx[i] = rng.Intn(n)
			}
			f.Trees[t] = growTree(X, y, idx, p.MaxDepth, p.MinLeaf)
		}(t)
	}
	wg.Wait()

	return f, nil
}

// Predict averages the member trees' estimates.
func (f *Forest) Predict(x []float64) float64 {
	var sum float64
	for _, t := range f.Trees {
		sum += t.predict(x)
	}
	return sum / float64(len(f.Trees))
}
