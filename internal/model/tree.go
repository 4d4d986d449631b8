package model

import (
	"sort"
)

// treeNode is one node of a regression tree in flat-array form so trees
// serialize to JSON without recursion.
type treeNode struct {
	Leaf      bool    `json:"leaf"`
	Value     float64 `json:"v"`
	Feature   int     `json:"f,omitempty"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
}

// regressionTree is a CART tree fit by variance reduction.
type regressionTree struct {
	Nodes []treeNode `json:"nodes"`
}

// growTree fits a tree over the rows of X selected by idx (which may repeat
// rows under bootstrap sampling).
func growTree(X [][]float64, y []float64, idx []int, maxDepth, minLeaf int) *regressionTree {
	t := &regressionTree{}
	t.grow(X, y, idx, maxDepth, minLeaf)
	return t
}

func (t *regressionTree) grow(X [][]float64, y []float64, idx []int, depth, minLeaf int) int {
	nodeID := len(t.Nodes)
	t.Nodes = append(t.Nodes, treeNode{Leaf: true, Value: meanTarget(y, idx)})

	if depth <= 0 || len(idx) < 2*minLeaf {
		return nodeID
	}

	feature, threshold, ok := bestSplit(X, y, idx, minLeaf)
	if !ok {
		return nodeID
	}

	var left, right []int
	for _, i := range idx {
		if X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) < minLeaf || len(right) < minLeaf {
		return nodeID
	}

	leftID := t.grow(X, y, left, depth-1, minLeaf)
	rightID := t.grow(X, y, right, depth-1, minLeaf)

	t.Nodes[nodeID].Leaf = false
	t.Nodes[nodeID].Feature = feature
	t.Nodes[nodeID].Threshold = threshold
	t.Nodes[nodeID].Left = leftID
	t.Nodes[nodeID].Right = rightID
	return nodeID
}

// bestSplit scans every feature for the split minimizing the summed squared
// error of the two children, using prefix sums over the sorted column.
func bestSplit(X [][]float64, y []float64, idx []int, minLeaf int) (feature int, threshold float64, ok bool) {
	n := len(idx)
	if n < 2 {
		return 0, 0, false
	}

	bestSSE := parentSSE(y, idx)
	if bestSSE == 0 {
		return 0, 0, false // already pure
	}
	numFeatures := len(X[idx[0]])
	order := make([]int, n)

	for f := 0; f < numFeatures; f++ {
		copy(order, idx)
		sort.Slice(order, func(a, b int) bool { return X[order[a]][f] < X[order[b]][f] })

		var sumL, sqL float64
		sumR, sqR := 0.0, 0.0
		for _, i := range order {
			sumR += y[i]
			sqR += y[i] * y[i]
		}

		for pos := 0; pos < n-1; pos++ {
			yi := y[order[pos]]
			sumL += yi
			sqL += yi * yi
			sumR -= yi
			sqR -= yi * yi

			// no split between equal feature values
			if X[order[pos]][f] == X[order[pos+1]][f] {
				continue
			}
			nl, nr := pos+1, n-pos-1
			if nl < minLeaf || nr < minLeaf {
				continue
			}
			sse := (sqL - sumL*sumL/float64(nl)) + (sqR - sumR*sumR/float64(nr))
			if sse < bestSSE {
				bestSSE = sse
				feature = f
				threshold = (X[order[pos]][f] + X[order[pos+1]][f]) / 2
				ok = true
			}
		}
	}
	return feature, threshold, ok
}

func parentSSE(y []float64, idx []int) float64 {
	var sum, sq float64
	for _, i := range idx {
		sum += y[i]
		sq += y[i] * y[i]
	}
	return sq - sum*sum/float64(len(idx))
}

func meanTarget(y []float64, idx []int) float64 {
	var sum float64
	for _, i := range idx {
		sum += y[i]
	}
	return sum / float64(len(idx))
}

// predict walks the tree from the root.
func (t *regressionTree) predict(x []float64) float64 {
	node := 0
	for {
		n := t.Nodes[node]
		if n.Leaf {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			node = n.Left
		} else {
			node = n.Right
		}
	}
}
