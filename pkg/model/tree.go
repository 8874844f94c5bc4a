package model

import (
	"fmt"
	"math/rand"
	"sort"
)

// TreeParams controls how a regression tree grows.
type TreeParams struct {
	// MaxDepth limits the depth of the tree, 0 means unlimited.
	MaxDepth int `json:"maxDepth"`
	// MinSamplesSplit is the minimum number of samples needed to split a node.
	MinSamplesSplit int `json:"minSamplesSplit"`
	// MinSamplesLeaf is the minimum number of samples in each child.
	MinSamplesLeaf int `json:"minSamplesLeaf"`
	// MaxFeatures is the number of features considered per split, 0 means all.
	MaxFeatures int `json:"maxFeatures"`
}

func (p TreeParams) withDefaults() TreeParams {
	if p.MinSamplesSplit < 2 {
		p.MinSamplesSplit = 2
	}
	if p.MinSamplesLeaf < 1 {
		p.MinSamplesLeaf = 1
	}
	return p
}

// Node is a node of a fitted tree. Leaves have Feature -1.
type Node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Value     float64 `json:"v"`
}

// Tree is a CART regression tree minimizing squared error. Rows go left when
// their value is less than or equal to the node threshold.
type Tree struct {
	Params TreeParams `json:"params"`
	Width  int        `json:"width"`
	Nodes  []Node     `json:"nodes"`
}

var _ Regressor = (*Tree)(nil)

// Fit grows the tree on all rows. Feature subsampling, if enabled, is seeded
// with 0.
func (t *Tree) Fit(X [][]float64, y []float64) error {
	idx := make([]int, len(y))
	for i := range idx {
		idx[i] = i
	}
	return t.fit(X, y, idx, rand.New(rand.NewSource(0)))
}

// fit grows the tree on the rows in idx, which may contain duplicates.
func (t *Tree) fit(X [][]float64, y []float64, idx []int, rng *rand.Rand) error {
	width, err := checkXY(X, y)
	if err != nil {
		return err
	}
	if len(idx) == 0 {
		return fmt.Errorf("no samples")
	}
	b := &treeBuilder{
		X:      X,
		y:      y,
		params: t.Params.withDefaults(),
		width:  width,
		rng:    rng,
	}
	b.build(idx, 0)
	t.Width = width
	t.Nodes = b.nodes
	return nil
}

// Predict walks each row down the tree.
func (t *Tree) Predict(X [][]float64) ([]float64, error) {
	if len(t.Nodes) == 0 {
		return nil, fmt.Errorf("tree is not fitted")
	}
	if _, err := checkWidth(X, t.Width); err != nil {
		return nil, err
	}
	out := make([]float64, len(X))
	for i, row := range X {
		out[i] = t.predictRow(row)
	}
	return out, nil
}

func (t *Tree) predictRow(row []float64) float64 {
	n := &t.Nodes[0]
	for n.Feature >= 0 {
		if row[n.Feature] <= n.Threshold {
			n = &t.Nodes[n.Left]
		} else {
			n = &t.Nodes[n.Right]
		}
	}
	return n.Value
}

// validate checks that a decoded tree is walkable.
func (t *Tree) validate(width int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("tree has no nodes")
	}
	if t.Width != width {
		return fmt.Errorf("tree width %d does not match %d features", t.Width, width)
	}
	for i, n := range t.Nodes {
		if n.Feature < 0 {
			continue
		}
		if n.Feature >= width {
			return fmt.Errorf("node %d splits on feature %d of %d", i, n.Feature, width)
		}
		// children are always appended after their parent
		if n.Left <= i || n.Left >= len(t.Nodes) || n.Right <= i || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d has invalid children %d/%d", i, n.Left, n.Right)
		}
	}
	return nil
}

type treeBuilder struct {
	X      [][]float64
	y      []float64
	params TreeParams
	width  int
	rng    *rand.Rand
	nodes  []Node
}

func (b *treeBuilder) build(idx []int, depth int) int {
	id := len(b.nodes)

	var sum float64
	lo, hi := b.y[idx[0]], b.y[idx[0]]
	for _, i := range idx {
		v := b.y[i]
		sum += v
		lo = min(lo, v)
		hi = max(hi, v)
	}
	b.nodes = append(b.nodes, Node{Feature: -1, Value: sum / float64(len(idx))})

	if len(idx) < b.params.MinSamplesSplit || lo == hi {
		return id
	}
	if b.params.MaxDepth > 0 && depth >= b.params.MaxDepth {
		return id
	}

	feature, threshold, ok := b.bestSplit(idx)
	if !ok {
		return id
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if b.X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.nodes[id].Feature = feature
	b.nodes[id].Threshold = threshold
	b.nodes[id].Left = l
	b.nodes[id].Right = r
	return id
}

func (b *treeBuilder) candidateFeatures() []int {
	if b.params.MaxFeatures <= 0 || b.params.MaxFeatures >= b.width {
		all := make([]int, b.width)
		for i := range all {
			all[i] = i
		}
		return all
	}
	return b.rng.Perm(b.width)[:b.params.MaxFeatures]
}

// bestSplit finds the split maximizing sumL²/nL + sumR²/nR, which is the same
// as minimizing the summed squared error of both children.
func (b *treeBuilder) bestSplit(idx []int) (int, float64, bool) {
	n := len(idx)
	minLeaf := b.params.MinSamplesLeaf
	if n < 2*minLeaf {
		return 0, 0, false
	}

	var total float64
	for _, i := range idx {
		total += b.y[i]
	}

	sorted := make([]int, n)
	bestFeature, bestThreshold := -1, 0.0
	var bestScore float64
	for _, f := range b.candidateFeatures() {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, c int) bool {
			return b.X[sorted[a]][f] < b.X[sorted[c]][f]
		})

		var leftSum float64
		for k := 1; k < n; k++ {
			leftSum += b.y[sorted[k-1]]
			if k < minLeaf || n-k < minLeaf {
				continue
			}
			prev, next := b.X[sorted[k-1]][f], b.X[sorted[k]][f]
			if prev == next {
				continue
			}
			rightSum := total - leftSum
			score := leftSum*leftSum/float64(k) + rightSum*rightSum/float64(n-k)
			if bestFeature < 0 || score > bestScore {
				bestFeature = f
				bestScore = score
				bestThreshold = prev + (next-prev)/2
				if bestThreshold >= next {
					bestThreshold = prev
				}
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}
