package algorithm

import "math"

// treeNode 是二叉决策树节点。Variable < 0 表示叶子。
type treeNode struct {
	Variable int       `json:"var"`
	Cut      float64   `json:"cut,omitempty"`
	Value    float64   `json:"value"`
	Left     *treeNode `json:"left,omitempty"`  // x[Variable] < Cut
	Right    *treeNode `json:"right,omitempty"` // x[Variable] >= Cut
}

func (n *treeNode) eval(x []float64) float64 {
	for n.Variable >= 0 {
		if x[n.Variable] < n.Cut {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Value
}

// leaves 依次访问每个叶子。
func (n *treeNode) leaves(fn func(*treeNode)) {
	if n.Variable < 0 {
		fn(n)
		return
	}
	n.Left.leaves(fn)
	n.Right.leaves(fn)
}

// nodeStats 是一组事件的累计量。
//
//	分类树：s = Σ w·y（y ∈ {0,1}），叶子值为纯度 s/w
//	回归树：s = Σ w·r，h = Σ w·p(1-p)，叶子值为牛顿步 s/h
type nodeStats struct {
	n       int
	w, s, h float64
}

func (a *nodeStats) add(b nodeStats) {
	a.n += b.n
	a.w += b.w
	a.s += b.s
	a.h += b.h
}

func (a nodeStats) sub(b nodeStats) nodeStats {
	return nodeStats{n: a.n - b.n, w: a.w - b.w, s: a.s - b.s, h: a.h - b.h}
}

type treeBuilder struct {
	x          [][]float64
	events     []nodeStats // 每个事件自身的累计量
	nv         int
	maxDepth   int
	nCuts      int
	minNode    int
	regression bool
}

func (b *treeBuilder) build(idx []int) *treeNode {
	return b.grow(idx, 0)
}

func (b *treeBuilder) grow(idx []int, depth int) *treeNode {
	var st nodeStats
	for _, i := range idx {
		st.add(b.events[i])
	}
	leaf := &treeNode{Variable: -1, Value: b.leafValue(st)}
	if depth >= b.maxDepth || st.n < 2*b.minNode || st.w <= 0 {
		return leaf
	}

	bestVar, bestCut, bestGain := -1, 0.0, 0.0
	bins := make([]nodeStats, b.nCuts+1)
	for v := 0; v < b.nv; v++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, i := range idx {
			lo = min(lo, b.x[i][v])
			hi = max(hi, b.x[i][v])
		}
		if !(hi > lo) {
			continue
		}
		clear(bins)
		step := (hi - lo) / float64(b.nCuts+1)
		for _, i := range idx {
			k := int((b.x[i][v] - lo) / step)
			k = max(0, min(k, b.nCuts))
			bins[k].add(b.events[i])
		}
		var left nodeStats
		for k := 0; k < b.nCuts; k++ {
			left.add(bins[k])
			right := st.sub(left)
			if left.n < b.minNode || right.n < b.minNode {
				continue
			}
			if g := b.gain(st, left, right); g > bestGain {
				bestVar, bestCut, bestGain = v, lo+step*float64(k+1), g
			}
		}
	}
	if bestVar < 0 {
		return leaf
	}

	var l, r []int
	for _, i := range idx {
		if b.x[i][bestVar] < bestCut {
			l = append(l, i)
		} else {
			r = append(r, i)
		}
	}
	if len(l) == 0 || len(r) == 0 {
		return leaf
	}
	return &treeNode{
		Variable: bestVar,
		Cut:      bestCut,
		Value:    leaf.Value,
		Left:     b.grow(l, depth+1),
		Right:    b.grow(r, depth+1),
	}
}

func (b *treeBuilder) gain(parent, left, right nodeStats) float64 {
	if b.regression {
		return newtonScore(left) + newtonScore(right) - newtonScore(parent)
	}
	return gini(parent) - gini(left) - gini(right)
}

func (b *treeBuilder) leafValue(st nodeStats) float64 {
	if b.regression {
		if st.h <= 1e-12 {
			return 0
		}
		return st.s / st.h
	}
	if st.w <= 0 {
		return 0.5
	}
	return st.s / st.w
}

// gini 是加权的 Gini 不纯度 W·p(1-p)。
func gini(st nodeStats) float64 {
	if st.w <= 0 {
		return 0
	}
	p := st.s / st.w
	return st.w * p * (1 - p)
}

func newtonScore(st nodeStats) float64 {
	if st.h <= 1e-12 {
		return 0
	}
	return st.s * st.s / st.h
}
