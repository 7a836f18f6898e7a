package forest

import (
	"math/rand"
	"sort"
)

// Node is one decision node. Leaves have Left == -1 and carry the class
// distribution of the training rows that reached them.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Dist      []float64
}

// Leaf reports whether n terminates a path.
func (n Node) Leaf() bool {
	return n.Left < 0
}

// Tree is a CART classification tree stored as a flat node slice; Nodes[0]
// is the root.
type Tree struct {
	Nodes []Node
}

// proba walks x down to a leaf and returns its class distribution.
func (t *Tree) proba(x []float64) []float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Leaf() {
			return n.Dist
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// builder grows one tree over a sample of row indices.
type builder struct {
	x           [][]float64
	y           []int
	nClasses    int
	params      Params
	maxFeatures int
	rng         *rand.Rand

	tree        Tree
	importances []float64
}

func (b *builder) build(samples []int) Tree {
	b.importances = make([]float64, len(b.x[0]))
	b.grow(samples, 0)
	return b.tree
}

// grow appends the subtree for samples and returns its root index.
func (b *builder) grow(samples []int, depth int) int {
	counts := b.counts(samples)
	id := len(b.tree.Nodes)
	b.tree.Nodes = append(b.tree.Nodes, Node{Left: -1, Right: -1})

	if b.stop(samples, counts, depth) {
		b.tree.Nodes[id].Dist = distribution(counts, len(samples))
		return id
	}

	s, ok := b.bestSplit(samples, counts)
	if !ok {
		b.tree.Nodes[id].Dist = distribution(counts, len(samples))
		return id
	}

	n := float64(len(samples))
	b.importances[s.feature] += n*gini(counts, n) - s.score

	left := make([]int, 0, s.nLeft)
	right := make([]int, 0, len(samples)-s.nLeft)
	for _, i := range samples {
		if b.x[i][s.feature] <= s.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.tree.Nodes[id].Feature = s.feature
	b.tree.Nodes[id].Threshold = s.threshold
	b.tree.Nodes[id].Left = l
	b.tree.Nodes[id].Right = r
	return id
}

func (b *builder) stop(samples []int, counts []float64, depth int) bool {
	if len(samples) < b.params.MinSamplesSplit {
		return true
	}
	if b.params.MaxDepth > 0 && depth >= b.params.MaxDepth {
		return true
	}
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

type split struct {
	feature   int
	threshold float64
	score     float64 // weighted child impurity: nL*gini(L) + nR*gini(R)
	nLeft     int
}

// bestSplit draws candidate features in random order and keeps the lowest
// weighted Gini. Once maxFeatures have been tried it stops at the first
// feature that yields a split; constant features do not count towards the
// quota.
func (b *builder) bestSplit(samples []int, counts []float64) (split, bool) {
	nFeatures := len(b.x[0])
	order := b.rng.Perm(nFeatures)

	best := split{feature: -1}
	tried := 0
	sorted := make([]int, len(samples))
	left := make([]float64, b.nClasses)

	for _, f := range order {
		if tried >= b.maxFeatures && best.feature >= 0 {
			break
		}

		copy(sorted, samples)
		sort.Slice(sorted, func(i, j int) bool {
			return b.x[sorted[i]][f] < b.x[sorted[j]][f]
		})
		if b.x[sorted[0]][f] == b.x[sorted[len(sorted)-1]][f] {
			continue
		}
		tried++

		for k := range left {
			left[k] = 0
		}
		n := float64(len(sorted))
		var leftSq, rightSq float64
		for _, c := range counts {
			rightSq += c * c
		}

		for pos := 0; pos < len(sorted)-1; pos++ {
			c := b.y[sorted[pos]]
			rc := counts[c] - left[c]
			rightSq += (rc-1)*(rc-1) - rc*rc
			leftSq += (left[c]+1)*(left[c]+1) - left[c]*left[c]
			left[c]++

			v, next := b.x[sorted[pos]][f], b.x[sorted[pos+1]][f]
			if v == next {
				continue
			}

			nl := float64(pos + 1)
			nr := n - nl
			score := (nl - leftSq/nl) + (nr - rightSq/nr)
			if best.feature < 0 || score < best.score {
				best = split{
					feature:   f,
					threshold: v + (next-v)/2,
					score:     score,
					nLeft:     pos + 1,
				}
			}
		}
	}
	return best, best.feature >= 0
}

func (b *builder) counts(samples []int) []float64 {
	counts := make([]float64, b.nClasses)
	for _, i := range samples {
		counts[b.y[i]]++
	}
	return counts
}

// gini returns the Gini impurity of counts over n rows.
func gini(counts []float64, n float64) float64 {
	if n == 0 {
		return 0
	}
	var sq float64
	for _, c := range counts {
		sq += c * c
	}
	return 1 - sq/(n*n)
}

func distribution(counts []float64, n int) []float64 {
	dist := make([]float64, len(counts))
	if n == 0 {
		return dist
	}
	for i, c := range counts {
		dist[i] = c / float64(n)
	}
	return dist
}
