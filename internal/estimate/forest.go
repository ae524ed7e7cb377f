package estimate

import (
	"context"
	"math/rand/v2"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"
)

// ForestOptions configures an extremely randomized trees regressor.
type ForestOptions struct {
	Trees           int
	Seed            uint64
	MinSamplesSplit int
	// MaxFeatures is the number of features drawn per split; 0 means all.
	MaxFeatures int
	Workers     int
}

func (o ForestOptions) withDefaults() ForestOptions {
	if o.Trees <= 0 {
		o.Trees = 50
	}
	if o.MinSamplesSplit < 2 {
		o.MinSamplesSplit = 2
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	return o
}

// Forest is a fitted ensemble of extremely randomized regression trees.
// Every tree sees the full training set; randomness comes from the feature
// and threshold draws at each split. A fitted Forest is read-only.
type Forest struct {
	trees []tree
	width int
}

type node struct {
	feature   int
	threshold float64
	left      int
	right     int
	value     float64
}

func (n node) leaf() bool {
	return n.left == 0
}

type tree struct {
	nodes []node
}

// FitForest fits opts.Trees trees on X (one row per sample) and y in
// parallel. Tree i draws from its own source seeded by (Seed, i), so the
// fitted forest does not depend on scheduling.
func FitForest(ctx context.Context, X [][]float64, y []float64, opts ForestOptions) (*Forest, error) {
	if len(X) == 0 {
		return nil, eris.New("estimate: no training samples")
	}
	if len(X) != len(y) {
		return nil, eris.Errorf("estimate: %d samples but %d targets", len(X), len(y))
	}
	opts = opts.withDefaults()

	f := &Forest{
		trees: make([]tree, opts.Trees),
		width: len(X[0]),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i := range opts.Trees {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return eris.Wrap(err, "estimate: fit cancelled")
			}
			b := &builder{
				X:           X,
				y:           y,
				rng:         rand.New(rand.NewPCG(opts.Seed, uint64(i))),
				minSplit:    opts.MinSamplesSplit,
				maxFeatures: opts.MaxFeatures,
				features:    make([]int, f.width),
			}
			f.trees[i] = b.build()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return f, nil
}

// Predict averages the trees' predictions for one encoded sample.
func (f *Forest) Predict(x []float64) float64 {
	var sum float64
	for i := range f.trees {
		sum += f.trees[i].predict(x)
	}
	return sum / float64(len(f.trees))
}

// Size returns the number of trees.
func (f *Forest) Size() int {
	return len(f.trees)
}

func (t *tree) predict(x []float64) float64 {
	n := t.nodes[0]
	for !n.leaf() {
		if x[n.feature] <= n.threshold {
			n = t.nodes[n.left]
		} else {
			n = t.nodes[n.right]
		}
	}
	return n.value
}

type builder struct {
	X           [][]float64
	y           []float64
	rng         *rand.Rand
	minSplit    int
	maxFeatures int
	features    []int
	nodes       []node
}

func (b *builder) build() tree {
	idx := make([]int, len(b.y))
	for i := range idx {
		idx[i] = i
	}
	b.grow(idx)
	return tree{nodes: b.nodes}
}

// grow appends the subtree for samples idx and returns its node index.
func (b *builder) grow(idx []int) int {
	id := len(b.nodes)
	b.nodes = append(b.nodes, node{value: b.mean(idx)})

	if len(idx) < b.minSplit || b.pure(idx) {
		return id
	}

	feature, threshold, ok := b.split(idx)
	if !ok {
		return id
	}

	// Partition idx in place: left holds x <= threshold.
	lo, hi := 0, len(idx)-1
	for lo <= hi {
		if b.X[idx[lo]][feature] <= threshold {
			lo++
		} else {
			idx[lo], idx[hi] = idx[hi], idx[lo]
			hi--
		}
	}

	left := b.grow(idx[:lo])
	right := b.grow(idx[lo:])
	b.nodes[id].feature = feature
	b.nodes[id].threshold = threshold
	b.nodes[id].left = left
	b.nodes[id].right = right
	return id
}

// split draws one random threshold per candidate feature and keeps the one
// with the lowest summed squared error. Constant features are skipped; ok is
// false when every candidate is constant on idx.
func (b *builder) split(idx []int) (feature int, threshold float64, ok bool) {
	for i := range b.features {
		b.features[i] = i
	}
	b.rng.Shuffle(len(b.features), func(i, j int) {
		b.features[i], b.features[j] = b.features[j], b.features[i]
	})
	want := b.maxFeatures
	if want <= 0 || want > len(b.features) {
		want = len(b.features)
	}

	best := -1.0
	tried := 0
	for _, f := range b.features {
		if tried >= want {
			break
		}
		lo, hi := b.X[idx[0]][f], b.X[idx[0]][f]
		for _, s := range idx[1:] {
			v := b.X[s][f]
			lo = min(lo, v)
			hi = max(hi, v)
		}
		if lo == hi {
			continue
		}
		tried++

		t := lo + b.rng.Float64()*(hi-lo)
		var sumL, sumR float64
		var nL, nR int
		for _, s := range idx {
			if b.X[s][f] <= t {
				sumL += b.y[s]
				nL++
			} else {
				sumR += b.y[s]
				nR++
			}
		}
		if nL == 0 || nR == 0 {
			continue
		}
		// Maximizing this proxy minimizes the children's squared error.
		score := sumL*sumL/float64(nL) + sumR*sumR/float64(nR)
		if !ok || score > best {
			best, feature, threshold, ok = score, f, t, true
		}
	}
	return feature, threshold, ok
}

func (b *builder) mean(idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	var sum float64
	for _, s := range idx {
		sum += b.y[s]
	}
	return sum / float64(len(idx))
}

func (b *builder) pure(idx []int) bool {
	first := b.y[idx[0]]
	for _, s := range idx[1:] {
		if b.y[s] != first {
			return false
		}
	}
	return true
}
