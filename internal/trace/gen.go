package trace

import (
	"math/rand"
	"slices"
)

// GenOptions controls Generate.
type GenOptions struct {
	Ops     int   // number of operations
	Seed    int64 // same seed, same trace
	MaxSize int   // largest request; 0 selects 4096
	Pool    bool  // mix in pool operations
}

// Generate returns a random but well-formed trace: every free and realloc
// names a live id, and every allocated id is freed at the end.
func Generate(opts GenOptions) []Op {
	rng := rand.New(rand.NewSource(opts.Seed))
	maxSize := opts.MaxSize
	if maxSize <= 0 {
		maxSize = 4096
	}
	size := func() int {
		// Most requests are small, as in real programs.
		if rng.Intn(4) > 0 {
			return rng.Intn(min(maxSize, 128) + 1)
		}
		return rng.Intn(maxSize + 1)
	}

	ops := make([]Op, 0, opts.Ops)
	var live, poolLive []int
	nextID := 1
	take := func(ids *[]int) int {
		i := rng.Intn(len(*ids))
		id := (*ids)[i]
		(*ids)[i] = (*ids)[len(*ids)-1]
		*ids = (*ids)[:len(*ids)-1]
		return id
	}

	for len(ops) < opts.Ops {
		r := rng.Intn(100)
		switch {
		case opts.Pool && r < 15:
			switch {
			case len(poolLive) > 0 && r < 5:
				ops = append(ops, Op{Kind: PoolFree, ID: take(&poolLive)})
			case r == 14 && rng.Intn(10) == 0:
				ops = append(ops, Op{Kind: PoolClear})
				poolLive = poolLive[:0]
			default:
				ops = append(ops, Op{Kind: PoolAlloc, ID: nextID})
				poolLive = append(poolLive, nextID)
				nextID++
			}

		case len(live) == 0 || r < 55:
			op := Op{ID: nextID, Size: size()}
			switch rng.Intn(10) {
			case 0:
				op.Kind = Calloc
				op.Count = 1 + rng.Intn(8)
				op.Size /= op.Count
			case 1:
				op.Kind = Memalign
				op.Align = 16 << rng.Intn(6)
			default:
				op.Kind = Malloc
			}
			ops = append(ops, op)
			live = append(live, nextID)
			nextID++

		case r < 85:
			ops = append(ops, Op{Kind: Free, ID: take(&live)})

		case r < 98:
			id := live[rng.Intn(len(live))]
			ops = append(ops, Op{Kind: Realloc, ID: id, Size: 1 + size()})

		default:
			ops = append(ops, Op{Kind: Trim, Size: rng.Intn(2) * 4096})
		}
	}

	// Release everything, in a stable order.
	slices.Sort(live)
	for _, id := range live {
		ops = append(ops, Op{Kind: Free, ID: id})
	}
	slices.Sort(poolLive)
	for _, id := range poolLive {
		ops = append(ops, Op{Kind: PoolFree, ID: id})
	}
	return ops
}
