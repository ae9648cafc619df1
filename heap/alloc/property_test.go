package alloc

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type liveAlloc struct {
	ptr  Ptr
	size int
	id   int
}

// randomSize draws mostly small requests with an occasional large one,
// so that fastbins, small bins, large bins and growth all see traffic.
func randomSize(rng *rand.Rand) int {
	switch r := rng.Intn(100); {
	case r < 60:
		return rng.Intn(80)
	case r < 90:
		return 80 + rng.Intn(1000)
	case r < 98:
		return 1024 + rng.Intn(16<<10)
	default:
		return 64<<10 + rng.Intn(192<<10)
	}
}

// Test_Property_RandomOperations performs seeded random operations and
// validates the heap after each step: no live ranges overlap, every
// pointer is aligned, data survives and Check passes.
func Test_Property_RandomOperations(t *testing.T) {
	steps := 2000
	if testing.Short() {
		steps = 200
	}

	for _, seed := range []int64{1, 7, 42, 1234, 99991} {
		t.Run(fmt.Sprintf("seed_%d", seed), func(t *testing.T) {
			a, _ := newTestArena(t, &Options{PerturbByte: 0x3c})
			rng := rand.New(rand.NewSource(seed))
			var live []liveAlloc
			nextID := 0

			for step := range steps {
				switch op := rng.Intn(10); {
				case op < 5 || len(live) == 0:
					n := randomSize(rng)
					var p Ptr
					var err error
					switch rng.Intn(8) {
					case 0:
						p, err = a.Calloc(1, n)
					case 1:
						p, err = a.Memalign(16<<rng.Intn(6), n)
					default:
						p, err = a.Malloc(n)
					}
					require.NoError(t, err, "seed %d step %d: alloc %d", seed, step, n)
					fillPattern(a, p, n, nextID)
					live = append(live, liveAlloc{p, n, nextID})
					nextID++

				case op < 8:
					i := rng.Intn(len(live))
					l := live[i]
					requirePattern(t, a, l.ptr, l.size, l.id)
					require.NoError(t, a.Free(l.ptr), "seed %d step %d", seed, step)
					live[i] = live[len(live)-1]
					live = live[:len(live)-1]

				default:
					i := rng.Intn(len(live))
					l := live[i]
					n := randomSize(rng)
					np, err := a.Realloc(l.ptr, n)
					require.NoError(t, err, "seed %d step %d: realloc %d", seed, step, n)
					if n == 0 {
						live[i] = live[len(live)-1]
						live = live[:len(live)-1]
						continue
					}
					requirePattern(t, a, np, min(l.size, n), l.id)
					fillPattern(a, np, n, l.id)
					live[i] = liveAlloc{np, n, l.id}
				}

				if err := a.Check(); err != nil {
					require.NoError(t, err, "seed %d step %d", seed, step)
				}
			}

			ptrs := make([]Ptr, len(live))
			for i, l := range live {
				ptrs[i] = l.ptr
				requirePattern(t, a, l.ptr, l.size, l.id)
			}
			requireDisjoint(t, a, ptrs)

			for _, l := range live {
				mustFree(t, a, l.ptr)
			}
			_, err := a.Trim(0)
			require.NoError(t, err)

			s := a.Stats()
			assert.Zero(t, s.SmBlks)
			assert.Equal(t, 1, s.OrdBlks, "everything merged back into top")
			assert.Equal(t, s.Arena, s.KeepCost)
			requireHeapOK(t, a)
		})
	}
}

// Test_Property_FreeAllReusesSpace tests that after freeing every block of
// a batch, in any order, a request for the batch's total size fits in the
// memory already obtained.
func Test_Property_FreeAllReusesSpace(t *testing.T) {
	for _, seed := range []int64{3, 5, 8, 13, 21} {
		t.Run(fmt.Sprintf("seed_%d", seed), func(t *testing.T) {
			a, _ := newTestArena(t, &Options{TrimThreshold: -1})
			rng := rand.New(rand.NewSource(seed))

			n := 10 + rng.Intn(200)
			ptrs := make([]Ptr, n)
			total := 0
			for i := range ptrs {
				size := rng.Intn(600)
				total += size
				ptrs[i] = mustMalloc(t, a, size)
			}
			rng.Shuffle(len(ptrs), func(i, j int) { ptrs[i], ptrs[j] = ptrs[j], ptrs[i] })
			for _, p := range ptrs {
				mustFree(t, a, p)
			}

			before := a.Stats()
			mustMalloc(t, a, total)
			after := a.Stats()
			assert.Equal(t, before.SysmallocCalls, after.SysmallocCalls, "no growth for %d bytes", total)
			assert.Equal(t, before.Arena, after.Arena)
			requireHeapOK(t, a)
		})
	}
}
