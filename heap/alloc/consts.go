package alloc

const (
	// MaxRequest is the largest request Malloc accepts.
	MaxRequest = 1<<31 - 1 - 2*minSize

	// DefaultMaxFast is the default largest request served by fastbins.
	DefaultMaxFast = 64 * sizeSz / 4

	// MaxFastLimit is the largest value Options.MaxFast may take.
	MaxFastLimit = 80 * sizeSz / 4

	// DisableFastbins turns fastbins off when assigned to Options.MaxFast.
	DisableFastbins = -1

	// DefaultTrimThreshold is the top size above which Free returns memory to the break.
	DefaultTrimThreshold = 128 * 1024

	// DefaultPageSize is the granularity of break growth and trimming.
	DefaultPageSize = 4096

	// FastbinConsolidationThreshold is the size of a freed chunk that
	// triggers fastbin consolidation and a trim check.
	FastbinConsolidationThreshold = 65536

	// MaxUnsortedIters bounds the unsorted-bin drain performed by one malloc.
	MaxUnsortedIters = 10000

	// MaxAlignment is the largest alignment Memalign accepts.
	MaxAlignment = 1 << 30
)

const (
	nBins         = 128
	nSmallBins    = 64
	smallbinWidth = MallocAlignment
	minLargeSize  = nSmallBins * smallbinWidth

	binmapShift = 5
	bitsPerMap  = 1 << binmapShift
	binmapSize  = nBins / bitsPerMap

	nFastbins = 10

	// unsortedBin is also the placeholder top before the first break growth.
	unsortedBin chunk = 1
)

// MinPageSize is the smallest Options.PageSize accepted.
const MinPageSize = 256

// maxListWalk caps list traversals done by Stats and Check, so that a
// corrupted cycle cannot hang them.
const maxListWalk = 1 << 24
