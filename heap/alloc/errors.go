package alloc

import (
	"errors"
	"fmt"
)

var (
	// ErrNoMemory indicates that the break could not grow far enough to satisfy a request.
	ErrNoMemory = errors.New("alloc: out of memory")

	// ErrInvalidSize indicates a negative request or one that overflows once padded.
	ErrInvalidSize = errors.New("alloc: invalid request size")

	// ErrInvalidAlignment indicates an alignment that cannot be represented.
	ErrInvalidAlignment = errors.New("alloc: invalid alignment")

	// ErrInvalidOption indicates an Options field out of range.
	ErrInvalidOption = errors.New("alloc: invalid option")

	// ErrCorrupted matches every *CorruptionError via errors.Is.
	ErrCorrupted = errors.New("alloc: heap corrupted")
)

// CorruptionKind classifies a detected heap inconsistency.
type CorruptionKind uint8

const (
	CorruptMemory         CorruptionKind = iota + 1 // generic header damage
	CorruptDoubleFree                               // chunk freed twice
	CorruptInvalidPointer                           // pointer not produced by this arena
	CorruptInvalidSize                              // size field below minimum, misaligned or out of range
	CorruptListLinks                                // fd/bk or skip-list links disagree
	CorruptSizeMismatch                             // size does not match the neighbor's footer
	CorruptFastbinIndex                             // chunk filed in the wrong fastbin
	CorruptBreakAdjusted                            // break moved into memory the arena owns
)

var corruptionKindNames = map[CorruptionKind]string{
	CorruptMemory:         "memory",
	CorruptDoubleFree:     "double-free",
	CorruptInvalidPointer: "invalid-pointer",
	CorruptInvalidSize:    "invalid-size",
	CorruptListLinks:      "list-links",
	CorruptSizeMismatch:   "size-mismatch",
	CorruptFastbinIndex:   "fastbin-index",
	CorruptBreakAdjusted:  "break-adjusted",
}

func (k CorruptionKind) String() string {
	if s, ok := corruptionKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("CorruptionKind(%d)", uint8(k))
}

// CorruptionError describes a heap inconsistency detected inline by an
// allocator operation. Once one is reported the arena refuses further work.
type CorruptionError struct {
	Kind  CorruptionKind
	Op    string // public operation that detected it, e.g. "free"
	Msg   string // diagnostic in the classic "free(): invalid pointer" form
	Chunk uint32 // offending chunk address, 0 when not applicable
}

func (e *CorruptionError) Error() string {
	if e.Chunk != 0 {
		return fmt.Sprintf("alloc: %s (chunk 0x%x)", e.Msg, e.Chunk)
	}
	return "alloc: " + e.Msg
}

// Is reports whether target is ErrCorrupted.
func (e *CorruptionError) Is(target error) bool {
	return target == ErrCorrupted
}
