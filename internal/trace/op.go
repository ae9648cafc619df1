// Package trace reads, writes, generates and replays allocation traces:
// line-oriented scripts of malloc/free/realloc and pool operations keyed
// by caller-chosen ids.
//
// Format, one operation per line, # starts a comment:
//
//	malloc     <id> <size>
//	calloc     <id> <count> <size>
//	realloc    <id> <size>
//	memalign   <id> <align> <size>
//	valloc     <id> <size>
//	pvalloc    <id> <size>
//	free       <id>
//	trim       <pad>
//	pool-alloc <id>
//	pool-free  <id>
//	pool-clear
//
// Sizes are integers or byte size strings such as 4KB.
package trace

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Kind identifies a trace operation.
type Kind uint8

const (
	Malloc Kind = iota + 1
	Calloc
	Realloc
	Memalign
	Valloc
	Pvalloc
	Free
	Trim
	PoolAlloc
	PoolFree
	PoolClear
)

var kindNames = map[Kind]string{
	Malloc:    "malloc",
	Calloc:    "calloc",
	Realloc:   "realloc",
	Memalign:  "memalign",
	Valloc:    "valloc",
	Pvalloc:   "pvalloc",
	Free:      "free",
	Trim:      "trim",
	PoolAlloc: "pool-alloc",
	PoolFree:  "pool-free",
	PoolClear: "pool-clear",
}

// kindArgs is the number of integer arguments each kind takes.
var kindArgs = map[Kind]int{
	Malloc:    2,
	Calloc:    3,
	Realloc:   2,
	Memalign:  3,
	Valloc:    2,
	Pvalloc:   2,
	Free:      1,
	Trim:      1,
	PoolAlloc: 1,
	PoolFree:  1,
	PoolClear: 0,
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Op is one trace operation. Fields a kind does not use are zero.
type Op struct {
	Kind  Kind
	ID    int
	Size  int // bytes; the pad for Trim
	Count int // Calloc element count
	Align int // Memalign alignment
	Line  int // source line, when parsed
}

// args returns the operation's arguments in their textual order.
func (op Op) args() []int {
	switch op.Kind {
	case Malloc, Realloc, Valloc, Pvalloc:
		return []int{op.ID, op.Size}
	case Calloc:
		return []int{op.ID, op.Count, op.Size}
	case Memalign:
		return []int{op.ID, op.Align, op.Size}
	case Free, PoolAlloc, PoolFree:
		return []int{op.ID}
	case Trim:
		return []int{op.Size}
	default:
		return nil
	}
}

// String renders op as a trace line.
func (op Op) String() string {
	var sb strings.Builder
	sb.WriteString(op.Kind.String())
	for _, a := range op.args() {
		sb.WriteByte(' ')
		sb.WriteString(strconv.Itoa(a))
	}
	return sb.String()
}

// Write renders ops as a trace, one line each.
func Write(w io.Writer, ops []Op) error {
	for _, op := range ops {
		if _, err := fmt.Fprintln(w, op.String()); err != nil {
			return err
		}
	}
	return nil
}
