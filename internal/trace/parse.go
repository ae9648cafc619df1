package trace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/inhies/go-bytesize"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	commentPrefix = "#"

	scannerInitialBufferSize = 64 * 1024
	scannerMaxLineSize       = 1024 * 1024
)

// ErrSyntax is returned for a malformed trace line.
var ErrSyntax = errors.New("trace: syntax error")

var kindByName = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, name := range kindNames {
		m[name] = k
	}
	return m
}()

// Parse reads a trace. Input is UTF-8, or UTF-8/UTF-16 with a byte order
// mark.
func Parse(r io.Reader) ([]Op, error) {
	// BOMOverride switches to the encoding named by a leading BOM and
	// strips it; without one the input passes through as UTF-8.
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	scanner := bufio.NewScanner(transform.NewReader(r, decoder))
	buf := make([]byte, 0, scannerInitialBufferSize)
	scanner.Buffer(buf, scannerMaxLineSize)

	var ops []Op
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if i := strings.Index(line, commentPrefix); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		op, err := parseOp(fields)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrSyntax, lineNo, err)
		}
		op.Line = lineNo
		ops = append(ops, op)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning trace: %w", err)
	}
	return ops, nil
}

// ParseString parses a trace held in a string.
func ParseString(s string) ([]Op, error) {
	return Parse(strings.NewReader(s))
}

func parseOp(fields []string) (Op, error) {
	kind, ok := kindByName[strings.ToLower(fields[0])]
	if !ok {
		return Op{}, fmt.Errorf("unknown operation %q", fields[0])
	}
	args := fields[1:]
	if want := kindArgs[kind]; len(args) != want {
		return Op{}, fmt.Errorf("%s takes %d argument(s), got %d", kind, want, len(args))
	}

	op := Op{Kind: kind}
	var err error
	switch kind {
	case Malloc, Realloc, Valloc, Pvalloc:
		if op.ID, err = parseID(args[0]); err == nil {
			op.Size, err = parseSize(args[1])
		}
	case Calloc:
		if op.ID, err = parseID(args[0]); err == nil {
			if op.Count, err = parseSize(args[1]); err == nil {
				op.Size, err = parseSize(args[2])
			}
		}
	case Memalign:
		if op.ID, err = parseID(args[0]); err == nil {
			if op.Align, err = parseSize(args[1]); err == nil {
				op.Size, err = parseSize(args[2])
			}
		}
	case Free, PoolAlloc, PoolFree:
		op.ID, err = parseID(args[0])
	case Trim:
		op.Size, err = parseSize(args[0])
	}
	return op, err
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

// parseSize accepts a non-negative integer or a byte size string.
func parseSize(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("negative size %q", s)
		}
		return n, nil
	}
	b, err := bytesize.Parse(s)
	if err != nil || b < 0 || float64(b) > math.MaxInt32 {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return int(b), nil
}
