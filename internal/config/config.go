// Package config loads heapkit settings from YAML. Sizes may be written as
// plain integers or as human-readable strings such as "128KB".
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/inhies/go-bytesize"
	"gopkg.in/yaml.v2"

	"github.com/joshuapare/heapkit/heap/alloc"
	"github.com/joshuapare/heapkit/heap/brk"
)

// Break kinds.
const (
	BreakSlice = "slice"
	BreakMmap  = "mmap"
)

// DefaultBreakLimit bounds the break when the file does not.
const DefaultBreakLimit = 256 << 20

var (
	// ErrInvalidSize is returned for a size that is neither an integer nor
	// a byte size string.
	ErrInvalidSize = errors.New("config: invalid size")

	// ErrInvalid is returned when a parsed value fails validation.
	ErrInvalid = errors.New("config: invalid value")
)

// Size is a byte count.
type Size int

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Size) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var n int
	if err := unmarshal(&n); err == nil {
		*s = Size(n)
		return nil
	}
	var str string
	if err := unmarshal(&str); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSize, err)
	}
	n, err := ParseSize(str)
	if err != nil {
		return err
	}
	*s = Size(n)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (s Size) MarshalYAML() (interface{}, error) {
	if s > 0 && s%1024 == 0 {
		return bytesize.New(float64(s)).String(), nil
	}
	return int(s), nil
}

// ParseSize parses "4096", "-1", "4KB" or "1.5MB".
func ParseSize(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	b, err := bytesize.Parse(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}
	if b < 0 || float64(b) > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidSize, s)
	}
	return int(b), nil
}

// Config is the top-level configuration file.
type Config struct {
	Arena ArenaConfig `yaml:"arena"`
	Break BreakConfig `yaml:"break"`
	Pool  PoolConfig  `yaml:"pool"`
}

// ArenaConfig mirrors alloc.Options. Zero values select the allocator's
// defaults.
type ArenaConfig struct {
	TrimThreshold Size `yaml:"trim_threshold"` // negative disables trimming
	TopPad        Size `yaml:"top_pad"`
	MaxFast       Size `yaml:"max_fast"` // -1 disables fastbins
	PerturbByte   int  `yaml:"perturb_byte"`
	PageSize      Size `yaml:"page_size"`
}

// BreakConfig selects the growth primitive.
type BreakConfig struct {
	Kind  string `yaml:"kind"`
	Limit Size   `yaml:"limit"`
}

// PoolConfig sizes the block pool.
type PoolConfig struct {
	BlockSize Size `yaml:"block_size"`
	PageSize  Size `yaml:"page_size"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Arena: ArenaConfig{
			TrimThreshold: alloc.DefaultTrimThreshold,
			MaxFast:       alloc.DefaultMaxFast,
			PageSize:      alloc.DefaultPageSize,
		},
		Break: BreakConfig{Kind: BreakSlice, Limit: DefaultBreakLimit},
		Pool:  PoolConfig{BlockSize: 48, PageSize: 64 << 10},
	}
}

// Load reads and validates the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result. Unknown
// keys are an error.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges that can be checked without building anything.
// The allocator constructors repeat the finer checks.
func (c *Config) Validate() error {
	var errs []error
	bad := func(field string, format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s: %s", ErrInvalid, field, fmt.Sprintf(format, args...)))
	}

	if c.Arena.MaxFast < alloc.DisableFastbins || c.Arena.MaxFast > alloc.MaxFastLimit {
		bad("arena.max_fast", "%d outside [%d, %d]", c.Arena.MaxFast, alloc.DisableFastbins, alloc.MaxFastLimit)
	}
	if c.Arena.TopPad < 0 {
		bad("arena.top_pad", "%d is negative", c.Arena.TopPad)
	}
	if c.Arena.PerturbByte < 0 || c.Arena.PerturbByte > math.MaxUint8 {
		bad("arena.perturb_byte", "%d is not a byte", c.Arena.PerturbByte)
	}
	if ps := c.Arena.PageSize; ps != 0 && (ps < alloc.MinPageSize || ps&(ps-1) != 0) {
		bad("arena.page_size", "%d must be a power of two >= %d", ps, alloc.MinPageSize)
	}
	switch c.Break.Kind {
	case BreakSlice, BreakMmap:
	default:
		bad("break.kind", "%q is not %q or %q", c.Break.Kind, BreakSlice, BreakMmap)
	}
	if c.Break.Limit < 0 || c.Break.Limit > brk.MaxLimit {
		bad("break.limit", "%d outside [0, %d]", c.Break.Limit, brk.MaxLimit)
	}
	if c.Pool.BlockSize <= 0 {
		bad("pool.block_size", "%d must be positive", c.Pool.BlockSize)
	}
	if c.Pool.PageSize < 0 {
		bad("pool.page_size", "%d is negative", c.Pool.PageSize)
	}
	return errors.Join(errs...)
}

// ArenaOptions converts the arena section into allocator options.
func (c *Config) ArenaOptions(logger *slog.Logger) *alloc.Options {
	return &alloc.Options{
		TrimThreshold: int(c.Arena.TrimThreshold),
		TopPad:        int(c.Arena.TopPad),
		MaxFast:       int(c.Arena.MaxFast),
		PerturbByte:   byte(c.Arena.PerturbByte),
		PageSize:      int(c.Arena.PageSize),
		Logger:        logger,
	}
}

// NewBreak builds the configured growth primitive. Mmap breaks should be
// closed by the caller.
func (c *Config) NewBreak() (brk.Break, error) {
	switch c.Break.Kind {
	case BreakSlice:
		return brk.NewSlice(int(c.Break.Limit)), nil
	case BreakMmap:
		m, err := brk.NewMmap(int(c.Break.Limit))
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: break.kind %q", ErrInvalid, c.Break.Kind)
	}
}

// Marshal encodes the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
