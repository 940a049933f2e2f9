// Package bytesize reads and writes sizes such as "64Mi", "1GB" or "4096"
// in configuration files.
package bytesize

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"
)

// Size is a byte count. It decodes from plain numbers or from a number
// with a decimal (K, M, G, T) or binary (Ki, Mi, Gi, Ti) unit, with an
// optional trailing "B". Units are case-insensitive.
type Size uint64

const (
	B  Size = 1
	KB Size = 1000 * B
	MB Size = 1000 * KB
	GB Size = 1000 * MB
	TB Size = 1000 * GB

	KiB Size = 1 << 10
	MiB Size = 1 << 20
	GiB Size = 1 << 30
	TiB Size = 1 << 40
)

// binaryUnits is ordered from largest to smallest for formatting.
var binaryUnits = []struct {
	suffix string
	size   Size
}{
	{"TiB", TiB},
	{"GiB", GiB},
	{"MiB", MiB},
	{"KiB", KiB},
}

func unitSize(unit string) (Size, bool) {
	u := strings.TrimSuffix(strings.ToLower(unit), "b")
	binary := strings.HasSuffix(u, "i")
	u = strings.TrimSuffix(u, "i")
	if binary && u == "" {
		return 0, false
	}

	var exp int
	switch u {
	case "":
	case "k":
		exp = 1
	case "m":
		exp = 2
	case "g":
		exp = 3
	case "t":
		exp = 4
	default:
		return 0, false
	}

	base := uint64(1000)
	if binary {
		base = 1024
	}
	size := Size(1)
	for i := 0; i < exp; i++ {
		size *= Size(base)
	}
	return size, true
}

// Parse reads a size such as "1.5Gi", "100MB" or "1024".
func Parse(s string) (Size, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}

	i := strings.IndexFunc(s, func(r rune) bool {
		return (r < '0' || r > '9') && r != '.'
	})
	if i < 0 {
		i = len(s)
	}
	num, unit := s[:i], strings.TrimSpace(s[i:])
	if num == "" {
		return 0, fmt.Errorf("invalid size %q: missing number", s)
	}

	mult, ok := unitSize(unit)
	if !ok {
		return 0, fmt.Errorf("invalid size %q: unknown unit %q", s, unit)
	}

	if !strings.Contains(num, ".") {
		n, err := strconv.ParseUint(num, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid size %q: %w", s, err)
		}
		if n > math.MaxUint64/uint64(mult) {
			return 0, fmt.Errorf("invalid size %q: overflows 64 bits", s)
		}
		return Size(n) * mult, nil
	}

	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	v := f * float64(mult)
	if v >= math.MaxUint64 {
		return 0, fmt.Errorf("invalid size %q: overflows 64 bits", s)
	}
	return Size(v), nil
}

// String formats the size in the largest binary unit that divides it
// exactly, so that String and Parse round-trip.
func (s Size) String() string {
	for _, u := range binaryUnits {
		if s >= u.size && s%u.size == 0 {
			return strconv.FormatUint(uint64(s/u.size), 10) + u.suffix
		}
	}
	return strconv.FormatUint(uint64(s), 10)
}

// Int64 returns the size as an int64, saturating at math.MaxInt64.
func (s Size) Int64() int64 {
	if s > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(s)
}

func (s Size) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Size) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// JSONSchema describes Size as either form it decodes from.
func (Size) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{
			{Type: "integer", Minimum: "0"},
			{Type: "string", Pattern: `^\s*[0-9]+(\.[0-9]+)?\s*([kKmMgGtT][iI]?)?[bB]?\s*$`},
		},
		Description: `Byte size, e.g. 4096, "64Mi" or "1GB"`,
	}
}

var sizeType = reflect.TypeOf(Size(0))

// DecodeHook lets mapstructure (and so viper) fill Size fields from
// strings or any numeric YAML value.
func DecodeHook() mapstructure.DecodeHookFunc {
	return func(_ reflect.Type, to reflect.Type, data any) (any, error) {
		if to != sizeType {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return Parse(v)
		case int:
			if v < 0 {
				return nil, fmt.Errorf("negative size %d", v)
			}
			return Size(v), nil
		case int64:
			if v < 0 {
				return nil, fmt.Errorf("negative size %d", v)
			}
			return Size(v), nil
		case uint64:
			return Size(v), nil
		case float64:
			if v < 0 {
				return nil, fmt.Errorf("negative size %g", v)
			}
			return Size(v), nil
		}
		return data, nil
	}
}
