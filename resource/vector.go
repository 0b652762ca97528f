package resource

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	units "github.com/docker/go-units"
	"github.com/dustin/go-humanize"
)

// Vector is an additive tuple of scalar capacity dimensions: memory in
// bytes and CPU in milli-cores. The zero value is an empty vector.
// Vectors are plain values; arithmetic never mutates its operands.
type Vector struct {
	Memory int64 `json:"memory"`
	Cores  int64 `json:"cores"` // milli-cores, 1000 = one full core
}

// Zero is the empty vector.
var Zero = Vector{}

// New builds a vector from bytes of memory and milli-cores of CPU.
func New(memory, cores int64) Vector {
	return Vector{Memory: memory, Cores: cores}
}

// Add returns v + o, component-wise.
func (v Vector) Add(o Vector) Vector {
	return Vector{Memory: v.Memory + o.Memory, Cores: v.Cores + o.Cores}
}

// Sub returns v - o, component-wise. The result may have negative
// components; callers enforcing non-negativity should check IsValid.
func (v Vector) Sub(o Vector) Vector {
	return Vector{Memory: v.Memory - o.Memory, Cores: v.Cores - o.Cores}
}

// Fits reports whether o fits within v on every dimension.
func (v Vector) Fits(o Vector) bool {
	return o.Memory <= v.Memory && o.Cores <= v.Cores
}

// IsZero reports whether every component is zero.
func (v Vector) IsZero() bool {
	return v == Zero
}

// IsValid reports whether no component is negative.
func (v Vector) IsValid() bool {
	return v.Memory >= 0 && v.Cores >= 0
}

func (v Vector) String() string {
	return fmt.Sprintf("%s / %s cores", FormatMemory(v.Memory), FormatCores(v.Cores))
}

// FormatMemory renders a byte count in binary units ("2.0 GiB").
func FormatMemory(bytes int64) string {
	if bytes < 0 {
		return fmt.Sprintf("-%s", humanize.IBytes(uint64(-bytes)))
	}
	return humanize.IBytes(uint64(bytes))
}

// FormatCores renders milli-cores as fractional cores ("1.5", "8").
func FormatCores(milli int64) string {
	return strconv.FormatFloat(float64(milli)/1000, 'f', -1, 64)
}

// ParseMemory parses a human byte quantity ("8GiB", "512m", "1073741824")
// into bytes. Plain integers are taken as bytes.
func ParseMemory(s string) (int64, error) {
	bytes, err := units.RAMInBytes(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid memory quantity %q: %w", s, err)
	}
	if bytes < 0 {
		return 0, fmt.Errorf("invalid memory quantity %q: negative", s)
	}
	return bytes, nil
}

// ParseCores parses a CPU quantity into milli-cores. Accepts whole or
// fractional cores ("2", "2.5") and the milli suffix ("1500m").
func ParseCores(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("invalid cores quantity: empty")
	}
	if milli, ok := strings.CutSuffix(s, "m"); ok {
		n, err := strconv.ParseInt(milli, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid cores quantity %q: %w", s, err)
		}
		if n < 0 {
			return 0, fmt.Errorf("invalid cores quantity %q: negative", s)
		}
		return n, nil
	}
	cores, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid cores quantity %q: %w", s, err)
	}
	if cores < 0 {
		return 0, fmt.Errorf("invalid cores quantity %q: negative", s)
	}
	return int64(math.Round(cores * 1000)), nil
}
