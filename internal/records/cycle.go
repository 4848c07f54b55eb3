package records

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Cycle identifies an academic-year audit cycle in canonical string form.
// Numeric and string spellings of the same year normalize to one value.
type Cycle string

// NormalizeCycle converts v (string, integer, float, json.Number, Cycle or
// fmt.Stringer) to its canonical Cycle.
func NormalizeCycle(v any) Cycle {
	switch c := v.(type) {
	case nil:
		return ""
	case Cycle:
		return canonicalCycle(string(c))
	case string:
		return canonicalCycle(c)
	case json.Number:
		return canonicalCycle(c.String())
	case int:
		return Cycle(strconv.FormatInt(int64(c), 10))
	case int32:
		return Cycle(strconv.FormatInt(int64(c), 10))
	case int64:
		return Cycle(strconv.FormatInt(c, 10))
	case uint:
		return Cycle(strconv.FormatUint(uint64(c), 10))
	case uint32:
		return Cycle(strconv.FormatUint(uint64(c), 10))
	case uint64:
		return Cycle(strconv.FormatUint(c, 10))
	case float32:
		return formatFloatCycle(float64(c))
	case float64:
		return formatFloatCycle(c)
	case fmt.Stringer:
		return canonicalCycle(c.String())
	}
	return canonicalCycle(fmt.Sprint(v))
}

func canonicalCycle(s string) Cycle {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return formatFloatCycle(f)
	}
	return Cycle(s)
}

func formatFloatCycle(f float64) Cycle {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return Cycle(strconv.FormatInt(int64(f), 10))
	}
	return Cycle(strconv.FormatFloat(f, 'f', -1, 64))
}

// String returns the canonical form.
func (c Cycle) String() string { return string(c) }

// Normalize returns the canonical form of c.
func (c Cycle) Normalize() Cycle { return canonicalCycle(string(c)) }

// UnmarshalJSON accepts both JSON strings and JSON numbers.
func (c *Cycle) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = canonicalCycle(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("cycle: %w", err)
	}
	*c = NormalizeCycle(n)
	return nil
}

// ParseCycleList splits a comma separated list into normalized, de-duplicated cycles.
func ParseCycleList(s string) []Cycle {
	var out []Cycle
	seen := map[Cycle]struct{}{}
	for _, part := range strings.Split(s, ",") {
		c := canonicalCycle(part)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
