package codegen

import (
	"fmt"

	"github.com/roach88/mlcg/internal/ir"
)

// ApproxTable is a precomputed numeric lookup table resolved through a
// processor's approximation-table map, e.g. a reciprocal seed table.
// Data is row-major.
type ApproxTable struct {
	Name       string
	Dimensions []int
	Format     ir.Format
	Data       []float64
}

// Validate checks that Data fills Dimensions exactly.
func (t *ApproxTable) Validate() error {
	if len(t.Dimensions) == 0 {
		return fmt.Errorf("approximation table %s: no dimensions", t.Name)
	}
	size := 1
	for _, d := range t.Dimensions {
		if d <= 0 {
			return fmt.Errorf("approximation table %s: invalid dimension %d", t.Name, d)
		}
		size *= d
	}
	if size != len(t.Data) {
		return fmt.Errorf("approximation table %s: %d value(s) for dimensions %v", t.Name, len(t.Data), t.Dimensions)
	}
	return nil
}

// At returns the element at the given indices.
func (t *ApproxTable) At(indices ...int) (float64, error) {
	if len(indices) != len(t.Dimensions) {
		return 0, fmt.Errorf("approximation table %s: %d index(es) for %d dimension(s)", t.Name, len(indices), len(t.Dimensions))
	}
	offset := 0
	for i, idx := range indices {
		if idx < 0 || idx >= t.Dimensions[i] {
			return 0, fmt.Errorf("approximation table %s: index %d out of range [0, %d)", t.Name, idx, t.Dimensions[i])
		}
		offset = offset*t.Dimensions[i] + idx
	}
	return t.Data[offset], nil
}

// Node returns the table as an IR leaf so generated code can load from it.
func (t *ApproxTable) Node() *ir.Table {
	return ir.NewTable(t.Name, t.Dimensions, t.Format, t.Data)
}

func (t *ApproxTable) String() string {
	return fmt.Sprintf("%s%v:%s", t.Name, t.Dimensions, t.Format)
}
