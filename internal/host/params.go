package host

import (
	"encoding/json"
	"fmt"
	"math"
)

// WholeNumber is an integer action parameter. JSON Schema treats 2.0 as an integer,
// so any whole-valued JSON number is accepted.
type WholeNumber int

// UnmarshalJSON decodes a JSON number with no fractional part.
func (n *WholeNumber) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("expected a whole number, got %s", data)
	}
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return fmt.Errorf("expected a whole number, got %s", data)
	}
	*n = WholeNumber(f)
	return nil
}

// IntPtr converts an optional parameter to *int.
func (n *WholeNumber) IntPtr() *int {
	if n == nil {
		return nil
	}
	v := int(*n)
	return &v
}
