package host

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWholeNumberUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    *int
		wantErr string
	}{
		{name: "integer", input: `{"n":3}`, want: intPtr(3)},
		{name: "decimal notation", input: `{"n":2.0}`, want: intPtr(2)},
		{name: "exponent", input: `{"n":1e1}`, want: intPtr(10)},
		{name: "absent", input: `{}`},
		{name: "fraction", input: `{"n":2.5}`, wantErr: "expected a whole number, got 2.5"},
		{name: "string", input: `{"n":"2"}`, wantErr: `expected a whole number, got "2"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p struct {
				N *WholeNumber `json:"n"`
			}
			err := json.Unmarshal([]byte(tt.input), &p)
			if tt.wantErr != "" {
				require.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.N.IntPtr())
		})
	}
}

func intPtr(v int) *int { return &v }
