package poller

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRowLowercasesColumnNames(t *testing.T) {
	row := DecodeRow([]string{"ID", "CustomerName", "created_at"}, []any{int64(7), "acme", "2026-08-01"})

	assert.Equal(t, map[string]any{
		"id":           int64(7),
		"customername": "acme",
		"created_at":   "2026-08-01",
	}, row)
}

func TestDecodeRowIgnoresTrailingColumnsWithoutValues(t *testing.T) {
	row := DecodeRow([]string{"ID", "Name"}, []any{int64(1)})
	assert.Equal(t, map[string]any{"id": int64(1)}, row)
}

func TestWatermarkAtMatchesCaseInsensitively(t *testing.T) {
	columns := []string{"Name", "SEQ_ID"}

	v, err := WatermarkAt(columns, []any{"x", int64(12)}, "seq_id")
	require.NoError(t, err)
	assert.Equal(t, int64(12), v)
}

func TestWatermarkAtNumericRepresentations(t *testing.T) {
	cases := []struct {
		name  string
		value any
		want  int64
	}{
		{"int64", int64(9), 9},
		{"int32", int32(9), 9},
		{"int", int(9), 9},
		{"bytes", []byte("9"), 9},
		{"string", "9", 9},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := WatermarkAt([]string{"id"}, []any{tc.value}, "id")
			require.NoError(t, err)
			assert.Equal(t, tc.want, v)
		})
	}
}

func TestWatermarkAtMissingColumn(t *testing.T) {
	_, err := WatermarkAt([]string{"name"}, []any{"x"}, "id")
	assert.ErrorContains(t, err, "not present")
}

func TestWatermarkAtNonNumericValue(t *testing.T) {
	_, err := WatermarkAt([]string{"id"}, []any{"oops"}, "id")
	assert.ErrorContains(t, err, "not an integer")

	_, err = WatermarkAt([]string{"id"}, []any{3.14}, "id")
	assert.ErrorContains(t, err, "not an integer")
}
