package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderCSV(t *testing.T) {
	data, err := RenderCSV(Table{
		Headers: []string{"id", "action"},
		Rows: [][]string{
			{"1", "LOGIN"},
			{"2", "value,with,commas"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "id,action\n1,LOGIN\n2,\"value,with,commas\"\n", string(data))
}

func TestRenderCSVRequiresHeaders(t *testing.T) {
	_, err := RenderCSV(Table{})
	assert.Error(t, err)
}

func TestRenderCSVRejectsRaggedRows(t *testing.T) {
	_, err := RenderCSV(Table{
		Headers: []string{"id", "action"},
		Rows:    [][]string{{"1"}},
	})
	assert.Error(t, err)
}
