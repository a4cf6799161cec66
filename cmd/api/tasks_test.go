package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCustomerExport(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"array", ` [{"name":"Rossi"},{"name":"Bianchi","email":"b@test.it"}]`, []string{"Rossi", "Bianchi"}},
		{"object", `{"customers":[{"name":"Verdi"}]}`, []string{"Verdi"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := decodeCustomerExport([]byte(tt.raw))
			require.NoError(t, err)
			inputs := req.Inputs()
			require.Len(t, inputs, len(tt.want))
			for i, name := range tt.want {
				assert.Equal(t, name, inputs[i].Name)
			}
		})
	}

	_, err := decodeCustomerExport([]byte(`{"customers":`))
	assert.Error(t, err)
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, map[string]int{"created": 2}))
	assert.JSONEq(t, `{"created":2}`, buf.String())
}
