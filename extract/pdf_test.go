package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPDFExtractMalformed(t *testing.T) {
	e := NewPDF()

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"garbage", []byte("this is definitely not a pdf document")},
		{"truncated header", []byte("%PDF-1.7\n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := e.Extract(tt.data)
			require.Error(t, err)
			assert.Nil(t, result)
			assert.Contains(t, err.Error(), "pdf parse failed")
		})
	}
}
