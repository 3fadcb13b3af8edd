package textextract

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsPDF(t *testing.T) {
	assert.True(t, IsPDF([]byte("%PDF-1.7\n")))
	assert.False(t, IsPDF([]byte("PK\x03\x04")))
	assert.False(t, IsPDF(nil))
}

func TestExtractPDF_Garbage(t *testing.T) {
	data := []byte("this is not a pdf at all")
	_, err := ExtractPDF(bytes.NewReader(data), int64(len(data)))
	assert.Error(t, err)
}
