package writer

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleWriterFrameIsIndependentlyDecompressible(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.bin")
	f, err := os.Create(path)
	require.NoError(t, err)

	w := NewSampleWriter(f, "", true)
	require.NoError(t, w.WriteGame(0, sampleTranscript()))
	require.NoError(t, w.WriteGame(1, sampleTranscript()))
	require.NoError(t, w.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	data := raw
	var records [][]byte
	for len(data) > 0 {
		require.GreaterOrEqual(t, len(data), 4)
		n := binary.BigEndian.Uint32(data[:4])
		data = data[4:]
		require.GreaterOrEqual(t, uint32(len(data)), n)
		records = append(records, data[:n])
		data = data[n:]
	}
	require.Len(t, records, 2)

	for _, rec := range records {
		fr := flate.NewReader(bytes.NewReader(rec))
		plain, err := io.ReadAll(fr)
		require.NoError(t, err)
		assert.Contains(t, string(plain), "4,4,black")
		assert.Contains(t, string(plain), "board=9")
		assert.Contains(t, string(plain), "wld=2")
	}
}

func TestSampleWriterCSVFormatUncompressed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.csv.bin")
	f, err := os.Create(path)
	require.NoError(t, err)

	w := NewSampleWriter(f, "csv", false)
	require.NoError(t, w.WriteGame(0, sampleTranscript()))
	require.NoError(t, w.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(raw), 4)

	n := binary.BigEndian.Uint32(raw[:4])
	record := raw[4 : 4+n]

	// uncompressed, so the record is already plain text: no flate
	// decoding needed.
	assert.Contains(t, string(record), "boardsize,wld,reason")
	assert.Contains(t, string(record), "9,2,normal")
	assert.Contains(t, string(record), "4,4,black,0,0,0,0")
}
