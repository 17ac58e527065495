package writer

import (
	"compress/flate"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/r3e-network/gomocup-cli/internal/filelock"
	"github.com/r3e-network/gomocup-cli/internal/protocol"
	"github.com/r3e-network/gomocup-cli/internal/worker"
)

// SampleWriter appends every completed game's (board-size, move history,
// final result, per-move Info) to a single growing archive file, per
// spec.md §6 ("sample file... binary records or CSV... one record per
// game, independently decompressible"). Each record is framed as a
// 4-byte big-endian length prefix followed by its body — a flate stream
// when Compress is set, the raw encoded body otherwise — so a reader
// can seek from record to record without inflating the whole file.
//
// Writes and the final Close both take an advisory flock on the
// underlying file (internal/filelock) so the sequencer's last flush
// cannot interleave with a concurrent forced shutdown closing the same
// descriptor out from under it.
type SampleWriter struct {
	f        *os.File
	format   string // "csv" or "" (binary)
	compress bool
}

// NewSampleWriter wraps an *os.File rather than a bare io.WriteCloser so
// WriteGame and Close can advisory-lock it against each other. format
// selects the per-record encoding ("csv" or binary); compress wraps
// each record body in a flate stream, per the `-sample format=…
// compress` flag.
func NewSampleWriter(f *os.File, format string, compress bool) *SampleWriter {
	return &SampleWriter{f: f, format: format, compress: compress}
}

func (s *SampleWriter) WriteGame(idx int, t worker.Transcript) error {
	lock, err := filelock.Acquire(s.f)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	body := s.encodeRecord(t)

	frame := body
	if s.compress {
		var buf []byte
		bw := &byteSliceWriter{buf: &buf}
		fw, err := flate.NewWriter(bw, flate.BestSpeed)
		if err != nil {
			return err
		}
		if _, err := fw.Write(body); err != nil {
			return err
		}
		if err := fw.Close(); err != nil {
			return err
		}
		frame = buf
	}

	header := []byte{
		byte(len(frame) >> 24), byte(len(frame) >> 16), byte(len(frame) >> 8), byte(len(frame)),
	}
	if _, err := s.f.Write(header); err != nil {
		return err
	}
	_, err = s.f.Write(frame)
	return err
}

// encodeRecord renders one game's full record: board size, final WLD
// and reason, and every move paired with the engine Info in effect
// when it was played (opening moves, which never reach an engine,
// carry a zero Info).
func (s *SampleWriter) encodeRecord(t worker.Transcript) []byte {
	pos := t.Result.Position
	boardSize := 0
	if pos != nil {
		boardSize = pos.Size
	}
	if strings.EqualFold(s.format, "csv") {
		return encodeSampleCSV(boardSize, t)
	}
	return encodeSampleBinary(boardSize, t)
}

// infoForMove returns the engine Info in effect for history move i.
// Opening moves are prepended to History without a matching Info
// entry, so Infos is right-aligned against History.
func infoForMove(t worker.Transcript, i int) protocol.Info {
	pos := t.Result.Position
	if pos == nil {
		return protocol.Info{}
	}
	offset := len(pos.History) - len(t.Result.Infos)
	if i < offset {
		return protocol.Info{}
	}
	return t.Result.Infos[i-offset]
}

func encodeSampleCSV(boardSize int, t worker.Transcript) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "boardsize,wld,reason\n%d,%d,%s\n", boardSize, t.WLD, t.Reason)
	b.WriteString("x,y,color,score,depth,time_ms,nodes\n")
	if pos := t.Result.Position; pos != nil {
		for i, mv := range pos.History {
			info := infoForMove(t, i)
			fmt.Fprintf(&b, "%d,%d,%s,%d,%d,%d,%d\n", mv.X, mv.Y, mv.Color, info.Score, info.Depth, info.TimeMS, info.Nodes)
		}
	}
	return []byte(b.String())
}

func encodeSampleBinary(boardSize int, t worker.Transcript) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "board=%d;wld=%d;reason=%s|", boardSize, t.WLD, t.Reason)
	if pos := t.Result.Position; pos != nil {
		for i, mv := range pos.History {
			info := infoForMove(t, i)
			fmt.Fprintf(&b, "%d,%d,%s,%d,%d,%d,%d;", mv.X, mv.Y, mv.Color, info.Score, info.Depth, info.TimeMS, info.Nodes)
		}
	}
	return []byte(b.String())
}

func (s *SampleWriter) Close() error {
	lock, err := filelock.Acquire(s.f)
	if err != nil {
		return s.f.Close()
	}
	defer lock.Unlock()
	return s.f.Close()
}

var _ io.Closer = (*SampleWriter)(nil)

type byteSliceWriter struct {
	buf *[]byte
}

func (b *byteSliceWriter) Write(p []byte) (int, error) {
	*b.buf = append(*b.buf, p...)
	return len(p), nil
}
