// Package report writes frame analyses as CSV rows.
package report

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"

	"github.com/jhoneycutt/analyze-keyframes/internal/analysis"
)

// DefaultFilename is the output path used when none is given.
const DefaultFilename = "frame-analysis.csv"

// CompressedSuffix selects zstd compression for the output file.
const CompressedSuffix = ".zst"

// RemoveStale deletes the output left by a previous run. A missing file is
// not an error.
func RemoveStale(path string) error {
	err := os.Remove(path)
	if err == nil {
		log.Debug().Str("path", path).Msg("Removed previous analysis output")
		return nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to remove previous output %s: %w", path, err)
}

// AppendCSV opens path in append mode and writes one row per analysis, in
// the order rows yields them. It returns the number of rows written.
func AppendCSV(path string, rows iter.Seq[analysis.FrameAnalysis]) (int, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return 0, fmt.Errorf("failed to open output file %s: %w", path, err)
	}

	n, err := writeTo(f, path, rows)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to close output file %s: %w", path, cerr)
	}
	return n, err
}

func writeTo(f io.Writer, path string, rows iter.Seq[analysis.FrameAnalysis]) (int, error) {
	buf := bufio.NewWriter(f)
	var w io.Writer = buf

	var enc *zstd.Encoder
	if IsCompressed(path) {
		var err error
		enc, err = zstd.NewWriter(buf, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(12)))
		if err != nil {
			return 0, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		w = enc
	}

	n, err := Write(w, rows)
	if err != nil {
		if enc != nil {
			enc.Close()
		}
		return n, fmt.Errorf("failed to write %s: %w", path, err)
	}
	if enc != nil {
		if err := enc.Close(); err != nil {
			return n, fmt.Errorf("failed to finish zstd stream: %w", err)
		}
	}
	if err := buf.Flush(); err != nil {
		return n, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return n, nil
}

// Write serializes rows to w as CSV with no header.
func Write(w io.Writer, rows iter.Seq[analysis.FrameAnalysis]) (int, error) {
	cw := csv.NewWriter(w)
	n := 0
	var record []string
	for a := range rows {
		record = FormatRow(record[:0], a)
		if err := cw.Write(record); err != nil {
			return n, err
		}
		n++
	}
	cw.Flush()
	return n, cw.Error()
}

// FormatRow appends the fields of a's row to dst: the timestamp followed
// by the cell medians.
func FormatRow(dst []string, a analysis.FrameAnalysis) []string {
	dst = append(dst, FormatNumber(a.Timestamp))
	for _, v := range a.Values {
		dst = append(dst, strconv.FormatFloat(float64(v), 'g', 6, 32))
	}
	return dst
}

// FormatNumber formats v with at most six significant digits and no
// trailing zeros, so whole values print as integers ("128", not "128.0").
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

// IsCompressed reports whether path selects zstd output.
func IsCompressed(path string) bool {
	return strings.HasSuffix(path, CompressedSuffix)
}
