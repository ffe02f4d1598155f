package archive

import (
	"compress/bzip2"
	"fmt"
	"io"
	"strings"

	dbzip2 "github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
)

// Compression schemes recognized on archive files and tar members.
const (
	schemeNone  = ""
	schemeGzip  = "gz"
	schemeBzip2 = "bz2"
)

// schemeForName picks the compression scheme from a trailing extension.
// Unknown extensions are treated as plain text rather than failing.
func schemeForName(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".gz"), strings.HasSuffix(lower, ".tgz"):
		return schemeGzip
	case strings.HasSuffix(lower, ".bz2"), strings.HasSuffix(lower, ".tbz2"), strings.HasSuffix(lower, ".tbz"):
		return schemeBzip2
	default:
		return schemeNone
	}
}

// newDecompressor wraps r according to scheme.
func newDecompressor(scheme string, r io.Reader) (io.Reader, error) {
	switch scheme {
	case schemeGzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("opening gzip stream: %w", err)
		}
		return zr, nil
	case schemeBzip2:
		return bzip2.NewReader(r), nil
	default:
		return r, nil
	}
}

// nopWriteCloser adapts a plain writer to the compressor interface.
type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// newCompressor wraps w according to scheme. The bzip2 writer comes from
// dsnet/compress because the standard library only ships a bzip2 reader.
func newCompressor(scheme string, w io.Writer) (io.WriteCloser, error) {
	switch scheme {
	case schemeGzip:
		return gzip.NewWriter(w), nil
	case schemeBzip2:
		zw, err := dbzip2.NewWriter(w, nil)
		if err != nil {
			return nil, fmt.Errorf("opening bzip2 stream: %w", err)
		}
		return zw, nil
	default:
		return nopWriteCloser{w}, nil
	}
}
