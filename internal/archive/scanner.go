// Package archive opens field-unit diagnostic archives and exposes their
// rotated log members as one chronological line sequence.
package archive

import (
	"archive/tar"
	"archive/zip"
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/alonraif/NGL-sub000/internal/models"
)

// Base log names inside an archive. Units rotate messages.log to
// messages.log.1, messages.log.2.gz and so on; the encoder writes its own
// ffmpeg.log family.
const (
	DefaultLog = "messages.log"
	FFmpegLog  = "ffmpeg.log"
)

// ErrUnsupportedFormat is returned when a file is neither a recognized
// archive by extension nor by magic bytes.
var ErrUnsupportedFormat = errors.New("unsupported archive format")

// ErrStopScan can be returned from a Scan callback to end the scan early
// without reporting an error.
var ErrStopScan = errors.New("stop scan")

// 1MB line buffer; device logs occasionally carry very long lines.
const maxScanBuffer = 1024 * 1024

type kind int

const (
	kindTar kind = iota
	kindZip
	kindSingle // single, possibly compressed, log file
)

// Scanner reads an archive lazily. Scan may be called repeatedly; each call
// restarts from the first chronological line.
type Scanner struct {
	path  string
	base  string
	kind  kind
	outer string // whole-file compression scheme
}

// Open prepares a scanner for the archive at path. baseLog selects which log
// family the member ordering is computed for; empty means DefaultLog. Format
// is detected by extension first, then by magic bytes.
func Open(archivePath, baseLog string) (*Scanner, error) {
	if baseLog == "" {
		baseLog = DefaultLog
	}
	s := &Scanner{path: archivePath, base: baseLog}

	lower := strings.ToLower(archivePath)
	switch {
	case strings.HasSuffix(lower, ".tar"):
		s.kind, s.outer = kindTar, schemeNone
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		s.kind, s.outer = kindTar, schemeGzip
	case strings.HasSuffix(lower, ".tar.bz2"), strings.HasSuffix(lower, ".tbz2"), strings.HasSuffix(lower, ".tbz"):
		s.kind, s.outer = kindTar, schemeBzip2
	case strings.HasSuffix(lower, ".zip"):
		s.kind = kindZip
	case strings.HasSuffix(lower, ".gz"):
		s.kind, s.outer = kindSingle, schemeGzip
	case strings.HasSuffix(lower, ".bz2"):
		s.kind, s.outer = kindSingle, schemeBzip2
	case strings.HasSuffix(lower, ".log"), strings.HasSuffix(lower, ".txt"):
		s.kind, s.outer = kindSingle, schemeNone
	default:
		if err := s.sniff(); err != nil {
			return nil, err
		}
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	f.Close()
	return s, nil
}

// sniff detects the archive format from magic bytes when the extension is
// ambiguous: bzip2 "BZ", gzip 1F 8B, zip "PK", or a bare tar header.
func (s *Scanner) sniff() error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	magic := make([]byte, 2)
	if _, err := io.ReadFull(f, magic); err != nil {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, s.path)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seeking archive: %w", err)
	}

	switch {
	case magic[0] == 0x1F && magic[1] == 0x8B:
		s.outer = schemeGzip
	case magic[0] == 'B' && magic[1] == 'Z':
		s.outer = schemeBzip2
	case magic[0] == 'P' && magic[1] == 'K':
		s.kind = kindZip
		return nil
	default:
		if isTarStream(f) {
			s.kind, s.outer = kindTar, schemeNone
			return nil
		}
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, s.path)
	}

	// Compressed: decide tar-inside vs single log by peeking the
	// decompressed stream.
	r, err := newDecompressor(s.outer, f)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, s.path)
	}
	if isTarStream(r) {
		s.kind = kindTar
	} else {
		s.kind = kindSingle
	}
	return nil
}

// isTarStream checks for the ustar magic at offset 257 of the first header
// block.
func isTarStream(r io.Reader) bool {
	hdr := make([]byte, 262)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return false
	}
	return string(hdr[257:262]) == "ustar"
}

// Scan walks every line of the archive in chronological member order and
// hands each to emit. Returning ErrStopScan from emit ends the scan cleanly;
// any other error aborts it.
func (s *Scanner) Scan(emit func(models.LogLine) error) error {
	var err error
	switch s.kind {
	case kindSingle:
		err = s.scanSingle(emit)
	case kindZip:
		err = s.scanZip(emit)
	default:
		err = s.scanTar(emit)
	}
	if errors.Is(err, ErrStopScan) {
		return nil
	}
	return err
}

func (s *Scanner) scanSingle(emit func(models.LogLine) error) error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	r, err := newDecompressor(s.outer, f)
	if err != nil {
		return err
	}
	return scanLines(r, filepath.Base(s.path), emit)
}

func (s *Scanner) scanTar(emit func(models.LogLine) error) error {
	names, err := s.tarMemberNames()
	if err != nil {
		return err
	}

	// Tar access is sequential, so each wanted member costs one pass over
	// the stream. Rotation counts are small; simplicity wins over seeking.
	for _, name := range orderMembers(names, s.base) {
		if err := s.scanTarMember(name, emit); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scanner) tarMemberNames() ([]string, error) {
	f, tr, err := s.openTar()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var names []string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return names, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading archive %s: %w", s.path, err)
		}
		if hdr.Typeflag == tar.TypeReg {
			names = append(names, hdr.Name)
		}
	}
}

func (s *Scanner) scanTarMember(name string, emit func(models.LogLine) error) error {
	f, tr, err := s.openTar()
	if err != nil {
		return err
	}
	defer f.Close()

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading archive %s: %w", s.path, err)
		}
		if hdr.Name != name {
			continue
		}
		r, err := newDecompressor(schemeForName(name), tr)
		if err != nil {
			return err
		}
		return scanLines(r, path.Base(name), emit)
	}
}

func (s *Scanner) openTar() (*os.File, *tar.Reader, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening archive: %w", err)
	}
	r, err := newDecompressor(s.outer, f)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return f, tar.NewReader(r), nil
}

func (s *Scanner) scanZip(emit func(models.LogLine) error) error {
	zr, err := zip.OpenReader(s.path)
	if err != nil {
		return fmt.Errorf("opening archive %s: %w", s.path, err)
	}
	defer zr.Close()

	byName := make(map[string]*zip.File, len(zr.File))
	names := make([]string, 0, len(zr.File))
	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() {
			continue
		}
		byName[zf.Name] = zf
		names = append(names, zf.Name)
	}

	for _, name := range orderMembers(names, s.base) {
		rc, err := byName[name].Open()
		if err != nil {
			return fmt.Errorf("opening member %s: %w", name, err)
		}
		r, err := newDecompressor(schemeForName(name), rc)
		if err != nil {
			rc.Close()
			return err
		}
		err = scanLines(r, path.Base(name), emit)
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

type rotatedMember struct {
	name   string
	suffix int
}

// orderMembers picks the members of one log family and orders them for
// chronological reading: rotated members by numeric suffix descending (a
// larger suffix is an older file), then the current member. Everything else
// in the archive is ignored.
func orderMembers(names []string, base string) []string {
	var rotated []rotatedMember
	var current []string

	for _, n := range names {
		stem := path.Base(n)
		stem = strings.TrimSuffix(strings.TrimSuffix(stem, ".gz"), ".bz2")
		if stem == base {
			current = append(current, n)
			continue
		}
		if !strings.HasPrefix(stem, base+".") {
			continue
		}
		if num, err := strconv.Atoi(stem[len(base)+1:]); err == nil {
			rotated = append(rotated, rotatedMember{name: n, suffix: num})
		}
	}

	sort.SliceStable(rotated, func(i, j int) bool {
		return rotated[i].suffix > rotated[j].suffix
	})

	out := make([]string, 0, len(rotated)+len(current))
	for _, m := range rotated {
		out = append(out, m.name)
	}
	return append(out, current...)
}

// scanLines feeds lines to emit. Invalid bytes are replaced, never fatal.
func scanLines(r io.Reader, source string, emit func(models.LogLine) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, maxScanBuffer), maxScanBuffer)
	for sc.Scan() {
		text := sc.Text()
		if !utf8.ValidString(text) {
			text = strings.ToValidUTF8(text, "�")
		}
		if err := emit(models.LogLine{Source: source, Text: text}); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", source, err)
	}
	return nil
}
