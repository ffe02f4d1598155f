package archive

import (
	"archive/tar"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/alonraif/NGL-sub000/internal/models"
)

// tarMember describes one member of a synthetic test archive.
type tarMember struct {
	name    string
	content string
	gzipped bool
	modTime time.Time
}

func writeTestTar(t *testing.T, name string, members []tarMember) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	f, err := os.Create(p)
	if err != nil {
		t.Fatalf("creating archive: %v", err)
	}
	defer f.Close()

	tw := tar.NewWriter(f)
	for _, m := range members {
		data := []byte(m.content)
		if m.gzipped {
			var buf bytes.Buffer
			zw := gzip.NewWriter(&buf)
			if _, err := zw.Write(data); err != nil {
				t.Fatalf("gzipping member: %v", err)
			}
			zw.Close()
			data = buf.Bytes()
		}
		mt := m.modTime
		if mt.IsZero() {
			mt = time.Now()
		}
		hdr := &tar.Header{
			Name:    m.name,
			Mode:    0644,
			Size:    int64(len(data)),
			ModTime: mt,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("writing header: %v", err)
		}
		if _, err := tw.Write(data); err != nil {
			t.Fatalf("writing member: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("closing archive: %v", err)
	}
	return p
}

func collectLines(t *testing.T, s *Scanner) []models.LogLine {
	t.Helper()
	var lines []models.LogLine
	if err := s.Scan(func(l models.LogLine) error {
		lines = append(lines, l)
		return nil
	}); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	return lines
}

func TestScannerRotationOrder(t *testing.T) {
	p := writeTestTar(t, "unit.tar", []tarMember{
		{name: "messages.log", content: "current\n"},
		{name: "messages.log.1", content: "rotated one\n"},
		{name: "messages.log.2.gz", content: "rotated two\n", gzipped: true},
		{name: "other.dat", content: "ignored\n"},
	})

	s, err := Open(p, DefaultLog)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	lines := collectLines(t, s)
	got := make([]string, len(lines))
	for i, l := range lines {
		got[i] = l.Text
	}
	// Larger suffix is older: 2, then 1, then the current file.
	want := []string{"rotated two", "rotated one", "current"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("line order = %v, want %v", got, want)
	}
	if lines[0].Source != "messages.log.2.gz" {
		t.Errorf("first source = %q, want messages.log.2.gz", lines[0].Source)
	}
}

func TestScannerRestartable(t *testing.T) {
	p := writeTestTar(t, "unit.tar", []tarMember{
		{name: "messages.log", content: "a\nb\n"},
	})
	s, err := Open(p, DefaultLog)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	first := collectLines(t, s)
	second := collectLines(t, s)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("rescan differs: %v vs %v", first, second)
	}
}

func TestScannerFFmpegBase(t *testing.T) {
	p := writeTestTar(t, "unit.tar", []tarMember{
		{name: "messages.log", content: "diag\n"},
		{name: "ffmpeg.log", content: "encoder\n"},
		{name: "ffmpeg.log.1", content: "encoder old\n"},
	})
	s, err := Open(p, FFmpegLog)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	lines := collectLines(t, s)
	if len(lines) != 2 || lines[0].Text != "encoder old" || lines[1].Text != "encoder" {
		t.Errorf("unexpected lines: %v", lines)
	}
}

func TestScannerSingleGzip(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "messages.log.gz")
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Write([]byte("only line\n"))
	zw.Close()
	if err := os.WriteFile(p, buf.Bytes(), 0644); err != nil {
		t.Fatalf("writing file: %v", err)
	}

	s, err := Open(p, DefaultLog)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	lines := collectLines(t, s)
	if len(lines) != 1 || lines[0].Text != "only line" {
		t.Errorf("unexpected lines: %v", lines)
	}
}

func TestScannerMagicSniff(t *testing.T) {
	t.Run("gzip without extension", func(t *testing.T) {
		dir := t.TempDir()
		p := filepath.Join(dir, "upload-1234")
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		zw.Write([]byte("sniffed\n"))
		zw.Close()
		if err := os.WriteFile(p, buf.Bytes(), 0644); err != nil {
			t.Fatalf("writing file: %v", err)
		}

		s, err := Open(p, DefaultLog)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		lines := collectLines(t, s)
		if len(lines) != 1 || lines[0].Text != "sniffed" {
			t.Errorf("unexpected lines: %v", lines)
		}
	})

	t.Run("tar without extension", func(t *testing.T) {
		p := writeTestTar(t, "upload-5678", []tarMember{
			{name: "messages.log", content: "in tar\n"},
		})
		s, err := Open(p, DefaultLog)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		lines := collectLines(t, s)
		if len(lines) != 1 || lines[0].Text != "in tar" {
			t.Errorf("unexpected lines: %v", lines)
		}
	})

	t.Run("unrecognized bytes", func(t *testing.T) {
		dir := t.TempDir()
		p := filepath.Join(dir, "upload-9999")
		if err := os.WriteFile(p, []byte("definitely not an archive"), 0644); err != nil {
			t.Fatalf("writing file: %v", err)
		}
		_, err := Open(p, DefaultLog)
		if !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("expected ErrUnsupportedFormat, got %v", err)
		}
	})
}

func TestScannerStopScan(t *testing.T) {
	p := writeTestTar(t, "unit.tar", []tarMember{
		{name: "messages.log", content: "a\nb\nc\n"},
	})
	s, err := Open(p, DefaultLog)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	count := 0
	err = s.Scan(func(models.LogLine) error {
		count++
		if count == 2 {
			return ErrStopScan
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Scan returned error on ErrStopScan: %v", err)
	}
	if count != 2 {
		t.Errorf("scanned %d lines after stop, want 2", count)
	}
}

func TestScannerInvalidBytes(t *testing.T) {
	p := writeTestTar(t, "unit.tar", []tarMember{
		{name: "messages.log", content: "ok\n\xff\xfebad\n"},
	})
	s, err := Open(p, DefaultLog)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	lines := collectLines(t, s)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	// Invalid bytes are replaced, never fatal.
	if lines[1].Text == "\xff\xfebad" {
		t.Error("invalid bytes were not replaced")
	}
}
