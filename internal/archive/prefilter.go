package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Fraction of members above which rewriting is not worth the copy: rewriting
// a multi-hundred-MB archive is itself expensive and only pays for genuine
// reduction.
const keepFractionCeiling = 0.8

// DefaultBufferHours pads the requested window on both sides so member
// modification times just outside the window are not lost.
const DefaultBufferHours = 1

// FilterByWindow rewrites a tar archive to contain only members whose
// modification time falls inside the requested window, padded by bufferHours
// on each side. It returns the original path unchanged when the archive is
// not a tar, the window is open, filtering would save less than ~20%, or no
// member qualifies; the caller never receives an empty archive.
//
// The rewritten archive preserves the whole-file compression scheme, every
// member's own compression and its metadata, so a second filtering pass
// stays consistent.
func FilterByWindow(archivePath string, start, end *time.Time, bufferHours int) (string, error) {
	if start == nil && end == nil {
		return archivePath, nil
	}
	sc, err := Open(archivePath, DefaultLog)
	if err != nil {
		return "", err
	}
	if sc.kind != kindTar {
		return archivePath, nil
	}

	if bufferHours <= 0 {
		bufferHours = DefaultBufferHours
	}
	buffer := time.Duration(bufferHours) * time.Hour

	var lo, hi time.Time
	if start != nil {
		lo = start.Add(-buffer)
	}
	if end != nil {
		hi = end.Add(buffer)
	}

	keep := make(map[string]bool)
	total := 0

	f, tr, err := sc.openTar()
	if err != nil {
		return "", err
	}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			f.Close()
			return "", fmt.Errorf("reading archive %s: %w", archivePath, err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		total++
		mt := hdr.ModTime
		if start != nil && mt.Before(lo) {
			continue
		}
		if end != nil && mt.After(hi) {
			continue
		}
		keep[hdr.Name] = true
	}
	f.Close()

	if total == 0 || len(keep) == 0 {
		return archivePath, nil
	}
	if float64(len(keep))/float64(total) > keepFractionCeiling {
		return archivePath, nil
	}

	out, err := writeFiltered(sc, keep)
	if err != nil {
		return "", err
	}
	fmt.Printf("[PreFilter] %s: kept %d of %d members -> %s\n",
		filepath.Base(archivePath), len(keep), total, filepath.Base(out))
	return out, nil
}

// writeFiltered copies the kept members into a fresh archive next to the
// temp directory, re-applying the source's whole-file compression. Member
// bytes are copied verbatim, so per-member compression survives untouched.
func writeFiltered(sc *Scanner, keep map[string]bool) (string, error) {
	suffix := filterSuffix(sc.outer)
	tmp, err := os.CreateTemp("", "prefilter-*"+suffix)
	if err != nil {
		return "", fmt.Errorf("creating filtered archive: %w", err)
	}
	defer tmp.Close()

	cw, err := newCompressor(sc.outer, tmp)
	if err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	tw := tar.NewWriter(cw)

	f, tr, err := sc.openTar()
	if err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	defer f.Close()

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			os.Remove(tmp.Name())
			return "", fmt.Errorf("reading archive %s: %w", sc.path, err)
		}
		if !keep[hdr.Name] {
			continue
		}
		if err := tw.WriteHeader(hdr); err != nil {
			os.Remove(tmp.Name())
			return "", fmt.Errorf("writing member %s: %w", hdr.Name, err)
		}
		if _, err := io.Copy(tw, tr); err != nil {
			os.Remove(tmp.Name())
			return "", fmt.Errorf("writing member %s: %w", hdr.Name, err)
		}
	}

	if err := tw.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("finalizing filtered archive: %w", err)
	}
	if err := cw.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("finalizing filtered archive: %w", err)
	}
	return tmp.Name(), nil
}

func filterSuffix(scheme string) string {
	switch scheme {
	case schemeGzip:
		return ".tar.gz"
	case schemeBzip2:
		return ".tar.bz2"
	default:
		return ".tar"
	}
}

// MemberCount reports the number of regular members in a tar archive.
// Non-tar archives count as one member.
func MemberCount(archivePath string) (int, error) {
	sc, err := Open(archivePath, DefaultLog)
	if err != nil {
		return 0, err
	}
	if sc.kind != kindTar {
		return 1, nil
	}
	names, err := sc.tarMemberNames()
	if err != nil {
		return 0, err
	}
	return len(names), nil
}

// IsFiltered reports whether the path was produced by FilterByWindow, so
// callers know they own the file and may delete it afterwards.
func IsFiltered(p string) bool {
	return strings.HasPrefix(filepath.Base(p), "prefilter-")
}
