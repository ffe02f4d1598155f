// Command lula runs a single extraction against a local archive and prints
// the raw rendition to stdout. It is the offline counterpart of the server's
// job API, useful on the device itself or in scripts.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/alonraif/NGL-sub000/internal/archive"
	"github.com/alonraif/NGL-sub000/internal/extract"
	"github.com/alonraif/NGL-sub000/internal/timeutil"
)

func main() {
	mode := flag.StringP("mode", "m", "all", "extraction mode (see --list-modes)")
	timezone := flag.StringP("timezone", "z", "UTC", "timezone for naive log timestamps")
	begin := flag.String("begin", "", "window start (e.g. \"2024-01-15 10:00:00\")")
	end := flag.String("end", "", "window end")
	prefilter := flag.Bool("prefilter", false, "pre-filter rotated members by the window before scanning")
	listModes := flag.Bool("list-modes", false, "print available modes and exit")
	quiet := flag.BoolP("quiet", "q", false, "suppress progress output")
	flag.Parse()

	if *listModes {
		for _, m := range extract.Modes() {
			kind := "filter"
			if m.Structured {
				kind = "structured"
			}
			fmt.Printf("  %-14s %-11s %s\n", m.Name, kind, m.Description)
		}
		return
	}

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: lula [flags] <archive>\n")
		flag.PrintDefaults()
		os.Exit(2)
	}
	archivePath := flag.Arg(0)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *prefilter {
		filtered, err := prefilterArchive(archivePath, *timezone, *begin, *end)
		if err != nil {
			fatal("prefilter: %v", err)
		}
		if filtered != archivePath {
			defer os.Remove(filtered)
			archivePath = filtered
		}
	}

	req := extract.Request{
		ArchivePath: archivePath,
		Mode:        *mode,
		Timezone:    *timezone,
		Begin:       *begin,
		End:         *end,
	}
	if !*quiet {
		start := time.Now()
		req.Progress = func(lines int) {
			fmt.Fprintf(os.Stderr, "\rscanned %d lines (%.1fs)", lines, time.Since(start).Seconds())
		}
	}

	res, err := extract.Extract(ctx, req)
	if !*quiet {
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		if errors.Is(err, extract.ErrCancelled) {
			fmt.Fprintln(os.Stderr, "cancelled")
			os.Exit(130)
		}
		fatal("extract: %v", err)
	}

	fmt.Print(res.Raw)
}

// prefilterArchive drops rotated members entirely outside the window before
// the full scan. Returns the input path unchanged when no window is given.
func prefilterArchive(path, timezone, begin, end string) (string, error) {
	if begin == "" && end == "" {
		return path, nil
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return "", fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	window, err := timeutil.NewRange(begin, end, loc)
	if err != nil {
		return "", err
	}
	return archive.FilterByWindow(path, window.Start, window.End, archive.DefaultBufferHours)
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
