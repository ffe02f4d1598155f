package extract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alonraif/NGL-sub000/internal/archive"
	"github.com/alonraif/NGL-sub000/internal/models"
	"github.com/alonraif/NGL-sub000/internal/timeutil"
)

// Request describes one extraction run. Begin/End are optional permissive
// date strings interpreted in Timezone; Progress, when set, is invoked
// periodically with the number of lines scanned.
type Request struct {
	ArchivePath string
	Mode        string
	Timezone    string
	Begin       string
	End         string
	Progress    func(lines int)
}

// Extract is the engine entry point: one archive, one mode, one sequential
// scan. Extractor instances are created fresh per call and never shared;
// callers wanting concurrency run independent Extract calls. Cancellation is
// cooperative through ctx and surfaces as ErrCancelled.
func Extract(ctx context.Context, req Request) (*models.ExtractionResult, error) {
	entry, err := lookupMode(req.Mode)
	if err != nil {
		return nil, err
	}

	loc := time.UTC
	if req.Timezone != "" {
		loc, err = time.LoadLocation(req.Timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid timezone %q: %w", req.Timezone, err)
		}
	}

	window, err := timeutil.NewRange(req.Begin, req.End, loc)
	if err != nil {
		return nil, err
	}

	src, err := archive.Open(req.ArchivePath, entry.baseLog)
	if err != nil {
		return nil, err
	}

	env := &Env{Ctx: ctx, Loc: loc, Window: window, Progress: req.Progress}
	res, err := entry.factory().Run(env, src)
	if err != nil {
		if errors.Is(err, ErrCancelled) {
			return nil, err
		}
		return nil, fmt.Errorf("extracting mode %s from %s: %w", req.Mode, req.ArchivePath, err)
	}
	res.Mode = req.Mode
	return res, nil
}
