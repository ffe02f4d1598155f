package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/alonraif/NGL-sub000/internal/archive"
	"github.com/alonraif/NGL-sub000/internal/models"
)

var (
	unitIDRe = regexp.MustCompile(`UnitID: ([A-Z0-9][A-Z0-9-]+)`)
	serverRe = regexp.MustCompile(`connected to management server ([\w.-]+)`)
)

// identityExtractor pulls the unit serial and the management server name out
// of the archive. Both identifiers repeat throughout the log; the scan stops
// as soon as both are known.
type identityExtractor struct{}

func newIdentity() Extractor { return identityExtractor{} }

func (identityExtractor) Mode() string { return "id" }

func (identityExtractor) Run(env *Env, src *archive.Scanner) (*models.ExtractionResult, error) {
	var id models.DeviceIdentity

	err := env.scan(src, func(l models.LogLine) error {
		if id.UnitID == "" {
			if m := unitIDRe.FindStringSubmatch(l.Text); m != nil {
				id.UnitID = m[1]
			}
		}
		if id.ServerName == "" {
			if m := serverRe.FindStringSubmatch(l.Text); m != nil {
				id.ServerName = m[1]
			}
		}
		if id.UnitID != "" && id.ServerName != "" {
			return archive.ErrStopScan
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	if id.UnitID != "" {
		fmt.Fprintf(&b, "unit: %s\n", id.UnitID)
	}
	if id.ServerName != "" {
		fmt.Fprintf(&b, "server: %s\n", id.ServerName)
	}

	return &models.ExtractionResult{
		Mode:   "id",
		Raw:    b.String(),
		Parsed: id,
	}, nil
}
