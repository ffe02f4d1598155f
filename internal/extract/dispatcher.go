package extract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alonraif/NGL-sub000/internal/archive"
)

// ErrUnknownMode is returned when a requested mode key has no extractor.
var ErrUnknownMode = errors.New("unknown mode")

// ModeInfo describes one extraction mode for discovery endpoints.
type ModeInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Structured  bool   `json:"structured"`
}

type modeEntry struct {
	info    ModeInfo
	baseLog string
	factory func() Extractor
}

// The mode table is the single dispatch point: mode key to extractor
// factory plus which log family the scanner should read.
var modeTable = []modeEntry{
	{ModeInfo{"bw", "stream bandwidth (total/video bitrate)", true}, archive.DefaultLog, newStreamBandwidth},
	{ModeInfo{"md-bw", "per-modem bandwidth with cross-modem aggregate", true}, archive.DefaultLog, newModemBandwidth},
	{ModeInfo{"db-bw", "data-bridge bandwidth", true}, archive.DefaultLog, newBridgeBandwidth},
	{ModeInfo{"md", "per-modem statistics (loss, delay, rtt)", true}, archive.DefaultLog, newModemStats},
	{ModeInfo{"sessions", "streaming session boundaries", true}, archive.DefaultLog, newSessions},
	{ModeInfo{"grading", "service-grade transitions per modem", true}, archive.DefaultLog, newGrading},
	{ModeInfo{"memory", "memory utilization per component", true}, archive.DefaultLog, newMemory},
	{ModeInfo{"cpu", "cpu utilization per component", true}, archive.DefaultLog, newCPU},
	{ModeInfo{"modem-events", "modem connectivity events", true}, archive.DefaultLog, newModemEvents},
	{ModeInfo{"id", "unit and server identifiers", true}, archive.DefaultLog, newIdentity},
	{ModeInfo{"error", "error and critical lines", false}, archive.DefaultLog, newErrorFilter},
	{ModeInfo{"warning", "warning lines", false}, archive.DefaultLog, newWarningFilter},
	{ModeInfo{"modems", "raw modem lines", false}, archive.DefaultLog, newModemsFilter},
	{ModeInfo{"connection", "connect/disconnect and link events", false}, archive.DefaultLog, newConnectionFilter},
	{ModeInfo{"streamer", "streamer component lines", false}, archive.DefaultLog, newStreamerFilter},
	{ModeInfo{"corecard", "corecard component lines", false}, archive.DefaultLog, newCorecardFilter},
	{ModeInfo{"server", "server-side lines", false}, archive.DefaultLog, newServerFilter},
	{ModeInfo{"kernel", "kernel messages", false}, archive.DefaultLog, newKernelFilter},
	{ModeInfo{"ffmpeg", "encoder log lines", false}, archive.FFmpegLog, newFFmpegFilter},
	{ModeInfo{"all", "every decodable line", false}, archive.DefaultLog, newAllFilter},
}

// Modes lists every registered mode in table order.
func Modes() []ModeInfo {
	out := make([]ModeInfo, len(modeTable))
	for i, e := range modeTable {
		out[i] = e.info
	}
	return out
}

// ValidMode reports whether the mode key is registered.
func ValidMode(mode string) bool {
	_, err := lookupMode(mode)
	return err == nil
}

func lookupMode(mode string) (modeEntry, error) {
	for _, e := range modeTable {
		if e.info.Name == mode {
			return e, nil
		}
	}
	names := make([]string, len(modeTable))
	for i, e := range modeTable {
		names[i] = e.info.Name
	}
	return modeEntry{}, fmt.Errorf("%w: %q (valid: %s)", ErrUnknownMode, mode, strings.Join(names, ", "))
}
