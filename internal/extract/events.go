package extract

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/alonraif/NGL-sub000/internal/archive"
	"github.com/alonraif/NGL-sub000/internal/models"
)

// eventRule maps a connectivity line onto a tagged ModemEvent. Rules are a
// flat table evaluated in fixed priority order; the first match determines
// the record type.
type eventRule struct {
	re    *regexp.Regexp
	build func(ts time.Time, msg string, m []string) models.ModemEvent
}

var eventRules = []eventRule{
	{regexp.MustCompile(`Modem (\d+): operator changed to "([^"]*)"`),
		func(ts time.Time, msg string, m []string) models.ModemEvent {
			return models.ModemEvent{
				Timestamp: ts, Type: models.EventOperatorChange, Port: m[1],
				Message: msg, Metadata: map[string]string{"operator": m[2]},
			}
		}},
	{regexp.MustCompile(`Modem (\d+) link ready: (\{.*\})`),
		func(ts time.Time, msg string, m []string) models.ModemEvent {
			return models.ModemEvent{
				Timestamp: ts, Type: models.EventLinkReady, Port: m[1],
				Message: msg, Metadata: parseLinkDict(m[2]),
			}
		}},
	{regexp.MustCompile(`Modem (\d+): link lost`),
		func(ts time.Time, msg string, m []string) models.ModemEvent {
			return models.ModemEvent{
				Timestamp: ts, Type: models.EventLinkLost, Port: m[1], Message: msg,
			}
		}},
	{regexp.MustCompile(`Modem (\d+): dhcp lease acquired on (\S+)`),
		func(ts time.Time, msg string, m []string) models.ModemEvent {
			return models.ModemEvent{
				Timestamp: ts, Type: models.EventDHCPLink, Port: m[1],
				Message: msg, Metadata: map[string]string{"interface": m[2]},
			}
		}},
	{regexp.MustCompile(`Modem (\d+): qmi connection established, cid (\d+)`),
		func(ts time.Time, msg string, m []string) models.ModemEvent {
			return models.ModemEvent{
				Timestamp: ts, Type: models.EventQMILink, Port: m[1],
				Message: msg, Metadata: map[string]string{"cid": m[2]},
			}
		}},
	{regexp.MustCompile(`NetworkManager: (\d+) interfaces? up`),
		func(ts time.Time, msg string, m []string) models.ModemEvent {
			return models.ModemEvent{
				Timestamp: ts, Type: models.EventInterfaceCount,
				Message: msg, Metadata: map[string]string{"count": m[1]},
			}
		}},
}

// Targeted sub-patterns for the Python-literal-like dictionary embedded in
// link-ready lines. Only known keys are extracted; the fragment is untrusted
// input and is never evaluated as a whole.
var (
	dictIPRe        = regexp.MustCompile(`'ip'\s*:\s*'([^']*)'`)
	dictGatewayRe   = regexp.MustCompile(`'gateway'\s*:\s*'([^']*)'`)
	dictInterfaceRe = regexp.MustCompile(`'interface'\s*:\s*'([^']*)'`)
	dictDNSRe       = regexp.MustCompile(`'dns'\s*:\s*\[([^\]]*)\]`)
)

// parseLinkDict extracts the known keys from a link-ready dictionary
// fragment. An unparseable fragment degrades to empty metadata rather than
// aborting the line.
func parseLinkDict(fragment string) map[string]string {
	meta := make(map[string]string)
	if m := dictIPRe.FindStringSubmatch(fragment); m != nil {
		meta["ip"] = m[1]
	}
	if m := dictGatewayRe.FindStringSubmatch(fragment); m != nil {
		meta["gateway"] = m[1]
	}
	if m := dictInterfaceRe.FindStringSubmatch(fragment); m != nil {
		meta["interface"] = m[1]
	}
	if m := dictDNSRe.FindStringSubmatch(fragment); m != nil {
		var servers []string
		for _, part := range strings.Split(m[1], ",") {
			s := strings.Trim(strings.TrimSpace(part), "'\"")
			if s != "" {
				servers = append(servers, s)
			}
		}
		if len(servers) > 0 {
			meta["dns"] = strings.Join(servers, ",")
		}
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}

type modemEventsExtractor struct{}

func newModemEvents() Extractor { return modemEventsExtractor{} }

func (modemEventsExtractor) Mode() string { return "modem-events" }

func (modemEventsExtractor) Run(env *Env, src *archive.Scanner) (*models.ExtractionResult, error) {
	var events []models.ModemEvent

	err := env.scan(src, func(l models.LogLine) error {
		ev, ok := parseEvent(l, env.Loc)
		if !ok || !env.inWindow(ev.ts) {
			return nil
		}
		for _, r := range eventRules {
			if m := r.re.FindStringSubmatch(ev.msg); m != nil {
				events = append(events, r.build(ev.ts, ev.msg, m))
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &models.ExtractionResult{
		Mode:   "modem-events",
		Raw:    renderEvents(events, env.Loc),
		Parsed: events,
	}, nil
}

func renderEvents(events []models.ModemEvent, loc *time.Location) string {
	var b strings.Builder
	for _, e := range events {
		port := e.Port
		if port == "" {
			port = "-"
		}
		fmt.Fprintf(&b, "%s %-15s modem %-2s %s\n",
			e.Timestamp.In(loc).Format("2006-01-02 15:04:05.000"), e.Type, port, e.Message)
	}
	return b.String()
}
