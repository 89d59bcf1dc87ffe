package snapshot

import (
	"log/slog"
	"strconv"
)

// canonicalLabels is the full label set, in the order it is exposed.
var canonicalLabels = []string{
	"pid", "uid", "user", "command", "runtime", "container_id",
	"ports", "hostname", "rank", "uptime",
}

// labelAliases corrects common misspellings of label names to their
// canonical form.
var labelAliases = map[string]string{
	"port":     "ports",
	"host":     "hostname",
	"cmd":      "command",
	"username": "user",
}

// NormalizeLabels maps a caller-specified subset of label names onto
// the canonical set, preserving canonical order. An empty request means
// all labels. Aliases are corrected; unknown names are dropped with a
// warning, never fatally.
func NormalizeLabels(requested []string) []string {
	if len(requested) == 0 {
		return append([]string(nil), canonicalLabels...)
	}

	want := make(map[string]bool, len(requested))
	for _, name := range requested {
		if alias, ok := labelAliases[name]; ok {
			name = alias
		}
		if !isCanonical(name) {
			slog.Warn("dropping unknown label", "label", name)
			continue
		}
		want[name] = true
	}

	out := make([]string, 0, len(want))
	for _, name := range canonicalLabels {
		if want[name] {
			out = append(out, name)
		}
	}
	return out
}

func isCanonical(name string) bool {
	for _, c := range canonicalLabels {
		if c == name {
			return true
		}
	}
	return false
}

// LabelValues renders a row's values for the given normalized label
// names, in the same order. Every label is present even when its value
// is empty, keeping series identity stable across scrapes.
func LabelValues(r Row, names []string) []string {
	values := make([]string, len(names))
	for i, name := range names {
		switch name {
		case "pid":
			values[i] = strconv.Itoa(r.PID)
		case "uid":
			values[i] = strconv.Itoa(r.UID)
		case "user":
			values[i] = r.User
		case "command":
			values[i] = r.Command
		case "runtime":
			values[i] = string(r.Runtime)
		case "container_id":
			values[i] = r.ContainerID
		case "ports":
			values[i] = r.PortsString()
		case "hostname":
			values[i] = r.Node
		case "rank":
			values[i] = strconv.Itoa(r.Rank)
		case "uptime":
			values[i] = strconv.FormatInt(r.UptimeSec, 10)
		}
	}
	return values
}
