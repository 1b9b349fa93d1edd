package annotations

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// OutputFormatter formats events for human-readable display.
type OutputFormatter struct {
	useColor bool
	writer   io.Writer
}

// NewOutputFormatter creates a formatter with color support detection.
func NewOutputFormatter(w io.Writer) *OutputFormatter {
	if w == nil {
		w = os.Stdout
	}

	// Auto-detect color support
	useColor := false
	if f, ok := w.(*os.File); ok {
		useColor = isTerminal(f.Fd())
	}

	return &OutputFormatter{
		useColor: useColor,
		writer:   w,
	}
}

// Handle implements the Handler interface - prints events as they occur
func (f *OutputFormatter) Handle(event Event) {
	output := f.Format(event)
	if output != "" {
		fmt.Fprintln(f.writer, output)
	}
}

// Format converts an event to a human-readable string.
func (f *OutputFormatter) Format(event Event) string {
	latency := f.formatLatency(event.Latency)

	switch event.Name {
	case TxBegin:
		return fmt.Sprintf("%s %s Transaction %s begins at version %v",
			latency,
			f.colorize("===", color.FgYellow),
			shortID(event.Data["tx"]),
			event.Data["snapshot"])

	case TxCommit:
		return fmt.Sprintf("%s %s Transaction %s committed version %v: +%s -%s, %s registered",
			latency,
			f.colorize("✓", color.FgGreen),
			shortID(event.Data["tx"]),
			event.Data["version"],
			f.colorizeCount("statements", intValue(event.Data["added"])),
			f.colorizeCount("statements", intValue(event.Data["removed"])),
			f.colorizeCount("nodes", intValue(event.Data["nodes"])))

	case TxRollback:
		return fmt.Sprintf("%s %s Transaction %s rolled back (%v)",
			latency,
			f.colorize("↺", color.FgYellow),
			shortID(event.Data["tx"]),
			event.Data["reason"])

	case TxConflict:
		return fmt.Sprintf("%s %s Transaction %s conflicted: %v",
			latency,
			f.colorize("✗", color.FgRed),
			shortID(event.Data["tx"]),
			event.Data["error"])

	case NodeRegistered:
		return fmt.Sprintf("%s Registered node %v as #%v", latency, event.Data["node"], event.Data["id"])

	case NodeRaceRecovered:
		return fmt.Sprintf("%s %s Lost registration race for %v, adopted #%v",
			latency,
			f.colorize("⚡", color.FgMagenta),
			event.Data["node"],
			event.Data["id"])

	case IDLease:
		return fmt.Sprintf("%s Leased %s IDs [%v, %v)",
			latency,
			event.Data["sequence"],
			event.Data["start"],
			event.Data["end"])

	case StatementScan:
		return fmt.Sprintf("%s Scan %v on %v → %s",
			latency,
			event.Data["pattern"],
			event.Data["index"],
			f.colorizeCount("statements", intValue(event.Data["count"])))

	case OptimizerPass:
		return fmt.Sprintf("%s %s %v pass: %s",
			latency,
			f.colorize("===", color.FgCyan),
			event.Data["pass"],
			f.colorizeCount("rotations", intValue(event.Data["rotations"])))

	case OptimizerRotation:
		return fmt.Sprintf("%s %v sinks below %v",
			latency,
			event.Data["target"],
			event.Data["over"])

	case ErrorBackend:
		return fmt.Sprintf("%s %s Backend error during %v: %v",
			latency,
			f.colorize("✗", color.FgRed),
			event.Data["op"],
			event.Data["error"])

	default:
		// Generic format for unknown events
		return fmt.Sprintf("%s %s %s", latency, event.Name, formatData(event.Data))
	}
}

// formatLatency formats a duration as [XXXms] or [XXXµs] with color coding.
func (f *OutputFormatter) formatLatency(d time.Duration) string {
	// Use microseconds for sub-millisecond durations
	if d < time.Millisecond {
		s := fmt.Sprintf("[%dµs]", d.Microseconds())
		if !f.useColor {
			return s
		}
		return color.GreenString(s)
	}

	ms := float64(d.Microseconds()) / 1000.0
	s := fmt.Sprintf("[%.1fms]", ms)

	if !f.useColor {
		return s
	}

	switch {
	case ms < 50:
		return color.GreenString(s)
	case ms < 200:
		return color.YellowString(s)
	default:
		return color.RedString(s)
	}
}

// colorizeCount formats a count with a label, using color based on the label type.
func (f *OutputFormatter) colorizeCount(label string, count int) string {
	text := fmt.Sprintf("%d %s", count, label)

	if !f.useColor {
		return text
	}

	switch strings.ToLower(label) {
	case "statements":
		return color.MagentaString(text)
	case "nodes":
		return color.BlueString(text)
	case "rotations":
		return color.CyanString(text)
	default:
		return text
	}
}

// colorize applies color if enabled.
func (f *OutputFormatter) colorize(text string, attrs ...color.Attribute) string {
	if !f.useColor {
		return text
	}
	return color.New(attrs...).Sprint(text)
}

// ConsoleHandler creates a handler that prints formatted events to stderr.
func ConsoleHandler() Handler {
	return NewOutputFormatter(os.Stderr).Handle
}

// shortID trims UUID-style transaction ids for display
func shortID(v interface{}) string {
	s := fmt.Sprint(v)
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

func intValue(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case uint64:
		return int(n)
	}
	return 0
}

// formatData renders event data with sorted keys for stable output
func formatData(data map[string]interface{}) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, data[k])
	}
	return strings.Join(parts, " ")
}

// isTerminal checks if the file descriptor is a terminal.
func isTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
