package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Format selects the line format written by the logger
type Format int

const (
	// FormatText is "[ts] [LEVEL] name: msg | k=v ..."
	FormatText Format = iota
	// FormatJSON writes one JSON object per line
	FormatJSON
)

var (
	outputMu  sync.Mutex
	outWriter io.Writer // nil means stdout/stderr routing
	outFormat = FormatText
)

// SetOutput sends every level to w. Passing nil restores stdout/stderr routing.
func SetOutput(w io.Writer) {
	outputMu.Lock()
	defer outputMu.Unlock()
	outWriter = w
}

// SetFormat switches the output line format
func SetFormat(f Format) {
	outputMu.Lock()
	defer outputMu.Unlock()
	outFormat = f
}

// ParseFormat maps "text" / "json" to a Format
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return FormatText, fmt.Errorf("invalid log format: %s (must be text or json)", s)
	}
}

func (l *Logger) logf(level LogLevel, msg string, args ...interface{}) {
	formatted := msg
	if len(args) > 0 {
		formatted = fmt.Sprintf(msg, args...)
	}
	l.writeLog(level, formatted, mergeFields(extractContextFields(l.ctx), l.fields))
}

func (l *Logger) logWithFields(level LogLevel, msg string, fields ...LogField) {
	callFields := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		callFields[f.Key] = f.Value
	}
	l.writeLog(level, msg, mergeFields(extractContextFields(l.ctx), l.fields, callFields))
}

// writeLog renders and routes a single line. Field keys are sorted so the
// output is stable.
func (l *Logger) writeLog(level LogLevel, msg string, fields map[string]interface{}) {
	outputMu.Lock()
	defer outputMu.Unlock()

	var line string
	if outFormat == FormatJSON {
		line = renderJSON(level, l.name, msg, fields)
	} else {
		line = renderText(level, l.name, msg, fields)
	}

	w := outWriter
	if w == nil {
		if level >= ERROR {
			w = os.Stderr
		} else {
			w = os.Stdout
		}
	}
	fmt.Fprintln(w, line)
}

func sortedKeys(fields map[string]interface{}) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func renderText(level LogLevel, name, msg string, fields map[string]interface{}) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] [%s] %s: %s", GetTimestamp(), levelName(level), name, msg)
	if len(fields) > 0 {
		sb.WriteString(" |")
		for _, k := range sortedKeys(fields) {
			fmt.Fprintf(&sb, " %s=%v", k, fields[k])
		}
	}
	return sb.String()
}

func renderJSON(level LogLevel, name, msg string, fields map[string]interface{}) string {
	entry := make(map[string]interface{}, len(fields)+4)
	for k, v := range fields {
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		entry[k] = v
	}
	entry["ts"] = GetTimestamp()
	entry["level"] = levelName(level)
	entry["logger"] = name
	entry["msg"] = msg

	data, err := json.Marshal(entry)
	if err != nil {
		return renderText(level, name, msg, fields)
	}
	return string(data)
}

// GetTimestamp returns an RFC3339 timestamp, or LOG_TIMESTAMP when set
func GetTimestamp() string {
	if override := os.Getenv("LOG_TIMESTAMP"); override != "" {
		return override
	}
	return time.Now().UTC().Format(time.RFC3339)
}
