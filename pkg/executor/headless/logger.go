package headless

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/entrhq/pilot/pkg/types"
)

// LogLevel represents the logging verbosity level
type LogLevel int

const (
	// LogLevelQuiet shows only critical information (errors, warnings, final summary)
	LogLevelQuiet LogLevel = iota
	// LogLevelNormal shows standard execution progress (default)
	LogLevelNormal
	// LogLevelVerbose shows detailed execution information
	LogLevelVerbose
	// LogLevelDebug shows all internal details for debugging
	LogLevelDebug
)

const previewLength = 200

// Logger prints run progress for non-interactive use
type Logger struct {
	level  LogLevel
	writer io.Writer

	// ANSI color codes
	colorReset     string
	colorCyan      string
	colorSalmon    string
	colorYellow    string
	colorRed       string
	colorGray      string
	colorBoldGreen string
	colorBoldRed   string
	colorBoldWhite string
}

// NewLogger creates a new logger with the specified level
func NewLogger(level LogLevel) *Logger {
	return &Logger{
		level:          level,
		writer:         os.Stdout,
		colorReset:     "\033[0m",
		colorCyan:      "\033[36m",
		colorSalmon:    "\033[38;5;217m", // Salmon pink #FFB3BA
		colorYellow:    "\033[33m",
		colorRed:       "\033[31m",
		colorGray:      "\033[90m",
		colorBoldGreen: "\033[1;32m",
		colorBoldRed:   "\033[1;31m",
		colorBoldWhite: "\033[1;37m",
	}
}

// SetWriter redirects output.
func (l *Logger) SetWriter(w io.Writer) {
	l.writer = w
}

// DisableColor strips the ANSI codes, for output that is not a terminal.
func (l *Logger) DisableColor() {
	l.colorReset = ""
	l.colorCyan = ""
	l.colorSalmon = ""
	l.colorYellow = ""
	l.colorRed = ""
	l.colorGray = ""
	l.colorBoldGreen = ""
	l.colorBoldRed = ""
	l.colorBoldWhite = ""
}

// Header prints a prominent header message
func (l *Logger) Header(message string) {
	if l.level >= LogLevelNormal {
		fmt.Fprintf(l.writer, "\n%s%s%s\n", l.colorBoldWhite, strings.Repeat("=", 70), l.colorReset)
		fmt.Fprintf(l.writer, "%s  %s%s\n", l.colorBoldWhite, message, l.colorReset)
		fmt.Fprintf(l.writer, "%s%s%s\n", l.colorBoldWhite, strings.Repeat("=", 70), l.colorReset)
	}
}

// Step prints a numbered step in the execution
func (l *Logger) Step(step int, toolName string, args map[string]interface{}) {
	switch l.level {
	case LogLevelQuiet:
	case LogLevelNormal:
		fmt.Fprintf(l.writer, "\n%s[%d] %s%s\n", l.colorCyan, step, toolName, l.colorReset)
	default:
		data, _ := json.Marshal(args)
		fmt.Fprintf(l.writer, "\n%s[%d] %s %s%s\n", l.colorCyan, step, toolName, data, l.colorReset)
	}
}

// Successf prints a success message with checkmark
func (l *Logger) Successf(format string, args ...interface{}) {
	if l.level >= LogLevelNormal {
		msg := fmt.Sprintf(format, args...)
		fmt.Fprintf(l.writer, "%s✓ %s%s\n", l.colorBoldGreen, msg, l.colorReset)
	}
}

// Infof prints an informational message
func (l *Logger) Infof(format string, args ...interface{}) {
	if l.level >= LogLevelNormal {
		msg := fmt.Sprintf(format, args...)
		fmt.Fprintf(l.writer, "%s%s%s\n", l.colorSalmon, msg, l.colorReset)
	}
}

// Warningf prints a warning message
func (l *Logger) Warningf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(l.writer, "%s⚠ Warning: %s%s\n", l.colorYellow, msg, l.colorReset)
}

// Errorf prints an error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(l.writer, "%s✗ Error: %s%s\n", l.colorBoldRed, msg, l.colorReset)
}

// Verbosef prints detailed information (only in verbose mode)
func (l *Logger) Verbosef(format string, args ...interface{}) {
	if l.level >= LogLevelVerbose {
		msg := fmt.Sprintf(format, args...)
		fmt.Fprintf(l.writer, "%s→ %s%s\n", l.colorGray, msg, l.colorReset)
	}
}

// Debugf prints debug information (only in debug mode)
func (l *Logger) Debugf(format string, args ...interface{}) {
	if l.level >= LogLevelDebug {
		msg := fmt.Sprintf(format, args...)
		fmt.Fprintf(l.writer, "%s[DEBUG] %s%s\n", l.colorGray, msg, l.colorReset)
	}
}

// Event prints one agent event at the configured verbosity.
func (l *Logger) Event(ev *types.AgentEvent) {
	switch ev.Type {
	case types.EventTypeTaskStarted:
		l.Header(ev.Message)
	case types.EventTypeTaskStep:
		l.Step(ev.Step, ev.ToolName, ev.ToolArgs)
	case types.EventTypeToolExecuting:
		l.Debugf("%s", ev.Message)
	case types.EventTypeToolSuccess:
		l.Successf("%s", ev.ToolName)
		l.Verbosef("%s", truncate(ev.Result, previewLength))
	case types.EventTypeToolSuccessImage:
		l.Successf("%s (%d content blocks)", ev.ToolName, len(ev.Content))
	case types.EventTypeToolError:
		l.Warningf("%s", ev.Message)
	case types.EventTypeAssistantMessage, types.EventTypeAssistantToolCall:
		l.Verbosef("%s", ev.Message)
	case types.EventTypeSystemMessage:
		l.Infof("%s", ev.Message)
	case types.EventTypeTaskCompleted:
		l.Infof("%s", ev.Message)
	case types.EventTypeExecutionStopped:
		l.Warningf("%s", ev.Message)
	case types.EventTypeError:
		l.Errorf("%s", ev.Message)
	default:
		l.Debugf("%s: %s", ev.Type, ev.Message)
	}
}

// Summary prints a final execution summary
func (l *Logger) Summary(summary *ExecutionSummary) {
	l.printSummaryHeader()
	l.printStatus(summary.Status)
	fmt.Fprintf(l.writer, "  Task: %s\n", summary.Task)
	fmt.Fprintf(l.writer, "  Duration: %s\n", summary.Duration.Round(time.Millisecond))
	fmt.Fprintf(l.writer, "  Steps: %d (%d tool errors)\n", summary.Metrics.Steps, summary.Metrics.ToolErrors)
	if summary.FinalMessage != "" && l.level >= LogLevelNormal {
		fmt.Fprintf(l.writer, "\n  %s\n", summary.FinalMessage)
	}
	l.printError(summary)
	fmt.Fprintf(l.writer, "%s%s%s\n", l.colorBoldWhite, strings.Repeat("=", 70), l.colorReset)
}

func (l *Logger) printSummaryHeader() {
	fmt.Fprintln(l.writer)
	fmt.Fprintf(l.writer, "%s%s%s\n", l.colorBoldWhite, strings.Repeat("=", 70), l.colorReset)
	fmt.Fprintf(l.writer, "%s  EXECUTION SUMMARY%s\n", l.colorBoldWhite, l.colorReset)
	fmt.Fprintf(l.writer, "%s%s%s\n", l.colorBoldWhite, strings.Repeat("=", 70), l.colorReset)
}

func (l *Logger) printStatus(status string) {
	fmt.Fprint(l.writer, "  Status: ")
	switch status {
	case statusSuccess:
		fmt.Fprintf(l.writer, "%s✓ SUCCESS%s\n", l.colorBoldGreen, l.colorReset)
	case statusPartialSuccess:
		fmt.Fprintf(l.writer, "%s⚠ PARTIAL SUCCESS%s\n", l.colorYellow, l.colorReset)
	case statusStopped:
		fmt.Fprintf(l.writer, "%s⏹ STOPPED%s\n", l.colorYellow, l.colorReset)
	case statusFailed:
		fmt.Fprintf(l.writer, "%s✗ FAILED%s\n", l.colorBoldRed, l.colorReset)
	default:
		fmt.Fprintln(l.writer, status)
	}
}

func (l *Logger) printError(summary *ExecutionSummary) {
	if summary.Error == "" {
		return
	}

	fmt.Fprintln(l.writer)
	fmt.Fprintf(l.writer, "%s  Error Details:%s\n", l.colorBoldRed, l.colorReset)
	fmt.Fprintf(l.writer, "%s    %s%s\n", l.colorRed, summary.Error, l.colorReset)
}

// ParseLogLevel converts a string log level to LogLevel type
func ParseLogLevel(level string) LogLevel {
	switch level {
	case "quiet":
		return LogLevelQuiet
	case "normal":
		return LogLevelNormal
	case "verbose":
		return LogLevelVerbose
	case "debug":
		return LogLevelDebug
	default:
		return LogLevelNormal
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
