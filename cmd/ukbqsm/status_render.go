package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"ukbqsm/internal/deps"
	"ukbqsm/internal/preflight"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 22
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// dependencyLines renders a summary line followed by one line per
// dependency. Missing optional dependencies are warnings.
func dependencyLines(statuses []deps.Status, colorize bool) []string {
	lines := make([]string, 0, len(statuses)+2)
	required := deps.Missing(statuses)
	var unavailable []string
	for _, s := range statuses {
		if !s.Available {
			unavailable = append(unavailable, s.Name)
		}
	}

	switch {
	case len(required) > 0:
		lines = append(lines, renderStatusLine("Summary", statusError,
			fmt.Sprintf("%d required %s missing", len(required), plural(len(required), "dependency", "dependencies")), colorize))
	case len(unavailable) > 0:
		lines = append(lines, renderStatusLine("Summary", statusWarn, "Optional dependencies unavailable", colorize))
	default:
		lines = append(lines, renderStatusLine("Summary", statusOK, "All dependencies available", colorize))
	}

	for _, dep := range statuses {
		if dep.Available {
			message := "Ready"
			if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}
		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		lines = append(lines, renderStatusLine(dep.Name, missingKind(dep.Optional), detail, colorize))
	}
	if len(unavailable) > 0 {
		lines = append(lines, renderStatusLine("Missing dependencies", statusWarn, strings.Join(unavailable, ", "), colorize))
	}
	return lines
}

func preflightLines(results []preflight.Result, colorize bool) []string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, renderStatusLine(r.Name, passKind(r.Passed), r.Detail, colorize))
	}
	return lines
}

func missingKind(optional bool) statusKind {
	if optional {
		return statusWarn
	}
	return statusError
}

func passKind(passed bool) statusKind {
	if passed {
		return statusOK
	}
	return statusError
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
