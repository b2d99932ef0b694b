// Package report renders and parses the reconciliation summary.
package report

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"ukbqsm/internal/fileutil"
)

// FileName is the summary file written inside the lists directory.
const FileName = "summary.txt"

// Kind distinguishes scanned fields from derived sets.
type Kind string

const (
	KindField   Kind = "field"
	KindDerived Kind = "derived"
)

// Entry is one row of the summary.
type Entry struct {
	Name       string
	Kind       Kind
	Definition string
	Count      int
}

// Summary is the full report for one reconciliation run.
type Summary struct {
	RunID       string
	GeneratedAt time.Time
	Entries     []Entry
}

const (
	headerTitle     = "Subject list summary"
	headerGenerated = "Generated: "
	headerRun       = "Run: "
)

// Render returns the entries as a table.
func Render(entries []Entry) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"List", "Kind", "Definition", "Count"})
	for _, e := range entries {
		tw.AppendRow(table.Row{e.Name, string(e.Kind), e.Definition, e.Count})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

// Render returns the full report text.
func (s Summary) Render() string {
	var b strings.Builder
	b.WriteString(headerTitle)
	b.WriteByte('\n')
	b.WriteString(headerGenerated)
	b.WriteString(s.GeneratedAt.UTC().Format(time.RFC3339))
	b.WriteByte('\n')
	b.WriteString(headerRun)
	b.WriteString(s.RunID)
	b.WriteString("\n\n")
	b.WriteString(Render(s.Entries))
	b.WriteByte('\n')
	return b.String()
}

// Count returns the count reported for name.
func (s Summary) Count(name string) (int, bool) {
	for _, e := range s.Entries {
		if e.Name == name {
			return e.Count, true
		}
	}
	return 0, false
}

// Write atomically replaces path with the rendered summary.
func Write(path string, s Summary) error {
	if err := fileutil.WriteFileAtomic(path, []byte(s.Render()), 0o644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

// Read parses a summary previously produced by Write.
func Read(path string) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, fmt.Errorf("open summary: %w", err)
	}
	defer f.Close()

	var s Summary
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, headerGenerated):
			ts, err := time.Parse(time.RFC3339, strings.TrimPrefix(line, headerGenerated))
			if err != nil {
				return Summary{}, fmt.Errorf("summary timestamp: %w", err)
			}
			s.GeneratedAt = ts
		case strings.HasPrefix(line, headerRun):
			s.RunID = strings.TrimSpace(strings.TrimPrefix(line, headerRun))
		case strings.HasPrefix(line, "│"):
			if entry, ok := parseRow(line); ok {
				s.Entries = append(s.Entries, entry)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return Summary{}, err
	}
	if s.RunID == "" {
		return Summary{}, errors.New("summary is missing its run identifier")
	}
	return s, nil
}

func parseRow(line string) (Entry, bool) {
	cells := strings.Split(strings.Trim(line, "│"), "│")
	if len(cells) != 4 {
		return Entry{}, false
	}
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
	}
	count, err := strconv.Atoi(cells[3])
	if err != nil {
		return Entry{}, false
	}
	return Entry{Name: cells[0], Kind: Kind(cells[1]), Definition: cells[2], Count: count}, true
}
