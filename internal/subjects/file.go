package subjects

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"ukbqsm/internal/fileutil"
)

// ReadList parses a newline-delimited list file and validates it. Blank lines
// are ignored.
func ReadList(path string) (List, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open subject list: %w", err)
	}
	defer f.Close()

	list, err := ParseList(f)
	if err != nil {
		return nil, fmt.Errorf("subject list %s: %w", path, err)
	}
	return list, nil
}

// ParseList reads identifiers from r, one per line, and validates them.
func ParseList(r io.Reader) (List, error) {
	list := List{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		list = append(list, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if err := list.Validate(); err != nil {
		return nil, err
	}
	return list, nil
}

// WriteList atomically replaces path with the list, one identifier per line.
func WriteList(path string, list List) error {
	if err := list.Validate(); err != nil {
		return fmt.Errorf("refusing to write %s: %w", path, err)
	}
	var buf bytes.Buffer
	for _, id := range list {
		buf.WriteString(id)
		buf.WriteByte('\n')
	}
	if err := fileutil.WriteFileAtomic(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write subject list: %w", err)
	}
	return nil
}

// CountLines returns the number of non-blank lines in path.
func CountLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) != "" {
			count++
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return 0, err
	}
	return count, nil
}
