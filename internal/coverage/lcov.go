package coverage

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// LineDetail is one per-line execution count from a coverage report.
// Lines are 1-based as written by the tool.
type LineDetail struct {
	Line int
	Hits int
}

// FileRecord is the coverage of a single source file: total
// instrumented lines (Found), lines with at least one hit (Hit), and
// the per-line detail list.
type FileRecord struct {
	Path    string
	Found   int
	Hit     int
	Details []LineDetail
}

// ParseLCOV reads an LCOV-format combined coverage report. Unknown
// directives are skipped; only records with an SF: path are kept.
func ParseLCOV(r io.Reader) ([]FileRecord, error) {
	var records []FileRecord
	var current *FileRecord

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch {
		case strings.HasPrefix(line, "SF:"):
			current = &FileRecord{Path: strings.TrimPrefix(line, "SF:")}

		case strings.HasPrefix(line, "DA:"):
			if current == nil {
				continue
			}
			parts := strings.SplitN(strings.TrimPrefix(line, "DA:"), ",", 3)
			if len(parts) < 2 {
				continue
			}
			lineNo, err1 := strconv.Atoi(parts[0])
			hits, err2 := strconv.Atoi(parts[1])
			if err1 != nil || err2 != nil {
				continue
			}
			current.Details = append(current.Details, LineDetail{Line: lineNo, Hits: hits})

		case strings.HasPrefix(line, "LF:"):
			if current != nil {
				current.Found, _ = strconv.Atoi(strings.TrimPrefix(line, "LF:"))
			}

		case strings.HasPrefix(line, "LH:"):
			if current != nil {
				current.Hit, _ = strconv.Atoi(strings.TrimPrefix(line, "LH:"))
			}

		case line == "end_of_record":
			if current != nil {
				records = append(records, *current)
				current = nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return records, fmt.Errorf("failed to read coverage report: %w", err)
	}

	// Tolerate a truncated trailing record
	if current != nil {
		records = append(records, *current)
	}

	return records, nil
}

// ParseLCOVFile reads the LCOV report at path
func ParseLCOVFile(path string) ([]FileRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open coverage report: %w", err)
	}
	defer func() { _ = file.Close() }()

	return ParseLCOV(file)
}
