package junit

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Action is the lifecycle step a TestEvent describes
type Action string

const (
	ActionOutput  Action = "output"
	ActionPass    Action = "pass"
	ActionFail    Action = "fail"
	ActionErrored Action = "errored"
	ActionSkip    Action = "skip"
)

// TestEvent is one discrete test lifecycle event produced from a
// report document. For a failing or errored test all of its output
// events appear, in order, immediately before the terminal event;
// consumers rely on that to attach captured output to the right
// diagnostic location.
type TestEvent struct {
	Action  Action
	Package string
	Test    string
	Elapsed float64 // seconds, terminal events only
	Output  string  // output events only
}

// Document is a parsed test report: testsuites/testsuite/testcase
type Document struct {
	XMLName xml.Name `xml:"testsuites"`
	Suites  []Suite  `xml:"testsuite"`
}

// Suite groups the cases of one package
type Suite struct {
	Name  string `xml:"name,attr"`
	Cases []Case `xml:"testcase"`
}

// Case is a single reported test case
type Case struct {
	Name    string  `xml:"name,attr"`
	Time    string  `xml:"time,attr"`
	Failure *Detail `xml:"failure"`
	Error   *Detail `xml:"error"`
	Skipped *Detail `xml:"skipped"`
}

// Detail carries the free text of a failure/error/skipped element
type Detail struct {
	Message string `xml:"message,attr"`
	Content string `xml:",chardata"`
}

// Parse decodes one test report document
func Parse(r io.Reader) (*Document, error) {
	var doc Document
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse test report: %w", err)
	}
	return &doc, nil
}

// ParseFile decodes the test report at path
func ParseFile(path string) (*Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open test report: %w", err)
	}
	defer func() { _ = file.Close() }()

	return Parse(file)
}

// Convert flattens a report document into an ordered event sequence.
// Suites with no test cases contribute nothing. The conversion is
// total: a syntactically valid document never fails, even when
// failure/error elements are absent.
func Convert(doc *Document) []TestEvent {
	var events []TestEvent

	for _, suite := range doc.Suites {
		if len(suite.Cases) == 0 {
			continue
		}

		for _, c := range suite.Cases {
			action := ActionPass
			var detail *Detail
			switch {
			case c.Failure != nil:
				action = ActionFail
				detail = c.Failure
			case c.Error != nil:
				action = ActionErrored
				detail = c.Error
			case c.Skipped != nil:
				action = ActionSkip
			}

			// Captured output precedes the terminal event, one event
			// per non-empty line
			if detail != nil {
				text := detail.Content
				if strings.TrimSpace(text) == "" {
					text = detail.Message
				}
				for _, line := range strings.Split(text, "\n") {
					if strings.TrimSpace(line) == "" {
						continue
					}
					events = append(events, TestEvent{
						Action:  ActionOutput,
						Package: suite.Name,
						Test:    c.Name,
						Output:  line,
					})
				}
			}

			elapsed, _ := strconv.ParseFloat(c.Time, 64)
			events = append(events, TestEvent{
				Action:  action,
				Package: suite.Name,
				Test:    c.Name,
				Elapsed: elapsed,
			})
		}
	}

	return events
}
