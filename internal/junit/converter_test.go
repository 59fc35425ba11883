package junit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleReport = `<?xml version="1.0" encoding="UTF-8"?>
<testsuites>
  <testsuite name="example.com/calc" tests="4" failures="1">
    <testcase name="TestAdd" time="0.050"></testcase>
    <testcase name="TestSub" time="0.120">
      <failure message="assertion failed">calc_test.go:42: got 3, want 4

stack line</failure>
    </testcase>
    <testcase name="TestMul" time="0.000">
      <skipped message="short mode"></skipped>
    </testcase>
    <testcase name="TestDiv" time="0.010">
      <error message="panic: divide by zero"></error>
    </testcase>
  </testsuite>
  <testsuite name="example.com/empty" tests="0"></testsuite>
</testsuites>`

func TestConvert_ActionsAndOrdering(t *testing.T) {
	doc, err := Parse(strings.NewReader(sampleReport))
	require.NoError(t, err)

	events := Convert(doc)

	// TestAdd: one terminal pass event
	require.NotEmpty(t, events)
	assert.Equal(t, TestEvent{
		Action: ActionPass, Package: "example.com/calc", Test: "TestAdd", Elapsed: 0.05,
	}, events[0])

	// TestSub: output events contiguous, in source order, immediately
	// before the terminal fail event; blank lines dropped
	assert.Equal(t, ActionOutput, events[1].Action)
	assert.Equal(t, "calc_test.go:42: got 3, want 4", events[1].Output)
	assert.Equal(t, ActionOutput, events[2].Action)
	assert.Equal(t, "stack line", events[2].Output)
	assert.Equal(t, ActionFail, events[3].Action)
	assert.Equal(t, "TestSub", events[3].Test)
	assert.InDelta(t, 0.12, events[3].Elapsed, 1e-9)

	// TestMul skipped, TestDiv errored with message fallback output
	assert.Equal(t, ActionSkip, events[4].Action)
	assert.Equal(t, ActionOutput, events[5].Action)
	assert.Equal(t, "panic: divide by zero", events[5].Output)
	assert.Equal(t, ActionErrored, events[6].Action)

	// The empty suite contributes no events
	assert.Len(t, events, 7)
}

func TestConvert_OutputPrecedesTerminalForEveryFailure(t *testing.T) {
	doc, err := Parse(strings.NewReader(sampleReport))
	require.NoError(t, err)

	events := Convert(doc)

	pending := map[string]bool{}
	for _, ev := range events {
		key := ev.Package + "/" + ev.Test
		if ev.Action == ActionOutput {
			pending[key] = true
			continue
		}
		if pending[key] {
			// The terminal event must belong to the same test the
			// preceding output events did
			assert.Contains(t, []Action{ActionFail, ActionErrored}, ev.Action,
				"output events for %s not followed by its terminal event", key)
			delete(pending, key)
		}
	}
	assert.Empty(t, pending, "output events with no terminal event")
}

func TestConvert_InvalidTimeIsZero(t *testing.T) {
	doc := &Document{Suites: []Suite{{
		Name:  "p",
		Cases: []Case{{Name: "TestX", Time: "not-a-number"}},
	}}}

	events := Convert(doc)
	require.Len(t, events, 1)
	assert.Zero(t, events[0].Elapsed)
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse(strings.NewReader("<testsuites><broken"))
	assert.Error(t, err)
}

func TestParseFile_Missing(t *testing.T) {
	_, err := ParseFile("/nonexistent/report.xml")
	assert.Error(t, err)
}
