package bep

import "regexp"

var (
	// errorPattern introduces a diagnostic: Bazel's ERROR: prefix or
	// the banner printed when the server dies with an internal error.
	errorPattern    = regexp.MustCompile(`ERROR:|FATAL: bazel crashed`)
	logLevelPattern = regexp.MustCompile(`^(DEBUG|INFO|WARNING): `)
	progressPattern = regexp.MustCompile(`^\[[0-9,]+ */ *[0-9,]+\]`)
)

// ErrorCollector filters genuine diagnostic text out of Bazel's mixed
// progress/log/error stderr. Bazel spreads one logical error across
// several stderr lines with no terminator, so after an error line the
// collector keeps appending until a clearly unrelated line type shows
// up.
type ErrorCollector struct {
	pendingError bool
	messages     []string
}

// Collect feeds one chunk of stderr text and returns the messages
// accumulated so far. An empty chunk is a peek: it returns the current
// list without touching state.
func (c *ErrorCollector) Collect(line string) []string {
	if line == "" {
		return c.messages
	}

	if loc := errorPattern.FindStringIndex(line); loc != nil {
		c.messages = append(c.messages, line[loc[0]:])
		c.pendingError = true
		return c.messages
	}

	if c.pendingError && !logLevelPattern.MatchString(line) && !progressPattern.MatchString(line) {
		// Continuation of the previous error paragraph
		c.messages = append(c.messages, line)
		return c.messages
	}

	c.pendingError = false
	return c.messages
}

// Messages returns the accumulated diagnostic messages
func (c *ErrorCollector) Messages() []string {
	return c.messages
}
