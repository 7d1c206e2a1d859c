// Package parse extracts structured results from benchmark pod log text.
// Every parser follows the same rule (spec §4.4): if the text doesn't match
// the expected shape at all, that's a permanent *errors.Error built via
// NewParseError; if it matches but a required field is still missing, that's
// a transient *errors.TemporaryError built via NewIncompleteResults, and the
// caller should retry once more of the log has been captured.
package parse

import (
	"bufio"
	"bytes"
	"fmt"
	"time"

	operrors "github.com/stackhpc/perftest-operator/pkg/errors"
)

// RetryDelay is how long summarise should wait before re-parsing a log that
// is not yet complete, per spec §4.1's "~1s" Summarising retry.
const RetryDelay = time.Second

// scanLines returns every line of log as a string, stripped of the
// trailing newline, in order.
func scanLines(log []byte) []string {
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(log))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

// dropUntil returns the lines from (and including) the first line matching
// header, or nil if no such line exists.
func dropUntil(lines []string, header func(string) bool) []string {
	for i, line := range lines {
		if header(line) {
			return lines[i:]
		}
	}
	return nil
}

func parseError(kind, reason string) error {
	return operrors.NewParseError(fmt.Sprintf("%s: %s", kind, reason), nil)
}

func incomplete(kind, reason string) error {
	return operrors.NewIncompleteResults(RetryDelay)
}
