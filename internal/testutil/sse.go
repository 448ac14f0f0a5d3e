package testutil

import (
	"bufio"
	"strings"
	"testing"
)

// SSEEvent is one parsed server-sent event. The stash wire protocol
// carries the discriminator inside the JSON payload, so only the data
// field matters here.
type SSEEvent struct {
	Data string // data: value (multi-line joined with \n)
}

// ParseSSEEvents parses an SSE response body into structured events.
//
// Follows the W3C framing rules the server relies on:
//   - Multiple "data:" lines are joined with newline
//   - An empty line terminates an event
//   - Comment lines starting with ":" are ignored
func ParseSSEEvents(t *testing.T, body string) []SSEEvent {
	t.Helper()

	var events []SSEEvent
	var dataLines []string
	lineNum := 0

	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "data: "):
			dataLines = append(dataLines, strings.TrimPrefix(line, "data: "))

		case line == "":
			if len(dataLines) > 0 {
				events = append(events, SSEEvent{Data: strings.Join(dataLines, "\n")})
				dataLines = nil
			}

		case strings.HasPrefix(line, ":"):
			// Comment, ignored.

		default:
			t.Fatalf("SSE parse error at line %d: unexpected line %q", lineNum, line)
		}
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("SSE scan error: %v", err)
	}
	if len(dataLines) > 0 {
		t.Fatalf("SSE stream ended without terminating blank line (pending data %q)", dataLines)
	}

	return events
}
