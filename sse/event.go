package sse

import (
	"strconv"
	"strings"
)

// Event is one Server-Sent Event. Data may contain embedded newlines; each
// source line becomes its own "data:" wire line per the SSE format.
type Event struct {
	Data    string
	Name    string
	ID      string
	RetryMs int
}

// formatEvent renders e into SSE wire format: optional event:/id:/retry:
// lines (in that order, per §6's wire format), one data: line per source
// line, terminated by a blank line.
func formatEvent(e Event) []byte {
	var b strings.Builder
	if e.Name != "" {
		b.WriteString("event: ")
		b.WriteString(e.Name)
		b.WriteByte('\n')
	}
	if e.ID != "" {
		b.WriteString("id: ")
		b.WriteString(e.ID)
		b.WriteByte('\n')
	}
	if e.RetryMs > 0 {
		b.WriteString("retry: ")
		b.WriteString(strconv.Itoa(e.RetryMs))
		b.WriteByte('\n')
	}
	data := e.Data
	if data == "" {
		b.WriteString("data:\n")
	} else {
		for _, line := range strings.Split(data, "\n") {
			b.WriteString("data: ")
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	b.WriteByte('\n')
	return []byte(b.String())
}

// formatComment renders an SSE comment line (used for keep-alive pings).
func formatComment(comment string) []byte {
	var b strings.Builder
	for _, line := range strings.Split(comment, "\n") {
		b.WriteByte(':')
		b.WriteByte(' ')
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return []byte(b.String())
}
