package logtail

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Read returns at most maxLines from the end of the file at path. A maxLines
// of zero or less returns every line.
func Read(path string, maxLines int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if maxLines <= 0 {
		var lines []string
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read log: %w", err)
		}
		return lines, nil
	}

	ring := make([]string, maxLines)
	count := 0
	idx := 0
	for scanner.Scan() {
		ring[idx] = scanner.Text()
		idx = (idx + 1) % maxLines
		if count < maxLines {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	lines := make([]string, count)
	if count == maxLines {
		for i := 0; i < count; i++ {
			lines[i] = ring[(idx+i)%maxLines]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, nil
}

// Entry is one parsed log line.
type Entry struct {
	Timestamp string
	Component string
	Message   string
}

// "2006/01/02 15:04:05 [component] message", as written by the log package.
var linePattern = regexp.MustCompile(`^(\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2}(?:\.\d+)?) (?:\[([\w:-]+)\] )?(.*)$`)

// Parse splits a log line into its parts. Lines that do not match the log
// package's format come back whole in Message.
func Parse(line string) Entry {
	m := linePattern.FindStringSubmatch(strings.TrimRight(line, "\r"))
	if m == nil {
		return Entry{Message: line}
	}
	return Entry{Timestamp: m[1], Component: m[2], Message: m[3]}
}

// IsError reports whether the entry reads like a failure.
func (e Entry) IsError() bool {
	msg := strings.ToLower(e.Message)
	for _, word := range []string{"error", "fail", "panic", "could not", "disconnected"} {
		if strings.Contains(msg, word) {
			return true
		}
	}
	return false
}
