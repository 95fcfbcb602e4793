// Package logtail reads the tail of the bridge and host log files.
//
// # Reading Log Files
//
// Read uses a ring buffer of size maxLines, so the last lines of a large file
// come back in chronological order after a single pass and O(maxLines)
// memory. A missing file is not an error; it yields no lines.
//
//	lines, err := logtail.Read(cfg.HostLogPath(), 200)
//	if err != nil {
//		log.Printf("failed to read log: %v", err)
//	}
//
// # Parsing
//
// Parse splits a line written by the standard log package into timestamp,
// "[component]" tag and message so callers can style each part. Host stderr
// lines carry no prefix and are returned whole.
package logtail
