package alertlog

import "time"

// TimestampLayout is the local wall-clock format shown next to each entry.
const TimestampLayout = "15:04:05"

// Entry records one delivery attempt. An entry exists whether or not the
// notification actually reached the desktop.
type Entry struct {
	ID        int64
	Message   string // "<title>: <body>"
	Timestamp string // At formatted with TimestampLayout in local time
	At        time.Time
}
