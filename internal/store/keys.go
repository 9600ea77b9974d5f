package store

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Separator joins a globe id and an event id inside a key.
const Separator = "--"

// EventIDWidth is the fixed decimal width of every event id.
const EventIDWidth = 20

// rangeSentinel is the highest Unicode code point; every event id sorts below it.
const rangeSentinel = "\U0010FFFF"

// StartCursor requests a scan from the first event of a globe.
const StartCursor = "0"

// ErrInvalidCursor is returned when a cursor is not a decimal event id.
var ErrInvalidCursor = errors.New("invalid cursor")

// FormatEventID renders a clock value as a fixed-width event id.
func FormatEventID(n int64) string {
	return fmt.Sprintf("%0*d", EventIDWidth, n)
}

// ParseEventID parses an event id of any width up to EventIDWidth.
func ParseEventID(id string) (int64, error) {
	if id == "" || len(id) > EventIDWidth {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCursor, id)
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%w: %q", ErrInvalidCursor, id)
		}
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCursor, id)
	}
	return n, nil
}

// NormalizeCursor converts a client cursor into the fixed-width form used in
// keys. The start cursor and the empty string normalize to "".
func NormalizeCursor(cursor string) (string, error) {
	if cursor == "" || cursor == StartCursor {
		return "", nil
	}
	n, err := ParseEventID(cursor)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	return FormatEventID(n), nil
}

// Key builds the storage key of an event.
func Key(globeID, eventID string) string {
	return globeID + Separator + eventID
}

// Bounds returns the half-open key range [start, end) covering one globe.
func Bounds(globeID string) (start, end string) {
	prefix := globeID + Separator
	return prefix, prefix + rangeSentinel
}

// SplitKey returns the globe id and event id of a key.
func SplitKey(key string) (globeID, eventID string, ok bool) {
	return strings.Cut(key, Separator)
}

// window describes one scan request after cursor normalization.
type window struct {
	start string // inclusive lower bound
	end   string // exclusive upper bound
	skip  string // key to drop if it is the first one seen; empty for none
	limit int    // <= 0 means unbounded
}

func newWindow(globeID, after string, limit int) (window, error) {
	cursor, err := NormalizeCursor(after)
	if err != nil {
		return window{}, err
	}
	start, end := Bounds(globeID)
	w := window{start: start, end: end, limit: limit}
	if cursor != "" {
		w.start = Key(globeID, cursor)
		w.skip = w.start
	}
	return w, nil
}

// fetch is how many rows a backend must read to fill the window.
func (w window) fetch() int {
	if w.limit <= 0 {
		return -1
	}
	if w.skip != "" {
		return w.limit + 1
	}
	return w.limit
}

// collect applies skip and limit to keys delivered in ascending order.
// It returns false once the window is full.
func (w window) collect(entries []Entry, key string, value []byte) ([]Entry, bool) {
	if w.skip != "" && key == w.skip && len(entries) == 0 {
		return entries, true
	}
	_, id, _ := SplitKey(key)
	entries = append(entries, Entry{EventID: id, Payload: value})
	if w.limit > 0 && len(entries) >= w.limit {
		return entries, false
	}
	return entries, true
}
