// Package dedup suppresses duplicate Slack event deliveries through a
// windowed on-disk ledger. Slack redelivers events when an ack is slow or
// lost; the ledger keeps one line per processed delivery so a restarted
// process still recognizes recent redeliveries.
package dedup

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tinybirdco/birdwatcher/internal/common/logging"
)

// DefaultWindow is how long a processed delivery is remembered.
const DefaultWindow = 5 * time.Minute

// Ledger records processed delivery keys for a bounded window.
type Ledger interface {
	// Seen reports whether the key was marked within the window.
	Seen(key string) bool
	// Mark records the key as processed at the current time.
	Mark(key string)
}

// DeliveryKey builds the idempotency key for one Slack event delivery. The
// triple is stable across redeliveries of the same event and distinct across
// different events, including edits of the same message.
func DeliveryKey(channel, ts, user string) string {
	return fmt.Sprintf("%s_%s_%s", channel, ts, user)
}

// FileLedger is a flat-file Ledger. Each line is `<key>|<unix_seconds>`.
// Every Seen call reads the file, drops expired lines, rewrites the file, and
// then checks membership. All I/O and parse failures fail open: a lost ledger
// means a rare duplicate reply, never a dropped reply.
type FileLedger struct {
	path   string
	window time.Duration
	logger *logging.Logger
	now    func() time.Time
}

// Option configures a FileLedger
type Option func(*FileLedger)

// WithWindow overrides the dedup window
func WithWindow(window time.Duration) Option {
	return func(l *FileLedger) {
		if window > 0 {
			l.window = window
		}
	}
}

// WithClock overrides the time source, used in tests
func WithClock(now func() time.Time) Option {
	return func(l *FileLedger) {
		l.now = now
	}
}

// NewFileLedger creates a ledger backed by the file at path. An empty path
// places the ledger under the system temp directory.
func NewFileLedger(path string, logger *logging.Logger, opts ...Option) *FileLedger {
	if path == "" {
		path = filepath.Join(os.TempDir(), "birdwatcher_processed_messages.txt")
	}

	l := &FileLedger{
		path:   path,
		window: DefaultWindow,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Seen prunes expired entries and reports whether key is still recorded.
func (l *FileLedger) Seen(key string) bool {
	entries, err := l.readEntries()
	if err != nil {
		if !os.IsNotExist(err) {
			l.logger.WarnKV("Failed to read dedup ledger, treating delivery as new", "path", l.path, "error", err)
		}
		return false
	}

	live := l.prune(entries)
	if len(live) != len(entries) {
		if err := l.writeEntries(live); err != nil {
			l.logger.WarnKV("Failed to rewrite dedup ledger", "path", l.path, "error", err)
		}
	}

	for _, e := range live {
		if e.key == key {
			return true
		}
	}
	return false
}

// Mark appends the key with the current timestamp.
func (l *FileLedger) Mark(key string) {
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		l.logger.WarnKV("Failed to open dedup ledger for append", "path", l.path, "error", err)
		return
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			l.logger.WarnKV("Failed to close dedup ledger", "path", l.path, "error", closeErr)
		}
	}()

	line := fmt.Sprintf("%s|%.6f\n", key, float64(l.now().UnixNano())/1e9)
	if _, err := f.WriteString(line); err != nil {
		l.logger.WarnKV("Failed to append to dedup ledger", "path", l.path, "error", err)
	}
}

type entry struct {
	key string
	at  time.Time
}

func (l *FileLedger) readEntries() ([]entry, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, err
	}

	var entries []entry
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		key, tsText, ok := strings.Cut(line, "|")
		if !ok {
			continue // malformed line, drop on next rewrite
		}
		ts, err := strconv.ParseFloat(tsText, 64)
		if err != nil {
			continue
		}

		sec, frac := int64(ts), ts-float64(int64(ts))
		entries = append(entries, entry{
			key: key,
			at:  time.Unix(sec, int64(frac*1e9)),
		})
	}
	return entries, nil
}

func (l *FileLedger) prune(entries []entry) []entry {
	cutoff := l.now().Add(-l.window)
	live := entries[:0]
	for _, e := range entries {
		if e.at.After(cutoff) {
			live = append(live, e)
		}
	}
	return live
}

func (l *FileLedger) writeEntries(entries []entry) error {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s|%.6f\n", e.key, float64(e.at.UnixNano())/1e9)
	}
	return os.WriteFile(l.path, []byte(b.String()), 0o600)
}
