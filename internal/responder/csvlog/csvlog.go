// Package csvlog appends escalation events and periodic snapshots to a
// rotating CSV file.
package csvlog

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/rileyhilliard/ramwatch/internal/config"
	"github.com/rileyhilliard/ramwatch/internal/errors"
	"github.com/rileyhilliard/ramwatch/internal/escalation"
	"github.com/rileyhilliard/ramwatch/internal/events"
	"github.com/rileyhilliard/ramwatch/internal/logger"
	"github.com/rileyhilliard/ramwatch/internal/responder"
)

// Name labels the CSV log subscriptions.
const Name = "csvlog"

// TimeLayout is how row timestamps are written.
const TimeLayout = "2006-01-02 15:04:05"

// EventSnapshot marks rows written by the snapshot timer.
const EventSnapshot = "SNAPSHOT"

// Header is the first row of a new log file.
var Header = []string{"Timestamp", "Event", "RAM%", "Details", "Top Processes"}

// rows maps escalation events to their label and detail text.
var rows = map[events.Type]struct{ label, details string }{
	events.TypeRAMHigh:   {"RAM_HIGH", "Threshold breached"},
	events.TypeRAMNormal: {"RAM_NORMAL", "RAM back to normal"},
	events.TypeSendEmail: {"EMAIL_SENT", "Alert email sent"},
	events.TypeRestart:   {"RESTART", "System restart triggered"},
}

// StatusFunc reports the latest policy state for snapshot rows.
type StatusFunc func() escalation.Status

// Logger writes one CSV row per escalation event.
type Logger struct {
	cfg    config.CSVLogConfig
	clock  clock.Clock
	log    logger.Logger
	status StatusFunc

	mu  sync.Mutex
	out io.WriteCloser
	w   *csv.Writer
}

// Option configures a Logger.
type Option func(*Logger)

// WithClock replaces the wall clock used for snapshots.
func WithClock(c clock.Clock) Option {
	return func(l *Logger) { l.clock = c }
}

// WithLogger sets the diagnostic logger.
func WithLogger(lg logger.Logger) Option {
	return func(l *Logger) { l.log = lg }
}

// WithStatus enables snapshot rows sourced from fn.
func WithStatus(fn StatusFunc) Option {
	return func(l *Logger) { l.status = fn }
}

// Open creates the log directory and file, writing the header when the file
// is new or empty. The file rotates at cfg.MaxSizeMB.
func Open(cfg config.CSVLogConfig, opts ...Option) (*Logger, error) {
	if cfg.Path == "" {
		return nil, errors.New(errors.ErrConfig,
			"CSV log path is empty",
			"Set csvlog.path or disable the CSV log.")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrResponder,
			"Couldn't create the CSV log directory",
			"Check that "+filepath.Dir(cfg.Path)+" is writable.")
	}
	needHeader := true
	if info, err := os.Stat(cfg.Path); err == nil && info.Size() > 0 {
		needHeader = false
	}

	out := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
	}
	l := newLogger(cfg, out, opts...)
	if needHeader {
		if err := l.write(Header); err != nil {
			_ = out.Close()
			return nil, err
		}
	}
	return l, nil
}

func newLogger(cfg config.CSVLogConfig, out io.WriteCloser, opts ...Option) *Logger {
	l := &Logger{
		cfg:   cfg,
		clock: clock.New(),
		log:   logger.Noop(),
		out:   out,
		w:     csv.NewWriter(out),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Attach subscribes to every escalation event.
func (l *Logger) Attach(s responder.Subscriber) {
	responder.Attach(s, Name, l.Handle, events.EscalationTypes...)
}

// Handle appends a row for ev.
func (l *Logger) Handle(_ context.Context, ev events.Event) error {
	row, ok := rows[ev.Type()]
	if !ok {
		return nil
	}
	return l.Record(ev.Timestamp(), row.label, ev.Usage(), row.details)
}

// Record appends an arbitrary row.
func (l *Logger) Record(at time.Time, label string, u events.Usage, details string) error {
	if err := l.write(Row(at, label, u, details)); err != nil {
		return err
	}
	l.log.Debug("logged %s at %.1f%%", label, u.RAMPercent)
	return nil
}

// Row formats one CSV record.
func Row(at time.Time, label string, u events.Usage, details string) []string {
	procs := make([]string, 0, len(u.TopProcesses))
	for _, p := range u.TopProcesses {
		procs = append(procs, fmt.Sprintf("%s(%.1f%%)", p.Name, p.Percent))
	}
	return []string{
		at.Format(TimeLayout),
		label,
		fmt.Sprintf("%.1f%%", u.RAMPercent),
		details,
		strings.Join(procs, ", "),
	}
}

func (l *Logger) write(record []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.w.Write(record); err != nil {
		return errors.WrapWithCode(err, errors.ErrResponder, "Couldn't write to the CSV log", "")
	}
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		return errors.WrapWithCode(err, errors.ErrResponder, "Couldn't write to the CSV log", "")
	}
	return nil
}

// Snapshot writes a SNAPSHOT row from the current status. It does nothing
// before the first sample has been seen.
func (l *Logger) Snapshot() error {
	if l.status == nil {
		return nil
	}
	st := l.status()
	if st.LatestAt.IsZero() {
		return nil
	}
	state := "normal"
	if st.High {
		state = "high"
	}
	details := fmt.Sprintf("Scheduled report, status %s", state)
	return l.Record(l.clock.Now(), EventSnapshot, st.Latest, details)
}

// Run writes snapshots every SnapshotInterval until ctx is done. It returns
// at once when snapshots are disabled.
func (l *Logger) Run(ctx context.Context) {
	if l.cfg.SnapshotInterval <= 0 || l.status == nil {
		return
	}
	ticker := l.clock.Ticker(l.cfg.SnapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.Snapshot(); err != nil {
				l.log.Warn("snapshot failed: %v", err)
			}
		}
	}
}

// Close flushes and closes the file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Flush()
	return l.out.Close()
}
