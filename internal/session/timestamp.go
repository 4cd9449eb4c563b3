package session

import (
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/stlalpha/vision3/internal/logging"
	"github.com/stlalpha/vision3/internal/telnet"
)

// timestampSpec schedules the periodic timestamp emission every ten
// seconds, expressed declaratively rather than as a sleep loop.
const timestampSpec = "@every 10s"

// TimestampTask periodically writes a timestamp line to a session's writer
// until stopped. One TimestampTask is created per connection.
type TimestampTask struct {
	w       *Writer
	mode    telnet.Mode
	cron    *cron.Cron
	entryID cron.EntryID
	stopped atomic.Bool
}

// NewTimestampTask creates and starts a timestamp emitter writing to w,
// tagging any log output with mode.
func NewTimestampTask(w *Writer, mode telnet.Mode) *TimestampTask {
	t := &TimestampTask{
		w:    w,
		mode: mode,
		cron: cron.New(),
	}
	id, err := t.cron.AddFunc(timestampSpec, t.emit)
	if err != nil {
		// timestampSpec is a fixed, valid expression; this cannot happen
		// in practice, but fail safe by never scheduling.
		logging.Errorf(mode, "failed to schedule timestamp task: %v", err)
		return t
	}
	t.entryID = id
	t.cron.Start()
	return t
}

// emit writes a single timestamp line, skipping it if the task has already
// been stopped.
func (t *TimestampTask) emit() {
	if t.stopped.Load() {
		return
	}
	line := "\r\n[TIMESTAMP] " + time.Now().Format("2006-01-02 15:04:05") + "\r\n"
	if err := t.w.WriteString(line); err != nil {
		logging.Warnf(t.mode, "timestamp write failed, stopping task: %v", err)
		t.Stop()
	}
}

// Stop halts further timestamp emission. It is safe to call multiple times
// and from any goroutine.
func (t *TimestampTask) Stop() {
	if t.stopped.Swap(true) {
		return
	}
	t.cron.Remove(t.entryID)
	// Stop returns a context that is done once running jobs finish; the
	// task has no further work after this point so the context is not
	// waited on.
	t.cron.Stop()
}
