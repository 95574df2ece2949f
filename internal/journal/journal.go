// Package journal appends one JSON line per switch to date-organized files.
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dgnsrekt/tabfocus/internal/types"
)

const fileName = "switches.jsonl"

var (
	ErrClosed     = errors.New("journal closed")
	ErrBufferFull = errors.New("journal buffer full")
)

// Record is one switch outcome.
type Record struct {
	Time       time.Time       `json:"time"`
	TargetID   string          `json:"targetId"`
	Action     types.Action    `json:"action,omitempty"`
	TabID      string          `json:"tabId,omitempty"`
	URL        string          `json:"url,omitempty"`
	Modifiers  types.Modifiers `json:"modifiers"`
	DurationMS int64           `json:"durationMs"`
	Error      string          `json:"error,omitempty"`
}

// Writer queues records and writes them on a background goroutine.
// Files live at <baseDir>/<YYYY-MM-DD>/switches.jsonl and rotate by size.
type Writer struct {
	baseDir   string
	maxSizeMB int
	now       func() time.Time

	writeCh chan Record
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once

	mu          sync.Mutex
	currentDate string
	logger      *lumberjack.Logger
}

func New(baseDir string, bufferSize, maxSizeMB int) *Writer {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 50
	}
	w := &Writer{
		baseDir:   baseDir,
		maxSizeMB: maxSizeMB,
		now:       time.Now,
		writeCh:   make(chan Record, bufferSize),
		done:      make(chan struct{}),
	}
	w.wg.Add(1)
	go w.writeLoop()
	return w
}

// Write queues a record. It never blocks: a full buffer drops the record.
// A nil Writer discards everything.
func (w *Writer) Write(rec Record) error {
	if w == nil {
		return nil
	}
	if rec.Time.IsZero() {
		rec.Time = w.now().UTC()
	}
	select {
	case <-w.done:
		return ErrClosed
	default:
	}
	select {
	case w.writeCh <- rec:
		return nil
	default:
		slog.Warn("journal buffer full, dropping record", "target_id", rec.TargetID)
		return ErrBufferFull
	}
}

// Close stops the writer after flushing queued records.
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.once.Do(func() { close(w.done) })
	w.wg.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.logger != nil {
		err := w.logger.Close()
		w.logger = nil
		return err
	}
	return nil
}

func (w *Writer) writeLoop() {
	defer w.wg.Done()
	for {
		select {
		case rec := <-w.writeCh:
			w.writeRecord(rec)
		case <-w.done:
			for {
				select {
				case rec := <-w.writeCh:
					w.writeRecord(rec)
				default:
					return
				}
			}
		}
	}
}

func (w *Writer) writeRecord(rec Record) {
	data, err := json.Marshal(rec)
	if err != nil {
		slog.Error("journal marshal failed", "error", err)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	date := rec.Time.UTC().Format("2006-01-02")
	if w.logger == nil || date != w.currentDate {
		if err := w.openForDate(date); err != nil {
			slog.Error("journal open failed", "error", err, "date", date)
			return
		}
	}
	if _, err := w.logger.Write(append(data, '\n')); err != nil {
		slog.Error("journal write failed", "error", err)
	}
}

func (w *Writer) openForDate(date string) error {
	if w.logger != nil {
		w.logger.Close()
		w.logger = nil
	}
	dir := filepath.Join(w.baseDir, date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create journal dir: %w", err)
	}
	filename := filepath.Join(dir, fileName)
	w.logger = &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    w.maxSizeMB,
		MaxBackups: 20,
		MaxAge:     30,
	}
	w.currentDate = date
	slog.Debug("journal file opened", "file", filename)
	return nil
}
