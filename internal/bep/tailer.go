package bep

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Tailer incrementally consumes a build event log while Bazel is still
// appending to it. Lines are fed to an embedded Parser as they arrive;
// Finish drains whatever remains, returns the outcome, and deletes the
// log file.
type Tailer struct {
	Path string

	watcher  *fsnotify.Watcher
	parser   *Parser
	stopChan chan struct{}
	stopped  chan struct{} // Signals when watchLoop has stopped
	logger   Logger
	file     *os.File
	reader   *bufio.Reader
	partial  []byte     // Incomplete trailing line awaiting its newline
	readerMu sync.Mutex // Protects concurrent access to reader, partial, and parser
}

// NewTailer creates a tailer for the event log at path. The file is
// created empty if Bazel has not opened it yet.
func NewTailer(path string, logger Logger) (*Tailer, error) {
	if logger == nil {
		logger = &noopLogger{}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create event log directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}

	return &Tailer{
		Path:     path,
		parser:   NewParser(),
		stopChan: make(chan struct{}),
		stopped:  make(chan struct{}),
		logger:   logger,
		file:     file,
		reader:   bufio.NewReader(file),
	}, nil
}

// Start begins watching the event log for appended lines
func (t *Tailer) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	t.watcher = watcher

	if err := watcher.Add(t.Path); err != nil {
		return fmt.Errorf("failed to watch event log: %w", err)
	}

	go t.watchLoop()

	// Pick up any content written before the watch was established
	go t.readLines()

	return nil
}

// readLines feeds complete lines from the current file position into
// the parser. The producer writes lines in arbitrary chunks, so a read
// can end mid-line; the fragment is held back and prepended once the
// rest of the line arrives. Only newline-terminated lines reach the
// parser.
func (t *Tailer) readLines() {
	t.readerMu.Lock()
	defer t.readerMu.Unlock()

	for {
		chunk, err := t.reader.ReadBytes('\n')
		if err != nil {
			t.partial = append(t.partial, chunk...)
			if err != io.EOF {
				t.logger.Error("Error reading event log: %v", err)
			}
			break
		}

		line := chunk
		if len(t.partial) > 0 {
			line = append(t.partial, chunk...)
			t.partial = nil
		}
		t.parser.FeedLine(line)
	}
}

// watchLoop triggers a read whenever the event log grows
func (t *Tailer) watchLoop() {
	defer close(t.stopped)

	for {
		select {
		case event, ok := <-t.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Write == fsnotify.Write {
				t.readLines()
			}

		case err, ok := <-t.watcher.Errors:
			if !ok {
				return
			}
			t.logger.Error("Watcher error: %v", err)

		case <-t.stopChan:
			return
		}
	}
}

// Finish stops watching, drains any remaining lines, deletes the event
// log, and returns the final outcome. Must be called after the
// producing process has exited.
func (t *Tailer) Finish() *Outcome {
	select {
	case <-t.stopChan:
		// Already stopped
	default:
		close(t.stopChan)
	}

	if t.watcher != nil {
		<-t.stopped
		_ = t.watcher.Close()
	}

	// Final drain for anything written after the last notification
	t.readLines()

	t.readerMu.Lock()
	defer t.readerMu.Unlock()

	// The producer has exited, so a held-back fragment is a final line
	// that simply lacks its terminator
	if len(t.partial) > 0 {
		t.parser.FeedLine(t.partial)
		t.partial = nil
	}

	if t.file != nil {
		_ = t.file.Close()
		t.file = nil
	}

	// Best effort: a leftover log is a nuisance, not a failure
	if err := os.Remove(t.Path); err != nil {
		t.logger.Debug("Failed to delete event log %s: %v", t.Path, err)
	}

	return t.parser.Outcome()
}

// noopLogger is a default logger that does nothing
type noopLogger struct{}

func (n *noopLogger) Debug(format string, args ...interface{}) {}
func (n *noopLogger) Error(format string, args ...interface{}) {}
