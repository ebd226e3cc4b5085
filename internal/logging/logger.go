package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"
)

const (
	// lifecycleStream names the stream carrying slog's startup/shutdown/
	// error output, written through RotatingWriter directly.
	lifecycleStream = "dispatchd"
	dateFormat      = "20060102"
)

// logFileName matches "<stream>-YYYYMMDD.log", used both to name a
// rotated file and, in clearOldLogs, to recover its stream and date
// from an existing directory entry.
var logFileName = regexp.MustCompile(`^(.+)-(\d{8})\.log$`)

// RotatingWriter is an io.Writer fan-out shared by every log stream this
// server produces: the lifecycle stream (log/slog, via Write/SetupWriter)
// and, via Stream, the structured access-log stream connection.go emits
// through zerolog. Each stream rotates and is cleaned up independently
// but shares one goroutine pair and one keepDays policy:
//   - Rotation enabled:  <stream>-YYYYMMDD.log, new file each day
//   - Rotation disabled: <stream>.log (fixed name)
//   - Old log files are cleaned up based on keepDays, across all streams
type RotatingWriter struct {
	mu              sync.Mutex
	logDir          string
	rotationEnabled bool
	keepDays        int

	files map[string]*streamFile
}

type streamFile struct {
	file *os.File
	date string // YYYYMMDD of the open file
}

// NewRotatingWriter creates a RotatingWriter. Stream files are opened
// lazily on first write to each stream.
func NewRotatingWriter(logDir string, rotationEnabled bool, keepDays int) *RotatingWriter {
	return &RotatingWriter{
		logDir:          logDir,
		rotationEnabled: rotationEnabled,
		keepDays:        keepDays,
		files:           make(map[string]*streamFile),
	}
}

// Write implements io.Writer for the lifecycle stream, so a
// RotatingWriter can be handed straight to slog.NewTextHandler.
func (w *RotatingWriter) Write(p []byte) (int, error) {
	return w.writeStream(lifecycleStream, p)
}

// Stream returns an io.Writer scoped to name, rotated and cleaned up
// alongside the lifecycle stream but kept in its own file. Used to
// route connection.go's zerolog access log through the same rotation
// policy as the lifecycle log, instead of a bare os.Stdout.
func (w *RotatingWriter) Stream(name string) io.Writer {
	return namedWriter{w: w, name: name}
}

type namedWriter struct {
	w    *RotatingWriter
	name string
}

func (nw namedWriter) Write(p []byte) (int, error) {
	return nw.w.writeStream(nw.name, p)
}

func (w *RotatingWriter) writeStream(name string, p []byte) (int, error) {
	// Always echo to stdout regardless of stream, for container log
	// collection that only scrapes the process's own stdout.
	os.Stdout.Write(p)

	w.mu.Lock()
	defer w.mu.Unlock()

	sf, err := w.ensureFile(name)
	if err != nil {
		return len(p), nil // don't fail the caller if file logging fails
	}

	n, err := sf.file.Write(p)
	if err != nil {
		w.closeFileLocked(name)
		return len(p), nil
	}
	return n, nil
}

// Start begins background goroutines for daily rotation and hourly cleanup.
func (w *RotatingWriter) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.checkRotation()
			}
		}
	}()

	go func() {
		w.clearOldLogs()

		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.clearOldLogs()
			}
		}
	}()
}

// Close closes every open stream file.
func (w *RotatingWriter) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for name := range w.files {
		w.closeFileLocked(name)
	}
}

// ensureFile opens name's log file if not already open for today. Must
// be called with mu held.
func (w *RotatingWriter) ensureFile(name string) (*streamFile, error) {
	today := time.Now().Format(dateFormat)

	sf, open := w.files[name]
	if open && sf.file != nil && sf.date == today {
		return sf, nil
	}
	w.closeFileLocked(name)

	if err := os.MkdirAll(w.logDir, 0755); err != nil {
		return nil, err
	}

	var filename string
	if w.rotationEnabled {
		filename = fmt.Sprintf("%s-%s.log", name, today)
	} else {
		filename = name + ".log"
	}

	f, err := os.OpenFile(
		filepath.Join(w.logDir, filename),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND,
		0644,
	)
	if err != nil {
		return nil, err
	}

	sf = &streamFile{file: f, date: today}
	w.files[name] = sf
	return sf, nil
}

// closeFileLocked closes name's current file, if open. Must be called with mu held.
func (w *RotatingWriter) closeFileLocked(name string) {
	sf, ok := w.files[name]
	if !ok || sf.file == nil {
		return
	}
	sf.file.Close()
	delete(w.files, name)
}

// checkRotation closes any stream whose date has rolled over, so the
// next write reopens it under the new day's filename.
func (w *RotatingWriter) checkRotation() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.rotationEnabled {
		return
	}

	today := time.Now().Format(dateFormat)
	for name, sf := range w.files {
		if sf.date != "" && sf.date != today {
			w.closeFileLocked(name)
		}
	}
}

// clearOldLogs deletes rotated log files, across every stream, older
// than keepDays.
func (w *RotatingWriter) clearOldLogs() {
	if !w.rotationEnabled || w.keepDays <= 0 {
		return
	}

	entries, err := os.ReadDir(w.logDir)
	if err != nil {
		return
	}

	cutoff := time.Now().AddDate(0, 0, -w.keepDays)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := logFileName.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		fileDate, err := time.Parse(dateFormat, m[2])
		if err != nil {
			continue
		}
		if !fileDate.Before(cutoff) {
			continue
		}
		path := filepath.Join(w.logDir, entry.Name())
		if err := os.Remove(path); err == nil {
			fmt.Fprintf(os.Stdout, "time=%s level=INFO msg=\"deleted old log file\" stream=%s path=%s\n",
				time.Now().Format(time.RFC3339), m[1], path)
		}
	}
}

// SetupWriter creates a RotatingWriter and returns an io.Writer suitable
// for slog's lifecycle stream. If logDir is empty, returns os.Stdout
// only, whatever rotationEnabled says, with no access-log rotation
// either; the access log then keeps its default stdout output.
func SetupWriter(logDir string, rotationEnabled bool, keepDays int) io.Writer {
	if logDir == "" {
		return os.Stdout
	}
	return NewRotatingWriter(logDir, rotationEnabled, keepDays)
}
