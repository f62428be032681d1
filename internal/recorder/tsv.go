package recorder

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// TSV appends one line per header:
// port, type, serial, irt, seq, expected, payload hex.
type TSV struct {
	mu   sync.Mutex
	file *os.File
	w    *bufio.Writer
}

// NewTSV opens path for appending, creating parent directories.
func NewTSV(path string) (*TSV, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create recording directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open recording %s: %w", path, err)
	}
	return &TSV{file: f, w: bufio.NewWriter(f)}, nil
}

// Record writes e and flushes so the file is usable while the run continues.
func (t *TSV) Record(e Entry) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, err := fmt.Fprintf(t.w, "%d\t%s\t%d\t%d\t%d\t%d\t%s\n",
		e.Port, e.Type, e.Serial, e.IRT, e.Seq, e.Expected, hex.EncodeToString(e.Payload))
	if err != nil {
		return err
	}
	return t.w.Flush()
}

// Close flushes and closes the file.
func (t *TSV) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.w.Flush(); err != nil {
		t.file.Close()
		return err
	}
	return t.file.Close()
}
