// Package daemon tracks the background `sos serve` process.
package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// ErrAlreadyRunning is returned by Acquire when another live server owns
// the PID file.
var ErrAlreadyRunning = errors.New("server already running")

// Record is what the server writes to its PID file.
type Record struct {
	PID       int       `json:"pid"`
	Port      int       `json:"port,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// URL returns the server's base URL, or "" when the port is unknown.
func (r Record) URL() string {
	if r.Port == 0 {
		return ""
	}
	return fmt.Sprintf("http://localhost:%d", r.Port)
}

// PIDFile manages the serve state file.
type PIDFile struct {
	Path string
}

// NewPIDFile creates a PIDFile manager for the given path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{Path: path}
}

// Acquire records the current process as the server listening on port.
// A stale file left by a dead process is replaced.
func (p *PIDFile) Acquire(port int) error {
	if pid, running := p.IsRunning(); running && pid != os.Getpid() {
		return fmt.Errorf("%w (PID %d)", ErrAlreadyRunning, pid)
	}
	return p.WriteRecord(Record{PID: os.Getpid(), Port: port, StartedAt: time.Now().UTC()})
}

// WriteRecord writes r to the file, creating its directory.
func (p *PIDFile) WriteRecord(r Record) error {
	if err := os.MkdirAll(filepath.Dir(p.Path), 0o755); err != nil {
		return fmt.Errorf("create PID directory: %w", err)
	}
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return os.WriteFile(p.Path, append(data, '\n'), 0o644)
}

// Read reads the record from the file. A bare PID is accepted too.
func (p *PIDFile) Read() (Record, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return Record{}, err
	}
	content := strings.TrimSpace(string(data))

	var r Record
	if strings.HasPrefix(content, "{") {
		if err := json.Unmarshal([]byte(content), &r); err != nil {
			return Record{}, fmt.Errorf("invalid PID file content: %w", err)
		}
	} else {
		pid, err := strconv.Atoi(content)
		if err != nil {
			return Record{}, fmt.Errorf("invalid PID file content: %w", err)
		}
		r.PID = pid
	}
	if r.PID <= 0 {
		return Record{}, fmt.Errorf("invalid PID file content: pid %d", r.PID)
	}
	return r, nil
}

// Remove deletes the PID file. A missing file is not an error.
func (p *PIDFile) Remove() error {
	if err := os.Remove(p.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// IsRunning returns the recorded PID and whether that process is alive.
func (p *PIDFile) IsRunning() (int, bool) {
	r, err := p.Read()
	if err != nil {
		return 0, false
	}
	return r.PID, processAlive(r.PID)
}

// Signal delivers sig to the recorded process.
func (p *PIDFile) Signal(sig syscall.Signal) error {
	r, err := p.Read()
	if err != nil {
		return fmt.Errorf("read PID file: %w", err)
	}
	return signalPID(r.PID, sig)
}
