package daemon

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIDFile_RecordRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "serve.pid")
	pf := NewPIDFile(path)

	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, pf.WriteRecord(Record{PID: 12345, Port: 8080, StartedAt: started}))

	r, err := pf.Read()
	require.NoError(t, err)
	assert.Equal(t, 12345, r.PID)
	assert.Equal(t, 8080, r.Port)
	assert.True(t, r.StartedAt.Equal(started))
	assert.Equal(t, "http://localhost:8080", r.URL())
}

func TestPIDFile_Read_BarePID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "serve.pid")
	require.NoError(t, os.WriteFile(path, []byte("4242\n"), 0o644))

	r, err := NewPIDFile(path).Read()
	require.NoError(t, err)
	assert.Equal(t, 4242, r.PID)
	assert.Empty(t, r.URL())
}

func TestPIDFile_Read_MissingFile(t *testing.T) {
	pf := NewPIDFile(filepath.Join(t.TempDir(), "nonexistent.pid"))

	_, err := pf.Read()
	assert.Error(t, err)
}

func TestPIDFile_Read_InvalidContent(t *testing.T) {
	for name, content := range map[string]string{
		"text":     "not-a-number\n",
		"json":     "{broken",
		"zero pid": `{"pid":0}`,
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.pid")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

			_, err := NewPIDFile(path).Read()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid PID file content")
		})
	}
}

func TestPIDFile_Acquire(t *testing.T) {
	path := filepath.Join(t.TempDir(), "serve.pid")
	pf := NewPIDFile(path)

	require.NoError(t, pf.Acquire(9090))
	r, err := pf.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), r.PID)
	assert.Equal(t, 9090, r.Port)

	// Re-acquiring from the same process is allowed.
	assert.NoError(t, pf.Acquire(9091))
}

func TestPIDFile_Acquire_StaleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "serve.pid")
	pf := NewPIDFile(path)
	require.NoError(t, pf.WriteRecord(Record{PID: 999999, Port: 1}))

	require.NoError(t, pf.Acquire(8080))
	r, err := pf.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), r.PID)
}

func TestPIDFile_Remove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "serve.pid")
	pf := NewPIDFile(path)
	require.NoError(t, pf.Acquire(8080))

	require.NoError(t, pf.Remove())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, pf.Remove(), "removing a missing file is fine")
}

func TestPIDFile_IsRunning_CurrentProcess(t *testing.T) {
	pf := NewPIDFile(filepath.Join(t.TempDir(), "serve.pid"))
	require.NoError(t, pf.Acquire(8080))

	pid, running := pf.IsRunning()
	assert.True(t, running)
	assert.Equal(t, os.Getpid(), pid)
}

func TestPIDFile_IsRunning_DeadProcess(t *testing.T) {
	pf := NewPIDFile(filepath.Join(t.TempDir(), "serve.pid"))

	// Use a very high PID that almost certainly doesn't exist.
	require.NoError(t, pf.WriteRecord(Record{PID: 999999}))

	pid, running := pf.IsRunning()
	assert.Equal(t, 999999, pid)
	assert.False(t, running)
}

func TestPIDFile_IsRunning_NoFile(t *testing.T) {
	pf := NewPIDFile(filepath.Join(t.TempDir(), "nonexistent.pid"))

	pid, running := pf.IsRunning()
	assert.Equal(t, 0, pid)
	assert.False(t, running)
}

func TestPIDFile_Signal(t *testing.T) {
	pf := NewPIDFile(filepath.Join(t.TempDir(), "serve.pid"))
	require.NoError(t, pf.Acquire(8080))

	// Signal 0 only checks that the process exists.
	assert.NoError(t, pf.Signal(syscall.Signal(0)))
}

func TestPIDFile_Signal_NoFile(t *testing.T) {
	pf := NewPIDFile(filepath.Join(t.TempDir(), "nonexistent.pid"))

	err := pf.Signal(syscall.Signal(0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read PID file")
}
