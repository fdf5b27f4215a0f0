package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/sos/internal/daemon"
)

func TestPidFile_Path(t *testing.T) {
	dir := testEnv(t)

	pf := pidFile()
	expected := filepath.Join(dir, "sos-serve.pid")
	assert.Equal(t, expected, pf.Path)
}

func TestServeLogPath(t *testing.T) {
	dir := testEnv(t)

	logPath := serveLogPath()
	expected := filepath.Join(dir, "sos-serve.log")
	assert.Equal(t, expected, logPath)
}

func TestServeStatusRun_NotRunning(t *testing.T) {
	testEnv(t)

	// No PID file exists, so status should show "not running" without error.
	err := serveStatusRun()
	assert.NoError(t, err)
}

func TestServeStopRun_NotRunning(t *testing.T) {
	testEnv(t)

	// No PID file exists, so stop should return an error.
	err := serveStopRun()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not running")
}

func TestServeStartRun_AlreadyRunning(t *testing.T) {
	dir := testEnv(t)

	// Write a PID file for the current process (which is alive).
	pf := daemon.NewPIDFile(filepath.Join(dir, "sos-serve.pid"))
	require.NoError(t, pf.Acquire(8080))
	t.Cleanup(func() { _ = os.Remove(pf.Path) })

	err := serveStartRun()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
}

func TestServeStatusRun_Running(t *testing.T) {
	dir := testEnv(t)
	buf := captureOutput(t)

	pf := daemon.NewPIDFile(filepath.Join(dir, "sos-serve.pid"))
	require.NoError(t, pf.Acquire(9191))
	t.Cleanup(func() { _ = os.Remove(pf.Path) })

	require.NoError(t, serveStatusRun())
	assert.Contains(t, buf.String(), "Server is running")
	assert.Contains(t, buf.String(), "http://localhost:9191")
}

func TestServeStatusRun_StaleFile(t *testing.T) {
	dir := testEnv(t)
	buf := captureOutput(t)

	pf := daemon.NewPIDFile(filepath.Join(dir, "sos-serve.pid"))
	require.NoError(t, pf.WriteRecord(daemon.Record{PID: 999999999, Port: 8080}))

	require.NoError(t, serveStatusRun())
	assert.Contains(t, buf.String(), "stale")
	_, err := os.Stat(pf.Path)
	assert.True(t, os.IsNotExist(err))
}
