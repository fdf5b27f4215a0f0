package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/joescharf/sos/internal/api"
	"github.com/joescharf/sos/internal/daemon"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST and websocket API in the foreground",
	Long: `Run the HTTP API that drives the emergency session.

By default it listens on port 8080. Use --port to change it.
Use 'sos serve start' to run it in the background.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		return serveRun(ctx, viper.GetInt("port"))
	},
}

var serveStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the API server in the background",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStartRun()
	},
}

var serveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the background server is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStatusRun()
	},
}

var serveStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStopRun()
	},
}

func init() {
	serveCmd.AddCommand(serveStartCmd)
	serveCmd.AddCommand(serveStatusCmd)
	serveCmd.AddCommand(serveStopCmd)
	rootCmd.AddCommand(serveCmd)

	serveCmd.PersistentFlags().IntP("port", "p", 8080, "port to listen on")
	_ = viper.BindPFlag("port", serveCmd.PersistentFlags().Lookup("port"))
}

// pidFile returns the serve PID file under state_dir.
func pidFile() *daemon.PIDFile {
	return daemon.NewPIDFile(filepath.Join(viper.GetString("state_dir"), "sos-serve.pid"))
}

// serveLogPath returns where the background server writes its output.
func serveLogPath() string {
	return filepath.Join(viper.GetString("state_dir"), "sos-serve.log")
}

func serveRun(ctx context.Context, port int) error {
	pf := pidFile()
	if err := pf.Acquire(port); err != nil {
		return err
	}
	defer func() { _ = pf.Remove() }()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := api.NewServer(a.machine, a.locator, a.classifier, a.archive, a.logger)
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, shutdownSignals()...)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()
	a.logger.Info("serving API", zap.Int("port", port))
	fmt.Fprintf(ui.Out, "Serving API at http://localhost:%d/api/v1\n", port)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	srv.Stream().Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func serveStartRun() error {
	pf := pidFile()
	if pid, running := pf.IsRunning(); running {
		return fmt.Errorf("server already running (PID %d)", pid)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}

	logPath := serveLogPath()
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer func() { _ = logFile.Close() }()

	port := viper.GetInt("port")
	args := []string{"serve", "--port", strconv.Itoa(port)}
	if cfg := viper.ConfigFileUsed(); cfg != "" {
		args = append(args, "--config", cfg)
	}

	child := exec.Command(exe, args...)
	child.Stdout = logFile
	child.Stderr = logFile
	setDaemonAttrs(child)
	if err := child.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	_ = child.Process.Release()

	// Wait for the child to claim the PID file.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if r, err := pf.Read(); err == nil && r.PID == child.Process.Pid {
			ui.Success("Server started (PID %d) at %s", r.PID, r.URL())
			ui.VerboseLog("Logs: %s", logPath)
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("server did not start, see %s", logPath)
}

func serveStatusRun() error {
	pf := pidFile()
	r, err := pf.Read()
	if err != nil {
		ui.Info("Server is not running")
		return nil
	}
	if _, running := pf.IsRunning(); !running {
		ui.Warning("Server is not running (stale PID file for PID %d removed)", r.PID)
		_ = pf.Remove()
		return nil
	}

	ui.Success("Server is running (PID %d)", r.PID)
	if url := r.URL(); url != "" {
		fmt.Fprintf(ui.Out, "  URL:     %s\n", url)
	}
	if !r.StartedAt.IsZero() {
		fmt.Fprintf(ui.Out, "  Uptime:  %s\n", time.Since(r.StartedAt).Round(time.Second))
	}
	fmt.Fprintf(ui.Out, "  Logs:    %s\n", serveLogPath())
	return nil
}

func serveStopRun() error {
	pf := pidFile()
	pid, running := pf.IsRunning()
	if !running {
		_ = pf.Remove()
		return fmt.Errorf("server is not running")
	}

	if err := pf.Signal(sigTERM()); err != nil {
		return fmt.Errorf("signal server: %w", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, running := pf.IsRunning(); !running {
			_ = pf.Remove()
			ui.Success("Server stopped (PID %d)", pid)
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	ui.Warning("Server did not stop gracefully, killing PID %d", pid)
	if err := pf.Signal(sigKILL()); err != nil {
		return fmt.Errorf("kill server: %w", err)
	}
	_ = pf.Remove()
	return nil
}
