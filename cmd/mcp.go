package cmd

import (
	"context"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/joescharf/sos/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server",
	Long: `Start an MCP (Model Context Protocol) server on stdio so an assistant
can drive the emergency session. Configure your MCP client with:

  {
    "mcpServers": {
      "sos": { "command": "sos", "args": ["mcp"] }
    }
  }

Available tools: sos_start_emergency, sos_update_emergency,
sos_end_emergency, sos_session_status, sos_guidance,
sos_request_location, sos_incident_history`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		ctx, stop := signal.NotifyContext(ctx, shutdownSignals()...)
		defer stop()

		// stdout carries the protocol.
		quietLogs()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		return mcp.NewServer(a.machine, a.locator, a.archive, buildVersion).ServeStdio(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
