package cli

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	fmcp "github.com/oakdental/frontdesk/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	var (
		transport string
		host      string
		port      int
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Expose the admin operations as an MCP server",
		Long: `Start a Model Context Protocol server that lets AI assistants list and
moderate appointments, messages and subscribers.

In stdio mode the server talks over stdin/stdout and logs to stderr.
In http mode every request to /mcp must carry an admin session token
("Authorization: Bearer <token>" from POST /api/admin/login). The listener
binds to 127.0.0.1 unless --host says otherwise.`,
		Example: `  frontdesk mcp
  frontdesk mcp --transport http --port 3001`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(os.Stderr)
			if err != nil {
				return err
			}
			defer a.Close()

			srv := fmcp.NewMCPServer(a.desk, appVersion, a.logger)
			switch transport {
			case "stdio":
				return srv.ServeStdio()
			case "http":
				return srv.ListenAndServe(net.JoinHostPort(host, strconv.Itoa(port)), a.tokens)
			default:
				return fmt.Errorf("unknown transport %q (use stdio or http)", transport)
			}
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport: stdio or http")
	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Listen host for the http transport")
	cmd.Flags().IntVar(&port, "port", 3001, "Listen port for the http transport")

	return cmd
}
