package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/oakdental/frontdesk/internal/notify"
	"github.com/oakdental/frontdesk/internal/server"
)

const banner = `
  ___    _    _  __
 / _ \  /_\  | |/ /   OAK Dental Clinic
| (_) |/ _ \ | ' <    front desk
 \___//_/ \_\|_|\_\
`

const firstRunHint = "no admin account found - register via POST /api/admin/register or run: frontdesk admin create"

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the website and API server",
		Long:  "Start the HTTP server that hosts the clinic pages, the public form endpoints and the admin API.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}

	cmd.Flags().IntP("port", "p", 3000, "HTTP listen port")
	cmd.Flags().String("host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().String("static-dir", "", "Serve pages from this directory instead of the embedded site")
	cmd.Flags().Bool("dev", false, "Enable development mode (debug logging, fallback JWT secret)")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))
	viper.BindPFlag("server.static_dir", cmd.Flags().Lookup("static-dir"))
	viper.BindPFlag("dev", cmd.Flags().Lookup("dev"))

	return cmd
}

func runServe() error {
	a, err := openApp(os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg, logger := a.cfg, a.logger

	fmt.Print(banner)
	fmt.Println()

	if cfg.Dev {
		logger.Warn("development mode enabled, do not use in production")
	}

	hasAdmin, err := a.store.HasAnyAdmin(cmdCtx())
	if err != nil {
		logger.Warn("failed to check for admin", "error", err)
	}
	if !hasAdmin {
		logger.Warn(firstRunHint)
	}

	if cfg.Mail.Enabled() {
		if err := notify.NewSMTPMailer(cfg.Mail).Verify(); err != nil {
			logger.Warn("smtp server not reachable, emails may fail", "host", cfg.Mail.Host, "error", err)
		}
	}

	srv := server.New(server.FromConfig(cfg, appVersion), a.store, a.auth, a.desk, a.tokens, logger)
	if a.limiter != nil {
		srv.AddCheck("redis", a.limiter.Ping)
	}

	host := cfg.Server.Host
	if host == "0.0.0.0" || host == "" {
		host = "localhost"
	}
	base := fmt.Sprintf("http://%s:%d", host, cfg.Server.Port)
	fmt.Printf("→ OAK Dental front desk %s\n", appVersion)
	fmt.Printf("→ Website:    %s/\n", base)
	fmt.Printf("→ Admin:      %s/admin\n", base)
	fmt.Printf("→ OpenAPI:    %s/openapi.json\n", base)
	fmt.Printf("→ Health:     %s/healthz\n", base)
	fmt.Printf("→ Database:   %s\n", cfg.Database.Driver)
	fmt.Println()

	return srv.ListenAndServe()
}
