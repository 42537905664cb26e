package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oakdental/frontdesk/internal/service"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin accounts",
		Long:  "Create and list the clinic staff accounts that can use the admin API, and set their passwords.",
	}

	cmd.AddCommand(newAdminCreateCmd())
	cmd.AddCommand(newAdminListCmd())
	cmd.AddCommand(newAdminPasswdCmd())

	return cmd
}

// ---------- admin create ----------

func newAdminCreateCmd() *cobra.Command {
	var in service.RegisterInput

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new admin account",
		Example: `  frontdesk admin create --email reception@oakdental.example --name Reception --password secret
  frontdesk admin create --email reception@oakdental.example --name Reception  # prompts for password`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminCreate(in)
		},
	}

	cmd.Flags().StringVar(&in.Email, "email", "", "Admin email address (required)")
	cmd.Flags().StringVar(&in.Name, "name", "", "Admin display name (required)")
	cmd.Flags().StringVar(&in.Phone, "phone", "", "Phone number for SMS reset codes")
	cmd.Flags().StringVar(&in.Password, "password", "", "Admin password (prompted if omitted)")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("name")

	return cmd
}

func runAdminCreate(in service.RegisterInput) error {
	if in.Password == "" {
		pw, err := readPassword("Password: ", true)
		if err != nil {
			return err
		}
		in.Password = pw
	}

	a, err := openApp(os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	admin, err := a.auth.Register(cmdCtx(), in)
	if err != nil {
		return fmt.Errorf("create admin: %w", err)
	}

	fmt.Printf("Admin created: %s (ID: %d)\n", admin.Email, admin.ID)
	return nil
}

// ---------- admin list ----------

func newAdminListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List admin accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(os.Stderr)
			if err != nil {
				return err
			}
			defer a.Close()

			admins, err := a.store.ListAdmins(cmdCtx())
			if err != nil {
				return fmt.Errorf("list admins: %w", err)
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(admins)
			}

			if len(admins) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No admin accounts. Create one with: frontdesk admin create")
				return nil
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-6s %-30s %-20s %-16s %s\n", "ID", "EMAIL", "NAME", "PHONE", "CREATED")
			for _, adm := range admins {
				fmt.Fprintf(out, "%-6d %-30s %-20s %-16s %s\n",
					adm.ID, adm.Email, adm.Name, adm.Phone, adm.CreatedAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// ---------- admin passwd ----------

func newAdminPasswdCmd() *cobra.Command {
	var (
		email    string
		password string
	)

	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Set the password of an existing admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				pw, err := readPassword("New password: ", true)
				if err != nil {
					return err
				}
				password = pw
			}

			a, err := openApp(os.Stderr)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.auth.SetPassword(cmdCtx(), email, password); err != nil {
				return fmt.Errorf("set password: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Password updated for %s\n", email)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Admin email address (required)")
	cmd.Flags().StringVar(&password, "password", "", "New password (prompted if omitted)")
	cmd.MarkFlagRequired("email")

	return cmd
}
