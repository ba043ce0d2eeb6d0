package main

import (
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"github.com/stemsi/exstem-lifecycle/internal/config"
	"github.com/stemsi/exstem-lifecycle/internal/model"
	"github.com/stemsi/exstem-lifecycle/internal/service"
	"golang.org/x/term"
)

// issue-token signs bearer tokens for local testing and operator scripts.
// Accounts live in the main backend; this only needs the shared secret.
func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var promptSecret bool

	cmd := &cobra.Command{
		Use:          "issue-token",
		Short:        "Sign student or admin tokens for the exam lifecycle service",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().BoolVar(&promptSecret, "prompt-secret", false, "read the signing secret from the terminal instead of JWT_SECRET")

	cmd.AddCommand(newStudentCmd(&promptSecret))
	cmd.AddCommand(newAdminCmd(&promptSecret))
	return cmd
}

func newStudentCmd(promptSecret *bool) *cobra.Command {
	var studentID int

	cmd := &cobra.Command{
		Use:   "student",
		Short: "Sign a student token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if studentID <= 0 {
				return fmt.Errorf("--id must be a positive student ID")
			}
			auth, err := newAuthService(*promptSecret)
			if err != nil {
				return err
			}
			token, err := auth.GenerateStudentToken(studentID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().IntVar(&studentID, "id", 0, "student ID")
	return cmd
}

func newAdminCmd(promptSecret *bool) *cobra.Command {
	var (
		adminID     int
		permissions []string
	)

	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Sign an admin token with permissions",
		RunE: func(cmd *cobra.Command, args []string) error {
			if adminID <= 0 {
				return fmt.Errorf("--id must be a positive admin ID")
			}
			for _, p := range permissions {
				if _, ok := model.ParsePermission(p); !ok {
					return fmt.Errorf("unknown permission %q", p)
				}
			}
			auth, err := newAuthService(*promptSecret)
			if err != nil {
				return err
			}
			token, err := auth.GenerateAdminToken(adminID, permissions)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	all := make([]string, len(model.AllPermissions))
	for i, p := range model.AllPermissions {
		all[i] = string(p)
	}
	cmd.Flags().IntVar(&adminID, "id", 0, "admin ID")
	cmd.Flags().StringSliceVar(&permissions, "perm", all, "permissions to embed ("+strings.Join(all, ", ")+")")
	return cmd
}

func newAuthService(promptSecret bool) (*service.AuthService, error) {
	cfg := config.Load()
	secret := cfg.JWTSecret

	if promptSecret {
		fmt.Fprint(os.Stderr, "Enter JWT secret: ")
		b, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, fmt.Errorf("read secret: %w", err)
		}
		secret = strings.TrimSpace(string(b))
	}
	if secret == "" {
		return nil, fmt.Errorf("signing secret is empty")
	}

	return service.NewAuthService(secret, cfg.JWTExpiry, clockwork.NewRealClock()), nil
}
