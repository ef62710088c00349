package main

import (
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"library-service/auth"
	"library-service/config"
	"library-service/model"
	"library-service/store"
)

// createUserCmd bootstraps accounts from the command line. Registration
// over HTTP is librarian-gated, so the first librarian has to come from
// here.
func createUserCmd() *cobra.Command {
	var email, phone, role string

	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create an account directly in the database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				// only the database settings matter here
				cfg = config.Default()
			}

			password, err := readPassword("Password: ")
			if err != nil {
				return err
			}

			st, err := store.Open(cfg.DatabaseDriver, cfg.DatabaseDSN, zap.NewNop())
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			if err := st.Migrate(cmd.Context()); err != nil {
				return err
			}

			if !model.ValidRole(role) {
				return auth.ErrInvalidRole
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}

			id, err := st.CreateUser(cmd.Context(), model.User{
				Email:        email,
				PasswordHash: hash,
				Role:         role,
				Phone:        phone,
			})
			if err != nil {
				return err
			}

			fmt.Printf("created %s %q with id %d\n", role, email, id)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email (required)")
	cmd.Flags().StringVar(&phone, "phone", "", "ten-digit phone number")
	cmd.Flags().StringVar(&role, "role", model.RoleLibrarian, "account role: user or librarian")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}
