package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/mktdata/admin-console/internal/adapters/devauth"
	"github.com/spf13/cobra"
)

func (c *cli) hashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Read a password from stdin and print a bcrypt hash for the dev accounts file",
		Args:  cobra.NoArgs,
		// Needs no config or connections.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(_ *cobra.Command, _ []string) error {
			line, err := bufio.NewReader(c.in).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("read password: %w", err)
			}
			password := strings.TrimRight(line, "\r\n")
			if password == "" {
				return errors.New("password must not be empty")
			}
			hash, err := devauth.HashPassword(password)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.out, hash)
			return err
		},
	}
}
