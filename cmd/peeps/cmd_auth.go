package main

import (
	"bufio"
	"fmt"
	"strings"

	"mypeeps/internal/view"

	"github.com/spf13/cobra"
)

var password string

var registerCmd = &cobra.Command{
	Use:   "register <email>",
	Short: "Create an account and log in",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return authenticate(cmd, args[0], view.AuthRegister)
	},
}

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Log in and remember the session",
	Long: `Log in and remember the session in the profile file.

The password is read from --password or, if omitted, from the first line of stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return authenticate(cmd, args[0], view.AuthLogin)
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := open(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer s.Close()
		if err := s.app.Logout(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in account",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := open(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer s.Close()
		id := s.app.Identity()
		if id == nil {
			return errNotLoggedIn
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", id.Email, id.UID)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{registerCmd, loginCmd} {
		c.Flags().StringVarP(&password, "password", "p", "", "account password")
	}
}

func authenticate(cmd *cobra.Command, email string, mode view.AuthMode) error {
	pw := password
	if pw == "" {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("no password given: use --password or pipe it on stdin")
		}
		pw = strings.TrimRight(line, "\r\n")
	}

	s, err := open(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer s.Close()

	s.app.Edit(func(st *view.State) {
		st.Auth.Mode = mode
		st.Auth.Email = email
		st.Auth.Password = pw
	})
	if err := s.app.SubmitAuth(cmd.Context()); err != nil {
		return err
	}
	id := s.app.Identity()
	if id == nil {
		return fmt.Errorf("email and password are required")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", id.Email)
	return nil
}
