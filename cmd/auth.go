package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/team-spoved/spoved/internal/model"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and persist the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		name, _ := cmd.Flags().GetString("name")
		password, _ := cmd.Flags().GetString("password")
		s, route, err := a.client.SignIn(cmd.Context(), a.store, name, password)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s, id %d). Home: %s\n", s.Name, s.Role, s.UserID, route)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the persisted session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.client.SignOut(a.store); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		name, _ := cmd.Flags().GetString("name")
		password, _ := cmd.Flags().GetString("password")
		roleFlag, _ := cmd.Flags().GetString("role")
		role, err := model.ParseRole(roleFlag)
		if err != nil {
			return err
		}
		msg, err := a.client.Auth.Register(cmd.Context(), model.RegisterRequest{Name: name, Password: password, Role: role})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), msg)
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in identity",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		s, err := a.requireSession()
		if err != nil {
			return err
		}
		if remote, _ := cmd.Flags().GetBool("remote"); remote {
			u, err := a.client.Auth.Me(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s, id %d), confirmed by server\n", u.Name, u.Role, u.UserID)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s, id %d)\nsession: %s\n", s.Name, s.Role, s.UserID, a.store.Path())
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{loginCmd, registerCmd} {
		c.Flags().String("name", "", "user name")
		c.Flags().String("password", "", "password")
		_ = c.MarkFlagRequired("name")
		_ = c.MarkFlagRequired("password")
	}
	registerCmd.Flags().String("role", string(model.RoleWorker), "WORKER or SUPERVISOR")
	whoamiCmd.Flags().Bool("remote", false, "ask the server to confirm the token")
	rootCmd.AddCommand(loginCmd, logoutCmd, registerCmd, whoamiCmd)
}
