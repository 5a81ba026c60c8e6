package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/team-spoved/spoved/internal/model"
)

var usersCmd = &cobra.Command{
	Use:     "users",
	Aliases: []string{"user"},
	Short:   "List and create users",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users by role, name or id",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if _, err := a.requireSession(); err != nil {
			return err
		}
		fl := cmd.Flags()
		var f model.UserFilter
		if fl.Changed("id") {
			v, _ := fl.GetInt("id")
			f.ID = &v
		}
		if v, _ := fl.GetString("role"); v != "" {
			role, err := model.ParseRole(v)
			if err != nil {
				return err
			}
			f.Role = role
		}
		f.Name, _ = fl.GetString("name")
		users, err := a.client.Users.List(cmd.Context(), f)
		if err != nil {
			return err
		}
		printUsers(cmd.OutOrStdout(), users)
		return nil
	},
}

var usersCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if _, err := a.requireSession(); err != nil {
			return err
		}
		name, _ := cmd.Flags().GetString("name")
		roleFlag, _ := cmd.Flags().GetString("role")
		password, _ := cmd.Flags().GetString("password")
		role, err := model.ParseRole(roleFlag)
		if err != nil {
			return err
		}
		u, err := a.client.Users.Create(cmd.Context(), model.CreateUserRequest{Name: name, Role: role, Password: password})
		if err != nil {
			return err
		}
		printUsers(cmd.OutOrStdout(), []model.User{*u})
		return nil
	},
}

func init() {
	usersListCmd.Flags().Int("id", 0, "user id")
	usersListCmd.Flags().String("role", "", "WORKER or SUPERVISOR")
	usersListCmd.Flags().String("name", "", "case-insensitive name fragment")
	usersCreateCmd.Flags().String("name", "", "user name")
	usersCreateCmd.Flags().String("role", string(model.RoleWorker), "WORKER or SUPERVISOR")
	usersCreateCmd.Flags().String("password", "", "optional password")
	_ = usersCreateCmd.MarkFlagRequired("name")
	usersCmd.AddCommand(usersListCmd, usersCreateCmd)
	rootCmd.AddCommand(usersCmd)
}

func printUsers(w io.Writer, users []model.User) {
	if len(users) == 0 {
		fmt.Fprintln(w, "No users")
		return
	}
	rows := make([][]string, 0, len(users))
	for _, u := range users {
		rows = append(rows, []string{strconv.Itoa(u.UserID), u.Name, string(u.Role)})
	}
	fmt.Fprintln(w, renderTable([]string{"ID", "Name", "Role"}, rows, []columnAlignment{alignRight}))
}
