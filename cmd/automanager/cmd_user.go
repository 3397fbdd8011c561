package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/leengari/automanager/internal/auth"
)

var (
	userRole    string
	userPending bool
)

// userCmd manages the credential store
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
	Long: `Manage the accounts allowed to log in.

Available subcommands:
  add     - Create an active account
  approve - Activate a pending registration
  reject  - Remove a pending registration
  list    - Show accounts with role and status
  passwd  - Change an account's password
  role    - Change an account's role
  delete  - Remove an account`,
}

var userAddCmd = &cobra.Command{
	Use:   "add <username> <password>",
	Short: "Create an active account",
	Args:  cobra.ExactArgs(2),
	RunE: withUsers(func(users *auth.Store, cmd *cobra.Command, args []string) error {
		if err := users.AddUser(args[0], args[1], auth.Role(userRole), auth.StatusActive); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "User %s added (%s)\n", args[0], userRole)
		return nil
	}),
}

var userApproveCmd = &cobra.Command{
	Use:   "approve <username>",
	Short: "Activate a pending registration",
	Args:  cobra.ExactArgs(1),
	RunE: withUsers(func(users *auth.Store, cmd *cobra.Command, args []string) error {
		if err := users.Approve(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "User %s approved\n", args[0])
		return nil
	}),
}

var userRejectCmd = &cobra.Command{
	Use:   "reject <username>",
	Short: "Remove a pending registration",
	Args:  cobra.ExactArgs(1),
	RunE: withUsers(func(users *auth.Store, cmd *cobra.Command, args []string) error {
		if err := users.Reject(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "User %s rejected\n", args[0])
		return nil
	}),
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show accounts with role and status",
	Args:  cobra.NoArgs,
	RunE: withUsers(func(users *auth.Store, cmd *cobra.Command, args []string) error {
		names := users.Users()
		if userPending {
			names = users.Pending()
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "USERNAME\tROLE\tSTATUS")
		for _, name := range names {
			u, _ := users.Lookup(name)
			fmt.Fprintf(tw, "%s\t%s\t%s\n", name, u.Role, u.Status)
		}
		return tw.Flush()
	}),
}

var userPasswdCmd = &cobra.Command{
	Use:   "passwd <username> <old-password> <new-password>",
	Short: "Change an account's password",
	Args:  cobra.ExactArgs(3),
	RunE: withUsers(func(users *auth.Store, cmd *cobra.Command, args []string) error {
		if err := users.ChangePassword(args[0], args[1], args[2]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Password changed for %s\n", args[0])
		return nil
	}),
}

var userRoleCmd = &cobra.Command{
	Use:   "role <username> <user|admin>",
	Short: "Change an account's role",
	Args:  cobra.ExactArgs(2),
	RunE: withUsers(func(users *auth.Store, cmd *cobra.Command, args []string) error {
		if err := users.ChangeRole(args[0], auth.Role(args[1])); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "User %s is now %s\n", args[0], args[1])
		return nil
	}),
}

var userDeleteCmd = &cobra.Command{
	Use:   "delete <username>",
	Short: "Remove an account",
	Args:  cobra.ExactArgs(1),
	RunE: withUsers(func(users *auth.Store, cmd *cobra.Command, args []string) error {
		if err := users.DeleteUser(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "User %s deleted\n", args[0])
		return nil
	}),
}

func init() {
	userAddCmd.Flags().StringVar(&userRole, "role", string(auth.RoleUser), "Role of the new account (user or admin)")
	userListCmd.Flags().BoolVar(&userPending, "pending", false, "Only show accounts awaiting approval")

	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userApproveCmd)
	userCmd.AddCommand(userRejectCmd)
	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userPasswdCmd)
	userCmd.AddCommand(userRoleCmd)
	userCmd.AddCommand(userDeleteCmd)
}

// withUsers opens the credential store named by the loaded config
func withUsers(fn func(users *auth.Store, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		users, err := auth.Open(cfg.UsersFile, logger)
		if err != nil {
			return err
		}
		return fn(users, cmd, args)
	}
}
