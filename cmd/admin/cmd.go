package main

import (
	"errors"
	"fmt"
	"io"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"classattend/internal/app"
	"classattend/internal/identity"
	"classattend/internal/model"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errEmptyPassword = errors.New("password cannot be empty")
)

type commandLine struct {
	comps *app.Components
	out   io.Writer
}

func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "admin",
		Short:        "Maintenance commands for the attendance service",
		SilenceUsage: true,
	}
	root.SetOut(cli.out)
	root.SetErr(cli.out)
	root.AddCommand(cli.migrateCmd(), cli.seedCmd(), cli.addUserCmd(), cli.resetPasswordCmd(), cli.expireQrCmd())
	return root
}

func (cli *commandLine) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cli.comps.DB == nil {
				fmt.Fprintln(cli.out, "store is not postgres, nothing to migrate")
				return nil
			}
			return cli.comps.Migrate(cmd.Context())
		},
	}
}

func (cli *commandLine) seedCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the demo accounts and subject into an empty store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			created, err := cli.comps.Seed(cmd.Context(), password)
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintln(cli.out, "demo data created")
			} else {
				fmt.Fprintln(cli.out, "store already has users, skipped")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "password", "Password for the demo accounts")
	return cmd
}

func (cli *commandLine) addUserCmd() *cobra.Command {
	var nu identity.NewUser
	var role string
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create an account; the password is prompted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pwd, err := cli.promptPassword()
			if err != nil {
				return err
			}
			nu.Password = pwd
			nu.Role = model.Role(role)
			usr, err := cli.comps.Users.Create(cmd.Context(), nu)
			if err != nil {
				return err
			}
			fmt.Fprintf(cli.out, "created %s %q (id %d)\n", usr.Role, usr.Username, usr.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&nu.Username, "username", "", "Login name")
	cmd.Flags().StringVar(&nu.FullName, "full-name", "", "Display name")
	cmd.Flags().StringVar(&nu.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&role, "role", string(model.RoleSuperadmin), "student, teacher or superadmin")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("full-name")
	return cmd
}

func (cli *commandLine) resetPasswordCmd() *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "resetpassword",
		Short: "Reset a user's password; the new password is prompted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			usr, err := cli.comps.Users.GetByUsername(cmd.Context(), username)
			if err != nil {
				return err
			}
			pwd, err := cli.promptPassword()
			if err != nil {
				return err
			}
			if _, err := cli.comps.Users.Update(cmd.Context(), usr.ID, identity.UpdateUser{Password: &pwd}); err != nil {
				return err
			}
			fmt.Fprintf(cli.out, "password of %q updated\n", usr.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "The user's username")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func (cli *commandLine) expireQrCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expireqr",
		Short: "Deactivate every active QR code now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := cli.comps.Codes.ExpireAll(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cli.out, "%d qr codes deactivated\n", n)
			return nil
		},
	}
}

func (cli *commandLine) promptPassword() (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		return "", errEmptyPassword
	}
	return string(pwd), nil
}
