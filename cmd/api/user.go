package main

import (
	"context"
	"fmt"

	"github.com/dordunu1/taskboard/internal/app"
	"github.com/dordunu1/taskboard/internal/config"
	"github.com/dordunu1/taskboard/internal/repo"
	"github.com/dordunu1/taskboard/internal/service"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var (
	userEmail    string
	userPassword string
	userName     string
)

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Create an email/password account",
		Args:  cobra.NoArgs,
		RunE:  runUserCreate,
	}
	create.Flags().StringVar(&userEmail, "email", "", "account email")
	create.Flags().StringVar(&userPassword, "password", "", "account password (min 8 characters)")
	create.Flags().StringVar(&userName, "name", "", "display name")
	_ = create.MarkFlagRequired("email")
	_ = create.MarkFlagRequired("password")

	hash := &cobra.Command{
		Use:   "hash [password]",
		Short: "Print a bcrypt hash for seeding users by hand",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password := "admin"
			if len(args) > 0 {
				password = args[0]
			}
			h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), string(h))
			return nil
		},
	}

	cmd.AddCommand(create, hash)
	return cmd
}

func runUserCreate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	db, err := app.NewPostgres(cfg.PG.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	users := service.NewUserService(repo.NewPGUserRepo(db), nil)
	u, err := users.Register(context.Background(), userEmail, userPassword, userName)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", u.Email, u.ID)
	return nil
}
