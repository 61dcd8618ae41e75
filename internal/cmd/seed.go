package cmd

import (
	"errors"
	"log/slog"

	"github.com/netgrid/netgrid/internal/auth"
	"github.com/netgrid/netgrid/internal/auth/permission"
	"github.com/netgrid/netgrid/internal/config"
	"github.com/netgrid/netgrid/internal/database"
	"github.com/netgrid/netgrid/internal/domain"
	"github.com/netgrid/netgrid/internal/person"
	"github.com/netgrid/netgrid/pkg/log"
	"github.com/spf13/cobra"
)

// seedCmd creates an initial account so a fresh install can log in.
func seedCmd() *cobra.Command {
	var (
		username string
		password string
		role     string
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the initial user account",
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			ctx := cobraCmd.Context()

			if permission.FromRole(role) == permission.Guest {
				return domain.ErrBadRequest
			}

			conf, errConfig := config.Read(cfgFile)
			if errConfig != nil {
				return errConfig
			}

			dbConn := database.New(conf.DatabaseDSN, conf.DatabaseAutoMigrate, conf.DatabaseLogQueries)
			if errConnect := dbConn.Connect(ctx); errConnect != nil {
				slog.Error("Cannot initialize database", log.ErrAttr(errConnect))

				return errConnect
			}

			defer log.Closer(dbConn)

			persons := person.NewRepository(dbConn)

			if _, errExisting := persons.GetByUsername(ctx, username); errExisting == nil {
				slog.Warn("User already exists, skipping", slog.String("username", username))

				return nil
			} else if !errors.Is(errExisting, database.ErrNoResult) {
				return errExisting
			}

			hash, errHash := auth.HashPassword(password)
			if errHash != nil {
				return errHash
			}

			newUser := domain.Person{
				Username:     username,
				PasswordHash: hash,
				Role:         role,
				IsActive:     true,
			}

			if errSave := persons.Save(ctx, &newUser); errSave != nil {
				slog.Error("Failed to create user", log.ErrAttr(errSave))

				return errSave
			}

			slog.Info("Created user",
				slog.Int64("user_id", newUser.UserID),
				slog.String("username", newUser.Username),
				slog.String("role", newUser.Role))

			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "admin", "Username for the new account")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password for the new account")
	cmd.Flags().StringVarP(&role, "role", "r", "admin", "Role of the new account (admin, manager, user, readonly)")

	if errRequired := cmd.MarkFlagRequired("password"); errRequired != nil {
		panic(errRequired)
	}

	return cmd
}
