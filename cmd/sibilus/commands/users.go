package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tomyedwab/sibilus/users"
	"github.com/tomyedwab/sibilus/users/auth"
	"github.com/tomyedwab/sibilus/users/util"
)

func addUserCmd() *cobra.Command {
	var u users.NewUser

	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Register a user account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			manager, auditLog := newManager()
			defer manager.Stop()

			client, err := manager.Client(ctx)
			if err != nil {
				return err
			}
			id, err := users.Register(ctx, client, u)
			if err != nil {
				return err
			}
			if err := auditLog.LogUserRegistered(ctx, id); err != nil {
				logger.Warn("Failed to record registration in audit log", "error", err)
			}
			fmt.Printf("Created user %d (%s).\n", id, u.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&u.Email, "email", "", "email address (required)")
	cmd.Flags().StringVar(&u.Password, "password", "", "password (required)")
	cmd.Flags().StringVar(&u.Username, "username", "", "username (required)")
	cmd.Flags().StringVar(&u.DisplayName, "display-name", "", "display name (defaults to the username)")
	cmd.Flags().StringVar(&u.Bio, "bio", "", "profile text")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")
	cmd.MarkFlagRequired("username")
	return cmd
}

func loginCmd() *cobra.Command {
	var req auth.LoginRequest
	var keyPath string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Open a session and print its token",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := util.LoadJWTSecretKey(keyPath)
			if err != nil {
				return err
			}
			manager, auditLog := newManager()
			defer manager.Stop()

			resp, err := auth.Login(cmd.Context(), auth.Deps{
				Sessions:  manager,
				Audit:     auditLog,
				SecretKey: key,
				Logger:    logger,
			}, req)
			if err != nil {
				return err
			}
			fmt.Printf("%s\nvalid until %s\n", resp.Token, resp.ExpiresAt.Format("2006-01-02 15:04:05 MST"))
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "email address (required)")
	cmd.Flags().StringVar(&req.Password, "password", "", "password (required)")
	cmd.Flags().StringVar(&keyPath, "jwt-key", util.DefaultJWTSecretKeyPath, "path to the token signing key")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")
	return cmd
}

// tokenCmd builds the commands that act on an existing session token.
func tokenCmd(use, short string, run func(cmd *cobra.Command, deps auth.Deps, token string) error) *cobra.Command {
	var token, keyPath string

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := util.LoadJWTSecretKey(keyPath)
			if err != nil {
				return err
			}
			manager, auditLog := newManager()
			defer manager.Stop()

			return run(cmd, auth.Deps{
				Sessions:  manager,
				Audit:     auditLog,
				SecretKey: key,
				Logger:    logger,
			}, token)
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "session token (required)")
	cmd.Flags().StringVar(&keyPath, "jwt-key", util.DefaultJWTSecretKeyPath, "path to the token signing key")
	cmd.MarkFlagRequired("token")
	return cmd
}

func logoutCmd() *cobra.Command {
	return tokenCmd("logout", "End the session behind a token", func(cmd *cobra.Command, deps auth.Deps, token string) error {
		if err := auth.Logout(cmd.Context(), deps, token); err != nil {
			return err
		}
		fmt.Println("Logged out.")
		return nil
	})
}

func whoamiCmd() *cobra.Command {
	return tokenCmd("whoami", "Check that a token's session is still live", func(cmd *cobra.Command, deps auth.Deps, token string) error {
		sessionID, err := auth.CheckSession(cmd.Context(), deps, token)
		if err != nil {
			return err
		}
		session, err := deps.Sessions.GetSession(cmd.Context(), sessionID)
		if err != nil {
			return err
		}
		fmt.Printf("Session for user %d, valid until %s\n", session.UserID,
			session.ValidUntil(deps.Sessions.Lifespan()).Format("2006-01-02 15:04:05 MST"))
		return nil
	})
}
