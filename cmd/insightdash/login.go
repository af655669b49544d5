package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/rickgao/insightdash/internal/auth"
	"github.com/spf13/cobra"
)

// passwordEnv is read when --password is not given.
const passwordEnv = "INSIGHTDASH_PASSWORD"

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and save a bearer token",
	Long: `Log in to the backend and save the bearer token to api.token_path.

The password is taken from --password or the INSIGHTDASH_PASSWORD
environment variable. Later commands pick the token up automatically.

Example:
  INSIGHTDASH_PASSWORD=secret insightdash login -u alice -c insightdash.yaml`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the saved bearer token",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)

	loginCmd.Flags().StringP("username", "u", "", "username or email (required)")
	loginCmd.Flags().String("password", "", "password (default $"+passwordEnv+")")
	_ = loginCmd.MarkFlagRequired("username")
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.API.TokenPath == "" {
		return errors.New("api.token_path must be set to save a token")
	}
	logger := newLogger(cmd, cfg)

	username, _ := cmd.Flags().GetString("username")
	password, _ := cmd.Flags().GetString("password")
	if password == "" {
		password = os.Getenv(passwordEnv)
	}
	if password == "" {
		return fmt.Errorf("password is required (--password or $%s)", passwordEnv)
	}

	session := auth.NewSession("")
	client := newAPIClient(cfg, session, logger)
	ctx := commandContext(cmd)

	tok, err := client.Login(ctx, username, password)
	if err != nil {
		return err
	}
	session.SetToken(tok.AccessToken)

	user, err := client.CurrentUser(ctx)
	if err != nil {
		return err
	}
	if err := session.Save(cfg.API.TokenPath); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s, token saved to %s\n", user.Username, cfg.API.TokenPath)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.API.TokenPath == "" {
		return nil
	}

	session, err := auth.LoadToken(cfg.API.TokenPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if !errors.Is(err, auth.ErrNoToken) {
			return err
		}
		return os.Remove(cfg.API.TokenPath)
	}
	return session.Clear()
}
