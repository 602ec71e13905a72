package main

import (
	"fmt"
	"os/exec"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/contract-sentinel/internal/api"
	"github.com/Veraticus/contract-sentinel/internal/cli"
	"github.com/Veraticus/contract-sentinel/internal/config"
	"github.com/Veraticus/contract-sentinel/internal/sheets"
)

func authCmd() *cobra.Command {
	var (
		listen  string
		timeout time.Duration
		noOpen  bool
	)

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize Google Sheets access",
		Long: `Run the browser consent flow for the configured OAuth client and save the
refresh token to sheets.token_file. Service account setups don't need this.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sheetsCfg, err := config.LoadSheetsConfig(viper.GetViper())
			if err != nil {
				return err
			}
			if sheetsCfg.ClientID == "" || sheetsCfg.ClientSecret == "" {
				return fmt.Errorf("sheets.client_id and sheets.client_secret are required")
			}

			out := cmd.OutOrStdout()
			token, err := sheets.AuthenticateInteractive(cmd.Context(), sheets.OAuth2Config{
				ClientID:     sheetsCfg.ClientID,
				ClientSecret: sheetsCfg.ClientSecret,
				TokenFile:    sheetsCfg.TokenFile,
				ListenAddr:   listen,
				Timeout:      timeout,
			}, func(url string) {
				fmt.Fprintln(out, cli.FormatInfo("Open this URL to authorize access:"))
				fmt.Fprintln(out, url)
				if !noOpen {
					openBrowser(url)
				}
			})
			if err != nil {
				return err
			}

			if err := sheets.SaveToken(sheetsCfg.TokenFile, token); err != nil {
				return err
			}
			fmt.Fprintln(out, cli.FormatSuccess("Saved token to "+sheetsCfg.TokenFile))
			return nil
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "127.0.0.1:8085", "Callback listener address")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "How long to wait for consent")
	cmd.Flags().BoolVar(&noOpen, "no-browser", false, "Print the URL without opening a browser")
	return cmd
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	_ = cmd.Start()
}

func tokenCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, err := api.GenerateToken(subject, cfg.API.JWTSecret, ttl, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "operator", "Token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 30*24*time.Hour, "Token lifetime")
	return cmd
}
