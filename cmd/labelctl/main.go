package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/w802474/Labeltool-fakeDataGenerator-sub000/client"
	"github.com/w802474/Labeltool-fakeDataGenerator-sub000/config"
	"github.com/w802474/Labeltool-fakeDataGenerator-sub000/utils"
	"go.uber.org/zap"
)

var version = "dev"

func main() {
	var (
		configPath string
		serverURL  string
		sessionID  string
		imagePath  string
		noColor    bool
		verbose    bool
	)

	rootCmd := &cobra.Command{
		Use:   "labelctl",
		Short: "Interactive region editor for labeltool sessions",
		Long: `labelctl edits the text regions of a labeltool session.

Edits are applied locally with per-context undo history (ocr and processed)
and pushed to the server with "sync". Type "help" inside the shell for commands.`,
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if noColor {
				color.NoColor = true
			}

			cfg := config.NewFromPath(configPath)
			if serverURL != "" {
				cfg.Editor.ServerURL = serverURL
			}

			logger := zap.NewNop()
			if verbose {
				l, err := utils.NewLogger("debug")
				if err != nil {
					return err
				}
				logger = l
			}
			defer logger.Sync()

			api := client.New(cfg.Editor.ServerURL, cfg.Editor.RequestTimeout, logger)
			sh := newShell(api, &cfg.Editor, logger, cmd.OutOrStdout())

			ctx := cmd.Context()
			if err := sh.start(ctx, sessionID, imagePath); err != nil {
				return err
			}
			return sh.run(ctx, os.Stdin)
		},
	}

	rootCmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "Config file")
	rootCmd.Flags().StringVarP(&serverURL, "server", "s", "", "Server URL (overrides editor.server_url)")
	rootCmd.Flags().StringVar(&sessionID, "session", "", "Open an existing session")
	rootCmd.Flags().StringVar(&imagePath, "image", "", "Upload an image and open the new session")
	rootCmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log API calls and history changes")

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run 逐行读取命令直到 quit 或输入结束
func (sh *shell) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(sh.out, sh.prompt())
		if !scanner.Scan() {
			fmt.Fprintln(sh.out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := sh.exec(ctx, line); err != nil {
			fmt.Fprintln(sh.out, color.RedString("error: %v", err))
		}
		if sh.quit {
			return nil
		}
	}
}
