package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tabula/internal/common"
	"github.com/ternarybob/tabula/internal/services/jira"
	"github.com/ternarybob/tabula/internal/services/resolver"
	"github.com/ternarybob/tabula/internal/services/version"
	"github.com/ternarybob/tabula/internal/shell"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	// Command-line flags
	configFiles  configPaths // Multiple -config flags supported
	boardAlias   = flag.String("board", "", "Board alias from the config to work on")
	boardAliasB  = flag.String("b", "", "Board alias (shorthand)")
	logLevel     = flag.String("log-level", "", "Log level override (debug, info, warn, error)")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")

	// Global state
	config *common.Config
	logger arbor.ILogger
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	defer common.RecoverWithCrashFile()

	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("Tabula version %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	board := *boardAlias
	if *boardAliasB != "" {
		board = *boardAliasB
	}

	// Startup sequence (REQUIRED ORDER):
	// 1. Load config (defaults -> file1 -> file2 -> ... -> env)
	// 2. Apply CLI overrides (highest priority)
	// 3. Initialize logger
	// 4. Print banner
	var err error

	// First run: with no config anywhere, write a starter config and stop so
	// the user can fill in their server details.
	if len(configFiles) == 0 {
		if _, err := os.Stat(common.DefaultConfigPath()); os.IsNotExist(err) {
			configPath, labelsPath, err := common.WriteStarterFiles(common.DefaultConfigDir())
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to create starter config: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("Created starter configuration:\n  %s\n  %s\nEdit it and run tabula again.\n", configPath, labelsPath)
			os.Exit(0)
		}
		configFiles = append(configFiles, common.DefaultConfigPath())
	}

	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration files")
		os.Exit(1)
	}

	common.ApplyFlagOverrides(config, *logLevel)

	if err := config.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	common.InstallCrashHandler(filepath.Join(common.DefaultConfigDir(), "logs"))

	logger = common.InitLogger(config).WithCorrelationId(common.NewSessionID())

	common.PrintBanner(common.GetVersion())

	logger.Debug().
		Strs("config_files", configFiles).
		Str("server", config.Server.URL).
		Str("auth", config.Server.Auth).
		Str("log_level", config.Logging.Level).
		Str("log_file", common.GetLogFilePath(logger)).
		Msg("Resolved configuration")

	if board == "" && len(config.Boards) > 1 {
		if picked, err := shell.Pick("Board", config.BoardNames()); err == nil && picked != "" {
			board = picked
		}
	}
	boardConfig, err := config.FindBoard(board)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if config.CheckForUpdates {
		result := version.NewChecker().Check(ctx, common.GetVersion())
		switch {
		case result.Err != nil:
			logger.Debug().Err(result.Err).Msg("Update check failed")
		case result.HasUpdate:
			fmt.Printf("A newer release is available (%s): %s\n", result.LatestVersion, result.UpdateURL)
		}
	}

	client := jira.NewClient(config.Server,
		jira.WithLogger(logger),
		jira.WithPasswordPrompt(func() (string, error) {
			return shell.PromptPassword(config.Server.Username)
		}),
		jira.WithConfirm(confirmPrompt),
	)

	fmt.Printf("Connecting to %s as %s...\n", config.Server.URL, config.Server.Username)
	if err := client.Connect(ctx); err != nil {
		var captcha *jira.CaptchaError
		if errors.As(err, &captcha) {
			fmt.Fprintf(os.Stderr, "The server requires a CAPTCHA. Log in once in your browser at %s and retry.\n", captcha.LoginURL)
		} else {
			fmt.Fprintf(os.Stderr, "Failed to connect: %v\n", err)
		}
		logger.Error().Err(err).Msg("Connection failed")
		os.Exit(1)
	}

	// Resolve the connected identity up front so downstream prompts can
	// default to it (a new card is assigned to its creator unless overridden).
	me, err := client.Me(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to look up the connected user: %v\n", err)
		logger.Error().Err(err).Msg("Identity lookup failed")
		os.Exit(1)
	}
	fmt.Printf("Connected as %s\n", me.Name)

	boardResolver := resolver.NewService(client, *boardConfig, config, logger)

	prompt := shell.New(client, boardResolver, config, logger)
	if err := prompt.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("Shell exited with error")
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	logger.Info().Msg("Session ended")
}

// confirmPrompt asks a yes/no question on the terminal during connection,
// before the shell's own prompt loop is running.
func confirmPrompt(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
