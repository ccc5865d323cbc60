package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/moolen/sentinel/internal/config"
	"github.com/moolen/sentinel/internal/logging"
)

const Version = "0.1.0"

var (
	logLevelFlags []string // Supports multiple --log-level flags
	logFormat     string
	configPath    string
	envFile       string
)

var rootCmd = &cobra.Command{
	Use:   "sentinel",
	Short: "Sentinel - causal incident analysis for business metrics",
	Long: `Sentinel finds drops in a daily business metric, links them to the
operational events (commits, deploys, chat messages) that happened around
them and estimates how much each incident cost.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loadEnv(envFile)
		return setupLog(logLevelFlags, logFormat)
	},
}

func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}

func init() {
	// Global flags available to all subcommands
	// Supports per-package log levels: --log-level debug --log-level classifier=warn
	rootCmd.PersistentFlags().StringSliceVar(&logLevelFlags, "log-level",
		[]string{"info"},
		"Log level for packages. Use 'default=level' for default, or 'package.name=level' for per-package.\n"+
			"Examples: --log-level debug (all), --log-level analysis.*=debug --log-level classifier=warn")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log line format (text or json)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Dotenv file with classifier API keys")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(generateCmd)
}

// loadEnv reads API keys from a dotenv file. Existing environment variables
// win and a missing file is not an error.
func loadEnv(path string) {
	if path == "" {
		return
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := godotenv.Load(path); err != nil {
		logging.GetLogger("sentinel").Warn("Failed to load %s: %v", path, err)
	}
}

// setupLog initializes the logging system with parsed log level flags
// Priority: CLI flags > Environment variables > Initialize default
func setupLog(flags []string, format string) error {
	defaultLevel, packageLevels, err := parseLogLevelFlags(flags)
	if err != nil {
		return err
	}

	f, err := logging.ParseFormat(format)
	if err != nil {
		return err
	}
	logging.SetFormat(f)

	return logging.Initialize(defaultLevel, packageLevels)
}

// loadConfig reads --config (or the defaults). Command flags are applied on
// top by the caller and the result validated again.
func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

// parseLogLevelFlags parses CLI flags and environment variables
// Priority: CLI flags > Environment variables
//
// CLI format: ["debug"], ["default=info", "analysis.causal=debug"], or ["info"]
// Env vars: LOG_LEVEL_ANALYSIS_CAUSAL=debug (package name uppercased, dots to underscores)
//
// Returns: (defaultLevel, packageLevels map, error)
func parseLogLevelFlags(flags []string) (string, map[string]string, error) {
	result := make(map[string]string)

	for _, envPair := range os.Environ() {
		if !strings.HasPrefix(envPair, "LOG_LEVEL_") {
			continue
		}
		parts := strings.SplitN(envPair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		result[convertEnvKeyToPackageName(parts[0])] = parts[1]
	}

	for _, flag := range flags {
		if !strings.Contains(flag, "=") {
			result["default"] = flag
			continue
		}
		parts := strings.SplitN(flag, "=", 2)
		result[parts[0]] = parts[1]
	}

	defaultLevel := "info"
	if level, exists := result["default"]; exists {
		defaultLevel = level
		delete(result, "default")
	}

	if err := logging.ValidateLevel(defaultLevel); err != nil {
		return "", nil, err
	}
	for pkg, level := range result {
		if err := logging.ValidateLevel(level); err != nil {
			return "", nil, fmt.Errorf("invalid log level for package %q: %v", pkg, err)
		}
	}

	return defaultLevel, result, nil
}

// convertEnvKeyToPackageName converts LOG_LEVEL_ANALYSIS_CAUSAL -> analysis.causal
func convertEnvKeyToPackageName(envKey string) string {
	name := strings.TrimPrefix(envKey, "LOG_LEVEL_")
	return strings.ToLower(strings.ReplaceAll(name, "_", "."))
}

// isTerminal reports whether f is an interactive terminal
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
