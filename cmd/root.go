package cmd

import (
	"errors"
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pathwise/mri-engine/internal/secrets"
	"github.com/pathwise/mri-engine/internal/snapshot"
)

const (
	app = "mri-engine"
)

type Config struct {
	UserID        string               `mapstructure:"user-id"`
	Adzuna        *AdzunaConfig        `mapstructure:"adzuna"`
	CareerOneStop *CareerOneStopConfig `mapstructure:"careeronestop"`
	GitHub        *GitHubConfig        `mapstructure:"github"`
	Snapshots     *SnapshotsConfig     `mapstructure:"snapshots"`
	Automation    *AutomationConfig    `mapstructure:"automation"`
	Data          *DataConfig          `mapstructure:"data"`
}

type AdzunaConfig struct {
	AppID      string `mapstructure:"app-id"`
	AppKeyFile string `mapstructure:"app-key-file"`
	Country    string `mapstructure:"country"`
}

type CareerOneStopConfig struct {
	UserID    string `mapstructure:"user-id"`
	TokenFile string `mapstructure:"token-file"`
}

type GitHubConfig struct {
	TokenFile string `mapstructure:"token-file"`
}

type SnapshotsConfig struct {
	Dir string `mapstructure:"dir"`
}

type AutomationConfig struct {
	Interval   time.Duration `mapstructure:"interval"`
	RunOnStart bool          `mapstructure:"run-on-start"`
}

type DataConfig struct {
	ProofsFile    string `mapstructure:"proofs-file"`
	SignalsFile   string `mapstructure:"signals-file"`
	ChecklistFile string `mapstructure:"checklist-file"`
	PathwaysFile  string `mapstructure:"pathways-file"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "mri-engine scores market readiness and market stress for a target role from live labor-market data",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	for key, env := range map[string]string{
		"adzuna.app-key-file":      "ADZUNA_APP_KEY_FILE",
		"careeronestop.token-file": "CAREERONESTOP_TOKEN_FILE",
		"github.token-file":        "GITHUB_TOKEN_FILE",
	} {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is mri-engine.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)

		// We can't proceed if the config file parsed with error.
		if err := viper.ReadInConfig(); err != nil {
			log.Fatal(err)
		}
		return
	}

	viper.AddConfigPath(".")
	viper.SetConfigName(app + ".yaml")

	// Without an explicit --config a missing file is tolerated: every
	// setting has a flag or environment fallback.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, err
	}
	return config, nil
}

// loadSecret reads a credential from its configured file, falling back to
// the env-bound viper key for the file path and finally to env for the
// secret itself.
func loadSecret(name, configuredFile, viperKey, env string) (string, error) {
	file := configuredFile
	if file == "" {
		file = viper.GetString(viperKey)
	}
	return secrets.Load(secrets.Source{Name: name, File: file, Env: env})
}

func newSnapshotStore(config *Config, logger *zap.Logger) *snapshot.FileStore {
	dir := ".mri-engine/snapshots"
	if config.Snapshots != nil && config.Snapshots.Dir != "" {
		dir = config.Snapshots.Dir
	}
	store, err := snapshot.NewFileStore(dir)
	if err != nil {
		logger.Fatal("creating snapshot store", zap.String("dir", dir), zap.Error(err))
	}
	return store
}
