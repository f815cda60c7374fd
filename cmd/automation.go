package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pathwise/mri-engine/internal/adzuna"
	"github.com/pathwise/mri-engine/internal/automation"
	"github.com/pathwise/mri-engine/internal/careeronestop"
	"github.com/pathwise/mri-engine/internal/logger"
)

var automationCmd = &cobra.Command{
	Use:   "automation",
	Short: "Run the market-signal ingestion",
}

var automationRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single ingestion cycle and exit",
	Run: func(_ *cobra.Command, _ []string) {
		runAutomation(false)
	},
}

var automationServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ingestion scheduler until interrupted",
	Run: func(_ *cobra.Command, _ []string) {
		runAutomation(true)
	},
}

func init() {
	rootCmd.AddCommand(automationCmd)
	automationCmd.AddCommand(automationRunCmd, automationServeCmd)
}

func runAutomation(serve bool) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	service := buildAutomationService(config, logger)

	if !serve {
		summary, err := service.RunCycle(ctx)
		if err != nil {
			logger.Fatal("running the ingestion cycle", zap.Error(err))
		}
		printJSON(summary)
		return
	}

	if err := service.Start(ctx); err != nil {
		logger.Fatal("starting the scheduler", zap.Error(err))
	}
	logger.Info("scheduler started")

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	<-signals

	logger.Info("shutting down")
	service.Stop()
}

func buildAutomationService(config *Config, logger *zap.Logger) *automation.Service {
	cosConfig := config.CareerOneStop
	if cosConfig == nil {
		cosConfig = &CareerOneStopConfig{}
	}
	cosToken, err := loadSecret("careeronestop token", cosConfig.TokenFile, "careeronestop.token-file", "CAREERONESTOP_TOKEN")
	if err != nil {
		logger.Fatal("loading careeronestop token", zap.Error(err))
	}

	adzunaConfig := config.Adzuna
	if adzunaConfig == nil {
		adzunaConfig = &AdzunaConfig{}
	}
	appKey, err := loadSecret("adzuna app key", adzunaConfig.AppKeyFile, "adzuna.app-key-file", "ADZUNA_APP_KEY")
	if err != nil {
		logger.Fatal("loading adzuna app key", zap.Error(err))
	}

	market, err := adzuna.New(logger, adzunaConfig.AppID, appKey, adzunaConfig.Country)
	if err != nil {
		logger.Fatal("building adzuna client", zap.Error(err))
	}

	connectors := []automation.Connector{
		automation.NewAdzunaConnector(market),
		automation.NewCareerOneStopConnector(careeronestop.New(logger, cosConfig.UserID, cosToken)),
	}

	pathways, err := loadPathways(config)
	if err != nil {
		logger.Fatal("loading pathways", zap.Error(err))
	}

	opts := []automation.ServiceOption{}
	if config.Automation != nil {
		opts = append(opts, automation.WithInterval(config.Automation.Interval))
		if config.Automation.RunOnStart {
			opts = append(opts, automation.WithRunOnStart())
		}
	}

	return automation.NewService(connectors, pathways, newSignalStore(config), logger, opts...)
}

func loadPathways(config *Config) (automation.StaticPathways, error) {
	path := ".mri-engine/pathways.json"
	if config.Data != nil && config.Data.PathwaysFile != "" {
		path = config.Data.PathwaysFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pathways file %s: %w", path, err)
	}

	var pathways automation.StaticPathways
	if err := json.Unmarshal(data, &pathways); err != nil {
		return nil, fmt.Errorf("parsing pathways file %s: %w", path, err)
	}
	return pathways, nil
}
