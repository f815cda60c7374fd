package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pathwise/mri-engine/internal/adzuna"
	"github.com/pathwise/mri-engine/internal/benchmark"
	"github.com/pathwise/mri-engine/internal/careeronestop"
	"github.com/pathwise/mri-engine/internal/evidence"
	"github.com/pathwise/mri-engine/internal/github"
	"github.com/pathwise/mri-engine/internal/logger"
	"github.com/pathwise/mri-engine/internal/repoverify"
	"github.com/pathwise/mri-engine/internal/skills"
	"github.com/pathwise/mri-engine/internal/stress"
)

const (
	PromptFullResult = "Show the full result as JSON"
	PromptCitations  = "Show data source citations"
	PromptDumpToFile = "Dump the result to a file"
	PromptExit       = "Exit"
)

var errExit = errors.New("exit requested")

var resultPrompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptFullResult, PromptCitations, PromptDumpToFile, PromptExit},
}

var stressCmd = &cobra.Command{
	Use:   "stress",
	Short: "Compute the market stress composite for a user, role and location",
	Run: func(cmd *cobra.Command, _ []string) {
		runStress(cmd)
	},
}

func init() {
	rootCmd.AddCommand(stressCmd)

	stressCmd.Flags().StringP("user", "u", "", "user id the proofs belong to")
	stressCmd.Flags().StringP("role", "r", "", "target role, e.g. 'backend engineer'")
	stressCmd.Flags().StringP("location", "l", "", "target location, e.g. 'Roswell, GA'")
	stressCmd.Flags().String("repo-url", "", "check this repository against the role's required skills instead of running the composite")
	stressCmd.Flags().String("proof-id", "", "proof record to annotate with the repository check outcome")
	stressCmd.Flags().BoolP("auto-approve", "y", false, "print the result and exit without the interactive menu")

	stressCmd.MarkFlagRequired("user")
	stressCmd.MarkFlagRequired("role")
	stressCmd.MarkFlagRequired("location")
}

func runStress(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the mri-engine", zap.String("version", version))

	orchestrator := buildOrchestrator(config, logger)

	userID, _ := cmd.Flags().GetString("user")
	role, _ := cmd.Flags().GetString("role")
	location, _ := cmd.Flags().GetString("location")

	if repoURL, _ := cmd.Flags().GetString("repo-url"); repoURL != "" {
		proofID, _ := cmd.Flags().GetString("proof-id")
		check, err := orchestrator.CheckRepoProof(ctx, userID, role, location, repoURL, proofID)
		if err != nil {
			logger.Fatal("checking repository proof", zap.Error(err))
		}
		printJSON(check)
		return
	}

	result, err := orchestrator.Run(ctx, userID, role, location)
	if err != nil {
		logger.Fatal("computing the composite", zap.Error(err))
	}

	logger.Info("composite computed",
		zap.Float64("score", result.Score),
		zap.String("source_mode", string(result.SourceMode)),
		zap.String("query_mode", string(result.Benchmark.QueryMode)),
		zap.Int("matched_skills", result.MatchedSkillCount),
		zap.Int("required_skills", result.RequiredSkillCount),
	)

	if auto, _ := cmd.Flags().GetBool("auto-approve"); auto {
		printJSON(result)
		return
	}

	for {
		_, action, err := resultPrompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}
		if err := handleResultAction(action, result, logger); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func handleResultAction(action string, result *stress.Result, logger *zap.Logger) error {
	switch action {
	case PromptFullResult:
		printJSON(result)
		return nil
	case PromptCitations:
		printJSON(result.Citations)
		return nil
	case PromptDumpToFile:
		filename, err := dumpToTmpFile(result)
		if err != nil {
			return fmt.Errorf("dump result to file: %w", err)
		}
		logger.Info("dumping result to file", zap.String("filename", filename))
		return nil
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

// buildOrchestrator wires every provider client, resolver and store the
// composite needs from the config.
func buildOrchestrator(config *Config, logger *zap.Logger) *stress.Orchestrator {
	snapshots := newSnapshotStore(config, logger)
	proofs := newProofStore(config)

	cosConfig := config.CareerOneStop
	if cosConfig == nil {
		cosConfig = &CareerOneStopConfig{}
	}
	cosToken, err := loadSecret("careeronestop token", cosConfig.TokenFile, "careeronestop.token-file", "CAREERONESTOP_TOKEN")
	if err != nil {
		logger.Fatal("loading careeronestop token",
			zap.Error(err),
			zap.String("hint", "set CAREERONESTOP_TOKEN_FILE or careeronestop.token-file in the configuration file"),
		)
	}
	skillResolver := skills.NewResolver(careeronestop.New(logger, cosConfig.UserID, cosToken), snapshots, logger)

	adzunaConfig := config.Adzuna
	if adzunaConfig == nil {
		adzunaConfig = &AdzunaConfig{}
	}
	appKey, err := loadSecret("adzuna app key", adzunaConfig.AppKeyFile, "adzuna.app-key-file", "ADZUNA_APP_KEY")
	if err != nil {
		logger.Fatal("loading adzuna app key",
			zap.Error(err),
			zap.String("hint", "set ADZUNA_APP_KEY_FILE or adzuna.app-key-file in the configuration file"),
		)
	}
	market, err := adzuna.New(logger, adzunaConfig.AppID, appKey, adzunaConfig.Country)
	if err != nil {
		logger.Fatal("building adzuna client",
			zap.Error(err),
			zap.String("hint", "set adzuna.app-id in the configuration file"),
		)
	}
	benchmarks := benchmark.NewResolver(market, snapshots, logger)

	verifier := repoverify.NewVerifier(newGitHubClient(config, logger), logger)

	return stress.NewOrchestrator(skillResolver, benchmarks, proofs, snapshots, logger,
		stress.WithRepoVerifier(verifier, proofs))
}

// newGitHubClient builds the GitHub client; the token is optional and its
// absence only lowers the rate limit.
func newGitHubClient(config *Config, logger *zap.Logger) *github.Client {
	var tokenFile string
	if config.GitHub != nil {
		tokenFile = config.GitHub.TokenFile
	}
	token, err := loadSecret("github token", tokenFile, "github.token-file", "GITHUB_TOKEN")
	if err != nil {
		logger.Debug("continuing without a github token", zap.Error(err))
		token = ""
	}
	return github.New(logger, token)
}

func newProofStore(config *Config) *evidence.FileStore {
	path := ".mri-engine/proofs.json"
	if config.Data != nil && config.Data.ProofsFile != "" {
		path = config.Data.ProofsFile
	}
	return evidence.NewFileStore(path)
}

func printJSON(v any) {
	pretty, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(os.Stdout, string(pretty))
}

func dumpToTmpFile(v any) (string, error) {
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}

	file, err := os.CreateTemp("", app+"-result-*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	if _, err := file.Write(pretty); err != nil {
		return "", err
	}
	return file.Name(), nil
}
