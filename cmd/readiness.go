package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pathwise/mri-engine/internal/alignment"
	"github.com/pathwise/mri-engine/internal/engsignal"
	"github.com/pathwise/mri-engine/internal/logger"
	"github.com/pathwise/mri-engine/internal/readiness"
	"github.com/pathwise/mri-engine/internal/skills"
)

var readinessCmd = &cobra.Command{
	Use:   "readiness",
	Short: "Compute the market readiness verdict for a user",
	Run: func(cmd *cobra.Command, _ []string) {
		runReadiness(cmd)
	},
}

func init() {
	rootCmd.AddCommand(readinessCmd)

	readinessCmd.Flags().StringP("user", "u", "", "user id the proofs belong to")
	readinessCmd.Flags().StringP("pathway", "p", "", "pathway id whose demand signals to align against")
	readinessCmd.Flags().String("github-user", "", "github identity for the engineering signal")
	readinessCmd.Flags().String("checklist-file", "", "JSON file with the readiness checklist items")

	readinessCmd.MarkFlagRequired("user")
	readinessCmd.MarkFlagRequired("pathway")
}

// readinessResult is the CLI output: the aggregate verdict plus the raw
// component results it was built from.
type readinessResult struct {
	Aggregate   readiness.Result          `json:"aggregate"`
	Checklist   readiness.ChecklistResult `json:"checklist"`
	Engineering engsignal.Result          `json:"engineering"`
	Alignment   *alignment.Result         `json:"alignment"`
	ComputedAt  time.Time                 `json:"computed_at"`
}

func runReadiness(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	userID, _ := cmd.Flags().GetString("user")
	pathwayID, _ := cmd.Flags().GetString("pathway")
	githubUser, _ := cmd.Flags().GetString("github-user")

	items, err := loadChecklist(cmd, config)
	if err != nil {
		logger.Fatal("loading the checklist", zap.Error(err))
	}

	proofStore := newProofStore(config)
	proofs, err := proofStore.ProofsForUser(ctx, userID)
	if err != nil {
		logger.Fatal("loading proofs", zap.Error(err))
	}
	verifiedNames, err := proofStore.VerifiedSkillNames(ctx, userID)
	if err != nil {
		logger.Fatal("loading verified skills", zap.Error(err))
	}

	checklist := readiness.ChecklistScore(items, proofs, time.Now())

	engineering := engsignal.NewAnalyzer(newGitHubClient(config, logger), logger).Analyze(ctx, githubUser)

	verifiedIDs := make([]string, 0, len(verifiedNames))
	for _, name := range verifiedNames {
		verifiedIDs = append(verifiedIDs, skills.Canonical(name))
	}
	aligned, err := alignment.NewAnalyzer(newSignalStore(config)).Align(ctx, pathwayID, verifiedIDs)
	if err != nil {
		logger.Fatal("aligning against market signals", zap.Error(err))
	}

	aggregate := readiness.Aggregate(checklist, engineering.Score, aligned.Score)

	logger.Info("readiness computed",
		zap.Float64("score", aggregate.Score),
		zap.String("band", aggregate.Band),
		zap.Bool("capped", aggregate.Capped),
	)

	printJSON(readinessResult{
		Aggregate:   aggregate,
		Checklist:   checklist,
		Engineering: engineering,
		Alignment:   aligned,
		ComputedAt:  time.Now(),
	})
}

func newSignalStore(config *Config) *alignment.FileSignalStore {
	path := ".mri-engine/signals.json"
	if config.Data != nil && config.Data.SignalsFile != "" {
		path = config.Data.SignalsFile
	}
	return alignment.NewFileSignalStore(path)
}

func loadChecklist(cmd *cobra.Command, config *Config) ([]readiness.ChecklistItem, error) {
	path, _ := cmd.Flags().GetString("checklist-file")
	if path == "" && config.Data != nil {
		path = config.Data.ChecklistFile
	}
	if path == "" {
		return nil, fmt.Errorf("checklist file is not configured (set --checklist-file or data.checklist-file)")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading checklist file %s: %w", path, err)
	}

	var items []readiness.ChecklistItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parsing checklist file %s: %w", path, err)
	}
	return items, nil
}
