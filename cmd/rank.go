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

	"github.com/rankworks/cv-ranker/internal/ai/gemini"
	"github.com/rankworks/cv-ranker/internal/candidate"
	"github.com/rankworks/cv-ranker/internal/logger"
	"github.com/rankworks/cv-ranker/internal/matching"
)

const (
	PromptInspect    = "Inspect a match"
	PromptDumpToFile = "Dump results to file"
	PromptExit       = "Exit"
	PromptBack       = "back"
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank candidate profiles against a job description once and exit",
	Run: func(cmd *cobra.Command, _ []string) {
		rank(cmd)
	},
}

func init() {
	rootCmd.AddCommand(rankCmd)

	rankCmd.Flags().StringP("job", "J", "", "path to a text file with the job description")
	rankCmd.Flags().StringP("candidates", "c", "", "path to a JSON file with candidate profiles")
	rankCmd.Flags().StringP("output", "o", "", "write results to this file instead of starting the interactive prompt")

	_ = rankCmd.MarkFlagRequired("job")
	_ = rankCmd.MarkFlagRequired("candidates")
}

func rank(cmd *cobra.Command) {
	ctx := context.Background()

	zlog, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer func() { _ = zlog.Sync() }()

	config, err := getConfig()
	if err != nil {
		zlog.Fatal("getting a config", zap.Error(err))
	}

	jobFile := cmd.Flag("job").Value.String()
	jobData, err := os.ReadFile(jobFile)
	if err != nil {
		zlog.Fatal("reading the job description file", zap.Error(err))
	}

	candidatesFile := cmd.Flag("candidates").Value.String()
	profiles, err := candidate.ProfilesFromFile(candidatesFile)
	if err != nil {
		zlog.Fatal("reading the candidates file", zap.Error(err))
	}

	zlog.Info("loaded candidate profiles", zap.Int("count", len(profiles)))

	generator, err := newGenerator(ctx, config.AI, zlog)
	if err != nil {
		zlog.Fatal("creating the gemini provider", zap.Error(err))
	}

	maxLogLen := 0
	if config.AI != nil && config.AI.Gemini != nil {
		maxLogLen = config.AI.Gemini.MaxLogLength
	}

	scorer := gemini.NewScorer(generator, zlog, maxLogLen)
	ranker := matching.NewRanker(generator, scorer, zlog, rankerConfig(config))

	results, err := ranker.Rank(ctx, string(jobData), profiles)
	if err != nil {
		var inputErr *matching.InputError
		if errors.As(err, &inputErr) {
			zlog.Fatal("invalid input", zap.String("reason", inputErr.Reason))
		}
		zlog.Fatal("ranking failed", zap.Error(err))
	}

	pretty, _ := json.MarshalIndent(results, "", "  ")
	fmt.Println(string(pretty))

	if output := cmd.Flag("output").Value.String(); output != "" {
		if err := os.WriteFile(output, append(pretty, '\n'), 0o644); err != nil {
			zlog.Fatal("writing results", zap.Error(err))
		}
		zlog.Info("results written", zap.String("filename", output))
		return
	}

	if err := interactiveLoop(&candidate.MatchResults{Items: results}, zlog); err != nil {
		zlog.Fatal("exiting", zap.Error(err))
	}
}

func interactiveLoop(results *candidate.MatchResults, zlog *zap.Logger) error {
	prompt := promptui.Select{
		Label: "What next?",
		Items: []string{PromptInspect, PromptDumpToFile, PromptExit},
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			return err
		}

		switch action {
		case PromptInspect:
			if err := inspectMatch(results); err != nil {
				return err
			}
		case PromptDumpToFile:
			filename, err := results.DumpToTmpFile()
			if err != nil {
				return fmt.Errorf("dump results to file: %w", err)
			}
			zlog.Info("dumping results to file", zap.String("filename", filename))
		case PromptExit:
			return nil
		default:
			return fmt.Errorf("invalid action: %s", action)
		}
	}
}

func inspectMatch(results *candidate.MatchResults) error {
	items := make([]string, 0, results.Len())
	for _, result := range results.Items {
		items = append(items, fmt.Sprintf("%s (score %d)", result.Name, result.Score))
	}

	matchPrompt := promptui.Select{
		Label: "Choose a match and press ENTER",
		Items: append(items, PromptBack),
	}

	idx, selected, err := matchPrompt.Run()
	if err != nil {
		return err
	}

	if selected == PromptBack {
		return nil
	}

	result := results.Items[idx]
	fmt.Printf("%s\nscore: %d\njustification: %s\n", result.Name, result.Score, result.Justification)

	return nil
}
