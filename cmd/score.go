package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/covergrid/portfolio-cli/internal/model"
	"github.com/covergrid/portfolio-cli/internal/scorer"
)

var scoreCmd = &cobra.Command{
	Use:   "score <user-id>",
	Short: "Score a single user's portfolio",
	Long: `Score one user's active policies against the market benchmark for
their age band and print the composite score, rating, and sub-scores.

Examples:
  # Score a user and print a summary
  score 7f3c0d2e

  # Print the full result as JSON
  score 7f3c0d2e --format json

  # Persist the result as a snapshot
  score 7f3c0d2e --save`,
	Args: cobra.ExactArgs(1),
	RunE: runScore,
}

func init() {
	f := scoreCmd.Flags()
	f.String("format", "table", "output format: table or json")
	f.Bool("save", false, "append the result to the user's snapshot history")

	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	userID := args[0]
	format, _ := cmd.Flags().GetString("format")
	save, _ := cmd.Flags().GetBool("save")

	if format != "table" && format != "json" {
		return eris.Errorf("score: --format must be table or json (got %q)", format)
	}

	env, err := initEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	policies, err := env.Store.ListActivePolicies(ctx, userID)
	if err != nil {
		return eris.Wrapf(err, "score: policies for %s", userID)
	}
	agg := scorer.Aggregate(policies)
	if agg.PolicyCount == 0 {
		fmt.Printf("User %s has no active policies; nothing to score.\n", userID)
		return nil
	}

	profile, err := env.Store.GetProfile(ctx, userID)
	if err != nil {
		return eris.Wrapf(err, "score: profile for %s", userID)
	}

	now := time.Now().UTC()
	age := model.AgeAt(profile.DateOfBirth, now)
	result := scorer.Compute(agg, env.Benchmarks.ForAge(age))

	if format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return eris.Wrap(err, "score: encode result")
		}
	} else {
		printScore(userID, age, result)
	}

	if save {
		snap := &model.PerformanceSnapshot{
			UserID:        userID,
			Score:         result.Score,
			Rating:        result.Rating,
			PremiumScore:  result.PremiumScore,
			CoverageScore: result.CoverageScore,
			PolicyScore:   result.PolicyScore,
			TotalPremium:  agg.TotalPremium,
			TotalCoverage: agg.TotalCoverage,
			PolicyCount:   agg.PolicyCount,
			CreatedAt:     now,
		}
		if err := env.Store.AppendSnapshot(ctx, snap); err != nil {
			return eris.Wrapf(err, "score: save snapshot for %s", userID)
		}
		zap.L().Info("snapshot saved", zap.String("user_id", userID), zap.Int("score", result.Score))
	}

	return nil
}

func printScore(userID string, age int, r scorer.Result) {
	fmt.Printf("User:     %s\n", userID)
	fmt.Printf("Age:      %d\n", age)
	fmt.Printf("Score:    %d / 100\n", r.Score)
	fmt.Printf("Rating:   %s\n", r.Rating)
	fmt.Println("\nComponents:")
	fmt.Printf("  %-10s %5.1f / 40\n", "premium", r.PremiumScore)
	fmt.Printf("  %-10s %5.1f / 40\n", "coverage", r.CoverageScore)
	fmt.Printf("  %-10s %5.1f / 20\n", "policies", r.PolicyScore)
	fmt.Println("\nPortfolio:")
	fmt.Printf("  %-15s %.2f\n", "total premium", r.Aggregates.TotalPremium)
	fmt.Printf("  %-15s %.2f\n", "total coverage", r.Aggregates.TotalCoverage)
	fmt.Printf("  %-15s %d\n", "active policies", r.Aggregates.PolicyCount)
}
