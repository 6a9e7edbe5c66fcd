package cli

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/nutriscan/internal/control"
	"github.com/vietddude/nutriscan/internal/core/apperr"
	"github.com/vietddude/nutriscan/internal/core/config"
	"github.com/vietddude/nutriscan/internal/service"
)

var (
	analyzeConditions []string
	analyzeImage      string
	analyzeQuestion   string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [food]",
	Short: "Analyze a food (or a photo with --image) and print the verdict as JSON",
	Args:  cobra.MaximumNArgs(1),
	Run:   runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringSliceVarP(&analyzeConditions, "condition", "c", nil, "health condition (repeatable)")
	analyzeCmd.Flags().StringVar(&analyzeImage, "image", "", "path to a food photo")
	analyzeCmd.Flags().StringVarP(&analyzeQuestion, "question", "q", "", "ask a follow-up question instead of a verdict")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	setupLogging(cfg)
	if !isDebug {
		// Keep stdout clean for the JSON result.
		stylelog.InitDefault(&tint.Options{Level: slog.LevelWarn, TimeFormat: time.RFC3339})
	}

	var food string
	if len(args) == 1 {
		food = args[0]
	}

	os.Exit(executeAnalyze(context.Background(), cfg, analyzeInput{
		Food:       food,
		Conditions: analyzeConditions,
		ImagePath:  analyzeImage,
		Question:   analyzeQuestion,
	}, os.Stdout))
}

type analyzeInput struct {
	Food       string
	Conditions []string
	ImagePath  string
	Question   string
}

// executeAnalyze runs one scan and writes the result, or the client error
// body, to out. It returns the process exit code and always stops the app
// first.
func executeAnalyze(ctx context.Context, cfg *config.AppConfig, in analyzeInput, out io.Writer) int {
	app, err := control.NewApp(cfg)
	if err != nil {
		slog.Error("Failed to initialize NutriScan", "error", err)
		return 1
	}
	defer func() {
		if err := app.Stop(ctx); err != nil {
			slog.Warn("Failed to stop NutriScan cleanly", "error", err)
		}
	}()

	var result any
	if in.Question != "" {
		result, err = app.Analyzer().Ask(ctx, service.AskRequest{
			FoodName:   in.Food,
			Question:   in.Question,
			Conditions: in.Conditions,
		})
	} else {
		req := service.AnalyzeRequest{FoodName: in.Food, Conditions: in.Conditions}
		if in.ImagePath != "" {
			req.Image, err = os.ReadFile(in.ImagePath)
			if err != nil {
				slog.Error("Failed to read image", "path", in.ImagePath, "error", err)
				return 1
			}
		}
		result, err = app.Analyzer().Analyze(ctx, req)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err != nil {
		enc.Encode(apperr.ToClientResponse(err))
		return 1
	}
	enc.Encode(result)
	return 0
}
