package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vietddude/nutriscan/internal/infra/resilience"
)

var configCheckCmd = &cobra.Command{
	Use:   "config-check",
	Short: "Validate the config file and print the effective retry schedule",
	Run:   runConfigCheck,
}

func init() {
	rootCmd.AddCommand(configCheckCmd)
}

func runConfigCheck(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	valid := true
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Config is invalid:\n%v\n\n", err)
		valid = false
	}

	policy := cfg.Retry.Policy()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SETTING\tVALUE")
	fmt.Fprintf(w, "server.port\t%d\n", cfg.Server.Port)
	fmt.Fprintf(w, "gemini.model\t%s\n", cfg.Gemini.Model)
	fmt.Fprintf(w, "gemini.timeout\t%s\n", cfg.Gemini.Timeout)
	fmt.Fprintf(w, "nutrition.timeout\t%s\n", cfg.Nutrition.Timeout)
	fmt.Fprintf(w, "cache\t%s\n", cacheKind(cfg.Redis.URL))
	fmt.Fprintf(w, "cache.ttl\t%s\n", cfg.Cache.TTL)
	fmt.Fprintf(w, "cache.coalesce\t%t\n", cfg.Cache.Coalesce)
	fmt.Fprintf(w, "analysis.strict\t%t\n", cfg.Analysis.Strict)
	fmt.Fprintf(w, "retry.retryable_status_codes\t%v\n", policy.RetryableStatusCodes)
	fmt.Fprintf(w, "retry.jitter\t%s\n", policy.Jitter)
	w.Flush()

	fmt.Println()
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ATTEMPT\tWAIT BEFORE")
	fmt.Fprintln(w, "1\t0s")
	for i, d := range resilience.Schedule(policy) {
		fmt.Fprintf(w, "%d\t%s\n", i+2, d)
	}
	w.Flush()

	if !valid {
		os.Exit(1)
	}
}

func cacheKind(redisURL string) string {
	if redisURL == "" {
		return "memory (lru)"
	}
	return "redis"
}
