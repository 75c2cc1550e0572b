// StockDeck — investor dashboard with resilient multi-source news.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/stockdeck/stockdeck/api"
	"github.com/stockdeck/stockdeck/internal/assistant"
	"github.com/stockdeck/stockdeck/internal/config"
	"github.com/stockdeck/stockdeck/internal/llm"
	"github.com/stockdeck/stockdeck/internal/market"
	"github.com/stockdeck/stockdeck/internal/newsfeed"
	"github.com/stockdeck/stockdeck/pkg/models"
	"github.com/stockdeck/stockdeck/pkg/utils"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config
var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "stockdeck",
	Short: "StockDeck — investor dashboard with resilient multi-source news",
	Long: `StockDeck
A market dashboard backend: live quotes and price history, a news
widget that falls back across providers (Alpha Vantage, NewsAPI,
bundled samples), an RSS market wire, and an LLM market assistant.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(newsCmd)
	rootCmd.AddCommand(quoteCmd)
	rootCmd.AddCommand(wireCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(statusCmd)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("StockDeck %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		api.Version = version
		srv, err := api.NewServer(cfg)
		if err != nil {
			return err
		}

		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		fmt.Printf("🌐 StockDeck API server listening on %s\n", addr)
		return srv.ListenAndServe(addr)
	},
}

// --- News Command ---

var newsCmd = &cobra.Command{
	Use:   "news",
	Short: "Fetch the news widget feed",
	Long:  "Runs one refresh of the fallback chain and prints the resulting items.",
	RunE: func(cmd *cobra.Command, args []string) error {
		categoryFlag, _ := cmd.Flags().GetString("category")
		category, err := models.ParseCategory(categoryFlag)
		if err != nil {
			return err
		}

		engine := newsfeed.NewEngine([]newsfeed.Provider{
			newsfeed.NewAlphaVantageClient(cfg.News.AlphaVantageKey),
			newsfeed.NewNewsAPIClient(cfg.News.NewsAPIKey),
		}, newsfeed.NewSampleSource())

		ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
		defer cancel()

		state := engine.SelectCategory(ctx, category)

		fmt.Printf("📰 News — %s (%s)\n", state.Category, state.Phase)
		if state.ErrorMessage != "" {
			fmt.Printf("⚠️  %s\n", state.ErrorMessage)
		}
		fmt.Println()
		now := time.Now()
		for _, item := range state.Items {
			fmt.Printf("  • %s\n", item.Title)
			fmt.Printf("    %s · %s\n", item.Source, utils.FormatRelative(item.PublishedAt, now))
		}
		return nil
	},
}

func init() {
	newsCmd.Flags().String("category", "general", "news category (general, technology, earnings)")
}

// --- Quote Command ---

var quoteCmd = &cobra.Command{
	Use:   "quote [symbol]",
	Short: "Fetch a stock quote",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := market.NewClient()

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		q, err := client.Quote(ctx, args[0])
		if err != nil {
			return err
		}

		sign := "+"
		if q.Change < 0 {
			sign = ""
		}
		fmt.Printf("📈 %s (%s)\n", q.Name, q.Symbol)
		fmt.Printf("   Price:      %.2f  %s%.2f (%s%.2f%%)\n", q.LastPrice, sign, q.Change, sign, q.ChangePct)
		fmt.Printf("   Day:        O %.2f  H %.2f  L %.2f  (prev close %.2f)\n", q.Open, q.High, q.Low, q.PrevClose)
		fmt.Printf("   52w range:  %.2f – %.2f\n", q.WeekLow52, q.WeekHigh52)
		if q.PE > 0 {
			fmt.Printf("   P/E:        %.2f\n", q.PE)
		}
		if q.DividendYield > 0 {
			fmt.Printf("   Yield:      %.2f%%\n", q.DividendYield)
		}
		fmt.Printf("   As of:      %s\n", utils.FormatDateTime(q.Timestamp))
		return nil
	},
}

// --- Wire Command ---

var wireCmd = &cobra.Command{
	Use:   "wire",
	Short: "Fetch the RSS market wire headlines",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		items, err := newsfeed.NewWire().Headlines(ctx, cfg.News.WireLimit)
		if err != nil {
			return err
		}

		fmt.Println("🗞️  Market Wire")
		now := time.Now()
		for _, item := range items {
			fmt.Printf("  • %s\n", item.Title)
			fmt.Printf("    %s · %s\n", item.Source, utils.FormatRelative(item.PublishedAt, now))
		}
		return nil
	},
}

// --- Chat Command ---

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask the market assistant a question",
	RunE: func(cmd *cobra.Command, args []string) error {
		message, _ := cmd.Flags().GetString("message")
		if message == "" {
			return fmt.Errorf("provide a question with --message")
		}

		client, err := llm.NewClient(cfg.LLM.APIKey,
			llm.WithBaseURL(cfg.LLM.BaseURL),
			llm.WithModel(cfg.LLM.Model))
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
		defer cancel()

		chunks, err := assistant.New(client).AskStream(ctx, message)
		if err != nil {
			return err
		}
		for chunk := range chunks {
			if chunk.Err != nil {
				return chunk.Err
			}
			fmt.Print(chunk.Content)
		}
		fmt.Println()
		return nil
	},
}

func init() {
	chatCmd.Flags().StringP("message", "m", "", "question for the assistant")
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  StockDeck — System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:     %s (%s)\n", version, commit)
		fmt.Printf("  Time:        %s\n", utils.FormatDateTime(time.Now()))
		fmt.Println()

		// Config summary
		fmt.Println("  Configuration:")
		fmt.Printf("    LLM Model:     %s\n", cfg.LLM.Model)
		fmt.Printf("    Market Wire:   enabled=%t limit=%d\n", cfg.News.WireEnabled, cfg.News.WireLimit)
		fmt.Printf("    History Days:  %d\n", cfg.Market.HistoryDays)
		fmt.Printf("    User DB:       %s\n", cfg.Auth.DBPath)
		fmt.Printf("    API Server:    %s:%d\n", cfg.API.Host, cfg.API.Port)
		fmt.Println()

		// API keys status
		fmt.Println("  API Keys:")
		keys := config.CheckAPIKeys(cfg)
		for _, k := range keys {
			status := "❌ not set"
			if k.IsSet {
				status = fmt.Sprintf("✅ set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Printf("    %-25s %s\n", k.Name+":", status)
		}

		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}
