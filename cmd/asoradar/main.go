package main

import (
	"fmt"
	"os"

	"github.com/elonfeng/asoradar/pkg/opportunity"
	"github.com/spf13/cobra"
)

var (
	cfgFile     string
	storeFlag   string
	countryFlag string
	jsonOutput  bool
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "asoradar",
		Short:         "Score app store keywords by difficulty and traffic",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	root.PersistentFlags().StringVar(&storeFlag, "store", "", "marketplace: gplay or itunes (default: from config)")
	root.PersistentFlags().StringVar(&countryFlag, "country", "", "two-letter country code (default: from config)")
	root.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	root.AddCommand(analyzeCmd())
	root.AddCommand(opportunityCmd())
	root.AddCommand(suggestCmd())
	root.AddCommand(combosCmd())
	root.AddCommand(compareCmd())
	root.AddCommand(keywordsCmd())
	root.AddCommand(importCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(runCmd())

	return root
}

func analyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <keyword>...",
		Short: "Score keyword difficulty and traffic",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), args)
		},
	}
}

func opportunityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "opportunity <keyword>",
		Short: "Rate the market opportunity of a keyword",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOpportunity(cmd.Context(), args[0])
		},
	}
}

func suggestCmd() *cobra.Command {
	var opts suggestFlags

	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Suggest keywords from related apps",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuggest(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.strategy, "strategy", "category", "similar, category, competition, keywords or arbitrary")
	cmd.Flags().StringVar(&opts.appID, "app", "", "seed app id")
	cmd.Flags().StringSliceVar(&opts.apps, "apps", nil, "app ids for the arbitrary strategy")
	cmd.Flags().StringSliceVar(&opts.keywords, "keywords", nil, "seed keywords for the keywords strategy")
	cmd.Flags().IntVar(&opts.num, "num", 30, "max suggestions")
	return cmd
}

func combosCmd() *cobra.Command {
	var maxLen int

	cmd := &cobra.Command{
		Use:   "combos <keyword>...",
		Short: "Join keywords into phrases that fit the length limit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCombos(args, maxLen)
		},
	}

	cmd.Flags().IntVar(&maxLen, "max-length", opportunity.DefaultCombinationLength, "max phrase length in characters")
	return cmd
}

func compareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compare <app> <competitor>",
		Short: "Compare an app against a competitor",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompare(cmd.Context(), args[0], args[1])
		},
	}
}

func keywordsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keywords <app>",
		Short: "Extract the keywords of an app listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeywords(cmd.Context(), args[0])
		},
	}
}

func importCmd() *cobra.Command {
	var dsn string

	cmd := &cobra.Command{
		Use:   "import <snapshot.json>",
		Short: "Load a marketplace snapshot into the snapshot database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), args[0], dsn)
		},
	}

	cmd.Flags().StringVar(&dsn, "dsn", "", "snapshot database (default: source.dsn from config)")
	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func runCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start daemon with watchlist scheduler and HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}
