package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pricescout/backend/config"
	"github.com/pricescout/backend/internal/domain"
	"github.com/pricescout/backend/internal/infrastructure/provider"
	"github.com/pricescout/backend/internal/usecase"
	"github.com/pricescout/backend/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type searchOptions struct {
	name      string
	specs     string
	minPrice  float64
	maxPrice  float64
	recommend bool
	output    string
	timeout   time.Duration
	verbose   bool
}

func newSearchCommand() *cobra.Command {
	opts := &searchOptions{}

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search for products within a price range",
		Long: `
Search the product provider and list the offers priced within [min, max] KSH.

Examples:
  # Phones between 10,000 and 50,000 KSH
  pricescout search --name phone --min 10000 --max 50000

  # Highlight the best match and print YAML
  pricescout search -n "wireless mouse" --max 5000 --recommend -o yaml
`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			switch strings.ToLower(opts.output) {
			case FormatText, FormatJSON, FormatYAML:
				return nil
			default:
				return fmt.Errorf("invalid output format: %s. Valid formats: text, json, yaml", opts.output)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.name, "name", "n", "", "Product name to search for (required)")
	cmd.Flags().StringVarP(&opts.specs, "specs", "s", "", "Free-text specifications (informational)")
	cmd.Flags().Float64Var(&opts.minPrice, "min", 0, "Minimum price in KSH")
	cmd.Flags().Float64Var(&opts.maxPrice, "max", 0, "Maximum price in KSH (required)")
	cmd.Flags().BoolVarP(&opts.recommend, "recommend", "r", false, "Highlight the best product")
	cmd.Flags().StringVarP(&opts.output, "output", "o", FormatText, "Output format: text|json|yaml")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Provider fetch timeout (defaults to config)")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log provider traffic to stderr")

	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("max")

	return cmd
}

func runSearch(cmd *cobra.Command, opts *searchOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log := zap.NewNop()
	if opts.verbose {
		if log, err = logger.NewLogger(true); err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		defer func() { _ = log.Sync() }()
	}

	client := provider.NewClient(provider.ClientConfig{
		BaseURL:           cfg.Provider.BaseURL,
		APIKey:            cfg.Provider.APIKey,
		Timeout:           cfg.Provider.Timeout,
		RequestsPerSecond: cfg.Provider.RequestsPerSecond,
		Burst:             cfg.Provider.Burst,
		MaxAttempts:       cfg.Provider.MaxAttempts,
	}, log)
	client.SetDebug(opts.verbose)

	fetchTimeout := cfg.Search.FetchTimeout
	if opts.timeout > 0 {
		fetchTimeout = opts.timeout
	}

	normalizer := provider.NewNormalizer()
	// A single run has nothing to reuse, so no cache
	svc := usecase.NewSearchService(client, nil, normalizer, log, usecase.SearchServiceConfig{
		FetchTimeout:       fetchTimeout,
		EnableDebugLogging: opts.verbose,
	})

	snap, searchErr := svc.Search(cmd.Context(), domain.SearchCriteria{
		ProductName:    opts.name,
		Specifications: opts.specs,
		MinPrice:       opts.minPrice,
		MaxPrice:       opts.maxPrice,
	})
	if errors.Is(searchErr, domain.ErrInvalidCriteria) {
		return searchErr
	}

	if searchErr == nil && opts.recommend {
		svc.Recommend()
		snap = svc.Snapshot()
	}

	renderer := NewRenderer(normalizer.Rate())
	if err := renderer.Render(cmd.OutOrStdout(), snap, opts.output); err != nil {
		return fmt.Errorf("failed to render results: %w", err)
	}

	if searchErr != nil {
		return fmt.Errorf("search failed: %w", searchErr)
	}
	return nil
}
