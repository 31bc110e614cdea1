package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"veriado/internal/analyzer"
	"veriado/internal/planner"
	"veriado/internal/search"
)

// searchProfile resolves the analyzer profile queries are lowered
// through, the same registry/profile-name pair the indexing coordinator
// uses to build the projections being searched.
func searchProfile() *analyzer.Profile {
	registry := analyzer.NewRegistry(cfg.Analyzer)
	return registry.MustGet(cfg.Analyzer.DefaultProfile)
}

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Run a hydrated full-text search and print the hits",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		plan, err := planner.Parse(args[0])
		if err != nil {
			return fmt.Errorf("parse query: %w", err)
		}
		svc := search.New(st, cfg.Search, searchProfile())
		hits, err := svc.Search(context.Background(), plan, searchLimit)
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}
		for _, h := range hits {
			fmt.Printf("%s  score=%.3f  %s\n", h.FileID, h.NormalizedScore, h.Snippet)
		}
		fmt.Printf("%d hit(s)\n", len(hits))
		return nil
	},
}

var (
	gridExtension string
	gridAuthor    string
	gridMIME      string
	gridOffset    int
	gridLimit     int
)

var gridCmd = &cobra.Command{
	Use:   "grid [match]",
	Short: "Run a paged grid query with structured filters",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var match *string
		if len(args) == 1 {
			match = &args[0]
		}
		svc := search.New(st, cfg.Search, searchProfile())
		res, err := svc.SearchGrid(context.Background(), search.GridRequest{
			Match: match,
			Params: search.GridParams{
				Extension: gridExtension,
				Author:    gridAuthor,
				MIME:      gridMIME,
			},
			Offset: gridOffset,
			Limit:  gridLimit,
		})
		if err != nil {
			return fmt.Errorf("search grid: %w", err)
		}
		for _, item := range res.Items {
			fmt.Printf("%s  modified=%s\n", item.FileID, item.LastModifiedUTC)
		}
		fmt.Printf("page=%d page_size=%d total=%d has_more=%t truncated=%t\n",
			res.Page, res.PageSize, res.TotalCount, res.HasMore, res.IsTruncated)
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", 20, "maximum hits to return")

	gridCmd.Flags().StringVar(&gridExtension, "extension", "", "filter by file extension")
	gridCmd.Flags().StringVar(&gridAuthor, "author", "", "filter by author")
	gridCmd.Flags().StringVar(&gridMIME, "mime", "", "filter by MIME type")
	gridCmd.Flags().IntVar(&gridOffset, "offset", 0, "page offset")
	gridCmd.Flags().IntVar(&gridLimit, "limit", 50, "page size")
}
