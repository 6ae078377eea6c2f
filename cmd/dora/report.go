package main

import (
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/reillywatson/dorastats/internal/dora"
	"github.com/reillywatson/dorastats/internal/report"
	"github.com/reillywatson/dorastats/internal/source"
)

func runReport(cmd *cobra.Command, args []string) error {
	cfg, _, feeds, c, err := setup()
	if err != nil {
		return err
	}
	defer c.Close()

	windowFlag, _ := cmd.Flags().GetString("window")
	window, err := dora.ParseWindow(windowFlag)
	if err != nil {
		return err
	}
	top, _ := cmd.Flags().GetInt("top")
	location := cfg.Snapshot.Location
	if v, _ := cmd.Flags().GetString("snapshot"); v != "" {
		location = v
	}

	periods := make([]int, 0, len(cfg.Feeds.Locations))
	for p := range cfg.Feeds.Locations {
		periods = append(periods, p)
	}
	sort.Ints(periods)

	bundle, err := source.LoadBundle(cmd.Context(), location, nil, feeds, periods)
	if err != nil {
		return err
	}
	return report.Render(os.Stdout, bundle, report.Options{
		Window:    window,
		Now:       time.Now().UTC(),
		TopActors: top,
	})
}
