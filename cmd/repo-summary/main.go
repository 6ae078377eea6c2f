package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/reillywatson/dorastats/internal/cache"
	"github.com/reillywatson/dorastats/internal/collect"
	"github.com/reillywatson/dorastats/internal/config"
	"github.com/reillywatson/dorastats/internal/feed"
	gh "github.com/reillywatson/dorastats/internal/github"
	"github.com/reillywatson/dorastats/internal/logging"
)

func main() {
	// Define command line flags
	configPath := flag.String("config", "", "Path to the YAML config file (optional)")
	readyStr := flag.String("ready-labels", strings.Join(collect.DefaultQAReadyLabels, ","), "Comma-separated labels marking issues ready for QA")
	completedStr := flag.String("completed-labels", strings.Join(collect.DefaultQACompletedLabels, ","), "Comma-separated labels marking issues QA completed")
	outDir := flag.String("out", ".", "Directory to write the summary CSVs into")

	flag.Parse()

	// Repositories are given as owner/repo or owner/repo=Display Name
	args := flag.Args()
	if len(args) < 1 {
		fmt.Println("Usage: repo-summary [flags] owner/repo[=Display Name]...")
		fmt.Println("Flags:")
		flag.PrintDefaults()
		os.Exit(1)
	}
	repos, err := parseRepos(args)
	if err != nil {
		log.Fatal(err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	if cfg.GitHub.Token == "" {
		log.Fatal("GITHUB_TOKEN environment variable not set")
	}
	logger, err := logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("Error creating logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Create cache
	cacheImpl, err := cache.New(cfg.Cache.Backend, cfg.Cache.Dir)
	if err != nil {
		log.Fatalf("Error creating cache: %v", err)
	}
	defer cacheImpl.Close()

	client, err := gh.NewClient(gh.Options{Token: cfg.GitHub.Token, RequestsPerSecond: cfg.GitHub.RequestsPerSecond})
	if err != nil {
		log.Fatalf("Error creating GitHub client: %v", err)
	}

	summarizer := collect.NewSummarizer(gh.NewCachedClient(client, cacheImpl, logger), collect.SummaryOptions{
		Repos:             repos,
		QAReadyLabels:     splitLabels(*readyStr),
		QACompletedLabels: splitLabels(*completedStr),
	}, logger)

	rows := summarizer.Rows(ctx, feed.Periods)
	written, err := collect.WriteSummaries(*outDir, rows)
	if err != nil {
		log.Fatalf("Error writing summaries: %v", err)
	}
	for _, path := range written {
		fmt.Printf("Wrote %s\n", path)
	}
}

func parseRepos(args []string) ([]collect.RepoSpec, error) {
	var repos []collect.RepoSpec
	for _, arg := range args {
		name, display, _ := strings.Cut(arg, "=")
		repo, err := gh.ParseRepo(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		repos = append(repos, collect.RepoSpec{Repo: repo, DisplayName: strings.TrimSpace(display)})
	}
	return repos, nil
}

func splitLabels(s string) []string {
	var labels []string
	for _, l := range strings.Split(s, ",") {
		if l = strings.TrimSpace(l); l != "" {
			labels = append(labels, l)
		}
	}
	return labels
}
