package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/reillywatson/dorastats/internal/cache"
	"github.com/reillywatson/dorastats/internal/clouddeploy"
	"github.com/reillywatson/dorastats/internal/collect"
	"github.com/reillywatson/dorastats/internal/config"
	gh "github.com/reillywatson/dorastats/internal/github"
	"github.com/reillywatson/dorastats/internal/logging"
)

func main() {
	// Define command line flags
	configPath := flag.String("config", "", "Path to the YAML config file (optional)")
	repoStr := flag.String("repo", "", "Repository in owner/repo format (required)")
	environment := flag.String("env", "production", "Deployment environment to track")
	incidentLabel := flag.String("incident-label", "incident", "Issue label marking incidents")
	lookback := flag.Int("lookback", 90, "Days of history to keep (0 keeps everything)")
	prLimit := flag.Int("pr-limit", 300, "Maximum number of merged pull requests to fetch")
	deployLimit := flag.Int("deploy-limit", 200, "Maximum number of deployments to fetch")
	cfrWindow := flag.Duration("cfr-window", collect.DefaultCFRWindow, "Incidents opened this long after a deployment fail it (0 uses deployment state only)")
	projectID := flag.String("project", "", "Google Cloud project ID; enables Cloud Deploy releases")
	region := flag.String("region", "us-east4", "Google Cloud region")
	pipeline := flag.String("pipeline", "", "Only read delivery pipelines whose name contains this")
	output := flag.String("out", "dora.json", "Output path")

	flag.Parse()

	if *repoStr == "" {
		fmt.Println("Usage: dora-collect [flags]")
		fmt.Println("Flags:")
		flag.PrintDefaults()
		os.Exit(1)
	}
	repo, err := gh.ParseRepo(*repoStr)
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

	// Create a cached GitHub client
	client, err := gh.NewClient(gh.Options{Token: cfg.GitHub.Token, RequestsPerSecond: cfg.GitHub.RequestsPerSecond})
	if err != nil {
		log.Fatalf("Error creating GitHub client: %v", err)
	}
	cached := gh.NewCachedClient(client, cacheImpl, logger)

	var extra collect.DeploymentSource
	if *projectID != "" {
		deployClient, err := clouddeploy.NewClient(ctx, *projectID, *region, *pipeline)
		if err != nil {
			log.Fatalf("Error creating Cloud Deploy client: %v", err)
		}
		defer deployClient.Close()
		extra = clouddeploy.NewSource(deployClient, cacheImpl, *projectID, *region, *environment, logger)
	}

	collector := collect.New(cached, extra, collect.Options{
		Repo:          repo,
		Environment:   *environment,
		IncidentLabel: *incidentLabel,
		Lookback:      *lookback,
		PRLimit:       *prLimit,
		DeployLimit:   *deployLimit,
		CFRWindow:     *cfrWindow,
	}, logger)

	export, err := collector.Run(ctx)
	if err != nil {
		log.Fatalf("Error collecting %s: %v", repo, err)
	}
	if err := export.WriteFile(*output); err != nil {
		log.Fatalf("Error writing %s: %v", *output, err)
	}

	fmt.Printf("Wrote %s: %d deployments, %d pull requests, %d incidents, %d days (run %s)\n",
		*output, len(export.Deployments), len(export.PullRequests), len(export.Incidents), len(export.Rollups), export.RunID)
}
