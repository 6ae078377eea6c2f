// Package clouddeploy reads deployments from Google Cloud Deploy releases.
package clouddeploy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	deploy "cloud.google.com/go/deploy/apiv1"
	"cloud.google.com/go/deploy/apiv1/deploypb"
	"cloud.google.com/go/logging/logadmin"
	"google.golang.org/api/iterator"
)

// ErrNoLogs is returned when no log entry mentions a release
var ErrNoLogs = errors.New("no logs found")

// logSearchWindow bounds how long after creation a release's first log entry
// is looked for
const logSearchWindow = 30 * time.Minute

// API is the subset of Cloud Deploy and Cloud Logging the source needs
type API interface {
	ListReleases(ctx context.Context, since time.Time) ([]*deploypb.Release, error)
	ListRollouts(ctx context.Context, releaseName string) ([]*deploypb.Rollout, error)
	FirstLogEntry(ctx context.Context, releaseID string, start time.Time) (time.Time, error)
}

// Client wraps Google Cloud Deploy and Cloud Logging
type Client struct {
	deployClient  *deploy.CloudDeployClient
	loggingClient *logadmin.Client
	projectID     string
	region        string
	// pipelines whose name contains this are read; empty reads all
	pipelineFilter string
}

// NewClient creates a Client with Application Default Credentials
func NewClient(ctx context.Context, projectID, region, pipelineFilter string) (*Client, error) {
	deployClient, err := deploy.NewCloudDeployClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create deploy client: %w", err)
	}

	loggingClient, err := logadmin.NewClient(ctx, projectID)
	if err != nil {
		deployClient.Close()
		return nil, fmt.Errorf("failed to create logging client: %w", err)
	}

	return &Client{
		deployClient:   deployClient,
		loggingClient:  loggingClient,
		projectID:      projectID,
		region:         region,
		pipelineFilter: strings.ToLower(pipelineFilter),
	}, nil
}

// Close cleans up the client connections
func (c *Client) Close() error {
	return errors.Join(c.deployClient.Close(), c.loggingClient.Close())
}

func (c *Client) pipelines(ctx context.Context) ([]string, error) {
	it := c.deployClient.ListDeliveryPipelines(ctx, &deploypb.ListDeliveryPipelinesRequest{
		Parent: fmt.Sprintf("projects/%s/locations/%s", c.projectID, c.region),
	})

	var names []string
	for {
		pipeline, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list delivery pipelines: %w", err)
		}
		if strings.Contains(strings.ToLower(pipeline.Name), c.pipelineFilter) {
			names = append(names, pipeline.Name)
		}
	}
	return names, nil
}

// ListReleases returns the successfully rendered releases of the matching
// pipelines created at or after since
func (c *Client) ListReleases(ctx context.Context, since time.Time) ([]*deploypb.Release, error) {
	pipelines, err := c.pipelines(ctx)
	if err != nil {
		return nil, err
	}

	var releases []*deploypb.Release
	for _, pipeline := range pipelines {
		it := c.deployClient.ListReleases(ctx, &deploypb.ListReleasesRequest{Parent: pipeline})
		for {
			release, err := it.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("failed to list releases for pipeline %s: %w", pipeline, err)
			}
			if release.RenderState != deploypb.Release_SUCCEEDED {
				continue
			}
			if !since.IsZero() && release.GetCreateTime().AsTime().Before(since) {
				continue
			}
			releases = append(releases, release)
		}
	}
	return releases, nil
}

// ListRollouts returns the rollouts of a release
func (c *Client) ListRollouts(ctx context.Context, releaseName string) ([]*deploypb.Rollout, error) {
	it := c.deployClient.ListRollouts(ctx, &deploypb.ListRolloutsRequest{Parent: releaseName})

	var rollouts []*deploypb.Rollout
	for {
		rollout, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list rollouts for %s: %w", releaseName, err)
		}
		rollouts = append(rollouts, rollout)
	}
	return rollouts, nil
}

// FirstLogEntry returns the time of the first log line emitted by pods of the
// release within logSearchWindow of start
func (c *Client) FirstLogEntry(ctx context.Context, releaseID string, start time.Time) (time.Time, error) {
	filter := fmt.Sprintf(`labels."k8s-pod/deploy_cloud_google_com/release-id"="%s" AND timestamp>="%s" AND timestamp<="%s"`,
		releaseID,
		start.Format(time.RFC3339),
		start.Add(logSearchWindow).Format(time.RFC3339))

	it := c.loggingClient.Entries(ctx,
		logadmin.Filter(filter),
		logadmin.PageSize(1),
	)

	entry, err := it.Next()
	if err == iterator.Done {
		return time.Time{}, fmt.Errorf("%w for release %s", ErrNoLogs, releaseID)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("error querying logs: %w", err)
	}
	return entry.Timestamp, nil
}
