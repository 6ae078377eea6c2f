package clouddeploy

import (
	"hash/fnv"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/deploy/apiv1/deploypb"

	"github.com/reillywatson/dorastats/internal/snapshot"
)

// Release annotations that carry the deployed commit
const (
	AnnotationGitSHA = "git-sha"
	AnnotationCommit = "commit"
	AnnotationActor  = "actor"
)

// ReleaseID is the last segment of a release resource name
// (projects/P/locations/R/deliveryPipelines/D/releases/ID)
func ReleaseID(name string) string {
	return path.Base(name)
}

// CommitSHA reads the commit of a release from its annotations. A commit
// annotation holds a URL ending in the SHA.
func CommitSHA(release *deploypb.Release) string {
	if sha := release.GetAnnotations()[AnnotationGitSHA]; sha != "" {
		return sha
	}
	if url := release.GetAnnotations()[AnnotationCommit]; url != "" {
		parts := strings.Split(strings.TrimRight(url, "/"), "/")
		return parts[len(parts)-1]
	}
	return ""
}

// deploymentID maps a release name onto a positive id that does not collide
// with GitHub deployment ids in practice
func deploymentID(name string) int64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	return int64(h.Sum64() >> 1)
}

// DeploymentFromRelease converts a release and its rollouts. The release
// finished when its last successful rollout ended; any failed rollout fails
// the deployment.
func DeploymentFromRelease(release *deploypb.Release, rollouts []*deploypb.Rollout, environment string) snapshot.Deployment {
	dep := snapshot.Deployment{
		ID:          deploymentID(release.GetName()),
		Environment: environment,
		State:       snapshot.StateUnknown,
		Actor:       release.GetAnnotations()[AnnotationActor],
		SHA:         CommitSHA(release),
		Ref:         ReleaseID(release.GetName()),
	}
	if release.GetCreateTime() != nil {
		dep.CreatedAt = snapshot.At(release.GetCreateTime().AsTime())
	}

	var finished time.Time
	succeeded, failed := false, false
	for _, r := range rollouts {
		switch r.GetState() {
		case deploypb.Rollout_SUCCEEDED:
			succeeded = true
			if end := r.GetDeployEndTime(); end != nil && end.AsTime().After(finished) {
				finished = end.AsTime()
			}
		case deploypb.Rollout_FAILED:
			failed = true
			if end := r.GetDeployEndTime(); end != nil && end.AsTime().After(finished) {
				finished = end.AsTime()
			}
		}
	}

	switch {
	case failed:
		dep.State = snapshot.StateFailure
	case succeeded:
		dep.State = snapshot.StateSuccess
	}
	dep.FinishedAt = snapshot.At(finished)
	return dep
}
