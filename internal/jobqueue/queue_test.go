package jobqueue_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/episoded/episoded/internal/jobqueue"
	"github.com/episoded/episoded/internal/models"
)

func echoExecutor(delay time.Duration, fail bool) jobqueue.Executor {
	return func(ctx context.Context, job *jobqueue.Job, progress func(float64, string, string)) (map[string]any, error) {
		progress(0, "starting", "")
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if fail {
			return nil, assert.AnError
		}
		progress(1.0, "done", "")
		return nil, nil
	}
}

func TestSubmitAndGet_Completes(t *testing.T) {
	q := jobqueue.New(jobqueue.DefaultConfig(), map[models.JobType]jobqueue.Executor{
		models.JobTypeDiscoverEpisodes: echoExecutor(10*time.Millisecond, false),
	}, nil, nil, nil)
	defer q.Stop()

	job, err := q.Submit(models.JobTypeDiscoverEpisodes, jobqueue.SubmitOptions{})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		snap, err := q.Get(job.ID)
		return err == nil && snap.Status == models.JobStatusCompleted
	}, time.Second, 5*time.Millisecond)
}

func TestSubmit_DuplicateEpisodeConflicts(t *testing.T) {
	q := jobqueue.New(jobqueue.DefaultConfig(), map[models.JobType]jobqueue.Executor{
		models.JobTypeProcessEpisode: echoExecutor(100*time.Millisecond, false),
	}, nil, nil, nil)
	defer q.Stop()

	episodeID := models.NewULID()
	_, err := q.Submit(models.JobTypeProcessEpisode, jobqueue.SubmitOptions{EpisodeID: &episodeID})
	require.NoError(t, err)

	_, err = q.Submit(models.JobTypeProcessEpisode, jobqueue.SubmitOptions{EpisodeID: &episodeID})
	require.Error(t, err)
}

func TestSubmit_QueueFull(t *testing.T) {
	release := make(chan struct{})
	blocking := func(ctx context.Context, job *jobqueue.Job, progress func(float64, string, string)) (map[string]any, error) {
		<-release
		return nil, nil
	}

	cfg := jobqueue.Config{MaxWorkers: 1, QueueCapacity: 1}
	q := jobqueue.New(cfg, map[models.JobType]jobqueue.Executor{
		models.JobTypeDiscoverEpisodes: blocking,
	}, nil, nil, nil)
	defer func() {
		close(release)
		q.Stop()
	}()

	job1, err := q.Submit(models.JobTypeDiscoverEpisodes, jobqueue.SubmitOptions{})
	require.NoError(t, err)

	// Wait until the single worker has picked job1 up so the channel
	// buffer (capacity 1) is free again for exactly one more job.
	require.Eventually(t, func() bool {
		snap, _ := q.Get(job1.ID)
		return snap.Status == models.JobStatusRunning
	}, time.Second, 2*time.Millisecond)

	_, err = q.Submit(models.JobTypeDiscoverEpisodes, jobqueue.SubmitOptions{})
	require.NoError(t, err)
	_, err = q.Submit(models.JobTypeDiscoverEpisodes, jobqueue.SubmitOptions{})
	require.Error(t, err)
}

func TestCancel_IdempotentOnTerminal(t *testing.T) {
	q := jobqueue.New(jobqueue.DefaultConfig(), map[models.JobType]jobqueue.Executor{
		models.JobTypeDiscoverEpisodes: echoExecutor(1*time.Millisecond, false),
	}, nil, nil, nil)
	defer q.Stop()

	job, err := q.Submit(models.JobTypeDiscoverEpisodes, jobqueue.SubmitOptions{})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		snap, _ := q.Get(job.ID)
		return snap.Status == models.JobStatusCompleted
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, q.Cancel(job.ID))
}

func TestCancel_RunningJobIsCancelled(t *testing.T) {
	q := jobqueue.New(jobqueue.DefaultConfig(), map[models.JobType]jobqueue.Executor{
		models.JobTypeDiscoverEpisodes: echoExecutor(2*time.Second, false),
	}, nil, nil, nil)
	defer q.Stop()

	job, err := q.Submit(models.JobTypeDiscoverEpisodes, jobqueue.SubmitOptions{})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		snap, _ := q.Get(job.ID)
		return snap.Status == models.JobStatusRunning
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, q.Cancel(job.ID))

	require.Eventually(t, func() bool {
		snap, _ := q.Get(job.ID)
		return snap.Status == models.JobStatusCancelled
	}, time.Second, 5*time.Millisecond)
}
