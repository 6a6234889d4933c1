package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/no10ds/rapid-sdk-go/rapiderr"
	"github.com/no10ds/rapid-sdk-go/types"
)

// DefaultPollInterval is the pause between job status checks.
const DefaultPollInterval = time.Second

// JobProgress is the payload of GET /jobs/{id}.
type JobProgress map[string]any

// Status returns the job status field.
func (p JobProgress) Status() types.JobStatus {
	s, _ := p["status"].(string)
	return types.JobStatus(s)
}

// FetchJobProgress returns the current progress of a job.
func (c *Client) FetchJobProgress(ctx context.Context, jobID string) (JobProgress, error) {
	resp, err := c.Get(ctx, "/jobs/"+url.PathEscape(jobID))
	if err != nil {
		return nil, fmt.Errorf("fetch job %s: %w", jobID, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, rapiderr.New(rapiderr.ErrUnableToFetchJobStatus, "Could not check job status", resp.StatusCode, resp.Body, resp.Data())
	}

	var progress JobProgress
	if err := resp.Decode(&progress); err != nil {
		return nil, rapiderr.New(rapiderr.ErrUnableToFetchJobStatus, err.Error(), resp.StatusCode, resp.Body, nil)
	}

	return progress, nil
}

// WaitForJobOutcome polls the job until it reports SUCCESS or FAILED.
//
// Any other status sleeps for interval and polls again. There is no attempt
// limit: bound the wait with a deadline or cancellation on ctx. A FAILED job
// yields rapiderr.ErrJobFailed carrying the last progress payload.
func (c *Client) WaitForJobOutcome(ctx context.Context, jobID string, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	for {
		progress, err := c.FetchJobProgress(ctx, jobID)
		if err != nil {
			return err
		}

		switch status := progress.Status(); status {
		case types.JobStatusSuccess:
			c.logger.Info("job succeeded", "job_id", jobID)
			return nil
		case types.JobStatusFailed:
			return rapiderr.New(rapiderr.ErrJobFailed, "Upload failed", http.StatusOK, nil, map[string]any(progress))
		default:
			c.logger.Debug("job in progress", "job_id", jobID, "status", status)
		}

		if err := c.sleep(ctx, interval); err != nil {
			return fmt.Errorf("wait for job %s: %w", jobID, err)
		}
	}
}
