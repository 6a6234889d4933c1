package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/no10ds/rapid-sdk-go/frame"
	"github.com/no10ds/rapid-sdk-go/rapiderr"
	"github.com/no10ds/rapid-sdk-go/types"
)

// UploadSuccess is the Status of an upload that was waited on to completion.
const UploadSuccess = "Success"

// UploadResult describes an accepted upload. Status is UploadSuccess when the
// job was waited on, empty when the caller polls JobID itself.
type UploadResult struct {
	JobID  string
	Status string
}

// GeneratedSchema is the server's inferred schema for a dataframe.
type GeneratedSchema struct {
	Metadata map[string]any `json:"metadata"`
	Columns  []types.Column `json:"columns"`
}

// DatasetInfo is the server's current view of a dataset.
type DatasetInfo struct {
	Metadata map[string]any `json:"metadata"`
	Columns  []types.Column `json:"columns"`
}

func datasetPath(domain, dataset string) string {
	return fmt.Sprintf("/datasets/%s/%s", url.PathEscape(domain), url.PathEscape(dataset))
}

// ListDatasets returns the dataset descriptors visible to the client.
func (c *Client) ListDatasets(ctx context.Context) (json.RawMessage, error) {
	resp, err := c.Post(ctx, "/datasets", nil)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, rapiderr.New(rapiderr.ErrListDatasetsFailed, "Could not list datasets", resp.StatusCode, resp.Body, resp.Data())
	}

	return json.RawMessage(resp.Body), nil
}

// UploadDataframe uploads f as CSV to the dataset. On 202 it either waits for
// the ingestion job to finish or returns its id, depending on waitToComplete.
// A 422 means the frame does not match the registered schema and yields
// rapiderr.ErrDataFrameUploadValidation.
func (c *Client) UploadDataframe(ctx context.Context, domain, dataset string, f *frame.Frame, waitToComplete bool) (*UploadResult, error) {
	resp, err := c.postFrame(ctx, datasetPath(domain, dataset), f)
	if err != nil {
		return nil, fmt.Errorf("upload dataframe: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusAccepted:
	case http.StatusUnprocessableEntity:
		return nil, rapiderr.New(rapiderr.ErrDataFrameUploadValidation,
			"Could not upload dataframe due to an incorrect schema definition", resp.StatusCode, resp.Body, details(resp))
	default:
		return nil, rapiderr.New(rapiderr.ErrDataFrameUploadFailed,
			"Encountered an unexpected error, could not upload dataframe", resp.StatusCode, resp.Body, details(resp))
	}

	var accepted struct {
		Details struct {
			JobID string `json:"job_id"`
		} `json:"details"`
	}
	if err := resp.Decode(&accepted); err != nil {
		return nil, fmt.Errorf("upload dataframe: %w", err)
	}

	jobID := accepted.Details.JobID
	if jobID == "" {
		return nil, rapiderr.New(rapiderr.ErrDataFrameUploadFailed,
			"upload accepted without job id", resp.StatusCode, resp.Body, details(resp))
	}
	c.logger.Info("dataframe accepted", "domain", domain, "dataset", dataset, "job_id", jobID, "rows", f.Rows())

	if !waitToComplete {
		return &UploadResult{JobID: jobID}, nil
	}

	if err := c.WaitForJobOutcome(ctx, jobID, DefaultPollInterval); err != nil {
		return nil, err
	}

	return &UploadResult{JobID: jobID, Status: UploadSuccess}, nil
}

// GenerateSchema asks the server to infer a schema for f.
func (c *Client) GenerateSchema(ctx context.Context, f *frame.Frame, domain, dataset string, sensitivity types.Sensitivity) (*GeneratedSchema, error) {
	path := fmt.Sprintf("/schema/%s/%s/%s/generate",
		url.PathEscape(string(sensitivity)), url.PathEscape(domain), url.PathEscape(dataset))

	resp, err := c.postFrame(ctx, path, f)
	if err != nil {
		return nil, fmt.Errorf("generate schema: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, rapiderr.New(rapiderr.ErrSchemaGenerationFailed, "Could not generate schema", resp.StatusCode, resp.Body, resp.Data())
	}

	var generated GeneratedSchema
	if err := resp.Decode(&generated); err != nil {
		return nil, rapiderr.New(rapiderr.ErrSchemaGenerationFailed, err.Error(), resp.StatusCode, resp.Body, nil)
	}
	if len(generated.Columns) == 0 {
		return nil, rapiderr.New(rapiderr.ErrSchemaGenerationFailed, "Generated schema has no columns", resp.StatusCode, resp.Body, resp.Data())
	}

	return &generated, nil
}

// GenerateInfo returns the server's current column view for the dataset.
func (c *Client) GenerateInfo(ctx context.Context, f *frame.Frame, domain, dataset string) (*DatasetInfo, error) {
	resp, err := c.postFrame(ctx, datasetPath(domain, dataset)+"/info", f)
	if err != nil {
		return nil, fmt.Errorf("dataset info: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, rapiderr.New(rapiderr.ErrDatasetInfoFailed, "Could not fetch dataset info", resp.StatusCode, resp.Body, resp.Data())
	}

	var info DatasetInfo
	if err := resp.Decode(&info); err != nil {
		return nil, rapiderr.New(rapiderr.ErrDatasetInfoFailed, err.Error(), resp.StatusCode, resp.Body, nil)
	}

	return &info, nil
}

// details extracts the "details" field of an error body, falling back to the
// whole decoded body.
func details(resp *Response) any {
	data := resp.Data()
	if m, ok := data.(map[string]any); ok {
		if d, ok := m["details"]; ok {
			return d
		}
	}

	return data
}
