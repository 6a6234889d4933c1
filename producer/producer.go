// Package producer orchestrates schema registration and dataframe uploads.
package producer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/no10ds/rapid-sdk-go/api"
	"github.com/no10ds/rapid-sdk-go/frame"
	"github.com/no10ds/rapid-sdk-go/rapiderr"
	"github.com/no10ds/rapid-sdk-go/schema"
	"github.com/no10ds/rapid-sdk-go/types"
)

// Producer uploads dataframes to rAPId, registering or updating the dataset
// schema as needed.
type Producer struct {
	client *api.Client
	logger *slog.Logger
}

// Option configures a Producer.
type Option func(*Producer)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Producer) { p.logger = l }
}

// New returns a Producer using client.
func New(client *api.Client, opts ...Option) *Producer {
	p := &Producer{client: client, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	p.logger = p.logger.With("component", "producer")

	return p
}

// Outcome records what UploadAndCreateDataframe did.
type Outcome struct {
	// Create is the result of registering the inferred schema.
	Create types.Result
	// Upload is set when the upload was accepted.
	Upload *api.UploadResult
	// SchemaUpdated is true when the upload failed validation and the drift
	// path ran; Update then holds its result. The upload is not retried.
	SchemaUpdated bool
	Update        types.Result
}

// UploadAndCreateDataframe infers a schema for f, registers it (an existing
// schema is accepted) and uploads f, waiting for the ingestion job.
//
// If the upload fails schema validation and upgradeSchemaOnFail is set, the
// server schema is updated to the inferred columns and the workflow stops
// without uploading again. Otherwise the validation error is returned.
func (p *Producer) UploadAndCreateDataframe(ctx context.Context, metadata types.SchemaMetadata, f *frame.Frame, upgradeSchemaOnFail bool) (*Outcome, error) {
	log := p.logger.With("domain", metadata.Domain, "dataset", metadata.Dataset)

	generated, err := p.client.GenerateSchema(ctx, f, metadata.Domain, metadata.Dataset, metadata.Sensitivity)
	if err != nil {
		return nil, err
	}

	s := schema.New(metadata, generated.Columns)
	created, err := s.Create(ctx, p.client)
	if err != nil {
		return nil, err
	}
	log.Info("schema registered", "result", created, "columns", len(generated.Columns))

	out := &Outcome{Create: created}

	upload, err := p.client.UploadDataframe(ctx, metadata.Domain, metadata.Dataset, f, true)
	switch {
	case err == nil:
		out.Upload = upload
		log.Info("dataframe uploaded", "job_id", upload.JobID)
		return out, nil
	case !errors.Is(err, rapiderr.ErrDataFrameUploadValidation) || !upgradeSchemaOnFail:
		return nil, err
	}

	log.Warn("upload failed schema validation, updating schema", "error", err)

	updated, err := p.UpdateSchemaDataframe(ctx, metadata, f, generated.Columns)
	if err != nil {
		return nil, err
	}
	out.SchemaUpdated = true
	out.Update = updated

	return out, nil
}

// UpdateSchemaDataframe compares newColumns against the dataset's current
// columns and sends a schema update when they differ. Identical column sets
// yield types.ResultNoChange and no request.
func (p *Producer) UpdateSchemaDataframe(ctx context.Context, metadata types.SchemaMetadata, f *frame.Frame, newColumns []types.Column) (types.Result, error) {
	info, err := p.client.GenerateInfo(ctx, f, metadata.Domain, metadata.Dataset)
	if err != nil {
		return types.ResultFailed, err
	}

	s := schema.New(metadata, info.Columns)
	if s.AreColumnsTheSame(newColumns) {
		p.logger.Info("columns unchanged, skipping schema update", "domain", metadata.Domain, "dataset", metadata.Dataset)
		return types.ResultNoChange, nil
	}

	diff := schema.DiffColumns(info.Columns, newColumns)
	p.logger.Warn("schema drift detected", "domain", metadata.Domain, "dataset", metadata.Dataset, "diff", diff.String())

	s.SetColumns(newColumns)

	res, err := s.Update(ctx, p.client)
	if err != nil {
		return res, fmt.Errorf("update schema for %s/%s: %w", metadata.Domain, metadata.Dataset, err)
	}

	return res, nil
}
