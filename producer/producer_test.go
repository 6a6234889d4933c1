package producer_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/no10ds/rapid-sdk-go/api"
	"github.com/no10ds/rapid-sdk-go/frame"
	"github.com/no10ds/rapid-sdk-go/internal/rapidtest"
	"github.com/no10ds/rapid-sdk-go/producer"
	"github.com/no10ds/rapid-sdk-go/rapiderr"
	"github.com/no10ds/rapid-sdk-go/schema"
	"github.com/no10ds/rapid-sdk-go/types"
)

const (
	generatePath = "/schema/PUBLIC/test/rapid_sdk/generate"
	uploadPath   = "/datasets/test/rapid_sdk"
	infoPath     = "/datasets/test/rapid_sdk/info"
)

var inferred = map[string]any{
	"metadata": map[string]any{"domain": "test", "dataset": "rapid_sdk", "sensitivity": "PUBLIC"},
	"columns": []any{
		map[string]any{"name": "column_a", "partition_index": nil, "data_type": "object", "allow_null": true, "format": nil},
		map[string]any{"name": "column_b", "partition_index": nil, "data_type": "Int64", "allow_null": true, "format": nil},
	},
}

func inferredColumns() []types.Column {
	return []types.Column{
		types.NewColumn("column_a", "object"),
		types.NewColumn("column_b", "Int64"),
	}
}

func metadata() types.SchemaMetadata {
	return types.NewSchemaMetadata("test", "rapid_sdk", types.SensitivityPublic,
		types.Owner{Name: "Test", Email: "test@email.com"})
}

func setup(t *testing.T) (*rapidtest.Server, *producer.Producer, *frame.Frame) {
	t.Helper()

	srv := rapidtest.NewServer(t)
	client, err := api.New(context.Background(), srv.Config())
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	f, err := frame.New([]string{"column_a", "column_b"}, []string{"one", "1"}, []string{"two", "2"})
	if err != nil {
		t.Fatalf("failed to build frame: %v", err)
	}

	return srv, producer.New(client), f
}

func acceptUpload(srv *rapidtest.Server) {
	srv.Reply(http.MethodPost, uploadPath, http.StatusAccepted, map[string]any{"details": map[string]any{"job_id": "job-1"}})
	srv.Reply(http.MethodGet, "/jobs/job-1", http.StatusOK, map[string]any{"status": "SUCCESS"})
}

func TestUploadAndCreateDataframe(t *testing.T) {
	srv, p, f := setup(t)
	srv.Reply(http.MethodPost, generatePath, http.StatusOK, inferred)
	srv.Reply(http.MethodPost, "/schema", http.StatusOK, map[string]any{"details": "created"})
	acceptUpload(srv)

	out, err := p.UploadAndCreateDataframe(context.Background(), metadata(), f, false)
	if err != nil {
		t.Fatalf("UploadAndCreateDataframe() error = %v", err)
	}

	if got := srv.Count(http.MethodPost, "/schema"); got != 1 {
		t.Errorf("expected 1 schema create, got %d", got)
	}
	if got := srv.Count(http.MethodPost, uploadPath); got != 1 {
		t.Errorf("expected 1 upload, got %d", got)
	}
	if out.Create != types.ResultSuccess {
		t.Errorf("expected create result success, got %s", out.Create)
	}
	if out.Upload == nil || out.Upload.JobID != "job-1" || out.Upload.Status != api.UploadSuccess {
		t.Errorf("unexpected upload result %+v", out.Upload)
	}
	if out.SchemaUpdated {
		t.Error("schema should not be updated on the happy path")
	}

	var sent schema.Payload
	if err := srv.Requests(http.MethodPost, "/schema")[0].JSON(&sent); err != nil {
		t.Fatalf("failed to decode schema request: %v", err)
	}
	if !schema.SameColumns(sent.Columns, inferredColumns()) {
		t.Errorf("schema create sent %+v, want inferred columns", sent.Columns)
	}
	if sent.Metadata.Owners[0].Email != "test@email.com" {
		t.Errorf("schema create lost owners: %+v", sent.Metadata)
	}
}

func TestUploadAndCreateDataframeExistingSchema(t *testing.T) {
	srv, p, f := setup(t)
	srv.Reply(http.MethodPost, generatePath, http.StatusOK, inferred)
	srv.Reply(http.MethodPost, "/schema", http.StatusConflict, map[string]any{"details": "Schema already exists"})
	acceptUpload(srv)

	out, err := p.UploadAndCreateDataframe(context.Background(), metadata(), f, false)
	if err != nil {
		t.Fatalf("existing schema should not fail the upload: %v", err)
	}
	if out.Create != types.ResultAlreadyExists {
		t.Errorf("expected already-exists, got %s", out.Create)
	}
	if got := srv.Count(http.MethodPost, uploadPath); got != 1 {
		t.Errorf("expected 1 upload, got %d", got)
	}
}

func TestUploadAndCreateDataframeCreateFailure(t *testing.T) {
	srv, p, f := setup(t)
	srv.Reply(http.MethodPost, generatePath, http.StatusOK, inferred)
	srv.Reply(http.MethodPost, "/schema", http.StatusBadRequest, map[string]any{"details": "invalid owners"})

	_, err := p.UploadAndCreateDataframe(context.Background(), metadata(), f, true)
	if !errors.Is(err, rapiderr.ErrSchemaCreateFailed) {
		t.Fatalf("expected ErrSchemaCreateFailed, got %v", err)
	}
	if got := srv.Count(http.MethodPost, uploadPath); got != 0 {
		t.Errorf("expected no upload after create failure, got %d", got)
	}
}

func TestUploadAndCreateDataframeGenerateFailure(t *testing.T) {
	srv, p, f := setup(t)
	srv.Reply(http.MethodPost, generatePath, http.StatusBadRequest, map[string]any{"details": "empty"})

	_, err := p.UploadAndCreateDataframe(context.Background(), metadata(), f, true)
	if !errors.Is(err, rapiderr.ErrSchemaGenerationFailed) {
		t.Fatalf("expected ErrSchemaGenerationFailed, got %v", err)
	}
	if got := srv.Count(http.MethodPost, "/schema"); got != 0 {
		t.Errorf("expected no schema create, got %d", got)
	}
}

func TestUploadAndCreateDataframeDrift(t *testing.T) {
	srv, p, f := setup(t)
	srv.Reply(http.MethodPost, generatePath, http.StatusOK, inferred)
	srv.Reply(http.MethodPost, "/schema", http.StatusConflict, nil)
	srv.Reply(http.MethodPost, uploadPath, http.StatusUnprocessableEntity, map[string]any{"details": "column_b missing"})
	srv.Reply(http.MethodPost, infoPath, http.StatusOK, map[string]any{
		"columns": []any{map[string]any{"name": "column_a", "data_type": "object", "allow_null": true}},
	})
	srv.Reply(http.MethodPut, "/schema", http.StatusOK, map[string]any{"details": "updated"})

	out, err := p.UploadAndCreateDataframe(context.Background(), metadata(), f, true)
	if err != nil {
		t.Fatalf("drift path should succeed: %v", err)
	}

	if got := srv.Count(http.MethodPut, "/schema"); got != 1 {
		t.Fatalf("expected exactly 1 schema update, got %d", got)
	}
	if got := srv.Count(http.MethodPost, uploadPath); got != 1 {
		t.Errorf("upload must not be retried after the update, got %d uploads", got)
	}
	if !out.SchemaUpdated || out.Update != types.ResultSuccess {
		t.Errorf("unexpected outcome %+v", out)
	}
	if out.Upload != nil {
		t.Errorf("expected no upload result, got %+v", out.Upload)
	}

	var sent schema.Payload
	if err := srv.Requests(http.MethodPut, "/schema")[0].JSON(&sent); err != nil {
		t.Fatalf("failed to decode update request: %v", err)
	}
	if !schema.SameColumns(sent.Columns, inferredColumns()) {
		t.Errorf("update sent %+v, want inferred columns", sent.Columns)
	}
}

func TestUploadAndCreateDataframeValidationWithoutUpgrade(t *testing.T) {
	srv, p, f := setup(t)
	srv.Reply(http.MethodPost, generatePath, http.StatusOK, inferred)
	srv.Reply(http.MethodPost, "/schema", http.StatusConflict, nil)
	srv.Reply(http.MethodPost, uploadPath, http.StatusUnprocessableEntity, map[string]any{"details": "column_b missing"})

	_, err := p.UploadAndCreateDataframe(context.Background(), metadata(), f, false)
	if !errors.Is(err, rapiderr.ErrDataFrameUploadValidation) {
		t.Fatalf("expected ErrDataFrameUploadValidation, got %v", err)
	}
	if got := srv.Count(http.MethodPost, infoPath); got != 0 {
		t.Errorf("expected no info call, got %d", got)
	}
}

func TestUploadAndCreateDataframeOtherUploadFailure(t *testing.T) {
	srv, p, f := setup(t)
	srv.Reply(http.MethodPost, generatePath, http.StatusOK, inferred)
	srv.Reply(http.MethodPost, "/schema", http.StatusOK, nil)
	srv.Reply(http.MethodPost, uploadPath, http.StatusInternalServerError, map[string]any{"details": "boom"})

	_, err := p.UploadAndCreateDataframe(context.Background(), metadata(), f, true)
	if !errors.Is(err, rapiderr.ErrDataFrameUploadFailed) {
		t.Fatalf("expected ErrDataFrameUploadFailed, got %v", err)
	}
	if got := srv.Count(http.MethodPost, infoPath); got != 0 {
		t.Errorf("only validation failures take the drift path, got %d info calls", got)
	}
}

func TestUpdateSchemaDataframeNoChange(t *testing.T) {
	srv, p, f := setup(t)
	srv.Reply(http.MethodPost, infoPath, http.StatusOK, map[string]any{
		"columns": []any{
			map[string]any{"name": "column_b", "data_type": "Int64", "allow_null": true},
			map[string]any{"name": "column_a", "data_type": "object", "allow_null": true},
		},
	})

	res, err := p.UpdateSchemaDataframe(context.Background(), metadata(), f, inferredColumns())
	if err != nil {
		t.Fatalf("UpdateSchemaDataframe() error = %v", err)
	}
	if res != types.ResultNoChange {
		t.Errorf("expected no-change, got %s", res)
	}
	if got := srv.Count(http.MethodPut, "/schema"); got != 0 {
		t.Errorf("expected no schema update, got %d", got)
	}
}

func TestUpdateSchemaDataframeFailures(t *testing.T) {
	t.Run("info", func(t *testing.T) {
		srv, p, f := setup(t)
		srv.Reply(http.MethodPost, infoPath, http.StatusNotFound, map[string]any{"details": "no dataset"})

		res, err := p.UpdateSchemaDataframe(context.Background(), metadata(), f, inferredColumns())
		if !errors.Is(err, rapiderr.ErrDatasetInfoFailed) {
			t.Fatalf("expected ErrDatasetInfoFailed, got %v", err)
		}
		if res != types.ResultFailed {
			t.Errorf("expected failed result, got %s", res)
		}
	})

	t.Run("update", func(t *testing.T) {
		srv, p, f := setup(t)
		srv.Reply(http.MethodPost, infoPath, http.StatusOK, map[string]any{
			"columns": []any{map[string]any{"name": "column_a", "data_type": "object"}},
		})
		srv.Reply(http.MethodPut, "/schema", http.StatusBadRequest, map[string]any{"details": "rejected"})

		_, err := p.UpdateSchemaDataframe(context.Background(), metadata(), f, inferredColumns())
		if !errors.Is(err, rapiderr.ErrSchemaUpdateFailed) {
			t.Fatalf("expected ErrSchemaUpdateFailed, got %v", err)
		}
		if rapiderr.Payload(err) == nil {
			t.Error("expected server payload on update failure")
		}
	})
}
