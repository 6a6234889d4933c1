package api_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/no10ds/rapid-sdk-go/api"
	"github.com/no10ds/rapid-sdk-go/auth"
	"github.com/no10ds/rapid-sdk-go/frame"
	"github.com/no10ds/rapid-sdk-go/rapiderr"
	"github.com/no10ds/rapid-sdk-go/types"
)

// liveConfig holds configuration for tests against a running rAPId instance.
type liveConfig struct {
	Credentials auth.Config

	// SSMPrefix, when set, supplies credentials missing from the environment.
	SSMPrefix  string
	Region     string
	AWSProfile string

	Domain string
}

// loadLiveConfig reads:
//   - RAPID_TEST_URL, RAPID_TEST_CLIENT_ID, RAPID_TEST_CLIENT_SECRET
//   - RAPID_TEST_SSM_PREFIX, RAPID_TEST_REGION, RAPID_TEST_AWS_PROFILE (optional)
//   - RAPID_TEST_DOMAIN (default: test)
func loadLiveConfig(t *testing.T) liveConfig {
	t.Helper()

	return liveConfig{
		Credentials: auth.Config{
			URL:          os.Getenv("RAPID_TEST_URL"),
			ClientID:     os.Getenv("RAPID_TEST_CLIENT_ID"),
			ClientSecret: os.Getenv("RAPID_TEST_CLIENT_SECRET"),
		},
		SSMPrefix:  os.Getenv("RAPID_TEST_SSM_PREFIX"),
		Region:     getEnvOrDefault("RAPID_TEST_REGION", auth.DefaultRegion),
		AWSProfile: os.Getenv("RAPID_TEST_AWS_PROFILE"),
		Domain:     getEnvOrDefault("RAPID_TEST_DOMAIN", "test"),
	}
}

// requireClient builds a client from c, falling back to SSM when the
// environment does not carry all three credentials. It skips the test when
// neither source is configured.
func (c liveConfig) requireClient(t *testing.T) *api.Client {
	t.Helper()

	ctx := context.Background()
	creds := c.Credentials

	if err := creds.Validate(); err != nil {
		if c.SSMPrefix == "" {
			t.Skipf("live credentials not set: %v", err)
		}

		awsCfg, err := auth.NewAWSConfig(ctx, auth.AWSOptions{Region: c.Region, Profile: c.AWSProfile})
		if err != nil {
			t.Skipf("AWS config unavailable: %v", err)
		}

		if creds, err = auth.LoadConfigFromSSM(ctx, ssm.NewFromConfig(awsCfg), c.SSMPrefix); err != nil {
			t.Fatalf("failed to read credentials from SSM: %v", err)
		}
	}

	client, err := api.New(ctx, creds)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	return client
}

func getEnvOrDefault(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return defaultValue
}

// TestLive runs read-only checks against a running instance.
func TestLive(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	cfg := loadLiveConfig(t)
	client := cfg.requireClient(t)
	ctx := context.Background()
	dataset := fmt.Sprintf("sdk_go_%d", time.Now().UnixNano())

	f, err := frame.New([]string{"name", "count"}, []string{"a", "1"}, []string{"b", "2"})
	if err != nil {
		t.Fatalf("failed to build frame: %v", err)
	}

	t.Run("List_Datasets", func(t *testing.T) {
		raw, err := client.ListDatasets(ctx)
		if err != nil {
			t.Fatalf("failed to list datasets: %v", err)
		}

		t.Logf("List response: %d bytes", len(raw))
	})

	t.Run("Generate_Schema", func(t *testing.T) {
		generated, err := client.GenerateSchema(ctx, f, cfg.Domain, dataset, types.SensitivityPublic)
		if err != nil {
			t.Fatalf("failed to generate schema: %v (payload: %v)", err, rapiderr.Payload(err))
		}

		if len(generated.Columns) != 2 {
			t.Fatalf("expected 2 columns, got %d", len(generated.Columns))
		}
		for _, c := range generated.Columns {
			t.Logf("Column %s: %s", c.Name, c.DataType)
		}
	})

	t.Run("Fetch_Unknown_Job", func(t *testing.T) {
		_, err := client.FetchJobProgress(ctx, "sdk-go-unknown-job")
		if !errors.Is(err, rapiderr.ErrUnableToFetchJobStatus) {
			t.Fatalf("expected ErrUnableToFetchJobStatus, got %v", err)
		}
	})
}
