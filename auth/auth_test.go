package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/no10ds/rapid-sdk-go/rapiderr"
)

func tokenServer(t *testing.T, status int, calls *atomic.Int32) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)

		if r.URL.Path != "/oauth2/token" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}

		id, secret, ok := r.BasicAuth()
		if !ok || id != "client" || secret != "secret" {
			t.Errorf("unexpected basic auth %q %q %v", id, secret, ok)
		}

		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "client_credentials" {
			t.Errorf("grant_type = %q", got)
		}
		if got := r.PostForm.Get("client_id"); got != "client" {
			t.Errorf("client_id = %q", got)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status/100 == 2 {
			w.Write([]byte(`{"access_token":"token-value","token_type":"Bearer","expires_in":3600}`))
			return
		}
		w.Write([]byte(`{"error":"invalid_client"}`))
	}))
	t.Cleanup(srv.Close)

	return srv
}

func TestResolve(t *testing.T) {
	t.Setenv("RAPID_TEST_VALUE", "from-env")

	v, err := Resolve("explicit", "RAPID_TEST_VALUE")
	require.NoError(t, err)
	assert.Equal(t, "explicit", v)

	v, err = Resolve("", "RAPID_TEST_VALUE")
	require.NoError(t, err)
	assert.Equal(t, "from-env", v)

	_, err = Resolve("", "RAPID_TEST_UNSET")
	require.ErrorIs(t, err, rapiderr.ErrCannotFindCredential)

	var credErr *rapiderr.CannotFindCredentialError
	require.ErrorAs(t, err, &credErr)
	assert.Equal(t, "RAPID_TEST_UNSET", credErr.EnvVar)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv(EnvClientID, "env-id")
	t.Setenv(EnvClientSecret, "env-secret")
	t.Setenv(EnvURL, "https://env.example")

	cfg, err := ConfigFromEnv("flag-id", "", "")
	require.NoError(t, err)
	assert.Equal(t, Config{ClientID: "flag-id", ClientSecret: "env-secret", URL: "https://env.example"}, cfg)

	t.Setenv(EnvURL, "")
	_, err = ConfigFromEnv("", "", "")
	var credErr *rapiderr.CannotFindCredentialError
	require.ErrorAs(t, err, &credErr)
	assert.Equal(t, EnvURL, credErr.EnvVar)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		cfg    Config
		envVar string
	}{
		{"missing id", Config{ClientSecret: "s", URL: "u"}, EnvClientID},
		{"missing secret", Config{ClientID: "c", URL: "u"}, EnvClientSecret},
		{"missing url", Config{ClientID: "c", ClientSecret: "s"}, EnvURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var credErr *rapiderr.CannotFindCredentialError
			require.ErrorAs(t, tt.cfg.Validate(), &credErr)
			assert.Equal(t, tt.envVar, credErr.EnvVar)
		})
	}

	assert.NoError(t, Config{ClientID: "c", ClientSecret: "s", URL: "u"}.Validate())
}

func TestNewAuthenticator(t *testing.T) {
	t.Run("validates once and fetches fresh tokens", func(t *testing.T) {
		var calls atomic.Int32
		srv := tokenServer(t, http.StatusOK, &calls)

		a, err := NewAuthenticator(context.Background(), Config{ClientID: "client", ClientSecret: "secret", URL: srv.URL + "/"})
		require.NoError(t, err)
		assert.Equal(t, int32(1), calls.Load())
		assert.Equal(t, srv.URL, a.URL())

		tok, err := a.FetchToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "token-value", tok)

		header, err := a.Header(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "Bearer token-value", header)

		assert.Equal(t, int32(3), calls.Load(), "every token fetch must hit the server")
	})

	t.Run("rejected credentials", func(t *testing.T) {
		var calls atomic.Int32
		srv := tokenServer(t, http.StatusUnauthorized, &calls)

		_, err := NewAuthenticator(context.Background(), Config{ClientID: "client", ClientSecret: "secret", URL: srv.URL})
		require.ErrorIs(t, err, rapiderr.ErrAuthentication)

		var authErr *rapiderr.AuthenticationError
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, http.StatusUnauthorized, authErr.StatusCode)
	})

	t.Run("token issued with a status other than 200", func(t *testing.T) {
		for _, status := range []int{http.StatusCreated, http.StatusAccepted} {
			var calls atomic.Int32
			srv := tokenServer(t, status, &calls)

			_, err := NewAuthenticator(context.Background(), Config{ClientID: "client", ClientSecret: "secret", URL: srv.URL})
			require.ErrorIs(t, err, rapiderr.ErrAuthentication)

			var authErr *rapiderr.AuthenticationError
			require.ErrorAs(t, err, &authErr)
			assert.Equal(t, status, authErr.StatusCode)
			assert.Equal(t, int32(1), calls.Load())
		}
	})

	t.Run("custom transport still used for tokens", func(t *testing.T) {
		var calls, trips atomic.Int32
		srv := tokenServer(t, http.StatusOK, &calls)

		hc := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			trips.Add(1)
			return http.DefaultTransport.RoundTrip(r)
		})}

		_, err := NewAuthenticator(context.Background(), Config{ClientID: "client", ClientSecret: "secret", URL: srv.URL}, WithHTTPClient(hc))
		require.NoError(t, err)
		assert.Equal(t, int32(1), trips.Load())
	})

	t.Run("missing credential fails before any request", func(t *testing.T) {
		_, err := NewAuthenticator(context.Background(), Config{ClientID: "client"})
		assert.ErrorIs(t, err, rapiderr.ErrCannotFindCredential)
	})
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

type fakeSSM struct {
	values map[string]string
	names  []string
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	name := aws.ToString(in.Name)
	f.names = append(f.names, name)

	if !aws.ToBool(in.WithDecryption) {
		return nil, errors.New("decryption not requested")
	}

	v, ok := f.values[name]
	if !ok {
		return nil, errors.New("ParameterNotFound")
	}

	return &ssm.GetParameterOutput{Parameter: &ssmtypes.Parameter{Name: in.Name, Value: aws.String(v)}}, nil
}

func TestLoadConfigFromSSM(t *testing.T) {
	f := &fakeSSM{values: map[string]string{
		"/rapid/prod/client_id":     "id",
		"/rapid/prod/client_secret": "secret",
		"/rapid/prod/url":           "https://rapid.example",
	}}

	cfg, err := LoadConfigFromSSM(context.Background(), f, "/rapid/prod/")
	require.NoError(t, err)
	assert.Equal(t, Config{ClientID: "id", ClientSecret: "secret", URL: "https://rapid.example"}, cfg)
	assert.Equal(t, []string{"/rapid/prod/client_id", "/rapid/prod/client_secret", "/rapid/prod/url"}, f.names)

	delete(f.values, "/rapid/prod/url")
	_, err = LoadConfigFromSSM(context.Background(), f, "/rapid/prod")
	assert.ErrorContains(t, err, "failed to get /rapid/prod/url from SSM")
}

type fakeSTS struct {
	err error
}

func (f fakeSTS) GetCallerIdentity(context.Context, *sts.GetCallerIdentityInput, ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	if f.err != nil {
		return nil, f.err
	}

	return &sts.GetCallerIdentityOutput{Arn: aws.String("arn:aws:iam::123:user/rapid")}, nil
}

func TestVerifyAWSIdentity(t *testing.T) {
	arn, err := VerifyAWSIdentity(context.Background(), fakeSTS{})
	require.NoError(t, err)
	assert.Equal(t, "arn:aws:iam::123:user/rapid", arn)

	_, err = VerifyAWSIdentity(context.Background(), fakeSTS{err: errors.New("expired")})
	assert.ErrorContains(t, err, "invalid AWS credentials")
}

func TestNewAWSConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AWS_CONFIG_FILE", dir+"/config")
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", dir+"/credentials")
	t.Setenv("AWS_REGION", "")

	cfg, err := NewAWSConfig(context.Background(), AWSOptions{AccessKeyID: "AKIDTEST", SecretAccessKey: "secret"})
	require.NoError(t, err)
	assert.Equal(t, DefaultRegion, cfg.Region)

	creds, err := cfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AKIDTEST", creds.AccessKeyID)
	assert.Equal(t, "secret", creds.SecretAccessKey)

	cfg, err = NewAWSConfig(context.Background(), AWSOptions{Region: "us-east-1", AccessKeyID: "AKIDTEST", SecretAccessKey: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", cfg.Region)

	_, err = NewAWSConfig(context.Background(), AWSOptions{Profile: "does-not-exist"})
	assert.ErrorContains(t, err, "failed to load AWS config")
}
