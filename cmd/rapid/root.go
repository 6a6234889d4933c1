package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/spf13/cobra"

	"github.com/no10ds/rapid-sdk-go/api"
	"github.com/no10ds/rapid-sdk-go/auth"
	"github.com/no10ds/rapid-sdk-go/frame"
	"github.com/no10ds/rapid-sdk-go/rapiderr"
)

var (
	version = "dev"
	commit  = "none"
)

// Environment variables read by the CLI in addition to the auth ones.
const (
	envSSMPrefix = "RAPID_SSM_PREFIX"
	envOutput    = "RAPID_OUTPUT"
)

type settings struct {
	clientID     string
	clientSecret string
	url          string
	profile      string
	ssmPrefix    string
	region       string
	awsProfile   string
	awsKeyID     string
	awsSecretKey string
	output       string
	verbose      bool
}

// app carries resolved settings and the factories commands use to reach
// rAPId and AWS.
type app struct {
	settings settings
	stdout   io.Writer
	stderr   io.Writer
	logger   *slog.Logger

	loadAWS func(ctx context.Context, opts auth.AWSOptions) (aws.Config, error)
	newSSM  func(aws.Config) auth.ParameterGetter
	newSTS  func(aws.Config) auth.IdentityGetter
	newS3   func(aws.Config) frame.ObjectGetter

	clientOpts []api.Option
	awsCfg     *aws.Config
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout:  stdout,
		stderr:  stderr,
		logger:  slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn})),
		loadAWS: auth.NewAWSConfig,
		newSSM:  func(cfg aws.Config) auth.ParameterGetter { return ssm.NewFromConfig(cfg) },
		newSTS:  func(cfg aws.Config) auth.IdentityGetter { return sts.NewFromConfig(cfg) },
		newS3:   func(cfg aws.Config) frame.ObjectGetter { return s3.NewFromConfig(cfg) },
	}
}

// run executes the CLI and returns the process exit code.
func (a *app) run(ctx context.Context, args []string) int {
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	if a.settings.output == "json" {
		errObj := map[string]any{"error": err.Error()}
		var apiErr *rapiderr.APIError
		if errors.As(err, &apiErr) {
			errObj["http_status"] = apiErr.StatusCode
			if apiErr.Data != nil {
				errObj["details"] = apiErr.Data
			}
		}
		_ = printJSON(a.stdout, errObj)
	} else {
		_, _ = fmt.Fprintf(a.stderr, "Error: %v\n", err)
	}

	return 1
}

func newRootCmd(a *app) *cobra.Command {
	s := &a.settings

	rootCmd := &cobra.Command{
		Use:           "rapid",
		Short:         "rAPId data catalog CLI",
		Long:          "Command-line client for uploading, describing and querying datasets on a rAPId instance.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.resolve(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&s.clientID, "client-id", "", "rAPId client ID (env "+auth.EnvClientID+")")
	flags.StringVar(&s.clientSecret, "client-secret", "", "rAPId client secret (env "+auth.EnvClientSecret+")")
	flags.StringVar(&s.url, "url", "", "rAPId base URL (env "+auth.EnvURL+")")
	flags.StringVarP(&s.profile, "profile", "p", "", "Config profile to use")
	flags.StringVar(&s.ssmPrefix, "ssm-prefix", "", "Read missing credentials from SSM parameters under this prefix (env "+envSSMPrefix+")")
	flags.StringVar(&s.region, "region", "", "AWS region for SSM and S3 (default "+auth.DefaultRegion+")")
	flags.StringVar(&s.awsProfile, "aws-profile", "", "AWS shared config profile for SSM and S3")
	flags.StringVarP(&s.output, "output", "o", "table", "Output format ("+strings.Join(outputFormats, ", ")+")")
	flags.BoolVarP(&s.verbose, "verbose", "v", false, "Log requests and job polling")

	rootCmd.AddCommand(newVersionCmd(a))
	rootCmd.AddCommand(newConfigCmd(a))
	rootCmd.AddCommand(newDatasetsCmd(a))
	rootCmd.AddCommand(newJobsCmd(a))
	rootCmd.AddCommand(newUploadCmd(a))
	rootCmd.AddCommand(newSchemaCmd(a))
	rootCmd.AddCommand(newUploadAndCreateCmd(a))
	rootCmd.AddCommand(newQueryCmd(a))

	return rootCmd
}

// resolve applies precedence flag > env > profile and sets up logging.
func (a *app) resolve(cmd *cobra.Command) error {
	s := &a.settings
	flags := cmd.Flags()

	cfg, err := LoadUserConfig()
	if err != nil {
		return err
	}
	p, err := cfg.ActiveProfile(s.profile)
	if err != nil {
		return err
	}

	s.clientID = pick(flags.Changed("client-id"), s.clientID, auth.EnvClientID, p.ClientID)
	s.clientSecret = pick(flags.Changed("client-secret"), s.clientSecret, auth.EnvClientSecret, p.ClientSecret)
	s.url = pick(flags.Changed("url"), s.url, auth.EnvURL, p.URL)
	s.ssmPrefix = pick(flags.Changed("ssm-prefix"), s.ssmPrefix, envSSMPrefix, p.SSMPrefix)
	s.output = pick(flags.Changed("output"), s.output, envOutput, firstNonEmpty(p.Output, s.output))
	if !flags.Changed("region") {
		s.region = p.Region
	}
	if !flags.Changed("aws-profile") {
		s.awsProfile = p.AWSProfile
	}
	s.awsKeyID = p.AWSAccessKeyID
	s.awsSecretKey = p.AWSSecretAccessKey

	if err := validateOutputFormat(s.output); err != nil {
		return err
	}

	level := slog.LevelInfo
	if s.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))

	return nil
}

func pick(flagSet bool, flagVal, envVar, profileVal string) string {
	explicit := ""
	if flagSet {
		explicit = flagVal
	}
	if v, err := auth.Resolve(explicit, envVar); err == nil {
		return v
	}
	return profileVal
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// client builds an API client, filling missing credentials from SSM when a
// prefix is configured.
func (a *app) client(ctx context.Context) (*api.Client, error) {
	s := a.settings
	cfg := auth.Config{ClientID: s.clientID, ClientSecret: s.clientSecret, URL: s.url}

	if cfg.Validate() != nil && s.ssmPrefix != "" {
		fromSSM, err := a.credentialsFromSSM(ctx)
		if err != nil {
			return nil, err
		}
		cfg.ClientID = firstNonEmpty(cfg.ClientID, fromSSM.ClientID)
		cfg.ClientSecret = firstNonEmpty(cfg.ClientSecret, fromSSM.ClientSecret)
		cfg.URL = firstNonEmpty(cfg.URL, fromSSM.URL)
	}

	opts := append([]api.Option{api.WithLogger(a.logger)}, a.clientOpts...)
	return api.New(ctx, cfg, opts...)
}

func (a *app) credentialsFromSSM(ctx context.Context) (auth.Config, error) {
	awsCfg, err := a.awsConfig(ctx)
	if err != nil {
		return auth.Config{}, err
	}

	arn, err := auth.VerifyAWSIdentity(ctx, a.newSTS(awsCfg))
	if err != nil {
		return auth.Config{}, err
	}
	a.logger.Debug("reading credentials from SSM", "prefix", a.settings.ssmPrefix, "identity", arn)

	return auth.LoadConfigFromSSM(ctx, a.newSSM(awsCfg), a.settings.ssmPrefix)
}

func (a *app) awsConfig(ctx context.Context) (aws.Config, error) {
	if a.awsCfg != nil {
		return *a.awsCfg, nil
	}

	cfg, err := a.loadAWS(ctx, auth.AWSOptions{
		Region:          a.settings.region,
		Profile:         a.settings.awsProfile,
		AccessKeyID:     a.settings.awsKeyID,
		SecretAccessKey: a.settings.awsSecretKey,
	})
	if err != nil {
		return aws.Config{}, err
	}
	a.awsCfg = &cfg

	return cfg, nil
}

// loadFrame reads a CSV from a local path or an s3://bucket/key URI.
func (a *app) loadFrame(ctx context.Context, source string) (*frame.Frame, error) {
	if !strings.HasPrefix(source, "s3://") {
		return frame.ReadFile(source)
	}

	bucket, key, ok := frame.ParseS3URI(source)
	if !ok {
		return nil, fmt.Errorf("invalid S3 URI %q: want s3://bucket/key", source)
	}

	awsCfg, err := a.awsConfig(ctx)
	if err != nil {
		return nil, err
	}

	return frame.LoadS3(ctx, a.newS3(awsCfg), bucket, key)
}
