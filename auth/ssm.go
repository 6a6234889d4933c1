package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// DefaultRegion is the AWS region used when none is configured.
const DefaultRegion = "eu-west-2"

// ParameterGetter is the subset of *ssm.Client used to read credentials.
type ParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// IdentityGetter is the subset of *sts.Client used to check AWS credentials.
type IdentityGetter interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// AWSOptions selects the AWS credentials used for SSM, STS and S3.
// Static keys take precedence over Profile; with neither set the default
// credential chain applies.
type AWSOptions struct {
	Region          string
	Profile         string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// NewAWSConfig loads an aws.Config for opts.
func NewAWSConfig(ctx context.Context, opts AWSOptions) (aws.Config, error) {
	region := opts.Region
	if region == "" {
		region = DefaultRegion
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	switch {
	case opts.AccessKeyID != "" && opts.SecretAccessKey != "":
		loadOpts = append(loadOpts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.AccessKeyID,
			opts.SecretAccessKey,
			opts.SessionToken,
		)))
	case opts.Profile != "":
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(opts.Profile))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return cfg, nil
}

// VerifyAWSIdentity confirms the AWS credentials are valid and returns the caller ARN.
func VerifyAWSIdentity(ctx context.Context, client IdentityGetter) (string, error) {
	out, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("invalid AWS credentials: %w", err)
	}

	return aws.ToString(out.Arn), nil
}

// LoadConfigFromSSM reads rAPId credentials from SSM Parameter Store:
//   - {prefix}/client_id
//   - {prefix}/client_secret (SecureString, decrypted)
//   - {prefix}/url
func LoadConfigFromSSM(ctx context.Context, client ParameterGetter, prefix string) (Config, error) {
	prefix = strings.TrimRight(prefix, "/")

	get := func(name string) (string, error) {
		param := prefix + "/" + name
		resp, err := client.GetParameter(ctx, &ssm.GetParameterInput{
			Name:           aws.String(param),
			WithDecryption: aws.Bool(true),
		})
		if err != nil {
			return "", fmt.Errorf("failed to get %s from SSM: %w", param, err)
		}
		if resp.Parameter == nil || aws.ToString(resp.Parameter.Value) == "" {
			return "", fmt.Errorf("SSM parameter %s is empty", param)
		}

		return aws.ToString(resp.Parameter.Value), nil
	}

	var (
		cfg Config
		err error
	)

	if cfg.ClientID, err = get("client_id"); err != nil {
		return Config{}, err
	}
	if cfg.ClientSecret, err = get("client_secret"); err != nil {
		return Config{}, err
	}
	if cfg.URL, err = get("url"); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
