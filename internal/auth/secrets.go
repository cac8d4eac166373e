package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// ManagerAPI is the subset of the Secrets Manager client the portal uses.
type ManagerAPI interface {
	GetSecretValue(
		ctx context.Context,
		params *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManagerSource reads a programmatic access token from AWS Secrets Manager.
//
// The secret is either the raw token or a JSON object with an
// "access_token" (or "token") field.
type SecretsManagerSource struct {
	client ManagerAPI
	name   string
}

// NewSecretsManagerSource wraps an existing client.
func NewSecretsManagerSource(client ManagerAPI, secretName string) *SecretsManagerSource {
	return &SecretsManagerSource{client: client, name: secretName}
}

// NewSecretsManagerClient builds a Secrets Manager client from the default
// AWS credential chain. endpoint overrides the service URL (localstack).
func NewSecretsManagerClient(ctx context.Context, region, endpoint string) (*secretsmanager.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return secretsmanager.NewFromConfig(cfg, func(o *secretsmanager.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

// Token implements TokenSource.
func (s *SecretsManagerSource) Token(ctx context.Context) (string, error) {
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(s.name),
	})
	if err != nil {
		return "", fmt.Errorf("get secret %s: %w", s.name, err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", s.name)
	}
	return tokenFromSecret(*out.SecretString)
}

func tokenFromSecret(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "{") {
		if raw == "" {
			return "", ErrNoToken
		}
		return raw, nil
	}
	var doc struct {
		AccessToken string `json:"access_token"`
		Token       string `json:"token"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return "", fmt.Errorf("decode secret: %w", err)
	}
	switch {
	case doc.AccessToken != "":
		return doc.AccessToken, nil
	case doc.Token != "":
		return doc.Token, nil
	default:
		return "", ErrNoToken
	}
}
