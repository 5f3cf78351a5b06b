package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

func init() {
	Register(BackendBedrock, func(ctx context.Context, s Settings) (Generator, error) {
		return NewBedrock(ctx, s)
	})
}

// converseAPI is the subset of the Bedrock runtime client the backend uses.
type converseAPI interface {
	Converse(ctx context.Context, in *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockProvider implements Generator with the AWS Bedrock Converse API,
// which accepts the same system + user message shape for every model family.
type BedrockProvider struct {
	Base
	client converseAPI
	creds  aws.CredentialsProvider
	region string
}

// NewBedrock creates a Bedrock backend. Static keys in Settings take
// precedence over the default AWS credential chain. Region defaults to
// us-east-1.
func NewBedrock(ctx context.Context, s Settings) (*BedrockProvider, error) {
	region := s.Region
	if region == "" {
		region = DefaultRegion
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if s.AccessKeyID != "" || s.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.AccessKeyID, s.SecretAccessKey, s.SessionToken),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := bedrockruntime.NewFromConfig(cfg, func(o *bedrockruntime.Options) {
		if s.BaseURL != "" {
			o.BaseEndpoint = aws.String(s.BaseURL)
		}
		o.RetryMaxAttempts = s.MaxRetries + 1
	})
	return newBedrockWithClient(client, cfg.Credentials, region, s), nil
}

func newBedrockWithClient(client converseAPI, creds aws.CredentialsProvider, region string, s Settings) *BedrockProvider {
	return &BedrockProvider{
		Base:   newBase(BackendBedrock, DefaultBedrockModel, s),
		client: client,
		creds:  creds,
		region: region,
	}
}

// Region returns the AWS region requests are sent to.
func (p *BedrockProvider) Region() string { return p.region }

// Generate sends one Converse request and concatenates the text blocks of the
// reply.
func (p *BedrockProvider) Generate(ctx context.Context, prompt string) (string, error) {
	if p.creds == nil {
		return "", &CredentialError{Backend: BackendBedrock, Detail: "AWS credentials are not configured for the Bedrock backend"}
	}
	if _, err := p.creds.Retrieve(ctx); err != nil {
		return "", &CredentialError{
			Backend: BackendBedrock,
			Detail:  "AWS credentials are not configured for the Bedrock backend",
			Err:     err,
		}
	}

	out, err := p.client.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(p.model),
		System: []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: p.systemPrompt},
		},
		Messages: []types.Message{{
			Role:    types.ConversationRoleUser,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: prompt}},
		}},
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(int32(p.maxTokens)),
			Temperature: aws.Float32(float32(p.temperature)),
		},
	})
	if err != nil {
		return "", classifyBedrockError(err)
	}

	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return "", ErrEmptyCompletion
	}
	var sb strings.Builder
	for _, block := range msg.Value.Content {
		if text, ok := block.(*types.ContentBlockMemberText); ok {
			sb.WriteString(text.Value)
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", ErrEmptyCompletion
	}
	return sb.String(), nil
}

func classifyBedrockError(err error) error {
	var throttled *types.ThrottlingException
	if errors.As(err, &throttled) {
		return fmt.Errorf("%w: bedrock throttling: %s", ErrQuotaExceeded, aws.ToString(throttled.Message))
	}
	var quota *types.ServiceQuotaExceededException
	if errors.As(err, &quota) {
		return fmt.Errorf("%w: bedrock service quota: %s", ErrQuotaExceeded, aws.ToString(quota.Message))
	}
	return fmt.Errorf("bedrock converse: %w", err)
}
