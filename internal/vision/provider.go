// Package vision wraps one or more AI vision providers behind a uniform
// contract and orchestrates per-token-type analysis calls with timeouts
// and bounded retries.
package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/DaveSmith227/vizspec/internal/config"
	"github.com/DaveSmith227/vizspec/pkg/models"
)

// ImageInput carries a resolved, validated image into a provider call.
type ImageInput struct {
	Path      string
	Data      []byte
	MediaType string
}

// Provider is the uniform vision capability: analyze an image against a
// prompt and return the provider's structured JSON response.
type Provider interface {
	Name() string
	Analyze(ctx context.Context, img ImageInput, prompt string) ([]byte, error)
}

// AnthropicProvider calls the Anthropic Messages API directly.
type AnthropicProvider struct {
	client anthropic.Client
	model  anthropic.Model
	name   string
}

// NewAnthropicProvider creates the direct-API provider.
func NewAnthropicProvider(cfg config.AnthropicConfig) *AnthropicProvider {
	model := anthropic.Model(cfg.Model)
	if model == "" {
		model = anthropic.ModelClaudeSonnet4_20250514
	}
	return &AnthropicProvider{
		client: anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:  model,
		name:   "anthropic",
	}
}

// NewBedrockProvider creates the fallback provider backed by AWS
// Bedrock. Model names are translated to cross-region inference
// profile format.
func NewBedrockProvider(ctx context.Context, cfg config.BedrockConfig) *AnthropicProvider {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}

	model := cfg.Model
	if model == "" {
		model = "us.anthropic.claude-sonnet-4-20250514-v1:0"
	}

	return &AnthropicProvider{
		client: anthropic.NewClient(bedrock.WithLoadDefaultConfig(ctx, loadOpts...)),
		model:  anthropic.Model(model),
		name:   "bedrock",
	}
}

// Name returns the provider identifier used in cache keys and logs.
func (p *AnthropicProvider) Name() string {
	return p.name
}

// Analyze sends the image and prompt to the Messages API and returns
// the text response. Failures are classified: deadline expiry maps to
// ErrProviderTimeout, everything else to ErrProviderError. No default
// value is ever substituted for a failed call.
func (p *AnthropicProvider) Analyze(ctx context.Context, img ImageInput, prompt string) ([]byte, error) {
	encoded := base64.StdEncoding.EncodeToString(img.Data)

	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: 4096,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64(img.MediaType, encoded),
				anthropic.NewTextBlock(prompt),
			),
		},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s: %v", models.ErrProviderTimeout, p.name, err)
		}
		return nil, fmt.Errorf("%w: %s: %v", models.ErrProviderError, p.name, err)
	}

	var text string
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			text += variant.Text
		}
	}
	if text == "" {
		return nil, fmt.Errorf("%w: %s returned no text content", models.ErrProviderError, p.name)
	}
	return []byte(text), nil
}

// ProvidersFromConfig builds the ordered provider list: the direct API
// first when a key is configured, Bedrock second when enabled. An empty
// list means no provider is available and analysis must fail loud.
func ProvidersFromConfig(ctx context.Context, cfg *config.Config) []Provider {
	var providers []Provider
	if cfg.Providers.Anthropic.APIKey != "" {
		providers = append(providers, NewAnthropicProvider(cfg.Providers.Anthropic))
	}
	if cfg.Providers.Bedrock.Enabled {
		providers = append(providers, NewBedrockProvider(ctx, cfg.Providers.Bedrock))
	}
	return providers
}
