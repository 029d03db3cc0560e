// Package anthropic wraps the official anthropic-sdk-go behind the two
// generation operations the enrichment and advisory paths consume.
package anthropic

import (
	"context"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
)

// Client defines the generative operations used by the service.
type Client interface {
	// GenerateStructured sends a strict-JSON prompt and returns the raw text
	// of the first content block; callers own parsing and validation.
	GenerateStructured(ctx context.Context, req Request) (string, TokenUsage, error)
	// GenerateText sends a plain prompt and returns the response text.
	GenerateText(ctx context.Context, req Request) (string, TokenUsage, error)
}

// Request is the provider-agnostic request shape for both operations.
type Request struct {
	Model       string
	MaxTokens   int64
	System      string
	Prompt      string
	Temperature *float64
}

// TokenUsage tracks token consumption for a single call.
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
}

// Add accumulates usage from another call.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// sdkClient implements Client using the official SDK.
type sdkClient struct {
	client sdk.Client
}

// NewClient creates an Anthropic client for the given API key.
func NewClient(apiKey string) Client {
	return &sdkClient{
		client: sdk.NewClient(
			option.WithAPIKey(apiKey),
		),
	}
}

func (c *sdkClient) GenerateStructured(ctx context.Context, req Request) (string, TokenUsage, error) {
	return c.generate(ctx, req)
}

func (c *sdkClient) GenerateText(ctx context.Context, req Request) (string, TokenUsage, error) {
	return c.generate(ctx, req)
}

func (c *sdkClient) generate(ctx context.Context, req Request) (string, TokenUsage, error) {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: req.MaxTokens,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature != nil {
		params.Temperature = sdk.Float(*req.Temperature)
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", TokenUsage{}, eris.Wrap(err, "anthropic: create message")
	}

	usage := TokenUsage{
		InputTokens:  msg.Usage.InputTokens,
		OutputTokens: msg.Usage.OutputTokens,
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), usage, nil
}
