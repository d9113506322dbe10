package advisory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	// GroqBaseURL is the OpenAI-compatible Groq endpoint.
	GroqBaseURL = "https://api.groq.com/openai/v1"

	// groqModel is the chat model used for commentary.
	groqModel = "llama-3.3-70b-versatile"

	// fearGreedURL serves the crypto fear/greed index.
	fearGreedURL = "https://api.alternative.me/fng/?limit=1"
)

// GroqCommentator produces commentary through the Groq chat API, seeding
// the prompt with current market sentiment from the fear/greed index.
type GroqCommentator struct {
	client       *openai.Client
	httpClient   *http.Client
	sentimentURL string
	logger       *zap.Logger
}

// GroqOptions contains configuration for creating a GroqCommentator.
type GroqOptions struct {
	APIKey       string
	BaseURL      string // default GroqBaseURL
	SentimentURL string // default fearGreedURL
	HTTPClient   *http.Client
	Logger       *zap.Logger
}

// NewGroqCommentator creates a Groq-backed commentator.
func NewGroqCommentator(opts GroqOptions) (*GroqCommentator, error) {
	if opts.APIKey == "" {
		return nil, errors.New("groq api key is required")
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = GroqBaseURL
	}

	sentimentURL := opts.SentimentURL
	if sentimentURL == "" {
		sentimentURL = fearGreedURL
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg := openai.DefaultConfig(opts.APIKey)
	cfg.BaseURL = baseURL
	cfg.HTTPClient = httpClient

	return &GroqCommentator{
		client:       openai.NewClientWithConfig(cfg),
		httpClient:   httpClient,
		sentimentURL: sentimentURL,
		logger:       logger,
	}, nil
}

// Commentary asks the model for a short market update on the symbol.
func (g *GroqCommentator) Commentary(ctx context.Context, symbol string) (string, error) {
	sentiment := g.fetchSentiment(ctx)

	prompt := fmt.Sprintf(
		"You are an upbeat crypto market commentator covering %s. "+
			"Current market sentiment is %q. "+
			"Give a short, energetic two-sentence update on why traders are watching %s right now. "+
			"Do not mention specific prices.",
		symbol, sentiment, symbol)

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: groqModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.9,
	})
	if err != nil {
		return "", fmt.Errorf("groq chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("groq returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}

// fetchSentiment reads the fear/greed classification. Its failures degrade
// to "Neutral" and never fail the commentary call.
func (g *GroqCommentator) fetchSentiment(ctx context.Context) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.sentimentURL, nil)
	if err != nil {
		return "Neutral"
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.logger.Debug("fear/greed fetch failed", zap.Error(err))
		return "Neutral"
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "Neutral"
	}

	var body struct {
		Data []struct {
			ValueClassification string `json:"value_classification"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || len(body.Data) == 0 {
		return "Neutral"
	}

	if body.Data[0].ValueClassification == "" {
		return "Neutral"
	}
	return body.Data[0].ValueClassification
}
