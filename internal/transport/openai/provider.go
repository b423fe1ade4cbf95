package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/petmatch/internal/domain"
	"github.com/kailas-cloud/petmatch/internal/domain/pet"
	"github.com/kailas-cloud/petmatch/internal/metrics"
)

const breedPrompt = `You identify pet breeds from short reports and photos.
Answer with a JSON object {"breed": string, "confidence": number between 0 and 1}.`

// Provider extracts pet features using an OpenAI-compatible API: the embeddings
// endpoint yields the feature vector, an optional chat model the breed estimate.
type Provider struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	breedModel string
	dimensions int
	user       string
	provider   string
	now        func() time.Time
	logger     *zap.Logger
}

// Config holds the feature provider settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	BreedModel string
	Dimensions int
	User       string
	Provider   string
	Logger     *zap.Logger
}

// NewProvider creates an OpenAI-compatible feature provider.
func NewProvider(cfg *Config) *Provider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL

	return &Provider{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		breedModel: cfg.BreedModel,
		dimensions: cfg.Dimensions,
		user:       cfg.User,
		provider:   cfg.Provider,
		now:        time.Now,
		logger:     cfg.Logger,
	}
}

// Analyze implements domain.FeatureProvider.
func (p *Provider) Analyze(ctx context.Context, pt pet.Pet) (pet.Features, error) {
	descriptor := pt.Descriptor()
	if descriptor == "" {
		return pet.Features{}, fmt.Errorf("pet %s has nothing to analyze: %w", pt.ID, domain.ErrFeatureProvider)
	}

	vec, err := p.embed(ctx, descriptor)
	if err != nil {
		return pet.Features{}, err
	}

	f := pet.Features{
		Vector:        vec,
		BreedEstimate: pt.Breed,
		Model:         string(p.model),
		ExtractedAt:   p.now().UTC(),
	}
	if p.breedModel == "" {
		return f, nil
	}

	breed, conf, err := p.estimateBreed(ctx, pt, descriptor)
	if err != nil {
		// The vector is what matching needs; a failed breed estimate only loses a label.
		p.logger.Warn("Breed estimate failed", zap.String("pet_id", pt.ID), zap.Error(err))
		return f, nil
	}
	f.BreedEstimate = breed
	f.Confidence = conf
	return f, nil
}

func (p *Provider) embed(ctx context.Context, text string) ([]float32, error) {
	req := openai.EmbeddingRequest{
		Input:          []string{text},
		Model:          p.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		User:           p.user,
	}
	if p.dimensions > 0 {
		req.Dimensions = p.dimensions
	}

	start := time.Now()
	resp, err := p.client.CreateEmbeddings(ctx, req)
	duration := time.Since(start)

	model := string(p.model)
	if err != nil {
		metrics.FeatureRequestsTotal.WithLabelValues(p.provider, model, "error").Inc()
		metrics.FeatureErrorsTotal.WithLabelValues(p.provider, model, "api_error").Inc()
		return nil, parseAPIError(err)
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		metrics.FeatureRequestsTotal.WithLabelValues(p.provider, model, "error").Inc()
		metrics.FeatureErrorsTotal.WithLabelValues(p.provider, model, "empty_response").Inc()
		return nil, fmt.Errorf("empty embedding response: %w", domain.ErrFeatureProvider)
	}
	if p.dimensions > 0 && len(resp.Data[0].Embedding) != p.dimensions {
		metrics.FeatureRequestsTotal.WithLabelValues(p.provider, model, "error").Inc()
		metrics.FeatureErrorsTotal.WithLabelValues(p.provider, model, "dimension_mismatch").Inc()
		return nil, fmt.Errorf("embedding has %d dimensions, want %d: %w",
			len(resp.Data[0].Embedding), p.dimensions, domain.ErrFeatureProvider)
	}

	metrics.FeatureRequestsTotal.WithLabelValues(p.provider, model, "success").Inc()
	metrics.FeatureRequestDuration.WithLabelValues(p.provider, model).Observe(duration.Seconds())
	if resp.Usage.TotalTokens > 0 {
		metrics.FeatureTokensTotal.WithLabelValues(p.provider, model, "total").Add(float64(resp.Usage.TotalTokens))
	}

	return resp.Data[0].Embedding, nil
}

type breedAnswer struct {
	Breed      string  `json:"breed"`
	Confidence float64 `json:"confidence"`
}

func (p *Provider) estimateBreed(ctx context.Context, pt pet.Pet, descriptor string) (string, float64, error) {
	parts := []openai.ChatMessagePart{{Type: openai.ChatMessagePartTypeText, Text: descriptor}}
	for _, u := range pt.ImageURLs {
		parts = append(parts, openai.ChatMessagePart{
			Type:     openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{URL: u, Detail: openai.ImageURLDetailLow},
		})
	}

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.breedModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: breedPrompt},
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		Temperature:    0,
		User:           p.user,
	})
	if err != nil {
		metrics.FeatureRequestsTotal.WithLabelValues(p.provider, p.breedModel, "error").Inc()
		metrics.FeatureErrorsTotal.WithLabelValues(p.provider, p.breedModel, "api_error").Inc()
		return "", 0, parseAPIError(err)
	}
	metrics.FeatureRequestsTotal.WithLabelValues(p.provider, p.breedModel, "success").Inc()
	metrics.FeatureRequestDuration.WithLabelValues(p.provider, p.breedModel).Observe(time.Since(start).Seconds())

	if len(resp.Choices) == 0 {
		return "", 0, fmt.Errorf("empty chat response: %w", domain.ErrFeatureProvider)
	}
	var ans breedAnswer
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &ans); err != nil {
		return "", 0, fmt.Errorf("decode breed answer: %v: %w", err, domain.ErrFeatureProvider)
	}
	ans.Breed = strings.TrimSpace(ans.Breed)
	if ans.Breed == "" {
		return "", 0, fmt.Errorf("breed answer is empty: %w", domain.ErrFeatureProvider)
	}
	return ans.Breed, min(max(ans.Confidence, 0), 1), nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (p *Provider) HealthCheck(ctx context.Context) error {
	if _, err := p.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// parseAPIError extracts a human-readable error from the API response.
// All errors are wrapped with domain.ErrFeatureProvider for correct 502 mapping.
func parseAPIError(err error) error {
	wrap := domain.ErrFeatureProvider

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if detail := extractDetail(reqErr.Body); detail != "" {
			return fmt.Errorf("feature API error %d: %s: %w", reqErr.HTTPStatusCode, detail, wrap)
		}
		return fmt.Errorf("feature API error %d: %s: %w", reqErr.HTTPStatusCode, string(reqErr.Body), wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("feature API error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("feature request timed out: %w", wrap)
	}
	return fmt.Errorf("feature request failed: %w", wrap)
}

// extractDetail extracts the "detail" field from a JSON error body (Nebius error format).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
