package summary

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const DefaultModel = "gemini-2.0-flash"

const promptTemplate = `You are an equity research assistant. Summarize the following S-1 registration statement filed by %s.
Cover the business, the offering, use of proceeds, and the main risk factors in at most 300 words of plain prose.

%s`

// GenAISummarizer summarizes filings with a Gemini model.
type GenAISummarizer struct {
	client *genai.Client
	model  string
}

func NewGenAISummarizer(ctx context.Context, apiKey, model string) (*GenAISummarizer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAISummarizer{client: client, model: model}, nil
}

func (s *GenAISummarizer) Summarize(ctx context.Context, companyName, text string) (string, error) {
	prompt := fmt.Sprintf(promptTemplate, companyName, text)

	resp, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate summary: %w", err)
	}

	out := strings.TrimSpace(resp.Text())
	if out == "" {
		return "", fmt.Errorf("model %s returned an empty summary", s.model)
	}
	return out, nil
}
