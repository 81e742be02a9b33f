package understanding

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"github.com/smallbiznis/docflow/internal/config"
)

// VertexProvider calls a Gemini model on Vertex AI.
type VertexProvider struct {
	client    *genai.Client
	modelName string
	holder    *config.ExtractionConfigHolder
}

func NewVertexProvider(ctx context.Context, cfg config.VertexConfig, holder *config.ExtractionConfigHolder) (*VertexProvider, error) {
	if cfg.ProjectID == "" || cfg.Region == "" {
		return nil, fmt.Errorf("vertex: project and region are required")
	}
	client, err := genai.NewClient(ctx, cfg.ProjectID, cfg.Region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	return &VertexProvider{client: client, modelName: cfg.Model, holder: holder}, nil
}

// model is configured per call so token limits follow config reloads.
func (p *VertexProvider) model() *genai.GenerativeModel {
	model := p.client.GenerativeModel(p.modelName)
	model.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0),
		MaxOutputTokens:  genai.Ptr(p.holder.Get().MaxOutputTokens),
	}
	return model
}

func (p *VertexProvider) Complete(ctx context.Context, prompt string, payload []byte, mimeType string) (string, error) {
	resp, err := p.model().GenerateContent(ctx,
		genai.Blob{MIMEType: mimeType, Data: payload},
		genai.Text(prompt),
	)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	return responseText(resp), nil
}

func (p *VertexProvider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return b.String()
}
