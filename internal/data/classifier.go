package data

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/sey-media/clientwatch/internal/biz/domain"
	"github.com/sey-media/clientwatch/internal/biz/repo"
	"github.com/sey-media/clientwatch/internal/conf"
)

// triggerResponse is the JSON shape the model is instructed to return for
// trigger detection.
type triggerResponse struct {
	IsFire          bool   `json:"is_fire"`
	FireText        string `json:"fire_text"`
	IsTestimonial   bool   `json:"is_testimonial"`
	TestimonialText string `json:"testimonial_text"`
	IsQuestion      bool   `json:"is_question"`
	Questions       []struct {
		Text      string `json:"text"`
		MessageID string `json:"message_id"`
	} `json:"questions"`
}

// openaiClassifier implements the classifier repository on the OpenAI
// chat-completions API.
type openaiClassifier struct {
	client  *openai.Client
	model   string
	prompts *conf.Prompts
}

// NewClassifier creates a classifier backed by an OpenAI-compatible endpoint.
func NewClassifier(c conf.OpenAIConfig, prompts *conf.Prompts) repo.ClassifierRepo {
	cfg := openai.DefaultConfig(c.APIKey)
	if c.BaseURL != "" {
		cfg.BaseURL = c.BaseURL
	}
	return &openaiClassifier{
		client:  openai.NewClientWithConfig(cfg),
		model:   c.Model,
		prompts: prompts,
	}
}

// Classify runs trigger detection over one transcript. The model is forced
// into JSON output mode; a response that still fails to parse is reported as
// ErrMalformedResponse so the caller's retry policy can kick in.
func (c *openaiClassifier) Classify(ctx context.Context, transcript string) (*domain.Finding, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: c.prompts.Trigger},
			{Role: openai.ChatMessageRoleUser, Content: transcript},
		},
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", repo.ErrMalformedResponse)
	}

	var tr triggerResponse
	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(raw), &tr); err != nil {
		return nil, fmt.Errorf("%w: %v", repo.ErrMalformedResponse, err)
	}

	finding := &domain.Finding{
		IsFire:          tr.IsFire,
		FireText:        tr.FireText,
		IsTestimonial:   tr.IsTestimonial,
		TestimonialText: tr.TestimonialText,
	}
	if tr.IsQuestion {
		for _, q := range tr.Questions {
			if q.Text == "" {
				continue
			}
			finding.Questions = append(finding.Questions, domain.QuestionFinding{
				Text:            q.Text,
				SourceMessageID: q.MessageID,
			})
		}
	}
	return finding, nil
}

// Summarize produces a plain-text daily summary of a transcript.
func (c *openaiClassifier) Summarize(ctx context.Context, transcript string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: c.prompts.Summary},
			{Role: openai.ChatMessageRoleUser, Content: transcript},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", repo.ErrMalformedResponse)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
