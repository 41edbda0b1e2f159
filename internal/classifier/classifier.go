package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/espartina/boletin/internal/config"
	"github.com/espartina/boletin/internal/metrics"
	"github.com/espartina/boletin/internal/scraper"
	"github.com/espartina/boletin/internal/store"
)

// maxPerRun caps how many notices are summarized and titled per run; the
// expensive calls are never made for rows that will be discarded.
const maxPerRun = 5

// Classification is the structured output of a relevance call.
type Classification struct {
	RelevanceScore int    `json:"relevance_score"`
	Reasoning      string `json:"reasoning"`
}

// Summary is the structured output of a summarization call.
type Summary struct {
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
}

// TitleResult is the structured output of a title/category call.
type TitleResult struct {
	Title    string `json:"title"`
	Category string `json:"category"`
}

// CompletionAPI is the slice of the OpenAI client the classifier uses.
// Tests substitute a fake.
type CompletionAPI interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client classifies, summarizes, and titles gazette notices through
// structured-output chat completions.
type Client struct {
	api           CompletionAPI
	classifyModel string
	summaryModel  string
}

func New(cfg config.OpenAIConfig, apiKey string) *Client {
	return &Client{
		api:           openai.NewClient(apiKey),
		classifyModel: cfg.ClassificationModel,
		summaryModel:  cfg.SummaryModel,
	}
}

// NewWithAPI builds a Client over any CompletionAPI implementation.
func NewWithAPI(api CompletionAPI, classifyModel, summaryModel string) *Client {
	return &Client{api: api, classifyModel: classifyModel, summaryModel: summaryModel}
}

const classifyPrompt = `Rank the following text from 0 to 100 based on how relevant it is to agricultural production.

Espartina is a company dedicated to traditional crop production throughout Argentina's agricultural region.
You will classify texts corresponding to resolutions published in the Official Gazette of the Argentine Republic.

Consider as "Relevant" (100 points) only those resolutions that establish norms, requirements, regulations
or measures that directly and significantly impact agricultural production, transport, commercialization or financing.
This includes state provisions on seeds, agrochemicals, grains, merchandise transport, exports, imports,
rural contracts, reference prices, taxes, or environmental and labor aspects that may directly or indirectly
affect agricultural activity.

Give maximum score (100) only if the resolution has high economic impact and is highly relevant for a company
that mainly produces: wheat, soy, corn, popcorn corn, sunflower, sorghum, barley, sesame, carinata, beans,
chickpeas and peas.

Assign 0 points if the resolution deals with Micro, Small and Medium Enterprises (MSMEs), or if it's not
related to agricultural production, or if it refers to general policies that don't concretely affect
the activity of an agricultural company.

Be strict: only assign high values to resolutions that can really modify operations, costs, income,
regulation or business context of an agricultural company like Espartina.

Text: %s`

const summarizePrompt = `Summarize the following regulatory text in Spanish, focusing on key aspects relevant to agricultural production.
Provide a concise summary and identify the main points.

Text: %s`

const titlePrompt = `Create a meaningful title and categorize the following regulatory text in Spanish.
The title should be descriptive and indicate the main topic of the regulation.

Text: %s`

const executiveSystemPrompt = `Eres un asistente editorial que redacta resúmenes ejecutivos breves y claros para emails internos ` +
	`de una empresa agrícola argentina (Espartina). Debes ser preciso, sin inventar información.`

// Classify scores a notice body for agricultural relevance. Failures
// degrade to a zero score rather than aborting the batch.
func (c *Client) Classify(ctx context.Context, text string) Classification {
	var out Classification
	err := c.structured(ctx, c.classifyModel, fmt.Sprintf(classifyPrompt, text), "relevance_classification", Classification{}, &out)
	if err != nil {
		metrics.ClassifyFallbacksTotal.Add(1)
		slog.Error("classification failed", "error", err)
		return Classification{RelevanceScore: 0, Reasoning: "Error in processing"}
	}
	return out
}

// Summarize produces a Spanish summary and key points. Failures degrade to
// placeholders.
func (c *Client) Summarize(ctx context.Context, text string) Summary {
	var out Summary
	err := c.structured(ctx, c.summaryModel, fmt.Sprintf(summarizePrompt, text), "text_summary", Summary{}, &out)
	if err != nil {
		metrics.SummaryFallbacksTotal.Add(1)
		slog.Error("summarization failed", "error", err)
		return Summary{Summary: "Error en resumen"}
	}
	return out
}

// Title generates a Spanish title and category. Failures degrade to
// placeholders.
func (c *Client) Title(ctx context.Context, text string) TitleResult {
	var out TitleResult
	err := c.structured(ctx, c.summaryModel, fmt.Sprintf(titlePrompt, text), "title_generation", TitleResult{}, &out)
	if err != nil {
		metrics.TitleFallbacksTotal.Add(1)
		slog.Error("title generation failed", "error", err)
		return TitleResult{Title: "Título no disponible", Category: "Sin categoría"}
	}
	return out
}

// Enrich classifies every notice, keeps those scoring above the threshold,
// and summarizes and titles only the top survivors. Ties keep scrape order.
func (c *Client) Enrich(ctx context.Context, notices []scraper.Notice, threshold int) []store.Record {
	if len(notices) == 0 {
		slog.Warn("no notices to classify")
		return nil
	}

	slog.Info("classifying regulations", "count", len(notices))

	type scored struct {
		notice scraper.Notice
		cls    Classification
	}
	var kept []scored
	for _, n := range notices {
		cls := c.Classify(ctx, n.Body)
		if cls.RelevanceScore > threshold {
			kept = append(kept, scored{notice: n, cls: cls})
		}
	}

	if len(kept) == 0 {
		slog.Info("no relevant regulations found", "threshold", threshold)
		return nil
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].cls.RelevanceScore > kept[j].cls.RelevanceScore
	})
	if len(kept) > maxPerRun {
		kept = kept[:maxPerRun]
	}

	slog.Info("enriching relevant regulations", "count", len(kept))

	records := make([]store.Record, 0, len(kept))
	for _, s := range kept {
		sum := c.Summarize(ctx, s.notice.Body)
		title := c.Title(ctx, s.notice.Body)
		records = append(records, store.Record{
			PublicationDate: s.notice.Published,
			GeneratedTitle:  title.Title,
			Category:        title.Category,
			Relevance:       s.cls.RelevanceScore,
			Reasoning:       s.cls.Reasoning,
			Summary:         sum.Summary,
			KeyPoints:       sum.KeyPoints,
			Link:            s.notice.Link,
		})
	}
	return records
}

// ExecutiveSummary writes the weekly report's lead paragraph from a compact
// JSON payload. Unlike the per-notice calls this one propagates errors; the
// reporter owns the fallback.
func (c *Client) ExecutiveSummary(ctx context.Context, payload string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.summaryModel,
		Temperature: 0.2,
		MaxTokens:   350,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: executiveSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: "INSTRUCCIONES:\n" + payload},
		},
	})
	if err != nil {
		return "", fmt.Errorf("executive summary call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty executive summary response")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("empty executive summary response")
	}
	return content, nil
}

// structured issues one JSON-schema constrained completion and unmarshals
// the result into out.
func (c *Client) structured(ctx context.Context, model, prompt, name string, shape, out interface{}) error {
	schema, err := jsonschema.GenerateSchemaForType(shape)
	if err != nil {
		return fmt.Errorf("building schema %s: %w", name, err)
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   name,
				Schema: schema,
				Strict: true,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("%s call: %w", name, err)
	}
	if len(resp.Choices) == 0 {
		return fmt.Errorf("%s: empty response", name)
	}
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), out); err != nil {
		return fmt.Errorf("%s: decoding response: %w", name, err)
	}
	return nil
}
