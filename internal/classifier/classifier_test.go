package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/espartina/boletin/internal/scraper"
)

// fakeAPI answers structured calls with canned payloads. Classification
// scores are looked up by which notice body appears in the prompt.
type fakeAPI struct {
	scores map[string]int

	failClassify bool
	emptySummary bool

	classifyCalls  int
	summarizeCalls int
	titleCalls     int
	execCalls      int
}

func (f *fakeAPI) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	name := ""
	if req.ResponseFormat != nil && req.ResponseFormat.JSONSchema != nil {
		name = req.ResponseFormat.JSONSchema.Name
	}

	prompt := req.Messages[len(req.Messages)-1].Content

	switch name {
	case "relevance_classification":
		f.classifyCalls++
		if f.failClassify {
			return openai.ChatCompletionResponse{}, errors.New("api unavailable")
		}
		score := 0
		for body, s := range f.scores {
			if strings.Contains(prompt, body) {
				score = s
				break
			}
		}
		return respond(fmt.Sprintf(`{"relevance_score": %d, "reasoning": "motivo"}`, score)), nil
	case "text_summary":
		f.summarizeCalls++
		return respond(`{"summary": "resumen", "key_points": ["p1", "p2"]}`), nil
	case "title_generation":
		f.titleCalls++
		return respond(`{"title": "título generado", "category": "Exportación"}`), nil
	default:
		f.execCalls++
		if f.emptySummary {
			return respond("   "), nil
		}
		return respond("<p>Resumen ejecutivo generado.</p>"), nil
	}
}

func respond(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func testClient(api *fakeAPI) *Client {
	return NewWithAPI(api, "classify-model", "summary-model")
}

func notice(body string) scraper.Notice {
	return scraper.Notice{
		Title:     "Resolución",
		Body:      body,
		Link:      "https://boletinoficial.gob.ar/" + body,
		Published: time.Date(2026, time.August, 20, 0, 0, 0, 0, time.Local),
	}
}

func TestEnrichFiltersAndOrders(t *testing.T) {
	api := &fakeAPI{scores: map[string]int{
		"cuerpo-95": 95, "cuerpo-40": 40, "cuerpo-71": 71, "cuerpo-10": 10,
	}}
	c := testClient(api)

	notices := []scraper.Notice{
		notice("cuerpo-95"), notice("cuerpo-40"), notice("cuerpo-71"), notice("cuerpo-10"),
	}
	records := c.Enrich(context.Background(), notices, 70)

	if len(records) != 2 {
		t.Fatalf("expected 2 records above threshold, got %d", len(records))
	}
	if records[0].Relevance != 95 || records[1].Relevance != 71 {
		t.Errorf("expected scores [95 71], got [%d %d]", records[0].Relevance, records[1].Relevance)
	}

	// Every notice is classified, but only survivors are enriched.
	if api.classifyCalls != 4 {
		t.Errorf("expected 4 classify calls, got %d", api.classifyCalls)
	}
	if api.summarizeCalls != 2 || api.titleCalls != 2 {
		t.Errorf("expected 2 summarize and 2 title calls, got %d and %d", api.summarizeCalls, api.titleCalls)
	}
}

func TestEnrichTruncatesToFive(t *testing.T) {
	api := &fakeAPI{scores: map[string]int{}}
	var notices []scraper.Notice
	for i := 0; i < 7; i++ {
		body := fmt.Sprintf("cuerpo-%d", i)
		api.scores[body] = 99 - i
		notices = append(notices, notice(body))
	}
	c := testClient(api)

	records := c.Enrich(context.Background(), notices, 70)
	if len(records) != 5 {
		t.Fatalf("expected truncation to 5 records, got %d", len(records))
	}
	if api.summarizeCalls != 5 || api.titleCalls != 5 {
		t.Errorf("expected 5 summarize and 5 title calls, got %d and %d", api.summarizeCalls, api.titleCalls)
	}
	if records[0].Relevance != 99 {
		t.Errorf("expected highest score first, got %d", records[0].Relevance)
	}
}

func TestEnrichTiesKeepScrapeOrder(t *testing.T) {
	api := &fakeAPI{scores: map[string]int{"primero": 80, "segundo": 80}}
	c := testClient(api)

	records := c.Enrich(context.Background(), []scraper.Notice{notice("primero"), notice("segundo")}, 70)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if !strings.HasSuffix(records[0].Link, "primero") {
		t.Errorf("expected scrape order preserved on ties, got %s first", records[0].Link)
	}
}

func TestEnrichEmptyInput(t *testing.T) {
	api := &fakeAPI{}
	c := testClient(api)

	if records := c.Enrich(context.Background(), nil, 70); records != nil {
		t.Errorf("expected nil for empty input, got %v", records)
	}
	if api.classifyCalls != 0 {
		t.Errorf("expected no API calls, got %d", api.classifyCalls)
	}
}

func TestEnrichNoneRelevant(t *testing.T) {
	api := &fakeAPI{scores: map[string]int{"cuerpo-a": 10, "cuerpo-b": 70}}
	c := testClient(api)

	// 70 is not strictly above the threshold.
	records := c.Enrich(context.Background(), []scraper.Notice{notice("cuerpo-a"), notice("cuerpo-b")}, 70)
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
	if api.summarizeCalls != 0 || api.titleCalls != 0 {
		t.Error("expected no enrichment calls when nothing clears the threshold")
	}
}

func TestClassifyDegradesOnError(t *testing.T) {
	api := &fakeAPI{failClassify: true}
	c := testClient(api)

	got := c.Classify(context.Background(), "cualquier texto")
	if got.RelevanceScore != 0 {
		t.Errorf("expected zero score on failure, got %d", got.RelevanceScore)
	}
	if got.Reasoning != "Error in processing" {
		t.Errorf("expected default reasoning, got %q", got.Reasoning)
	}
}

func TestEnrichDegradedClassificationsFilteredOut(t *testing.T) {
	api := &fakeAPI{failClassify: true}
	c := testClient(api)

	records := c.Enrich(context.Background(), []scraper.Notice{notice("a"), notice("b")}, 70)
	if len(records) != 0 {
		t.Errorf("expected failed classifications to score below threshold, got %d records", len(records))
	}
}

func TestRecordFields(t *testing.T) {
	api := &fakeAPI{scores: map[string]int{"cuerpo": 90}}
	c := testClient(api)

	records := c.Enrich(context.Background(), []scraper.Notice{notice("cuerpo")}, 70)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	rec := records[0]
	if rec.GeneratedTitle != "título generado" || rec.Category != "Exportación" {
		t.Errorf("title/category = %q/%q", rec.GeneratedTitle, rec.Category)
	}
	if rec.Summary != "resumen" || len(rec.KeyPoints) != 2 {
		t.Errorf("summary = %q, key points = %v", rec.Summary, rec.KeyPoints)
	}
	if rec.Reasoning != "motivo" {
		t.Errorf("reasoning = %q", rec.Reasoning)
	}
	if rec.DateString() != "20/08/2026" {
		t.Errorf("date = %q", rec.DateString())
	}
}

func TestExecutiveSummary(t *testing.T) {
	api := &fakeAPI{}
	c := testClient(api)

	got, err := c.ExecutiveSummary(context.Background(), `{"total": 3}`)
	if err != nil {
		t.Fatalf("ExecutiveSummary: %v", err)
	}
	if got != "<p>Resumen ejecutivo generado.</p>" {
		t.Errorf("unexpected summary %q", got)
	}
}

func TestExecutiveSummaryEmptyResponse(t *testing.T) {
	api := &fakeAPI{emptySummary: true}
	c := testClient(api)

	if _, err := c.ExecutiveSummary(context.Background(), "{}"); err == nil {
		t.Error("expected error for blank response")
	}
}
