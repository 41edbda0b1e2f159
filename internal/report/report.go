package report

import (
	"bytes"
	"context"
	"encoding/json"
	"html/template"
	"log/slog"
	"sort"
	"strings"

	"github.com/espartina/boletin/internal/metrics"
	"github.com/espartina/boletin/internal/store"
)

// topN is how many resolutions feed the executive summary.
const topN = 3

// Summarizer produces the executive-summary HTML snippet from a JSON
// payload. Implemented by classifier.Client.
type Summarizer interface {
	ExecutiveSummary(ctx context.Context, payload string) (string, error)
}

const headerHTML = `<div style="font-family: Arial, sans-serif; max-width: 800px; margin: 0 auto;">
    <h1 style="color: #2c3e50; border-bottom: 2px solid #3498db; padding-bottom: 10px;">
        Resoluciones del Boletín Oficial de la Última Semana
    </h1>
`

var summaryBoxTmpl = template.Must(template.New("summaryBox").Parse(`<div style="background:#f7fbff; border:1px solid #d6e9ff; padding:16px; border-radius:8px; margin:16px 0 24px 0;">
    <h2 style="margin:0 0 8px 0; color:#1f3b57; font-size:18px;">Resumen ejecutivo</h2>
    {{.Body}}
</div>
`))

var fallbackTmpl = template.Must(template.New("fallback").Parse(`<p style="margin:0 0 12px 0; line-height:1.6; color:#34495e;">
    Este informe reúne {{.Total}} resoluciones relevantes de {{.Period}}. A continuación, las {{.Count}} de mayor importancia:
</p>
<ol style="margin:0; padding-left:20px;">
{{- range .Items}}
    <li style="margin-bottom:6px;"><a href="{{.Link}}" style="text-decoration:none; font-weight:600; color:#1b73c4;">{{.Title}}</a> — {{.Date}}</li>
{{- end}}
</ol>
`))

var cardTmpl = template.Must(template.New("card").Parse(`<div style="margin-bottom: 30px; padding: 20px; border: 1px solid #ecf0f1; border-radius: 5px;">
    <h2 style="color: #34495e; margin-top: 0; margin-bottom: 15px; font-size: 18px;">
        {{.Title}} - {{.Date}}
    </h2>
    <p style="color: #555; line-height: 1.6; margin-bottom: 15px;">
        {{.Summary}}
    </p>
    <p style="margin-bottom: 0;">
        <a href="{{.Link}}" style="color: #3498db; text-decoration: none; font-weight: bold;">
            Ver resolución completa
        </a>
    </p>
</div>
`))

// TopByRelevance returns the n highest-scoring records, score descending.
// Equal scores keep their input order.
func TopByRelevance(records []store.Record, n int) []store.Record {
	sorted := make([]store.Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Relevance > sorted[j].Relevance
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// Render builds the digest HTML: fixed header, executive summary (LLM with
// deterministic local fallback), then one card per record in input order.
func Render(ctx context.Context, records []store.Record, periodLabel string, llm Summarizer) string {
	var b strings.Builder
	b.WriteString(headerHTML)

	if len(records) > 0 {
		b.WriteString(executiveSummary(ctx, records, periodLabel, llm))
		for _, rec := range records {
			b.WriteString(renderCard(rec))
		}
	}

	b.WriteString("</div>")
	return b.String()
}

func executiveSummary(ctx context.Context, records []store.Record, periodLabel string, llm Summarizer) string {
	if llm != nil {
		payload := buildPayload(records, periodLabel)
		generated, err := llm.ExecutiveSummary(ctx, payload)
		if err == nil {
			return summaryBox(template.HTML(generated))
		}
		metrics.ReportFallbacksTotal.Add(1)
		slog.Warn("executive summary failed, using fallback", "error", err)
	}
	return summaryBox(fallbackBody(records, periodLabel))
}

func summaryBox(body template.HTML) string {
	var buf bytes.Buffer
	_ = summaryBoxTmpl.Execute(&buf, struct{ Body template.HTML }{body})
	return buf.String()
}

type fallbackItem struct {
	Title string
	Date  string
	Link  string
}

// fallbackBody is the deterministic local summary: a count sentence plus an
// ordered list derived from the same top-3 selection the LLM payload uses.
func fallbackBody(records []store.Record, periodLabel string) template.HTML {
	top := TopByRelevance(records, topN)

	items := make([]fallbackItem, 0, len(top))
	for _, rec := range top {
		items = append(items, fallbackItem{
			Title: orDefault(rec.GeneratedTitle, "(Sin título)"),
			Date:  rec.DateString(),
			Link:  orDefault(rec.Link, "#"),
		})
	}

	var buf bytes.Buffer
	_ = fallbackTmpl.Execute(&buf, struct {
		Total  int
		Period string
		Count  int
		Items  []fallbackItem
	}{
		Total:  len(records),
		Period: periodLabel,
		Count:  len(items),
		Items:  items,
	})
	return template.HTML(buf.String())
}

type payloadItem struct {
	Title     string `json:"title"`
	Date      string `json:"date"`
	Summary   string `json:"summary"`
	URL       string `json:"url"`
	Relevance int    `json:"relevance"`
}

type summaryPayload struct {
	Task        string `json:"task"`
	Constraints struct {
		ParagraphWordLimit int    `json:"paragraph_word_limit"`
		Style              string `json:"style"`
		DoNotInvent        bool   `json:"do_not_invent"`
	} `json:"constraints"`
	Context struct {
		PeriodLabel string        `json:"period_label"`
		Total       int           `json:"total_relevant_resolutions"`
		TopItems    []payloadItem `json:"top_items"`
	} `json:"context"`
	OutputSpec struct {
		Format    string   `json:"format"`
		Structure []string `json:"structure"`
		Tone      string   `json:"tone"`
	} `json:"output_spec"`
}

func buildPayload(records []store.Record, periodLabel string) string {
	var p summaryPayload
	p.Task = "Escribir un resumen ejecutivo para un email en español."
	p.Constraints.ParagraphWordLimit = 90
	p.Constraints.Style = "claro, conciso, orientado a negocio"
	p.Constraints.DoNotInvent = true
	p.Context.PeriodLabel = periodLabel
	p.Context.Total = len(records)
	p.OutputSpec.Format = "HTML"
	p.OutputSpec.Structure = []string{
		"Un párrafo único (<p>) que resuma el período y mencione que se listan las 3 más importantes.",
		"Una lista ordenada (<ol>) con hasta 3 <li>, cada uno con <a href='URL'>Título</a> — Fecha.",
	}
	p.OutputSpec.Tone = "profesional"

	for _, rec := range TopByRelevance(records, topN) {
		p.Context.TopItems = append(p.Context.TopItems, payloadItem{
			Title:     clip(rec.GeneratedTitle, 220),
			Date:      rec.DateString(),
			Summary:   clip(rec.Summary, 600),
			URL:       clip(rec.Link, 400),
			Relevance: rec.Relevance,
		})
	}

	data, _ := json.Marshal(p)
	return string(data)
}

func renderCard(rec store.Record) string {
	var buf bytes.Buffer
	_ = cardTmpl.Execute(&buf, struct {
		Title   string
		Date    string
		Summary string
		Link    string
	}{
		Title:   orDefault(rec.GeneratedTitle, "(Sin título)"),
		Date:    rec.DateString(),
		Summary: rec.Summary,
		Link:    orDefault(rec.Link, "#"),
	})
	return buf.String()
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func clip(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
