package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/espartina/boletin/internal/config"
	"github.com/espartina/boletin/internal/metrics"
)

// Notice is one scraped gazette entry. Body is dropped before persistence;
// it only feeds the classifier.
type Notice struct {
	Title     string
	Body      string
	Link      string
	Published time.Time
}

// months maps the Spanish month names used by the gazette date header.
var months = map[string]time.Month{
	"enero":      time.January,
	"febrero":    time.February,
	"marzo":      time.March,
	"abril":      time.April,
	"mayo":       time.May,
	"junio":      time.June,
	"julio":      time.July,
	"agosto":     time.August,
	"septiembre": time.September,
	"octubre":    time.October,
	"noviembre":  time.November,
	"diciembre":  time.December,
}

// Scraper fetches the gazette first-section listing and its notice detail
// pages. All requests share one client; fetches are sequential.
type Scraper struct {
	client  *http.Client
	baseURL string
	section string
}

func New(cfg config.GazetteConfig) *Scraper {
	return &Scraper{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: cfg.BaseURL,
		section: cfg.BaseURL + cfg.SectionPath,
	}
}

// FetchNotices scrapes the listing page and every linked detail page. A
// listing that cannot be fetched or is missing the date header is fatal;
// individual detail failures are logged and skipped.
func (s *Scraper) FetchNotices(ctx context.Context) ([]Notice, error) {
	slog.Info("fetching regulations", "url", s.section)

	doc, err := s.get(ctx, s.section)
	if err != nil {
		return nil, fmt.Errorf("fetching section: %w", err)
	}

	published, err := publicationDate(doc)
	if err != nil {
		return nil, fmt.Errorf("extracting publication date: %w", err)
	}
	slog.Info("publication date", "date", published.Format("02/01/2006"))

	links := noticeLinks(doc)
	slog.Info("found notice links", "count", len(links))

	var notices []Notice
	for _, link := range links {
		detailURL := s.baseURL + link
		notice, err := s.fetchDetail(ctx, detailURL)
		if err != nil {
			metrics.NoticeDetailFailuresTotal.Add(1)
			slog.Warn("skipping notice", "url", detailURL, "error", err)
			continue
		}
		notice.Published = published
		notices = append(notices, notice)
	}

	metrics.NoticesScrapedTotal.Add(int64(len(notices)))
	slog.Info("scraped regulations", "count", len(notices))
	return notices, nil
}

func (s *Scraper) fetchDetail(ctx context.Context, url string) (Notice, error) {
	doc, err := s.get(ctx, url)
	if err != nil {
		return Notice{}, err
	}

	title := strings.TrimSpace(doc.Find("#tituloDetalleAviso").Text())
	body := strings.TrimSpace(doc.Find("#cuerpoDetalleAviso").Text())
	if title == "" || body == "" {
		return Notice{}, fmt.Errorf("detail page missing expected markup")
	}

	return Notice{Title: title, Body: body, Link: url}, nil
}

func (s *Scraper) get(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}
	return doc, nil
}

// publicationDate extracts the edition date from the listing header, a
// localized "D de Month de YYYY" string.
func publicationDate(doc *goquery.Document) (time.Time, error) {
	header := doc.Find("div.fecha-ultima-edicion h6")
	if header.Length() < 2 {
		return time.Time{}, fmt.Errorf("date header not found")
	}
	text := strings.TrimSpace(header.Eq(1).Text())
	return ParseSpanishDate(text)
}

func noticeLinks(doc *goquery.Document) []string {
	var links []string
	doc.Find("div.avisosSeccionDiv a[href]").Each(func(_ int, sel *goquery.Selection) {
		if href, ok := sel.Attr("href"); ok && href != "" {
			links = append(links, href)
		}
	})
	return links
}

// ParseSpanishDate parses dates like "15 de Agosto de 2026".
func ParseSpanishDate(s string) (time.Time, error) {
	parts := strings.Split(strings.TrimSpace(s), " de ")
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("unexpected date format %q", s)
	}

	day, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return time.Time{}, fmt.Errorf("unexpected day in %q", s)
	}

	month, ok := months[strings.ToLower(strings.TrimSpace(parts[1]))]
	if !ok {
		return time.Time{}, fmt.Errorf("unknown month in %q", s)
	}

	year, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil {
		return time.Time{}, fmt.Errorf("unexpected year in %q", s)
	}

	return time.Date(year, month, day, 0, 0, 0, 0, time.Local), nil
}
