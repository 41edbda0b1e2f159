package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/espartina/boletin/internal/config"
)

const listingTemplate = `<html><body>
<div class="margin-bottom-20 fecha-ultima-edicion">
  <h6>Última edición</h6>
  <h6>  21 de Agosto de 2026  </h6>
</div>
<div class="col-md-12 avisosSeccionDiv">
  %s
</div>
</body></html>`

func detailPage(title, body string) string {
	return fmt.Sprintf(`<html><body>
<h1 id="tituloDetalleAviso">  %s  </h1>
<div id="cuerpoDetalleAviso">  %s  </div>
</body></html>`, title, body)
}

func testServer(t *testing.T, links []string, details map[string]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/seccion/primera", func(w http.ResponseWriter, r *http.Request) {
		var anchors strings.Builder
		for _, link := range links {
			fmt.Fprintf(&anchors, `<a href="%s">Aviso</a>`, link)
		}
		fmt.Fprintf(w, listingTemplate, anchors.String())
	})
	for path, page := range details {
		page := page
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, page)
		})
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testScraper(srv *httptest.Server) *Scraper {
	return New(config.GazetteConfig{BaseURL: srv.URL, SectionPath: "/seccion/primera"})
}

func TestFetchNotices(t *testing.T) {
	srv := testServer(t,
		[]string{"/detalleAviso/1", "/detalleAviso/2"},
		map[string]string{
			"/detalleAviso/1": detailPage("Resolución 1/2026", "Texto de la resolución uno."),
			"/detalleAviso/2": detailPage("Resolución 2/2026", "Texto de la resolución dos."),
		})

	notices, err := testScraper(srv).FetchNotices(context.Background())
	if err != nil {
		t.Fatalf("FetchNotices: %v", err)
	}
	if len(notices) != 2 {
		t.Fatalf("expected 2 notices, got %d", len(notices))
	}

	first := notices[0]
	if first.Title != "Resolución 1/2026" {
		t.Errorf("title = %q", first.Title)
	}
	if first.Body != "Texto de la resolución uno." {
		t.Errorf("body = %q", first.Body)
	}
	if first.Link != srv.URL+"/detalleAviso/1" {
		t.Errorf("link = %q", first.Link)
	}
	want := time.Date(2026, time.August, 21, 0, 0, 0, 0, time.Local)
	if !first.Published.Equal(want) {
		t.Errorf("published = %v, want %v", first.Published, want)
	}
}

func TestFetchSkipsFailingDetail(t *testing.T) {
	srv := testServer(t,
		[]string{"/detalleAviso/1", "/detalleAviso/falla", "/detalleAviso/2"},
		map[string]string{
			"/detalleAviso/1": detailPage("Resolución 1/2026", "Texto uno."),
			"/detalleAviso/2": detailPage("Resolución 2/2026", "Texto dos."),
			// /detalleAviso/falla is unregistered and returns 404.
		})

	notices, err := testScraper(srv).FetchNotices(context.Background())
	if err != nil {
		t.Fatalf("FetchNotices: %v", err)
	}
	if len(notices) != 2 {
		t.Errorf("expected failing detail to be skipped, got %d notices", len(notices))
	}
}

func TestFetchSkipsDetailMissingMarkup(t *testing.T) {
	srv := testServer(t,
		[]string{"/detalleAviso/1"},
		map[string]string{
			"/detalleAviso/1": "<html><body><p>sin los elementos esperados</p></body></html>",
		})

	notices, err := testScraper(srv).FetchNotices(context.Background())
	if err != nil {
		t.Fatalf("FetchNotices: %v", err)
	}
	if len(notices) != 0 {
		t.Errorf("expected 0 notices, got %d", len(notices))
	}
}

func TestFetchMissingDateIsFatal(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/seccion/primera", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body><p>sin fecha</p></body></html>")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	if _, err := testScraper(srv).FetchNotices(context.Background()); err == nil {
		t.Error("expected error for listing without date header")
	}
}

func TestFetchListingErrorIsFatal(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/seccion/primera", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "mantenimiento", http.StatusServiceUnavailable)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	if _, err := testScraper(srv).FetchNotices(context.Background()); err == nil {
		t.Error("expected error for unavailable listing")
	}
}

func TestParseSpanishDate(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
		err   bool
	}{
		{"21 de Agosto de 2026", time.Date(2026, time.August, 21, 0, 0, 0, 0, time.Local), false},
		{"1 de Enero de 2025", time.Date(2025, time.January, 1, 0, 0, 0, 0, time.Local), false},
		{"  3 de diciembre de 2024  ", time.Date(2024, time.December, 3, 0, 0, 0, 0, time.Local), false},
		{"21 de Augustus de 2026", time.Time{}, true},
		{"Agosto 21, 2026", time.Time{}, true},
		{"", time.Time{}, true},
	}
	for _, tt := range tests {
		got, err := ParseSpanishDate(tt.input)
		if tt.err {
			if err == nil {
				t.Errorf("ParseSpanishDate(%q): expected error, got %v", tt.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseSpanishDate(%q): unexpected error: %v", tt.input, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("ParseSpanishDate(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
