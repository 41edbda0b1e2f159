package metrics

import (
	"expvar"
)

var (
	// NoticesScrapedTotal counts notices successfully scraped from detail pages
	NoticesScrapedTotal = expvar.NewInt("notices_scraped_total")

	// NoticeDetailFailuresTotal counts detail pages that failed to load or parse
	NoticeDetailFailuresTotal = expvar.NewInt("notice_detail_failures_total")

	// ClassifyFallbacksTotal counts classification calls that degraded to the zero-score default
	ClassifyFallbacksTotal = expvar.NewInt("classify_fallbacks_total")

	// SummaryFallbacksTotal counts summarization calls that degraded to placeholders
	SummaryFallbacksTotal = expvar.NewInt("summary_fallbacks_total")

	// TitleFallbacksTotal counts title/category calls that degraded to placeholders
	TitleFallbacksTotal = expvar.NewInt("title_fallbacks_total")

	// ReportFallbacksTotal counts executive summaries served by the local template
	ReportFallbacksTotal = expvar.NewInt("report_fallbacks_total")

	// RowsAppendedTotal counts rows appended to the store
	RowsAppendedTotal = expvar.NewInt("rows_appended_total")

	// RowsArchivedTotal counts rows dropped by archive compaction
	RowsArchivedTotal = expvar.NewInt("rows_archived_total")

	// EmailsSentTotal counts digest emails handed to the relay
	EmailsSentTotal = expvar.NewInt("emails_sent_total")
)
