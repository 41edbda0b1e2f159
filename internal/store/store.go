package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/espartina/boletin/internal/metrics"
)

// SheetName is the single sheet holding all persisted regulations.
const SheetName = "resoluciones_relevantes"

// Columns is the fixed header row, in spreadsheet order.
var Columns = []string{
	"Fecha Publicación",
	"Titulo_Generado",
	"Categoria",
	"Relevancia",
	"Razonamiento",
	"Resumen",
	"Puntos_Clave",
	"Enlace",
}

// Store is an append-only spreadsheet of relevant regulations. A single run
// is the only writer; concurrent processes are not supported.
type Store struct {
	path string
}

func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

// Append writes records after the last used row of the sheet, creating the
// file with a header row when it does not exist yet. Empty input is a no-op.
func (s *Store) Append(records []Record) error {
	if len(records) == 0 {
		slog.Info("no records to save")
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	var (
		f    *excelize.File
		next int
	)
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		f = excelize.NewFile()
		if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
			f.Close()
			return fmt.Errorf("naming sheet: %w", err)
		}
		if err := setRow(f, 1, headerValues()); err != nil {
			f.Close()
			return err
		}
		next = 2
	} else {
		f, err = excelize.OpenFile(s.path)
		if err != nil {
			return fmt.Errorf("opening %s: %w", s.path, err)
		}
		rows, err := f.GetRows(SheetName)
		if err != nil {
			// Valid workbook without our sheet: start it fresh.
			if _, err := f.NewSheet(SheetName); err != nil {
				f.Close()
				return fmt.Errorf("creating sheet: %w", err)
			}
			if err := setRow(f, 1, headerValues()); err != nil {
				f.Close()
				return err
			}
			rows = [][]string{Columns}
		}
		next = len(rows) + 1
	}
	defer f.Close()

	for i, rec := range records {
		if err := setRow(f, next+i, rowValues(rec)); err != nil {
			return err
		}
	}

	if err := saveAtomic(f, s.path); err != nil {
		return err
	}

	metrics.RowsAppendedTotal.Add(int64(len(records)))
	slog.Info("saved records", "count", len(records), "path", s.path)
	return nil
}

// ReadRecent returns the records whose publication date falls within the
// inclusive window [today-(days-1), today], sorted ascending by date. Rows
// with unparsable dates are dropped. When archiveOld is set and any parsed
// row fell outside the window, the sheet is rewritten to keep only the
// in-window rows.
func (s *Store) ReadRecent(days int, archiveOld bool) ([]Record, error) {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		slog.Warn("store file not found", "path", s.path)
		return nil, nil
	}

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", s.path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	if err != nil || len(rows) <= 1 {
		return nil, nil
	}

	var parsed []Record
	for _, row := range rows[1:] {
		rec, ok := parseRow(row)
		if !ok {
			continue
		}
		parsed = append(parsed, rec)
	}

	start, end := window(time.Now(), days)
	var recent []Record
	for _, rec := range parsed {
		if !rec.PublicationDate.Before(start) && !rec.PublicationDate.After(end) {
			recent = append(recent, rec)
		}
	}

	if archiveOld && len(recent) < len(parsed) {
		if err := s.rewrite(recent); err != nil {
			return nil, err
		}
		dropped := len(parsed) - len(recent)
		metrics.RowsArchivedTotal.Add(int64(dropped))
		slog.Info("archived old records", "dropped", dropped, "kept", len(recent))
	}

	sorted := make([]Record, len(recent))
	copy(sorted, recent)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PublicationDate.Before(sorted[j].PublicationDate)
	})

	slog.Info("read recent records", "count", len(sorted), "days", days)
	return sorted, nil
}

// Stats reports the number of data rows and the file size in bytes.
func (s *Store) Stats() (int, int64, error) {
	info, err := os.Stat(s.path)
	if os.IsNotExist(err) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, err
	}

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return 0, 0, fmt.Errorf("opening %s: %w", s.path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		return 0, info.Size(), nil
	}
	count := len(rows) - 1
	if count < 0 {
		count = 0
	}
	return count, info.Size(), nil
}

// rewrite replaces the sheet content with header plus the given records,
// keeping their current order. Full overwrite, not an append.
func (s *Store) rewrite(records []Record) error {
	// Build a fresh workbook rather than clearing rows in place.
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}
	if err := setRow(f, 1, headerValues()); err != nil {
		return err
	}
	for i, rec := range records {
		if err := setRow(f, i+2, rowValues(rec)); err != nil {
			return err
		}
	}
	return saveAtomic(f, s.path)
}

// window returns the inclusive date range covering the last `days` calendar
// days, truncated to midnight.
func window(now time.Time, days int) (start, end time.Time) {
	end = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	start = end.AddDate(0, 0, -(days - 1))
	return start, end
}

func headerValues() []interface{} {
	vals := make([]interface{}, len(Columns))
	for i, c := range Columns {
		vals[i] = c
	}
	return vals
}

func rowValues(r Record) []interface{} {
	return []interface{}{
		r.DateString(),
		r.GeneratedTitle,
		r.Category,
		r.Relevance,
		r.Reasoning,
		r.Summary,
		joinKeyPoints(r.KeyPoints),
		r.Link,
	}
}

func parseRow(row []string) (Record, bool) {
	cell := func(i int) string {
		if i < len(row) {
			return row[i]
		}
		return ""
	}

	date, err := time.ParseInLocation(DateLayout, cell(0), time.Local)
	if err != nil {
		return Record{}, false
	}

	score, err := strconv.Atoi(cell(3))
	if err != nil {
		// Excel may round-trip integers through a float representation.
		if fl, ferr := strconv.ParseFloat(cell(3), 64); ferr == nil {
			score = int(fl)
		}
	}

	return Record{
		PublicationDate: date,
		GeneratedTitle:  cell(1),
		Category:        cell(2),
		Relevance:       score,
		Reasoning:       cell(4),
		Summary:         cell(5),
		KeyPoints:       splitKeyPoints(cell(6)),
		Link:            cell(7),
	}, true
}

func setRow(f *excelize.File, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
		return fmt.Errorf("writing row %d: %w", row, err)
	}
	return nil
}

// saveAtomic writes the workbook to a temp file in the target directory and
// renames it over the live file, so a crash mid-write never truncates the
// store.
func saveAtomic(f *excelize.File, path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".boletin-*.xlsx")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if err := f.Write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing workbook: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
