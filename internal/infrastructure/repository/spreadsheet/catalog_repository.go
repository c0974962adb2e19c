package spreadsheet

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/ebook-catalog/internal/core/domain"
)

// Excel refuses cells longer than this many characters.
const maxCellChars = 32767

const DefaultSheet = "library"

const (
	colFilepath = "filepath"
	colTitle    = "title"
	colAuthor   = "author"
	colCategory = "category"
	colType     = "type"
	colTOC      = "toc"
	colPreface  = "preface"
)

var catalogColumns = []string{colFilepath, colTitle, colAuthor, colCategory, colType, colTOC, colPreface}

// CatalogRepository keeps the catalog as rows of one worksheet. Columns are located
// by header name, so workbooks edited by hand or created by older runs keep working.
type CatalogRepository struct {
	path  string
	sheet string
	mu    sync.Mutex
}

func NewCatalogRepository(path, sheet string) *CatalogRepository {
	if strings.TrimSpace(sheet) == "" {
		sheet = DefaultSheet
	}
	return &CatalogRepository{path: path, sheet: sheet}
}

func (r *CatalogRepository) Path() string {
	return r.path
}

func (r *CatalogRepository) ListKnownPaths(ctx context.Context) (map[string]struct{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	known := make(map[string]struct{})
	rows, err := r.readRows()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return known, nil
	}
	header := headerIndex(rows[0])
	idx, ok := header[colFilepath]
	if !ok {
		return known, nil
	}
	for _, row := range rows[1:] {
		if value := pathCell(row, idx); value != "" {
			known[value] = struct{}{}
		}
	}
	return known, nil
}

// EnsureSchema checks that the workbook, when present, can take the catalog columns.
// Nothing is saved here: a missing workbook, sheet or column is written by
// AppendRecords in the same save as the rows.
func (r *CatalogRepository) EnsureSchema(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := excelize.OpenFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return domain.WrapError(domain.ErrStoreUnavailable, "open catalog workbook", err)
	}
	defer f.Close()

	sheet, err := r.catalogSheet(f)
	if err != nil {
		return err
	}
	if _, err := ensureHeader(f, sheet); err != nil {
		return domain.WrapError(domain.ErrStoreWrite, "ensure catalog header", err)
	}
	return nil
}

// AppendRecords writes new rows below the existing ones. Paths already present in the
// sheet, or repeated within the batch, are skipped.
func (r *CatalogRepository) AppendRecords(ctx context.Context, records []domain.BookRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := r.openOrCreate()
	if err != nil {
		return err
	}
	defer f.Close()

	sheet, err := r.catalogSheet(f)
	if err != nil {
		return err
	}
	if _, err := ensureHeader(f, sheet); err != nil {
		return domain.WrapError(domain.ErrStoreWrite, "ensure catalog header", err)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return domain.WrapError(domain.ErrStoreUnavailable, "read catalog sheet", err)
	}
	header := rows[0]
	index := headerIndex(header)
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows[1:] {
		if value := pathCell(row, index[colFilepath]); value != "" {
			seen[value] = struct{}{}
		}
	}

	next := len(rows) + 1
	for _, rec := range records {
		if _, dup := seen[rec.Filepath]; dup {
			continue
		}
		seen[rec.Filepath] = struct{}{}
		if err := writeRow(f, sheet, next, len(header), index, rec); err != nil {
			return domain.WrapError(domain.ErrStoreWrite, "write catalog row", err)
		}
		next++
	}

	if err := saveAtomic(f, r.path); err != nil {
		return domain.WrapError(domain.ErrStoreWrite, "save catalog workbook", err)
	}
	return nil
}

// ListRecords returns rows in sheet order. A non-positive limit returns every match.
func (r *CatalogRepository) ListRecords(ctx context.Context, filter domain.BookFilter) ([]domain.BookRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	all, err := r.readRecords()
	if err != nil {
		return nil, err
	}

	out := make([]domain.BookRecord, 0)
	skipped := 0
	for _, rec := range all {
		if filter.Category != "" && rec.Category != filter.Category {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		out = append(out, rec)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (r *CatalogRepository) GetByPath(ctx context.Context, path string) (*domain.BookRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	all, err := r.readRecords()
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].Filepath == path {
			return &all[i], nil
		}
	}
	return nil, domain.WrapError(domain.ErrBookNotFound, "get book by path", fmt.Errorf("filepath %q", path))
}

// WriteWorkbook writes records to a new standalone workbook at path.
func (r *CatalogRepository) WriteWorkbook(ctx context.Context, path string, records []domain.BookRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName(f.GetSheetName(0), r.sheet); err != nil {
		return domain.WrapError(domain.ErrStoreWrite, "name export sheet", err)
	}
	if _, err := ensureHeader(f, r.sheet); err != nil {
		return domain.WrapError(domain.ErrStoreWrite, "write export header", err)
	}
	index := headerIndex(catalogColumns)
	for i, rec := range records {
		if err := writeRow(f, r.sheet, i+2, len(catalogColumns), index, rec); err != nil {
			return domain.WrapError(domain.ErrStoreWrite, "write export row", err)
		}
	}
	if err := saveAtomic(f, path); err != nil {
		return domain.WrapError(domain.ErrStoreWrite, "save export workbook", err)
	}
	return nil
}

func (r *CatalogRepository) readRecords() ([]domain.BookRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.readRows()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	index := headerIndex(rows[0])
	if _, ok := index[colFilepath]; !ok {
		return nil, nil
	}
	records := make([]domain.BookRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := domain.BookRecord{
			Filepath: pathCell(row, index[colFilepath]),
			Title:    lookup(row, index, colTitle),
			Author:   lookup(row, index, colAuthor),
			Category: lookup(row, index, colCategory),
			FileType: lookup(row, index, colType),
			TOC:      lookup(row, index, colTOC),
			Preface:  lookup(row, index, colPreface),
		}
		if rec.Filepath == "" {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// readRows returns nil when the workbook or the sheet does not exist yet.
func (r *CatalogRepository) readRows() ([][]string, error) {
	f, err := excelize.OpenFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, domain.WrapError(domain.ErrStoreUnavailable, "open catalog workbook", err)
	}
	defer f.Close()

	sheet, err := r.catalogSheet(f)
	if err != nil {
		return nil, err
	}
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, domain.WrapError(domain.ErrStoreUnavailable, "read catalog sheet", err)
	}
	return rows, nil
}

func (r *CatalogRepository) openOrCreate() (*excelize.File, error) {
	f, err := excelize.OpenFile(r.path)
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, domain.WrapError(domain.ErrStoreUnavailable, "open catalog workbook", err)
	}
	f = excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), r.sheet); err != nil {
		_ = f.Close()
		return nil, domain.WrapError(domain.ErrStoreWrite, "name catalog sheet", err)
	}
	return f, nil
}

// catalogSheet returns the configured sheet when the workbook has it. Otherwise the
// first sheet whose header names a filepath column is used, active sheet first, so
// catalogs saved under another sheet name (Sheet1 by default in most tools) are
// still found. With no such sheet the configured name is returned and created on
// the next append.
func (r *CatalogRepository) catalogSheet(f *excelize.File) (string, error) {
	if idx, err := f.GetSheetIndex(r.sheet); err == nil && idx >= 0 {
		return r.sheet, nil
	}
	candidates := f.GetSheetList()
	if active := f.GetSheetName(f.GetActiveSheetIndex()); active != "" {
		candidates = append([]string{active}, candidates...)
	}
	for _, name := range candidates {
		rows, err := f.GetRows(name)
		if err != nil {
			return "", domain.WrapError(domain.ErrStoreUnavailable, "read catalog sheet", err)
		}
		if len(rows) == 0 {
			continue
		}
		if _, ok := headerIndex(rows[0])[colFilepath]; ok {
			slog.Debug("catalog_sheet_fallback", "path", r.path, "configured", r.sheet, "sheet", name)
			return name, nil
		}
	}
	return r.sheet, nil
}

// ensureHeader creates the sheet if needed and appends any missing catalog column
// to the right of the existing header row.
func ensureHeader(f *excelize.File, sheet string) (bool, error) {
	changed := false
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		if _, err := f.NewSheet(sheet); err != nil {
			return false, fmt.Errorf("create sheet %q: %w", sheet, err)
		}
		changed = true
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return false, fmt.Errorf("read header: %w", err)
	}
	var header []string
	if len(rows) > 0 {
		header = rows[0]
	}
	index := headerIndex(header)
	for _, column := range catalogColumns {
		if _, ok := index[column]; ok {
			continue
		}
		name, err := excelize.CoordinatesToCellName(len(header)+1, 1)
		if err != nil {
			return false, err
		}
		if err := f.SetCellStr(sheet, name, column); err != nil {
			return false, fmt.Errorf("write header %q: %w", column, err)
		}
		index[column] = len(header)
		header = append(header, column)
		changed = true
	}
	return changed, nil
}

func writeRow(f *excelize.File, sheet string, rowNum, width int, index map[string]int, rec domain.BookRecord) error {
	row := make([]interface{}, width)
	for i := range row {
		row[i] = ""
	}
	values := map[string]string{
		colFilepath: rec.Filepath,
		colTitle:    rec.Title,
		colAuthor:   rec.Author,
		colCategory: rec.Category,
		colType:     rec.FileType,
		colTOC:      rec.TOC,
		colPreface:  rec.Preface,
	}
	for column, value := range values {
		if idx, ok := index[column]; ok && idx < width {
			row[idx] = clipCell(value)
		}
	}
	start, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, start, &row)
}

// saveAtomic writes next to the destination and renames over it, so a failed save
// leaves the previous workbook intact.
func saveAtomic(f *excelize.File, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create workbook dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp workbook: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if err := f.Write(tmp); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write workbook: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync workbook: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close workbook: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("replace workbook: %w", err)
	}
	return nil
}

func headerIndex(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		if _, exists := index[key]; !exists {
			index[key] = i
		}
	}
	return index
}

func lookup(row []string, index map[string]int, column string) string {
	idx, ok := index[column]
	if !ok {
		return ""
	}
	return cell(row, idx)
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func pathCell(row []string, idx int) string {
	return strings.TrimSpace(cell(row, idx))
}

func clipCell(value string) string {
	if utf8.RuneCountInString(value) <= maxCellChars {
		return value
	}
	return string([]rune(value)[:maxCellChars])
}
