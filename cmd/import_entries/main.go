package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"menucost/internal/cascade"
	"menucost/internal/config"
	"menucost/internal/costing"
	"menucost/internal/db"
	"menucost/internal/store"
	"menucost/models"
)

var (
	// A PDF invoice line: "<ingredient> <qty> <unit> <total> [yyyy-mm-dd]".
	invoiceLine     = regexp.MustCompile(`^(.+?)\s+(\d+(?:[.,]\d+)?)\s*([A-Za-z]+)\s+(?:R\$|\$|€)?\s*(\d+(?:[.,]\d+)?)(?:\s+(\d{4}-\d{2}-\d{2}))?$`)
	cleanWhitespace = regexp.MustCompile(`\s+`)
)

// entryRow is one purchase read from an invoice file.
type entryRow struct {
	Line       int
	Ingredient string
	Quantity   decimal.Decimal
	Unit       string
	TotalPrice decimal.Decimal
	Date       time.Time
	Supplier   string
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: import_entries <entries.csv|invoice.pdf> [workspace-slug]")
		os.Exit(2)
	}
	slug := strings.TrimSpace(os.Getenv("MENUCOST_IMPORT_WORKSPACE"))
	if len(os.Args) > 2 {
		slug = os.Args[2]
	}

	if err := run(context.Background(), os.Args[1], slug); err != nil {
		fmt.Fprintf(os.Stderr, "import failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, path, slug string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("input path must not be empty")
	}
	if strings.TrimSpace(slug) == "" {
		return fmt.Errorf("workspace slug must not be empty")
	}

	rows, err := readEntries(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	database, err := db.Initialize(cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(database); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	locker, err := cascade.NewLocker(ctx, cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("workspace lock: %w", err)
	}
	s := store.New(database)
	orch := cascade.New(s, locker, cascade.Options{
		Workers:  cfg.Costing.Workers,
		LockTTL:  cfg.Costing.LockTTL,
		LockWait: cfg.Costing.LockWait,
	})

	ws, err := s.WorkspaceBySlug(ctx, slug)
	if err != nil {
		return err
	}
	return importEntries(ctx, database, s, orch, ws, rows, os.Stdout)
}

// importEntries records every row, then runs one cascade rooted at every
// ingredient that received a purchase. Rows that fail are reported and
// skipped.
func importEntries(ctx context.Context, database *gorm.DB, s *store.Store, orch *cascade.Orchestrator, ws models.Workspace, rows []entryRow, out io.Writer) error {
	roots := make(costing.NodeSet)
	var failures []error
	imported := 0

	for _, row := range rows {
		entry, err := buildEntry(ctx, database, s, ws, row)
		if err == nil {
			var node costing.Node
			node, err = s.RecordSupplierEntry(ctx, &entry)
			if err == nil {
				roots.Add(node)
				imported++
				continue
			}
		}
		failures = append(failures, fmt.Errorf("line %d (%s): %w", row.Line, row.Ingredient, err))
	}

	for _, failure := range failures {
		fmt.Fprintf(out, "skipped %v\n", failure)
	}
	fmt.Fprintf(out, "Imported %d of %d supplier entries into %s\n", imported, len(rows), ws.Slug)

	if len(roots) > 0 {
		result, err := orch.Cascade(ctx, ws.ID, roots.Sorted()...)
		if err != nil {
			return fmt.Errorf("recalculate costs: %w", err)
		}
		fmt.Fprintf(out, "Recalculation %s: %s, %d updated, %d unchanged, %d failed\n",
			result.JobID, result.State, result.Updated, result.Unchanged, result.Failed)
		for _, entityErr := range result.Errors {
			fmt.Fprintf(out, "  %s %d: %s\n", entityErr.Kind, entityErr.EntityID, entityErr.Reason)
		}
	}

	if len(failures) > 0 {
		return fmt.Errorf("%d of %d rows could not be imported", len(failures), len(rows))
	}
	return nil
}

func buildEntry(ctx context.Context, database *gorm.DB, s *store.Store, ws models.Workspace, row entryRow) (models.SupplierEntry, error) {
	ingredient, err := s.IngredientByName(ctx, ws.ID, row.Ingredient)
	if err != nil {
		return models.SupplierEntry{}, err
	}
	unit, err := s.UnitBySymbol(ctx, ws.ID, row.Unit)
	if err != nil {
		return models.SupplierEntry{}, err
	}
	entry := models.SupplierEntry{
		WorkspaceID:  ws.ID,
		IngredientID: ingredient.ID,
		Quantity:     row.Quantity,
		UnitID:       unit.ID,
		TotalPrice:   row.TotalPrice,
		Date:         row.Date,
	}
	if row.Supplier != "" {
		supplier := models.Supplier{WorkspaceID: ws.ID, Name: row.Supplier}
		err := database.WithContext(ctx).
			Where("workspace_id = ? AND name = ?", ws.ID, row.Supplier).
			FirstOrCreate(&supplier).Error
		if err != nil {
			return models.SupplierEntry{}, fmt.Errorf("find or create supplier %q: %w", row.Supplier, err)
		}
		entry.SupplierID = &supplier.ID
	}
	return entry, nil
}

func readEntries(path string) ([]entryRow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return parseCSV(bytes.NewReader(data))
	case ".pdf":
		text, err := extractTextFromPDF(data)
		if err != nil {
			return nil, fmt.Errorf("extract pdf text: %w", err)
		}
		return parseInvoiceText(text)
	default:
		return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}
}

// parseCSV expects the header Ingredient,Quantity,Unit,Total Price,Date,Supplier.
// Date and Supplier may be empty.
func parseCSV(r io.Reader) ([]entryRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New("csv is empty")
	}

	header := make(map[string]int, len(rows[0]))
	for idx, key := range rows[0] {
		header[strings.ToLower(strings.TrimSpace(key))] = idx
	}
	for _, required := range []string{"ingredient", "quantity", "unit", "total price"} {
		if _, ok := header[required]; !ok {
			return nil, fmt.Errorf("csv is missing the %q column", required)
		}
	}
	field := func(row []string, key string) string {
		idx, ok := header[key]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	entries := make([]entryRow, 0, len(rows)-1)
	for idx, row := range rows[1:] {
		if len(row) == 0 || field(row, "ingredient") == "" {
			continue
		}
		entry, err := newEntryRow(idx+2, field(row, "ingredient"), field(row, "quantity"), field(row, "unit"),
			field(row, "total price"), field(row, "date"))
		if err != nil {
			return nil, err
		}
		entry.Supplier = normalizeText(field(row, "supplier"))
		entries = append(entries, entry)
	}
	return entries, nil
}

// parseInvoiceText reads the lines of an extracted invoice that look like
// purchases and ignores everything else.
func parseInvoiceText(text string) ([]entryRow, error) {
	var entries []entryRow
	for idx, line := range strings.Split(text, "\n") {
		line = normalizeText(line)
		match := invoiceLine.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		entry, err := newEntryRow(idx+1, match[1], match[2], match[3], match[4], match[5])
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if len(entries) == 0 {
		return nil, errors.New("no purchase lines found")
	}
	return entries, nil
}

func newEntryRow(line int, ingredient, quantity, unit, total, date string) (entryRow, error) {
	qty, err := parseAmount(quantity)
	if err != nil {
		return entryRow{}, fmt.Errorf("line %d: quantity: %w", line, err)
	}
	price, err := parseAmount(total)
	if err != nil {
		return entryRow{}, fmt.Errorf("line %d: total price: %w", line, err)
	}
	day := time.Now().UTC().Truncate(24 * time.Hour)
	if strings.TrimSpace(date) != "" {
		day, err = time.Parse(time.DateOnly, strings.TrimSpace(date))
		if err != nil {
			return entryRow{}, fmt.Errorf("line %d: date: %w", line, err)
		}
	}
	return entryRow{
		Line:       line,
		Ingredient: normalizeText(ingredient),
		Quantity:   qty,
		Unit:       strings.ToLower(strings.TrimSpace(unit)),
		TotalPrice: price,
		Date:       day,
	}, nil
}

// parseAmount accepts a decimal comma as well as a decimal point.
func parseAmount(value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if strings.Contains(value, ",") && !strings.Contains(value, ".") {
		value = strings.ReplaceAll(value, ",", ".")
	}
	value = strings.ReplaceAll(value, ",", "")
	return decimal.NewFromString(value)
}

func normalizeText(value string) string {
	return strings.TrimSpace(cleanWhitespace.ReplaceAllString(value, " "))
}

func extractTextFromPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	var builder strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", err
		}
		builder.WriteString(text)
		builder.WriteString("\n")
	}
	return builder.String(), nil
}
