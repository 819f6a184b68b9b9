// Copyright (C) 2026 Seamark Labs (ops@seamark.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
Package main contains sheet_loader.go which maps spreadsheet rows into
staged documents.

# Problem Statement

Source material arrives as whatever spreadsheet the operations team
exports: column names vary (case_id vs doc_id, subject vs title), some
sheets have no usable ID column at all, and free-text cells can exceed
the store's column widths. The loader must accept all of these without
per-sheet configuration.

# Solution

SheetLoader reads the first sheet (or a named one), resolves each logical
field from a ranked list of candidate header names, and degrades
gracefully: synthesized excel_<row> IDs when no ID column matches,
"Row N" titles, now() timestamps, and hard truncation to the store's
column widths. Row order decides nothing; each row maps independently.

# Related Files

  - pkg/docstore: the sink the documents are upserted into
  - cmd_load.go: integration point (runLoad)
*/
package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/seamark-labs/seamark/pkg/docstore"
)

// Candidate header names per logical field, in preference order.
// Matching is case-insensitive on the trimmed header cell.
var (
	idColumns    = []string{"id", "case_id", "doc_id", "incident_id"}
	titleColumns = []string{"title", "subject", "summary"}
	bodyColumns  = []string{"body", "description", "details", "content"}
	dateColumns  = []string{"updated_at", "opendate", "date", "created_at", "timestamp"}
)

// Store column widths; cells beyond these are truncated, not rejected.
const (
	maxIDLen    = 64
	maxTitleLen = 500
)

// dateLayouts are tried in order when parsing a date cell. Excel
// serials are handled separately by excelize's cell formatting.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006",
	"02-Jan-2006",
}

// columnMap holds the resolved column index per logical field, -1 when
// no candidate header matched.
type columnMap struct {
	id, title, body, date int
}

// SheetLoader reads spreadsheet rows into documents.
type SheetLoader struct {
	// now is injected so tests get deterministic fallback timestamps.
	now func() time.Time
}

// NewSheetLoader creates a loader with wall-clock timestamps.
func NewSheetLoader() *SheetLoader {
	return &SheetLoader{now: time.Now}
}

// LoadFile reads up to limit rows (0 = all) from the named sheet of an
// xlsx file. An empty sheetName selects the workbook's first sheet.
//
// # Outputs
//
//   - []docstore.Document: one document per non-empty data row
//   - error: open/read failures; malformed individual rows never fail
//     the load, they map with fallback values instead
func (l *SheetLoader) LoadFile(path, sheetName string, limit int) ([]docstore.Document, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet %s: %w", path, err)
	}
	defer f.Close()

	if sheetName == "" {
		sheetName = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheetName, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheetName)
	}

	cols := resolveColumns(rows[0])
	docs := make([]docstore.Document, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if limit > 0 && len(docs) >= limit {
			break
		}
		if rowIsEmpty(row) {
			continue
		}
		docs = append(docs, l.mapRow(row, cols, i+1))
	}
	return docs, nil
}

// resolveColumns matches header cells against the candidate lists.
func resolveColumns(header []string) columnMap {
	cols := columnMap{id: -1, title: -1, body: -1, date: -1}
	for i, cell := range header {
		name := strings.ToLower(strings.TrimSpace(cell))
		if cols.id == -1 && matchesAny(name, idColumns) {
			cols.id = i
		}
		if cols.title == -1 && matchesAny(name, titleColumns) {
			cols.title = i
		}
		if cols.body == -1 && matchesAny(name, bodyColumns) {
			cols.body = i
		}
		if cols.date == -1 && matchesAny(name, dateColumns) {
			cols.date = i
		}
	}
	return cols
}

func matchesAny(name string, candidates []string) bool {
	for _, c := range candidates {
		if name == c {
			return true
		}
	}
	return false
}

// mapRow converts one data row. rowNum is 1-based over data rows and
// drives the synthesized fallbacks.
func (l *SheetLoader) mapRow(row []string, cols columnMap, rowNum int) docstore.Document {
	id := cellAt(row, cols.id)
	if id == "" {
		id = fmt.Sprintf("excel_%d", rowNum)
	}
	if len(id) > maxIDLen {
		id = id[:maxIDLen]
	}

	title := cellAt(row, cols.title)
	if title == "" {
		title = fmt.Sprintf("Row %d", rowNum)
	}
	if len(title) > maxTitleLen {
		title = title[:maxTitleLen]
	}

	body := cellAt(row, cols.body)

	updatedAt := l.now().UTC()
	if raw := cellAt(row, cols.date); raw != "" {
		if t, ok := parseDate(raw); ok {
			updatedAt = t
		}
	}

	return docstore.Document{
		ID:        id,
		Title:     title,
		Body:      body,
		Content:   title + "\n" + body,
		UpdatedAt: updatedAt,
	}
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func parseDate(raw string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func rowIsEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
