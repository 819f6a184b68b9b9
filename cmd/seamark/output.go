// Copyright (C) 2026 Seamark Labs (ops@seamark.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Progress printing helpers shared by the checklist and the leaf commands.
// Output is written as it happens, never buffered to the end: when a step
// hangs or fails, the lines before it are the evidence.

// heading prints a banner separating checklist sections.
func heading(w io.Writer, title string) {
	bar := strings.Repeat("=", 90)
	fmt.Fprintf(w, "\n%s\n%s\n%s\n", bar, title, bar)
}

func okf(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "[OK] "+format+"\n", args...)
}

func warnf(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "[WARN] "+format+"\n", args...)
}

func failf(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "[FAIL] "+format+"\n", args...)
}

// prettyJSON re-indents a JSON body for display, capped at limit bytes.
// A body that does not parse is shown verbatim (truncated) rather than
// suppressed; an unparseable diagnostic is still a diagnostic.
func prettyJSON(s string, limit int) string {
	var parsed any
	if err := json.Unmarshal([]byte(s), &parsed); err != nil {
		return truncate(s, limit)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(parsed); err != nil {
		return truncate(s, limit)
	}
	return truncate(strings.TrimRight(buf.String(), "\n"), limit)
}

// truncate caps a string at n bytes.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
