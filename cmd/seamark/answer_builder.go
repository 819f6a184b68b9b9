// Copyright (C) 2026 Seamark Labs (ops@seamark.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"strings"
)

// DefaultContextChars bounds the context passed to the answer model so
// small local models keep their effective attention on the hits.
const DefaultContextChars = 6000

// BuildAnswerContext concatenates hits into the CONTEXT block for the
// answer model: one per-document header line, then the document text,
// best hits first, cut off at maxChars. A hit that does not fit at all
// is dropped rather than truncated mid-document, except the first hit,
// which is truncated so the context is never empty.
func BuildAnswerContext(hits []SearchHit, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultContextChars
	}

	var b strings.Builder
	for i, hit := range hits {
		section := fmt.Sprintf("[%d] %s (id=%s, score=%.3f)\n%s\n\n",
			i+1, hit.Title, hit.ID, hit.Score, hit.Body)
		if b.Len()+len(section) > maxChars {
			if i == 0 {
				b.WriteString(section[:maxChars])
			}
			break
		}
		b.WriteString(section)
	}
	return strings.TrimRight(b.String(), "\n")
}
