// Copyright (C) 2026 Seamark Labs (ops@seamark.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"strings"
	"testing"
)

func TestBuildAnswerContext_OrdersAndNumbersHits(t *testing.T) {
	hits := []SearchHit{
		{Score: 12.5, ID: "a", Title: "Best", Body: "best body"},
		{Score: 3.5, ID: "b", Title: "Second", Body: "second body"},
	}

	got := BuildAnswerContext(hits, 0)

	if !strings.HasPrefix(got, "[1] Best") {
		t.Errorf("best hit must come first, got %q", got)
	}
	if !strings.Contains(got, "[2] Second (id=b, score=3.500)") {
		t.Errorf("expected the per-document header, got %q", got)
	}
}

func TestBuildAnswerContext_DropsHitsOverBudget(t *testing.T) {
	hits := []SearchHit{
		{ID: "a", Title: "First", Body: strings.Repeat("x", 100)},
		{ID: "b", Title: "Second", Body: strings.Repeat("y", 100)},
	}

	got := BuildAnswerContext(hits, 160)

	if !strings.Contains(got, "xxx") {
		t.Error("the first hit must be included")
	}
	if strings.Contains(got, "yyy") {
		t.Error("a hit that does not fit must be dropped, not truncated")
	}
}

func TestBuildAnswerContext_FirstHitTruncatedNotDropped(t *testing.T) {
	hits := []SearchHit{
		{ID: "a", Title: "Only", Body: strings.Repeat("z", 500)},
	}

	got := BuildAnswerContext(hits, 80)

	if got == "" {
		t.Fatal("the context must never be empty when there are hits")
	}
	if len(got) > 80 {
		t.Errorf("expected at most 80 chars, got %d", len(got))
	}
}
