// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"slices"
	"strings"
	"sync"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"
)

// FuzzyResult is the outcome of matching one string. Score is zero
// when the pattern did not match. Positions are rune indexes of the
// matched characters in ascending order.
type FuzzyResult struct {
	Score     int
	Positions []int
}

var fuzzyInit sync.Once

// NewSlab allocates scratch space for repeated FuzzyMatch calls.
// Reusing one slab across a filter pass avoids per-call allocations.
func NewSlab() *util.Slab {
	return util.MakeSlab(100*1024, 2048)
}

// FuzzyMatch scores text against pattern with fzf's V2 algorithm,
// case-insensitively. An empty pattern matches everything with score
// 1 and no positions.
func FuzzyMatch(text string, pattern []rune, slab *util.Slab) FuzzyResult {
	if len(pattern) == 0 {
		return FuzzyResult{Score: 1}
	}
	fuzzyInit.Do(func() { algo.Init("default") })

	lowered := []rune(strings.ToLower(string(pattern)))
	chars := util.ToChars([]byte(text))
	result, positions := algo.FuzzyMatchV2(false, true, true, &chars, lowered, true, slab)
	if result.Start < 0 || result.Score <= 0 {
		return FuzzyResult{}
	}

	matched := FuzzyResult{Score: result.Score}
	if positions != nil {
		matched.Positions = slices.Clone(*positions)
		slices.Sort(matched.Positions)
	}
	return matched
}

// RenderFunc renders text in one style. lipgloss Style.Render has
// this shape.
type RenderFunc func(...string) string

// HighlightMatches renders text with the runes at positions styled by
// highlight and the rest by normal.
func HighlightMatches(text string, positions []int, normal, highlight RenderFunc) string {
	if len(positions) == 0 {
		return normal(text)
	}
	marked := make(map[int]bool, len(positions))
	for _, position := range positions {
		marked[position] = true
	}

	var builder strings.Builder
	var run []rune
	runMarked := false
	flush := func() {
		if len(run) == 0 {
			return
		}
		if runMarked {
			builder.WriteString(highlight(string(run)))
		} else {
			builder.WriteString(normal(string(run)))
		}
		run = run[:0]
	}
	for index, character := range []rune(text) {
		if marked[index] != runMarked {
			flush()
			runMarked = marked[index]
		}
		run = append(run, character)
	}
	flush()
	return builder.String()
}
