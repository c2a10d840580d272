package domain

import (
	"sort"
	"strings"
)

const (
	// Scoring weights
	ScoreExactMatch     = 100.0
	ScorePrefixMatch    = 75.0
	ScoreSubstringMatch = 50.0
	ScoreFuzzyMatch     = 25.0

	// Position bonus (earlier is better)
	ScorePositionBonus = 10.0

	// A match in the description counts for less than one in the name.
	ScoreDescriptionWeight = 0.5
)

// BookmarkCandidate is a bookmark matched by a query, with its score.
type BookmarkCandidate struct {
	Bookmark Bookmark
	Score    float64
}

// ScoreBookmark scores a bookmark's name and description against a query.
// Zero means no match.
func ScoreBookmark(query string, b Bookmark) float64 {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return 0.0
	}

	nameScore := scoreText(query, strings.ToLower(b.Name))
	descScore := scoreText(query, strings.ToLower(b.Description)) * ScoreDescriptionWeight

	if nameScore >= descScore {
		return nameScore
	}
	return descScore
}

func scoreText(query, text string) float64 {
	if text == "" {
		return 0.0
	}

	if query == text {
		return ScoreExactMatch
	}

	if strings.HasPrefix(text, query) {
		return ScorePrefixMatch
	}

	if idx := strings.Index(text, query); idx >= 0 {
		// Earlier substring matches get higher score
		return ScoreSubstringMatch + ScorePositionBonus*(1.0-float64(idx)/float64(len(text)))
	}

	// Every query word appears somewhere in the text
	if words := strings.Fields(query); len(words) > 1 {
		allMatch := true
		for _, w := range words {
			if !strings.Contains(text, w) {
				allMatch = false
				break
			}
		}
		if allMatch {
			return ScoreFuzzyMatch
		}
	}

	if similarity := calculateSimilarity(query, text); similarity > 0.5 {
		return ScoreFuzzyMatch * similarity
	}

	return 0.0
}

// calculateSimilarity is the ratio of query characters present in text.
func calculateSimilarity(query, text string) float64 {
	if query == "" || text == "" {
		return 0.0
	}

	matches, total := 0, 0
	for _, c := range query {
		if c == ' ' {
			continue
		}
		total++
		if strings.ContainsRune(text, c) {
			matches++
		}
	}
	if total == 0 {
		return 0.0
	}
	return float64(matches) / float64(total)
}

// RankBookmarks returns the bookmarks matching query, best first.
// Ties keep the input order.
func RankBookmarks(query string, bookmarks []Bookmark) []BookmarkCandidate {
	candidates := make([]BookmarkCandidate, 0, len(bookmarks))
	for _, b := range bookmarks {
		score := ScoreBookmark(query, b)
		if score == 0.0 {
			continue
		}
		candidates = append(candidates, BookmarkCandidate{Bookmark: b, Score: score})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	return candidates
}
