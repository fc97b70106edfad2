package services

import (
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/studyforge/studyforge-backend/internal/platform/apierr"
	"github.com/studyforge/studyforge-backend/internal/types"
)

// ItemResult is one graded item inside a GradingResult. The same shape
// is produced by local grading and by normalized upstream grading.
type ItemResult struct {
	ItemID        uuid.UUID `json:"item_id"`
	Question      string    `json:"question"`
	Submitted     string    `json:"submitted_answer"`
	Correct       bool      `json:"correct"`
	CorrectAnswer string    `json:"correct_answer"`
	Explanation   string    `json:"explanation"`
}

type GradingResult struct {
	BatchNumber  int          `json:"batch_number"`
	Score        int          `json:"score"`
	CorrectCount int          `json:"correct_count"`
	TotalCount   int          `json:"total_count"`
	Items        []ItemResult `json:"items"`
}

// GradeItems grades a batch locally. Answers are keyed by item id when
// the key parses as a UUID; otherwise the key is treated as a free-text
// copy of the question (legacy input shape) and matched by trimmed,
// lowercased question equality. Items with no matching answer count as
// incorrect with an empty submitted answer; they are never dropped from
// the denominator.
func GradeItems(items []*types.QuizItem, answers map[string]string) (GradingResult, error) {
	if len(items) == 0 {
		// Zero-item batches must be rejected by the batch store before
		// grading is ever reached.
		return GradingResult{}, apierr.New(http.StatusInternalServerError, "invalid_batch",
			fmt.Errorf("grading called with zero quiz items"))
	}

	byID := make(map[string]string, len(answers))
	byQuestion := make(map[string]string, len(answers))
	for key, answer := range answers {
		if _, err := uuid.Parse(strings.TrimSpace(key)); err == nil {
			byID[strings.TrimSpace(key)] = answer
		} else {
			byQuestion[normalizeText(key)] = answer
		}
	}

	results := make([]ItemResult, 0, len(items))
	correctCount := 0
	for _, item := range items {
		submitted, found := byID[item.ID.String()]
		if !found {
			submitted, found = byQuestion[normalizeText(item.Question)]
		}

		correct := found && answersMatch(submitted, item.CorrectAnswer)
		if correct {
			correctCount++
		}
		if !found {
			submitted = ""
		}

		results = append(results, ItemResult{
			ItemID:        item.ID,
			Question:      item.Question,
			Submitted:     submitted,
			Correct:       correct,
			CorrectAnswer: item.CorrectAnswer,
			Explanation:   item.Explanation,
		})
	}

	return GradingResult{
		Score:        scoreOf(correctCount, len(items)),
		CorrectCount: correctCount,
		TotalCount:   len(items),
		Items:        results,
	}, nil
}

// answersMatch is case-insensitive, whitespace-trimmed string equality.
// Multiple choice only; no partial credit.
func answersMatch(submitted, correct string) bool {
	return normalizeText(submitted) == normalizeText(correct)
}

func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// scoreOf computes 100*correct/total rounded half-up to the nearest
// integer (12.5 rounds to 13).
func scoreOf(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Floor(float64(100*correct)/float64(total) + 0.5))
}
