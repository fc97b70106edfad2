package services

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/studyforge/studyforge-backend/internal/logger"
)

// Sentinel values used when the inference service leaves a required
// field blank, so downstream code never handles nulls.
const (
	QuestionUnavailable    = "Question not available"
	AnswerUnavailable      = "Answer not available"
	ExplanationUnavailable = "Explanation not available"
)

// optionMarkerRe matches lines like "a) Paris", "B. mitochondria" or
// "c: 42" that some upstream formats bleed into the question string.
var optionMarkerRe = regexp.MustCompile(`^\s*[A-Za-z][\).:]\s+`)

// NormalizedQuizItem is the fixed shape every upstream quiz payload is
// coerced into. All fields are always populated.
type NormalizedQuizItem struct {
	Question      string
	Options       []string
	CorrectAnswer string
	Explanation   string
}

// QuizNormalizer converts arbitrary, loosely-typed inference payloads
// into NormalizedQuizItem records. It never fails: malformed fields
// degrade to sentinel values, and only a nil payload is skipped.
type QuizNormalizer struct {
	log *logger.Logger
	ai  InferenceClient
}

func NewQuizNormalizer(log *logger.Logger, ai InferenceClient) *QuizNormalizer {
	return &QuizNormalizer{log: log.With("service", "QuizNormalizer"), ai: ai}
}

// NormalizeItem coerces one raw payload. ok is false only for a nil
// payload (an entry the gateway could not even decode as an object);
// callers skip those, logging but never aborting the batch.
func (n *QuizNormalizer) NormalizeItem(raw map[string]any) (NormalizedQuizItem, bool) {
	if raw == nil {
		return NormalizedQuizItem{}, false
	}

	questionRaw := firstString(raw, "question", "question_text", "questionText", "text", "title", "prompt")
	question, derivedOptions := stripOptionMarkers(questionRaw)
	if question == "" {
		question = QuestionUnavailable
	}

	options := extractOptions(raw)
	if len(options) == 0 {
		options = derivedOptions
	}
	if len(options) == 0 {
		options = []string{"Option A", "Option B", "Option C", "Option D"}
	}

	correct := firstString(raw, "correct_answer", "correctAnswer", "answer")
	if correct == "" {
		correct = AnswerUnavailable
	}
	explanation := firstString(raw, "explanation", "reason", "rationale")
	if explanation == "" {
		explanation = ExplanationUnavailable
	}

	return NormalizedQuizItem{
		Question:      question,
		Options:       options,
		CorrectAnswer: correct,
		Explanation:   explanation,
	}, true
}

// NormalizeBatch normalizes every raw payload, skipping entries that
// could not be decoded at all, then best-effort enriches items whose
// answer or explanation is still a sentinel.
func (n *QuizNormalizer) NormalizeBatch(ctx context.Context, raws []map[string]any) []NormalizedQuizItem {
	items := make([]NormalizedQuizItem, 0, len(raws))
	skipped := 0
	for _, raw := range raws {
		item, ok := n.NormalizeItem(raw)
		if !ok {
			skipped++
			continue
		}
		items = append(items, item)
	}
	if skipped > 0 {
		n.log.Warn("Skipped undecodable quiz payload entries", "skipped", skipped, "kept", len(items))
	}
	n.enrichBatch(ctx, items)
	return items
}

// enrichBatch asks the completion endpoint to fill sentinel answers and
// explanations. Enrichment is best-effort: every failure is swallowed
// and the sentinel values are kept.
func (n *QuizNormalizer) enrichBatch(ctx context.Context, items []NormalizedQuizItem) {
	if n.ai == nil {
		return
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := range items {
		if items[i].CorrectAnswer != AnswerUnavailable && items[i].Explanation != ExplanationUnavailable {
			continue
		}
		item := &items[i]
		g.Go(func() error {
			n.enrichItem(gctx, item)
			return nil
		})
	}
	_ = g.Wait()
}

func (n *QuizNormalizer) enrichItem(ctx context.Context, item *NormalizedQuizItem) {
	prompt := "Given this multiple-choice question, reply with a JSON object " +
		`{"correct_answer": "...", "explanation": "..."} and nothing else.` + "\n\n" +
		"Question: " + item.Question + "\nOptions:\n- " + strings.Join(item.Options, "\n- ")
	obj, err := n.ai.CompleteJSON(ctx, prompt)
	if err != nil {
		n.log.Debug("Quiz item enrichment failed, keeping sentinel values", "error", err)
		return
	}
	if item.CorrectAnswer == AnswerUnavailable {
		if v := firstString(obj, "correct_answer", "correctAnswer", "answer"); v != "" {
			item.CorrectAnswer = v
		}
	}
	if item.Explanation == ExplanationUnavailable {
		if v := firstString(obj, "explanation", "reason"); v != "" {
			item.Explanation = v
		}
	}
}

// NormalizeGradingItem coerces one per-item result from an upstream
// grading payload into the same shape local grading produces.
func (n *QuizNormalizer) NormalizeGradingItem(raw map[string]any) (ItemResult, bool) {
	if raw == nil {
		return ItemResult{}, false
	}
	question := firstString(raw, "question", "question_text", "questionText", "text")
	if question == "" {
		question = QuestionUnavailable
	}
	correctAnswer := firstString(raw, "correct_answer", "correctAnswer", "answer")
	if correctAnswer == "" {
		correctAnswer = AnswerUnavailable
	}
	explanation := firstString(raw, "explanation", "reason")
	if explanation == "" {
		explanation = ExplanationUnavailable
	}
	return ItemResult{
		Question:      question,
		Submitted:     firstString(raw, "submitted_answer", "user_answer", "submitted"),
		Correct:       anyBool(raw["correct"]) || anyBool(raw["is_correct"]),
		CorrectAnswer: correctAnswer,
		Explanation:   explanation,
	}, true
}

// stripOptionMarkers removes option lines bled into the question text,
// returning the collapsed question and the option texts it found.
func stripOptionMarkers(question string) (string, []string) {
	lines := strings.Split(question, "\n")
	kept := make([]string, 0, len(lines))
	options := make([]string, 0, 4)
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if optionMarkerRe.MatchString(line) {
			opt := strings.TrimSpace(optionMarkerRe.ReplaceAllString(line, ""))
			if opt != "" {
				options = append(options, opt)
			}
			continue
		}
		kept = append(kept, trimmed)
	}
	return strings.TrimSpace(strings.Join(kept, " ")), options
}

// extractOptions reads an explicit options field, accepting either a
// list or a map of values. Map values are taken in sorted-key order so
// the result is deterministic.
func extractOptions(raw map[string]any) []string {
	var field any
	for _, key := range []string{"options", "choices", "answers"} {
		if v, ok := raw[key]; ok && v != nil {
			field = v
			break
		}
	}
	switch v := field.(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, el := range v {
			if s := optionText(el); s != "" {
				out = append(out, s)
			}
		}
		return out
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]string, 0, len(keys))
		for _, k := range keys {
			if s := optionText(v[k]); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// optionText coerces one option entry: a plain string, or an object
// carrying the text under "text"/"label"/"value".
func optionText(v any) string {
	switch el := v.(type) {
	case string:
		return strings.TrimSpace(el)
	case map[string]any:
		return firstString(el, "text", "label", "value")
	case nil:
		return ""
	default:
		return strings.TrimSpace(anyString(el))
	}
}

// firstString returns the first non-blank string value among the given
// alternate keys.
func firstString(raw map[string]any, keys ...string) string {
	for _, key := range keys {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		if _, isMap := v.(map[string]any); isMap {
			continue
		}
		if _, isList := v.([]any); isList {
			continue
		}
		if s := strings.TrimSpace(anyString(v)); s != "" {
			return s
		}
	}
	return ""
}

func anyString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func anyBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "yes", "1", "correct":
			return true
		}
	}
	return false
}
