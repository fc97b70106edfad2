package services

import (
	"context"
	"reflect"
	"testing"
)

func newBareNormalizer(t *testing.T) *QuizNormalizer {
	t.Helper()
	return NewQuizNormalizer(newTestLogger(t), nil)
}

func TestNormalizeItem_WellFormed(t *testing.T) {
	n := newBareNormalizer(t)
	item, ok := n.NormalizeItem(map[string]any{
		"question":       "Capital of France?",
		"options":        []any{"London", "Paris", "Berlin", "Madrid"},
		"correct_answer": "Paris",
		"explanation":    "Since 508 AD.",
	})
	if !ok {
		t.Fatal("well-formed payload rejected")
	}
	if item.Question != "Capital of France?" {
		t.Fatalf("question = %q", item.Question)
	}
	if !reflect.DeepEqual(item.Options, []string{"London", "Paris", "Berlin", "Madrid"}) {
		t.Fatalf("options = %v", item.Options)
	}
	if item.CorrectAnswer != "Paris" || item.Explanation != "Since 508 AD." {
		t.Fatalf("answer = %q explanation = %q", item.CorrectAnswer, item.Explanation)
	}
}

func TestNormalizeItem_AlternateKeys(t *testing.T) {
	n := newBareNormalizer(t)
	cases := []struct {
		name string
		raw  map[string]any
	}{
		{"camelCase", map[string]any{"questionText": "Q?", "choices": []any{"a", "b"}, "correctAnswer": "a"}},
		{"prompt_answer", map[string]any{"prompt": "Q?", "options": []any{"a", "b"}, "answer": "b"}},
		{"title", map[string]any{"title": "Q?", "options": []any{"a", "b"}, "answer": "a", "rationale": "because"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			item, ok := n.NormalizeItem(tc.raw)
			if !ok {
				t.Fatal("payload rejected")
			}
			if item.Question != "Q?" {
				t.Fatalf("question = %q", item.Question)
			}
			if item.CorrectAnswer == AnswerUnavailable {
				t.Fatal("answer fell through to sentinel")
			}
		})
	}
}

func TestNormalizeItem_MissingFieldsGetSentinels(t *testing.T) {
	n := newBareNormalizer(t)
	item, ok := n.NormalizeItem(map[string]any{})
	if !ok {
		t.Fatal("empty object should still normalize")
	}
	if item.Question != QuestionUnavailable {
		t.Fatalf("question = %q, want sentinel", item.Question)
	}
	if item.CorrectAnswer != AnswerUnavailable {
		t.Fatalf("answer = %q, want sentinel", item.CorrectAnswer)
	}
	if item.Explanation != ExplanationUnavailable {
		t.Fatalf("explanation = %q, want sentinel", item.Explanation)
	}
	if len(item.Options) != 4 {
		t.Fatalf("options = %v, want 4 placeholders", item.Options)
	}
}

func TestNormalizeItem_WrongTypesDegradeGracefully(t *testing.T) {
	n := newBareNormalizer(t)
	item, ok := n.NormalizeItem(map[string]any{
		"question":       map[string]any{"nested": "junk"},
		"options":        "not a list",
		"correct_answer": 42,
		"explanation":    nil,
	})
	if !ok {
		t.Fatal("payload rejected")
	}
	if item.Question != QuestionUnavailable {
		t.Fatalf("question = %q, want sentinel", item.Question)
	}
	if item.CorrectAnswer != "42" {
		t.Fatalf("numeric answer = %q, want stringified 42", item.CorrectAnswer)
	}
	if item.Explanation != ExplanationUnavailable {
		t.Fatalf("explanation = %q, want sentinel", item.Explanation)
	}
}

func TestNormalizeItem_OptionsAsMap(t *testing.T) {
	n := newBareNormalizer(t)
	item, ok := n.NormalizeItem(map[string]any{
		"question": "Q?",
		"options": map[string]any{
			"b": "second",
			"a": "first",
			"c": "third",
		},
		"answer": "first",
	})
	if !ok {
		t.Fatal("payload rejected")
	}
	if !reflect.DeepEqual(item.Options, []string{"first", "second", "third"}) {
		t.Fatalf("options = %v, want sorted-key order", item.Options)
	}
}

func TestNormalizeItem_OptionsUnderAnswersKey(t *testing.T) {
	n := newBareNormalizer(t)
	item, ok := n.NormalizeItem(map[string]any{
		"question": "Q?",
		"answers":  []any{"alpha", "beta", "gamma"},
		"answer":   "beta",
	})
	if !ok {
		t.Fatal("payload rejected")
	}
	if !reflect.DeepEqual(item.Options, []string{"alpha", "beta", "gamma"}) {
		t.Fatalf("options = %v, want list from answers key", item.Options)
	}
	// The list under "answers" must not bleed into the answer string.
	if item.CorrectAnswer != "beta" {
		t.Fatalf("answer = %q, want beta", item.CorrectAnswer)
	}
}

func TestNormalizeItem_OptionObjects(t *testing.T) {
	n := newBareNormalizer(t)
	item, ok := n.NormalizeItem(map[string]any{
		"question": "Q?",
		"options": []any{
			map[string]any{"text": "alpha"},
			map[string]any{"label": "beta"},
			map[string]any{"value": "gamma"},
		},
		"answer": "alpha",
	})
	if !ok {
		t.Fatal("payload rejected")
	}
	if !reflect.DeepEqual(item.Options, []string{"alpha", "beta", "gamma"}) {
		t.Fatalf("options = %v", item.Options)
	}
}

func TestNormalizeItem_OptionMarkersBledIntoQuestion(t *testing.T) {
	n := newBareNormalizer(t)
	item, ok := n.NormalizeItem(map[string]any{
		"question": "Capital of France?\na) London\nb) Paris\nc) Berlin\nd) Madrid",
		"answer":   "Paris",
	})
	if !ok {
		t.Fatal("payload rejected")
	}
	if item.Question != "Capital of France?" {
		t.Fatalf("question = %q, markers not stripped", item.Question)
	}
	if !reflect.DeepEqual(item.Options, []string{"London", "Paris", "Berlin", "Madrid"}) {
		t.Fatalf("options = %v, want derived from markers", item.Options)
	}
}

func TestNormalizeBatch_SkipsNilEntriesOnly(t *testing.T) {
	n := newBareNormalizer(t)
	items := n.NormalizeBatch(context.Background(), []map[string]any{
		{"question": "Q1?", "answer": "a"},
		nil,
		{},
		nil,
		{"question": "Q2?", "answer": "b"},
	})
	if len(items) != 3 {
		t.Fatalf("kept %d items, want 3", len(items))
	}
	for i, item := range items {
		if item.Question == "" || item.CorrectAnswer == "" || item.Explanation == "" || len(item.Options) == 0 {
			t.Fatalf("item %d has an empty field: %+v", i, item)
		}
	}
}

func TestNormalizeBatch_EnrichmentFillsSentinels(t *testing.T) {
	ai := &fakeInference{completeObj: map[string]any{
		"correct_answer": "Paris",
		"explanation":    "Since 508 AD.",
	}}
	n := NewQuizNormalizer(newTestLogger(t), ai)
	items := n.NormalizeBatch(context.Background(), []map[string]any{
		{"question": "Capital of France?"},
	})
	if len(items) != 1 {
		t.Fatalf("kept %d items, want 1", len(items))
	}
	if items[0].CorrectAnswer != "Paris" {
		t.Fatalf("answer = %q, want enriched value", items[0].CorrectAnswer)
	}
	if items[0].Explanation != "Since 508 AD." {
		t.Fatalf("explanation = %q, want enriched value", items[0].Explanation)
	}
}

func TestNormalizeBatch_EnrichmentFailureKeepsSentinels(t *testing.T) {
	ai := &fakeInference{completeErr: context.DeadlineExceeded}
	n := NewQuizNormalizer(newTestLogger(t), ai)
	items := n.NormalizeBatch(context.Background(), []map[string]any{
		{"question": "Capital of France?"},
	})
	if len(items) != 1 {
		t.Fatalf("kept %d items, want 1", len(items))
	}
	if items[0].CorrectAnswer != AnswerUnavailable {
		t.Fatalf("answer = %q, want sentinel kept on enrichment failure", items[0].CorrectAnswer)
	}
}

func TestNormalizeGradingItem(t *testing.T) {
	n := newBareNormalizer(t)
	res, ok := n.NormalizeGradingItem(map[string]any{
		"question":       "Q?",
		"user_answer":    "Paris",
		"is_correct":     true,
		"correct_answer": "Paris",
	})
	if !ok {
		t.Fatal("payload rejected")
	}
	if !res.Correct || res.Submitted != "Paris" {
		t.Fatalf("result = %+v", res)
	}
	if res.Explanation != ExplanationUnavailable {
		t.Fatalf("explanation = %q, want sentinel", res.Explanation)
	}

	if _, ok := n.NormalizeGradingItem(nil); ok {
		t.Fatal("nil payload should be rejected")
	}
}
