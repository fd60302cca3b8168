package report

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

type fakeCompleter struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

type fakeCache struct {
	reports map[string]string
	setErr  error
}

func newFakeCache() *fakeCache {
	return &fakeCache{reports: make(map[string]string)}
}

func (f *fakeCache) GetReport(token string) (string, error) {
	text, ok := f.reports[token]
	if !ok {
		return "", errors.New("cache miss")
	}
	return text, nil
}

func (f *fakeCache) SetReport(token, text string) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.reports[token] = text
	return nil
}

func (f *fakeCache) DeleteReport(token string) error {
	delete(f.reports, token)
	return nil
}

func TestGenerateReturnsRemoteTextVerbatim(t *testing.T) {
	completer := &fakeCompleter{response: "## AI Analysis\nWell done."}
	g := NewGenerator(completer, newFakeCache())

	text, source := g.Generate(context.Background(), "tok", tenAnswers(), "Waves", false)
	if text != "## AI Analysis\nWell done." {
		t.Errorf("remote text altered: %q", text)
	}
	if source != "ai" {
		t.Errorf("source = %q, want ai", source)
	}
}

func TestGenerateFallsBackToLocalOnRemoteError(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("connection refused")}
	g := NewGenerator(completer, newFakeCache())

	text, source := g.Generate(context.Background(), "tok", tenAnswers(), "Waves", false)
	if source != "local" {
		t.Fatalf("source = %q, want local", source)
	}
	if !strings.Contains(text, "Quiz Analysis Report for Waves") {
		t.Errorf("fallback did not produce the local report:\n%s", text)
	}
}

func TestGenerateUsesCache(t *testing.T) {
	completer := &fakeCompleter{response: "fresh"}
	cache := newFakeCache()
	cache.reports["tok"] = "cached report"
	g := NewGenerator(completer, cache)

	text, source := g.Generate(context.Background(), "tok", tenAnswers(), "Waves", false)
	if text != "cached report" || source != "cache" {
		t.Errorf("got (%q, %q), want cached report", text, source)
	}
	if len(completer.prompts) != 0 {
		t.Error("remote called despite cache hit")
	}
}

func TestInvalidateDropsCache(t *testing.T) {
	completer := &fakeCompleter{response: "fresh"}
	cache := newFakeCache()
	cache.reports["tok"] = "stale"
	g := NewGenerator(completer, cache)

	g.Invalidate("tok")
	text, source := g.Generate(context.Background(), "tok", tenAnswers(), "Waves", false)
	if text != "fresh" || source != "ai" {
		t.Errorf("got (%q, %q), want fresh remote report", text, source)
	}
}

func TestGenerateForceLocalSkipsRemote(t *testing.T) {
	completer := &fakeCompleter{response: "remote"}
	g := NewGenerator(completer, newFakeCache())

	_, source := g.Generate(context.Background(), "tok", tenAnswers(), "Waves", true)
	if source != "local" {
		t.Errorf("source = %q, want local", source)
	}
	if len(completer.prompts) != 0 {
		t.Error("remote called despite mode=local")
	}
}

func TestGenerateWithoutCompleterIsLocal(t *testing.T) {
	g := NewGenerator(nil, nil)
	text, source := g.Generate(context.Background(), "tok", nil, "Waves", false)
	if source != "local" {
		t.Errorf("source = %q, want local", source)
	}
	if !strings.Contains(text, "**Score:** 0/0 (0%)") {
		t.Errorf("unexpected report:\n%s", text)
	}
}

func TestRemotePromptEmbedsQuizDetail(t *testing.T) {
	completer := &fakeCompleter{response: "ok"}
	if _, err := Remote(context.Background(), completer, tenAnswers(), "Motion, Forces & Energy"); err != nil {
		t.Fatal(err)
	}

	prompt := completer.prompts[0]
	for _, want := range []string{
		`quiz on "Motion, Forces & Energy"`,
		"Score: 7/10 (70%)",
		`"topic": "Forces"`,
		"Motivational closing",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestRemotePromptClipsQuestionText(t *testing.T) {
	answers := tenAnswers()
	answers[0].Question = strings.Repeat("y", 400)
	completer := &fakeCompleter{response: "ok"}
	if _, err := Remote(context.Background(), completer, answers, "Waves"); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(completer.prompts[0], strings.Repeat("y", 101)) {
		t.Error("question text not clipped to 100 chars in prompt")
	}
}

func TestRemotePromptClipsMultiByteTextIntact(t *testing.T) {
	answers := tenAnswers()
	answers[0].Question = strings.Repeat("波", 150)
	completer := &fakeCompleter{response: "ok"}
	if _, err := Remote(context.Background(), completer, answers, "Waves"); err != nil {
		t.Fatal(err)
	}
	prompt := completer.prompts[0]
	if !utf8.ValidString(prompt) {
		t.Fatal("prompt contains invalid UTF-8")
	}
	if strings.Contains(prompt, strings.Repeat("波", 101)) {
		t.Error("question text not clipped to 100 chars in prompt")
	}
	if !strings.Contains(prompt, strings.Repeat("波", 100)) {
		t.Error("clipped question lost characters before the 100-char limit")
	}
}
