package session

import (
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"physics-practice/internal/models"
)

func sampleState(n int) State {
	answers := make([]StoredAnswer, 0, n)
	for i := 0; i < n; i++ {
		correct := 0
		if i%2 == 0 {
			correct = 1
		}
		answers = append(answers, StoredAnswer{
			Question:    "What is the SI unit of force?",
			Topic:       "Forces",
			UserAnswer:  "B",
			Answer:      "A",
			Correct:     correct,
			Explanation: "The newton is the SI unit of force.",
			TimeSpent:   12.5,
		})
	}
	return State{
		Version:     Version,
		Page:        PageResult,
		Unit:        "Motion, Forces & Energy",
		Answers:     answers,
		WrongTopics: []string{"Forces", "Energy", "Forces"},
		StartTime:   1700000000,
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 5, 20} {
		state := sampleState(n)
		if n == 0 {
			state.Answers = nil
			state.WrongTopics = nil
		}
		decoded := Decode(Encode(state))
		if !reflect.DeepEqual(decoded, state) {
			t.Errorf("round trip with %d answers: got %+v, want %+v", n, decoded, state)
		}
	}
}

func TestEncodeIsURLSafe(t *testing.T) {
	encoded := Encode(sampleState(3))
	if strings.ContainsAny(encoded, "+/= &?") {
		t.Errorf("encoded state contains unsafe characters: %q", encoded)
	}
	if !strings.HasPrefix(encoded, "v1.") {
		t.Errorf("encoded state missing version prefix: %q", encoded)
	}
}

func TestTruncationAppliedOnce(t *testing.T) {
	long := strings.Repeat("x", 300)
	answers := []models.AnsweredQuestion{{
		Question:    long,
		Explanation: long,
		TimeSpent:   3.14159,
	}}

	once := Abbreviate(answers)
	if len(once[0].Question) != 100 {
		t.Fatalf("question clipped to %d chars, want 100", len(once[0].Question))
	}
	if len(once[0].Explanation) != 200 {
		t.Fatalf("explanation clipped to %d chars, want 200", len(once[0].Explanation))
	}

	// Re-encoding already-clipped answers must not clip further.
	twice := Abbreviate(Expand(once))
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("second abbreviation changed the answers: %+v vs %+v", once, twice)
	}
}

func TestTruncationKeepsMultiByteTextIntact(t *testing.T) {
	// 80 three-byte characters: 240 bytes, but only 80 characters, so the
	// question must survive clipping untouched.
	short := strings.Repeat("力", 80)
	long := strings.Repeat("力", 150)
	answers := []models.AnsweredQuestion{{
		Question:    short,
		Explanation: long,
		TimeSpent:   5,
	}}

	once := Abbreviate(answers)
	if once[0].Question != short {
		t.Errorf("80-char question was clipped: got %d chars", utf8.RuneCountInString(once[0].Question))
	}
	if got := utf8.RuneCountInString(once[0].Explanation); got != 150 {
		t.Errorf("150-char explanation clipped to %d chars", got)
	}
	if !utf8.ValidString(once[0].Question) || !utf8.ValidString(once[0].Explanation) {
		t.Fatal("clipped text is not valid UTF-8")
	}

	long250 := strings.Repeat("力", 250)
	clipped := Abbreviate([]models.AnsweredQuestion{{Question: long250, Explanation: long250}})
	if got := utf8.RuneCountInString(clipped[0].Question); got != 100 {
		t.Errorf("question clipped to %d chars, want 100", got)
	}
	if got := utf8.RuneCountInString(clipped[0].Explanation); got != 200 {
		t.Errorf("explanation clipped to %d chars, want 200", got)
	}
	if !utf8.ValidString(clipped[0].Question) {
		t.Fatal("clipped question is not valid UTF-8")
	}

	state := State{Version: Version, Page: PageResult, Answers: clipped}
	if decoded := Decode(Encode(state)); !reflect.DeepEqual(decoded, state) {
		t.Errorf("round trip changed multi-byte state: %+v vs %+v", decoded, state)
	}
	if again := Abbreviate(Expand(clipped)); !reflect.DeepEqual(clipped, again) {
		t.Errorf("second abbreviation changed multi-byte answers: %+v vs %+v", clipped, again)
	}
}

func TestDecodeMalformedInputIsFailSoft(t *testing.T) {
	valid := Encode(sampleState(2))
	cases := map[string]string{
		"empty":            "",
		"no prefix":        "not-a-state",
		"truncated base64": valid[:len(valid)-7],
		"bad base64":       "v1.!!!!",
		"bad json":         "v1." + "bm90IGpzb24",
		"wrong version":    "v0.eyJ2IjowfQ",
	}

	for name, input := range cases {
		if got := Decode(input); !reflect.DeepEqual(got, Default()) {
			t.Errorf("%s: got %+v, want default state", name, got)
		}
	}
}

func TestDecodeUnknownPageFallsBack(t *testing.T) {
	state := sampleState(0)
	state.Page = "result"
	encoded := Encode(state)
	// Tamper: encode a state with an invalid page directly.
	bad := State{Version: Version, Page: "admin"}
	if got := Decode(Encode(bad)); got.Page != PageHome {
		t.Errorf("invalid page: got %q, want %q", got.Page, PageHome)
	}
	if got := Decode(encoded); got.Page != PageResult {
		t.Errorf("valid page: got %q, want %q", got.Page, PageResult)
	}
}

func TestAbbreviateRoundsTime(t *testing.T) {
	stored := Abbreviate([]models.AnsweredQuestion{{TimeSpent: 7.4567}})
	if stored[0].TimeSpent != 7.5 {
		t.Errorf("time rounded to %v, want 7.5", stored[0].TimeSpent)
	}
}
