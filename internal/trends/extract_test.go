package trends

import (
	"testing"
)

func contains(topics []string, want string) bool {
	for _, t := range topics {
		if t == want {
			return true
		}
	}
	return false
}

func TestExtractPhraseClaiming(t *testing.T) {
	topics := Extract("What a goal by Messi in the Inter Miami game!")

	if !contains(topics, "inter miami") {
		t.Errorf("expected phrase 'inter miami' in %v", topics)
	}
	if contains(topics, "messi") {
		t.Errorf("'messi' should be claimed by capitalization, got %v", topics)
	}
	if contains(topics, "inter") || contains(topics, "miami") {
		t.Errorf("phrase words should not appear standalone, got %v", topics)
	}
	if !contains(topics, "goal") {
		t.Errorf("expected 'goal' in %v", topics)
	}
	if !contains(topics, "game") {
		t.Errorf("expected 'game' in %v", topics)
	}
	for _, stop := range []string{"a", "in", "the", "by"} {
		if contains(topics, stop) {
			t.Errorf("stop word %q should be excluded, got %v", stop, topics)
		}
	}
}

func TestExtractHashtagAlwaysKept(t *testing.T) {
	topics := Extract("#VAR ruined it")

	if !contains(topics, "var") {
		t.Errorf("hashtag 'var' must be kept regardless of length, got %v", topics)
	}
	if !contains(topics, "ruined") {
		t.Errorf("expected 'ruined' in %v", topics)
	}
	if contains(topics, "it") {
		t.Errorf("stop word 'it' should be excluded, got %v", topics)
	}
}

func TestExtractEmptyInput(t *testing.T) {
	for _, input := range []string{"", "   ", "\n\t"} {
		if got := Extract(input); len(got) != 0 {
			t.Errorf("Extract(%q) = %v, want empty", input, got)
		}
	}
}

func TestExtractHashtagsOnly(t *testing.T) {
	topics := Extract("#UCL #MatchDay")

	if len(topics) != 2 {
		t.Fatalf("expected exactly 2 topics, got %v", topics)
	}
	if !contains(topics, "ucl") || !contains(topics, "matchday") {
		t.Errorf("expected hashtag topics, got %v", topics)
	}
}

func TestExtractNoStemming(t *testing.T) {
	a := Extract("what a goal")
	b := Extract("so many goals")

	if !contains(a, "goal") {
		t.Errorf("expected 'goal', got %v", a)
	}
	if !contains(b, "goals") {
		t.Errorf("expected 'goals' (no stemming), got %v", b)
	}
	if contains(b, "goal") {
		t.Errorf("'goals' should not normalize to 'goal', got %v", b)
	}
}

func TestExtractDeduplicates(t *testing.T) {
	topics := Extract("penalty after penalty after penalty")

	count := 0
	for _, topic := range topics {
		if topic == "penalty" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected 'penalty' exactly once, got %v", topics)
	}
}

func TestExtractShortTokensDropped(t *testing.T) {
	topics := Extract("xg up vs city")

	if contains(topics, "xg") || contains(topics, "vs") {
		t.Errorf("tokens of length <= 2 should be dropped, got %v", topics)
	}
	if !contains(topics, "city") {
		t.Errorf("expected 'city' in %v", topics)
	}
}
