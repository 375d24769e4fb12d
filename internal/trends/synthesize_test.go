package trends

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bholo-app/bholo/internal/brain"
)

type fakeProvider struct {
	content string
	err     error
	calls   int
	lastReq brain.Request
}

func (f *fakeProvider) Name() string    { return "fake" }
func (f *fakeProvider) Available() bool { return true }

func (f *fakeProvider) Generate(_ context.Context, req brain.Request) (brain.Response, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return brain.Response{}, f.err
	}
	return brain.Response{Content: f.content, Model: "fake-1"}, nil
}

func TestSynthesizeEmptyShortCircuit(t *testing.T) {
	p := &fakeProvider{content: "{}"}
	s := NewSynthesizer(p, 0)

	topics, err := s.Synthesize(context.Background(), nil)
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if len(topics) != 0 {
		t.Errorf("expected no topics, got %v", topics)
	}
	if p.calls != 0 {
		t.Errorf("provider must not be invoked for empty input, got %d calls", p.calls)
	}
}

func TestSynthesizePromptFormat(t *testing.T) {
	p := &fakeProvider{content: `{"topics":[]}`}
	s := NewSynthesizer(p, 0)

	ranked := []Ranked{
		{Topic: "ronaldo", Count: 5},
		{Topic: "inter miami", Count: 1},
	}
	if _, err := s.Synthesize(context.Background(), ranked); err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if p.calls != 1 {
		t.Fatalf("expected one batched request, got %d", p.calls)
	}
	if !strings.Contains(p.lastReq.UserPrompt, "Ronaldo (5 posts)") {
		t.Errorf("prompt missing serialized entry: %q", p.lastReq.UserPrompt)
	}
	if !strings.Contains(p.lastReq.UserPrompt, "Inter Miami (1 post)") {
		t.Errorf("prompt missing singular count: %q", p.lastReq.UserPrompt)
	}
}

func TestSynthesizeParsesWrappedResponse(t *testing.T) {
	p := &fakeProvider{content: `{"topics":[{"category":"Football","topic":"Ronaldo on fire","postCount":"5 posts","imageHint":"ronaldo"}]}`}
	s := NewSynthesizer(p, 0)

	topics, err := s.Synthesize(context.Background(), []Ranked{{Topic: "ronaldo", Count: 5}})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if len(topics) != 1 {
		t.Fatalf("expected 1 topic, got %v", topics)
	}
	if topics[0].PostCount != "5 posts" {
		t.Errorf("postCount not echoed verbatim: %q", topics[0].PostCount)
	}
	if topics[0].Category != "Football" {
		t.Errorf("unexpected category %q", topics[0].Category)
	}
}

func TestSynthesizeParsesFencedAndBareArray(t *testing.T) {
	cases := []string{
		"```json\n[{\"category\":\"Football\",\"topic\":\"VAR drama again\",\"postCount\":\"3 posts\",\"imageHint\":\"referee\"}]\n```",
		`[{"category":"Football","topic":"VAR drama again","postCount":"3 posts","imageHint":"referee"}]`,
	}
	for _, content := range cases {
		p := &fakeProvider{content: content}
		s := NewSynthesizer(p, 0)

		topics, err := s.Synthesize(context.Background(), []Ranked{{Topic: "var", Count: 3}})
		if err != nil {
			t.Fatalf("Synthesize failed for %q: %v", content, err)
		}
		if len(topics) != 1 || topics[0].ImageHint != "referee" {
			t.Errorf("bad parse for %q: %v", content, topics)
		}
	}
}

func TestSynthesizeProviderErrorPropagates(t *testing.T) {
	p := &fakeProvider{err: errors.New("rate limited")}
	s := NewSynthesizer(p, 0)

	_, err := s.Synthesize(context.Background(), []Ranked{{Topic: "ronaldo", Count: 5}})
	if err == nil {
		t.Fatal("expected error to propagate")
	}
}

func TestSynthesizeGarbageResponse(t *testing.T) {
	p := &fakeProvider{content: "sorry, I can't help with that"}
	s := NewSynthesizer(p, 0)

	_, err := s.Synthesize(context.Background(), []Ranked{{Topic: "ronaldo", Count: 5}})
	if err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSynthesizeNoProvider(t *testing.T) {
	s := NewSynthesizer(nil, 0)

	if _, err := s.Synthesize(context.Background(), []Ranked{{Topic: "ronaldo", Count: 5}}); err == nil {
		t.Fatal("expected error with no provider")
	}
	// Empty input still short-circuits cleanly without a provider.
	if topics, err := s.Synthesize(context.Background(), nil); err != nil || len(topics) != 0 {
		t.Errorf("empty input should not need a provider: %v %v", topics, err)
	}
}
