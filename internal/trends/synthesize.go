package trends

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bholo-app/bholo/internal/brain"
	"github.com/bholo-app/bholo/internal/logging"
	"github.com/bholo-app/bholo/internal/model"
)

const synthesisSystemPrompt = `You write trending-topic cards for a football fan app.
For every input line "<topic> (<post count>)" produce one JSON object with:
- "category": a short label such as "Football", "Transfers" or "Match Day"
- "topic": a punchy headline (under 10 words) about the topic
- "postCount": the post count string from the input, copied verbatim. Never invent a different count.
- "imageHint": one or two words to search a stock photo with
Respond with a JSON object: {"topics": [ ... ]} with one entry per input line, in order.`

// Synthesizer turns a ranked shortlist into displayable trending cards by
// asking a generative provider for headlines.
type Synthesizer struct {
	provider brain.Provider
	limiter  *rate.Limiter
}

// NewSynthesizer wraps a provider. perMinute bounds how often the provider
// may be called; zero disables the limit.
func NewSynthesizer(p brain.Provider, perMinute int) *Synthesizer {
	var limiter *rate.Limiter
	if perMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
	}
	return &Synthesizer{provider: p, limiter: limiter}
}

// Synthesize submits the whole ranked batch in one request and parses the
// structured response. An empty batch returns an empty result without
// invoking the provider. Provider failures propagate to the caller; no
// fallback headline is synthesized.
func (s *Synthesizer) Synthesize(ctx context.Context, ranked []Ranked) ([]model.TrendingTopic, error) {
	if len(ranked) == 0 {
		return nil, nil
	}
	if s.provider == nil {
		return nil, fmt.Errorf("no generative provider configured")
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var lines []string
	for _, r := range ranked {
		lines = append(lines, fmt.Sprintf("%s (%s)", r.Title(), r.PostCount()))
	}

	resp, err := s.provider.Generate(ctx, brain.Request{
		SystemPrompt: synthesisSystemPrompt,
		UserPrompt:   strings.Join(lines, "\n"),
		MaxTokens:    1024,
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize headlines: %w", err)
	}

	topics, err := parseTopics(resp.Content)
	if err != nil {
		logging.Error("Unparseable synthesis response", "provider", s.provider.Name(), "content", resp.Content)
		return nil, fmt.Errorf("parse synthesis response: %w", err)
	}

	logging.Info("Trending headlines synthesized", "provider", s.provider.Name(), "topics", len(topics))
	return topics, nil
}

// parseTopics accepts either {"topics": [...]} or a bare JSON array, with or
// without markdown code fences.
func parseTopics(content string) ([]model.TrendingTopic, error) {
	content = strings.TrimSpace(content)
	if after, ok := strings.CutPrefix(content, "```json"); ok {
		content = after
	} else if after, ok := strings.CutPrefix(content, "```"); ok {
		content = after
	}
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	content = strings.TrimSpace(content)

	var wrapped struct {
		Topics []model.TrendingTopic `json:"topics"`
	}
	if err := json.Unmarshal([]byte(content), &wrapped); err == nil && wrapped.Topics != nil {
		return wrapped.Topics, nil
	}

	var bare []model.TrendingTopic
	if err := json.Unmarshal([]byte(content), &bare); err != nil {
		return nil, err
	}
	return bare, nil
}
