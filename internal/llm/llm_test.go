package llm

import (
	"context"
	"errors"
	"sync"
	"testing"

	"txtinspect/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeProvider replays canned answers and records prompts
type fakeProvider struct {
	mu      sync.Mutex
	name    string
	answers []string
	err     error
	calls   int
	prompts []string
	closed  bool
}

func (f *fakeProvider) Complete(_ context.Context, _, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	if len(f.answers) == 0 {
		return "", errors.New("no answer")
	}
	answer := f.answers[0]
	if len(f.answers) > 1 {
		f.answers = f.answers[1:]
	}
	return answer, nil
}

func (f *fakeProvider) Close() error {
	f.closed = true
	return nil
}

func (f *fakeProvider) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{"provider": f.name, "model": f.name + "-model"}
}

func TestSuggestLabels(t *testing.T) {
	p := &fakeProvider{name: "fake", answers: []string{"```json\n{\"sentiment\":\"POS\",\"topic\":\"tech\",\"justification\":\"upbeat\",\"confidence\":0.8}\n```"}}
	l := NewLabeler(p, zaptest.NewLogger(t))

	got, err := l.SuggestLabels(context.Background(), "great gadget", models.LabelOptions{
		Sentiments: []string{"neg", "pos"},
		Topics:     []string{"sports", "tech"},
	})
	require.NoError(t, err)

	assert.Equal(t, "pos", got.Sentiment)
	assert.Equal(t, "tech", got.Topic)
	assert.Equal(t, "upbeat", got.Justification)
	assert.Equal(t, "fake", got.Provider)
	assert.Equal(t, "fake-model", got.ModelVersion)

	require.Len(t, p.prompts, 1)
	assert.Contains(t, p.prompts[0], `"neg", "pos"`)
	assert.Contains(t, p.prompts[0], "great gadget")
}

func TestSuggestLabelsRejectsUnknownLabel(t *testing.T) {
	p := &fakeProvider{answers: []string{`{"sentiment":"angry","topic":"tech"}`}}
	l := NewLabeler(p, zaptest.NewLogger(t))

	_, err := l.SuggestLabels(context.Background(), "x", models.LabelOptions{Sentiments: []string{"pos"}, Topics: []string{"tech"}})
	assert.ErrorContains(t, err, "angry")

	// Without a vocabulary any label is accepted
	got, err := l.SuggestLabels(context.Background(), "x", models.LabelOptions{})
	require.NoError(t, err)
	assert.Equal(t, "angry", got.Sentiment)
}

func TestSuggestLabelsBadJSON(t *testing.T) {
	l := NewLabeler(&fakeProvider{answers: []string{"not json"}}, zaptest.NewLogger(t))
	_, err := l.SuggestLabels(context.Background(), "x", models.LabelOptions{})
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	p := &fakeProvider{name: "fake", answers: []string{`{"summary":" First sentence. "}`}}
	l := NewLabeler(p, zaptest.NewLogger(t))

	got, err := l.Summarize(context.Background(), "  First sentence.\nSecond sentence.\n", 0)
	require.NoError(t, err)
	assert.Equal(t, "First sentence.", got.Summary)
	assert.Equal(t, DefaultSummaryRatio, got.Ratio)
	assert.Contains(t, p.prompts[0], "First sentence. Second sentence.")
	assert.Contains(t, p.prompts[0], "50%")

	_, err = l.Summarize(context.Background(), " \n ", 0.3)
	assert.Error(t, err)
}

func TestMultiProviderFailover(t *testing.T) {
	logger := zaptest.NewLogger(t)
	bad := &fakeProvider{name: "bad", err: errors.New("status 429: rate limit")}
	good := &fakeProvider{name: "good", answers: []string{"ok"}}

	c := newMultiProviderClient([]*RateLimitedProvider{
		NewRateLimitedProvider(bad, 600, logger),
		NewRateLimitedProvider(good, 600, logger),
	}, 3, logger)

	got, err := c.Complete(context.Background(), "sys", "prompt")
	require.NoError(t, err)
	assert.Equal(t, "ok", got)

	// The rate-limited provider was abandoned, so the next call goes straight to good
	_, err = c.Complete(context.Background(), "sys", "prompt")
	require.NoError(t, err)
	assert.Equal(t, 1, bad.calls)
	assert.Equal(t, 2, good.calls)
	assert.Equal(t, "good", c.GetModelInfo()["provider"])
}

func TestMultiProviderAllFail(t *testing.T) {
	logger := zaptest.NewLogger(t)
	c := newMultiProviderClient([]*RateLimitedProvider{
		NewRateLimitedProvider(&fakeProvider{err: errors.New("boom")}, 600, logger),
		NewRateLimitedProvider(&fakeProvider{err: errors.New("bang")}, 600, logger),
	}, 3, logger)

	_, err := c.Complete(context.Background(), "sys", "prompt")
	assert.ErrorIs(t, err, ErrAllProvidersFailed)
}

func TestMultiProviderSwitchesAfterMaxFailures(t *testing.T) {
	logger := zaptest.NewLogger(t)
	flaky := &fakeProvider{name: "flaky", err: errors.New("boom")}
	backup := &fakeProvider{name: "backup", answers: []string{"ok"}}
	c := newMultiProviderClient([]*RateLimitedProvider{
		NewRateLimitedProvider(flaky, 600, logger),
		NewRateLimitedProvider(backup, 600, logger),
	}, 2, logger)

	// First failure stays on flaky, falls through to backup within the same call
	_, err := c.Complete(context.Background(), "sys", "p")
	require.NoError(t, err)
	assert.Equal(t, "flaky", c.GetModelInfo()["provider"])

	// Second failure reaches the budget and switches
	_, err = c.Complete(context.Background(), "sys", "p")
	require.NoError(t, err)
	assert.Equal(t, "backup", c.GetModelInfo()["provider"])
}

func TestRateLimitedProviderHonoursContext(t *testing.T) {
	p := NewRateLimitedProvider(&fakeProvider{answers: []string{"ok"}}, 1, zaptest.NewLogger(t))

	_, err := p.Complete(context.Background(), "s", "p")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Complete(ctx, "s", "p")
	assert.Error(t, err)
}

func TestLabelerProvidersInfo(t *testing.T) {
	logger := zaptest.NewLogger(t)
	flaky := &fakeProvider{name: "flaky", err: errors.New("boom")}
	backup := &fakeProvider{name: "backup", answers: []string{"ok"}}
	c := newMultiProviderClient([]*RateLimitedProvider{
		NewRateLimitedProvider(flaky, 600, logger),
		NewRateLimitedProvider(backup, 600, logger),
	}, 2, logger)
	l := NewLabeler(c, logger)

	_, err := c.Complete(context.Background(), "sys", "p")
	require.NoError(t, err)

	info := l.ProvidersInfo()
	require.Len(t, info, 2)
	assert.Equal(t, "flaky", info[0]["provider"])
	assert.Equal(t, true, info[0]["is_current"])
	assert.Equal(t, 1, info[0]["failure_count"])
	assert.Equal(t, false, info[1]["is_current"])

	// The second failure spends the budget and moves on to backup
	_, err = c.Complete(context.Background(), "sys", "p")
	require.NoError(t, err)

	info = l.ProvidersInfo()
	require.Len(t, info, 2)
	assert.Equal(t, false, info[0]["is_current"])
	assert.Equal(t, "backup", info[1]["provider"])
	assert.Equal(t, true, info[1]["is_current"])
	assert.Equal(t, 0, info[1]["failure_count"])

	assert.Nil(t, NewLabeler(backup, logger).ProvidersInfo())
}

func TestCloseClosesAll(t *testing.T) {
	logger := zaptest.NewLogger(t)
	a, b := &fakeProvider{}, &fakeProvider{}
	c := newMultiProviderClient([]*RateLimitedProvider{
		NewRateLimitedProvider(a, 1, logger),
		NewRateLimitedProvider(b, 1, logger),
	}, 0, logger)

	require.NoError(t, c.Close())
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}

func TestNewProviderUnknownType(t *testing.T) {
	_, err := NewProvider(ProviderConfig{Type: "mystery"}, zaptest.NewLogger(t))
	assert.Error(t, err)

	_, err = NewMultiProviderClient(MultiProviderConfig{}, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestCleanJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, CleanJSON("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, CleanJSON(" {\"a\":1} "))
}
