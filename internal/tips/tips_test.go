package tips

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/covergrid/portfolio-cli/internal/config"
	"github.com/covergrid/portfolio-cli/pkg/anthropic"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// fakeClient returns canned responses or errors for Generate tests.
type fakeClient struct {
	resp  *anthropic.MessageResponse
	err   error
	delay time.Duration
}

func (f *fakeClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func testCfg() config.TipsConfig {
	return config.TipsConfig{Model: "claude-haiku-4-5-20251001", TimeoutSecs: 1, RatePerSec: 100}
}

func TestGenerateSuccess(t *testing.T) {
	client := &fakeClient{resp: &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: "Bundle home and auto."}},
	}}
	g := newAnthropic(client, testCfg())

	got := g.Generate(context.Background(), "prompt")
	assert.Equal(t, "Bundle home and auto.", got)
}

func TestGenerateErrorFallsBack(t *testing.T) {
	client := &fakeClient{err: context.DeadlineExceeded}
	g := newAnthropic(client, testCfg())

	got := g.Generate(context.Background(), "prompt")
	assert.Equal(t, Fallback, got)
}

func TestGenerateTimeoutFallsBack(t *testing.T) {
	client := &fakeClient{
		resp:  &anthropic.MessageResponse{Content: []anthropic.ContentBlock{{Type: "text", Text: "late"}}},
		delay: 5 * time.Second,
	}
	g := newAnthropic(client, testCfg())

	start := time.Now()
	got := g.Generate(context.Background(), "prompt")
	assert.Equal(t, Fallback, got)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestGenerateEmptyResponseFallsBack(t *testing.T) {
	client := &fakeClient{resp: &anthropic.MessageResponse{}}
	g := newAnthropic(client, testCfg())

	got := g.Generate(context.Background(), "prompt")
	assert.Equal(t, Fallback, got)
}

func TestNilGeneratorFallsBack(t *testing.T) {
	var g *Anthropic
	assert.Equal(t, Fallback, g.Generate(context.Background(), "prompt"))
}

func TestNewAnthropicWithoutKeyDisabled(t *testing.T) {
	g := NewAnthropic(config.TipsConfig{})
	assert.Nil(t, g)
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt(34, 76, 82, 61)
	assert.Contains(t, prompt, "34-year-old")
	assert.Contains(t, prompt, "score of 76")
	assert.Contains(t, prompt, "82th percentile")
	assert.Contains(t, prompt, "mean 61")
}
