// Package tips generates short portfolio advice via the text-generation
// collaborator. Failures are never surfaced: every error path returns a
// static fallback so cohort benchmarking keeps working without it.
package tips

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/covergrid/portfolio-cli/internal/config"
	"github.com/covergrid/portfolio-cli/pkg/anthropic"
)

// Fallback is returned whenever tip generation fails or times out.
const Fallback = "Review your policies regularly and compare premiums and coverage against market averages for your age group."

// Generator produces advice text for a benchmarking result.
type Generator interface {
	Generate(ctx context.Context, prompt string) string
}

// Anthropic generates tips through the Claude API with a per-call timeout
// and a shared rate limiter guarding the upstream quota.
type Anthropic struct {
	client  anthropic.Client
	model   string
	timeout time.Duration
	limiter *rate.Limiter
}

// NewAnthropic creates a Generator from config. Returns nil (disabled) when
// no API key is configured; callers treat a nil Generator as "fallback only".
func NewAnthropic(cfg config.TipsConfig) *Anthropic {
	if cfg.APIKey == "" {
		return nil
	}
	return newAnthropic(anthropic.NewClient(cfg.APIKey), cfg)
}

func newAnthropic(client anthropic.Client, cfg config.TipsConfig) *Anthropic {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	perSec := cfg.RatePerSec
	if perSec <= 0 {
		perSec = 2
	}
	return &Anthropic{
		client:  client,
		model:   cfg.Model,
		timeout: timeout,
		limiter: rate.NewLimiter(rate.Limit(perSec), 1),
	}
}

// Generate returns advice text for the prompt, or Fallback on any failure.
func (a *Anthropic) Generate(ctx context.Context, prompt string) string {
	if a == nil {
		return Fallback
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if err := a.limiter.Wait(ctx); err != nil {
		zap.L().Warn("tips: rate limiter wait failed", zap.Error(err))
		return Fallback
	}

	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: 512,
		System:    "You are an insurance portfolio advisor. Give three short, concrete tips. Plain text, no markdown.",
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		zap.L().Warn("tips: generation failed, using fallback", zap.Error(err))
		return Fallback
	}

	text := resp.Text()
	if text == "" {
		return Fallback
	}
	return text
}

// BuildPrompt renders the benchmarking numbers into the generation prompt.
func BuildPrompt(age, score, percentile int, mean float64) string {
	return fmt.Sprintf(
		"A %d-year-old insurance customer has a portfolio score of %d out of 100, placing them in the %dth percentile of their age cohort (cohort mean %.0f). Suggest how they could improve their coverage and premium efficiency.",
		age, score, percentile, mean)
}
