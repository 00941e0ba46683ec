package resilience

import (
	"context"

	"github.com/MrWong99/scribe/pkg/provider/llm"
	"github.com/MrWong99/scribe/pkg/provider/stt"
)

// STT is an [stt.Provider] that opens streams on the first healthy member.
// Failover only covers opening the stream; a session that breaks mid-run
// ends that run.
type STT struct {
	*Group[stt.Provider]
}

var _ stt.Provider = (*STT)(nil)

// NewSTT returns an STT failover group with primary as its first member.
func NewSTT(primaryName string, primary stt.Provider, opts ...GroupOption) *STT {
	return &STT{NewGroup("stt", primaryName, primary, opts...)}
}

// StartStream implements stt.Provider.
func (s *STT) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	return Call(ctx, s.Group, func(p stt.Provider) (stt.SessionHandle, error) {
		return p.StartStream(ctx, cfg)
	})
}

// LLM is an [llm.Provider] that completes on the first healthy member.
type LLM struct {
	*Group[llm.Provider]
}

var _ llm.Provider = (*LLM)(nil)

// NewLLM returns an LLM failover group with primary as its first member.
func NewLLM(primaryName string, primary llm.Provider, opts ...GroupOption) *LLM {
	return &LLM{NewGroup("llm", primaryName, primary, opts...)}
}

// Complete implements llm.Provider.
func (l *LLM) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return Call(ctx, l.Group, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// Model returns the primary's model.
func (l *LLM) Model() string { return l.Primary().Model() }
