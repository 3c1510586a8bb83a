package services

import (
	"context"
	"sync"

	"github.com/yungbote/autopilot-backend/internal/platform/coderabbit"
	"github.com/yungbote/autopilot-backend/internal/platform/openai"
)

type fakeChat struct {
	mu    sync.Mutex
	model string
	reqs  []openai.ChatRequest
	outs  []string
	errs  []error
}

func (f *fakeChat) Model() string { return f.model }

func (f *fakeChat) Complete(_ context.Context, req openai.ChatRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := len(f.reqs)
	f.reqs = append(f.reqs, req)
	var out string
	var err error
	if i < len(f.outs) {
		out = f.outs[i]
	}
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return out, err
}

type fakeProvider struct {
	name       string
	configured bool
	out        []byte
	err        error
	calls      int
}

func (f *fakeProvider) Name() string     { return f.name }
func (f *fakeProvider) Configured() bool { return f.configured }
func (f *fakeProvider) Generate(context.Context, string) ([]byte, error) {
	f.calls++
	return f.out, f.err
}

type fakeInsights struct {
	out coderabbit.Insights
	err error
}

func (f *fakeInsights) Fetch(context.Context, string) (coderabbit.Insights, error) {
	return f.out, f.err
}
