package testsupport

import (
	"context"
	"fmt"
	"sync"

	"exampipe/internal/services/llm"
)

// Reply is one scripted model response. Tokens are reported alongside Err
// to mimic a billed call that still failed.
type Reply struct {
	Content      string
	InputTokens  int
	OutputTokens int
	Err          error
}

// FakeGenerator answers Generate calls from a script and records requests.
// Respond, when set, takes precedence over Replies.
type FakeGenerator struct {
	Replies []Reply
	Respond func(call int, req llm.Request) Reply

	mu       sync.Mutex
	requests []llm.Request
}

// Generate returns the next scripted reply.
func (f *FakeGenerator) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	f.mu.Lock()
	call := len(f.requests)
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return llm.Response{}, err
	}

	var reply Reply
	switch {
	case f.Respond != nil:
		reply = f.Respond(call, req)
	case call < len(f.Replies):
		reply = f.Replies[call]
	default:
		return llm.Response{}, fmt.Errorf("fake generator: unexpected call %d", call+1)
	}
	resp := llm.Response{
		InputTokens:  reply.InputTokens,
		OutputTokens: reply.OutputTokens,
	}
	if reply.Err != nil {
		return resp, reply.Err
	}
	resp.Content = reply.Content
	return resp, nil
}

// Requests returns a copy of every request received so far.
func (f *FakeGenerator) Requests() []llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llm.Request(nil), f.requests...)
}

// Calls reports how many requests were received.
func (f *FakeGenerator) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}
