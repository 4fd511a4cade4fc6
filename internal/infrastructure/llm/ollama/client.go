// Package ollama adapts an Ollama-compatible generation endpoint to the
// core's CompletionService port: one prompt in, raw text out.
package ollama

import (
	"context"
	"strings"
	"time"

	"github.com/teamply/intent-resolver/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	model      string
	httpClient httpDoer
	executor   *resilience.Executor
}

func New(baseURL, model string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: newHTTPClient(120 * time.Second),
		executor:   executor,
	}
}

// Complete sends the prompt and returns the raw completion text. The
// caller owns the timeout; failures come back classified so retry and
// breaker behavior stay coherent.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	request := map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"stream": false,
	}
	var response struct {
		Response string `json:"response"`
	}

	call := func(callCtx context.Context) error {
		return c.postJSON(callCtx, "/api/generate", request, &response, "generate")
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "ollama.generate", call, classifyCompletionError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", wrapTemporaryIfNeeded("ollama generate", err)
	}
	return strings.TrimSpace(response.Response), nil
}
