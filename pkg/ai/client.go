package ai

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Turn roles after sender normalization.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one prior message of the conversation, already mapped to an
// upstream-neutral role.
type Turn struct {
	Role string
	Text string
}

const defaultTimeout = 60 * time.Second

// Client performs one synchronous upstream call per Generate. There is no
// retry and no circuit breaking; failures surface to the caller.
type Client struct {
	httpClient *http.Client
}

// NewClient builds a client with the given timeout (default 60s).
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Generate sends the conversation to the model's upstream endpoint and
// returns the normalized assistant reply.
func (c *Client) Generate(ctx context.Context, model ModelConfig, history []Turn, userText string) (string, error) {
	switch model.Kind {
	case KindGoogle:
		return c.generateGoogle(ctx, model, userText)
	case KindOpenAI:
		return c.generateOpenAI(ctx, model, history, userText)
	default:
		return "", fmt.Errorf("unsupported provider kind %q", model.Kind)
	}
}
