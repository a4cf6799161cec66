package suggestion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/spec-kit/repair-desk/pkg/util/errorutil"
)

// Provider selects how requests are shaped.
const (
	ProviderGeneric = "generic"
	ProviderOpenAI  = "openai"
)

// User-visible messages.
const (
	MsgNotConfigured = "Servizio AI non configurato"
	MsgUnavailable   = "Servizio AI non raggiungibile"
	MsgTimeout       = "Servizio AI non ha risposto in tempo"
	MsgBadStatus     = "Servizio AI ha restituito un errore"
	MsgEmpty         = "Servizio AI ha restituito una risposta non valida"
)

const defaultSystemPrompt = "Sei un tecnico esperto di riparazioni elettroniche. " +
	"Dato il contesto del ticket, suggerisci in italiano una diagnosi e i passi successivi, in modo conciso."

const defaultTimeout = 20 * time.Second

// maxResponseBytes bounds the body read from the provider.
const maxResponseBytes = 1 << 20

// Config is the gateway configuration surface. An empty Endpoint disables the gateway.
type Config struct {
	Endpoint     string
	Token        string
	Timeout      time.Duration
	Provider     string
	Model        string
	SystemPrompt string
}

// Request is the ticket context sent to the provider.
type Request struct {
	Target           string `json:"target"`
	Subject          string `json:"subject"`
	Product          string `json:"product"`
	IssueDescription string `json:"issue_description"`
	Description      string `json:"description"`
	RequestedBy      string `json:"requested_by"`
}

// Response is the normalized provider answer.
type Response struct {
	Suggestion string `json:"suggestion"`
}

// Gateway returns free-text advice for a ticket.
type Gateway interface {
	Suggest(ctx context.Context, req Request) (*Response, error)
}

// Client is the HTTP Gateway implementation.
type Client struct {
	cfg        Config
	shapes     []Shape
	httpClient *http.Client
	logger     *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the transport. The configured timeout still applies per call.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithShapes overrides the request shapes tried in order.
func WithShapes(shapes ...Shape) Option {
	return func(cl *Client) { cl.shapes = shapes }
}

// New builds a gateway client. Unknown providers fall back to the generic shape.
func New(cfg Config, logger *zap.Logger, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	if cfg.Provider == "" {
		cfg.Provider = ProviderGeneric
	}
	if strings.TrimSpace(cfg.SystemPrompt) == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
		logger:     logger,
	}
	switch cfg.Provider {
	case ProviderOpenAI:
		c.shapes = []Shape{ResponsesShape{}, ChatCompletionsShape{}}
	default:
		c.shapes = []Shape{GenericShape{}}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether calls will reach a provider.
func (c *Client) Configured() bool {
	if strings.TrimSpace(c.cfg.Endpoint) == "" {
		return false
	}
	if c.cfg.Provider == ProviderOpenAI && strings.TrimSpace(c.cfg.Token) == "" {
		return false
	}
	return true
}

// Suggest tries each request shape in order. A shape rejected by the provider
// falls through to the next one; any other failure ends the call.
func (c *Client) Suggest(ctx context.Context, req Request) (*Response, error) {
	if !c.Configured() {
		return nil, apperrors.NewNotConfigured(MsgNotConfigured)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var lastErr error
	for i, shape := range c.shapes {
		resp, err := c.call(ctx, shape, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		var rejected *rejectedError
		if !errors.As(err, &rejected) || i == len(c.shapes)-1 {
			break
		}
		c.logger.Info("suggestion shape rejected; trying fallback",
			zap.String("shape", shape.Name()),
			zap.Int("status", rejected.status))
	}
	return nil, c.toUpstream(ctx, lastErr)
}

func (c *Client) call(ctx context.Context, shape Shape, req Request) (*Response, error) {
	payload, err := shape.Encode(c.cfg, req)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint+shape.Path(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.cfg.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	res, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		if shape.Rejects(res.StatusCode) {
			return nil, &rejectedError{status: res.StatusCode}
		}
		return nil, &statusError{status: res.StatusCode, body: truncate(string(raw), 200)}
	}

	text, err := shape.Decode(raw)
	if err != nil {
		if errors.Is(err, errMissingSuggestion) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", errMissingSuggestion, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errMissingSuggestion
	}
	return &Response{Suggestion: text}, nil
}

func (c *Client) toUpstream(ctx context.Context, err error) error {
	var (
		rejected *rejectedError
		status   *statusError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		c.logger.Warn("suggestion request timed out", zap.Duration("timeout", c.cfg.Timeout))
		return apperrors.NewUpstreamError(MsgTimeout, err)
	case errors.As(err, &rejected), errors.As(err, &status):
		c.logger.Warn("suggestion provider returned error status", zap.Error(err))
		return apperrors.NewUpstreamError(MsgBadStatus, err)
	case errors.Is(err, errMissingSuggestion):
		c.logger.Warn("suggestion response without text")
		return apperrors.NewUpstreamError(MsgEmpty, err)
	default:
		c.logger.Warn("suggestion request failed", zap.Error(err))
		return apperrors.NewUpstreamError(MsgUnavailable, err)
	}
}

var errMissingSuggestion = errors.New("response has no suggestion")

type rejectedError struct {
	status int
}

func (e *rejectedError) Error() string {
	return fmt.Sprintf("request shape rejected with status %d", e.status)
}

type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.status, e.body)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
