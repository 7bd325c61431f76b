package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"

	"chat-widget/internal/credential"
	"chat-widget/internal/domain"
	"chat-widget/internal/transcript"
)

// Completer sends a full transcript to the completion service and returns
// the assistant's reply text.
type Completer interface {
	Complete(ctx context.Context, apiKey, model string, maxTokens int, messages []domain.Turn) (string, error)
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

type responseBodyer interface {
	ResponseBody() string
}

// Settings fixes the model, the response-length cap and the seed turns for
// every session a deployment creates.
type Settings struct {
	Model             string
	MaxTokens         int
	SystemInstruction string
	Greeting          string
}

func (s Settings) withDefaults() Settings {
	if strings.TrimSpace(s.Model) == "" {
		s.Model = DefaultModel
	}
	if s.MaxTokens <= 0 {
		s.MaxTokens = DefaultMaxTokens
	}
	if strings.TrimSpace(s.SystemInstruction) == "" {
		s.SystemInstruction = DefaultSystemInstruction()
	}
	if strings.TrimSpace(s.Greeting) == "" {
		s.Greeting = DefaultGreeting
	}
	return s
}

// NewTranscript creates a transcript seeded for a new session.
func (s Settings) NewTranscript() *transcript.Transcript {
	s = s.withDefaults()
	return transcript.New(s.SystemInstruction, s.Greeting)
}

// Outcome describes what one Submit call did.
type Outcome struct {
	// Accepted is false when the input was blank and nothing happened.
	Accepted bool
	// Appended holds every turn added by this cycle, in order.
	Appended []domain.Turn
	// Reply is the final assistant turn, either the model's reply or the
	// error description.
	Reply domain.Turn
	// Failure is set when Reply describes an error.
	Failure *Error
}

// Controller drives request/response cycles over a transcript it owns.
type Controller struct {
	transcript *transcript.Transcript
	llm        Completer
	creds      credential.Source
	settings   Settings
	view       Presenter
	logger     *slog.Logger

	busy        atomic.Bool
	displayName string
}

type Option func(*Controller)

func WithPresenter(p Presenter) Option {
	return func(c *Controller) {
		if p != nil {
			c.view = p
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithDisplayName restores a name captured in an earlier cycle.
func WithDisplayName(name string) Option {
	return func(c *Controller) {
		c.displayName = strings.TrimSpace(name)
	}
}

func NewController(t *transcript.Transcript, llm Completer, creds credential.Source, settings Settings, opts ...Option) (*Controller, error) {
	if t == nil {
		return nil, errors.New("usecase: transcript must not be nil")
	}
	if llm == nil {
		return nil, errors.New("usecase: completion client must not be nil")
	}
	if creds == nil {
		return nil, errors.New("usecase: credential source must not be nil")
	}
	c := &Controller{
		transcript: t,
		llm:        llm,
		creds:      creds,
		settings:   settings.withDefaults(),
		view:       nopPresenter{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Busy reports whether a cycle is in flight.
func (c *Controller) Busy() bool {
	return c.busy.Load()
}

// DisplayName returns the captured user name, or "" if none.
func (c *Controller) DisplayName() string {
	return c.displayName
}

// Transcript returns a snapshot of the owned transcript.
func (c *Controller) Transcript() []domain.Turn {
	return c.transcript.Snapshot()
}

// Submit runs one full cycle for rawText. Blank input is ignored. A call
// made while another cycle is in flight returns ErrBusy. Every other failure
// is recorded as an assistant turn and reported in Outcome.Failure; the
// returned error is reserved for ErrBusy.
func (c *Controller) Submit(ctx context.Context, rawText string) (Outcome, error) {
	text := strings.TrimSpace(rawText)
	if text == "" {
		return Outcome{}, nil
	}
	if !c.busy.CompareAndSwap(false, true) {
		return Outcome{}, ErrBusy
	}
	defer c.busy.Store(false)

	base := c.transcript.Len()

	if name, ok := extractName(rawText); ok {
		c.displayName = name
		c.append(domain.SystemTurn(nameInstruction(name)))
		c.view.ShowName(name)
	}

	c.append(domain.UserTurn(text))
	c.view.ShowQuestion(text)

	c.view.ShowBusy(true)
	c.view.SetInputEnabled(false)
	defer func() {
		c.view.ShowBusy(false)
		c.view.SetInputEnabled(true)
	}()

	reply, failure := c.complete(ctx)
	if failure != nil {
		c.logger.Warn("turn failed",
			"code", failure.Code,
			"reason", failure.Reason,
			"err", failure.Err,
			"turns", c.transcript.Len(),
		)
	} else {
		c.logger.Debug("turn completed", "turns", c.transcript.Len()+1)
	}
	c.append(reply)

	return Outcome{
		Accepted: true,
		Appended: c.transcript.Since(base),
		Reply:    reply,
		Failure:  failure,
	}, nil
}

func (c *Controller) complete(ctx context.Context) (domain.Turn, *Error) {
	apiKey, ok := c.creds.Credential(ctx)
	c.logger.Debug("completion requested", "credential_present", ok, "model", c.settings.Model)
	if !ok {
		e := newError(ErrorMissingCredential, "credential_absent", nil)
		return domain.AssistantTurn(failureMessage(e, 0, "")), e
	}

	raw, err := c.llm.Complete(ctx, apiKey, c.settings.Model, c.settings.MaxTokens, c.transcript.Snapshot())
	if err != nil {
		e, status, body := classify(err)
		return domain.AssistantTurn(failureMessage(e, status, body)), e
	}
	if strings.TrimSpace(raw) == "" {
		e := newError(ErrorMalformedResponse, "empty_content", nil)
		return domain.AssistantTurn(failureMessage(e, 0, "")), e
	}
	return domain.AssistantTurn(raw), nil
}

func classify(err error) (*Error, int, string) {
	var statusErr httpStatusCoder
	if errors.As(err, &statusErr) {
		body := ""
		var b responseBodyer
		if errors.As(err, &b) {
			body = b.ResponseBody()
		}
		return newError(ErrorNonSuccessStatus, "upstream_status", err), statusErr.HTTPStatusCode(), body
	}
	if errors.Is(err, domain.ErrMalformedResponse) {
		return newError(ErrorMalformedResponse, "missing_content", err), 0, ""
	}
	return newError(ErrorTransport, "request_failed", err), 0, ""
}

func (c *Controller) append(turn domain.Turn) {
	c.transcript.Append(turn)
	c.view.Render(turn)
}
