package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"chat-widget/internal/credential"
	"chat-widget/internal/domain"
	"chat-widget/internal/transcript"
)

// SessionStore keeps page-session transcripts between stateless requests.
type SessionStore interface {
	CreateSession(ctx context.Context, sessionID string, turns []domain.Turn) error
	LoadSession(ctx context.Context, sessionID string) (domain.Session, error)
	AppendTurns(ctx context.Context, sessionID string, base int, turns []domain.Turn, displayName string) error
}

// SessionService runs controller cycles for clients that cannot hold a
// session in process memory.
type SessionService struct {
	store    SessionStore
	llm      Completer
	creds    credential.Source
	settings Settings
	logger   *slog.Logger
}

type StartOutput struct {
	SessionID string
	Turns     []domain.Turn
}

type SubmitInput struct {
	SessionID string
	Text      string
}

type SubmitOutput struct {
	SessionID   string
	DisplayName string
	Turns       []domain.Turn
	Failure     ErrorCode
}

func NewSessionService(store SessionStore, llm Completer, creds credential.Source, settings Settings, logger *slog.Logger) (*SessionService, error) {
	if store == nil {
		return nil, errors.New("usecase: session store must not be nil")
	}
	if llm == nil {
		return nil, errors.New("usecase: completion client must not be nil")
	}
	if creds == nil {
		return nil, errors.New("usecase: credential source must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionService{
		store:    store,
		llm:      llm,
		creds:    creds,
		settings: settings.withDefaults(),
		logger:   logger,
	}, nil
}

// Start creates a seeded session and returns the turns a page should show.
func (s *SessionService) Start(ctx context.Context) (StartOutput, error) {
	id := newUUID()
	turns := s.settings.NewTranscript().Snapshot()
	if err := s.store.CreateSession(ctx, id, turns); err != nil {
		return StartOutput{}, newError(ErrorInternal, "dynamodb_create_error", err)
	}
	return StartOutput{SessionID: id, Turns: visible(turns)}, nil
}

// Submit runs one cycle for an existing session and persists the turns it
// appended.
func (s *SessionService) Submit(ctx context.Context, in SubmitInput) (SubmitOutput, error) {
	id := strings.TrimSpace(in.SessionID)
	if id == "" {
		return SubmitOutput{}, newError(ErrorInvalidInput, "missing_session_id", nil)
	}

	sess, err := s.store.LoadSession(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return SubmitOutput{}, newError(ErrorSessionNotFound, "unknown_session", err)
		}
		return SubmitOutput{}, newError(ErrorInternal, "dynamodb_load_error", err)
	}

	t, err := transcript.Restore(sess.Turns)
	if err != nil {
		return SubmitOutput{}, newError(ErrorInternal, "corrupt_session", err)
	}
	base := t.Len()

	ctrl, err := NewController(t, s.llm, s.creds, s.settings,
		WithLogger(s.logger.With("session_id", id)),
		WithDisplayName(sess.DisplayName),
	)
	if err != nil {
		return SubmitOutput{}, newError(ErrorInternal, "controller_init_error", err)
	}

	out, err := ctrl.Submit(ctx, in.Text)
	if err != nil {
		return SubmitOutput{}, err
	}
	res := SubmitOutput{SessionID: id, DisplayName: ctrl.DisplayName()}
	if !out.Accepted {
		return res, nil
	}

	if err := s.store.AppendTurns(ctx, id, base, out.Appended, ctrl.DisplayName()); err != nil {
		if errors.Is(err, domain.ErrTurnConflict) {
			return SubmitOutput{}, newError(ErrorBusy, "concurrent_turn", err)
		}
		return SubmitOutput{}, newError(ErrorInternal, "dynamodb_write_error", err)
	}

	res.Turns = visible(out.Appended)
	if out.Failure != nil {
		res.Failure = out.Failure.Code
	}
	return res, nil
}

// visible drops system turns, which are instructions for the model only.
func visible(turns []domain.Turn) []domain.Turn {
	out := make([]domain.Turn, 0, len(turns))
	for _, t := range turns {
		if t.Role != domain.RoleSystem {
			out = append(out, t)
		}
	}
	return out
}

var newUUID = func() string {
	return uuid.NewString()
}
