package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"chat-widget/internal/credential"
	"chat-widget/internal/domain"
)

type mockStore struct {
	sessions map[string]domain.Session

	createErr error
	loadErr   error
	appendErr error

	appendedID    string
	appendedBase  int
	appendedTurns []domain.Turn
	appendedName  string
	appendCalls   int
}

func newMockStore() *mockStore {
	return &mockStore{sessions: map[string]domain.Session{}}
}

func (m *mockStore) CreateSession(_ context.Context, id string, turns []domain.Turn) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.sessions[id] = domain.Session{ID: id, Turns: turns}
	return nil
}

func (m *mockStore) LoadSession(_ context.Context, id string) (domain.Session, error) {
	if m.loadErr != nil {
		return domain.Session{}, m.loadErr
	}
	s, ok := m.sessions[id]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return s, nil
}

func (m *mockStore) AppendTurns(_ context.Context, id string, base int, turns []domain.Turn, name string) error {
	m.appendCalls++
	m.appendedID = id
	m.appendedBase = base
	m.appendedTurns = turns
	m.appendedName = name
	return m.appendErr
}

func seededSession(id string, extra ...domain.Turn) domain.Session {
	turns := append([]domain.Turn{domain.SystemTurn("sys"), domain.AssistantTurn("hello")}, extra...)
	return domain.Session{ID: id, Turns: turns}
}

func newTestSessionService(t *testing.T, store SessionStore, llm Completer, creds credential.Source) *SessionService {
	t.Helper()
	svc, err := NewSessionService(store, llm, creds, testSettings, nil)
	require.NoError(t, err)
	return svc
}

func expectCode(t *testing.T, err error, code ErrorCode, reason string) {
	t.Helper()
	var usecaseErr *Error
	require.ErrorAs(t, err, &usecaseErr)
	require.Equal(t, code, usecaseErr.Code)
	require.Equal(t, reason, usecaseErr.Reason)
}

func TestNewSessionService_ValidatesDependencies(t *testing.T) {
	_, err := NewSessionService(nil, reply("x"), credential.Static("k"), testSettings, nil)
	require.Error(t, err)
	_, err = NewSessionService(newMockStore(), nil, credential.Static("k"), testSettings, nil)
	require.Error(t, err)
	_, err = NewSessionService(newMockStore(), reply("x"), nil, testSettings, nil)
	require.Error(t, err)
}

func TestStart_PersistsSeedTurns(t *testing.T) {
	orig := newUUID
	newUUID = func() string { return "sess-1" }
	t.Cleanup(func() { newUUID = orig })

	store := newMockStore()
	svc := newTestSessionService(t, store, reply("x"), credential.Static("k"))

	out, err := svc.Start(context.Background())
	require.NoError(t, err)
	require.Equal(t, "sess-1", out.SessionID)
	require.Equal(t, []domain.Turn{domain.AssistantTurn("hello")}, out.Turns)
	require.Equal(t, seededSession("sess-1").Turns, store.sessions["sess-1"].Turns)
}

func TestStart_StoreError(t *testing.T) {
	store := newMockStore()
	store.createErr = errors.New("dynamodb down")
	svc := newTestSessionService(t, store, reply("x"), credential.Static("k"))

	_, err := svc.Start(context.Background())
	expectCode(t, err, ErrorInternal, "dynamodb_create_error")
}

func TestSessionSubmit_HappyPath(t *testing.T) {
	store := newMockStore()
	store.sessions["s1"] = seededSession("s1", domain.UserTurn("earlier"), domain.AssistantTurn("earlier answer"))
	llm := reply("Hi Alex!")
	svc := newTestSessionService(t, store, llm, credential.Static("sk-test"))

	out, err := svc.Submit(context.Background(), SubmitInput{SessionID: "s1", Text: "My name is Alex"})
	require.NoError(t, err)
	require.Equal(t, "s1", out.SessionID)
	require.Equal(t, "Alex", out.DisplayName)
	require.Empty(t, out.Failure)
	require.Equal(t, []domain.Turn{domain.UserTurn("My name is Alex"), domain.AssistantTurn("Hi Alex!")}, out.Turns)

	require.Equal(t, 1, store.appendCalls)
	require.Equal(t, "s1", store.appendedID)
	require.Equal(t, 4, store.appendedBase)
	require.Equal(t, "Alex", store.appendedName)
	require.Equal(t, []domain.Turn{
		domain.SystemTurn("User's name is Alex."),
		domain.UserTurn("My name is Alex"),
		domain.AssistantTurn("Hi Alex!"),
	}, store.appendedTurns)

	// The whole stored history is replayed to the model.
	require.Len(t, llm.captured[0], 6)
	require.Equal(t, "earlier answer", llm.captured[0][3].Content)
}

func TestSessionSubmit_KeepsStoredDisplayName(t *testing.T) {
	store := newMockStore()
	sess := seededSession("s1")
	sess.DisplayName = "Kim"
	store.sessions["s1"] = sess
	svc := newTestSessionService(t, store, reply("ok"), credential.Static("sk-test"))

	out, err := svc.Submit(context.Background(), SubmitInput{SessionID: "s1", Text: "what about gel?"})
	require.NoError(t, err)
	require.Equal(t, "Kim", out.DisplayName)
	require.Equal(t, "Kim", store.appendedName)
}

func TestSessionSubmit_FailureTurnIsPersisted(t *testing.T) {
	store := newMockStore()
	store.sessions["s1"] = seededSession("s1")
	svc := newTestSessionService(t, store, reply("unused"), credential.Static(""))

	out, err := svc.Submit(context.Background(), SubmitInput{SessionID: "s1", Text: "Hi"})
	require.NoError(t, err)
	require.Equal(t, ErrorMissingCredential, out.Failure)
	require.Len(t, out.Turns, 2)
	require.Equal(t, domain.RoleAssistant, out.Turns[1].Role)
	require.Len(t, store.appendedTurns, 2)
}

func TestSessionSubmit_BlankInput(t *testing.T) {
	store := newMockStore()
	store.sessions["s1"] = seededSession("s1")
	svc := newTestSessionService(t, store, reply("unused"), credential.Static("sk-test"))

	out, err := svc.Submit(context.Background(), SubmitInput{SessionID: "s1", Text: "   "})
	require.NoError(t, err)
	require.Empty(t, out.Turns)
	require.Zero(t, store.appendCalls)
}

func TestSessionSubmit_Errors(t *testing.T) {
	svc := newTestSessionService(t, newMockStore(), reply("x"), credential.Static("sk-test"))
	_, err := svc.Submit(context.Background(), SubmitInput{SessionID: " ", Text: "hi"})
	expectCode(t, err, ErrorInvalidInput, "missing_session_id")

	_, err = svc.Submit(context.Background(), SubmitInput{SessionID: "nope", Text: "hi"})
	expectCode(t, err, ErrorSessionNotFound, "unknown_session")

	store := newMockStore()
	store.loadErr = errors.New("throttled")
	svc = newTestSessionService(t, store, reply("x"), credential.Static("sk-test"))
	_, err = svc.Submit(context.Background(), SubmitInput{SessionID: "s1", Text: "hi"})
	expectCode(t, err, ErrorInternal, "dynamodb_load_error")

	store = newMockStore()
	store.sessions["s1"] = domain.Session{ID: "s1", Turns: []domain.Turn{domain.UserTurn("no system")}}
	svc = newTestSessionService(t, store, reply("x"), credential.Static("sk-test"))
	_, err = svc.Submit(context.Background(), SubmitInput{SessionID: "s1", Text: "hi"})
	expectCode(t, err, ErrorInternal, "corrupt_session")

	store = newMockStore()
	store.sessions["s1"] = seededSession("s1")
	store.appendErr = errors.New("wrapped: " + domain.ErrTurnConflict.Error())
	svc = newTestSessionService(t, store, reply("x"), credential.Static("sk-test"))
	_, err = svc.Submit(context.Background(), SubmitInput{SessionID: "s1", Text: "hi"})
	expectCode(t, err, ErrorInternal, "dynamodb_write_error")
}

func TestSessionSubmit_ConcurrentTurnIsBusy(t *testing.T) {
	store := newMockStore()
	store.sessions["s1"] = seededSession("s1")
	store.appendErr = domain.ErrTurnConflict
	svc := newTestSessionService(t, store, reply("x"), credential.Static("sk-test"))

	_, err := svc.Submit(context.Background(), SubmitInput{SessionID: "s1", Text: "hi"})
	expectCode(t, err, ErrorBusy, "concurrent_turn")
	require.ErrorIs(t, err, ErrBusy)
}
