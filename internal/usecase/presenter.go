package usecase

import "chat-widget/internal/domain"

// Presenter is the rendering collaborator. It is told about every transcript
// mutation and about transient UI state; it must not block for long since it
// runs inside the turn cycle.
type Presenter interface {
	Render(turn domain.Turn)
	ShowBusy(busy bool)
	SetInputEnabled(enabled bool)
	ShowQuestion(text string)
	ShowName(name string)
}

type nopPresenter struct{}

func (nopPresenter) Render(domain.Turn) {}
func (nopPresenter) ShowBusy(bool) {}
func (nopPresenter) SetInputEnabled(bool) {}
func (nopPresenter) ShowQuestion(string) {}
func (nopPresenter) ShowName(string) {}
