package widget

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chat-widget/internal/domain"
)

const writeWait = 10 * time.Second

// Frame types exchanged with the page.
const (
	frameSubmit   = "submit"
	frameTurn     = "turn"
	frameBusy     = "busy"
	frameInput    = "input"
	frameQuestion = "question"
	frameName     = "name"
	frameError    = "error"
)

type inboundFrame struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type outboundFrame struct {
	Type    string      `json:"type"`
	Role    domain.Role `json:"role,omitempty"`
	Content string      `json:"content,omitempty"`
	Busy    *bool       `json:"busy,omitempty"`
	Enabled *bool       `json:"enabled,omitempty"`
	Text    string      `json:"text,omitempty"`
	Name    string      `json:"name,omitempty"`
	Message string      `json:"message,omitempty"`
}

// wsPresenter renders controller signals as JSON frames on one connection.
// Writes are serialized with mu because the keepalive pinger shares conn.
type wsPresenter struct {
	conn   *websocket.Conn
	mu     *sync.Mutex
	logger *slog.Logger
}

func (p *wsPresenter) Render(turn domain.Turn) {
	// System turns steer the model and are never shown.
	if turn.Role == domain.RoleSystem {
		return
	}
	p.send(outboundFrame{Type: frameTurn, Role: turn.Role, Content: turn.Content})
}

func (p *wsPresenter) ShowBusy(busy bool) {
	p.send(outboundFrame{Type: frameBusy, Busy: &busy})
}

func (p *wsPresenter) SetInputEnabled(enabled bool) {
	p.send(outboundFrame{Type: frameInput, Enabled: &enabled})
}

func (p *wsPresenter) ShowQuestion(text string) {
	p.send(outboundFrame{Type: frameQuestion, Text: text})
}

func (p *wsPresenter) ShowName(name string) {
	p.send(outboundFrame{Type: frameName, Name: name})
}

func (p *wsPresenter) showError(msg string) {
	p.send(outboundFrame{Type: frameError, Message: msg})
}

// send drops the frame on write failure; the read loop notices the broken
// connection and tears the session down.
func (p *wsPresenter) send(f outboundFrame) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := writeJSON(p.conn, f); err != nil {
		p.logger.Debug("frame write failed", "type", f.Type, "err", err)
	}
}

// writeJSON encodes without HTML escaping so replies keep <, > and & as is.
func writeJSON(conn *websocket.Conn, v any) error {
	w, err := conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
