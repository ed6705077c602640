// Package ws is the websocket play gateway. It implements the messaging
// Sender and Deleter collaborators on top of per-chat connections: the
// server assigns message ids on delivery and retracts by telling the
// client to drop an id.
package ws

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"puzzle-quiz-service/internal/domain"
)

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type questionPayload struct {
	Level      string               `json:"level"`
	Items      []domain.ContentItem `json:"items"`
	MessageIDs []int64              `json:"messageIds"`
}

type retractPayload struct {
	MessageID int64 `json:"messageId"`
}

// client serializes writes to one websocket connection.
type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *client) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// Hub tracks connected chats and routes deliveries to them.
type Hub struct {
	mu        sync.RWMutex
	clients   map[domain.ChatID]*client
	nextMsgID int64
}

func NewHub() *Hub {
	return &Hub{clients: make(map[domain.ChatID]*client)}
}

func (h *Hub) register(chat domain.ChatID, conn *websocket.Conn) *client {
	c := &client{conn: conn}
	h.mu.Lock()
	h.clients[chat] = c
	h.mu.Unlock()
	return c
}

func (h *Hub) unregister(chat domain.ChatID, c *client) {
	h.mu.Lock()
	if h.clients[chat] == c {
		delete(h.clients, chat)
	}
	h.mu.Unlock()
}

func (h *Hub) lookup(chat domain.ChatID) (*client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[chat]
	return c, ok
}

// Send delivers a question to a chat, one message id per content item. A
// chat without a live connection is unreachable.
func (h *Hub) Send(_ context.Context, chat domain.ChatID, q domain.Question, levelPath string) ([]domain.MessageRef, error) {
	c, ok := h.lookup(chat)
	if !ok {
		return nil, domain.ErrRecipientGone
	}
	refs := make([]domain.MessageRef, len(q.Items))
	ids := make([]int64, len(q.Items))
	h.mu.Lock()
	for i := range q.Items {
		h.nextMsgID++
		ids[i] = h.nextMsgID
		refs[i] = domain.MessageRef{Chat: chat, MessageID: h.nextMsgID}
	}
	h.mu.Unlock()
	err := c.writeJSON(outboundMessage[questionPayload]{
		Type:    "question",
		Payload: questionPayload{Level: levelPath, Items: q.Items, MessageIDs: ids},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRecipientGone, err)
	}
	return refs, nil
}

// sendText delivers a single text message and returns its handle.
func (h *Hub) sendText(chat domain.ChatID, text string) (domain.MessageRef, error) {
	refs, err := h.Send(context.Background(), chat, domain.Question{
		Items: []domain.ContentItem{{Kind: domain.KindText, Body: text}},
	}, "")
	if err != nil {
		return domain.MessageRef{}, err
	}
	return refs[0], nil
}

// Delete asks the owning client to drop a delivered message. Idempotent
// from the caller's view: a gone chat or closed connection is an error
// the caller logs and moves past.
func (h *Hub) Delete(_ context.Context, ref domain.MessageRef) error {
	c, ok := h.lookup(ref.Chat)
	if !ok {
		return domain.ErrRecipientGone
	}
	return c.writeJSON(outboundMessage[retractPayload]{
		Type:    "retract",
		Payload: retractPayload{MessageID: ref.MessageID},
	})
}
