package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"

	"puzzle-quiz-service/internal/author"
	"puzzle-quiz-service/internal/broadcast"
	"puzzle-quiz-service/internal/domain"
	"puzzle-quiz-service/internal/levels"
	"puzzle-quiz-service/internal/registry"
	"puzzle-quiz-service/internal/telemetry"
)

const emptyAnswerPrompt = "Please send the answer text along with the command"

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type textPayload struct {
	Text string `json:"text"`
	// MessageID is the client-side id of the submitted message, recorded
	// so no-spoiler mode can retract the user's own turns too.
	MessageID int64 `json:"messageId,omitempty"`
}

type levelPayload struct {
	Dir string `json:"dir"`
}

type gamePayload struct {
	Game string `json:"game"`
}

type togglePayload struct {
	On bool `json:"on"`
}

type verdictPayload struct {
	Verdict string `json:"verdict"`
	Reply   string `json:"reply,omitempty"`
}

type levelsPayload struct {
	Levels []levelEntry `json:"levels"`
}

type levelEntry struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Dir   string `json:"dir"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// Handler wires websocket chats into the quiz core.
type Handler struct {
	hub         *Hub
	registry    *registry.Registry
	scheduler   *broadcast.Scheduler // nil when no daily game is configured
	sink        telemetry.Sink
	capture     *author.Capture
	gamesRoot   string
	defaultGame string
	authorGame  string
	upgrader    websocket.Upgrader
}

func NewHandler(hub *Hub, reg *registry.Registry, sched *broadcast.Scheduler, sink telemetry.Sink, gamesRoot, defaultGame, authorGame string) *Handler {
	return &Handler{
		hub:         hub,
		registry:    reg,
		scheduler:   sched,
		sink:        sink,
		capture:     author.NewCapture(),
		gamesRoot:   gamesRoot,
		defaultGame: defaultGame,
		authorGame:  authorGame,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeWS upgrades the request and runs the chat's command loop. One
// connection is one chat: inbound events are read sequentially, which
// keeps every session single-writer.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	chatID, err := strconv.ParseInt(r.URL.Query().Get("chatId"), 10, 64)
	if err != nil {
		http.Error(w, "missing or invalid chatId", http.StatusBadRequest)
		return
	}
	gameType := r.URL.Query().Get("game")
	if gameType == "" {
		gameType = h.defaultGame
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	chat := domain.ChatID(chatID)
	client := h.hub.register(chat, conn)
	defer h.hub.unregister(chat, client)

	state := &chatState{chat: chat, game: gameType}
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}
		h.dispatch(r.Context(), client, state, inbound)
	}
}

// chatState is the per-connection view: which game the chat is playing.
type chatState struct {
	chat domain.ChatID
	game string
}

func (s *chatState) key() domain.SessionKey {
	return domain.SessionKey{Chat: s.chat, Game: s.game}
}

func (h *Handler) dispatch(ctx context.Context, c *client, state *chatState, inbound inboundMessage) {
	switch inbound.Type {
	case "start":
		h.handleStart(ctx, c, state)
	case "answer":
		h.handleAnswer(ctx, c, state, inbound.Payload)
	case "hint":
		h.handleHint(ctx, c, state, inbound.Payload)
	case "reveal":
		h.handleReveal(ctx, c, state)
	case "repeat":
		h.handleRepeat(ctx, c, state)
	case "levels":
		h.handleLevels(ctx, c, state)
	case "setLevel":
		h.handleSetLevel(ctx, c, state, inbound.Payload)
	case "reset":
		h.handleReset(ctx, c, state)
	case "games":
		h.handleGames(c)
	case "setGame":
		h.handleSetGame(ctx, c, state, inbound.Payload)
	case "spoiler":
		h.handleToggle(ctx, c, state, inbound.Payload, func(e *registry.Entry, on bool) { e.Spoiler.Enabled = on })
	case "dailyOptIn":
		h.handleToggle(ctx, c, state, inbound.Payload, func(e *registry.Entry, on bool) { e.DailyOptIn = on })
	case "daily":
		h.handleDailyAnswer(c, state, inbound.Payload)
	case "repeatDaily":
		h.handleRepeatDaily(c, state)
	case "dailyHint":
		h.handleDailyHint(c, state)
	case "authorNew":
		h.handleAuthorNew(c, state, inbound.Payload)
	case "authorItem":
		h.handleAuthorItem(c, state, inbound.Payload)
	case "authorAnswers":
		h.replyAuthor(c, state, h.capture.BeginAnswers(state.chat),
			"Enter all possible answers in separate messages, then commit")
	case "authorLine":
		h.handleAuthorLine(c, state, inbound.Payload)
	case "authorUndo":
		h.replyAuthor(c, state, h.capture.Undo(state.chat), "Deleted from the buffer")
	case "authorPreview":
		h.handleAuthorPreview(c, state)
	case "authorDiscard":
		h.capture.Discard(state.chat)
		h.replyAuthor(c, state, nil, "Draft discarded")
	case "authorCommit":
		h.handleAuthorCommit(c, state)
	default:
		h.sendError(c, "unsupported message type")
	}
}

// entry resolves the chat's session, emitting the welcome and the first
// question on first contact.
func (h *Handler) entry(ctx context.Context, c *client, state *chatState) (*registry.Entry, bool, bool) {
	entry, created, err := h.registry.GetOrCreate(state.key())
	if err != nil {
		h.sendError(c, "game unavailable: "+state.game)
		log.Printf("ws: session %s: %v", state.key(), err)
		return nil, false, false
	}
	if created {
		h.sink.Record(telemetry.Event{Kind: "NewUser", Chat: state.chat, Game: state.game})
		if intro := entry.Session.Config().IntroMessage; intro != "" {
			if ref, err := h.hub.sendText(state.chat, intro); err == nil {
				entry.Spoiler.Record(ref)
			}
		}
		h.pushQuestion(ctx, entry)
	}
	return entry, created, true
}

// pushQuestion sends the current question and records its handles after
// the buffer was drained, never before.
func (h *Handler) pushQuestion(ctx context.Context, entry *registry.Entry) {
	question, path, _, err := entry.Session.Question()
	if err != nil {
		log.Printf("ws: loading question for %s: %v", entry.Key, err)
		return
	}
	refs, err := h.hub.Send(ctx, entry.Key.Chat, question, path)
	if err != nil {
		log.Printf("ws: delivering question to %s: %v", entry.Key, err)
		return
	}
	entry.Spoiler.Record(refs...)
}

func (h *Handler) handleStart(ctx context.Context, c *client, state *chatState) {
	entry, created, ok := h.entry(ctx, c, state)
	if !ok {
		return
	}
	h.sink.Record(telemetry.Event{Kind: "Start", Chat: state.chat, Game: state.game, Level: entry.Session.Current()})
	if !created {
		// Re-entry: repeat the current question.
		h.pushQuestion(ctx, entry)
	}
}

func (h *Handler) handleAnswer(ctx context.Context, c *client, state *chatState, raw json.RawMessage) {
	entry, _, ok := h.entry(ctx, c, state)
	if !ok {
		return
	}
	var payload textPayload
	_ = json.Unmarshal(raw, &payload)
	if payload.MessageID != 0 {
		entry.Spoiler.Record(domain.MessageRef{Chat: state.chat, MessageID: payload.MessageID})
	}
	text := strings.TrimSpace(payload.Text)
	if text == "" {
		// Input error: prompt the user, session state unchanged.
		if ref, err := h.hub.sendText(state.chat, emptyAnswerPrompt); err == nil {
			entry.Spoiler.Record(ref)
		}
		return
	}

	result := entry.Session.Check(text)
	h.sink.Record(telemetry.Event{
		Kind:    "Answer",
		Chat:    state.chat,
		Game:    state.game,
		Level:   entry.Session.Current(),
		Answer:  text,
		Verdict: result.Verdict.String(),
	})

	switch result.Verdict {
	case domain.Correct:
		_ = c.writeJSON(outboundMessage[verdictPayload]{Type: "verdict", Payload: verdictPayload{Verdict: result.Verdict.String()}})
		entry.Spoiler.Drain(ctx, h.hub)
		entry.Session.Next()
		h.pushQuestion(ctx, entry)
	case domain.Close:
		_ = c.writeJSON(outboundMessage[verdictPayload]{Type: "verdict", Payload: verdictPayload{Verdict: result.Verdict.String(), Reply: result.Reply}})
		if ref, err := h.hub.sendText(state.chat, result.Reply); err == nil {
			entry.Spoiler.Record(ref)
		}
	default:
		_ = c.writeJSON(outboundMessage[verdictPayload]{Type: "verdict", Payload: verdictPayload{Verdict: result.Verdict.String()}})
	}
}

func (h *Handler) handleHint(ctx context.Context, c *client, state *chatState, raw json.RawMessage) {
	entry, _, ok := h.entry(ctx, c, state)
	if !ok {
		return
	}
	var payload textPayload
	_ = json.Unmarshal(raw, &payload)
	if payload.MessageID != 0 {
		entry.Spoiler.Record(domain.MessageRef{Chat: state.chat, MessageID: payload.MessageID})
	}
	h.sink.Record(telemetry.Event{Kind: "Hint", Chat: state.chat, Game: state.game, Level: entry.Session.Current()})
	if ref, err := h.hub.sendText(state.chat, entry.Session.Hint()); err == nil {
		entry.Spoiler.Record(ref)
	}
}

func (h *Handler) handleReveal(ctx context.Context, c *client, state *chatState) {
	entry, _, ok := h.entry(ctx, c, state)
	if !ok {
		return
	}
	h.sink.Record(telemetry.Event{Kind: "GetAnswer", Chat: state.chat, Game: state.game, Level: entry.Session.Current()})
	if ref, err := h.hub.sendText(state.chat, entry.Session.Answer()); err == nil {
		entry.Spoiler.Record(ref)
	}
}

func (h *Handler) handleRepeat(ctx context.Context, c *client, state *chatState) {
	entry, _, ok := h.entry(ctx, c, state)
	if !ok {
		return
	}
	h.sink.Record(telemetry.Event{Kind: "Repeat", Chat: state.chat, Game: state.game, Level: entry.Session.Current()})
	h.pushQuestion(ctx, entry)
}

func (h *Handler) handleLevels(ctx context.Context, c *client, state *chatState) {
	entry, _, ok := h.entry(ctx, c, state)
	if !ok {
		return
	}
	lvls := entry.Session.Levels()
	if lvls == nil {
		h.sendError(c, "level selection is disabled for this game")
		return
	}
	payload := levelsPayload{Levels: make([]levelEntry, len(lvls))}
	for i, lvl := range lvls {
		payload.Levels[i] = levelEntry{Index: lvl.Index, Name: lvl.Name, Dir: lvl.Dir}
	}
	_ = c.writeJSON(outboundMessage[levelsPayload]{Type: "levels", Payload: payload})
}

func (h *Handler) handleSetLevel(ctx context.Context, c *client, state *chatState, raw json.RawMessage) {
	entry, _, ok := h.entry(ctx, c, state)
	if !ok {
		return
	}
	var payload levelPayload
	_ = json.Unmarshal(raw, &payload)
	entry.Session.SetLevelByName(payload.Dir)
	h.sink.Record(telemetry.Event{Kind: "SetLevel", Chat: state.chat, Game: state.game, Level: entry.Session.Current()})
	h.pushQuestion(ctx, entry)
}

func (h *Handler) handleReset(ctx context.Context, c *client, state *chatState) {
	entry, _, ok := h.entry(ctx, c, state)
	if !ok {
		return
	}
	entry.Session.Reset()
	h.sink.Record(telemetry.Event{Kind: "Reset", Chat: state.chat, Game: state.game})
	h.pushQuestion(ctx, entry)
}

func (h *Handler) handleGames(c *client) {
	games, err := levels.ListGames(h.gamesRoot)
	if err != nil {
		h.sendError(c, "cannot list games")
		return
	}
	_ = c.writeJSON(outboundMessage[[]string]{Type: "games", Payload: games})
}

func (h *Handler) handleSetGame(ctx context.Context, c *client, state *chatState, raw json.RawMessage) {
	var payload gamePayload
	_ = json.Unmarshal(raw, &payload)
	if payload.Game == "" {
		h.sendError(c, "missing game name")
		return
	}
	state.game = payload.Game
	entry, _, ok := h.entry(ctx, c, state)
	if !ok {
		return
	}
	h.sink.Record(telemetry.Event{Kind: "SetGame", Chat: state.chat, Game: state.game})
	h.pushQuestion(ctx, entry)
}

func (h *Handler) handleToggle(ctx context.Context, c *client, state *chatState, raw json.RawMessage, apply func(*registry.Entry, bool)) {
	entry, _, ok := h.entry(ctx, c, state)
	if !ok {
		return
	}
	var payload togglePayload
	_ = json.Unmarshal(raw, &payload)
	apply(entry, payload.On)
	_ = c.writeJSON(outboundMessage[togglePayload]{Type: "settings", Payload: payload})
}

func (h *Handler) handleDailyAnswer(c *client, state *chatState, raw json.RawMessage) {
	if h.scheduler == nil {
		h.sendError(c, "no daily puzzle configured")
		return
	}
	var payload textPayload
	_ = json.Unmarshal(raw, &payload)
	text := strings.TrimSpace(payload.Text)
	if text == "" {
		h.sendError(c, emptyAnswerPrompt)
		return
	}
	result := h.scheduler.CheckDaily(text)
	h.sink.Record(telemetry.Event{Kind: "DailyAnswer", Chat: state.chat, Answer: text, Verdict: result.Verdict.String()})
	_ = c.writeJSON(outboundMessage[verdictPayload]{Type: "dailyVerdict", Payload: verdictPayload{Verdict: result.Verdict.String(), Reply: result.Reply}})
}

func (h *Handler) handleRepeatDaily(c *client, state *chatState) {
	if h.scheduler == nil {
		h.sendError(c, "no daily puzzle configured")
		return
	}
	question, path, err := h.scheduler.DailyQuestion()
	if err != nil {
		h.sendError(c, "daily puzzle unavailable")
		return
	}
	refs, err := h.hub.Send(context.Background(), state.chat, question, path)
	if err != nil {
		log.Printf("ws: repeating daily puzzle to %d: %v", state.chat, err)
		return
	}
	h.scheduler.Record(refs...)
}

func (h *Handler) handleDailyHint(c *client, state *chatState) {
	if h.scheduler == nil {
		h.sendError(c, "no daily puzzle configured")
		return
	}
	h.sink.Record(telemetry.Event{Kind: "DailyHint", Chat: state.chat})
	if ref, err := h.hub.sendText(state.chat, h.scheduler.DailyHint()); err == nil {
		h.scheduler.Record(ref)
	}
}

// replyAuthor reports the outcome of an authoring step as plain text.
func (h *Handler) replyAuthor(c *client, state *chatState, err error, okText string) {
	if err != nil {
		h.sendError(c, err.Error())
		return
	}
	_, _ = h.hub.sendText(state.chat, okText)
}

func (h *Handler) handleAuthorNew(c *client, state *chatState, raw json.RawMessage) {
	var payload struct {
		Name string `json:"name"`
	}
	_ = json.Unmarshal(raw, &payload)
	err := h.capture.Begin(state.chat, payload.Name)
	h.replyAuthor(c, state, err, "Go ahead, send your puzzle content, then ask for answers")
	if err == nil {
		h.sink.Record(telemetry.Event{Kind: "AuthorNew", Chat: state.chat, Game: h.authorGame})
	}
}

func (h *Handler) handleAuthorItem(c *client, state *chatState, raw json.RawMessage) {
	var item domain.ContentItem
	if err := json.Unmarshal(raw, &item); err != nil || item.Body == "" {
		h.sendError(c, "content item needs a body")
		return
	}
	if item.Kind == "" {
		item.Kind = domain.KindText
	}
	h.replyAuthor(c, state, h.capture.PushItem(state.chat, item), "Added")
}

func (h *Handler) handleAuthorLine(c *client, state *chatState, raw json.RawMessage) {
	var payload textPayload
	_ = json.Unmarshal(raw, &payload)
	line := strings.TrimSpace(payload.Text)
	if line == "" {
		h.sendError(c, emptyAnswerPrompt)
		return
	}
	h.replyAuthor(c, state, h.capture.PushAnswer(state.chat, line), "Added")
}

func (h *Handler) handleAuthorPreview(c *client, state *chatState) {
	draft, err := h.capture.Preview(state.chat)
	if err != nil {
		h.sendError(c, err.Error())
		return
	}
	if name := strings.ReplaceAll(draft.Name, "_", " "); name != "" {
		_, _ = h.hub.sendText(state.chat, "Name: "+name)
	}
	if len(draft.Items) > 0 {
		_, _ = h.hub.Send(context.Background(), state.chat, domain.Question{Items: draft.Items}, "")
	} else {
		_, _ = h.hub.sendText(state.chat, "Nothing in buffer")
	}
	_, _ = h.hub.sendText(state.chat, draft.Summary())
}

func (h *Handler) handleAuthorCommit(c *client, state *chatState) {
	store, err := levels.NewStore(filepath.Join(h.gamesRoot, h.authorGame))
	if err != nil {
		h.sendError(c, "authoring game unavailable")
		return
	}
	dir, err := h.capture.Commit(state.chat, store)
	if err != nil {
		h.sendError(c, err.Error())
		return
	}
	h.sink.Record(telemetry.Event{Kind: "AuthorCommit", Chat: state.chat, Game: h.authorGame})
	log.Printf("ws: new draft saved by %d at %s", state.chat, dir)
	_, _ = h.hub.sendText(state.chat, "Thanks! Your puzzle is saved for review")
}

func (h *Handler) sendError(c *client, message string) {
	_ = c.writeJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: message}})
}
