package websocket

import (
	"context"
	"encoding/json"
	"time"

	"instapro/internal/domain/entity"
	"instapro/internal/infrastructure/ratelimit"
	"instapro/internal/usecase"
	"instapro/pkg/errors"
	"instapro/pkg/live"
	"instapro/pkg/logger"
)

// Client frame types
const (
	MessageTypePing              = "ping"
	MessageTypeOpenChat          = "open_chat"
	MessageTypeCloseChat         = "close_chat"
	MessageTypeSendMessage       = "send_message"
	MessageTypeLoadMore          = "load_more"
	MessageTypeUnsend            = "unsend"
	MessageTypeObservePresence   = "observe_presence"
	MessageTypeUnobservePresence = "unobserve_presence"
	MessageTypeObserveUsers      = "observe_users"
	MessageTypeUnobserveUsers    = "unobserve_users"
)

// Server frame types
const (
	MessageTypePong           = "pong"
	MessageTypeChatState      = "chat_state"
	MessageTypeUploadProgress = "upload_progress"
	MessageTypePresence       = "presence"
	MessageTypeUsers          = "users"
	MessageTypeError          = "error"
)

const frameTimeout = 15 * time.Second

// WSMessage is the envelope of every frame in both directions.
type WSMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	ChatID    string          `json:"chat_id,omitempty"`
	Timestamp string          `json:"timestamp"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	ChatID    string      `json:"chat_id,omitempty"`
	Timestamp string      `json:"timestamp"`
}

type SendMessageData struct {
	Text string `json:"text"`
}

type UnsendData struct {
	MessageID string `json:"message_id"`
}

type PresenceRequestData struct {
	Username string `json:"username"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ChatStateData is a session snapshot as sent to the client.
type ChatStateData struct {
	usecase.SessionSnapshot
	Error *ErrorData `json:"error,omitempty"`
}

type LoadMoreData struct {
	Requested bool `json:"requested"`
}

// HandleClientMessage dispatches one client frame.
func (m *Manager) HandleClientMessage(client *Client, messageBytes []byte) {
	var wsMessage WSMessage
	if err := json.Unmarshal(messageBytes, &wsMessage); err != nil {
		logger.Warn("WebSocket: Failed to unmarshal message from %s: %v", client.Username, err)
		m.sendErrorToClient(client, "", errors.BadRequest("Invalid message format", err))
		return
	}

	logger.Debug("WebSocket: Received '%s' from %s", wsMessage.Type, client.Username)

	ctx, cancel := context.WithTimeout(client.ctx, frameTimeout)
	defer cancel()

	switch wsMessage.Type {
	case MessageTypePing:
		m.sendToClient(client, MessageTypePong, "", map[string]string{"status": "alive"})

	case MessageTypeOpenChat:
		if m.allow(client, ratelimit.ActionOpenChat, wsMessage.ChatID) {
			m.handleOpenChat(ctx, client, wsMessage.ChatID)
		}

	case MessageTypeCloseChat:
		m.handleCloseChat(client, wsMessage.ChatID)

	case MessageTypeSendMessage:
		// a send may wait on storage and push, other frames keep flowing
		if m.allow(client, ratelimit.ActionSendMessage, wsMessage.ChatID) {
			go m.handleSendMessage(client, wsMessage)
		}

	case MessageTypeLoadMore:
		m.handleLoadMore(ctx, client, wsMessage.ChatID)

	case MessageTypeUnsend:
		m.handleUnsend(ctx, client, wsMessage)

	case MessageTypeObservePresence:
		m.handleObservePresence(client, wsMessage)

	case MessageTypeUnobservePresence:
		m.handleUnobservePresence(client, wsMessage)

	case MessageTypeObserveUsers:
		m.handleObserveUsers(client)

	case MessageTypeUnobserveUsers:
		m.handleUnobserveUsers(client)

	default:
		logger.Warn("WebSocket: Unknown message type '%s' from %s", wsMessage.Type, client.Username)
		m.sendErrorToClient(client, wsMessage.ChatID, errors.BadRequest("Unknown message type", nil))
	}
}

func (m *Manager) handleOpenChat(ctx context.Context, client *Client, chatID string) {
	if chatID == "" {
		m.sendErrorToClient(client, "", errors.BadRequest("Missing chat_id", nil))
		return
	}

	client.mu.Lock()
	if client.closed {
		client.mu.Unlock()
		return
	}
	if _, open := client.sessions[chatID]; open {
		client.mu.Unlock()
		m.sendErrorToClient(client, chatID, errors.Conflict("Chat is already open"))
		return
	}
	session := usecase.NewChatSession(client.identity(), m.conversations, m.messages, m.pipeline)
	client.sessions[chatID] = session
	client.mu.Unlock()

	go m.forwardSession(client, chatID, session)

	if err := session.Open(ctx, chatID); err != nil {
		client.mu.Lock()
		if client.sessions[chatID] == session {
			delete(client.sessions, chatID)
		}
		client.mu.Unlock()
		session.Close()
		m.sendErrorToClient(client, chatID, err)
		return
	}
	logger.Info("WebSocket: %s opened chat %s", client.Username, chatID)
}

// forwardSession streams snapshots until the session closes.
func (m *Manager) forwardSession(client *Client, chatID string, session *usecase.ChatSession) {
	for snap := range session.Updates() {
		data := ChatStateData{SessionSnapshot: snap}
		if snap.Err != nil {
			data.Error = errorData(snap.Err)
		}
		m.sendToClient(client, MessageTypeChatState, chatID, data)
	}
}

func (m *Manager) handleCloseChat(client *Client, chatID string) {
	session := client.takeSession(chatID)
	if session == nil {
		return
	}
	session.Close()
	logger.Info("WebSocket: %s closed chat %s", client.Username, chatID)
}

func (m *Manager) handleSendMessage(client *Client, wsMessage WSMessage) {
	ctx, cancel := context.WithTimeout(client.ctx, frameTimeout)
	defer cancel()

	session, ok := m.sessionFor(client, wsMessage.ChatID)
	if !ok {
		return
	}

	var data SendMessageData
	if err := json.Unmarshal(wsMessage.Data, &data); err != nil {
		m.sendErrorToClient(client, wsMessage.ChatID, errors.BadRequest("Invalid send message format", err))
		return
	}

	if _, err := session.Send(ctx, usecase.SendInput{Text: data.Text}, nil); err != nil {
		m.sendErrorToClient(client, wsMessage.ChatID, err)
	}
}

func (m *Manager) handleLoadMore(ctx context.Context, client *Client, chatID string) {
	session, ok := m.sessionFor(client, chatID)
	if !ok {
		return
	}

	requested, err := session.LoadMore(ctx)
	if err != nil {
		m.sendErrorToClient(client, chatID, err)
		return
	}
	if !requested {
		logger.Debug("WebSocket: load_more ignored for %s in %s", client.Username, chatID)
	}
}

func (m *Manager) handleUnsend(ctx context.Context, client *Client, wsMessage WSMessage) {
	session, ok := m.sessionFor(client, wsMessage.ChatID)
	if !ok {
		return
	}

	var data UnsendData
	if err := json.Unmarshal(wsMessage.Data, &data); err != nil || data.MessageID == "" {
		m.sendErrorToClient(client, wsMessage.ChatID, errors.BadRequest("Missing message_id", err))
		return
	}

	if err := session.Unsend(ctx, data.MessageID); err != nil {
		m.sendErrorToClient(client, wsMessage.ChatID, err)
	}
}

func (m *Manager) handleObservePresence(client *Client, wsMessage WSMessage) {
	var data PresenceRequestData
	if err := json.Unmarshal(wsMessage.Data, &data); err != nil || !entity.ValidUsername(data.Username) {
		m.sendErrorToClient(client, "", errors.BadRequest("Invalid username", err))
		return
	}

	client.mu.Lock()
	if client.closed {
		client.mu.Unlock()
		return
	}
	if _, watching := client.observers[data.Username]; watching {
		client.mu.Unlock()
		return
	}
	sub := m.presence.Observe(client.ctx, data.Username)
	client.observers[data.Username] = sub
	client.mu.Unlock()

	go m.forwardPresence(client, data.Username, sub)
}

func (m *Manager) forwardPresence(client *Client, username string, sub *live.Subscription[entity.Presence]) {
	for presence := range sub.Updates() {
		m.sendToClient(client, MessageTypePresence, "", presence)
	}
	if err := sub.Err(); err != nil {
		m.sendErrorToClient(client, "", err)
	}

	client.mu.Lock()
	if client.observers != nil && client.observers[username] == sub {
		delete(client.observers, username)
	}
	client.mu.Unlock()
}

func (m *Manager) handleUnobservePresence(client *Client, wsMessage WSMessage) {
	var data PresenceRequestData
	if err := json.Unmarshal(wsMessage.Data, &data); err != nil {
		m.sendErrorToClient(client, "", errors.BadRequest("Invalid username", err))
		return
	}

	client.mu.Lock()
	sub := client.observers[data.Username]
	delete(client.observers, data.Username)
	client.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
}

// handleObserveUsers streams the whole directory, re-sent on every change.
func (m *Manager) handleObserveUsers(client *Client) {
	client.mu.Lock()
	if client.closed || client.users != nil {
		client.mu.Unlock()
		return
	}
	sub := m.directory.AllUsers(client.ctx)
	client.users = sub
	client.mu.Unlock()

	go m.forwardUsers(client, sub)
}

func (m *Manager) forwardUsers(client *Client, sub *live.Subscription[[]*entity.User]) {
	for users := range sub.Updates() {
		m.sendToClient(client, MessageTypeUsers, "", users)
	}
	if err := sub.Err(); err != nil {
		m.sendErrorToClient(client, "", err)
	}

	client.mu.Lock()
	if client.users == sub {
		client.users = nil
	}
	client.mu.Unlock()
}

func (m *Manager) handleUnobserveUsers(client *Client) {
	client.mu.Lock()
	sub := client.users
	client.users = nil
	client.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
}

// allow reports a rate limit hit to the client.
func (m *Manager) allow(client *Client, action, chatID string) bool {
	if m.limiter == nil {
		return true
	}
	ok, wait := m.limiter.Allow(client.UserID, action)
	if !ok {
		m.sendErrorToClient(client, chatID, errors.RateLimited(wait))
	}
	return ok
}

// sessionFor returns the open session for chatID, reporting an error to
// the client when there is none.
func (m *Manager) sessionFor(client *Client, chatID string) (*usecase.ChatSession, bool) {
	client.mu.Lock()
	session, ok := client.sessions[chatID]
	client.mu.Unlock()
	if !ok {
		m.sendErrorToClient(client, chatID, errors.BadRequest("Chat is not open", nil))
	}
	return session, ok
}

func (c *Client) takeSession(chatID string) *usecase.ChatSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	session := c.sessions[chatID]
	delete(c.sessions, chatID)
	return session
}

// SendUploadProgress forwards an upload event to the uploader's connections.
func (m *Manager) SendUploadProgress(userID, chatID string, progress entity.UploadProgress) {
	frame, err := encodeFrame(MessageTypeUploadProgress, chatID, progress)
	if err != nil {
		logger.Error("WebSocket: Failed to marshal upload progress: %v", err)
		return
	}
	m.SendToUser(userID, frame)
}

func (m *Manager) sendToClient(client *Client, messageType, chatID string, data interface{}) {
	frame, err := encodeFrame(messageType, chatID, data)
	if err != nil {
		logger.Error("WebSocket: Failed to marshal %s for %s: %v", messageType, client.Username, err)
		return
	}
	client.enqueue(frame)
}

func (m *Manager) sendErrorToClient(client *Client, chatID string, err error) {
	m.sendToClient(client, MessageTypeError, chatID, errorData(err))
}

func encodeFrame(messageType, chatID string, data interface{}) ([]byte, error) {
	return json.Marshal(outgoingMessage{
		Type:      messageType,
		Data:      data,
		ChatID:    chatID,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func errorData(err error) *ErrorData {
	if appErr, ok := errors.AsAppError(err); ok {
		return &ErrorData{Code: appErr.Code, Message: appErr.Message}
	}
	return &ErrorData{Code: errors.CodeInternal, Message: "Internal server error"}
}
