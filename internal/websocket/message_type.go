package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// CloseAuthRequired is sent when the handshake carries no valid session.
const CloseAuthRequired = 4401

var (
	ErrMalformedMessage   = errors.New("malformed message")
	ErrUnknownMessageType = errors.New("unknown message type")
)

/*
==============================================================================
  Client -> server
==============================================================================
*/

// InboundType discriminates messages sent by clients.
type InboundType string

const (
	TypeJoinThread  InboundType = "join_thread"
	TypeLeaveThread InboundType = "leave_thread"
)

// Inbound is implemented by every message a client may send. DecodeInbound
// only ever returns the concrete types below.
type Inbound interface {
	Kind() InboundType
}

type JoinThread struct {
	PostID string `json:"postId"`
}

func (JoinThread) Kind() InboundType { return TypeJoinThread }

type LeaveThread struct{}

func (LeaveThread) Kind() InboundType { return TypeLeaveThread }

// DecodeInbound parses a client frame into its concrete message type.
func DecodeInbound(data []byte) (Inbound, error) {
	var envelope struct {
		Type InboundType `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	switch envelope.Type {
	case TypeJoinThread:
		var m JoinThread
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		if m.PostID == "" {
			return nil, fmt.Errorf("%w: join_thread without postId", ErrMalformedMessage)
		}
		return m, nil
	case TypeLeaveThread:
		return LeaveThread{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, envelope.Type)
	}
}

// EncodeInbound is the client-side counterpart of DecodeInbound.
func EncodeInbound(m Inbound) ([]byte, error) {
	switch v := m.(type) {
	case JoinThread:
		return json.Marshal(struct {
			Type   InboundType `json:"type"`
			PostID string      `json:"postId"`
		}{TypeJoinThread, v.PostID})
	case LeaveThread:
		return json.Marshal(struct {
			Type InboundType `json:"type"`
		}{TypeLeaveThread})
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownMessageType, m)
	}
}

/*
==============================================================================
  Server -> client
==============================================================================
*/

// OutboundType discriminates messages pushed by the server.
type OutboundType string

const (
	TypeAuthenticated OutboundType = "authenticated"
	TypeThreadUpdate  OutboundType = "thread_update"
	TypeNotification  OutboundType = "notification"
)

// ThreadAction names what changed in a thread.
type ThreadAction string

const (
	ActionCommentCreated ThreadAction = "comment_created"
	ActionReplyCreated   ThreadAction = "reply_created"
	ActionPostLiked      ThreadAction = "post_liked"
	ActionCommentLiked   ThreadAction = "comment_liked"
)

type Authenticated struct {
	UserID string `json:"userId"`
}

func (a Authenticated) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type   OutboundType `json:"type"`
		UserID string       `json:"userId"`
	}{TypeAuthenticated, a.UserID})
}

// ThreadUpdate goes on the wire flat: payload keys sit next to type, action
// and postId. Those three always win over payload keys of the same name.
type ThreadUpdate struct {
	Action  ThreadAction
	PostID  string
	Payload map[string]any
}

func (u ThreadUpdate) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(u.Payload)+3)
	for k, v := range u.Payload {
		out[k] = v
	}
	out["type"] = TypeThreadUpdate
	out["action"] = u.Action
	out["postId"] = u.PostID
	return json.Marshal(out)
}

func (u *ThreadUpdate) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	action, _ := raw["action"].(string)
	postID, _ := raw["postId"].(string)
	delete(raw, "type")
	delete(raw, "action")
	delete(raw, "postId")

	u.Action = ThreadAction(action)
	u.PostID = postID
	u.Payload = raw
	return nil
}

// NotificationPayload is the live mirror of a persisted notification.
type NotificationPayload struct {
	ID         string    `json:"id,omitempty"`
	Type       string    `json:"type"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	EntityType *string   `json:"entityType,omitempty"`
	EntityID   *string   `json:"entityId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

type NotificationPush struct {
	Notification NotificationPayload
}

func (n NotificationPush) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type         OutboundType        `json:"type"`
		Notification NotificationPayload `json:"notification"`
	}{TypeNotification, n.Notification})
}

func (n *NotificationPush) UnmarshalJSON(data []byte) error {
	var wire struct {
		Notification NotificationPayload `json:"notification"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	n.Notification = wire.Notification
	return nil
}

// PeekOutboundType reads only the discriminator of a server frame.
func PeekOutboundType(data []byte) (OutboundType, error) {
	var envelope struct {
		Type OutboundType `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return envelope.Type, nil
}
