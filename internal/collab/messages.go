package collab

import (
	"encoding/json"
	"errors"
	"time"
)

// Message types accepted from clients.
const (
	TypeJoinRoom        = "join_room"
	TypeLeaveRoom       = "leave_room"
	TypeCodeChange      = "code_change"
	TypeCursorPosition  = "cursor_position"
	TypeTypingIndicator = "typing_indicator"
	TypeChatMessage     = "chat_message"
	TypeStartInterview  = "start_interview"
	TypeEndInterview    = "end_interview"
	TypePing            = "ping"
)

// Message types produced by the server.
const (
	TypeConnected          = "connected"
	TypeRoomState          = "room_state"
	TypeUserJoined         = "user_joined"
	TypeUserLeft           = "user_left"
	TypeInterviewStarted   = "interview_started"
	TypeInterviewEnded     = "interview_ended"
	TypeSystemNotification = "system_notification"
)

// Envelope is the wire format in both directions: a type tag and a
// type-specific payload.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type ServerMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type JoinRoom struct {
	RoomId string `json:"roomId"`
}

type LeaveRoom struct {
	RoomId string `json:"roomId"`
}

type CodeChange struct {
	RoomId    string          `json:"roomId"`
	Code      string          `json:"code"`
	Selection json.RawMessage `json:"selection,omitempty"`
}

type CursorPosition struct {
	RoomId string `json:"roomId"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

type TypingIndicator struct {
	RoomId   string `json:"roomId"`
	IsTyping bool   `json:"isTyping"`
}

type ChatMessage struct {
	RoomId  string `json:"roomId"`
	Message string `json:"message"`
}

type StartInterview struct {
	RoomId        string `json:"roomId"`
	QuestionId    string `json:"questionId"`
	InterviewType string `json:"interviewType"`
}

type EndInterview struct {
	RoomId   string          `json:"roomId"`
	Feedback json.RawMessage `json:"feedback,omitempty"`
}

type ConnectedData struct {
	UserId   int    `json:"userId"`
	Username string `json:"username"`
}

type RoomStateData struct {
	RoomId   string `json:"roomId"`
	Code     string `json:"code"`
	Language string `json:"language"`
	Users    []int  `json:"users"`
}

type UserJoinedData struct {
	UserId   int `json:"userId"`
	RoomSize int `json:"roomSize"`
}

type UserLeftData struct {
	UserId   int `json:"userId"`
	RoomSize int `json:"roomSize"`
}

type CodeChangeData struct {
	UserId    int             `json:"userId"`
	Code      string          `json:"code"`
	Selection json.RawMessage `json:"selection,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

type CursorPositionData struct {
	UserId    int       `json:"userId"`
	Line      int       `json:"line"`
	Column    int       `json:"column"`
	Timestamp time.Time `json:"timestamp"`
}

type TypingIndicatorData struct {
	UserId      int   `json:"userId"`
	IsTyping    bool  `json:"isTyping"`
	TypingUsers []int `json:"typingUsers"`
}

type ChatMessageData struct {
	UserId    int       `json:"userId"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type InterviewStartedData struct {
	RoomId        string    `json:"roomId"`
	QuestionId    string    `json:"questionId"`
	InterviewType string    `json:"type"`
	Participants  []int     `json:"participants"`
	StartTime     time.Time `json:"startTime"`
	Status        string    `json:"status"`
}

type InterviewEndedData struct {
	RoomId           string          `json:"roomId"`
	Duration         int64           `json:"duration"`
	ParticipantCount int             `json:"participantCount"`
	CodeChanges      int             `json:"codeChanges"`
	Feedback         json.RawMessage `json:"feedback,omitempty"`
	CompletedAt      time.Time       `json:"completedAt"`
}

type SystemNotificationData struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func unmarshalData(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return errors.New("missing data")
	}
	return json.Unmarshal(data, v)
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
