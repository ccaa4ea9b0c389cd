package collab

import (
	"context"
	"errors"
	"log"
	"slices"
	"time"

	"github.com/codeprep-io/codeprep/internal/stats"
	"github.com/codeprep-io/codeprep/internal/types"
	"github.com/gorilla/websocket"
)

// Close codes sent before tearing down a connection. Each cause gets a
// distinct code so clients can decide whether to reconnect.
const (
	CloseIdleTimeout = 4000
	CloseNoToken     = 4001
	CloseInvalidUser = 4002
	CloseAuthFailure = 4003
)

const (
	DefaultIdleTimeout   = 5 * time.Minute
	DefaultSweepInterval = time.Minute

	defaultLanguage = "javascript"
)

// ErrInvalidUser is returned by an IdentityVerifier when the token is
// well-formed but resolves to no known account.
var ErrInvalidUser = errors.New("invalid user")

// IdentityVerifier resolves a bearer token to a user identity.
type IdentityVerifier interface {
	Verify(token string) (types.User, error)
}

type inboundMessage struct {
	client *Client
	env    Envelope
}

type cursorState struct {
	line      int
	column    int
	updatedAt time.Time
}

type interviewState struct {
	questionId    string
	interviewType string
	startTime     time.Time
}

// session is the shared mutable state of one room. It is created with the
// room on first join and deleted with it; only run-loop handlers touch it.
type session struct {
	code        string
	language    string
	cursors     map[int]cursorState
	typing      map[int]struct{}
	interview   *interviewState
	codeChanges int
}

func newSession() *session {
	return &session{
		language: defaultLanguage,
		cursors:  make(map[int]cursorState),
		typing:   make(map[int]struct{}),
	}
}

// CollabServer multiplexes authenticated users into interview rooms and
// keeps each room's code buffer, cursors, typing set and interview
// metadata in sync across members. A single run-loop goroutine owns the
// client registry, the room directory and the session store, so handlers
// run to completion without locking.
type CollabServer struct {
	log      *log.Logger
	verifier IdentityVerifier
	stats    stats.StatsProvider

	clients  map[int]*Client
	rooms    map[string]map[int]struct{}
	sessions map[string]*session

	registerChan   chan *Client
	deRegisterChan chan *Client
	inbound        chan inboundMessage
	notifyChan     chan string

	idleTimeout   time.Duration
	sweepInterval time.Duration

	stop chan struct{}
	done chan struct{}
	now  func() time.Time
}

func NewCollabServer(logger *log.Logger, verifier IdentityVerifier, sp stats.StatsProvider, idleTimeout, sweepInterval time.Duration) *CollabServer {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}

	sp.RegisterMetric(stats.ActiveConnections)
	sp.RegisterMetric(stats.ActiveRooms)
	sp.RegisterMetric(stats.MessagesReceived)
	sp.RegisterMetric(stats.MessagesSent)

	return &CollabServer{
		log:            logger,
		verifier:       verifier,
		stats:          sp,
		clients:        make(map[int]*Client),
		rooms:          make(map[string]map[int]struct{}),
		sessions:       make(map[string]*session),
		registerChan:   make(chan *Client),
		deRegisterChan: make(chan *Client),
		inbound:        make(chan inboundMessage, 256),
		notifyChan:     make(chan string, 16),
		idleTimeout:    idleTimeout,
		sweepInterval:  sweepInterval,
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
		now:            Now,
	}
}

func (cs *CollabServer) Run() {
	sweep := time.NewTicker(cs.sweepInterval)
	defer sweep.Stop()

	for {
		select {
		case c := <-cs.registerChan:
			cs.addClient(c)
		case c := <-cs.deRegisterChan:
			cs.removeClient(c)
		case msg := <-cs.inbound:
			cs.dispatch(msg.client, msg.env)
		case message := <-cs.notifyChan:
			cs.broadcastAll(&ServerMessage{
				Type: TypeSystemNotification,
				Data: SystemNotificationData{Message: message, Timestamp: cs.now()},
			})
		case <-sweep.C:
			cs.evictIdle()
		case <-cs.stop:
			cs.log.Println("shutting down collab server")
			for _, c := range cs.clients {
				c.stopClient()
			}
			close(cs.done)
			return
		}
	}
}

// HandleConnection authenticates an upgraded connection and, on success,
// registers it and starts its pumps. The verifier call is the only
// blocking I/O in the connection lifecycle.
func (cs *CollabServer) HandleConnection(conn *websocket.Conn, token string) {
	if token == "" {
		closeConn(conn, CloseNoToken, "authentication required")
		return
	}

	user, err := cs.verifier.Verify(token)
	if err != nil {
		cs.log.Println("token verification failed:", err)
		if errors.Is(err, ErrInvalidUser) {
			closeConn(conn, CloseInvalidUser, "invalid user")
		} else {
			closeConn(conn, CloseAuthFailure, "authentication failed")
		}
		return
	}

	c := NewClient(user, conn, cs, cs.log)
	cs.registerChan <- c
	go c.Write()
	go c.Read()
}

// SystemNotification broadcasts a message to every connected user. Safe to
// call from any goroutine.
func (cs *CollabServer) SystemNotification(message string) {
	select {
	case cs.notifyChan <- message:
	default:
		cs.log.Println("notify channel full, dropping system notification")
	}
}

func (cs *CollabServer) Shutdown(ctx context.Context) error {
	close(cs.stop)

	select {
	case <-cs.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// addClient registers a connection, replacing any prior connection for the
// same user (last-connect-wins).
func (cs *CollabServer) addClient(c *Client) {
	if old, ok := cs.clients[c.user.Id]; ok && old != c {
		cs.log.Printf("replacing connection for user %d", c.user.Id)
		old.stopClient()
	} else {
		cs.stats.Incr(stats.ActiveConnections)
	}

	cs.clients[c.user.Id] = c
	c.lastActivity = cs.now()

	c.queueMessage(&ServerMessage{
		Type: TypeConnected,
		Data: ConnectedData{UserId: c.user.Id, Username: c.user.Username},
	})
}

// removeClient funnels every disconnect cause (explicit close, transport
// error, idle eviction) through the same cleanup: leave the current room,
// drop the registry entry. A client that has already been displaced by a
// newer connection for the same user must not evict its replacement, so
// removal is identity-checked.
func (cs *CollabServer) removeClient(c *Client) {
	cur, ok := cs.clients[c.user.Id]
	if !ok || cur != c {
		return
	}

	if roomId, ok := cs.currentRoomOf(c.user.Id); ok {
		cs.leaveRoom(c.user.Id, roomId)
	}

	delete(cs.clients, c.user.Id)
	cs.stats.Decr(stats.ActiveConnections)
	cs.log.Printf("user %d disconnected", c.user.Id)
}

func (cs *CollabServer) dispatch(c *Client, env Envelope) {
	c.lastActivity = cs.now()
	cs.stats.Incr(stats.MessagesReceived)

	switch env.Type {
	case TypeJoinRoom:
		var p JoinRoom
		if cs.decode(env, &p) {
			cs.handleJoinRoom(c, p)
		}
	case TypeLeaveRoom:
		var p LeaveRoom
		if cs.decode(env, &p) {
			cs.leaveRoom(c.user.Id, p.RoomId)
		}
	case TypeCodeChange:
		var p CodeChange
		if cs.decode(env, &p) {
			cs.handleCodeChange(c, p)
		}
	case TypeCursorPosition:
		var p CursorPosition
		if cs.decode(env, &p) {
			cs.handleCursorPosition(c, p)
		}
	case TypeTypingIndicator:
		var p TypingIndicator
		if cs.decode(env, &p) {
			cs.handleTypingIndicator(c, p)
		}
	case TypeChatMessage:
		var p ChatMessage
		if cs.decode(env, &p) {
			cs.handleChatMessage(c, p)
		}
	case TypeStartInterview:
		var p StartInterview
		if cs.decode(env, &p) {
			cs.handleStartInterview(c, p)
		}
	case TypeEndInterview:
		var p EndInterview
		if cs.decode(env, &p) {
			cs.handleEndInterview(c, p)
		}
	case TypePing:
		// Client-driven heartbeat; the touch above is the whole point.
	default:
		cs.log.Printf("unknown message type %q from user %d", env.Type, c.user.Id)
	}
}

func (cs *CollabServer) decode(env Envelope, v any) bool {
	if err := unmarshalData(env.Data, v); err != nil {
		cs.log.Printf("malformed %q payload: %v", env.Type, err)
		return false
	}
	return true
}

// handleJoinRoom implements the single-room invariant: joining implicitly
// leaves whatever room the user currently occupies. The room and its
// session are created on first join.
func (cs *CollabServer) handleJoinRoom(c *Client, p JoinRoom) {
	if p.RoomId == "" {
		return
	}

	if cur, ok := cs.currentRoomOf(c.user.Id); ok {
		cs.leaveRoom(c.user.Id, cur)
	}

	members, ok := cs.rooms[p.RoomId]
	if !ok {
		members = make(map[int]struct{})
		cs.rooms[p.RoomId] = members
		cs.sessions[p.RoomId] = newSession()
		cs.stats.Incr(stats.ActiveRooms)
		cs.log.Printf("room %q created", p.RoomId)
	}
	members[c.user.Id] = struct{}{}

	cs.broadcastToRoom(p.RoomId, &ServerMessage{
		Type: TypeUserJoined,
		Data: UserJoinedData{UserId: c.user.Id, RoomSize: len(members)},
	}, c.user.Id)

	sess := cs.sessions[p.RoomId]
	cs.sendToUser(c.user.Id, &ServerMessage{
		Type: TypeRoomState,
		Data: RoomStateData{
			RoomId:   p.RoomId,
			Code:     sess.code,
			Language: sess.language,
			Users:    memberIds(members),
		},
	})
}

// leaveRoom removes the user from the room, tearing the room and its
// session down if it empties. Leaving a room one is not a member of, or a
// room that does not exist, is a no-op.
func (cs *CollabServer) leaveRoom(userId int, roomId string) {
	members, ok := cs.rooms[roomId]
	if !ok {
		return
	}
	if _, ok := members[userId]; !ok {
		return
	}

	delete(members, userId)

	if len(members) == 0 {
		cs.deleteRoom(roomId)
		return
	}

	if sess, ok := cs.sessions[roomId]; ok {
		delete(sess.cursors, userId)
		delete(sess.typing, userId)
	}

	cs.broadcastToRoom(roomId, &ServerMessage{
		Type: TypeUserLeft,
		Data: UserLeftData{UserId: userId, RoomSize: len(members)},
	}, 0)
}

func (cs *CollabServer) deleteRoom(roomId string) {
	delete(cs.rooms, roomId)
	delete(cs.sessions, roomId)
	cs.stats.Decr(stats.ActiveRooms)
	cs.log.Printf("room %q deleted", roomId)
}

func (cs *CollabServer) currentRoomOf(userId int) (string, bool) {
	for roomId, members := range cs.rooms {
		if _, ok := members[userId]; ok {
			return roomId, true
		}
	}
	return "", false
}

// handleCodeChange overwrites the session buffer last-write-wins; there is
// no operational-transform merge.
func (cs *CollabServer) handleCodeChange(c *Client, p CodeChange) {
	sess, ok := cs.sessions[p.RoomId]
	if !ok {
		return
	}

	sess.code = p.Code
	sess.codeChanges++

	cs.broadcastToRoom(p.RoomId, &ServerMessage{
		Type: TypeCodeChange,
		Data: CodeChangeData{
			UserId:    c.user.Id,
			Code:      p.Code,
			Selection: p.Selection,
			Timestamp: cs.now(),
		},
	}, c.user.Id)
}

// handleCursorPosition ignores updates from non-members: an in-flight
// message from a user who already left must not re-seed session state.
func (cs *CollabServer) handleCursorPosition(c *Client, p CursorPosition) {
	sess, ok := cs.sessions[p.RoomId]
	if !ok {
		return
	}
	if _, ok := cs.rooms[p.RoomId][c.user.Id]; !ok {
		return
	}

	now := cs.now()
	sess.cursors[c.user.Id] = cursorState{line: p.Line, column: p.Column, updatedAt: now}

	cs.broadcastToRoom(p.RoomId, &ServerMessage{
		Type: TypeCursorPosition,
		Data: CursorPositionData{UserId: c.user.Id, Line: p.Line, Column: p.Column, Timestamp: now},
	}, c.user.Id)
}

func (cs *CollabServer) handleTypingIndicator(c *Client, p TypingIndicator) {
	sess, ok := cs.sessions[p.RoomId]
	if !ok {
		return
	}
	if _, ok := cs.rooms[p.RoomId][c.user.Id]; !ok {
		return
	}

	if p.IsTyping {
		sess.typing[c.user.Id] = struct{}{}
	} else {
		delete(sess.typing, c.user.Id)
	}

	cs.broadcastToRoom(p.RoomId, &ServerMessage{
		Type: TypeTypingIndicator,
		Data: TypingIndicatorData{
			UserId:      c.user.Id,
			IsTyping:    p.IsTyping,
			TypingUsers: memberIds(sess.typing),
		},
	}, c.user.Id)
}

// handleChatMessage fans the message out to the whole room, sender
// included. Chat is not persisted.
func (cs *CollabServer) handleChatMessage(c *Client, p ChatMessage) {
	cs.broadcastToRoom(p.RoomId, &ServerMessage{
		Type: TypeChatMessage,
		Data: ChatMessageData{UserId: c.user.Id, Message: p.Message, Timestamp: cs.now()},
	}, 0)
}

func (cs *CollabServer) handleStartInterview(c *Client, p StartInterview) {
	sess, ok := cs.sessions[p.RoomId]
	if !ok {
		return
	}

	now := cs.now()
	sess.interview = &interviewState{
		questionId:    p.QuestionId,
		interviewType: p.InterviewType,
		startTime:     now,
	}

	cs.broadcastToRoom(p.RoomId, &ServerMessage{
		Type: TypeInterviewStarted,
		Data: InterviewStartedData{
			RoomId:        p.RoomId,
			QuestionId:    p.QuestionId,
			InterviewType: p.InterviewType,
			Participants:  memberIds(cs.rooms[p.RoomId]),
			StartTime:     now,
			Status:        "active",
		},
	}, 0)
}

// handleEndInterview reports the interview results to all members and then
// tears the room down. The code-change count is the real per-session
// counter of applied code_change events.
func (cs *CollabServer) handleEndInterview(c *Client, p EndInterview) {
	sess, ok := cs.sessions[p.RoomId]
	if !ok {
		return
	}

	now := cs.now()
	var duration time.Duration
	if sess.interview != nil {
		duration = now.Sub(sess.interview.startTime)
	}

	cs.broadcastToRoom(p.RoomId, &ServerMessage{
		Type: TypeInterviewEnded,
		Data: InterviewEndedData{
			RoomId:           p.RoomId,
			Duration:         duration.Milliseconds(),
			ParticipantCount: len(cs.rooms[p.RoomId]),
			CodeChanges:      sess.codeChanges,
			Feedback:         p.Feedback,
			CompletedAt:      now,
		},
	}, 0)

	cs.deleteRoom(p.RoomId)
}

// sendToUser delivers a message to a single user, best-effort: a departed
// user or a full send queue drops the message silently.
func (cs *CollabServer) sendToUser(userId int, msg *ServerMessage) {
	c, ok := cs.clients[userId]
	if !ok {
		return
	}

	if c.queueMessage(msg) {
		cs.stats.Incr(stats.MessagesSent)
	}
}

// broadcastToRoom fans a message out to every current member of the room
// except excludeUserId. Zero means no exclusion; account ids start at 1.
func (cs *CollabServer) broadcastToRoom(roomId string, msg *ServerMessage, excludeUserId int) {
	members, ok := cs.rooms[roomId]
	if !ok {
		return
	}

	for userId := range members {
		if userId == excludeUserId {
			continue
		}
		cs.sendToUser(userId, msg)
	}
}

func (cs *CollabServer) broadcastAll(msg *ServerMessage) {
	for userId := range cs.clients {
		cs.sendToUser(userId, msg)
	}
}

// evictIdle closes every connection whose last activity is older than the
// idle threshold, then runs the ordinary disconnect cleanup for it.
func (cs *CollabServer) evictIdle() {
	now := cs.now()
	for userId, c := range cs.clients {
		if now.Sub(c.lastActivity) > cs.idleTimeout {
			cs.log.Printf("evicting idle connection for user %d", userId)
			c.closeWith(CloseIdleTimeout, "idle timeout")
			cs.removeClient(c)
		}
	}
}

func memberIds(members map[int]struct{}) []int {
	ids := make([]int, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func closeConn(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	conn.Close()
}
