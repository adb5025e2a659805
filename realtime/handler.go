package realtime

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/mmdatafocus/kitchen_backend/config"
	"github.com/mmdatafocus/kitchen_backend/utils"
	"github.com/sirupsen/logrus"
)

const maxClientMessageBytes = 8 << 10

type clientMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

type AuthMessage struct {
	Type string `json:"type"`
	User User   `json:"user"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Authenticator turns an AUTH token into the user it identifies.
type Authenticator func(token string) (User, error)

// TokenAuthenticator validates the bearer JWTs issued by the auth service.
func TokenAuthenticator(token string) (User, error) {
	claim, err := utils.ClaimFromToken(token)
	if err != nil {
		return User{}, err
	}
	name := strings.TrimSpace(claim.FirstName + " " + claim.LastName)
	if name == "" {
		name = claim.Email
	}
	return User{Id: claim.ID, Name: name, Roles: claim.Roles}, nil
}

// Handler serves the /ws endpoint. A socket joins the registry only after a
// valid AUTH message and leaves it when the connection closes.
type Handler struct {
	Registry     *Registry
	Authenticate Authenticator
	Upgrader     websocket.Upgrader
	WriteTimeout time.Duration
	// SingleDevice evicts the user's sockets from other devices on AUTH.
	SingleDevice   func() bool
	AllowedOrigins []string
	Logger         *logrus.Logger
}

func NewHandler(registry *Registry) *Handler {
	settings := config.LoadSettings()
	h := &Handler{
		Registry:       registry,
		Authenticate:   TokenAuthenticator,
		WriteTimeout:   settings.RealtimeWriteTimeout,
		SingleDevice:   config.SingleDeviceSession,
		AllowedOrigins: settings.CorsAllowedOrigins,
		Logger:         config.GetLogger(),
	}
	h.Upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.AllowedOrigins) == 0 {
		return true
	}
	for _, o := range h.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

func (h *Handler) ServeWS(c *gin.Context) {
	conn, err := h.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the http error
		h.Logger.WithField("error", err.Error()).Info("websocket upgrade failed")
		return
	}
	h.serve(conn, ClientIP(c.Request), c.Request.UserAgent())
}

func (h *Handler) serve(conn *websocket.Conn, ip string, agent string) {
	socket := newWSSocket(conn, h.WriteTimeout)
	socketId := ""
	defer func() {
		if socketId != "" {
			h.Registry.Remove(socketId)
		}
		conn.Close()
	}()

	conn.SetReadLimit(maxClientMessageBytes)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				h.Logger.WithFields(logrus.Fields{"socket_id": socketId, "error": err.Error()}).Info("websocket closed")
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = socket.Send(ErrorMessage{Type: MessageTypeError, Message: "message must be a JSON object"})
			continue
		}
		if msg.Type != MessageTypeAuth {
			continue
		}

		user, err := h.Authenticate(msg.Token)
		if err != nil {
			_ = socket.Send(ErrorMessage{Type: MessageTypeError, Message: "unauthorized"})
			_ = socket.Close(ClosePolicyViolation, "Unauthorized")
			return
		}
		// re-AUTH on the same socket replaces the earlier registration
		if socketId != "" {
			h.Registry.Remove(socketId)
		}
		socketId = h.Registry.Add(user, socket, ip, agent)
		if h.SingleDevice != nil && h.SingleDevice() {
			h.Registry.EnforceSingleDevice(user.Id)
		}
		if err := socket.Send(AuthMessage{Type: MessageTypeAuth, User: user}); err != nil {
			config.LogError(h.Logger, "realtime", "serve", "send auth reply", socketId, err)
			return
		}
	}
}
