package realtime

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/kitchen_backend/config"
	"github.com/mmdatafocus/kitchen_backend/utils"
	"github.com/sirupsen/logrus"
)

const (
	MessageTypeAuth       = "AUTH"
	MessageTypeDisconnect = "DISCONNECT"
	MessageTypeError      = "ERROR"
)

// Close code and reason sent to sockets evicted by EnforceSingleDevice.
const (
	ClosePolicyViolation   = 1008
	DuplicateCloseReason   = "Duplicate connection"
	DuplicateDisconnectMsg = "New connection from same device detected"
)

// Socket is one live device connection. Send and Close may be called from
// any goroutine.
type Socket interface {
	Send(msg any) error
	Close(code int, reason string) error
}

type User struct {
	Id    string   `json:"id"`
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
}

func (u User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type DisconnectMessage struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type BroadcastResult struct {
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
}

type Stats struct {
	Users          int    `json:"users"`
	Sockets        int    `json:"sockets"`
	TotalDelivered uint64 `json:"totalDelivered"`
	TotalFailed    uint64 `json:"totalFailed"`
	TotalEvicted   uint64 `json:"totalEvicted"`
}

type SocketInfo struct {
	Id          string    `json:"id"`
	Ip          string    `json:"ip"`
	ClientAgent string    `json:"clientAgent"`
	ConnectedAt time.Time `json:"connectedAt"`
}

type ActiveUser struct {
	User
	Sockets []SocketInfo `json:"sockets"`
}

type connection struct {
	id          string
	socket      Socket
	ip          string
	agent       string
	connectedAt time.Time
}

// record holds one user's sockets, oldest first.
type record struct {
	user    User
	sockets []*connection
}

// Registry tracks the live sockets of every authenticated user in this
// process. It is empty after a restart; devices reconnect and re-authenticate.
type Registry struct {
	mu       sync.RWMutex
	records  map[string]*record
	socketOf map[string]string // socket id -> user id

	logger *logrus.Logger
	now    func() time.Time

	totalDelivered uint64
	totalFailed    uint64
	totalEvicted   uint64
}

func NewRegistry() *Registry {
	return &Registry{
		records:  make(map[string]*record),
		socketOf: make(map[string]string),
		logger:   config.GetLogger(),
		now:      time.Now,
	}
}

// Add registers socket for user and returns the id to remove it with later.
func (r *Registry) Add(user User, socket Socket, ip string, clientAgent string) string {
	conn := &connection{
		id:          uuid.NewString(),
		socket:      socket,
		ip:          ip,
		agent:       clientAgent,
		connectedAt: r.now().UTC(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[user.Id]
	if !ok {
		rec = &record{}
		r.records[user.Id] = rec
	}
	// the latest token wins for name and roles
	rec.user = user
	rec.sockets = append(rec.sockets, conn)
	r.socketOf[conn.id] = user.Id
	return conn.id
}

// Remove drops the socket and, with its last socket, the user's record.
// Unknown ids are ignored: a close can arrive before AUTH registered anything.
func (r *Registry) Remove(socketId string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(socketId)
}

func (r *Registry) removeLocked(socketId string) bool {
	userId, ok := r.socketOf[socketId]
	if !ok {
		return false
	}
	delete(r.socketOf, socketId)

	rec := r.records[userId]
	if rec == nil {
		return true
	}
	for i, c := range rec.sockets {
		if c.id == socketId {
			rec.sockets = append(rec.sockets[:i], rec.sockets[i+1:]...)
			break
		}
	}
	if len(rec.sockets) == 0 {
		delete(r.records, userId)
	}
	return true
}

// BroadcastToRole sends message to every socket of every user holding role.
// A failing socket is logged and counted; it does not stop the others.
func (r *Registry) BroadcastToRole(role string, message any) BroadcastResult {
	r.mu.RLock()
	var targets []*connection
	for _, rec := range r.records {
		if !rec.user.HasRole(role) {
			continue
		}
		targets = append(targets, rec.sockets...)
	}
	r.mu.RUnlock()

	var delivered, failed int64
	var wg sync.WaitGroup
	for _, c := range targets {
		wg.Add(1)
		go func(c *connection) {
			defer wg.Done()
			if err := c.socket.Send(message); err != nil {
				atomic.AddInt64(&failed, 1)
				config.LogError(r.logger, "realtime", "BroadcastToRole", "send to socket", map[string]string{
					"socket_id": c.id,
					"role":      role,
				}, utils.DeliveryFailure(err))
				return
			}
			atomic.AddInt64(&delivered, 1)
		}(c)
	}
	wg.Wait()

	atomic.AddUint64(&r.totalDelivered, uint64(delivered))
	atomic.AddUint64(&r.totalFailed, uint64(failed))
	return BroadcastResult{Delivered: int(delivered), Failed: int(failed)}
}

// EnforceSingleDevice keeps the user's newest socket and every socket sharing
// its (ip, client agent) fingerprint. The rest are told why, closed and
// removed. Returns how many sockets were evicted.
func (r *Registry) EnforceSingleDevice(userId string) int {
	r.mu.Lock()
	rec := r.records[userId]
	if rec == nil || len(rec.sockets) < 2 {
		r.mu.Unlock()
		return 0
	}
	newest := rec.sockets[len(rec.sockets)-1]
	var evicted []*connection
	for _, c := range rec.sockets {
		if c.ip != newest.ip || c.agent != newest.agent {
			evicted = append(evicted, c)
		}
	}
	for _, c := range evicted {
		r.removeLocked(c.id)
	}
	r.mu.Unlock()

	for _, c := range evicted {
		fields := map[string]string{"user_id": userId, "socket_id": c.id}
		if err := c.socket.Send(DisconnectMessage{Type: MessageTypeDisconnect, Reason: DuplicateDisconnectMsg}); err != nil {
			config.LogError(r.logger, "realtime", "EnforceSingleDevice", "send disconnect", fields, err)
		}
		if err := c.socket.Close(ClosePolicyViolation, DuplicateCloseReason); err != nil {
			config.LogError(r.logger, "realtime", "EnforceSingleDevice", "close socket", fields, err)
		}
	}
	atomic.AddUint64(&r.totalEvicted, uint64(len(evicted)))
	return len(evicted)
}

// ActiveUsers lists connected users ordered by id.
func (r *Registry) ActiveUsers() []ActiveUser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]ActiveUser, 0, len(r.records))
	for _, rec := range r.records {
		au := ActiveUser{User: rec.user, Sockets: make([]SocketInfo, 0, len(rec.sockets))}
		for _, c := range rec.sockets {
			au.Sockets = append(au.Sockets, SocketInfo{Id: c.id, Ip: c.ip, ClientAgent: c.agent, ConnectedAt: c.connectedAt})
		}
		users = append(users, au)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Id < users[j].Id })
	return users
}

func (r *Registry) Stats() Stats {
	r.mu.RLock()
	s := Stats{Users: len(r.records), Sockets: len(r.socketOf)}
	r.mu.RUnlock()

	s.TotalDelivered = atomic.LoadUint64(&r.totalDelivered)
	s.TotalFailed = atomic.LoadUint64(&r.totalFailed)
	s.TotalEvicted = atomic.LoadUint64(&r.totalEvicted)
	return s
}
