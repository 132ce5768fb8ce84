package gateway

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"github.com/bjo163/wagate/internal/domain"
	"github.com/bjo163/wagate/internal/store"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
)

const statusTopic = "gateway:status"

// statusChange is a durable status checkpoint queued on the event bus.
// Upsert means the instance row must exist afterwards even if it was
// never written before, used on the connect path.
type statusChange struct {
	Key    SessionKey
	Status string
	Upsert bool
}

// Options configures a Manager
type Options struct {
	SessionDir     string
	PairTimeout    time.Duration
	ReconnectDelay time.Duration
	MaxReconnects  int
}

// Manager owns the session lifecycle: pairing, reconnection, teardown
// and the durable trail each session leaves in the database.
type Manager struct {
	dialer    Dialer
	registry  *Registry
	tenants   store.TenantRepository
	instances store.InstanceRepository
	messages  store.MessageRepository
	super     *Supervisor
	bus       evbus.Bus
	node      *snowflake.Node

	sessionDir  string
	pairTimeout time.Duration
	genCounter  uint64
	closed      atomic.Bool
	dialLocks   sync.Map // SessionKey -> *sync.Mutex
}

func NewManager(dialer Dialer,
	tenants store.TenantRepository,
	instances store.InstanceRepository,
	messages store.MessageRepository,
	opts Options) (*Manager, error) {
	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, err
	}
	if opts.PairTimeout <= 0 {
		opts.PairTimeout = 30 * time.Second
	}
	m := &Manager{
		dialer:      dialer,
		registry:    NewRegistry(),
		tenants:     tenants,
		instances:   instances,
		messages:    messages,
		super:       NewSupervisor(opts.ReconnectDelay, opts.MaxReconnects),
		bus:         evbus.New(),
		node:        node,
		sessionDir:  opts.SessionDir,
		pairTimeout: opts.PairTimeout,
	}
	// transactional keeps status writes for a session in publish order
	if err := m.bus.SubscribeAsync(statusTopic, m.persistStatus, true); err != nil {
		return nil, err
	}
	return m, nil
}

// persistStatus runs on the bus worker. Database trouble here never
// disturbs the live session, it only costs a checkpoint.
func (m *Manager) persistStatus(ch statusChange) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var err error
	if ch.Upsert {
		tenant, terr := m.tenants.Upsert(ctx, ch.Key.Token, "")
		if terr != nil {
			err = terr
		} else {
			_, err = m.instances.Upsert(ctx, tenant.ID, ch.Key.InstanceID, ch.Status)
		}
	} else {
		err = m.instances.UpdateStatus(ctx, ch.Key.Token, ch.Key.InstanceID, ch.Status)
	}
	if err != nil {
		zap.L().Warn("persist instance status failed",
			zap.String("namespace", "gateway"),
			zap.String("session", ch.Key.String()),
			zap.String("status", ch.Status),
			zap.Error(err))
	}
}

func (m *Manager) publishStatus(key SessionKey, status string, upsert bool) {
	m.bus.Publish(statusTopic, statusChange{Key: key, Status: status, Upsert: upsert})
}

// Flush blocks until queued status checkpoints have been written
func (m *Manager) Flush() {
	m.bus.WaitAsync()
}

func (m *Manager) credentialDir(key SessionKey) string {
	return filepath.Join(m.sessionDir, key.String())
}

// dialLock serializes dial and teardown per key so two concurrent
// pairing requests can never hold two open transports for one session
func (m *Manager) dialLock(key SessionKey) *sync.Mutex {
	v, _ := m.dialLocks.LoadOrStore(key, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// LiveCount reports the number of live handles
func (m *Manager) LiveCount() int {
	return m.registry.Len()
}

// StartSession dials a session for the key, tearing down any existing
// handle first so a retry always gets a clean transport. It blocks
// until pairing yields a QR code or an open connection.
func (m *Manager) StartSession(ctx context.Context, token, instanceID string) (*PairResult, error) {
	key, err := NewSessionKey(token, instanceID)
	if err != nil {
		return nil, err
	}

	lock := m.dialLock(key)
	lock.Lock()
	if old, ok := m.registry.Remove(key); ok {
		if t := old.getTransport(); t != nil {
			t.Terminate()
		}
	}

	waiter := newPairWaiter()
	if _, derr := m.dial(key, 0, waiter); derr != nil {
		m.registry.Remove(key)
		m.publishStatus(key, domain.InstanceDisconnected, false)
		lock.Unlock()
		return nil, derr
	}
	lock.Unlock()
	return waiter.wait(ctx, m.pairTimeout, key)
}

// dial opens a transport for the key and starts its event loop. On an
// open failure the fresh handle stays registered; the caller owns the
// retry-or-remove decision. The dial lock for key must be held. waiter
// may be nil on redials.
func (m *Manager) dial(key SessionKey, attempt int, waiter *pairWaiter) (uint64, error) {
	gen := atomic.AddUint64(&m.genCounter, 1)
	h := newHandle(key, gen)
	m.registry.Put(key, h)
	m.publishStatus(key, h.Status(), false)

	dialCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	transport, saveCreds, err := m.dialer.Open(dialCtx, m.credentialDir(key))
	if err != nil {
		return gen, NewError(KindTransient, "open session transport", key.Token, key.InstanceID, err)
	}

	h.setTransport(transport, saveCreds)
	h.setStatus(domain.InstanceConnecting)
	m.publishStatus(key, domain.InstanceConnecting, false)

	go m.eventLoop(h, gen, attempt, waiter)
	return gen, nil
}

// eventLoop consumes transport events for one dial generation
func (m *Manager) eventLoop(h *Handle, gen uint64, attempt int, waiter *pairWaiter) {
	key := h.key
	log := zap.L().With(
		zap.String("namespace", "gateway"),
		zap.String("session", key.String()))

	for ev := range h.getTransport().Events() {
		if m.staleGeneration(key, gen) {
			log.Debug("dropping event for superseded session")
			return
		}
		switch {
		case ev.QR != "":
			img, err := renderPairingImage(ev.QR)
			if err != nil {
				log.Error("render pairing image failed", zap.Error(err))
				continue
			}
			h.setQR(img)
			m.publishStatus(key, domain.InstanceQRGenerated, false)
			log.Info("pairing code issued")
			if waiter != nil {
				waiter.resolve(&PairResult{InstanceID: key.InstanceID, QR: img})
			}

		case ev.State == StateOpen:
			id := ev.Identity
			if id == nil {
				id = &Identity{}
			}
			if id.Phone == "" {
				id.Phone = phoneFromID(id.ID)
			}
			h.setConnected(id)
			if save := h.getSaveCreds(); save != nil {
				if err := save(); err != nil {
					log.Warn("save credentials failed", zap.Error(err))
				}
			}
			m.publishStatus(key, domain.InstanceConnected, true)
			attempt = 0
			log.Info("session connected")
			if waiter != nil {
				waiter.resolve(&PairResult{InstanceID: key.InstanceID, Connected: true, Identity: id})
			}

		case ev.State == StateClose:
			m.handleClose(h, gen, attempt, ev.Reason, waiter, log)
			return
		}
	}
}

// handleClose applies the supervision decision for a closed session
func (m *Manager) handleClose(h *Handle, gen uint64, attempt int, reason *CloseReason, waiter *pairWaiter, log *zap.Logger) {
	key := h.key
	if m.staleGeneration(key, gen) {
		return
	}

	delay, retry := m.super.Assess(reason, attempt)
	if !retry || m.closed.Load() {
		h.setStatus(domain.InstanceDisconnected)
		m.publishStatus(key, domain.InstanceDisconnected, false)
		if reason.Terminal() {
			log.Info("session logged out, not reconnecting")
			if waiter != nil {
				waiter.fail(NewError(KindLoggedOut, "session was logged out", key.Token, key.InstanceID, nil))
			}
			return
		}
		log.Warn("session closed, reconnect attempts exhausted", zap.Int("attempts", attempt))
		if waiter != nil {
			waiter.fail(NewError(KindTransient, "session closed", key.Token, key.InstanceID, nil))
		}
		return
	}

	h.setStatus(domain.InstanceConnecting)
	m.publishStatus(key, domain.InstanceConnecting, false)
	log.Info("session closed, scheduling reconnect",
		zap.Int("code", closeCode(reason)),
		zap.Int("attempt", attempt+1),
		zap.Duration("delay", delay))

	m.scheduleRedial(key, gen, attempt+1, delay, waiter, log)
}

// scheduleRedial arms a timer for the next dial attempt. gen fences
// the timer: a handle replaced or removed in the meantime makes it a
// no-op.
func (m *Manager) scheduleRedial(key SessionKey, gen uint64, attempt int, delay time.Duration, waiter *pairWaiter, log *zap.Logger) {
	time.AfterFunc(delay, func() {
		lock := m.dialLock(key)
		lock.Lock()
		defer lock.Unlock()
		if m.staleGeneration(key, gen) || m.closed.Load() {
			return
		}
		m.redial(key, attempt, waiter, log)
	})
}

// redial runs one supervised dial attempt. An open failure counts
// against the same attempt ceiling a close does, so a flapping
// transport cannot dodge the supervisor by failing before connecting.
// The dial lock for key must be held.
func (m *Manager) redial(key SessionKey, attempt int, waiter *pairWaiter, log *zap.Logger) {
	gen, err := m.dial(key, attempt, waiter)
	if err == nil {
		return
	}
	log.Warn("reconnect dial failed", zap.Int("attempt", attempt), zap.Error(err))

	delay, retry := m.super.Assess(nil, attempt)
	if !retry || m.closed.Load() {
		m.registry.Remove(key)
		m.publishStatus(key, domain.InstanceDisconnected, false)
		if waiter != nil {
			waiter.fail(NewError(KindTransient, "session closed", key.Token, key.InstanceID, nil))
		}
		return
	}
	if h, ok := m.registry.Get(key); ok {
		h.setStatus(domain.InstanceConnecting)
	}
	m.publishStatus(key, domain.InstanceConnecting, false)
	m.scheduleRedial(key, gen, attempt+1, delay, waiter, log)
}

// staleGeneration reports whether the handle for key has been replaced
// or removed since generation gen was issued
func (m *Manager) staleGeneration(key SessionKey, gen uint64) bool {
	cur, ok := m.registry.Get(key)
	if !ok {
		return true
	}
	return cur.Generation() != gen
}

func closeCode(r *CloseReason) int {
	if r == nil {
		return 0
	}
	return r.Code
}

// phoneFromID derives the bare phone number from a device id of the
// form number:device@server
func phoneFromID(id string) string {
	for i := 0; i < len(id); i++ {
		if id[i] == ':' || id[i] == '@' {
			return id[:i]
		}
	}
	return id
}

// CreateOrResume is the single-call pairing entry point. A tenant with
// a connected instance gets that instance back; anyone else gets a
// fresh instance dialed for pairing.
func (m *Manager) CreateOrResume(ctx context.Context, token string) (*PairResult, error) {
	if token == "" {
		return nil, NewError(KindValidation, "token is required", token, "", nil)
	}
	tenant, err := m.tenants.Upsert(ctx, token, "")
	if err != nil {
		return nil, NewError(KindPersistence, "upsert tenant", token, "", err)
	}

	if inst, err := m.instances.GetLatestByStatus(ctx, token, domain.InstanceConnected); err == nil {
		key := SessionKey{Token: token, InstanceID: inst.InstanceId}
		if h, ok := m.registry.Get(key); ok && h.Status() == domain.InstanceConnected {
			return &PairResult{
				InstanceID: inst.InstanceId,
				Connected:  true,
				Identity:   h.getIdentity(),
			}, nil
		}
		// durable row says connected but no live session, restart it
		return m.StartSession(ctx, token, inst.InstanceId)
	}

	instanceID := "instance_" + m.node.Generate().String()
	if _, err := m.instances.Upsert(ctx, tenant.ID, instanceID, domain.InstanceInitializing); err != nil {
		return nil, NewError(KindPersistence, "create instance", token, instanceID, err)
	}
	return m.StartSession(ctx, token, instanceID)
}

// GetStatus reports the live status when a handle exists, falling back
// to the durable row. An empty instance id resolves to the tenant's
// most recent connected instance.
func (m *Manager) GetStatus(ctx context.Context, token, instanceID string) (*Snapshot, error) {
	if token != "" && instanceID == "" {
		inst, err := m.instances.GetLatestByStatus(ctx, token, domain.InstanceConnected)
		if err != nil {
			return nil, NewError(KindNotFound, "no connected instance for tenant", token, "", err)
		}
		instanceID = inst.InstanceId
	}
	key, err := NewSessionKey(token, instanceID)
	if err != nil {
		return nil, err
	}
	if h, ok := m.registry.Get(key); ok {
		snap := h.Snapshot()
		return &snap, nil
	}
	inst, err := m.instances.Get(ctx, token, instanceID)
	if err != nil {
		return nil, NewError(KindNotFound, "instance not found", token, instanceID, err)
	}
	return &Snapshot{Key: key, Status: inst.Status}, nil
}

// InstanceView is an instance row overlaid with its live status
type InstanceView struct {
	InstanceID string    `json:"instance_id"`
	Status     string    `json:"status"`
	Live       bool      `json:"live"`
	Identity   *Identity `json:"identity,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ListInstances returns a tenant's instances. The live registry wins
// over the persisted status wherever a handle exists.
func (m *Manager) ListInstances(ctx context.Context, token string) ([]InstanceView, error) {
	if token == "" {
		return nil, NewError(KindValidation, "token is required", token, "", nil)
	}
	rows, err := m.instances.ListForTenant(ctx, token)
	if err != nil {
		return nil, NewError(KindPersistence, "list instances", token, "", err)
	}
	views := make([]InstanceView, 0, len(rows))
	for _, row := range rows {
		v := InstanceView{InstanceID: row.InstanceId, Status: row.Status, CreatedAt: row.CreatedAt}
		if h, ok := m.registry.Get(SessionKey{Token: token, InstanceID: row.InstanceId}); ok {
			snap := h.Snapshot()
			v.Status = snap.Status
			v.Live = true
			v.Identity = snap.Identity
		}
		views = append(views, v)
	}
	return views, nil
}

// Send delivers a text message through a connected session and records
// it in the message log.
func (m *Manager) Send(ctx context.Context, token, instanceID, to, body string) error {
	key, err := NewSessionKey(token, instanceID)
	if err != nil {
		return err
	}
	if to == "" || body == "" {
		return NewError(KindValidation, "number and message are required", token, instanceID, nil)
	}

	h, ok := m.registry.Get(key)
	if !ok || h.Status() != domain.InstanceConnected {
		return NewError(KindNotConnected, "instance is not connected", token, instanceID, nil)
	}
	if err := h.getTransport().Send(ctx, to, body); err != nil {
		return NewError(KindTransient, "send message", token, instanceID, err)
	}

	from := "system"
	if id := h.getIdentity(); id != nil && id.ID != "" {
		from = id.ID
	}
	if inst, gerr := m.instances.Get(ctx, token, instanceID); gerr == nil {
		if ierr := m.messages.Insert(ctx, inst.ID, from, to, body, "text"); ierr != nil {
			zap.L().Warn("record sent message failed",
				zap.String("namespace", "gateway"),
				zap.String("session", key.String()),
				zap.Error(ierr))
		}
	} else {
		zap.L().Warn("sent message has no durable instance row",
			zap.String("namespace", "gateway"),
			zap.String("session", key.String()),
			zap.Error(gerr))
	}
	return nil
}

// Messages lists the message log for a tenant
func (m *Manager) Messages(ctx context.Context, token, instanceID string, limit, offset int) ([]*MessageView, int64, error) {
	if token == "" {
		return nil, 0, NewError(KindValidation, "token is required", token, instanceID, nil)
	}
	rows, total, err := m.messages.ListForTenant(ctx, token, instanceID, limit, offset)
	if err != nil {
		return nil, 0, NewError(KindPersistence, "list messages", token, instanceID, err)
	}
	views := make([]*MessageView, 0, len(rows))
	for _, row := range rows {
		views = append(views, &MessageView{
			ID:        row.ID,
			From:      row.FromUser,
			To:        row.ToUser,
			Body:      row.Body,
			MsgType:   row.MsgType,
			CreatedAt: row.CreatedAt,
		})
	}
	return views, total, nil
}

type MessageView struct {
	ID        int64     `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Body      string    `json:"body"`
	MsgType   string    `json:"msg_type"`
	CreatedAt time.Time `json:"created_at"`
}

// Disconnect tears a session down for good: upstream logout, handle
// removal, durable checkpoint and credential wipe.
func (m *Manager) Disconnect(ctx context.Context, token, instanceID string) error {
	key, err := NewSessionKey(token, instanceID)
	if err != nil {
		return err
	}

	lock := m.dialLock(key)
	lock.Lock()
	defer lock.Unlock()

	h, live := m.registry.Remove(key)
	if !live {
		if _, derr := m.instances.Get(ctx, token, instanceID); derr != nil {
			return NewError(KindNotFound, "instance not found", token, instanceID, derr)
		}
	}

	if live {
		if t := h.getTransport(); t != nil {
			if lerr := t.Logout(ctx); lerr != nil {
				zap.L().Warn("upstream logout failed, closing anyway",
					zap.String("namespace", "gateway"),
					zap.String("session", key.String()),
					zap.Error(lerr))
				t.Terminate()
			}
		}
	}

	m.publishStatus(key, domain.InstanceDisconnected, false)

	if dir := m.credentialDir(key); dir != m.sessionDir {
		if rerr := os.RemoveAll(dir); rerr != nil {
			zap.L().Warn("remove credential dir failed",
				zap.String("namespace", "gateway"),
				zap.String("dir", dir),
				zap.Error(rerr))
		}
	}
	return nil
}

// RegisterTenant provisions a tenant token
func (m *Manager) RegisterTenant(ctx context.Context, token, name string) (int64, error) {
	if token == "" {
		return 0, NewError(KindValidation, "token is required", token, "", nil)
	}
	tenant, err := m.tenants.Upsert(ctx, token, name)
	if err != nil {
		return 0, NewError(KindPersistence, "upsert tenant", token, "", err)
	}
	return tenant.ID, nil
}

// Reconcile redials every instance the database believes is connected.
// Instances that fail to come back are checkpointed as disconnected so
// durable state converges on reality.
func (m *Manager) Reconcile(ctx context.Context) {
	refs, err := m.instances.GetByStatus(ctx, domain.InstanceConnected)
	if err != nil {
		zap.L().Error("load connected instances failed",
			zap.String("namespace", "gateway"), zap.Error(err))
		return
	}
	zap.L().Info("reconciling persisted sessions",
		zap.String("namespace", "gateway"),
		zap.Int("count", len(refs)))
	for _, ref := range refs {
		res, serr := m.StartSession(ctx, ref.Token, ref.InstanceId)
		if serr != nil || !res.Connected {
			zap.L().Warn("session did not resume",
				zap.String("namespace", "gateway"),
				zap.String("session", ref.Token+"_"+ref.InstanceId),
				zap.Error(serr))
			if uerr := m.instances.UpdateStatus(ctx, ref.Token, ref.InstanceId, domain.InstanceDisconnected); uerr != nil {
				zap.L().Warn("checkpoint disconnected failed",
					zap.String("namespace", "gateway"), zap.Error(uerr))
			}
		}
	}
}

// Close terminates every live transport and drains the status queue
func (m *Manager) Close() {
	m.closed.Store(true)
	var handles []*Handle
	m.registry.Range(func(key SessionKey, h *Handle) {
		handles = append(handles, h)
	})
	for _, h := range handles {
		m.registry.Remove(h.key)
		if t := h.getTransport(); t != nil {
			t.Terminate()
		}
	}
	m.bus.WaitAsync()
}
