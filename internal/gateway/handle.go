package gateway

import (
	"sync"

	"github.com/bjo163/wagate/internal/domain"
)

// Handle is the in-memory state of one session. The generation counter
// fences stale reconnect timers and event loops after a handle has
// been replaced or torn down.
type Handle struct {
	mu         sync.Mutex
	key        SessionKey
	transport  Transport
	saveCreds  SaveCredentials
	status     string
	qr         string
	identity   *Identity
	generation uint64
}

func newHandle(key SessionKey, generation uint64) *Handle {
	return &Handle{key: key, status: domain.InstanceInitializing, generation: generation}
}

// Snapshot is a point-in-time copy of handle state safe to hand out
type Snapshot struct {
	Key      SessionKey
	Status   string
	QR       string
	Identity *Identity
}

func (h *Handle) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Snapshot{Key: h.key, Status: h.status, QR: h.qr, Identity: h.identity}
}

func (h *Handle) Status() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

func (h *Handle) Generation() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.generation
}

func (h *Handle) setStatus(status string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = status
}

// setQR records a fresh pairing image and clears any stale identity
func (h *Handle) setQR(qr string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.qr = qr
	h.status = domain.InstanceQRGenerated
	h.identity = nil
}

// setConnected clears the pairing image; it is single use and invalid
// once paired
func (h *Handle) setConnected(id *Identity) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = domain.InstanceConnected
	h.qr = ""
	h.identity = id
}

func (h *Handle) setTransport(t Transport, save SaveCredentials) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.transport = t
	h.saveCreds = save
}

func (h *Handle) getTransport() Transport {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.transport
}

func (h *Handle) getSaveCreds() SaveCredentials {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.saveCreds
}

func (h *Handle) getIdentity() *Identity {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.identity
}
