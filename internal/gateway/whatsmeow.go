package gateway

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"go.mau.fi/whatsmeow"
	waE2E "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	waTypes "go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
)

// WhatsmeowDialer opens sessions against WhatsApp via whatsmeow. Each
// session keeps its credentials in a sqlite file of its own so wiping
// one session never touches another.
type WhatsmeowDialer struct{}

func NewWhatsmeowDialer() *WhatsmeowDialer {
	return &WhatsmeowDialer{}
}

func (d *WhatsmeowDialer) Open(ctx context.Context, credentialDir string) (Transport, SaveCredentials, error) {
	if err := os.MkdirAll(credentialDir, 0o755); err != nil {
		return nil, nil, errors.Wrap(err, "create credential dir")
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on", filepath.Join(credentialDir, "session.db"))
	container, err := sqlstore.New("sqlite3", dsn, nil)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open credential store")
	}

	device, err := container.GetFirstDevice()
	if err != nil {
		return nil, nil, errors.Wrap(err, "load device credentials")
	}

	cli := whatsmeow.NewClient(device, nil)
	// our supervisor owns reconnection
	cli.EnableAutoReconnect = false

	t := &whatsmeowTransport{
		cli:    cli,
		events: make(chan ConnectionEvent, 16),
		done:   make(chan struct{}),
	}

	cli.AddEventHandler(t.translate)

	// An unpaired device gets the QR channel; it must be requested
	// before Connect.
	if cli.Store.ID == nil {
		qrChan, qerr := cli.GetQRChannel(context.Background())
		if qerr != nil {
			return nil, nil, errors.Wrap(qerr, "open qr channel")
		}
		go t.pumpQR(qrChan)
	}

	if err := cli.Connect(); err != nil {
		return nil, nil, errors.Wrap(err, "connect")
	}

	save := func() error {
		return device.Save()
	}
	return t, save, nil
}

type whatsmeowTransport struct {
	cli       *whatsmeow.Client
	events    chan ConnectionEvent
	done      chan struct{}
	closeOnce sync.Once

	mu     sync.RWMutex
	closed bool
}

func (t *whatsmeowTransport) Events() <-chan ConnectionEvent {
	return t.events
}

// emit holds the read lock across the send so Terminate cannot close
// the channel while a producer is parked on it
func (t *whatsmeowTransport) emit(ev ConnectionEvent) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return
	}
	select {
	case t.events <- ev:
	case <-t.done:
	}
}

func (t *whatsmeowTransport) pumpQR(qrChan <-chan whatsmeow.QRChannelItem) {
	for item := range qrChan {
		switch item.Event {
		case whatsmeow.QRChannelEventCode:
			t.emit(ConnectionEvent{QR: item.Code})
		case "timeout":
			t.emit(ConnectionEvent{State: StateClose, Reason: &CloseReason{Message: "pairing timed out"}})
		}
		// the success case is followed by events.Connected
	}
}

func (t *whatsmeowTransport) translate(evt interface{}) {
	switch e := evt.(type) {
	case *events.Connected:
		t.emit(ConnectionEvent{State: StateOpen, Identity: t.identity()})
	case *events.LoggedOut:
		zap.L().Info("whatsmeow reported logout",
			zap.String("namespace", "gateway"),
			zap.Int("reason", int(e.Reason)))
		t.emit(ConnectionEvent{State: StateClose, Reason: &CloseReason{
			Code:    CloseCodeLoggedOut,
			Message: e.Reason.String(),
		}})
	case *events.StreamReplaced:
		t.emit(ConnectionEvent{State: StateClose, Reason: &CloseReason{Message: "stream replaced"}})
	case *events.Disconnected:
		t.emit(ConnectionEvent{State: StateClose, Reason: &CloseReason{Message: "connection lost"}})
	}
}

func (t *whatsmeowTransport) identity() *Identity {
	id := &Identity{Name: t.cli.Store.PushName}
	if jid := t.cli.Store.ID; jid != nil {
		id.ID = jid.String()
		id.Phone = jid.User
	}
	return id
}

func (t *whatsmeowTransport) Send(ctx context.Context, dest, payload string) error {
	jid, err := destinationJID(dest)
	if err != nil {
		return err
	}
	_, err = t.cli.SendMessage(ctx, jid, &waE2E.Message{
		Conversation: proto.String(payload),
	})
	return errors.Wrap(err, "send message")
}

func (t *whatsmeowTransport) Logout(ctx context.Context) error {
	defer t.Terminate()
	return t.cli.Logout()
}

// Terminate closes the event channel so consumers ranging over it
// return. done is closed first to unpark any producer waiting on a
// full buffer; after the write lock flips closed, no producer can
// reach the channel again.
func (t *whatsmeowTransport) Terminate() {
	t.closeOnce.Do(func() {
		close(t.done)
		t.cli.RemoveEventHandlers()
		t.cli.Disconnect()
		t.mu.Lock()
		t.closed = true
		t.mu.Unlock()
		close(t.events)
	})
}

// destinationJID turns a raw phone number or full JID into a user JID.
// Bare numbers keep digits only.
func destinationJID(dest string) (waTypes.JID, error) {
	dest = strings.TrimSpace(dest)
	if strings.ContainsRune(dest, '@') {
		jid, err := waTypes.ParseJID(dest)
		if err != nil {
			return waTypes.EmptyJID, errors.Wrap(err, "parse destination jid")
		}
		return jid, nil
	}
	var digits strings.Builder
	for _, r := range dest {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return waTypes.EmptyJID, errors.New("destination number is empty")
	}
	return waTypes.NewJID(digits.String(), waTypes.DefaultUserServer), nil
}
