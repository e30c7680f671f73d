// Package host is an example embedding of the engine: a SYSCALL service
// table, a CALLT token table and pebble-backed per-script storage.
package host

import (
	"context"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/tliron/commonlog"
	"golang.org/x/crypto/blake2b"

	"github.com/chazu/stackvm/pkg/script"
	"github.com/chazu/stackvm/vm"
	"github.com/chazu/stackvm/vm/stackitem"
)

// Platform is the name pushed by System.Runtime.Platform.
const Platform = "stackvm"

// MaxLogSize bounds messages passed to System.Runtime.Log.
const MaxLogSize = 1024

// MethodID returns the SYSCALL operand for a service name: the first four
// bytes of its blake2b-256 digest, little-endian.
func MethodID(name string) uint32 {
	h := blake2b.Sum256([]byte(name))
	return binary.LittleEndian.Uint32(h[:4])
}

// Handler implements one service.
type Handler func(h *Host, e *vm.Engine) error

// Service is an entry in the SYSCALL table.
type Service struct {
	Name    string
	ID      uint32
	Handler Handler
}

// Notification is an event raised by System.Runtime.Notify.
type Notification struct {
	Script [32]byte
	Name   string
	State  stackitem.Item
}

// LogEntry is a message written by System.Runtime.Log.
type LogEntry struct {
	Script  [32]byte
	Message string
}

// Host dispatches SYSCALL and CALLT for an engine.
type Host struct {
	services map[uint32]Service
	tokens   *Tokens
	storage  *Storage
	log      commonlog.Logger

	logs          []LogEntry
	notifications []Notification
}

// New creates a host with the standard services. storage may be nil, in
// which case the storage services fail.
func New(storage *Storage) *Host {
	h := &Host{
		services: make(map[uint32]Service),
		tokens:   NewTokens(),
		storage:  storage,
		log:      commonlog.GetLogger("stackvm.host"),
	}
	for _, s := range standardServices {
		h.Register(s.Name, s.Handler)
	}
	return h
}

// Register adds or replaces a service.
func (h *Host) Register(name string, fn Handler) uint32 {
	id := MethodID(name)
	h.services[id] = Service{Name: name, ID: id, Handler: fn}
	return id
}

// Services lists the registered services by name.
func (h *Host) Services() []Service {
	out := make([]Service, 0, len(h.services))
	for _, s := range h.services {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ServiceName returns the name behind a method id, for disassembly.
func (h *Host) ServiceName(id uint32) (string, bool) {
	s, ok := h.services[id]
	return s.Name, ok
}

// Tokens returns the CALLT table.
func (h *Host) Tokens() *Tokens { return h.tokens }

// Storage returns the backing store, or nil.
func (h *Host) Storage() *Storage { return h.storage }

// Logs returns the messages logged by scripts.
func (h *Host) Logs() []LogEntry { return h.logs }

// Notifications returns the events raised by scripts.
func (h *Host) Notifications() []Notification { return h.notifications }

// Attach installs the host as e's SYSCALL handler and token loader.
func (h *Host) Attach(e *vm.Engine) {
	e.SetSysCallHandler(h)
	e.SetTokenLoader(h.tokens)
}

// Run executes s on e inside a storage transaction, committing on HALT and
// discarding on FAULT.
func (h *Host) Run(e *vm.Engine, s *script.Script) (vm.State, error) {
	return h.RunContext(context.Background(), e, s)
}

// RunContext is Run with cancellation through ctx.
func (h *Host) RunContext(ctx context.Context, e *vm.Engine, s *script.Script) (vm.State, error) {
	h.Attach(e)
	if h.storage != nil {
		if err := h.storage.Begin(); err != nil {
			return e.State(), err
		}
	}
	if _, err := e.LoadScript(s, -1, 0); err != nil {
		if h.storage != nil {
			h.storage.Discard()
		}
		return e.State(), err
	}
	state := e.ExecuteContext(ctx)
	if h.storage == nil {
		return state, nil
	}
	if state != vm.HALT {
		h.storage.Discard()
		return state, nil
	}
	return state, h.storage.Commit()
}

// OnSysCall implements vm.SysCallHandler.
func (h *Host) OnSysCall(e *vm.Engine, method uint32) error {
	s, ok := h.services[method]
	if !ok {
		return fmt.Errorf("%w: syscall 0x%08X", vm.ErrNotFound, method)
	}
	h.log.Debugf("syscall %s", s.Name)
	return s.Handler(h, e)
}

// currentScript returns the hash of the script making the call.
func currentScript(e *vm.Engine) [32]byte {
	return e.CurrentContext().Script().Hash()
}

func popBytes(e *vm.Engine, what string, max int) ([]byte, error) {
	item, err := e.Pop()
	if err != nil {
		return nil, err
	}
	b, err := item.TryBytes()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	if len(b) > max {
		return nil, &vm.CatchableError{Message: fmt.Sprintf("%s of %d bytes exceeds %d", what, len(b), max)}
	}
	return b, nil
}
