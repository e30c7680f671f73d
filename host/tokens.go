package host

import (
	"fmt"
	"sync"

	"github.com/chazu/stackvm/pkg/script"
	"github.com/chazu/stackvm/vm"
)

// Token is a CALLT target.
type Token struct {
	Script *script.Script
	// Offset is the entry position in Script.
	Offset int
	// ParamCount arguments are moved from the caller to the callee.
	ParamCount int
	// RVCount is the number of values the callee returns, -1 for any.
	RVCount int
}

// Tokens is the CALLT table. It implements vm.TokenLoader.
type Tokens struct {
	mu     sync.RWMutex
	tokens map[uint16]Token
}

// NewTokens creates an empty table.
func NewTokens() *Tokens {
	return &Tokens{tokens: make(map[uint16]Token)}
}

// Set binds id to t.
func (t *Tokens) Set(id uint16, tok Token) error {
	if tok.Script == nil {
		return fmt.Errorf("host: token %d has no script", id)
	}
	if tok.Offset < 0 || tok.Offset >= tok.Script.Len() {
		return fmt.Errorf("host: token %d offset %d out of range", id, tok.Offset)
	}
	if tok.ParamCount < 0 {
		return fmt.Errorf("host: token %d has negative parameter count", id)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tokens[id] = tok
	return nil
}

// Get returns the token bound to id.
func (t *Tokens) Get(id uint16) (Token, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	tok, ok := t.tokens[id]
	return tok, ok
}

// LoadToken implements vm.TokenLoader: it loads the token's script in a
// new context and moves ParamCount arguments onto its stack, keeping
// their order.
func (t *Tokens) LoadToken(e *vm.Engine, id uint16) error {
	tok, ok := t.Get(id)
	if !ok {
		return fmt.Errorf("%w: token %d", vm.ErrNotFound, id)
	}
	caller := e.CurrentContext()
	if caller.EvaluationStack().Len() < tok.ParamCount {
		return fmt.Errorf("%w: token %d needs %d arguments", vm.ErrInvalidOperation, id, tok.ParamCount)
	}
	ctx, err := e.LoadScript(tok.Script, tok.RVCount, tok.Offset)
	if err != nil {
		return err
	}
	caller.EvaluationStack().MoveTo(ctx.EvaluationStack(), tok.ParamCount)
	return nil
}
