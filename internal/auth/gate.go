package auth

import (
	"context"
	"sync"
)

// outcome is what a finished validation publishes to its waiters.
type outcome struct {
	identity Identity
	err      error
}

// pendingValidation tracks one in-flight validation and the callers
// blocked on it. Waiter channels are buffered so publishing never blocks,
// and are kept in join order so results are delivered FIFO.
type pendingValidation struct {
	cancel     context.CancelFunc
	waiters    []chan outcome
	interested int
}

// gate ensures at most one in-flight validation per credential.
type gate struct {
	mu       sync.Mutex
	inflight map[string]*pendingValidation
}

func newGate() *gate {
	return &gate{inflight: make(map[string]*pendingValidation)}
}

// join registers interest in the validation for credential. The first
// caller becomes the owner: owner is true and runCtx is the context the
// owner's computation must use. That context is detached from any single
// caller's context and is cancelled only when no interested callers remain.
// Every caller, owner included, receives the result on ch.
func (g *gate) join(credential string) (ch chan outcome, owner bool, runCtx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ch = make(chan outcome, 1)

	if p, exists := g.inflight[credential]; exists {
		p.waiters = append(p.waiters, ch)
		p.interested++
		return ch, false, nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	p := &pendingValidation{
		cancel:     cancel,
		waiters:    []chan outcome{ch},
		interested: 1,
	}
	g.inflight[credential] = p
	return ch, true, runCtx
}

// publish delivers the result to every waiter in FIFO join order and
// removes the bookkeeping for credential.
func (g *gate) publish(credential string, result outcome) {
	g.mu.Lock()
	p, exists := g.inflight[credential]
	if !exists {
		g.mu.Unlock()
		return
	}
	delete(g.inflight, credential)
	waiters := p.waiters
	cancel := p.cancel
	g.mu.Unlock()

	cancel()
	for _, ch := range waiters {
		ch <- result
	}
}

// leave withdraws a caller whose context was cancelled while waiting.
// If it was the last interested caller, the in-flight validation itself
// is cancelled; otherwise the validation continues on behalf of the
// remaining waiters.
func (g *gate) leave(credential string, ch chan outcome) {
	g.mu.Lock()
	p, exists := g.inflight[credential]
	if !exists {
		// The result was already published; nothing to withdraw.
		g.mu.Unlock()
		return
	}
	for i, waiter := range p.waiters {
		if waiter == ch {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			break
		}
	}
	p.interested--
	var cancel context.CancelFunc
	if p.interested <= 0 {
		delete(g.inflight, credential)
		cancel = p.cancel
	}
	g.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// pendingCount reports how many validations are currently in flight.
func (g *gate) pendingCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.inflight)
}
