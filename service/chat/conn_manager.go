package chat

import (
	"sync"
	"time"

	"github.com/affanraza84/Chatting-App/tools/safe"
)

// ===== config =====

type ManagerConf struct {
	SweepEvery time.Duration // how often closed handles are purged; <=0 disables
}

// ConnManager tracks every open connection, anonymous ones included.
// It is the target set of presence broadcasts.
type ConnManager struct {
	mu    sync.RWMutex
	conns map[string]Handle // conn id -> handle

	conf      ManagerConf
	stopOnce  sync.Once
	stopCh    chan struct{}
	sweepDone chan struct{} // closed when the sweeper exits; nil without one
}

func NewConnManager(conf ManagerConf) *ConnManager {
	m := &ConnManager{
		conns:  make(map[string]Handle),
		conf:   conf,
		stopCh: make(chan struct{}),
	}
	if conf.SweepEvery > 0 {
		m.sweepDone = make(chan struct{})
		safe.Go("conns.sweeper", m.sweeper)
	}
	return m
}

func (m *ConnManager) Add(h Handle) {
	m.mu.Lock()
	m.conns[h.ID()] = h
	m.mu.Unlock()
}

// Remove drops h; it reports whether h was tracked.
func (m *ConnManager) Remove(h Handle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.conns[h.ID()]; !ok || cur != h {
		return false
	}
	delete(m.conns, h.ID())
	return true
}

// List returns the open handles at one instant.
func (m *ConnManager) List() []Handle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Handle, 0, len(m.conns))
	for _, h := range m.conns {
		if !h.Closed() {
			out = append(out, h)
		}
	}
	return out
}

func (m *ConnManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}

// Stop ends the sweeper and waits for it to exit. Safe to call twice.
func (m *ConnManager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	if m.sweepDone != nil {
		<-m.sweepDone
	}
}

// CloseAll stops the sweeper and closes every handle.
func (m *ConnManager) CloseAll() {
	m.Stop()

	m.mu.Lock()
	all := m.conns
	m.conns = make(map[string]Handle)
	m.mu.Unlock()

	for _, h := range all {
		h.Close()
	}
}

// sweep purges handles that closed without being removed.
func (m *ConnManager) sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, h := range m.conns {
		if h.Closed() {
			delete(m.conns, id)
			n++
		}
	}
	return n
}

func (m *ConnManager) sweeper() {
	defer close(m.sweepDone)
	t := time.NewTicker(m.conf.SweepEvery)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			m.sweep()
		case <-m.stopCh:
			return
		}
	}
}
