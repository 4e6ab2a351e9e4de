// Package network provides the reachability check the auto-settlement loop
// polls before attempting to talk to the ledger.
package network

import (
	"context"
	"sync"
	"time"

	"github.com/mezonai/mmn-wallet/ledger"
	"github.com/mezonai/mmn-wallet/logx"
)

// Status reports whether the ledger endpoint is currently reachable.
type Status interface {
	IsReachable() bool
}

// Monitor probes the node's head slot with a short timeout and caches the
// result for ttl so a 30-second settlement loop does not hammer the node.
type Monitor struct {
	lgr          ledger.Ledger
	probeTimeout time.Duration
	ttl          time.Duration

	mu        sync.Mutex
	lastProbe time.Time
	reachable bool
}

var _ Status = (*Monitor)(nil)

func NewMonitor(lgr ledger.Ledger) *Monitor {
	return &Monitor{
		lgr:          lgr,
		probeTimeout: 5 * time.Second,
		ttl:          10 * time.Second,
	}
}

func (m *Monitor) IsReachable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if time.Since(m.lastProbe) < m.ttl {
		return m.reachable
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.probeTimeout)
	defer cancel()

	_, err := m.lgr.CurrentSlot(ctx)
	m.lastProbe = time.Now()
	m.reachable = err == nil
	if err != nil {
		logx.Debug("NETWORK", "node unreachable: ", err)
	}
	return m.reachable
}

// Always is a Status that always reports the given value. Used in tests.
type Always bool

func (a Always) IsReachable() bool { return bool(a) }
