package build

import (
	"sync"

	"github.com/ckeiituk/iplist-bot/internal/model"
)

// Ledger is the keyed store of notifications deferred until CI completes.
// Keys are commit SHAs; Add with a present key overwrites (last write wins).
type Ledger interface {
	Add(sha string, pending model.PendingBuild)
	Pop(sha string) (model.PendingBuild, bool)
	Get(sha string) (model.PendingBuild, bool)
	Keys() []string
}

// MemoryLedger holds pending builds for the process lifetime. Entries are
// lost on restart; that data-loss boundary is accepted, not worked around.
type MemoryLedger struct {
	mu     sync.RWMutex
	builds map[string]model.PendingBuild
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{builds: make(map[string]model.PendingBuild)}
}

func (l *MemoryLedger) Add(sha string, pending model.PendingBuild) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.builds[sha] = pending
}

func (l *MemoryLedger) Pop(sha string) (model.PendingBuild, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pending, ok := l.builds[sha]
	if ok {
		delete(l.builds, sha)
	}
	return pending, ok
}

func (l *MemoryLedger) Get(sha string) (model.PendingBuild, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	pending, ok := l.builds[sha]
	return pending, ok
}

func (l *MemoryLedger) Keys() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	keys := make([]string, 0, len(l.builds))
	for sha := range l.builds {
		keys = append(keys, sha)
	}
	return keys
}
