package ranking

import (
	"context"
	"sync"
	"time"

	"github.com/ShipLog-Showcase/showcase-backend/internal/session"
)

// Views keeps one Engine per signed-in user for as long as their gallery
// page stays in use. Anonymous viewers get a fresh engine per request.
type Views struct {
	gateway Gateway
	opts    Options
	ttl     time.Duration
	now     func() time.Time

	mu    sync.Mutex
	views map[string]*view
}

type view struct {
	engine   *Engine
	session  *session.Session
	unwatch  func()
	lastUsed time.Time
}

func NewViews(gateway Gateway, opts Options, ttl time.Duration) *Views {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Views{
		gateway: gateway,
		opts:    opts,
		ttl:     ttl,
		now:     time.Now,
		views:   make(map[string]*view),
	}
}

// Acquire returns the engine for id, loading it if it has never loaded.
// A nil id yields an anonymous, freshly loaded engine.
func (v *Views) Acquire(ctx context.Context, id *session.Identity) (*Engine, error) {
	eng, fresh := v.lookup(id)
	if fresh || !eng.Loaded() {
		return eng, eng.Load(ctx)
	}
	return eng, nil
}

// Refresh always reloads, as happens on navigation to the gallery.
func (v *Views) Refresh(ctx context.Context, id *session.Identity) (*Engine, error) {
	eng, _ := v.lookup(id)
	return eng, eng.Load(ctx)
}

func (v *Views) lookup(id *session.Identity) (eng *Engine, fresh bool) {
	if id == nil || id.UserID == "" {
		return NewEngine(v.gateway, nil, v.opts), true
	}

	v.mu.Lock()
	vw, ok := v.views[id.UserID]
	if ok && v.now().Sub(vw.lastUsed) > v.ttl {
		vw.unwatch()
		delete(v.views, id.UserID)
		ok = false
	}
	if !ok {
		sess := session.New(nil)
		sess.Assume(id)
		ne := NewEngine(v.gateway, sess, v.opts)
		vw = &view{engine: ne, session: sess, unwatch: ne.Watch(sess)}
		v.views[id.UserID] = vw
	}
	vw.lastUsed = v.now()
	v.mu.Unlock()

	vw.session.Assume(id)
	return vw.engine, !ok
}

func (v *Views) Discard(userID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if vw, ok := v.views[userID]; ok {
		vw.unwatch()
		delete(v.views, userID)
	}
}

// Sweep drops views idle for longer than the TTL and returns how many.
func (v *Views) Sweep() int {
	v.mu.Lock()
	defer v.mu.Unlock()

	n := 0
	now := v.now()
	for k, vw := range v.views {
		if now.Sub(vw.lastUsed) > v.ttl {
			vw.unwatch()
			delete(v.views, k)
			n++
		}
	}
	return n
}

func (v *Views) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.views)
}
