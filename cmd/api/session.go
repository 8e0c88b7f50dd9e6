package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"marketplace/pkg/market"
)

const sessionCookie = "session_id"

var errNoSession = errors.New("no session")

// session binds a logged-in buyer to the cart created at login.
type session struct {
	ID    string
	Buyer string
	Cart  market.CartID
}

type sessionStore interface {
	save(ctx context.Context, sess session) error
	load(ctx context.Context, id string) (session, error)
	end(ctx context.Context, id string) error
}

// redisSessions keeps sessions in Redis as "session:<id>" -> "<cart>:<buyer>".
type redisSessions struct {
	rdb *redis.Client
	ttl time.Duration
}

func (s *redisSessions) key(id string) string {
	return "session:" + id
}

func (s *redisSessions) save(ctx context.Context, sess session) error {
	v := strconv.Itoa(int(sess.Cart)) + ":" + sess.Buyer
	return s.rdb.Set(ctx, s.key(sess.ID), v, s.ttl).Err()
}

func (s *redisSessions) load(ctx context.Context, id string) (session, error) {
	v, err := s.rdb.Get(ctx, s.key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return session{}, errNoSession
	}
	if err != nil {
		return session{}, err
	}
	cart, buyer, ok := strings.Cut(v, ":")
	n, err := strconv.Atoi(cart)
	if !ok || err != nil {
		return session{}, fmt.Errorf("malformed session %q", id)
	}
	return session{ID: id, Buyer: buyer, Cart: market.CartID(n)}, nil
}

func (s *redisSessions) end(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, s.key(id)).Err()
}

type sessionKey struct{}

func sessionFrom(ctx context.Context) session {
	return ctx.Value(sessionKey{}).(session)
}

// authMiddleware ensures a valid session exists.
func authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(sessionCookie)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		sess, err := sessions.load(r.Context(), c.Value)
		if err != nil {
			if !errors.Is(err, errNoSession) {
				log.Error(r.Context(), "load session", "error", err)
			}
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), sessionKey{}, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// cartGuards hands out one mutex per cart. A cart must be driven by a
// single caller at a time, and HTTP requests of one session may overlap.
// Carts are never torn down, so neither are their mutexes. A cart whose
// order was placed stays closed for every request still queued on it.
type cartGuards struct {
	mu     sync.Mutex
	m      map[market.CartID]*sync.Mutex
	placed map[market.CartID]bool
}

func newCartGuards() *cartGuards {
	return &cartGuards{
		m:      make(map[market.CartID]*sync.Mutex),
		placed: make(map[market.CartID]bool),
	}
}

func (g *cartGuards) lock(id market.CartID) func() {
	g.mu.Lock()
	l, ok := g.m[id]
	if !ok {
		l = &sync.Mutex{}
		g.m[id] = l
	}
	g.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// close marks the cart's order as placed. Callers hold the cart's mutex.
func (g *cartGuards) close(id market.CartID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.placed[id] = true
}

func (g *cartGuards) closed(id market.CartID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.placed[id]
}

// cartGuardMiddleware serializes requests per cart and turns away those
// that reach a cart after its order was placed.
func cartGuardMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := sessionFrom(r.Context()).Cart
		unlock := guards.lock(id)
		defer unlock()
		if guards.closed(id) {
			http.Error(w, "order already placed", http.StatusConflict)
			return
		}
		next.ServeHTTP(w, r)
	})
}
