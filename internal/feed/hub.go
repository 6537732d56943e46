// Package feed turns store change notifications into per-identity task list
// snapshots.
package feed

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/dordunu1/taskboard/internal/domain"
	"github.com/dordunu1/taskboard/internal/repo"

	"golang.org/x/sync/singleflight"
)

// Source reads the current result set for an identity.
type Source interface {
	ListVisible(ctx context.Context, who domain.Identity) ([]repo.TaskRecord, error)
}

// Hub fans snapshots out to subscriptions. Safe for concurrent use.
type Hub struct {
	src Source
	sf  singleflight.Group

	mu sync.Mutex
	// by identity string (user id or email) -> subscriptions
	index map[string]map[*Subscription]struct{}
	all   map[*Subscription]struct{}
	// gens holds a fresh value of seq per indexed identity, replaced on every
	// change; epoch is replaced on RefreshAll. Both are part of the
	// singleflight key so a read that started before a change is never shared
	// with a caller that needs to see it.
	gens  map[string]uint64
	epoch uint64
	seq   uint64
}

func NewHub(src Source) *Hub {
	return &Hub{
		src:   src,
		index: make(map[string]map[*Subscription]struct{}),
		all:   make(map[*Subscription]struct{}),
		gens:  make(map[string]uint64),
	}
}

// Subscribe registers a subscription and queues the current list as its
// first snapshot.
func (h *Hub) Subscribe(ctx context.Context, who domain.Identity) (*Subscription, error) {
	if who.UserID == "" {
		return nil, fmt.Errorf("subscribe: empty user id")
	}
	sub := newSubscription(h, who)
	h.mu.Lock()
	h.all[sub] = struct{}{}
	for _, key := range identityKeys(who) {
		set, ok := h.index[key]
		if !ok {
			set = make(map[*Subscription]struct{})
			h.index[key] = set
			h.seq++
			h.gens[key] = h.seq
		}
		set[sub] = struct{}{}
	}
	h.mu.Unlock()

	// Registered before the first read so no change between the two is lost.
	list, ver, err := h.fetch(ctx, who)
	if err != nil {
		sub.Unsubscribe()
		return nil, err
	}
	sub.deliver(list, ver)
	return sub, nil
}

// Notify refreshes every subscription whose identity matches one of ids.
func (h *Hub) Notify(ctx context.Context, ids ...string) {
	h.mu.Lock()
	targets := make(map[*Subscription]struct{})
	for _, id := range ids {
		set, ok := h.index[id]
		if !ok {
			continue
		}
		h.seq++
		h.gens[id] = h.seq
		for sub := range set {
			targets[sub] = struct{}{}
		}
	}
	h.mu.Unlock()
	h.refresh(ctx, targets)
}

// RefreshAll re-reads the list of every subscription, used after the
// notification stream was interrupted.
func (h *Hub) RefreshAll(ctx context.Context) {
	h.mu.Lock()
	h.seq++
	h.epoch = h.seq
	targets := make(map[*Subscription]struct{}, len(h.all))
	for sub := range h.all {
		targets[sub] = struct{}{}
	}
	h.mu.Unlock()
	h.refresh(ctx, targets)
}

// Len is the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.all)
}

func (h *Hub) refresh(ctx context.Context, targets map[*Subscription]struct{}) {
	byWho := make(map[domain.Identity][]*Subscription)
	for sub := range targets {
		byWho[sub.who] = append(byWho[sub.who], sub)
	}
	for who, subs := range byWho {
		list, ver, err := h.fetch(ctx, who)
		if err != nil {
			log.Printf("feed: refresh %s: %v", who.UserID, err)
			continue
		}
		for _, sub := range subs {
			sub.deliver(list, ver)
		}
	}
}

// fetch reads the list for who. The returned version orders results: a
// read with a higher version started after every change a lower one missed.
func (h *Hub) fetch(ctx context.Context, who domain.Identity) ([]repo.TaskRecord, uint64, error) {
	h.mu.Lock()
	ug, eg := h.gens[who.UserID], h.gens[who.Email]
	key := fmt.Sprintf("%s|%s|%d|%d|%d", who.UserID, who.Email, ug, eg, h.epoch)
	ver := max(ug, eg, h.epoch)
	h.mu.Unlock()
	// The read is shared by every caller with the same key, so one caller
	// going away must not fail the others.
	shared := context.WithoutCancel(ctx)
	v, err, _ := h.sf.Do(key, func() (interface{}, error) {
		return h.src.ListVisible(shared, who)
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", err)
	}
	return v.([]repo.TaskRecord), ver, nil
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.all, sub)
	for _, key := range identityKeys(sub.who) {
		if set, ok := h.index[key]; ok {
			delete(set, sub)
			if len(set) == 0 {
				delete(h.index, key)
				delete(h.gens, key)
			}
		}
	}
}

func identityKeys(who domain.Identity) []string {
	if who.Email == "" || who.Email == who.UserID {
		return []string{who.UserID}
	}
	return []string{who.UserID, who.Email}
}
