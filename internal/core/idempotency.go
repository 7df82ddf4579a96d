package core

import (
	"container/list"

	"github.com/google/uuid"
)

// DBDeduper is the interface for the processed-commands lookup backed by
// Postgres.
type DBDeduper interface {
	IsProcessed(commandID uuid.UUID) (bool, error)
}

// Deduper implements two-tier command deduplication: an in-memory LRU on
// the hot path, the processed-commands table on the cold path. Not
// thread-safe; only accessed from the single-threaded engine.
type Deduper struct {
	lru *commandLRU
	db  DBDeduper
}

func NewDeduper(capacity int, db DBDeduper) *Deduper {
	return &Deduper{
		lru: newCommandLRU(capacity),
		db:  db,
	}
}

// IsDuplicate reports whether the command id has already been processed.
// A DB lookup failure is treated as not-duplicate so a Postgres hiccup
// cannot stall command processing; the event log's ON CONFLICT insert is
// the backstop.
func (d *Deduper) IsDuplicate(id uuid.UUID) bool {
	key := id.String()
	if d.lru.Contains(key) {
		return true
	}

	if d.db != nil {
		processed, err := d.db.IsProcessed(id)
		if err != nil {
			return false
		}
		if processed {
			d.lru.Add(key)
			return true
		}
	}

	return false
}

// MarkProcessed records the command id after successful application.
func (d *Deduper) MarkProcessed(id uuid.UUID) {
	d.lru.Add(id.String())
}

// Warm preloads recently processed ids, avoiding cold-path DB lookups
// right after a restart.
func (d *Deduper) Warm(keys []string) {
	for _, key := range keys {
		d.lru.Add(key)
	}
}

// Keys returns the cached ids for inclusion in a snapshot.
func (d *Deduper) Keys() []string {
	return d.lru.keys()
}

type commandLRU struct {
	capacity int
	cache    map[string]*list.Element
	order    *list.List
}

func newCommandLRU(capacity int) *commandLRU {
	return &commandLRU{
		capacity: capacity,
		cache:    make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

func (l *commandLRU) Contains(key string) bool {
	elem, ok := l.cache[key]
	if ok {
		l.order.MoveToFront(elem)
	}
	return ok
}

func (l *commandLRU) Add(key string) {
	if elem, ok := l.cache[key]; ok {
		l.order.MoveToFront(elem)
		return
	}

	l.cache[key] = l.order.PushFront(key)

	if l.order.Len() > l.capacity {
		oldest := l.order.Back()
		if oldest != nil {
			l.order.Remove(oldest)
			delete(l.cache, oldest.Value.(string))
		}
	}
}

func (l *commandLRU) keys() []string {
	out := make([]string, 0, l.order.Len())
	for elem := l.order.Front(); elem != nil; elem = elem.Next() {
		out = append(out, elem.Value.(string))
	}
	return out
}
