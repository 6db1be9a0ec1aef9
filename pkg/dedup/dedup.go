// Package dedup drops redelivered messages by remembering their ids for a while.
package dedup

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
)

const (
	DefaultTTL      = 10 * time.Minute
	DefaultCapacity = 10000
)

type Deduper struct {
	seen *ttlcache.Cache[string, struct{}]
}

func New(ttl time.Duration, max int) *Deduper {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if max <= 0 {
		max = DefaultCapacity
	}
	return &Deduper{
		seen: ttlcache.New(
			ttlcache.WithTTL[string, struct{}](ttl),
			ttlcache.WithCapacity[string, struct{}](uint64(max)),
			ttlcache.WithDisableTouchOnHit[string, struct{}](),
		),
	}
}

// ShouldProcess returns true the first time id is seen within the TTL.
// Empty ids are always processed.
func (d *Deduper) ShouldProcess(id string) bool {
	if id == "" {
		return true
	}
	_, found := d.seen.GetOrSet(id, struct{}{})
	return !found
}

// Seen reports whether id was marked within the TTL without marking it.
func (d *Deduper) Seen(id string) bool {
	return id != "" && d.seen.Has(id)
}

// Mark remembers id for the TTL.
func (d *Deduper) Mark(id string) {
	if id == "" {
		return
	}
	d.seen.Set(id, struct{}{}, ttlcache.DefaultTTL)
}

// Len is the number of ids currently remembered.
func (d *Deduper) Len() int { return d.seen.Len() }
