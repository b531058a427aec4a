package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
	"unicode"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	svccache "MarketPulse/internal/service/cache"
)

// Normalize canonicalizes text for identity hashing: lowercased,
// whitespace collapsed, zero-width characters stripped. The stored
// item keeps the original text; only the hash uses this form.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	space := false
	for _, r := range text {
		switch r {
		case '\u200b', '\u200c', '\u200d', '\ufeff':
			continue
		}
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// ItemID derives the stable identity hash over (normalized text,
// source, asset). The same message from two sources stays two items.
func ItemID(text string, source models.Source, asset string) string {
	h := sha256.New()
	h.Write([]byte(Normalize(text)))
	h.Write([]byte{0})
	h.Write([]byte(source))
	h.Write([]byte{0})
	h.Write([]byte(asset))
	return hex.EncodeToString(h.Sum(nil))
}

// Deduper answers "have we accepted this item already". A TTL'd
// in-process cache absorbs the common case; the store backs it so
// restarts do not re-admit old items.
type Deduper struct {
	recent *svccache.TTLSet
	store  domrepo.ItemStore
	ttl    time.Duration
}

func NewDeduper(store domrepo.ItemStore, ttl time.Duration) *Deduper {
	return &Deduper{recent: svccache.NewTTLSet(), store: store, ttl: ttl}
}

// Seen reports whether id was already accepted. Store errors read as
// unseen; the insert's uniqueness constraint is the hard guard.
func (d *Deduper) Seen(ctx context.Context, id string) bool {
	if d.recent.Has(id) {
		return true
	}
	if has, err := d.store.HasItem(ctx, id); err == nil && has {
		d.recent.Add(id, d.ttl)
		return true
	}
	return false
}

// Mark records id as accepted.
func (d *Deduper) Mark(id string) {
	d.recent.Add(id, d.ttl)
}
