// Copyright (C) 2025 SAGE-X Project
//
// This file is part of seal.
//
// seal is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// seal is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with seal.  If not, see <https://www.gnu.org/licenses/>.

// Package keyresolve resolves the public key a SEAL record's signature
// should be checked against: from DNS TXT records (cached, per-domain), from
// a local @default override file, or from the record's own inline pk=.
package keyresolve

import (
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcutil/base58"
	"golang.org/x/net/idna"
	"golang.org/x/sync/singleflight"

	"github.com/sage-x-project/seal/encoding"
	"github.com/sage-x-project/seal/field"
	"github.com/sage-x-project/seal/record"
)

// defaultDomain is the synthetic cache key for the local override record,
// per spec.md §4.6.
const defaultDomain = "@default"

// Record is one parsed DNS TXT (or local-override) key record.
type Record struct {
	Fields *field.Store
}

// Resolver caches DNS TXT lookups per domain and serves key resolution and
// counting queries against the cache.
type Resolver struct {
	mu    sync.RWMutex
	cache map[string][]Record

	group    singleflight.Group
	lookupFn func(ctx context.Context, domain string) ([]string, error)

	dialTimeout  time.Duration
	totalTimeout time.Duration

	// noNet, when set, forbids ensureCached from issuing a network query
	// for a domain not already cached (spec.md §4.6 step 1, the CLI's
	// -no-net flag).
	noNet bool
}

// SetNoNet toggles -no-net mode: once set, Resolve/Count never reach the
// network for an uncached domain, instead treating it as having no
// records (which falls back to @default if one was loaded).
func (r *Resolver) SetNoNet(noNet bool) {
	r.mu.Lock()
	r.noNet = noNet
	r.mu.Unlock()
}

// New returns a Resolver using the system DNS resolver.
func New() *Resolver {
	r := &Resolver{
		cache:        make(map[string][]Record),
		dialTimeout:  20 * time.Second,
		totalTimeout: 60 * time.Second,
	}
	r.lookupFn = r.systemLookupTXT
	return r
}

func (r *Resolver) systemLookupTXT(ctx context.Context, domain string) ([]string, error) {
	dialer := &net.Dialer{Timeout: r.dialTimeout}
	resolver := &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
			return dialer.DialContext(ctx, network, address)
		},
	}
	return resolver.LookupTXT(ctx, domain)
}

// SetLookupFunc overrides the TXT lookup mechanism — used by tests and by
// the CLI's -no-net mode to pre-load a cache without touching the network.
func (r *Resolver) SetLookupFunc(fn func(ctx context.Context, domain string) ([]string, error)) {
	r.lookupFn = fn
}

// LoadDefaultFile installs a single local-override record under the
// synthetic @default domain, parsed as a DNS-TXT-shaped record per spec.md
// §4.6. base58check-wrapped DER keys (btcsuite/btcd/btcutil/base58) are accepted for the
// p= attribute in addition to plain base64, to interoperate with operators
// who distribute keys the way cryptocurrency tooling conventionally does.
func (r *Resolver) LoadDefaultFile(line string) error {
	rec, ok := parseTXTLine(line)
	if !ok {
		return fmt.Errorf("keyresolve: malformed @default record")
	}
	r.mu.Lock()
	r.cache[defaultDomain] = []Record{rec}
	r.mu.Unlock()
	return nil
}

// PreloadCache installs raw TXT strings for domain without a network round
// trip — the CLI's -no-net mode, and test fixtures, use this directly.
func (r *Resolver) PreloadCache(domain string, txtStrings []string) {
	normalized, err := normalizeDomain(domain)
	if err != nil {
		normalized = strings.ToLower(domain)
	}
	recs := parseTXTStrings(txtStrings)
	r.mu.Lock()
	r.cache[normalized] = recs
	r.mu.Unlock()
}

// normalizeDomain lowercases and IDNA-normalizes a domain so that cache
// lookups for "Example.COM" and "xn--..." forms collide correctly.
func normalizeDomain(domain string) (string, error) {
	lower := strings.ToLower(strings.TrimSpace(domain))
	ascii, err := idna.Lookup.ToASCII(lower)
	if err != nil {
		return lower, err
	}
	return ascii, nil
}

// ensureCached fetches and caches domain's TXT records if not already
// cached, coalescing concurrent lookups for the same domain via
// singleflight so a verify batch over many files signed by the same domain
// issues one DNS query, not one per file.
func (r *Resolver) ensureCached(ctx context.Context, domain string) error {
	r.mu.RLock()
	_, cached := r.cache[domain]
	noNet := r.noNet
	r.mu.RUnlock()
	if cached || noNet {
		return nil
	}

	_, err, _ := r.group.Do(domain, func() (interface{}, error) {
		r.mu.RLock()
		_, cached := r.cache[domain]
		r.mu.RUnlock()
		if cached {
			return nil, nil
		}

		lookupCtx, cancel := context.WithTimeout(ctx, r.totalTimeout)
		defer cancel()

		txtStrings, lookupErr := r.lookupFn(lookupCtx, domain)
		var recs []Record
		if lookupErr == nil {
			recs = parseTXTStrings(txtStrings)
		}
		// Negative responses (lookup error or no usable record) are cached
		// as an empty slice so a repeat lookup short-circuits, per spec.md §4.6.
		r.mu.Lock()
		r.cache[domain] = recs
		r.mu.Unlock()
		return nil, nil
	})
	return err
}

// parseTXTStrings parses each TXT reply into a record by prepending
// "<seal " and appending " />" to the concatenated strings, then running the
// record parser, discarding replies that do not parse or carry no ka. The
// ka value itself is not checked against the supported key algorithms.
func parseTXTStrings(txtStrings []string) []Record {
	var out []Record
	for _, s := range txtStrings {
		rec, ok := parseTXTLine(s)
		if !ok {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func parseTXTLine(s string) (Record, bool) {
	wrapped := "<seal " + s + " />"
	parsed, ok := record.Parse([]byte(wrapped), 0, 0, 1)
	if !ok {
		return Record{}, false
	}
	store := parsed.Store
	if store.GetText("ka") == "" {
		return Record{}, false
	}

	if p := store.GetText("p"); p != "" && p != "revoke" {
		if decoded, ok := decodeKeyBytes(p); ok {
			store.Set("@p-bin", decoded, field.KindBinary)
		}
	}
	if pkd := store.GetText("pkd"); pkd != "" {
		if decoded, ok := encoding.HexDecode(pkd); ok {
			store.Set("@pkd-bin", decoded, field.KindBinary)
		} else if decoded, ok := encoding.Base64Decode(pkd); ok {
			store.Set("@pkd-bin", decoded, field.KindBinary)
		}
	}

	return Record{Fields: store}, true
}

// decodeKeyBytes accepts either base64 (spec.md's documented wire format)
// or base58check (an interoperability concession for keys distributed the
// way cryptocurrency wallets conventionally encode them).
func decodeKeyBytes(s string) ([]byte, bool) {
	if decoded, ok := encoding.Base64Decode(s); ok {
		return decoded, true
	}
	if decoded, _, err := base58.CheckDecode(s); err == nil {
		return decoded, true
	}
	return nil, false
}

// Filter selects which cached record(s) a verify call is looking for.
type Filter struct {
	Seal string // required version, e.g. "1"
	UID  string
	KA   string
	KV   string // defaults to "1" on both sides when unset
}

// Resolve returns the nth (0-indexed) cached TXT record for domain matching
// filter, walking: seal version equality, uid equality (if the TXT sets
// one), ka equality, and kv equality (default "1" on either side). If no
// domain entry matches and an @default record exists, that is used instead.
func (r *Resolver) Resolve(ctx context.Context, domain string, filter Filter, nth int) (Record, bool, error) {
	normalized, err := normalizeDomain(domain)
	if err != nil {
		normalized = strings.ToLower(domain)
	}
	if err := r.ensureCached(ctx, normalized); err != nil {
		return Record{}, false, err
	}

	r.mu.RLock()
	candidates := append([]Record{}, r.cache[normalized]...)
	r.mu.RUnlock()

	matches := filterRecords(candidates, filter)
	if len(matches) == 0 {
		r.mu.RLock()
		fallback := append([]Record{}, r.cache[defaultDomain]...)
		r.mu.RUnlock()
		matches = filterRecords(fallback, filter)
	}

	if nth < 0 || nth >= len(matches) {
		return Record{}, false, nil
	}
	return matches[nth], true, nil
}

// Count reports how many cached records (after domain fallback to
// @default) would satisfy filter.
func (r *Resolver) Count(ctx context.Context, domain string, filter Filter) (int, error) {
	normalized, err := normalizeDomain(domain)
	if err != nil {
		normalized = strings.ToLower(domain)
	}
	if err := r.ensureCached(ctx, normalized); err != nil {
		return 0, err
	}

	r.mu.RLock()
	candidates := append([]Record{}, r.cache[normalized]...)
	r.mu.RUnlock()

	matches := filterRecords(candidates, filter)
	if len(matches) == 0 {
		r.mu.RLock()
		fallback := append([]Record{}, r.cache[defaultDomain]...)
		r.mu.RUnlock()
		matches = filterRecords(fallback, filter)
	}
	return len(matches), nil
}

func filterRecords(candidates []Record, filter Filter) []Record {
	var out []Record
	for _, rec := range candidates {
		f := rec.Fields
		if filter.Seal != "" && f.GetText("seal") != filter.Seal {
			continue
		}
		if txtUID := f.GetText("uid"); txtUID != "" && txtUID != filter.UID {
			continue
		}
		if filter.KA != "" && f.GetText("ka") != filter.KA {
			continue
		}
		wantKV := filter.KV
		if wantKV == "" {
			wantKV = "1"
		}
		gotKV := f.GetText("kv")
		if gotKV == "" {
			gotKV = "1"
		}
		if gotKV != wantKV {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// InlineKeyDigest computes H_pka(decoded pk) for comparison against pkd, per
// spec.md §4.6's inline-authentication check.
func InlineKeyDigest(pka string, decodedPK []byte) ([]byte, error) {
	switch strings.ToLower(pka) {
	case "", "sha256":
		h := sha256.Sum256(decodedPK)
		return h[:], nil
	case "sha384":
		h := sha512.Sum384(decodedPK)
		return h[:], nil
	case "sha512":
		h := sha512.Sum512(decodedPK)
		return h[:], nil
	default:
		return nil, fmt.Errorf("keyresolve: unknown pka algorithm %q", pka)
	}
}

// IsRevoked applies spec.md §4.6's TXT revocation rule: p absent/empty/
// "revoke" revokes every signature under that key; r, if present, revokes
// signatures whose sigdate is lexicographically ≥ r over their common
// prefix of digits (r is the no-longer-trusted-after moment).
func IsRevoked(txt *field.Store, sigDate string) bool {
	p := txt.GetText("p")
	if p == "" || p == "revoke" {
		return true
	}
	r := txt.GetText("r")
	if r == "" {
		return false
	}
	if sigDate == "" {
		return true
	}
	n := len(r)
	if len(sigDate) < n {
		n = len(sigDate)
	}
	return r[:n] <= sigDate[:n]
}
