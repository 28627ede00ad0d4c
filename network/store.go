package network

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/puzpuzpuz/xsync/v3"
)

// Store caches built networks keyed by a fingerprint of the bounding box
// and the build configuration. Networks are immutable once built, so a
// cached value can be handed to any number of concurrent consumers.
type Store struct {
	networks *xsync.MapOf[string, *Network]
}

func NewStore() *Store {
	return &Store{networks: xsync.NewMapOf[string, *Network]()}
}

// Fingerprint derives the cache key for a bounds/config pair. Coordinates
// are rounded to 1e-7 degrees so equal selections map to equal keys.
func Fingerprint(raw *RawGraph, cfg BuildConfig) string {
	classes := make([]string, len(cfg.AllowedClasses))
	for i, c := range cfg.AllowedClasses {
		classes[i] = string(c)
	}
	sort.Strings(classes)
	b := raw.Bounds
	payload := fmt.Sprintf("%.7f:%.7f:%.7f:%.7f|%s|%.2f:%.2f:%.2f:%d",
		b.North, b.South, b.East, b.West,
		strings.Join(classes, ","),
		cfg.GreenSeconds, cfg.RedSeconds, cfg.BoundaryToleranceM, cfg.DefaultLanes)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached network for the key, if any.
func (s *Store) Get(key string) (*Network, bool) {
	return s.networks.Load(key)
}

// Put caches a network under the key.
func (s *Store) Put(key string, net *Network) {
	s.networks.Store(key, net)
}

// GetOrBuild returns the cached network for the raw graph or builds and
// caches it. Concurrent callers with the same key may build twice; both
// results are identical, so the last store wins harmlessly.
func (s *Store) GetOrBuild(raw *RawGraph, cfg BuildConfig) (*Network, error) {
	key := Fingerprint(raw, cfg)
	if net, ok := s.networks.Load(key); ok {
		log.Debugf("network cache hit %s", key[:12])
		return net, nil
	}
	net, err := Build(raw, cfg)
	if err != nil {
		return nil, err
	}
	s.networks.Store(key, net)
	return net, nil
}
