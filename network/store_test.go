package network_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gsmkev/sumo-helper/network"
	"github.com/gsmkev/sumo-helper/network/geo"
)

func TestStoreGetOrBuild(t *testing.T) {
	store := network.NewStore()
	cfg := network.DefaultBuildConfig()

	a, err := store.GetOrBuild(crossGraph(), cfg)
	assert.NoError(t, err)
	b, err := store.GetOrBuild(crossGraph(), cfg)
	assert.NoError(t, err)
	assert.Same(t, a, b)
}

func TestStoreFailedBuildNotCached(t *testing.T) {
	store := network.NewStore()
	raw := crossGraph()
	raw.Bounds = geo.Bounds{North: 41, South: 40, East: 117, West: 116}
	_, err := store.GetOrBuild(raw, network.DefaultBuildConfig())
	assert.ErrorIs(t, err, network.ErrAreaTooLarge)
	_, ok := store.Get(network.Fingerprint(raw, network.DefaultBuildConfig()))
	assert.False(t, ok)
}

func TestFingerprintSensitivity(t *testing.T) {
	cfg := network.DefaultBuildConfig()
	base := network.Fingerprint(crossGraph(), cfg)

	assert.Equal(t, base, network.Fingerprint(crossGraph(), cfg))

	shifted := crossGraph()
	shifted.Bounds.North += 0.001
	assert.NotEqual(t, base, network.Fingerprint(shifted, cfg))

	narrower := cfg
	narrower.AllowedClasses = []network.RoadClass{network.ClassPrimary}
	assert.NotEqual(t, base, network.Fingerprint(crossGraph(), narrower))
}
