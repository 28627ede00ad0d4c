package network_test

import (
	"testing"

	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"

	"github.com/gsmkev/sumo-helper/network"
)

func TestClassifyEndpointsDeadEnds(t *testing.T) {
	net, err := network.Build(crossGraph(), network.DefaultBuildConfig())
	assert.NoError(t, err)

	ep, err := network.ClassifyEndpoints(net, network.DefaultBuildConfig())
	assert.NoError(t, err)
	// all four arms are bidirectional dead ends: both entry and exit
	assert.ElementsMatch(t, []string{"1", "2", "4", "5"}, ep.Entry)
	assert.ElementsMatch(t, []string{"1", "2", "4", "5"}, ep.Exit)
}

func TestClassifyEndpointsRespectsDirection(t *testing.T) {
	raw := crossGraph()
	// western arm becomes inbound-only, eastern arm outbound-only
	raw.Ways[0] = rawWay(10, []int64{1, 3}, "highway", "residential", "oneway", "yes")
	raw.Ways[1] = rawWay(11, []int64{3, 2}, "highway", "residential", "oneway", "yes")
	net, err := network.Build(raw, network.DefaultBuildConfig())
	assert.NoError(t, err)

	ep, err := network.ClassifyEndpoints(net, network.DefaultBuildConfig())
	assert.NoError(t, err)
	assert.Contains(t, ep.Entry, "1")
	assert.NotContains(t, ep.Exit, "1")
	assert.Contains(t, ep.Exit, "2")
	assert.NotContains(t, ep.Entry, "2")
}

func TestClassifyEndpointsPerimeter(t *testing.T) {
	// node 7 sits exactly on the western boundary with two neighbors, so
	// only the perimeter rule can make it a candidate
	raw := crossGraph()
	raw.Nodes = append(raw.Nodes, rawNode(7, 40.003, 116.000))
	raw.Ways = append(raw.Ways,
		rawWay(20, []int64{7, 4}, "highway", "residential"),
		rawWay(21, []int64{7, 1}, "highway", "residential"),
	)
	net, err := network.Build(raw, network.DefaultBuildConfig())
	assert.NoError(t, err)
	assert.Equal(t, 2, net.NeighborCount("7"))

	ep, err := network.ClassifyEndpoints(net, network.DefaultBuildConfig())
	assert.NoError(t, err)
	assert.Contains(t, ep.Entry, "7")
	assert.Contains(t, ep.Exit, "7")
}

func TestClassifyEndpointsInsufficient(t *testing.T) {
	// a closed triangle away from the boundary has no candidates
	raw := &network.RawGraph{
		Bounds: smallBounds(),
		Nodes: []*osm.Node{
			rawNode(1, 40.004, 116.004),
			rawNode(2, 40.004, 116.006),
			rawNode(3, 40.006, 116.005),
		},
		Ways: []*osm.Way{
			rawWay(10, []int64{1, 2}, "highway", "residential"),
			rawWay(11, []int64{2, 3}, "highway", "residential"),
			rawWay(12, []int64{3, 1}, "highway", "residential"),
		},
	}
	net, err := network.Build(raw, network.DefaultBuildConfig())
	assert.NoError(t, err)

	_, err = network.ClassifyEndpoints(net, network.DefaultBuildConfig())
	assert.ErrorIs(t, err, network.ErrInsufficientEndpoints)
}

func TestValidateEndpoints(t *testing.T) {
	net, err := network.Build(crossGraph(), network.DefaultBuildConfig())
	assert.NoError(t, err)
	cfg := network.DefaultBuildConfig()

	assert.NoError(t, network.ValidateEndpoints(net, []string{"1"}, []string{"2"}, cfg))

	err = network.ValidateEndpoints(net, nil, []string{"2"}, cfg)
	assert.ErrorIs(t, err, network.ErrInsufficientEndpoints)

	err = network.ValidateEndpoints(net, []string{"nope"}, []string{"2"}, cfg)
	var unknown *network.UnknownNodeError
	assert.ErrorAs(t, err, &unknown)
	assert.Equal(t, "nope", unknown.ID)

	err = network.ValidateEndpoints(net, []string{"1", "2"}, []string{"2"}, cfg)
	assert.ErrorIs(t, err, network.ErrEntryExitOverlap)

	cfg.AllowEntryExitOverlap = true
	assert.NoError(t, network.ValidateEndpoints(net, []string{"1", "2"}, []string{"2"}, cfg))
}
