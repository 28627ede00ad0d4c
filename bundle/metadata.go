package bundle

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"

	"github.com/gsmkev/sumo-helper/network"
	"github.com/gsmkev/sumo-helper/network/geo"
	"github.com/gsmkev/sumo-helper/routegen"
)

// metadata document version is rejected when it does not match
// MetadataVersion.
var ErrMetadataVersion = errors.New("unsupported metadata version")

// MetadataSchemaError reports required metadata sections that are absent.
type MetadataSchemaError struct {
	Missing []string
}

func (e *MetadataSchemaError) Error() string {
	return fmt.Sprintf("metadata document missing required sections: %s", strings.Join(e.Missing, ", "))
}

// networkData groups the network-level attributes that are neither nodes
// nor edges.
type networkData struct {
	Bounds        geo.Bounds              `json:"bounds"`
	Origin        orb.Point               `json:"origin"`
	TrafficLights []*network.TrafficLight `json:"traffic_lights"`
	Warnings      []string                `json:"warnings,omitempty"`
}

// metadataDoc is the JSON metadata document. Section pointers distinguish
// an absent key from an empty value during schema validation.
type metadataDoc struct {
	SimulationInfo     *SimulationInfo     `json:"simulation_info"`
	NetworkData        *networkData        `json:"network_data"`
	Nodes              []network.Node      `json:"nodes"`
	Edges              []*network.Edge     `json:"edges"`
	SimulationConfig   *SimulationConfig   `json:"simulation_config"`
	SelectedPoints     *SelectedPoints     `json:"selected_points"`
	Routes             []*routegen.Route   `json:"routes"`
	ReconstructionInfo *ReconstructionInfo `json:"reconstruction_info"`
}

const reconstructionInstructions = "Import this metadata.json (or the full archive) to reconstruct " +
	"the simulation without re-downloading map data. The embedded nodes, edges, traffic lights, " +
	"selected entry/exit points and routes are complete; with the recorded seed, regenerating " +
	"routes reproduces the embedded set exactly."

// buildMetadata renders the bundle into its document form. Node copies
// carry the entry/exit flags so the shared network snapshot stays
// untouched.
func buildMetadata(b *SimulationBundle) *metadataDoc {
	entry, exit := b.entrySet(), b.exitSet()
	nodes := make([]network.Node, 0, len(b.Network.Nodes))
	for _, n := range b.Network.SortedNodes() {
		c := *n
		c.IsEntry = entry[c.ID]
		c.IsExit = exit[c.ID]
		nodes = append(nodes, c)
	}
	routes := b.Routes.Routes
	if routes == nil {
		routes = []*routegen.Route{}
	}
	info := b.Info
	return &metadataDoc{
		SimulationInfo: &info,
		NetworkData: &networkData{
			Bounds:        b.Network.Bounds,
			Origin:        b.Network.Origin,
			TrafficLights: b.Network.TrafficLights,
			Warnings:      b.Network.Warnings,
		},
		Nodes:            nodes,
		Edges:            b.Network.SortedEdges(),
		SimulationConfig: &b.Config,
		SelectedPoints:   &b.Selected,
		Routes:           routes,
		ReconstructionInfo: &ReconstructionInfo{
			Instructions: reconstructionInstructions,
			Source:       "sumo-helper",
		},
	}
}

func marshalMetadata(b *SimulationBundle) ([]byte, error) {
	data, err := json.MarshalIndent(buildMetadata(b), "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "marshal metadata")
	}
	return append(data, '\n'), nil
}

// parseMetadata validates and rebuilds a bundle from document bytes.
func parseMetadata(data []byte) (*SimulationBundle, error) {
	var doc metadataDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "parse metadata")
	}
	var missing []string
	if doc.SimulationInfo == nil {
		missing = append(missing, "simulation_info")
	}
	if doc.NetworkData == nil {
		missing = append(missing, "network_data")
	}
	if doc.Nodes == nil {
		missing = append(missing, "nodes")
	}
	if doc.Edges == nil {
		missing = append(missing, "edges")
	}
	if doc.SimulationConfig == nil {
		missing = append(missing, "simulation_config")
	}
	if doc.SelectedPoints == nil {
		missing = append(missing, "selected_points")
	}
	if doc.Routes == nil {
		missing = append(missing, "routes")
	}
	if doc.ReconstructionInfo == nil {
		missing = append(missing, "reconstruction_info")
	}
	if len(missing) > 0 {
		return nil, &MetadataSchemaError{Missing: missing}
	}
	if doc.SimulationInfo.Version != MetadataVersion {
		return nil, errors.Wrapf(ErrMetadataVersion, "got %q, want %q", doc.SimulationInfo.Version, MetadataVersion)
	}

	nodes := make([]*network.Node, len(doc.Nodes))
	for i := range doc.Nodes {
		nodes[i] = &doc.Nodes[i]
	}
	net := network.Assemble(doc.NetworkData.Bounds, doc.NetworkData.Origin,
		nodes, doc.Edges, doc.NetworkData.TrafficLights)
	net.Warnings = doc.NetworkData.Warnings

	return &SimulationBundle{
		Info:     *doc.SimulationInfo,
		Network:  net,
		Selected: *doc.SelectedPoints,
		Config:   *doc.SimulationConfig,
		Routes:   &routegen.RouteSet{Routes: doc.Routes},
	}, nil
}
