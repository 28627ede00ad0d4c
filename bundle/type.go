package bundle

import (
	"time"

	"github.com/google/uuid"

	"github.com/gsmkev/sumo-helper/network"
	"github.com/gsmkev/sumo-helper/routegen"
)

// MetadataVersion tags the metadata document schema. Import rejects any
// other value.
const MetadataVersion = "1.0"

// SimulationInfo identifies one exported simulation.
type SimulationInfo struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Version    string    `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
}

// SimulationConfig is the validated run configuration embedded in the
// bundle.
type SimulationConfig struct {
	TotalVehicles int                    `json:"total_vehicles"`
	Duration      float64                `json:"duration"` // seconds
	StepLength    float64                `json:"step_length"`
	Seed          *int64                 `json:"seed,omitempty"`
	VehicleTypes  []routegen.VehicleSpec `json:"vehicle_types"`
}

// SelectedPoints is the user's entry/exit node selection.
type SelectedPoints struct {
	Entry []string `json:"entry"`
	Exit  []string `json:"exit"`
}

// ReconstructionInfo carries human-readable instructions for re-importing
// the bundle.
type ReconstructionInfo struct {
	Instructions string `json:"instructions"`
	Source       string `json:"source"`
}

// SimulationBundle aggregates everything one export produces: the network
// snapshot, the endpoint selection, the run configuration and the
// generated routes. It is the unit the metadata document reconstructs.
type SimulationBundle struct {
	Info     SimulationInfo
	Network  *network.Network
	Selected SelectedPoints
	Config   SimulationConfig
	Routes   *routegen.RouteSet
}

// New assembles a bundle with a fresh identity. The export timestamp is
// fixed here so repeated Export calls on the same bundle are
// byte-identical.
func New(name string, net *network.Network, selected SelectedPoints,
	cfg SimulationConfig, routes *routegen.RouteSet) *SimulationBundle {
	if cfg.StepLength == 0 {
		cfg.StepLength = 1.0
	}
	return &SimulationBundle{
		Info: SimulationInfo{
			ID:         uuid.NewString(),
			Name:       name,
			Version:    MetadataVersion,
			ExportedAt: time.Now().UTC().Truncate(time.Second),
		},
		Network:  net,
		Selected: selected,
		Config:   cfg,
		Routes:   routes,
	}
}

func (b *SimulationBundle) entrySet() map[string]bool {
	set := make(map[string]bool, len(b.Selected.Entry))
	for _, id := range b.Selected.Entry {
		set[id] = true
	}
	return set
}

func (b *SimulationBundle) exitSet() map[string]bool {
	set := make(map[string]bool, len(b.Selected.Exit))
	for _, id := range b.Selected.Exit {
		set[id] = true
	}
	return set
}
