package bundle_test

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"

	"github.com/gsmkev/sumo-helper/bundle"
	"github.com/gsmkev/sumo-helper/network"
	"github.com/gsmkev/sumo-helper/network/geo"
	"github.com/gsmkev/sumo-helper/routegen"
)

func corridorNetwork() *network.Network {
	mk := func(id string, x float64, typ network.NodeType) *network.Node {
		return &network.Node{ID: id, Lat: 40, Lon: 116, X: x, Y: 0, Type: typ}
	}
	mkEdge := func(from, to *network.Node) *network.Edge {
		return &network.Edge{
			ID:     from.ID + to.ID,
			From:   from.ID,
			To:     to.ID,
			Shape:  orb.LineString{{116, 40}, {116.001, 40}},
			Length: to.X - from.X,
			Speed:  13.89,
			Lanes:  1,
			Class:  network.ClassResidential,
		}
	}
	a := mk("A", 0, network.NodeTypeDeadEnd)
	b := mk("B", 100, network.NodeTypeTrafficLight)
	c := mk("C", 200, network.NodeTypePriority)
	d := mk("D", 300, network.NodeTypeDeadEnd)
	return network.Assemble(
		geo.Bounds{North: 40.01, South: 40, East: 116.01, West: 116},
		orb.Point{116, 40},
		[]*network.Node{a, b, c, d},
		[]*network.Edge{mkEdge(a, b), mkEdge(b, c), mkEdge(c, d)},
		[]*network.TrafficLight{{
			NodeID: "B",
			Phases: []network.Phase{{State: "G", Duration: 30}, {State: "r", Duration: 5}},
		}},
	)
}

func testBundle(t *testing.T) *bundle.SimulationBundle {
	t.Helper()
	net := corridorNetwork()
	seed := int64(42)
	specs := []routegen.VehicleSpec{routegen.DefaultSpec("car", 100)}
	routes, err := routegen.Generate(net, []string{"A"}, []string{"D"}, specs, 10, 100, &seed)
	assert.NoError(t, err)
	return bundle.New("corridor", net,
		bundle.SelectedPoints{Entry: []string{"A"}, Exit: []string{"D"}},
		bundle.SimulationConfig{
			TotalVehicles: 10,
			Duration:      100,
			Seed:          &seed,
			VehicleTypes:  specs,
		},
		routes)
}

func archiveFiles(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	assert.NoError(t, err)
	files := make(map[string][]byte)
	for _, f := range zr.File {
		rc, err := f.Open()
		assert.NoError(t, err)
		content, err := io.ReadAll(rc)
		assert.NoError(t, err)
		rc.Close()
		files[f.Name] = content
	}
	return files
}

func TestExportArchiveContents(t *testing.T) {
	b := testBundle(t)
	data, err := bundle.Export(b)
	assert.NoError(t, err)

	files := archiveFiles(t, data)
	for _, name := range []string{
		"nodes.nod.xml", "edges.edg.xml", "trafficlights.add.xml",
		"routes.rou.xml", "simulation.sumocfg", "run_simulation.py", "metadata.json",
	} {
		assert.Contains(t, files, name)
	}

	nodes := string(files["nodes.nod.xml"])
	assert.Contains(t, nodes, `<node id="A" x="0.00" y="0.00" type="dead_end"/>`)
	assert.Contains(t, nodes, `type="traffic_light"`)

	edges := string(files["edges.edg.xml"])
	assert.Contains(t, edges, `<edge id="AB" from="A" to="B" numLanes="1" speed="13.89"/>`)

	lights := string(files["trafficlights.add.xml"])
	assert.Contains(t, lights, `<tlLogic id="B" type="static" programID="0" offset="0">`)
	assert.Contains(t, lights, `<phase duration="30" state="G"/>`)

	routes := string(files["routes.rou.xml"])
	assert.Contains(t, routes, `<vType id="car"`)
	assert.Contains(t, routes, `edges="AB BC CD"`)
	assert.Contains(t, routes, `<vehicle id="veh_0"`)

	cfg := string(files["simulation.sumocfg"])
	assert.Contains(t, cfg, `<end value="100"/>`)
}

func TestRouteFileVehiclesSortedByDepart(t *testing.T) {
	b := testBundle(t)
	data, err := bundle.Export(b)
	assert.NoError(t, err)
	files := archiveFiles(t, data)

	var departs []float64
	for _, line := range strings.Split(string(files["routes.rou.xml"]), "\n") {
		const marker = `depart="`
		i := strings.Index(line, marker)
		if i < 0 {
			continue
		}
		rest := line[i+len(marker):]
		v, err := strconv.ParseFloat(rest[:strings.IndexByte(rest, '"')], 64)
		assert.NoError(t, err)
		departs = append(departs, v)
	}
	assert.Len(t, departs, 10)
	for i := 1; i < len(departs); i++ {
		assert.LessOrEqual(t, departs[i-1], departs[i])
	}
}

func TestRoundTripByteExact(t *testing.T) {
	b := testBundle(t)
	first, err := bundle.Export(b)
	assert.NoError(t, err)

	imported, err := bundle.Import(first)
	assert.NoError(t, err)
	second, err := bundle.Export(imported)
	assert.NoError(t, err)

	assert.True(t, bytes.Equal(first, second), "re-export after import must be byte-identical")
}

func TestImportBareMetadata(t *testing.T) {
	b := testBundle(t)
	data, err := bundle.Export(b)
	assert.NoError(t, err)
	metadata := archiveFiles(t, data)["metadata.json"]

	imported, err := bundle.Import(metadata)
	assert.NoError(t, err)
	assert.Equal(t, b.Info.ID, imported.Info.ID)
	assert.Len(t, imported.Network.Nodes, 4)
	assert.Len(t, imported.Network.Edges, 3)
	assert.Equal(t, []string{"A"}, imported.Selected.Entry)
	assert.Equal(t, 10, imported.Routes.VehicleCount())
}

func TestImportRejectsUnknownVersion(t *testing.T) {
	b := testBundle(t)
	data, err := bundle.Export(b)
	assert.NoError(t, err)
	metadata := archiveFiles(t, data)["metadata.json"]

	var doc map[string]json.RawMessage
	assert.NoError(t, json.Unmarshal(metadata, &doc))
	doc["simulation_info"] = bytes.Replace(doc["simulation_info"],
		[]byte(`"version": "1.0"`), []byte(`"version": "9.9"`), 1)
	mutated, err := json.Marshal(doc)
	assert.NoError(t, err)

	_, err = bundle.Import(mutated)
	assert.ErrorIs(t, err, bundle.ErrMetadataVersion)
}

func TestImportRejectsMissingSections(t *testing.T) {
	b := testBundle(t)
	data, err := bundle.Export(b)
	assert.NoError(t, err)
	metadata := archiveFiles(t, data)["metadata.json"]

	var doc map[string]json.RawMessage
	assert.NoError(t, json.Unmarshal(metadata, &doc))
	delete(doc, "nodes")
	delete(doc, "selected_points")
	mutated, err := json.Marshal(doc)
	assert.NoError(t, err)

	_, err = bundle.Import(mutated)
	var schemaErr *bundle.MetadataSchemaError
	assert.ErrorAs(t, err, &schemaErr)
	assert.Contains(t, schemaErr.Missing, "nodes")
	assert.Contains(t, schemaErr.Missing, "selected_points")
}

func TestMetadataFlagsDoNotTouchSharedNetwork(t *testing.T) {
	b := testBundle(t)
	_, err := bundle.Export(b)
	assert.NoError(t, err)

	// export flags entry/exit only in the document copies
	assert.False(t, b.Network.Nodes["A"].IsEntry)
	assert.False(t, b.Network.Nodes["D"].IsExit)

	data, err := bundle.Export(b)
	assert.NoError(t, err)
	var doc struct {
		Nodes []network.Node `json:"nodes"`
	}
	assert.NoError(t, json.Unmarshal(archiveFiles(t, data)["metadata.json"], &doc))
	flagged := map[string][2]bool{}
	for _, n := range doc.Nodes {
		flagged[n.ID] = [2]bool{n.IsEntry, n.IsExit}
	}
	assert.Equal(t, [2]bool{true, false}, flagged["A"])
	assert.Equal(t, [2]bool{false, true}, flagged["D"])
}
