package bundle

import (
	"archive/zip"
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/gsmkev/sumo-helper/network"
)

// Export renders the bundle into the simulation archive: node, edge,
// traffic-light and route files, the simulation configuration, a run
// script and the metadata document. Output is deterministic for a given
// bundle: collections are sorted, floats use fixed formats and every zip
// entry carries the bundle's export timestamp.
func Export(b *SimulationBundle) ([]byte, error) {
	metadata, err := marshalMetadata(b)
	if err != nil {
		return nil, err
	}
	files := []struct {
		name    string
		content []byte
	}{
		{"nodes.nod.xml", renderNodes(b)},
		{"edges.edg.xml", renderEdges(b)},
		{"trafficlights.add.xml", renderTrafficLights(b)},
		{"routes.rou.xml", renderRoutes(b)},
		{"simulation.sumocfg", renderConfig(b)},
		{"run_simulation.py", renderRunScript(b)},
		{"metadata.json", metadata},
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     f.name,
			Method:   zip.Deflate,
			Modified: b.Info.ExportedAt,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "create %s", f.name)
		}
		if _, err := w.Write(f.content); err != nil {
			return nil, errors.Wrapf(err, "write %s", f.name)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, errors.Wrap(err, "close archive")
	}
	log.Infof("exported bundle %s: %d files, %d bytes", b.Info.ID, len(files), buf.Len())
	return buf.Bytes(), nil
}

// num renders a float the way the simulator files expect: no exponent,
// no trailing zeros.
func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func renderNodes(b *SimulationBundle) []byte {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	sb.WriteString(`<nodes xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xsi:noNamespaceSchemaLocation="http://sumo.dlr.de/xsd/nodes_file.xsd">` + "\n")
	for _, n := range b.Network.SortedNodes() {
		fmt.Fprintf(&sb, "    <node id=%q x=\"%.2f\" y=\"%.2f\" type=%q/>\n", n.ID, n.X, n.Y, string(n.Type))
	}
	sb.WriteString("</nodes>\n")
	return []byte(sb.String())
}

func renderEdges(b *SimulationBundle) []byte {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	sb.WriteString(`<edges xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xsi:noNamespaceSchemaLocation="http://sumo.dlr.de/xsd/edges_file.xsd">` + "\n")
	for _, e := range b.Network.SortedEdges() {
		fmt.Fprintf(&sb, "    <edge id=%q from=%q to=%q numLanes=\"%d\" speed=\"%.2f\"/>\n",
			e.ID, e.From, e.To, e.Lanes, e.Speed)
	}
	sb.WriteString("</edges>\n")
	return []byte(sb.String())
}

func renderTrafficLights(b *SimulationBundle) []byte {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	sb.WriteString(`<additional xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xsi:noNamespaceSchemaLocation="http://sumo.dlr.de/xsd/additional_file.xsd">` + "\n")
	lights := append([]*network.TrafficLight(nil), b.Network.TrafficLights...)
	sort.Slice(lights, func(i, j int) bool { return lights[i].NodeID < lights[j].NodeID })
	for _, tl := range lights {
		fmt.Fprintf(&sb, "    <tlLogic id=%q type=\"static\" programID=\"0\" offset=\"0\">\n", tl.NodeID)
		for _, p := range tl.Phases {
			fmt.Fprintf(&sb, "        <phase duration=%q state=%q/>\n", num(p.Duration), p.State)
		}
		sb.WriteString("    </tlLogic>\n")
	}
	sb.WriteString("</additional>\n")
	return []byte(sb.String())
}

// vehicleRow is one <vehicle> element before sorting by depart time.
type vehicleRow struct {
	id      string
	typ     string
	routeID string
	depart  float64
	color   string
}

func renderRoutes(b *SimulationBundle) []byte {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	sb.WriteString(`<routes xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xsi:noNamespaceSchemaLocation="http://sumo.dlr.de/xsd/routes_file.xsd">` + "\n")

	for _, vt := range b.Config.VehicleTypes {
		fmt.Fprintf(&sb, "    <vType id=%q accel=%q decel=%q sigma=%q length=%q minGap=%q maxSpeed=%q guiShape=%q/>\n",
			vt.Type, num(vt.Accel), num(vt.Decel), num(vt.Sigma), num(vt.Length),
			num(vt.MinGap), num(vt.MaxSpeed), vt.GUIShape)
	}

	rows := make([]vehicleRow, 0)
	for _, r := range b.Routes.Routes {
		fmt.Fprintf(&sb, "    <route id=%q edges=%q/>\n", r.ID, strings.Join(r.Edges, " "))
		for _, depart := range r.Departures {
			rows = append(rows, vehicleRow{
				typ:     r.VehicleType,
				routeID: r.ID,
				depart:  depart,
				color:   r.Color,
			})
		}
	}
	// simulators expect vehicles ordered by depart time
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].depart != rows[j].depart {
			return rows[i].depart < rows[j].depart
		}
		return rows[i].routeID < rows[j].routeID
	})
	for i := range rows {
		rows[i].id = fmt.Sprintf("veh_%d", i)
		fmt.Fprintf(&sb, "    <vehicle id=%q type=%q route=%q depart=\"%.2f\" color=%q/>\n",
			rows[i].id, rows[i].typ, rows[i].routeID, rows[i].depart, rows[i].color)
	}

	sb.WriteString("</routes>\n")
	return []byte(sb.String())
}

func renderConfig(b *SimulationBundle) []byte {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	sb.WriteString(`<configuration xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xsi:noNamespaceSchemaLocation="http://sumo.dlr.de/xsd/sumoConfiguration.xsd">` + "\n")
	sb.WriteString("    <input>\n")
	sb.WriteString(`        <net-file value="network.net.xml"/>` + "\n")
	sb.WriteString(`        <route-files value="routes.rou.xml"/>` + "\n")
	sb.WriteString(`        <additional-files value="trafficlights.add.xml"/>` + "\n")
	sb.WriteString("    </input>\n")
	sb.WriteString("    <time>\n")
	sb.WriteString(`        <begin value="0"/>` + "\n")
	fmt.Fprintf(&sb, "        <end value=%q/>\n", num(b.Config.Duration))
	fmt.Fprintf(&sb, "        <step-length value=%q/>\n", num(b.Config.StepLength))
	sb.WriteString("    </time>\n")
	sb.WriteString("    <processing>\n")
	sb.WriteString(`        <ignore-route-errors value="true"/>` + "\n")
	sb.WriteString(`        <collision.action value="warn"/>` + "\n")
	sb.WriteString("    </processing>\n")
	sb.WriteString("    <report>\n")
	sb.WriteString(`        <verbose value="true"/>` + "\n")
	sb.WriteString(`        <no-step-log value="true"/>` + "\n")
	sb.WriteString("    </report>\n")
	sb.WriteString("</configuration>\n")
	return []byte(sb.String())
}

func renderRunScript(b *SimulationBundle) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, `#!/usr/bin/env python3
"""Run the %s traffic simulation.

Requires SUMO (https://eclipse.dev/sumo). The script first builds the
compiled network from the node/edge files, then launches the simulation.
"""

import subprocess
import sys
from pathlib import Path

HERE = Path(__file__).parent.absolute()


def main():
    netconvert = [
        "netconvert",
        "--node-files", "nodes.nod.xml",
        "--edge-files", "edges.edg.xml",
        "--output-file", "network.net.xml",
    ]
    print("Building network:", " ".join(netconvert))
    if subprocess.run(netconvert, cwd=HERE).returncode != 0:
        print("netconvert failed; is SUMO installed?", file=sys.stderr)
        return 1

    binary = "sumo-gui" if "--gui" in sys.argv else "sumo"
    sumo = [binary, "-c", "simulation.sumocfg"]
    print("Starting simulation:", " ".join(sumo))
    return subprocess.run(sumo, cwd=HERE).returncode


if __name__ == "__main__":
    sys.exit(main())
`, b.Info.Name)
	return []byte(sb.String())
}
