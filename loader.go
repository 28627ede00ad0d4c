package main

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"os"

	"github.com/paulmach/osm"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/gsmkev/sumo-helper/network"
	"github.com/gsmkev/sumo-helper/network/geo"
)

// extractDoc is the mongo document shape for stored raw extracts: the
// extract body (Overpass JSON or OSM XML) plus an optional name.
type extractDoc struct {
	Name string `bson:"name"`
	Data []byte `bson:"data"`
}

// loadRawGraph reads a raw OSM extract from a file or a mongo collection
// and decomposes it into the builder's input. The bounding box comes from
// the -bbox flag when given, otherwise from the extract's own bounds
// element.
func loadRawGraph(ctx context.Context, mongoURI string, p *Path, bbox *geo.Bounds) (*network.RawGraph, error) {
	var data []byte
	var err error
	if p.File != "" {
		data, err = os.ReadFile(p.File)
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", p.File)
		}
	} else {
		data, err = downloadExtract(ctx, mongoURI, p)
		if err != nil {
			return nil, err
		}
	}
	return parseRawGraph(data, bbox)
}

func downloadExtract(ctx context.Context, mongoURI string, p *Path) ([]byte, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		return nil, errors.Wrap(err, "connect to mongo")
	}
	defer client.Disconnect(ctx)

	coll := client.Database(p.GetDb()).Collection(p.GetColl())
	var doc extractDoc
	if err := coll.FindOne(ctx, bson.D{}).Decode(&doc); err != nil {
		return nil, errors.Wrapf(err, "load extract from %s.%s", p.GetDb(), p.GetColl())
	}
	log.Infof("loaded extract %q from %s.%s (%d bytes)", doc.Name, p.GetDb(), p.GetColl(), len(doc.Data))
	return doc.Data, nil
}

// parseRawGraph accepts Overpass JSON or OSM XML.
func parseRawGraph(data []byte, bbox *geo.Bounds) (*network.RawGraph, error) {
	var o osm.OSM
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &o); err != nil {
			return nil, errors.Wrap(err, "parse overpass json")
		}
	} else {
		if err := xml.Unmarshal(trimmed, &o); err != nil {
			return nil, errors.Wrap(err, "parse osm xml")
		}
	}

	raw := &network.RawGraph{
		Nodes: o.Nodes,
		Ways:  o.Ways,
	}
	switch {
	case bbox != nil:
		raw.Bounds = *bbox
	case o.Bounds != nil:
		raw.Bounds = geo.Bounds{
			North: o.Bounds.MaxLat,
			South: o.Bounds.MinLat,
			East:  o.Bounds.MaxLon,
			West:  o.Bounds.MinLon,
		}
	default:
		return nil, errors.New("extract carries no bounds, pass -bbox")
	}
	log.Debugf("parsed extract: %d nodes, %d ways", len(raw.Nodes), len(raw.Ways))
	return raw, nil
}
