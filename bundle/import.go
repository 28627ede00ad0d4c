package bundle

import (
	"archive/zip"
	"bytes"
	"io"

	"github.com/pkg/errors"
)

var zipMagic = []byte("PK\x03\x04")

// Import reconstructs a bundle from a previously exported archive or from
// a bare metadata document. No raw map data is needed: the metadata embeds
// the complete network, selection, configuration and routes.
func Import(data []byte) (*SimulationBundle, error) {
	if bytes.HasPrefix(data, zipMagic) {
		metadata, err := readMetadataFromArchive(data)
		if err != nil {
			return nil, err
		}
		data = metadata
	}
	b, err := parseMetadata(data)
	if err != nil {
		return nil, err
	}
	log.Infof("imported bundle %s: %d nodes, %d edges, %d routes",
		b.Info.ID, len(b.Network.Nodes), len(b.Network.Edges), len(b.Routes.Routes))
	return b, nil
}

func readMetadataFromArchive(data []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.Wrap(err, "open archive")
	}
	for _, f := range zr.File {
		if f.Name != "metadata.json" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, errors.Wrap(err, "open metadata.json")
		}
		defer rc.Close()
		content, err := io.ReadAll(rc)
		if err != nil {
			return nil, errors.Wrap(err, "read metadata.json")
		}
		return content, nil
	}
	return nil, &MetadataSchemaError{Missing: []string{"metadata.json"}}
}
