package main

import (
	"context"
	"flag"
	"os"
	"strconv"
	"strings"

	easy "git.fiblab.net/utils/logrus-easy-formatter"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/gsmkev/sumo-helper/bundle"
	"github.com/gsmkev/sumo-helper/network"
	"github.com/gsmkev/sumo-helper/network/geo"
	"github.com/gsmkev/sumo-helper/routegen"
)

var (
	// input
	mongoURI     = flag.String("mongo_uri", "", "mongo db uri")
	inputPathStr = flag.String("input", "", "raw OSM extract [format: {fspath} or {db}.{col}]")
	bboxStr      = flag.String("bbox", "", "bounding box [format: north,south,east,west] (default: the extract's own bounds)")
	fromBundle   = flag.String("from-bundle", "", "re-export an existing archive or metadata document instead of building")

	// simulation parameters
	entryStr   = flag.String("entry", "", "comma-separated entry node ids (default: all candidates)")
	exitStr    = flag.String("exit", "", "comma-separated exit node ids (default: all candidates)")
	mixStr     = flag.String("mix", "car:100", "vehicle mix [format: type:percent,...]")
	vehicles   = flag.Int("vehicles", 100, "total vehicle count")
	duration   = flag.Float64("duration", 3600, "simulation duration in seconds")
	seedFlag   = flag.Int64("seed", -1, "random seed, -1 means time-based")
	simName    = flag.String("name", "simulation", "simulation name")
	outputPath = flag.String("out", "simulation.zip", "output archive path")
	logLevel   = flag.String("log-level", "info", "log level [debug, info, warn, error, fatal, panic]")

	// profiling
	benchmarkMode = flag.Bool("benchmark", false, "benchmark mode")
	pprofAddr     = flag.String("pprof", "", "pprof listening address (empty means disabled)")

	LOG_LEVELS = map[string]logrus.Level{
		"debug": logrus.DebugLevel,
		"info":  logrus.InfoLevel,
		"warn":  logrus.WarnLevel,
		"error": logrus.ErrorLevel,
		"fatal": logrus.FatalLevel,
		"panic": logrus.PanicLevel,
	}
)

func main() {
	logrus.SetFormatter(&easy.Formatter{
		TimestampFormat: "2006-01-02 15:04:05.0000",
		LogFormat:       "[%module%] [%time%] [%lvl%] %msg%\n",
	})
	flag.Parse()
	if level, ok := LOG_LEVELS[*logLevel]; ok {
		logrus.SetLevel(level)
	} else {
		logrus.Fatalf("invalid log level: %s", *logLevel)
	}

	if *pprofAddr != "" {
		startHTTPDebugger(*pprofAddr)
	}

	if *fromBundle != "" {
		if err := reexport(*fromBundle, *outputPath); err != nil {
			log.Fatalf("re-export failed: %v", err)
		}
		return
	}

	inputPath, err := NewPath(*inputPathStr)
	if err != nil {
		log.Fatalf("invalid input path: %s", err)
	}
	if inputPath == nil {
		log.Fatal("missing -input")
	}
	bbox, err := parseBBox(*bboxStr)
	if err != nil {
		log.Fatalf("invalid bbox: %s", err)
	}
	raw, err := loadRawGraph(context.Background(), *mongoURI, inputPath, bbox)
	if err != nil {
		log.Fatalf("failed to load raw graph: %v", err)
	}

	if *benchmarkMode {
		runBenchmark(raw)
		return
	}

	if err := run(raw); err != nil {
		log.Fatalf("export failed: %v", err)
	}
}

// run drives the full pipeline: build, classify, select, generate,
// export.
func run(raw *network.RawGraph) error {
	cfg := network.DefaultBuildConfig()
	store := network.NewStore()
	net, err := store.GetOrBuild(raw, cfg)
	if err != nil {
		return err
	}

	candidates, err := network.ClassifyEndpoints(net, cfg)
	if err != nil {
		return err
	}
	entry := parseIDList(*entryStr)
	if entry == nil {
		entry = candidates.Entry
	}
	exit := parseIDList(*exitStr)
	if exit == nil {
		exit = candidates.Exit
	}
	if err := network.ValidateEndpoints(net, entry, exit, cfg); err != nil {
		return err
	}

	specs, err := parseMix(*mixStr)
	if err != nil {
		return err
	}
	seed := seedPtr(*seedFlag)
	routes, err := routegen.Generate(net, entry, exit, specs, *vehicles, *duration, seed)
	if err != nil {
		return err
	}

	b := bundle.New(*simName, net,
		bundle.SelectedPoints{Entry: entry, Exit: exit},
		bundle.SimulationConfig{
			TotalVehicles: *vehicles,
			Duration:      *duration,
			Seed:          seed,
			VehicleTypes:  specs,
		},
		routes)
	data, err := bundle.Export(b)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*outputPath, data, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", *outputPath)
	}
	log.Infof("wrote %s (%d bytes)", *outputPath, len(data))
	return nil
}

// reexport round-trips an existing bundle through import and export,
// which normalizes the archive without touching its content.
func reexport(inPath, outPath string) error {
	data, err := os.ReadFile(inPath)
	if err != nil {
		return errors.Wrapf(err, "read %s", inPath)
	}
	b, err := bundle.Import(data)
	if err != nil {
		return err
	}
	out, err := bundle.Export(b)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, out, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", outPath)
	}
	log.Infof("re-exported %s to %s (%d bytes)", inPath, outPath, len(out))
	return nil
}

// parseBBox parses "north,south,east,west"; an empty string means defer
// to the extract's own bounds.
func parseBBox(s string) (*geo.Bounds, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, errors.Errorf("want north,south,east,west, got %q", s)
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "component %d", i)
		}
		vals[i] = v
	}
	b := &geo.Bounds{North: vals[0], South: vals[1], East: vals[2], West: vals[3]}
	if b.North <= b.South || b.East <= b.West {
		return nil, errors.Errorf("degenerate bounding box %q", s)
	}
	return b, nil
}

// parseMix parses "car:70,bus:20,truck:10" into vehicle specs with stock
// parameters.
func parseMix(s string) ([]routegen.VehicleSpec, error) {
	var specs []routegen.VehicleSpec
	for _, part := range strings.Split(s, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(kv) != 2 {
			return nil, errors.Errorf("want type:percent, got %q", part)
		}
		percent, err := strconv.ParseFloat(kv[1], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "percent of %q", kv[0])
		}
		specs = append(specs, routegen.DefaultSpec(kv[0], percent))
	}
	return specs, nil
}

func parseIDList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var ids []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			ids = append(ids, part)
		}
	}
	return ids
}

func seedPtr(v int64) *int64 {
	if v < 0 {
		return nil
	}
	return &v
}
