package main

import (
	"flag"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gsmkev/sumo-helper/network"
	"github.com/gsmkev/sumo-helper/routegen"
)

var (
	benchmarkCount    = flag.Int("benchmark.count", 100, "the route generation run count for benchmark")
	benchmarkVehicles = flag.Int("benchmark.vehicles", 100, "the vehicle count per run for benchmark")
	benchmarkSeed     = flag.Int64("benchmark.seed", 0, "the seed for benchmark")
	benchmarkCPU      = flag.Int("benchmark.cpu", 1, "the cpu count for benchmark")
)

// runBenchmark builds the network once, then measures repeated route
// generation runs with seeds derived from benchmark.seed.
func runBenchmark(raw *network.RawGraph) {
	log.Logger.SetLevel(logrus.WarnLevel)
	cfg := network.DefaultBuildConfig()
	net, err := network.Build(raw, cfg)
	if err != nil {
		log.Fatalf("benchmark failed to build network: %v", err)
	}
	candidates, err := network.ClassifyEndpoints(net, cfg)
	if err != nil {
		log.Fatalf("benchmark failed to classify endpoints: %v", err)
	}
	specs := []routegen.VehicleSpec{
		routegen.DefaultSpec("car", 70),
		routegen.DefaultSpec("bus", 20),
		routegen.DefaultSpec("truck", 10),
	}

	// one derived seed per run so every run samples different pairs
	e := rand.New(rand.NewSource(*benchmarkSeed))
	seeds := make([]int64, *benchmarkCount)
	for i := range seeds {
		seeds[i] = e.Int63()
	}

	start := time.Now()
	var wg sync.WaitGroup
	var success atomic.Int32
	if *benchmarkCPU == 1 {
		for _, seed := range seeds {
			seed := seed
			if _, err := routegen.Generate(net, candidates.Entry, candidates.Exit,
				specs, *benchmarkVehicles, 3600, &seed); err != nil {
				log.Error("benchmark failed, err:", err)
			} else {
				success.Add(1)
			}
		}
	} else {
		runtime.GOMAXPROCS(*benchmarkCPU)
		wg.Add(*benchmarkCount)
		for _, seed := range seeds {
			go func(seed int64) {
				defer wg.Done()
				if _, err := routegen.Generate(net, candidates.Entry, candidates.Exit,
					specs, *benchmarkVehicles, 3600, &seed); err != nil {
					log.Error("benchmark failed, err:", err)
				} else {
					success.Add(1)
				}
			}(seed)
		}
		wg.Wait()
	}
	timeCost := time.Since(start) * time.Duration(*benchmarkCPU)
	log.Error(
		"benchmark finished", "\n",
		"count:", *benchmarkCount, "\n",
		"time:", timeCost, "\n",
		"avg:", timeCost/time.Duration(*benchmarkCount), "\n",
		"success:", success.Load(), "\n",
	)
}
