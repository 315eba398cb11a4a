package main

import (
	"flag"
	"log"
	"os"
	"time"
)

func main() {
	outputFile := flag.String("o", "test.pcap", "Output pcap file path")
	packetCount := flag.Int("c", 1000, "Number of background packets to generate")
	scanPorts := flag.Int("scan-ports", 0, "Distinct ports probed by the synthetic scanner (0 disables)")
	scanGap := flag.Duration("scan-gap", 10*time.Millisecond, "Interval between scanner probes")
	gap := flag.Duration("gap", time.Millisecond, "Interval between background packets")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	flag.Parse()

	f, err := os.Create(*outputFile)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer f.Close()

	log.Printf("Generating %d background packets and a %d-port scan into %s...", *packetCount, *scanPorts, *outputFile)

	n, err := generate(f, scenario{
		Start:      time.Now(),
		Background: *packetCount,
		Gap:        *gap,
		ScanPorts:  *scanPorts,
		ScanGap:    *scanGap,
		Seed:       *seed,
	})
	if err != nil {
		log.Fatalf("Failed to generate capture: %v", err)
	}

	log.Printf("Successfully generated %d packets into %s.", n, *outputFile)
}
