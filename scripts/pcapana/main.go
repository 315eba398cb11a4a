package main

import (
	"NetSentinel/internal/engine/protocol"
	"NetSentinel/internal/model"
	"NetSentinel/pkg/pcap"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/netip"
	"os"
)

func main() {
	limit := flag.Int("n", 5, "Number of records to print (0 prints all)")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: go run ./scripts/pcapana [-n N] <path_to_pcap_file>")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	reader, err := pcap.NewReader(flag.Arg(0))
	if err != nil {
		log.Fatal(err)
	}
	defer reader.Close()

	parser := protocol.NewParser()
	printed, skipped := 0, 0
	for *limit == 0 || printed < *limit {
		data, ci, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Fatalf("Read error: %v", err)
		}

		rec, err := parser.Extract(model.RawFrame{Timestamp: ci.Timestamp, LinkType: reader.LinkType(), Data: data, Length: ci.Length})
		if err != nil {
			skipped++
			continue
		}
		printed++
		fmt.Println(format(rec))
	}
	if skipped > 0 {
		fmt.Printf("(%d undecodable frames skipped)\n", skipped)
	}
}

func format(rec *model.FeatureRecord) string {
	if !rec.HasPorts() {
		return fmt.Sprintf("[%s] %s -> %s proto=%s len=%d",
			rec.Timestamp.Format("15:04:05.000"), addr(rec.SrcIP), addr(rec.DstIP), rec.Protocol, rec.Length)
	}
	return fmt.Sprintf("[%s] %s:%d -> %s:%d proto=%s len=%d",
		rec.Timestamp.Format("15:04:05.000"),
		rec.SrcIP, rec.SrcPort, rec.DstIP, rec.DstPort, rec.Protocol, rec.Length)
}

func addr(a netip.Addr) string {
	if !a.IsValid() {
		return "-"
	}
	return a.String()
}
