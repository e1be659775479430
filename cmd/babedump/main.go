// babedump decodes a SCALE-encoded block header and prints its BABE
// digests: the slot claim, the seal, and any consensus log entries.
//
// Usage:
//
//	babedump -header 0x<hex>
//	babedump -file header.bin
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/geanlabs/babe/babe"
	"github.com/geanlabs/babe/types"
)

func main() {
	var (
		headerHex string
		filePath  string
	)
	flag.StringVar(&headerHex, "header", "", "Hex-encoded header (with or without 0x prefix)")
	flag.StringVar(&filePath, "file", "", "Path to a file containing the raw encoded header")
	flag.Parse()

	data, err := readHeader(headerHex, filePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "babedump:", err)
		os.Exit(1)
	}

	header, err := types.DecodeHeader(data)
	if err != nil {
		fmt.Fprintln(os.Stderr, "babedump: decoding header:", err)
		os.Exit(1)
	}

	fmt.Printf("block   #%d %s\n", header.Number, header.Hash())
	fmt.Printf("parent  %s\n", header.ParentHash)
	fmt.Printf("state   %s\n", header.StateRoot)
	fmt.Printf("digest  %d item(s)\n", len(header.Digest))
	for i, item := range header.Digest {
		fmt.Printf("  [%d] kind=%d engine=%s payload=%d bytes\n", i, item.Kind, item.Engine, len(item.Payload))
	}

	digests, err := babe.ExtractDigests(header)
	if err != nil {
		fmt.Fprintln(os.Stderr, "babedump: extracting digests:", err)
		os.Exit(1)
	}

	printClaim(digests.PreDigest)
	fmt.Printf("seal    0x%x...\n", digests.Seal[:8])
	for _, log := range digests.Logs {
		printLog(log)
	}
}

func readHeader(headerHex, filePath string) ([]byte, error) {
	switch {
	case headerHex != "":
		return hex.DecodeString(strings.TrimPrefix(headerHex, "0x"))
	case filePath != "":
		return os.ReadFile(filePath)
	default:
		return nil, fmt.Errorf("one of -header or -file is required")
	}
}

func printClaim(pre types.PreDigest) {
	switch claim := pre.(type) {
	case types.PrimaryPreDigest:
		fmt.Printf("claim   primary authority=%d slot=%d\n", claim.Authority, claim.Slot)
		fmt.Printf("        vrf output 0x%x...\n", claim.Output[:8])
	case types.SecondaryPlainPreDigest:
		fmt.Printf("claim   secondary-plain authority=%d slot=%d\n", claim.Authority, claim.Slot)
	case types.SecondaryVRFPreDigest:
		fmt.Printf("claim   secondary-vrf authority=%d slot=%d\n", claim.Authority, claim.Slot)
		fmt.Printf("        vrf output 0x%x...\n", claim.Output[:8])
	}
}

func printLog(log types.ConsensusLog) {
	switch l := log.(type) {
	case types.NextEpochData:
		fmt.Printf("log     next-epoch-data %d authorities randomness=0x%x...\n", len(l.Authorities), l.Randomness[:8])
	case types.OnDisabled:
		fmt.Printf("log     on-disabled authority=%d\n", l.Authority)
	case types.NextConfigData:
		fmt.Printf("log     next-config-data c=%d/%d secondary=%v\n", l.C1, l.C2, l.AllowSecondary)
	}
}
