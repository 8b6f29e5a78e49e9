// Command csinspect prints a report of the embedded code signature
// found in a Mach-O binary: its CodeDirectory entries, identifier,
// team ID, CDHash, and page-hash geometry.
//
// Locating the LC_CODE_SIGNATURE window is the container parser's job
// (github.com/appsworld/go-csinspect, the Mach-O reader this module was
// built from); this command only reads that window and hands it to the
// codesign package.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	macho "github.com/appsworld/go-csinspect"
	"github.com/appsworld/go-csinspect/codesign"
)

func main() {
	path := flag.String("f", "", "path to a Mach-O binary")
	verbose := flag.Bool("v", false, "also print stored and computed page hashes")
	flag.Parse()

	if *path == "" {
		fmt.Fprintln(os.Stderr, "usage: csinspect -f <path>")
		os.Exit(2)
	}

	if err := run(*path, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "csinspect: %v\n", err)
		os.Exit(1)
	}
}

func run(path string, verbose bool) error {
	f, err := macho.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	cs := f.CodeSignature()
	if cs == nil {
		return fmt.Errorf("%s has no LC_CODE_SIGNATURE", path)
	}

	buf, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	sig, err := codesign.Parse(buf, cs.Offset, cs.Size)
	if err != nil {
		return fmt.Errorf("parsing code signature: %w", err)
	}

	printReport(sig, verbose)
	return nil
}

func printReport(sig *codesign.Signature, verbose bool) {
	if sig.Unhandled != nil {
		fmt.Printf("unrecognized signature envelope magic: %#08x\n", sig.Unhandled.Magic)
		return
	}

	fmt.Printf("envelope: %d bytes at offset %#x, sha256=%s\n", sig.SuperBlob.Length, sig.BaseOffset, sig.EnvelopeSHA256)
	fmt.Printf("blobs: %d\n", len(sig.Blobs))

	for i, b := range sig.Blobs {
		idx := b.SlotIndex()
		fmt.Printf("  [%d] slot=%s offset=%#x", i, idx.Type, idx.Offset)
		switch v := b.(type) {
		case codesign.CodeDirectoryBlob:
			printCodeDirectory(v, verbose)
		case codesign.RequirementsBlob:
			fmt.Printf(" kind=Requirements\n")
		case codesign.SignedDataBlob:
			fmt.Printf(" kind=SignedData sha256=%s\n", v.SHA256Digest)
		case codesign.EntitlementsBlob:
			fmt.Printf(" kind=Entitlements bytes=%d\n", len(v.Raw))
		default:
			fmt.Printf(" kind=Unknown\n")
		}
	}

	if primary, ok := sig.Primary(); ok {
		fmt.Printf("primary CodeDirectory: hashType=%s\n", primary.HashTypeName)
		if primary.CDHash.Present {
			fmt.Printf("  cdhash: %s\n", primary.CDHash.Value)
		}
	}
}

func printCodeDirectory(cd codesign.CodeDirectoryBlob, verbose bool) {
	fmt.Printf(" kind=CodeDirectory version=%#x hashType=%s", cd.Directory.Version, cd.HashTypeName)
	if cd.Identifier.Present {
		fmt.Printf(" identifier=%q", cd.Identifier.Value)
	}
	if cd.TeamID.Present {
		fmt.Printf(" teamID=%q", cd.TeamID.Value)
	} else if cd.TeamID.Err != nil {
		fmt.Printf(" teamID=<%v>", cd.TeamID.Err)
	}
	if cd.CDHash.Present {
		fmt.Printf(" cdhash=%s", cd.CDHash.Value)
	}
	fmt.Println()

	if !verbose {
		return
	}
	for _, h := range cd.StoredHashes {
		fmt.Printf("    stored  slot %-4d %s\n", h.Index, hex.EncodeToString(h.Hash))
	}
	for _, h := range cd.ComputedHashes {
		null := ""
		if h.IsNullPage {
			null = " (null page)"
		}
		fmt.Printf("    computed slot %-4d %s%s\n", h.Index, hex.EncodeToString(h.Hash), null)
	}
}
