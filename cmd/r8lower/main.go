// r8lower assigns constant-pool indices for a listing of symbol uses and
// inspects the pool snapshots it writes.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/Londek/r8-mirror/compilation"
	"github.com/Londek/r8-mirror/config"
	"github.com/Londek/r8-mirror/graph"
	"github.com/Londek/r8-mirror/pool"
)

func main() {
	verbose := flag.Bool("v", false, "Verbose output")
	dir := flag.String("C", ".", "Directory to search upwards for "+config.FileName)
	output := flag.String("o", "", "Snapshot output path (overrides [output] snapshot)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: r8lower [options] assign <uses.yaml>\n")
		fmt.Fprintf(os.Stderr, "       r8lower [options] digest <snapshot.cbor>\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  r8lower -o pools.cbor assign uses.yaml  # Assign pools, write a snapshot\n")
		fmt.Fprintf(os.Stderr, "  r8lower digest pools.cbor               # Print pool sizes and digest\n")
	}
	flag.Parse()

	args := flag.Args()
	if len(args) != 2 {
		flag.Usage()
		os.Exit(2)
	}

	var err error
	switch args[0] {
	case "assign":
		err = runAssign(os.Stdout, args[1], *dir, *output, *verbose)
	case "digest":
		err = runDigest(os.Stdout, args[1])
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runAssign(w io.Writer, path, dir, output string, verbose bool) error {
	options, err := config.FindAndLoad(dir)
	if err != nil {
		return err
	}
	if options == nil {
		options = config.Default()
	}
	if output != "" {
		options.Output.Snapshot = output
	}
	if verbose && options.Compilation.Verbosity < 1 {
		options.Compilation.Verbosity = 1
	}

	factory := graph.NewFactory()
	l, err := loadUsesFile(path, factory)
	if err != nil {
		return err
	}
	c, err := compilation.NewFromOptions(factory, l.program, nil, l.initClass, options)
	if err != nil {
		return err
	}
	mapping, err := c.AssignUses(context.Background(), l.records)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "compilation %s\n", c.ID)
	printCounts(w, func(kind graph.Kind) int { return mapping.Count(kind) })
	if mapping.HasJumboStrings() {
		fmt.Fprintf(w, "jumbo strings from %q\n", mapping.FirstJumboString().Value)
	}
	digest, err := mapping.Snapshot().Digest()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "digest %016x\n", digest)
	return nil
}

func runDigest(w io.Writer, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", path, err)
	}
	snap, err := pool.UnmarshalSnapshot(data)
	if err != nil {
		return err
	}
	counts := map[graph.Kind]int{
		graph.KindClass:        len(snap.Classes),
		graph.KindProto:        len(snap.Protos),
		graph.KindType:         len(snap.Types),
		graph.KindMethod:       len(snap.Methods),
		graph.KindField:        len(snap.Fields),
		graph.KindString:       len(snap.Strings),
		graph.KindCallSite:     len(snap.CallSites),
		graph.KindMethodHandle: len(snap.MethodHandles),
	}
	printCounts(w, func(kind graph.Kind) int { return counts[kind] })
	if snap.JumboFrom != 0 {
		fmt.Fprintf(w, "jumbo strings from index %d\n", snap.JumboFrom)
	}
	digest, err := snap.Digest()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "digest %016x\n", digest)
	return nil
}

var printOrder = []graph.Kind{
	graph.KindClass, graph.KindProto, graph.KindType, graph.KindMethod,
	graph.KindField, graph.KindString, graph.KindCallSite, graph.KindMethodHandle,
}

func printCounts(w io.Writer, count func(graph.Kind) int) {
	for _, kind := range printOrder {
		fmt.Fprintf(w, "%-14s %d\n", kind, count(kind))
	}
}
