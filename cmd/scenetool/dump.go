package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/davecgh/go-spew/spew"

	"github.com/Faultbox/scenery/internal/config"
	"github.com/Faultbox/scenery/pkg/scene"
)

// dumpConfig prints structs without following buffers into their bytes.
var dumpConfig = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
	MaxDepth:                4,
}

func cmdDump(args []string) {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	flags := config.RegisterFlags(fs)
	what := fs.String("what", "header", "header, layout, meshes, materials, nodes or transforms")
	index := fs.Int("i", -1, "Only dump the mesh, material or node with this index")
	cfg := setup(fs, flags, args)

	a := loadAsset(cfg)
	md, s := a.Meshes, a.Scene

	pick := func(n int) (int, int) {
		if *index < 0 {
			return 0, n
		}
		if *index >= n {
			fatalf("index %d out of range [0, %d)", *index, n)
		}
		return *index, *index + 1
	}

	switch *what {
	case "header":
		dumpConfig.Fdump(os.Stdout, md.Header())
	case "layout":
		dumpConfig.Fdump(os.Stdout, md.Layout)
	case "meshes":
		lo, hi := pick(len(md.Meshes))
		for i := lo; i < hi; i++ {
			fmt.Printf("mesh %d:\n", i)
			dumpConfig.Fdump(os.Stdout, md.Meshes[i], md.Boxes[i])
		}
	case "materials":
		lo, hi := pick(len(md.Materials))
		for i := lo; i < hi; i++ {
			fmt.Printf("material %d:\n", i)
			dumpConfig.Fdump(os.Stdout, md.Materials[i])
		}
		dumpConfig.Fdump(os.Stdout, md.TextureFiles)
	case "nodes":
		lo, hi := pick(s.NumNodes())
		for i := lo; i < hi; i++ {
			fmt.Printf("node %d %q:\n", i, s.NodeName(i))
			dumpConfig.Fdump(os.Stdout, s.Hierarchy[i])
			if mesh, ok := s.MeshForNode[uint32(i)]; ok {
				fmt.Printf("  mesh %d, material %q\n", mesh, s.MaterialName(i))
			}
		}
	case "transforms":
		if err := scene.DumpTransforms(os.Stdout, s); err != nil {
			fatalf("%v", err)
		}
	default:
		fatalf("unknown -what %q", *what)
	}
}
