// scenetool converts glTF scenes into the cached mesh/scene/material files
// and inspects, merges, culls and serves them.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/scenery/internal/config"
	"github.com/Faultbox/scenery/internal/culling"
	"github.com/Faultbox/scenery/internal/drawset"
	"github.com/Faultbox/scenery/internal/engine/camera"
	"github.com/Faultbox/scenery/internal/gpu/soft"
	"github.com/Faultbox/scenery/internal/importer"
	"github.com/Faultbox/scenery/internal/inspect"
	"github.com/Faultbox/scenery/internal/logger"
	"github.com/Faultbox/scenery/internal/texture"
	"github.com/Faultbox/scenery/pkg/formats"
	"github.com/Faultbox/scenery/pkg/math"
	"github.com/Faultbox/scenery/pkg/scene"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "convert":
		cmdConvert(args)
	case "merge":
		cmdMerge(args)
	case "info":
		cmdInfo(args)
	case "validate", "check":
		cmdValidate(args)
	case "cull":
		cmdCull(args)
	case "dot":
		cmdDot(args)
	case "dump":
		cmdDump(args)
	case "serve":
		cmdServe(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`scenetool - scene cache converter and inspector

Usage:
  scenetool <command> [options]

Commands:
  convert [source.gltf]            Import a glTF/glb scene into the cache
  merge <a.meshes> <b.meshes>...   Merge cached scenes into the configured cache files
  info                             Show mesh, material and node statistics
  validate                         Check the cache files for consistency
  cull                             Cull the scene from a camera sweep and report visibility
  dot                              Write the node hierarchy as Graphviz
  dump                             Dump headers, meshes, materials or nodes
  serve                            Run the HTTP inspector

Every command accepts -config, -cache, -debug and the other settings
overrides; run "scenetool <command> -h" for the full list.

Examples:
  scenetool convert -cache .cache assets/sponza.glb
  scenetool merge -spacing 40 a/scene.meshes b/scene.meshes
  scenetool cull -cull gpu -frames 16
  scenetool dot -highlight 1,2 > scene.dot
  scenetool serve -addr :8420`)
}

// setup parses the shared override flags, loads the config and configures
// logging.
func setup(fs *flag.FlagSet, flags *config.Flags, args []string) *config.Config {
	fs.Parse(args)

	cfg, err := config.Load(flags)
	if err != nil {
		fatalf("%v", err)
	}
	if err := logger.Configure(cfg.LoggerOptions()); err != nil {
		fatalf("configure logging: %v", err)
	}
	return cfg
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	logger.Sync()
	os.Exit(1)
}

func cacheFiles(cfg *config.Config) importer.Files {
	return importer.Files{
		Mesh:     cfg.Assets.Path(cfg.Assets.MeshFile),
		Scene:    cfg.Assets.Path(cfg.Assets.SceneFile),
		Material: cfg.Assets.Path(cfg.Assets.MaterialFile),
	}
}

// siblingFiles names the scene and material files next to a mesh file.
func siblingFiles(meshPath string) importer.Files {
	base := strings.TrimSuffix(meshPath, filepath.Ext(meshPath))
	return importer.Files{Mesh: meshPath, Scene: base + ".scene", Material: base + ".materials"}
}

func loadAsset(cfg *config.Config) *importer.Asset {
	files := cacheFiles(cfg)
	a, err := importer.LoadAsset(files)
	if err != nil {
		fatalf("%v (run \"scenetool convert\" first?)", err)
	}
	return a
}

func newDevice(log *zap.Logger) *soft.Device {
	return soft.New(soft.WithLogger(log.Named("gpu")))
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func cmdConvert(args []string) {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	flags := config.RegisterFlags(fs)
	force := fs.Bool("force", false, "Convert even if the cache is valid")
	noTextures := fs.Bool("no-texture-cache", false, "Keep source texture paths instead of converting to WebP")
	cfg := setup(fs, flags, args)

	source := cfg.Assets.Source
	if fs.NArg() > 0 {
		source = fs.Arg(0)
	}
	if source == "" {
		fmt.Fprintln(os.Stderr, "Usage: scenetool convert [-force] <source.gltf|glb>")
		os.Exit(1)
	}

	opts := importer.ConvertOptions{
		Source:         source,
		Files:          cacheFiles(cfg),
		TextureMaxSize: cfg.Textures.MaxSize,
		TextureWorkers: cfg.Textures.Workers,
		GenerateLODs:   cfg.Import.GenerateLODs,
		MergeMaterials: cfg.Import.MergeMaterials,
		Force:          *force,
		Log:            logger.Named("import"),
	}
	if !*noTextures {
		opts.TextureCacheDir = cfg.Textures.CacheDir
	}

	ctx, cancel := signalContext()
	defer cancel()

	start := time.Now()
	a, cached, err := importer.Convert(ctx, opts)
	if err != nil {
		fatalf("%v", err)
	}

	state := "converted"
	if cached {
		state = "cached"
	}
	fmt.Printf("Source:    %s (%s in %v)\n", source, state, time.Since(start).Round(time.Millisecond))
	fmt.Printf("Meshes:    %s\n", opts.Files.Mesh)
	fmt.Printf("Scene:     %s\n", opts.Files.Scene)
	fmt.Printf("Materials: %s\n", opts.Files.Material)
	printStats(a)
}

func cmdMerge(args []string) {
	fs := flag.NewFlagSet("merge", flag.ExitOnError)
	flags := config.RegisterFlags(fs)
	spacing := fs.Float64("spacing", 0, "Offset each input along X by this distance times its index")
	cfg := setup(fs, flags, args)

	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: scenetool merge [-spacing d] <a.meshes> <b.meshes> [more.meshes...]")
		os.Exit(1)
	}

	assets := make([]*importer.Asset, 0, fs.NArg())
	var roots []math.Mat4
	for i, path := range fs.Args() {
		a, err := importer.LoadAsset(siblingFiles(path))
		if err != nil {
			fatalf("%v", err)
		}
		assets = append(assets, a)
		if *spacing != 0 {
			roots = append(roots, math.Translate(math.Vec3{X: float32(*spacing) * float32(i)}))
		}
	}

	merged, err := importer.MergeAssets(assets, roots)
	if err != nil {
		fatalf("merge: %v", err)
	}
	if err := merged.MergeMaterials(cfg.Import.MergeMaterials, logger.Named("merge")); err != nil {
		fatalf("merge materials: %v", err)
	}

	files := cacheFiles(cfg)
	if err := os.MkdirAll(filepath.Dir(files.Mesh), 0o755); err != nil {
		fatalf("%v", err)
	}
	if err := merged.Save(files); err != nil {
		fatalf("%v", err)
	}
	fmt.Printf("Merged %d scenes into %s\n", len(assets), files.Mesh)
	printStats(merged)
}

func printStats(a *importer.Asset) {
	md, s := a.Meshes, a.Scene

	lods := 0
	for _, m := range md.Meshes {
		lods += int(m.LODCount)
	}
	withMesh := len(s.MeshForNode)

	fmt.Printf("Nodes:     %d (%d with meshes)\n", s.NumNodes(), withMesh)
	fmt.Printf("Meshes:    %d (%d LODs)\n", len(md.Meshes), lods)
	fmt.Printf("Vertices:  %d (%d bytes each)\n", md.VertexCount(), md.Layout.Stride())
	fmt.Printf("Indices:   %d\n", len(md.IndexData))
	fmt.Printf("Materials: %d\n", len(md.Materials))
	fmt.Printf("Textures:  %d\n", len(md.TextureFiles))
}

func cmdInfo(args []string) {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	flags := config.RegisterFlags(fs)
	cfg := setup(fs, flags, args)

	a := loadAsset(cfg)
	md, s := a.Meshes, a.Scene

	fmt.Printf("Cache:     %s\n", cfg.Assets.CacheDir)
	printStats(a)

	bounds := math.EmptyBox()
	for _, b := range culling.WorldBoxes(s, md) {
		if !b.IsEmpty() {
			bounds = bounds.Union(b)
		}
	}
	if !bounds.IsEmpty() {
		fmt.Printf("Bounds:    %v - %v\n", bounds.Min, bounds.Max)
	}
	fmt.Println()

	// Nodes per material, most used first
	type matStat struct {
		name  string
		nodes int
	}
	counts := make(map[uint32]int)
	for _, mat := range s.MaterialForNode {
		counts[mat]++
	}
	var stats []matStat
	for mat, n := range counts {
		name := fmt.Sprintf("material%d", mat)
		if int(mat) < len(s.MaterialNames) {
			name = s.MaterialNames[mat]
		}
		stats = append(stats, matStat{name, n})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].nodes != stats[j].nodes {
			return stats[i].nodes > stats[j].nodes
		}
		return stats[i].name < stats[j].name
	})

	fmt.Println("Nodes by material:")
	for _, st := range stats {
		fmt.Printf("  %-24s %d\n", st.name, st.nodes)
	}
}

func cmdValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	flags := config.RegisterFlags(fs)
	cfg := setup(fs, flags, args)

	files := cacheFiles(cfg)
	failed := false
	check := func(name string, err error) {
		if err != nil {
			fmt.Printf("FAIL  %-10s %v\n", name, err)
			failed = true
			return
		}
		fmt.Printf("OK    %s\n", name)
	}

	check("meshes", formats.ValidateMeshFile(files.Mesh))

	var matErr error
	materials, textures, err := formats.LoadMaterials(files.Material)
	if err != nil {
		matErr = err
	} else {
		matErr = formats.CheckMaterialTextures(materials, len(textures))
	}
	check("materials", matErr)

	s, err := scene.LoadScene(files.Scene)
	check("scene", err)

	if failed {
		os.Exit(1)
	}

	_, md, err := formats.LoadMeshData(files.Mesh)
	if err != nil {
		fatalf("%v", err)
	}
	var refErr error
	for node, mesh := range s.MeshForNode {
		if int(mesh) >= len(md.Meshes) {
			refErr = fmt.Errorf("node %d references mesh %d of %d", node, mesh, len(md.Meshes))
			break
		}
	}
	for _, m := range md.Meshes {
		if int(m.MaterialID) >= len(materials) {
			refErr = fmt.Errorf("mesh references material %d of %d", m.MaterialID, len(materials))
			break
		}
	}
	check("references", refErr)
	if failed {
		os.Exit(1)
	}
}

func cmdCull(args []string) {
	fs := flag.NewFlagSet("cull", flag.ExitOnError)
	flags := config.RegisterFlags(fs)
	frames := fs.Int("frames", 8, "Number of camera positions around the scene")
	noTextures := fs.Bool("no-textures", false, "Skip texture loading")
	cfg := setup(fs, flags, args)

	log := logger.Named("cull")
	a := loadAsset(cfg)
	md := a.Meshes
	if *noTextures {
		md = md.WithoutTextures()
	}

	mode, err := culling.ParseMode(cfg.Culling.Mode)
	if err != nil {
		fatalf("%v", err)
	}

	dev := newDevice(log)
	opts := []drawset.Option{
		drawset.WithLOD(int(cfg.Culling.LOD)),
		drawset.WithTextures(texture.Loader{MaxSize: cfg.Textures.MaxSize}, cfg.Textures.CacheDir),
		drawset.WithLogger(logger.Named("drawset")),
	}
	if cfg.Textures.Lazy {
		opts = append(opts, drawset.WithLazyTextures(drawset.LazyConfig{
			Workers:            cfg.Textures.Workers,
			QueueSize:          cfg.Textures.QueueSize,
			MaxUploadsPerFrame: cfg.Textures.MaxUploadsPerFrame,
		}))
	}
	ds, err := drawset.New(dev, md, a.Scene, opts...)
	if err != nil {
		fatalf("%v", err)
	}
	defer ds.Close()

	boxes := culling.WorldBoxes(a.Scene, md)
	engine, err := culling.New(dev, ds, boxes, culling.WithMode(mode), culling.WithLogger(logger.Named("culling")))
	if err != nil {
		fatalf("%v", err)
	}

	bounds := math.EmptyBox()
	for _, b := range boxes {
		if !b.IsEmpty() {
			bounds = bounds.Union(b)
		}
	}
	orbit := camera.NewOrbitCamera()
	orbit.FitToBounds(bounds)
	proj := orbit.Projection()

	fmt.Printf("Mode: %s, %d draw commands, LOD %d\n", mode, ds.NumCommands(), cfg.Culling.LOD)
	fmt.Printf("%-6s %-28s %8s %8s %9s\n", "frame", "eye", "visible", "drawn", "textures")
	for i, pose := range orbit.Sweep(*frames) {
		if _, err := ds.ProcessLoadedTextures(); err != nil {
			log.Warn("texture upload failed", zap.Error(err))
		}

		cmd := dev.AcquireCommandBuffer()
		stats, err := engine.Cull(cmd, pose.View(), proj)
		if err != nil {
			fatalf("frame %d: %v", i, err)
		}
		ds.Draw(cmd)
		h, err := dev.Submit(cmd)
		if err != nil {
			fatalf("frame %d: %v", i, err)
		}
		if err := engine.FrameSubmitted(h); err != nil {
			fatalf("frame %d: %v", i, err)
		}
		if i == 0 && cfg.Culling.Freeze {
			engine.Freeze(true)
		}

		drawn := 0
		if rec, ok := dev.LastDraw(); ok {
			drawn = rec.Instances()
		}
		visible := fmt.Sprint(stats.Visible)
		if stats.Stale {
			visible += "*"
		}
		eye := fmt.Sprintf("(%.1f, %.1f, %.1f)", pose.Eye.X, pose.Eye.Y, pose.Eye.Z)
		fmt.Printf("%-6d %-28s %8s %8d %9d\n", i, eye, visible, drawn, ds.LoadedTextures())
	}
	if mode == culling.ModeGPU {
		fmt.Println("* GPU counts trail the frame they were read in")
	}

	// Let lazy loading finish so failures surface before exit.
	deadline := time.Now().Add(10 * time.Second)
	for ds.PendingTextures() > 0 && time.Now().Before(deadline) {
		if _, err := ds.ProcessLoadedTextures(); err != nil {
			log.Warn("texture upload failed", zap.Error(err))
		}
		time.Sleep(10 * time.Millisecond)
	}
	fmt.Printf("Textures loaded: %d of %d\n", ds.LoadedTextures(), len(md.TextureFiles))
}

func cmdDot(args []string) {
	fs := flag.NewFlagSet("dot", flag.ExitOnError)
	flags := config.RegisterFlags(fs)
	highlight := fs.String("highlight", "", "Comma-separated node ids to highlight")
	output := fs.String("o", "", "Output file (default stdout)")
	cfg := setup(fs, flags, args)

	s, err := scene.LoadScene(cacheFiles(cfg).Scene)
	if err != nil {
		fatalf("%v", err)
	}

	var ids []int
	if *highlight != "" {
		for _, p := range strings.Split(*highlight, ",") {
			var id int
			if _, err := fmt.Sscanf(strings.TrimSpace(p), "%d", &id); err != nil || id < 0 || id >= s.NumNodes() {
				fatalf("highlight %q: not a node id", p)
			}
			ids = append(ids, id)
		}
	}

	w := os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			fatalf("%v", err)
		}
		defer f.Close()
		w = f
	}
	if err := scene.DumpToDot(w, s, ids...); err != nil {
		fatalf("%v", err)
	}
}

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	flags := config.RegisterFlags(fs)
	cfg := setup(fs, flags, args)

	a := loadAsset(cfg)
	mode, err := culling.ParseMode(cfg.Culling.Mode)
	if err != nil {
		fatalf("%v", err)
	}

	srv, err := inspect.New(a.Meshes, a.Scene,
		inspect.WithLogger(logger.Named("inspect")),
		inspect.WithLOD(int(cfg.Culling.LOD)),
		inspect.WithMode(mode))
	if err != nil {
		fatalf("%v", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Printf("Inspector on http://%s/api/summary\n", cfg.Inspect.Addr)
	if err := srv.ListenAndServe(ctx, cfg.Inspect.Addr); err != nil {
		fatalf("%v", err)
	}
	logger.Sync()
}
