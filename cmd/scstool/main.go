// scstool is a CLI utility for exporting and inspecting truck simulator
// asset files.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/scs-forge/internal/assets"
	"github.com/Faultbox/scs-forge/internal/config"
	"github.com/Faultbox/scs-forge/internal/export"
	"github.com/Faultbox/scs-forge/internal/importer"
	"github.com/Faultbox/scs-forge/internal/logger"
	"github.com/Faultbox/scs-forge/internal/scene"
	"github.com/Faultbox/scs-forge/pkg/pix"
	"github.com/Faultbox/scs-forge/pkg/sii"
	"github.com/Faultbox/scs-forge/pkg/tobj"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "export":
		cmdExport(args)
	case "inspect", "import":
		cmdInspect(args)
	case "fmt":
		cmdFmt(args)
	case "sii":
		cmdSii(args)
	case "tobj":
		cmdTobj(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`scstool - truck simulator asset utility

Usage:
  scstool <command> [options]

Commands:
  export [flags] <scene.yaml> <out_dir> [root...]  Export game object roots
  inspect <file.pim> [-anims dir] [file.pia...]    Read a file set and print a summary
  fmt [-o out] <file>                              Rewrite a PIX file in canonical layout
  sii [-I dir]... [-base dir] <file.sii>          Parse a definition file with includes
  tobj [-check] [-base dir] <file.tobj>            Parse and validate a texture descriptor

Export flags:
  -config <path>      Config file (default ./scs-forge.yaml)
  -base <dir>         Project base path
  -scale <f>          Export scale
  -output-type <t>    Model output type: 5, def or ef
  -files <list>       Comma separated kinds: pim,pic,pip,pit,pis,pia
  -log <path>         Log file
  -debug              Debug logging and dumps

Examples:
  scstool export -base ~/mod scene.yaml ~/mod/vehicle/truck
  scstool inspect -anims ~/mod/vehicle/truck/anim ~/mod/vehicle/truck/truck.pim
  scstool sii -I ~/mod def/world/prefab.sii
  scstool tobj -check -base ~/mod ~/mod/model/paint.tobj`)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func cmdExport(args []string) {
	if err := config.ParseArgs(args); err != nil {
		fail("%v", err)
	}
	if flag.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: scstool export [flags] <scene.yaml> <out_dir> [root...]")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fail("%v", err)
	}
	logOpts := logger.Options{Level: cfg.Logging.Level, DumpLevel: cfg.Logging.DumpLevel}
	if cfg.Logging.LogFile != "" {
		logOpts.File = logger.DefaultFileConfig(cfg.Logging.LogFile)
	}
	if err := logger.Setup(logOpts); err != nil {
		fail("logger: %v", err)
	}
	defer logger.Sync()
	logger.System("export",
		zap.String("scene", flag.Arg(0)),
		zap.String("output_type", cfg.Export.OutputType),
		zap.Float32("scale", cfg.Export.Scale))

	s, err := scene.LoadFile(flag.Arg(0))
	if err != nil {
		fail("%v", err)
	}
	roots := flag.Args()[2:]
	if len(roots) == 0 {
		for _, r := range s.Roots {
			roots = append(roots, r.Name)
		}
	}

	failed := 0
	for _, name := range roots {
		res := export.Export(export.Options{Config: cfg, Dir: flag.Arg(1)}, s, name)
		for _, f := range res.Files {
			switch {
			case f.Err != nil:
				fmt.Printf("  FAIL %-4s %v\n", f.Kind, f.Err)
			case f.Skipped:
				if cfg.Debug() {
					fmt.Printf("  skip %-4s %s\n", f.Kind, f.Path)
				}
			default:
				fmt.Printf("  ok   %-4s %s\n", f.Kind, f.Path)
			}
		}
		if out := res.Log.Report("Export "+name, true, true); out != "" {
			fmt.Print(out)
		}
		if !res.OK {
			failed++
		}
	}
	if failed > 0 {
		fmt.Fprintf(os.Stderr, "\n%d of %d roots failed\n", failed, len(roots))
		os.Exit(1)
	}
}

func cmdInspect(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	animDir := fs.String("anims", "", "Directory searched for .pia files")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: scstool inspect <file.pim> [-anims dir] [file.pia...]")
		os.Exit(1)
	}

	anims := fs.Args()[1:]
	if *animDir != "" {
		found, err := importer.FindAnimations(*animDir)
		if err != nil {
			fail("%v", err)
		}
		anims = append(anims, found...)
	}

	log := logger.NewStack()
	set, err := importer.Load(fs.Arg(0), anims, log)
	if err != nil {
		fail("%v", err)
	}

	m := set.Model
	fmt.Printf("Model:     %s (format %s)\n", m.Name, m.Format)
	fmt.Printf("Pieces:    %d\n", len(m.Pieces))
	fmt.Printf("Materials: %d\n", len(m.Materials))
	fmt.Printf("Locators:  %d\n", len(m.Locators))
	fmt.Printf("Parts:     %s\n", strings.Join(set.Parts(), ", "))
	if set.Collision != nil {
		fmt.Printf("Collision: %d locators, %d convex pieces\n", len(set.Collision.Locators), len(set.Collision.Pieces))
	}
	if set.Prefab != nil {
		fmt.Printf("Prefab:    %d nodes, %d curves, %d map points, %d intersections\n",
			len(set.Prefab.Nodes), len(set.Prefab.Curves), len(set.Prefab.MapPoints), len(set.Prefab.Intersections))
	}
	if set.Trait != nil {
		fmt.Printf("Trait:     %d looks, %d variants\n", len(set.Trait.Looks), len(set.Trait.Variants))
	}
	if set.Skeleton != nil {
		fmt.Printf("Skeleton:  %d bones\n", len(set.Skeleton.Bones))
	}
	for _, a := range set.Animations {
		fmt.Printf("Animation: %s (%.3fs, %d bone channels)\n", a.Name, a.TotalTime, len(a.Bones))
	}
	if out := log.Report(filepath.Base(fs.Arg(0)), true, true); out != "" {
		fmt.Print("\n" + out)
	}
}

func cmdFmt(args []string) {
	fs := flag.NewFlagSet("fmt", flag.ExitOnError)
	output := fs.String("o", "", "Output file (default: rewrite in place)")
	indent := fs.String("indent", "    ", "Indentation unit")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: scstool fmt [-o out] <file>")
		os.Exit(1)
	}

	log := logger.NewStack()
	sections, err := pix.ReadFile(fs.Arg(0), pix.Options{Report: log})
	if err != nil {
		fail("%v", err)
	}
	path := *output
	if path == "" {
		path = fs.Arg(0)
	}
	if err := pix.WriteFile(path, sections, *indent); err != nil {
		fail("%v", err)
	}
	fmt.Printf("Wrote: %s (%d sections)\n", path, len(sections))
	if out := log.Report(filepath.Base(fs.Arg(0)), true, true); out != "" {
		fmt.Print(out)
	}
}

// dirList collects a repeatable flag.
type dirList []string

func (d *dirList) String() string     { return strings.Join(*d, ",") }
func (d *dirList) Set(v string) error { *d = append(*d, v); return nil }

func cmdSii(args []string) {
	fs := flag.NewFlagSet("sii", flag.ExitOnError)
	var dirs dirList
	fs.Var(&dirs, "I", "Include directory (repeatable)")
	base := fs.String("base", "", "Project base, searched after the include directories")
	stats := fs.Bool("stats", false, "Print include lookup cache statistics")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: scstool sii [-I dir]... <file.sii>")
		os.Exit(1)
	}

	resolver := assets.NewManager(*base, dirs...)
	defer resolver.Close()

	log := logger.NewStack()
	units, err := sii.ParseFile(fs.Arg(0), sii.Options{Lookup: resolver.Lookup, Report: log})
	if err != nil {
		fail("%v", err)
	}
	if *stats {
		hits, misses := resolver.CacheStats()
		fmt.Fprintf(os.Stderr, "include lookups: %d cached, %d resolved\n", hits, misses)
	}
	if err := sii.Write(os.Stdout, units); err != nil {
		fail("%v", err)
	}
	fmt.Fprintf(os.Stderr, "\n(%d units)\n", len(units))
	if out := log.Report(filepath.Base(fs.Arg(0)), true, true); out != "" {
		fmt.Fprint(os.Stderr, out)
	}
}

func cmdTobj(args []string) {
	fs := flag.NewFlagSet("tobj", flag.ExitOnError)
	check := fs.Bool("check", false, "Open referenced images and check their size")
	base := fs.String("base", ".", "Project base for /-rooted texture paths")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: scstool tobj [-check] [-base dir] <file.tobj>")
		os.Exit(1)
	}

	log := logger.NewStack()
	d, err := tobj.ReadFile(fs.Arg(0), log)
	if err != nil {
		fail("%v", err)
	}
	if err := d.Validate(); err != nil {
		fail("%v", err)
	}
	if err := tobj.Write(os.Stdout, d); err != nil {
		fail("%v", err)
	}
	if *check {
		for _, info := range tobj.InspectAll(*base, fs.Arg(0), d, log) {
			fmt.Printf("%s: %s %dx%d\n", info.Path, info.Format, info.Width, info.Height)
		}
	}
	if out := log.Report(filepath.Base(fs.Arg(0)), true, true); out != "" {
		fmt.Fprint(os.Stderr, out)
	}
}
