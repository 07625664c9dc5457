// Package export drives one export call: it runs the file builders for a
// game object root in dependency order and writes their output.
package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"go.uber.org/zap"

	"github.com/Faultbox/scs-forge/internal/assets"
	"github.com/Faultbox/scs-forge/internal/config"
	"github.com/Faultbox/scs-forge/internal/logger"
	"github.com/Faultbox/scs-forge/internal/pia"
	"github.com/Faultbox/scs-forge/internal/pic"
	"github.com/Faultbox/scs-forge/internal/pim"
	"github.com/Faultbox/scs-forge/internal/pip"
	"github.com/Faultbox/scs-forge/internal/pis"
	"github.com/Faultbox/scs-forge/internal/pit"
	"github.com/Faultbox/scs-forge/internal/preset"
	"github.com/Faultbox/scs-forge/internal/scene"
	"github.com/Faultbox/scs-forge/internal/trans"
	"github.com/Faultbox/scs-forge/pkg/pix"
)

var (
	ErrPreflight    = errors.New("export pre-flight failed")
	ErrPartMismatch = errors.New("part order differs from trait")
	ErrDependency   = errors.New("required file failed")
)

// Kind names an output file type by its extension.
type Kind string

const (
	KindPIM Kind = "pim"
	KindPIC Kind = "pic"
	KindPIP Kind = "pip"
	KindPIT Kind = "pit"
	KindPIS Kind = "pis"
	KindPIA Kind = "pia"
)

// Source is a provider that can also look roots up by name.
type Source interface {
	scene.Provider
	Root(name string) (*scene.Root, bool)
}

// Options configures an export call.
type Options struct {
	Config *config.Config
	// Dir is the output directory. It is created when missing.
	Dir string
	// Presets overrides the library named by Config.Presets.Path.
	Presets *preset.Library
	// Assets overrides the manager built from Config.Project.
	Assets *assets.Manager
	// Connections overrides the graph built from the root's links.
	Connections scene.Connections
}

// File is the outcome of one output file. Skipped files were disabled or
// had nothing to export; they are not failures.
type File struct {
	Kind    Kind
	Path    string
	Err     error
	Skipped bool
}

// Written reports whether the file exists on disk after the call.
func (f File) Written() bool { return f.Err == nil && !f.Skipped }

// Result is the outcome of an export call. OK is false when pre-flight
// failed or any enabled file failed.
type Result struct {
	OK    bool
	Files []File
	Log   *logger.Stack
}

// Err returns the first file error, or nil.
func (r *Result) Err() error {
	for _, f := range r.Files {
		if f.Err != nil {
			return f.Err
		}
	}
	return nil
}

// File returns the first outcome of kind.
func (r *Result) File(kind Kind) (File, bool) {
	for _, f := range r.Files {
		if f.Kind == kind {
			return f, true
		}
	}
	return File{}, false
}

type pending struct {
	file     File
	sections []*pix.Section
}

type exporter struct {
	cfg   *config.Config
	opts  Options
	src   Source
	root  *scene.Root
	set   *trans.Set
	log   *logger.Stack
	files []*pending
}

// Export writes the enabled files of the root called name into opts.Dir.
// Pre-flight failures write nothing. A failing file does not stop the
// files that do not depend on it; skeleton and animations require the
// model. The errors and warnings of the call stay buffered in Result.Log
// for the caller to report.
func Export(opts Options, src Source, name string) Result {
	log := logger.NewStack()
	res := Result{Log: log}

	e, err := prepare(opts, src, name, log)
	if err != nil {
		log.Errorf("%v", err)
		res.Files = append(res.Files, File{Err: err})
		return res
	}

	e.build()
	e.checkParts()
	if logger.Dumps(3) {
		logger.Debug("export registers",
			zap.String("root", name),
			zap.Strings("parts", e.set.Parts.Names()),
			zap.Strings("materials", e.set.Materials.Names()),
			zap.Strings("bones", e.set.Bones.Names()),
			zap.Int("terrain_points", e.set.TerrainPoints.Len()))
	}

	res.OK = true
	for _, p := range e.files {
		if p.file.Written() {
			if err := e.write(p); err != nil {
				p.file.Err = err
			}
		}
		if p.file.Err != nil {
			res.OK = false
		}
		res.Files = append(res.Files, p.file)
	}
	return res
}

// prepare runs the pre-flight checks and sets up the accumulators.
func prepare(opts Options, src Source, name string, log *logger.Stack) (*exporter, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPreflight, err)
	}
	root, ok := src.Root(name)
	if !ok {
		return nil, fmt.Errorf("%w: no root %q", ErrPreflight, name)
	}

	meshes := src.Meshes(root)
	if src.Armature(root) != nil && len(meshes) == 0 {
		return nil, fmt.Errorf("%w: skinned root %q has no mesh", ErrPreflight, name)
	}
	models := 0
	for _, l := range src.Locators(root) {
		if l.Kind == scene.LocatorModel {
			models++
		}
	}
	if cfg.Export.PIM && len(meshes) == 0 && models == 0 {
		return nil, fmt.Errorf("%w: root %q has no mesh and no model locator", ErrPreflight, name)
	}

	if opts.Presets == nil {
		lib, err := preset.Load(cfg.Presets.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrPreflight, err)
		}
		opts.Presets = lib
	}
	if opts.Assets == nil && cfg.Project.BasePath != "" {
		opts.Assets = assets.NewManager(cfg.Project.BasePath, cfg.Project.SiiIncludeDirs...)
	}
	if opts.Connections == nil {
		opts.Connections = scene.NewGraph(root)
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPreflight, err)
	}

	e := &exporter{cfg: cfg, opts: opts, src: src, root: root, set: trans.New(), log: log}

	// Every builder lists all parts, so they are registered up front in
	// trait order: declared parts first, then objects in scene order.
	for _, part := range src.Parts(root) {
		e.set.Parts.Add(part)
	}
	for _, m := range meshes {
		e.set.Parts.Add(m.Part)
	}
	for _, l := range src.Locators(root) {
		e.set.Parts.Add(l.Part)
	}
	return e, nil
}

func (e *exporter) path(kind Kind) string {
	return filepath.Join(e.opts.Dir, e.root.Name+"."+string(kind))
}

func (e *exporter) add(kind Kind, path string, sections []*pix.Section, err error) *pending {
	p := &pending{file: File{Kind: kind, Path: path}, sections: sections}
	if err != nil {
		p.file.Err = fmt.Errorf("%s %s: %w", kind, e.root.Name, err)
	}
	e.files = append(e.files, p)
	return p
}

func (e *exporter) skip(kind Kind, path string) {
	e.files = append(e.files, &pending{file: File{Kind: kind, Path: path, Skipped: true}})
}

func (e *exporter) build() {
	x := e.cfg.Export
	name := e.root.Name

	modelOK := true
	if x.PIM {
		secs, err := pim.Build(e.root, e.src, e.set, pim.Options{
			Name:     name,
			Format:   pim.Format(x.OutputType),
			Scale:    x.Scale,
			Skeleton: e.skeletonRef(),
			Presets:  e.opts.Presets,
		}, e.log)
		modelOK = err == nil
		e.add(KindPIM, e.path(KindPIM), secs, err)
	} else {
		e.skip(KindPIM, e.path(KindPIM))
	}

	if x.PIC {
		secs, err := pic.Build(e.root, e.src, e.set, pic.Options{Name: name, Scale: x.Scale}, e.log)
		if errors.Is(err, pic.ErrNoColliders) {
			e.skip(KindPIC, e.path(KindPIC))
		} else {
			e.add(KindPIC, e.path(KindPIC), secs, err)
		}
	} else {
		e.skip(KindPIC, e.path(KindPIC))
	}

	if x.PIP {
		secs, err := pip.Build(e.root, e.src, e.opts.Connections, e.set, pip.Options{Name: name, Scale: x.Scale}, e.log)
		if errors.Is(err, pip.ErrNoPrefab) {
			e.skip(KindPIP, e.path(KindPIP))
		} else {
			e.add(KindPIP, e.path(KindPIP), secs, err)
		}
	} else {
		e.skip(KindPIP, e.path(KindPIP))
	}

	if x.PIT {
		secs, err := pit.Build(e.root, e.src, e.set, pit.Options{
			Name:     name,
			Extended: x.OutputType == config.OutputEF,
			Presets:  e.opts.Presets,
			Assets:   e.opts.Assets,
		}, e.log)
		e.add(KindPIT, e.path(KindPIT), secs, err)
	} else {
		e.skip(KindPIT, e.path(KindPIT))
	}

	skinned := e.src.Armature(e.root) != nil
	pisPath := filepath.Join(e.opts.Dir, filepath.FromSlash(e.root.Skeleton())+".pis")
	switch {
	case !x.PIS || !skinned:
		e.skip(KindPIS, pisPath)
	case !modelOK:
		e.log.Errorf("skeleton %q not written: model failed", e.root.Skeleton())
		e.add(KindPIS, pisPath, nil, ErrDependency)
	default:
		secs, err := pis.Build(e.root, e.src, pis.Options{Name: filepath.Base(e.root.Skeleton()), Scale: x.Scale}, e.log)
		e.add(KindPIS, pisPath, secs, err)
	}

	if !x.PIA || !skinned {
		return
	}
	dir := filepath.Join(e.opts.Dir, filepath.FromSlash(e.root.AnimFolder))
	for _, anim := range e.root.Animations {
		path := filepath.Join(dir, anim.Name+".pia")
		if !modelOK {
			e.log.Errorf("animation %q not written: model failed", anim.Name)
			e.add(KindPIA, path, nil, ErrDependency)
			continue
		}
		secs, err := pia.Build(e.root, e.src, anim, pia.Options{
			Name:     anim.Name,
			Skeleton: e.animSkeletonRef(),
			Scale:    x.Scale,
			Step:     x.AnimStep,
		}, e.log)
		e.add(KindPIA, path, secs, err)
	}
}

// skeletonRef is the skeleton file as seen from the model file.
func (e *exporter) skeletonRef() string {
	if e.src.Armature(e.root) == nil {
		return ""
	}
	return filepath.ToSlash(e.root.Skeleton()) + ".pis"
}

// animSkeletonRef is the skeleton file as seen from an animation file.
// Without subdirectories only the file name is written.
func (e *exporter) animSkeletonRef() string {
	if e.cfg.Export.IncludeSubdirsForPIA {
		return pia.SkeletonPath(e.root.Skeleton(), e.root.AnimFolder)
	}
	return filepath.Base(filepath.FromSlash(e.root.Skeleton())) + ".pis"
}

// checkParts fails model and collision files whose part list differs
// from the trait's.
func (e *exporter) checkParts() {
	want := e.set.Parts.Names()
	for _, p := range e.files {
		if !p.file.Written() || (p.file.Kind != KindPIM && p.file.Kind != KindPIC) {
			continue
		}
		got := partNames(p.sections)
		if !slices.Equal(got, want) {
			e.log.Errorf("%s parts %v differ from trait parts %v", p.file.Kind, got, want)
			p.file.Err = fmt.Errorf("%s %s: %w", p.file.Kind, e.root.Name, ErrPartMismatch)
		}
	}
}

func partNames(sections []*pix.Section) []string {
	var out []string
	for _, s := range pix.FindAll(sections, "Part") {
		name, _ := s.Str("Name")
		out = append(out, name)
	}
	return out
}

func (e *exporter) write(p *pending) error {
	if err := os.MkdirAll(filepath.Dir(p.file.Path), 0o755); err != nil {
		e.log.Errorf("creating %s: %v", filepath.Dir(p.file.Path), err)
		return err
	}
	if err := pix.WriteFile(p.file.Path, p.sections, e.cfg.Export.Indent); err != nil {
		e.log.Errorf("writing %s: %v", p.file.Path, err)
		return err
	}
	logger.Info("exported",
		zap.String("kind", string(p.file.Kind)),
		zap.String("path", p.file.Path),
		zap.Int("sections", len(p.sections)))
	return nil
}
