package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/specialistvlad/mdlscene/internal/ctxlog"
	"github.com/specialistvlad/mdlscene/internal/fsutil"
	"github.com/specialistvlad/mdlscene/pkg/mdl"
	"gopkg.in/yaml.v3"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config
	scene  *mdl.Scene
}

// NewApp is the constructor for the main application. Results are written
// to outW and log records to logW. The scene is restored from the
// configured snapshot when one exists, and the configured module paths are
// loaded into it.
func NewApp(ctx context.Context, outW, logW io.Writer, cfg *Config) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logW)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("Logger configured successfully.")

	opts := mdl.Options{LoadResources: cfg.LoadResources}
	scene, err := openScene(ctx, cfg.SnapshotPath, opts)
	if err != nil {
		return nil, err
	}

	a := &App{outW: outW, logger: logger, config: cfg, scene: scene}
	for _, path := range cfg.ModulePaths {
		if _, err := a.loadAll(ctx, path); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// openScene restores the snapshot at path, or returns an empty scene when
// there is no snapshot yet.
func openScene(ctx context.Context, path string, opts mdl.Options) (*mdl.Scene, error) {
	logger := ctxlog.FromContext(ctx)
	if path == "" {
		return mdl.NewScene(opts), nil
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Debug("No snapshot yet, starting with an empty scene.", "snapshot", path)
		return mdl.NewScene(opts), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	scene, err := mdl.Restore(ctx, f, opts)
	if err != nil {
		return nil, fmt.Errorf("restore snapshot %s: %w", path, err)
	}
	logger.Info("Scene restored.", "snapshot", path, "modules", len(scene.Modules()))
	return scene, nil
}

// Scene returns the application's scene. This is primarily for testing.
func (a *App) Scene() *mdl.Scene {
	return a.scene
}

func (a *App) context(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, a.logger)
}

// loadAll loads every compiled module found at path, which may be a single
// module file or a directory, and returns their database names.
func (a *App) loadAll(ctx context.Context, path string) ([]string, error) {
	files, err := fsutil.FindFilesByExtension(path, fsutil.ModuleExtension)
	if err != nil {
		return nil, fmt.Errorf("find modules: %w", err)
	}
	names := make([]string, 0, len(files))
	for _, file := range files {
		name, err := a.scene.Load(ctx, file)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

// load loads the single module file at path.
func (a *App) load(ctx context.Context, path string) (string, error) {
	names, err := a.loadAll(ctx, path)
	if err != nil {
		return "", err
	}
	if len(names) != 1 {
		return "", fmt.Errorf("%s: expected one module, found %d", path, len(names))
	}
	return names[0], nil
}

// ModuleReport is the result of Inspect.
type ModuleReport struct {
	Module      string               `json:"module" yaml:"module"`
	Definitions []mdl.DefinitionDump `json:"definitions" yaml:"definitions"`
}

// Inspect loads the module at path and writes a description of every
// definition it publishes.
func (a *App) Inspect(ctx context.Context, path string) error {
	ctx = a.context(ctx)
	modName, err := a.load(ctx, path)
	if err != nil {
		return err
	}
	names, err := a.scene.Definitions(ctx, modName)
	if err != nil {
		return err
	}

	report := ModuleReport{Module: modName}
	for _, name := range names {
		def, err := a.scene.Definition(ctx, name)
		if err != nil {
			return err
		}
		report.Definitions = append(report.Definitions, def.Dump(ctx))
	}
	return a.render(report)
}

// Instantiate loads the module at path, instantiates its material with the
// given arguments and writes the resulting instance. A non-empty name
// stores the instance in the scene under that name.
func (a *App) Instantiate(ctx context.Context, path, material, name string, args map[string]string) error {
	ctx = a.context(ctx)
	modName, err := a.load(ctx, path)
	if err != nil {
		return err
	}
	def, err := a.scene.Definition(ctx, modName+"::"+material)
	if err != nil {
		return err
	}
	inst, err := def.Instantiate(ctx, name, args)
	if err != nil {
		return err
	}
	a.logger.Info("Material instantiated.", "definition", def.Name(), "instance", name)
	if err := a.render(inst.Dump()); err != nil {
		return err
	}
	return a.save(ctx)
}

// ReloadReport is the result of Reload.
type ReloadReport struct {
	Module    string            `json:"module" yaml:"module"`
	Result    *mdl.ReloadResult `json:"result" yaml:"result"`
	Collected int               `json:"collected" yaml:"collected"`
	// Invalid lists stored instances whose definition changed identity.
	Invalid []string `json:"invalid_instances,omitempty" yaml:"invalid_instances,omitempty"`
}

// Reload re-reads the module at path into the scene, collects the elements
// no longer reachable and writes a summary. Loading the module first makes
// reload a no-op for a scene that has not seen it yet.
func (a *App) Reload(ctx context.Context, path string) error {
	ctx = a.context(ctx)
	modName, err := a.load(ctx, path)
	if err != nil {
		return err
	}
	res, err := a.scene.Reload(ctx, modName)
	if err != nil {
		return err
	}

	report := ReloadReport{Module: modName, Result: res}
	for _, name := range a.scene.Instances() {
		inst, err := a.scene.Instance(ctx, name)
		if err != nil {
			return err
		}
		if !inst.IsValid(ctx) {
			report.Invalid = append(report.Invalid, name)
		}
	}
	report.Collected = a.scene.Collect(ctx)
	a.logger.Info("Module reloaded.", "module", modName,
		"kept", len(res.Kept), "changed", len(res.Changed), "added", len(res.Added), "removed", len(res.Removed))

	if err := a.render(report); err != nil {
		return err
	}
	return a.save(ctx)
}

// render writes v to the output in the configured format.
func (a *App) render(v any) error {
	switch a.config.Output {
	case "json":
		enc := json.NewEncoder(a.outW)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		enc := yaml.NewEncoder(a.outW)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
}

// save writes the scene to the configured snapshot, if any.
func (a *App) save(ctx context.Context) error {
	path := a.config.SnapshotPath
	if path == "" {
		return nil
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := a.scene.Save(ctx, f); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	a.logger.Debug("Snapshot written.", "snapshot", path)
	return nil
}
