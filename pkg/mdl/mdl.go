// Package mdl is the public API of the material scene database. It exposes
// module loading, reloading, definition queries and instantiation, and
// keeps the internal instantiation controls out of reach.
package mdl

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/specialistvlad/mdlscene/internal/ctxlog"
	"github.com/specialistvlad/mdlscene/internal/db"
	"github.com/specialistvlad/mdlscene/internal/material"
	"github.com/specialistvlad/mdlscene/internal/module"
	"github.com/specialistvlad/mdlscene/internal/resource"
	"github.com/specialistvlad/mdlscene/internal/serial"
)

type (
	DefinitionDump     = material.DefinitionDump
	InstanceDump       = material.InstanceDump
	ReloadResult       = module.ReloadResult
	InstantiationError = material.InstantiationError
	ErrorCode          = material.ErrorCode
)

var (
	ErrNotFound              = material.ErrNotFound
	ErrOutOfRange            = material.ErrOutOfRange
	ErrTypeMismatch          = material.ErrTypeMismatch
	ErrForbiddenArgumentKind = material.ErrForbiddenArgumentKind
	ErrStaleDefinition       = material.ErrStaleDefinition
	ErrConstructionFailure   = material.ErrConstructionFailure
	ErrMissingArgument       = material.ErrMissingArgument
	ErrNotExported           = material.ErrNotExported
	ErrNotLoaded             = module.ErrNotLoaded
)

// Codes carried by InstantiationError.
const (
	CodeUnknownParameter      = material.CodeUnknownParameter
	CodeTypeMismatch          = material.CodeTypeMismatch
	CodeForbiddenArgumentKind = material.CodeForbiddenArgumentKind
	CodeStaleDefinition       = material.CodeStaleDefinition
	CodeMissingArgument       = material.CodeMissingArgument
	CodeNotExported           = material.CodeNotExported
)

// Options configure a Scene.
type Options struct {
	// LoadResources loads resources referenced by defaults and
	// annotations when modules are loaded.
	LoadResources bool
}

// Scene is a scene database together with the modules and instances
// loaded into it. A Scene is safe for concurrent use.
type Scene struct {
	db   *db.Database
	opts Options

	mu        sync.Mutex
	modules   map[string]db.Tag
	instances map[string]db.Tag
}

// NewScene returns an empty scene.
func NewScene(opts Options) *Scene {
	return newScene(db.New(), opts)
}

func newScene(d *db.Database, opts Options) *Scene {
	return &Scene{
		db:        d,
		opts:      opts,
		modules:   make(map[string]db.Tag),
		instances: make(map[string]db.Tag),
	}
}

// Registry returns a registry that knows every element class a scene
// stores.
func Registry() *serial.Registry {
	return serial.NewRegistry(module.Classes{}, material.Classes{}, resource.Classes{})
}

// update runs fn in a transaction and commits it when fn succeeds.
func (s *Scene) update(ctx context.Context, fn func(txn *db.Transaction) error) error {
	txn := s.db.Begin(ctx)
	if err := fn(txn); err != nil {
		txn.Abort(ctx)
		return err
	}
	return txn.Commit(ctx)
}

// view runs fn in a transaction that is always aborted.
func (s *Scene) view(ctx context.Context, fn func(txn *db.Transaction) error) error {
	txn := s.db.Begin(ctx)
	defer txn.Abort(ctx)
	return fn(txn)
}

// Load loads the compiled module at path and returns its database name.
func (s *Scene) Load(ctx context.Context, path string) (string, error) {
	var m *module.Module
	var tag db.Tag
	err := s.update(ctx, func(txn *db.Transaction) error {
		var err error
		m, tag, err = module.Load(ctx, txn, path, module.Options{LoadResources: s.opts.LoadResources})
		return err
	})
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.modules[m.DBName()] = tag
	s.mu.Unlock()
	return m.DBName(), nil
}

// Reload re-reads the module published under moduleDBName.
func (s *Scene) Reload(ctx context.Context, moduleDBName string) (*ReloadResult, error) {
	var res *ReloadResult
	err := s.update(ctx, func(txn *db.Transaction) error {
		var err error
		res, err = module.Reload(ctx, txn, moduleDBName, module.Options{LoadResources: s.opts.LoadResources})
		return err
	})
	return res, err
}

// Modules returns the database names of the loaded modules, sorted.
func (s *Scene) Modules() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.modules))
	for name := range s.modules {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Instances returns the names of the stored instances, sorted.
func (s *Scene) Instances() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.instances))
	for name := range s.instances {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Definitions returns the database names of the definitions the module
// currently publishes, in module order.
func (s *Scene) Definitions(ctx context.Context, moduleDBName string) ([]string, error) {
	var out []string
	err := s.view(ctx, func(txn *db.Transaction) error {
		m, _, err := module.Access(txn, moduleDBName)
		if err != nil {
			return err
		}
		for i := 0; i < m.DefinitionCount(); i++ {
			e, _ := m.Definition(i)
			out = append(out, e.DBName)
		}
		return nil
	})
	return out, err
}

// Definition returns a snapshot of the definition published under dbName.
func (s *Scene) Definition(ctx context.Context, dbName string) (*Definition, error) {
	var d *material.Definition
	err := s.view(ctx, func(txn *db.Transaction) error {
		var err error
		d, err = accessDefinition(txn, dbName)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &Definition{scene: s, def: d}, nil
}

// Instance returns the instance stored under name.
func (s *Scene) Instance(ctx context.Context, name string) (*Instance, error) {
	var inst *material.Instance
	err := s.view(ctx, func(txn *db.Transaction) error {
		tag := txn.NameToTag(name)
		if !tag.IsValid() {
			return fmt.Errorf("%w: instance %q", ErrNotFound, name)
		}
		elem, err := txn.Access(tag)
		if err != nil {
			return err
		}
		var ok bool
		if inst, ok = elem.(*material.Instance); !ok {
			return fmt.Errorf("%q is not a material instance", name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Instance{scene: s, name: name, inst: inst}, nil
}

// Collect removes every element not reachable from a loaded module or a
// stored instance and returns how many were removed.
func (s *Scene) Collect(ctx context.Context) int {
	s.mu.Lock()
	roots := make([]db.Tag, 0, len(s.modules)+len(s.instances))
	for _, t := range s.modules {
		roots = append(roots, t)
	}
	for _, t := range s.instances {
		roots = append(roots, t)
	}
	s.mu.Unlock()
	removed := s.db.Collect(ctx, roots...)
	ctxlog.FromContext(ctx).Debug("Scene collected.", "roots", len(roots), "removed", len(removed))
	return len(removed)
}

// Save writes the scene database to w.
func (s *Scene) Save(ctx context.Context, w io.Writer) error {
	return s.db.Save(ctx, w)
}

// Restore reads a scene written by Save. Loaded modules and stored
// instances are recovered from the snapshot.
func Restore(ctx context.Context, r io.Reader, opts Options) (*Scene, error) {
	d, err := db.Restore(ctx, r, Registry())
	if err != nil {
		return nil, err
	}
	s := newScene(d, opts)
	d.Range(func(tag db.Tag, name string, elem db.Element) bool {
		switch elem.(type) {
		case *module.Module:
			s.modules[name] = tag
		case *material.Instance:
			s.instances[name] = tag
		}
		return true
	})
	ctxlog.FromContext(ctx).Debug("Scene restored.", "modules", len(s.modules), "instances", len(s.instances))
	return s, nil
}

func accessDefinition(txn *db.Transaction, dbName string) (*material.Definition, error) {
	tag := txn.NameToTag(dbName)
	if !tag.IsValid() {
		return nil, fmt.Errorf("%w: definition %q", ErrNotFound, dbName)
	}
	elem, err := txn.Access(tag)
	if err != nil {
		return nil, err
	}
	d, ok := elem.(*material.Definition)
	if !ok {
		return nil, fmt.Errorf("%q is not a material definition", dbName)
	}
	return d, nil
}
