package module

import (
	"context"
	"errors"
	"fmt"

	"github.com/specialistvlad/mdlscene/internal/compiled"
	"github.com/specialistvlad/mdlscene/internal/ctxlog"
	"github.com/specialistvlad/mdlscene/internal/db"
	"github.com/specialistvlad/mdlscene/internal/material"
)

// ErrNotLoaded is returned by Reload for names that are not a loaded module.
var ErrNotLoaded = errors.New("module: not loaded")

// Options control how definitions are constructed.
type Options struct {
	// LoadResources loads textures and other resources named by defaults
	// and annotations into the database.
	LoadResources bool
}

// Load reads the compiled module at path and stores its definitions and
// the module element in txn. Loading a module that is already present
// returns the existing element. On error txn may hold partial writes and
// must be aborted.
func Load(ctx context.Context, txn *db.Transaction, path string, opts Options) (*Module, db.Tag, error) {
	ctx, logger := ctxlog.With(ctx, "file", path)

	dag, err := compiled.Load(ctx, path)
	if err != nil {
		return nil, db.InvalidTag, err
	}
	dbName := material.DBName(dag.ModuleName())
	ctx, logger = ctxlog.With(ctx, "module", dag.ModuleName())

	if tag := txn.NameToTag(dbName); tag.IsValid() {
		m, err := access(txn, tag)
		if err != nil {
			return nil, db.InvalidTag, err
		}
		logger.Debug("Module already loaded.", "tag", tag)
		return m, tag, nil
	}

	logger.Debug("Loading module.", "materials", dag.MaterialCount())
	m := &Module{name: dag.ModuleName(), filename: path, imports: dag.Imports()}
	for i := 0; i < dag.MaterialCount(); i++ {
		tag := txn.ReserveTag()
		d, err := material.NewDefinition(ctx, txn, tag, material.NextIdent(), dag, i, path, dag.ModuleName(), opts.LoadResources)
		if err != nil {
			return nil, db.InvalidTag, fmt.Errorf("load module %s: %w", dag.ModuleName(), err)
		}
		if err := txn.Store(tag, d.DBName(), d); err != nil {
			return nil, db.InvalidTag, fmt.Errorf("load module %s: store %s: %w", dag.ModuleName(), d.Name(), err)
		}
		m.definitions = append(m.definitions, Entry{DBName: d.DBName(), Tag: tag, Ident: d.Ident()})
	}

	tag := txn.ReserveTag()
	if err := txn.Store(tag, dbName, m); err != nil {
		return nil, db.InvalidTag, fmt.Errorf("load module %s: %w", dag.ModuleName(), err)
	}
	logger.Info("Module loaded.", "tag", tag, "definitions", len(m.definitions))
	return m, tag, nil
}

// ReloadResult summarizes how the definitions of a module changed.
type ReloadResult struct {
	// Kept lists definitions whose new incarnation kept the identity of
	// the old one. Existing instances of them stay valid.
	Kept []string `json:"kept,omitempty" yaml:"kept,omitempty"`
	// Changed lists definitions that received a fresh identity.
	Changed []string `json:"changed,omitempty" yaml:"changed,omitempty"`
	// Added lists definitions that are new in the module.
	Added []string `json:"added,omitempty" yaml:"added,omitempty"`
	// Removed lists definitions that are no longer part of the module.
	Removed []string `json:"removed,omitempty" yaml:"removed,omitempty"`
}

// Reload re-reads the compiled module published under dbName and
// supersedes its definitions in txn. A new definition compatible with the
// one it replaces keeps its identity; any other receives a fresh one. Both
// are stored under the tag of the old definition.
func Reload(ctx context.Context, txn *db.Transaction, dbName string, opts Options) (*ReloadResult, error) {
	ctx, logger := ctxlog.With(ctx, "module", dbName)

	modTag := txn.NameToTag(dbName)
	if !modTag.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrNotLoaded, dbName)
	}
	old, err := access(txn, modTag)
	if err != nil {
		return nil, err
	}

	dag, err := compiled.Load(ctx, old.filename)
	if err != nil {
		return nil, fmt.Errorf("reload %s: %w", old.name, err)
	}
	if dag.ModuleName() != old.name {
		return nil, fmt.Errorf("reload %s: file %s now declares module %s", old.name, old.filename, dag.ModuleName())
	}
	logger.Debug("Reloading module.", "file", old.filename, "materials", dag.MaterialCount())

	res := &ReloadResult{}
	next := &Module{name: old.name, filename: old.filename, imports: dag.Imports()}
	present := make(map[string]struct{}, dag.MaterialCount())

	for i := 0; i < dag.MaterialCount(); i++ {
		defDBName := material.DBName(dag.Material(i).Name)
		present[defDBName] = struct{}{}

		tag := old.DefinitionTag(defDBName)
		var prev *material.Definition
		if tag.IsValid() {
			prev, err = accessDefinition(txn, tag)
			if err != nil {
				return nil, fmt.Errorf("reload %s: %w", old.name, err)
			}
		} else if tag = txn.NameToTag(defDBName); !tag.IsValid() {
			// A definition removed by an earlier reload keeps its name
			// until it is collected, so it is superseded like any other.
			tag = txn.ReserveTag()
		}

		d, err := material.NewDefinition(ctx, txn, tag, material.NextIdent(), dag, i, old.filename, old.name, opts.LoadResources)
		if err != nil {
			return nil, fmt.Errorf("reload %s: %w", old.name, err)
		}
		switch {
		case prev == nil:
			res.Added = append(res.Added, d.Name())
		case prev.IsCompatible(d):
			d.AdoptIdent(prev.Ident())
			res.Kept = append(res.Kept, d.Name())
		default:
			res.Changed = append(res.Changed, d.Name())
		}
		if err := txn.Store(tag, d.DBName(), d); err != nil {
			return nil, fmt.Errorf("reload %s: store %s: %w", old.name, d.Name(), err)
		}
		next.definitions = append(next.definitions, Entry{DBName: d.DBName(), Tag: tag, Ident: d.Ident()})
		logger.Debug("Definition reloaded.", "definition", d.Name(), "tag", tag, "ident", d.Ident(), "kept_ident", prev != nil && prev.Ident() == d.Ident())
	}

	for _, e := range old.definitions {
		if _, ok := present[e.DBName]; !ok {
			res.Removed = append(res.Removed, e.DBName[len(material.DBNamePrefix):])
		}
	}

	if err := txn.Store(modTag, "", next); err != nil {
		return nil, fmt.Errorf("reload %s: %w", old.name, err)
	}
	logger.Info("Module reloaded.",
		"kept", len(res.Kept),
		"changed", len(res.Changed),
		"added", len(res.Added),
		"removed", len(res.Removed),
	)
	return res, nil
}

// Access returns the module element published under dbName.
func Access(txn *db.Transaction, dbName string) (*Module, db.Tag, error) {
	tag := txn.NameToTag(dbName)
	if !tag.IsValid() {
		return nil, db.InvalidTag, fmt.Errorf("%w: %s", ErrNotLoaded, dbName)
	}
	m, err := access(txn, tag)
	return m, tag, err
}

func access(txn *db.Transaction, tag db.Tag) (*Module, error) {
	elem, err := txn.Access(tag)
	if err != nil {
		return nil, err
	}
	m, ok := elem.(*Module)
	if !ok {
		return nil, fmt.Errorf("%s holds %s, not a module", tag, elem.ClassID())
	}
	return m, nil
}

func accessDefinition(txn *db.Transaction, tag db.Tag) (*material.Definition, error) {
	elem, err := txn.Access(tag)
	if err != nil {
		return nil, err
	}
	d, ok := elem.(*material.Definition)
	if !ok {
		return nil, fmt.Errorf("%s holds %s, not a material definition", tag, elem.ClassID())
	}
	return d, nil
}
