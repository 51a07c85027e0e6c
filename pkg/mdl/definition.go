package mdl

import (
	"context"
	"fmt"
	"sort"

	"github.com/specialistvlad/mdlscene/internal/compiled"
	"github.com/specialistvlad/mdlscene/internal/db"
	"github.com/specialistvlad/mdlscene/internal/expr"
	"github.com/specialistvlad/mdlscene/internal/material"
)

// Definition is a read-only snapshot of a material definition. It keeps
// describing the incarnation it was obtained from after a reload; use
// IsValid to detect that.
type Definition struct {
	scene *Scene
	def   *material.Definition
}

// Name returns the qualified MDL name.
func (d *Definition) Name() string { return d.def.Name() }

// DBName returns the database name.
func (d *Definition) DBName() string { return d.def.DBName() }

// Ident returns the identity of the incarnation.
func (d *Definition) Ident() uint64 { return uint64(d.def.Ident()) }

// IsExported reports whether the definition can be instantiated.
func (d *Definition) IsExported() bool { return d.def.IsExported() }

// ParameterCount returns the number of parameters.
func (d *Definition) ParameterCount() int { return d.def.ParameterCount() }

// ParameterName returns the name of parameter i.
func (d *Definition) ParameterName(i int) (string, error) { return d.def.ParameterName(i) }

// ParameterIndex returns the index of the named parameter, or -1.
func (d *Definition) ParameterIndex(name string) int { return d.def.ParameterIndex(name) }

// ParameterType returns the type name of parameter i, or "".
func (d *Definition) ParameterType(i int) string { return d.def.ParameterType(i).Name() }

// HasDefault reports whether parameter i may be omitted.
func (d *Definition) HasDefault(i int) bool { return d.def.Default(i) != nil }

// EnableIfUsers returns the indices of the parameters whose enable_if
// condition depends on parameter i.
func (d *Definition) EnableIfUsers(i int) ([]int, error) {
	if i < 0 || i >= d.def.ParameterCount() {
		return nil, fmt.Errorf("%w: parameter #%d", ErrOutOfRange, i)
	}
	out := make([]int, 0, d.def.EnableIfUserCount(i))
	for u := 0; u < d.def.EnableIfUserCount(i); u++ {
		j, err := d.def.EnableIfUser(i, u)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, nil
}

// IsCompatible reports whether instances of other remain meaningful for d.
func (d *Definition) IsCompatible(other *Definition) bool {
	if other == nil {
		return false
	}
	return d.def.IsCompatible(other.def)
}

// IsValid reports whether the definition is still the published
// incarnation.
func (d *Definition) IsValid(ctx context.Context) bool {
	valid := false
	_ = d.scene.view(ctx, func(txn *db.Transaction) error {
		valid = d.def.IsValid(ctx, txn)
		return nil
	})
	return valid
}

// Dump returns a printable description of the definition.
func (d *Definition) Dump(ctx context.Context) DefinitionDump {
	var out DefinitionDump
	_ = d.scene.view(ctx, func(txn *db.Transaction) error {
		out = d.def.Dump(txn)
		return nil
	})
	return out
}

// Instantiate creates an instance with the given arguments and stores it
// under name. Arguments are constant expressions in compiled module syntax
// keyed by parameter name, e.g. {"tint": "[1, 0, 0]"}. An empty name
// creates the instance without storing it.
func (d *Definition) Instantiate(ctx context.Context, name string, args map[string]string) (*Instance, error) {
	if !d.IsValid(ctx) {
		return nil, &InstantiationError{Code: material.CodeStaleDefinition, Definition: d.def.Name(), Index: material.InvalidIndex}
	}
	list, err := d.arguments(args)
	if err != nil {
		return nil, err
	}

	var inst *material.Instance
	tag := db.InvalidTag
	err = d.scene.update(ctx, func(txn *db.Transaction) error {
		var err error
		inst, err = d.def.CreateInstance(ctx, txn, list)
		if err != nil || name == "" {
			return err
		}
		if tag = txn.NameToTag(name); !tag.IsValid() {
			tag = txn.ReserveTag()
		} else if elem, err := txn.Access(tag); err != nil {
			return err
		} else if _, ok := elem.(*material.Instance); !ok {
			return fmt.Errorf("name %q is used by a %s element", name, elem.ClassID())
		}
		return txn.Store(tag, name, inst)
	})
	if err != nil {
		return nil, err
	}
	if tag.IsValid() {
		d.scene.mu.Lock()
		d.scene.instances[name] = tag
		d.scene.mu.Unlock()
	}
	return &Instance{scene: d.scene, name: name, inst: inst}, nil
}

// arguments parses args in a stable order, typing each one after its
// parameter.
func (d *Definition) arguments(args map[string]string) (*expr.List, error) {
	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)

	list := expr.NewList()
	for _, name := range names {
		i := d.def.ParameterIndex(name)
		if i == material.InvalidIndex {
			return nil, &InstantiationError{Code: material.CodeUnknownParameter, Definition: d.def.Name(), Param: name, Index: material.InvalidIndex}
		}
		e, err := compiled.ParseConstant(args[name], d.def.ParameterType(i))
		if err != nil {
			return nil, &InstantiationError{Code: material.CodeTypeMismatch, Definition: d.def.Name(), Param: name, Index: i, Detail: err.Error()}
		}
		if err := list.Add(name, e); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// Instance is a material instance stored in a scene.
type Instance struct {
	scene *Scene
	name  string
	inst  *material.Instance
}

// Name returns the database name of the instance, or "" if it was not
// stored.
func (i *Instance) Name() string { return i.name }

// Definition returns the database name of the instantiated definition.
func (i *Instance) Definition() string { return i.inst.DefinitionName() }

// IsValid reports whether the definition the instance was made from is
// still published.
func (i *Instance) IsValid(ctx context.Context) bool {
	valid := false
	_ = i.scene.view(ctx, func(txn *db.Transaction) error {
		valid = i.inst.IsValid(ctx, txn)
		return nil
	})
	return valid
}

// Dump returns a printable description of the instance.
func (i *Instance) Dump() InstanceDump { return i.inst.Dump() }
