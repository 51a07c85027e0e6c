package material

import (
	"context"
	"fmt"

	"github.com/specialistvlad/mdlscene/internal/compiled"
	"github.com/specialistvlad/mdlscene/internal/ctxlog"
	"github.com/specialistvlad/mdlscene/internal/db"
	"github.com/specialistvlad/mdlscene/internal/expr"
	"github.com/specialistvlad/mdlscene/internal/fsutil"
	"github.com/specialistvlad/mdlscene/internal/resource"
	"github.com/specialistvlad/mdlscene/internal/serial"
	"github.com/zclconf/go-cty/cty"
)

// DBNamePrefix turns a qualified MDL name into a database name, e.g.
// "::example::M" is stored as "mdl::example::M".
const DBNamePrefix = "mdl"

// DBName returns the database name of a module or definition.
func DBName(mdlName string) string { return DBNamePrefix + mdlName }

// IdentTable is implemented by module elements. It reports the Ident of the
// definition the module currently publishes under dbName.
type IdentTable interface {
	DefinitionIdent(dbName string) (Ident, bool)
}

// Definition is a material definition element. Definitions come from
// NewDefinition or from decoding a stored one. The zero Definition has no
// parameters, no module and InvalidIdent, and is never valid.
type Definition struct {
	Catalog

	tag            db.Tag
	ident          Ident
	name           string
	moduleName     string
	moduleDBName   string
	originalName   string
	thumbnail      string
	prototype      db.Tag
	exported       bool
	body           expr.Expression
	temporaryNames []string
	temporaries    []expr.Expression
	resources      []db.Tag
}

var _ db.Element = (*Definition)(nil)

// NewDefinition builds the definition of material index in dag. tag is the
// tag the definition will be stored under and ident its identity.
// moduleFilename anchors relative resource paths, moduleName is the
// qualified name of the owning module. With loadResources set, resources
// named by constant defaults and annotations are loaded into txn.
//
// Every failure wraps ErrConstructionFailure. Resources loaded before a
// failure remain pending in txn; callers abort the transaction.
func NewDefinition(
	ctx context.Context,
	txn *db.Transaction,
	tag db.Tag,
	ident Ident,
	dag compiled.DAG,
	index int,
	moduleFilename string,
	moduleName string,
	loadResources bool,
) (*Definition, error) {
	mat := dag.Material(index)
	if mat == nil {
		return nil, fmt.Errorf("%w: material index %d out of range [0, %d) in module %s",
			ErrConstructionFailure, index, dag.MaterialCount(), moduleName)
	}
	ctx, logger := ctxlog.With(ctx, "definition", mat.Name, "tag", tag, "ident", ident)
	logger.Debug("Constructing material definition.")

	catalog, err := newCatalog(mat.Parameters, mat.Annotations)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConstructionFailure, mat.Name, err)
	}

	d := &Definition{
		Catalog:      *catalog,
		tag:          tag,
		ident:        ident,
		name:         mat.Name,
		moduleName:   moduleName,
		moduleDBName: DBName(moduleName),
		originalName: mat.OriginalName,
		exported:     mat.Exported,
		body:         mat.Body,
	}
	for _, t := range mat.Temporaries {
		d.temporaryNames = append(d.temporaryNames, t.Name)
		d.temporaries = append(d.temporaries, t.Value)
	}

	if mat.Prototype != "" {
		d.prototype = txn.NameToTag(mat.Prototype)
		if !d.prototype.IsValid() {
			return nil, fmt.Errorf("%w: %s: prototype %q is not in the database", ErrConstructionFailure, mat.Name, mat.Prototype)
		}
	}

	if mat.Thumbnail != "" {
		thumb, err := fsutil.ResolveResource(moduleFilename, mat.Thumbnail)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: thumbnail: %v", ErrConstructionFailure, mat.Name, err)
		}
		d.thumbnail = thumb
	}

	if loadResources {
		if err := d.loadResources(ctx, txn, moduleFilename); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrConstructionFailure, mat.Name, err)
		}
	}

	logger.Debug("Material definition constructed.",
		"parameters", d.ParameterCount(),
		"temporaries", len(d.temporaries),
		"resources", len(d.resources),
	)
	return d, nil
}

func (d *Definition) loadResources(ctx context.Context, txn *db.Transaction, moduleFilename string) error {
	seen := make(map[db.Tag]struct{})
	for _, c := range expr.Constants(d.Catalog.expressions()...) {
		if !c.Type().IsResource() {
			continue
		}
		v := c.Value()
		if !v.IsKnown() || v.IsNull() || !v.Type().Equals(cty.String) || v.AsString() == "" {
			continue
		}
		tag, err := resource.Load(ctx, txn, c.Type(), v.AsString(), moduleFilename)
		if err != nil {
			return err
		}
		if _, dup := seen[tag]; !dup {
			seen[tag] = struct{}{}
			d.resources = append(d.resources, tag)
		}
	}
	return nil
}

// Tag returns the tag the definition is stored under.
func (d *Definition) Tag() db.Tag { return d.tag }

// Ident returns the identity of this incarnation.
func (d *Definition) Ident() Ident { return d.ident }

// AdoptIdent replaces the identity. It is only valid before the definition
// is stored, while a reload decides whether the new incarnation keeps the
// identity of the one it supersedes.
func (d *Definition) AdoptIdent(ident Ident) { d.ident = ident }

// Name returns the qualified MDL name, e.g. "::example::M".
func (d *Definition) Name() string { return d.name }

// DBName returns the database name of the definition.
func (d *Definition) DBName() string { return DBName(d.name) }

// ModuleName returns the qualified name of the owning module.
func (d *Definition) ModuleName() string { return d.moduleName }

// ModuleDBName returns the database name of the owning module.
func (d *Definition) ModuleDBName() string { return d.moduleDBName }

// Module resolves the owning module, or returns db.InvalidTag.
func (d *Definition) Module(txn *db.Transaction) db.Tag {
	return txn.NameToTag(d.moduleDBName)
}

// OriginalName returns the name of the re-exported material, or "".
func (d *Definition) OriginalName() string { return d.originalName }

// Thumbnail returns the thumbnail file name, or "".
func (d *Definition) Thumbnail() string { return d.thumbnail }

// Prototype returns the tag of the material this one is a variant of, or
// db.InvalidTag.
func (d *Definition) Prototype() db.Tag { return d.prototype }

// IsExported reports whether the definition is visible outside its module.
func (d *Definition) IsExported() bool { return d.exported }

// Body returns the root expression of the body, or nil.
func (d *Definition) Body() expr.Expression { return d.body }

// TemporaryCount returns the number of temporaries of the body.
func (d *Definition) TemporaryCount() int { return len(d.temporaries) }

// Temporary returns temporary i, or nil.
func (d *Definition) Temporary(i int) expr.Expression {
	if i < 0 || i >= len(d.temporaries) {
		return nil
	}
	return d.temporaries[i]
}

// TemporaryName returns the name of temporary i, or "".
func (d *Definition) TemporaryName(i int) string {
	if i < 0 || i >= len(d.temporaryNames) {
		return ""
	}
	return d.temporaryNames[i]
}

// Resources returns the tags of the resources loaded for the definition.
func (d *Definition) Resources() []db.Tag {
	return append([]db.Tag(nil), d.resources...)
}

// IsValid reports whether the owning module still publishes this
// incarnation of the definition.
func (d *Definition) IsValid(ctx context.Context, txn *db.Transaction) bool {
	logger := ctxlog.FromContext(ctx).With("definition", d.name, "ident", d.ident)
	if d.ident == InvalidIdent {
		logger.Debug("Definition is invalid: it has no identity.")
		return false
	}

	modTag := txn.NameToTag(d.moduleDBName)
	if !modTag.IsValid() {
		logger.Debug("Definition is invalid: module is gone.", "module", d.moduleDBName)
		return false
	}
	elem, err := txn.Access(modTag)
	if err != nil {
		logger.Debug("Definition is invalid: module cannot be accessed.", "module", d.moduleDBName, "error", err)
		return false
	}
	table, ok := elem.(IdentTable)
	if !ok {
		logger.Debug("Definition is invalid: module entry has the wrong class.", "module", d.moduleDBName, "class", elem.ClassID())
		return false
	}
	current, ok := table.DefinitionIdent(d.DBName())
	if !ok {
		logger.Debug("Definition is invalid: module no longer defines it.")
		return false
	}
	if current != d.ident {
		logger.Debug("Definition is invalid: superseded.", "current_ident", current)
		return false
	}
	return true
}

// IsCompatible reports whether instances of other remain meaningful for d:
// both have the same name and the same parameters by index, with equal
// types and the same presence of defaults.
func (d *Definition) IsCompatible(other *Definition) bool {
	if other == nil || d.name != other.name {
		return false
	}
	if d.ParameterCount() != other.ParameterCount() {
		return false
	}
	for i := range d.names {
		if !d.types[i].Equals(other.types[i]) {
			return false
		}
		if (d.defaults[i] == nil) != (other.defaults[i] == nil) {
			return false
		}
	}
	return true
}

func (d *Definition) ClassID() serial.ClassID { return DefinitionClassID }

// JournalFlags reports structural changes only: definitions are replaced,
// never edited.
func (d *Definition) JournalFlags() db.Journal { return db.JournalStructure }

// Size estimates the memory held by the definition.
func (d *Definition) Size() int {
	size := 256 + len(d.name) + len(d.moduleName) + len(d.moduleDBName) +
		len(d.originalName) + len(d.thumbnail) + 4*len(d.resources)
	for _, n := range d.names {
		size += len(n) + 48
	}
	for _, e := range d.Catalog.expressions() {
		size += expr.Size(e)
	}
	size += expr.Size(d.body)
	for i, t := range d.temporaries {
		size += len(d.temporaryNames[i]) + expr.Size(t)
	}
	return size
}

// References returns the owning module, the prototype, loaded resources and
// every called definition present in the database.
func (d *Definition) References(r db.Resolver) []db.Tag {
	var out []db.Tag
	seen := make(map[db.Tag]struct{})
	add := func(t db.Tag) {
		if !t.IsValid() || t == d.tag {
			return
		}
		if _, dup := seen[t]; dup {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	add(r.NameToTag(d.moduleDBName))
	add(d.prototype)
	for _, t := range d.resources {
		add(t)
	}
	exprs := append(d.Catalog.expressions(), d.body)
	exprs = append(exprs, d.temporaries...)
	for _, name := range expr.CalledDefinitions(exprs...) {
		add(r.NameToTag(name))
	}
	return out
}
