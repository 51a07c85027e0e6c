package material

import (
	"context"
	"fmt"

	"github.com/specialistvlad/mdlscene/internal/ctxlog"
	"github.com/specialistvlad/mdlscene/internal/db"
	"github.com/specialistvlad/mdlscene/internal/expr"
	"github.com/specialistvlad/mdlscene/internal/mdltype"
	"github.com/specialistvlad/mdlscene/internal/serial"
)

// Options control the internal instantiation entry point.
type Options struct {
	// AllowParameter permits bare parameter references as arguments. Only
	// code that builds instances inside other definitions sets it.
	AllowParameter bool
	// Immutable marks the created instance as read-only.
	Immutable bool
}

// Instance binds arguments to the parameters of one incarnation of a
// definition.
type Instance struct {
	definitionTag  db.Tag
	definitionName string
	moduleDBName   string
	ident          Ident
	arguments      *expr.List
	immutable      bool
}

var _ db.Element = (*Instance)(nil)

// CreateInstance instantiates an exported definition. Parameter references
// are rejected and the instance is mutable.
func (d *Definition) CreateInstance(ctx context.Context, txn *db.Transaction, args *expr.List) (*Instance, error) {
	if !d.exported {
		return nil, &InstantiationError{Code: CodeNotExported, Definition: d.name, Index: InvalidIndex}
	}
	return d.CreateInstanceInternal(ctx, txn, args, Options{})
}

// CreateInstanceInternal instantiates d with args, which are named after
// parameters. Parameters without an argument receive a copy of their
// default; defaults referencing earlier parameters see the arguments bound
// to those parameters. Nothing is stored in txn.
func (d *Definition) CreateInstanceInternal(ctx context.Context, txn *db.Transaction, args *expr.List, opts Options) (*Instance, error) {
	ctx, logger := ctxlog.With(ctx, "definition", d.name, "ident", d.ident)
	logger.Debug("Instantiating material definition.", "arguments", args.Len(), "allow_parameter", opts.AllowParameter, "immutable", opts.Immutable)

	if !d.IsValid(ctx, txn) {
		return nil, &InstantiationError{Code: CodeStaleDefinition, Definition: d.name, Index: InvalidIndex}
	}

	bound := make([]expr.Expression, d.ParameterCount())
	for i := 0; i < args.Len(); i++ {
		name := args.Name(i)
		idx := d.ParameterIndex(name)
		if idx == InvalidIndex {
			return nil, &InstantiationError{Code: CodeUnknownParameter, Definition: d.name, Param: name, Index: InvalidIndex}
		}
		arg, err := d.checkArgument(idx, args.Get(i), opts.AllowParameter)
		if err != nil {
			return nil, err
		}
		bound[idx] = arg
	}

	for i := range bound {
		if bound[i] != nil {
			continue
		}
		def := d.defaults[i]
		if def == nil {
			return nil, &InstantiationError{Code: CodeMissingArgument, Definition: d.name, Param: d.names[i], Index: i}
		}
		bound[i] = expr.Substitute(def, func(p *expr.Parameter) expr.Expression {
			return expr.Clone(bound[p.Index()])
		})
	}

	out := expr.NewList()
	for i, e := range bound {
		out.MustAdd(d.names[i], e)
	}
	logger.Debug("Material instance created.")
	return &Instance{
		definitionTag:  d.tag,
		definitionName: d.DBName(),
		moduleDBName:   d.moduleDBName,
		ident:          d.ident,
		arguments:      out,
		immutable:      opts.Immutable,
	}, nil
}

// checkArgument validates arg for parameter i and returns the copy that is
// bound. Constants are converted to the parameter type.
func (d *Definition) checkArgument(i int, arg expr.Expression, allowParameter bool) (expr.Expression, error) {
	fail := func(code ErrorCode, detail string) error {
		return &InstantiationError{Code: code, Definition: d.name, Param: d.names[i], Index: i, Detail: detail}
	}
	switch arg.Kind() {
	case expr.KindParameter:
		if !allowParameter {
			return nil, fail(CodeForbiddenArgumentKind, "parameter references are not allowed")
		}
	case expr.KindTemporary:
		return nil, fail(CodeForbiddenArgumentKind, "temporary references are not allowed")
	}

	want := d.types[i]
	if !mdltype.Assignable(arg.Type(), want) {
		return nil, fail(CodeTypeMismatch, fmt.Sprintf("got %s, want %s", arg.Type(), want))
	}
	if c, ok := arg.(*expr.Constant); ok && !c.Type().Equals(want) {
		converted, err := expr.NewConstant(want, c.Value())
		if err != nil {
			return nil, fail(CodeTypeMismatch, err.Error())
		}
		return converted, nil
	}
	return expr.Clone(arg), nil
}

// DefinitionTag returns the tag of the definition the instance was made from.
func (inst *Instance) DefinitionTag() db.Tag { return inst.definitionTag }

// DefinitionName returns the database name of the definition.
func (inst *Instance) DefinitionName() string { return inst.definitionName }

// Ident returns the identity of the definition at instantiation time.
func (inst *Instance) Ident() Ident { return inst.ident }

// IsImmutable reports whether arguments can be changed.
func (inst *Instance) IsImmutable() bool { return inst.immutable }

// ArgumentCount returns the number of bound arguments, which equals the
// parameter count of the definition.
func (inst *Instance) ArgumentCount() int { return inst.arguments.Len() }

// Arguments returns a copy of the bound arguments in parameter order.
func (inst *Instance) Arguments() *expr.List { return inst.arguments.Clone() }

// Argument returns the argument bound to the named parameter.
func (inst *Instance) Argument(name string) (expr.Expression, bool) {
	return inst.arguments.Lookup(name)
}

// IsValid reports whether the definition the instance was made from is
// still the published incarnation.
func (inst *Instance) IsValid(ctx context.Context, txn *db.Transaction) bool {
	d, err := inst.definition(txn)
	if err != nil {
		ctxlog.FromContext(ctx).Debug("Instance is invalid.", "definition", inst.definitionName, "error", err)
		return false
	}
	return d.ident == inst.ident && d.IsValid(ctx, txn)
}

func (inst *Instance) definition(txn *db.Transaction) (*Definition, error) {
	elem, err := txn.Access(inst.definitionTag)
	if err != nil {
		return nil, err
	}
	d, ok := elem.(*Definition)
	if !ok {
		return nil, fmt.Errorf("%s holds %s, not a material definition", inst.definitionTag, elem.ClassID())
	}
	return d, nil
}

// WithArgument returns a copy of inst with the named argument replaced.
// The argument is validated against the current definition, which must
// still be the incarnation inst was made from.
func (inst *Instance) WithArgument(ctx context.Context, txn *db.Transaction, name string, arg expr.Expression) (*Instance, error) {
	if inst.immutable {
		return nil, &InstantiationError{Code: CodeImmutable, Definition: inst.definitionName, Param: name, Index: InvalidIndex}
	}
	if !inst.IsValid(ctx, txn) {
		return nil, &InstantiationError{Code: CodeStaleDefinition, Definition: inst.definitionName, Param: name, Index: InvalidIndex}
	}
	d, err := inst.definition(txn)
	if err != nil {
		return nil, err
	}
	idx := d.ParameterIndex(name)
	if idx == InvalidIndex {
		return nil, &InstantiationError{Code: CodeUnknownParameter, Definition: d.name, Param: name, Index: InvalidIndex}
	}
	bound, err := d.checkArgument(idx, arg, false)
	if err != nil {
		return nil, err
	}
	args := expr.NewList()
	for i := 0; i < inst.arguments.Len(); i++ {
		e := inst.arguments.Get(i)
		if i == idx {
			e = bound
		}
		args.MustAdd(inst.arguments.Name(i), e)
	}
	out := *inst
	out.arguments = args
	return &out, nil
}

func (inst *Instance) ClassID() serial.ClassID { return InstanceClassID }

func (inst *Instance) JournalFlags() db.Journal { return db.JournalAll }

func (inst *Instance) Size() int {
	size := 64 + len(inst.definitionName) + len(inst.moduleDBName)
	for i := 0; i < inst.arguments.Len(); i++ {
		size += len(inst.arguments.Name(i)) + expr.Size(inst.arguments.Get(i))
	}
	return size
}

// References returns the definition and every called definition present in
// the database.
func (inst *Instance) References(r db.Resolver) []db.Tag {
	out := []db.Tag{inst.definitionTag}
	var exprs []expr.Expression
	for i := 0; i < inst.arguments.Len(); i++ {
		exprs = append(exprs, inst.arguments.Get(i))
	}
	for _, name := range expr.CalledDefinitions(exprs...) {
		if t := r.NameToTag(name); t.IsValid() && t != inst.definitionTag {
			out = append(out, t)
		}
	}
	return out
}
