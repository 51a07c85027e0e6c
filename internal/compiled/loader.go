package compiled

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/mdlscene/internal/ctxlog"
	"github.com/specialistvlad/mdlscene/internal/expr"
	"github.com/specialistvlad/mdlscene/internal/mdltype"
)

// Load reads and translates the compiled module in filename.
func Load(ctx context.Context, filename string) (*Module, error) {
	src, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read compiled module: %w", err)
	}
	return Parse(ctx, filename, src)
}

// Parse translates the compiled module in src. filename is used for
// diagnostics and recorded as the module's file name.
func Parse(ctx context.Context, filename string, src []byte) (*Module, error) {
	logger := ctxlog.FromContext(ctx).With("file", filename)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("Compiled module parsing started.")

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse compiled module %s: %w", filename, diags)
	}

	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode compiled module %s: %w", filename, diags)
	}
	if !strings.HasPrefix(root.ModuleName, "::") || strings.HasSuffix(root.ModuleName, "::") {
		return nil, fmt.Errorf("compiled module %s: module_name %q is not a qualified module name", filename, root.ModuleName)
	}

	var (
		materials []*Material
		allExprs  []hcl.Expression
		seen      = make(map[string]struct{})
	)
	for _, mb := range root.Materials {
		if _, dup := seen[mb.Name]; dup {
			return nil, fmt.Errorf("compiled module %s: duplicate material %q", filename, mb.Name)
		}
		seen[mb.Name] = struct{}{}

		mat, exprs, err := translateMaterial(ctx, root.ModuleName, mb)
		if err != nil {
			return nil, fmt.Errorf("compiled module %s: %w", filename, err)
		}
		materials = append(materials, mat)
		allExprs = append(allExprs, exprs...)
	}

	_, functions := extractReferencesAndFunctions(allExprs...)
	imports := importedModules(functions)

	logger.Debug("Compiled module parsed.", "module", root.ModuleName, "materials", len(materials), "imports", len(imports))
	return NewModule(root.ModuleName, filename, imports, materials...), nil
}

// translateMaterial converts one material block. It also returns every
// source expression of the block for import analysis.
func translateMaterial(ctx context.Context, moduleName string, mb *MaterialBlock) (*Material, []hcl.Expression, error) {
	logger := ctxlog.FromContext(ctx).With("material", mb.Name)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("Translating material.")

	mat := &Material{
		Name:         moduleName + "::" + mb.Name,
		Exported:     mb.Exported,
		OriginalName: mb.OriginalName,
		Prototype:    mb.Prototype,
		Thumbnail:    mb.Thumbnail,
	}
	var sources []hcl.Expression

	annos, err := translateAnnotations(mb.Annotations)
	if err != nil {
		return nil, nil, fmt.Errorf("material %q: %w", mb.Name, err)
	}
	mat.Annotations = annos

	sc := newScope()
	for _, pb := range mb.Parameters {
		if _, dup := sc.params[pb.Name]; dup {
			return nil, nil, fmt.Errorf("material %q: duplicate parameter %q", mb.Name, pb.Name)
		}
		t, err := typeExprToType(ctx, pb.Type)
		if err != nil {
			return nil, nil, fmt.Errorf("material %q, parameter %q: %w", mb.Name, pb.Name, err)
		}
		sc.addParam(pb.Name, t)
		mat.Parameters = append(mat.Parameters, Parameter{Name: pb.Name, Type: t})
	}

	for i, pb := range mb.Parameters {
		p := &mat.Parameters[i]
		if isExprDefined(ctx, pb.Default, "default") {
			def, diags := sc.translate(pb.Default, p.Type)
			if diags.HasErrors() {
				return nil, nil, fmt.Errorf("material %q, parameter %q default: %w", mb.Name, pb.Name, diags)
			}
			if !mdltype.Assignable(def.Type(), p.Type) {
				return nil, nil, fmt.Errorf("material %q, parameter %q: default of type %s is not assignable to %s", mb.Name, pb.Name, def.Type(), p.Type)
			}
			for _, ref := range expr.ParameterRefs(def) {
				if ref >= i {
					return nil, nil, fmt.Errorf("material %q, parameter %q: default may only reference earlier parameters, found %q", mb.Name, pb.Name, mat.Parameters[ref].Name)
				}
			}
			p.Default = def
			sources = append(sources, pb.Default)
		}
		if isExprDefined(ctx, pb.EnableIf, "enable_if") {
			cond, diags := sc.translate(pb.EnableIf, mdltype.Bool)
			if diags.HasErrors() {
				return nil, nil, fmt.Errorf("material %q, parameter %q enable_if: %w", mb.Name, pb.Name, diags)
			}
			if !mdltype.Assignable(cond.Type(), mdltype.Bool) {
				return nil, nil, fmt.Errorf("material %q, parameter %q: enable_if condition has type %s, want bool", mb.Name, pb.Name, cond.Type())
			}
			p.EnableIf = cond
			sources = append(sources, pb.EnableIf)
		}
		annos, err := translateAnnotations(pb.Annotations)
		if err != nil {
			return nil, nil, fmt.Errorf("material %q, parameter %q: %w", mb.Name, pb.Name, err)
		}
		p.Annotations = annos
	}

	for _, tb := range mb.Temporaries {
		if _, dup := sc.temps[tb.Name]; dup {
			return nil, nil, fmt.Errorf("material %q: duplicate temporary %q", mb.Name, tb.Name)
		}
		val, diags := sc.translate(tb.Value, mdltype.Type{})
		if diags.HasErrors() {
			return nil, nil, fmt.Errorf("material %q, temporary %q: %w", mb.Name, tb.Name, diags)
		}
		sc.addTemp(tb.Name, val.Type())
		mat.Temporaries = append(mat.Temporaries, Temporary{Name: tb.Name, Value: val})
		sources = append(sources, tb.Value)
	}

	if isExprDefined(ctx, mb.Body, "body") {
		body, diags := sc.translate(mb.Body, mdltype.Material)
		if diags.HasErrors() {
			return nil, nil, fmt.Errorf("material %q body: %w", mb.Name, diags)
		}
		if body.Kind() != expr.KindCall {
			return nil, nil, fmt.Errorf("material %q: body must be a call, got %s", mb.Name, body.Kind())
		}
		mat.Body = body
		sources = append(sources, mb.Body)
	}

	logger.Debug("Material translated.", "parameters", len(mat.Parameters), "temporaries", len(mat.Temporaries), "has_body", mat.Body != nil)
	return mat, sources, nil
}

// translateAnnotations converts annotation blocks. Arguments must be
// constants.
func translateAnnotations(blocks []*AnnotationBlock) (expr.Block, error) {
	var out expr.Block
	sc := &scope{constOnly: true}
	for _, ab := range blocks {
		attrs, diags := orderedAttributes(ab.Body)
		if diags.HasErrors() {
			return nil, fmt.Errorf("annotation %q: %w", ab.Name, diags)
		}
		args := expr.NewList()
		for _, attr := range attrs {
			val, diags := sc.translate(attr.Expr, mdltype.Type{})
			if diags.HasErrors() {
				return nil, fmt.Errorf("annotation %q, argument %q: %w", ab.Name, attr.Name, diags)
			}
			if val.Kind() != expr.KindConstant {
				return nil, fmt.Errorf("annotation %q, argument %q: must be a constant", ab.Name, attr.Name)
			}
			args.MustAdd(attr.Name, val)
		}
		out = append(out, expr.NewAnnotation(ab.Name, args))
	}
	return out, nil
}
