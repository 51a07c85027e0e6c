package mdltype

import (
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Type is a named shading-language type.
type Type struct {
	name string
	ty   cty.Type
}

func numbers(n int) cty.Type {
	elems := make([]cty.Type, n)
	for i := range elems {
		elems[i] = cty.Number
	}
	return cty.Tuple(elems)
}

var (
	Bool   = Type{name: "bool", ty: cty.Bool}
	Int    = Type{name: "int", ty: cty.Number}
	Float  = Type{name: "float", ty: cty.Number}
	Double = Type{name: "double", ty: cty.Number}
	String = Type{name: "string", ty: cty.String}

	Int2   = Type{name: "int2", ty: numbers(2)}
	Int3   = Type{name: "int3", ty: numbers(3)}
	Int4   = Type{name: "int4", ty: numbers(4)}
	Float2 = Type{name: "float2", ty: numbers(2)}
	Float3 = Type{name: "float3", ty: numbers(3)}
	Float4 = Type{name: "float4", ty: numbers(4)}
	Color  = Type{name: "color", ty: numbers(3)}

	// Resource types hold the resource path as a string.
	Texture2D       = Type{name: "texture_2d", ty: cty.String}
	Texture3D       = Type{name: "texture_3d", ty: cty.String}
	TextureCube     = Type{name: "texture_cube", ty: cty.String}
	LightProfile    = Type{name: "light_profile", ty: cty.String}
	BSDFMeasurement = Type{name: "bsdf_measurement", ty: cty.String}

	// Distribution function and material types have no literal values.
	BSDF     = Type{name: "bsdf", ty: cty.DynamicPseudoType}
	EDF      = Type{name: "edf", ty: cty.DynamicPseudoType}
	VDF      = Type{name: "vdf", ty: cty.DynamicPseudoType}
	Material = Type{name: "material", ty: cty.DynamicPseudoType}

	// Auto is the type of expressions whose result type is only known to
	// the compiler, such as calls into other modules.
	Auto = Type{name: "auto", ty: cty.DynamicPseudoType}
)

var builtins = map[string]Type{}

func init() {
	for _, t := range []Type{
		Bool, Int, Float, Double, String,
		Int2, Int3, Int4, Float2, Float3, Float4, Color,
		Texture2D, Texture3D, TextureCube, LightProfile, BSDFMeasurement,
		BSDF, EDF, VDF, Material, Auto,
	} {
		builtins[t.name] = t
	}
}

// Lookup returns the type with the given canonical name. Array types are
// written with a trailing `[]`.
func Lookup(name string) (Type, bool) {
	if elem, ok := strings.CutSuffix(name, "[]"); ok {
		et, found := Lookup(elem)
		if !found || et.Equals(Auto) {
			return Type{}, false
		}
		return ArrayOf(et), true
	}
	t, ok := builtins[name]
	return t, ok
}

// ArrayOf returns the array type with the given element type.
func ArrayOf(elem Type) Type {
	return Type{name: elem.name + "[]", ty: cty.List(elem.ty)}
}

// Name returns the canonical type name.
func (t Type) Name() string { return t.name }

// Cty returns the storage type of values of t.
func (t Type) Cty() cty.Type { return t.ty }

// IsValid reports whether t is a real type rather than the zero value.
func (t Type) IsValid() bool { return t.name != "" }

// Equals reports whether t and other are the same type.
func (t Type) Equals(other Type) bool { return t.name == other.name }

// String implements fmt.Stringer.
func (t Type) String() string { return t.name }

// IsArray reports whether t is an array type.
func (t Type) IsArray() bool { return strings.HasSuffix(t.name, "[]") }

// Elem returns the element type of an array type.
func (t Type) Elem() (Type, bool) {
	elem, ok := strings.CutSuffix(t.name, "[]")
	if !ok {
		return Type{}, false
	}
	return Lookup(elem)
}

// IsResource reports whether values of t name an external resource.
func (t Type) IsResource() bool {
	switch t.name {
	case Texture2D.name, Texture3D.name, TextureCube.name, LightProfile.name, BSDFMeasurement.name:
		return true
	}
	return false
}

// implicit lists the conversions applied without an explicit constructor.
var implicit = map[string][]string{
	"int":   {"float", "double"},
	"float": {"double"},
	"int2":  {"float2"},
	"int3":  {"float3"},
	"int4":  {"float4"},
}

// Assignable reports whether a value of type from may be bound to a slot of
// type to, either directly or through an implicit conversion.
func Assignable(from, to Type) bool {
	if from.Equals(to) || from.Equals(Auto) {
		return true
	}
	for _, target := range implicit[from.name] {
		if target == to.name {
			return true
		}
	}
	if fe, ok := from.Elem(); ok {
		if te, ok := to.Elem(); ok {
			return fe.Equals(te)
		}
	}
	return false
}

// Convert converts v into the storage representation of t.
func (t Type) Convert(v cty.Value) (cty.Value, error) {
	if !t.IsValid() {
		return cty.NilVal, fmt.Errorf("convert to invalid type")
	}
	if t.ty.Equals(cty.DynamicPseudoType) {
		return v, nil
	}
	out, err := convert.Convert(v, t.ty)
	if err != nil {
		return cty.NilVal, fmt.Errorf("value of type %s is not a valid %s: %w", v.Type().FriendlyName(), t.name, err)
	}
	return out, nil
}

// FromValue infers the type of a literal value. Numbers are floats unless
// they are whole, tuples of two to four numbers are float vectors.
func FromValue(v cty.Value) Type {
	ty := v.Type()
	switch {
	case ty.Equals(cty.Bool):
		return Bool
	case ty.Equals(cty.String):
		return String
	case ty.Equals(cty.Number):
		if v.IsKnown() && !v.IsNull() && v.AsBigFloat().IsInt() {
			return Int
		}
		return Float
	case ty.IsTupleType():
		elems := ty.TupleElementTypes()
		for _, et := range elems {
			if !et.Equals(cty.Number) {
				return Auto
			}
		}
		switch len(elems) {
		case 2:
			return Float2
		case 3:
			return Float3
		case 4:
			return Float4
		}
	}
	return Auto
}
