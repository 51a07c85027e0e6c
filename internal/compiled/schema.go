package compiled

import "github.com/hashicorp/hcl/v2"

// fileRoot is the top-level structure of a compiled module file.
type fileRoot struct {
	ModuleName string           `hcl:"module_name"`
	Materials  []*MaterialBlock `hcl:"material,block"`
	Remain     hcl.Body         `hcl:",remain"`
}

// MaterialBlock represents a `material` block.
type MaterialBlock struct {
	Name         string             `hcl:"name,label"`
	Exported     bool               `hcl:"exported,optional"`
	OriginalName string             `hcl:"original_name,optional"`
	Prototype    string             `hcl:"prototype,optional"`
	Thumbnail    string             `hcl:"thumbnail,optional"`
	Annotations  []*AnnotationBlock `hcl:"annotation,block"`
	Parameters   []*ParameterBlock  `hcl:"parameter,block"`
	Temporaries  []*TemporaryBlock  `hcl:"temporary,block"`
	Body         hcl.Expression     `hcl:"body,optional"`
}

// ParameterBlock represents a `parameter` block inside a material.
type ParameterBlock struct {
	Name        string             `hcl:"name,label"`
	Type        hcl.Expression     `hcl:"type"`
	Default     hcl.Expression     `hcl:"default,optional"`
	EnableIf    hcl.Expression     `hcl:"enable_if,optional"`
	Annotations []*AnnotationBlock `hcl:"annotation,block"`
}

// AnnotationBlock represents an `annotation` block. Its attributes are the
// named annotation arguments.
type AnnotationBlock struct {
	Name string   `hcl:"name,label"`
	Body hcl.Body `hcl:",remain"`
}

// TemporaryBlock represents a `temporary` block inside a material.
type TemporaryBlock struct {
	Name  string         `hcl:"name,label"`
	Value hcl.Expression `hcl:"value"`
}
