// Package fsutil provides file system helpers for locating compiled modules
// and the resources they reference.
package fsutil

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ModuleExtension is the file suffix of compiled module files.
const ModuleExtension = ".mdlc.hcl"

// FindFilesByExtension recursively searches the given root path for all files ending
// with the specified extension. A root that is itself a matching file is
// returned as is. The result is sorted.
func FindFilesByExtension(rootPath string, extension string) ([]string, error) {
	if extension == "" {
		panic("extension must not be empty")
	}

	info, err := os.Stat(rootPath)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		if strings.HasSuffix(info.Name(), extension) {
			return []string{rootPath}, nil
		}
		return nil, fmt.Errorf("%s is not a %s file", rootPath, extension)
	}

	var files []string
	err = filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), extension) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// ResolveResource maps a resource path as written in a module to a file
// name. Paths are resolved relative to the directory of the module file; a
// leading slash anchors the path at that directory as well. Paths escaping
// the module directory are rejected.
func ResolveResource(moduleFilename, resourcePath string) (string, error) {
	if resourcePath == "" {
		return "", fmt.Errorf("empty resource path")
	}
	rel := filepath.FromSlash(strings.TrimPrefix(resourcePath, "/"))
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("resource path %q escapes the module directory", resourcePath)
	}
	return filepath.Join(filepath.Dir(moduleFilename), rel), nil
}
