// Package scaffold holds the minimal baseline-toolchain files written
// into a workspace after a disallowed framework is removed from its
// manifest. Without these the repaired manifest points at an entry
// module that does not exist.
package scaffold

import (
	"embed"
	"io/fs"
)

//go:embed templates
var templates embed.FS

// File is one baseline file to materialize in the workspace.
type File struct {
	// Path is the workspace-relative target path.
	Path string
	// Content is the file body.
	Content []byte
}

// Files returns the baseline file set in deterministic path order.
func Files() ([]File, error) {
	var files []File
	err := fs.WalkDir(templates, "templates", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		data, err := templates.ReadFile(p)
		if err != nil {
			return err
		}
		files = append(files, File{
			Path:    p[len("templates/"):],
			Content: data,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
