package host

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

// Template names.
const (
	TemplateEula       = "eula.txt"
	TemplateProperties = "server.properties"
	TemplateUnit       = "minecraft.service"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// FileTemplates renders the embedded templates and writes them atomically.
type FileTemplates struct {
	templates *template.Template
	accounts  Accounts
}

// NewFileTemplates parses the embedded templates. accounts may be nil when
// no ownership changes are needed.
func NewFileTemplates(accounts Accounts) (*FileTemplates, error) {
	parsed, err := template.New("").Option("missingkey=error").ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &FileTemplates{templates: parsed, accounts: accounts}, nil
}

// Render executes template name with data and writes the result to target.
func (t *FileTemplates) Render(ctx context.Context, name, target, owner, group string, perm os.FileMode, data any) error {
	tmpl := t.templates.Lookup(name + ".tmpl")
	if tmpl == nil {
		return fmt.Errorf("template %q not found", name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}

	if err := writeFileAtomic(target, buf.Bytes(), perm); err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}

	if owner != "" && t.accounts != nil {
		if err := t.accounts.SetOwnership(ctx, target, owner, group, false); err != nil {
			return err
		}
	}
	return nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	cleanup := func() {
		_ = os.Remove(tmp.Name())
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		cleanup()
		return err
	}
	return nil
}
