// Package prompt renders the text sent to the suggestion service.
package prompt

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var (
	varRe    = regexp.MustCompile(`\{\{([a-zA-Z_][a-zA-Z0-9_]*)\}\}`)
	ifOpenRe = regexp.MustCompile(`\{\{#if\s+([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)
)

const ifClose = "{{/if}}"

// Vars maps variable names to values.
type Vars map[string]string

// Render expands tmpl. {{name}} is replaced by its value and an unknown name
// is an error. {{#if name}}...{{/if}} keeps its body only when name is set
// and non-empty; blocks may nest. Values are inserted in a single pass and
// are never expanded again, so source code containing braces is safe.
func Render(tmpl string, vars Vars) (string, error) {
	body, err := resolveConditionals(tmpl, vars)
	if err != nil {
		return "", err
	}

	var missing []string
	out := varRe.ReplaceAllStringFunc(body, func(match string) string {
		name := varRe.FindStringSubmatch(match)[1]
		if val, ok := vars[name]; ok {
			return val
		}
		missing = append(missing, name)
		return match
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("missing template variables: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// resolveConditionals repeatedly resolves the innermost block: the last
// opening tag before the first closing tag.
func resolveConditionals(tmpl string, vars Vars) (string, error) {
	s := tmpl
	for {
		closeAt := strings.Index(s, ifClose)
		if closeAt < 0 {
			break
		}
		opens := ifOpenRe.FindAllStringSubmatchIndex(s[:closeAt], -1)
		if len(opens) == 0 {
			return "", errors.New("dangling {{/if}} without matching {{#if}}")
		}
		open := opens[len(opens)-1]
		name := s[open[2]:open[3]]

		var keep string
		if vars[name] != "" {
			keep = s[open[1]:closeAt]
		}
		s = s[:open[0]] + keep + s[closeAt+len(ifClose):]
	}

	if tag := ifOpenRe.FindString(s); tag != "" {
		return "", fmt.Errorf("unclosed conditional block: %s", tag)
	}
	return s, nil
}

// TemplateDir returns ~/.fixloop/templates, or "" when the home directory
// is unknown.
func TemplateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".fixloop", "templates")
}

// LoadTemplate resolves a template by name. A configured override path is
// read as-is (relative to workdir when not absolute, and it must not escape
// workdir). Otherwise the installed copy under TemplateDir wins over the
// compiled-in built-in of the same name.
func LoadTemplate(name, override, workdir string) (string, error) {
	if override != "" {
		path, err := confine(override, workdir)
		if err != nil {
			return "", err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read template %q: %w", override, err)
		}
		return string(data), nil
	}

	if dir := TemplateDir(); dir != "" {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err == nil {
			return string(data), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("read template %q: %w", name, err)
		}
	}

	if tmpl, ok := builtinTemplates[name]; ok {
		return tmpl, nil
	}
	return "", fmt.Errorf("template %q not found", name)
}

// confine resolves path against workdir and rejects results outside it.
func confine(path, workdir string) (string, error) {
	if workdir == "" {
		return path, nil
	}
	if filepath.IsAbs(path) {
		return "", fmt.Errorf("template path %q must be relative to %s", path, workdir)
	}
	absWork, err := filepath.Abs(workdir)
	if err != nil {
		return "", fmt.Errorf("resolve workdir: %w", err)
	}
	abs, err := filepath.Abs(filepath.Join(workdir, path))
	if err != nil {
		return "", fmt.Errorf("resolve template path: %w", err)
	}
	if abs != absWork && !strings.HasPrefix(abs, absWork+string(filepath.Separator)) {
		return "", fmt.Errorf("template path %q escapes workdir", path)
	}
	return abs, nil
}

// BuiltinNames lists the compiled-in template names, sorted.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtinTemplates))
	for name := range builtinTemplates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// InstallBuiltinTemplates writes the built-in templates into dir, skipping
// files that already exist. It returns the names it wrote.
func InstallBuiltinTemplates(dir string) ([]string, error) {
	if dir == "" {
		return nil, errors.New("no template directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create templates dir: %w", err)
	}

	var written []string
	for _, name := range BuiltinNames() {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, []byte(builtinTemplates[name]), 0o644); err != nil {
			return written, fmt.Errorf("write template %q: %w", name, err)
		}
		written = append(written, name)
	}
	return written, nil
}
