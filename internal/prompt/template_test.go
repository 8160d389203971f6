package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRender_SimpleVars(t *testing.T) {
	result, err := Render("{{path}} - {{error}}", Vars{"path": "app.py", "error": "NameError"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "app.py - NameError" {
		t.Errorf("got %q", result)
	}
}

func TestRender_MissingVars(t *testing.T) {
	_, err := Render("{{a}} and {{b}} and {{c}}", Vars{"b": "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "a") || !strings.Contains(err.Error(), "c") {
		t.Errorf("error should list missing vars, got: %v", err)
	}
}

func TestRender_Conditionals(t *testing.T) {
	tests := []struct {
		name string
		tmpl string
		vars Vars
		want string
	}{
		{"present", "A{{#if x}}[{{x}}]{{/if}}B", Vars{"x": "1"}, "A[1]B"},
		{"absent", "A{{#if x}}[{{x}}]{{/if}}B", Vars{}, "AB"},
		{"empty string", "A{{#if x}}[{{x}}]{{/if}}B", Vars{"x": ""}, "AB"},
		{"nested both", "{{#if a}}outer {{#if b}}inner{{/if}} end{{/if}}", Vars{"a": "y", "b": "y"}, "outer inner end"},
		{"nested outer absent", "S{{#if a}}o {{#if b}}i{{/if}} e{{/if}}F", Vars{}, "SF"},
		{"trailing space in tag", "{{#if x }}content{{/if}}", Vars{"x": "y"}, "content"},
		{"absent block hides missing var", "S{{#if x}}{{y}}{{/if}}M", Vars{}, "SM"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.tmpl, tt.vars)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRender_UnclosedConditional(t *testing.T) {
	_, err := Render("START{{#if x}}content", Vars{"x": "yes"})
	if err == nil || !strings.Contains(err.Error(), "unclosed") {
		t.Errorf("expected unclosed error, got: %v", err)
	}
}

func TestRender_DanglingClose(t *testing.T) {
	_, err := Render("content{{/if}}", Vars{})
	if err == nil || !strings.Contains(err.Error(), "dangling") {
		t.Errorf("expected dangling error, got: %v", err)
	}
}

func TestRender_SourceWithBracesIsLiteral(t *testing.T) {
	src := "tmpl = '{{name}}'\nif x: {{/if}}\n"
	result, err := Render("{{content}}", Vars{"content": src})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != src {
		t.Errorf("values must be inserted literally, got %q", result)
	}
}

func TestRender_FixSubstituteMatchesClassicContext(t *testing.T) {
	result, err := Render(fixSubstituteTemplate, Vars{
		"path":    "/workspace/app.py",
		"error":   "Test case 1 failed",
		"content": "print(1)",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "/workspace/app.py - Test case 1 failed\nprint(1)" {
		t.Errorf("got %q", result)
	}
}

func TestRender_FixFileTemplate(t *testing.T) {
	vars := Vars{
		"path":        "app.py",
		"language_id": "71",
		"round":       "2",
		"max_rounds":  "3",
		"error":       "Test case 1 failed:\nInput: 1\n",
		"content":     "print(2)",
	}
	result, err := Render(fixFileTemplate, vars)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result, "Round: 2 of 3") || !strings.Contains(result, "print(2)") {
		t.Errorf("rendered template missing fields: %q", result)
	}
	if strings.Contains(result, "Already tried") || strings.Contains(result, "Ticket:") {
		t.Error("optional sections should be dropped when unset")
	}

	vars["previous"] = "print(3)"
	vars["ticket"] = "FIX-9"
	result, err = Render(fixFileTemplate, vars)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result, "Already tried") || !strings.Contains(result, "Ticket: FIX-9") {
		t.Errorf("optional sections should render when set: %q", result)
	}
}

func TestLoadTemplate_Builtin(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	tmpl, err := LoadTemplate(FixFile, "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tmpl != fixFileTemplate {
		t.Error("expected compiled-in fix-file template")
	}
}

func TestLoadTemplate_InstalledCopyWins(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := filepath.Join(home, ".fixloop", "templates")
	os.MkdirAll(dir, 0o755)
	os.WriteFile(filepath.Join(dir, FixSubstitute), []byte("edited {{path}}"), 0o644)

	tmpl, err := LoadTemplate(FixSubstitute, "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tmpl != "edited {{path}}" {
		t.Errorf("got %q", tmpl)
	}
}

func TestLoadTemplate_ProjectOverride(t *testing.T) {
	workdir := t.TempDir()
	os.MkdirAll(filepath.Join(workdir, "prompts"), 0o755)
	os.WriteFile(filepath.Join(workdir, "prompts", "mine.md"), []byte("custom"), 0o644)

	tmpl, err := LoadTemplate(FixFile, "prompts/mine.md", workdir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tmpl != "custom" {
		t.Errorf("got %q", tmpl)
	}
}

func TestLoadTemplate_OverrideEscapes(t *testing.T) {
	tmpDir := t.TempDir()
	workdir := filepath.Join(tmpDir, "workdir")
	os.MkdirAll(workdir, 0o755)
	secret := filepath.Join(tmpDir, "secret.txt")
	os.WriteFile(secret, []byte("TOP SECRET"), 0o644)

	if content, err := LoadTemplate(FixFile, "../secret.txt", workdir); err == nil {
		t.Errorf("relative traversal read %q", content)
	}
	if content, err := LoadTemplate(FixFile, secret, workdir); err == nil {
		t.Errorf("absolute path bypassed workdir: %q", content)
	}
}

func TestLoadTemplate_NotFound(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	if _, err := LoadTemplate("nonexistent.md", "", ""); err == nil {
		t.Fatal("expected error for missing template")
	}
}

func TestInstallBuiltinTemplates(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "templates")

	written, err := InstallBuiltinTemplates(dir)
	if err != nil {
		t.Fatalf("install error: %v", err)
	}
	if len(written) != len(builtinTemplates) {
		t.Errorf("wrote %v, want all built-ins", written)
	}
	for _, name := range BuiltinNames() {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("template %q not installed", name)
		}
	}

	os.WriteFile(filepath.Join(dir, FixFile), []byte("edited"), 0o644)
	written, err = InstallBuiltinTemplates(dir)
	if err != nil {
		t.Fatalf("second install error: %v", err)
	}
	if len(written) != 0 {
		t.Errorf("second install should skip existing files, wrote %v", written)
	}
	data, _ := os.ReadFile(filepath.Join(dir, FixFile))
	if string(data) != "edited" {
		t.Error("existing template was overwritten")
	}
}

func TestBuiltinNames(t *testing.T) {
	names := BuiltinNames()
	if len(names) != 2 || names[0] != FixFile || names[1] != FixSubstitute {
		t.Errorf("BuiltinNames() = %v", names)
	}
}
