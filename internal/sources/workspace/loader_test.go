package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeWorkspace(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workspace.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to create test YAML file: %v", err)
	}
	return path
}

func TestLoaderLoad(t *testing.T) {
	path := writeWorkspace(t, `---
groups:
  - name: Research
    color: blue
    keep_active: true
    groups:
      - name: Papers
tabs:
  - url: https://example.com/a
    group: Research/Papers
  - url: https://example.com/b
focus: 2
`)

	config, err := NewLoader(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(config.Groups) != 1 || config.Groups[0].Name != "Research" {
		t.Fatalf("Groups = %+v", config.Groups)
	}
	if !config.Groups[0].KeepActive {
		t.Error("Research should be keep_active")
	}
	if len(config.Groups[0].Groups) != 1 || config.Groups[0].Groups[0].Name != "Papers" {
		t.Errorf("nested groups = %+v", config.Groups[0].Groups)
	}
	if len(config.Tabs) != 2 || config.Tabs[0].Group != "Research/Papers" {
		t.Errorf("Tabs = %+v", config.Tabs)
	}
	if config.Focus != 2 {
		t.Errorf("Focus = %d, want 2", config.Focus)
	}
}

func TestLoaderExpandsEnv(t *testing.T) {
	t.Setenv("TABKEEPER_TEST_HOST", "intranet.local")
	path := writeWorkspace(t, `
tabs:
  - url: https://${TABKEEPER_TEST_HOST}/wiki
`)

	config, err := NewLoader(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := config.Tabs[0].URL; got != "https://intranet.local/wiki" {
		t.Errorf("URL = %q", got)
	}
}

func TestLoaderLoadFileNotFound(t *testing.T) {
	_, err := NewLoader("/nonexistent/workspace.yaml").Load()
	if err == nil {
		t.Fatal("Load() should return error for missing file")
	}
}

func TestLoaderLoadInvalidYAML(t *testing.T) {
	path := writeWorkspace(t, "groups: [unclosed")
	if _, err := NewLoader(path).Load(); err == nil {
		t.Fatal("Load() should return error for invalid YAML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name:   "empty",
			config: Config{},
		},
		{
			name:    "blank group name",
			config:  Config{Groups: []GroupEntry{{Name: " "}}},
			wantErr: "invalid group name",
		},
		{
			name:    "slash in name",
			config:  Config{Groups: []GroupEntry{{Name: "a/b"}}},
			wantErr: "invalid group name",
		},
		{
			name: "duplicate siblings",
			config: Config{Groups: []GroupEntry{
				{Name: "Work", Groups: []GroupEntry{{Name: "X"}, {Name: "X"}}},
			}},
			wantErr: "duplicate group",
		},
		{
			name: "same name at different levels",
			config: Config{Groups: []GroupEntry{
				{Name: "X", Groups: []GroupEntry{{Name: "X"}}},
			}},
		},
		{
			name:    "tab without url",
			config:  Config{Tabs: []TabEntry{{Group: "Work"}}},
			wantErr: "has no url",
		},
		{
			name:    "focus out of range",
			config:  Config{Tabs: []TabEntry{{URL: "https://a"}}, Focus: 2},
			wantErr: "out of range",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}
