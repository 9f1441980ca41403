package policy

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testLoader(t *testing.T) *Loader {
	t.Helper()

	logger := zerolog.New(nil).Level(zerolog.Disabled)
	return NewLoader(logger)
}

func TestLoadFromFile_Rego(t *testing.T) {
	loader := testLoader(t)

	tmpDir := t.TempDir()
	policyFile := filepath.Join(tmpDir, "no-debug.rego")

	regoContent := `# Forbid debug builds.
package polybuild.policies.nodebug

import rego.v1

deny contains msg if {
	input.config.mode == "debug"
	msg := "debug builds rejected"
}`

	if err := os.WriteFile(policyFile, []byte(regoContent), 0o644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	policy, err := loader.loadFromFile(context.Background(), policyFile)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}

	if policy.Name != "no-debug" {
		t.Errorf("Expected name 'no-debug', got '%s'", policy.Name)
	}
	if policy.Rego != regoContent {
		t.Error("Rego content doesn't match")
	}
	if !policy.Enabled {
		t.Error("Policy should be enabled by default")
	}
	if policy.Severity != SeverityError {
		t.Errorf("Expected file policies to deny by default, got severity '%s'", policy.Severity)
	}
	if policy.Description != "Forbid debug builds." {
		t.Errorf("Expected description from comments, got '%s'", policy.Description)
	}
	if policy.Metadata["source"] != policyFile {
		t.Errorf("Expected source metadata %s, got %v", policyFile, policy.Metadata["source"])
	}
}

func TestLoadFromFile_RegoDirectives(t *testing.T) {
	loader := testLoader(t)

	tests := []struct {
		name         string
		content      string
		wantSeverity Severity
		wantEnabled  bool
		wantDesc     string
	}{
		{
			name: "severity directive",
			content: `# severity: warning
# Advisory only.
package p

import rego.v1`,
			wantSeverity: SeverityWarning,
			wantEnabled:  true,
			wantDesc:     "Advisory only.",
		},
		{
			name: "enabled directive",
			content: `# enabled: false
package p

import rego.v1`,
			wantSeverity: SeverityError,
			wantEnabled:  false,
			wantDesc:     "",
		},
		{
			name: "unknown severity keeps default",
			content: `# severity: shrug
package p

import rego.v1`,
			wantSeverity: SeverityError,
			wantEnabled:  true,
			wantDesc:     "",
		},
		{
			name: "comments after the package line are ignored",
			content: `# Leading description.
package p

# severity: warning
import rego.v1`,
			wantSeverity: SeverityError,
			wantEnabled:  true,
			wantDesc:     "Leading description.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := loader.parseRegoFile("/policies/test.rego", []byte(tt.content))

			if policy.Severity != tt.wantSeverity {
				t.Errorf("Expected severity '%s', got '%s'", tt.wantSeverity, policy.Severity)
			}
			if policy.Enabled != tt.wantEnabled {
				t.Errorf("Expected enabled=%v, got %v", tt.wantEnabled, policy.Enabled)
			}
			if policy.Description != tt.wantDesc {
				t.Errorf("Expected description '%s', got '%s'", tt.wantDesc, policy.Description)
			}
		})
	}
}

func TestLoadFromFile_JSON(t *testing.T) {
	loader := testLoader(t)

	tmpDir := t.TempDir()
	policyFile := filepath.Join(tmpDir, "test-policy.json")

	policy := Policy{
		Name:        "test-json-policy",
		Description: "A test policy",
		Rego:        "package p\n\nimport rego.v1",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"test"},
	}

	data, err := json.Marshal(policy)
	if err != nil {
		t.Fatalf("Failed to marshal policy: %v", err)
	}
	if err := os.WriteFile(policyFile, data, 0o644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	loaded, err := loader.loadFromFile(context.Background(), policyFile)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}

	if loaded.Name != policy.Name {
		t.Errorf("Expected name '%s', got '%s'", policy.Name, loaded.Name)
	}
	if loaded.Description != policy.Description {
		t.Errorf("Expected description '%s', got '%s'", policy.Description, loaded.Description)
	}
	if loaded.Severity != policy.Severity {
		t.Errorf("Expected severity '%s', got '%s'", policy.Severity, loaded.Severity)
	}
}

func TestParseJSONFile_Defaults(t *testing.T) {
	loader := testLoader(t)

	policy, err := loader.parseJSONFile([]byte(`{"name": "minimal", "rego": "package p"}`))
	if err != nil {
		t.Fatalf("Failed to parse policy: %v", err)
	}

	if !policy.Enabled {
		t.Error("Expected policy without enabled field to be enabled")
	}
	if policy.Severity != SeverityError {
		t.Errorf("Expected default severity error, got '%s'", policy.Severity)
	}
	if policy.CreatedAt.IsZero() {
		t.Error("Expected CreatedAt to be defaulted")
	}

	policy, err = loader.parseJSONFile([]byte(`{"name": "off", "rego": "package p", "enabled": false}`))
	if err != nil {
		t.Fatalf("Failed to parse policy: %v", err)
	}
	if policy.Enabled {
		t.Error("Expected explicit enabled=false to stick")
	}
}

func TestParseJSONFile_Invalid(t *testing.T) {
	loader := testLoader(t)

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "not json",
			content: "invalid json",
			want:    "failed to parse",
		},
		{
			name:    "missing name",
			content: `{"rego": "package p"}`,
			want:    "name is required",
		},
		{
			name:    "missing rego",
			content: `{"name": "empty"}`,
			want:    "no rego content",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loader.parseJSONFile([]byte(tt.content))
			if err == nil {
				t.Fatal("Expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadFromDirectory(t *testing.T) {
	loader := testLoader(t)

	tmpDir := t.TempDir()

	policies := map[string]string{
		"policy1.rego": "package p1\n\nimport rego.v1",
		"policy2.rego": "package p2\n\nimport rego.v1",
		"policy3.rego": "package p3\n\nimport rego.v1",
	}

	for filename, content := range policies {
		path := filepath.Join(tmpDir, filename)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("Failed to write test file: %v", err)
		}
	}

	// Non-policy files are ignored, broken policy files are skipped
	if err := os.WriteFile(filepath.Join(tmpDir, "README.md"), []byte("# Test"), 0o644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "broken.json"), []byte("not json"), 0o644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	loaded, err := loader.loadFromDirectory(context.Background(), tmpDir)
	if err != nil {
		t.Fatalf("Failed to load directory: %v", err)
	}

	if len(loaded) != len(policies) {
		t.Errorf("Expected %d policies, got %d", len(policies), len(loaded))
	}
}

func TestLoadFromDirectory_Recursive(t *testing.T) {
	loader := testLoader(t)

	tmpDir := t.TempDir()
	subDir := filepath.Join(tmpDir, "subdir")
	if err := os.Mkdir(subDir, 0o755); err != nil {
		t.Fatalf("Failed to create subdirectory: %v", err)
	}

	if err := os.WriteFile(filepath.Join(tmpDir, "policy1.rego"), []byte("package p1"), 0o644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(subDir, "policy2.rego"), []byte("package p2"), 0o644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	loaded, err := loader.loadFromDirectory(context.Background(), tmpDir)
	if err != nil {
		t.Fatalf("Failed to load directory: %v", err)
	}

	if len(loaded) != 2 {
		t.Errorf("Expected 2 policies (including subdirectory), got %d", len(loaded))
	}
}

func TestLoadFromPaths(t *testing.T) {
	loader := testLoader(t)

	tmpDir := t.TempDir()

	dir1 := filepath.Join(tmpDir, "dir1")
	if err := os.Mkdir(dir1, 0o755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir1, "policy1.rego"), []byte("package p1"), 0o644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	file1 := filepath.Join(tmpDir, "policy2.rego")
	if err := os.WriteFile(file1, []byte("package p2"), 0o644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	loaded, err := loader.LoadFromPaths(context.Background(), []string{dir1, file1})
	if err != nil {
		t.Fatalf("Failed to load paths: %v", err)
	}

	if len(loaded) != 2 {
		t.Errorf("Expected 2 policies, got %d", len(loaded))
	}
}

func TestLoadFromFile_Cached(t *testing.T) {
	loader := testLoader(t)

	tmpDir := t.TempDir()
	policyFile := filepath.Join(tmpDir, "cached.rego")
	if err := os.WriteFile(policyFile, []byte("package p"), 0o644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	first, err := loader.loadFromFile(context.Background(), policyFile)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}

	second, err := loader.loadFromFile(context.Background(), policyFile)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}

	if first != second {
		t.Error("Expected second load to return the cached policy")
	}
}

func TestLoadBundle(t *testing.T) {
	loader := testLoader(t)

	tmpDir := t.TempDir()
	bundleFile := filepath.Join(tmpDir, "bundle.json")

	bundle := Bundle{
		Name:        "baseline",
		Version:     "1.0.0",
		Description: "Baseline admission policies",
		Policies: []Policy{
			{
				Name:     "policy1",
				Rego:     "package p1",
				Severity: SeverityError,
				Enabled:  true,
			},
			{
				Name:     "policy2",
				Rego:     "package p2",
				Severity: SeverityWarning,
				Enabled:  true,
			},
		},
		CreatedAt: time.Now(),
	}

	data, err := json.Marshal(bundle)
	if err != nil {
		t.Fatalf("Failed to marshal bundle: %v", err)
	}
	if err := os.WriteFile(bundleFile, data, 0o644); err != nil {
		t.Fatalf("Failed to write bundle file: %v", err)
	}

	loaded, err := loader.LoadBundle(context.Background(), bundleFile)
	if err != nil {
		t.Fatalf("Failed to load bundle: %v", err)
	}

	if loaded.Name != bundle.Name {
		t.Errorf("Expected bundle name '%s', got '%s'", bundle.Name, loaded.Name)
	}
	if loaded.Version != bundle.Version {
		t.Errorf("Expected version '%s', got '%s'", bundle.Version, loaded.Version)
	}
	if len(loaded.Policies) != len(bundle.Policies) {
		t.Errorf("Expected %d policies, got %d", len(bundle.Policies), len(loaded.Policies))
	}
}

func TestClearCache(t *testing.T) {
	loader := testLoader(t)

	tmpDir := t.TempDir()
	policyFile := filepath.Join(tmpDir, "test.rego")
	if err := os.WriteFile(policyFile, []byte("package p"), 0o644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	if _, err := loader.loadFromFile(context.Background(), policyFile); err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}

	if len(loader.cache) != 1 {
		t.Errorf("Expected 1 cache entry, got %d", len(loader.cache))
	}

	loader.ClearCache()

	if len(loader.cache) != 0 {
		t.Errorf("Expected 0 cache entries after clear, got %d", len(loader.cache))
	}
}

func TestLoadFromFile_UnsupportedType(t *testing.T) {
	loader := testLoader(t)

	tmpDir := t.TempDir()
	policyFile := filepath.Join(tmpDir, "test.txt")
	if err := os.WriteFile(policyFile, []byte("not a policy"), 0o644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	if _, err := loader.loadFromFile(context.Background(), policyFile); err == nil {
		t.Error("Expected error for unsupported file type")
	}
}

func TestLoadFromPath_NonExistent(t *testing.T) {
	loader := testLoader(t)

	if _, err := loader.loadFromPath(context.Background(), "/nonexistent/path"); err == nil {
		t.Error("Expected error for non-existent path")
	}
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	loader := testLoader(t)

	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, "first.rego"), []byte("package p1"), 0o644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloads := make(chan []Policy, 4)
	err := loader.Watch(ctx, []string{tmpDir}, func(policies []Policy) error {
		reloads <- policies
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to start watching: %v", err)
	}
	defer func() { _ = loader.StopWatching() }()

	if err := os.WriteFile(filepath.Join(tmpDir, "second.rego"), []byte("package p2"), 0o644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	select {
	case policies := <-reloads:
		if len(policies) != 2 {
			t.Errorf("Expected 2 policies after reload, got %d", len(policies))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Expected a reload after creating a policy file")
	}
}
