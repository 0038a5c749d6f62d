// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bureau-foundation/examvault/cmd/examvault/cli"
	"github.com/bureau-foundation/examvault/lib/entity"
	"github.com/bureau-foundation/examvault/lib/vaulterr"
)

const testKeyHex = "5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a\n"

// installation writes a config file and master key for a vault rooted
// under a fresh temporary directory and returns the config path and
// root.
func installation(t *testing.T, keyHex string) (string, string) {
	t.Helper()
	directory := t.TempDir()
	root := filepath.Join(directory, "root")
	keyPath := filepath.Join(directory, "master.key")
	if err := os.WriteFile(keyPath, []byte(keyHex), 0o600); err != nil {
		t.Fatalf("writing key: %v", err)
	}
	configPath := filepath.Join(directory, "examvault.yaml")
	content := "paths:\n  root: " + root + "\n" +
		"keys:\n  master_key_file: " + keyPath + "\n" +
		"store:\n  compression: zstd\n" +
		"exchange:\n  scrypt_work_factor: 10\n" +
		"log:\n  level: warn\n  format: json\n"
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return configPath, root
}

// execute runs the command tree and returns what it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var output bytes.Buffer
	previous := stdout
	stdout = &output
	defer func() { stdout = previous }()

	root := Root()
	root.SetOutput(&bytes.Buffer{})
	err := root.Execute(args)
	return output.String(), err
}

func mustExecute(t *testing.T, args ...string) string {
	t.Helper()
	output, err := execute(t, args...)
	if err != nil {
		t.Fatalf("examvault %s: %v", strings.Join(args, " "), err)
	}
	return output
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestWorkspaceLifecycle(t *testing.T) {
	sourceConfig, sourceRoot := installation(t, testKeyHex)
	targetConfig, targetRoot := installation(t, testKeyHex)

	output := mustExecute(t, "init", "acme", "--name", "Acme Academy", "--config", sourceConfig)
	if !strings.Contains(output, "created tenant acme") {
		t.Errorf("init output = %q", output)
	}
	meta, err := entity.ReadTenantMeta(sourceRoot, "acme")
	if err != nil {
		t.Fatalf("reading tenant metadata: %v", err)
	}
	if meta.Name != "Acme Academy" {
		t.Errorf("tenant name = %q", meta.Name)
	}

	quiz := writeFile(t, "quiz.json", `{"id": "q1", "title": "Fractions", "questions": [{"id": "a", "prompt": "1/2 + 1/4?", "choices": ["3/4", "2/6"], "answer": 0}]}`)
	output = mustExecute(t, "put", "acme", "quiz", quiz, "--name", "Fractions", "-c", sourceConfig)
	if !strings.Contains(output, "stored quiz q1") {
		t.Errorf("put output = %q", output)
	}

	output = mustExecute(t, "list", "acme", "--kind", "quiz", "--config", sourceConfig)
	if !strings.Contains(output, "q1") || !strings.Contains(output, "Fractions") {
		t.Errorf("list output lacks the quiz:\n%s", output)
	}
	if strings.Contains(output, "workspace") {
		t.Errorf("kind filter ignored:\n%s", output)
	}

	bundlePath := filepath.Join(t.TempDir(), "acme.maes")
	output = mustExecute(t, "export-workspace", "acme", bundlePath, "--config", sourceConfig)
	if !strings.Contains(output, "exported 2 entities") {
		t.Errorf("export output = %q", output)
	}

	output = mustExecute(t, "import", bundlePath, "--config", targetConfig)
	if !strings.Contains(output, "created tenant acme") {
		t.Errorf("import output = %q", output)
	}
	if !strings.Contains(output, "merged: acme q1") {
		t.Errorf("import output lacks merged ids: %q", output)
	}

	output = mustExecute(t, "list", "--config", targetConfig)
	if !strings.Contains(output, "acme") || !strings.Contains(output, "Acme Academy") {
		t.Errorf("tenant listing:\n%s", output)
	}

	_, err = execute(t, "import", bundlePath, "--config", targetConfig)
	if !errors.Is(err, vaulterr.ErrConflict) {
		t.Fatalf("re-import error = %v, want ErrConflict", err)
	}

	mustExecute(t, "remove-tenant", "acme", "--config", targetConfig)
	if _, err := os.Stat(filepath.Join(targetRoot, "acme")); !os.IsNotExist(err) {
		t.Errorf("tenant directory still present: %v", err)
	}
}

func TestKeygen(t *testing.T) {
	configPath, _ := installation(t, testKeyHex)
	keyPath := filepath.Join(filepath.Dir(configPath), "master.key")
	if err := os.Remove(keyPath); err != nil {
		t.Fatal(err)
	}

	output := mustExecute(t, "keygen", "--config", configPath)
	if !strings.Contains(output, "key id") {
		t.Errorf("keygen output = %q", output)
	}
	mustExecute(t, "init", "acme", "--config", configPath)

	if _, err := execute(t, "keygen", "--config", configPath); !errors.Is(err, fs.ErrExist) {
		t.Errorf("keygen over an existing key: %v, want fs.ErrExist", err)
	}
}

func TestInitTwiceConflicts(t *testing.T) {
	configPath, _ := installation(t, testKeyHex)
	mustExecute(t, "init", "acme", "--config", configPath)

	_, err := execute(t, "init", "acme", "--config", configPath)
	if !errors.Is(err, vaulterr.ErrConflict) {
		t.Fatalf("second init error = %v, want ErrConflict", err)
	}
}

func TestSealedBundleNeedsPassphrase(t *testing.T) {
	sourceConfig, _ := installation(t, testKeyHex)
	targetConfig, _ := installation(t, testKeyHex)
	passphrase := writeFile(t, "passphrase", "correct horse\n")

	mustExecute(t, "init", "acme", "--config", sourceConfig)
	bundlePath := filepath.Join(t.TempDir(), "acme.maes")
	mustExecute(t, "export-workspace", "acme", bundlePath, "--passphrase-file", passphrase, "--config", sourceConfig)

	if _, err := execute(t, "import", bundlePath, "--config", targetConfig); err == nil {
		t.Fatal("import of a sealed bundle without passphrase succeeded")
	}
	output := mustExecute(t, "import", bundlePath, "--passphrase-file", passphrase, "--config", targetConfig)
	if !strings.Contains(output, "created tenant acme") {
		t.Errorf("import output = %q", output)
	}
}

func TestRecordExportAndRemove(t *testing.T) {
	configPath, root := installation(t, testKeyHex)
	mustExecute(t, "init", "acme", "--config", configPath)

	record := writeFile(t, "record.json", `{"id": "r1", "tenant": "someone-else", "quiz_id": "q1", "student_id": "s1", "answers": [0], "score": 1}`)
	mustExecute(t, "put", "acme", "quiz_record", record, "--node", "q1", "--config", configPath)

	bundlePath := filepath.Join(t.TempDir(), "records.maes")
	output := mustExecute(t, "export", "acme", bundlePath, "r1", "missing", "--config", configPath)
	if !strings.Contains(output, "exported 1 records") {
		t.Errorf("export output = %q", output)
	}

	mustExecute(t, "remove", "acme", "r1", "--config", configPath)
	output = mustExecute(t, "list", "acme", "--config", configPath)
	if strings.Contains(output, "r1") {
		t.Errorf("removed record still listed:\n%s", output)
	}
	if _, err := os.Stat(filepath.Join(root, "acme", "r1.bin")); !os.IsNotExist(err) {
		t.Errorf("payload of removed record still present: %v", err)
	}
}

func TestUsageErrors(t *testing.T) {
	configPath, _ := installation(t, testKeyHex)
	tests := []struct {
		name string
		args []string
	}{
		{"init without tenant", []string{"init", "--config", configPath}},
		{"unknown kind", []string{"put", "acme", "essay", "x.json", "--config", configPath}},
		{"export without ids", []string{"export", "acme", "out.maes", "--config", configPath}},
		{"unknown command", []string{"exprot"}},
		{"unknown flag", []string{"list", "--confg", configPath}},
		{"schema without kind", []string{"schema"}},
		{"schema of internal kind", []string{"schema", "entity_index"}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := execute(t, test.args...)
			var usage *cli.UsageError
			if !errors.As(err, &usage) {
				t.Fatalf("error = %v (%T), want UsageError", err, err)
			}
		})
	}
}

func TestForeignKeyRejected(t *testing.T) {
	sourceConfig, _ := installation(t, testKeyHex)
	targetConfig, _ := installation(t, strings.Repeat("33", 32))

	mustExecute(t, "init", "acme", "--config", sourceConfig)
	bundlePath := filepath.Join(t.TempDir(), "acme.maes")
	mustExecute(t, "export-workspace", "acme", bundlePath, "--config", sourceConfig)

	_, err := execute(t, "import", bundlePath, "--config", targetConfig)
	if !errors.Is(err, vaulterr.ErrCrypto) {
		t.Fatalf("import error = %v, want ErrCrypto", err)
	}
}

func TestVersionFlag(t *testing.T) {
	output := mustExecute(t, "--version")
	if !strings.HasPrefix(output, "examvault ") {
		t.Errorf("version output = %q", output)
	}
}

func TestSchemaCommand(t *testing.T) {
	output := mustExecute(t, "schema", "quiz_record")
	var schema struct {
		Title      string                     `json:"title"`
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal([]byte(output), &schema); err != nil {
		t.Fatalf("schema output is not JSON: %v\n%s", err, output)
	}
	if schema.Title != "quiz_record" {
		t.Errorf("title = %q, want quiz_record", schema.Title)
	}
	for _, name := range []string{"quiz_id", "student_id", "answers", "score"} {
		if _, ok := schema.Properties[name]; !ok {
			t.Errorf("property %q missing from %s", name, output)
		}
	}
}

func TestReadPassphrase(t *testing.T) {
	tests := []struct {
		content string
		want    string
		wantErr bool
	}{
		{"secret\n", "secret", false},
		{"secret\r\n", "secret", false},
		{"two words", "two words", false},
		{"\n", "", true},
	}
	for _, test := range tests {
		got, err := readPassphrase(writeFile(t, "passphrase", test.content))
		if (err != nil) != test.wantErr {
			t.Errorf("readPassphrase(%q) error = %v, wantErr %v", test.content, err, test.wantErr)
			continue
		}
		if got != test.want {
			t.Errorf("readPassphrase(%q) = %q, want %q", test.content, got, test.want)
		}
	}

	if got, err := (passphraseFlags{}).read(true); err != nil || got != "" {
		t.Errorf("no passphrase flags: read() = %q, %v", got, err)
	}
	both := passphraseFlags{file: writeFile(t, "passphrase", "secret"), prompt: true}
	if _, err := both.read(false); err == nil {
		t.Error("expected error when both passphrase sources are set")
	}
}

func TestPromptPassphraseNeedsTerminal(t *testing.T) {
	file, err := os.Open(writeFile(t, "stdin", "secret\n"))
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()

	if _, err := promptPassphrase(int(file.Fd()), false); err == nil || !strings.Contains(err.Error(), "needs a terminal") {
		t.Errorf("promptPassphrase on a regular file: %v", err)
	}
}

func TestWithTenant(t *testing.T) {
	data, err := withTenant([]byte(`{"id": "q1", "tenant": "other"}`), "acme")
	if err != nil {
		t.Fatalf("withTenant: %v", err)
	}
	if !strings.Contains(string(data), `"tenant":"acme"`) {
		t.Errorf("tenant not replaced: %s", data)
	}
	if _, err := withTenant([]byte(`[1, 2]`), "acme"); err == nil {
		t.Error("expected error for a non-object entity file")
	}
}
