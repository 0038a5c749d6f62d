// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bundle

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/klauspost/compress/zip"

	"github.com/bureau-foundation/examvault/lib/testutil"
	"github.com/bureau-foundation/examvault/lib/vaulterr"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"entities/q1.bin", "entities/q1.bin"},
		{"./workspace.json", "workspace.json"},
		{"assets/./q1/../scan.png", "assets/q1/scan.png"},
		{"../../../etc/passwn", "etc/passwn"},
		{"/etc/passwd", "etc/passwd"},
		{`..\..\windows\win.ini`, "windows/win.ini"},
		{`C:\Users\x`, "Users/x"},
		{"assets//q1/", "assets/q1"},
		{"..", ""},
		{"", ""},
	}
	for _, test := range tests {
		if got := NormalizeName(test.name); got != test.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", test.name, got, test.want)
		}
	}
}

func TestPackUnpackRoundTrip(t *testing.T) {
	ctx := context.Background()
	source := t.TempDir()
	testutil.WriteFile(t, filepath.Join(source, "workspace.json"), `{"id":"w"}`)
	testutil.WriteFile(t, filepath.Join(source, "payload.bin"), "sealed bytes")
	testutil.WriteFile(t, filepath.Join(source, "assets", "scan-1.png"), "png-1")
	testutil.WriteFile(t, filepath.Join(source, "assets", "nested", "scan-2.png"), "png-2")
	if err := os.MkdirAll(filepath.Join(source, "assets", "empty"), 0o755); err != nil {
		t.Fatal(err)
	}

	archive := filepath.Join(t.TempDir(), "out.maes")
	err := Pack(ctx, archive, []Entry{
		{Source: filepath.Join(source, "workspace.json"), Name: "./workspace.json"},
		{Source: filepath.Join(source, "payload.bin"), Name: "entities/q1.bin"},
		{Source: filepath.Join(source, "assets"), Name: "assets/q1"},
	})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}

	names, err := Names(archive)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"workspace.json", "entities/q1.bin", "assets/q1/", "assets/q1/nested/scan-2.png", "assets/q1/empty/"} {
		if !slices.Contains(names, want) {
			t.Errorf("archive names %v missing %q", names, want)
		}
	}

	dest := t.TempDir()
	if err := Unpack(ctx, archive, dest, UnpackOptions{}); err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	checks := map[string]string{
		"workspace.json":              `{"id":"w"}`,
		"entities/q1.bin":             "sealed bytes",
		"assets/q1/scan-1.png":        "png-1",
		"assets/q1/nested/scan-2.png": "png-2",
	}
	for name, want := range checks {
		if got := testutil.ReadFile(t, filepath.Join(dest, filepath.FromSlash(name))); got != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
	if info, err := os.Stat(filepath.Join(dest, "assets", "q1", "empty")); err != nil || !info.IsDir() {
		t.Errorf("empty directory not restored: %v", err)
	}
}

func writeRawArchive(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	var buffer bytes.Buffer
	writer := zip.NewWriter(&buffer)
	for name, content := range entries {
		entry, err := writer.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := entry.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buffer.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestUnpackContainsTraversal(t *testing.T) {
	parent := t.TempDir()
	archive := filepath.Join(parent, "evil.zip")
	writeRawArchive(t, archive, map[string]string{
		"../../../etc/passwn": "root",
		"/absolute/file":      "abs",
		`..\..\windows\x.txt`: "win",
		"./ok.txt":            "ok",
		"../":                 "",
		"a/../../../../b.txt": "b",
	})

	dest := filepath.Join(parent, "dest")
	if err := Unpack(context.Background(), archive, dest, UnpackOptions{}); err != nil {
		t.Fatalf("Unpack: %v", err)
	}

	want := map[string]string{
		"etc/passwn":    "root",
		"absolute/file": "abs",
		"windows/x.txt": "win",
		"ok.txt":        "ok",
		"a/b.txt":       "b",
	}
	for name, content := range want {
		if got := testutil.ReadFile(t, filepath.Join(dest, filepath.FromSlash(name))); got != content {
			t.Errorf("%s = %q, want %q", name, got, content)
		}
	}

	entries, err := os.ReadDir(parent)
	if err != nil {
		t.Fatal(err)
	}
	for _, entry := range entries {
		if entry.Name() != "dest" && entry.Name() != "evil.zip" {
			t.Errorf("extraction escaped destination: %s", entry.Name())
		}
	}
}

func TestUnpackRejectsOversizedArchive(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "big.zip")
	writeRawArchive(t, archive, map[string]string{"a": "0123456789", "b": "0123456789"})

	dest := filepath.Join(t.TempDir(), "dest")
	err := Unpack(context.Background(), archive, dest, UnpackOptions{MaxBytes: 15})
	if !errors.Is(err, vaulterr.ErrIO) {
		t.Fatalf("err = %v, want ErrIO", err)
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Error("oversized archive was partially extracted")
	}
}

func TestUnpackCorruptArchive(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "corrupt.zip")
	testutil.WriteFile(t, archive, "this is not a zip archive")
	err := Unpack(context.Background(), archive, t.TempDir(), UnpackOptions{})
	if !errors.Is(err, vaulterr.ErrIO) {
		t.Fatalf("err = %v, want ErrIO", err)
	}
}

func TestPackFailureKeepsPreviousArchive(t *testing.T) {
	directory := t.TempDir()
	archive := filepath.Join(directory, "out.maes")
	testutil.WriteFile(t, archive, "previous")

	err := Pack(context.Background(), archive, []Entry{{Source: filepath.Join(directory, "missing"), Name: "x"}})
	if !errors.Is(err, vaulterr.ErrIO) {
		t.Fatalf("err = %v, want ErrIO", err)
	}
	if got := testutil.ReadFile(t, archive); got != "previous" {
		t.Errorf("archive replaced by failed pack: %q", got)
	}
	entries, _ := os.ReadDir(directory)
	if len(entries) != 1 {
		t.Errorf("temporary files left behind: %d entries", len(entries))
	}
}

func TestSealOpen(t *testing.T) {
	directory := t.TempDir()
	plain := filepath.Join(directory, "bundle.zip")
	writeRawArchive(t, plain, map[string]string{"workspace.json": "{}"})
	sealed := filepath.Join(directory, "bundle.maes")

	if err := Seal(plain, sealed, "correct horse", 10); err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if ok, err := IsSealedFile(sealed); err != nil || !ok {
		t.Errorf("IsSealedFile(sealed) = %v, %v", ok, err)
	}
	if ok, err := IsSealedFile(plain); err != nil || ok {
		t.Errorf("IsSealedFile(plain) = %v, %v", ok, err)
	}

	opened := filepath.Join(directory, "opened.zip")
	if err := Open(sealed, opened, "correct horse"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if testutil.ReadFile(t, opened) != testutil.ReadFile(t, plain) {
		t.Error("opened content differs from the original")
	}

	wrong := filepath.Join(directory, "wrong.zip")
	if err := Open(sealed, wrong, "battery staple"); !errors.Is(err, vaulterr.ErrCrypto) {
		t.Errorf("wrong passphrase: err = %v, want ErrCrypto", err)
	}
	if _, err := os.Stat(wrong); !os.IsNotExist(err) {
		t.Error("wrong passphrase produced output")
	}
	if err := Seal(plain, sealed, "", 10); !errors.Is(err, vaulterr.ErrInvalid) {
		t.Errorf("empty passphrase: err = %v, want ErrInvalid", err)
	}
}
