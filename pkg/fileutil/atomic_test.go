package fileutil

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/benoistlaurent/autobackup/internal/errors"
)

func entries(t *testing.T, dir string) []string {
	t.Helper()
	des, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	names := make([]string, 0, len(des))
	for _, de := range des {
		names = append(names, de.Name())
	}
	return names
}

func TestWriteFile(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		perm os.FileMode
	}{
		{"settings", []byte("destination: /mnt/backups\n"), 0o644},
		{"run record", []byte(`{"id":"r1"}`), 0o600},
		{"empty", nil, 0o644},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "out")

			if err := WriteFile(path, tt.data, tt.perm); err != nil {
				t.Fatalf("WriteFile() error = %v", err)
			}

			got, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != string(tt.data) {
				t.Errorf("content = %q, want %q", got, tt.data)
			}
			info, err := os.Stat(path)
			if err != nil {
				t.Fatal(err)
			}
			if info.Mode().Perm() != tt.perm {
				t.Errorf("perm = %v, want %v", info.Mode().Perm(), tt.perm)
			}
			if names := entries(t, dir); len(names) != 1 {
				t.Errorf("directory holds %v, want only the target", names)
			}
		})
	}
}

func TestWriteFile_Replaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "autobackup.cfg")
	if err := os.WriteFile(path, []byte("[old]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := WriteFile(path, []byte("[new]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, _ := os.ReadFile(path)
	if string(got) != "[new]\n" {
		t.Errorf("content = %q", got)
	}
}

func TestWriteFile_MissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "out")
	if err := WriteFile(path, []byte("x"), 0o644); err == nil {
		t.Error("WriteFile into a missing directory should fail")
	}
}

func TestWriteAtomic_FillErrorKeepsTarget(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.txt")
	if err := os.WriteFile(path, []byte("previous snapshot copy"), 0o644); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("source vanished")
	err := WriteAtomic(path, 0o644, func(w io.Writer) error {
		_, _ = io.WriteString(w, "half a fi")
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WriteAtomic() error = %v, want %v", err, boom)
	}

	got, _ := os.ReadFile(path)
	if string(got) != "previous snapshot copy" {
		t.Errorf("target changed to %q", got)
	}
	for _, name := range entries(t, dir) {
		if IsTemp(name) {
			t.Errorf("temp file %s left behind", name)
		}
	}
}

func TestWriteAtomic_Streams(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.bin")
	err := WriteAtomic(path, 0o600, func(w io.Writer) error {
		_, err := io.Copy(w, strings.NewReader(strings.Repeat("0123456789", 10000)))
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 100000 || info.Mode().Perm() != 0o600 {
		t.Errorf("size %d perm %v", info.Size(), info.Mode().Perm())
	}
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	in := map[string]any{"workstation": "alice", "files": []string{"a", "b"}}

	if err := WriteJSON(path, in, 0o644); err != nil {
		t.Fatal(err)
	}

	data, _ := os.ReadFile(path)
	if !strings.HasSuffix(string(data), "}\n") {
		t.Errorf("missing trailing newline: %q", data)
	}
	if !strings.Contains(string(data), "\n  \"workstation\": \"alice\"") {
		t.Errorf("not two-space indented: %s", data)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out["workstation"] != "alice" {
		t.Errorf("decoded %v", out)
	}
}

func TestWriteJSON_Unmarshalable(t *testing.T) {
	dir := t.TempDir()
	if err := WriteJSON(filepath.Join(dir, "x.json"), make(chan int), 0o644); err == nil {
		t.Error("WriteJSON(chan) should fail")
	}
	if names := entries(t, dir); len(names) != 0 {
		t.Errorf("files written on error: %v", names)
	}
}

func TestWriteYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	type settings struct {
		Destination string `yaml:"destination"`
		Workers     int    `yaml:"workers"`
	}

	if err := WriteYAML(path, settings{Destination: "/mnt/backups", Workers: 4}, 0o644); err != nil {
		t.Fatal(err)
	}

	data, _ := os.ReadFile(path)
	if !strings.HasSuffix(string(data), "\n") {
		t.Errorf("missing trailing newline: %q", data)
	}
	var out settings
	if err := yaml.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out.Destination != "/mnt/backups" || out.Workers != 4 {
		t.Errorf("decoded %+v", out)
	}
}

func TestWriteYAML_PanicBecomesError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := WriteYAML(path, map[string]any{"f": func() {}}, 0o644); err == nil {
		t.Error("WriteYAML(func) should fail")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("target should not exist, stat err = %v", err)
	}
}

func TestIsTemp(t *testing.T) {
	tests := map[string]bool{
		".autobackup-123.partial":          true,
		"/mnt/b/.autobackup-a.txt.partial": true,
		"report.partial":                   false,
		".autobackup-notes.txt":            false,
		"notes.txt":                        false,
	}
	for name, want := range tests {
		if got := IsTemp(name); got != want {
			t.Errorf("IsTemp(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestTempPath(t *testing.T) {
	got := TempPath("/mnt/backups/alice/2026-03-14/docs/a.txt")
	want := "/mnt/backups/alice/2026-03-14/docs/.autobackup-a.txt.partial"
	if got != want {
		t.Errorf("TempPath() = %q, want %q", got, want)
	}
	if !IsTemp(got) {
		t.Error("TempPath result should be recognized by IsTemp")
	}
}
