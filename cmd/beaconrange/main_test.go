package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestRunExitCodes(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.txt")
	bad := filepath.Join(dir, "bad.txt")
	out := filepath.Join(dir, "out.txt")
	_ = os.WriteFile(in, []byte("-70\n-65\n"), 0o600)
	_ = os.WriteFile(bad, []byte("-70 x\n"), 0o600)

	t.Setenv("BEACON_LOG_LEVEL", "error")

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"ok", []string{"-b", "aa:bb:cc:dd:ee:ff", "--input-source", in, "--output-source", out}, 0},
		{"unknown flag", []string{"--nope"}, 2},
		{"missing output", []string{"-b", "aa:bb:cc:dd:ee:ff", "--input-source", in}, 2},
		{"parse error", []string{"-b", "aa:bb:cc:dd:ee:ff", "--input-source", bad, "--output-source", out + ".bad"}, 3},
		{"missing input", []string{"-b", "aa:bb:cc:dd:ee:ff", "--input-source", filepath.Join(dir, "nope"), "--output-source", out + ".x"}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := run(context.Background(), tt.args); got != tt.want {
				t.Errorf("run(%v) = %d, want %d", tt.args, got, tt.want)
			}
		})
	}

	raw, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != "70,70,1\n65,67,1\n" {
		t.Errorf("output = %q", raw)
	}
}
