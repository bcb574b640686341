package storage

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/wyfcoding/beaconrange/xerrors"
)

func TestLocalRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "out.txt")
	r := NewRouter(nil, nil)

	lines := []string{"70,70,1", "65,67,1"}
	if err := r.WriteLines(ctx, path, lines); err != nil {
		t.Fatal(err)
	}
	raw, _ := os.ReadFile(path)
	if string(raw) != "70,70,1\n65,67,1\n" {
		t.Errorf("file content = %q", raw)
	}

	got, err := r.ReadLines(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, lines) {
		t.Errorf("ReadLines = %q", got)
	}
}

func TestLocalOutputMode(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	// 参照文件与输出文件受同一个 umask 影响
	ref := filepath.Join(dir, "ref.txt")
	if err := os.WriteFile(ref, nil, OutputPerm); err != nil {
		t.Fatal(err)
	}
	refInfo, _ := os.Stat(ref)

	out := filepath.Join(dir, "out.txt")
	if err := NewLocal().WriteLines(ctx, out, []string{"70,70,1"}); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(out)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != refInfo.Mode().Perm() {
		t.Errorf("output mode = %v, want %v", info.Mode().Perm(), refInfo.Mode().Perm())
	}

	// 覆盖已有文件时保留其权限
	if err := os.Chmod(out, 0o640); err != nil {
		t.Fatal(err)
	}
	if err := NewLocal().WriteLines(ctx, out, []string{"65,67,1"}); err != nil {
		t.Fatal(err)
	}
	info, _ = os.Stat(out)
	if info.Mode().Perm() != 0o640 {
		t.Errorf("overwritten output mode = %v, want -rw-r-----", info.Mode().Perm())
	}
	raw, _ := os.ReadFile(out)
	if string(raw) != "65,67,1\n" {
		t.Errorf("overwritten content = %q", raw)
	}
}

func TestLocalReadCRLF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.txt")
	_ = os.WriteFile(path, []byte("-70\r\n-65\r\n"), 0o600)
	got, err := NewLocal().ReadLines(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []string{"-70", "-65"}) {
		t.Errorf("got %q", got)
	}
}

func TestLocalErrorsAreIO(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	_, err := NewLocal().ReadLines(ctx, filepath.Join(dir, "missing.txt"))
	if !xerrors.IsType(err, xerrors.ErrIO) {
		t.Errorf("missing input: %v", err)
	}

	target := filepath.Join(dir, "nope", "out.txt")
	err = NewLocal().WriteLines(ctx, target, []string{"x"})
	if !xerrors.IsType(err, xerrors.ErrIO) {
		t.Errorf("unwritable output: %v", err)
	}
	if _, statErr := os.Stat(target); !os.IsNotExist(statErr) {
		t.Errorf("no output file may be left behind")
	}
}

func TestRouterObjectWithoutClient(t *testing.T) {
	_, err := NewRouter(nil, nil).ReadLines(context.Background(), "s3://bucket/in.txt")
	if !xerrors.IsType(err, xerrors.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestParseObjectLocation(t *testing.T) {
	tests := []struct {
		in          string
		bucket, key string
		ok          bool
	}{
		{"s3://rssi/2024/a.txt", "rssi", "2024/a.txt", true},
		{"s3://rssi/", "", "", false},
		{"s3:///a.txt", "", "", false},
		{"/tmp/a.txt", "", "", false},
	}
	for _, tt := range tests {
		b, k, err := ParseObjectLocation(tt.in)
		if (err == nil) != tt.ok || b != tt.bucket || k != tt.key {
			t.Errorf("ParseObjectLocation(%q) = %q, %q, %v", tt.in, b, k, err)
		}
	}
}
