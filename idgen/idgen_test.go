package idgen

import (
	"errors"
	"strings"
	"testing"

	"github.com/wyfcoding/beaconrange/xerrors"
)

func TestSnowflakeUnique(t *testing.T) {
	g, err := NewGenerator(Config{Type: TypeSnowflake, MachineID: 1})
	if err != nil {
		t.Fatal(err)
	}
	seen := make(map[int64]struct{})
	for range 1000 {
		id := g.Generate()
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = struct{}{}
	}
}

func TestSonyflake(t *testing.T) {
	g, err := NewGenerator(Config{Type: TypeSonyflake, MachineID: 7, StartTime: "2024-01-01"})
	if err != nil {
		t.Fatal(err)
	}
	if a, b := g.Generate(), g.Generate(); a <= 0 || b <= a {
		t.Errorf("ids not increasing: %d %d", a, b)
	}
}

func TestRunID(t *testing.T) {
	g, _ := NewGenerator(Config{MachineID: 2})
	if id := RunID(g); !strings.HasPrefix(id, "run-") || len(id) < 6 {
		t.Errorf("RunID = %q", id)
	}
}

func TestMaxMachineID(t *testing.T) {
	if got := MaxMachineID(TypeSnowflake); got != 1023 {
		t.Errorf("snowflake limit = %d", got)
	}
	if got := MaxMachineID(""); got != 1023 {
		t.Errorf("default limit = %d", got)
	}
	if got := MaxMachineID(TypeSonyflake); got != 65535 {
		t.Errorf("sonyflake limit = %d", got)
	}
	if _, err := NewGenerator(Config{MachineID: MaxMachineID(TypeSnowflake)}); err != nil {
		t.Errorf("limit itself must be accepted: %v", err)
	}
}

func TestInvalidConfig(t *testing.T) {
	tests := []struct {
		cfg  Config
		want error
	}{
		{Config{Type: "uuid"}, ErrUnsupportedType},
		{Config{StartTime: "yesterday"}, ErrParseTime},
		{Config{Type: TypeSonyflake, MachineID: 70000}, ErrInvalidMachineID},
		{Config{MachineID: 5000}, ErrInvalidMachineID},
	}
	for _, tt := range tests {
		_, err := NewGenerator(tt.cfg)
		if !errors.Is(err, tt.want) || !xerrors.IsType(err, xerrors.ErrConfiguration) {
			t.Errorf("NewGenerator(%+v) = %v, want %v", tt.cfg, err, tt.want)
		}
	}
}
