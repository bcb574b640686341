package validator

import "testing"

func TestIsValidBSSID(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"aa:bb:cc:dd:ee:ff", true},
		{"AA-BB-CC-DD-EE-FF", true},
		{"46:0a64:b1:df:51", true},
		{"", false},
		{"   ", false},
		{"not-a-mac", false},
		{"192.168.1.1", false},
		{"1:2:3:4:5:6:7:8", false}, // 合法 IPv6
		{"aa:bb", false},
	}
	for _, tt := range tests {
		if got := IsValidBSSID(tt.in); got != tt.want {
			t.Errorf("IsValidBSSID(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestStructTag(t *testing.T) {
	type job struct {
		BSSID string `validate:"required,bssid"`
	}
	v := New()
	if err := v.Struct(job{BSSID: "aa:bb:cc:dd:ee:ff"}); err != nil {
		t.Errorf("valid bssid rejected: %v", err)
	}
	if err := v.Struct(job{BSSID: "10.0.0.1"}); err == nil {
		t.Error("ip address accepted as bssid")
	}
}
