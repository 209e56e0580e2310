package auth

import "testing"

func TestValidEmail(t *testing.T) {
	tests := []struct {
		email string
		want  bool
	}{
		{"a@b.com", true},
		{"first.last+tag@example.co.jp", true},
		{"", false},
		{"plainaddress", false},
		{"a@", false},
		{"@b.com", false},
		{"a b@c.com", false},
	}
	for _, tt := range tests {
		if got := ValidEmail(tt.email); got != tt.want {
			t.Errorf("ValidEmail(%q) = %v, want %v", tt.email, got, tt.want)
		}
	}
}

func TestValidPassword(t *testing.T) {
	tests := []struct {
		password string
		want     bool
	}{
		{"Abcdef1", true},
		{"aB3456", true},
		{"Ab1", false},
		{"abcdef1", false},
		{"ABCDEF1", false},
		{"Abcdefg", false},
		{"Abc\ndef1", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidPassword(tt.password); got != tt.want {
			t.Errorf("ValidPassword(%q) = %v, want %v", tt.password, got, tt.want)
		}
	}
}
