package auth

import "testing"

func TestValidEmail(t *testing.T) {
	valid := []string{"a@b.co", "user.name+tag@example.org", "x_y-z@sub.domain.example"}
	for _, e := range valid {
		if !ValidEmail(e) {
			t.Errorf("expected %q to be valid", e)
		}
	}
	invalid := []string{"", "plain", "@no-local.org", "no-at.example.org", "user@", "user@tld", "user@x.a"}
	for _, e := range invalid {
		if ValidEmail(e) {
			t.Errorf("expected %q to be invalid", e)
		}
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Alice@Example.ORG "); got != "alice@example.org" {
		t.Fatalf("normalize: got %q", got)
	}
}

func TestValidUsername(t *testing.T) {
	valid := []string{"abc", "user_name", "user-name", "abcdefghij1234567890"}
	for _, u := range valid {
		if !ValidUsername(u) {
			t.Errorf("expected %q to be valid", u)
		}
	}
	invalid := []string{"", "ab", "has space", "toolongusername_12345", "bad!char"}
	for _, u := range invalid {
		if ValidUsername(u) {
			t.Errorf("expected %q to be invalid", u)
		}
	}
}

func TestParseRole(t *testing.T) {
	for v, want := range map[int]Role{0: RoleBeneficiary, 1: RoleBenefactor, 2: RoleAuditor} {
		role, ok := ParseRole(v)
		if !ok || role != want {
			t.Errorf("ParseRole(%d) = %v, %t", v, role, ok)
		}
	}
	for _, v := range []int{-1, 3, 42} {
		if _, ok := ParseRole(v); ok {
			t.Errorf("ParseRole(%d) should fail", v)
		}
	}
}
