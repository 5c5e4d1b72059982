package user

import (
	"errors"
	"strings"
	"testing"
)

func TestRegister(t *testing.T) {
	d := NewDirectory()

	u, err := d.Register("alice")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.ID == "" || u.APIKey == "" {
		t.Fatalf("missing id or key: %+v", u)
	}
	if !strings.HasPrefix(u.APIKey, "key-") {
		t.Errorf("api key = %q, want key- prefix", u.APIKey)
	}
	if u.Role != RoleUser {
		t.Errorf("role = %q, want USER", u.Role)
	}

	// Two users with the same name are distinct accounts.
	u2, err := d.Register("alice")
	if err != nil {
		t.Fatalf("second Register: %v", err)
	}
	if u2.ID == u.ID || u2.APIKey == u.APIKey {
		t.Error("duplicate id or api key issued")
	}
}

func TestRegisterNameValidation(t *testing.T) {
	d := NewDirectory()
	for _, name := range []string{"", "ab", "  "} {
		if _, err := d.Register(name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Register(%q) = %v, want ErrInvalidName", name, err)
		}
	}
}

func TestGetByKey(t *testing.T) {
	d := NewDirectory()
	u, _ := d.Register("alice")

	got, err := d.GetByKey(u.APIKey)
	if err != nil || got.ID != u.ID {
		t.Fatalf("GetByKey = %+v, %v", got, err)
	}

	if _, err := d.GetByKey("key-bogus"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown key = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	d := NewDirectory()
	u, _ := d.Register("alice")

	deleted, err := d.Delete(u.ID)
	if err != nil || deleted.ID != u.ID {
		t.Fatalf("Delete = %+v, %v", deleted, err)
	}

	if _, err := d.Get(u.ID); !errors.Is(err, ErrNotFound) {
		t.Error("deleted user still retrievable by id")
	}
	if _, err := d.GetByKey(u.APIKey); !errors.Is(err, ErrNotFound) {
		t.Error("deleted user's api key still resolves")
	}
	if _, err := d.Delete(u.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete = %v, want ErrNotFound", err)
	}
}

func TestSeedRestoresExactRecord(t *testing.T) {
	d := NewDirectory()
	admin := User{ID: "admin-1", Name: "root", Role: RoleAdmin, APIKey: "key-admin"}
	d.Seed(admin)

	got, err := d.GetByKey("key-admin")
	if err != nil {
		t.Fatalf("GetByKey: %v", err)
	}
	if got.ID != "admin-1" || got.Role != RoleAdmin {
		t.Errorf("seeded user = %+v", got)
	}
}
