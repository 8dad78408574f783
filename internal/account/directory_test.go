package account

import (
	"errors"
	"testing"
	"time"
)

func testInput(username, role string) RegisterInput {
	return RegisterInput{
		FirstName:   "Ada",
		LastName:    "Lovelace",
		Username:    username,
		Email:       username + "@example.com",
		DateOfBirth: time.Date(1990, 1, 2, 0, 0, 0, 0, time.UTC),
		Password:    "p@ssw0rd",
		Role:        role,
	}
}

func TestRegisterAndLogin(t *testing.T) {
	d := NewDirectory(nil)

	if err := d.Register(testInput("ada", "CarOwner")); err != nil {
		t.Fatalf("Register: %v", err)
	}

	role, err := d.Login("ada", "p@ssw0rd")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if role != RoleCarOwner {
		t.Fatalf("expected CarOwner, got %s", role)
	}

	if _, err := d.Login("ada", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := d.Login("nobody", "p@ssw0rd"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	d := NewDirectory(nil)

	if err := d.Register(testInput("ada", "CarOwner")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	err := d.Register(testInput("ada", "JobSubmitter"))
	if !errors.Is(err, ErrDuplicateUsername) {
		t.Fatalf("expected ErrDuplicateUsername, got %v", err)
	}
}

func TestRegisterInvalidRole(t *testing.T) {
	d := NewDirectory(nil)

	err := d.Register(testInput("ada", "Superuser"))
	if !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestHasRole(t *testing.T) {
	d := NewDirectory(nil)

	if err := d.Register(testInput("bob", "JobSubmitter")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !d.HasRole("bob", RoleJobSubmitter) {
		t.Fatalf("expected bob to be a JobSubmitter")
	}
	if d.HasRole("bob", RoleCarOwner) {
		t.Fatalf("expected bob not to be a CarOwner")
	}
	if d.HasRole("nobody", RoleCarOwner) {
		t.Fatalf("expected unknown user to have no role")
	}
}
