package auth

import (
	"errors"
	"testing"
	"time"
)

func TestGenerateAndValidate(t *testing.T) {
	m, err := NewManager("test-secret", 0)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	token, err := m.GenerateDeviceToken("device-42")
	if err != nil {
		t.Fatalf("GenerateDeviceToken() error = %v", err)
	}

	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.DeviceID != "device-42" {
		t.Errorf("DeviceID = %q, want device-42", claims.DeviceID)
	}
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	issuer, _ := NewManager("secret-a", 0)
	verifier, _ := NewManager("secret-b", 0)

	token, err := issuer.GenerateDeviceToken("device-1")
	if err != nil {
		t.Fatalf("GenerateDeviceToken() error = %v", err)
	}
	if _, err := verifier.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("ValidateToken() error = %v, want ErrInvalidToken", err)
	}
}

func TestValidateRejectsExpired(t *testing.T) {
	m, _ := NewManager("test-secret", -time.Hour)

	token, err := m.GenerateDeviceToken("device-1")
	if err != nil {
		t.Fatalf("GenerateDeviceToken() error = %v", err)
	}
	if _, err := m.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("ValidateToken() error = %v, want ErrInvalidToken", err)
	}
}

func TestNewManagerRequiresSecret(t *testing.T) {
	if _, err := NewManager("", 0); err == nil {
		t.Fatal("NewManager accepted empty secret")
	}
}

func TestValidateGarbage(t *testing.T) {
	m, _ := NewManager("test-secret", 0)
	if _, err := m.ValidateToken("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("ValidateToken() error = %v, want ErrInvalidToken", err)
	}
}
