package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestIssueAndParseToken(t *testing.T) {
	secret := []byte("secret")
	issued, err := IssueToken(secret, "ws_1", "sales_rep", "jti-1", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	claims, err := ParseToken(secret, issued)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.WorkspaceID != "ws_1" || claims.Role != "sales_rep" || claims.ID != "jti-1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	secret := []byte("secret")
	issued, err := IssueToken(secret, "ws_1", "manager", "jti-1", -time.Minute)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	if _, err := ParseToken(secret, issued); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("ParseToken() error = %v, want ErrExpiredToken", err)
	}
}

func TestParseTokenRejectsTampering(t *testing.T) {
	issued, err := IssueToken([]byte("secret"), "ws_1", "sales_rep", "jti-1", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	if _, err := ParseToken([]byte("other"), issued); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong secret error = %v, want ErrInvalidToken", err)
	}
	parts := strings.Split(issued, ".")
	if _, err := ParseToken([]byte("secret"), parts[0]+"."+parts[1]); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("truncated token error = %v, want ErrInvalidToken", err)
	}
	if _, err := ParseToken([]byte("secret"), "garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("garbage error = %v, want ErrInvalidToken", err)
	}
}
