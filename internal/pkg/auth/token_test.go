package auth

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"
)

func TestIssueAndVerify(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Hour)

	token, err := issuer.Issue(Principal{ID: 42, Kind: KindCustomer})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	principal, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if principal.ID != 42 {
		t.Errorf("ID = %d, want 42", principal.ID)
	}
	if principal.Kind != KindCustomer {
		t.Errorf("Kind = %q, want %q", principal.Kind, KindCustomer)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, err := NewIssuer("secret-a", time.Hour).Issue(Principal{ID: 1, Kind: KindAdmin})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := NewIssuer("secret-b", time.Hour).Verify(token); !errors.Is(err, ErrInvalidCredential) {
		t.Errorf("Verify with wrong secret = %v, want ErrInvalidCredential", err)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	issuer := NewIssuer("test-secret", -time.Minute)
	token, err := issuer.Issue(Principal{ID: 1, Kind: KindCustomer})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := issuer.Verify(token); !errors.Is(err, ErrInvalidCredential) {
		t.Errorf("Verify expired token = %v, want ErrInvalidCredential", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Hour)
	for _, token := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := issuer.Verify(token); !errors.Is(err, ErrInvalidCredential) {
			t.Errorf("Verify(%q) = %v, want ErrInvalidCredential", token, err)
		}
	}
}

func TestServiceTokenNeverExpires(t *testing.T) {
	issuer := NewIssuer("test-secret", 0)
	token, err := issuer.Issue(Principal{ID: 1, Kind: KindService})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	principal, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if principal.Kind != KindService {
		t.Errorf("Kind = %q, want %q", principal.Kind, KindService)
	}
}

func TestFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr error
	}{
		{name: "valid bearer", header: "Bearer abc123", want: "abc123"},
		{name: "case insensitive scheme", header: "bearer abc123", want: "abc123"},
		{name: "missing header", header: "", wantErr: ErrNoCredential},
		{name: "wrong scheme", header: "Basic abc123", wantErr: ErrInvalidCredential},
		{name: "empty token", header: "Bearer ", wantErr: ErrInvalidCredential},
		{name: "no space", header: "Bearerabc123", wantErr: ErrInvalidCredential},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			got, err := FromRequest(r)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("token = %q, want %q", got, tt.want)
			}
		})
	}
}
