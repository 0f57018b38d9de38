package security

import (
	"errors"
	"testing"

	"webresearch/internal/errs"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"valid https", "https://example.com/page", false},
		{"valid http", "http://example.com", false},
		{"relative path", "/just/a/path", true},
		{"ftp scheme", "ftp://example.com/file", true},
		{"missing host", "https://", true},
		{"garbage", "://nope", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateURL(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errs.ErrValidation) {
				t.Errorf("ValidateURL(%q) error is not a validation error: %v", tt.raw, err)
			}
		})
	}
}

func TestCheckSSRF_BlockedTargets(t *testing.T) {
	blocked := []string{
		"http://localhost/admin",
		"http://localhost.localdomain/",
		"https://metadata.google.internal/computeMetadata",
		"http://169.254.169.254/latest/meta-data",
		"http://127.0.0.1:8080/",
		"http://10.1.2.3/",
		"http://192.168.1.1/router",
		"http://[::1]/",
	}

	for _, raw := range blocked {
		parsed, err := ValidateURL(raw)
		if err != nil {
			t.Fatalf("ValidateURL(%q) unexpected error: %v", raw, err)
		}
		if err := CheckSSRF(parsed); err == nil {
			t.Errorf("CheckSSRF(%q) = nil, want error", raw)
		}
	}
}

func TestCheckSSRF_PublicIP(t *testing.T) {
	parsed, err := ValidateURL("http://93.184.216.34/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := CheckSSRF(parsed); err != nil {
		t.Errorf("CheckSSRF(public IP) = %v, want nil", err)
	}
}
