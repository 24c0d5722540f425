package deno

import (
	"strings"
	"testing"
)

func TestValidateDependencyURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr string
	}{
		{
			name: "deno.land https",
			url:  "https://deno.land/std@0.224.0/mod.ts",
		},
		{
			name: "jsr",
			url:  "https://jsr.io/@std/path/1.0.0/mod.ts",
		},
		{
			name:    "plain http",
			url:     "http://deno.land/std/mod.ts",
			wantErr: "only https",
		},
		{
			name:    "file scheme",
			url:     "file:///etc/passwd",
			wantErr: "only https",
		},
		{
			name:    "untrusted host",
			url:     "https://evil.example.com/mod.ts",
			wantErr: "not a trusted registry",
		},
		{
			name:    "garbage",
			url:     "://not-a-url",
			wantErr: "invalid dependency URL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDependencyURL(tt.url)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("ValidateDependencyURL(%q) = %v, want nil", tt.url, err)
				}
				return
			}
			if err == nil {
				t.Fatalf("ValidateDependencyURL(%q) accepted, want error containing %q", tt.url, tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}
