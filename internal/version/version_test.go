/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package version

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.2.3", "1.2.3", 0},
		{"v1.2.3", "1.2.4", -1},
		{"1.10.0", "1.9.9", 1},
		{"0.3.0-rc1", "0.3.0", 0},
		{"1", "1.0.1", -1},
	}
	for _, tt := range tests {
		if got := Compare(tt.a, tt.b); got != tt.want {
			t.Errorf("Compare(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/"+GitHubRepo+"/releases/latest" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"tag_name":"v99.0.0","html_url":"https://example.invalid/release"}`))
	}))
	defer srv.Close()

	info, err := (&Checker{BaseURL: srv.URL}).Check(context.Background())
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !info.UpdateAvailable || info.LatestVersion != "99.0.0" || info.CurrentVersion != Version {
		t.Fatalf("info = %+v", info)
	}
}

func TestCheckReportsHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, err := (&Checker{BaseURL: srv.URL}).Check(context.Background()); err == nil {
		t.Fatal("expected error on non-200 status")
	}
}
