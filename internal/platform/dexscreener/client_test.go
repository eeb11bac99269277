package dexscreener

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ryabkov/solsniper/internal/domain"
)

func TestProfileAggregatesPairs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/latest/dex/tokens/mintA" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"pairs":[
			{"info":{"imageUrl":"https://cdn/logo.png",
				"websites":[{"url":"https://toka.io"}],
				"socials":[{"type":"twitter","url":"https://x.com/toka"},{"type":"telegram","url":""}]}},
			{"info":null}
		]}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	profile, err := c.Profile(context.Background(), "mintA")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if !profile.LogoPresent {
		t.Error("LogoPresent = false")
	}
	if len(profile.Socials) != 2 {
		t.Errorf("Socials = %v, want twitter + website", profile.Socials)
	}
}

func TestProfileNotIndexed(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"404", func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		}},
		{"null pairs", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"pairs":null}`))
		}},
		{"empty pairs", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"pairs":[]}`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := New(srv.URL)
			if _, err := c.Profile(context.Background(), "mintA"); !errors.Is(err, domain.ErrNotFound) {
				t.Fatalf("err = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestProfileBarePairsWithoutInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"pairs":[{"info":null}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	profile, err := c.Profile(context.Background(), "mintA")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if profile.LogoPresent || len(profile.Socials) != 0 {
		t.Errorf("profile = %+v, want empty", profile)
	}
}
