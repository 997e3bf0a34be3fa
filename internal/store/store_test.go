package store

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewID_UniqueAndWellFormed(t *testing.T) {
	seen := make(map[string]bool)
	for range 1000 {
		id := NewID()
		if len(id) != 26 {
			t.Fatalf("id %q has length %d, want 26", id, len(id))
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestNewID_SortsByTime(t *testing.T) {
	a := NewID()
	b := NewID()
	if b < a {
		t.Errorf("ids not monotonic: %q then %q", a, b)
	}
}

func TestClient_ListAnnotations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/books/b1/annotations" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key" {
			t.Errorf("auth header = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"annotations": []Annotation{
				{ID: "a1", CanonicalText: "the quick brown fox", Kind: KindHighlight},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key")
	anns, err := c.ListAnnotations(context.Background(), "b1")
	if err != nil {
		t.Fatalf("ListAnnotations: %v", err)
	}
	if len(anns) != 1 || anns[0].ID != "a1" {
		t.Errorf("got %+v", anns)
	}
}

func TestClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "wrong")
	if _, err := c.ListAnnotations(context.Background(), "b1"); err == nil {
		t.Fatal("expected error for 403")
	}
}

func TestClient_SavePositionRoundTrip(t *testing.T) {
	var got PositionRecord
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			json.NewDecoder(r.Body).Decode(&got)
			w.WriteHeader(http.StatusNoContent)
		case http.MethodGet:
			json.NewEncoder(w).Encode(got)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	data := json.RawMessage(`{"strategy":"chapter_offset"}`)
	if err := c.SavePosition(context.Background(), "b1", data); err != nil {
		t.Fatalf("SavePosition: %v", err)
	}
	back, err := c.LoadPosition(context.Background(), "b1")
	if err != nil {
		t.Fatalf("LoadPosition: %v", err)
	}
	if string(back) != string(data) {
		t.Errorf("round trip gave %s", back)
	}
}
