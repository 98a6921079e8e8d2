package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/claude/liftlog/internal/draft"
	"github.com/claude/liftlog/internal/models"
)

var _ draft.Backend = (*Client)(nil)

// TestFinishWorkout verifies the request shape and API key header.
func TestFinishWorkout(t *testing.T) {
	var got models.ItemsPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/sessions/s1/finish" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("X-API-Key") != "secret" {
			t.Errorf("api key = %q", r.Header.Get("X-API-Key"))
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(models.FinishResponse{Saved: len(got.Items)})
	}))
	defer srv.Close()

	w, reps := 100.0, 5
	resp, err := New(srv.URL+"/", "secret").FinishWorkout(context.Background(), "s1", []models.FlatItem{
		{ExerciseID: "bench", Weight: &w, Reps: &reps},
	})
	if err != nil {
		t.Fatalf("FinishWorkout: %v", err)
	}
	if resp.Saved != 1 || len(got.Items) != 1 || got.Items[0].ExerciseID != "bench" {
		t.Errorf("resp = %+v, sent = %+v", resp, got)
	}
}

// TestDeleteSession verifies the request shape and that a 204 is success.
func TestDeleteSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/api/v1/sessions/s1" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := New(srv.URL, "secret").DeleteSession(context.Background(), "s1"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
}

// TestStatusErrorVerbatim verifies non-2xx responses surface the server's
// message and status code.
func TestStatusErrorVerbatim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		io.WriteString(w, `{"error":"template name already exists"}`)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "").SaveTemplate(context.Background(), "", "Push", nil)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *StatusError", err)
	}
	if se.StatusCode != http.StatusConflict || se.Message() != "template name already exists" {
		t.Errorf("status error = %d %q", se.StatusCode, se.Message())
	}
	if !IsStatus(err, http.StatusConflict) {
		t.Error("IsStatus = false")
	}
}

// TestStatusErrorPlainBody verifies a non-JSON body is kept as the message.
func TestStatusErrorPlainBody(t *testing.T) {
	se := &StatusError{StatusCode: 502, Status: "502 Bad Gateway", Body: "upstream down\n"}
	if se.Message() != "upstream down" {
		t.Errorf("Message = %q", se.Message())
	}
	se.Body = ""
	if se.Message() != "502 Bad Gateway" {
		t.Errorf("Message = %q", se.Message())
	}
}

// TestSaveTemplateUpdate verifies an existing template is replaced with PUT.
func TestSaveTemplateUpdate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/v1/templates/t1" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		var req models.TemplateRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(models.TemplateRow{Name: req.Name, ItemCount: len(req.Items)})
	}))
	defer srv.Close()

	row, err := New(srv.URL, "").SaveTemplate(context.Background(), "t1", "Pull", []models.FlatItem{{ExerciseID: "row"}})
	if err != nil {
		t.Fatalf("SaveTemplate: %v", err)
	}
	if row.Name != "Pull" || row.ItemCount != 1 {
		t.Errorf("row = %+v", row)
	}
}

// TestDraftBackend verifies the client satisfies draft storage semantics
// against a fake server.
func TestDraftBackend(t *testing.T) {
	var mu sync.Mutex
	stored := map[string][]byte{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		key := r.URL.Path[len("/api/v1/drafts/"):]
		switch r.Method {
		case http.MethodGet:
			d, ok := stored[key]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				io.WriteString(w, `{"error":"draft not found"}`)
				return
			}
			w.Write(d)
		case http.MethodPut:
			stored[key], _ = io.ReadAll(r.Body)
			w.WriteHeader(http.StatusNoContent)
		case http.MethodDelete:
			delete(stored, key)
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	ctx := context.Background()
	key := draft.Key("abc")

	if _, err := c.Get(ctx, key); !errors.Is(err, draft.ErrNotFound) {
		t.Fatalf("Get missing err = %v", err)
	}
	if err := c.Set(ctx, key, []byte(`[]`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if d, err := c.Get(ctx, key); err != nil || string(d) != "[]" {
		t.Errorf("Get = %q, %v", d, err)
	}
	if err := c.Remove(ctx, key); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := c.Get(ctx, key); !errors.Is(err, draft.ErrNotFound) {
		t.Errorf("Get after remove err = %v", err)
	}
}
