package http

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestResponseBuilder_JSON(t *testing.T) {
	w := httptest.NewRecorder()
	NewResponse().Status(http.StatusCreated).JSON(map[string]int{"id": 7}).Write(w)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("Content-Type = %q", ct)
	}
	if strings.TrimSpace(w.Body.String()) != `{"id":7}` {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestResponseBuilder_JSONEncodeFailure(t *testing.T) {
	w := httptest.NewRecorder()
	NewResponse().JSON(math.Inf(1)).Write(w)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
}

func TestResponseBuilder_Triggers(t *testing.T) {
	w := httptest.NewRecorder()
	NewResponse().
		TriggerRecordCreated("trip", "2024-02").
		TriggerNotification(NotificationSuccess, "Trip saved").
		Write(w)

	var got map[string]map[string]string
	if err := json.Unmarshal([]byte(w.Header().Get("HX-Trigger")), &got); err != nil {
		t.Fatalf("HX-Trigger is not JSON: %v", err)
	}
	if got["record:created"]["month"] != "2024-02" || got["show-notification"]["type"] != "success" {
		t.Fatalf("unexpected triggers %v", got)
	}
}

func TestResponseBuilder_Redirect(t *testing.T) {
	tests := []struct {
		name   string
		htmx   bool
		status int
		header string
	}{
		{"plain form post", false, http.StatusSeeOther, "Location"},
		{"htmx request", true, http.StatusOK, "HX-Redirect"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/trips/next", nil)
			if tt.htmx {
				r.Header.Set("HX-Request", "true")
			}
			w := httptest.NewRecorder()
			NewResponse().Redirect(r, "/trips").Write(w)
			if w.Code != tt.status || w.Header().Get(tt.header) != "/trips" {
				t.Fatalf("got %d %v", w.Code, w.Header())
			}
		})
	}
}

func TestErrorResponse(t *testing.T) {
	w := httptest.NewRecorder()
	ErrorResponse(http.StatusUnprocessableEntity, "invalid trip", map[string]string{"car_id": "cannot be blank"}).Write(w)

	var body errorBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if w.Code != http.StatusUnprocessableEntity || body.Fields["car_id"] != "cannot be blank" {
		t.Fatalf("unexpected response %d %+v", w.Code, body)
	}
}
