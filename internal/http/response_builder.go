package http

import (
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
)

// ResponseBuilder assembles a response: status, headers, HX-Trigger events
// and a JSON or HTML body.
type ResponseBuilder struct {
	triggers   map[string]any
	statusCode int
	body       []byte
	headers    map[string]string
}

func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		triggers:   make(map[string]any),
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

// Trigger adds a named event to the HX-Trigger header.
func (b *ResponseBuilder) Trigger(name string, data any) *ResponseBuilder {
	b.triggers[name] = data
	return b
}

// TriggerRecordCreated tells the page which month gained a record.
func (b *ResponseBuilder) TriggerRecordCreated(kind, month string) *ResponseBuilder {
	return b.Trigger("record:created", map[string]string{"kind": kind, "month": month})
}

// NotificationType represents the type of notification to display.
type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
)

func (b *ResponseBuilder) TriggerNotification(kind NotificationType, message string) *ResponseBuilder {
	return b.Trigger("show-notification", map[string]string{"type": string(kind), "message": message})
}

func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets v as the body. A value that cannot be encoded turns the
// response into a 500.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
		b.statusCode = http.StatusInternalServerError
		data = []byte(`{"error":"internal error"}`)
	}
	b.headers["Content-Type"] = "application/json"
	b.body = data
	return b
}

func (b *ResponseBuilder) BodyHTML(html template.HTML) *ResponseBuilder {
	b.headers["Content-Type"] = "text/html; charset=utf-8"
	b.body = []byte(html)
	return b
}

// Redirect answers a form post with 303 See Other. htmx requests get
// HX-Redirect instead, since they would follow the 303 in the background.
func (b *ResponseBuilder) Redirect(r *http.Request, location string) *ResponseBuilder {
	if r.Header.Get("HX-Request") == "true" {
		b.headers["HX-Redirect"] = location
		b.statusCode = http.StatusOK
		return b
	}
	b.headers["Location"] = location
	b.statusCode = http.StatusSeeOther
	return b
}

func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if len(b.triggers) > 0 {
		if data, err := json.Marshal(b.triggers); err == nil {
			w.Header().Set("HX-Trigger", string(data))
		}
	}
	w.WriteHeader(b.statusCode)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// ErrorResponse is a JSON error with an optional per-field breakdown.
func ErrorResponse(statusCode int, message string, fields map[string]string) *ResponseBuilder {
	return NewResponse().Status(statusCode).JSON(errorBody{Error: message, Fields: fields})
}

func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message, nil)
}

func InternalServerError() *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, "internal error", nil)
}
