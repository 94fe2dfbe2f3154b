package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

type handler[I, O any] = func(context.Context, *I) (*O, error)

func handlerWithErrorHandler[I, O any](handler handler[I, O], do func(context.Context, error)) handler[I, O] {
	if do == nil {
		return handler
	}

	return func(ctx context.Context, i *I) (*O, error) {
		o, err := handler(ctx, i)
		if err != nil {
			do(ctx, err)
		}
		return o, err
	}
}

func opErrors(codes ...int) func(*huma.Operation) {
	return func(o *huma.Operation) { o.Errors = codes }
}

func opID(id, summary string) func(*huma.Operation) {
	return func(o *huma.Operation) {
		o.OperationID = id
		o.Summary = summary
		o.Tags = []string{"Contacts"}
	}
}

func opStatus(code int) func(*huma.Operation) {
	return func(o *huma.Operation) { o.DefaultStatus = code }
}

// ErrorModel is the body of every error response.
type ErrorModel struct {
	Status  int      `json:"-"`
	Message string   `json:"message"          example:"Contact not found" doc:"Human readable error message"`
	Errors  []string `json:"errors,omitempty"                             doc:"Details about invalid request fields"`

	causes []error
}

func (e *ErrorModel) Error() string {
	if len(e.causes) == 0 {
		return e.Message
	}
	return e.Message + ": " + errors.Join(e.causes...).Error()
}

func (e *ErrorModel) Unwrap() []error { return e.causes }

func (e *ErrorModel) GetStatus() int { return e.Status }

// Config returns the huma configuration of the API. Response bodies carry
// no "$schema" link, so they hold exactly the documented fields.
func Config(title, version string) huma.Config {
	config := huma.DefaultConfig(title, version)
	config.CreateHooks = nil
	return config
}

// NewError builds an [ErrorModel]; it is meant to replace [huma.NewError].
// Request validation failures are reported as 400, and only details of
// request validation are exposed to clients.
func NewError(status int, message string, errs ...error) huma.StatusError {
	if status == http.StatusUnprocessableEntity {
		status = http.StatusBadRequest
	}
	model := &ErrorModel{Status: status, Message: message}
	for _, err := range errs {
		if err == nil {
			continue
		}
		var detailer huma.ErrorDetailer
		if errors.As(err, &detailer) {
			model.Errors = append(model.Errors, detail(detailer.ErrorDetail()))
		} else {
			model.causes = append(model.causes, err)
		}
	}
	return model
}

// detail renders d like [huma.ErrorDetail.Error], leaving out a missing value.
func detail(d *huma.ErrorDetail) string {
	if d.Value == nil && d.Location != "" {
		return d.Message + " (" + d.Location + ")"
	}
	return d.Error()
}

// Nullable is a request string that records whether it was present in the
// body. A JSON null is treated as an empty string.
type Nullable struct {
	Set   bool
	Value string
}

func (n *Nullable) UnmarshalJSON(b []byte) error {
	n.Set = true
	if bytes.Equal(b, []byte("null")) {
		n.Value = ""
		return nil
	}
	return json.Unmarshal(b, &n.Value)
}

// Schema implements [huma.SchemaProvider].
func (Nullable) Schema(huma.Registry) *huma.Schema {
	return &huma.Schema{Type: huma.TypeString, Nullable: true}
}

// Ptr returns nil when n was absent.
func (n Nullable) Ptr() *string {
	if !n.Set {
		return nil
	}
	return &n.Value
}
