package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	ds "github.com/ashymuperekicmd/contact-api/datastores"
	"github.com/ashymuperekicmd/contact-api/validation"
)

type Contacts struct {
	Store        ds.ContactsStore
	ErrorHandler func(context.Context, error)
}

type ContactModel struct {
	ID string `json:"id" readOnly:"true" example:"65a1f0c2e4b0a1b2c3d4e5f6" doc:"Unique identifier of the contact"`

	FirstName     string    `json:"firstName"               example:"John"                 doc:"First name of the contact"`
	LastName      string    `json:"lastName"                example:"Doe"                  doc:"Last name of the contact"`
	Email         string    `json:"email"                   example:"john.doe@example.com" doc:"Email address of the contact" format:"email"`
	FavoriteColor string    `json:"favoriteColor,omitempty" example:"Blue"                 doc:"Favorite color of the contact"`
	Birthday      string    `json:"birthday,omitempty"      example:"1990-01-01"           doc:"Birthday of the contact"       format:"date"`
	CreatedAt     time.Time `json:"createdAt"               readOnly:"true"                doc:"Date and time when the contact was created"`
	UpdatedAt     time.Time `json:"updatedAt"               readOnly:"true"                doc:"Date and time when the contact was last updated"`
}

func contactModel(c *ds.Contact) ContactModel {
	m := ContactModel{
		ID:            c.ID,
		FirstName:     c.FirstName,
		LastName:      c.LastName,
		Email:         c.Email,
		FavoriteColor: c.FavoriteColor,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
	if c.Birthday != nil {
		m.Birthday = c.Birthday.Format(time.DateOnly)
	}
	return m
}

// ContactInput is the body of create and update requests. On update,
// omitted fields are left unchanged and empty or null optional fields are
// cleared.
type ContactInput struct {
	FirstName     Nullable `json:"firstName,omitempty"     example:"John"                 doc:"First name of the contact, required on creation"`
	LastName      Nullable `json:"lastName,omitempty"      example:"Doe"                  doc:"Last name of the contact, required on creation"`
	Email         Nullable `json:"email,omitempty"         example:"john.doe@example.com" doc:"Email address of the contact, required on creation"`
	FavoriteColor Nullable `json:"favoriteColor,omitempty" example:"Blue"                 doc:"Favorite color of the contact"`
	Birthday      Nullable `json:"birthday,omitempty"      example:"1990-01-01"           doc:"Birthday of the contact in YYYY-MM-DD format"`
}

func (in *ContactInput) input() *validation.Input {
	return &validation.Input{
		FirstName:     in.FirstName.Ptr(),
		LastName:      in.LastName.Ptr(),
		Email:         in.Email.Ptr(),
		FavoriteColor: in.FavoriteColor.Ptr(),
		Birthday:      in.Birthday.Ptr(),
	}
}

type contactPath struct {
	ID string `path:"id" example:"65a1f0c2e4b0a1b2c3d4e5f6" doc:"ID of the contact"`
}

func (h *Contacts) RegisterList(api huma.API) { // called by [huma.AutoRegister]
	huma.Get(api, "/contacts",
		handlerWithErrorHandler(h.list, h.ErrorHandler),
		opID("list-contacts", "Get all contacts"),
		opErrors(http.StatusInternalServerError),
	)
}

type ContactsListOutput struct {
	Body []ContactModel
}

func (h *Contacts) list(ctx context.Context, _ *struct{}) (*ContactsListOutput, error) {
	contacts, err := h.Store.List(ctx)
	if err != nil {
		return nil, serverError(err)
	}

	body := make([]ContactModel, 0, len(contacts))
	for _, contact := range contacts {
		body = append(body, contactModel(contact))
	}

	return &ContactsListOutput{Body: body}, nil
}

func (h *Contacts) RegisterGet(api huma.API) { // called by [huma.AutoRegister]
	huma.Get(api, "/contacts/{id}",
		handlerWithErrorHandler(h.get, h.ErrorHandler),
		opID("get-contact", "Get a contact by ID"),
		opErrors(http.StatusBadRequest, http.StatusNotFound, http.StatusInternalServerError),
	)
}

type ContactsGetOutput struct {
	Body ContactModel
}

func (h *Contacts) get(ctx context.Context, input *contactPath) (*ContactsGetOutput, error) {
	contact, err := h.Store.Get(ctx, input.ID)
	if err != nil {
		return nil, lookupError(err)
	}
	return &ContactsGetOutput{Body: contactModel(contact)}, nil
}

func (h *Contacts) RegisterPost(api huma.API) { // called by [huma.AutoRegister]
	huma.Post(api, "/contacts",
		handlerWithErrorHandler(h.post, h.ErrorHandler),
		opID("create-contact", "Create a contact"),
		opStatus(http.StatusCreated),
		opErrors(http.StatusBadRequest, http.StatusInternalServerError),
	)
}

type ContactsPostOutput struct {
	Body struct {
		Message string       `json:"message" example:"Contact created successfully"`
		ID      string       `json:"id"      example:"65a1f0c2e4b0a1b2c3d4e5f6"`
		Contact ContactModel `json:"contact"`
	}
}

func (h *Contacts) post(ctx context.Context, input *struct {
	Body ContactInput
}) (*ContactsPostOutput, error) {
	in := input.Body.input()
	if err := validation.Required(in); err != nil {
		return nil, writeError(err)
	}

	owner, err := h.emailOwner(ctx, validation.NormalizeEmail(*in.Email))
	if err != nil {
		return nil, err
	}

	contact, err := validation.Create(in, owner)
	if err != nil {
		return nil, writeError(err)
	}

	contact, err = h.Store.Create(ctx, contact)
	if err != nil {
		return nil, writeError(err)
	}

	resp := &ContactsPostOutput{}
	resp.Body.Message = "Contact created successfully"
	resp.Body.ID = contact.ID
	resp.Body.Contact = contactModel(contact)
	return resp, nil
}

func (h *Contacts) RegisterPut(api huma.API) { // called by [huma.AutoRegister]
	huma.Put(api, "/contacts/{id}",
		handlerWithErrorHandler(h.put, h.ErrorHandler),
		opID("update-contact", "Update a contact"),
		opErrors(http.StatusBadRequest, http.StatusNotFound, http.StatusInternalServerError),
	)
}

type ContactsPutOutput struct {
	Body struct {
		Message string       `json:"message" example:"Contact updated successfully"`
		Contact ContactModel `json:"contact"`
	}
}

func (h *Contacts) put(ctx context.Context, input *struct {
	ID   string `path:"id" example:"65a1f0c2e4b0a1b2c3d4e5f6" doc:"ID of the contact to update"`
	Body ContactInput
}) (*ContactsPutOutput, error) {
	current, err := h.Store.Get(ctx, input.ID)
	if err != nil {
		return nil, lookupError(err)
	}

	patch, err := validation.Update(current, input.Body.input())
	if err != nil {
		return nil, writeError(err)
	}

	if patch.Email != nil {
		owner, err := h.emailOwner(ctx, *patch.Email)
		if err != nil {
			return nil, err
		}
		if err = validation.Unique(owner, current.ID); err != nil {
			return nil, writeError(err)
		}
	}

	contact, err := h.Store.Update(ctx, current.ID, patch)
	if err != nil {
		return nil, writeError(err)
	}

	resp := &ContactsPutOutput{}
	resp.Body.Message = "Contact updated successfully"
	resp.Body.Contact = contactModel(contact)
	return resp, nil
}

func (h *Contacts) RegisterDelete(api huma.API) { // called by [huma.AutoRegister]
	huma.Delete(api, "/contacts/{id}",
		handlerWithErrorHandler(h.del, h.ErrorHandler),
		opID("delete-contact", "Delete a contact"),
		opErrors(http.StatusBadRequest, http.StatusNotFound, http.StatusInternalServerError),
	)
}

func (h *Contacts) del(ctx context.Context, input *contactPath) (*struct{}, error) {
	if err := h.Store.Delete(ctx, input.ID); err != nil {
		return nil, lookupError(err)
	}
	return nil, nil
}

// emailOwner returns the contact holding email, or nil if there is none.
// The store's unique index remains the final word, see [writeError].
func (h *Contacts) emailOwner(ctx context.Context, email string) (*ds.Contact, error) {
	owner, err := h.Store.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, ds.ErrObjectNotFound):
		return nil, nil
	case err != nil:
		return nil, serverError(err)
	}
	return owner, nil
}

func lookupError(err error) error {
	switch {
	case errors.Is(err, ds.ErrInvalidID):
		return huma.Error400BadRequest("Invalid contact ID", err)
	case errors.Is(err, ds.ErrObjectNotFound):
		return huma.Error404NotFound("Contact not found", err)
	default:
		return serverError(err)
	}
}

func writeError(err error) error {
	if err == nil {
		return nil
	}

	var details []error
	var fieldErr *validation.FieldError
	if errors.As(err, &fieldErr) {
		details = append(details, &huma.ErrorDetail{
			Message:  fieldErr.Err.Error(),
			Location: "body." + fieldErr.Field,
			Value:    fieldErr.Value,
		})
	}
	details = append(details, err)

	switch {
	case errors.Is(err, validation.ErrMissingRequiredField):
		return huma.Error400BadRequest("First name, last name, and email are required", details...)
	case errors.Is(err, validation.ErrInvalidDate):
		return huma.Error400BadRequest("Invalid date, expected YYYY-MM-DD", details...)
	case errors.Is(err, validation.ErrDuplicateEmail), errors.Is(err, ds.ErrDuplicateKey):
		return huma.Error400BadRequest("A contact with this email already exists", details...)
	case errors.Is(err, ds.ErrValidation):
		return huma.Error400BadRequest("Contact failed validation", details...)
	default:
		return lookupError(err)
	}
}

// serverError hides err from the client. It is still seen by the error handler.
func serverError(err error) error {
	return huma.Error500InternalServerError("Server Error", err)
}
