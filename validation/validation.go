// Package validation decides whether a contact write may proceed and what it
// changes. It performs no I/O: records needed for a decision are looked up by
// the caller and passed in.
package validation

import (
	"errors"
	"strings"
	"time"

	ds "github.com/ashymuperekicmd/contact-api/datastores"
)

var (
	ErrMissingRequiredField = errors.New("missing required field")
	ErrInvalidDate          = errors.New("invalid date")
	ErrDuplicateEmail       = errors.New("email already exists")
)

// FieldError is an error about a single input field. Value is the
// submitted value, nil when the field was not provided.
type FieldError struct {
	Field string
	Value any
	Err   error
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Err.Error() }

func (e *FieldError) Unwrap() error { return e.Err }

// Input is a contact write request. A nil field was not provided; a field
// pointing to an empty string was provided empty or null.
type Input struct {
	FirstName     *string
	LastName      *string
	Email         *string
	FavoriteColor *string
	Birthday      *string
}

// Required checks that in carries every required field.
func Required(in *Input) error {
	for _, f := range []struct {
		name  string
		value *string
	}{
		{"firstName", in.FirstName},
		{"lastName", in.LastName},
		{"email", in.Email},
	} {
		if NormalizeText(deref(f.value)) == "" {
			return &FieldError{f.name, value(f.value), ErrMissingRequiredField}
		}
	}
	return nil
}

// Create returns the contact to insert for in. owner is the contact holding
// the email of in, nil if there is none. Required fields are checked first,
// then email uniqueness, then the birthday.
func Create(in *Input, owner *ds.Contact) (*ds.Contact, error) {
	if err := Required(in); err != nil {
		return nil, err
	}
	if err := Unique(owner, ""); err != nil {
		return nil, err
	}

	c := &ds.Contact{
		FirstName:     NormalizeText(*in.FirstName),
		LastName:      NormalizeText(*in.LastName),
		Email:         NormalizeEmail(*in.Email),
		FavoriteColor: NormalizeText(deref(in.FavoriteColor)),
	}
	if s := NormalizeText(deref(in.Birthday)); s != "" {
		birthday, err := ParseDate(s)
		if err != nil {
			return nil, &FieldError{"birthday", *in.Birthday, err}
		}
		c.Birthday = &birthday
	}
	return c, nil
}

// Update returns the changes in brings to current. Empty required fields are
// ignored, as if they were not provided. Email is only part of the patch when
// it differs from the current one, in which case the caller must check it
// with [Unique].
func Update(current *ds.Contact, in *Input) (*ds.ContactPatch, error) {
	var p ds.ContactPatch
	if v := NormalizeText(deref(in.FirstName)); v != "" {
		p.FirstName = &v
	}
	if v := NormalizeText(deref(in.LastName)); v != "" {
		p.LastName = &v
	}
	if v := NormalizeEmail(deref(in.Email)); v != "" && v != NormalizeEmail(current.Email) {
		p.Email = &v
	}
	if in.FavoriteColor != nil {
		v := NormalizeText(*in.FavoriteColor)
		p.FavoriteColor = &v
	}
	if in.Birthday != nil {
		s := NormalizeText(*in.Birthday)
		if s == "" {
			p.ClearBirthday = true
		} else {
			birthday, err := ParseDate(s)
			if err != nil {
				return nil, &FieldError{"birthday", *in.Birthday, err}
			}
			p.Birthday = &birthday
		}
	}
	return &p, nil
}

// Unique checks that an email held by owner may be given to the contact selfID.
// owner is nil when nobody holds the email. selfID is empty on creation.
func Unique(owner *ds.Contact, selfID string) error {
	if owner != nil && owner.ID != selfID {
		return &FieldError{"email", owner.Email, ErrDuplicateEmail}
	}
	return nil
}

// ParseDate parses a calendar date, either as YYYY-MM-DD or as an RFC 3339
// timestamp whose date is kept.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}

func NormalizeText(s string) string { return strings.TrimSpace(s) }

func NormalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func value(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
