package datastores

import (
	"context"
	"errors"
	"strings"
	"time"
)

type (
	// Contact is a stored contact. ID, CreatedAt and UpdatedAt are assigned by the store.
	Contact struct {
		ID            string
		FirstName     string
		LastName      string
		Email         string
		FavoriteColor string
		Birthday      *time.Time
		CreatedAt     time.Time
		UpdatedAt     time.Time
	}

	// ContactPatch holds the fields to change on an existing [Contact].
	// Nil fields are left untouched. An empty FavoriteColor clears the
	// stored value, and so does ClearBirthday when Birthday is nil.
	ContactPatch struct {
		FirstName     *string
		LastName      *string
		Email         *string
		FavoriteColor *string
		Birthday      *time.Time
		ClearBirthday bool
	}
)

// Empty reports whether p changes nothing.
func (p *ContactPatch) Empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Email == nil &&
		p.FavoriteColor == nil && p.Birthday == nil && !p.ClearBirthday
}

type ContactsStore interface {
	List(ctx context.Context) ([]*Contact, error)
	Get(ctx context.Context, id string) (*Contact, error)
	GetByEmail(ctx context.Context, email string) (*Contact, error)
	Create(ctx context.Context, c *Contact) (*Contact, error)
	Update(ctx context.Context, id string, p *ContactPatch) (*Contact, error)
	Delete(ctx context.Context, id string) error
}

var (
	ErrObjectNotFound = errors.New("store: object not found")
	ErrInvalidID      = errors.New("store: invalid object id")
	ErrDuplicateKey   = errors.New("store: duplicate key")
	ErrValidation     = errors.New("store: document failed validation")
	ErrUnavailable    = errors.New("store: unavailable")
)

// requiredFieldsSet is the store side check on required fields,
// mirrored by the collection validator in MongoDB.
func requiredFieldsSet(c *Contact) bool {
	return c.FirstName != "" && c.LastName != "" && c.Email != ""
}

// dateOnly drops the time of day of t, keeping the calendar date in UTC.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// foldEmail is the form under which emails are stored and compared.
func foldEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// normalize applies the storage form to every field of c.
func normalize(c *Contact) {
	c.FirstName = strings.TrimSpace(c.FirstName)
	c.LastName = strings.TrimSpace(c.LastName)
	c.Email = foldEmail(c.Email)
	c.FavoriteColor = strings.TrimSpace(c.FavoriteColor)
	if c.Birthday != nil {
		d := dateOnly(*c.Birthday)
		c.Birthday = &d
	}
}
