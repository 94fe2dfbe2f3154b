package datastores

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ContactsInmem implements [ContactsStore] in memory, with the same
// identifier format and email uniqueness rules as [ContactsMongo].
type ContactsInmem struct {
	// Now returns the time used for CreatedAt and UpdatedAt. Defaults to [time.Now].
	Now func() time.Time

	mu      sync.Mutex
	byID    map[string]*Contact
	byEmail map[string]string
}

var _ ContactsStore = (*ContactsInmem)(nil)

// NewContactsInmem returns a store holding cs. Contacts without an ID get one.
// It panics if two of them share an email.
func NewContactsInmem(cs ...*Contact) *ContactsInmem {
	s := &ContactsInmem{
		byID:    make(map[string]*Contact, len(cs)),
		byEmail: make(map[string]string, len(cs)),
	}
	for _, c := range cs {
		if _, err := s.Create(context.Background(), c); err != nil {
			panic(err)
		}
	}
	return s
}

func (s *ContactsInmem) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *ContactsInmem) List(_ context.Context) ([]*Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	contacts := make([]*Contact, 0, len(s.byID))
	for _, c := range s.byID {
		contacts = append(contacts, clone(c))
	}
	slices.SortFunc(contacts, func(a, b *Contact) int {
		return cmp.Or(
			strings.Compare(a.LastName, b.LastName),
			strings.Compare(a.FirstName, b.FirstName),
			strings.Compare(a.ID, b.ID),
		)
	})
	return contacts, nil
}

func (s *ContactsInmem) Get(_ context.Context, id string) (*Contact, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[oid.Hex()]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return clone(c), nil
}

func (s *ContactsInmem) GetByEmail(_ context.Context, email string) (*Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[foldEmail(email)]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return clone(s.byID[id]), nil
}

func (s *ContactsInmem) Create(_ context.Context, c *Contact) (*Contact, error) {
	c = clone(c)
	normalize(c)
	if !requiredFieldsSet(c) {
		return nil, ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, loaded := s.byEmail[c.Email]; loaded {
		return nil, ErrDuplicateKey
	}
	if c.ID == "" {
		c.ID = primitive.NewObjectID().Hex()
	} else {
		oid, err := parseID(c.ID)
		if err != nil {
			return nil, err
		}
		c.ID = oid.Hex()
	}
	if _, loaded := s.byID[c.ID]; loaded {
		return nil, ErrDuplicateKey
	}
	c.CreatedAt = s.now()
	c.UpdatedAt = c.CreatedAt
	s.byID[c.ID] = c
	s.byEmail[c.Email] = c.ID
	return clone(c), nil
}

func (s *ContactsInmem) Update(_ context.Context, id string, p *ContactPatch) (*Contact, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	id = oid.Hex()
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.byID[id]
	if !ok {
		return nil, ErrObjectNotFound
	}

	next := clone(current)
	applyPatch(next, p)
	normalize(next)
	if !requiredFieldsSet(next) {
		return nil, ErrValidation
	}
	if owner, loaded := s.byEmail[next.Email]; loaded && owner != id {
		return nil, ErrDuplicateKey
	}
	next.UpdatedAt = s.now()

	delete(s.byEmail, current.Email)
	s.byEmail[next.Email] = id
	s.byID[id] = next
	return clone(next), nil
}

func (s *ContactsInmem) Delete(_ context.Context, id string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	id = oid.Hex()
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[id]
	if !ok {
		return ErrObjectNotFound
	}
	delete(s.byID, id)
	delete(s.byEmail, c.Email)
	return nil
}

func applyPatch(c *Contact, p *ContactPatch) {
	if p.FirstName != nil {
		c.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		c.LastName = *p.LastName
	}
	if p.Email != nil {
		c.Email = *p.Email
	}
	if p.FavoriteColor != nil {
		c.FavoriteColor = *p.FavoriteColor
	}
	switch {
	case p.Birthday != nil:
		birthday := *p.Birthday
		c.Birthday = &birthday
	case p.ClearBirthday:
		c.Birthday = nil
	}
}

func clone(c *Contact) *Contact {
	cc := *c
	if c.Birthday != nil {
		birthday := *c.Birthday
		cc.Birthday = &birthday
	}
	return &cc
}
