package datastores

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testContactsStore checks the behavior shared by every [ContactsStore].
// newStore must return an empty store.
func testContactsStore(t *testing.T, newStore func(t *testing.T) ContactsStore) {
	ctx := context.Background()
	ptr := func(s string) *string { return &s }
	date := func(y int, m time.Month, d int) *time.Time {
		t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		return &t
	}
	const absentID = "65a1f0c2e4b0a1b2c3d4e5f6"

	t.Run("CreateGet", func(t *testing.T) {
		s := newStore(t)
		created, err := s.Create(ctx, &Contact{
			FirstName:     " John ",
			LastName:      "Doe",
			Email:         "John.Doe@Example.com",
			FavoriteColor: "Blue",
			Birthday:      date(1990, time.January, 1),
		})
		require.NoError(t, err)
		assert.Len(t, created.ID, 24)
		assert.Equal(t, "John", created.FirstName)
		assert.Equal(t, "john.doe@example.com", created.Email)
		assert.False(t, created.CreatedAt.IsZero())
		assert.Equal(t, created.CreatedAt, created.UpdatedAt)

		got, err := s.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created, got)

		got, err = s.GetByEmail(ctx, " JOHN.doe@example.com")
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
	})

	t.Run("CreateDuplicateEmail", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Create(ctx, &Contact{FirstName: "John", LastName: "Doe", Email: "john.doe@example.com"})
		require.NoError(t, err)
		_, err = s.Create(ctx, &Contact{FirstName: "Johnny", LastName: "Doe", Email: "JOHN.DOE@example.com"})
		require.ErrorIs(t, err, ErrDuplicateKey)

		contacts, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, contacts, 1)
		assert.Equal(t, "John", contacts[0].FirstName)
	})

	t.Run("CreateMissingField", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Create(ctx, &Contact{FirstName: "John", LastName: " ", Email: "john.doe@example.com"})
		require.ErrorIs(t, err, ErrValidation)
	})

	t.Run("NotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx, absentID)
		assert.ErrorIs(t, err, ErrObjectNotFound)
		_, err = s.GetByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, ErrObjectNotFound)
		_, err = s.Update(ctx, absentID, &ContactPatch{FirstName: ptr("John")})
		assert.ErrorIs(t, err, ErrObjectNotFound)
		assert.ErrorIs(t, s.Delete(ctx, absentID), ErrObjectNotFound)
	})

	t.Run("InvalidID", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx, "not-a-valid-id")
		assert.ErrorIs(t, err, ErrInvalidID)
		_, err = s.Update(ctx, "not-a-valid-id", &ContactPatch{})
		assert.ErrorIs(t, err, ErrInvalidID)
		assert.ErrorIs(t, s.Delete(ctx, "not-a-valid-id"), ErrInvalidID)
	})

	t.Run("UppercaseID", func(t *testing.T) {
		s := newStore(t)
		created, err := s.Create(ctx, &Contact{FirstName: "John", LastName: "Doe", Email: "john.doe@example.com"})
		require.NoError(t, err)
		id := strings.ToUpper(created.ID)

		got, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)

		updated, err := s.Update(ctx, id, &ContactPatch{FavoriteColor: ptr("Blue")})
		require.NoError(t, err)
		assert.Equal(t, created.ID, updated.ID)
		require.NoError(t, s.Delete(ctx, id))
		_, err = s.Get(ctx, created.ID)
		assert.ErrorIs(t, err, ErrObjectNotFound)
	})

	t.Run("EarliestBirthday", func(t *testing.T) {
		s := newStore(t)
		created, err := s.Create(ctx, &Contact{
			FirstName: "John", LastName: "Doe", Email: "john.doe@example.com",
			Birthday: date(1, time.January, 1),
		})
		require.NoError(t, err)
		require.NotNil(t, created.Birthday)
		assert.Equal(t, *date(1, time.January, 1), *created.Birthday)

		updated, err := s.Update(ctx, created.ID, &ContactPatch{FavoriteColor: ptr("Blue")})
		require.NoError(t, err)
		require.NotNil(t, updated.Birthday)

		updated, err = s.Update(ctx, created.ID, &ContactPatch{Birthday: date(1990, time.January, 1)})
		require.NoError(t, err)
		updated, err = s.Update(ctx, created.ID, &ContactPatch{Birthday: &time.Time{}})
		require.NoError(t, err)
		require.NotNil(t, updated.Birthday)
		assert.True(t, updated.Birthday.IsZero())
	})

	t.Run("ListOrder", func(t *testing.T) {
		s := newStore(t)
		for _, c := range []*Contact{
			{FirstName: "Jane", LastName: "Smith", Email: "jane.smith@example.com"},
			{FirstName: "John", LastName: "Doe", Email: "john.doe@example.com"},
			{FirstName: "Adam", LastName: "Smith", Email: "adam.smith@example.com"},
			{FirstName: "Bob", LastName: "Johnson", Email: "bob.johnson@example.com"},
		} {
			_, err := s.Create(ctx, c)
			require.NoError(t, err)
		}

		contacts, err := s.List(ctx)
		require.NoError(t, err)
		var names []string
		for _, c := range contacts {
			names = append(names, c.FirstName+" "+c.LastName)
		}
		assert.Equal(t, []string{"John Doe", "Bob Johnson", "Adam Smith", "Jane Smith"}, names)
	})

	t.Run("ListEmpty", func(t *testing.T) {
		contacts, err := newStore(t).List(ctx)
		require.NoError(t, err)
		assert.Empty(t, contacts)
	})

	t.Run("UpdatePartial", func(t *testing.T) {
		s := newStore(t)
		created, err := s.Create(ctx, &Contact{
			FirstName: "John", LastName: "Doe", Email: "john.doe@example.com",
			FavoriteColor: "Blue", Birthday: date(1990, time.January, 1),
		})
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)

		updated, err := s.Update(ctx, created.ID, &ContactPatch{FavoriteColor: ptr(" Green ")})
		require.NoError(t, err)
		assert.Equal(t, "Green", updated.FavoriteColor)
		assert.Equal(t, created.FirstName, updated.FirstName)
		assert.Equal(t, created.LastName, updated.LastName)
		assert.Equal(t, created.Email, updated.Email)
		assert.Equal(t, created.Birthday, updated.Birthday)
		assert.Equal(t, created.CreatedAt, updated.CreatedAt)
		assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))

		got, err := s.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, updated, got)
	})

	t.Run("UpdateClear", func(t *testing.T) {
		s := newStore(t)
		created, err := s.Create(ctx, &Contact{
			FirstName: "John", LastName: "Doe", Email: "john.doe@example.com",
			FavoriteColor: "Blue", Birthday: date(1990, time.January, 1),
		})
		require.NoError(t, err)

		updated, err := s.Update(ctx, created.ID, &ContactPatch{FavoriteColor: ptr(""), ClearBirthday: true})
		require.NoError(t, err)
		assert.Empty(t, updated.FavoriteColor)
		assert.Nil(t, updated.Birthday)
	})

	t.Run("UpdateEmail", func(t *testing.T) {
		s := newStore(t)
		john, err := s.Create(ctx, &Contact{FirstName: "John", LastName: "Doe", Email: "john.doe@example.com"})
		require.NoError(t, err)
		jane, err := s.Create(ctx, &Contact{FirstName: "Jane", LastName: "Smith", Email: "jane.smith@example.com"})
		require.NoError(t, err)

		_, err = s.Update(ctx, jane.ID, &ContactPatch{Email: ptr("John.Doe@example.com")})
		require.ErrorIs(t, err, ErrDuplicateKey)
		got, err := s.Get(ctx, jane.ID)
		require.NoError(t, err)
		assert.Equal(t, "jane.smith@example.com", got.Email)

		_, err = s.Update(ctx, john.ID, &ContactPatch{Email: ptr("johnny@example.com")})
		require.NoError(t, err)
		_, err = s.GetByEmail(ctx, "john.doe@example.com")
		assert.ErrorIs(t, err, ErrObjectNotFound)
		_, err = s.Update(ctx, jane.ID, &ContactPatch{Email: ptr("john.doe@example.com")})
		assert.NoError(t, err)
	})

	t.Run("UpdateEmptyRequiredField", func(t *testing.T) {
		s := newStore(t)
		created, err := s.Create(ctx, &Contact{FirstName: "John", LastName: "Doe", Email: "john.doe@example.com"})
		require.NoError(t, err)
		_, err = s.Update(ctx, created.ID, &ContactPatch{LastName: ptr(" ")})
		require.ErrorIs(t, err, ErrValidation)
	})

	t.Run("DeleteOnce", func(t *testing.T) {
		s := newStore(t)
		created, err := s.Create(ctx, &Contact{FirstName: "John", LastName: "Doe", Email: "john.doe@example.com"})
		require.NoError(t, err)

		require.NoError(t, s.Delete(ctx, created.ID))
		assert.ErrorIs(t, s.Delete(ctx, created.ID), ErrObjectNotFound)
		_, err = s.Get(ctx, created.ID)
		assert.ErrorIs(t, err, ErrObjectNotFound)

		recreated, err := s.Create(ctx, &Contact{FirstName: "John", LastName: "Doe", Email: "john.doe@example.com"})
		require.NoError(t, err)
		assert.NotEqual(t, created.ID, recreated.ID)
	})
}
