package datastores

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoDB server error codes.
const (
	codeNamespaceExists           = 48
	codeDocumentValidationFailure = 121
)

// ContactsMongo implements [ContactsStore] on a MongoDB collection.
// The collection carries a unique index on email, which is what
// ultimately keeps emails unique under concurrent writers.
type ContactsMongo struct {
	client     *mongo.Client
	collection *mongo.Collection
}

var _ ContactsStore = (*ContactsMongo)(nil)

// NewContactsMongo uses the collection named collection of database db.
// The returned store owns client and disconnects it on [ContactsMongo.Close].
func NewContactsMongo(client *mongo.Client, db, collection string) *ContactsMongo {
	return &ContactsMongo{
		client:     client,
		collection: client.Database(db).Collection(collection),
	}
}

// contactDocument is the BSON layout of a [Contact].
type contactDocument struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	FirstName     string             `bson:"firstName"`
	LastName      string             `bson:"lastName"`
	Email         string             `bson:"email"`
	FavoriteColor string             `bson:"favoriteColor,omitempty"`
	Birthday      *time.Time         `bson:"birthday,omitempty"`
	CreatedAt     time.Time          `bson:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt"`
}

func (d *contactDocument) contact() *Contact {
	c := &Contact{
		ID:            d.ID.Hex(),
		FirstName:     d.FirstName,
		LastName:      d.LastName,
		Email:         d.Email,
		FavoriteColor: d.FavoriteColor,
		CreatedAt:     d.CreatedAt.UTC(),
		UpdatedAt:     d.UpdatedAt.UTC(),
	}
	if d.Birthday != nil {
		birthday := dateOnly(*d.Birthday)
		c.Birthday = &birthday
	}
	return c
}

// EnsureSchema creates the collection with its validator if it is missing,
// and the indexes the store relies on.
func (s *ContactsMongo) EnsureSchema(ctx context.Context) error {
	validator := bson.M{"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": bson.A{"firstName", "lastName", "email"},
		"properties": bson.M{
			"firstName":     bson.M{"bsonType": "string", "minLength": 1},
			"lastName":      bson.M{"bsonType": "string", "minLength": 1},
			"email":         bson.M{"bsonType": "string", "minLength": 1},
			"favoriteColor": bson.M{"bsonType": "string"},
			"birthday":      bson.M{"bsonType": "date"},
		},
	}}
	err := s.collection.Database().CreateCollection(ctx, s.collection.Name(),
		options.CreateCollection().SetValidator(validator))
	if err != nil && !hasErrorCode(err, codeNamespaceExists) {
		return fmt.Errorf("create collection %q: %w", s.collection.Name(), err)
	}

	_, err = s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("email_unique").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "lastName", Value: 1}, {Key: "firstName", Value: 1}},
			Options: options.Index().SetName("name_order"),
		},
	})
	if err != nil {
		return fmt.Errorf("create indexes on %q: %w", s.collection.Name(), err)
	}
	return nil
}

func (s *ContactsMongo) List(ctx context.Context) ([]*Contact, error) {
	cursor, err := s.collection.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{
		{Key: "lastName", Value: 1},
		{Key: "firstName", Value: 1},
		{Key: "_id", Value: 1},
	}))
	if err != nil {
		return nil, classify(err)
	}
	var docs []contactDocument
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, classify(err)
	}

	contacts := make([]*Contact, 0, len(docs))
	for i := range docs {
		contacts = append(contacts, docs[i].contact())
	}
	return contacts, nil
}

func (s *ContactsMongo) Get(ctx context.Context, id string) (*Contact, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return s.findOne(ctx, bson.D{{Key: "_id", Value: oid}})
}

func (s *ContactsMongo) GetByEmail(ctx context.Context, email string) (*Contact, error) {
	return s.findOne(ctx, bson.D{{Key: "email", Value: foldEmail(email)}})
}

func (s *ContactsMongo) findOne(ctx context.Context, filter bson.D) (*Contact, error) {
	var doc contactDocument
	if err := s.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, classify(err)
	}
	return doc.contact(), nil
}

func (s *ContactsMongo) Create(ctx context.Context, c *Contact) (*Contact, error) {
	c = clone(c)
	normalize(c)
	if !requiredFieldsSet(c) {
		return nil, ErrValidation
	}

	ts := now()
	doc := contactDocument{
		FirstName:     c.FirstName,
		LastName:      c.LastName,
		Email:         c.Email,
		FavoriteColor: c.FavoriteColor,
		Birthday:      c.Birthday,
		CreatedAt:     ts,
		UpdatedAt:     ts,
	}
	if c.ID != "" {
		oid, err := parseID(c.ID)
		if err != nil {
			return nil, err
		}
		doc.ID = oid
	} else {
		doc.ID = primitive.NewObjectID()
	}

	if _, err := s.collection.InsertOne(ctx, &doc); err != nil {
		return nil, classify(err)
	}
	return doc.contact(), nil
}

func (s *ContactsMongo) Update(ctx context.Context, id string, p *ContactPatch) (*Contact, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	set := bson.D{{Key: "updatedAt", Value: now()}}
	unset := bson.D{}
	for _, f := range []struct {
		key   string
		value *string
	}{
		{"firstName", p.FirstName},
		{"lastName", p.LastName},
		{"email", p.Email},
	} {
		if f.value == nil {
			continue
		}
		v := strings.TrimSpace(*f.value)
		if f.key == "email" {
			v = foldEmail(v)
		}
		if v == "" {
			return nil, ErrValidation
		}
		set = append(set, bson.E{Key: f.key, Value: v})
	}
	if p.FavoriteColor != nil {
		if v := strings.TrimSpace(*p.FavoriteColor); v != "" {
			set = append(set, bson.E{Key: "favoriteColor", Value: v})
		} else {
			unset = append(unset, bson.E{Key: "favoriteColor", Value: ""})
		}
	}
	switch {
	case p.Birthday != nil:
		set = append(set, bson.E{Key: "birthday", Value: dateOnly(*p.Birthday)})
	case p.ClearBirthday:
		unset = append(unset, bson.E{Key: "birthday", Value: ""})
	}

	update := bson.D{{Key: "$set", Value: set}}
	if len(unset) > 0 {
		update = append(update, bson.E{Key: "$unset", Value: unset})
	}

	var doc contactDocument
	err = s.collection.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: oid}}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return nil, classify(err)
	}
	return doc.contact(), nil
}

func (s *ContactsMongo) Delete(ctx context.Context, id string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	res, err := s.collection.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return classify(err)
	}
	if res.DeletedCount == 0 {
		return ErrObjectNotFound
	}
	return nil
}

// Ping checks that the primary is reachable.
func (s *ContactsMongo) Ping(ctx context.Context) error {
	return classify(s.client.Ping(ctx, readpref.Primary()))
}

// Count returns the number of stored contacts.
func (s *ContactsMongo) Count(ctx context.Context) (int64, error) {
	n, err := s.collection.CountDocuments(ctx, bson.D{})
	return n, classify(err)
}

// Reset deletes every contact and returns how many were deleted.
func (s *ContactsMongo) Reset(ctx context.Context) (int64, error) {
	res, err := s.collection.DeleteMany(ctx, bson.D{})
	if err != nil {
		return 0, classify(err)
	}
	return res.DeletedCount, nil
}

// CollectionNames lists the collections of the store's database.
func (s *ContactsMongo) CollectionNames(ctx context.Context) ([]string, error) {
	names, err := s.collection.Database().ListCollectionNames(ctx, bson.D{})
	return names, classify(err)
}

// Database returns the name of the store's database.
func (s *ContactsMongo) Database() string { return s.collection.Database().Name() }

// Close disconnects the underlying client.
func (s *ContactsMongo) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// parseID returns the [primitive.ObjectID] encoded in id, or [ErrInvalidID].
func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return oid, nil
}

// classify maps driver errors onto the store errors. Errors it cannot
// place are reported as [ErrUnavailable].
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrObjectNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %w", ErrDuplicateKey, err)
	case hasErrorCode(err, codeDocumentValidationFailure):
		return fmt.Errorf("%w: %w", ErrValidation, err)
	default:
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
}

func hasErrorCode(err error, code int) bool {
	var serverErr mongo.ServerError
	return errors.As(err, &serverErr) && serverErr.HasErrorCode(code)
}

// now is truncated to the millisecond precision of BSON dates.
func now() time.Time { return time.Now().UTC().Truncate(time.Millisecond) }
