// Package db connects the service to MongoDB and holds the maintenance
// commands run against it.
package db

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cheynewallace/tabby"
	"go.mongodb.org/mongo-driver/mongo"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"

	ds "github.com/ashymuperekicmd/contact-api/datastores"
)

type StoreOptions struct {
	Store             string        `doc:"contacts store, mongodb or memory" default:"mongodb"`
	MongodbURI        string        `doc:"MongoDB connection string"`
	MongodbDatabase   string        `doc:"MongoDB database name"               default:"contacts"`
	MongodbCollection string        `doc:"MongoDB collection of contacts"      default:"contacts"`
	MongodbTimeout    time.Duration `doc:"time allowed to reach MongoDB"       default:"10s"`
}

var ErrNoURI = errors.New("MongoDB connection string is not set")

// Open connects to MongoDB, checks the connection and makes sure the
// collection has its validator and indexes. The caller closes the store.
func Open(ctx context.Context, opts *StoreOptions, logger *slog.Logger) (*ds.ContactsMongo, error) {
	if opts.MongodbURI == "" {
		return nil, ErrNoURI
	}

	ctx, cancel := context.WithTimeout(ctx, opts.MongodbTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, mongooptions.Client().
		ApplyURI(opts.MongodbURI).
		SetServerSelectionTimeout(opts.MongodbTimeout).
		SetAppName("contact-api"))
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}

	store := ds.NewContactsMongo(client, opts.MongodbDatabase, opts.MongodbCollection)
	if err = store.Ping(ctx); err != nil {
		_ = store.Close(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("ping MongoDB: %w", err)
	}
	if err = store.EnsureSchema(ctx); err != nil {
		_ = store.Close(context.WithoutCancel(ctx))
		return nil, err
	}

	logger.Info("connected to MongoDB",
		slog.String("database", opts.MongodbDatabase),
		slog.String("collection", opts.MongodbCollection))
	return store, nil
}

// NewStore returns the store selected by opts and the function releasing it.
// The memory store starts with [SampleContacts].
func NewStore(ctx context.Context, opts *StoreOptions, logger *slog.Logger) (ds.ContactsStore, func(context.Context) error, error) {
	switch strings.ToLower(opts.Store) {
	case "memory":
		logger.Warn("contacts are kept in memory and lost on exit")
		return ds.NewContactsInmem(SampleContacts()...), func(context.Context) error { return nil }, nil
	case "", "mongodb":
		store, err := Open(ctx, opts, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q", opts.Store)
	}
}

// SampleContacts are the contacts inserted by [Seed].
func SampleContacts() []*ds.Contact {
	date := func(year int, month time.Month, day int) *time.Time {
		t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
		return &t
	}
	return []*ds.Contact{
		{FirstName: "John", LastName: "Doe", Email: "john.doe@example.com", FavoriteColor: "Blue", Birthday: date(1990, time.January, 1)},
		{FirstName: "Jane", LastName: "Smith", Email: "jane.smith@example.com", FavoriteColor: "Green", Birthday: date(1985, time.May, 15)},
		{FirstName: "Bob", LastName: "Johnson", Email: "bob.johnson@example.com", FavoriteColor: "Red", Birthday: date(1992, time.November, 23)},
		{FirstName: "Alice", LastName: "Williams", Email: "alice.williams@example.com", FavoriteColor: "Purple", Birthday: date(1988, time.March, 10)},
		{FirstName: "Charlie", LastName: "Brown", Email: "charlie.brown@example.com", FavoriteColor: "Yellow", Birthday: date(1995, time.July, 20)},
	}
}

// Seeder is the part of [ds.ContactsMongo] used by [Seed].
type Seeder interface {
	ds.ContactsStore
	Reset(ctx context.Context) (int64, error)
}

// Seed replaces every stored contact with cs and prints the resulting listing to w.
func Seed(ctx context.Context, store Seeder, cs []*ds.Contact, w io.Writer) error {
	deleted, err := store.Reset(ctx)
	if err != nil {
		return fmt.Errorf("clear contacts: %w", err)
	}
	fmt.Fprintf(w, "Cleared %d existing contacts\n", deleted)

	for _, c := range cs {
		if _, err = store.Create(ctx, c); err != nil {
			return fmt.Errorf("add contact %s: %w", c.Email, err)
		}
	}
	fmt.Fprintf(w, "Added %d sample contacts\n", len(cs))

	contacts, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("list contacts: %w", err)
	}
	fmt.Fprintf(w, "Total contacts in database: %d\n\n", len(contacts))

	table := tabby.NewCustom(tabwriter.NewWriter(w, 0, 4, 2, ' ', 0))
	table.AddHeader("ID", "NAME", "EMAIL", "FAVORITE COLOR")
	for _, c := range contacts {
		table.AddLine(c.ID, c.FirstName+" "+c.LastName, c.Email, c.FavoriteColor)
	}
	table.Print()
	return nil
}

// Checker is the part of [ds.ContactsMongo] used by [Check].
type Checker interface {
	Ping(ctx context.Context) error
	Database() string
	CollectionNames(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int64, error)
}

// Check prints to w what the store sees of its database.
func Check(ctx context.Context, store Checker, w io.Writer) error {
	if err := store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	fmt.Fprintln(w, "MongoDB connected successfully")
	fmt.Fprintf(w, "Database: %s\n", store.Database())

	names, err := store.CollectionNames(ctx)
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	fmt.Fprintf(w, "Collections in database: [%s]\n", strings.Join(names, ", "))

	count, err := store.Count(ctx)
	if err != nil {
		return fmt.Errorf("count contacts: %w", err)
	}
	fmt.Fprintf(w, "Number of contacts in database: %d\n", count)
	return nil
}
