package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/apptbook/libs/db"
	"github.com/md-rashed-zaman/apptbook/libs/docstore"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/outbox"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	DriverMemory   = "memory"
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
)

// Collection names are shared by every backend.
const (
	organizationsCollection = "organizations"
	servicesCollection      = "services"
	calendarsCollection     = "calendars"
	timeOffsCollection      = "time_offs"
	appointmentsCollection  = "appointments"
	customersCollection     = "customers"
	outboxCollection        = "outbox_events"
)

type Config struct {
	Driver        string
	MongoURI      string
	MongoDatabase string
	DatabaseURL   string
}

// Store exposes one collection per entity on a single backend.
type Store struct {
	Organizations docstore.Collection[model.Organization]
	Services      docstore.Collection[model.Service]
	Calendars     docstore.Collection[model.Calendar]
	TimeOffs      docstore.Collection[model.TimeOff]
	Appointments  docstore.Collection[model.Appointment]
	Customers     docstore.Collection[model.Customer]
	Outbox        docstore.Collection[outbox.Event]

	driver string
	ping   func(context.Context) error
	close  func(context.Context) error
}

// NewMemory returns a process-local store. Data is lost on restart.
func NewMemory() *Store {
	return &Store{
		Organizations: docstore.NewMemoryCollection[model.Organization](organizationsCollection),
		Services:      docstore.NewMemoryCollection[model.Service](servicesCollection),
		Calendars:     docstore.NewMemoryCollection[model.Calendar](calendarsCollection),
		TimeOffs:      docstore.NewMemoryCollection[model.TimeOff](timeOffsCollection),
		Appointments:  docstore.NewMemoryCollection[model.Appointment](appointmentsCollection),
		Customers:     docstore.NewMemoryCollection[model.Customer](customersCollection),
		Outbox:        docstore.NewMemoryCollection[outbox.Event](outboxCollection),
		driver:        DriverMemory,
		ping:          func(context.Context) error { return nil },
		close:         func(context.Context) error { return nil },
	}
}

// Open connects to the configured backend.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverMemory:
		return NewMemory(), nil
	case DriverMongo:
		return openMongo(ctx, cfg)
	case DriverPostgres:
		return openPostgres(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func openMongo(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.MongoURI == "" {
		return nil, errors.New("MONGO_URI is required for the mongo store")
	}
	if cfg.MongoDatabase == "" {
		cfg.MongoDatabase = "booking"
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	database := client.Database(cfg.MongoDatabase)
	if err := ensureMongoIndexes(ctx, database); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return &Store{
		Organizations: docstore.NewMongoCollection[model.Organization](database, organizationsCollection),
		Services:      docstore.NewMongoCollection[model.Service](database, servicesCollection),
		Calendars:     docstore.NewMongoCollection[model.Calendar](database, calendarsCollection),
		TimeOffs:      docstore.NewMongoCollection[model.TimeOff](database, timeOffsCollection),
		Appointments:  docstore.NewMongoCollection[model.Appointment](database, appointmentsCollection),
		Customers:     docstore.NewMongoCollection[model.Customer](database, customersCollection),
		Outbox:        docstore.NewMongoCollection[outbox.Event](database, outboxCollection),
		driver:        DriverMongo,
		ping: func(ctx context.Context) error {
			return client.Ping(ctx, readpref.Primary())
		},
		close: client.Disconnect,
	}, nil
}

// Lookup indexes only. Appointments get no unique (calendarId, startTime) index: concurrent
// bookings of one slot are not prevented at the storage layer.
func ensureMongoIndexes(ctx context.Context, database *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		calendarsCollection:    {{Keys: bson.D{{Key: "ownerId", Value: 1}}}},
		timeOffsCollection:     {{Keys: bson.D{{Key: "ownerId", Value: 1}, {Key: "startAt", Value: 1}}}},
		appointmentsCollection: {{Keys: bson.D{{Key: "calendarId", Value: 1}, {Key: "startTime", Value: 1}}}, {Keys: bson.D{{Key: "organizationId", Value: 1}, {Key: "createdAt", Value: -1}}}},
		customersCollection:    {{Keys: bson.D{{Key: "organizationId", Value: 1}, {Key: "email", Value: 1}}}},
		outboxCollection:       {{Keys: bson.D{{Key: "published", Value: 1}, {Key: "createdAt", Value: 1}}}},
	}
	for name, models := range indexes {
		if _, err := database.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", name, err)
		}
	}
	return nil
}

func openPostgres(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required for the postgres store")
	}
	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := docstore.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure documents schema: %w", err)
	}

	return &Store{
		Organizations: docstore.NewPostgresCollection[model.Organization](pool, organizationsCollection),
		Services:      docstore.NewPostgresCollection[model.Service](pool, servicesCollection),
		Calendars:     docstore.NewPostgresCollection[model.Calendar](pool, calendarsCollection),
		TimeOffs:      docstore.NewPostgresCollection[model.TimeOff](pool, timeOffsCollection),
		Appointments:  docstore.NewPostgresCollection[model.Appointment](pool, appointmentsCollection),
		Customers:     docstore.NewPostgresCollection[model.Customer](pool, customersCollection),
		Outbox:        docstore.NewPostgresCollection[outbox.Event](pool, outboxCollection),
		driver:        DriverPostgres,
		ping:          db.ReadyCheck(pool),
		close: func(context.Context) error {
			pool.Close()
			return nil
		},
	}, nil
}

func (s *Store) Driver() string { return s.driver }

// ReadyCheck pings the backend with a short timeout.
func (s *Store) ReadyCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.ping(ctx)
}

func (s *Store) Close(ctx context.Context) error {
	return s.close(ctx)
}
