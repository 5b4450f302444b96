// Package mongo implements internal/datastore.Datastore backed by
// MongoDB, with captured Traffic and AuthInfo records stored in two
// separate named collections.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nap32/ohm/internal/traffic"
)

const appName = "ohm"

// trafficDocument is the BSON shape Traffic is stored as. Query is
// stored as a plain map since BSON documents are themselves
// unordered key/value maps, the same invariant the in-memory Query
// field already has.
type trafficDocument struct {
	Method             string            `bson:"method"`
	Scheme             string            `bson:"scheme"`
	Host               string            `bson:"host"`
	Path               string            `bson:"path"`
	Query              map[string]string `bson:"query"`
	RequestHeaders     map[string]string `bson:"request_headers"`
	RequestBody        []byte            `bson:"request_body"`
	RequestBodyString  *string           `bson:"request_body_string,omitempty"`
	ResponseHeaders    map[string]string `bson:"response_headers"`
	ResponseBody       []byte            `bson:"response_body"`
	ResponseBodyString *string           `bson:"response_body_string,omitempty"`
	Status             int               `bson:"status"`
	Version            string            `bson:"version"`
	Truncated          bool              `bson:"truncated"`
	CapturedAt         time.Time         `bson:"captured_at"`
}

type authDocument struct {
	Issuer      string `bson:"issuer"`
	GrantType   string `bson:"grant_type"`
	ClientID    string `bson:"client_id"`
	RedirectURL string `bson:"redirect_url"`
	Scope       string `bson:"scope"`
}

// Store is a MongoDB-backed Datastore.
type Store struct {
	client             *mongo.Client
	trafficCollection  *mongo.Collection
	authCollection     *mongo.Collection
}

// Connect dials url, resolves the named database, and resolves the
// two named collections. It does not require the database or
// collections to already exist: MongoDB creates both implicitly on
// first insert.
func Connect(ctx context.Context, url, dbName, trafficCollectionName, authCollectionName string) (*Store, error) {
	opts := options.Client().ApplyURI(url).SetAppName(appName)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("datastore: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("datastore: ping: %w", err)
	}

	db := client.Database(dbName)
	return &Store{
		client:            client,
		trafficCollection: db.Collection(trafficCollectionName),
		authCollection:    db.Collection(authCollectionName),
	}, nil
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// AddTraffic inserts a captured Traffic record.
func (s *Store) AddTraffic(ctx context.Context, t *traffic.Traffic) error {
	doc := trafficDocument{
		Method:             t.Method,
		Scheme:             t.Scheme,
		Host:               t.Host,
		Path:               t.Path,
		Query:              t.Query,
		RequestHeaders:     t.RequestHeaders,
		RequestBody:        t.RequestBody,
		RequestBodyString:  t.RequestBodyString,
		ResponseHeaders:    t.ResponseHeaders,
		ResponseBody:       t.ResponseBody,
		ResponseBodyString: t.ResponseBodyString,
		Status:             t.Status,
		Version:            t.Version,
		Truncated:          t.Truncated,
		CapturedAt:         time.Now(),
	}
	_, err := s.trafficCollection.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("datastore: insert traffic: %w", err)
	}
	return nil
}

// AddAuth upserts an AuthInfo record keyed on its natural key
// (issuer, client_id, grant_type, redirect_url, scope).
func (s *Store) AddAuth(ctx context.Context, a traffic.AuthInfo) error {
	filter := bson.M{
		"issuer":       a.Issuer,
		"client_id":    a.ClientID,
		"grant_type":   a.GrantType,
		"redirect_url": a.RedirectURL,
		"scope":        a.Scope,
	}
	doc := authDocument{
		Issuer:      a.Issuer,
		GrantType:   a.GrantType,
		ClientID:    a.ClientID,
		RedirectURL: a.RedirectURL,
		Scope:       a.Scope,
	}
	_, err := s.authCollection.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("datastore: upsert auth: %w", err)
	}
	return nil
}
