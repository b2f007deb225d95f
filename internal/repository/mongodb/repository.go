// Package mongodb adapts the shared remote document store. The sync engine
// only needs four primitives from it: upsert-with-merge, delete, full
// collection fetch, and a change subscription. Anything fancier (queries,
// transactions, ordering) is deliberately not relied upon.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dcespedes8/avicontrol/internal/domain/models"
)

// Validation failures are split so the operator learns whether the bundle is
// incomplete or the handshake itself failed.
var (
	ErrMissingURI      = errors.New("remote credentials missing connection uri")
	ErrMissingDatabase = errors.New("remote credentials missing database name")
)

const handshakeTimeout = 8 * time.Second

// Remote is a connected handle on the shared document store. Collections are
// namespaced by the organization identifier so independent operations can
// share one cluster.
type Remote struct {
	client *mongo.Client
	dbName string
	prefix string
}

// Connect opens a verified connection using the supplied credentials.
func Connect(ctx context.Context, cfg models.RemoteConfig) (*Remote, error) {
	if cfg.URI == "" {
		return nil, ErrMissingURI
	}
	if cfg.Database == "" {
		return nil, ErrMissingDatabase
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to remote store: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("remote handshake failed: %w", err)
	}

	return &Remote{client: client, dbName: cfg.Database, prefix: cfg.Organization}, nil
}

// Validate performs the lightweight handshake required before candidate
// credentials may be persisted as the active configuration.
func Validate(ctx context.Context, cfg models.RemoteConfig) error {
	ctx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	r, err := Connect(ctx, cfg)
	if err != nil {
		return err
	}
	return r.Close(context.Background())
}

// Close disconnects from the remote store.
func (r *Remote) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

func (r *Remote) collection(name string) *mongo.Collection {
	if r.prefix != "" {
		name = r.prefix + "_" + name
	}
	return r.client.Database(r.dbName).Collection(name)
}

// Upsert writes the document under its id with merge semantics: fields
// present in doc are set, fields the stored document has beyond them are left
// alone. The id is stripped from the update body because the key is immutable.
func (r *Remote) Upsert(ctx context.Context, collection, id string, doc any) error {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document %s/%s: %w", collection, id, err)
	}
	var fields bson.M
	if err := bson.Unmarshal(raw, &fields); err != nil {
		return fmt.Errorf("encode document %s/%s: %w", collection, id, err)
	}
	delete(fields, "_id")

	_, err = r.collection(collection).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": fields},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert %s/%s: %w", collection, id, err)
	}
	return nil
}

// Delete removes the document by id. Deleting an absent document is not an
// error.
func (r *Remote) Delete(ctx context.Context, collection, id string) error {
	if _, err := r.collection(collection).DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// FetchAll loads the full current state of a collection into out, which must
// be a pointer to a slice. An error here means "no data received", which the
// sync engine treats very differently from an empty result.
func (r *Remote) FetchAll(ctx context.Context, collection string, out any) error {
	cur, err := r.collection(collection).Find(ctx, bson.D{})
	if err != nil {
		return fmt.Errorf("fetch %s: %w", collection, err)
	}
	defer cur.Close(ctx)

	if err := cur.All(ctx, out); err != nil {
		return fmt.Errorf("decode %s: %w", collection, err)
	}
	return nil
}

// Watch opens a change stream over the collection. The caller closes it.
func (r *Remote) Watch(ctx context.Context, collection string) (*mongo.ChangeStream, error) {
	cs, err := r.collection(collection).Watch(ctx, mongo.Pipeline{})
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", collection, err)
	}
	return cs, nil
}
