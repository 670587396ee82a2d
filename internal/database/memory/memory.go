// Package memory is an in-process stand-in for a MongoDB database. It keeps
// documents as bson.D and understands the filter and update operators the
// repositories issue, applying each write atomically under a per-collection
// lock.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/chingu-voyage4/Bears-Team-0/internal/database"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ErrDuplicateKey is returned when an insert reuses an existing _id.
var ErrDuplicateKey = database.ErrDuplicateKey

type Database struct {
	mu          sync.Mutex
	collections map[string]*Collection
	failure     error
}

func NewDatabase() *Database {
	return &Database{collections: make(map[string]*Collection)}
}

// SetFailure makes every following Collection call fail as if the server
// were unreachable. Pass nil to recover.
func (d *Database) SetFailure(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failure = err
}

func (d *Database) Collection(ctx context.Context, name string) (database.Collection, error) {
	return d.collection(name)
}

// Raw returns the concrete collection, creating it if needed.
func (d *Database) Raw(name string) *Collection {
	c, _ := d.collection(name)
	return c
}

func (d *Database) collection(name string) (*Collection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.failure != nil {
		return nil, fmt.Errorf("%w: %w", database.ErrConnection, d.failure)
	}

	c, ok := d.collections[name]
	if !ok {
		c = &Collection{name: name}
		d.collections[name] = c
	}
	return c, nil
}

type Collection struct {
	name    string
	mu      sync.Mutex
	docs    []bson.D
	failure error
}

// SetFailure makes every following operation on the collection return err.
func (c *Collection) SetFailure(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failure = err
}

// Len reports the number of stored documents.
func (c *Collection) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.docs)
}

func (c *Collection) begin(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	if c.failure != nil {
		err := c.failure
		c.mu.Unlock()
		return err
	}
	return nil
}

func (c *Collection) FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) *mongo.SingleResult {
	if err := c.begin(ctx); err != nil {
		return errorResult(err)
	}
	defer c.mu.Unlock()

	f, err := toDocument(filter)
	if err != nil {
		return errorResult(err)
	}

	var args options.FindOneOptions
	if err := collect(&args, opts); err != nil {
		return errorResult(err)
	}

	var docs []bson.D
	for _, i := range c.match(f) {
		docs = append(docs, c.docs[i])
	}
	if len(docs) == 0 {
		return errorResult(mongo.ErrNoDocuments)
	}
	if args.Sort != nil {
		if err := sortDocs(docs, args.Sort); err != nil {
			return errorResult(err)
		}
	}
	return mongo.NewSingleResultFromDocument(clone(docs[0]), nil, nil)
}

func (c *Collection) Find(ctx context.Context, filter any, opts ...options.Lister[options.FindOptions]) (*mongo.Cursor, error) {
	if err := c.begin(ctx); err != nil {
		return nil, err
	}
	defer c.mu.Unlock()

	f, err := toDocument(filter)
	if err != nil {
		return nil, err
	}

	var args options.FindOptions
	if err := collect(&args, opts); err != nil {
		return nil, err
	}

	docs := make([]bson.D, 0)
	for _, i := range c.match(f) {
		docs = append(docs, c.docs[i])
	}

	if args.Sort != nil {
		if err := sortDocs(docs, args.Sort); err != nil {
			return nil, err
		}
	}
	if args.Skip != nil && *args.Skip > 0 {
		skip := int(*args.Skip)
		if skip > len(docs) {
			skip = len(docs)
		}
		docs = docs[skip:]
	}
	if args.Limit != nil && *args.Limit > 0 && int(*args.Limit) < len(docs) {
		docs = docs[:*args.Limit]
	}

	out := make([]any, 0, len(docs))
	for _, d := range docs {
		out = append(out, clone(d))
	}
	return mongo.NewCursorFromDocuments(out, nil, nil)
}

func (c *Collection) InsertOne(ctx context.Context, document any, opts ...options.Lister[options.InsertOneOptions]) (*mongo.InsertOneResult, error) {
	if err := c.begin(ctx); err != nil {
		return nil, err
	}
	defer c.mu.Unlock()

	doc, err := toDocument(document)
	if err != nil {
		return nil, err
	}

	id, ok := lookup(doc, "_id")
	if !ok {
		id = bson.NewObjectID()
		doc = append(bson.D{{Key: "_id", Value: id}}, doc...)
	}

	for _, existing := range c.docs {
		if other, _ := lookup(existing, "_id"); equal(other, id) {
			return nil, fmt.Errorf("%w: %s _id %v", ErrDuplicateKey, c.name, id)
		}
	}

	c.docs = append(c.docs, doc)
	return &mongo.InsertOneResult{InsertedID: id}, nil
}

func (c *Collection) UpdateOne(ctx context.Context, filter any, update any, opts ...options.Lister[options.UpdateOneOptions]) (*mongo.UpdateResult, error) {
	if err := c.begin(ctx); err != nil {
		return nil, err
	}
	defer c.mu.Unlock()

	f, err := toDocument(filter)
	if err != nil {
		return nil, err
	}
	u, err := toDocument(update)
	if err != nil {
		return nil, err
	}

	matched := c.match(f)
	if len(matched) == 0 {
		return &mongo.UpdateResult{}, nil
	}

	updated, err := applyUpdate(c.docs[matched[0]], u)
	if err != nil {
		return nil, err
	}
	c.docs[matched[0]] = updated
	return &mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
}

func (c *Collection) FindOneAndUpdate(ctx context.Context, filter any, update any, opts ...options.Lister[options.FindOneAndUpdateOptions]) *mongo.SingleResult {
	if err := c.begin(ctx); err != nil {
		return errorResult(err)
	}
	defer c.mu.Unlock()

	f, err := toDocument(filter)
	if err != nil {
		return errorResult(err)
	}
	u, err := toDocument(update)
	if err != nil {
		return errorResult(err)
	}

	var args options.FindOneAndUpdateOptions
	if err := collect(&args, opts); err != nil {
		return errorResult(err)
	}

	matched := c.match(f)
	if len(matched) == 0 {
		return errorResult(mongo.ErrNoDocuments)
	}

	i := matched[0]
	before := c.docs[i]
	after, err := applyUpdate(before, u)
	if err != nil {
		return errorResult(err)
	}
	c.docs[i] = after

	if args.ReturnDocument != nil && *args.ReturnDocument == options.After {
		return mongo.NewSingleResultFromDocument(clone(after), nil, nil)
	}
	return mongo.NewSingleResultFromDocument(clone(before), nil, nil)
}

func (c *Collection) FindOneAndDelete(ctx context.Context, filter any, opts ...options.Lister[options.FindOneAndDeleteOptions]) *mongo.SingleResult {
	if err := c.begin(ctx); err != nil {
		return errorResult(err)
	}
	defer c.mu.Unlock()

	f, err := toDocument(filter)
	if err != nil {
		return errorResult(err)
	}

	matched := c.match(f)
	if len(matched) == 0 {
		return errorResult(mongo.ErrNoDocuments)
	}

	i := matched[0]
	removed := c.docs[i]
	c.docs = append(c.docs[:i:i], c.docs[i+1:]...)
	return mongo.NewSingleResultFromDocument(removed, nil, nil)
}

func (c *Collection) CountDocuments(ctx context.Context, filter any, opts ...options.Lister[options.CountOptions]) (int64, error) {
	if err := c.begin(ctx); err != nil {
		return 0, err
	}
	defer c.mu.Unlock()

	f, err := toDocument(filter)
	if err != nil {
		return 0, err
	}
	return int64(len(c.match(f))), nil
}

// match returns the positions of the documents satisfying filter, in
// insertion order. Callers hold c.mu.
func (c *Collection) match(filter bson.D) []int {
	var out []int
	for i, doc := range c.docs {
		if matches(doc, filter) {
			out = append(out, i)
		}
	}
	return out
}

func sortDocs(docs []bson.D, order any) error {
	keys, err := toDocument(order)
	if err != nil {
		return fmt.Errorf("invalid sort: %w", err)
	}

	directions := make([]int, len(keys))
	for i, k := range keys {
		n, ok := toInt64(k.Value)
		if !ok || (n != 1 && n != -1) {
			return fmt.Errorf("invalid sort direction for %q: %v", k.Key, k.Value)
		}
		directions[i] = int(n)
	}

	sort.SliceStable(docs, func(a, b int) bool {
		for i, k := range keys {
			av, _ := lookup(docs[a], k.Key)
			bv, _ := lookup(docs[b], k.Key)
			if cmp := compareOrder(av, bv); cmp != 0 {
				return cmp*directions[i] < 0
			}
		}
		return false
	})
	return nil
}

func collect[T any](args *T, opts []options.Lister[T]) error {
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		for _, set := range opt.List() {
			if err := set(args); err != nil {
				return err
			}
		}
	}
	return nil
}

func errorResult(err error) *mongo.SingleResult {
	return mongo.NewSingleResultFromDocument(bson.D{}, err, nil)
}
