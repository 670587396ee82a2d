package repository

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/chingu-voyage4/Bears-Team-0/internal/database"
	"github.com/chingu-voyage4/Bears-Team-0/internal/models"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const UsersCollection = "users"

// PasswordHasher turns a plaintext password into the value stored in
// passwordHash.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

type UserRepository struct {
	conn       database.Connector
	hasher     PasswordHasher
	collection string
	now        func() time.Time
}

func NewUserRepository(conn database.Connector, hasher PasswordHasher) *UserRepository {
	return &UserRepository{
		conn:       conn,
		hasher:     hasher,
		collection: UsersCollection,
		now:        time.Now,
	}
}

func (r *UserRepository) col(ctx context.Context) (database.Collection, error) {
	return r.conn.Collection(ctx, r.collection)
}

func (r *UserRepository) timestamp() time.Time {
	return r.now().UTC().Truncate(time.Millisecond)
}

// EnsureIndexes makes usernames unique on a live MongoDB collection.
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	col, err := r.col(ctx)
	if err != nil {
		return err
	}
	mc, ok := col.(*mongo.Collection)
	if !ok {
		return nil
	}

	_, err = mc.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}
	return nil
}

func (r *UserRepository) Read(ctx context.Context, id string) (_ *models.User, err error) {
	defer track(r.collection, "read", time.Now(), &err)

	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, bson.M{"_id": oid}, id)
}

// FindByUsername looks a user up by exact username.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (_ *models.User, err error) {
	defer track(r.collection, "find_by_username", time.Now(), &err)
	return r.findOne(ctx, bson.M{"username": username}, username)
}

func (r *UserRepository) findOne(ctx context.Context, filter any, key string) (*models.User, error) {
	col, err := r.col(ctx)
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := col.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFound("user", key)
		}
		return nil, storeError("failed to read user", err)
	}
	user.Normalize()
	return &user, nil
}

func (r *UserRepository) ReadAll(ctx context.Context) (_ []models.User, err error) {
	defer track(r.collection, "read_all", time.Now(), &err)

	col, err := r.col(ctx)
	if err != nil {
		return nil, err
	}

	cursor, err := col.Find(ctx, bson.M{})
	if err != nil {
		return nil, storeError("failed to find users", err)
	}
	defer cursor.Close(ctx)

	users := []models.User{}
	if err = cursor.All(ctx, &users); err != nil {
		return nil, storeError("failed to decode users", err)
	}
	for i := range users {
		users[i].Normalize()
	}
	return users, nil
}

// Create registers a local user. The password is hashed before the insert
// and a taken username fails with ErrDuplicate.
func (r *UserRepository) Create(ctx context.Context, in models.UserInput) (_ *models.User, err error) {
	defer track(r.collection, "create", time.Now(), &err)

	if err := in.Validate(); err != nil {
		return nil, err
	}
	col, err := r.col(ctx)
	if err != nil {
		return nil, err
	}

	user := models.NewLocalUser(in, "", r.timestamp())
	if err := r.checkUsername(ctx, col, user.Username, bson.NilObjectID); err != nil {
		return nil, err
	}

	hash, err := r.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user.PasswordHash = hash

	if err := r.insert(ctx, col, user); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"user_id": user.ID.Hex(), "username": user.Username}).Info("User created")
	return user, nil
}

// FindOrCreateExternal returns the user linked to an identity provider
// account, creating it on first sign-in.
func (r *UserRepository) FindOrCreateExternal(ctx context.Context, provider, externalID, displayName string) (_ *models.User, created bool, err error) {
	defer track(r.collection, "find_or_create_external", time.Now(), &err)

	if provider == "" || externalID == "" {
		return nil, false, &models.FieldError{Field: "externalId", Reason: "is required", Err: ErrValidation}
	}
	col, err := r.col(ctx)
	if err != nil {
		return nil, false, err
	}

	var user models.User
	err = col.FindOne(ctx, bson.M{"provider": provider, "externalId": externalID}).Decode(&user)
	switch {
	case err == nil:
		user.Normalize()
		return &user, false, nil
	case !errors.Is(err, mongo.ErrNoDocuments):
		return nil, false, storeError("failed to read user", err)
	}

	fresh := models.NewExternalUser(provider, externalID, displayName, r.timestamp())
	if err := r.insert(ctx, col, fresh); err != nil {
		return nil, false, err
	}

	log.WithFields(log.Fields{"user_id": fresh.ID.Hex(), "provider": provider}).Info("External user created")
	return fresh, true, nil
}

func (r *UserRepository) insert(ctx context.Context, col database.Collection, user *models.User) error {
	res, err := col.InsertOne(ctx, user)
	if err != nil {
		return storeError("failed to create user", err)
	}
	oid, ok := res.InsertedID.(bson.ObjectID)
	if !ok {
		return fmt.Errorf("failed to create user: unexpected inserted id %T", res.InsertedID)
	}
	user.ID = oid
	return nil
}

// Update applies a patch of mutable fields. A "password" key is validated
// and stored as a fresh hash; it never reaches the store in plaintext.
func (r *UserRepository) Update(ctx context.Context, id string, patch map[string]any) (_ *models.User, err error) {
	defer track(r.collection, "update", time.Now(), &err)

	fields := maps.Clone(patch)
	password, hasPassword := fields["password"]
	delete(fields, "password")

	var set bson.D
	if len(fields) > 0 || !hasPassword {
		if set, err = models.DecodeUserPatch(fields); err != nil {
			return nil, err
		}
	}

	var plain string
	if hasPassword {
		var ok bool
		if plain, ok = password.(string); !ok {
			return nil, &models.FieldError{Field: "password", Reason: "must be a string", Err: ErrValidation}
		}
		if err := models.ValidatePassword(plain); err != nil {
			return nil, err
		}
	}

	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	col, err := r.col(ctx)
	if err != nil {
		return nil, err
	}

	for _, e := range set {
		if e.Key == "username" {
			if err := r.checkUsername(ctx, col, e.Value.(string), oid); err != nil {
				return nil, err
			}
		}
	}

	if hasPassword {
		hash, err := r.hasher.Hash(plain)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		set = append(set, bson.E{Key: "passwordHash", Value: hash})
	}
	set = append(set, bson.E{Key: "updatedAt", Value: r.timestamp()})

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var user models.User
	if err := col.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFound("user", id)
		}
		return nil, storeError("failed to update user", err)
	}
	user.Normalize()
	return &user, nil
}

// checkUsername fails with ErrDuplicate when another user already holds
// username. The unique index is the final guard on a live store.
func (r *UserRepository) checkUsername(ctx context.Context, col database.Collection, username string, self bson.ObjectID) error {
	filter := bson.M{"username": username}
	if !self.IsZero() {
		filter["_id"] = bson.M{"$ne": self}
	}
	n, err := col.CountDocuments(ctx, filter)
	if err != nil {
		return storeError("failed to check username", err)
	}
	if n > 0 {
		return fmt.Errorf("%w: username %q", ErrDuplicate, username)
	}
	return nil
}

func (r *UserRepository) Destroy(ctx context.Context, id string) (_ *models.User, err error) {
	defer track(r.collection, "destroy", time.Now(), &err)

	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	col, err := r.col(ctx)
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := col.FindOneAndDelete(ctx, bson.M{"_id": oid}).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFound("user", id)
		}
		return nil, storeError("failed to delete user", err)
	}
	user.Normalize()

	log.WithField("user_id", id).Info("User deleted")
	return &user, nil
}

func (r *UserRepository) Count(ctx context.Context) (_ int64, err error) {
	defer track(r.collection, "count", time.Now(), &err)

	col, err := r.col(ctx)
	if err != nil {
		return 0, err
	}
	count, err := col.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, storeError("failed to count users", err)
	}
	return count, nil
}
