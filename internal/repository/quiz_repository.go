package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/chingu-voyage4/Bears-Team-0/internal/database"
	"github.com/chingu-voyage4/Bears-Team-0/internal/models"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	QuizCollection = "quizzes"

	// PopularLimit is how many quizzes ReadPopular returns.
	PopularLimit = 6

	// MaxFavoritesDelta bounds a single favorites change in either direction.
	MaxFavoritesDelta = math.MaxInt32
)

// popularSort ranks by favorites and breaks ties on the identifier so equal
// counts always come back in the same order.
var popularSort = bson.D{{Key: "favorites", Value: -1}, {Key: "_id", Value: 1}}

type QuizRepository struct {
	conn       database.Connector
	collection string
	now        func() time.Time
}

func NewQuizRepository(conn database.Connector) *QuizRepository {
	return &QuizRepository{conn: conn, collection: QuizCollection, now: time.Now}
}

func (r *QuizRepository) col(ctx context.Context) (database.Collection, error) {
	return r.conn.Collection(ctx, r.collection)
}

// timestamp is the current time at the precision the store keeps.
func (r *QuizRepository) timestamp() time.Time {
	return r.now().UTC().Truncate(time.Millisecond)
}

// EnsureIndexes creates the ranking and author indexes. It is a no-op for
// stores that are not a live MongoDB collection.
func (r *QuizRepository) EnsureIndexes(ctx context.Context) error {
	col, err := r.col(ctx)
	if err != nil {
		return err
	}
	mc, ok := col.(*mongo.Collection)
	if !ok {
		return nil
	}

	_, err = mc.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: popularSort},
		{Keys: bson.D{{Key: "author", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create quiz indexes: %w", err)
	}
	return nil
}

func (r *QuizRepository) Read(ctx context.Context, id string) (_ *models.Quiz, err error) {
	defer track(r.collection, "read", time.Now(), &err)

	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	col, err := r.col(ctx)
	if err != nil {
		return nil, err
	}

	var quiz models.Quiz
	if err := col.FindOne(ctx, bson.M{"_id": oid}).Decode(&quiz); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFound("quiz", id)
		}
		return nil, storeError("failed to read quiz", err)
	}
	quiz.Normalize()

	log.WithField("quiz_id", id).Debug("Quiz found")
	return &quiz, nil
}

// ReadAll returns every quiz in the store's natural order.
func (r *QuizRepository) ReadAll(ctx context.Context) (_ []models.Quiz, err error) {
	defer track(r.collection, "read_all", time.Now(), &err)
	return r.find(ctx, bson.M{})
}

func (r *QuizRepository) ReadUserQuizzes(ctx context.Context, authorID string) (_ []models.Quiz, err error) {
	defer track(r.collection, "read_user_quizzes", time.Now(), &err)
	return r.find(ctx, bson.M{"author": authorID})
}

// ReadPopular returns the PopularLimit most favorited quizzes, highest
// first, ties ordered by ascending identifier.
func (r *QuizRepository) ReadPopular(ctx context.Context) (_ []models.Quiz, err error) {
	defer track(r.collection, "read_popular", time.Now(), &err)

	opts := options.Find().
		SetSort(popularSort).
		SetLimit(PopularLimit)
	return r.find(ctx, bson.M{}, opts)
}

func (r *QuizRepository) find(ctx context.Context, filter any, opts ...options.Lister[options.FindOptions]) ([]models.Quiz, error) {
	col, err := r.col(ctx)
	if err != nil {
		return nil, err
	}

	cur, err := col.Find(ctx, filter, opts...)
	if err != nil {
		return nil, storeError("failed to find quizzes", err)
	}
	defer cur.Close(ctx)

	var quizzes []models.Quiz
	if err := cur.All(ctx, &quizzes); err != nil {
		return nil, storeError("failed to decode quizzes", err)
	}
	if quizzes == nil {
		quizzes = []models.Quiz{}
	}
	for i := range quizzes {
		quizzes[i].Normalize()
	}
	return quizzes, nil
}

// Create stores a new quiz and returns it with the identifier the store
// assigned.
func (r *QuizRepository) Create(ctx context.Context, author string, raw models.QuizInput) (_ *models.Quiz, err error) {
	defer track(r.collection, "create", time.Now(), &err)

	quiz, err := models.NewQuiz(author, raw, r.timestamp())
	if err != nil {
		return nil, err
	}
	col, err := r.col(ctx)
	if err != nil {
		return nil, err
	}

	res, err := col.InsertOne(ctx, quiz)
	if err != nil {
		return nil, storeError("failed to create quiz", err)
	}
	oid, ok := res.InsertedID.(bson.ObjectID)
	if !ok {
		return nil, fmt.Errorf("failed to create quiz: unexpected inserted id %T", res.InsertedID)
	}
	quiz.ID = oid

	log.WithFields(log.Fields{"quiz_id": oid.Hex(), "author": author}).Info("Quiz created")
	return quiz, nil
}

// Update replaces the patched fields wholesale. The patch is checked against
// the quiz schema before the store is touched, so a rejected patch never
// causes a partial write. Concurrent updates are last-writer-wins per key.
func (r *QuizRepository) Update(ctx context.Context, id string, patch map[string]any) (_ *models.Quiz, err error) {
	defer track(r.collection, "update", time.Now(), &err)

	set, err := models.DecodeQuizPatch(patch)
	if err != nil {
		return nil, err
	}
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	col, err := r.col(ctx)
	if err != nil {
		return nil, err
	}

	now := r.timestamp()
	set = append(set, bson.E{Key: "updatedDate", Value: now})
	update := bson.M{
		"$set":  set,
		"$push": bson.M{"datesUpdated": now},
	}

	return r.findOneAndUpdate(ctx, col, id, bson.M{"_id": oid}, update)
}

// UpdateFavorites adds delta to the favorites counter in one atomic
// increment-and-fetch. A change that would take the counter below zero or
// past the int64 range is rejected by the same operation.
func (r *QuizRepository) UpdateFavorites(ctx context.Context, id string, delta int) (_ *models.Quiz, err error) {
	defer track(r.collection, "update_favorites", time.Now(), &err)

	if delta < -MaxFavoritesDelta || delta > MaxFavoritesDelta {
		return nil, &models.FieldError{
			Field:  "delta",
			Reason: fmt.Sprintf("must be between %d and %d", -MaxFavoritesDelta, MaxFavoritesDelta),
			Err:    ErrValidation,
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

	step := int64(delta)
	filter := bson.M{"_id": oid}
	reason := ""
	switch {
	case step < 0:
		filter["favorites"] = bson.M{"$gte": -step}
		reason = "cannot go below zero"
	case step > 0:
		filter["favorites"] = bson.M{"$lte": math.MaxInt64 - step}
		reason = "would overflow"
	}
	update := bson.M{
		"$inc": bson.M{"favorites": step},
		"$set": bson.M{"updatedDate": r.timestamp()},
	}

	quiz, err := r.findOneAndUpdate(ctx, col, id, filter, update)
	if errors.Is(err, ErrNotFound) && step != 0 {
		if exists, cerr := r.exists(ctx, col, oid); cerr == nil && exists {
			return nil, &models.FieldError{Field: "favorites", Reason: reason, Err: ErrValidation}
		}
	}
	return quiz, err
}

// AddQuestion appends a question to the end of the quiz and returns the
// updated quiz.
func (r *QuizRepository) AddQuestion(ctx context.Context, id string, question models.Question) (_ *models.Quiz, err error) {
	defer track(r.collection, "add_question", time.Now(), &err)

	question.ClearAttempts()
	if err := models.ValidateQuestions([]models.Question{question}); err != nil {
		return nil, err
	}
	question.Normalize()

	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	col, err := r.col(ctx)
	if err != nil {
		return nil, err
	}

	now := r.timestamp()
	update := bson.M{
		"$push": bson.M{"questions": question, "datesUpdated": now},
		"$set":  bson.M{"updatedDate": now},
	}

	return r.findOneAndUpdate(ctx, col, id, bson.M{"_id": oid}, update)
}

// RecordAttempt counts one answer to the question at index, on the quiz
// totals and on the question itself, and stamps datesUsed.
func (r *QuizRepository) RecordAttempt(ctx context.Context, id string, index int, correct bool) (_ *models.Quiz, err error) {
	defer track(r.collection, "record_attempt", time.Now(), &err)

	if index < 0 {
		return nil, &models.FieldError{Field: "questionIndex", Reason: "cannot be negative", Err: ErrValidation}
	}
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	col, err := r.col(ctx)
	if err != nil {
		return nil, err
	}

	counter := "incorrectAttempts"
	if correct {
		counter = "correctAttempts"
	}
	question := fmt.Sprintf("questions.%d", index)
	perQuestion := question + "." + counter

	now := r.timestamp()
	filter := bson.M{"_id": oid, question: bson.M{"$exists": true}}
	update := bson.M{
		"$inc": bson.M{
			"totalAttempts": 1,
			counter:         1,
			perQuestion:     1,
		},
		"$push": bson.M{"datesUsed": now},
		"$set":  bson.M{"updatedDate": now},
	}

	quiz, err := r.findOneAndUpdate(ctx, col, id, filter, update)
	if errors.Is(err, ErrNotFound) {
		if exists, cerr := r.exists(ctx, col, oid); cerr == nil && exists {
			return nil, &models.FieldError{Field: "questionIndex", Reason: "is out of range", Err: ErrValidation}
		}
	}
	return quiz, err
}

// Destroy removes the quiz and returns its last stored state.
func (r *QuizRepository) Destroy(ctx context.Context, id string) (_ *models.Quiz, err error) {
	defer track(r.collection, "destroy", time.Now(), &err)

	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	col, err := r.col(ctx)
	if err != nil {
		return nil, err
	}

	var quiz models.Quiz
	if err := col.FindOneAndDelete(ctx, bson.M{"_id": oid}).Decode(&quiz); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFound("quiz", id)
		}
		return nil, storeError("failed to delete quiz", err)
	}
	quiz.Normalize()

	log.WithField("quiz_id", id).Info("Quiz deleted")
	return &quiz, nil
}

func (r *QuizRepository) Count(ctx context.Context) (_ int64, err error) {
	defer track(r.collection, "count", time.Now(), &err)

	col, err := r.col(ctx)
	if err != nil {
		return 0, err
	}
	count, err := col.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, storeError("failed to count quizzes", err)
	}
	return count, nil
}

func (r *QuizRepository) findOneAndUpdate(ctx context.Context, col database.Collection, id string, filter, update any) (*models.Quiz, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var quiz models.Quiz
	if err := col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&quiz); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFound("quiz", id)
		}
		return nil, storeError("failed to update quiz", err)
	}
	quiz.Normalize()
	return &quiz, nil
}

func (r *QuizRepository) exists(ctx context.Context, col database.Collection, oid bson.ObjectID) (bool, error) {
	n, err := col.CountDocuments(ctx, bson.M{"_id": oid})
	if err != nil {
		return false, storeError("failed to count quizzes", err)
	}
	return n > 0, nil
}
