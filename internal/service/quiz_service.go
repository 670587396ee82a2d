package service

import (
	"context"
	"fmt"

	"github.com/chingu-voyage4/Bears-Team-0/internal/cache"
	"github.com/chingu-voyage4/Bears-Team-0/internal/event"
	"github.com/chingu-voyage4/Bears-Team-0/internal/models"
	"github.com/chingu-voyage4/Bears-Team-0/internal/repository"
	log "github.com/sirupsen/logrus"
)

// QuizService puts the popular cache and event publishing around the quiz
// repository. Neither side channel can fail a request: their errors are
// logged and the repository result is returned as is.
type QuizService struct {
	Repo      *repository.QuizRepository
	Cache     cache.PopularCache
	Publisher event.Publisher
}

func NewQuizService(repo *repository.QuizRepository, popular cache.PopularCache, publisher event.Publisher) *QuizService {
	if popular == nil {
		popular = cache.Nop{}
	}
	return &QuizService{Repo: repo, Cache: popular, Publisher: publisher}
}

func (s *QuizService) GetQuiz(ctx context.Context, id string) (*models.Quiz, error) {
	return s.Repo.Read(ctx, id)
}

func (s *QuizService) ListQuizzes(ctx context.Context) ([]models.Quiz, error) {
	return s.Repo.ReadAll(ctx)
}

func (s *QuizService) ListUserQuizzes(ctx context.Context, authorID string) ([]models.Quiz, error) {
	return s.Repo.ReadUserQuizzes(ctx, authorID)
}

func (s *QuizService) CountQuizzes(ctx context.Context) (int64, error) {
	return s.Repo.Count(ctx)
}

// PopularQuizzes serves the ranking from the cache when it can and fills
// the cache after a store read. The fill is written under the generation
// seen before the read, so a mutation that lands in between hides it.
func (s *QuizService) PopularQuizzes(ctx context.Context) ([]models.Quiz, error) {
	cached, generation, ok, cacheErr := s.Cache.GetPopular(ctx)
	if cacheErr != nil {
		log.WithError(cacheErr).Warn("Popular quiz cache read failed")
	}
	if ok {
		return cached, nil
	}

	quizzes, err := s.Repo.ReadPopular(ctx)
	if err != nil {
		return nil, err
	}
	if cacheErr != nil {
		return quizzes, nil
	}
	if err := s.Cache.SetPopular(ctx, generation, quizzes); err != nil {
		log.WithError(err).Warn("Popular quiz cache write failed")
	}
	return quizzes, nil
}

func (s *QuizService) CreateQuiz(ctx context.Context, author string, in models.QuizInput) (*models.Quiz, error) {
	quiz, err := s.Repo.Create(ctx, author, in)
	if err != nil {
		return nil, err
	}
	s.changed(ctx, event.QuizCreated, quiz)
	return quiz, nil
}

func (s *QuizService) UpdateQuiz(ctx context.Context, id string, patch map[string]any) (*models.Quiz, error) {
	quiz, err := s.Repo.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.changed(ctx, event.QuizUpdated, quiz)
	return quiz, nil
}

func (s *QuizService) UpdateFavorites(ctx context.Context, id string, delta int) (*models.Quiz, error) {
	quiz, err := s.Repo.UpdateFavorites(ctx, id, delta)
	if err != nil {
		return nil, err
	}
	s.changed(ctx, event.QuizFavorited, quiz)
	return quiz, nil
}

func (s *QuizService) DeleteQuiz(ctx context.Context, id string) (*models.Quiz, error) {
	quiz, err := s.Repo.Destroy(ctx, id)
	if err != nil {
		return nil, err
	}
	s.changed(ctx, event.QuizDeleted, quiz)
	return quiz, nil
}

func (s *QuizService) AddQuestion(ctx context.Context, id string, question models.Question) (*models.Quiz, error) {
	quiz, err := s.Repo.AddQuestion(ctx, id, question)
	if err != nil {
		return nil, err
	}
	s.changed(ctx, event.QuizQuestionAdded, quiz)
	return quiz, nil
}

// SubmitAnswer grades an answer to one question and records the attempt.
func (s *QuizService) SubmitAnswer(ctx context.Context, id string, index int, answer string) (*models.Quiz, bool, error) {
	quiz, err := s.Repo.Read(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if index < 0 || index >= len(quiz.Questions) {
		return nil, false, &models.FieldError{
			Field:  "questionIndex",
			Reason: fmt.Sprintf("must be between 0 and %d", len(quiz.Questions)-1),
			Err:    models.ErrValidation,
		}
	}

	correct := quiz.Questions[index].IsCorrect(answer)
	updated, err := s.Repo.RecordAttempt(ctx, id, index, correct)
	if err != nil {
		return nil, false, err
	}
	s.changed(ctx, event.QuizAttempted, updated)
	return updated, correct, nil
}

func (s *QuizService) changed(ctx context.Context, t event.EventType, quiz *models.Quiz) {
	if err := s.Cache.Invalidate(ctx); err != nil {
		log.WithError(err).Warn("Popular quiz cache invalidation failed")
	}
	if s.Publisher == nil {
		return
	}
	if err := s.Publisher.PublishQuizEvent(ctx, t, quiz); err != nil {
		log.WithFields(log.Fields{"event": t, "quiz_id": quiz.ID.Hex()}).WithError(err).Error("Failed to publish quiz event")
	}
}
