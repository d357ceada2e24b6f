// Package papers генерирует экзаменационные работы и ведёт архив пользователя:
// сохранение после генерации, список, удаление, открытие из архива,
// выгрузку и правку открытой работы.
package papers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/questgen/internal/lib/metrics"
	"github.com/magabrotheeeer/questgen/internal/lib/sl"
	"github.com/magabrotheeeer/questgen/internal/models"
	"github.com/magabrotheeeer/questgen/internal/services/entitlement"
	"github.com/magabrotheeeer/questgen/internal/services/generator"
	"github.com/magabrotheeeer/questgen/internal/session"
	"github.com/magabrotheeeer/questgen/internal/storage/repository"
)

var (
	// ErrGenerationFailed - генератор вернул ошибку или пустой результат.
	ErrGenerationFailed = errors.New("failed to generate paper, please try again")
	// ErrCorruptedPaper - сохранённая работа пуста или не разбирается.
	ErrCorruptedPaper = errors.New("saved paper appears to be empty or corrupted")
	// ErrPaperNotFound - работа не найдена или принадлежит другому пользователю.
	ErrPaperNotFound = errors.New("paper not found")
)

// PaperRepository хранит архив работ.
type PaperRepository interface {
	Papers(ctx context.Context) ([]models.SavedPaper, error)
	Paper(ctx context.Context, id string) (models.SavedPaper, error)
	AddPaper(ctx context.Context, paper models.SavedPaper) error
	ReplacePaper(ctx context.Context, paper models.SavedPaper) error
	DeletePaper(ctx context.Context, id string, owner models.UserRef) error
}

// UsageRecorder фиксирует успешную генерацию в счётчике пользователя.
type UsageRecorder interface {
	Record(ctx context.Context, user models.User, now time.Time) (models.User, entitlement.Decision, error)
}

// Sessions - открытые сессии пользователей.
type Sessions interface {
	Open(user models.User) *session.Session
	Refresh(user models.User)
}

// Service реализует операции с работами.
type Service struct {
	repo     PaperRepository
	gen      generator.Generator
	usage    UsageRecorder
	sessions Sessions
	metrics  *metrics.Metrics
	log      *slog.Logger
	now      func() time.Time
}

// New создаёт Service.
func New(repo PaperRepository, gen generator.Generator, usage UsageRecorder, sessions Sessions, m *metrics.Metrics, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		gen:      gen,
		usage:    usage,
		sessions: sessions,
		metrics:  m,
		log:      log,
		now:      time.Now,
	}
}

// Now возвращает текущее время сервиса.
func (s *Service) Now() time.Time {
	return s.now()
}

// GenerateResult - результат успешной генерации.
type GenerateResult struct {
	Paper models.SavedPaper    `json:"paper"`
	Usage entitlement.Decision `json:"usage"`
	Saved bool                 `json:"saved"`
}

// Generate проверяет доступ, запрашивает вопросы у генератора, увеличивает счётчик
// и сохраняет работу в архив. При отказе или сбое генератора состояние не меняется.
func (s *Service) Generate(ctx context.Context, user models.User, req models.GenerationRequest) (GenerateResult, error) {
	const op = "papers.Generate"
	log := s.log.With(slog.String("op", op), slog.String("email", user.Email))

	decision := entitlement.CanGenerate(user, s.now())
	if !decision.Allowed {
		s.metrics.Denials.WithLabelValues("generate", decision.Reason).Inc()
		log.Info("generation denied", slog.String("reason", decision.Reason))
		return GenerateResult{Usage: decision}, fmt.Errorf("%s: %w", op, decision.Err())
	}

	questions, err := s.gen.Generate(ctx, generator.Request{
		Blueprint:  req.Blueprint,
		ClassLevel: req.ClassLevel,
		Subject:    req.Subject,
		Context:    req.Context,
	})
	if err != nil || len(questions) == 0 {
		s.metrics.Generations.WithLabelValues("failed").Inc()
		if err != nil {
			log.Error("generator failed", sl.Err(err))
		} else {
			log.Error("generator returned no questions")
		}
		return GenerateResult{Usage: decision}, fmt.Errorf("%s: %w", op, ErrGenerationFailed)
	}

	questions = attachUploadedImages(questions, req.Blueprint)

	header := req.Header
	if header.ClassLevel == "" {
		header.ClassLevel = req.ClassLevel
	}
	if header.Subject == "" {
		header.Subject = req.Subject
	}
	header.MaxMarks = models.TotalMarks(questions)
	header = withHeaderFallbacks(header, user, req.ClassLevel, req.Subject, questions)

	updated, recheck, err := s.usage.Record(ctx, user, s.now())
	if err != nil {
		if errors.Is(err, entitlement.ErrDenied) {
			// лимит исчерпан параллельным запросом, пока шла генерация
			s.metrics.Denials.WithLabelValues("generate", recheck.Reason).Inc()
			log.Info("generation denied on usage record", slog.String("reason", recheck.Reason))
			return GenerateResult{Usage: recheck}, fmt.Errorf("%s: %w", op, err)
		}
		log.Error("failed to record usage", sl.Err(err))
		return GenerateResult{Usage: decision}, fmt.Errorf("%s: %w", op, err)
	}
	s.sessions.Refresh(updated)

	paper := models.SavedPaper{
		ID:         uuid.NewString(),
		UserID:     user.ID,
		UserName:   user.Name,
		UserEmail:  user.Email,
		CreatedAt:  s.now(),
		Header:     &header,
		Questions:  questions,
		Blueprint:  req.Blueprint,
		ClassLevel: req.ClassLevel,
		Subject:    req.Subject,
	}

	result := GenerateResult{Paper: paper, Usage: entitlement.Usage(updated), Saved: true}
	if err := s.repo.AddPaper(ctx, paper); err != nil {
		// работа уже показана пользователю, счётчик не откатывается
		log.Error("failed to save paper", sl.Err(err))
		result.Saved = false
	}

	sess := s.sessions.Open(updated)
	_ = sess.WithWorkspace(func(_ models.User, w *session.Workspace) error {
		w.OpenGenerated(paper)
		return nil
	})

	s.metrics.Generations.WithLabelValues("success").Inc()
	log.Info("paper generated",
		slog.String("paper_id", paper.ID),
		slog.Int("questions", len(questions)),
		slog.Int("papers_generated", updated.PapersGenerated),
	)
	return result, nil
}

// attachUploadedImages копирует загруженные пользователем изображения плана в связанные вопросы.
func attachUploadedImages(questions []models.GeneratedQuestion, blueprint []models.BlueprintItem) []models.GeneratedQuestion {
	images := make(map[string]string, len(blueprint))
	for _, b := range blueprint {
		if b.UserUploadedImage != "" {
			images[b.ID] = b.UserUploadedImage
		}
	}
	out := make([]models.GeneratedQuestion, len(questions))
	for i, q := range questions {
		if img, ok := images[q.BlueprintID]; ok {
			q.ImageURL = img
		}
		out[i] = q
	}
	return out
}

// List возвращает работы пользователя, администратору - все работы.
func (s *Service) List(ctx context.Context, user models.User) ([]models.SavedPaper, error) {
	const op = "papers.List"

	all, err := s.repo.Papers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if user.IsAdmin() {
		return all, nil
	}
	ref := user.Ref()
	own := make([]models.SavedPaper, 0, len(all))
	for _, p := range all {
		if ref.Matches(models.User{ID: p.UserID, Email: p.UserEmail}) {
			own = append(own, p)
		}
	}
	return own, nil
}

// Delete удаляет работу пользователя. Администратор может удалить любую работу.
func (s *Service) Delete(ctx context.Context, user models.User, id string) error {
	const op = "papers.Delete"

	owner := user.Ref()
	if user.IsAdmin() {
		owner = models.UserRef{}
	}
	if err := s.repo.DeletePaper(ctx, id, owner); err != nil {
		if errors.Is(err, repository.ErrPaperNotFound) {
			return fmt.Errorf("%s: %w", op, ErrPaperNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	sess := s.sessions.Open(user)
	_ = sess.WithWorkspace(func(_ models.User, w *session.Workspace) error {
		w.Close(id)
		return nil
	})
	s.log.Info("paper deleted", slog.String("op", op), slog.String("paper_id", id), slog.String("email", user.Email))
	return nil
}
