package papers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/questgen/internal/lib/sl"
	"github.com/magabrotheeeer/questgen/internal/models"
	"github.com/magabrotheeeer/questgen/internal/services/entitlement"
	"github.com/magabrotheeeer/questgen/internal/session"
	"github.com/magabrotheeeer/questgen/internal/storage/repository"
)

// Значения шапки по умолчанию для работ, сохранённых без неё.
const (
	DefaultSchoolName   = "YOUR SCHOOL NAME"
	DefaultExamName     = "EXAMINATION"
	DefaultClassLevel   = "9"
	DefaultTimeAllowed  = "3 Hours"
	DefaultInstructions = "All questions are compulsory."
)

// ErrInvalidEdit - правка оставляет работу без вопросов.
var ErrInvalidEdit = errors.New("edited paper must keep at least one question")

// OpenPaper - работа, открытая в рабочей области пользователя.
type OpenPaper struct {
	Paper    models.SavedPaper    `json:"paper"`
	Archived bool                 `json:"loaded_from_archive"`
	ViewOnly bool                 `json:"view_only"`
	Access   entitlement.Decision `json:"access"`
}

func withHeaderFallbacks(h models.PaperHeader, user models.User, classLevel, subject string, questions []models.GeneratedQuestion) models.PaperHeader {
	if h.SchoolName == "" {
		h.SchoolName = user.SchoolName
	}
	if h.SchoolName == "" {
		h.SchoolName = DefaultSchoolName
	}
	if h.ExamName == "" {
		h.ExamName = DefaultExamName
	}
	if h.ClassLevel == "" {
		h.ClassLevel = classLevel
	}
	if h.ClassLevel == "" {
		h.ClassLevel = DefaultClassLevel
	}
	if h.Subject == "" {
		h.Subject = subject
	}
	if h.TimeAllowed == "" {
		h.TimeAllowed = DefaultTimeAllowed
	}
	if h.GeneralInstructions == "" {
		h.GeneralInstructions = DefaultInstructions
	}
	if h.MaxMarks == 0 {
		h.MaxMarks = models.TotalMarks(questions)
	}
	return h
}

func openPaper(user models.User, paper models.SavedPaper, archived bool) OpenPaper {
	access := entitlement.CanDownloadOrEdit(user, archived)
	return OpenPaper{Paper: paper, Archived: archived, ViewOnly: !access.Allowed, Access: access}
}

// Load открывает работу id из архива. Повреждённая работа отклоняется,
// рабочая область при этом остаётся в прежнем состоянии.
func (s *Service) Load(ctx context.Context, user models.User, id string) (OpenPaper, error) {
	const op = "papers.Load"
	log := s.log.With(slog.String("op", op), slog.String("paper_id", id))

	sess := s.sessions.Open(user)
	if err := sess.WithWorkspace(func(_ models.User, w *session.Workspace) error {
		return w.BeginLoad()
	}); err != nil {
		return OpenPaper{}, fmt.Errorf("%s: %w", op, err)
	}

	paper, err := s.fetch(ctx, user, id)
	if err != nil {
		_ = sess.WithWorkspace(func(_ models.User, w *session.Workspace) error {
			w.AbortLoad()
			return nil
		})
		if errors.Is(err, ErrCorruptedPaper) {
			log.Warn("corrupted paper rejected", sl.Err(err))
		}
		return OpenPaper{}, fmt.Errorf("%s: %w", op, err)
	}

	header := models.PaperHeader{}
	if paper.Header != nil {
		header = *paper.Header
	}
	header = withHeaderFallbacks(header, user, paper.ClassLevel, paper.Subject, paper.Questions)
	paper.Header = &header

	var current models.User
	_ = sess.WithWorkspace(func(u models.User, w *session.Workspace) error {
		w.CompleteLoad(paper)
		current = u
		return nil
	})
	return openPaper(current, paper, true), nil
}

func (s *Service) fetch(ctx context.Context, user models.User, id string) (models.SavedPaper, error) {
	paper, err := s.repo.Paper(ctx, id)
	switch {
	case errors.Is(err, repository.ErrPaperNotFound):
		return models.SavedPaper{}, ErrPaperNotFound
	case errors.Is(err, repository.ErrPaperUndecodable):
		return models.SavedPaper{}, fmt.Errorf("%w: %v", ErrCorruptedPaper, err)
	case err != nil:
		return models.SavedPaper{}, err
	}
	if !user.IsAdmin() && !paper.OwnerRef().Matches(user) {
		return models.SavedPaper{}, ErrPaperNotFound
	}
	if err := paper.Validate(); err != nil {
		return models.SavedPaper{}, fmt.Errorf("%w: %v", ErrCorruptedPaper, err)
	}
	return paper, nil
}

// Current возвращает открытую работу.
func (s *Service) Current(user models.User) (OpenPaper, error) {
	const op = "papers.Current"

	var result OpenPaper
	err := s.sessions.Open(user).WithWorkspace(func(u models.User, w *session.Workspace) error {
		paper, archived, err := w.Current()
		if err != nil {
			return err
		}
		result = openPaper(u, paper, archived)
		return nil
	})
	if err != nil {
		return OpenPaper{}, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// Export возвращает открытую работу для выгрузки, если тариф это позволяет.
func (s *Service) Export(user models.User) (OpenPaper, error) {
	const op = "papers.Export"

	current, err := s.Current(user)
	if err != nil {
		return OpenPaper{}, fmt.Errorf("%s: %w", op, err)
	}
	if !current.Access.Allowed {
		s.metrics.Denials.WithLabelValues("export", current.Access.Reason).Inc()
		return current, fmt.Errorf("%s: %w", op, current.Access.Err())
	}
	return current, nil
}

// Edit - изменения открытой работы.
type Edit struct {
	Header    *models.PaperHeader        `json:"header,omitempty"`
	Questions []models.GeneratedQuestion `json:"questions,omitempty"`
}

// Update применяет правку к открытой работе и сохраняет её в архив.
func (s *Service) Update(ctx context.Context, user models.User, edit Edit) (OpenPaper, error) {
	const op = "papers.Update"

	current, err := s.Current(user)
	if err != nil {
		return OpenPaper{}, fmt.Errorf("%s: %w", op, err)
	}
	if !current.Access.Allowed {
		s.metrics.Denials.WithLabelValues("edit", current.Access.Reason).Inc()
		return current, fmt.Errorf("%s: %w", op, current.Access.Err())
	}

	paper := current.Paper
	if edit.Questions != nil {
		if len(edit.Questions) == 0 {
			return OpenPaper{}, fmt.Errorf("%s: %w", op, ErrInvalidEdit)
		}
		paper.Questions = edit.Questions
	}
	if edit.Header != nil {
		h := *edit.Header
		paper.Header = &h
	}

	if err := s.repo.ReplacePaper(ctx, paper); err != nil {
		if errors.Is(err, repository.ErrPaperNotFound) {
			return OpenPaper{}, fmt.Errorf("%s: %w", op, ErrPaperNotFound)
		}
		return OpenPaper{}, fmt.Errorf("%s: %w", op, err)
	}

	var result OpenPaper
	err = s.sessions.Open(user).WithWorkspace(func(u models.User, w *session.Workspace) error {
		if err := w.Replace(paper); err != nil {
			return err
		}
		result = openPaper(u, paper, current.Archived)
		return nil
	})
	if err != nil {
		return OpenPaper{}, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// SelectClassSubject меняет класс и предмет в рабочей области.
func (s *Service) SelectClassSubject(user models.User, classLevel, subject string) (models.PaperHeader, bool) {
	var (
		header models.PaperHeader
		reset  bool
	)
	_ = s.sessions.Open(user).WithWorkspace(func(_ models.User, w *session.Workspace) error {
		reset = w.SelectClassSubject(classLevel, subject)
		header = w.Header()
		return nil
	})
	return header, reset
}
