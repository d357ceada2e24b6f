package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/questgen/internal/lib/sl"
	"github.com/magabrotheeeer/questgen/internal/models"
)

// paperKey - поля, по которым элемент архива опознаётся без полного разбора.
type paperKey struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	UserEmail string `json:"user_email"`
}

// loadRawPapers читает архив без разбора элементов, чтобы повреждённые записи
// сохранялись при перезаписи коллекции.
func (s *Storage) loadRawPapers(ctx context.Context) ([]json.RawMessage, error) {
	var raw []json.RawMessage
	if err := s.load(ctx, PapersKey, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Papers возвращает все разбираемые работы архива, повреждённые пропускаются.
func (s *Storage) Papers(ctx context.Context) ([]models.SavedPaper, error) {
	const op = "storage.Papers"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}
	log := s.log.With(slog.String("op", op))

	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, err := s.loadRawPapers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	papers := make([]models.SavedPaper, 0, len(raw))
	for i, r := range raw {
		var p models.SavedPaper
		if err := json.Unmarshal(r, &p); err != nil {
			log.Warn("skip undecodable paper", slog.Int("index", i), sl.Err(err))
			continue
		}
		papers = append(papers, p)
	}
	return papers, nil
}

// Paper возвращает работу по ID.
// Для элемента с этим ID, который не удаётся разобрать, возвращается ErrPaperUndecodable.
func (s *Storage) Paper(ctx context.Context, id string) (models.SavedPaper, error) {
	const op = "storage.Paper"
	if err := ctxErr(ctx, op); err != nil {
		return models.SavedPaper{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, err := s.loadRawPapers(ctx)
	if err != nil {
		return models.SavedPaper{}, fmt.Errorf("%s: %w", op, err)
	}
	for _, r := range raw {
		var key paperKey
		if err := json.Unmarshal(r, &key); err != nil || key.ID != id {
			continue
		}
		var p models.SavedPaper
		if err := json.Unmarshal(r, &p); err != nil {
			return models.SavedPaper{}, fmt.Errorf("%s: %w: %v", op, ErrPaperUndecodable, err)
		}
		return p, nil
	}
	return models.SavedPaper{}, fmt.Errorf("%s: %w", op, ErrPaperNotFound)
}

// AddPaper добавляет работу в начало архива.
func (s *Storage) AddPaper(ctx context.Context, paper models.SavedPaper) error {
	const op = "storage.AddPaper"
	if err := ctxErr(ctx, op); err != nil {
		return err
	}

	data, err := json.Marshal(paper)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.loadRawPapers(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	raw = append([]json.RawMessage{data}, raw...)
	if err := s.save(ctx, PapersKey, raw); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ReplacePaper заменяет работу с тем же ID.
func (s *Storage) ReplacePaper(ctx context.Context, paper models.SavedPaper) error {
	const op = "storage.ReplacePaper"
	if err := ctxErr(ctx, op); err != nil {
		return err
	}

	data, err := json.Marshal(paper)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.loadRawPapers(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	for i, r := range raw {
		var key paperKey
		if err := json.Unmarshal(r, &key); err != nil || key.ID != paper.ID {
			continue
		}
		raw[i] = data
		if err := s.save(ctx, PapersKey, raw); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	}
	return fmt.Errorf("%s: %w", op, ErrPaperNotFound)
}

// DeletePaper удаляет работу id. Пустой owner снимает проверку владельца.
func (s *Storage) DeletePaper(ctx context.Context, id string, owner models.UserRef) error {
	const op = "storage.DeletePaper"
	if err := ctxErr(ctx, op); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.loadRawPapers(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	for i, r := range raw {
		var key paperKey
		if err := json.Unmarshal(r, &key); err != nil || key.ID != id {
			continue
		}
		if !owner.IsZero() && !paperOwnedBy(key, owner) {
			break
		}
		raw = append(raw[:i], raw[i+1:]...)
		if err := s.save(ctx, PapersKey, raw); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	}
	return fmt.Errorf("%s: %w", op, ErrPaperNotFound)
}

func paperOwnedBy(key paperKey, owner models.UserRef) bool {
	return owner.Matches(models.User{ID: key.UserID, Email: key.UserEmail})
}
