package session

import (
	"errors"

	"github.com/magabrotheeeer/questgen/internal/models"
)

// State - состояние рабочей области пользователя.
type State int

const (
	// StateIdle - работа не открыта.
	StateIdle State = iota
	// StateLoadingPaper - идёт загрузка работы из архива.
	StateLoadingPaper
	// StateEditing - работа открыта для просмотра и правки.
	StateEditing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoadingPaper:
		return "loading_paper"
	case StateEditing:
		return "editing"
	default:
		return "unknown"
	}
}

var (
	// ErrLoadInProgress - загрузка другой работы ещё не завершилась.
	ErrLoadInProgress = errors.New("paper load already in progress")
	// ErrNoPaper - в рабочей области нет открытой работы.
	ErrNoPaper = errors.New("no paper is open")
)

// Workspace хранит открытую работу и состояние её загрузки.
// Методы не потокобезопасны, синхронизацию обеспечивает Session.
type Workspace struct {
	state       State
	paper       *models.SavedPaper
	fromArchive bool
	header      models.PaperHeader
}

// State возвращает текущее состояние.
func (w *Workspace) State() State {
	return w.state
}

// BeginLoad переводит рабочую область в состояние загрузки.
func (w *Workspace) BeginLoad() error {
	if w.state == StateLoadingPaper {
		return ErrLoadInProgress
	}
	w.state = StateLoadingPaper
	return nil
}

// CompleteLoad открывает загруженную из архива работу.
func (w *Workspace) CompleteLoad(paper models.SavedPaper) {
	w.paper = &paper
	w.fromArchive = true
	if paper.Header != nil {
		w.header = *paper.Header
	}
	w.state = StateEditing
}

// AbortLoad отменяет загрузку и возвращает предыдущее состояние.
func (w *Workspace) AbortLoad() {
	if w.state != StateLoadingPaper {
		return
	}
	if w.paper != nil {
		w.state = StateEditing
		return
	}
	w.state = StateIdle
}

// OpenGenerated открывает только что сгенерированную работу.
func (w *Workspace) OpenGenerated(paper models.SavedPaper) {
	w.paper = &paper
	w.fromArchive = false
	if paper.Header != nil {
		w.header = *paper.Header
	}
	w.state = StateEditing
}

// SelectClassSubject меняет класс и предмет шапки.
// Шапка сбрасывается к новым значениям, только если загрузка не идёт и вопросов ещё нет.
// Возвращает true, если шапка была сброшена.
func (w *Workspace) SelectClassSubject(classLevel, subject string) bool {
	if w.state == StateLoadingPaper || (w.paper != nil && len(w.paper.Questions) > 0) {
		return false
	}
	w.header = models.PaperHeader{
		SchoolName: w.header.SchoolName,
		ClassLevel: classLevel,
		Subject:    subject,
	}
	return true
}

// Header возвращает текущую шапку.
func (w *Workspace) Header() models.PaperHeader {
	return w.header
}

// Current возвращает открытую работу и признак того, что она открыта из архива.
func (w *Workspace) Current() (models.SavedPaper, bool, error) {
	if w.paper == nil || w.state != StateEditing {
		return models.SavedPaper{}, false, ErrNoPaper
	}
	return *w.paper, w.fromArchive, nil
}

// Replace обновляет открытую работу после правки.
func (w *Workspace) Replace(paper models.SavedPaper) error {
	if w.paper == nil || w.state != StateEditing {
		return ErrNoPaper
	}
	w.paper = &paper
	if paper.Header != nil {
		w.header = *paper.Header
	}
	return nil
}

// Close закрывает работу, если открыта работа id.
func (w *Workspace) Close(id string) {
	if w.paper == nil || w.paper.ID != id {
		return
	}
	w.paper = nil
	w.fromArchive = false
	if w.state == StateEditing {
		w.state = StateIdle
	}
}
