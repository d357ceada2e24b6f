package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/questgen/internal/models"
)

func TestManager_OpenGetRefresh(t *testing.T) {
	m := NewManager()
	user := models.User{ID: "u1", Email: "asha@school.in", SubscriptionPlan: models.PlanFree}

	s := m.Open(user)
	got, ok := m.Get(models.UserRef{ID: "u1"})
	require.True(t, ok)
	assert.Same(t, s, got)

	got, ok = m.Get(models.UserRef{Email: "ASHA@school.in"})
	require.True(t, ok)
	assert.Same(t, s, got)

	user.SubscriptionPlan = models.PlanYearly
	m.Refresh(user)
	assert.Equal(t, models.PlanYearly, s.User().SubscriptionPlan)

	m.Refresh(models.User{ID: "u2", Email: "other@school.in"})
	_, ok = m.Get(models.UserRef{ID: "u2"})
	assert.False(t, ok)

	m.Close(user.Ref())
	_, ok = m.Get(user.Ref())
	assert.False(t, ok)
}

func TestManager_RefreshIgnoresRecordWithoutID(t *testing.T) {
	m := NewManager()
	current := models.User{ID: "u1", Name: "Asha", Email: "asha@school.in", SchoolName: "DPS Pune"}
	s := m.Open(current)

	m.Refresh(models.User{Name: "Old Asha", Email: "asha@school.in", SchoolName: "Legacy School"})
	assert.Equal(t, current, s.User())

	// сессия, открытая по email, обновляется только записью без ID
	legacy := m.Open(models.User{Email: "old@school.in"})
	m.Refresh(models.User{ID: "u7", Email: "old@school.in", Name: "New"})
	assert.Empty(t, legacy.User().Name)
	m.Refresh(models.User{Email: "OLD@school.in", Name: "Old"})
	assert.Equal(t, "Old", legacy.User().Name)
}

func TestManager_ReopenKeepsWorkspace(t *testing.T) {
	m := NewManager()
	user := models.User{ID: "u1", Email: "asha@school.in"}
	s := m.Open(user)
	require.NoError(t, s.WithWorkspace(func(_ models.User, w *Workspace) error {
		w.OpenGenerated(models.SavedPaper{ID: "p1", Questions: []models.GeneratedQuestion{{ID: "q1"}}})
		return nil
	}))

	user.PapersGenerated = 1
	again := m.Open(user)
	assert.Same(t, s, again)
	assert.Equal(t, 1, again.User().PapersGenerated)
	_ = again.WithWorkspace(func(_ models.User, w *Workspace) error {
		assert.Equal(t, StateEditing, w.State())
		return nil
	})
}

func TestManager_ConcurrentRefresh(t *testing.T) {
	m := NewManager()
	s := m.Open(models.User{ID: "u1", Email: "asha@school.in"})

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			m.Refresh(models.User{ID: "u1", Email: "asha@school.in", PapersGenerated: n})
			_ = s.User()
		}(i)
	}
	wg.Wait()
}

func TestWorkspace_LoadStateMachine(t *testing.T) {
	var w Workspace
	assert.Equal(t, StateIdle, w.State())

	require.NoError(t, w.BeginLoad())
	assert.ErrorIs(t, w.BeginLoad(), ErrLoadInProgress)

	// во время загрузки смена класса не трогает шапку
	assert.False(t, w.SelectClassSubject("10", "Physics"))

	header := &models.PaperHeader{SchoolName: "DPS", ClassLevel: "9", Subject: "Maths"}
	w.CompleteLoad(models.SavedPaper{ID: "p1", Header: header, Questions: []models.GeneratedQuestion{{ID: "q1"}}})
	assert.Equal(t, StateEditing, w.State())
	assert.Equal(t, "Maths", w.Header().Subject)

	paper, archived, err := w.Current()
	require.NoError(t, err)
	assert.True(t, archived)
	assert.Equal(t, "p1", paper.ID)

	// вопросы есть, шапка не сбрасывается
	assert.False(t, w.SelectClassSubject("10", "Physics"))
	assert.Equal(t, "9", w.Header().ClassLevel)

	w.Close("p1")
	assert.Equal(t, StateIdle, w.State())
	_, _, err = w.Current()
	assert.ErrorIs(t, err, ErrNoPaper)
}

func TestWorkspace_AbortLoad(t *testing.T) {
	var w Workspace
	require.NoError(t, w.BeginLoad())
	w.AbortLoad()
	assert.Equal(t, StateIdle, w.State())

	w.OpenGenerated(models.SavedPaper{ID: "p1"})
	require.NoError(t, w.BeginLoad())
	w.AbortLoad()
	assert.Equal(t, StateEditing, w.State())

	_, archived, err := w.Current()
	require.NoError(t, err)
	assert.False(t, archived)
}

func TestWorkspace_SelectClassSubjectWhenEmpty(t *testing.T) {
	var w Workspace
	assert.True(t, w.SelectClassSubject("10", "Physics"))
	assert.Equal(t, "10", w.Header().ClassLevel)
	assert.Equal(t, "Physics", w.Header().Subject)

	assert.ErrorIs(t, w.Replace(models.SavedPaper{}), ErrNoPaper)
}
