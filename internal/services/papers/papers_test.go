package papers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/questgen/internal/lib/metrics"
	"github.com/magabrotheeeer/questgen/internal/models"
	"github.com/magabrotheeeer/questgen/internal/services/entitlement"
	"github.com/magabrotheeeer/questgen/internal/services/generator"
	"github.com/magabrotheeeer/questgen/internal/services/usage"
	"github.com/magabrotheeeer/questgen/internal/session"
	"github.com/magabrotheeeer/questgen/internal/storage/memory"
	"github.com/magabrotheeeer/questgen/internal/storage/repository"
)

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, req generator.Request) ([]models.GeneratedQuestion, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.GeneratedQuestion), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

var fixedNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type fixture struct {
	svc      *Service
	repo     *repository.Storage
	kv       *memory.Storage
	gen      *MockGenerator
	sessions *session.Manager
}

func newFixture(t *testing.T, users ...models.User) *fixture {
	t.Helper()
	kv := memory.New()
	repo := repository.New(kv, newNoopLogger())
	for _, u := range users {
		require.NoError(t, repo.CreateUser(context.Background(), u))
	}
	gen := new(MockGenerator)
	sessions := session.NewManager()
	svc := New(repo, gen, usage.NewCounter(repo, newNoopLogger()), sessions, metrics.NewNoop(), newNoopLogger())
	svc.now = func() time.Time { return fixedNow }
	return &fixture{svc: svc, repo: repo, kv: kv, gen: gen, sessions: sessions}
}

func teacher(plan models.Plan, used int) models.User {
	return models.User{ID: "u1", Name: "Asha", Email: "asha@school.in", SchoolName: "DPS Pune", Role: models.RoleTeacher, SubscriptionPlan: plan, PapersGenerated: used}
}

var request = models.GenerationRequest{
	Blueprint: []models.BlueprintItem{
		{ID: "b1", Chapter: "Motion", Type: models.QuestionMCQ, Count: 1, MarksPerQuestion: 1},
		{ID: "b2", Chapter: "Force", Type: models.QuestionDiagram, Count: 1, MarksPerQuestion: 5, UserUploadedImage: "data:image/png;base64,AAA"},
	},
	ClassLevel: "9",
	Subject:    "Physics",
}

var generated = []models.GeneratedQuestion{
	{ID: "q1", BlueprintID: "b1", Marks: 1, QuestionText: "What is speed?"},
	{ID: "q2", BlueprintID: "b2", Marks: 5, QuestionText: "Draw a force diagram."},
}

func TestGenerate_FreeUserQuota(t *testing.T) {
	user := teacher(models.PlanFree, 0)
	f := newFixture(t, user)
	ctx := context.Background()
	f.gen.On("Generate", mock.Anything, mock.Anything).Return(generated, nil).Once()

	res, err := f.svc.Generate(ctx, user, request)
	require.NoError(t, err)
	assert.True(t, res.Saved)
	assert.Equal(t, 1, res.Usage.Used)
	assert.Equal(t, 0, res.Usage.Remaining)

	require.NotNil(t, res.Paper.Header)
	assert.Equal(t, 6, res.Paper.Header.MaxMarks)
	assert.Equal(t, "DPS Pune", res.Paper.Header.SchoolName)
	assert.Equal(t, DefaultExamName, res.Paper.Header.ExamName)
	assert.Equal(t, "Physics", res.Paper.Header.Subject)
	assert.Empty(t, res.Paper.Questions[0].ImageURL)
	assert.Equal(t, "data:image/png;base64,AAA", res.Paper.Questions[1].ImageURL)

	stored, err := f.repo.ResolveUser(ctx, user.Ref())
	require.NoError(t, err)
	assert.Equal(t, 1, stored.PapersGenerated)

	papers, err := f.repo.Papers(ctx)
	require.NoError(t, err)
	require.Len(t, papers, 1)

	// вторая генерация запрещена, генератор не вызывается
	_, err = f.svc.Generate(ctx, stored, request)
	assert.ErrorIs(t, err, entitlement.ErrDenied)
	assert.ErrorContains(t, err, "free trial limit reached (1)")
	f.gen.AssertNumberOfCalls(t, "Generate", 1)

	current, err := f.svc.Current(stored)
	require.NoError(t, err)
	assert.False(t, current.Archived)
	assert.True(t, current.Access.Allowed)
}

func TestGenerate_ConcurrentRequestsRespectQuota(t *testing.T) {
	user := teacher(models.PlanFree, 0)
	f := newFixture(t, user)
	ctx := context.Background()
	f.gen.On("Generate", mock.Anything, mock.Anything).Return(generated, nil).After(50 * time.Millisecond)

	const requests = 3
	errs := make([]error, requests)
	var wg sync.WaitGroup
	for i := range requests {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// каждый запрос видит запись, прочитанную до начала генерации
			_, errs[i] = f.svc.Generate(ctx, user, request)
		}()
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		assert.ErrorIs(t, err, entitlement.ErrDenied)
	}
	assert.Equal(t, 1, successes)

	stored, err := f.repo.ResolveUser(ctx, user.Ref())
	require.NoError(t, err)
	assert.Equal(t, 1, stored.PapersGenerated)

	papers, err := f.repo.Papers(ctx)
	require.NoError(t, err)
	assert.Len(t, papers, 1)
}

func TestGenerate_StaleUserDeniedOnRecord(t *testing.T) {
	user := teacher(models.PlanFree, 0)
	f := newFixture(t, user)
	ctx := context.Background()
	_, err := f.repo.UpdateUser(ctx, user.Ref(), usage.Increment)
	require.NoError(t, err)
	f.gen.On("Generate", mock.Anything, mock.Anything).Return(generated, nil).Once()

	res, err := f.svc.Generate(ctx, user, request)
	assert.ErrorIs(t, err, entitlement.ErrDenied)
	assert.False(t, res.Usage.Allowed)
	assert.Equal(t, "free trial limit reached (1)", res.Usage.Reason)

	papers, err := f.repo.Papers(ctx)
	require.NoError(t, err)
	assert.Empty(t, papers)

	_, err = f.svc.Current(user)
	assert.Error(t, err)
}

func TestGenerate_MonthlyQuota(t *testing.T) {
	expiry := fixedNow.AddDate(0, 0, 20)
	user := teacher(models.PlanMonthly, 0)
	user.SubscriptionExpiry = &expiry
	f := newFixture(t, user)
	ctx := context.Background()
	f.gen.On("Generate", mock.Anything, mock.Anything).Return(generated, nil)

	for i := range 5 {
		res, err := f.svc.Generate(ctx, user, request)
		require.NoError(t, err, "generation %d", i+1)
		user, err = f.repo.ResolveUser(ctx, user.Ref())
		require.NoError(t, err)
		assert.Equal(t, i+1, res.Usage.Used)
	}

	_, err := f.svc.Generate(ctx, user, request)
	assert.ErrorContains(t, err, "monthly limit reached (5)")
	assert.Equal(t, 5, user.PapersGenerated)
}

func TestGenerate_GeneratorFailureLeavesStateUntouched(t *testing.T) {
	tests := []struct {
		name      string
		questions []models.GeneratedQuestion
		err       error
	}{
		{name: "error", err: errors.New("quota exceeded")},
		{name: "empty result", questions: []models.GeneratedQuestion{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user := teacher(models.PlanFree, 0)
			f := newFixture(t, user)
			ctx := context.Background()
			if tt.err != nil {
				f.gen.On("Generate", mock.Anything, mock.Anything).Return(nil, tt.err).Once()
			} else {
				f.gen.On("Generate", mock.Anything, mock.Anything).Return(tt.questions, nil).Once()
			}

			_, err := f.svc.Generate(ctx, user, request)
			assert.ErrorIs(t, err, ErrGenerationFailed)

			stored, err := f.repo.ResolveUser(ctx, user.Ref())
			require.NoError(t, err)
			assert.Equal(t, 0, stored.PapersGenerated)
			papers, err := f.repo.Papers(ctx)
			require.NoError(t, err)
			assert.Empty(t, papers)
			txs, err := f.repo.Transactions(ctx)
			require.NoError(t, err)
			assert.Empty(t, txs)
		})
	}
}

func TestGenerate_PendingUpgradeDenied(t *testing.T) {
	user := teacher(models.PlanYearly, 0)
	user.PendingSubscriptionPlan = models.PlanMonthly
	f := newFixture(t, user)

	res, err := f.svc.Generate(context.Background(), user, request)
	assert.ErrorIs(t, err, entitlement.ErrDenied)
	assert.Equal(t, entitlement.ReasonPendingApproval, res.Usage.Reason)
	assert.True(t, res.Usage.UpgradeRequired)
	f.gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func savePaper(t *testing.T, f *fixture, paper models.SavedPaper) {
	t.Helper()
	require.NoError(t, f.repo.AddPaper(context.Background(), paper))
}

func TestLoad_ArchivedPaperOnFreePlanIsViewOnly(t *testing.T) {
	user := teacher(models.PlanFree, 1)
	f := newFixture(t, user)
	ctx := context.Background()
	savePaper(t, f, models.SavedPaper{
		ID: "p1", UserID: "u1", UserEmail: "asha@school.in", ClassLevel: "10", Subject: "Chemistry",
		Questions: []models.GeneratedQuestion{{ID: "q1", Marks: 3}, {ID: "q2", Marks: 4}},
	})

	opened, err := f.svc.Load(ctx, user, "p1")
	require.NoError(t, err)
	assert.True(t, opened.Archived)
	assert.True(t, opened.ViewOnly)

	h := opened.Paper.Header
	require.NotNil(t, h)
	assert.Equal(t, "DPS Pune", h.SchoolName)
	assert.Equal(t, "EXAMINATION", h.ExamName)
	assert.Equal(t, "10", h.ClassLevel)
	assert.Equal(t, "Chemistry", h.Subject)
	assert.Equal(t, "3 Hours", h.TimeAllowed)
	assert.Equal(t, "All questions are compulsory.", h.GeneralInstructions)
	assert.Equal(t, 7, h.MaxMarks)

	_, err = f.svc.Export(user)
	assert.ErrorIs(t, err, entitlement.ErrDenied)
	assert.ErrorContains(t, err, "upgrade required")

	_, err = f.svc.Update(ctx, user, Edit{Questions: []models.GeneratedQuestion{{ID: "q1"}}})
	assert.ErrorIs(t, err, entitlement.ErrDenied)
}

func TestLoad_YearlyCanExportAndEdit(t *testing.T) {
	user := teacher(models.PlanYearly, 0)
	f := newFixture(t, user)
	ctx := context.Background()
	savePaper(t, f, models.SavedPaper{
		ID: "p1", UserID: "u1", UserEmail: "asha@school.in",
		Header:    &models.PaperHeader{SchoolName: "KV", MaxMarks: 80},
		Questions: []models.GeneratedQuestion{{ID: "q1", Marks: 3}},
	})

	opened, err := f.svc.Load(ctx, user, "p1")
	require.NoError(t, err)
	assert.False(t, opened.ViewOnly)
	assert.Equal(t, 80, opened.Paper.Header.MaxMarks)
	assert.Equal(t, "KV", opened.Paper.Header.SchoolName)

	exported, err := f.svc.Export(user)
	require.NoError(t, err)
	assert.Equal(t, "p1", exported.Paper.ID)

	edited, err := f.svc.Update(ctx, user, Edit{Questions: []models.GeneratedQuestion{{ID: "q1", Marks: 3, QuestionText: "edited"}}})
	require.NoError(t, err)
	assert.Equal(t, "edited", edited.Paper.Questions[0].QuestionText)

	stored, err := f.repo.Paper(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "edited", stored.Questions[0].QuestionText)

	_, err = f.svc.Update(ctx, user, Edit{Questions: []models.GeneratedQuestion{}})
	assert.ErrorIs(t, err, ErrInvalidEdit)
}

func TestLoad_CorruptedPaper(t *testing.T) {
	user := teacher(models.PlanYearly, 0)
	f := newFixture(t, user)
	ctx := context.Background()
	savePaper(t, f, models.SavedPaper{ID: "good", UserID: "u1", UserEmail: "asha@school.in", Questions: []models.GeneratedQuestion{{ID: "q1"}}})
	savePaper(t, f, models.SavedPaper{ID: "empty", UserID: "u1", UserEmail: "asha@school.in"})

	_, err := f.svc.Load(ctx, user, "good")
	require.NoError(t, err)

	_, err = f.svc.Load(ctx, user, "empty")
	assert.ErrorIs(t, err, ErrCorruptedPaper)

	// рабочая область осталась с прежней работой
	current, err := f.svc.Current(user)
	require.NoError(t, err)
	assert.Equal(t, "good", current.Paper.ID)

	raw, _, err := f.kv.Get(ctx, repository.PapersKey)
	require.NoError(t, err)
	require.NoError(t, f.kv.Set(ctx, repository.PapersKey, raw[:len(raw)-1]+`,{"id":"broken","user_id":"u1","questions":{}}]`))

	_, err = f.svc.Load(ctx, user, "broken")
	assert.ErrorIs(t, err, ErrCorruptedPaper)

	papers, err := f.svc.List(ctx, user)
	require.NoError(t, err)
	assert.Len(t, papers, 2)
}

func TestLoad_ForeignPaperNotFound(t *testing.T) {
	user := teacher(models.PlanYearly, 0)
	f := newFixture(t, user)
	savePaper(t, f, models.SavedPaper{ID: "p2", UserID: "u2", UserEmail: "ravi@school.in", Questions: []models.GeneratedQuestion{{ID: "q1"}}})

	_, err := f.svc.Load(context.Background(), user, "p2")
	assert.ErrorIs(t, err, ErrPaperNotFound)

	_, err = f.svc.Current(user)
	assert.ErrorIs(t, err, session.ErrNoPaper)

	admin := models.User{ID: "a1", Email: "admin@questgen.in", Role: models.RoleAdmin, SubscriptionPlan: models.PlanFree}
	opened, err := f.svc.Load(context.Background(), admin, "p2")
	require.NoError(t, err)
	assert.False(t, opened.ViewOnly)
}

func TestListAndDelete(t *testing.T) {
	user := teacher(models.PlanFree, 0)
	f := newFixture(t, user)
	ctx := context.Background()
	savePaper(t, f, models.SavedPaper{ID: "p1", UserID: "u1", UserEmail: "asha@school.in", Questions: []models.GeneratedQuestion{{ID: "q1"}}})
	savePaper(t, f, models.SavedPaper{ID: "p2", UserID: "u2", UserEmail: "ravi@school.in", Questions: []models.GeneratedQuestion{{ID: "q1"}}})
	savePaper(t, f, models.SavedPaper{ID: "p3", UserEmail: "ASHA@school.in", Questions: []models.GeneratedQuestion{{ID: "q1"}}})

	own, err := f.svc.List(ctx, user)
	require.NoError(t, err)
	assert.Len(t, own, 2)

	admin := models.User{ID: "a1", Role: models.RoleAdmin}
	all, err := f.svc.List(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	assert.ErrorIs(t, f.svc.Delete(ctx, user, "p2"), ErrPaperNotFound)

	_, err = f.svc.Load(ctx, user, "p1")
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(ctx, user, "p1"))
	_, err = f.svc.Current(user)
	assert.ErrorIs(t, err, session.ErrNoPaper)

	require.NoError(t, f.svc.Delete(ctx, admin, "p2"))
	all, err = f.svc.List(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSelectClassSubject(t *testing.T) {
	user := teacher(models.PlanYearly, 0)
	f := newFixture(t, user)

	header, reset := f.svc.SelectClassSubject(user, "10", "Biology")
	assert.True(t, reset)
	assert.Equal(t, "Biology", header.Subject)

	savePaper(t, f, models.SavedPaper{ID: "p1", UserID: "u1", UserEmail: "asha@school.in", Subject: "Maths", Questions: []models.GeneratedQuestion{{ID: "q1"}}})
	_, err := f.svc.Load(context.Background(), user, "p1")
	require.NoError(t, err)

	header, reset = f.svc.SelectClassSubject(user, "11", "Physics")
	assert.False(t, reset)
	assert.Equal(t, "Maths", header.Subject)
}
