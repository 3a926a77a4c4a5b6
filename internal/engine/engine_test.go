package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifeboard/internal/dates"
	"lifeboard/internal/model"
)

// fakeRemote logs every call and can be told to fail specific routes once.
type fakeRemote struct {
	mu      sync.Mutex
	calls   []string
	failAt  map[string]int // route -> status to fail with (0 = transport)
	patches []model.Patch
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{failAt: map[string]int{}}
}

func (f *fakeRemote) failOnce(route string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAt[route] = status
}

func (f *fakeRemote) record(route string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, route)
	if status, ok := f.failAt[route]; ok {
		delete(f.failAt, route)
		return &RemoteError{Status: status, Route: route, Msg: "injected"}
	}
	return nil
}

func (f *fakeRemote) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeRemote) lastPatch() model.Patch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.patches[len(f.patches)-1]
}

func (f *fakeRemote) List(ctx context.Context, from, to string) ([]model.Task, error) {
	return nil, f.record("list")
}

func (f *fakeRemote) Graveyard(ctx context.Context) ([]model.Task, error) {
	return nil, f.record("graveyard")
}

func (f *fakeRemote) Create(ctx context.Context, t model.Task) (model.Task, error) {
	return t, f.record("POST /api/tasks")
}

func (f *fakeRemote) Patch(ctx context.Context, id model.TaskID, p model.Patch) (model.Task, error) {
	f.mu.Lock()
	f.patches = append(f.patches, p)
	f.mu.Unlock()
	return model.Task{}, f.record("PATCH /api/tasks/" + string(id))
}

func (f *fakeRemote) Delete(ctx context.Context, id model.TaskID) error {
	return f.record("DELETE /api/tasks/" + string(id))
}

func (f *fakeRemote) BatchPunt(ctx context.Context, ids []model.TaskID, sourceDate, targetDate string) error {
	return f.record("POST /api/tasks/batch/punt")
}

func (f *fakeRemote) BatchFail(ctx context.Context, ids []model.TaskID) error {
	return f.record("POST /api/tasks/batch/fail")
}

func (f *fakeRemote) BatchGraveyard(ctx context.Context, ids []model.TaskID) error {
	return f.record("POST /api/tasks/batch/graveyard")
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// 2026-03-10 is a Tuesday.
var testToday = fixedClock{t: dates.Noon("2026-03-10")}

type reportedError struct {
	status int
	route  string
}

type errorLog struct {
	mu   sync.Mutex
	errs []reportedError
}

func (l *errorLog) report(status int, route string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, reportedError{status: status, route: route})
}

func (l *errorLog) all() []reportedError {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]reportedError(nil), l.errs...)
}

// newTestEngine uses an hour-long debounce so timers never fire by
// themselves; tests drive pending calls with Flush.
func newTestEngine(remote *fakeRemote, errs *errorLog) *Engine {
	return New(Options{
		Remote:   remote,
		Debounce: time.Hour,
		OnError:  errs.report,
		Clock:    testToday,
	})
}

func seed(e *Engine, tasks, buried []model.Task) {
	e.mu.Lock()
	e.store.Replace(tasks, buried)
	e.mu.Unlock()
}

func dated(id, date string, cat model.Category, state model.State, ord string) model.Task {
	d := date
	return model.Task{
		ID:        model.TaskID(id),
		Text:      "task " + id,
		Date:      &d,
		Category:  cat,
		State:     state,
		Order:     ord,
		CreatedAt: dates.Noon(date),
	}
}

func TestAdd_AppendsAtEnd(t *testing.T) {
	remote := newFakeRemote()
	errs := &errorLog{}
	e := newTestEngine(remote, errs)
	seed(e, []model.Task{
		dated("a", "2026-03-10", model.CategoryLife, model.StateActive, "V"),
	}, nil)

	added := e.Add("2026-03-10", model.CategoryLife, "walk the dog")
	e.Wait()

	require.NotEmpty(t, added.ID)
	assert.Equal(t, model.StateActive, added.State)
	assert.Equal(t, dates.Noon("2026-03-10"), added.CreatedAt)
	assert.Greater(t, added.Order, "V")

	got := e.PartitionSorted(model.Partition{
		Date: "2026-03-10", Category: model.CategoryLife, State: model.StateActive,
	})
	require.Len(t, got, 2)
	assert.Equal(t, model.TaskID("a"), got[0].ID)
	assert.Equal(t, added.ID, got[1].ID)

	assert.Equal(t, []string{"POST /api/tasks"}, remote.callLog())
	assert.Empty(t, errs.all())
}

func TestAdd_FailureRollsBack(t *testing.T) {
	remote := newFakeRemote()
	remote.failOnce("POST /api/tasks", 500)
	errs := &errorLog{}
	e := newTestEngine(remote, errs)
	seed(e, []model.Task{
		dated("a", "2026-03-10", model.CategoryLife, model.StateActive, "V"),
	}, nil)
	before := e.Day("2026-03-10")

	e.Add("2026-03-10", model.CategoryLife, "doomed")
	e.Wait()

	assert.Equal(t, before, e.Day("2026-03-10"))
	got := errs.all()
	require.Len(t, got, 1)
	assert.Equal(t, 500, got[0].status)
	assert.Equal(t, "POST /api/tasks", got[0].route)
}

func TestToggleCycle_ImmediateProjection(t *testing.T) {
	remote := newFakeRemote()
	e := newTestEngine(remote, &errorLog{})
	seed(e, []model.Task{
		dated("a", "2026-03-10", model.CategoryLife, model.StateActive, "V"),
	}, nil)

	e.ToggleCycle("2026-03-10", "a")
	got, ok := e.Find("2026-03-10", "a")
	require.True(t, ok)
	assert.Equal(t, model.StateCompleted, got.State)
	assert.True(t, got.Completed())

	// Nothing persisted until the debounce window closes.
	assert.Empty(t, remote.callLog())

	e.Flush()
	e.Wait()
	assert.Equal(t, []string{"PATCH /api/tasks/a"}, remote.callLog())
	p := remote.lastPatch()
	require.NotNil(t, p.State)
	assert.Equal(t, model.StateCompleted, *p.State)
	require.NotNil(t, p.Completed)
	assert.True(t, *p.Completed)
}

func TestToggleCycle_CoalescesWithinWindow(t *testing.T) {
	remote := newFakeRemote()
	e := newTestEngine(remote, &errorLog{})
	seed(e, []model.Task{
		dated("a", "2026-03-10", model.CategoryLife, model.StateActive, "V"),
	}, nil)

	e.ToggleCycle("2026-03-10", "a") // -> completed
	e.ToggleCycle("2026-03-10", "a") // -> failed
	e.Flush()
	e.Wait()

	// One call, carrying only the final state.
	assert.Equal(t, []string{"PATCH /api/tasks/a"}, remote.callLog())
	p := remote.lastPatch()
	require.NotNil(t, p.State)
	assert.Equal(t, model.StateFailed, *p.State)
}

func TestToggleCycle_FailureRestoresPreBurstState(t *testing.T) {
	remote := newFakeRemote()
	remote.failOnce("PATCH /api/tasks/a", 503)
	errs := &errorLog{}
	e := newTestEngine(remote, errs)
	seed(e, []model.Task{
		dated("a", "2026-03-10", model.CategoryLife, model.StateActive, "V"),
		dated("b", "2026-03-10", model.CategoryLife, model.StateActive, "k"),
	}, nil)
	before := e.Day("2026-03-10")

	e.ToggleCycle("2026-03-10", "a") // -> completed
	e.ToggleCycle("2026-03-10", "a") // -> failed
	e.Flush()
	e.Wait()

	// Rollback lands before the whole burst, not one toggle back.
	assert.Equal(t, before, e.Day("2026-03-10"))
	got := errs.all()
	require.Len(t, got, 1)
	assert.Equal(t, 503, got[0].status)
}

func TestSetState_SameStateIsNoop(t *testing.T) {
	remote := newFakeRemote()
	e := newTestEngine(remote, &errorLog{})
	seed(e, []model.Task{
		dated("a", "2026-03-10", model.CategoryLife, model.StateCompleted, "V"),
	}, nil)

	e.SetState("2026-03-10", "a", model.StateCompleted)
	e.Flush()
	e.Wait()
	assert.Empty(t, remote.callLog())
}

func TestDelete_CancelsPendingPatch(t *testing.T) {
	remote := newFakeRemote()
	e := newTestEngine(remote, &errorLog{})
	seed(e, []model.Task{
		dated("a", "2026-03-10", model.CategoryLife, model.StateActive, "V"),
	}, nil)

	e.ToggleCycle("2026-03-10", "a")
	e.Delete("2026-03-10", "a")
	e.Flush()
	e.Wait()

	// Only the delete goes out; the staged patch dies with the task.
	assert.Equal(t, []string{"DELETE /api/tasks/a"}, remote.callLog())
	_, ok := e.Find("2026-03-10", "a")
	assert.False(t, ok)
}

func TestPunt_PastTaskCatchesUpToToday(t *testing.T) {
	remote := newFakeRemote()
	e := newTestEngine(remote, &errorLog{})
	created := dated("a", "2026-03-02", model.CategoryLife, model.StateFailed, "V")
	seed(e, []model.Task{created}, nil)

	e.Punt("2026-03-02", "a")
	e.Wait()

	_, ok := e.Find("2026-03-02", "a")
	assert.False(t, ok)
	got, ok := e.Find("2026-03-10", "a")
	require.True(t, ok)
	assert.Equal(t, model.StateActive, got.State)
	assert.Equal(t, 8, got.PuntDays) // calendar days since creation, not accumulated

	p := remote.lastPatch()
	require.NotNil(t, p.Date)
	assert.Equal(t, "2026-03-10", *p.Date)
	require.NotNil(t, p.PuntDays)
	assert.Equal(t, 8, *p.PuntDays)
}

func TestPunt_TodayMovesOneDayOut(t *testing.T) {
	remote := newFakeRemote()
	e := newTestEngine(remote, &errorLog{})
	seed(e, []model.Task{
		dated("a", "2026-03-10", model.CategoryLife, model.StateActive, "V"),
	}, nil)

	e.Punt("2026-03-10", "a")
	e.Wait()

	_, ok := e.Find("2026-03-11", "a")
	assert.True(t, ok)
}

func TestPunt_WorkSkipsWeekend(t *testing.T) {
	remote := newFakeRemote()
	e := newTestEngine(remote, &errorLog{})
	// 2026-03-13 is a Friday; one day out is Saturday, so work lands Monday.
	created := dated("a", "2026-03-13", model.CategoryWork, model.StateActive, "V")
	created.CreatedAt = dates.Noon("2026-03-11")
	seed(e, []model.Task{created}, nil)

	e.Punt("2026-03-13", "a")
	e.Wait()

	got, ok := e.Find("2026-03-16", "a")
	require.True(t, ok)
	// Business days from Wed 03-11 through Mon 03-16: Thu, Fri, Mon.
	assert.Equal(t, 3, got.PuntDays)
}

func TestPunt_FailureRestoresBothPartitions(t *testing.T) {
	remote := newFakeRemote()
	remote.failOnce("PATCH /api/tasks/a", 0) // transport error
	errs := &errorLog{}
	e := newTestEngine(remote, errs)
	seed(e, []model.Task{
		dated("a", "2026-03-02", model.CategoryLife, model.StateFailed, "V"),
		dated("b", "2026-03-10", model.CategoryLife, model.StateActive, "k"),
	}, nil)
	beforeSrc := e.Day("2026-03-02")
	beforeDst := e.Day("2026-03-10")

	e.Punt("2026-03-02", "a")
	e.Wait()

	assert.Equal(t, beforeSrc, e.Day("2026-03-02"))
	assert.Equal(t, beforeDst, e.Day("2026-03-10"))
	got := errs.all()
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].status)
	assert.Equal(t, "PATCH /api/tasks/a", got[0].route)
}

func TestMoveToTop(t *testing.T) {
	remote := newFakeRemote()
	e := newTestEngine(remote, &errorLog{})
	seed(e, []model.Task{
		dated("a", "2026-03-10", model.CategoryLife, model.StateActive, "V"),
		dated("b", "2026-03-10", model.CategoryLife, model.StateActive, "k"),
	}, nil)

	e.MoveToTop("2026-03-10", "b")
	e.Wait()

	got := e.PartitionSorted(model.Partition{
		Date: "2026-03-10", Category: model.CategoryLife, State: model.StateActive,
	})
	require.Len(t, got, 2)
	assert.Equal(t, model.TaskID("b"), got[0].ID)
	assert.Equal(t, []string{"PATCH /api/tasks/b"}, remote.callLog())
}

func TestMoveToTop_NoSiblingsIsNoop(t *testing.T) {
	remote := newFakeRemote()
	e := newTestEngine(remote, &errorLog{})
	seed(e, []model.Task{
		dated("a", "2026-03-10", model.CategoryLife, model.StateActive, "V"),
	}, nil)

	e.MoveToTop("2026-03-10", "a")
	e.Wait()
	assert.Empty(t, remote.callLog())
}

func TestMove_CrossPartition(t *testing.T) {
	remote := newFakeRemote()
	e := newTestEngine(remote, &errorLog{})
	seed(e, []model.Task{
		dated("a", "2026-03-10", model.CategoryLife, model.StateActive, "V"),
		dated("b", "2026-03-11", model.CategoryWork, model.StateActive, "V"),
	}, nil)

	target := model.Partition{Date: "2026-03-11", Category: model.CategoryWork, State: model.StateActive}
	e.Move("2026-03-10", "a", target, 0)
	e.Wait()

	got, ok := e.Find("2026-03-11", "a")
	require.True(t, ok)
	assert.Equal(t, model.CategoryWork, got.Category)
	assert.True(t, got.In(target))
	assert.Less(t, got.Order, "V")

	list := e.PartitionSorted(target)
	require.Len(t, list, 2)
	assert.Equal(t, model.TaskID("a"), list[0].ID)
}

func TestMove_SamePartitionIsNoop(t *testing.T) {
	remote := newFakeRemote()
	e := newTestEngine(remote, &errorLog{})
	seed(e, []model.Task{
		dated("a", "2026-03-10", model.CategoryLife, model.StateActive, "V"),
	}, nil)

	e.Move("2026-03-10", "a", model.Partition{
		Date: "2026-03-10", Category: model.CategoryLife, State: model.StateActive,
	}, 0)
	e.Wait()
	assert.Empty(t, remote.callLog())
}

func TestBatchPunt_AtomicRollback(t *testing.T) {
	remote := newFakeRemote()
	remote.failOnce("POST /api/tasks/batch/punt", 500)
	errs := &errorLog{}
	e := newTestEngine(remote, errs)
	seed(e, []model.Task{
		dated("a", "2026-03-09", model.CategoryLife, model.StateFailed, "V"),
		dated("b", "2026-03-09", model.CategoryWork, model.StateFailed, "k"),
	}, nil)
	before := e.Day("2026-03-09")

	e.BatchPunt("2026-03-09", []model.TaskID{"a", "b"})
	e.Wait()

	// One command over every touched date: all of it comes back.
	assert.Equal(t, before, e.Day("2026-03-09"))
	assert.Empty(t, e.Day("2026-03-10"))
	require.Len(t, errs.all(), 1)
}

func TestBatchPunt_WorkAndLifeDiverge(t *testing.T) {
	remote := newFakeRemote()
	e := newTestEngine(remote, &errorLog{})
	// 2026-03-13 is a Friday: life lands Saturday, work slides to Monday.
	seed(e, []model.Task{
		dated("a", "2026-03-13", model.CategoryLife, model.StateActive, "V"),
		dated("b", "2026-03-13", model.CategoryWork, model.StateActive, "k"),
	}, nil)

	e.BatchPunt("2026-03-13", []model.TaskID{"a", "b"})
	e.Wait()

	_, ok := e.Find("2026-03-14", "a")
	assert.True(t, ok)
	_, ok = e.Find("2026-03-16", "b")
	assert.True(t, ok)
	assert.Equal(t, []string{"POST /api/tasks/batch/punt"}, remote.callLog())
}

func TestBatchFail(t *testing.T) {
	remote := newFakeRemote()
	e := newTestEngine(remote, &errorLog{})
	seed(e, []model.Task{
		dated("a", "2026-03-10", model.CategoryLife, model.StateActive, "V"),
		dated("b", "2026-03-10", model.CategoryWork, model.StateCompleted, "k"),
	}, nil)

	e.BatchFail("2026-03-10", []model.TaskID{"a", "b"})
	e.Wait()

	for _, id := range []model.TaskID{"a", "b"} {
		got, ok := e.Find("2026-03-10", id)
		require.True(t, ok)
		assert.Equal(t, model.StateFailed, got.State)
	}
}

func TestBatchGraveyard(t *testing.T) {
	remote := newFakeRemote()
	e := newTestEngine(remote, &errorLog{})
	seed(e, []model.Task{
		dated("a", "2026-03-10", model.CategoryLife, model.StateFailed, "V"),
		dated("b", "2026-03-10", model.CategoryLife, model.StateActive, "k"),
	}, nil)

	e.BatchGraveyard("2026-03-10", []model.TaskID{"a"})
	e.Wait()

	_, ok := e.Find("2026-03-10", "a")
	assert.False(t, ok)
	got, ok := e.FindBuried("a")
	require.True(t, ok)
	assert.Nil(t, got.Date)
	assert.Equal(t, model.StateFailed, got.State) // state survives burial
}

func TestBuryAndResurrect(t *testing.T) {
	remote := newFakeRemote()
	e := newTestEngine(remote, &errorLog{})
	seed(e, []model.Task{
		dated("a", "2026-03-10", model.CategoryLife, model.StateFailed, "V"),
		dated("b", "2026-03-12", model.CategoryLife, model.StateActive, "V"),
	}, nil)

	e.Bury("2026-03-10", "a")
	e.Wait()
	require.Len(t, e.Buried(), 1)
	p := remote.lastPatch()
	require.NotNil(t, p.Date)
	assert.Equal(t, "", *p.Date)

	e.Resurrect("a", "2026-03-12")
	e.Wait()
	assert.Empty(t, e.Buried())
	got, ok := e.Find("2026-03-12", "a")
	require.True(t, ok)
	assert.Equal(t, model.StateActive, got.State)
	assert.Greater(t, got.Order, "V") // after the existing active task
}

func TestDeleteBuried_FailureRestoresGraveyard(t *testing.T) {
	remote := newFakeRemote()
	remote.failOnce("DELETE /api/tasks/a", 500)
	errs := &errorLog{}
	e := newTestEngine(remote, errs)
	buried := model.Task{ID: "a", Text: "old", Category: model.CategoryLife, State: model.StateFailed}
	seed(e, nil, []model.Task{buried})

	e.DeleteBuried("a")
	e.Wait()

	require.Len(t, e.Buried(), 1)
	assert.Equal(t, model.TaskID("a"), e.Buried()[0].ID)
	require.Len(t, errs.all(), 1)
}

func TestErrorReportedExactlyOncePerCall(t *testing.T) {
	remote := newFakeRemote()
	errs := &errorLog{}
	e := newTestEngine(remote, errs)
	seed(e, func() []model.Task {
		ts := make([]model.Task, 5)
		for i := range ts {
			ts[i] = dated(fmt.Sprintf("t%d", i), "2026-03-10", model.CategoryLife, model.StateActive, "")
		}
		return ts
	}(), nil)
	for i := 0; i < 5; i++ {
		remote.failOnce(fmt.Sprintf("PATCH /api/tasks/t%d", i), 500)
	}

	for i := 0; i < 5; i++ {
		e.SetState("2026-03-10", model.TaskID(fmt.Sprintf("t%d", i)), model.StateCompleted)
	}
	e.Flush()
	e.Wait()

	assert.Len(t, errs.all(), 5)
}

func TestDebounceWindowFiresOnItsOwn(t *testing.T) {
	remote := newFakeRemote()
	e := New(Options{
		Remote:   remote,
		Debounce: 10 * time.Millisecond,
		Clock:    testToday,
	})
	seed(e, []model.Task{
		dated("a", "2026-03-10", model.CategoryLife, model.StateActive, "V"),
	}, nil)

	e.ToggleCycle("2026-03-10", "a")
	assert.Eventually(t, func() bool {
		return len(remote.callLog()) == 1
	}, time.Second, 5*time.Millisecond)
}
