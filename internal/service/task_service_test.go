package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/Marga-Ghale/ora-workspace-engine/internal/depgraph"
	"github.com/Marga-Ghale/ora-workspace-engine/internal/notification"
	"github.com/Marga-Ghale/ora-workspace-engine/internal/repository"
	"github.com/Marga-Ghale/ora-workspace-engine/internal/types"
	"github.com/Marga-Ghale/ora-workspace-engine/internal/workflow"
)

const ws = "ws1"

type recordingPublisher struct {
	mu     sync.Mutex
	events []notification.ChangeEvent
}

func (p *recordingPublisher) Publish(ev notification.ChangeEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func (p *recordingPublisher) last() notification.ChangeEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

// failingRepo wraps a task repository and fails SaveTasks on demand.
type failingRepo struct {
	repository.TaskRepository
	mu   sync.Mutex
	fail bool
}

func (r *failingRepo) setFail(v bool) {
	r.mu.Lock()
	r.fail = v
	r.mu.Unlock()
}

func (r *failingRepo) SaveTasks(ctx context.Context, workspaceID string, tasks []*repository.Task) error {
	r.mu.Lock()
	fail := r.fail
	r.mu.Unlock()
	if fail {
		return errors.New("disk full")
	}
	return r.TaskRepository.SaveTasks(ctx, workspaceID, tasks)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	svc     TaskService
	repo    *failingRepo
	members *repository.MemoryMemberRepository
	pub     *recordingPublisher
	clock   *fakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := &failingRepo{TaskRepository: repository.NewMemoryTaskRepository()}
	members := repository.NewMemoryMemberRepository()
	pub := &recordingPublisher{}
	clock := &fakeClock{now: time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)}

	for _, m := range []struct {
		id     string
		role   types.Role
		status types.MemberStatus
	}{
		{"owner", types.RoleOwner, types.MemberActive},
		{"lead", types.RoleTeamLead, types.MemberActive},
		{"coord", types.RoleCoordinator, types.MemberActive},
		{"specialist", types.RoleSpecialist, types.MemberActive},
		{"vol", types.RoleGeneralVolunteer, types.MemberActive},
		{"pending", types.RoleGeneralVolunteer, types.MemberPending},
		{"gone", types.RoleSpecialist, types.MemberInactive},
	} {
		members.Put(&repository.TeamMember{
			UserID: m.id, WorkspaceID: ws, Role: m.role, Status: m.status, JoinedAt: clock.now,
		})
	}

	svc := NewTaskService(repo, members, NewPermissionService(), pub, clock.Now)
	return &fixture{svc: svc, repo: repo, members: members, pub: pub, clock: clock}
}

func (f *fixture) create(t *testing.T, title string, deps ...string) *TaskView {
	t.Helper()
	v, err := f.svc.CreateTask(context.Background(), ws, "owner", &CreateTaskRequest{Title: title, DependsOn: deps})
	if err != nil {
		t.Fatalf("CreateTask(%q): %v", title, err)
	}
	return v
}

func (f *fixture) setStatus(t *testing.T, taskID string, status types.TaskStatus) *TaskView {
	t.Helper()
	v, err := f.svc.UpdateTask(context.Background(), taskID, "owner", &UpdateTaskRequest{Status: &status})
	if err != nil {
		t.Fatalf("set %s -> %s: %v", taskID, status, err)
	}
	return v
}

func (f *fixture) finish(t *testing.T, taskID string) {
	t.Helper()
	f.setStatus(t, taskID, types.StatusInProgress)
	f.setStatus(t, taskID, types.StatusInReview)
	f.setStatus(t, taskID, types.StatusDone)
}

func statusPtr(s types.TaskStatus) *types.TaskStatus { return &s }
func intPtr(i int) *int                             { return &i }
func strPtr(s string) *string                       { return &s }

func TestCreateTaskDefaults(t *testing.T) {
	f := newFixture(t)
	v := f.create(t, "  Print flyers ")

	if v.Task.Title != "Print flyers" {
		t.Errorf("title = %q", v.Task.Title)
	}
	if v.Task.Status != types.StatusTodo || v.EffectiveStatus != types.StatusTodo {
		t.Errorf("status = %s/%s, want TODO", v.Task.Status, v.EffectiveStatus)
	}
	if v.Task.Progress != 0 || v.Task.CreatedBy != "owner" {
		t.Errorf("task = %+v", v.Task)
	}
	if f.pub.count() != 1 {
		t.Fatalf("events = %d, want 1", f.pub.count())
	}
	ev := f.pub.last()
	if ev.Kind != notification.KindTaskCreated || ev.Before != nil || ev.After.ID != v.Task.ID {
		t.Errorf("event = %+v", ev)
	}
	if ev.WorkspaceID != ws || ev.ActorID != "owner" || ev.ID == "" {
		t.Errorf("event envelope = %+v", ev)
	}
}

func TestCreateTaskValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.CreateTask(ctx, ws, "owner", &CreateTaskRequest{Title: "   "}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("blank title err = %v", err)
	}
	if _, err := f.svc.CreateTask(ctx, ws, "owner", &CreateTaskRequest{Title: "x", DependsOn: []string{"nope"}}); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown dependency err = %v", err)
	}
	if _, err := f.svc.CreateTask(ctx, ws, "owner", &CreateTaskRequest{Title: "x", AssigneeIDs: []string{"gone"}}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("inactive assignee err = %v", err)
	}
	if _, err := f.svc.CreateTask(ctx, ws, "owner", &CreateTaskRequest{Title: "x", AssigneeIDs: []string{"stranger"}}); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown assignee err = %v", err)
	}
	if f.pub.count() != 0 {
		t.Errorf("failed creations published %d events", f.pub.count())
	}
	views, _ := f.svc.ListTasks(ctx, ws, "owner", ListFilter{})
	if len(views) != 0 {
		t.Errorf("failed creations left %d tasks", len(views))
	}
}

func TestRoleAuthority(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.CreateTask(ctx, ws, "vol", &CreateTaskRequest{Title: "x"}); !errors.Is(err, ErrForbidden) {
		t.Errorf("volunteer create err = %v, want forbidden", err)
	}
	if _, err := f.svc.CreateTask(ctx, ws, "pending", &CreateTaskRequest{Title: "x"}); !errors.Is(err, ErrForbidden) {
		t.Errorf("pending member create err = %v, want forbidden", err)
	}
	if _, err := f.svc.CreateTask(ctx, ws, "stranger", &CreateTaskRequest{Title: "x"}); !errors.Is(err, ErrForbidden) {
		t.Errorf("non-member create err = %v, want forbidden", err)
	}

	task := f.create(t, "Set up booth")
	if _, err := f.svc.DeleteTask(ctx, task.Task.ID, "coord"); !errors.Is(err, ErrForbidden) {
		t.Errorf("coordinator delete err = %v, want forbidden", err)
	}
	if _, err := f.svc.UpdateTask(ctx, task.Task.ID, "coord", &UpdateTaskRequest{Status: statusPtr(types.StatusCancelled)}); !errors.Is(err, ErrForbidden) {
		t.Errorf("coordinator cancel via update err = %v, want forbidden", err)
	}
	if _, err := f.svc.UpdateTask(ctx, task.Task.ID, "vol", &UpdateTaskRequest{Title: strPtr("y")}); !errors.Is(err, ErrForbidden) {
		t.Errorf("unassigned volunteer edit err = %v, want forbidden", err)
	}

	var forbidden *ForbiddenError
	_, err := f.svc.DeleteTask(ctx, task.Task.ID, "specialist")
	if !errors.As(err, &forbidden) || forbidden.Action != string(types.ActionDeleteTask) {
		t.Errorf("err = %v, want ForbiddenError for deleteTask", err)
	}

	got, _ := f.svc.GetTask(ctx, task.Task.ID, "owner")
	if got.Task.Status != types.StatusTodo || got.Task.Title != "Set up booth" {
		t.Errorf("denied commands mutated the task: %+v", got.Task)
	}
	if f.pub.count() != 1 {
		t.Errorf("events = %d, want only the creation", f.pub.count())
	}
}

func TestAssigneeCanEditAndProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.create(t, "Call sponsors")

	if _, err := f.svc.AssignTask(ctx, task.Task.ID, "coord", []string{"vol"}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	v, err := f.svc.UpdateTask(ctx, task.Task.ID, "vol", &UpdateTaskRequest{Status: statusPtr(types.StatusInProgress)})
	if err != nil {
		t.Fatalf("assignee start: %v", err)
	}
	if v.Task.Status != types.StatusInProgress {
		t.Errorf("status = %s", v.Task.Status)
	}
	if _, err := f.svc.UpdateTask(ctx, task.Task.ID, "vol", &UpdateTaskRequest{Progress: intPtr(40)}); err != nil {
		t.Fatalf("progress: %v", err)
	}
	_, err = f.svc.UpdateTask(ctx, task.Task.ID, "vol", &UpdateTaskRequest{Progress: intPtr(10)})
	if !errors.Is(err, ErrInvalidInput) || !errors.Is(err, workflow.ErrInvalidProgress) {
		t.Errorf("lowering progress err = %v", err)
	}
	if _, err := f.svc.UpdateTask(ctx, task.Task.ID, "vol", &UpdateTaskRequest{Progress: intPtr(101)}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("progress 101 err = %v", err)
	}
}

// A depends on B; B done unblocks A.
func TestBlockedUntilDependencyDone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.create(t, "B")
	a := f.create(t, "A", b.Task.ID)

	if a.EffectiveStatus != types.StatusBlocked {
		t.Fatalf("A effective = %s, want BLOCKED", a.EffectiveStatus)
	}
	if len(a.BlockedBy) != 1 || a.BlockedBy[0] != b.Task.ID {
		t.Errorf("A blockedBy = %v", a.BlockedBy)
	}
	for _, to := range a.AllowedTransitions {
		if to == types.StatusInProgress {
			t.Errorf("blocked task offers IN_PROGRESS")
		}
	}

	_, err := f.svc.UpdateTask(ctx, a.Task.ID, "owner", &UpdateTaskRequest{Status: statusPtr(types.StatusInProgress)})
	var notReady *workflow.NotReadyError
	if !errors.As(err, &notReady) || len(notReady.BlockedBy) != 1 || notReady.BlockedBy[0] != b.Task.ID {
		t.Fatalf("err = %v, want NotReadyError naming B", err)
	}

	f.finish(t, b.Task.ID)
	got, _ := f.svc.GetTask(ctx, a.Task.ID, "owner")
	if got.EffectiveStatus != types.StatusTodo || len(got.BlockedBy) != 0 {
		t.Fatalf("A after B done = %s %v", got.EffectiveStatus, got.BlockedBy)
	}
	f.setStatus(t, a.Task.ID, types.StatusInProgress)
}

func TestCycleRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, "A")
	b := f.create(t, "B", a.Task.ID)
	c := f.create(t, "C", b.Task.ID)
	before := f.pub.count()

	_, err := f.svc.AddDependency(ctx, a.Task.ID, "owner", c.Task.ID)
	var cycle *depgraph.CycleError
	if !errors.As(err, &cycle) || cycle.From != a.Task.ID || cycle.To != c.Task.ID {
		t.Fatalf("err = %v, want CycleError A->C", err)
	}

	_, err = f.svc.AddDependency(ctx, a.Task.ID, "owner", a.Task.ID)
	var self *depgraph.SelfDependencyError
	if !errors.As(err, &self) {
		t.Errorf("self dependency err = %v", err)
	}

	got, _ := f.svc.GetTask(ctx, a.Task.ID, "owner")
	if len(got.Task.DependsOn) != 0 || got.EffectiveStatus != types.StatusTodo {
		t.Errorf("A after rejected cycle: deps=%v status=%s", got.Task.DependsOn, got.EffectiveStatus)
	}
	if f.pub.count() != before {
		t.Errorf("rejected edits published events")
	}
}

func TestDependsOnReplacementIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, "A")
	b := f.create(t, "B")
	c := f.create(t, "C", a.Task.ID)

	// Dropping A and adding B is fine, but A depending on C first makes the
	// whole replacement on A fail and leave nothing behind.
	deps := []string{b.Task.ID, c.Task.ID}
	if _, err := f.svc.UpdateTask(ctx, a.Task.ID, "owner", &UpdateTaskRequest{DependsOn: &deps}); err == nil {
		t.Fatal("replacement closing a cycle succeeded")
	}
	got, _ := f.svc.GetTask(ctx, a.Task.ID, "owner")
	if len(got.Task.DependsOn) != 0 || len(got.BlockedBy) != 0 {
		t.Errorf("partial replacement leaked: %+v", got)
	}
	bView, _ := f.svc.GetTask(ctx, b.Task.ID, "owner")
	if len(bView.Dependents) != 0 {
		t.Errorf("graph kept edge A->B: dependents of B = %v", bView.Dependents)
	}

	deps = []string{b.Task.ID, b.Task.ID}
	v, err := f.svc.UpdateTask(ctx, c.Task.ID, "owner", &UpdateTaskRequest{DependsOn: &deps})
	if err != nil {
		t.Fatal(err)
	}
	if len(v.Task.DependsOn) != 1 || v.Task.DependsOn[0] != b.Task.ID {
		t.Errorf("C deps = %v, want [B]", v.Task.DependsOn)
	}
}

func TestCancelledDependencyCountsAsSettled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.create(t, "B")
	a := f.create(t, "A", b.Task.ID)

	v, err := f.svc.DeleteTask(ctx, b.Task.ID, "owner")
	if err != nil {
		t.Fatal(err)
	}
	if v.Task.Status != types.StatusCancelled || f.pub.last().Kind != notification.KindTaskCancelled {
		t.Errorf("cancel = %s, event %s", v.Task.Status, f.pub.last().Kind)
	}
	got, _ := f.svc.GetTask(ctx, a.Task.ID, "owner")
	if got.EffectiveStatus != types.StatusTodo {
		t.Errorf("A effective = %s, want TODO", got.EffectiveStatus)
	}
	if len(got.Task.DependsOn) != 1 {
		t.Errorf("A lost its dependency on the cancelled task")
	}

	if _, err := f.svc.DeleteTask(ctx, b.Task.ID, "owner"); err == nil {
		t.Error("cancelling twice succeeded")
	} else {
		var inv *workflow.InvalidTransitionError
		if !errors.As(err, &inv) {
			t.Errorf("second cancel err = %v", err)
		}
	}
}

func TestCancelDropsOwnDependencies(t *testing.T) {
	f := newFixture(t)
	b := f.create(t, "B")
	a := f.create(t, "A", b.Task.ID)

	v, err := f.svc.DeleteTask(context.Background(), a.Task.ID, "lead")
	if err != nil {
		t.Fatal(err)
	}
	if len(v.Task.DependsOn) != 0 || len(v.BlockedBy) != 0 {
		t.Errorf("cancelled task still waits on %v", v.Task.DependsOn)
	}
	bView, _ := f.svc.GetTask(context.Background(), b.Task.ID, "owner")
	if len(bView.Dependents) != 0 {
		t.Errorf("B dependents = %v", bView.Dependents)
	}
}

func TestTerminalTasksRejectWorkflowEdits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.create(t, "Wrap up")
	f.finish(t, task.Task.ID)

	got, _ := f.svc.GetTask(ctx, task.Task.ID, "owner")
	if got.Task.Progress != 100 {
		t.Errorf("progress after DONE = %d", got.Task.Progress)
	}
	if _, err := f.svc.UpdateTask(ctx, task.Task.ID, "owner", &UpdateTaskRequest{Status: statusPtr(types.StatusInProgress)}); err == nil {
		t.Error("DONE -> IN_PROGRESS succeeded")
	}
	empty := []string{}
	if _, err := f.svc.UpdateTask(ctx, task.Task.ID, "owner", &UpdateTaskRequest{DependsOn: &empty}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("dependsOn on DONE err = %v", err)
	}
	if _, err := f.svc.UpdateTask(ctx, task.Task.ID, "owner", &UpdateTaskRequest{Title: strPtr("Wrapped up")}); err != nil {
		t.Errorf("title edit on DONE: %v", err)
	}
}

func TestInvalidTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.create(t, "Order shirts")

	for _, to := range []types.TaskStatus{types.StatusTodo, types.StatusBlocked, types.StatusDone, types.StatusInReview} {
		_, err := f.svc.UpdateTask(ctx, task.Task.ID, "owner", &UpdateTaskRequest{Status: statusPtr(to)})
		var inv *workflow.InvalidTransitionError
		if !errors.As(err, &inv) || inv.From != types.StatusTodo || inv.To != to {
			t.Errorf("TODO -> %s err = %v", to, err)
		}
	}
	if _, err := f.svc.UpdateTask(ctx, task.Task.ID, "owner", &UpdateTaskRequest{Status: statusPtr("DONE!")}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("unknown status err = %v", err)
	}
}

func TestReworkKeepsProgressAndResetOnTodo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.create(t, "Design poster")
	id := task.Task.ID
	f.setStatus(t, id, types.StatusInProgress)
	if _, err := f.svc.UpdateTask(ctx, id, "owner", &UpdateTaskRequest{Progress: intPtr(60)}); err != nil {
		t.Fatal(err)
	}
	f.setStatus(t, id, types.StatusInReview)
	if v := f.setStatus(t, id, types.StatusInProgress); v.Task.Progress != 60 {
		t.Errorf("rework progress = %d, want 60", v.Task.Progress)
	}
	if v := f.setStatus(t, id, types.StatusTodo); v.Task.Progress != 0 {
		t.Errorf("back to TODO progress = %d, want 0", v.Task.Progress)
	}
}

func TestEmptyUpdateRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.create(t, "Hang banners")

	v, err := f.svc.UpdateTask(ctx, task.Task.ID, "owner", &UpdateTaskRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if !v.Task.UpdatedAt.After(task.Task.UpdatedAt) {
		t.Errorf("updatedAt not bumped: %v vs %v", v.Task.UpdatedAt, task.Task.UpdatedAt)
	}
	if v.Task.Title != task.Task.Title || v.Task.Status != task.Task.Status {
		t.Errorf("empty update changed fields: %+v", v.Task)
	}
	ev := f.pub.last()
	if ev.Kind != notification.KindTaskUpdated || ev.Before == nil || ev.After == nil {
		t.Errorf("event = %+v", ev)
	}
}

func TestAssignmentRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.create(t, "Greet guests")
	id := task.Task.ID

	if _, err := f.svc.AssignTask(ctx, id, "owner", []string{"vol", "specialist"}); err != nil {
		t.Fatal(err)
	}
	// Self-removal needs no role permission.
	v, err := f.svc.AssignTask(ctx, id, "vol", []string{"specialist"})
	if err != nil {
		t.Fatalf("self removal: %v", err)
	}
	if len(v.Task.AssigneeIDs) != 1 || v.Task.AssigneeIDs[0] != "specialist" {
		t.Errorf("assignees = %v", v.Task.AssigneeIDs)
	}
	if f.pub.last().Kind != notification.KindTaskAssigned {
		t.Errorf("event kind = %s", f.pub.last().Kind)
	}
	// Removing someone else is not a self-removal.
	if _, err := f.svc.AssignTask(ctx, id, "specialist", []string{}); err != nil {
		t.Errorf("spec removing themself: %v", err)
	}
	if _, err := f.svc.AssignTask(ctx, id, "specialist", []string{"vol"}); !errors.Is(err, ErrForbidden) {
		t.Errorf("specialist assigning others err = %v", err)
	}
	if _, err := f.svc.AssignTask(ctx, id, "coord", []string{"gone"}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("inactive assignee err = %v", err)
	}
	if _, err := f.svc.AssignTask(ctx, id, "coord", []string{"nobody"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown assignee err = %v", err)
	}
}

func TestAssignKeepsAlreadyAssignedInactiveMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.create(t, "Count tickets")
	if _, err := f.svc.AssignTask(ctx, task.Task.ID, "owner", []string{"specialist", "vol"}); err != nil {
		t.Fatal(err)
	}
	f.members.Put(&repository.TeamMember{UserID: "specialist", WorkspaceID: ws, Role: types.RoleSpecialist, Status: types.MemberInactive})

	if _, err := f.svc.AssignTask(ctx, task.Task.ID, "owner", []string{"specialist", "vol", "coord"}); err != nil {
		t.Errorf("adding coord next to an inactive assignee: %v", err)
	}
}

func TestCommentLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.create(t, "Plan route")
	id := task.Task.ID

	if _, err := f.svc.AddComment(ctx, id, "vol", "hi"); !errors.Is(err, ErrForbidden) {
		t.Errorf("unassigned volunteer comment err = %v", err)
	}
	if _, err := f.svc.AddComment(ctx, id, "owner", "  "); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("blank comment err = %v", err)
	}
	c, err := f.svc.AddComment(ctx, id, "coord", "Use the north gate")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.EditComment(ctx, id, c.ID, "owner", "changed"); !errors.Is(err, ErrForbidden) {
		t.Errorf("non-author edit err = %v", err)
	}
	edited, err := f.svc.EditComment(ctx, id, c.ID, "coord", "Use the south gate")
	if err != nil {
		t.Fatal(err)
	}
	if edited.Body != "Use the south gate" || edited.EditedAt == nil {
		t.Errorf("edited = %+v", edited)
	}

	if err := f.svc.SoftDeleteComment(ctx, id, c.ID, "vol"); !errors.Is(err, ErrForbidden) {
		t.Errorf("volunteer delete err = %v", err)
	}
	if err := f.svc.SoftDeleteComment(ctx, id, c.ID, "owner"); err != nil {
		t.Fatal(err)
	}
	events := f.pub.count()
	if err := f.svc.SoftDeleteComment(ctx, id, c.ID, "owner"); err != nil {
		t.Errorf("second delete: %v", err)
	}
	if f.pub.count() != events {
		t.Error("second delete published an event")
	}
	if _, err := f.svc.EditComment(ctx, id, c.ID, "coord", "again"); !errors.Is(err, ErrNotFound) {
		t.Errorf("edit of deleted comment err = %v", err)
	}

	got, _ := f.svc.GetTask(ctx, id, "owner")
	if len(got.Task.Comments) != 1 || !got.Task.Comments[0].Deleted || *got.Task.Comments[0].DeletedBy != "owner" {
		t.Errorf("comment not soft deleted: %+v", got.Task.Comments)
	}
	if len(got.Task.VisibleComments()) != 0 {
		t.Error("deleted comment still visible")
	}
}

func TestAttachmentLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.create(t, "Collect receipts")
	id := task.Task.ID
	if _, err := f.svc.AssignTask(ctx, id, "owner", []string{"vol"}); err != nil {
		t.Fatal(err)
	}

	a, err := f.svc.AddAttachment(ctx, id, "vol", "uploads/receipt.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.AddAttachment(ctx, id, "specialist", "uploads/other.pdf"); !errors.Is(err, ErrForbidden) {
		t.Errorf("unassigned specialist attach err = %v", err)
	}
	if err := f.svc.RemoveAttachment(ctx, id, a.ID, "specialist"); !errors.Is(err, ErrForbidden) {
		t.Errorf("unrelated removal err = %v", err)
	}
	if err := f.svc.RemoveAttachment(ctx, id, a.ID, "vol"); err != nil {
		t.Fatal(err)
	}
	events := f.pub.count()
	if err := f.svc.RemoveAttachment(ctx, id, a.ID, "vol"); err != nil {
		t.Errorf("second removal: %v", err)
	}
	if f.pub.count() != events {
		t.Error("second removal published an event")
	}
	if err := f.svc.RemoveAttachment(ctx, id, "missing", "owner"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing attachment err = %v", err)
	}
}

func TestPersistenceFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.create(t, "B")
	a := f.create(t, "A")
	events := f.pub.count()

	f.repo.setFail(true)
	_, err := f.svc.AddDependency(ctx, a.Task.ID, "owner", b.Task.ID)
	var perr *PersistenceError
	if !errors.As(err, &perr) || !errors.Is(err, ErrPersistence) {
		t.Fatalf("err = %v, want PersistenceError", err)
	}
	if _, err := f.svc.CreateTask(ctx, ws, "owner", &CreateTaskRequest{Title: "C", DependsOn: []string{b.Task.ID}}); !errors.Is(err, ErrPersistence) {
		t.Fatalf("create err = %v", err)
	}
	f.repo.setFail(false)

	got, _ := f.svc.GetTask(ctx, a.Task.ID, "owner")
	if len(got.Task.DependsOn) != 0 || got.EffectiveStatus != types.StatusTodo {
		t.Errorf("failed write leaked into memory: %+v", got)
	}
	bView, _ := f.svc.GetTask(ctx, b.Task.ID, "owner")
	if len(bView.Dependents) != 0 {
		t.Errorf("failed writes left edges: %v", bView.Dependents)
	}
	views, _ := f.svc.ListTasks(ctx, ws, "owner", ListFilter{})
	if len(views) != 2 {
		t.Errorf("tasks = %d, want 2", len(views))
	}
	if f.pub.count() != events {
		t.Error("failed writes published events")
	}

	// The same edge goes through once storage recovers.
	if _, err := f.svc.AddDependency(ctx, a.Task.ID, "owner", b.Task.ID); err != nil {
		t.Fatal(err)
	}
}

func TestBulkUpdateStatusIsAtomic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, "A")
	b := f.create(t, "B", a.Task.ID)
	c := f.create(t, "C")

	// B is still blocked by A, so nothing moves.
	_, err := f.svc.BulkUpdateStatus(ctx, ws, "owner", []string{c.Task.ID, b.Task.ID}, types.StatusInProgress)
	var notReady *workflow.NotReadyError
	if !errors.As(err, &notReady) {
		t.Fatalf("err = %v, want NotReadyError", err)
	}
	got, _ := f.svc.GetTask(ctx, c.Task.ID, "owner")
	if got.Task.Status != types.StatusTodo {
		t.Errorf("C moved despite failed bulk: %s", got.Task.Status)
	}

	events := f.pub.count()
	views, err := f.svc.BulkUpdateStatus(ctx, ws, "owner", []string{a.Task.ID, c.Task.ID, a.Task.ID}, types.StatusInProgress)
	if err != nil {
		t.Fatal(err)
	}
	if len(views) != 2 || f.pub.count() != events+2 {
		t.Errorf("views = %d, events = %d", len(views), f.pub.count()-events)
	}

	if _, err := f.svc.BulkUpdateStatus(ctx, ws, "owner", nil, types.StatusDone); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty bulk err = %v", err)
	}
}

func TestBulkUsesStagedStatuses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, "A")
	b := f.create(t, "B")
	f.setStatus(t, b.Task.ID, types.StatusInProgress)
	f.setStatus(t, b.Task.ID, types.StatusInReview)
	if _, err := f.svc.AddDependency(ctx, b.Task.ID, "owner", a.Task.ID); err != nil {
		t.Fatal(err)
	}
	f.setStatus(t, a.Task.ID, types.StatusInProgress)
	f.setStatus(t, a.Task.ID, types.StatusInReview)

	// B only becomes ready once A is done earlier in the same request.
	if _, err := f.svc.BulkUpdateStatus(ctx, ws, "owner", []string{b.Task.ID, a.Task.ID}, types.StatusDone); err == nil {
		t.Fatal("B closed before its dependency")
	}
	views, err := f.svc.BulkUpdateStatus(ctx, ws, "owner", []string{a.Task.ID, b.Task.ID}, types.StatusDone)
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range views {
		if v.Task.Status != types.StatusDone || v.Task.Progress != 100 {
			t.Errorf("%s = %s/%d", v.Task.Title, v.Task.Status, v.Task.Progress)
		}
	}
}

func TestUnassignMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, "A")
	b := f.create(t, "B")
	f.create(t, "C")
	for _, id := range []string{a.Task.ID, b.Task.ID} {
		if _, err := f.svc.AssignTask(ctx, id, "owner", []string{"vol", "specialist"}); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := f.svc.UnassignMember(ctx, ws, "coord", "vol"); !errors.Is(err, ErrForbidden) {
		t.Errorf("coordinator unassign err = %v", err)
	}
	events := f.pub.count()
	n, err := f.svc.UnassignMember(ctx, ws, "lead", "vol")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 || f.pub.count() != events+2 || f.pub.last().Kind != notification.KindMemberUnassigned {
		t.Errorf("unassigned %d tasks, %d events", n, f.pub.count()-events)
	}
	views, _ := f.svc.ListTasks(ctx, ws, "owner", ListFilter{AssigneeID: "vol"})
	if len(views) != 0 {
		t.Errorf("vol still assigned to %d tasks", len(views))
	}
}

func TestListFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, "Buy paint")
	f.create(t, "Hire band", a.Task.ID)
	c := f.create(t, "Paint fence")
	f.svc.UpdateTask(ctx, c.Task.ID, "owner", &UpdateTaskRequest{Description: strPtr("white PAINT only")})
	d := f.create(t, "Old idea")
	if _, err := f.svc.DeleteTask(ctx, d.Task.ID, "owner"); err != nil {
		t.Fatal(err)
	}

	all, _ := f.svc.ListTasks(ctx, ws, "vol", ListFilter{})
	if len(all) != 3 || all[0].Task.Title != "Buy paint" || all[2].Task.Title != "Paint fence" {
		t.Errorf("default list = %d tasks", len(all))
	}
	with, _ := f.svc.ListTasks(ctx, ws, "vol", ListFilter{IncludeCancelled: true})
	if len(with) != 4 {
		t.Errorf("with cancelled = %d", len(with))
	}
	blocked, _ := f.svc.ListTasks(ctx, ws, "vol", ListFilter{Statuses: []types.TaskStatus{types.StatusBlocked}})
	if len(blocked) != 1 || blocked[0].Task.Title != "Hire band" {
		t.Errorf("blocked = %v", blocked)
	}
	search, _ := f.svc.ListTasks(ctx, ws, "vol", ListFilter{Search: "paint"})
	if len(search) != 2 {
		t.Errorf("search paint = %d, want 2", len(search))
	}
	if _, err := f.svc.ListTasks(ctx, ws, "stranger", ListFilter{}); !errors.Is(err, ErrForbidden) {
		t.Errorf("non-member list err = %v", err)
	}
	if _, err := f.svc.ListTasks(ctx, ws, "vol", ListFilter{Statuses: []types.TaskStatus{"LATER"}}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("bad status filter err = %v", err)
	}
}

func TestBoardView(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, "A")
	f.create(t, "B", a.Task.ID)
	c := f.create(t, "C")
	d := f.create(t, "D")
	f.setStatus(t, c.Task.ID, types.StatusInProgress)
	f.setStatus(t, d.Task.ID, types.StatusInProgress)
	f.svc.UpdateTask(ctx, c.Task.ID, "owner", &UpdateTaskRequest{Progress: intPtr(33)})
	f.svc.UpdateTask(ctx, d.Task.ID, "owner", &UpdateTaskRequest{Progress: intPtr(50)})

	board, err := f.svc.BoardView(ctx, ws, "specialist", BoardOptions{})
	if err != nil {
		t.Fatal(err)
	}
	want := []types.TaskStatus{types.StatusTodo, types.StatusInProgress, types.StatusInReview, types.StatusBlocked, types.StatusDone}
	if len(board.Columns) != len(want) {
		t.Fatalf("columns = %d", len(board.Columns))
	}
	counts := map[types.TaskStatus]int{types.StatusTodo: 1, types.StatusInProgress: 2, types.StatusBlocked: 1}
	for i, col := range board.Columns {
		if col.Status != want[i] {
			t.Errorf("column %d = %s, want %s", i, col.Status, want[i])
		}
		if col.Count != counts[col.Status] || len(col.Tasks) != col.Count {
			t.Errorf("%s count = %d", col.Status, col.Count)
		}
	}
	if avg := board.Columns[1].AverageProgress.String(); avg != "41.5" {
		t.Errorf("in progress average = %s, want 41.5", avg)
	}
	if board.Total != 4 {
		t.Errorf("total = %d", board.Total)
	}

	withCancelled, _ := f.svc.BoardView(ctx, ws, "specialist", BoardOptions{IncludeCancelled: true})
	if last := withCancelled.Columns[len(withCancelled.Columns)-1]; last.Status != types.StatusCancelled {
		t.Errorf("last column = %s", last.Status)
	}
}

func TestSessionsReloadAfterEviction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.create(t, "B")
	a := f.create(t, "A", b.Task.ID)

	if f.svc.LoadedWorkspaces() != 1 {
		t.Fatalf("loaded = %d", f.svc.LoadedWorkspaces())
	}
	if n := f.svc.EvictIdle(time.Hour); n != 0 {
		t.Errorf("evicted fresh session")
	}
	f.clock.advance(2 * time.Hour)
	if n := f.svc.EvictIdle(time.Hour); n != 1 {
		t.Fatalf("evicted = %d, want 1", n)
	}
	if f.svc.LoadedWorkspaces() != 0 {
		t.Errorf("loaded after eviction = %d", f.svc.LoadedWorkspaces())
	}

	got, err := f.svc.GetTask(ctx, a.Task.ID, "owner")
	if err != nil {
		t.Fatal(err)
	}
	if got.EffectiveStatus != types.StatusBlocked || got.BlockedBy[0] != b.Task.ID {
		t.Errorf("reloaded A = %s %v", got.EffectiveStatus, got.BlockedBy)
	}
}

func TestConcurrentDependencyEditsStayAcyclic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, "A")
	b := f.create(t, "B")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = f.svc.AddDependency(ctx, a.Task.ID, "owner", b.Task.ID)
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = f.svc.AddDependency(ctx, b.Task.ID, "owner", a.Task.ID)
	}()
	wg.Wait()

	if (errs[0] == nil) == (errs[1] == nil) {
		t.Fatalf("exactly one edge must win: %v / %v", errs[0], errs[1])
	}
}

func TestReadersSeeWholeUpdates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	x := f.create(t, "X").Task.ID
	y := f.create(t, "Y").Task.ID
	f.setStatus(t, x, types.StatusInProgress)

	// X alternates between running free and waiting on Y. Both halves of
	// each patch must land together.
	free := &UpdateTaskRequest{DependsOn: &[]string{}, Status: statusPtr(types.StatusInProgress)}
	waiting := &UpdateTaskRequest{DependsOn: &[]string{y}, Status: statusPtr(types.StatusTodo)}

	check := func(views []*TaskView) error {
		var xv, yv *TaskView
		for _, v := range views {
			if want := workflow.Effective(v.Task.Status, len(v.BlockedBy) == 0); v.EffectiveStatus != want {
				return fmt.Errorf("%s: effective %s, stored %s blocked by %v", v.Task.ID, v.EffectiveStatus, v.Task.Status, v.BlockedBy)
			}
			switch v.Task.ID {
			case x:
				xv = v
			case y:
				yv = v
			}
		}
		if xv == nil || yv == nil {
			return fmt.Errorf("missing views: %d returned", len(views))
		}
		switch xv.Task.Status {
		case types.StatusInProgress:
			if len(xv.Task.DependsOn) != 0 || len(xv.BlockedBy) != 0 || len(yv.Dependents) != 0 {
				return fmt.Errorf("free X with deps %v blockedBy %v, Y dependents %v", xv.Task.DependsOn, xv.BlockedBy, yv.Dependents)
			}
		case types.StatusTodo:
			if !slices.Equal(xv.Task.DependsOn, []string{y}) || !slices.Equal(xv.BlockedBy, []string{y}) || !slices.Equal(yv.Dependents, []string{x}) {
				return fmt.Errorf("waiting X with deps %v blockedBy %v, Y dependents %v", xv.Task.DependsOn, xv.BlockedBy, yv.Dependents)
			}
		default:
			return fmt.Errorf("unexpected X status %s", xv.Task.Status)
		}
		return nil
	}

	done := make(chan struct{})
	errs := make(chan error, 8)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(board bool) {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				var views []*TaskView
				if board {
					b, err := f.svc.BoardView(ctx, ws, "vol", BoardOptions{})
					if err != nil {
						errs <- err
						return
					}
					for _, col := range b.Columns {
						views = append(views, col.Tasks...)
					}
				} else {
					var err error
					if views, err = f.svc.ListTasks(ctx, ws, "vol", ListFilter{}); err != nil {
						errs <- err
						return
					}
				}
				if err := check(views); err != nil {
					errs <- err
					return
				}
			}
		}(i%2 == 0)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				f.svc.EvictIdle(0)
			}
		}
	}()

	for i := 0; i < 100; i++ {
		patch := waiting
		if i%2 == 1 {
			patch = free
		}
		if _, err := f.svc.UpdateTask(ctx, x, "owner", patch); err != nil {
			close(done)
			wg.Wait()
			t.Fatalf("update #%d: %v", i, err)
		}
	}
	close(done)
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestGetTaskMissing(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.GetTask(context.Background(), "nope", "owner")
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Kind != "task" {
		t.Errorf("err = %v", err)
	}
}
