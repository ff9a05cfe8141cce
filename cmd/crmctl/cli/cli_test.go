package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/shared"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/users"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/jobs"
)

type stubEnqueuer struct {
	tasks []*asynq.Task
}

func (s *stubEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	s.tasks = append(s.tasks, task)
	return &asynq.TaskInfo{ID: "t-1", Type: task.Type(), Queue: jobs.QueueDefault}, nil
}

func (s *stubEnqueuer) Close() error { return nil }

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) { return s.info, s.err }

func (s stubInspector) ListScheduledTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
	return nil, nil
}

func (s stubInspector) Close() error { return nil }

type stubSyncer struct{ n int }

func (s stubSyncer) SyncCatalogue(ctx context.Context) (int, error) { return s.n, nil }

type stubUsers struct {
	got users.CreateRequest
}

func (s *stubUsers) Create(ctx context.Context, actor shared.Actor, req users.CreateRequest) (users.User, error) {
	s.got = req
	return users.User{ID: 7, Email: req.Email}, nil
}

func run(t *testing.T, deps Deps, args ...string) (string, error) {
	t.Helper()
	released := false
	deps.Release = func() { released = true }
	root := NewRootCommand(func(ctx context.Context) (Deps, error) { return deps, nil })
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	if err == nil {
		assert.True(t, released, "deps released")
	}
	return out.String(), err
}

func TestPermissionsSync(t *testing.T) {
	out, err := run(t, Deps{Permissions: stubSyncer{n: 31}}, "permissions", "sync")
	require.NoError(t, err)
	assert.Equal(t, "synced 31 permissions\n", out)
}

func TestUsersCreatePassesFlags(t *testing.T) {
	creator := &stubUsers{}
	out, err := run(t, Deps{Users: creator},
		"users", "create", "--email", "admin@example.com", "--name", "Admin",
		"--password", "change-me-now", "--role-id", "1", "--role-id", "2", "--manager-id", "3")
	require.NoError(t, err)
	assert.Equal(t, "created user 7 <admin@example.com>\n", out)
	assert.Equal(t, []int64{1, 2}, creator.got.RoleIDs)
	require.NotNil(t, creator.got.ManagerID)
	assert.Equal(t, int64(3), *creator.got.ManagerID)
}

func TestUsersCreateRequiresEmail(t *testing.T) {
	_, err := run(t, Deps{Users: &stubUsers{}}, "users", "create", "--name", "A", "--password", "12345678")
	require.Error(t, err)
}

func TestTriggerCleanup(t *testing.T) {
	enq := &stubEnqueuer{}
	out, err := run(t, Deps{Jobs: NewJobsCLIWith(enq, stubInspector{})},
		"jobs", "trigger", jobs.TaskIdempotencyCleanup, "--retain-hours", "24")
	require.NoError(t, err)
	assert.Contains(t, out, "enqueued "+jobs.TaskIdempotencyCleanup)
	require.Len(t, enq.tasks, 1)

	var payload jobs.IdempotencyCleanupPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	assert.Equal(t, 24, payload.RetainHours)
}

func TestTriggerDocumentEmailValidatesKind(t *testing.T) {
	cli := NewJobsCLIWith(&stubEnqueuer{}, stubInspector{})

	_, err := cli.Trigger(context.Background(), jobs.TaskDocumentEmail, TriggerOptions{Kind: "receipt", DocumentID: 1, To: "a@b.c"})
	require.Error(t, err)

	_, err = cli.Trigger(context.Background(), jobs.TaskDocumentEmail, TriggerOptions{Kind: shared.KindInvoice})
	require.Error(t, err)

	info, err := cli.Trigger(context.Background(), jobs.TaskDocumentEmail, TriggerOptions{Kind: shared.KindInvoice, DocumentID: 4, To: "a@b.c"})
	require.NoError(t, err)
	assert.Equal(t, jobs.TaskDocumentEmail, info.Type)
}

func TestTriggerUnknownTask(t *testing.T) {
	_, err := NewJobsCLIWith(&stubEnqueuer{}, stubInspector{}).Trigger(context.Background(), "nope", TriggerOptions{})
	require.Error(t, err)
}

func TestInspectQueue(t *testing.T) {
	cli := NewJobsCLIWith(&stubEnqueuer{}, stubInspector{info: &asynq.QueueInfo{Queue: jobs.QueueDefault, Pending: 3, Archived: 1}})
	stats, err := cli.InspectQueue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Pending)
	assert.Equal(t, 1, stats.Archived)

	empty := NewJobsCLIWith(&stubEnqueuer{}, stubInspector{err: asynq.ErrQueueNotFound})
	stats, err = empty.InspectQueue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Pending)

	broken := NewJobsCLIWith(&stubEnqueuer{}, stubInspector{err: errors.New("redis down")})
	_, err = broken.InspectQueue(context.Background())
	require.Error(t, err)
}
