package tasks

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"billops/internal"
	"billops/internal/storage"
)

// Progress checkpoints reported to the polling UI.
const (
	ProgressStarted   = 10
	ProgressAccount   = 20
	ProgressSMS       = 40
	ProgressSecondary = 60
	ProgressDone      = 100
)

// Manager persists collection tasks so the API, the in-process runner and
// billops worker all see the same status row.
type Manager struct {
	db  *storage.DB
	now func() time.Time
}

func NewManager(db *storage.DB) *Manager {
	return &Manager{db: db, now: time.Now}
}

// Create stores a new task in state starting. Ids are UUIDv7 so they sort by
// creation time.
func (m *Manager) Create(company, startDate, endDate string) (internal.Task, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return internal.Task{}, fmt.Errorf("task id: %w", err)
	}
	t := internal.Task{
		ID:           id.String(),
		Company:      company,
		Status:       internal.TaskStarting,
		Files:        []string{},
		Logs:         []string{fmt.Sprintf("%s 데이터 수집 시작", company)},
		CrawlingMode: true,
		StartDate:    startDate,
		EndDate:      endDate,
		CreatedAt:    m.now().Format(time.RFC3339),
	}
	if err := m.db.SaveTask(t); err != nil {
		return internal.Task{}, err
	}
	return t, nil
}

// Get returns storage.ErrNotFound for unknown ids.
func (m *Manager) Get(id string) (internal.Task, error) {
	return m.db.GetTask(id)
}

// tracker mutates one task and writes every change through.
type tracker struct {
	db   *storage.DB
	task internal.Task
}

func (m *Manager) track(id string) (*tracker, error) {
	t, err := m.db.GetTask(id)
	if err != nil {
		return nil, err
	}
	return &tracker{db: m.db, task: t}, nil
}

func (t *tracker) step(progress int, msg string) error {
	t.task.Status = internal.TaskRunning
	t.task.Progress = progress
	return t.logf("%s", msg)
}

func (t *tracker) logf(format string, args ...any) error {
	t.task.Logs = append(t.task.Logs, fmt.Sprintf(format, args...))
	return t.db.SaveTask(t.task)
}

func (t *tracker) addFiles(names ...string) {
	for _, n := range names {
		if !slices.Contains(t.task.Files, n) {
			t.task.Files = append(t.task.Files, n)
		}
	}
}

func (t *tracker) complete(msg string) error {
	t.task.Status = internal.TaskCompleted
	t.task.Progress = ProgressDone
	return t.logf("%s", msg)
}

func (t *tracker) fail(err error) error {
	t.task.Status = internal.TaskFailed
	t.task.Error = err.Error()
	return t.logf("심각한 오류 발생: %v", err)
}
