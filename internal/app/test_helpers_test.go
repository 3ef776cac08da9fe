package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/example/compliance/internal/ports/secondary"
)

var (
	_ secondary.EscalationRepository = (*mockEscalationRepository)(nil)
	_ secondary.EnrollmentRepository = (*mockEnrollmentRepository)(nil)
	_ secondary.RunRepository        = (*mockRunRepository)(nil)
	_ secondary.FactSource           = (*mockFactSource)(nil)
	_ secondary.Notifier             = (*mockNotifier)(nil)
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// mockEscalationRepository implements secondary.EscalationRepository for testing.
// It enforces the same version compare-and-swap as the SQL adapters.
type mockEscalationRepository struct {
	mu      sync.Mutex
	records map[string]secondary.EscalationStateRecord
	events  []*secondary.EscalationEventRecord

	// forcedConflicts makes the next N saves fail with ErrVersionConflict.
	forcedConflicts int
	// beforeSave runs once per save, under the lock, before the version check.
	beforeSave func(m *mockEscalationRepository, rec *secondary.EscalationStateRecord)
	saveErr    error
	saves      int
}

func newMockEscalationRepository() *mockEscalationRepository {
	return &mockEscalationRepository{
		records: make(map[string]secondary.EscalationStateRecord),
	}
}

func (m *mockEscalationRepository) put(rec secondary.EscalationStateRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.EnrollmentID] = rec
}

func (m *mockEscalationRepository) Get(ctx context.Context, enrollmentID string) (*secondary.EscalationStateRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[enrollmentID]
	if !ok {
		return nil, fmt.Errorf("escalation record %s: %w", enrollmentID, secondary.ErrNotFound)
	}
	return &rec, nil
}

func (m *mockEscalationRepository) Save(ctx context.Context, rec *secondary.EscalationStateRecord, events []*secondary.EscalationEventRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++

	if m.beforeSave != nil {
		hook := m.beforeSave
		m.beforeSave = nil
		hook(m, rec)
	}
	if m.saveErr != nil {
		return m.saveErr
	}
	if m.forcedConflicts > 0 {
		m.forcedConflicts--
		return secondary.ErrVersionConflict
	}

	stored, ok := m.records[rec.EnrollmentID]
	if rec.Version == 0 && ok {
		return secondary.ErrVersionConflict
	}
	if rec.Version != 0 && (!ok || stored.Version != rec.Version) {
		return secondary.ErrVersionConflict
	}

	rec.Version++
	m.records[rec.EnrollmentID] = *rec
	m.events = append(m.events, events...)
	return nil
}

func (m *mockEscalationRepository) History(ctx context.Context, enrollmentID string) ([]*secondary.EscalationEventRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*secondary.EscalationEventRecord
	for _, e := range m.events {
		if e.EnrollmentID == enrollmentID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockEscalationRepository) CountByLevel(ctx context.Context) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[string]int)
	for _, r := range m.records {
		counts[r.Level]++
	}
	return counts, nil
}

func (m *mockEscalationRepository) eventCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

// mockEnrollmentRepository implements secondary.EnrollmentRepository for testing.
type mockEnrollmentRepository struct {
	enrollments map[string]*secondary.EnrollmentRecord
	listErr     error
}

func newMockEnrollmentRepository(ids ...string) *mockEnrollmentRepository {
	m := &mockEnrollmentRepository{enrollments: make(map[string]*secondary.EnrollmentRecord)}
	for _, id := range ids {
		m.add(id, "RS-DEFAULT")
	}
	return m
}

func (m *mockEnrollmentRepository) add(id, requirementSetID string) {
	m.enrollments[id] = &secondary.EnrollmentRecord{
		ID:               id,
		UserID:           "USR-" + id,
		RequirementSetID: requirementSetID,
		Active:           true,
		CreatedAt:        time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
	}
}

func (m *mockEnrollmentRepository) Get(ctx context.Context, id string) (*secondary.EnrollmentRecord, error) {
	if e, ok := m.enrollments[id]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("enrollment %s: %w", id, secondary.ErrNotFound)
}

func (m *mockEnrollmentRepository) ListActive(ctx context.Context) ([]*secondary.EnrollmentRecord, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*secondary.EnrollmentRecord
	for _, e := range m.enrollments {
		if e.Active {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockEnrollmentRepository) CountActive(ctx context.Context) (int, error) {
	list, err := m.ListActive(ctx)
	return len(list), err
}

// mockRunRepository implements secondary.RunRepository for testing.
type mockRunRepository struct {
	mu       sync.Mutex
	holder   string
	reports  []*secondary.RunReportRecord
	released []string
}

func newMockRunRepository() *mockRunRepository {
	return &mockRunRepository{}
}

func (m *mockRunRepository) AcquireLock(ctx context.Context, holder string, now time.Time, lease time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.holder != "" {
		return secondary.ErrLockHeld
	}
	m.holder = holder
	return nil
}

func (m *mockRunRepository) ReleaseLock(ctx context.Context, holder string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.holder == holder {
		m.holder = ""
	}
	m.released = append(m.released, holder)
	return nil
}

func (m *mockRunRepository) SaveReport(ctx context.Context, report *secondary.RunReportRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, report)
	return nil
}

func (m *mockRunRepository) Latest(ctx context.Context) (*secondary.RunReportRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.reports) == 0 {
		return nil, fmt.Errorf("run report: %w", secondary.ErrNotFound)
	}
	return m.reports[len(m.reports)-1], nil
}

// mockFactSource implements secondary.FactSource for testing.
type mockFactSource struct {
	mu       sync.Mutex
	facts    map[string]secondary.FactsRecord
	fallback secondary.FactsRecord
	failing  map[string]bool
	calls    int

	// When block is set, every fetch signals started and then waits on block.
	block   chan struct{}
	started chan string
}

func newMockFactSource(fallback secondary.FactsRecord) *mockFactSource {
	return &mockFactSource{
		facts:    make(map[string]secondary.FactsRecord),
		failing:  make(map[string]bool),
		fallback: fallback,
	}
}

func (m *mockFactSource) Fetch(ctx context.Context, enrollment *secondary.EnrollmentRecord) (*secondary.FactsRecord, error) {
	if m.block != nil {
		m.started <- enrollment.ID
		<-m.block
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failing[enrollment.ID] {
		return nil, errors.New("training service timeout")
	}
	if f, ok := m.facts[enrollment.ID]; ok {
		return &f, nil
	}
	f := m.fallback
	return &f, nil
}

// mockNotifier implements secondary.Notifier for testing.
type mockNotifier struct {
	mu     sync.Mutex
	events []*secondary.EscalationEventRecord
	err    error
}

func (m *mockNotifier) Notify(ctx context.Context, event *secondary.EscalationEventRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.err
}

var (
	passingFacts = secondary.FactsRecord{CompletedAllModules: true, PassedAllQuizzes: true, OverallScore: 91}
	failingFacts = secondary.FactsRecord{CompletedAllModules: true, PassedAllQuizzes: false, OverallScore: 55}
)
