package engine

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wardcare/wardcare/internal/domain/alerting"
	"github.com/wardcare/wardcare/internal/domain/assessment"
	"github.com/wardcare/wardcare/internal/domain/medication"
	"github.com/wardcare/wardcare/internal/domain/nursing"
	"github.com/wardcare/wardcare/internal/domain/priority"
	"github.com/wardcare/wardcare/internal/domain/task"
	"github.com/wardcare/wardcare/internal/platform/lock"
	"github.com/wardcare/wardcare/internal/platform/notify"
)

// memStore is an in-memory record store shared by the fake repositories.
type memStore struct {
	mu          sync.Mutex
	seq         int
	patients    map[uuid.UUID]*nursing.Patient
	notes       []*nursing.Note
	assessments []*assessment.Assessment
	doses       []*medication.Dose
	alerts      map[uuid.UUID][]*alerting.Alert
	problems    map[uuid.UUID][]*priority.Problem
	tasks       []*task.Task
}

func newMemStore() *memStore {
	return &memStore{
		patients: make(map[uuid.UUID]*nursing.Patient),
		alerts:   make(map[uuid.UUID][]*alerting.Alert),
		problems: make(map[uuid.UUID][]*priority.Problem),
	}
}

// -- patients --

type memPatients struct{ s *memStore }

func (r memPatients) Create(_ context.Context, p *nursing.Patient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	r.s.patients[p.ID] = p
	return nil
}

func (r memPatients) GetByID(_ context.Context, id uuid.UUID) (*nursing.Patient, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.patients[id]
	if !ok {
		return nil, nursing.ErrPatientNotFound
	}
	cp := *p
	return &cp, nil
}

func (r memPatients) List(_ context.Context) ([]*nursing.Patient, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*nursing.Patient
	for _, p := range r.s.patients {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identifier < out[j].Identifier })
	return out, nil
}

func (r memPatients) SetAssignedNurse(_ context.Context, patientID, nurseID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.patients[patientID]
	if !ok {
		return nursing.ErrPatientNotFound
	}
	id := nurseID
	p.AssignedNurseID = &id
	return nil
}

// -- notes --

type memNotes struct{ s *memStore }

func (r memNotes) Create(_ context.Context, n *nursing.Note) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	r.s.notes = append(r.s.notes, n)
	return nil
}

func (r memNotes) Recent(_ context.Context, patientID uuid.UUID, limit int) ([]*nursing.Note, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*nursing.Note
	for i := len(r.s.notes) - 1; i >= 0 && len(out) < limit; i-- {
		if r.s.notes[i].PatientID == patientID {
			out = append(out, r.s.notes[i])
		}
	}
	return out, nil
}

func (r memNotes) CountByAuthor(_ context.Context, patientID uuid.UUID) (map[uuid.UUID]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	counts := make(map[uuid.UUID]int)
	for _, n := range r.s.notes {
		if n.PatientID == patientID && n.AuthorID != nil {
			counts[*n.AuthorID]++
		}
	}
	return counts, nil
}

// -- assessments --

type memAssessments struct{ s *memStore }

func (r memAssessments) Create(_ context.Context, a *assessment.Assessment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	r.s.assessments = append(r.s.assessments, a)
	return nil
}

func (r memAssessments) Latest(_ context.Context, patientID uuid.UUID) (*assessment.Assessment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var latest *assessment.Assessment
	for _, a := range r.s.assessments {
		if a.PatientID == patientID && (latest == nil || !a.RecordedAt.Before(latest.RecordedAt)) {
			latest = a
		}
	}
	return latest, nil
}

func (r memAssessments) ListByPatient(_ context.Context, patientID uuid.UUID, _, _ int) ([]*assessment.Assessment, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*assessment.Assessment
	for _, a := range r.s.assessments {
		if a.PatientID == patientID {
			out = append(out, a)
		}
	}
	return out, len(out), nil
}

func (r memAssessments) CountByAuthor(_ context.Context, patientID uuid.UUID) (map[uuid.UUID]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	counts := make(map[uuid.UUID]int)
	for _, a := range r.s.assessments {
		if a.PatientID == patientID && a.AuthorID != nil {
			counts[*a.AuthorID]++
		}
	}
	return counts, nil
}

// -- doses --

type memDoses struct{ s *memStore }

func (r memDoses) Create(_ context.Context, d *medication.Dose) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	cp := *d
	r.s.doses = append(r.s.doses, &cp)
	return nil
}

func (r memDoses) find(id uuid.UUID) int {
	for i, d := range r.s.doses {
		if d.ID == id {
			return i
		}
	}
	return -1
}

func (r memDoses) GetByID(_ context.Context, id uuid.UUID) (*medication.Dose, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	i := r.find(id)
	if i < 0 {
		return nil, medication.ErrNotFound
	}
	cp := *r.s.doses[i]
	return &cp, nil
}

func (r memDoses) Update(_ context.Context, d *medication.Dose) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	i := r.find(d.ID)
	if i < 0 {
		return medication.ErrNotFound
	}
	cp := *d
	r.s.doses[i] = &cp
	return nil
}

func (r memDoses) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if i := r.find(id); i >= 0 {
		r.s.doses = append(r.s.doses[:i], r.s.doses[i+1:]...)
	}
	return nil
}

func (r memDoses) filter(pred func(*medication.Dose) bool) []*medication.Dose {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*medication.Dose
	for _, d := range r.s.doses {
		if pred(d) {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out
}

func (r memDoses) ListByPatient(_ context.Context, patientID uuid.UUID, openOnly bool) ([]*medication.Dose, error) {
	return r.filter(func(d *medication.Dose) bool {
		return d.PatientID == patientID && (!openOnly || d.State == medication.StateOpen)
	}), nil
}

func (r memDoses) ListOpenSeries(_ context.Context, patientID uuid.UUID, drug, schedule string) ([]*medication.Dose, error) {
	return r.filter(func(d *medication.Dose) bool {
		return d.PatientID == patientID && d.Drug == drug && d.Schedule == schedule && d.State == medication.StateOpen
	}), nil
}

func (r memDoses) CountByAuthor(_ context.Context, patientID uuid.UUID) (map[uuid.UUID]int, error) {
	counts := make(map[uuid.UUID]int)
	for _, d := range r.filter(func(d *medication.Dose) bool {
		return d.PatientID == patientID && d.State == medication.StateGiven && d.AdministeredBy != nil
	}) {
		counts[*d.AdministeredBy]++
	}
	return counts, nil
}

// -- alerts --

type memAlerts struct{ s *memStore }

func (r memAlerts) Replace(_ context.Context, patientID uuid.UUID, alerts []*alerting.Alert) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range alerts {
		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
	}
	r.s.alerts[patientID] = alerts
	return nil
}

func (r memAlerts) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*alerting.Alert, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.alerts[patientID], nil
}

// -- problems --

type memProblems struct{ s *memStore }

func (r memProblems) Replace(_ context.Context, patientID uuid.UUID, labels []string) ([]*priority.Problem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*priority.Problem
	for i, l := range labels {
		out = append(out, &priority.Problem{ID: uuid.New(), PatientID: patientID, Rank: i + 1, Label: l})
	}
	r.s.problems[patientID] = out
	return out, nil
}

func (r memProblems) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*priority.Problem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return append([]*priority.Problem(nil), r.s.problems[patientID]...), nil
}

func (r memProblems) Delete(_ context.Context, patientID uuid.UUID, label string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	set := r.s.problems[patientID]
	for i, p := range set {
		if p.Label == label {
			r.s.problems[patientID] = append(set[:i:i], set[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// -- tasks --

type memTasks struct{ s *memStore }

func (r memTasks) create(t *task.Task) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	r.s.seq++
	t.CreatedAt = time.Unix(int64(r.s.seq), 0)
	cp := *t
	r.s.tasks = append(r.s.tasks, &cp)
}

func (r memTasks) Create(_ context.Context, t *task.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.create(t)
	return nil
}

func (r memTasks) find(id uuid.UUID) int {
	for i, t := range r.s.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (r memTasks) GetByID(_ context.Context, id uuid.UUID) (*task.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	i := r.find(id)
	if i < 0 {
		return nil, task.ErrNotFound
	}
	cp := *r.s.tasks[i]
	return &cp, nil
}

func (r memTasks) Update(_ context.Context, t *task.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	i := r.find(t.ID)
	if i < 0 {
		return task.ErrNotFound
	}
	cp := *t
	r.s.tasks[i] = &cp
	return nil
}

func (r memTasks) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if i := r.find(id); i >= 0 {
		r.s.tasks = append(r.s.tasks[:i], r.s.tasks[i+1:]...)
	}
	return nil
}

func (r memTasks) ListOpen(_ context.Context, patientID uuid.UUID) ([]*task.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*task.Task
	for _, t := range r.s.tasks {
		if t.PatientID == patientID && !t.Completed {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r memTasks) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*task.Task, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []*task.Task
	for _, t := range r.s.tasks {
		if t.PatientID == patientID {
			cp := *t
			all = append(all, &cp)
		}
	}
	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r memTasks) ReplaceOpen(_ context.Context, t *task.Task) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kept := r.s.tasks[:0]
	removed := 0
	for _, o := range r.s.tasks {
		if !o.Completed && o.PatientID == t.PatientID && o.Description == t.Description {
			removed++
			continue
		}
		kept = append(kept, o)
	}
	r.s.tasks = kept
	t.Completed = false
	r.create(t)
	return removed, nil
}

func (s *memStore) openTasks(patientID uuid.UUID) map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int)
	for _, t := range s.tasks {
		if t.PatientID == patientID && !t.Completed {
			out[t.Description]++
		}
	}
	return out
}

func (s *memStore) completedTasks(patientID uuid.UUID, desc string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		if t.PatientID == patientID && t.Description == desc && t.Completed {
			n++
		}
	}
	return n
}

func (s *memStore) notesContaining(patientID uuid.UUID, text string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, note := range s.notes {
		if note.PatientID == patientID && strings.Contains(note.Text, text) {
			n++
		}
	}
	return n
}

// -- transaction, publisher --

// passTx runs fn directly. When failCall is set, that call reports err as
// if its commit failed.
type passTx struct {
	mu       sync.Mutex
	calls    int
	failCall int
	err      error
}

func (t *passTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	t.calls++
	n := t.calls
	t.mu.Unlock()
	if err := fn(ctx); err != nil {
		return err
	}
	if n == t.failCall {
		return t.err
	}
	return nil
}

type recordingPublisher struct {
	mu    sync.Mutex
	snaps []notify.AlertSnapshot
	err   error
}

func (p *recordingPublisher) PublishAlerts(_ context.Context, snap notify.AlertSnapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snaps = append(p.snaps, snap)
	return p.err
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.snaps)
}

// -- fixture --

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type fixture struct {
	engine    *Engine
	store     *memStore
	tx        *passTx
	publisher *recordingPublisher
}

func newFixture() *fixture {
	s := newMemStore()
	clock := func() time.Time { return testNow }

	patients := memPatients{s}
	notes := memNotes{s}
	assessments := memAssessments{s}
	doseRepo := memDoses{s}

	doses := medication.NewService(doseRepo).WithClock(clock)
	alerts := alerting.NewService(assessments, doses, memAlerts{s}).WithClock(clock)
	tasks := task.NewScheduler(memTasks{s}).WithClock(clock)
	priorities := priority.NewService(memProblems{s}, assessments, notes, tasks, tasks, alerts)

	f := &fixture{store: s, tx: &passTx{}, publisher: &recordingPublisher{}}
	f.engine = New(Deps{
		Tx:          f.tx,
		Locker:      lock.NewLocal(),
		Publisher:   f.publisher,
		Logger:      zerolog.Nop(),
		Now:         clock,
		Nursing:     nursing.NewService(nil, patients, notes),
		Patients:    patients,
		Scorer:      nursing.NewScorer(patients, notes, assessments, doseRepo),
		Assessments: assessments,
		Doses:       doses,
		Alerts:      alerts,
		Ward:        alerting.NewWardView(patients, assessments, doses, notes, time.Minute),
		Priorities:  priorities,
		Tasks:       tasks,
	})
	return f
}

func (f *fixture) addPatient(identifier string) *nursing.Patient {
	p := &nursing.Patient{Identifier: identifier, Name: "Patient " + identifier}
	_ = memPatients{f.store}.Create(context.Background(), p)
	return p
}
