package legacy

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardcare/wardcare/internal/domain/assessment"
	"github.com/wardcare/wardcare/internal/domain/medication"
	"github.com/wardcare/wardcare/internal/domain/nursing"
	"github.com/wardcare/wardcare/internal/domain/order"
	"github.com/wardcare/wardcare/internal/domain/priority"
	"github.com/wardcare/wardcare/internal/domain/task"
)

const legacySchema = `
CREATE TABLE nurses (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL);
CREATE TABLE patients (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	patient_identifier TEXT NOT NULL,
	name TEXT NOT NULL,
	gender TEXT, dob TEXT, room TEXT, diagnosis TEXT,
	bezugspflege_id INTEGER, allergies TEXT, code_status TEXT
);
CREATE TABLE medications (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	patient_id INTEGER NOT NULL, name TEXT NOT NULL,
	dose TEXT, route TEXT, schedule TEXT, next_due TEXT, due_time TEXT,
	completed INTEGER DEFAULT 0, given INTEGER DEFAULT 0, not_given INTEGER DEFAULT 0,
	last_given_by TEXT, last_given_at TEXT
);
CREATE TABLE nurse_notes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	patient_id INTEGER NOT NULL, note TEXT NOT NULL, created_at TEXT, author TEXT
);
CREATE TABLE assessments (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	patient_id INTEGER NOT NULL, created_at TEXT, author TEXT,
	temperature REAL, heart_rate INTEGER, respiration_rate INTEGER,
	systolic_bp INTEGER, diastolic_bp INTEGER, oxygen_sat INTEGER, weight INTEGER,
	pain INTEGER, mobility INTEGER, edema INTEGER, confusion INTEGER, nutrition INTEGER,
	skin TEXT, cardiac TEXT, respiratory TEXT, endocrine TEXT, lymphatic TEXT,
	musculoskeletal TEXT, neuro TEXT, gastro TEXT, other_notes TEXT
);
CREATE TABLE patient_priorities (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	patient_id INTEGER NOT NULL, priority_rank INTEGER NOT NULL, problem TEXT NOT NULL
);
CREATE TABLE ai_tasks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	patient_id INTEGER NOT NULL, description TEXT NOT NULL, due_time TEXT, completed INTEGER DEFAULT 0
);
CREATE TABLE orders (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	patient_id INTEGER NOT NULL, description TEXT NOT NULL, due_date TEXT, due_time TEXT,
	status TEXT, ordered_by TEXT, type TEXT, completed INTEGER DEFAULT 0
);
CREATE TABLE lab_orders (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	patient_id INTEGER NOT NULL, name TEXT NOT NULL, priority TEXT, status TEXT, ordered_at TEXT
);
`

const legacyData = `
INSERT INTO nurses (name) VALUES ('Anna'), ('Ben');
INSERT INTO patients (patient_identifier, name, room, diagnosis, bezugspflege_id, allergies)
	VALUES ('P-001', 'Erika Muster', '12a', 'Pneumonie', 2, 'Penicillin'),
	       ('P-002', 'Max Muster', NULL, NULL, NULL, '');
INSERT INTO assessments (patient_id, created_at, author, temperature, heart_rate, oxygen_sat, pain, other_notes)
	VALUES (1, '2025-11-03T08:15', 'Anna', 38.9, 400, 88, 14, 'hustet'),
	       (9, '2025-11-03T08:15', 'Anna', 37.0, 80, 97, 0, NULL);
INSERT INTO nurse_notes (patient_id, note, created_at, author)
	VALUES (1, 'Atemnot in der Nacht', '2025-11-03 06:00', 'ben'),
	       (2, 'unauffällig', NULL, 'Unbekannt');
INSERT INTO medications (patient_id, name, dose, route, schedule, next_due, given, not_given, last_given_by, last_given_at)
	VALUES (1, 'Amoxicillin', '1g', 'p.o.', '3x täglich', '2025-11-03T14:00', 1, 1, 'Anna', '2025-11-03 06:00'),
	       (1, 'Bisoprolol', '2.5mg', 'p.o.', '1x täglich', '08:00', 0, 1, 'Ben', NULL),
	       (2, 'Paracetamol', '500mg', 'p.o.', 'bei Bedarf', NULL, 0, 0, NULL, NULL);
INSERT INTO ai_tasks (patient_id, description, due_time, completed)
	VALUES (1, 'SpO₂ und Atemfrequenz alle 2h messen', '2025-11-03T10:00', 0),
	       (1, 'Schmerzen täglich erfragen', '2025-11-03T09:00', 1),
	       (2, 'Gewichtskontrolle täglich', NULL, 0);
INSERT INTO orders (patient_id, description, due_date, due_time, status, ordered_by, type, completed)
	VALUES (1, 'Blutkulturen abnehmen', '2025-11-03', '10:00', 'offen', 'Dr. Weber', 'Diagnostik', 0),
	       (1, 'Mobilisation an die Bettkante', '2025-11-03', '08:00', 'Erledigt', 'Dr. Weber', 'Pflegeaufgabe', 0),
	       (2, 'Röntgen Thorax', NULL, '14:30', 'geplant', 'Dr. Kaya', 'Anordnung', 1),
	       (7, 'EKG', NULL, NULL, 'offen', NULL, NULL, 0);
INSERT INTO lab_orders (patient_id, name, priority, status, ordered_at)
	VALUES (1, 'CRP', 'Notfall', 'Ausstehend', '2025-11-03 07:45'),
	       (2, 'Kleines Blutbild', NULL, 'Offen', '2025-11-02 18:00'),
	       (2, 'Elektrolyte', 'Routine', 'Erledigt', '2025-11-01 09:00');
INSERT INTO patient_priorities (patient_id, priority_rank, problem)
	VALUES (1, 2, 'Fieber / Infektionsrisiko'),
	       (1, 1, 'Hypoxie-Risiko / O₂-Überwachung'),
	       (1, 3, 'Starke Schmerzen'),
	       (1, 4, 'Sturz- und Dekubitusrisiko');
`

func writeLegacyDB(t *testing.T, stmts ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "legacy.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	for _, s := range stmts {
		_, err := db.Exec(s)
		require.NoError(t, err)
	}
	return path
}

type fakeTx struct{ calls int }

func (f *fakeTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	return fn(ctx)
}

type nurseSink struct{ rows []*nursing.Nurse }

func (s *nurseSink) Create(_ context.Context, n *nursing.Nurse) error {
	s.rows = append(s.rows, n)
	return nil
}

type patientSink struct{ rows []*nursing.Patient }

func (s *patientSink) Create(_ context.Context, p *nursing.Patient) error {
	s.rows = append(s.rows, p)
	return nil
}

type noteSink struct{ rows []*nursing.Note }

func (s *noteSink) Create(_ context.Context, n *nursing.Note) error {
	s.rows = append(s.rows, n)
	return nil
}

type assessmentSink struct{ rows []*assessment.Assessment }

func (s *assessmentSink) Create(_ context.Context, a *assessment.Assessment) error {
	s.rows = append(s.rows, a)
	return nil
}

type doseSink struct {
	rows []*medication.Dose
	err  error
}

func (s *doseSink) Create(_ context.Context, d *medication.Dose) error {
	if s.err != nil {
		return s.err
	}
	s.rows = append(s.rows, d)
	return nil
}

type taskSink struct{ rows []*task.Task }

func (s *taskSink) Create(_ context.Context, t *task.Task) error {
	s.rows = append(s.rows, t)
	return nil
}

type orderSink struct{ rows []*order.Order }

func (s *orderSink) Create(_ context.Context, o *order.Order) error {
	s.rows = append(s.rows, o)
	return nil
}

type problemSink struct{ labels map[uuid.UUID][]string }

func (s *problemSink) Replace(_ context.Context, patientID uuid.UUID, labels []string) ([]*priority.Problem, error) {
	s.labels[patientID] = labels
	out := make([]*priority.Problem, len(labels))
	for i, l := range labels {
		out[i] = &priority.Problem{PatientID: patientID, Rank: i + 1, Label: l}
	}
	return out, nil
}

type sinks struct {
	tx          *fakeTx
	nurses      *nurseSink
	patients    *patientSink
	notes       *noteSink
	assessments *assessmentSink
	doses       *doseSink
	tasks       *taskSink
	orders      *orderSink
	problems    *problemSink
}

var importNow = time.Date(2025, 11, 3, 12, 0, 0, 0, time.UTC)

func newImporter() (*Importer, *sinks) {
	s := &sinks{
		tx:          &fakeTx{},
		nurses:      &nurseSink{},
		patients:    &patientSink{},
		notes:       &noteSink{},
		assessments: &assessmentSink{},
		doses:       &doseSink{},
		tasks:       &taskSink{},
		orders:      &orderSink{},
		problems:    &problemSink{labels: make(map[uuid.UUID][]string)},
	}
	im := NewImporter(Targets{
		Tx:          s.tx,
		Nurses:      s.nurses,
		Patients:    s.patients,
		Notes:       s.notes,
		Assessments: s.assessments,
		Doses:       s.doses,
		Tasks:       s.tasks,
		Orders:      s.orders,
		Problems:    s.problems,
	}, zerolog.Nop()).WithClock(func() time.Time { return importNow })
	return im, s
}

func TestImport(t *testing.T) {
	path := writeLegacyDB(t, legacySchema, legacyData)
	im, s := newImporter()

	sum, err := im.Import(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 1, s.tx.calls, "everything runs in one transaction")
	assert.Equal(t, Summary{
		Nurses: 2, Patients: 2, Assessments: 1, Notes: 2, Doses: 3, Tasks: 3, Orders: 6, Problems: 3, Skipped: 2,
	}, *sum)

	anna, ben := s.nurses.rows[0], s.nurses.rows[1]
	erika, other := s.patients.rows[0], s.patients.rows[1]

	t.Run("patients keep their primary nurse", func(t *testing.T) {
		require.NotNil(t, erika.AssignedNurseID)
		assert.Equal(t, ben.ID, *erika.AssignedNurseID)
		assert.Equal(t, "Penicillin", erika.AllergyText())
		require.NotNil(t, erika.Room)
		assert.Equal(t, "12a", *erika.Room)
		assert.Nil(t, other.AssignedNurseID)
		assert.Nil(t, other.Allergies)
	})

	t.Run("assessments are clamped and attributed", func(t *testing.T) {
		a := s.assessments.rows[0]
		assert.Equal(t, erika.ID, a.PatientID)
		require.NotNil(t, a.AuthorID)
		assert.Equal(t, anna.ID, *a.AuthorID)
		assert.Equal(t, time.Date(2025, 11, 3, 8, 15, 0, 0, time.UTC), a.RecordedAt)
		assert.Equal(t, 250, *a.HeartRate)
		assert.Equal(t, 10, *a.Pain)
		assert.Equal(t, 88, *a.OxygenSat)
		assert.Nil(t, a.SystolicBP)
	})

	t.Run("note authors match case-insensitively", func(t *testing.T) {
		require.NotNil(t, s.notes.rows[0].AuthorID)
		assert.Equal(t, ben.ID, *s.notes.rows[0].AuthorID)
		assert.Nil(t, s.notes.rows[1].AuthorID)
		assert.Equal(t, importNow, s.notes.rows[1].CreatedAt)
	})

	t.Run("dose flags become states", func(t *testing.T) {
		amox, biso, para := s.doses.rows[0], s.doses.rows[1], s.doses.rows[2]
		assert.Equal(t, medication.StateGiven, amox.State)
		require.NotNil(t, amox.AdministeredBy)
		assert.Equal(t, anna.ID, *amox.AdministeredBy)
		require.NotNil(t, amox.AdministeredAt)
		assert.Equal(t, medication.StateNotGiven, biso.State)
		assert.Nil(t, biso.AdministeredAt)
		assert.Equal(t, "08:00", biso.NextDue)
		assert.Equal(t, medication.StateOpen, para.State)
		assert.Nil(t, para.AdministeredBy)
	})

	t.Run("tasks keep due time and completion", func(t *testing.T) {
		open, done, undated := s.tasks.rows[0], s.tasks.rows[1], s.tasks.rows[2]
		assert.False(t, open.Completed)
		require.NotNil(t, open.DueAt)
		assert.Equal(t, task.SourceImport, open.Source)
		assert.True(t, done.Completed)
		require.NotNil(t, done.CompletedAt)
		assert.Equal(t, *done.DueAt, *done.CompletedAt)
		assert.Nil(t, undated.DueAt)
	})

	t.Run("doctor orders keep status and due time", func(t *testing.T) {
		cultures, mobilise, xray := s.orders.rows[0], s.orders.rows[1], s.orders.rows[2]
		assert.Equal(t, order.KindDoctor, cultures.Kind)
		assert.Equal(t, order.StatusOpen, cultures.Status)
		assert.Equal(t, "Diagnostik", cultures.Category)
		assert.Equal(t, "Dr. Weber", cultures.OrderedBy)
		require.NotNil(t, cultures.DueAt)
		assert.Equal(t, time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC), *cultures.DueAt)
		assert.Nil(t, cultures.CompletedAt)

		assert.Equal(t, order.StatusDone, mobilise.Status)
		require.NotNil(t, mobilise.CompletedAt)
		assert.Equal(t, *mobilise.DueAt, *mobilise.CompletedAt)

		assert.Equal(t, other.ID, xray.PatientID)
		assert.Equal(t, order.StatusDone, xray.Status, "completed flag closes the order")
		require.NotNil(t, xray.DueAt)
		assert.Equal(t, time.Date(2025, 11, 3, 14, 30, 0, 0, time.UTC), *xray.DueAt)
	})

	t.Run("lab orders stay pending until done", func(t *testing.T) {
		crp, cbc, lytes := s.orders.rows[3], s.orders.rows[4], s.orders.rows[5]
		assert.Equal(t, order.KindLab, crp.Kind)
		assert.Equal(t, order.StatusPending, crp.Status)
		assert.Equal(t, "Notfall", crp.Category)
		assert.Equal(t, time.Date(2025, 11, 3, 7, 45, 0, 0, time.UTC), crp.CreatedAt)

		assert.Equal(t, order.StatusOpen, cbc.Status)
		assert.Equal(t, order.DefaultLabPriority, cbc.Category)
		assert.Nil(t, cbc.DueAt)

		assert.Equal(t, order.StatusDone, lytes.Status)
		require.NotNil(t, lytes.CompletedAt)
		assert.Equal(t, lytes.CreatedAt, *lytes.CompletedAt)
	})

	t.Run("priorities follow legacy rank and are capped", func(t *testing.T) {
		assert.Equal(t, []string{
			"Hypoxie-Risiko / O₂-Überwachung",
			"Fieber / Infektionsrisiko",
			"Starke Schmerzen",
		}, s.problems.labels[erika.ID])
		assert.NotContains(t, s.problems.labels, other.ID)
	})
}

func TestImport_OptionalTablesMissing(t *testing.T) {
	path := writeLegacyDB(t,
		`CREATE TABLE nurses (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL)`,
		`CREATE TABLE patients (id INTEGER PRIMARY KEY AUTOINCREMENT, patient_identifier TEXT NOT NULL,
			name TEXT NOT NULL, room TEXT, diagnosis TEXT, bezugspflege_id INTEGER, allergies TEXT)`,
		`INSERT INTO patients (patient_identifier, name) VALUES ('P-1', 'A')`,
	)
	im, _ := newImporter()

	sum, err := im.Import(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Patients)
	assert.Zero(t, sum.Doses)
	assert.Zero(t, sum.Orders)
}

func TestImport_RequiredTableMissing(t *testing.T) {
	path := writeLegacyDB(t, `CREATE TABLE nurses (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL)`)
	im, _ := newImporter()

	_, err := im.Import(context.Background(), path)
	assert.ErrorContains(t, err, `"patients"`)
}

func TestImport_WriteFailureAborts(t *testing.T) {
	path := writeLegacyDB(t, legacySchema, legacyData)
	im, s := newImporter()
	s.doses.err = errors.New("constraint violated")

	sum, err := im.Import(context.Background(), path)
	assert.Nil(t, sum)
	assert.ErrorContains(t, err, "import medications")
	assert.ErrorContains(t, err, "constraint violated")
}

func TestDoseState(t *testing.T) {
	assert.Equal(t, medication.StateGiven, doseState(1, 1))
	assert.Equal(t, medication.StateGiven, doseState(1, 0))
	assert.Equal(t, medication.StateNotGiven, doseState(0, 1))
	assert.Equal(t, medication.StateOpen, doseState(0, 0))
}

func TestOrderDue(t *testing.T) {
	r := &run{now: importNow}
	ns := func(v string) sql.NullString { return sql.NullString{String: v, Valid: v != ""} }

	assert.Nil(t, r.orderDue(ns(""), ns("")))
	day := r.orderDue(ns("2025-11-05"), ns(""))
	require.NotNil(t, day)
	assert.Equal(t, time.Date(2025, 11, 5, 0, 0, 0, 0, time.UTC), *day)
	clock := r.orderDue(ns(""), ns("07:15"))
	require.NotNil(t, clock)
	assert.Equal(t, time.Date(2025, 11, 3, 7, 15, 0, 0, time.UTC), *clock)
}
