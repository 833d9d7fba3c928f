// Package legacy imports the SQLite database of the previous ward
// application into the current schema.
package legacy

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/wardcare/wardcare/internal/domain/assessment"
	"github.com/wardcare/wardcare/internal/domain/medication"
	"github.com/wardcare/wardcare/internal/domain/nursing"
	"github.com/wardcare/wardcare/internal/domain/order"
	"github.com/wardcare/wardcare/internal/domain/priority"
	"github.com/wardcare/wardcare/internal/domain/task"
)

// Transactor runs fn inside one transaction of the target database.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type NurseWriter interface {
	Create(ctx context.Context, n *nursing.Nurse) error
}

type PatientWriter interface {
	Create(ctx context.Context, p *nursing.Patient) error
}

type NoteWriter interface {
	Create(ctx context.Context, n *nursing.Note) error
}

type AssessmentWriter interface {
	Create(ctx context.Context, a *assessment.Assessment) error
}

type DoseWriter interface {
	Create(ctx context.Context, d *medication.Dose) error
}

type TaskWriter interface {
	Create(ctx context.Context, t *task.Task) error
}

type OrderWriter interface {
	Create(ctx context.Context, o *order.Order) error
}

type ProblemWriter interface {
	Replace(ctx context.Context, patientID uuid.UUID, labels []string) ([]*priority.Problem, error)
}

// Targets are the stores the importer writes to.
type Targets struct {
	Tx          Transactor
	Nurses      NurseWriter
	Patients    PatientWriter
	Notes       NoteWriter
	Assessments AssessmentWriter
	Doses       DoseWriter
	Tasks       TaskWriter
	Orders      OrderWriter
	Problems    ProblemWriter
}

// Summary counts the imported rows. Skipped counts rows that referenced
// a patient missing from the legacy database.
type Summary struct {
	Nurses      int `json:"nurses"`
	Patients    int `json:"patients"`
	Assessments int `json:"assessments"`
	Notes       int `json:"notes"`
	Doses       int `json:"doses"`
	Tasks       int `json:"tasks"`
	Orders      int `json:"orders"`
	Problems    int `json:"problems"`
	Skipped     int `json:"skipped"`
}

type Importer struct {
	t      Targets
	logger zerolog.Logger
	now    func() time.Time
}

func NewImporter(t Targets, logger zerolog.Logger) *Importer {
	return &Importer{t: t, logger: logger, now: time.Now}
}

// WithClock replaces the time source used for rows without timestamps.
func (im *Importer) WithClock(now func() time.Time) *Importer {
	im.now = now
	return im
}

// run holds the id maps of one import.
type run struct {
	src      *sql.DB
	now      time.Time
	nurses   map[int64]uuid.UUID
	byName   map[string]uuid.UUID
	patients map[int64]uuid.UUID
	sum      Summary
}

func (r *run) nurseByName(name sql.NullString) *uuid.UUID {
	if !name.Valid {
		return nil
	}
	id, ok := r.byName[strings.ToLower(strings.TrimSpace(name.String))]
	if !ok {
		return nil
	}
	return &id
}

func (r *run) patient(legacyID int64) (uuid.UUID, bool) {
	id, ok := r.patients[legacyID]
	if !ok {
		r.sum.Skipped++
	}
	return id, ok
}

// Import reads the legacy database at path and writes every record in one
// transaction. Nothing is written if any step fails.
func (im *Importer) Import(ctx context.Context, path string) (*Summary, error) {
	src, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	defer func() { _ = src.Close() }()
	if err := src.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	r := &run{
		src:      src,
		now:      im.now(),
		nurses:   make(map[int64]uuid.UUID),
		byName:   make(map[string]uuid.UUID),
		patients: make(map[int64]uuid.UUID),
	}
	steps := []struct {
		table    string
		required bool
		fn       func(ctx context.Context, r *run) error
	}{
		{"nurses", true, im.importNurses},
		{"patients", true, im.importPatients},
		{"assessments", false, im.importAssessments},
		{"nurse_notes", false, im.importNotes},
		{"medications", false, im.importMedications},
		{"ai_tasks", false, im.importTasks},
		{"orders", false, im.importOrders},
		{"lab_orders", false, im.importLabOrders},
		{"patient_priorities", false, im.importPriorities},
	}

	err = im.t.Tx.InTx(ctx, func(ctx context.Context) error {
		for _, s := range steps {
			ok, err := tableExists(ctx, src, s.table)
			if err != nil {
				return err
			}
			if !ok {
				if s.required {
					return fmt.Errorf("legacy table %q not found", s.table)
				}
				im.logger.Warn().Str("table", s.table).Msg("legacy table missing, skipped")
				continue
			}
			if err := s.fn(ctx, r); err != nil {
				return fmt.Errorf("import %s: %w", s.table, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	im.logger.Info().
		Int("nurses", r.sum.Nurses).
		Int("patients", r.sum.Patients).
		Int("assessments", r.sum.Assessments).
		Int("notes", r.sum.Notes).
		Int("doses", r.sum.Doses).
		Int("tasks", r.sum.Tasks).
		Int("orders", r.sum.Orders).
		Int("problems", r.sum.Problems).
		Int("skipped", r.sum.Skipped).
		Msg("legacy import complete")
	return &r.sum, nil
}

func tableExists(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("inspect sqlite: %w", err)
	}
	return n > 0, nil
}

func (im *Importer) importNurses(ctx context.Context, r *run) error {
	rows, err := r.src.QueryContext(ctx, `SELECT id, name FROM nurses ORDER BY id`)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var (
			legacyID int64
			name     string
		)
		if err := rows.Scan(&legacyID, &name); err != nil {
			return err
		}
		n := &nursing.Nurse{ID: uuid.New(), Name: strings.TrimSpace(name)}
		if err := im.t.Nurses.Create(ctx, n); err != nil {
			return err
		}
		r.nurses[legacyID] = n.ID
		r.byName[strings.ToLower(n.Name)] = n.ID
		r.sum.Nurses++
	}
	return rows.Err()
}

func (im *Importer) importPatients(ctx context.Context, r *run) error {
	rows, err := r.src.QueryContext(ctx, `
		SELECT id, patient_identifier, name, room, diagnosis, bezugspflege_id, allergies
		FROM patients ORDER BY id`)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var (
			legacyID   int64
			identifier string
			name       string
			room       sql.NullString
			diagnosis  sql.NullString
			nurseID    sql.NullInt64
			allergies  sql.NullString
		)
		if err := rows.Scan(&legacyID, &identifier, &name, &room, &diagnosis, &nurseID, &allergies); err != nil {
			return err
		}
		p := &nursing.Patient{
			ID:         uuid.New(),
			Identifier: identifier,
			Name:       name,
			Room:       str(room),
			Diagnosis:  str(diagnosis),
			Allergies:  str(allergies),
		}
		if nurseID.Valid {
			if id, ok := r.nurses[nurseID.Int64]; ok {
				p.AssignedNurseID = &id
			}
		}
		if err := im.t.Patients.Create(ctx, p); err != nil {
			return err
		}
		r.patients[legacyID] = p.ID
		r.sum.Patients++
	}
	return rows.Err()
}

func (im *Importer) importAssessments(ctx context.Context, r *run) error {
	rows, err := r.src.QueryContext(ctx, `
		SELECT patient_id, created_at, author,
			temperature, heart_rate, respiration_rate, systolic_bp, diastolic_bp, oxygen_sat, weight,
			pain, mobility, edema, confusion, nutrition,
			skin, cardiac, respiratory, neuro, gastro, other_notes
		FROM assessments ORDER BY id`)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var (
			patientID                                           int64
			createdAt, author                                   sql.NullString
			temperature                                         sql.NullFloat64
			hr, rr, sys, dia, o2, weight                        sql.NullInt64
			pain, mobility, edema, confusion, nutrition         sql.NullInt64
			skin, cardiac, respiratory, neuro, gastro, otherTxt sql.NullString
		)
		if err := rows.Scan(&patientID, &createdAt, &author,
			&temperature, &hr, &rr, &sys, &dia, &o2, &weight,
			&pain, &mobility, &edema, &confusion, &nutrition,
			&skin, &cardiac, &respiratory, &neuro, &gastro, &otherTxt); err != nil {
			return err
		}
		pid, ok := r.patient(patientID)
		if !ok {
			continue
		}
		a := &assessment.Assessment{
			PatientID:       pid,
			AuthorID:        r.nurseByName(author),
			RecordedAt:      r.timestamp(createdAt),
			Temperature:     float(temperature),
			HeartRate:       integer(hr),
			RespirationRate: integer(rr),
			SystolicBP:      integer(sys),
			DiastolicBP:     integer(dia),
			OxygenSat:       integer(o2),
			Weight:          integer(weight),
			Pain:            integer(pain),
			Mobility:        integer(mobility),
			Edema:           integer(edema),
			Confusion:       integer(confusion),
			Nutrition:       integer(nutrition),
			Skin:            str(skin),
			Cardiac:         str(cardiac),
			Respiratory:     str(respiratory),
			Neuro:           str(neuro),
			Gastro:          str(gastro),
			OtherNotes:      str(otherTxt),
		}
		a.Clamp()
		if err := im.t.Assessments.Create(ctx, a); err != nil {
			return err
		}
		r.sum.Assessments++
	}
	return rows.Err()
}

func (im *Importer) importNotes(ctx context.Context, r *run) error {
	rows, err := r.src.QueryContext(ctx, `SELECT patient_id, note, created_at, author FROM nurse_notes ORDER BY id`)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var (
			patientID         int64
			text              string
			createdAt, author sql.NullString
		)
		if err := rows.Scan(&patientID, &text, &createdAt, &author); err != nil {
			return err
		}
		pid, ok := r.patient(patientID)
		if !ok || strings.TrimSpace(text) == "" {
			continue
		}
		n := &nursing.Note{
			PatientID: pid,
			AuthorID:  r.nurseByName(author),
			Text:      text,
			CreatedAt: r.timestamp(createdAt),
		}
		if err := im.t.Notes.Create(ctx, n); err != nil {
			return err
		}
		r.sum.Notes++
	}
	return rows.Err()
}

func (im *Importer) importMedications(ctx context.Context, r *run) error {
	rows, err := r.src.QueryContext(ctx, `
		SELECT patient_id, name, dose, route, schedule, next_due,
			COALESCE(given, 0), COALESCE(not_given, 0), last_given_by, last_given_at
		FROM medications ORDER BY id`)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var (
			patientID                      int64
			name                           string
			dose, route, schedule, nextDue sql.NullString
			given, notGiven                int64
			givenBy, givenAt               sql.NullString
		)
		if err := rows.Scan(&patientID, &name, &dose, &route, &schedule, &nextDue,
			&given, &notGiven, &givenBy, &givenAt); err != nil {
			return err
		}
		pid, ok := r.patient(patientID)
		if !ok {
			continue
		}
		d := &medication.Dose{
			PatientID: pid,
			Drug:      strings.TrimSpace(name),
			Dose:      dose.String,
			Route:     route.String,
			Schedule:  schedule.String,
			NextDue:   nextDue.String,
			State:     doseState(given, notGiven),
		}
		if d.State != medication.StateOpen {
			d.AdministeredBy = r.nurseByName(givenBy)
			if givenAt.Valid && givenAt.String != "" {
				at := r.timestamp(givenAt)
				d.AdministeredAt = &at
			}
		}
		if err := im.t.Doses.Create(ctx, d); err != nil {
			return err
		}
		r.sum.Doses++
	}
	return rows.Err()
}

// doseState maps the legacy flag pair. Rows with both flags set count as
// given.
func doseState(given, notGiven int64) medication.DoseState {
	switch {
	case given != 0:
		return medication.StateGiven
	case notGiven != 0:
		return medication.StateNotGiven
	}
	return medication.StateOpen
}

func (im *Importer) importTasks(ctx context.Context, r *run) error {
	rows, err := r.src.QueryContext(ctx, `
		SELECT patient_id, description, due_time, COALESCE(completed, 0) FROM ai_tasks ORDER BY id`)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var (
			patientID   int64
			description string
			due         sql.NullString
			completed   int64
		)
		if err := rows.Scan(&patientID, &description, &due, &completed); err != nil {
			return err
		}
		pid, ok := r.patient(patientID)
		if !ok {
			continue
		}
		t := &task.Task{
			PatientID:   pid,
			Description: description,
			Completed:   completed != 0,
			Source:      task.SourceImport,
		}
		if due.Valid && strings.TrimSpace(due.String) != "" {
			at := r.timestamp(due)
			t.DueAt = &at
		}
		if t.Completed {
			done := r.now
			if t.DueAt != nil {
				done = *t.DueAt
			}
			t.CompletedAt = &done
		}
		if err := im.t.Tasks.Create(ctx, t); err != nil {
			return err
		}
		r.sum.Tasks++
	}
	return rows.Err()
}

func (im *Importer) importOrders(ctx context.Context, r *run) error {
	rows, err := r.src.QueryContext(ctx, `
		SELECT patient_id, description, due_date, due_time, status, ordered_by, type, COALESCE(completed, 0)
		FROM orders ORDER BY id`)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var (
			patientID                int64
			description              string
			dueDate, dueTime, status sql.NullString
			orderedBy, kind          sql.NullString
			completed                int64
		)
		if err := rows.Scan(&patientID, &description, &dueDate, &dueTime, &status, &orderedBy, &kind, &completed); err != nil {
			return err
		}
		pid, ok := r.patient(patientID)
		if !ok || strings.TrimSpace(description) == "" {
			continue
		}
		o := &order.Order{
			PatientID:   pid,
			Kind:        order.KindDoctor,
			Description: strings.TrimSpace(description),
			Category:    strings.TrimSpace(kind.String),
			OrderedBy:   strings.TrimSpace(orderedBy.String),
			Status:      order.ParseStatus(status.String),
			DueAt:       r.orderDue(dueDate, dueTime),
		}
		if completed != 0 {
			o.Status = order.StatusDone
		}
		if o.Done() {
			done := r.now
			if o.DueAt != nil {
				done = *o.DueAt
			}
			o.CompletedAt = &done
		}
		if err := im.t.Orders.Create(ctx, o); err != nil {
			return err
		}
		r.sum.Orders++
	}
	return rows.Err()
}

// orderDue joins the separate legacy date and time columns. A time without
// a date means today, a date without a time means midnight.
func (r *run) orderDue(date, clock sql.NullString) *time.Time {
	d, c := strings.TrimSpace(date.String), strings.TrimSpace(clock.String)
	if d == "" && c == "" {
		return nil
	}
	if c == "" {
		if day, err := time.ParseInLocation("2006-01-02", d, r.now.Location()); err == nil {
			return &day
		}
	}
	at := r.timestamp(sql.NullString{String: strings.TrimSpace(d + " " + c), Valid: true})
	return &at
}

func (im *Importer) importLabOrders(ctx context.Context, r *run) error {
	rows, err := r.src.QueryContext(ctx, `
		SELECT patient_id, name, priority, status, ordered_at FROM lab_orders ORDER BY id`)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var (
			patientID               int64
			name                    string
			prio, status, orderedAt sql.NullString
		)
		if err := rows.Scan(&patientID, &name, &prio, &status, &orderedAt); err != nil {
			return err
		}
		pid, ok := r.patient(patientID)
		if !ok || strings.TrimSpace(name) == "" {
			continue
		}
		o := &order.Order{
			PatientID:   pid,
			Kind:        order.KindLab,
			Description: strings.TrimSpace(name),
			Category:    strings.TrimSpace(prio.String),
			Status:      order.ParseStatus(status.String),
			CreatedAt:   r.timestamp(orderedAt),
		}
		if o.Category == "" {
			o.Category = order.DefaultLabPriority
		}
		if o.Done() {
			done := o.CreatedAt
			o.CompletedAt = &done
		}
		if err := im.t.Orders.Create(ctx, o); err != nil {
			return err
		}
		r.sum.Orders++
	}
	return rows.Err()
}

func (im *Importer) importPriorities(ctx context.Context, r *run) error {
	rows, err := r.src.QueryContext(ctx, `
		SELECT patient_id, problem FROM patient_priorities ORDER BY patient_id, priority_rank, id`)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	labels := make(map[uuid.UUID][]string)
	var patients []uuid.UUID
	for rows.Next() {
		var (
			patientID int64
			problem   string
		)
		if err := rows.Scan(&patientID, &problem); err != nil {
			return err
		}
		pid, ok := r.patient(patientID)
		if !ok {
			continue
		}
		problem = strings.TrimSpace(problem)
		if problem == "" || len(labels[pid]) >= priority.MaxProblems {
			continue
		}
		if _, seen := labels[pid]; !seen {
			patients = append(patients, pid)
		}
		labels[pid] = append(labels[pid], problem)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for _, pid := range patients {
		written, err := im.t.Problems.Replace(ctx, pid, labels[pid])
		if err != nil {
			return err
		}
		r.sum.Problems += len(written)
	}
	return nil
}

func (r *run) timestamp(s sql.NullString) time.Time {
	return medication.ParseDue(s.String, r.now)
}

func str(s sql.NullString) *string {
	if !s.Valid || strings.TrimSpace(s.String) == "" {
		return nil
	}
	v := s.String
	return &v
}

func integer(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func float(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
