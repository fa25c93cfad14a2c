package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/doherty-labs/health-app-demo/pkg/index"
	"github.com/doherty-labs/health-app-demo/pkg/types"
	"github.com/rs/zerolog/log"
)

// AppointmentPostgresRepository implements AppointmentRepository over
// Postgres. Appointment documents embed the owning patient's snapshot, so
// patient reads go through the patient repository.
type AppointmentPostgresRepository struct {
	backend  *PostgresBackend
	elastic  *index.Service
	patients PatientRepository
}

func NewAppointmentPostgresRepository(backend *PostgresBackend, elastic *index.Service, patients PatientRepository) AppointmentRepository {
	return &AppointmentPostgresRepository{
		backend:  backend,
		elastic:  elastic,
		patients: patients,
	}
}

func (r *AppointmentPostgresRepository) Get(ctx context.Context, id int64) (*types.Appointment, error) {
	q := QuerierFromContext(ctx, r.backend.DB())

	row := q.QueryRowContext(ctx, `
		SELECT id, symptoms, symptom_category, symptoms_duration_seconds,
		       priority, state, patient_id, practice_id, assigned_to_id,
		       created_at, updated_at
		FROM appointment WHERE id = $1`, id)

	a := &types.Appointment{}
	var priority sql.NullInt64
	var assignedTo sql.NullInt64
	var createdAt, updatedAt sql.NullTime
	if err := row.Scan(
		&a.ID, &a.Symptoms, &a.SymptomCategory, &a.SymptomsDurationSeconds,
		&priority, &a.State, &a.PatientID, &a.PracticeID, &assignedTo,
		&createdAt, &updatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, &types.DocumentNotFoundError{Index: index.AppointmentIndexName, ID: strconv.FormatInt(id, 10)}
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}

	if priority.Valid {
		p := int(priority.Int64)
		a.Priority = &p
	}
	if assignedTo.Valid {
		a.AssignedToID = &assignedTo.Int64
	}
	a.CreatedAt = nullableTime(createdAt)
	a.UpdatedAt = nullableTime(updatedAt)

	var err error
	if a.Documents, err = r.getDocuments(ctx, q, id); err != nil {
		return nil, err
	}
	if a.Logs, err = r.getStateLogs(ctx, q, id); err != nil {
		return nil, err
	}
	if a.Comments, err = r.getComments(ctx, q, id); err != nil {
		return nil, err
	}
	if a.AssignHistory, err = r.getAssignLogs(ctx, q, id); err != nil {
		return nil, err
	}

	patient, err := r.patients.Get(ctx, a.PatientID)
	if err != nil {
		return nil, err
	}
	a.Patient = patient

	return a, nil
}

func (r *AppointmentPostgresRepository) getDocuments(ctx context.Context, q Querier, appointmentId int64) ([]types.AppointmentDocument, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, download_url, uploaded_at
		FROM appointment_document WHERE appointment_id = $1 ORDER BY uploaded_at DESC`, appointmentId)
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment documents: %w", err)
	}
	defer rows.Close()

	docs := []types.AppointmentDocument{}
	for rows.Next() {
		var d types.AppointmentDocument
		var uploadedAt sql.NullTime
		if err := rows.Scan(&d.ID, &d.DownloadURL, &uploadedAt); err != nil {
			return nil, err
		}
		d.UploadedAt = nullableTime(uploadedAt)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (r *AppointmentPostgresRepository) getStateLogs(ctx context.Context, q Querier, appointmentId int64) ([]types.StateLog, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, from_state, to_state, triggered_by_id, created_at, transition_away_at
		FROM appointment_state_log WHERE appointment_id = $1 ORDER BY created_at`, appointmentId)
	if err != nil {
		return nil, fmt.Errorf("failed to get state logs: %w", err)
	}
	defer rows.Close()

	logs := []types.StateLog{}
	for rows.Next() {
		var l types.StateLog
		var createdAt, awayAt sql.NullTime
		if err := rows.Scan(&l.ID, &l.FromState, &l.ToState, &l.TriggeredByID, &createdAt, &awayAt); err != nil {
			return nil, err
		}
		l.CreatedAt = nullableTime(createdAt)
		l.TransitionAwayAt = nullableTime(awayAt)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (r *AppointmentPostgresRepository) getComments(ctx context.Context, q Querier, appointmentId int64) ([]types.Comment, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, user_id, comment, created_at, updated_at
		FROM appointment_comment WHERE appointment_id = $1 ORDER BY created_at`, appointmentId)
	if err != nil {
		return nil, fmt.Errorf("failed to get comments: %w", err)
	}
	defer rows.Close()

	comments := []types.Comment{}
	for rows.Next() {
		var c types.Comment
		var createdAt, updatedAt sql.NullTime
		if err := rows.Scan(&c.ID, &c.UserID, &c.Comment, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		c.CreatedAt = nullableTime(createdAt)
		c.UpdatedAt = nullableTime(updatedAt)
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (r *AppointmentPostgresRepository) getAssignLogs(ctx context.Context, q Querier, appointmentId int64) ([]types.AssignLog, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, from_user_id, to_user_id, created_at
		FROM appointment_assign_log WHERE appointment_id = $1 ORDER BY created_at`, appointmentId)
	if err != nil {
		return nil, fmt.Errorf("failed to get assign logs: %w", err)
	}
	defer rows.Close()

	logs := []types.AssignLog{}
	for rows.Next() {
		var l types.AssignLog
		var fromUser, toUser sql.NullInt64
		var createdAt sql.NullTime
		if err := rows.Scan(&l.ID, &fromUser, &toUser, &createdAt); err != nil {
			return nil, err
		}
		if fromUser.Valid {
			l.FromUserID = &fromUser.Int64
		}
		if toUser.Valid {
			l.ToUserID = &toUser.Int64
		}
		l.CreatedAt = nullableTime(createdAt)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (r *AppointmentPostgresRepository) Create(ctx context.Context, data *types.Appointment) (*types.Appointment, error) {
	state := data.State
	if state == "" {
		state = "submitted"
	}
	if !types.ValidAppointmentState(state) {
		return nil, fmt.Errorf("unknown appointment state %q", state)
	}

	var result *types.Appointment
	err := RunInTx(ctx, r.backend.DB(), func(ctx context.Context) error {
		q := QuerierFromContext(ctx, r.backend.DB())

		var id int64
		if err := q.QueryRowContext(ctx, `
			INSERT INTO appointment (symptoms, symptom_category,
				symptoms_duration_seconds, priority, state, patient_id,
				practice_id, assigned_to_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id`,
			data.Symptoms, data.SymptomCategory, data.SymptomsDurationSeconds,
			data.Priority, state, data.PatientID, data.PracticeID, data.AssignedToID,
		).Scan(&id); err != nil {
			return fmt.Errorf("failed to create appointment: %w", err)
		}

		// The patient has now used this practice
		if err := r.patients.AddPracticeLink(ctx, data.PatientID, data.PracticeID); err != nil {
			return err
		}

		created, err := r.Get(ctx, id)
		if err != nil {
			return err
		}
		result = created

		OnCommit(ctx, func(ctx context.Context) error {
			return r.elastic.Add(ctx, result)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *AppointmentPostgresRepository) Update(ctx context.Context, id int64, data *types.Appointment, triggeredById int64) (*types.Appointment, error) {
	if data.State != "" && !types.ValidAppointmentState(data.State) {
		return nil, fmt.Errorf("unknown appointment state %q", data.State)
	}

	var result *types.Appointment
	err := RunInTx(ctx, r.backend.DB(), func(ctx context.Context) error {
		q := QuerierFromContext(ctx, r.backend.DB())

		current, err := r.Get(ctx, id)
		if err != nil {
			return err
		}

		if _, err := q.ExecContext(ctx, `
			UPDATE appointment SET symptoms = $1, symptom_category = $2,
				symptoms_duration_seconds = $3, priority = $4, state = $5,
				assigned_to_id = $6, updated_at = CURRENT_TIMESTAMP
			WHERE id = $7`,
			data.Symptoms, data.SymptomCategory, data.SymptomsDurationSeconds,
			data.Priority, data.State, data.AssignedToID, id,
		); err != nil {
			return fmt.Errorf("failed to update appointment: %w", err)
		}

		if data.State != current.State {
			if err := r.logTransition(ctx, q, id, current.State, data.State, triggeredById); err != nil {
				return err
			}
		}
		if !sameUser(current.AssignedToID, data.AssignedToID) {
			if _, err := q.ExecContext(ctx, `
				INSERT INTO appointment_assign_log (appointment_id, from_user_id, to_user_id)
				VALUES ($1, $2, $3)`,
				id, current.AssignedToID, data.AssignedToID,
			); err != nil {
				return fmt.Errorf("failed to log assignment: %w", err)
			}
		}

		updated, err := r.Get(ctx, id)
		if err != nil {
			return err
		}
		result = updated

		OnCommit(ctx, func(ctx context.Context) error {
			return r.elastic.Update(ctx, result)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// logTransition closes the open state log entry and opens a new one
func (r *AppointmentPostgresRepository) logTransition(ctx context.Context, q Querier, appointmentId int64, fromState, toState string, triggeredById int64) error {
	if _, err := q.ExecContext(ctx, `
		UPDATE appointment_state_log SET transition_away_at = CURRENT_TIMESTAMP
		WHERE appointment_id = $1 AND transition_away_at IS NULL`, appointmentId); err != nil {
		return fmt.Errorf("failed to close state log: %w", err)
	}
	if _, err := q.ExecContext(ctx, `
		INSERT INTO appointment_state_log (appointment_id, from_state, to_state, triggered_by_id)
		VALUES ($1, $2, $3, $4)`,
		appointmentId, fromState, toState, triggeredById,
	); err != nil {
		return fmt.Errorf("failed to log state transition: %w", err)
	}
	return nil
}

func sameUser(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (r *AppointmentPostgresRepository) Delete(ctx context.Context, id int64) error {
	return RunInTx(ctx, r.backend.DB(), func(ctx context.Context) error {
		q := QuerierFromContext(ctx, r.backend.DB())

		if _, err := q.ExecContext(ctx, `DELETE FROM appointment WHERE id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete appointment: %w", err)
		}

		OnCommit(ctx, func(ctx context.Context) error {
			return r.elastic.Remove(ctx, strconv.FormatInt(id, 10))
		})
		return nil
	})
}

func (r *AppointmentPostgresRepository) AddComment(ctx context.Context, appointmentId, userId int64, comment string) (*types.Appointment, error) {
	var result *types.Appointment
	err := RunInTx(ctx, r.backend.DB(), func(ctx context.Context) error {
		q := QuerierFromContext(ctx, r.backend.DB())

		if _, err := q.ExecContext(ctx, `
			INSERT INTO appointment_comment (appointment_id, user_id, comment)
			VALUES ($1, $2, $3)`,
			appointmentId, userId, comment,
		); err != nil {
			return fmt.Errorf("failed to add comment: %w", err)
		}

		updated, err := r.Get(ctx, appointmentId)
		if err != nil {
			return err
		}
		result = updated

		OnCommit(ctx, func(ctx context.Context) error {
			return r.elastic.Update(ctx, result)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *AppointmentPostgresRepository) Search(ctx context.Context, term string, size int) ([]types.Appointment, error) {
	size = clampSearchSize(size)
	result, err := r.elastic.Search(ctx, index.SearchRequest{
		Query: map[string]any{
			"multi_match": map[string]any{
				"query": term,
				"type":  "bool_prefix",
				"fields": []string{
					"symptoms", "symptom_category", "state",
					"full_name", "full_name._2gram", "full_name._3gram",
				},
			},
		},
		Size: &size,
	})
	if err != nil {
		return nil, err
	}

	return decodeHits[types.Appointment](result.Hits)
}

func (r *AppointmentPostgresRepository) EnumerateIDs(ctx context.Context) ([]int64, error) {
	return enumerateIDs(ctx, QuerierFromContext(ctx, r.backend.DB()), "appointment")
}

// RecreateIndex rebuilds the appointment index from the system-of-record
// under the zero-downtime migration protocol.
func (r *AppointmentPostgresRepository) RecreateIndex(ctx context.Context) error {
	ids, err := r.EnumerateIDs(ctx)
	if err != nil {
		return err
	}

	return index.WithMigration(ctx, r.elastic, func(ctx context.Context) error {
		populator := r.elastic.Populator()
		for _, id := range ids {
			a, err := r.Get(ctx, id)
			if err != nil {
				return err
			}
			if err := populator.Add(ctx, a); err != nil {
				return err
			}
		}
		return populator.Flush(ctx)
	})
}

// UpdateIndexByPatientID refreshes the embedded patient snapshot on every
// appointment belonging to the patient.
func (r *AppointmentPostgresRepository) UpdateIndexByPatientID(ctx context.Context, patientId int64) error {
	q := QuerierFromContext(ctx, r.backend.DB())
	rows, err := q.QueryContext(ctx, `SELECT id FROM appointment WHERE patient_id = $1 ORDER BY id`, patientId)
	if err != nil {
		return fmt.Errorf("failed to enumerate patient appointments: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range ids {
		a, err := r.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := r.elastic.Update(ctx, a); err != nil {
			return err
		}
	}

	if len(ids) > 0 {
		log.Debug().Int64("patient_id", patientId).Int("count", len(ids)).Msg("refreshed appointment documents for patient")
	}
	return nil
}
