package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doherty-labs/health-app-demo/pkg/common"
	"github.com/doherty-labs/health-app-demo/pkg/index"
	"github.com/doherty-labs/health-app-demo/pkg/types"
)

func setupSyncTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := NewSQLiteDBForTest()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	statements := []string{
		`CREATE TABLE patient (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			email TEXT NOT NULL,
			phone TEXT DEFAULT '',
			date_of_birth DATE,
			gender TEXT DEFAULT '',
			health_care_number TEXT DEFAULT '',
			address_line_1 TEXT DEFAULT '',
			address_line_2 TEXT DEFAULT '',
			city TEXT DEFAULT '',
			state TEXT DEFAULT '',
			zip_code TEXT DEFAULT '',
			country TEXT DEFAULT '',
			latitude REAL,
			longitude REAL
		)`,
		`CREATE TABLE patient_document (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			patient_id INTEGER NOT NULL,
			download_url TEXT NOT NULL,
			is_id BOOLEAN DEFAULT FALSE,
			is_proof_of_address BOOLEAN DEFAULT FALSE,
			state TEXT DEFAULT '',
			uploaded_at TIMESTAMP
		)`,
		`CREATE TABLE patient_practice (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			patient_id INTEGER NOT NULL,
			practice_id INTEGER NOT NULL,
			created_at TIMESTAMP,
			UNIQUE (patient_id, practice_id)
		)`,
		`CREATE TABLE appointment (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symptoms TEXT NOT NULL,
			symptom_category TEXT DEFAULT '',
			symptoms_duration_seconds INTEGER DEFAULT 0,
			priority INTEGER,
			state TEXT NOT NULL DEFAULT 'submitted',
			patient_id INTEGER NOT NULL,
			practice_id INTEGER NOT NULL,
			assigned_to_id INTEGER,
			created_at TIMESTAMP,
			updated_at TIMESTAMP
		)`,
		`CREATE TABLE appointment_state_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			appointment_id INTEGER NOT NULL,
			from_state TEXT DEFAULT '',
			to_state TEXT NOT NULL,
			triggered_by_id INTEGER NOT NULL,
			created_at TIMESTAMP,
			transition_away_at TIMESTAMP
		)`,
		`CREATE TABLE appointment_comment (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			appointment_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			comment TEXT NOT NULL,
			created_at TIMESTAMP,
			updated_at TIMESTAMP
		)`,
		`CREATE TABLE appointment_assign_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			appointment_id INTEGER NOT NULL,
			from_user_id INTEGER,
			to_user_id INTEGER,
			created_at TIMESTAMP
		)`,
		`CREATE TABLE appointment_document (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			appointment_id INTEGER NOT NULL,
			download_url TEXT NOT NULL,
			uploaded_at TIMESTAMP
		)`,
	}
	for _, stmt := range statements {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	return db
}

// setupSyncGraph wires patient and appointment repositories over one shared
// in-memory index store, with the patient change hook registered the way the
// gateway registers it.
func setupSyncGraph(t *testing.T) (*PatientPostgresRepository, AppointmentRepository, *index.Service) {
	t.Helper()

	backend := NewPostgresBackendWithDB(setupSyncTestDB(t))

	rdb, err := common.NewRedisClientForTest()
	require.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })
	lock := common.NewRedisLock(rdb)

	store := index.NewMemoryIndexStore()
	patientSvc := index.NewService(index.PatientIndex(), store, lock, types.IndexConfig{})
	apptSvc := index.NewService(index.AppointmentIndex(), store, lock, types.IndexConfig{})

	patients := NewPatientPostgresRepository(backend, patientSvc)
	appointments := NewAppointmentPostgresRepository(backend, apptSvc, patients)

	patients.OnChange(func(ctx context.Context, patientId int64) error {
		return appointments.UpdateIndexByPatientID(ctx, patientId)
	})

	return patients, appointments, apptSvc
}

func TestPatientUpdateRefreshesAppointmentDocuments(t *testing.T) {
	patients, appointments, apptSvc := setupSyncGraph(t)
	ctx := context.Background()

	patient, err := patients.Create(ctx, &types.Patient{
		FirstName: "Ada",
		LastName:  "Byron",
		Email:     "ada@example.com",
	})
	require.NoError(t, err)

	appt, err := appointments.Create(ctx, &types.Appointment{
		Symptoms:   "persistent cough",
		PatientID:  patient.ID,
		PracticeID: 1,
	})
	require.NoError(t, err)

	raw, err := apptSvc.Get(ctx, appt.DocumentID())
	require.NoError(t, err)
	var before types.Appointment
	require.NoError(t, json.Unmarshal(raw, &before))
	require.NotNil(t, before.Patient)
	require.Equal(t, "Ada Byron", before.Patient.FullName)

	// Renaming the patient must propagate into the snapshot embedded in the
	// appointment document once the write commits
	_, err = patients.Update(ctx, patient.ID, &types.Patient{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
	})
	require.NoError(t, err)

	raw, err = apptSvc.Get(ctx, appt.DocumentID())
	require.NoError(t, err)
	var after types.Appointment
	require.NoError(t, json.Unmarshal(raw, &after))
	require.NotNil(t, after.Patient)
	assert.Equal(t, "Ada Lovelace", after.Patient.FullName)
	assert.Equal(t, "persistent cough", after.Symptoms)
}

func TestPatientChangeHooksRunAfterCommitOnly(t *testing.T) {
	patients, _, _ := setupSyncGraph(t)
	ctx := context.Background()

	notified := []int64{}
	patients.OnChange(func(ctx context.Context, patientId int64) error {
		notified = append(notified, patientId)
		return nil
	})

	patient, err := patients.Create(ctx, &types.Patient{
		FirstName: "Grace",
		LastName:  "Hopper",
		Email:     "grace@example.com",
	})
	require.NoError(t, err)

	// Create does not fire the change hook, only update and delete do
	assert.Empty(t, notified)

	_, err = patients.Update(ctx, patient.ID, &types.Patient{
		FirstName: "Grace",
		LastName:  "Hopper-Murray",
		Email:     "grace@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{patient.ID}, notified)

	require.NoError(t, patients.Delete(ctx, patient.ID))
	assert.Equal(t, []int64{patient.ID, patient.ID}, notified)
}
