package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/doherty-labs/health-app-demo/pkg/index"
	"github.com/doherty-labs/health-app-demo/pkg/types"
)

// PatientPostgresRepository implements PatientRepository over Postgres with
// commit-deferred propagation into the patient search index.
type PatientPostgresRepository struct {
	backend  *PostgresBackend
	elastic  *index.Service
	onChange []func(ctx context.Context, patientId int64) error
}

func NewPatientPostgresRepository(backend *PostgresBackend, elastic *index.Service) *PatientPostgresRepository {
	return &PatientPostgresRepository{
		backend: backend,
		elastic: elastic,
	}
}

// OnChange registers a hook run after a patient write commits, on top of the
// patient's own index sync. The appointment repository hangs off this to
// refresh the patient snapshot embedded in its documents; registration
// happens at wiring time to keep the repositories acyclic.
func (r *PatientPostgresRepository) OnChange(hook func(ctx context.Context, patientId int64) error) {
	r.onChange = append(r.onChange, hook)
}

func (r *PatientPostgresRepository) notifyChanged(ctx context.Context, patientId int64) error {
	for _, hook := range r.onChange {
		if err := hook(ctx, patientId); err != nil {
			return err
		}
	}
	return nil
}

func (r *PatientPostgresRepository) Get(ctx context.Context, id int64) (*types.Patient, error) {
	q := QuerierFromContext(ctx, r.backend.DB())

	row := q.QueryRowContext(ctx, `
		SELECT id, user_id, first_name, last_name, email, phone, date_of_birth,
		       gender, health_care_number, address_line_1, address_line_2,
		       city, state, zip_code, country, latitude, longitude
		FROM patient WHERE id = $1`, id)

	p := &types.Patient{}
	var userId sql.NullInt64
	var dob sql.NullTime
	var lat, lon sql.NullFloat64
	if err := row.Scan(
		&p.ID, &userId, &p.FirstName, &p.LastName, &p.Email, &p.Phone, &dob,
		&p.Gender, &p.HealthCareNumber, &p.AddressLine1, &p.AddressLine2,
		&p.City, &p.State, &p.ZipCode, &p.Country, &lat, &lon,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, &types.DocumentNotFoundError{Index: index.PatientIndexName, ID: strconv.FormatInt(id, 10)}
		}
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}

	if userId.Valid {
		p.UserID = &userId.Int64
	}
	if dob.Valid {
		p.DateOfBirth = dob.Time.Format("2006-01-02")
	}
	applyGeo(&p.Address, lat, lon)
	p.FullName = strings.TrimSpace(p.FirstName + " " + p.LastName)

	docs, err := r.getDocuments(ctx, q, id)
	if err != nil {
		return nil, err
	}
	p.Documents = docs

	links, err := r.getPracticeLinks(ctx, q, id)
	if err != nil {
		return nil, err
	}
	p.PracticeLinks = links

	return p, nil
}

func (r *PatientPostgresRepository) getDocuments(ctx context.Context, q Querier, patientId int64) ([]types.PatientDocument, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, download_url, is_id, is_proof_of_address, state, uploaded_at
		FROM patient_document WHERE patient_id = $1 ORDER BY uploaded_at DESC`, patientId)
	if err != nil {
		return nil, fmt.Errorf("failed to get patient documents: %w", err)
	}
	defer rows.Close()

	docs := []types.PatientDocument{}
	for rows.Next() {
		var d types.PatientDocument
		var uploadedAt sql.NullTime
		if err := rows.Scan(&d.ID, &d.DownloadURL, &d.IsID, &d.IsProofOfAddress, &d.State, &uploadedAt); err != nil {
			return nil, err
		}
		d.UploadedAt = nullableTime(uploadedAt)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (r *PatientPostgresRepository) getPracticeLinks(ctx context.Context, q Querier, patientId int64) ([]types.PatientPracticeLink, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, patient_id, practice_id, created_at
		FROM patient_practice WHERE patient_id = $1 ORDER BY created_at`, patientId)
	if err != nil {
		return nil, fmt.Errorf("failed to get practice links: %w", err)
	}
	defer rows.Close()

	links := []types.PatientPracticeLink{}
	for rows.Next() {
		var l types.PatientPracticeLink
		var createdAt sql.NullTime
		if err := rows.Scan(&l.ID, &l.PatientID, &l.PracticeID, &createdAt); err != nil {
			return nil, err
		}
		l.CreatedAt = nullableTime(createdAt)
		links = append(links, l)
	}
	return links, rows.Err()
}

func (r *PatientPostgresRepository) Create(ctx context.Context, data *types.Patient) (*types.Patient, error) {
	var result *types.Patient
	err := RunInTx(ctx, r.backend.DB(), func(ctx context.Context) error {
		q := QuerierFromContext(ctx, r.backend.DB())

		var id int64
		var dob any
		if data.DateOfBirth != "" {
			dob = data.DateOfBirth
		}
		if err := q.QueryRowContext(ctx, `
			INSERT INTO patient (user_id, first_name, last_name, email, phone,
				date_of_birth, gender, health_care_number, address_line_1,
				address_line_2, city, state, zip_code, country, latitude, longitude)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
			RETURNING id`,
			data.UserID, data.FirstName, data.LastName, data.Email, data.Phone,
			dob, data.Gender, data.HealthCareNumber, data.AddressLine1,
			data.AddressLine2, data.City, data.State, data.ZipCode, data.Country,
			data.Latitude, data.Longitude,
		).Scan(&id); err != nil {
			return fmt.Errorf("failed to create patient: %w", err)
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

func (r *PatientPostgresRepository) Update(ctx context.Context, id int64, data *types.Patient) (*types.Patient, error) {
	var result *types.Patient
	err := RunInTx(ctx, r.backend.DB(), func(ctx context.Context) error {
		q := QuerierFromContext(ctx, r.backend.DB())

		var dob any
		if data.DateOfBirth != "" {
			dob = data.DateOfBirth
		}
		if _, err := q.ExecContext(ctx, `
			UPDATE patient SET first_name = $1, last_name = $2, email = $3,
				phone = $4, date_of_birth = $5, gender = $6,
				health_care_number = $7, address_line_1 = $8,
				address_line_2 = $9, city = $10, state = $11, zip_code = $12,
				country = $13, latitude = $14, longitude = $15
			WHERE id = $16`,
			data.FirstName, data.LastName, data.Email, data.Phone, dob,
			data.Gender, data.HealthCareNumber, data.AddressLine1,
			data.AddressLine2, data.City, data.State, data.ZipCode,
			data.Country, data.Latitude, data.Longitude, id,
		); err != nil {
			return fmt.Errorf("failed to update patient: %w", err)
		}

		updated, err := r.Get(ctx, id)
		if err != nil {
			return err
		}
		result = updated

		OnCommit(ctx, func(ctx context.Context) error {
			return r.elastic.Update(ctx, result)
		})
		OnCommit(ctx, func(ctx context.Context) error {
			return r.notifyChanged(ctx, id)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PatientPostgresRepository) Delete(ctx context.Context, id int64) error {
	return RunInTx(ctx, r.backend.DB(), func(ctx context.Context) error {
		q := QuerierFromContext(ctx, r.backend.DB())

		if _, err := q.ExecContext(ctx, `DELETE FROM patient WHERE id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete patient: %w", err)
		}

		OnCommit(ctx, func(ctx context.Context) error {
			return r.elastic.Remove(ctx, strconv.FormatInt(id, 10))
		})
		OnCommit(ctx, func(ctx context.Context) error {
			return r.notifyChanged(ctx, id)
		})
		return nil
	})
}

// AddPracticeLink records that a patient has used a practice; idempotent
func (r *PatientPostgresRepository) AddPracticeLink(ctx context.Context, patientId, practiceId int64) error {
	q := QuerierFromContext(ctx, r.backend.DB())
	_, err := q.ExecContext(ctx, `
		INSERT INTO patient_practice (patient_id, practice_id)
		VALUES ($1, $2) ON CONFLICT (patient_id, practice_id) DO NOTHING`,
		patientId, practiceId)
	if err != nil {
		return fmt.Errorf("failed to link patient to practice: %w", err)
	}
	return nil
}

func (r *PatientPostgresRepository) Search(ctx context.Context, term string, size int) ([]types.Patient, error) {
	size = clampSearchSize(size)
	result, err := r.elastic.Search(ctx, index.SearchRequest{
		Query: map[string]any{
			"multi_match": map[string]any{
				"query": term,
				"type":  "bool_prefix",
				"fields": []string{
					"full_name", "full_name._2gram", "full_name._3gram",
					"email", "phone", "health_care_number",
				},
			},
		},
		Size: &size,
	})
	if err != nil {
		return nil, err
	}

	return decodeHits[types.Patient](result.Hits)
}

func (r *PatientPostgresRepository) EnumerateIDs(ctx context.Context) ([]int64, error) {
	return enumerateIDs(ctx, QuerierFromContext(ctx, r.backend.DB()), "patient")
}

// RecreateIndex rebuilds the patient index from the system-of-record under
// the zero-downtime migration protocol.
func (r *PatientPostgresRepository) RecreateIndex(ctx context.Context) error {
	ids, err := r.EnumerateIDs(ctx)
	if err != nil {
		return err
	}

	return index.WithMigration(ctx, r.elastic, func(ctx context.Context) error {
		populator := r.elastic.Populator()
		for _, id := range ids {
			p, err := r.Get(ctx, id)
			if err != nil {
				return err
			}
			if err := populator.Add(ctx, p); err != nil {
				return err
			}
		}
		return populator.Flush(ctx)
	})
}

// ----------------------------------------------------------------------------
// Shared helpers
// ----------------------------------------------------------------------------

func applyGeo(a *types.Address, lat, lon sql.NullFloat64) {
	if lat.Valid {
		a.Latitude = &lat.Float64
	}
	if lon.Valid {
		a.Longitude = &lon.Float64
	}
	if lat.Valid && lon.Valid {
		a.GeoPoint = &types.GeoPoint{Lat: lat.Float64, Lon: lon.Float64}
	}

	parts := []string{}
	for _, part := range []string{a.AddressLine1, a.AddressLine2, a.City, a.State, a.ZipCode, a.Country} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	a.FullAddress = strings.Join(parts, ", ")
}

func clampSearchSize(size int) int {
	if size <= 0 {
		return types.DefaultSearchSize
	}
	if size > types.MaxSearchSize {
		return types.MaxSearchSize
	}
	return size
}

// decodeHits unpacks hit sources and drops duplicate ids, keeping the
// first (highest-scoring) occurrence.
func decodeHits[T any](hits []index.SearchHit) ([]T, error) {
	out := make([]T, 0, len(hits))
	seen := map[string]bool{}
	for _, hit := range hits {
		if seen[hit.ID] {
			continue
		}
		seen[hit.ID] = true

		var item T
		if err := json.Unmarshal(hit.Source, &item); err != nil {
			return nil, fmt.Errorf("failed to decode search hit %s: %w", hit.ID, err)
		}
		out = append(out, item)
	}
	return out, nil
}

func enumerateIDs(ctx context.Context, q Querier, table string) ([]int64, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf(`SELECT id FROM %s ORDER BY id`, table))
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate %s ids: %w", table, err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func nullableTime(t sql.NullTime) *time.Time {
	if t.Valid {
		return &t.Time
	}
	return nil
}
