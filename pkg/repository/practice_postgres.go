package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/doherty-labs/health-app-demo/pkg/cache"
	"github.com/doherty-labs/health-app-demo/pkg/index"
	"github.com/doherty-labs/health-app-demo/pkg/types"
)

const practiceCacheType = "practice"

// PracticePostgresRepository implements PracticeRepository over Postgres.
// Reads go through the snapshot cache; writes defer index sync and cache
// invalidation until after commit.
type PracticePostgresRepository struct {
	backend *PostgresBackend
	elastic *index.Service
	cache   *cache.Cache
}

func NewPracticePostgresRepository(backend *PostgresBackend, elastic *index.Service, snapshots *cache.Cache) PracticeRepository {
	return &PracticePostgresRepository{
		backend: backend,
		elastic: elastic,
		cache:   snapshots,
	}
}

func (r *PracticePostgresRepository) Get(ctx context.Context, id int64, skipCache bool) (*types.Practice, error) {
	return cache.Fetch(ctx, r.cache, practiceCacheType, strconv.FormatInt(id, 10), 0, skipCache,
		func(ctx context.Context) (*types.Practice, error) {
			return r.load(ctx, id)
		})
}

func (r *PracticePostgresRepository) load(ctx context.Context, id int64) (*types.Practice, error) {
	q := QuerierFromContext(ctx, r.backend.DB())

	row := q.QueryRowContext(ctx, `
		SELECT id, org_id, name, slug, address_line_1, address_line_2, city,
		       state, zip_code, country, latitude, longitude, created_at, updated_at
		FROM practice WHERE id = $1`, id)

	p := &types.Practice{}
	var lat, lon sql.NullFloat64
	var createdAt, updatedAt sql.NullTime
	if err := row.Scan(
		&p.ID, &p.OrgID, &p.Name, &p.Slug, &p.AddressLine1, &p.AddressLine2,
		&p.City, &p.State, &p.ZipCode, &p.Country, &lat, &lon, &createdAt, &updatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, &types.DocumentNotFoundError{Index: index.PracticeIndexName, ID: strconv.FormatInt(id, 10)}
		}
		return nil, fmt.Errorf("failed to get practice: %w", err)
	}

	applyGeo(&p.Address, lat, lon)
	p.CreatedAt = nullableTime(createdAt)
	p.UpdatedAt = nullableTime(updatedAt)

	var err error
	if p.TeamMembers, err = r.getTeamMembers(ctx, q, id); err != nil {
		return nil, err
	}
	if p.Notices, err = r.getNotices(ctx, q, id); err != nil {
		return nil, err
	}
	if p.ContactOptions, err = r.getContactOptions(ctx, q, id); err != nil {
		return nil, err
	}
	if p.OpeningHours, err = r.getOpeningHours(ctx, q, id); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PracticePostgresRepository) getTeamMembers(ctx context.Context, q Querier, practiceId int64) ([]types.TeamMember, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, first_name, last_name, job_title, bio
		FROM practice_team_member WHERE practice_id = $1 ORDER BY id`, practiceId)
	if err != nil {
		return nil, fmt.Errorf("failed to get team members: %w", err)
	}
	defer rows.Close()

	members := []types.TeamMember{}
	for rows.Next() {
		var m types.TeamMember
		if err := rows.Scan(&m.ID, &m.FirstName, &m.LastName, &m.JobTitle, &m.Bio); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r *PracticePostgresRepository) getNotices(ctx context.Context, q Querier, practiceId int64) ([]types.Notice, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, title, description_markdown, created_at
		FROM practice_notice WHERE practice_id = $1 ORDER BY created_at DESC`, practiceId)
	if err != nil {
		return nil, fmt.Errorf("failed to get notices: %w", err)
	}
	defer rows.Close()

	notices := []types.Notice{}
	for rows.Next() {
		var n types.Notice
		var createdAt sql.NullTime
		if err := rows.Scan(&n.ID, &n.Title, &n.DescriptionMarkdown, &createdAt); err != nil {
			return nil, err
		}
		n.CreatedAt = nullableTime(createdAt)
		notices = append(notices, n)
	}
	return notices, rows.Err()
}

func (r *PracticePostgresRepository) getContactOptions(ctx context.Context, q Querier, practiceId int64) ([]types.ContactOption, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, value
		FROM practice_contact_option WHERE practice_id = $1 ORDER BY id`, practiceId)
	if err != nil {
		return nil, fmt.Errorf("failed to get contact options: %w", err)
	}
	defer rows.Close()

	options := []types.ContactOption{}
	for rows.Next() {
		var o types.ContactOption
		if err := rows.Scan(&o.ID, &o.Name, &o.Value); err != nil {
			return nil, err
		}
		options = append(options, o)
	}
	return options, rows.Err()
}

func (r *PracticePostgresRepository) getOpeningHours(ctx context.Context, q Querier, practiceId int64) ([]types.OpeningHour, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, day_of_week, start_time, end_time, is_closed
		FROM practice_opening_hour WHERE practice_id = $1 ORDER BY day_of_week`, practiceId)
	if err != nil {
		return nil, fmt.Errorf("failed to get opening hours: %w", err)
	}
	defer rows.Close()

	hours := []types.OpeningHour{}
	for rows.Next() {
		var h types.OpeningHour
		if err := rows.Scan(&h.ID, &h.DayOfWeek, &h.StartTime, &h.EndTime, &h.IsClosed); err != nil {
			return nil, err
		}
		hours = append(hours, h)
	}
	return hours, rows.Err()
}

func (r *PracticePostgresRepository) Create(ctx context.Context, data *types.Practice) (*types.Practice, error) {
	var result *types.Practice
	err := RunInTx(ctx, r.backend.DB(), func(ctx context.Context) error {
		q := QuerierFromContext(ctx, r.backend.DB())

		var id int64
		if err := q.QueryRowContext(ctx, `
			INSERT INTO practice (org_id, name, slug, address_line_1,
				address_line_2, city, state, zip_code, country, latitude, longitude)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING id`,
			data.OrgID, data.Name, data.Slug, data.AddressLine1,
			data.AddressLine2, data.City, data.State, data.ZipCode,
			data.Country, data.Latitude, data.Longitude,
		).Scan(&id); err != nil {
			return fmt.Errorf("failed to create practice: %w", err)
		}

		if err := r.replaceChildren(ctx, q, id, data); err != nil {
			return err
		}

		created, err := r.load(ctx, id)
		if err != nil {
			return err
		}
		result = created

		r.deferSync(ctx, result, func(ctx context.Context) error {
			return r.elastic.Add(ctx, result)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PracticePostgresRepository) Update(ctx context.Context, id int64, data *types.Practice) (*types.Practice, error) {
	var result *types.Practice
	err := RunInTx(ctx, r.backend.DB(), func(ctx context.Context) error {
		q := QuerierFromContext(ctx, r.backend.DB())

		if _, err := q.ExecContext(ctx, `
			UPDATE practice SET org_id = $1, name = $2, slug = $3,
				address_line_1 = $4, address_line_2 = $5, city = $6,
				state = $7, zip_code = $8, country = $9, latitude = $10,
				longitude = $11, updated_at = CURRENT_TIMESTAMP
			WHERE id = $12`,
			data.OrgID, data.Name, data.Slug, data.AddressLine1,
			data.AddressLine2, data.City, data.State, data.ZipCode,
			data.Country, data.Latitude, data.Longitude, id,
		); err != nil {
			return fmt.Errorf("failed to update practice: %w", err)
		}

		if err := r.replaceChildren(ctx, q, id, data); err != nil {
			return err
		}

		updated, err := r.load(ctx, id)
		if err != nil {
			return err
		}
		result = updated

		r.deferSync(ctx, result, func(ctx context.Context) error {
			return r.elastic.Update(ctx, result)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// replaceChildren swaps the practice's nested collections for the incoming
// ones wholesale, matching the write shape of the public profile editor
func (r *PracticePostgresRepository) replaceChildren(ctx context.Context, q Querier, practiceId int64, data *types.Practice) error {
	for _, table := range []string{"practice_team_member", "practice_notice", "practice_contact_option", "practice_opening_hour"} {
		if _, err := q.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE practice_id = $1`, table), practiceId); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for _, m := range data.TeamMembers {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO practice_team_member (practice_id, first_name, last_name, job_title, bio)
			VALUES ($1, $2, $3, $4, $5)`,
			practiceId, m.FirstName, m.LastName, m.JobTitle, m.Bio,
		); err != nil {
			return fmt.Errorf("failed to insert team member: %w", err)
		}
	}
	for _, n := range data.Notices {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO practice_notice (practice_id, title, description_markdown)
			VALUES ($1, $2, $3)`,
			practiceId, n.Title, n.DescriptionMarkdown,
		); err != nil {
			return fmt.Errorf("failed to insert notice: %w", err)
		}
	}
	for _, o := range data.ContactOptions {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO practice_contact_option (practice_id, name, value)
			VALUES ($1, $2, $3)`,
			practiceId, o.Name, o.Value,
		); err != nil {
			return fmt.Errorf("failed to insert contact option: %w", err)
		}
	}
	for _, h := range data.OpeningHours {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO practice_opening_hour (practice_id, day_of_week, start_time, end_time, is_closed)
			VALUES ($1, $2, $3, $4, $5)`,
			practiceId, h.DayOfWeek, h.StartTime, h.EndTime, h.IsClosed,
		); err != nil {
			return fmt.Errorf("failed to insert opening hour: %w", err)
		}
	}
	return nil
}

// deferSync queues the index write and the cache invalidation behind the
// enclosing commit
func (r *PracticePostgresRepository) deferSync(ctx context.Context, p *types.Practice, sync func(ctx context.Context) error) {
	OnCommit(ctx, sync)
	OnCommit(ctx, func(ctx context.Context) error {
		return r.cache.Invalidate(ctx, practiceCacheType, p.DocumentID())
	})
}

func (r *PracticePostgresRepository) Delete(ctx context.Context, id int64) error {
	return RunInTx(ctx, r.backend.DB(), func(ctx context.Context) error {
		q := QuerierFromContext(ctx, r.backend.DB())

		if _, err := q.ExecContext(ctx, `DELETE FROM practice WHERE id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete practice: %w", err)
		}

		docId := strconv.FormatInt(id, 10)
		OnCommit(ctx, func(ctx context.Context) error {
			return r.elastic.Remove(ctx, docId)
		})
		OnCommit(ctx, func(ctx context.Context) error {
			return r.cache.Invalidate(ctx, practiceCacheType, docId)
		})
		return nil
	})
}

func (r *PracticePostgresRepository) Search(ctx context.Context, term string, size int) ([]types.Practice, error) {
	size = clampSearchSize(size)
	result, err := r.elastic.Search(ctx, index.SearchRequest{
		Query: map[string]any{
			"multi_match": map[string]any{
				"query": term,
				"type":  "bool_prefix",
				"fields": []string{
					"name", "name._2gram", "name._3gram",
					"full_address", "full_address._2gram", "full_address._3gram",
					"city", "zip_code",
				},
			},
		},
		Size: &size,
	})
	if err != nil {
		return nil, err
	}

	return decodeHits[types.Practice](result.Hits)
}

func (r *PracticePostgresRepository) EnumerateIDs(ctx context.Context) ([]int64, error) {
	return enumerateIDs(ctx, QuerierFromContext(ctx, r.backend.DB()), "practice")
}

// RecreateIndex rebuilds the practice index from the system-of-record. Every
// snapshot is read fresh so stale cache entries cannot leak into the new
// generation.
func (r *PracticePostgresRepository) RecreateIndex(ctx context.Context) error {
	ids, err := r.EnumerateIDs(ctx)
	if err != nil {
		return err
	}

	return index.WithMigration(ctx, r.elastic, func(ctx context.Context) error {
		populator := r.elastic.Populator()
		for _, id := range ids {
			p, err := r.Get(ctx, id, true)
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
