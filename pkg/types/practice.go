package types

import (
	"strconv"
	"time"
)

// TeamMember is a staff member shown on a practice profile
type TeamMember struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	JobTitle  string `json:"job_title"`
	Bio       string `json:"bio"`
}

// OpeningHour is one weekday's opening window
type OpeningHour struct {
	ID        int64  `json:"id"`
	DayOfWeek int    `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	IsClosed  bool   `json:"is_closed"`
}

// ContactOption is a published way of reaching the practice
type ContactOption struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Notice is a banner message shown to the practice's patients
type Notice struct {
	ID                  int64      `json:"id"`
	Title               string     `json:"title"`
	DescriptionMarkdown string     `json:"description_markdown"`
	CreatedAt           *time.Time `json:"created_at"`
}

// Practice is the denormalized practice document written to the search index
type Practice struct {
	Address

	ID             int64           `json:"id"`
	OrgID          string          `json:"org_id"`
	Name           string          `json:"name"`
	Slug           string          `json:"slug"`
	TeamMembers    []TeamMember    `json:"team_members"`
	Notices        []Notice        `json:"notices"`
	ContactOptions []ContactOption `json:"contact_options"`
	OpeningHours   []OpeningHour   `json:"opening_hours"`
	CreatedAt      *time.Time      `json:"created_at"`
	UpdatedAt      *time.Time      `json:"updated_at"`
}

func (p *Practice) DocumentID() string {
	return strconv.FormatInt(p.ID, 10)
}
