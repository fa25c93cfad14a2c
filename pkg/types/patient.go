package types

import (
	"strconv"
	"time"
)

// PatientDocument is an identity or proof-of-address upload
type PatientDocument struct {
	ID               int64      `json:"id"`
	DownloadURL      string     `json:"download_url"`
	IsID             bool       `json:"is_id"`
	IsProofOfAddress bool       `json:"is_proof_of_address"`
	State            string     `json:"state"`
	UploadedAt       *time.Time `json:"uploaded_at"`
}

// PatientPracticeLink ties a patient to a practice they have used
type PatientPracticeLink struct {
	ID         int64      `json:"id"`
	PatientID  int64      `json:"patient_id"`
	PracticeID int64      `json:"practice_id"`
	CreatedAt  *time.Time `json:"created_at"`
}

// Patient is the denormalized patient document written to the search index
type Patient struct {
	Address

	ID               int64                 `json:"id"`
	UserID           *int64                `json:"user_id"`
	FirstName        string                `json:"first_name"`
	LastName         string                `json:"last_name"`
	FullName         string                `json:"full_name"`
	Email            string                `json:"email"`
	Phone            string                `json:"phone"`
	DateOfBirth      string                `json:"date_of_birth,omitempty"`
	Gender           string                `json:"gender"`
	HealthCareNumber string                `json:"health_care_number"`
	Documents        []PatientDocument     `json:"documents"`
	PracticeLinks    []PatientPracticeLink `json:"practice_links"`
}

func (p *Patient) DocumentID() string {
	return strconv.FormatInt(p.ID, 10)
}
