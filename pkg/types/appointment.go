package types

import (
	"strconv"
	"time"
)

// Appointment state machine. Transitions are validated by the repository on
// update; the list itself is static product configuration.
var AppointmentStates = []State{
	{ID: "submitted", Name: "Submitted", Description: "Request has been received from patient."},
	{ID: "waiting_triage", Name: "Waiting Triage", Description: "Pending review by team."},
	{ID: "in_triage", Name: "In Triage", Description: "Currently being reviewed by team."},
	{ID: "awaiting_time_selection", Name: "Awaiting Time Selection", Description: "Waiting for patient to select a time."},
	{ID: "booked", Name: "Booked", Description: "Patient is booked with a doctor."},
	{ID: "cancelled", Name: "Cancelled", Description: "Patient has cancelled their booking request."},
	{ID: "rejected", Name: "Rejected", Description: "Request has been denied."},
}

// ValidAppointmentState reports whether id names a known state
func ValidAppointmentState(id string) bool {
	for _, s := range AppointmentStates {
		if s.ID == id {
			return true
		}
	}
	return false
}

// AppointmentDocument is an uploaded file attached to an appointment
type AppointmentDocument struct {
	ID          int64      `json:"id"`
	DownloadURL string     `json:"download_url"`
	UploadedAt  *time.Time `json:"uploaded_at"`
}

// Appointment is the denormalized appointment document written to the search
// index. It embeds the patient snapshot plus the full state, assignment and
// comment history so a single hit carries everything the triage UI shows.
type Appointment struct {
	ID                      int64                 `json:"id"`
	Symptoms                string                `json:"symptoms"`
	SymptomCategory         string                `json:"symptom_category"`
	SymptomsDurationSeconds int64                 `json:"symptoms_duration_seconds"`
	Priority                *int                  `json:"priority"`
	State                   string                `json:"state"`
	PatientID               int64                 `json:"patient_id"`
	PracticeID              int64                 `json:"practice_id"`
	AssignedToID            *int64                `json:"assigned_to_id"`
	Documents               []AppointmentDocument `json:"documents"`
	Logs                    []StateLog            `json:"logs"`
	Comments                []Comment             `json:"comments"`
	AssignHistory           []AssignLog           `json:"assign_history"`
	Patient                 *Patient              `json:"patient"`
	CreatedAt               *time.Time            `json:"created_at"`
	UpdatedAt               *time.Time            `json:"updated_at"`
}

func (a *Appointment) DocumentID() string {
	return strconv.FormatInt(a.ID, 10)
}
