package repository

import (
	"context"

	"github.com/doherty-labs/health-app-demo/pkg/types"
)

// PatientRepository manages patient records and their search documents
type PatientRepository interface {
	Get(ctx context.Context, id int64) (*types.Patient, error)
	Create(ctx context.Context, data *types.Patient) (*types.Patient, error)
	Update(ctx context.Context, id int64, data *types.Patient) (*types.Patient, error)
	Delete(ctx context.Context, id int64) error
	AddPracticeLink(ctx context.Context, patientId, practiceId int64) error
	Search(ctx context.Context, term string, size int) ([]types.Patient, error)
	EnumerateIDs(ctx context.Context) ([]int64, error)
	RecreateIndex(ctx context.Context) error
}

// PracticeRepository manages practice records, their search documents, and
// the read-side cache of practice snapshots
type PracticeRepository interface {
	Get(ctx context.Context, id int64, skipCache bool) (*types.Practice, error)
	Create(ctx context.Context, data *types.Practice) (*types.Practice, error)
	Update(ctx context.Context, id int64, data *types.Practice) (*types.Practice, error)
	Delete(ctx context.Context, id int64) error
	Search(ctx context.Context, term string, size int) ([]types.Practice, error)
	EnumerateIDs(ctx context.Context) ([]int64, error)
	RecreateIndex(ctx context.Context) error
}

// AppointmentRepository manages appointment records and their search
// documents, including the triage state machine
type AppointmentRepository interface {
	Get(ctx context.Context, id int64) (*types.Appointment, error)
	Create(ctx context.Context, data *types.Appointment) (*types.Appointment, error)
	Update(ctx context.Context, id int64, data *types.Appointment, triggeredById int64) (*types.Appointment, error)
	Delete(ctx context.Context, id int64) error
	AddComment(ctx context.Context, appointmentId, userId int64, comment string) (*types.Appointment, error)
	Search(ctx context.Context, term string, size int) ([]types.Appointment, error)
	EnumerateIDs(ctx context.Context) ([]int64, error)
	RecreateIndex(ctx context.Context) error
	UpdateIndexByPatientID(ctx context.Context, patientId int64) error
}
