package index

// Logical index definitions for each entity type. Mappings describe the
// denormalized documents in pkg/types; search-as-you-type fields back the
// incremental search boxes in the staff and patient apps.

const (
	AppointmentIndexName = "appointment"
	PatientIndexName     = "patient"
	PracticeIndexName    = "practice"
)

var addressProperties = map[string]any{
	"address_line_1": map[string]any{"type": "search_as_you_type"},
	"address_line_2": map[string]any{"type": "search_as_you_type"},
	"city":           map[string]any{"type": "search_as_you_type"},
	"state":          map[string]any{"type": "search_as_you_type"},
	"zip_code":       map[string]any{"type": "search_as_you_type"},
	"country":        map[string]any{"type": "search_as_you_type"},
	"full_address":   map[string]any{"type": "search_as_you_type"},
	"latitude":       map[string]any{"type": "float"},
	"longitude":      map[string]any{"type": "float"},
	"geo_point": map[string]any{
		"type":             "geo_point",
		"ignore_malformed": true,
	},
}

func withAddress(props map[string]any) map[string]any {
	for k, v := range addressProperties {
		props[k] = v
	}
	return props
}

func patientProperties() map[string]any {
	return withAddress(map[string]any{
		"id":                 map[string]any{"type": "keyword"},
		"user_id":            map[string]any{"type": "keyword"},
		"first_name":         map[string]any{"type": "text"},
		"last_name":          map[string]any{"type": "text"},
		"full_name":          map[string]any{"type": "search_as_you_type"},
		"email":              map[string]any{"type": "text"},
		"phone":              map[string]any{"type": "text"},
		"date_of_birth":      map[string]any{"type": "date"},
		"gender":             map[string]any{"type": "keyword"},
		"health_care_number": map[string]any{"type": "keyword"},
		"documents": map[string]any{
			"type":              "nested",
			"include_in_parent": true,
			"properties": map[string]any{
				"id":                  map[string]any{"type": "keyword"},
				"download_url":        map[string]any{"type": "text"},
				"is_id":               map[string]any{"type": "boolean"},
				"is_proof_of_address": map[string]any{"type": "boolean"},
				"state":               map[string]any{"type": "keyword"},
				"uploaded_at":         map[string]any{"type": "date"},
			},
		},
		"practice_links": map[string]any{
			"type":              "nested",
			"include_in_parent": true,
			"properties": map[string]any{
				"id":          map[string]any{"type": "keyword"},
				"patient_id":  map[string]any{"type": "keyword"},
				"practice_id": map[string]any{"type": "keyword"},
				"created_at":  map[string]any{"type": "date"},
			},
		},
	})
}

// PatientIndex is the logical index for patient documents
func PatientIndex() LogicalIndex {
	return LogicalIndex{
		Name:     PatientIndexName,
		Mapping:  map[string]any{"properties": patientProperties()},
		Settings: map[string]any{},
	}
}

// AppointmentIndex is the logical index for appointment documents. The
// patient snapshot is embedded so triage search hits carry the patient
// without a second lookup.
func AppointmentIndex() LogicalIndex {
	return LogicalIndex{
		Name: AppointmentIndexName,
		Mapping: map[string]any{
			"properties": map[string]any{
				"id":                        map[string]any{"type": "keyword"},
				"symptoms":                  map[string]any{"type": "text"},
				"symptom_category":          map[string]any{"type": "search_as_you_type"},
				"symptoms_duration_seconds": map[string]any{"type": "long"},
				"priority":                  map[string]any{"type": "integer"},
				"state":                     map[string]any{"type": "keyword"},
				"patient_id":                map[string]any{"type": "keyword"},
				"practice_id":               map[string]any{"type": "keyword"},
				"assigned_to_id":            map[string]any{"type": "keyword"},
				"created_at":                map[string]any{"type": "date"},
				"updated_at":                map[string]any{"type": "date"},
				"patient": map[string]any{
					"properties": patientProperties(),
				},
				"documents": map[string]any{
					"type":              "nested",
					"include_in_parent": true,
					"properties": map[string]any{
						"id":           map[string]any{"type": "keyword"},
						"download_url": map[string]any{"type": "text"},
						"uploaded_at":  map[string]any{"type": "date"},
					},
				},
				"logs": map[string]any{
					"type":              "nested",
					"include_in_parent": true,
					"properties": map[string]any{
						"id":                 map[string]any{"type": "keyword"},
						"from_state":         map[string]any{"type": "keyword"},
						"to_state":           map[string]any{"type": "keyword"},
						"triggered_by_id":    map[string]any{"type": "keyword"},
						"created_at":         map[string]any{"type": "date"},
						"transition_away_at": map[string]any{"type": "date"},
					},
				},
				"comments": map[string]any{
					"type":              "nested",
					"include_in_parent": true,
					"properties": map[string]any{
						"id":         map[string]any{"type": "keyword"},
						"user_id":    map[string]any{"type": "keyword"},
						"comment":    map[string]any{"type": "text"},
						"created_at": map[string]any{"type": "date"},
						"updated_at": map[string]any{"type": "date"},
					},
				},
				"assign_history": map[string]any{
					"type":              "nested",
					"include_in_parent": true,
					"properties": map[string]any{
						"id":           map[string]any{"type": "keyword"},
						"from_user_id": map[string]any{"type": "keyword"},
						"to_user_id":   map[string]any{"type": "keyword"},
						"created_at":   map[string]any{"type": "date"},
					},
				},
			},
		},
		Settings: map[string]any{},
	}
}

// PracticeIndex is the logical index for practice documents
func PracticeIndex() LogicalIndex {
	return LogicalIndex{
		Name: PracticeIndexName,
		Mapping: map[string]any{
			"properties": withAddress(map[string]any{
				"id":         map[string]any{"type": "keyword"},
				"org_id":     map[string]any{"type": "keyword"},
				"name":       map[string]any{"type": "search_as_you_type"},
				"slug":       map[string]any{"type": "keyword"},
				"created_at": map[string]any{"type": "date"},
				"updated_at": map[string]any{"type": "date"},
				"team_members": map[string]any{
					"type":              "nested",
					"include_in_parent": true,
					"properties": map[string]any{
						"id":         map[string]any{"type": "keyword"},
						"first_name": map[string]any{"type": "text"},
						"last_name":  map[string]any{"type": "text"},
						"job_title":  map[string]any{"type": "text"},
						"bio":        map[string]any{"type": "text"},
					},
				},
				"notices": map[string]any{
					"type":              "nested",
					"include_in_parent": true,
					"properties": map[string]any{
						"id":                   map[string]any{"type": "keyword"},
						"title":                map[string]any{"type": "text"},
						"description_markdown": map[string]any{"type": "text"},
						"created_at":           map[string]any{"type": "date"},
					},
				},
				"contact_options": map[string]any{
					"type":              "nested",
					"include_in_parent": true,
					"properties": map[string]any{
						"id":    map[string]any{"type": "keyword"},
						"name":  map[string]any{"type": "keyword"},
						"value": map[string]any{"type": "text"},
					},
				},
				"opening_hours": map[string]any{
					"type":              "nested",
					"include_in_parent": true,
					"properties": map[string]any{
						"id":          map[string]any{"type": "keyword"},
						"day_of_week": map[string]any{"type": "integer"},
						"start_time":  map[string]any{"type": "keyword"},
						"end_time":    map[string]any{"type": "keyword"},
						"is_closed":   map[string]any{"type": "boolean"},
					},
				},
			}),
		},
		Settings: map[string]any{},
	}
}
