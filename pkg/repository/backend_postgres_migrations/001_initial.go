package backend_postgres_migrations

import (
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigration(upInitial, downInitial)
}

func upInitial(tx *sql.Tx) error {
	createStatements := []string{
		`CREATE TABLE IF NOT EXISTS practice (
			id SERIAL PRIMARY KEY,
			org_id VARCHAR(255) DEFAULT '',
			name VARCHAR(255) NOT NULL,
			slug VARCHAR(255) NOT NULL UNIQUE,
			address_line_1 VARCHAR(255) DEFAULT '',
			address_line_2 VARCHAR(255) DEFAULT '',
			city VARCHAR(255) DEFAULT '',
			state VARCHAR(255) DEFAULT '',
			zip_code VARCHAR(32) DEFAULT '',
			country VARCHAR(255) DEFAULT '',
			latitude DOUBLE PRECISION,
			longitude DOUBLE PRECISION,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
		);`,

		`CREATE TABLE IF NOT EXISTS practice_team_member (
			id SERIAL PRIMARY KEY,
			practice_id INT NOT NULL REFERENCES practice(id) ON DELETE CASCADE,
			first_name VARCHAR(255) NOT NULL,
			last_name VARCHAR(255) NOT NULL,
			job_title VARCHAR(255) DEFAULT '',
			bio TEXT DEFAULT ''
		);`,

		`CREATE TABLE IF NOT EXISTS practice_notice (
			id SERIAL PRIMARY KEY,
			practice_id INT NOT NULL REFERENCES practice(id) ON DELETE CASCADE,
			title VARCHAR(255) NOT NULL,
			description_markdown TEXT DEFAULT '',
			created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
		);`,

		`CREATE TABLE IF NOT EXISTS practice_contact_option (
			id SERIAL PRIMARY KEY,
			practice_id INT NOT NULL REFERENCES practice(id) ON DELETE CASCADE,
			name VARCHAR(255) NOT NULL,
			value VARCHAR(255) NOT NULL
		);`,

		`CREATE TABLE IF NOT EXISTS practice_opening_hour (
			id SERIAL PRIMARY KEY,
			practice_id INT NOT NULL REFERENCES practice(id) ON DELETE CASCADE,
			day_of_week INT NOT NULL,
			start_time VARCHAR(8) DEFAULT '',
			end_time VARCHAR(8) DEFAULT '',
			is_closed BOOLEAN DEFAULT FALSE
		);`,

		`CREATE TABLE IF NOT EXISTS patient (
			id SERIAL PRIMARY KEY,
			user_id INT,
			first_name VARCHAR(255) NOT NULL,
			last_name VARCHAR(255) NOT NULL,
			email VARCHAR(255) NOT NULL,
			phone VARCHAR(64) DEFAULT '',
			date_of_birth DATE,
			gender VARCHAR(32) DEFAULT '',
			health_care_number VARCHAR(64) DEFAULT '',
			address_line_1 VARCHAR(255) DEFAULT '',
			address_line_2 VARCHAR(255) DEFAULT '',
			city VARCHAR(255) DEFAULT '',
			state VARCHAR(255) DEFAULT '',
			zip_code VARCHAR(32) DEFAULT '',
			country VARCHAR(255) DEFAULT '',
			latitude DOUBLE PRECISION,
			longitude DOUBLE PRECISION
		);`,

		`CREATE TABLE IF NOT EXISTS patient_document (
			id SERIAL PRIMARY KEY,
			patient_id INT NOT NULL REFERENCES patient(id) ON DELETE CASCADE,
			download_url TEXT NOT NULL,
			is_id BOOLEAN DEFAULT FALSE,
			is_proof_of_address BOOLEAN DEFAULT FALSE,
			state VARCHAR(64) DEFAULT '',
			uploaded_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
		);`,

		`CREATE TABLE IF NOT EXISTS patient_practice (
			id SERIAL PRIMARY KEY,
			patient_id INT NOT NULL REFERENCES patient(id) ON DELETE CASCADE,
			practice_id INT NOT NULL REFERENCES practice(id) ON DELETE CASCADE,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (patient_id, practice_id)
		);`,

		`CREATE TABLE IF NOT EXISTS appointment (
			id SERIAL PRIMARY KEY,
			symptoms TEXT NOT NULL,
			symptom_category VARCHAR(255) DEFAULT '',
			symptoms_duration_seconds BIGINT DEFAULT 0,
			priority INT,
			state VARCHAR(64) NOT NULL DEFAULT 'submitted',
			patient_id INT NOT NULL REFERENCES patient(id) ON DELETE CASCADE,
			practice_id INT NOT NULL REFERENCES practice(id) ON DELETE CASCADE,
			assigned_to_id INT,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
		);`,

		`CREATE TABLE IF NOT EXISTS appointment_state_log (
			id SERIAL PRIMARY KEY,
			appointment_id INT NOT NULL REFERENCES appointment(id) ON DELETE CASCADE,
			from_state VARCHAR(64) DEFAULT '',
			to_state VARCHAR(64) NOT NULL,
			triggered_by_id INT NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
			transition_away_at TIMESTAMP WITH TIME ZONE
		);`,

		`CREATE TABLE IF NOT EXISTS appointment_comment (
			id SERIAL PRIMARY KEY,
			appointment_id INT NOT NULL REFERENCES appointment(id) ON DELETE CASCADE,
			user_id INT NOT NULL,
			comment TEXT NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
		);`,

		`CREATE TABLE IF NOT EXISTS appointment_assign_log (
			id SERIAL PRIMARY KEY,
			appointment_id INT NOT NULL REFERENCES appointment(id) ON DELETE CASCADE,
			from_user_id INT,
			to_user_id INT,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
		);`,

		`CREATE TABLE IF NOT EXISTS appointment_document (
			id SERIAL PRIMARY KEY,
			appointment_id INT NOT NULL REFERENCES appointment(id) ON DELETE CASCADE,
			download_url TEXT NOT NULL,
			uploaded_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
		);`,

		`CREATE INDEX IF NOT EXISTS idx_appointment_patient ON appointment(patient_id);`,
		`CREATE INDEX IF NOT EXISTS idx_appointment_practice ON appointment(practice_id);`,
		`CREATE INDEX IF NOT EXISTS idx_appointment_state ON appointment(state);`,
		`CREATE INDEX IF NOT EXISTS idx_patient_practice_patient ON patient_practice(patient_id);`,
	}

	for _, stmt := range createStatements {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func downInitial(tx *sql.Tx) error {
	dropStatements := []string{
		`DROP TABLE IF EXISTS appointment_document;`,
		`DROP TABLE IF EXISTS appointment_assign_log;`,
		`DROP TABLE IF EXISTS appointment_comment;`,
		`DROP TABLE IF EXISTS appointment_state_log;`,
		`DROP TABLE IF EXISTS appointment;`,
		`DROP TABLE IF EXISTS patient_practice;`,
		`DROP TABLE IF EXISTS patient_document;`,
		`DROP TABLE IF EXISTS patient;`,
		`DROP TABLE IF EXISTS practice_opening_hour;`,
		`DROP TABLE IF EXISTS practice_contact_option;`,
		`DROP TABLE IF EXISTS practice_notice;`,
		`DROP TABLE IF EXISTS practice_team_member;`,
		`DROP TABLE IF EXISTS practice;`,
	}

	for _, stmt := range dropStatements {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
