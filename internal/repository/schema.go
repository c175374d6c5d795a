package repository

import "errors"

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

// Schema is portable between sqlite and postgres: timestamps and JSON
// documents are stored as TEXT, booleans as INTEGER.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS companies (
		id TEXT PRIMARY KEY,
		legal_name TEXT NOT NULL,
		tax_id TEXT NOT NULL DEFAULT '',
		cnae TEXT NOT NULL DEFAULT '',
		risk_grade INTEGER NOT NULL DEFAULT 1,
		headcount INTEGER NOT NULL DEFAULT 1,
		response_quota INTEGER NOT NULL DEFAULT 1,
		methodology TEXT NOT NULL DEFAULT '',
		segmentation TEXT NOT NULL DEFAULT '',
		contact_name TEXT NOT NULL DEFAULT '',
		contact_email TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		org_structure TEXT NOT NULL DEFAULT '{}',
		require_identity INTEGER NOT NULL DEFAULT 1,
		valid_until TEXT NOT NULL DEFAULT '',
		owner TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS responses (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL,
		identity_hash TEXT NOT NULL,
		sector TEXT NOT NULL DEFAULT '',
		answers TEXT NOT NULL DEFAULT '{}',
		created_at TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS responses_company_identity ON responses (company_id, identity_hash)`,
	`CREATE TABLE IF NOT EXISTS admin_users (
		username TEXT PRIMARY KEY,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		credits INTEGER NOT NULL DEFAULT 0,
		valid_until TEXT NOT NULL DEFAULT '',
		linked_company_id TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS platform_settings (
		id INTEGER PRIMARY KEY,
		config_json TEXT NOT NULL
	)`,
}
