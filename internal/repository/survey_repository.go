package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/elonr01/survey-server/internal/repository/models"
	"github.com/elonr01/survey-server/pkg/database"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

const dateLayout = "2006-01-02"

// SurveyRepository persists companies, responses, admin users and platform
// settings in one SQL database.
type SurveyRepository struct {
	db      *sql.DB
	dialect database.Dialect
}

func NewSurveyRepository(db *sql.DB, driver string) *SurveyRepository {
	return &SurveyRepository{db: db, dialect: database.DialectFor(driver)}
}

func (r *SurveyRepository) q(query string) string {
	return r.dialect.Rebind(query)
}

const companyColumns = `id, legal_name, tax_id, cnae, risk_grade, headcount, response_quota,
	methodology, segmentation, contact_name, contact_email, phone, address,
	org_structure, require_identity, valid_until, owner, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCompany(row rowScanner) (models.Company, error) {
	var (
		c                 models.Company
		org               string
		requireIdentity   int
		validUntil, since string
	)
	err := row.Scan(&c.ID, &c.LegalName, &c.TaxID, &c.CNAE, &c.RiskGrade, &c.Headcount, &c.ResponseQuota,
		&c.Methodology, &c.Segmentation, &c.ContactName, &c.ContactEmail, &c.Phone, &c.Address,
		&org, &requireIdentity, &validUntil, &c.Owner, &since)
	if err != nil {
		return models.Company{}, err
	}

	if err := json.Unmarshal([]byte(org), &c.OrgStructure); err != nil || len(c.OrgStructure) == 0 {
		c.OrgStructure = models.DefaultOrgStructure()
	}
	c.RequireIdentity = requireIdentity != 0
	c.ValidUntil = parseDate(validUntil)
	c.CreatedAt = parseTimestamp(since)
	return c, nil
}

func companyArgs(c models.Company) ([]any, error) {
	org, err := json.Marshal(c.OrgStructure)
	if err != nil {
		return nil, fmt.Errorf("encode org structure: %w", err)
	}
	return []any{c.ID, c.LegalName, c.TaxID, c.CNAE, c.RiskGrade, c.Headcount, c.ResponseQuota,
		c.Methodology, c.Segmentation, c.ContactName, c.ContactEmail, c.Phone, c.Address,
		string(org), boolToInt(c.RequireIdentity), formatDate(c.ValidUntil), c.Owner, formatTimestamp(c.CreatedAt)}, nil
}

func (r *SurveyRepository) ListCompanies(ctx context.Context) ([]models.Company, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+companyColumns+` FROM companies ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query ListCompanies: %w", err)
	}
	defer rows.Close()

	var out []models.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ListCompanies row: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ListCompanies: %w", err)
	}
	return out, nil
}

func (r *SurveyRepository) GetCompany(ctx context.Context, id string) (models.Company, error) {
	row := r.db.QueryRowContext(ctx, r.q(`SELECT `+companyColumns+` FROM companies WHERE id = ?`), id)
	c, err := scanCompany(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Company{}, ErrNotFound
	}
	if err != nil {
		return models.Company{}, fmt.Errorf("query GetCompany: %w", err)
	}
	return c, nil
}

func (r *SurveyRepository) CreateCompany(ctx context.Context, c models.Company) error {
	args, err := companyArgs(c)
	if err != nil {
		return err
	}
	query := `INSERT INTO companies (` + companyColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, r.q(query), args...); err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert company: %w", err)
	}
	return nil
}

func (r *SurveyRepository) UpdateCompany(ctx context.Context, c models.Company) error {
	args, err := companyArgs(c)
	if err != nil {
		return err
	}
	query := `UPDATE companies SET legal_name = ?, tax_id = ?, cnae = ?, risk_grade = ?, headcount = ?,
		response_quota = ?, methodology = ?, segmentation = ?, contact_name = ?, contact_email = ?,
		phone = ?, address = ?, org_structure = ?, require_identity = ?, valid_until = ?, owner = ?,
		created_at = ?
		WHERE id = ?`
	res, err := r.db.ExecContext(ctx, r.q(query), append(args[1:], c.ID)...)
	if err != nil {
		return fmt.Errorf("update company: %w", err)
	}
	return expectAffected(res)
}

// DeleteCompany removes the company's responses, then its linked users,
// then the company itself.
func (r *SurveyRepository) DeleteCompany(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete company: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, r.q(`DELETE FROM responses WHERE company_id = ?`), id); err != nil {
		return fmt.Errorf("delete company responses: %w", err)
	}
	if _, err := tx.ExecContext(ctx, r.q(`DELETE FROM admin_users WHERE linked_company_id = ?`), id); err != nil {
		return fmt.Errorf("delete company users: %w", err)
	}
	res, err := tx.ExecContext(ctx, r.q(`DELETE FROM companies WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete company: %w", err)
	}
	if err := expectAffected(res); err != nil {
		return err
	}
	return tx.Commit()
}

// ListResponses returns responses of the given companies, or of all
// companies when none is given, oldest first.
func (r *SurveyRepository) ListResponses(ctx context.Context, companyIDs ...string) ([]models.Response, error) {
	query := `SELECT id, company_id, identity_hash, sector, answers, created_at FROM responses`
	args := make([]any, len(companyIDs))
	if len(companyIDs) > 0 {
		marks := make([]string, len(companyIDs))
		for i, id := range companyIDs {
			marks[i] = "?"
			args[i] = id
		}
		query += ` WHERE company_id IN (` + strings.Join(marks, ", ") + `)`
	}
	query += ` ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query ListResponses: %w", err)
	}
	defer rows.Close()

	var out []models.Response
	for rows.Next() {
		var (
			resp           models.Response
			answers, since string
		)
		if err := rows.Scan(&resp.ID, &resp.CompanyID, &resp.IdentityHash, &resp.Sector, &answers, &since); err != nil {
			return nil, fmt.Errorf("scan ListResponses row: %w", err)
		}
		// Malformed answer documents count as unanswered.
		if err := json.Unmarshal([]byte(answers), &resp.Answers); err != nil {
			resp.Answers = map[string]string{}
		}
		resp.CreatedAt = parseTimestamp(since)
		out = append(out, resp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ListResponses: %w", err)
	}
	return out, nil
}

func (r *SurveyRepository) CountResponses(ctx context.Context, companyID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, r.q(`SELECT COUNT(*) FROM responses WHERE company_id = ?`), companyID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("query CountResponses: %w", err)
	}
	return n, nil
}

func (r *SurveyRepository) HasResponse(ctx context.Context, companyID, identityHash string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		r.q(`SELECT COUNT(*) FROM responses WHERE company_id = ? AND identity_hash = ?`),
		companyID, identityHash).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query HasResponse: %w", err)
	}
	return n > 0, nil
}

// InsertResponse stores a response; a second response with the same company
// and identity hash fails with ErrConflict.
func (r *SurveyRepository) InsertResponse(ctx context.Context, resp models.Response) error {
	answers, err := json.Marshal(resp.Answers)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		r.q(`INSERT INTO responses (id, company_id, identity_hash, sector, answers, created_at) VALUES (?, ?, ?, ?, ?, ?)`),
		resp.ID, resp.CompanyID, resp.IdentityHash, resp.Sector, string(answers), formatTimestamp(resp.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert response: %w", err)
	}
	return nil
}

func scanUser(row rowScanner) (models.AdminUser, error) {
	var (
		u          models.AdminUser
		role       string
		validUntil string
	)
	if err := row.Scan(&u.Username, &u.PasswordHash, &role, &u.Credits, &validUntil, &u.LinkedCompanyID); err != nil {
		return models.AdminUser{}, err
	}
	u.Role = models.Role(role)
	if t := parseDate(validUntil); !t.IsZero() {
		u.ValidUntil = &t
	}
	return u, nil
}

func (r *SurveyRepository) GetUser(ctx context.Context, username string) (models.AdminUser, error) {
	row := r.db.QueryRowContext(ctx,
		r.q(`SELECT username, password_hash, role, credits, valid_until, linked_company_id FROM admin_users WHERE username = ?`),
		username)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.AdminUser{}, ErrNotFound
	}
	if err != nil {
		return models.AdminUser{}, fmt.Errorf("query GetUser: %w", err)
	}
	return u, nil
}

func (r *SurveyRepository) ListUsers(ctx context.Context) ([]models.AdminUser, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT username, password_hash, role, credits, valid_until, linked_company_id FROM admin_users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("query ListUsers: %w", err)
	}
	defer rows.Close()

	var out []models.AdminUser
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ListUsers row: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ListUsers: %w", err)
	}
	return out, nil
}

// SaveUser inserts or replaces a user by username.
func (r *SurveyRepository) SaveUser(ctx context.Context, u models.AdminUser) error {
	validUntil := ""
	if u.ValidUntil != nil {
		validUntil = formatDate(*u.ValidUntil)
	}
	query := `INSERT INTO admin_users (username, password_hash, role, credits, valid_until, linked_company_id)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (username) DO UPDATE SET
			password_hash = excluded.password_hash,
			role = excluded.role,
			credits = excluded.credits,
			valid_until = excluded.valid_until,
			linked_company_id = excluded.linked_company_id`
	_, err := r.db.ExecContext(ctx, r.q(query),
		u.Username, u.PasswordHash, string(u.Role), u.Credits, validUntil, u.LinkedCompanyID)
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (r *SurveyRepository) DeleteUser(ctx context.Context, username string) error {
	res, err := r.db.ExecContext(ctx, r.q(`DELETE FROM admin_users WHERE username = ?`), username)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return expectAffected(res)
}

// GetSettings overlays the stored document on the defaults.
func (r *SurveyRepository) GetSettings(ctx context.Context) (models.PlatformSettings, error) {
	settings := models.DefaultSettings()

	var raw string
	err := r.db.QueryRowContext(ctx, `SELECT config_json FROM platform_settings WHERE id = 1`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return settings, nil
	}
	if err != nil {
		return settings, fmt.Errorf("query GetSettings: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return models.DefaultSettings(), fmt.Errorf("decode settings: %w", err)
	}
	return settings, nil
}

func (r *SurveyRepository) SaveSettings(ctx context.Context, s models.PlatformSettings) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	query := `INSERT INTO platform_settings (id, config_json) VALUES (1, ?)
		ON CONFLICT (id) DO UPDATE SET config_json = excluded.config_json`
	if _, err := r.db.ExecContext(ctx, r.q(query), string(raw)); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

func (r *SurveyRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func parseDate(s string) time.Time {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

// parseTimestamp returns the zero time for blank or unreadable values,
// which the history treats as undated.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, strings.Replace(s, " ", "T", 1))
	if err != nil {
		return time.Time{}
	}
	return t
}
