package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/akhanna222/email2kg/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS templates (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	document_type    TEXT NOT NULL,
	fields           TEXT NOT NULL,
	keywords         TEXT,
	vendor_pattern   TEXT,
	layout_signature TEXT,
	usage_count      INTEGER NOT NULL DEFAULT 0,
	success_count    INTEGER NOT NULL DEFAULT 0,
	confidence_score REAL NOT NULL DEFAULT 0,
	is_active        INTEGER NOT NULL DEFAULT 1,
	sample_documents TEXT,
	created_from_doc TEXT,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	last_updated     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS documents (
	id             TEXT PRIMARY KEY,
	filename       TEXT NOT NULL,
	file_path      TEXT NOT NULL,
	mime_type      TEXT,
	status         TEXT NOT NULL DEFAULT 'pending',
	document_type  TEXT,
	extracted_text TEXT,
	extracted_data TEXT,
	uploaded_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	processed_at   DATETIME
);

CREATE TABLE IF NOT EXISTS extraction_logs (
	id                TEXT PRIMARY KEY,
	document_id       TEXT NOT NULL,
	template_id       TEXT,
	method            TEXT NOT NULL,
	fields            TEXT,
	confidence_scores TEXT,
	success           INTEGER NOT NULL DEFAULT 0,
	extraction_time   REAL NOT NULL DEFAULT 0,
	error_message     TEXT,
	manually_verified INTEGER NOT NULL DEFAULT 0,
	corrections       TEXT,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS parties (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	normalized_name TEXT NOT NULL,
	party_type      TEXT NOT NULL DEFAULT 'vendor',
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS transactions (
	id               TEXT PRIMARY KEY,
	document_id      TEXT NOT NULL,
	party_id         TEXT,
	amount           REAL NOT NULL,
	currency         TEXT NOT NULL DEFAULT 'USD',
	transaction_date DATETIME,
	transaction_type TEXT,
	description      TEXT,
	metadata         TEXT,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_templates_type_active ON templates(document_type, is_active);
CREATE INDEX IF NOT EXISTS idx_templates_signature ON templates(document_type, layout_signature);
CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_logs_document ON extraction_logs(document_id);
CREATE INDEX IF NOT EXISTS idx_parties_normalized ON parties(normalized_name);
CREATE INDEX IF NOT EXISTS idx_transactions_document ON transactions(document_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Templates ---

func (s *SQLiteStore) CreateTemplate(ctx context.Context, t *model.Template) error {
	fieldsJSON, err := json.Marshal(t.Fields)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal template fields")
	}
	keywordsJSON, err := json.Marshal(t.Keywords)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal template keywords")
	}
	samplesJSON, err := json.Marshal(t.SampleDocuments)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal sample documents")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO templates (id, name, document_type, fields, keywords, vendor_pattern,
			layout_signature, usage_count, success_count, confidence_score, is_active,
			sample_documents, created_from_doc, created_at, last_updated)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, string(t.DocumentType), string(fieldsJSON), string(keywordsJSON),
		t.VendorPattern, t.LayoutSignature, t.UsageCount, t.SuccessCount,
		t.ConfidenceScore, boolToInt(t.IsActive), string(samplesJSON),
		t.CreatedFromDoc, t.CreatedAt, t.LastUpdated,
	)
	return eris.Wrap(err, "sqlite: insert template")
}

const templateColumns = `id, name, document_type, fields, keywords, vendor_pattern,
	layout_signature, usage_count, success_count, confidence_score, is_active,
	sample_documents, created_from_doc, created_at, last_updated`

func (s *SQLiteStore) GetTemplate(ctx context.Context, id string) (*model.Template, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+templateColumns+` FROM templates WHERE id = ?`, id)
	return scanTemplate(row)
}

func (s *SQLiteStore) ListTemplates(ctx context.Context, filter TemplateFilter) ([]model.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM templates WHERE 1=1`
	var args []any

	if filter.DocumentType != "" {
		query += ` AND document_type = ?`
		args = append(args, string(filter.DocumentType))
	}
	if filter.ActiveOnly {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY confidence_score DESC, created_at ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list templates")
	}
	defer rows.Close()

	var templates []model.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, *t)
	}
	return templates, eris.Wrap(rows.Err(), "sqlite: list templates iterate")
}

func (s *SQLiteStore) CountTemplates(ctx context.Context, dt model.DocumentType) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM templates WHERE document_type = ?`, string(dt)).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count templates")
}

func (s *SQLiteStore) FindTemplateBySignature(ctx context.Context, dt model.DocumentType, signature string) (*model.Template, error) {
	if signature == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+templateColumns+` FROM templates
		 WHERE document_type = ? AND layout_signature = ? AND is_active = 1
		 ORDER BY confidence_score DESC LIMIT 1`,
		string(dt), signature)
	t, err := scanTemplate(row)
	if eris.Is(err, errTemplateNotFound) {
		return nil, nil
	}
	return t, err
}

func (s *SQLiteStore) UpdateTemplateStats(ctx context.Context, id string, success bool) (*model.Template, error) {
	// Single statement: increments reference the pre-update column values,
	// so parallel workers serialize inside the database instead of racing a
	// read-modify-write in the client.
	res, err := s.db.ExecContext(ctx,
		`UPDATE templates SET
			usage_count      = usage_count + 1,
			success_count    = success_count + ?,
			confidence_score = CAST(success_count + ? AS REAL) / (usage_count + 1),
			last_updated     = ?
		 WHERE id = ?`,
		boolToInt(success), boolToInt(success), time.Now().UTC(), id,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: update template stats %s", id)
	}
	if err := checkRowsAffected(res, "template", id); err != nil {
		return nil, err
	}
	return s.GetTemplate(ctx, id)
}

func (s *SQLiteStore) DeactivateTemplate(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE templates SET is_active = 0, last_updated = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: deactivate template %s", id)
	}
	return checkRowsAffected(res, "template", id)
}

func (s *SQLiteStore) DeleteTemplate(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM templates WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete template %s", id)
	}
	return checkRowsAffected(res, "template", id)
}

// --- Documents ---

func (s *SQLiteStore) CreateDocument(ctx context.Context, d *model.Document) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, filename, file_path, mime_type, status, uploaded_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID, d.Filename, d.FilePath, d.MimeType, string(d.Status), d.UploadedAt,
	)
	return eris.Wrap(err, "sqlite: insert document")
}

func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, filename, file_path, mime_type, status, document_type,
			extracted_text, extracted_data, uploaded_at, processed_at
		 FROM documents WHERE id = ?`, id)

	var d model.Document
	var mimeType, docType, text, dataJSON sql.NullString
	var processedAt sql.NullTime
	err := row.Scan(&d.ID, &d.Filename, &d.FilePath, &mimeType, &d.Status,
		&docType, &text, &dataJSON, &d.UploadedAt, &processedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("document not found: %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan document")
	}
	d.MimeType = mimeType.String
	d.DocumentType = model.DocumentType(docType.String)
	d.ExtractedText = text.String
	if dataJSON.Valid && dataJSON.String != "" {
		if err := json.Unmarshal([]byte(dataJSON.String), &d.ExtractedData); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal extracted data")
		}
	}
	if processedAt.Valid {
		d.ProcessedAt = &processedAt.Time
	}
	return &d, nil
}

func (s *SQLiteStore) UpdateDocumentStatus(ctx context.Context, id string, status model.ProcessingStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update document status %s", id)
	}
	return checkRowsAffected(res, "document", id)
}

func (s *SQLiteStore) UpdateDocumentResult(ctx context.Context, d *model.Document) error {
	var dataJSON any
	if d.ExtractedData != nil {
		raw, err := json.Marshal(d.ExtractedData)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal extracted data")
		}
		dataJSON = string(raw)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, document_type = ?, extracted_text = ?,
			extracted_data = ?, processed_at = ?
		 WHERE id = ?`,
		string(d.Status), string(d.DocumentType), d.ExtractedText, dataJSON,
		d.ProcessedAt, d.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update document result %s", d.ID)
	}
	return checkRowsAffected(res, "document", d.ID)
}

// --- Extraction audit log ---

func (s *SQLiteStore) LogExtraction(ctx context.Context, a *model.ExtractionAttempt) error {
	fieldsJSON, err := json.Marshal(a.Fields)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal attempt fields")
	}
	confJSON, err := json.Marshal(a.ConfidenceScores)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal attempt confidences")
	}

	var templateID any
	if a.TemplateID != "" {
		templateID = a.TemplateID
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO extraction_logs (id, document_id, template_id, method, fields,
			confidence_scores, success, extraction_time, error_message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.DocumentID, templateID, string(a.Method), string(fieldsJSON),
		string(confJSON), boolToInt(a.Success), a.ExtractionTime, a.ErrorMessage,
		a.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert extraction log")
}

func (s *SQLiteStore) ListAttempts(ctx context.Context, filter AttemptFilter) ([]model.ExtractionAttempt, error) {
	query := `SELECT id, document_id, template_id, method, fields, confidence_scores,
		success, extraction_time, error_message, manually_verified, corrections, created_at
	 FROM extraction_logs WHERE 1=1`
	var args []any

	if filter.DocumentID != "" {
		query += ` AND document_id = ?`
		args = append(args, filter.DocumentID)
	}
	if filter.Method != "" {
		query += ` AND method = ?`
		args = append(args, string(filter.Method))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list attempts")
	}
	defer rows.Close()

	var attempts []model.ExtractionAttempt
	for rows.Next() {
		var a model.ExtractionAttempt
		var templateID, fieldsJSON, confJSON, errMsg, corrJSON sql.NullString
		var success, verified int
		err := rows.Scan(&a.ID, &a.DocumentID, &templateID, &a.Method, &fieldsJSON,
			&confJSON, &success, &a.ExtractionTime, &errMsg, &verified, &corrJSON,
			&a.CreatedAt)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan attempt")
		}
		a.TemplateID = templateID.String
		a.Success = success != 0
		a.ManuallyVerified = verified != 0
		a.ErrorMessage = errMsg.String
		if fieldsJSON.Valid && fieldsJSON.String != "" {
			if err := json.Unmarshal([]byte(fieldsJSON.String), &a.Fields); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal attempt fields")
			}
		}
		if confJSON.Valid && confJSON.String != "" {
			if err := json.Unmarshal([]byte(confJSON.String), &a.ConfidenceScores); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal attempt confidences")
			}
		}
		if corrJSON.Valid && corrJSON.String != "" {
			if err := json.Unmarshal([]byte(corrJSON.String), &a.Corrections); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal corrections")
			}
		}
		attempts = append(attempts, a)
	}
	return attempts, eris.Wrap(rows.Err(), "sqlite: list attempts iterate")
}

func (s *SQLiteStore) SummarizeUsage(ctx context.Context) (*UsageSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT method, success, COUNT(*) FROM extraction_logs GROUP BY method, success`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: summarize usage")
	}
	defer rows.Close()

	summary := &UsageSummary{}
	for rows.Next() {
		var method string
		var success, count int
		if err := rows.Scan(&method, &success, &count); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan usage row")
		}
		switch model.ExtractionMethod(method) {
		case model.MethodTemplate:
			summary.TemplateAttempts += count
			if success != 0 {
				summary.TemplateSuccesses += count
			}
		case model.MethodLLM:
			summary.LLMAttempts += count
			if success != 0 {
				summary.LLMSuccesses += count
			}
		}
	}
	return summary, eris.Wrap(rows.Err(), "sqlite: summarize usage iterate")
}

// --- Knowledge graph ---

func (s *SQLiteStore) FindPartyByNormalizedName(ctx context.Context, normalized string) (*model.Party, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, normalized_name, party_type, created_at
		 FROM parties WHERE normalized_name = ? LIMIT 1`, normalized)

	var p model.Party
	err := row.Scan(&p.ID, &p.Name, &p.NormalizedName, &p.PartyType, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find party")
	}
	return &p, nil
}

func (s *SQLiteStore) GetParty(ctx context.Context, id string) (*model.Party, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, normalized_name, party_type, created_at
		 FROM parties WHERE id = ?`, id)

	var p model.Party
	err := row.Scan(&p.ID, &p.Name, &p.NormalizedName, &p.PartyType, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get party")
	}
	return &p, nil
}

func (s *SQLiteStore) CreateParty(ctx context.Context, p *model.Party) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO parties (id, name, normalized_name, party_type, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.NormalizedName, p.PartyType, p.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert party")
}

func (s *SQLiteStore) CreateTransaction(ctx context.Context, tx *model.Transaction) error {
	var metaJSON any
	if tx.Metadata != nil {
		raw, err := json.Marshal(tx.Metadata)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal transaction metadata")
		}
		metaJSON = string(raw)
	}

	var partyID any
	if tx.PartyID != "" {
		partyID = tx.PartyID
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (id, document_id, party_id, amount, currency,
			transaction_date, transaction_type, description, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.DocumentID, partyID, tx.Amount, tx.Currency, tx.TransactionDate,
		tx.TransactionType, tx.Description, metaJSON, tx.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert transaction")
}

func (s *SQLiteStore) ListTransactions(ctx context.Context, limit int) ([]model.Transaction, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, party_id, amount, currency, transaction_date,
			transaction_type, description, metadata, created_at
		 FROM transactions ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list transactions")
	}
	defer rows.Close()

	var txs []model.Transaction
	for rows.Next() {
		var tx model.Transaction
		var partyID, txType, desc, metaJSON sql.NullString
		var txDate sql.NullTime
		err := rows.Scan(&tx.ID, &tx.DocumentID, &partyID, &tx.Amount, &tx.Currency,
			&txDate, &txType, &desc, &metaJSON, &tx.CreatedAt)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan transaction")
		}
		tx.PartyID = partyID.String
		tx.TransactionType = txType.String
		tx.Description = desc.String
		if txDate.Valid {
			tx.TransactionDate = &txDate.Time
		}
		if metaJSON.Valid && metaJSON.String != "" {
			if err := json.Unmarshal([]byte(metaJSON.String), &tx.Metadata); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal transaction metadata")
			}
		}
		txs = append(txs, tx)
	}
	return txs, eris.Wrap(rows.Err(), "sqlite: list transactions iterate")
}

// --- helpers ---

var errTemplateNotFound = eris.New("template not found")

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanTemplate(row scannable) (*model.Template, error) {
	var t model.Template
	var fieldsJSON string
	var keywordsJSON, vendorPattern, signature, samplesJSON, createdFrom sql.NullString
	var isActive int

	err := row.Scan(&t.ID, &t.Name, &t.DocumentType, &fieldsJSON, &keywordsJSON,
		&vendorPattern, &signature, &t.UsageCount, &t.SuccessCount,
		&t.ConfidenceScore, &isActive, &samplesJSON, &createdFrom,
		&t.CreatedAt, &t.LastUpdated)
	if err == sql.ErrNoRows {
		return nil, errTemplateNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan template")
	}

	if err := json.Unmarshal([]byte(fieldsJSON), &t.Fields); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal template fields")
	}
	if keywordsJSON.Valid && keywordsJSON.String != "" {
		if err := json.Unmarshal([]byte(keywordsJSON.String), &t.Keywords); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal template keywords")
		}
	}
	if samplesJSON.Valid && samplesJSON.String != "" {
		if err := json.Unmarshal([]byte(samplesJSON.String), &t.SampleDocuments); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal sample documents")
		}
	}
	t.VendorPattern = vendorPattern.String
	t.LayoutSignature = signature.String
	t.CreatedFromDoc = createdFrom.String
	t.IsActive = isActive != 0
	return &t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
