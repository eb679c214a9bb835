package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/akhanna222/email2kg/internal/db"
	"github.com/akhanna222/email2kg/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS templates (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	document_type    TEXT NOT NULL,
	fields           JSONB NOT NULL,
	keywords         JSONB,
	vendor_pattern   TEXT,
	layout_signature TEXT,
	usage_count      INTEGER NOT NULL DEFAULT 0,
	success_count    INTEGER NOT NULL DEFAULT 0,
	confidence_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	is_active        BOOLEAN NOT NULL DEFAULT TRUE,
	sample_documents JSONB,
	created_from_doc TEXT,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_updated     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS documents (
	id             TEXT PRIMARY KEY,
	filename       TEXT NOT NULL,
	file_path      TEXT NOT NULL,
	mime_type      TEXT,
	status         TEXT NOT NULL DEFAULT 'pending',
	document_type  TEXT,
	extracted_text TEXT,
	extracted_data JSONB,
	uploaded_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	processed_at   TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS extraction_logs (
	id                TEXT PRIMARY KEY,
	document_id       TEXT NOT NULL,
	template_id       TEXT,
	method            TEXT NOT NULL,
	fields            JSONB,
	confidence_scores JSONB,
	success           BOOLEAN NOT NULL DEFAULT FALSE,
	extraction_time   DOUBLE PRECISION NOT NULL DEFAULT 0,
	error_message     TEXT,
	manually_verified BOOLEAN NOT NULL DEFAULT FALSE,
	corrections       JSONB,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS parties (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	normalized_name TEXT NOT NULL,
	party_type      TEXT NOT NULL DEFAULT 'vendor',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS transactions (
	id               TEXT PRIMARY KEY,
	document_id      TEXT NOT NULL,
	party_id         TEXT,
	amount           DOUBLE PRECISION NOT NULL,
	currency         TEXT NOT NULL DEFAULT 'USD',
	transaction_date TIMESTAMPTZ,
	transaction_type TEXT,
	description      TEXT,
	metadata         JSONB,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_templates_type_active ON templates(document_type, is_active);
CREATE INDEX IF NOT EXISTS idx_templates_signature ON templates(document_type, layout_signature);
CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_logs_document ON extraction_logs(document_id);
CREATE INDEX IF NOT EXISTS idx_parties_normalized ON parties(normalized_name);
CREATE INDEX IF NOT EXISTS idx_transactions_document ON transactions(document_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Templates ---

func (s *PostgresStore) CreateTemplate(ctx context.Context, t *model.Template) error {
	fieldsJSON, err := json.Marshal(t.Fields)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal template fields")
	}
	keywordsJSON, err := json.Marshal(t.Keywords)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal template keywords")
	}
	samplesJSON, err := json.Marshal(t.SampleDocuments)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal sample documents")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO templates (id, name, document_type, fields, keywords, vendor_pattern,
			layout_signature, usage_count, success_count, confidence_score, is_active,
			sample_documents, created_from_doc, created_at, last_updated)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		t.ID, t.Name, string(t.DocumentType), fieldsJSON, keywordsJSON,
		t.VendorPattern, t.LayoutSignature, t.UsageCount, t.SuccessCount,
		t.ConfidenceScore, t.IsActive, samplesJSON, t.CreatedFromDoc,
		t.CreatedAt, t.LastUpdated,
	)
	return eris.Wrap(err, "postgres: insert template")
}

func (s *PostgresStore) GetTemplate(ctx context.Context, id string) (*model.Template, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+templateColumns+` FROM templates WHERE id = $1`, id)
	return scanPgTemplate(row)
}

func (s *PostgresStore) ListTemplates(ctx context.Context, filter TemplateFilter) ([]model.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM templates WHERE 1=1`
	var args []any

	if filter.DocumentType != "" {
		args = append(args, string(filter.DocumentType))
		query += ` AND document_type = $1`
	}
	if filter.ActiveOnly {
		query += ` AND is_active = TRUE`
	}
	query += ` ORDER BY confidence_score DESC, created_at ASC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		if filter.DocumentType != "" {
			query += ` LIMIT $2`
		} else {
			query += ` LIMIT $1`
		}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list templates")
	}
	defer rows.Close()

	var templates []model.Template
	for rows.Next() {
		t, err := scanPgTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, *t)
	}
	return templates, eris.Wrap(rows.Err(), "postgres: list templates iterate")
}

func (s *PostgresStore) CountTemplates(ctx context.Context, dt model.DocumentType) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM templates WHERE document_type = $1`, string(dt)).Scan(&n)
	return n, eris.Wrap(err, "postgres: count templates")
}

func (s *PostgresStore) FindTemplateBySignature(ctx context.Context, dt model.DocumentType, signature string) (*model.Template, error) {
	if signature == "" {
		return nil, nil
	}
	row := s.pool.QueryRow(ctx,
		`SELECT `+templateColumns+` FROM templates
		 WHERE document_type = $1 AND layout_signature = $2 AND is_active = TRUE
		 ORDER BY confidence_score DESC LIMIT 1`,
		string(dt), signature)
	t, err := scanPgTemplate(row)
	if eris.Is(err, errTemplateNotFound) {
		return nil, nil
	}
	return t, err
}

func (s *PostgresStore) UpdateTemplateStats(ctx context.Context, id string, success bool) (*model.Template, error) {
	// Single statement: the increment and the ratio are computed from the
	// pre-update row inside the database, so concurrent workers cannot lose
	// updates to a client-side read-modify-write.
	inc := 0
	if success {
		inc = 1
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE templates SET
			usage_count      = usage_count + 1,
			success_count    = success_count + $1,
			confidence_score = (success_count + $2)::double precision / (usage_count + 1),
			last_updated     = $3
		 WHERE id = $4`,
		inc, inc, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: update template stats %s", id)
	}
	if tag.RowsAffected() == 0 {
		return nil, eris.Errorf("template not found: %s", id)
	}
	return s.GetTemplate(ctx, id)
}

func (s *PostgresStore) DeactivateTemplate(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE templates SET is_active = FALSE, last_updated = $1 WHERE id = $2`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: deactivate template %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("template not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) DeleteTemplate(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM templates WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete template %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("template not found: %s", id)
	}
	return nil
}

// --- Documents ---

func (s *PostgresStore) CreateDocument(ctx context.Context, d *model.Document) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO documents (id, filename, file_path, mime_type, status, uploaded_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		d.ID, d.Filename, d.FilePath, d.MimeType, string(d.Status), d.UploadedAt,
	)
	return eris.Wrap(err, "postgres: insert document")
}

func (s *PostgresStore) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, filename, file_path, mime_type, status, document_type,
			extracted_text, extracted_data, uploaded_at, processed_at
		 FROM documents WHERE id = $1`, id)

	var d model.Document
	var mimeType, docType, text *string
	var dataJSON []byte
	var processedAt *time.Time
	err := row.Scan(&d.ID, &d.Filename, &d.FilePath, &mimeType, &d.Status,
		&docType, &text, &dataJSON, &d.UploadedAt, &processedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("document not found: %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan document")
	}
	if mimeType != nil {
		d.MimeType = *mimeType
	}
	if docType != nil {
		d.DocumentType = model.DocumentType(*docType)
	}
	if text != nil {
		d.ExtractedText = *text
	}
	if len(dataJSON) > 0 {
		if err := json.Unmarshal(dataJSON, &d.ExtractedData); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal extracted data")
		}
	}
	d.ProcessedAt = processedAt
	return &d, nil
}

func (s *PostgresStore) UpdateDocumentStatus(ctx context.Context, id string, status model.ProcessingStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		return eris.Wrapf(err, "postgres: update document status %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("document not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) UpdateDocumentResult(ctx context.Context, d *model.Document) error {
	var dataJSON []byte
	if d.ExtractedData != nil {
		raw, err := json.Marshal(d.ExtractedData)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal extracted data")
		}
		dataJSON = raw
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET status = $1, document_type = $2, extracted_text = $3,
			extracted_data = $4, processed_at = $5
		 WHERE id = $6`,
		string(d.Status), string(d.DocumentType), d.ExtractedText, dataJSON,
		d.ProcessedAt, d.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update document result %s", d.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("document not found: %s", d.ID)
	}
	return nil
}

// --- Extraction audit log ---

func (s *PostgresStore) LogExtraction(ctx context.Context, a *model.ExtractionAttempt) error {
	fieldsJSON, err := json.Marshal(a.Fields)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal attempt fields")
	}
	confJSON, err := json.Marshal(a.ConfidenceScores)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal attempt confidences")
	}

	var templateID *string
	if a.TemplateID != "" {
		templateID = &a.TemplateID
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO extraction_logs (id, document_id, template_id, method, fields,
			confidence_scores, success, extraction_time, error_message, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.DocumentID, templateID, string(a.Method), fieldsJSON, confJSON,
		a.Success, a.ExtractionTime, a.ErrorMessage, a.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert extraction log")
}

func (s *PostgresStore) ListAttempts(ctx context.Context, filter AttemptFilter) ([]model.ExtractionAttempt, error) {
	query := `SELECT id, document_id, template_id, method, fields, confidence_scores,
		success, extraction_time, error_message, manually_verified, corrections, created_at
	 FROM extraction_logs WHERE 1=1`
	var args []any
	argN := 1

	if filter.DocumentID != "" {
		query += ` AND document_id = $1`
		args = append(args, filter.DocumentID)
		argN++
	}
	if filter.Method != "" {
		query += ` AND method = $` + strconv.Itoa(argN)
		args = append(args, string(filter.Method))
		argN++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT $` + strconv.Itoa(argN)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list attempts")
	}
	defer rows.Close()

	var attempts []model.ExtractionAttempt
	for rows.Next() {
		var a model.ExtractionAttempt
		var templateID, errMsg *string
		var fieldsJSON, confJSON, corrJSON []byte
		err := rows.Scan(&a.ID, &a.DocumentID, &templateID, &a.Method, &fieldsJSON,
			&confJSON, &a.Success, &a.ExtractionTime, &errMsg, &a.ManuallyVerified,
			&corrJSON, &a.CreatedAt)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan attempt")
		}
		if templateID != nil {
			a.TemplateID = *templateID
		}
		if errMsg != nil {
			a.ErrorMessage = *errMsg
		}
		if len(fieldsJSON) > 0 {
			if err := json.Unmarshal(fieldsJSON, &a.Fields); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal attempt fields")
			}
		}
		if len(confJSON) > 0 {
			if err := json.Unmarshal(confJSON, &a.ConfidenceScores); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal attempt confidences")
			}
		}
		if len(corrJSON) > 0 {
			if err := json.Unmarshal(corrJSON, &a.Corrections); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal corrections")
			}
		}
		attempts = append(attempts, a)
	}
	return attempts, eris.Wrap(rows.Err(), "postgres: list attempts iterate")
}

func (s *PostgresStore) SummarizeUsage(ctx context.Context) (*UsageSummary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT method, success, COUNT(*) FROM extraction_logs GROUP BY method, success`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: summarize usage")
	}
	defer rows.Close()

	summary := &UsageSummary{}
	for rows.Next() {
		var method string
		var success bool
		var count int
		if err := rows.Scan(&method, &success, &count); err != nil {
			return nil, eris.Wrap(err, "postgres: scan usage row")
		}
		switch model.ExtractionMethod(method) {
		case model.MethodTemplate:
			summary.TemplateAttempts += count
			if success {
				summary.TemplateSuccesses += count
			}
		case model.MethodLLM:
			summary.LLMAttempts += count
			if success {
				summary.LLMSuccesses += count
			}
		}
	}
	return summary, eris.Wrap(rows.Err(), "postgres: summarize usage iterate")
}

// --- Knowledge graph ---

func (s *PostgresStore) FindPartyByNormalizedName(ctx context.Context, normalized string) (*model.Party, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, normalized_name, party_type, created_at
		 FROM parties WHERE normalized_name = $1 LIMIT 1`, normalized)

	var p model.Party
	err := row.Scan(&p.ID, &p.Name, &p.NormalizedName, &p.PartyType, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find party")
	}
	return &p, nil
}

func (s *PostgresStore) GetParty(ctx context.Context, id string) (*model.Party, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, normalized_name, party_type, created_at
		 FROM parties WHERE id = $1`, id)

	var p model.Party
	err := row.Scan(&p.ID, &p.Name, &p.NormalizedName, &p.PartyType, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get party")
	}
	return &p, nil
}

func (s *PostgresStore) CreateParty(ctx context.Context, p *model.Party) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO parties (id, name, normalized_name, party_type, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.Name, p.NormalizedName, p.PartyType, p.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert party")
}

func (s *PostgresStore) CreateTransaction(ctx context.Context, tx *model.Transaction) error {
	var metaJSON []byte
	if tx.Metadata != nil {
		raw, err := json.Marshal(tx.Metadata)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal transaction metadata")
		}
		metaJSON = raw
	}

	var partyID *string
	if tx.PartyID != "" {
		partyID = &tx.PartyID
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO transactions (id, document_id, party_id, amount, currency,
			transaction_date, transaction_type, description, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		tx.ID, tx.DocumentID, partyID, tx.Amount, tx.Currency, tx.TransactionDate,
		tx.TransactionType, tx.Description, metaJSON, tx.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert transaction")
}

func (s *PostgresStore) ListTransactions(ctx context.Context, limit int) ([]model.Transaction, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, document_id, party_id, amount, currency, transaction_date,
			transaction_type, description, metadata, created_at
		 FROM transactions ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list transactions")
	}
	defer rows.Close()

	var txs []model.Transaction
	for rows.Next() {
		var tx model.Transaction
		var partyID, txType, desc *string
		var metaJSON []byte
		var txDate *time.Time
		err := rows.Scan(&tx.ID, &tx.DocumentID, &partyID, &tx.Amount, &tx.Currency,
			&txDate, &txType, &desc, &metaJSON, &tx.CreatedAt)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan transaction")
		}
		if partyID != nil {
			tx.PartyID = *partyID
		}
		if txType != nil {
			tx.TransactionType = *txType
		}
		if desc != nil {
			tx.Description = *desc
		}
		tx.TransactionDate = txDate
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &tx.Metadata); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal transaction metadata")
			}
		}
		txs = append(txs, tx)
	}
	return txs, eris.Wrap(rows.Err(), "postgres: list transactions iterate")
}

// --- helpers ---

func scanPgTemplate(row scannable) (*model.Template, error) {
	var t model.Template
	var fieldsJSON, keywordsJSON, samplesJSON []byte
	var vendorPattern, signature, createdFrom *string

	err := row.Scan(&t.ID, &t.Name, &t.DocumentType, &fieldsJSON, &keywordsJSON,
		&vendorPattern, &signature, &t.UsageCount, &t.SuccessCount,
		&t.ConfidenceScore, &t.IsActive, &samplesJSON, &createdFrom,
		&t.CreatedAt, &t.LastUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errTemplateNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan template")
	}

	if err := json.Unmarshal(fieldsJSON, &t.Fields); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal template fields")
	}
	if len(keywordsJSON) > 0 {
		if err := json.Unmarshal(keywordsJSON, &t.Keywords); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal template keywords")
		}
	}
	if len(samplesJSON) > 0 {
		if err := json.Unmarshal(samplesJSON, &t.SampleDocuments); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal sample documents")
		}
	}
	if vendorPattern != nil {
		t.VendorPattern = *vendorPattern
	}
	if signature != nil {
		t.LayoutSignature = *signature
	}
	if createdFrom != nil {
		t.CreatedFromDoc = *createdFrom
	}
	return &t, nil
}
