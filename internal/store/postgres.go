package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/AlexZinkM/sovereign-ledger/internal/model"
	"github.com/AlexZinkM/sovereign-ledger/internal/sentinel"
)

//go:embed schema.sql
var schema string

// Postgres error codes mapped to sentinel errors.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres is a Store backed by PostgreSQL. Transactions run at
// SERIALIZABLE isolation; serialization failures surface as sentinel.ErrConflict.
type Postgres struct {
	pool *pgxpool.Pool
	queries
}

// NewPostgres wraps an open pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool, queries: queries{db: pool}}
}

// Connect opens a pool for databaseURL and verifies it with a ping.
func Connect(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return NewPostgres(pool), nil
}

// Migrate creates the ledger tables if they do not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Close releases the pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", mapError(err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if err := fn(&postgresTx{queries: queries{db: tx}}); err != nil {
		return mapError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", mapError(err))
	}
	return nil
}

// mapError translates Postgres failures into sentinel errors, keeping the original in the chain.
func mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected:
			return fmt.Errorf("%w: %w", sentinel.ErrConflict, err)
		case pgUniqueViolation:
			return fmt.Errorf("%w: %w", sentinel.ErrAlreadyUsed, err)
		}
	}
	return err
}

type postgresTx struct {
	queries
}

type queries struct {
	db querier
}

const accountColumns = `id, kind, public_key, balance::text, genesis::text, locked, version, created_at, updated_at`

func scanAccount(row pgx.Row) (*model.Account, error) {
	var (
		a                model.Account
		kind             string
		balance, genesis string
	)
	if err := row.Scan(&a.ID, &kind, &a.PublicKey, &balance, &genesis, &a.Locked, &a.Version, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Kind = model.AccountKind(kind)
	var err error
	if a.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("account %s balance: %w", a.ID, err)
	}
	if a.Genesis, err = decimal.NewFromString(genesis); err != nil {
		return nil, fmt.Errorf("account %s genesis: %w", a.ID, err)
	}
	return &a, nil
}

func (q queries) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	a, err := scanAccount(q.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("account %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, mapError(err)
	}
	return a, nil
}

func (q queries) ListAccounts(ctx context.Context) ([]model.Account, error) {
	rows, err := q.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY id`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	var out []model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (q queries) CreateAccount(ctx context.Context, a *model.Account) error {
	_, err := q.db.Exec(ctx, `
INSERT INTO accounts (id, kind, public_key, balance, genesis, locked, version, created_at, updated_at)
VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6, 1, $7, $8)`,
		a.ID, string(a.Kind), a.PublicKey, a.Balance.String(), a.Genesis.String(), a.Locked, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("account %s: %w", a.ID, mapError(err))
	}
	a.Version = 1
	return nil
}

func (q queries) UpdateAccount(ctx context.Context, a *model.Account) error {
	tag, err := q.db.Exec(ctx, `
UPDATE accounts
SET public_key = $2, balance = $3::numeric, locked = $4, updated_at = $5, version = version + 1
WHERE id = $1 AND version = $6`,
		a.ID, a.PublicKey, a.Balance.String(), a.Locked, a.UpdatedAt, a.Version)
	if err != nil {
		return fmt.Errorf("account %s: %w", a.ID, mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account %s at version %d: %w", a.ID, a.Version, sentinel.ErrConflict)
	}
	a.Version++
	return nil
}

const entryColumns = `tx_id, type, sender_id, receiver_id, amount::text, ts, nonce, signature, payload,
mirror_path, mirror_sha, mirror_commit_sha, committed_at`

func scanEntry(row pgx.Row) (*model.LedgerEntry, error) {
	var (
		e      model.LedgerEntry
		txType string
		amount string
	)
	err := row.Scan(&e.ID, &txType, &e.SenderID, &e.ReceiverID, &amount, &e.Timestamp, &e.Nonce, &e.Signature,
		&e.Payload, &e.MirrorRef.Path, &e.MirrorRef.SHA, &e.MirrorRef.CommitSHA, &e.CommittedAt)
	if err != nil {
		return nil, err
	}
	e.Type = model.TransactionType(txType)
	if e.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("entry %s amount: %w", e.ID, err)
	}
	return &e, nil
}

func (q queries) listEntries(ctx context.Context, sql string, args ...any) ([]model.LedgerEntry, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	var out []model.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (q queries) GetEntry(ctx context.Context, txID string) (*model.LedgerEntry, error) {
	e, err := scanEntry(q.db.QueryRow(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE tx_id = $1`, txID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("entry %s: %w", txID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, mapError(err)
	}
	return e, nil
}

func (q queries) EntriesForAccount(ctx context.Context, accountID string) ([]model.LedgerEntry, error) {
	return q.listEntries(ctx, `SELECT `+entryColumns+` FROM ledger_entries
WHERE sender_id = $1 OR receiver_id = $1 ORDER BY seq`, accountID)
}

func (q queries) ListEntries(ctx context.Context) ([]model.LedgerEntry, error) {
	return q.listEntries(ctx, `SELECT `+entryColumns+` FROM ledger_entries ORDER BY seq`)
}

func (q queries) SignatureUsed(ctx context.Context, signature string) (bool, error) {
	var used bool
	err := q.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM ledger_entries WHERE signature = $1 AND signature <> '')`, signature).Scan(&used)
	if err != nil {
		return false, mapError(err)
	}
	return used, nil
}

func (q queries) InsertEntry(ctx context.Context, e *model.LedgerEntry) error {
	_, err := q.db.Exec(ctx, `
INSERT INTO ledger_entries (tx_id, type, sender_id, receiver_id, amount, ts, nonce, signature, payload,
    mirror_path, mirror_sha, mirror_commit_sha, committed_at)
VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9, $10, $11, $12, $13)`,
		e.ID, string(e.Type), e.SenderID, e.ReceiverID, e.Amount.String(), e.Timestamp, e.Nonce, e.Signature,
		e.Payload, e.MirrorRef.Path, e.MirrorRef.SHA, e.MirrorRef.CommitSHA, e.CommittedAt)
	if err != nil {
		return fmt.Errorf("transaction %s: %w", e.ID, mapError(err))
	}
	return nil
}

func scanIntent(row pgx.Row) (*model.SettlementIntent, error) {
	var (
		i         model.SettlementIntent
		status    string
		txJSON    []byte
		mirrorRef []byte
	)
	if err := row.Scan(&i.TxID, &status, &txJSON, &mirrorRef, &i.Reason, &i.CreatedAt, &i.UpdatedAt); err != nil {
		return nil, err
	}
	i.Status = model.IntentStatus(status)
	if err := json.Unmarshal(txJSON, &i.Transaction); err != nil {
		return nil, fmt.Errorf("intent %s transaction: %w", i.TxID, err)
	}
	if len(mirrorRef) > 0 {
		i.MirrorRef = &model.RevisionRef{}
		if err := json.Unmarshal(mirrorRef, i.MirrorRef); err != nil {
			return nil, fmt.Errorf("intent %s mirror ref: %w", i.TxID, err)
		}
	}
	return &i, nil
}

const intentColumns = `tx_id, status, transaction, mirror_ref, reason, created_at, updated_at`

func (q queries) GetIntent(ctx context.Context, txID string) (*model.SettlementIntent, error) {
	i, err := scanIntent(q.db.QueryRow(ctx, `SELECT `+intentColumns+` FROM settlement_intents WHERE tx_id = $1`, txID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("intent %s: %w", txID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, mapError(err)
	}
	return i, nil
}

func (q queries) ListIntents(ctx context.Context, statuses ...model.IntentStatus) ([]model.SettlementIntent, error) {
	filter := make([]string, len(statuses))
	for i, s := range statuses {
		filter[i] = string(s)
	}
	rows, err := q.db.Query(ctx, `SELECT `+intentColumns+` FROM settlement_intents
WHERE cardinality($1::text[]) = 0 OR status = ANY($1::text[])
ORDER BY created_at, tx_id`, filter)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	var out []model.SettlementIntent
	for rows.Next() {
		i, err := scanIntent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *i)
	}
	return out, rows.Err()
}

func (q queries) PutIntent(ctx context.Context, i *model.SettlementIntent) error {
	txJSON, err := json.Marshal(i.Transaction)
	if err != nil {
		return fmt.Errorf("intent %s: %w", i.TxID, err)
	}
	var mirrorRef []byte
	if i.MirrorRef != nil {
		if mirrorRef, err = json.Marshal(i.MirrorRef); err != nil {
			return fmt.Errorf("intent %s: %w", i.TxID, err)
		}
	}
	_, err = q.db.Exec(ctx, `
INSERT INTO settlement_intents (tx_id, status, transaction, mirror_ref, reason, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (tx_id) DO UPDATE SET
    status = EXCLUDED.status,
    transaction = EXCLUDED.transaction,
    mirror_ref = EXCLUDED.mirror_ref,
    reason = EXCLUDED.reason,
    updated_at = EXCLUDED.updated_at`,
		i.TxID, string(i.Status), txJSON, mirrorRef, i.Reason, i.CreatedAt, i.UpdatedAt)
	if err != nil {
		return fmt.Errorf("intent %s: %w", i.TxID, mapError(err))
	}
	return nil
}

const proposalColumns = `id, from_vault_id, to_vault_id, amount::text, reason, proposer_id, signatures, status,
execution, transaction_id, created_at, executed_at, version`

func scanProposal(row pgx.Row) (*model.MultiSigProposal, error) {
	var (
		p         model.MultiSigProposal
		amount    string
		status    string
		execution []byte
	)
	err := row.Scan(&p.ID, &p.FromVaultID, &p.ToVaultID, &amount, &p.Reason, &p.ProposerID, &p.Signatures,
		&status, &execution, &p.TransactionID, &p.CreatedAt, &p.ExecutedAt, &p.Version)
	if err != nil {
		return nil, err
	}
	p.Status = model.ProposalStatus(status)
	if p.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("proposal %s amount: %w", p.ID, err)
	}
	if len(execution) > 0 {
		p.Execution = &model.Transaction{}
		if err := json.Unmarshal(execution, p.Execution); err != nil {
			return nil, fmt.Errorf("proposal %s execution: %w", p.ID, err)
		}
	}
	return &p, nil
}

func (q queries) GetProposal(ctx context.Context, id string) (*model.MultiSigProposal, error) {
	p, err := scanProposal(q.db.QueryRow(ctx, `SELECT `+proposalColumns+` FROM multisig_proposals WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("proposal %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, mapError(err)
	}
	return p, nil
}

func marshalExecution(p *model.MultiSigProposal) ([]byte, error) {
	if p.Execution == nil {
		return nil, nil
	}
	return json.Marshal(p.Execution)
}

// signatureList never returns nil; the column is NOT NULL.
func signatureList(p *model.MultiSigProposal) []string {
	if p.Signatures == nil {
		return []string{}
	}
	return p.Signatures
}

func (q queries) CreateProposal(ctx context.Context, p *model.MultiSigProposal) error {
	execution, err := marshalExecution(p)
	if err != nil {
		return fmt.Errorf("proposal %s: %w", p.ID, err)
	}
	_, err = q.db.Exec(ctx, `
INSERT INTO multisig_proposals (id, from_vault_id, to_vault_id, amount, reason, proposer_id, signatures, status,
    execution, transaction_id, created_at, executed_at, version)
VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9, $10, $11, $12, 1)`,
		p.ID, p.FromVaultID, p.ToVaultID, p.Amount.String(), p.Reason, p.ProposerID, signatureList(p), string(p.Status),
		execution, p.TransactionID, p.CreatedAt, p.ExecutedAt)
	if err != nil {
		return fmt.Errorf("proposal %s: %w", p.ID, mapError(err))
	}
	p.Version = 1
	return nil
}

func (q queries) UpdateProposal(ctx context.Context, p *model.MultiSigProposal) error {
	execution, err := marshalExecution(p)
	if err != nil {
		return fmt.Errorf("proposal %s: %w", p.ID, err)
	}
	tag, err := q.db.Exec(ctx, `
UPDATE multisig_proposals
SET signatures = $2, status = $3, execution = $4, transaction_id = $5, executed_at = $6, version = version + 1
WHERE id = $1 AND version = $7`,
		p.ID, signatureList(p), string(p.Status), execution, p.TransactionID, p.ExecutedAt, p.Version)
	if err != nil {
		return fmt.Errorf("proposal %s: %w", p.ID, mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("proposal %s at version %d: %w", p.ID, p.Version, sentinel.ErrConflict)
	}
	p.Version++
	return nil
}
