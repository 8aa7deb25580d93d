/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements ledger.TxStore plus the quest Catalog and ProgressStore on one
  database. The same patterns apply to PostgreSQL with minor dialect
  differences.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE or DELETE statements touch the transactions table
  - The idempotency_key UNIQUE index turns duplicate triggers into
    ledger.ErrDuplicateOperation before any balance is written

KEY TABLES:
  accounts:            Materialized per-user balances
  transactions:        Immutable ledger (AUTOINCREMENT id = monotonic)
  quest_definitions:   Admin-maintained quest catalog
  quest_progress:      One row per (user, quest) pair
  achievements:        Admin-maintained achievement catalog
  achievement_unlocks: Permanent one-shot records

WAL MODE:
  Opened with WAL so readers don't block and crash recovery stays sane.

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/neighborly/points-engine/ledger"
	"github.com/neighborly/points-engine/quest"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// The ledger serializes writers itself; one connection also keeps the
	// in-memory variant from splitting into separate databases.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Materialized balances; mutated only inside ledger applies
	CREATE TABLE IF NOT EXISTS accounts (
		user_id TEXT PRIMARY KEY,
		balance INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0),
		created_at TEXT NOT NULL
	);

	-- Append-only transaction log
	CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		from_user TEXT,
		to_user TEXT,
		amount INTEGER NOT NULL CHECK (amount > 0),
		reason TEXT NOT NULL DEFAULT '',
		idempotency_key TEXT UNIQUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_from
		ON transactions(from_user) WHERE from_user IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_transactions_to
		ON transactions(to_user) WHERE to_user IS NOT NULL;
	-- Period leaderboards scan by creation time
	CREATE INDEX IF NOT EXISTS idx_transactions_created_at
		ON transactions(created_at);

	-- Quest catalog (admin-maintained, read-only to the engine)
	CREATE TABLE IF NOT EXISTS quest_definitions (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		target INTEGER NOT NULL CHECK (target > 0),
		reward INTEGER NOT NULL DEFAULT 0 CHECK (reward >= 0),
		category TEXT NOT NULL DEFAULT '',
		repeatable BOOLEAN NOT NULL DEFAULT FALSE,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		expires_at TEXT
	);

	-- One row per (user, quest); superseded in place on repeat cycles
	CREATE TABLE IF NOT EXISTS quest_progress (
		user_id TEXT NOT NULL,
		quest_id TEXT NOT NULL,
		cycle INTEGER NOT NULL DEFAULT 1,
		progress INTEGER NOT NULL DEFAULT 0 CHECK (progress >= 0),
		completed BOOLEAN NOT NULL DEFAULT FALSE,
		completed_at TEXT,
		reward_claimed BOOLEAN NOT NULL DEFAULT FALSE,
		accepted_at TEXT NOT NULL,
		PRIMARY KEY (user_id, quest_id)
	);

	CREATE INDEX IF NOT EXISTS idx_quest_progress_user
		ON quest_progress(user_id);

	CREATE TABLE IF NOT EXISTS achievements (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		points_reward INTEGER NOT NULL DEFAULT 0 CHECK (points_reward >= 0)
	);

	-- Permanent; never updated or deleted
	CREATE TABLE IF NOT EXISTS achievement_unlocks (
		user_id TEXT NOT NULL,
		achievement_id TEXT NOT NULL,
		unlocked_at TEXT NOT NULL,
		PRIMARY KEY (user_id, achievement_id)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx abstracts *sql.DB and *sql.Tx so the same query code serves both.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// LEDGER STORE (ledger.Store interface)
// =============================================================================

func (s *Store) Append(ctx context.Context, tx ledger.Transaction) (ledger.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendTx(ctx, s.db, tx)
}

func appendTx(ctx context.Context, db dbtx, tx ledger.Transaction) (ledger.Transaction, error) {
	tx.CreatedAt = time.Now().UTC()

	res, err := db.ExecContext(ctx, `
		INSERT INTO transactions (from_user, to_user, amount, reason, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		nullUser(tx.From),
		nullUser(tx.To),
		tx.Amount,
		tx.Reason,
		nullString(tx.IdempotencyKey),
		tx.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.Transaction{}, ledger.ErrDuplicateOperation
		}
		return ledger.Transaction{}, fmt.Errorf("failed to append transaction: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("failed to read transaction id: %w", err)
	}
	tx.ID = ledger.TransactionID(id)
	return tx, nil
}

func (s *Store) TransactionByKey(ctx context.Context, key string) (*ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionByKey(ctx, s.db, key)
}

func transactionByKey(ctx context.Context, db dbtx, key string) (*ledger.Transaction, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, from_user, to_user, amount, reason, idempotency_key, created_at
		FROM transactions WHERE idempotency_key = ?
	`, key)
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction by key: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	tx, err := scanTransaction(rows)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (s *Store) Account(ctx context.Context, user ledger.UserID) (*ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return account(ctx, s.db, user)
}

func account(ctx context.Context, db dbtx, user ledger.UserID) (*ledger.Account, error) {
	var (
		acct      ledger.Account
		createdAt string
	)
	err := db.QueryRowContext(ctx,
		`SELECT user_id, balance, created_at FROM accounts WHERE user_id = ?`, user,
	).Scan(&acct.UserID, &acct.Balance, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	acct.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &acct, nil
}

func (s *Store) EnsureAccount(ctx context.Context, user ledger.UserID) (*ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ensureAccount(ctx, s.db, user)
}

func ensureAccount(ctx context.Context, db dbtx, user ledger.UserID) (*ledger.Account, error) {
	_, err := db.ExecContext(ctx, `
		INSERT INTO accounts (user_id, balance, created_at) VALUES (?, 0, ?)
		ON CONFLICT (user_id) DO NOTHING
	`, user, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to ensure account: %w", err)
	}
	return account(ctx, db, user)
}

func (s *Store) AdjustBalance(ctx context.Context, user ledger.UserID, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return adjustBalance(ctx, s.db, user, delta)
}

func adjustBalance(ctx context.Context, db dbtx, user ledger.UserID, delta int64) error {
	res, err := db.ExecContext(ctx,
		`UPDATE accounts SET balance = balance + ? WHERE user_id = ?`, delta, user)
	if err != nil {
		return fmt.Errorf("failed to adjust balance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to adjust balance: %w", err)
	}
	if n == 0 {
		return ledger.ErrUnknownAccount
	}
	return nil
}

func (s *Store) History(ctx context.Context, user ledger.UserID, limit int) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return history(ctx, s.db, user, limit)
}

func history(ctx context.Context, db dbtx, user ledger.UserID, limit int) ([]ledger.Transaction, error) {
	if limit <= 0 {
		limit = -1 // SQLite: negative LIMIT means no limit
	}
	return queryTransactions(ctx, db, `
		SELECT id, from_user, to_user, amount, reason, idempotency_key, created_at
		FROM transactions
		WHERE from_user = ? OR to_user = ?
		ORDER BY id DESC
		LIMIT ?
	`, user, user, limit)
}

func (s *Store) Transactions(ctx context.Context) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return allTransactions(ctx, s.db)
}

func allTransactions(ctx context.Context, db dbtx) ([]ledger.Transaction, error) {
	return queryTransactions(ctx, db, `
		SELECT id, from_user, to_user, amount, reason, idempotency_key, created_at
		FROM transactions ORDER BY id ASC
	`)
}

func (s *Store) Accounts(ctx context.Context) ([]ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return accounts(ctx, s.db)
}

func accounts(ctx context.Context, db dbtx) ([]ledger.Account, error) {
	rows, err := db.QueryContext(ctx, `SELECT user_id, balance, created_at FROM accounts`)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var result []ledger.Account
	for rows.Next() {
		var (
			acct      ledger.Account
			createdAt string
		)
		if err := rows.Scan(&acct.UserID, &acct.Balance, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		acct.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		result = append(result, acct)
	}
	return result, rows.Err()
}

func (s *Store) CreditsSince(ctx context.Context, since time.Time) (map[ledger.UserID]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return creditsSince(ctx, s.db, since)
}

func creditsSince(ctx context.Context, db dbtx, since time.Time) (map[ledger.UserID]int64, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT to_user, SUM(amount) FROM transactions
		WHERE to_user IS NOT NULL AND created_at >= ?
		GROUP BY to_user
	`, since.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to query credits: %w", err)
	}
	defer rows.Close()

	credits := make(map[ledger.UserID]int64)
	for rows.Next() {
		var (
			user ledger.UserID
			sum  int64
		)
		if err := rows.Scan(&user, &sum); err != nil {
			return nil, fmt.Errorf("failed to scan credits: %w", err)
		}
		credits[user] = sum
	}
	return credits, rows.Err()
}

func queryTransactions(ctx context.Context, db dbtx, query string, args ...any) ([]ledger.Transaction, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []ledger.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

func scanTransaction(rows *sql.Rows) (ledger.Transaction, error) {
	var (
		tx             ledger.Transaction
		fromUser       sql.NullString
		toUser         sql.NullString
		idempotencyKey sql.NullString
		createdAt      string
	)
	err := rows.Scan(&tx.ID, &fromUser, &toUser, &tx.Amount, &tx.Reason, &idempotencyKey, &createdAt)
	if err != nil {
		return tx, fmt.Errorf("failed to scan transaction: %w", err)
	}

	if fromUser.Valid {
		u := ledger.UserID(fromUser.String)
		tx.From = &u
	}
	if toUser.Valid {
		u := ledger.UserID(toUser.String)
		tx.To = &u
	}
	tx.IdempotencyKey = idempotencyKey.String
	tx.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return tx, nil
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction. Rollback on error,
// commit otherwise.
func (s *Store) WithTx(ctx context.Context, fn func(store ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore routes the Store interface through an open *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) Append(ctx context.Context, tx ledger.Transaction) (ledger.Transaction, error) {
	return appendTx(ctx, ts.tx, tx)
}

func (ts *txStore) TransactionByKey(ctx context.Context, key string) (*ledger.Transaction, error) {
	return transactionByKey(ctx, ts.tx, key)
}

func (ts *txStore) Account(ctx context.Context, user ledger.UserID) (*ledger.Account, error) {
	return account(ctx, ts.tx, user)
}

func (ts *txStore) EnsureAccount(ctx context.Context, user ledger.UserID) (*ledger.Account, error) {
	return ensureAccount(ctx, ts.tx, user)
}

func (ts *txStore) AdjustBalance(ctx context.Context, user ledger.UserID, delta int64) error {
	return adjustBalance(ctx, ts.tx, user, delta)
}

func (ts *txStore) History(ctx context.Context, user ledger.UserID, limit int) ([]ledger.Transaction, error) {
	return history(ctx, ts.tx, user, limit)
}

func (ts *txStore) Transactions(ctx context.Context) ([]ledger.Transaction, error) {
	return allTransactions(ctx, ts.tx)
}

func (ts *txStore) Accounts(ctx context.Context) ([]ledger.Account, error) {
	return accounts(ctx, ts.tx)
}

func (ts *txStore) CreditsSince(ctx context.Context, since time.Time) (map[ledger.UserID]int64, error) {
	return creditsSince(ctx, ts.tx, since)
}

// =============================================================================
// QUEST CATALOG (quest.Catalog interface)
// =============================================================================

func (s *Store) Quest(ctx context.Context, id quest.QuestID) (*quest.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, target, reward, category, repeatable, active, expires_at
		FROM quest_definitions WHERE id = ?
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query quest: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	def, err := scanQuest(rows)
	if err != nil {
		return nil, err
	}
	return &def, nil
}

func (s *Store) Quests(ctx context.Context) ([]quest.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, target, reward, category, repeatable, active, expires_at
		FROM quest_definitions ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query quests: %w", err)
	}
	defer rows.Close()

	var defs []quest.Definition
	for rows.Next() {
		def, err := scanQuest(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

func scanQuest(rows *sql.Rows) (quest.Definition, error) {
	var (
		def       quest.Definition
		expiresAt sql.NullString
	)
	err := rows.Scan(&def.ID, &def.Title, &def.Target, &def.Reward,
		&def.Category, &def.Repeatable, &def.Active, &expiresAt)
	if err != nil {
		return def, fmt.Errorf("failed to scan quest: %w", err)
	}
	if expiresAt.Valid {
		t, _ := time.Parse(time.RFC3339, expiresAt.String)
		def.ExpiresAt = &t
	}
	return def, nil
}

func (s *Store) Achievement(ctx context.Context, id quest.AchievementID) (*quest.Achievement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var a quest.Achievement
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, points_reward FROM achievements WHERE id = ?`, id,
	).Scan(&a.ID, &a.Title, &a.PointsReward)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load achievement: %w", err)
	}
	return &a, nil
}

// SaveQuest upserts a quest definition. Admin path; the engine never calls
// this.
func (s *Store) SaveQuest(ctx context.Context, def quest.Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expiresAt any
	if def.ExpiresAt != nil {
		expiresAt = def.ExpiresAt.UTC().Format(time.RFC3339)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO quest_definitions (id, title, target, reward, category, repeatable, active, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			target = excluded.target,
			reward = excluded.reward,
			category = excluded.category,
			repeatable = excluded.repeatable,
			active = excluded.active,
			expires_at = excluded.expires_at
	`, def.ID, def.Title, def.Target, def.Reward, def.Category, def.Repeatable, def.Active, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to save quest: %w", err)
	}
	return nil
}

// SaveAchievement upserts an achievement definition.
func (s *Store) SaveAchievement(ctx context.Context, a quest.Achievement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO achievements (id, title, points_reward) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			points_reward = excluded.points_reward
	`, a.ID, a.Title, a.PointsReward)
	if err != nil {
		return fmt.Errorf("failed to save achievement: %w", err)
	}
	return nil
}

// =============================================================================
// QUEST PROGRESS (quest.ProgressStore interface)
// =============================================================================

func (s *Store) Progress(ctx context.Context, user ledger.UserID, questID quest.QuestID) (*quest.Progress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, quest_id, cycle, progress, completed, completed_at, reward_claimed, accepted_at
		FROM quest_progress WHERE user_id = ? AND quest_id = ?
	`, user, questID)
	if err != nil {
		return nil, fmt.Errorf("failed to query progress: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	p, err := scanProgress(rows)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) SaveProgress(ctx context.Context, p quest.Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var completedAt any
	if p.CompletedAt != nil {
		completedAt = p.CompletedAt.UTC().Format(time.RFC3339)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO quest_progress (user_id, quest_id, cycle, progress, completed, completed_at, reward_claimed, accepted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, quest_id) DO UPDATE SET
			cycle = excluded.cycle,
			progress = excluded.progress,
			completed = excluded.completed,
			completed_at = excluded.completed_at,
			reward_claimed = excluded.reward_claimed,
			accepted_at = excluded.accepted_at
	`, p.UserID, p.QuestID, p.Cycle, p.Progress, p.Completed, completedAt,
		p.RewardClaimed, p.AcceptedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}
	return nil
}

func (s *Store) ProgressByUser(ctx context.Context, user ledger.UserID) ([]quest.Progress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, quest_id, cycle, progress, completed, completed_at, reward_claimed, accepted_at
		FROM quest_progress WHERE user_id = ?
	`, user)
	if err != nil {
		return nil, fmt.Errorf("failed to query progress: %w", err)
	}
	defer rows.Close()

	var result []quest.Progress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func scanProgress(rows *sql.Rows) (quest.Progress, error) {
	var (
		p           quest.Progress
		completedAt sql.NullString
		acceptedAt  string
	)
	err := rows.Scan(&p.UserID, &p.QuestID, &p.Cycle, &p.Progress,
		&p.Completed, &completedAt, &p.RewardClaimed, &acceptedAt)
	if err != nil {
		return p, fmt.Errorf("failed to scan progress: %w", err)
	}
	if completedAt.Valid {
		t, _ := time.Parse(time.RFC3339, completedAt.String)
		p.CompletedAt = &t
	}
	p.AcceptedAt, _ = time.Parse(time.RFC3339, acceptedAt)
	return p, nil
}

func (s *Store) Unlocked(ctx context.Context, user ledger.UserID, achievement quest.AchievementID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM achievement_unlocks WHERE user_id = ? AND achievement_id = ?`,
		user, achievement,
	).Scan(&count)
	return count > 0, err
}

func (s *Store) SaveUnlock(ctx context.Context, u quest.Unlock) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO achievement_unlocks (user_id, achievement_id, unlocked_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id, achievement_id) DO NOTHING
	`, u.UserID, u.AchievementID, u.UnlockedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save unlock: %w", err)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullUser(u *ledger.UserID) sql.NullString {
	if u == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*u), Valid: true}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
