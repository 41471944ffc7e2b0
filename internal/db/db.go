package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/liftcare/field-bot/internal/models"
)

const dateLayout = "2006-01-02"

type DB struct {
	conn *sql.DB
	loc  *time.Location
}

// New opens the SQLite database and applies the schema. Timestamps read back
// are converted to loc.
func New(dbPath string, loc *time.Location) (*DB, error) {
	conn, err := sql.Open("sqlite3", fmt.Sprintf("%s?_busy_timeout=5000&_foreign_keys=on", dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer; also keeps ":memory:" databases on a single connection.
	conn.SetMaxOpenConns(1)

	if loc == nil {
		loc = time.UTC
	}
	db := &DB{conn: conn, loc: loc}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS requests (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT NOT NULL,
		district TEXT NOT NULL,
		address TEXT NOT NULL,
		entrance TEXT NOT NULL,
		issue TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at DATETIME NOT NULL,
		completed_at DATETIME,
		processed_by TEXT NOT NULL DEFAULT '',
		user_id INTEGER NOT NULL,
		staff_chat_id INTEGER NOT NULL DEFAULT 0,
		staff_msg_id INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS maintenance_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		mechanic_name TEXT NOT NULL,
		district TEXT NOT NULL,
		address TEXT NOT NULL,
		entrance TEXT NOT NULL,
		date TEXT NOT NULL,
		photo_file_id TEXT NOT NULL,
		verified INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS maintenance_schedule (
		address TEXT NOT NULL,
		month TEXT NOT NULL,
		day INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chat_rights (
		section TEXT PRIMARY KEY,
		enabled INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS staff_members (
		section TEXT NOT NULL,
		user_id INTEGER NOT NULL,
		is_representative INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (section, user_id)
	);

	CREATE TABLE IF NOT EXISTS job_runs (
		job TEXT PRIMARY KEY,
		last_date TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_requests_status ON requests(status);
	CREATE INDEX IF NOT EXISTS idx_schedule_address ON maintenance_schedule(address);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// SaveAllRequests replaces the requests table with the given snapshot.
func (db *DB) SaveAllRequests(requests []models.Request) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM requests`); err != nil {
		return err
	}

	stmt, err := tx.Prepare(
		`INSERT INTO requests (id, name, phone, district, address, entrance, issue, status,
		                       created_at, completed_at, processed_by, user_id, staff_chat_id, staff_msg_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range requests {
		var completedAt sql.NullTime
		if r.CompletedAt != nil {
			completedAt = sql.NullTime{Time: *r.CompletedAt, Valid: true}
		}
		_, err := stmt.Exec(
			r.ID, r.Name, r.Phone, r.District, r.Address, r.Entrance, r.Issue, r.Status,
			r.CreatedAt, completedAt, r.ProcessedBy, r.UserID, r.StaffChatID, r.StaffMsgID,
		)
		if err != nil {
			return fmt.Errorf("insert request %d: %w", r.ID, err)
		}
	}

	return tx.Commit()
}

// LoadRequests returns every request in id order.
func (db *DB) LoadRequests() ([]models.Request, error) {
	rows, err := db.conn.Query(
		`SELECT id, name, phone, district, address, entrance, issue, status,
		        created_at, completed_at, processed_by, user_id, staff_chat_id, staff_msg_id
		 FROM requests ORDER BY id ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []models.Request
	for rows.Next() {
		var req models.Request
		var completedAt sql.NullTime
		err := rows.Scan(
			&req.ID, &req.Name, &req.Phone, &req.District, &req.Address, &req.Entrance, &req.Issue,
			&req.Status, &req.CreatedAt, &completedAt, &req.ProcessedBy, &req.UserID,
			&req.StaffChatID, &req.StaffMsgID,
		)
		if err != nil {
			return nil, err
		}
		req.CreatedAt = req.CreatedAt.In(db.loc)
		if completedAt.Valid {
			t := completedAt.Time.In(db.loc)
			req.CompletedAt = &t
		}
		requests = append(requests, req)
	}

	return requests, rows.Err()
}

// AppendLog inserts a maintenance log and sets its ID.
func (db *DB) AppendLog(log *models.MaintenanceLog) error {
	result, err := db.conn.Exec(
		`INSERT INTO maintenance_logs (mechanic_name, district, address, entrance, date, photo_file_id, verified, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		log.MechanicName, log.District, log.Address, log.Entrance, log.Date.Format(dateLayout),
		log.PhotoFileID, log.Verified, log.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	log.ID = id
	return nil
}

// LoadLogs returns every maintenance log, oldest first.
func (db *DB) LoadLogs() ([]models.MaintenanceLog, error) {
	rows, err := db.conn.Query(
		`SELECT id, mechanic_name, district, address, entrance, date, photo_file_id, verified, created_at
		 FROM maintenance_logs ORDER BY id ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.MaintenanceLog
	for rows.Next() {
		var log models.MaintenanceLog
		var date string
		err := rows.Scan(
			&log.ID, &log.MechanicName, &log.District, &log.Address, &log.Entrance,
			&date, &log.PhotoFileID, &log.Verified, &log.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		if log.Date, err = time.ParseInLocation(dateLayout, date, db.loc); err != nil {
			return nil, fmt.Errorf("maintenance log %d: %w", log.ID, err)
		}
		log.CreatedAt = log.CreatedAt.In(db.loc)
		logs = append(logs, log)
	}

	return logs, rows.Err()
}

// ReplaceSchedule swaps the whole maintenance schedule.
func (db *DB) ReplaceSchedule(rows []models.ScheduleRow) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM maintenance_schedule`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO maintenance_schedule (address, month, day) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.Exec(row.Address, row.Month, row.Day); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// LoadSchedule returns the stored schedule rows.
func (db *DB) LoadSchedule() ([]models.ScheduleRow, error) {
	rows, err := db.conn.Query(`SELECT address, month, day FROM maintenance_schedule ORDER BY address, month, day`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ScheduleRow
	for rows.Next() {
		var row models.ScheduleRow
		if err := rows.Scan(&row.Address, &row.Month, &row.Day); err != nil {
			return nil, err
		}
		out = append(out, row)
	}

	return out, rows.Err()
}

// ChatRights returns the per-section button toggle. Absent sections are enabled.
func (db *DB) ChatRights() (map[string]bool, error) {
	rows, err := db.conn.Query(`SELECT section, enabled FROM chat_rights`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rights := make(map[string]bool)
	for rows.Next() {
		var section string
		var enabled bool
		if err := rows.Scan(&section, &enabled); err != nil {
			return nil, err
		}
		rights[section] = enabled
	}

	return rights, rows.Err()
}

func (db *DB) SetChatRight(section string, enabled bool) error {
	_, err := db.conn.Exec(
		`INSERT INTO chat_rights (section, enabled) VALUES (?, ?)
		 ON CONFLICT(section) DO UPDATE SET enabled = excluded.enabled`,
		section, enabled,
	)
	return err
}

// StaffMembers returns every authorized staff member.
func (db *DB) StaffMembers() ([]models.StaffMember, error) {
	rows, err := db.conn.Query(`SELECT section, user_id, is_representative FROM staff_members ORDER BY section, user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []models.StaffMember
	for rows.Next() {
		var m models.StaffMember
		if err := rows.Scan(&m.Section, &m.UserID, &m.Representative); err != nil {
			return nil, err
		}
		members = append(members, m)
	}

	return members, rows.Err()
}

func (db *DB) AddStaffMember(section string, userID int64) error {
	_, err := db.conn.Exec(
		`INSERT OR IGNORE INTO staff_members (section, user_id) VALUES (?, ?)`,
		section, userID,
	)
	return err
}

func (db *DB) RemoveStaffMember(section string, userID int64) error {
	_, err := db.conn.Exec(`DELETE FROM staff_members WHERE section = ? AND user_id = ?`, section, userID)
	return err
}

// SetRepresentative makes userID the only representative of section; 0 clears it.
func (db *DB) SetRepresentative(section string, userID int64) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE staff_members SET is_representative = 0 WHERE section = ?`, section); err != nil {
		return err
	}
	if userID != 0 {
		result, err := tx.Exec(
			`UPDATE staff_members SET is_representative = 1 WHERE section = ? AND user_id = ?`,
			section, userID,
		)
		if err != nil {
			return err
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("user %d is not a member of section %s", userID, section)
		}
	}

	return tx.Commit()
}

// LastRun returns the last date a job fired, or "" if never.
func (db *DB) LastRun(job string) (string, error) {
	var date string
	err := db.conn.QueryRow(`SELECT last_date FROM job_runs WHERE job = ?`, job).Scan(&date)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return date, err
}

func (db *DB) SetLastRun(job, date string) error {
	_, err := db.conn.Exec(
		`INSERT INTO job_runs (job, last_date) VALUES (?, ?)
		 ON CONFLICT(job) DO UPDATE SET last_date = excluded.last_date`,
		job, date,
	)
	return err
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}
