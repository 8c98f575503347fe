// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	// PostgreSQL 驱动
	_ "github.com/lib/pq" // PostgreSQL 驱动

	"github.com/wfunc/territory/models"
)

const queryTimeout = 5 * time.Second

// PostgreSQL 数据库实现
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	// 设置连接池参数
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	// 初始化表结构
	if err := initTables(db); err != nil {
		return nil, fmt.Errorf("init tables: %w", err)
	}

	return &PostgreSQL{db: db}, nil
}

// initTables 初始化数据库表结构
func initTables(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS round_archive (
            id SERIAL PRIMARY KEY,
            round_number INTEGER NOT NULL,
            reason VARCHAR(32) NOT NULL,
            winner JSONB,
            standings JSONB NOT NULL,
            started_at TIMESTAMP NOT NULL,
            ended_at TIMESTAMP NOT NULL,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	// 创建索引以提高查询性能
	_, err = db.Exec(`
        CREATE INDEX IF NOT EXISTS idx_round_archive_ended_at ON round_archive(ended_at);
        CREATE INDEX IF NOT EXISTS idx_round_archive_reason ON round_archive(reason);
    `)

	return err
}

// SaveRoundRecord 保存回合记录
func (p *PostgreSQL) SaveRoundRecord(record *models.RoundRecord) error {
	standings, err := json.Marshal(record.Standings)
	if err != nil {
		return err
	}
	var winner []byte
	if record.Winner != nil {
		if winner, err = json.Marshal(record.Winner); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	query := `
        INSERT INTO round_archive (round_number, reason, winner, standings, started_at, ended_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id
    `

	var id int64
	err = p.db.QueryRowContext(ctx, query,
		record.RoundNumber,
		record.Reason,
		nullJSON(winner),
		standings,
		record.StartedAt.UTC(),
		record.EndedAt.UTC()).Scan(&id)
	if err != nil {
		return err
	}
	record.ID = uint(id)
	return nil
}

func nullJSON(data []byte) interface{} {
	if data == nil {
		return nil
	}
	return data
}

const selectRound = `SELECT id, round_number, reason, winner, standings, started_at, ended_at FROM round_archive`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRound(row rowScanner) (models.RoundRecord, error) {
	var (
		r         models.RoundRecord
		id        int64
		winner    []byte
		standings []byte
	)
	if err := row.Scan(&id, &r.RoundNumber, &r.Reason, &winner, &standings, &r.StartedAt, &r.EndedAt); err != nil {
		return r, err
	}
	r.ID = uint(id)
	if len(winner) > 0 {
		r.Winner = &models.Standing{}
		if err := json.Unmarshal(winner, r.Winner); err != nil {
			return r, err
		}
	}
	if err := json.Unmarshal(standings, &r.Standings); err != nil {
		return r, err
	}
	return r, nil
}

// LoadRoundRecord 加载回合记录
func (p *PostgreSQL) LoadRoundRecord(id uint) (*models.RoundRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	r, err := scanRound(p.db.QueryRowContext(ctx, selectRound+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &r, nil
}

func (p *PostgreSQL) RecentRounds(limit int) ([]models.RoundRecord, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	rows, err := p.db.QueryContext(ctx, selectRound+` ORDER BY ended_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.RoundRecord
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (p *PostgreSQL) Summary() (models.RoundSummary, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	var s models.RoundSummary
	err := p.db.QueryRowContext(ctx, `
        SELECT
            COUNT(*),
            COALESCE(SUM(CASE WHEN reason = $1 THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN reason = $2 THEN 1 ELSE 0 END), 0),
            COALESCE(MAX((winner->>'score')::int), 0)
        FROM round_archive
    `, models.ReasonVictory, models.ReasonTime).Scan(&s.TotalRounds, &s.VictoryRounds, &s.TimeRounds, &s.BestScore)
	return s, err
}

// Close 关闭数据库连接
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
