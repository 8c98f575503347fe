// persistence/gorm_postgresql.go
package persistence

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wfunc/territory/models"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	// 配置GORM日志
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags), // io writer
		logger.Config{
			SlowThreshold: time.Second,   // 慢SQL阈值
			LogLevel:      logger.Silent, // 日志级别
			Colorful:      false,         // 禁用彩色打印
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm postgres: %w", err)
	}

	// 获取通用数据库对象 sql.DB
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return NewGormArchive(db)
}

// NewGormArchive wraps an open gorm handle and migrates the archive tables.
func NewGormArchive(db *gorm.DB) (*GormPostgreSQL, error) {
	if err := autoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate archive: %w", err)
	}
	return &GormPostgreSQL{db: db}, nil
}

// autoMigrate 自动迁移表结构
func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.GormRoundRecord{},
		&models.GormStanding{},
	)
}

// SaveRoundRecord writes the round and its standings in one transaction.
func (p *GormPostgreSQL) SaveRoundRecord(record *models.RoundRecord) error {
	return p.Transaction(func(tx *gorm.DB) error {
		row := record.ToGorm()
		if err := tx.Omit("Standings").Create(&row).Error; err != nil {
			return err
		}
		for i := range row.Standings {
			row.Standings[i].RoundRecordID = row.ID
		}
		if len(row.Standings) > 0 {
			if err := tx.Create(&row.Standings).Error; err != nil {
				return err
			}
		}
		record.ID = row.ID
		return nil
	})
}

func (p *GormPostgreSQL) LoadRoundRecord(id uint) (*models.RoundRecord, error) {
	var row models.GormRoundRecord
	err := p.db.Preload("Standings", func(db *gorm.DB) *gorm.DB {
		return db.Order("rank ASC")
	}).First(&row, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	record := models.FromGorm(row)
	return &record, nil
}

// RecentRounds 最近的回合记录, newest first
func (p *GormPostgreSQL) RecentRounds(limit int) ([]models.RoundRecord, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	var rows []models.GormRoundRecord
	err := p.db.Preload("Standings", func(db *gorm.DB) *gorm.DB {
		return db.Order("rank ASC")
	}).Order("ended_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, err
	}

	result := make([]models.RoundRecord, 0, len(rows))
	for _, row := range rows {
		result = append(result, models.FromGorm(row))
	}
	return result, nil
}

// 添加高级查询方法
func (p *GormPostgreSQL) Summary() (models.RoundSummary, error) {
	var summary models.RoundSummary
	err := p.db.Raw(
		`
        SELECT
            COUNT(*) AS total_rounds,
            COALESCE(SUM(CASE WHEN reason = ? THEN 1 ELSE 0 END), 0) AS victory_rounds,
            COALESCE(SUM(CASE WHEN reason = ? THEN 1 ELSE 0 END), 0) AS time_rounds,
            COALESCE(MAX(winner_score), 0) AS best_score
        FROM round_records
        WHERE deleted_at IS NULL`,
		models.ReasonVictory, models.ReasonTime,
	).Scan(&summary).Error
	return summary, err
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// 添加事务支持
func (p *GormPostgreSQL) Transaction(fn func(tx *gorm.DB) error) error {
	return p.db.Transaction(fn)
}
