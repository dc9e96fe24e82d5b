package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"vce/pkg/model"
)

// positionRow is the gorm mapping of a sample.
type positionRow struct {
	Host string  `gorm:"primaryKey;size:128"`
	TS   int64   `gorm:"primaryKey;autoIncrement:false;column:ts"`
	Lat  float64 `gorm:"not null"`
	Lon  float64 `gorm:"not null"`
	Alt  float64 `gorm:"not null"`
}

func (positionRow) TableName() string { return "positions" }

func (r positionRow) sample() model.PositionSample {
	return model.PositionSample{Host: r.Host, Time: time.Unix(0, r.TS).UTC(), Lat: r.Lat, Lon: r.Lon, Alt: r.Alt}
}

// MySQLStore keeps samples in a shared MySQL database so several servers
// can read one propagation run.
type MySQLStore struct {
	db *gorm.DB
}

// OpenMySQL connects and migrates. An empty dsn is assembled from
// MYSQL_HOST, MYSQL_PORT, MYSQL_USER, MYSQL_PASS and MYSQL_DB.
func OpenMySQL(dsn string) (*MySQLStore, error) {
	host := getenv("MYSQL_HOST", "127.0.0.1")
	port := getenv("MYSQL_PORT", "3306")
	user := getenv("MYSQL_USER", "root")
	pass := getenv("MYSQL_PASS", "")
	dbname := getenv("MYSQL_DB", "vce")
	if dsn == "" {
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC", user, pass, host, port, dbname)
	}

	cfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}
	db, err := gorm.Open(mysql.Open(dsn), cfg)
	if err != nil {
		if !strings.Contains(err.Error(), "Unknown database") {
			return nil, err
		}
		if cerr := createDatabase(user, pass, host, port, dbname); cerr != nil {
			return nil, fmt.Errorf("create database failed: %w", cerr)
		}
		if db, err = gorm.Open(mysql.Open(dsn), cfg); err != nil {
			return nil, err
		}
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(20)
	if err := db.AutoMigrate(&positionRow{}); err != nil {
		return nil, err
	}
	log.Infof("position store: mysql %s:%s/%s", host, port, dbname)
	return &MySQLStore{db: db}, nil
}

func (s *MySQLStore) WriteSamples(ctx context.Context, samples []model.PositionSample) error {
	if len(samples) == 0 {
		return nil
	}
	rows := make([]positionRow, 0, len(samples))
	for _, p := range samples {
		rows = append(rows, positionRow{Host: p.Host, TS: p.Time.UnixNano(), Lat: p.Lat, Lon: p.Lon, Alt: p.Alt})
	}
	return s.db.WithContext(ctx).CreateInBatches(rows, 500).Error
}

func (s *MySQLStore) LatestBefore(ctx context.Context, t time.Time) (map[string]model.PositionSample, error) {
	var rows []positionRow
	if err := s.db.WithContext(ctx).Raw(latestQuery, t.UnixNano()).Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]model.PositionSample, len(rows))
	for _, r := range rows {
		out[r.Host] = r.sample()
	}
	return out, nil
}

func (s *MySQLStore) SeriesFor(ctx context.Context, host string) ([]model.PositionSample, error) {
	var rows []positionRow
	if err := s.db.WithContext(ctx).Where("host = ?", host).Order("ts").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]model.PositionSample, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.sample())
	}
	return out, nil
}

func (s *MySQLStore) HasSamples(ctx context.Context) (bool, error) {
	var rows []positionRow
	if err := s.db.WithContext(ctx).Limit(1).Find(&rows).Error; err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

func (s *MySQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func createDatabase(user, pass, host, port, dbname string) error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/", user, pass, host, port)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	_, err = db.Exec(fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s` DEFAULT CHARACTER SET utf8mb4", dbname))
	return err
}
