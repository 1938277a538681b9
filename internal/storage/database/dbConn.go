// Package database реализует хранилище срезов статистики в PostgreSQL.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Fuonder/zipfilter.git/internal/compress"
	"github.com/Fuonder/zipfilter.git/internal/logger"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

var timeouts = []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}
var maxRetries = 3

func isConnectionError(err error) bool {
	var pgErr *pgconn.PgError

	if errors.As(err, &pgErr) {
		state := pgErr.SQLState()
		if strings.HasPrefix(state, "08") {
			return true
		}
	}
	return false
}

// PSQLStorage пишет срезы статистики фильтра в таблицу PostgreSQL.
type PSQLStorage struct {
	db *sql.DB
}

func NewPSQLStorage(ctx context.Context, dsn string) (*PSQLStorage, error) {
	var err error
	st := &PSQLStorage{}

	logger.Log.Info("Connecting to database")
	st.db, err = sql.Open("pgx", dsn)
	if err != nil {
		return &PSQLStorage{}, fmt.Errorf("can not connect with database: %v", err)
	}
	logger.Log.Info("Database initial connection successful")
	err = st.TryConnectContext(ctx)
	if err != nil {
		return &PSQLStorage{}, fmt.Errorf("access to database: %v", err)
	}
	err = st.createTablesContext(ctx)
	if err != nil {
		return &PSQLStorage{}, fmt.Errorf("database schema: %v", err)
	}
	return st, nil
}

func (st *PSQLStorage) TryConnectContext(ctx context.Context) error {
	var err error
	logger.Log.Info("Checking db accessibility")
	if st.db == nil {
		logger.Log.Warn("no active connection with db")
		return fmt.Errorf("no active connection with db")
	}
	for i := 0; i < maxRetries; i++ {
		err = st.db.PingContext(ctx)
		if err == nil {
			logger.Log.Info("Access - OK")
			return nil
		} else if isConnectionError(err) {
			if i < len(timeouts) {
				logger.Log.Info("can not access database", zap.Error(err))
				logger.Log.Info("retrying after timeout",
					zap.Duration("timeout", timeouts[i]),
					zap.Int("retry-count", i+1))
				time.Sleep(timeouts[i])
			}
		} else {
			return fmt.Errorf("can not access database: %v", err)
		}
	}
	return fmt.Errorf("can not access database: %v", err)
}

func (st *PSQLStorage) createTablesContext(ctx context.Context) error {
	logger.Log.Info("Creating tables in database")
	query := `
			CREATE TABLE IF NOT EXISTS compression_stats (
			id BIGSERIAL PRIMARY KEY,
			taken_at TIMESTAMPTZ NOT NULL,
			requests_decompressed BIGINT NOT NULL,
			requests_not_decompressed BIGINT NOT NULL,
			responses_compressed BIGINT NOT NULL,
			responses_not_compressed BIGINT NOT NULL,
			response_bytes_in BIGINT NOT NULL,
			response_bytes_out BIGINT NOT NULL,
			compression_ratio DOUBLE PRECISION NOT NULL,
			handling_time_ns BIGINT NOT NULL);
		`

	_, err := st.db.ExecContext(ctx, query)
	if err != nil {
		logger.Log.Error("Failed to create stats table", zap.Error(err))
		return err
	}
	logger.Log.Info("Tables created successfully")
	return nil
}

// SaveSnapshot записывает срез отдельной строкой таблицы.
func (st *PSQLStorage) SaveSnapshot(ctx context.Context, snap compress.Snapshot) error {
	query := `
			INSERT INTO compression_stats
			(taken_at, requests_decompressed, requests_not_decompressed,
			responses_compressed, responses_not_compressed,
			response_bytes_in, response_bytes_out,
			compression_ratio, handling_time_ns)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
			`
	_, err := st.db.ExecContext(ctx, query,
		snap.TakenAt,
		snap.RequestsDecompressed,
		snap.RequestsNotDecompressed,
		snap.ResponsesCompressed,
		snap.ResponsesNotCompressed,
		snap.ResponseBytesIn,
		snap.ResponseBytesOut,
		snap.CompressionRatio,
		int64(snap.HandlingTime),
	)
	if err != nil {
		return fmt.Errorf("can not save snapshot: %v", err)
	}
	return nil
}

func (st *PSQLStorage) CheckConnection() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return st.TryConnectContext(ctx)
}

func (st *PSQLStorage) Close() error {
	logger.Log.Info("Closing database connection gracefully")
	if st.db != nil {
		return st.db.Close()
	}
	return nil
}
