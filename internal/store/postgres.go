package store

import (
	"context"

	"main/pkg/conn"
	"main/pkg/exception"

	"github.com/yanun0323/errors"
	"gorm.io/gorm/clause"
)

// PostgresStore persists bars in PostgreSQL through pkg/conn.
type PostgresStore struct {
	client *conn.Client
}

// NewPostgresStore connects and migrates the bars table.
func NewPostgresStore(opt conn.Option) (*PostgresStore, error) {
	client, err := conn.New(opt)
	if err != nil {
		return nil, errors.Wrapf(exception.ErrStoreUnavailable, "connect: %v", err)
	}
	if err := client.DB().AutoMigrate(&Bar{}); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(exception.ErrStoreUnavailable, "migrate bars: %v", err)
	}
	return &PostgresStore{client: client}, nil
}

// RecentCloses returns up to limit closes for an instrument, oldest first.
func (s *PostgresStore) RecentCloses(ctx context.Context, symbol string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	var rows []Bar
	err := s.client.DB().WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("open_time DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrapf(exception.ErrStoreUnavailable, "query bars for %s: %v", symbol, err)
	}

	closes := make([]string, len(rows))
	for i, row := range rows {
		closes[len(rows)-1-i] = row.Close
	}
	return closes, nil
}

// Upsert stores bars, replacing existing (symbol, openTime) rows so
// backfills can be re-run safely.
func (s *PostgresStore) Upsert(ctx context.Context, bars []Bar) error {
	if len(bars) == 0 {
		return nil
	}
	err := s.client.DB().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "symbol"}, {Name: "open_time"}},
			DoUpdates: clause.AssignmentColumns([]string{"open", "high", "low", "close", "volume"}),
		}).
		Create(&bars).Error
	if err != nil {
		return errors.Wrapf(exception.ErrStoreUnavailable, "upsert %d bars: %v", len(bars), err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.client.Close()
}
