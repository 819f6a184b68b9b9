// Copyright (C) 2026 Seamark Labs (ops@seamark.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package docstore persists loaded documents in a local sqlite database.
//
// The database is the staging area between the spreadsheet loader and the
// ingest service: `seamark load` upserts rows here, and the ingest
// service's source query reads them out. Rows are keyed by document ID, so
// re-loading the same sheet is idempotent.
package docstore

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Document is one searchable record staged for ingest.
//
// Content is the concatenation of title and body and is what the ingest
// pipeline runs through the expansion model.
type Document struct {
	ID        string    `gorm:"primaryKey;size:64"`
	Title     string    `gorm:"size:500"`
	Body      string    `gorm:"type:text"`
	Content   string    `gorm:"type:text"`
	UpdatedAt time.Time `gorm:"index"`
}

// Store wraps the sqlite handle.
type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the database at path and migrates the schema.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open document store %s: %w", path, err)
	}
	if err := db.AutoMigrate(&Document{}); err != nil {
		return nil, fmt.Errorf("failed to migrate document store: %w", err)
	}
	return &Store{db: db}, nil
}

// Upsert writes docs row by row, inserting new IDs and replacing
// existing ones. Per-row failures are logged and counted, never fatal;
// the return values are the ok and failed counts.
func (s *Store) Upsert(docs []Document) (ok int, failed int) {
	for _, doc := range docs {
		if doc.ID == "" {
			slog.Warn("Skipping document with empty id", "title", doc.Title)
			failed++
			continue
		}
		var existing Document
		err := s.db.Where("id = ?", doc.ID).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			err = s.db.Create(&doc).Error
		case err == nil:
			err = s.db.Save(&doc).Error
		}
		if err != nil {
			slog.Warn("Failed to upsert document", "id", doc.ID, "error", err)
			failed++
			continue
		}
		ok++
	}
	return ok, failed
}

// Count returns the number of staged documents.
func (s *Store) Count() (int64, error) {
	var n int64
	if err := s.db.Model(&Document{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
