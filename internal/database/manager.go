package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/crack2116/fleettrack/pkg/model"
)

var ErrNotFound = errors.New("document not found")

type DatabaseManager struct {
	db     *gorm.DB
	logger *slog.Logger
}

func New(db *gorm.DB) *DatabaseManager {
	m := &DatabaseManager{
		db:     db,
		logger: slog.With("logger", "dbm"),
	}

	return m
}

// WithContext returns a manager whose queries are bound to ctx.
func (mm *DatabaseManager) WithContext(ctx context.Context) *DatabaseManager {
	return &DatabaseManager{db: mm.db.WithContext(ctx), logger: mm.logger}
}

func (mm *DatabaseManager) Create(s any) error {
	if mm == nil || mm.db == nil {
		return nil
	}

	err := mm.db.Create(s).Error

	if err != nil {
		mm.logger.Error("error create object", slog.Any("error", err))
	}

	return err
}

func (mm *DatabaseManager) Save(s any) error {
	if mm == nil || mm.db == nil {
		return nil
	}

	err := mm.db.Save(s).Error

	if err != nil {
		mm.logger.Error("error saving object", slog.Any("error", err))
	}

	return err
}

func (mm *DatabaseManager) DocumentQuery() *DocumentQuery {
	return NewDocumentQuery(mm.db)
}

func (mm *DatabaseManager) Migrate() error {
	if mm == nil || mm.db == nil {
		return fmt.Errorf("no database")
	}

	return mm.db.AutoMigrate(&model.Document{})
}

// MergeFields sets the given fields of a document, keeping the rest.
func (mm *DatabaseManager) MergeFields(collection, docID string, fields map[string]any) (*model.Document, error) {
	var doc *model.Document

	err := mm.db.Transaction(func(tx *gorm.DB) error {
		doc = NewDocumentQuery(tx).Collection(collection).DocID(docID).One()

		if doc == nil {
			return ErrNotFound
		}

		if doc.Fields == nil {
			doc.Fields = make(map[string]any, len(fields))
		}

		for k, v := range fields {
			doc.Fields[k] = v
		}

		return tx.Save(doc).Error
	})

	if err != nil {
		return nil, err
	}

	return doc, nil
}

func (mm *DatabaseManager) DeleteDocument(collection, docID string) error {
	err := mm.DocumentQuery().Collection(collection).DocID(docID).Delete()

	if errors.Is(err, errUpdate) {
		return ErrNotFound
	}

	return err
}

func (mm *DatabaseManager) Close() error {
	if mm == nil || mm.db == nil {
		return nil
	}

	sqlDB, err := mm.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}
