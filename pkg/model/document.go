package model

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Document is a schemaless record of a named collection.
type Document struct {
	ID         uint           `gorm:"primaryKey"`
	Collection string         `gorm:"uniqueIndex:idx_collection_doc;size:255;not null"`
	DocID      string         `gorm:"uniqueIndex:idx_collection_doc;size:255;not null"`
	Fields     map[string]any `gorm:"serializer:json;type:text"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (d *Document) String() string {
	if d == nil {
		return "nil"
	}

	return fmt.Sprintf("%s/%s", d.Collection, d.DocID)
}

func (d *Document) BeforeSave(_ *gorm.DB) error {
	if d == nil {
		return nil
	}

	if d.Collection == "" || d.DocID == "" {
		return fmt.Errorf("empty collection or doc id")
	}

	if d.Fields == nil {
		d.Fields = make(map[string]any)
	}

	return nil
}
