package database

import (
	"fmt"
	"regexp"

	"gorm.io/gorm"

	"github.com/crack2116/fleettrack/pkg/model"
)

var fieldName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func ValidField(name string) bool {
	return fieldName.MatchString(name)
}

type fieldCond struct {
	name  string
	value any
}

type DocumentQuery struct {
	Query[model.Document]
	collection string
	docID      string
	fields     []fieldCond
}

func NewDocumentQuery(db *gorm.DB) *DocumentQuery {
	return &DocumentQuery{
		Query: Query[model.Document]{
			db:    db,
			limit: 0,
			order: "id",
		},
	}
}

func (q *DocumentQuery) Limit(n int) *DocumentQuery {
	q.limit = n
	return q
}

func (q *DocumentQuery) Collection(name string) *DocumentQuery {
	q.collection = name
	return q
}

func (q *DocumentQuery) DocID(id string) *DocumentQuery {
	q.docID = id
	return q
}

// Field adds equality condition on a json field. Invalid field names are ignored.
func (q *DocumentQuery) Field(name string, value any) *DocumentQuery {
	if ValidField(name) {
		q.fields = append(q.fields, fieldCond{name: name, value: value})
	}

	return q
}

// OrderField orders by json field, ties by insertion order.
func (q *DocumentQuery) OrderField(name string, desc bool) *DocumentQuery {
	if !ValidField(name) {
		return q
	}

	dir := "ASC"
	if desc {
		dir = "DESC"
	}

	q.order = fmt.Sprintf("json_extract(fields, '$.%s') %s, id", name, dir)

	return q
}

func (q *DocumentQuery) where() *gorm.DB {
	tx := q.db

	if q.collection != "" {
		tx = tx.Where("collection = ?", q.collection)
	}

	if q.docID != "" {
		tx = tx.Where("doc_id = ?", q.docID)
	}

	for _, f := range q.fields {
		tx = tx.Where(fmt.Sprintf("json_extract(fields, '$.%s') = ?", f.name), f.value)
	}

	return tx
}

func (q *DocumentQuery) GetOrError() ([]*model.Document, error) {
	return q.getOrError(q.where().Model(&model.Document{}))
}

func (q *DocumentQuery) One() *model.Document {
	return q.one(q.where().Model(&model.Document{}))
}

func (q *DocumentQuery) Count() int64 {
	return q.count(q.where().Model(&model.Document{}))
}

func (q *DocumentQuery) Delete() error {
	tx := q.where().Delete(&model.Document{})

	if tx.Error != nil {
		return tx.Error
	}

	if tx.RowsAffected == 0 {
		return errUpdate
	}

	return nil
}
