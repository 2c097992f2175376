package store

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/crack2116/fleettrack/internal/database"
	"github.com/crack2116/fleettrack/pkg/model"
	"github.com/crack2116/fleettrack/pkg/storeerr"
)

var _ Store = &SQL{}

// SQL keeps documents in a gorm table. Change notification is in-process only.
type SQL struct {
	dbm    *database.DatabaseManager
	subs   *registry
	logger *slog.Logger
}

// OpenSQLite opens sqlite database with a single connection, so ":memory:" works too.
func OpenSQLite(name string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(name), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(1)

	return db, nil
}

func NewSQL(db *gorm.DB) *SQL {
	s := &SQL{
		dbm:    database.New(db),
		logger: slog.Default().With("logger", "store.sql"),
	}

	s.subs = newRegistry(s.logger, s.Find)

	return s
}

func (s *SQL) Start(ctx context.Context) error {
	if err := s.dbm.Migrate(); err != nil {
		return err
	}

	s.logger.Info("database ready", slog.Int64("documents", s.dbm.WithContext(ctx).DocumentQuery().Count()))

	return nil
}

func (s *SQL) Stop() {
	if err := s.dbm.Close(); err != nil {
		s.logger.Error("error closing database", slog.Any("error", err))
	}
}

func (s *SQL) Subscribe(q Query, onSnapshot SnapshotFunc, onError ErrorFunc) func() {
	return s.subs.subscribe(q, onSnapshot, onError)
}

func (s *SQL) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	if err := ctxErr(ctx, "create"); err != nil {
		return "", err
	}

	if collection == "" {
		return "", countError("create", storeerr.Errorf(storeerr.InvalidArgument, "create", "empty collection"))
	}

	doc := &model.Document{Collection: collection, DocID: uuid.NewString(), Fields: (&Record{Fields: fields}).Clone().Fields}

	if err := s.dbm.WithContext(ctx).Create(doc); err != nil {
		return "", countError("create", sqlErr("create", err))
	}

	s.subs.notify(collection)

	return doc.DocID, nil
}

func (s *SQL) Put(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := ctxErr(ctx, "put"); err != nil {
		return err
	}

	if collection == "" || id == "" {
		return countError("put", storeerr.Errorf(storeerr.InvalidArgument, "put", "empty collection or id"))
	}

	dbm := s.dbm.WithContext(ctx)

	doc := dbm.DocumentQuery().Collection(collection).DocID(id).One()
	if doc == nil {
		doc = &model.Document{Collection: collection, DocID: id}
	}

	doc.Fields = (&Record{Fields: fields}).Clone().Fields

	if err := dbm.Save(doc); err != nil {
		return countError("put", sqlErr("put", err))
	}

	s.subs.notify(collection)

	return nil
}

func (s *SQL) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := ctxErr(ctx, "update"); err != nil {
		return err
	}

	if _, err := s.dbm.WithContext(ctx).MergeFields(collection, id, fields); err != nil {
		return countError("update", sqlErr("update", err))
	}

	s.subs.notify(collection)

	return nil
}

func (s *SQL) Delete(ctx context.Context, collection, id string) error {
	if err := ctxErr(ctx, "delete"); err != nil {
		return err
	}

	if err := s.dbm.WithContext(ctx).DeleteDocument(collection, id); err != nil {
		return countError("delete", sqlErr("delete", err))
	}

	s.subs.notify(collection)

	return nil
}

func (s *SQL) Get(ctx context.Context, collection, id string) (*Record, error) {
	if err := ctxErr(ctx, "get"); err != nil {
		return nil, err
	}

	doc := s.dbm.WithContext(ctx).DocumentQuery().Collection(collection).DocID(id).One()
	if doc == nil {
		return nil, storeerr.Errorf(storeerr.NotFound, "get", "%s/%s", collection, id)
	}

	return docToRecord(doc), nil
}

func (s *SQL) Find(ctx context.Context, q Query) ([]*Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	dq := s.dbm.WithContext(ctx).DocumentQuery().Collection(q.Collection).Limit(q.Limit)

	for k, v := range q.Equal {
		dq.Field(k, v)
	}

	if q.OrderBy != "" {
		dq.OrderField(q.OrderBy, q.Desc)
	}

	docs, err := dq.GetOrError()
	if err != nil {
		return nil, countError("find", sqlErr("find", err))
	}

	res := make([]*Record, len(docs))
	for i, d := range docs {
		res[i] = docToRecord(d)
	}

	return res, nil
}

func docToRecord(d *model.Document) *Record {
	fields := d.Fields
	if fields == nil {
		fields = make(map[string]any)
	}

	return &Record{ID: d.DocID, Fields: fields, UpdatedAt: d.UpdatedAt}
}

func sqlErr(op string, err error) error {
	switch {
	case errors.Is(err, database.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return storeerr.New(storeerr.NotFound, op, err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return storeerr.New(storeerr.AlreadyExists, op, err)
	case errors.Is(err, context.DeadlineExceeded):
		return storeerr.New(storeerr.DeadlineExceeded, op, err)
	case errors.Is(err, context.Canceled):
		return storeerr.New(storeerr.Aborted, op, err)
	}

	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "locked"), strings.Contains(msg, "busy"):
		return storeerr.New(storeerr.Unavailable, op, err)
	case strings.Contains(msg, "database is closed"), strings.Contains(msg, "no such table"):
		return storeerr.New(storeerr.FailedPrecondition, op, err)
	case strings.Contains(msg, "readonly"):
		return storeerr.New(storeerr.PermissionDenied, op, err)
	}

	return storeerr.New(storeerr.Unknown, op, err)
}
