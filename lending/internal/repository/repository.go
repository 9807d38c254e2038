package repository

import (
	"context"
	"iter"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mkayfour/school-lending/lending/internal/errs"
	"github.com/mkayfour/school-lending/lending/internal/model"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Repository interface {
	CreateEquipment(ctx context.Context, req model.CreateEquipmentRequest) (model.Equipment, error)
	GetEquipment(ctx context.Context, id int64) (model.Equipment, error)
	UpdateEquipment(ctx context.Context, id int64, req model.UpdateEquipmentRequest) (model.Equipment, error)
	// DeleteEquipment removes the item. With onlyIdle set it fails with
	// errs.ErrConflict while REQUESTED or APPROVED requests reference it.
	DeleteEquipment(ctx context.Context, id int64, onlyIdle bool) error
	SearchEquipment(ctx context.Context, q model.EquipmentQuery) iter.Seq2[model.Equipment, error]

	// CreateRequest fails with errs.ErrReference when equipmentID does not exist.
	CreateRequest(ctx context.Context, userID, equipmentID int64, period model.Period) (model.BorrowRequest, error)
	GetRequest(ctx context.Context, id int64) (model.BorrowRequest, error)
	ListRequestsByUser(ctx context.Context, userID int64) ([]model.BorrowRequestView, error)
	ListRequests(ctx context.Context) ([]model.BorrowRequestView, error)

	CreateUser(ctx context.Context, user model.User) (model.User, error)
	GetUserByEmail(ctx context.Context, email string) (model.User, error)

	// Atomic runs fn in a single transaction; any error rolls it back.
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the view of the store inside Atomic. Reads of requests and
// equipment lock the row until the transaction ends.
type Tx interface {
	LockRequest(ctx context.Context, id int64) (model.BorrowRequest, error)
	LockEquipment(ctx context.Context, id int64) (model.Equipment, error)
	// CountOverlapping counts APPROVED requests on equipmentID, other than
	// excludeID, whose window intersects period (inclusive).
	CountOverlapping(ctx context.Context, equipmentID, excludeID int64, period model.Period) (int, error)
	SetStatus(ctx context.Context, id int64, status model.Status) (model.BorrowRequest, error)
}

const (
	equipmentTableName = `equipment`
	requestsTableName  = `borrow_requests`
	usersTableName     = `users`
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var (
	equipmentColumns = []string{"id", "name", "category", "condition", "total_quantity", "available_quantity", "created_at", "updated_at"}
	requestColumns   = []string{"id", "user_id", "equipment_id", "status", "borrow_date", "return_date", "created_at", "updated_at"}
	userColumns      = []string{"id", "name", "email", "password_hash", "role", "created_at"}
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type repository struct {
	db  *pgxpool.Pool
	log *zap.Logger
}

func NewRepository(db *pgxpool.Pool, log *zap.Logger) (*repository, error) {
	return &repository{
		db:  db,
		log: log.Named("repo"),
	}, nil
}

func (r *repository) Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return pgx.BeginTxFunc(ctx, r.db, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(ctx, &pgTx{q: tx})
	})
}

func collectOne[T any](ctx context.Context, q querier, b sq.Sqlizer) (T, error) {
	var zero T
	query, args, err := b.ToSql()
	if err != nil {
		return zero, err
	}
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return zero, classify(err)
	}
	v, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[T])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return zero, errs.ErrNotFound
		}
		return zero, classify(err)
	}
	return v, nil
}

// classify maps constraint violations onto the domain taxonomy.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return errors.Wrap(errs.ErrConflict, pgErr.ConstraintName)
	case pgerrcode.CheckViolation, pgerrcode.NotNullViolation:
		return errors.Wrap(errs.ErrValidation, pgErr.ConstraintName)
	case pgerrcode.ForeignKeyViolation:
		return errors.Wrap(errs.ErrReference, pgErr.ConstraintName)
	}
	return err
}
