package repository

import (
	"context"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/mkayfour/school-lending/lending/internal/errs"
	"github.com/mkayfour/school-lending/lending/internal/model"
	"github.com/mkayfour/school-lending/pkg/auth"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// CreateRequest holds a share lock on the equipment row until the insert commits.
func (r *repository) CreateRequest(ctx context.Context, userID, equipmentID int64, period model.Period) (model.BorrowRequest, error) {
	var req model.BorrowRequest
	err := pgx.BeginTxFunc(ctx, r.db, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		query, args, err := equipmentShareQuery(equipmentID).ToSql()
		if err != nil {
			return err
		}
		var locked int64
		if err = tx.QueryRow(ctx, query, args...).Scan(&locked); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errs.ErrReference
			}
			return err
		}
		req, err = collectOne[model.BorrowRequest](ctx, tx, insertRequestQuery(userID, equipmentID, period))
		return err
	})
	if err != nil {
		if !errors.Is(err, errs.ErrReference) {
			r.log.Error("CreateRequest", zap.Error(err), zap.Int64("equipment_id", equipmentID))
		}
		return model.BorrowRequest{}, err
	}
	return req, nil
}

func equipmentShareQuery(id int64) sq.SelectBuilder {
	return qb.Select("id").
		From(equipmentTableName).
		Where(sq.Eq{"id": id}).
		Suffix("for share")
}

func insertRequestQuery(userID, equipmentID int64, period model.Period) sq.InsertBuilder {
	return qb.Insert(requestsTableName).
		Columns("user_id", "equipment_id", "status", "borrow_date", "return_date").
		Values(userID, equipmentID, model.StatusRequested, period.From, period.To).
		Suffix("returning " + strings.Join(requestColumns, ", "))
}

func (r *repository) GetRequest(ctx context.Context, id int64) (model.BorrowRequest, error) {
	q := qb.Select(requestColumns...).
		From(requestsTableName).
		Where(sq.Eq{"id": id})
	return collectOne[model.BorrowRequest](ctx, r.db, q)
}

// requestRow is a borrow request with its left-joined display columns.
type requestRow struct {
	model.BorrowRequest
	EqName      *string    `db:"eq_name"`
	EqCategory  *string    `db:"eq_category"`
	EqCondition *string    `db:"eq_condition"`
	EqTotal     *int       `db:"eq_total"`
	EqAvailable *int       `db:"eq_available"`
	EqCreatedAt *time.Time `db:"eq_created_at"`
	EqUpdatedAt *time.Time `db:"eq_updated_at"`
	UserName    *string    `db:"user_name"`
	UserRole    *auth.Role `db:"user_role"`
}

func (row requestRow) view(withUser bool) model.BorrowRequestView {
	v := model.BorrowRequestView{BorrowRequest: row.BorrowRequest}
	if row.EqName != nil {
		v.Equipment = &model.Equipment{
			ID:                row.EquipmentID,
			Name:              *row.EqName,
			Category:          deref(row.EqCategory),
			Condition:         deref(row.EqCondition),
			TotalQuantity:     deref(row.EqTotal),
			AvailableQuantity: deref(row.EqAvailable),
			CreatedAt:         deref(row.EqCreatedAt),
			UpdatedAt:         deref(row.EqUpdatedAt),
		}
	}
	if withUser && row.UserName != nil {
		v.User = &model.Requester{Name: *row.UserName, Role: deref(row.UserRole)}
	}
	return v
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func viewQuery() sq.SelectBuilder {
	cols := make([]string, 0, len(requestColumns)+9)
	for _, c := range requestColumns {
		cols = append(cols, "br."+c)
	}
	cols = append(cols,
		"e.name as eq_name", "e.category as eq_category", "e.condition as eq_condition",
		"e.total_quantity as eq_total", "e.available_quantity as eq_available",
		"e.created_at as eq_created_at", "e.updated_at as eq_updated_at",
		"u.name as user_name", "u.role as user_role",
	)
	return qb.Select(cols...).
		From(requestsTableName + " br").
		LeftJoin(equipmentTableName + " e on e.id = br.equipment_id").
		LeftJoin(usersTableName + " u on u.id = br.user_id").
		OrderBy("br.id desc")
}

func (r *repository) listViews(ctx context.Context, b sq.SelectBuilder, withUser bool) ([]model.BorrowRequestView, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list, err := pgx.CollectRows(rows, pgx.RowToStructByName[requestRow])
	if err != nil {
		return nil, errors.Wrap(err, "pgx.CollectRows")
	}

	views := make([]model.BorrowRequestView, 0, len(list))
	for _, row := range list {
		views = append(views, row.view(withUser))
	}
	return views, nil
}

func (r *repository) ListRequestsByUser(ctx context.Context, userID int64) ([]model.BorrowRequestView, error) {
	return r.listViews(ctx, viewQuery().Where(sq.Eq{"br.user_id": userID}), false)
}

func (r *repository) ListRequests(ctx context.Context) ([]model.BorrowRequestView, error) {
	return r.listViews(ctx, viewQuery(), true)
}

// pgTx implements Tx on top of a pgx transaction.
type pgTx struct {
	q querier
}

func (t *pgTx) LockRequest(ctx context.Context, id int64) (model.BorrowRequest, error) {
	return collectOne[model.BorrowRequest](ctx, t.q, lockQuery(requestsTableName, requestColumns, id))
}

func (t *pgTx) LockEquipment(ctx context.Context, id int64) (model.Equipment, error) {
	return collectOne[model.Equipment](ctx, t.q, lockQuery(equipmentTableName, equipmentColumns, id))
}

func lockQuery(table string, columns []string, id int64) sq.SelectBuilder {
	return qb.Select(columns...).
		From(table).
		Where(sq.Eq{"id": id}).
		Suffix("for update")
}

// Both ends inclusive: windows sharing a single day collide.
const overlapQuery = `
select count(*) from borrow_requests
where equipment_id = @equipment_id
  and status = @status
  and id <> @exclude_id
  and borrow_date <= @return_date
  and return_date >= @borrow_date`

func overlapArgs(equipmentID, excludeID int64, period model.Period) pgx.NamedArgs {
	return pgx.NamedArgs{
		"equipment_id": equipmentID,
		"status":       model.StatusApproved,
		"exclude_id":   excludeID,
		"borrow_date":  period.From,
		"return_date":  period.To,
	}
}

func (t *pgTx) CountOverlapping(ctx context.Context, equipmentID, excludeID int64, period model.Period) (int, error) {
	rows, err := t.q.Query(ctx, overlapQuery, overlapArgs(equipmentID, excludeID, period))
	if err != nil {
		return 0, err
	}
	n, err := pgx.CollectOneRow(rows, pgx.RowTo[int])
	if err != nil {
		return 0, errors.Wrap(err, "count overlapping")
	}
	return n, nil
}

func (t *pgTx) SetStatus(ctx context.Context, id int64, status model.Status) (model.BorrowRequest, error) {
	q := qb.Update(requestsTableName).
		Set("status", status).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id}).
		Suffix("returning " + strings.Join(requestColumns, ", "))
	return collectOne[model.BorrowRequest](ctx, t.q, q)
}
