package repository

import (
	"context"
	"iter"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/mkayfour/school-lending/lending/internal/errs"
	"github.com/mkayfour/school-lending/lending/internal/model"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func (r *repository) CreateEquipment(ctx context.Context, req model.CreateEquipmentRequest) (model.Equipment, error) {
	q := qb.Insert(equipmentTableName).
		Columns("name", "category", "condition", "total_quantity", "available_quantity").
		Values(req.Name, req.Category, req.Condition, req.TotalQuantity, req.TotalQuantity).
		Suffix("returning " + strings.Join(equipmentColumns, ", "))

	item, err := collectOne[model.Equipment](ctx, r.db, q)
	if err != nil {
		r.log.Error("CreateEquipment", zap.Error(err))
		return model.Equipment{}, err
	}
	return item, nil
}

func (r *repository) GetEquipment(ctx context.Context, id int64) (model.Equipment, error) {
	q := qb.Select(equipmentColumns...).
		From(equipmentTableName).
		Where(sq.Eq{"id": id})
	return collectOne[model.Equipment](ctx, r.db, q)
}

func (r *repository) UpdateEquipment(ctx context.Context, id int64, req model.UpdateEquipmentRequest) (model.Equipment, error) {
	set := map[string]any{"updated_at": time.Now().UTC()}
	if req.Name != nil {
		set["name"] = *req.Name
	}
	if req.Category != nil {
		set["category"] = *req.Category
	}
	if req.Condition != nil {
		set["condition"] = *req.Condition
	}
	if req.TotalQuantity != nil {
		// editing capacity resets the available counter
		set["total_quantity"] = *req.TotalQuantity
		set["available_quantity"] = *req.TotalQuantity
	}
	q := qb.Update(equipmentTableName).
		SetMap(set).
		Where(sq.Eq{"id": id}).
		Suffix("returning " + strings.Join(equipmentColumns, ", "))
	return collectOne[model.Equipment](ctx, r.db, q)
}

func (r *repository) DeleteEquipment(ctx context.Context, id int64, onlyIdle bool) error {
	return pgx.BeginTxFunc(ctx, r.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if onlyIdle {
			lock := qb.Select("id").From(equipmentTableName).Where(sq.Eq{"id": id}).Suffix("for update")
			query, args, err := lock.ToSql()
			if err != nil {
				return err
			}
			var locked int64
			if err = tx.QueryRow(ctx, query, args...).Scan(&locked); err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return errs.ErrNotFound
				}
				return err
			}

			query, args, err = qb.Select("count(*)").
				From(requestsTableName).
				Where(sq.Eq{"equipment_id": id, "status": []model.Status{model.StatusRequested, model.StatusApproved}}).
				ToSql()
			if err != nil {
				return err
			}
			var active int
			if err = tx.QueryRow(ctx, query, args...).Scan(&active); err != nil {
				return err
			}
			if active > 0 {
				return errs.ErrConflict
			}
		}

		query, args, err := qb.Delete(equipmentTableName).Where(sq.Eq{"id": id}).ToSql()
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return classify(err)
		}
		if tag.RowsAffected() == 0 {
			return errs.ErrNotFound
		}
		return nil
	})
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func searchQuery(q model.EquipmentQuery) sq.SelectBuilder {
	b := qb.Select(equipmentColumns...).From(equipmentTableName)
	if q.Query != "" {
		b = b.Where(sq.ILike{"name": "%" + likeEscaper.Replace(q.Query) + "%"})
	}
	if q.Category != "" {
		b = b.Where(sq.Eq{"category": q.Category})
	}
	if q.OnlyAvailable {
		b = b.Where(sq.Gt{"available_quantity": 0})
	}
	return b.OrderBy("lower(name) asc", "id asc")
}

// SearchEquipment streams matching items. Every range over the returned
// sequence runs the query again.
func (r *repository) SearchEquipment(ctx context.Context, q model.EquipmentQuery) iter.Seq2[model.Equipment, error] {
	return func(yield func(model.Equipment, error) bool) {
		query, args, err := searchQuery(q).ToSql()
		if err != nil {
			yield(model.Equipment{}, err)
			return
		}
		r.log.Debug("SearchEquipment", zap.String("query", query), zap.Any("args", args))

		rows, err := r.db.Query(ctx, query, args...)
		if err != nil {
			yield(model.Equipment{}, err)
			return
		}
		defer rows.Close()

		for rows.Next() {
			item, err := pgx.RowToStructByName[model.Equipment](rows)
			if err != nil {
				yield(model.Equipment{}, err)
				return
			}
			if !yield(item, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(model.Equipment{}, err)
		}
	}
}
