package service

import (
	"context"
	"iter"
	"strings"

	"github.com/mkayfour/school-lending/lending/internal/errs"
	"github.com/mkayfour/school-lending/lending/internal/model"
	"github.com/mkayfour/school-lending/pkg/auth"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func (s *Service) CreateItem(ctx context.Context, actor auth.Principal, req model.CreateEquipmentRequest) (model.Equipment, error) {
	if err := s.authorize(actor, auth.ActionCreateEquipment); err != nil {
		return model.Equipment{}, err
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	req.Condition = strings.TrimSpace(req.Condition)
	if req.Name == "" || req.Category == "" || req.Condition == "" {
		return model.Equipment{}, errors.Wrap(errs.ErrValidation, "name, category and condition are required")
	}
	if req.TotalQuantity < 1 {
		return model.Equipment{}, errors.Wrap(errs.ErrValidation, "quantity must be at least 1")
	}

	item, err := s.repo.CreateEquipment(ctx, req)
	if err != nil {
		return model.Equipment{}, err
	}
	s.log.Info("equipment created", zap.Int64("equipment_id", item.ID), zap.Int("quantity", item.TotalQuantity))
	return item, nil
}

// UpdateItem applies the non-nil fields of req. Changing the quantity
// resets availableQuantity to the new total.
func (s *Service) UpdateItem(ctx context.Context, actor auth.Principal, id int64, req model.UpdateEquipmentRequest) (model.Equipment, error) {
	if err := s.authorize(actor, auth.ActionUpdateEquipment); err != nil {
		return model.Equipment{}, err
	}
	for _, f := range []*string{req.Name, req.Category, req.Condition} {
		if f == nil {
			continue
		}
		if *f = strings.TrimSpace(*f); *f == "" {
			return model.Equipment{}, errors.Wrap(errs.ErrValidation, "fields must not be empty")
		}
	}
	if req.TotalQuantity != nil && *req.TotalQuantity < 1 {
		return model.Equipment{}, errors.Wrap(errs.ErrValidation, "quantity must be at least 1")
	}
	return s.repo.UpdateEquipment(ctx, id, req)
}

func (s *Service) DeleteItem(ctx context.Context, actor auth.Principal, id int64) error {
	if err := s.authorize(actor, auth.ActionDeleteEquipment); err != nil {
		return err
	}
	if err := s.repo.DeleteEquipment(ctx, id, s.guardDelete); err != nil {
		if errors.Is(err, errs.ErrConflict) {
			return errors.Wrap(err, "equipment has active requests")
		}
		return err
	}
	s.log.Info("equipment deleted", zap.Int64("equipment_id", id))
	return nil
}

func (s *Service) GetItem(ctx context.Context, id int64) (model.Equipment, error) {
	return s.repo.GetEquipment(ctx, id)
}

// Search yields matching items ordered by name. The sequence can be
// ranged over again for fresh results.
func (s *Service) Search(ctx context.Context, q model.EquipmentQuery) iter.Seq2[model.Equipment, error] {
	q.Query = strings.TrimSpace(q.Query)
	q.Category = strings.TrimSpace(q.Category)
	return s.repo.SearchEquipment(ctx, q)
}
