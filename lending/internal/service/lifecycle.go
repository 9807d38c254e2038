package service

import (
	"context"

	"github.com/mkayfour/school-lending/lending/internal/errs"
	"github.com/mkayfour/school-lending/lending/internal/model"
	"github.com/mkayfour/school-lending/lending/internal/repository"
	"github.com/mkayfour/school-lending/pkg/auth"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func (s *Service) CreateRequest(ctx context.Context, actor auth.Principal, req model.CreateBorrowRequest) (model.BorrowRequest, error) {
	if err := s.authorize(actor, auth.ActionCreateRequest); err != nil {
		return model.BorrowRequest{}, err
	}
	if req.EquipmentID == 0 || req.BorrowDate.IsZero() || req.ReturnDate.IsZero() {
		return model.BorrowRequest{}, errors.Wrap(errs.ErrValidation, "equipmentId, borrowDate and returnDate are required")
	}
	period := model.Period{From: req.BorrowDate.Time, To: req.ReturnDate.Time}
	if !period.Valid() {
		return model.BorrowRequest{}, errors.Wrap(errs.ErrValidation, "returnDate must not precede borrowDate")
	}

	// the store resolves EquipmentID and answers errs.ErrReference when it is gone
	created, err := s.repo.CreateRequest(ctx, actor.UserID, req.EquipmentID, period)
	if err != nil {
		return model.BorrowRequest{}, err
	}
	s.log.Info("request created",
		zap.Int64("request_id", created.ID),
		zap.Int64("equipment_id", created.EquipmentID),
		zap.Int64("user_id", created.UserID))
	return created, nil
}

// GetRequest returns the request to its owner or to STAFF and ADMIN.
func (s *Service) GetRequest(ctx context.Context, actor auth.Principal, id int64) (model.BorrowRequest, error) {
	if err := s.authorize(actor, auth.ActionReadOwnRequests); err != nil {
		return model.BorrowRequest{}, err
	}
	req, err := s.repo.GetRequest(ctx, id)
	if err != nil {
		return model.BorrowRequest{}, err
	}
	if req.UserID != actor.UserID && !auth.Privileged(actor.Role) {
		return model.BorrowRequest{}, errs.ErrForbidden
	}
	return req, nil
}

func (s *Service) ListMine(ctx context.Context, actor auth.Principal) ([]model.BorrowRequestView, error) {
	if err := s.authorize(actor, auth.ActionReadOwnRequests); err != nil {
		return nil, err
	}
	return s.repo.ListRequestsByUser(ctx, actor.UserID)
}

func (s *Service) ListAll(ctx context.Context, actor auth.Principal) ([]model.BorrowRequestView, error) {
	if err := s.authorize(actor, auth.ActionListAllRequests); err != nil {
		return nil, err
	}
	return s.repo.ListRequests(ctx)
}

// Approve admits the request when fewer approved requests overlap its
// window than the item's availableQuantity. The check and the status
// write share one transaction holding the equipment row lock.
func (s *Service) Approve(ctx context.Context, actor auth.Principal, id int64) (model.BorrowRequest, error) {
	if err := s.authorize(actor, auth.ActionApproveRequest); err != nil {
		return model.BorrowRequest{}, err
	}

	var approved model.BorrowRequest
	err := s.repo.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		req, err := loadInState(ctx, tx, id, model.StatusRequested, "approve")
		if err != nil {
			return err
		}
		item, err := tx.LockEquipment(ctx, req.EquipmentID)
		if err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				return errs.ErrReference
			}
			return err
		}
		overlapping, err := tx.CountOverlapping(ctx, item.ID, req.ID, req.Period())
		if err != nil {
			return err
		}
		if overlapping >= item.AvailableQuantity {
			s.log.Info("approve refused",
				zap.Int64("request_id", req.ID),
				zap.Int64("equipment_id", item.ID),
				zap.Int("overlapping", overlapping),
				zap.Int("available", item.AvailableQuantity))
			return errs.ErrCapacity
		}
		approved, err = tx.SetStatus(ctx, req.ID, model.StatusApproved)
		return err
	})
	if err != nil {
		return model.BorrowRequest{}, err
	}
	s.logTransition(approved, actor)
	return approved, nil
}

func (s *Service) Reject(ctx context.Context, actor auth.Principal, id int64) (model.BorrowRequest, error) {
	if err := s.authorize(actor, auth.ActionRejectRequest); err != nil {
		return model.BorrowRequest{}, err
	}
	return s.transition(ctx, actor, id, model.StatusRequested, model.StatusRejected, "reject")
}

// Return closes an approved request; its window stops counting against capacity.
func (s *Service) Return(ctx context.Context, actor auth.Principal, id int64) (model.BorrowRequest, error) {
	if err := s.authorize(actor, auth.ActionReturnRequest); err != nil {
		return model.BorrowRequest{}, err
	}
	return s.transition(ctx, actor, id, model.StatusApproved, model.StatusReturned, "return")
}

func (s *Service) transition(ctx context.Context, actor auth.Principal, id int64, from, to model.Status, verb string) (model.BorrowRequest, error) {
	var out model.BorrowRequest
	err := s.repo.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		req, err := loadInState(ctx, tx, id, from, verb)
		if err != nil {
			return err
		}
		out, err = tx.SetStatus(ctx, req.ID, to)
		return err
	})
	if err != nil {
		return model.BorrowRequest{}, err
	}
	s.logTransition(out, actor)
	return out, nil
}

func loadInState(ctx context.Context, tx repository.Tx, id int64, want model.Status, verb string) (model.BorrowRequest, error) {
	req, err := tx.LockRequest(ctx, id)
	if err != nil {
		return model.BorrowRequest{}, err
	}
	if req.Status != want {
		return model.BorrowRequest{}, errors.Wrapf(errs.ErrInvalidState, "cannot %s request in state %s", verb, req.Status)
	}
	return req, nil
}

func (s *Service) logTransition(req model.BorrowRequest, actor auth.Principal) {
	s.log.Info("request transition",
		zap.Int64("request_id", req.ID),
		zap.Int64("equipment_id", req.EquipmentID),
		zap.String("status", string(req.Status)),
		zap.Int64("actor_id", actor.UserID))
}
