package handler

import (
	"context"
	"iter"

	"github.com/mkayfour/school-lending/lending/internal/model"
	"github.com/mkayfour/school-lending/lending/internal/service"
	"github.com/mkayfour/school-lending/pkg/auth"
)

//go:generate go run github.com/golang/mock/mockgen -source=service.go -destination=mocks/mock.go

type CatalogService interface {
	CreateItem(ctx context.Context, actor auth.Principal, req model.CreateEquipmentRequest) (model.Equipment, error)
	UpdateItem(ctx context.Context, actor auth.Principal, id int64, req model.UpdateEquipmentRequest) (model.Equipment, error)
	DeleteItem(ctx context.Context, actor auth.Principal, id int64) error
	GetItem(ctx context.Context, id int64) (model.Equipment, error)
	Search(ctx context.Context, q model.EquipmentQuery) iter.Seq2[model.Equipment, error]
}

type BorrowService interface {
	CreateRequest(ctx context.Context, actor auth.Principal, req model.CreateBorrowRequest) (model.BorrowRequest, error)
	GetRequest(ctx context.Context, actor auth.Principal, id int64) (model.BorrowRequest, error)
	ListMine(ctx context.Context, actor auth.Principal) ([]model.BorrowRequestView, error)
	ListAll(ctx context.Context, actor auth.Principal) ([]model.BorrowRequestView, error)
	Approve(ctx context.Context, actor auth.Principal, id int64) (model.BorrowRequest, error)
	Reject(ctx context.Context, actor auth.Principal, id int64) (model.BorrowRequest, error)
	Return(ctx context.Context, actor auth.Principal, id int64) (model.BorrowRequest, error)
}

type IdentityService interface {
	Signup(ctx context.Context, req model.SignupRequest) (model.SignupResponse, error)
	Login(ctx context.Context, req model.LoginRequest) (model.LoginResponse, error)
}

var (
	_ CatalogService  = (*service.Service)(nil)
	_ BorrowService   = (*service.Service)(nil)
	_ IdentityService = (*service.Service)(nil)
)
