package handler_test

import (
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/labstack/echo/v4"
	"github.com/mkayfour/school-lending/lending/internal/errs"
	"github.com/mkayfour/school-lending/lending/internal/handler"
	"github.com/mkayfour/school-lending/lending/internal/model"
	"github.com/mkayfour/school-lending/pkg/auth"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	service_mocks "github.com/mkayfour/school-lending/lending/internal/handler/mocks"
)

var (
	student = auth.Principal{UserID: 1, Role: auth.RoleStudent, Name: "Sam"}
	staff   = auth.Principal{UserID: 3, Role: auth.RoleStaff, Name: "Pat"}
	admin   = auth.Principal{UserID: 4, Role: auth.RoleAdmin, Name: "Ada"}
)

type tokens map[string]auth.Principal

func (t tokens) Parse(token string) (auth.Principal, error) {
	p, ok := t[token]
	if !ok {
		return auth.Principal{}, auth.ErrInvalidToken
	}
	return p, nil
}

var testTokens = tokens{"student": student, "staff": staff, "admin": admin}

type mocks struct {
	catalog  *service_mocks.MockCatalogService
	borrow   *service_mocks.MockBorrowService
	identity *service_mocks.MockIdentityService
}

func newRouter(t *testing.T) (*echo.Echo, mocks) {
	t.Helper()
	c := gomock.NewController(t)
	m := mocks{
		catalog:  service_mocks.NewMockCatalogService(c),
		borrow:   service_mocks.NewMockBorrowService(c),
		identity: service_mocks.NewMockIdentityService(c),
	}
	h := handler.New(m.catalog, m.borrow, m.identity, testTokens, zap.NewNop())
	return h.NewRouter(), m
}

type request struct {
	method string
	target string
	token  string
	body   string
}

type response struct {
	expectedCode int
	expectedBody string
}

func do(e *echo.Echo, req request) *httptest.ResponseRecorder {
	body := http.NoBody
	var r *http.Request
	if req.body != "" {
		r = httptest.NewRequest(req.method, req.target, strings.NewReader(req.body))
	} else {
		r = httptest.NewRequest(req.method, req.target, body)
	}
	r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if req.token != "" {
		r.Header.Set("Authorization", "Bearer "+req.token)
	}
	w := httptest.NewRecorder()
	e.ServeHTTP(w, r)
	return w
}

func seq(items ...model.Equipment) iter.Seq2[model.Equipment, error] {
	return func(yield func(model.Equipment, error) bool) {
		for _, it := range items {
			if !yield(it, nil) {
				return
			}
		}
	}
}

func failing(err error) iter.Seq2[model.Equipment, error] {
	return func(yield func(model.Equipment, error) bool) {
		yield(model.Equipment{}, err)
	}
}

const tripodJSON = `{"id":1,"name":"Tripod","category":"camera","condition":"good","quantity":2,"availableQuantity":2,"createdAt":"0001-01-01T00:00:00Z","updatedAt":"0001-01-01T00:00:00Z"}`

var tripod = model.Equipment{ID: 1, Name: "Tripod", Category: "camera", Condition: "good", TotalQuantity: 2, AvailableQuantity: 2}

func TestHandler_ListEquipment(t *testing.T) {
	t.Parallel()
	type mockBehavior func(m mocks)

	tests := []struct {
		name         string
		mockBehavior mockBehavior
		request      request
		response     response
	}{
		{
			name: "ok",
			mockBehavior: func(m mocks) {
				m.catalog.EXPECT().
					Search(gomock.Any(), model.EquipmentQuery{Query: "tri", Category: "camera", OnlyAvailable: true}).
					Return(seq(tripod))
			},
			request:  request{method: http.MethodGet, target: "/api/v1/equipment?q=tri&category=camera&available=YES"},
			response: response{expectedCode: http.StatusOK, expectedBody: "[" + tripodJSON + "]"},
		},
		{
			name: "ok. empty",
			mockBehavior: func(m mocks) {
				m.catalog.EXPECT().
					Search(gomock.Any(), model.EquipmentQuery{}).
					Return(seq())
			},
			request:  request{method: http.MethodGet, target: "/api/v1/equipment?available=no"},
			response: response{expectedCode: http.StatusOK, expectedBody: `[]`},
		},
		{
			name: "err. internal",
			mockBehavior: func(m mocks) {
				m.catalog.EXPECT().
					Search(gomock.Any(), model.EquipmentQuery{}).
					Return(failing(errors.New("db internal")))
			},
			request:  request{method: http.MethodGet, target: "/api/v1/equipment"},
			response: response{expectedCode: http.StatusInternalServerError, expectedBody: `{"message":"db internal"}`},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, m := newRouter(t)
			tt.mockBehavior(m)

			w := do(e, tt.request)

			require.Equal(t, tt.response.expectedCode, w.Code)
			require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func TestHandler_Equipment(t *testing.T) {
	t.Parallel()
	type mockBehavior func(m mocks)

	tests := []struct {
		name         string
		mockBehavior mockBehavior
		request      request
		response     response
	}{
		{
			name: "get ok",
			mockBehavior: func(m mocks) {
				m.catalog.EXPECT().GetItem(gomock.Any(), int64(1)).Return(tripod, nil)
			},
			request:  request{method: http.MethodGet, target: "/api/v1/equipment/1"},
			response: response{expectedCode: http.StatusOK, expectedBody: tripodJSON},
		},
		{
			name: "get not found",
			mockBehavior: func(m mocks) {
				m.catalog.EXPECT().GetItem(gomock.Any(), int64(9)).Return(model.Equipment{}, errs.ErrNotFound)
			},
			request:  request{method: http.MethodGet, target: "/api/v1/equipment/9"},
			response: response{expectedCode: http.StatusNotFound, expectedBody: `{"message":"not found"}`},
		},
		{
			name:         "get bad id",
			mockBehavior: func(m mocks) {},
			request:      request{method: http.MethodGet, target: "/api/v1/equipment/abc"},
			response:     response{expectedCode: http.StatusBadRequest, expectedBody: `{"message":"id is invalid"}`},
		},
		{
			name: "create ok",
			mockBehavior: func(m mocks) {
				m.catalog.EXPECT().
					CreateItem(gomock.Any(), admin, model.CreateEquipmentRequest{Name: "Tripod", Category: "camera", Condition: "good", TotalQuantity: 2}).
					Return(tripod, nil)
			},
			request: request{
				method: http.MethodPost, target: "/api/v1/equipment", token: "admin",
				body: `{"name":"Tripod","category":"camera","condition":"good","quantity":2}`,
			},
			response: response{expectedCode: http.StatusCreated, expectedBody: tripodJSON},
		},
		{
			name: "create forbidden",
			mockBehavior: func(m mocks) {
				m.catalog.EXPECT().
					CreateItem(gomock.Any(), staff, gomock.Any()).
					Return(model.Equipment{}, errs.ErrForbidden)
			},
			request: request{
				method: http.MethodPost, target: "/api/v1/equipment", token: "staff",
				body: `{"name":"Tripod","category":"camera","condition":"good","quantity":2}`,
			},
			response: response{expectedCode: http.StatusForbidden, expectedBody: `{"message":"forbidden"}`},
		},
		{
			name:         "create unauthenticated",
			mockBehavior: func(m mocks) {},
			request: request{
				method: http.MethodPost, target: "/api/v1/equipment",
				body: `{"name":"Tripod","category":"camera","condition":"good","quantity":2}`,
			},
			response: response{expectedCode: http.StatusUnauthorized, expectedBody: `{"message":"No Authorization Header"}`},
		},
		{
			name: "update ok",
			mockBehavior: func(m mocks) {
				qty := 5
				m.catalog.EXPECT().
					UpdateItem(gomock.Any(), admin, int64(1), model.UpdateEquipmentRequest{TotalQuantity: &qty}).
					Return(tripod, nil)
			},
			request: request{
				method: http.MethodPut, target: "/api/v1/equipment/1", token: "admin",
				body: `{"quantity":5}`,
			},
			response: response{expectedCode: http.StatusOK, expectedBody: tripodJSON},
		},
		{
			name: "delete ok",
			mockBehavior: func(m mocks) {
				m.catalog.EXPECT().DeleteItem(gomock.Any(), admin, int64(1)).Return(nil)
			},
			request:  request{method: http.MethodDelete, target: "/api/v1/equipment/1", token: "admin"},
			response: response{expectedCode: http.StatusNoContent, expectedBody: ``},
		},
		{
			name: "delete guarded",
			mockBehavior: func(m mocks) {
				m.catalog.EXPECT().DeleteItem(gomock.Any(), admin, int64(1)).
					Return(errors.Wrap(errs.ErrConflict, "equipment has active requests"))
			},
			request:  request{method: http.MethodDelete, target: "/api/v1/equipment/1", token: "admin"},
			response: response{expectedCode: http.StatusConflict, expectedBody: `{"message":"equipment has active requests: conflict"}`},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, m := newRouter(t)
			tt.mockBehavior(m)

			w := do(e, tt.request)

			require.Equal(t, tt.response.expectedCode, w.Code)
			require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func day(d int) time.Time {
	return time.Date(2026, time.May, d, 0, 0, 0, 0, time.UTC)
}

const requestedJSON = `{"id":7,"userId":1,"equipmentId":3,"status":"REQUESTED","borrowDate":"2026-05-01T00:00:00Z","returnDate":"2026-05-03T00:00:00Z","createdAt":"0001-01-01T00:00:00Z","updatedAt":"0001-01-01T00:00:00Z"}`

var requested = model.BorrowRequest{ID: 7, UserID: 1, EquipmentID: 3, Status: model.StatusRequested, BorrowDate: day(1), ReturnDate: day(3)}

func TestHandler_Borrow(t *testing.T) {
	t.Parallel()
	type mockBehavior func(m mocks)

	approved := requested
	approved.Status = model.StatusApproved
	approvedJSON := strings.Replace(requestedJSON, "REQUESTED", "APPROVED", 1)

	tests := []struct {
		name         string
		mockBehavior mockBehavior
		request      request
		response     response
	}{
		{
			name: "create ok",
			mockBehavior: func(m mocks) {
				m.borrow.EXPECT().
					CreateRequest(gomock.Any(), student, model.CreateBorrowRequest{
						EquipmentID: 3,
						BorrowDate:  model.Date{Time: day(1)},
						ReturnDate:  model.Date{Time: day(3)},
					}).
					Return(requested, nil)
			},
			request: request{
				method: http.MethodPost, target: "/api/v1/borrow", token: "student",
				body: `{"equipmentId":3,"borrowDate":"2026-05-01","returnDate":"2026-05-03T00:00:00Z"}`,
			},
			response: response{expectedCode: http.StatusCreated, expectedBody: requestedJSON},
		},
		{
			name: "create dangling equipment",
			mockBehavior: func(m mocks) {
				m.borrow.EXPECT().
					CreateRequest(gomock.Any(), student, gomock.Any()).
					Return(model.BorrowRequest{}, errs.ErrReference)
			},
			request: request{
				method: http.MethodPost, target: "/api/v1/borrow", token: "student",
				body: `{"equipmentId":99,"borrowDate":"2026-05-01","returnDate":"2026-05-03"}`,
			},
			response: response{expectedCode: http.StatusBadRequest, expectedBody: `{"message":"invalid equipment"}`},
		},
		{
			name:         "create bad date",
			mockBehavior: func(m mocks) {},
			request: request{
				method: http.MethodPost, target: "/api/v1/borrow", token: "student",
				body: `{"equipmentId":3,"borrowDate":"yesterday","returnDate":"2026-05-03"}`,
			},
			response: response{expectedCode: http.StatusBadRequest, expectedBody: `{"message":"invalid request body"}`},
		},
		{
			name:         "create bad token",
			mockBehavior: func(m mocks) {},
			request: request{
				method: http.MethodPost, target: "/api/v1/borrow", token: "forged",
				body: `{"equipmentId":3,"borrowDate":"2026-05-01","returnDate":"2026-05-03"}`,
			},
			response: response{expectedCode: http.StatusUnauthorized, expectedBody: `{"message":"Invalid token"}`},
		},
		{
			name: "approve ok",
			mockBehavior: func(m mocks) {
				m.borrow.EXPECT().Approve(gomock.Any(), staff, int64(7)).Return(approved, nil)
			},
			request:  request{method: http.MethodPut, target: "/api/v1/borrow/7/approve", token: "staff"},
			response: response{expectedCode: http.StatusOK, expectedBody: approvedJSON},
		},
		{
			name: "approve no capacity",
			mockBehavior: func(m mocks) {
				m.borrow.EXPECT().Approve(gomock.Any(), staff, int64(7)).Return(model.BorrowRequest{}, errs.ErrCapacity)
			},
			request:  request{method: http.MethodPut, target: "/api/v1/borrow/7/approve", token: "staff"},
			response: response{expectedCode: http.StatusConflict, expectedBody: `{"message":"no availability in that window"}`},
		},
		{
			name: "reject invalid state",
			mockBehavior: func(m mocks) {
				m.borrow.EXPECT().Reject(gomock.Any(), admin, int64(7)).
					Return(model.BorrowRequest{}, errors.Wrap(errs.ErrInvalidState, "cannot reject request in state APPROVED"))
			},
			request:  request{method: http.MethodPut, target: "/api/v1/borrow/7/reject", token: "admin"},
			response: response{expectedCode: http.StatusConflict, expectedBody: `{"message":"cannot reject request in state APPROVED: invalid state transition"}`},
		},
		{
			name: "return forbidden",
			mockBehavior: func(m mocks) {
				m.borrow.EXPECT().Return(gomock.Any(), student, int64(7)).Return(model.BorrowRequest{}, errs.ErrForbidden)
			},
			request:  request{method: http.MethodPut, target: "/api/v1/borrow/7/return", token: "student"},
			response: response{expectedCode: http.StatusForbidden, expectedBody: `{"message":"forbidden"}`},
		},
		{
			name: "get not found",
			mockBehavior: func(m mocks) {
				m.borrow.EXPECT().GetRequest(gomock.Any(), student, int64(8)).Return(model.BorrowRequest{}, errs.ErrNotFound)
			},
			request:  request{method: http.MethodGet, target: "/api/v1/borrow/8", token: "student"},
			response: response{expectedCode: http.StatusNotFound, expectedBody: `{"message":"not found"}`},
		},
		{
			name: "list mine",
			mockBehavior: func(m mocks) {
				m.borrow.EXPECT().ListMine(gomock.Any(), student).
					Return([]model.BorrowRequestView{{BorrowRequest: requested}}, nil)
			},
			request:  request{method: http.MethodGet, target: "/api/v1/borrow/my", token: "student"},
			response: response{expectedCode: http.StatusOK, expectedBody: "[" + requestedJSON + "]"},
		},
		{
			name: "list all empty",
			mockBehavior: func(m mocks) {
				m.borrow.EXPECT().ListAll(gomock.Any(), staff).Return(nil, nil)
			},
			request:  request{method: http.MethodGet, target: "/api/v1/borrow/all", token: "staff"},
			response: response{expectedCode: http.StatusOK, expectedBody: `[]`},
		},
		{
			name: "list all with display data",
			mockBehavior: func(m mocks) {
				m.borrow.EXPECT().ListAll(gomock.Any(), staff).Return([]model.BorrowRequestView{{
					BorrowRequest: requested,
					User:          &model.Requester{Name: "Sam", Role: auth.RoleStudent},
				}}, nil)
			},
			request: request{method: http.MethodGet, target: "/api/v1/borrow/all", token: "staff"},
			response: response{
				expectedCode: http.StatusOK,
				expectedBody: "[" + strings.TrimSuffix(requestedJSON, "}") + `,"user":{"name":"Sam","role":"STUDENT"}}]`,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, m := newRouter(t)
			tt.mockBehavior(m)

			w := do(e, tt.request)

			require.Equal(t, tt.response.expectedCode, w.Code)
			require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func TestHandler_Auth(t *testing.T) {
	t.Parallel()
	type mockBehavior func(m mocks)

	tests := []struct {
		name         string
		mockBehavior mockBehavior
		request      request
		response     response
	}{
		{
			name: "signup ok",
			mockBehavior: func(m mocks) {
				m.identity.EXPECT().
					Signup(gomock.Any(), model.SignupRequest{Name: "Sam", Email: "sam@school.test", Password: "secret1"}).
					Return(model.SignupResponse{ID: 5}, nil)
			},
			request: request{
				method: http.MethodPost, target: "/api/v1/auth/signup",
				body: `{"name":"Sam","email":"sam@school.test","password":"secret1"}`,
			},
			response: response{expectedCode: http.StatusCreated, expectedBody: `{"id":5}`},
		},
		{
			name: "signup email taken",
			mockBehavior: func(m mocks) {
				m.identity.EXPECT().Signup(gomock.Any(), gomock.Any()).Return(model.SignupResponse{}, errs.ErrEmailTaken)
			},
			request: request{
				method: http.MethodPost, target: "/api/v1/auth/signup",
				body: `{"name":"Sam","email":"sam@school.test","password":"secret1"}`,
			},
			response: response{expectedCode: http.StatusConflict, expectedBody: `{"message":"email in use"}`},
		},
		{
			name: "login ok",
			mockBehavior: func(m mocks) {
				m.identity.EXPECT().
					Login(gomock.Any(), model.LoginRequest{Email: "sam@school.test", Password: "secret1"}).
					Return(model.LoginResponse{Token: "t", Role: auth.RoleStudent, Name: "Sam", ExpiresAt: day(2)}, nil)
			},
			request: request{
				method: http.MethodPost, target: "/api/v1/auth/login",
				body: `{"email":"sam@school.test","password":"secret1"}`,
			},
			response: response{expectedCode: http.StatusOK, expectedBody: `{"token":"t","role":"STUDENT","name":"Sam","expiresAt":"2026-05-02T00:00:00Z"}`},
		},
		{
			name: "login wrong password",
			mockBehavior: func(m mocks) {
				m.identity.EXPECT().Login(gomock.Any(), gomock.Any()).Return(model.LoginResponse{}, errs.ErrInvalidCredentials)
			},
			request: request{
				method: http.MethodPost, target: "/api/v1/auth/login",
				body: `{"email":"sam@school.test","password":"nope"}`,
			},
			response: response{expectedCode: http.StatusUnauthorized, expectedBody: `{"message":"invalid credentials"}`},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, m := newRouter(t)
			tt.mockBehavior(m)

			w := do(e, tt.request)

			require.Equal(t, tt.response.expectedCode, w.Code)
			require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func TestHandler_SignupValidation(t *testing.T) {
	t.Parallel()
	e, _ := newRouter(t)

	w := do(e, request{method: http.MethodPost, target: "/api/v1/auth/signup", body: `{"name":"Sam","password":"secret1"}`})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(e, request{method: http.MethodPost, target: "/api/v1/auth/signup", body: `{"name":"Sam","email":"sam@school.test","password":"secret1","role":"ROOT"}`})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_Health(t *testing.T) {
	t.Parallel()
	e, _ := newRouter(t)

	w := do(e, request{method: http.MethodGet, target: "/manage/health"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "OK", w.Body.String())
}

func TestHandler_UnknownRoute(t *testing.T) {
	t.Parallel()
	e, _ := newRouter(t)

	for _, req := range []request{
		{method: http.MethodGet, target: "/api/v1/nope"},
		{method: http.MethodGet, target: "/api/v1"},
		{method: http.MethodPost, target: "/api/v1/borrow/1/extend", body: `{}`},
		{method: http.MethodGet, target: "/api/v1/nope", token: "student"},
		{method: http.MethodGet, target: "/nope"},
	} {
		w := do(e, req)
		require.Equal(t, http.StatusNotFound, w.Code, req.method+" "+req.target)
	}

	w := do(e, request{method: http.MethodGet, target: "/api/v1/borrow/my"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
