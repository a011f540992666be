package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	carrierapp "github.com/fulfillment/backend/internal/application/carrier"
	"github.com/fulfillment/backend/internal/domain/carrier"
	"github.com/fulfillment/backend/internal/domain/shared"
	csvimport "github.com/fulfillment/backend/internal/infrastructure/import"
	"github.com/fulfillment/backend/internal/interfaces/http/dto"
	"github.com/fulfillment/backend/internal/interfaces/http/middleware"
	"github.com/fulfillment/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockSyncService struct {
	mock.Mock
}

func (m *mockSyncService) SyncStore(ctx context.Context, storeKey string) (*carrierapp.StoreSyncResult, error) {
	args := m.Called(storeKey)
	if r := args.Get(0); r != nil {
		return r.(*carrierapp.StoreSyncResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSyncService) SyncAllStores(ctx context.Context, concurrency int) (*carrierapp.SyncAllResult, error) {
	args := m.Called(concurrency)
	if r := args.Get(0); r != nil {
		return r.(*carrierapp.SyncAllResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSyncService) MoveCarrier(ctx context.Context, storeKey, carrierID, direction string) (*carrierapp.MoveResult, error) {
	args := m.Called(storeKey, carrierID, direction)
	if r := args.Get(0); r != nil {
		return r.(*carrierapp.MoveResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSyncService) NormalizePriorities(ctx context.Context, storeKey string) (*carrierapp.NormalizeResult, error) {
	args := m.Called(storeKey)
	if r := args.Get(0); r != nil {
		return r.(*carrierapp.NormalizeResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSyncService) ListStoreCarriers(ctx context.Context, storeKey string) ([]carrierapp.CarrierDTO, error) {
	args := m.Called(storeKey)
	if r := args.Get(0); r != nil {
		return r.([]carrierapp.CarrierDTO), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockCSVService struct {
	mock.Mock
}

func (m *mockCSVService) ExportCSV(ctx context.Context, w io.Writer) error {
	args := m.Called()
	if s := args.String(0); s != "" {
		_, _ = io.WriteString(w, s)
	}
	return args.Error(1)
}

func (m *mockCSVService) ExportStoreCSV(ctx context.Context, w io.Writer, storeKey string) error {
	args := m.Called(storeKey)
	if s := args.String(0); s != "" {
		_, _ = io.WriteString(w, s)
	}
	return args.Error(1)
}

func (m *mockCSVService) ImportCSV(ctx context.Context, r io.Reader) (*carrierapp.ImportResult, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	args := m.Called(string(body))
	if res := args.Get(0); res != nil {
		return res.(*carrierapp.ImportResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func setupRouter(syncSvc *mockSyncService, csvSvc *mockCSVService) *gin.Engine {
	engine := gin.New()
	engine.Use(middleware.RequestID())
	router.NewRouter(engine).Register(NewCarrierHandler(syncSvc, csvSvc)).Setup()
	return engine
}

func doRequest(engine *gin.Engine, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code      string          `json:"code"`
		Message   string          `json:"message"`
		RequestID string          `json:"request_id"`
		Details   json.RawMessage `json:"details"`
	} `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func TestCarrierHandler_ListCarriers(t *testing.T) {
	syncSvc := new(mockSyncService)
	syncSvc.On("ListStoreCarriers", "STRI").Return([]carrierapp.CarrierDTO{
		{CarrierID: "A", StoreKey: "STRI", Name: "Alpha", Status: "active", Priority: 1},
	}, nil)
	syncSvc.On("ListStoreCarriers", "NOPE").Return(nil, carrier.ErrStoreNotFound)
	engine := setupRouter(syncSvc, new(mockCSVService))

	w := doRequest(engine, http.MethodGet, "/api/v1/stores/STRI/carriers", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	assert.True(t, env.Success)
	var carriers []carrierapp.CarrierDTO
	require.NoError(t, json.Unmarshal(env.Data, &carriers))
	require.Len(t, carriers, 1)
	assert.Equal(t, "Alpha", carriers[0].Name)

	w = doRequest(engine, http.MethodGet, "/api/v1/stores/NOPE/carriers", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	env = decode(t, w)
	assert.False(t, env.Success)
	assert.Equal(t, dto.ErrCodeNotFound, env.Error.Code)
	assert.NotEmpty(t, env.Error.RequestID)
}

func TestCarrierHandler_SyncStore_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"inactive store", carrier.ErrStoreInactive, http.StatusUnprocessableEntity, dto.ErrCodeInvalidState},
		{"missing credentials", carrier.ErrMissingCredentials, http.StatusUnprocessableEntity, dto.ErrCodeConfiguration},
		{"lock held", carrier.ErrSyncInProgress, http.StatusConflict, dto.ErrCodeSyncInProgress},
		{
			"upstream timeout",
			fmt.Errorf("fetch carriers: %w", shared.NewDomainError(shared.CodeUpstreamTransient, "timeout")),
			http.StatusServiceUnavailable,
			dto.ErrCodeUpstreamUnavailable,
		},
		{
			"upstream 401",
			shared.NewDomainError(shared.CodeUpstreamRejected, "unauthorized"),
			http.StatusBadGateway,
			dto.ErrCodeUpstreamRejected,
		},
		{"unknown failure", fmt.Errorf("disk on fire"), http.StatusInternalServerError, dto.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			syncSvc := new(mockSyncService)
			syncSvc.On("SyncStore", "STRI").Return(nil, tt.err)
			engine := setupRouter(syncSvc, new(mockCSVService))

			w := doRequest(engine, http.MethodPost, "/api/v1/stores/STRI/carriers/sync", nil, "")
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, decode(t, w).Error.Code)
		})
	}

	t.Run("success", func(t *testing.T) {
		syncSvc := new(mockSyncService)
		syncSvc.On("SyncStore", "STRI").Return(&carrierapp.StoreSyncResult{StoreKey: "STRI", CarrierCount: 3, Inserted: 1}, nil)
		engine := setupRouter(syncSvc, new(mockCSVService))

		w := doRequest(engine, http.MethodPost, "/api/v1/stores/STRI/carriers/sync", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		var res carrierapp.StoreSyncResult
		require.NoError(t, json.Unmarshal(decode(t, w).Data, &res))
		assert.Equal(t, 3, res.CarrierCount)
	})
}

func TestCarrierHandler_SyncAll(t *testing.T) {
	syncSvc := new(mockSyncService)
	partial := &carrierapp.SyncAllResult{
		Total:     2,
		Succeeded: 1,
		Failed:    []carrierapp.FailedStore{{StoreKey: "ACME", Error: "boom"}},
		Status:    carrierapp.SyncStatusPartial,
	}
	syncSvc.On("SyncAllStores", 4).Return(partial, nil).Once()
	syncSvc.On("SyncAllStores", 0).Return(&carrierapp.SyncAllResult{Status: carrierapp.SyncStatusSuccess}, nil).Once()
	engine := setupRouter(syncSvc, new(mockCSVService))

	w := doRequest(engine, http.MethodPost, "/api/v1/carriers/sync?concurrency=4", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var res carrierapp.SyncAllResult
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &res))
	assert.Equal(t, carrierapp.SyncStatusPartial, res.Status)
	assert.Equal(t, "ACME", res.Failed[0].StoreKey)

	w = doRequest(engine, http.MethodPost, "/api/v1/carriers/sync", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(engine, http.MethodPost, "/api/v1/carriers/sync?concurrency=lots", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	syncSvc.AssertExpectations(t)
}

func TestCarrierHandler_MoveCarrier(t *testing.T) {
	syncSvc := new(mockSyncService)
	syncSvc.On("MoveCarrier", "STRI", "B", "up").
		Return(&carrierapp.MoveResult{StoreKey: "STRI", CarrierID: "B", Direction: "up", Moved: true}, nil)
	syncSvc.On("MoveCarrier", "STRI", "X", "up").Return(nil, carrier.ErrCarrierInactive)
	engine := setupRouter(syncSvc, new(mockCSVService))

	w := doRequest(engine, http.MethodPost, "/api/v1/stores/STRI/carriers/B/move",
		strings.NewReader(`{"direction":"up"}`), "application/json")
	require.Equal(t, http.StatusOK, w.Code)
	var res carrierapp.MoveResult
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &res))
	assert.True(t, res.Moved)

	w = doRequest(engine, http.MethodPost, "/api/v1/stores/STRI/carriers/X/move",
		strings.NewReader(`{"direction":"up"}`), "application/json")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = doRequest(engine, http.MethodPost, "/api/v1/stores/STRI/carriers/B/move",
		strings.NewReader(`{"direction":"sideways"}`), "application/json")
	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decode(t, w)
	assert.Equal(t, dto.ErrCodeValidation, env.Error.Code)
	var details []dto.ValidationDetail
	require.NoError(t, json.Unmarshal(env.Error.Details, &details))
	require.Len(t, details, 1)
	assert.Equal(t, "direction", details[0].Field)
	assert.Equal(t, "must be one of: up down", details[0].Message)

	w = doRequest(engine, http.MethodPost, "/api/v1/stores/STRI/carriers/B/move",
		strings.NewReader(`{`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeBadRequest, decode(t, w).Error.Code)

	syncSvc.AssertNumberOfCalls(t, "MoveCarrier", 2)
}

func TestCarrierHandler_Normalize(t *testing.T) {
	syncSvc := new(mockSyncService)
	syncSvc.On("NormalizePriorities", "STRI").Return(&carrierapp.NormalizeResult{StoreKey: "STRI", Updated: 2}, nil)
	engine := setupRouter(syncSvc, new(mockCSVService))

	w := doRequest(engine, http.MethodPost, "/api/v1/stores/STRI/carriers/normalize", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var res carrierapp.NormalizeResult
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &res))
	assert.Equal(t, 2, res.Updated)
}

func TestCarrierHandler_Export(t *testing.T) {
	csvSvc := new(mockCSVService)
	csvSvc.On("ExportCSV").Return("all\r\n", nil)
	csvSvc.On("ExportStoreCSV", "STRI").Return("one\r\n", nil)
	csvSvc.On("ExportStoreCSV", "NOPE").Return("", carrier.ErrStoreNotFound)
	engine := setupRouter(new(mockSyncService), csvSvc)

	w := doRequest(engine, http.MethodGet, "/api/v1/carriers/export", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "all\r\n", w.Body.String())
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="carriers.csv"`, w.Header().Get("Content-Disposition"))

	w = doRequest(engine, http.MethodGet, "/api/v1/carriers/export?store_key=STRI", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "one\r\n", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "carriers-STRI.csv")

	w = doRequest(engine, http.MethodGet, "/api/v1/carriers/export?store_key=NOPE", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, w.Header().Get("Content-Disposition"))
}

func TestCarrierHandler_Import(t *testing.T) {
	const upload = "account_code,carrier_id,carrier_name,status,weight_in_kg,priority\nSTRI,A,A,active,,1\n"
	accepted := &carrierapp.ImportResult{UpdatedCount: 1, StoresProcessed: []string{"STRI"}}

	t.Run("raw body", func(t *testing.T) {
		csvSvc := new(mockCSVService)
		csvSvc.On("ImportCSV", upload).Return(accepted, nil)
		engine := setupRouter(new(mockSyncService), csvSvc)

		w := doRequest(engine, http.MethodPost, "/api/v1/carriers/import", strings.NewReader(upload), "text/csv")
		require.Equal(t, http.StatusOK, w.Code)
		var res carrierapp.ImportResult
		require.NoError(t, json.Unmarshal(decode(t, w).Data, &res))
		assert.Equal(t, []string{"STRI"}, res.StoresProcessed)
	})

	t.Run("multipart file", func(t *testing.T) {
		csvSvc := new(mockCSVService)
		csvSvc.On("ImportCSV", upload).Return(accepted, nil)
		engine := setupRouter(new(mockSyncService), csvSvc)

		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		part, err := mw.CreateFormFile("file", "carriers.csv")
		require.NoError(t, err)
		_, err = part.Write([]byte(upload))
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		w := doRequest(engine, http.MethodPost, "/api/v1/carriers/import", &body, mw.FormDataContentType())
		assert.Equal(t, http.StatusOK, w.Code)
		csvSvc.AssertExpectations(t)
	})

	t.Run("multipart without file field", func(t *testing.T) {
		csvSvc := new(mockCSVService)
		engine := setupRouter(new(mockSyncService), csvSvc)

		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		require.NoError(t, mw.WriteField("note", "hi"))
		require.NoError(t, mw.Close())

		w := doRequest(engine, http.MethodPost, "/api/v1/carriers/import", &body, mw.FormDataContentType())
		assert.Equal(t, http.StatusBadRequest, w.Code)
		csvSvc.AssertNotCalled(t, "ImportCSV", mock.Anything)
	})

	t.Run("rejected upload lists row errors", func(t *testing.T) {
		csvSvc := new(mockCSVService)
		csvSvc.On("ImportCSV", upload).Return(nil, &csvimport.ImportValidationError{
			Errors: []csvimport.RowError{{
				Row: 2, Store: "STRI", Column: "carrier_id",
				Code: csvimport.ErrCodeUnknownCarrier, Message: "carrier 'A' not found", Value: "A",
			}},
			Total: 1,
		})
		engine := setupRouter(new(mockSyncService), csvSvc)

		w := doRequest(engine, http.MethodPost, "/api/v1/carriers/import", strings.NewReader(upload), "text/csv")
		require.Equal(t, http.StatusBadRequest, w.Code)
		env := decode(t, w)
		assert.Equal(t, dto.ErrCodeValidation, env.Error.Code)
		var rows []csvimport.RowError
		require.NoError(t, json.Unmarshal(env.Error.Details, &rows))
		require.Len(t, rows, 1)
		assert.Equal(t, csvimport.ErrCodeUnknownCarrier, rows[0].Code)
		assert.Equal(t, 2, rows[0].Row)
	})

	t.Run("lock held", func(t *testing.T) {
		csvSvc := new(mockCSVService)
		csvSvc.On("ImportCSV", upload).Return(nil, fmt.Errorf("lock store STRI: %w", carrier.ErrSyncInProgress))
		engine := setupRouter(new(mockSyncService), csvSvc)

		w := doRequest(engine, http.MethodPost, "/api/v1/carriers/import", strings.NewReader(upload), "text/csv")
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, decode(t, w).Error.Message, "STRI")
	})

	t.Run("body over the limit", func(t *testing.T) {
		csvSvc := new(mockCSVService)
		csvSvc.On("ImportCSV", mock.Anything).Return(accepted, nil).Maybe()
		engine := gin.New()
		engine.Use(middleware.RequestID(), middleware.BodyLimit(16))
		router.NewRouter(engine).Register(NewCarrierHandler(new(mockSyncService), csvSvc)).Setup()

		w := doRequest(engine, http.MethodPost, "/api/v1/carriers/import", strings.NewReader(upload), "text/csv")
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})
}

type fakePinger struct{ err error }

func (p fakePinger) Ping() error { return p.err }

func TestHealth(t *testing.T) {
	engine := gin.New()
	engine.GET("/health", Health(fakePinger{}))
	engine.GET("/down", Health(fakePinger{err: fmt.Errorf("connection refused")}))

	w := doRequest(engine, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"healthy"`)

	w = doRequest(engine, http.MethodGet, "/down", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"unhealthy"`)
}
