package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	carrierapp "github.com/fulfillment/backend/internal/application/carrier"
	"github.com/fulfillment/backend/internal/interfaces/http/dto"
	"github.com/fulfillment/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
)

// CarrierSyncService is the sync and ordering surface the handler needs
type CarrierSyncService interface {
	SyncStore(ctx context.Context, storeKey string) (*carrierapp.StoreSyncResult, error)
	SyncAllStores(ctx context.Context, concurrency int) (*carrierapp.SyncAllResult, error)
	MoveCarrier(ctx context.Context, storeKey, carrierID, direction string) (*carrierapp.MoveResult, error)
	NormalizePriorities(ctx context.Context, storeKey string) (*carrierapp.NormalizeResult, error)
	ListStoreCarriers(ctx context.Context, storeKey string) ([]carrierapp.CarrierDTO, error)
}

// CarrierCSVService is the CSV surface the handler needs
type CarrierCSVService interface {
	ExportCSV(ctx context.Context, w io.Writer) error
	ExportStoreCSV(ctx context.Context, w io.Writer, storeKey string) error
	ImportCSV(ctx context.Context, r io.Reader) (*carrierapp.ImportResult, error)
}

// CarrierHandler serves carrier sync, ordering and CSV endpoints
type CarrierHandler struct {
	BaseHandler
	sync CarrierSyncService
	csv  CarrierCSVService
}

// NewCarrierHandler creates a new CarrierHandler
func NewCarrierHandler(sync CarrierSyncService, csv CarrierCSVService) *CarrierHandler {
	return &CarrierHandler{sync: sync, csv: csv}
}

// Routes returns the carrier route groups for router.Register
func (h *CarrierHandler) Routes() []*router.DomainGroup {
	stores := router.NewDomainGroup("store-carriers", "/stores/:store_key/carriers").
		GET("", h.ListCarriers).
		POST("/sync", h.SyncStore).
		POST("/normalize", h.Normalize).
		POST("/:carrier_id/move", h.MoveCarrier)

	carriers := router.NewDomainGroup("carriers", "/carriers").
		POST("/sync", h.SyncAll).
		GET("/export", h.Export).
		POST("/import", h.Import)

	return []*router.DomainGroup{stores, carriers}
}

// RegisterRoutes implements router.RouteRegistrar
func (h *CarrierHandler) RegisterRoutes(rg *gin.RouterGroup) {
	for _, g := range h.Routes() {
		g.RegisterRoutes(rg)
	}
}

// ListCarriers returns a store's carriers in display order
func (h *CarrierHandler) ListCarriers(c *gin.Context) {
	carriers, err := h.sync.ListStoreCarriers(c.Request.Context(), c.Param("store_key"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, carriers)
}

// SyncStore reconciles one store against the carrier API
func (h *CarrierHandler) SyncStore(c *gin.Context) {
	result, err := h.sync.SyncStore(c.Request.Context(), c.Param("store_key"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// SyncAll syncs every active store. Partial failures still answer 200; the
// result lists them.
func (h *CarrierHandler) SyncAll(c *gin.Context) {
	var req dto.SyncAllRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.HandleBindError(c, err)
		return
	}
	result, err := h.sync.SyncAllStores(c.Request.Context(), req.Concurrency)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// MoveCarrier swaps a carrier with its neighbour
func (h *CarrierHandler) MoveCarrier(c *gin.Context) {
	var req dto.MoveCarrierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleBindError(c, err)
		return
	}
	result, err := h.sync.MoveCarrier(c.Request.Context(), c.Param("store_key"), c.Param("carrier_id"), req.Direction)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Normalize renumbers a store's priorities
func (h *CarrierHandler) Normalize(c *gin.Context) {
	result, err := h.sync.NormalizePriorities(c.Request.Context(), c.Param("store_key"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Export streams the carrier CSV. The body is built before anything is
// written so failures still get a JSON envelope.
func (h *CarrierHandler) Export(c *gin.Context) {
	var req dto.ExportRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.HandleBindError(c, err)
		return
	}

	var buf bytes.Buffer
	filename := "carriers.csv"
	var err error
	if req.StoreKey != "" {
		filename = fmt.Sprintf("carriers-%s.csv", req.StoreKey)
		err = h.csv.ExportStoreCSV(c.Request.Context(), &buf, req.StoreKey)
	} else {
		err = h.csv.ExportCSV(c.Request.Context(), &buf)
	}
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// Import applies an edited export, sent as a multipart "file" field or as the
// raw request body.
func (h *CarrierHandler) Import(c *gin.Context) {
	var body io.Reader = c.Request.Body
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				h.HandleError(c, err)
				return
			}
			h.BadRequest(c, "multipart field 'file' is required")
			return
		}
		f, err := fh.Open()
		if err != nil {
			h.BadRequest(c, "cannot read uploaded file")
			return
		}
		defer f.Close()
		body = f
	}

	result, err := h.csv.ImportCSV(c.Request.Context(), body)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
