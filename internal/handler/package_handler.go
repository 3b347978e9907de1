package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-lesson-api/internal/models"
	"github.com/noah-isme/sma-lesson-api/internal/service"
	appErrors "github.com/noah-isme/sma-lesson-api/pkg/errors"
	"github.com/noah-isme/sma-lesson-api/pkg/response"
)

type packageService interface {
	Create(ctx context.Context, req service.CreatePackageRequest, actorID string) (*models.LessonPackage, error)
	Get(ctx context.Context, id string) (*models.LessonPackage, error)
	Cancel(ctx context.Context, id, actorID string) (*models.LessonPackage, error)
}

// PackageHandler manages lesson package endpoints.
type PackageHandler struct {
	service packageService
}

// NewPackageHandler constructs handler.
func NewPackageHandler(svc packageService) *PackageHandler {
	return &PackageHandler{service: svc}
}

// Create godoc
// @Summary Assign a lesson package
// @Tags Packages
// @Accept json
// @Produce json
// @Param payload body service.CreatePackageRequest true "Package payload"
// @Success 201 {object} response.Envelope
// @Router /packages [post]
func (h *PackageHandler) Create(c *gin.Context) {
	var req service.CreatePackageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	pkg, err := h.service.Create(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, pkg)
}

// Get godoc
// @Summary Get lesson package balance
// @Tags Packages
// @Produce json
// @Param id path string true "Package ID"
// @Success 200 {object} response.Envelope
// @Router /packages/{id} [get]
func (h *PackageHandler) Get(c *gin.Context) {
	pkg, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if pkg == nil {
		response.NotFound(c, "lesson package not found")
		return
	}
	response.JSON(c, http.StatusOK, pkg, nil)
}

// Cancel godoc
// @Summary Cancel lesson package
// @Tags Packages
// @Produce json
// @Param id path string true "Package ID"
// @Success 200 {object} response.Envelope
// @Router /packages/{id}/cancel [post]
func (h *PackageHandler) Cancel(c *gin.Context) {
	pkg, err := h.service.Cancel(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if pkg == nil {
		response.NotFound(c, "lesson package not found")
		return
	}
	response.JSON(c, http.StatusOK, pkg, nil)
}
