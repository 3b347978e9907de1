package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-lesson-api/internal/middleware"
	"github.com/noah-isme/sma-lesson-api/internal/models"
	"github.com/noah-isme/sma-lesson-api/internal/service"
	appErrors "github.com/noah-isme/sma-lesson-api/pkg/errors"
	"github.com/noah-isme/sma-lesson-api/pkg/response"
)

type bookingService interface {
	Create(ctx context.Context, req service.CreateBookingRequest, actorID string) (*models.Booking, error)
	CreateRecurring(ctx context.Context, req service.CreateRecurringBookingsRequest, actorID string) ([]models.Booking, error)
	Update(ctx context.Context, id string, req service.UpdateBookingRequest, actorID string) (*models.Booking, error)
	Cancel(ctx context.Context, id, reason, actorID string) (bool, error)
	Delete(ctx context.Context, id, actorID string) (bool, error)
	Get(ctx context.Context, id string) (*models.Booking, error)
	List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, *models.Pagination, error)
	ListOccurrences(ctx context.Context, parentID string) ([]models.Booking, error)
	DaySchedule(ctx context.Context, date models.Date) (*models.DaySchedule, bool, error)
	CheckAvailability(ctx context.Context, req service.AvailabilityRequest) (*models.Availability, error)
}

// CancelBookingRequest is the optional body of a cancellation.
type CancelBookingRequest struct {
	Reason string `json:"reason"`
}

// BookingHandler manages booking endpoints.
type BookingHandler struct {
	service bookingService
}

// NewBookingHandler constructs handler.
func NewBookingHandler(svc bookingService) *BookingHandler {
	return &BookingHandler{service: svc}
}

// List godoc
// @Summary List bookings
// @Tags Bookings
// @Produce json
// @Param teacher_id query string false "Filter by teacher"
// @Param student_id query string false "Filter by student"
// @Param room_id query string false "Filter by room"
// @Param course_id query string false "Filter by course"
// @Param package_id query string false "Filter by package"
// @Param status query string false "Filter by status"
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Param order query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Router /bookings [get]
func (h *BookingHandler) List(c *gin.Context) {
	filter := models.BookingFilter{
		TeacherID: c.Query("teacher_id"),
		StudentID: c.Query("student_id"),
		RoomID:    c.Query("room_id"),
		CourseID:  c.Query("course_id"),
		PackageID: c.Query("package_id"),
		Status:    models.BookingStatus(strings.ToUpper(c.Query("status"))),
		SortOrder: c.Query("order"),
	}
	var err error
	if filter.From, err = optionalDateQuery(c, "from"); err != nil {
		response.Error(c, err)
		return
	}
	if filter.To, err = optionalDateQuery(c, "to"); err != nil {
		response.Error(c, err)
		return
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = limit
	}

	bookings, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bookings, pagination)
}

// Get godoc
// @Summary Get booking
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /bookings/{id} [get]
func (h *BookingHandler) Get(c *gin.Context) {
	booking, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if booking == nil {
		response.NotFound(c, "booking not found")
		return
	}
	response.JSON(c, http.StatusOK, booking, nil)
}

// Occurrences godoc
// @Summary List occurrences generated from a recurring booking
// @Tags Bookings
// @Produce json
// @Param id path string true "Anchor booking ID"
// @Success 200 {object} response.Envelope
// @Router /bookings/{id}/occurrences [get]
func (h *BookingHandler) Occurrences(c *gin.Context) {
	bookings, err := h.service.ListOccurrences(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bookings, nil)
}

// Day godoc
// @Summary Active bookings on a date
// @Tags Bookings
// @Produce json
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /bookings/day [get]
func (h *BookingHandler) Day(c *gin.Context) {
	raw := c.Query("date")
	if raw == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date is required"))
		return
	}
	date, err := models.ParseDate(raw)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid date"))
		return
	}
	schedule, hit, err := h.service.DaySchedule(c.Request.Context(), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, schedule, nil, middleware.ExtractMeta(c))
}

// Create godoc
// @Summary Create booking
// @Tags Bookings
// @Accept json
// @Produce json
// @Param payload body service.CreateBookingRequest true "Booking payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /bookings [post]
func (h *BookingHandler) Create(c *gin.Context) {
	var req service.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	booking, err := h.service.Create(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, booking)
}

// CreateRecurring godoc
// @Summary Create recurring bookings
// @Description Conflicting dates after the first booking are skipped.
// @Tags Bookings
// @Accept json
// @Produce json
// @Param payload body service.CreateRecurringBookingsRequest true "Recurrence payload"
// @Success 201 {object} response.Envelope
// @Router /bookings/recurring [post]
func (h *BookingHandler) CreateRecurring(c *gin.Context) {
	var req service.CreateRecurringBookingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	bookings, err := h.service.CreateRecurring(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, bookings)
}

// Availability godoc
// @Summary Check whether a slot is free
// @Tags Bookings
// @Accept json
// @Produce json
// @Param payload body service.AvailabilityRequest true "Slot"
// @Success 200 {object} response.Envelope
// @Router /bookings/availability [post]
func (h *BookingHandler) Availability(c *gin.Context) {
	var req service.AvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.service.CheckAvailability(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Update godoc
// @Summary Update booking
// @Tags Bookings
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param payload body service.UpdateBookingRequest true "Changes"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bookings/{id} [put]
func (h *BookingHandler) Update(c *gin.Context) {
	var req service.UpdateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	booking, err := h.service.Update(c.Request.Context(), c.Param("id"), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if booking == nil {
		response.NotFound(c, "booking not found")
		return
	}
	response.JSON(c, http.StatusOK, booking, nil)
}

// Cancel godoc
// @Summary Cancel booking
// @Tags Bookings
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param payload body CancelBookingRequest false "Reason"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /bookings/{id}/cancel [post]
func (h *BookingHandler) Cancel(c *gin.Context) {
	var req CancelBookingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	cancelled, err := h.service.Cancel(c.Request.Context(), c.Param("id"), req.Reason, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if !cancelled {
		response.NotFound(c, "booking not found")
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"cancelled": true}, nil)
}

// Delete godoc
// @Summary Delete booking
// @Tags Bookings
// @Param id path string true "Booking ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /bookings/{id} [delete]
func (h *BookingHandler) Delete(c *gin.Context) {
	deleted, err := h.service.Delete(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if !deleted {
		response.NotFound(c, "booking not found")
		return
	}
	response.NoContent(c)
}

func optionalDateQuery(c *gin.Context, key string) (*models.Date, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	date, err := models.ParseDate(raw)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid "+key+" date")
	}
	return &date, nil
}
