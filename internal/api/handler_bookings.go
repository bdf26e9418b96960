package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"plantops-backend/internal/booking"
	"plantops-backend/internal/mw"
)

type slotResponse struct {
	Slot  string `json:"slot"`
	Start int    `json:"start"`
	Limit *int   `json:"limit"`
}

// GetSlots returns the slot table, resolved for ?date= when given so the
// Saturday override is visible.
func (h *Handler) GetSlots(c *gin.Context) {
	table := h.bookings.Slots()
	day := h.bookings.Today()
	if raw := c.Query("date"); raw != "" {
		d, err := h.bookings.ParseDay(raw)
		if err != nil {
			respondError(c, err)
			return
		}
		day = d
	}

	out := make([]slotResponse, 0)
	for _, slot := range table.Slots() {
		cfg := table.Resolve(slot, day)
		out = append(out, slotResponse{Slot: slot, Start: cfg.Start, Limit: cfg.Limit})
	}
	c.JSON(http.StatusOK, out)
}

// ListBookings handles GET /api/bookings?date=&slot=&code=.
func (h *Handler) ListBookings(c *gin.Context) {
	bookings, err := h.bookings.List(c.Request.Context(), booking.ListFilter{
		Date: c.Query("date"),
		Slot: c.Query("slot"),
		Code: c.Query("code"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookings)
}

func (h *Handler) CreateBooking(c *gin.Context) {
	var in booking.AllocateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	b, err := h.bookings.Allocate(c.Request.Context(), in, mw.ActorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

func (h *Handler) GetBooking(c *gin.Context) {
	b, err := h.bookings.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// UpdateBooking applies a partial patch. The body is kept as a raw map so
// that an explicit empty string can clear a numeric field.
func (h *Handler) UpdateBooking(c *gin.Context) {
	var patch map[string]any
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, err)
		return
	}
	b, err := h.bookings.Update(c.Request.Context(), c.Param("id"), patch, mw.ActorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// CancelBooking soft-deletes a booking.
func (h *Handler) CancelBooking(c *gin.Context) {
	b, err := h.bookings.Remove(c.Request.Context(), c.Param("id"), mw.ActorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *Handler) PurgeBooking(c *gin.Context) {
	if err := h.bookings.Purge(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) CheckIn(c *gin.Context) {
	var in booking.CheckInInput
	if !bindOptional(c, &in) {
		return
	}
	b, err := h.bookings.CheckIn(c.Request.Context(), c.Param("id"), in, mw.ActorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *Handler) StartDrain(c *gin.Context) {
	b, err := h.bookings.StartDrain(c.Request.Context(), c.Param("id"), mw.ActorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

type stopDrainRequest struct {
	Note *string `json:"note"`
}

func (h *Handler) StopDrain(c *gin.Context) {
	var in stopDrainRequest
	if !bindOptional(c, &in) {
		return
	}
	b, err := h.bookings.StopDrain(c.Request.Context(), c.Param("id"), in.Note, mw.ActorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *Handler) WeighIn(c *gin.Context) {
	var in booking.WeighInInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	b, err := h.bookings.WeighIn(c.Request.Context(), c.Param("id"), in, mw.ActorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *Handler) WeighOut(c *gin.Context) {
	var in booking.WeighOutInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	b, err := h.bookings.WeighOut(c.Request.Context(), c.Param("id"), in, mw.ActorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// GetStats handles GET /api/bookings/stats?date=.
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.bookings.Stats(c.Request.Context(), c.Query("date"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) ListSamples(c *gin.Context) {
	samples, err := h.bookings.Samples(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, samples)
}

// SaveSample creates a sample, or updates the one named by the body's "id".
func (h *Handler) SaveSample(c *gin.Context) {
	var data map[string]any
	if err := c.ShouldBindJSON(&data); err != nil {
		badRequest(c, err)
		return
	}
	sample, err := h.bookings.SaveSample(c.Request.Context(), c.Param("id"), data)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sample)
}

func (h *Handler) DeleteSample(c *gin.Context) {
	if err := h.bookings.DeleteSample(c.Request.Context(), c.Param("id"), c.Param("sampleId")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// bindOptional decodes a JSON body when one was sent.
func bindOptional(c *gin.Context, v any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(v); err != nil {
		badRequest(c, err)
		return false
	}
	return true
}
