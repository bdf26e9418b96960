package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"plantops-backend/internal/approval"
	"plantops-backend/internal/auth"
	"plantops-backend/internal/mw"
)

type remarkRequest struct {
	Remark *string `json:"remark"`
	Reason *string `json:"reason"`
}

// text returns the remark, falling back to reason.
func (r remarkRequest) text() string {
	switch {
	case r.Remark != nil:
		return *r.Remark
	case r.Reason != nil:
		return *r.Reason
	}
	return ""
}

func (r remarkRequest) optional() *string {
	if t := r.text(); t != "" {
		return &t
	}
	return nil
}

func auditOf(c *gin.Context) approval.Audit {
	return approval.Audit{IPAddress: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}

func (h *Handler) CreateApproval(c *gin.Context) {
	var in approval.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	req, err := h.approvals.Create(c.Request.Context(), mw.ActorFrom(c), in, auditOf(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, req)
}

// ListApprovals handles GET /api/approvals?status=&entityType=&includeDeleted=.
func (h *Handler) ListApprovals(c *gin.Context) {
	list, err := h.approvals.FindAll(c.Request.Context(), approval.Filter{
		Status:         c.Query("status"),
		EntityType:     c.Query("entityType"),
		IncludeDeleted: c.Query("includeDeleted") == "true",
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) MyApprovals(c *gin.Context) {
	list, err := h.approvals.FindMine(c.Request.Context(), mw.ActorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// GetApproval returns a request with its audit trail. Requesters may read
// their own requests without approvals:view.
func (h *Handler) GetApproval(c *gin.Context) {
	req, err := h.approvals.FindOne(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	actor := mw.ActorFrom(c)
	if !h.authz.IsRequester(actor, req.RequesterID) && !h.authz.IsAuthorized(actor, auth.ActionApprovalsView) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "missing permission " + auth.ActionApprovalsView})
		return
	}
	c.JSON(http.StatusOK, req)
}

func (h *Handler) ApprovalHistory(c *gin.Context) {
	logs, err := h.approvals.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

// actOnApproval binds the optional remark body and runs one transition.
func (h *Handler) actOnApproval(c *gin.Context, act func(*gin.Context, remarkRequest) (any, error)) {
	var body remarkRequest
	if !bindOptional(c, &body) {
		return
	}
	out, err := act(c, body)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) ApproveApproval(c *gin.Context) {
	h.actOnApproval(c, func(c *gin.Context, body remarkRequest) (any, error) {
		return h.approvals.Approve(c.Request.Context(), c.Param("id"), mw.ActorFrom(c), body.optional(), auditOf(c))
	})
}

func (h *Handler) RejectApproval(c *gin.Context) {
	h.actOnApproval(c, func(c *gin.Context, body remarkRequest) (any, error) {
		return h.approvals.Reject(c.Request.Context(), c.Param("id"), mw.ActorFrom(c), body.text(), auditOf(c))
	})
}

func (h *Handler) ReturnApproval(c *gin.Context) {
	h.actOnApproval(c, func(c *gin.Context, body remarkRequest) (any, error) {
		return h.approvals.Return(c.Request.Context(), c.Param("id"), mw.ActorFrom(c), body.text(), auditOf(c))
	})
}

func (h *Handler) CancelApproval(c *gin.Context) {
	h.actOnApproval(c, func(c *gin.Context, body remarkRequest) (any, error) {
		return h.approvals.Cancel(c.Request.Context(), c.Param("id"), mw.ActorFrom(c), body.optional(), auditOf(c))
	})
}

func (h *Handler) VoidApproval(c *gin.Context) {
	h.actOnApproval(c, func(c *gin.Context, body remarkRequest) (any, error) {
		return h.approvals.Void(c.Request.Context(), c.Param("id"), mw.ActorFrom(c), body.text(), auditOf(c))
	})
}

func (h *Handler) DeleteApproval(c *gin.Context) {
	req, err := h.approvals.SoftDelete(c.Request.Context(), c.Param("id"), mw.ActorFrom(c), auditOf(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}
