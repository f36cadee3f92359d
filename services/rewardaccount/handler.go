package rewardaccount

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"rewardvault/pkg/db/pagination"
	"rewardvault/pkg/errutil"
	"rewardvault/pkg/middleware"
	"rewardvault/services/audit"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

const maxBulkItems = 500

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func RegisterRoutes(r *gin.Engine, h *Handler) {
	h.Register(r)
}

func (h *Handler) Register(r gin.IRouter) {
	g := r.Group("/v1/reward-accounts", middleware.Actor())

	g.POST("", h.create)
	g.GET("", h.list)
	g.POST("/bulk", h.bulkCreate)
	g.POST("/bulk/status", h.bulkUpdateStatus)
	g.GET("/assignable", h.assignable)
	g.POST("/expire", h.markExpired)

	g.GET("/:id", h.get)
	g.PATCH("/:id", h.update)
	g.DELETE("/:id", h.delete)
	g.POST("/:id/credentials", h.credentials)
	g.PUT("/:id/credentials", h.rotateCredentials)
	g.POST("/:id/assign", h.assign)
	g.POST("/:id/unassign", h.unassign)
	g.POST("/:id/deactivate", h.deactivate)
	g.POST("/:id/reactivate", h.reactivate)
	g.GET("/:id/validate-assignment", h.validateAssignment)
	g.GET("/:id/audit", h.auditLog)
}

func actor(c *gin.Context) string {
	return middleware.ActorFrom(c.Request.Context())
}

func pathID(c *gin.Context) (snowflake.ID, bool) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil || id <= 0 {
		_ = c.Error(errutil.BadRequest("invalid reward account id", err))
		return 0, false
	}
	return id, true
}

func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return false
	}
	return true
}

// bindOptionalJSON accepts an empty body.
func bindOptionalJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return false
	}
	return true
}

func (h *Handler) create(c *gin.Context) {
	var in CreateInput
	if !bindJSON(c, &in) {
		return
	}
	in.CreatedBy = actor(c)

	acc, err := h.svc.Create(c.Request.Context(), in)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, acc)
}

type bulkCreateRequest struct {
	Items []CreateInput `json:"items"`
}

func (h *Handler) bulkCreate(c *gin.Context) {
	var req bulkCreateRequest
	if !bindJSON(c, &req) {
		return
	}
	if len(req.Items) == 0 || len(req.Items) > maxBulkItems {
		_ = c.Error(errutil.ValidationFailed("invalid input", nil,
			errutil.WithDetails(errutil.Detail{Field: "items", Message: "must hold between 1 and " + strconv.Itoa(maxBulkItems) + " items"}),
		))
		return
	}

	by := actor(c)
	for i := range req.Items {
		req.Items[i].CreatedBy = by
	}

	c.JSON(http.StatusOK, h.svc.BulkCreate(c.Request.Context(), req.Items))
}

type bulkStatusRequest struct {
	IDs    []snowflake.ID `json:"ids"`
	Status Status         `json:"status"`
}

func (h *Handler) bulkUpdateStatus(c *gin.Context) {
	var req bulkStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	if len(req.IDs) == 0 || len(req.IDs) > maxBulkItems {
		_ = c.Error(errutil.ValidationFailed("invalid input", nil,
			errutil.WithDetails(errutil.Detail{Field: "ids", Message: "must hold between 1 and " + strconv.Itoa(maxBulkItems) + " ids"}),
		))
		return
	}

	res, err := h.svc.BulkUpdateStatus(c.Request.Context(), req.IDs, req.Status, actor(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) list(c *gin.Context) {
	var (
		f    Filters
		page pagination.Page
		sort Sort
	)
	if err := c.ShouldBindQuery(&f); err != nil {
		_ = c.Error(errutil.BadRequest("invalid query", err))
		return
	}
	if err := c.ShouldBindQuery(&page); err != nil {
		_ = c.Error(errutil.BadRequest("invalid query", err))
		return
	}
	if err := c.ShouldBindQuery(&sort); err != nil {
		_ = c.Error(errutil.BadRequest("invalid query", err))
		return
	}

	res, err := h.svc.GetAccounts(c.Request.Context(), f, page, sort)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) assignable(c *gin.Context) {
	var category *Category
	if v := c.Query("category"); v != "" {
		cat := Category(v)
		category = &cat
	}

	items, err := h.svc.GetAssignableRewards(c.Request.Context(), category)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) markExpired(c *gin.Context) {
	n, err := h.svc.MarkExpired(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"expired": n})
}

func (h *Handler) get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	acc, err := h.svc.GetByID(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, acc)
}

func (h *Handler) update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var in UpdateInput
	if !bindJSON(c, &in) {
		return
	}

	acc, err := h.svc.Update(c.Request.Context(), id, in, actor(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, acc)
}

func (h *Handler) delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), id, actor(c)); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

type credentialsRequest struct {
	AccessReason string `json:"access_reason"`
}

func (h *Handler) credentials(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req credentialsRequest
	if !bindJSON(c, &req) {
		return
	}

	view, err := h.svc.GetWithCredentials(c.Request.Context(), id, req.AccessReason, actor(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, view)
}

type rotateRequest struct {
	Credentials string `json:"credentials"`
	Reason      string `json:"reason"`
}

func (h *Handler) rotateCredentials(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req rotateRequest
	if !bindJSON(c, &req) {
		return
	}

	acc, err := h.svc.RotateCredentials(c.Request.Context(), id, req.Credentials, actor(c), req.Reason)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, acc)
}

type assignRequest struct {
	SubmissionID int64  `json:"submission_id"`
	Notes        string `json:"notes"`
}

func (h *Handler) assign(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req assignRequest
	if !bindJSON(c, &req) {
		return
	}

	acc, err := h.svc.Assign(c.Request.Context(), AssignInput{
		RewardAccountID: id,
		SubmissionID:    req.SubmissionID,
		AssignedBy:      actor(c),
		Notes:           req.Notes,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, acc)
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) unassign(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req reasonRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	acc, err := h.svc.Unassign(c.Request.Context(), id, actor(c), req.Reason)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, acc)
}

func (h *Handler) deactivate(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	acc, err := h.svc.Deactivate(c.Request.Context(), id, actor(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, acc)
}

func (h *Handler) reactivate(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	acc, err := h.svc.Reactivate(c.Request.Context(), id, actor(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, acc)
}

func (h *Handler) validateAssignment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	submissionID, err := strconv.ParseInt(c.Query("submission_id"), 10, 64)
	if err != nil || submissionID <= 0 {
		_ = c.Error(errutil.BadRequest("invalid submission_id", err))
		return
	}

	res, err := h.svc.ValidateAssignment(c.Request.Context(), id, submissionID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) auditLog(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var page pagination.Page
	if err := c.ShouldBindQuery(&page); err != nil {
		_ = c.Error(errutil.BadRequest("invalid query", err))
		return
	}

	entries, info, err := h.svc.AuditLog(c.Request.Context(), id, audit.Action(c.Query("action")), page)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": entries, "page_info": info})
}
