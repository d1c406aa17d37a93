package api

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/fabricfleet/portctl/pkg/authz"
	"github.com/fabricfleet/portctl/pkg/change"
	"github.com/fabricfleet/portctl/pkg/inventory"
	"github.com/fabricfleet/portctl/pkg/orchestrator"
	"github.com/fabricfleet/portctl/pkg/store"
	"github.com/fabricfleet/portctl/pkg/version"
)

// Handler serves the port configuration API.
type Handler struct {
	orch    *orchestrator.Orchestrator
	inv     inventory.Source
	checker *authz.Checker
}

// NewHandler creates a handler over the orchestrator and inventory.
func NewHandler(orch *orchestrator.Orchestrator, inv inventory.Source) *Handler {
	return &Handler{orch: orch, inv: inv}
}

// UseAuthz enforces the given permission checker on every route. Without it
// the API runs open, relying on whatever fronts it.
func (h *Handler) UseAuthz(checker *authz.Checker) {
	h.checker = checker
}

// authorize checks the caller's permission and writes a 403 on denial. The
// caller identity comes from X-Remote-User, same as the audit principal.
func (h *Handler) authorize(c *gin.Context, perm authz.Permission, target *authz.Context) bool {
	if h.checker == nil {
		return true
	}
	if err := h.checker.CheckUser(principal(c), perm, target); err != nil {
		forbidden(c, err.Error())
		return false
	}
	return true
}

// Router builds the gin engine with all routes registered.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/", h.root)

	v1 := r.Group("/api/v1")
	v1.POST("/port/pre-check", h.preCheck)
	v1.POST("/port/configure", h.configure)
	v1.GET("/history", h.history)
	v1.POST("/rollback/:commit", h.rollback)
	v1.GET("/devices", h.devices)

	return r
}

func (h *Handler) root(c *gin.Context) {
	success(c, gin.H{
		"service": "port configuration API",
		"version": version.Version,
		"endpoints": gin.H{
			"pre_check": "/api/v1/port/pre-check",
			"configure": "/api/v1/port/configure",
			"history":   "/api/v1/history",
			"rollback":  "/api/v1/rollback/:commit",
			"devices":   "/api/v1/devices",
		},
	})
}

type preCheckRequest struct {
	Device    string `json:"device" binding:"required"`
	Interface string `json:"interface" binding:"required"`
}

func (h *Handler) preCheck(c *gin.Context) {
	var req preCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if !h.authorize(c, authz.PermPortPreCheck, &authz.Context{Device: req.Device, Interface: req.Interface}) {
		return
	}

	result, err := h.orch.PreCheck(c.Request.Context(), req.Device, req.Interface)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, result)
}

type configureRequest struct {
	Device      string `json:"device" binding:"required"`
	Interface   string `json:"interface" binding:"required"`
	Mode        string `json:"mode" binding:"required,oneof=access trunk"`
	VLAN        int    `json:"vlan" binding:"omitempty,min=1,max=4094"`
	Description string `json:"description"`
	VNI         int    `json:"vni" binding:"omitempty,min=1"`
	VRF         string `json:"vrf"`
}

func (h *Handler) configure(c *gin.Context) {
	var req configureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if !h.authorize(c, authz.PermPortConfigure, &authz.Context{Device: req.Device, Interface: req.Interface}) {
		return
	}

	result, err := h.orch.Configure(c.Request.Context(), &change.Request{
		Device:      req.Device,
		Interface:   req.Interface,
		Mode:        change.Mode(req.Mode),
		VLAN:        req.VLAN,
		Description: req.Description,
		VNI:         req.VNI,
		VRF:         req.VRF,
	}, principal(c))
	if err != nil {
		fail(c, err)
		return
	}

	success(c, gin.H{
		"state":          result.State,
		"commit_hash":    result.CommitID,
		"applied_config": result.Config.Text(),
		"apply":          result.Apply,
	})
}

func (h *Handler) history(c *gin.Context) {
	if !h.authorize(c, authz.PermHistoryView, nil) {
		return
	}

	limit := store.DefaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			badRequest(c, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := h.orch.History(c.Query("device"), limit)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, gin.H{"history": entries})
}

func (h *Handler) rollback(c *gin.Context) {
	if !h.authorize(c, authz.PermPortRollback, nil) {
		return
	}

	result, err := h.orch.Rollback(c.Request.Context(), c.Param("commit"), principal(c))
	if err != nil {
		fail(c, err)
		return
	}
	success(c, result)
}

func (h *Handler) devices(c *gin.Context) {
	if !h.authorize(c, authz.PermDeviceView, nil) {
		return
	}

	devices, err := h.inv.List()
	if err != nil {
		fail(c, err)
		return
	}
	success(c, gin.H{"devices": devices})
}

// principal identifies the caller for the audit trail. Deployments fronting
// this API with an auth proxy pass the identity through X-Remote-User.
func principal(c *gin.Context) string {
	if user := c.GetHeader("X-Remote-User"); user != "" {
		return user
	}
	return "api_user"
}
