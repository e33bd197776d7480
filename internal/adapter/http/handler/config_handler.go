package handler

import (
	"marketplace-payouts/internal/adapter/http/dto"
	"marketplace-payouts/internal/core/ports"
	"marketplace-payouts/pkg/apperror"
	"marketplace-payouts/pkg/response"

	"github.com/gin-gonic/gin"
)

// ConfigHandler serves the payout configuration to admins.
type ConfigHandler struct {
	configSvc ports.ConfigService
}

func NewConfigHandler(configSvc ports.ConfigService) *ConfigHandler {
	return &ConfigHandler{configSvc: configSvc}
}

// Get handles GET /api/v1/admin/payout-config.
func (h *ConfigHandler) Get(c *gin.Context) {
	cfg, err := h.configSvc.GetActive(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, cfg)
}

// Update handles PUT /api/v1/admin/payout-config. The new row replaces the
// active one; history is kept.
func (h *ConfigHandler) Update(c *gin.Context) {
	admin, ok := actor(c)
	if !ok {
		return
	}

	var req dto.PayoutConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	cfg, err := req.ToConfig()
	if err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	active, err := h.configSvc.Update(c.Request.Context(), admin, cfg)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, active)
}
