package api

import (
	"net/http"
	"time"

	"github.com/bjo163/wagate/internal/gateway"
	"github.com/bjo163/wagate/internal/webserver"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

var mgr *gateway.Manager

// Register wires the gateway routes onto the web server
func Register(m *gateway.Manager) {
	mgr = m
	webserver.ApiGET("/health", getHealth)
	webserver.ApiGET("/qr", getQR)
	webserver.ApiGET("/status", getStatus)
	webserver.ApiGET("/instances", listInstances)
	webserver.ApiGET("/messages", listMessages)
	webserver.ApiPOST("/send-message", postSendMessage)
	webserver.ApiDELETE("/disconnect", deleteDisconnect)
	webserver.ApiPOST("/tenants", postTenant)
}

func getHealth(c echo.Context) error {
	return ok(c, map[string]interface{}{
		"status":        "up",
		"live_sessions": mgr.LiveCount(),
		"time":          time.Now(),
	})
}

// getQR starts or resumes a session for the tenant token and returns
// either a QR image to scan or the already-connected identity.
func getQR(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "token query parameter is required", nil)
	}
	res, err := mgr.CreateOrResume(c.Request().Context(), token)
	if err != nil {
		zap.L().Warn("pairing request failed",
			zap.String("namespace", "api"),
			zap.String("token", token),
			zap.Error(err))
		return failFromError(c, err)
	}
	return ok(c, res)
}

func getStatus(c echo.Context) error {
	token := c.QueryParam("token")
	instanceID := c.QueryParam("instance_id")
	snap, err := mgr.GetStatus(c.Request().Context(), token, instanceID)
	if err != nil {
		return failFromError(c, err)
	}
	return ok(c, map[string]interface{}{
		"instance_id": snap.Key.InstanceID,
		"status":      snap.Status,
		"qr":          snap.QR,
		"identity":    snap.Identity,
	})
}

func listInstances(c echo.Context) error {
	token := c.QueryParam("token")
	views, err := mgr.ListInstances(c.Request().Context(), token)
	if err != nil {
		return failFromError(c, err)
	}
	return ok(c, map[string]interface{}{"instances": views})
}

func listMessages(c echo.Context) error {
	token := c.QueryParam("token")
	instanceID := c.QueryParam("instance_id")
	limit, offset := parsePagination(c)
	msgs, total, err := mgr.Messages(c.Request().Context(), token, instanceID, limit, offset)
	if err != nil {
		return failFromError(c, err)
	}
	return ok(c, map[string]interface{}{
		"messages": msgs,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

type sendMessageRequest struct {
	Token      string `json:"token" validate:"required"`
	InstanceID string `json:"instance_id"`
	Number     string `json:"number" validate:"required"`
	Message    string `json:"message" validate:"required"`
}

func postSendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body", err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "missing required fields", err.Error())
	}
	if req.InstanceID == "" {
		req.InstanceID = "default"
	}
	if err := mgr.Send(c.Request().Context(), req.Token, req.InstanceID, req.Number, req.Message); err != nil {
		return failFromError(c, err)
	}
	return ok(c, map[string]interface{}{"sent": true})
}

func deleteDisconnect(c echo.Context) error {
	token := c.QueryParam("token")
	instanceID := c.QueryParam("instance_id")
	if err := mgr.Disconnect(c.Request().Context(), token, instanceID); err != nil {
		return failFromError(c, err)
	}
	return ok(c, map[string]interface{}{"disconnected": true})
}

type tenantRequest struct {
	Token string `json:"token" validate:"required"`
	Name  string `json:"name"`
}

func postTenant(c echo.Context) error {
	var req tenantRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body", err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "missing required fields", err.Error())
	}
	id, err := mgr.RegisterTenant(c.Request().Context(), req.Token, req.Name)
	if err != nil {
		return failFromError(c, err)
	}
	return ok(c, map[string]interface{}{"id": id})
}
