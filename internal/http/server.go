package httpapp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/merchantops/merchantops/internal/admin"
	"github.com/merchantops/merchantops/internal/apperr"
	"github.com/merchantops/merchantops/internal/http/handlers"
)

const maxRequestIDLength = 128

// EchoServer is the HTTP server wrapper.
type EchoServer struct {
	h *handlers.Handlers
	e *echo.Echo

	mu     sync.Mutex
	server *http.Server
}

// NewEchoServer creates the admin API server.
func NewEchoServer(svc *admin.Service, logger *slog.Logger) (*EchoServer, error) {
	if svc == nil {
		return nil, errors.New("admin service is required")
	}
	e := echo.New()
	if logger != nil {
		e.Logger = logger
	}
	es := &EchoServer{h: &handlers.Handlers{Admin: svc}, e: e}
	e.HTTPErrorHandler = es.httpErrorHandler
	e.Use(middleware.Recover())
	e.Use(requestID)
	es.registerRoutes()
	return es, nil
}

func (es *EchoServer) registerRoutes() {
	es.e.GET("/healthz", es.h.HandleHealthz)

	es.e.POST("/organization", es.h.HandleOrganizationCreate)
	es.e.GET("/organization/:id", es.h.HandleOrganizationRetrieve)
	es.e.PUT("/organization/:id", es.h.HandleOrganizationUpdate)

	es.e.POST("/accounts", es.h.HandleMerchantCreate)
	es.e.GET("/accounts/list", es.h.HandleMerchantList)
	es.e.POST("/accounts/kv", es.h.HandleKVToggleAll)
	es.e.GET("/accounts/:id", es.h.HandleMerchantRetrieve)
	es.e.POST("/accounts/:id", es.h.HandleMerchantUpdate)
	es.e.DELETE("/accounts/:id", es.h.HandleMerchantDelete)
	es.e.POST("/accounts/:id/kv", es.h.HandleKVToggle)
	es.e.GET("/accounts/:id/kv", es.h.HandleKVStatus)

	account := es.e.Group("/account/:merchant_id")
	account.POST("/connectors", es.h.HandleConnectorCreate)
	account.GET("/connectors", es.h.HandleConnectorList)
	account.GET("/connectors/:mca_id", es.h.HandleConnectorRetrieve)
	account.POST("/connectors/:mca_id", es.h.HandleConnectorUpdate)
	account.DELETE("/connectors/:mca_id", es.h.HandleConnectorDelete)

	account.POST("/business_profile", es.h.HandleProfileCreate)
	account.GET("/business_profile", es.h.HandleProfileList)
	account.GET("/business_profile/:profile_id", es.h.HandleProfileRetrieve)
	account.POST("/business_profile/:profile_id", es.h.HandleProfileUpdate)
	account.DELETE("/business_profile/:profile_id", es.h.HandleProfileDelete)
	account.POST("/business_profile/:profile_id/toggle_extended_card_info", es.h.HandleToggleExtendedCardInfo)
	account.POST("/business_profile/:profile_id/toggle_connector_agnostic_mit", es.h.HandleToggleConnectorAgnosticMIT)
	account.GET("/business_profile/:profile_id/fallback_routing", es.h.HandleFallbackRoutingRetrieve)
	account.POST("/business_profile/:profile_id/fallback_routing", es.h.HandleFallbackRoutingUpdate)
	account.PATCH("/business_profile/:profile_id/activate_routing_algorithm", es.h.HandleActivateRoutingAlgorithm)
	account.GET("/business_profile/:profile_id/routing_algorithm", es.h.HandleRoutingAlgorithmRetrieve)

	es.e.GET("/routing/default", es.h.HandleDefaultRouting)
}

// requestID propagates X-Request-ID, generating one when the caller sent none.
func requestID(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		id := strings.TrimSpace(c.Request().Header.Get(echo.HeaderXRequestID))
		if id == "" || len(id) > maxRequestIDLength {
			id = uuid.NewString()
		}
		c.Set(handlers.ContextKeyRequestID, id)
		c.Response().Header().Set(echo.HeaderXRequestID, id)
		return next(c)
	}
}

func (es *EchoServer) httpErrorHandler(c *echo.Context, err error) {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		_ = es.h.RenderAppError(c, appErr)
		return
	}

	status := httpStatusFromError(err)
	switch {
	case status == http.StatusNotFound:
		_ = handlers.RenderNotFound(c)
	case status >= http.StatusInternalServerError:
		_ = es.h.RenderError(c, err)
	default:
		_ = c.String(status, http.StatusText(status))
	}
}

type statusCoder interface {
	StatusCode() int
}

func httpStatusFromError(err error) int {
	var sc statusCoder
	if errors.As(err, &sc) {
		if code := sc.StatusCode(); code != 0 {
			return code
		}
	}
	return http.StatusInternalServerError
}

// Handler exposes the router for tests and custom servers.
func (es *EchoServer) Handler() http.Handler {
	return es.e
}

// StartServer serves the API on server until it is shut down.
func (es *EchoServer) StartServer(server *http.Server) error {
	server.Handler = es.e
	es.mu.Lock()
	es.server = server
	es.mu.Unlock()
	return server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (es *EchoServer) Shutdown(ctx context.Context) error {
	es.mu.Lock()
	server := es.server
	es.mu.Unlock()
	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}
