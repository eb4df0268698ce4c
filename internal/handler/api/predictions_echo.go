package api

import (
	"errors"
	"net/http"

	"IndexPulse/internal/domain/errs"
	"IndexPulse/internal/domain/models"
	"IndexPulse/internal/service/ratelimit"
	"IndexPulse/internal/usecase"
	xhttp "IndexPulse/pkg/http"
	xlogger "IndexPulse/pkg/logger"
	"IndexPulse/pkg/queue"

	"github.com/labstack/echo/v4"
)

// Version is the served API version, stamped at build time.
var Version = "dev"

// PredictionsEchoHandler exposes the prediction API over Echo.
type PredictionsEchoHandler struct {
	logger   *xlogger.Logger
	svc      *usecase.PredictionService
	data     *usecase.MarketData
	jobQueue *queue.RedisQueue
	limiter  *ratelimit.Limiter
}

// NewPredictionsEchoHandler creates the handler. jobQueue may be nil
// when asynchronous training is disabled.
func NewPredictionsEchoHandler(logger *xlogger.Logger, svc *usecase.PredictionService, data *usecase.MarketData, jobQueue *queue.RedisQueue) *PredictionsEchoHandler {
	return &PredictionsEchoHandler{
		logger:   logger,
		svc:      svc,
		data:     data,
		jobQueue: jobQueue,
		limiter:  ratelimit.New(),
	}
}

func (h *PredictionsEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	g := e.Group("/api", ratelimit.Middleware(h.limiter, 20, 10))
	g.POST("/predict", h.Predict)
	g.GET("/model/info", h.ModelInfo)
	g.GET("/history", h.History)
	g.POST("/train", h.Train)
}

func (h *PredictionsEchoHandler) Predict(c echo.Context) error {
	req := &models.PredictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.svc.GetPrediction(c.Request().Context(), req.Symbols, req.Lookback)
	if err != nil {
		return h.errorResponse(c, "predict usecase error", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *PredictionsEchoHandler) ModelInfo(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.svc.ModelInfo())
}

// History returns the persisted loss record; ?last=N trims to the most
// recent N epochs.
func (h *PredictionsEchoHandler) History(c echo.Context) error {
	hist, err := h.svc.History()
	if err != nil {
		return xhttp.NotFoundResponse(c, "no training history available")
	}
	if last := xhttp.ParseIntDefault(c.QueryParam("last"), 0); last > 0 && last < len(hist.TrainLosses) {
		hist.TrainLosses = hist.TrainLosses[len(hist.TrainLosses)-last:]
		if last < len(hist.ValLosses) {
			hist.ValLosses = hist.ValLosses[len(hist.ValLosses)-last:]
		}
	}
	return xhttp.SuccessResponse(c, hist)
}

func (h *PredictionsEchoHandler) Train(c echo.Context) error {
	if h.jobQueue == nil {
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, "training queue disabled")
	}
	req := &models.TrainRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	err := h.jobQueue.Enqueue(c.Request().Context(), usecase.TrainJobType, map[string]interface{}{
		"symbols": req.Symbols,
		"from":    req.From,
		"to":      req.To,
	})
	if err != nil {
		h.logger.Error("train enqueue error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.DataResponse(c, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (h *PredictionsEchoHandler) Health(c echo.Context) error {
	status := models.HealthStatus{
		Status:      "ok",
		ModelLoaded: h.svc.ModelInfo().ModelExists,
		Storage:     "ok",
		Version:     Version,
	}
	if err := h.data.Health(c.Request().Context()); err != nil {
		status.Status = "degraded"
		status.Storage = err.Error()
	}
	return xhttp.SuccessResponse(c, status)
}

func (h *PredictionsEchoHandler) errorResponse(c echo.Context, msg string, err error) error {
	var (
		invalid      *errs.InvalidInputError
		insufficient *errs.InsufficientDataError
		noData       *errs.NoDataError
		notFitted    *errs.NotFittedError
	)
	switch {
	case errors.As(err, &invalid), errors.As(err, &insufficient), errors.As(err, &notFitted):
		return xhttp.BadRequestResponse(c, err.Error())
	case errors.As(err, &noData):
		return xhttp.NotFoundResponse(c, err.Error())
	default:
		h.logger.Error(msg, xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
}

var _ xhttp.Handler = (*PredictionsEchoHandler)(nil)
