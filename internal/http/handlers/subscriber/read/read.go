// Package read реализует HTTP-обработчик, отдающий снимок подписчика по chat_id.
package read

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/subscription-bot/internal/http/response"
	"github.com/magabrotheeeer/subscription-bot/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-bot/internal/models"
)

// Service читает подписчика.
type Service interface {
	Subscriber(ctx context.Context, chatID int64) (models.Subscriber, error)
}

type request struct {
	ChatID int64 `validate:"required,gt=0"`
}

// Handler обрабатывает GET /api/v1/subscribers/{chatID}.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создаёт обработчик.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscriber.read"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	chatID, err := strconv.ParseInt(chi.URLParam(r, "chatID"), 10, 64)
	if err != nil {
		log.Warn("failed to decode chat id from url", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("failed to decode chat id from url"))
		return
	}

	req := request{ChatID: chatID}
	if err := h.validate.Struct(req); err != nil {
		validateErr, ok := err.(validator.ValidationErrors)
		if !ok {
			log.Error("unexpected validation error", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal error"))
			return
		}
		log.Warn("invalid request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.ValidationError(validateErr))
		return
	}

	sub, err := h.service.Subscriber(r.Context(), req.ChatID)
	if err != nil {
		log.Error("failed to read subscriber", sl.ChatID(req.ChatID), sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read subscriber"))
		return
	}

	log.Debug("subscriber read", sl.ChatID(req.ChatID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"subscriber": sub,
	}))
}
