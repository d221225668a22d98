package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"finitefield.org/storefront/internal/app"
	"finitefield.org/storefront/internal/domain"
	"finitefield.org/storefront/internal/editor"
	"finitefield.org/storefront/internal/platform/httpx"
	"finitefield.org/storefront/internal/platform/observability"
)

const maxActionBody = 64 << 10

var startTime = time.Now()

type handlers struct {
	ctrl Controller
}

func (h *handlers) healthz(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"uptime":    time.Since(startTime).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *handlers) catalog(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"data": h.ctrl.Products()})
}

func (h *handlers) destinations(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"data": h.ctrl.Destinations()})
}

func (h *handlers) state(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, h.ctrl.State())
}

func (h *handlers) actions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, maxActionBody)

	cmd, err := decodeCommand(r)
	if err != nil {
		var validation *domain.ValidationError
		if errors.As(err, &validation) {
			details := make(map[string]any, len(validation.Fields))
			for _, f := range validation.Fields {
				details[f.Field] = f.Reason
			}
			httpx.WriteError(ctx, w, httpx.NewError("invalid_form", "form fields are invalid", http.StatusUnprocessableEntity).
				WithDetails(map[string]any{"fields": details}))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	if !slices.Contains(h.ctrl.Actions(), cmd.Action) {
		httpx.WriteError(ctx, w, httpx.NewError("unknown_action", "unknown action "+strconv.Quote(string(cmd.Action)), http.StatusBadRequest))
		return
	}

	// Remote calls started by an action run to completion even if the client goes away;
	// the transport timeout is their only limit.
	out := h.ctrl.Dispatch(context.WithoutCancel(ctx), cmd)
	if out.Notice != nil && out.Notice.Level == app.LevelError {
		observability.FromContext(ctx).Sugar().Infow("action rejected", "action", cmd.Action, "notice", out.Notice.Message)
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// decodeCommand accepts a JSON command or an urlencoded form. Form submissions carry the
// editor fields flat alongside the action.
func decodeCommand(r *http.Request) (app.Command, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded":
		return decodeFormCommand(r)
	default:
		var cmd app.Command
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cmd); err != nil {
			if errors.Is(err, io.EOF) {
				return app.Command{}, errors.New("request body is empty")
			}
			return app.Command{}, errors.New("malformed JSON body")
		}
		cmd.Action = app.Action(strings.TrimSpace(string(cmd.Action)))
		return cmd, nil
	}
}

func decodeFormCommand(r *http.Request) (app.Command, error) {
	if err := r.ParseForm(); err != nil {
		return app.Command{}, errors.New("malformed form body")
	}
	cmd := app.Command{
		Action:      app.Action(strings.TrimSpace(r.PostForm.Get("action"))),
		ProductID:   strings.TrimSpace(r.PostForm.Get("product_id")),
		Destination: r.PostForm.Get("destination"),
	}
	if v := r.PostForm.Get("confirmed"); v != "" {
		confirmed, err := strconv.ParseBool(v)
		if err != nil {
			return app.Command{}, errors.New("confirmed must be a boolean")
		}
		cmd.Confirmed = confirmed
	}
	if cmd.Action == app.ActionEditorSubmit {
		form, err := editor.ParseForm(r.PostForm)
		if err != nil {
			return app.Command{}, err
		}
		cmd.Form = &form
	}
	return cmd, nil
}
