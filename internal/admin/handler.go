package admin

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/karlutxo/zk-tools/internal/auth"
	"github.com/karlutxo/zk-tools/internal/employee"
	"github.com/karlutxo/zk-tools/internal/exchange"
	"github.com/karlutxo/zk-tools/internal/terminal"
	dErrors "github.com/karlutxo/zk-tools/pkg/domain-errors"
	"github.com/karlutxo/zk-tools/pkg/httputil"
)

// Import uploads are employee lists, not media; 10 MiB is generous.
const maxImportBytes = 10 << 20

// asUnavailable marks uncoded errors (device connectivity, mostly) as
// unavailable; errors the service already coded pass through untouched.
func asUnavailable(err error, message string) error {
	if dErrors.CodeOf(err) != dErrors.CodeInternal {
		return err
	}
	return dErrors.Wrap(dErrors.CodeUnavailable, message, err)
}

// Handler wires the admin API endpoints to the admin service.
type Handler struct {
	service *Service
	auth    *auth.Service
	logger  *slog.Logger
}

func NewHandler(service *Service, authService *auth.Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		auth:    authService,
		logger:  logger,
	}
}

// RegisterPublic mounts the endpoints reachable without a session.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/auth/login", h.HandleLogin)
}

// Register mounts the admin API on the (authenticated) router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/terminals", h.HandleKnownTerminals)
	r.Get("/terminals/status", h.HandleStatus)
	r.Post("/terminals/sync-clock", h.HandleSyncClock)
	r.Post("/terminals/copy-cards", h.HandleCopyCards)
	r.Post("/terminals/update-card", h.HandleUpdateCard)

	r.Get("/employees", h.HandleEmployees)
	r.Get("/employees/duplicates", h.HandleDuplicates)
	r.Post("/employees/fetch", h.HandleFetch)
	r.Post("/employees/import", h.HandleImport)
	r.Post("/employees/select", h.HandleSelect)
	r.Post("/employees/push", h.HandlePush)
	r.Post("/employees/delete", h.HandleDelete)
	r.Post("/employees/export", h.HandleExport)
	r.Post("/employees/cards", h.HandlePushCards)

	r.Post("/cache/clear", h.HandleClear)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	req, err := httputil.Decode[loginRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	token, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		h.logger.WarnContext(r.Context(), "login rejected", "username", req.Username)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *Handler) HandleKnownTerminals(w http.ResponseWriter, r *http.Request) {
	terminals := h.service.KnownTerminals()
	if terminals == nil {
		terminals = []terminal.KnownTerminal{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"terminals": terminals})
}

type employeesResponse struct {
	Source        string              `json:"source"`
	Employees     []employee.Employee `json:"employees"`
	Selected      []string            `json:"selected"`
	Total         int                 `json:"total"`
	SelectedCount int                 `json:"selected_count"`
}

func (h *Handler) HandleEmployees(w http.ResponseWriter, r *http.Request) {
	src, err := h.service.ResolveSource(r.URL.Query().Get("source"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	expand, _ := strconv.ParseBool(r.URL.Query().Get("expand"))

	employees, selected, err := h.service.View(r.Context(), src, expand)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, employeesResponse{
		Source:        src.Key,
		Employees:     employees,
		Selected:      selected,
		Total:         len(employees),
		SelectedCount: len(selected),
	})
}

type fetchRequest struct {
	Source       string `json:"source"`
	ForceRefresh bool   `json:"force_refresh"`
}

func (h *Handler) HandleFetch(w http.ResponseWriter, r *http.Request) {
	req, err := httputil.Decode[fetchRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	src, err := h.service.ResolveSource(req.Source)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	employees, err := h.service.Fetch(r.Context(), src, req.ForceRefresh)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "fetch failed", "source", src.Key, "error", err.Error())
		httputil.WriteError(w, asUnavailable(err, fmt.Sprintf("could not fetch employees from %s", src.Key)))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"source":    src.Key,
		"employees": employees,
		"count":     len(employees),
	})
}

func (h *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxImportBytes); err != nil {
		httputil.WriteError(w, dErrors.Wrap(dErrors.CodeBadRequest, "invalid multipart upload", err))
		return
	}
	src, err := h.service.ResolveSource(r.FormValue("source"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(dErrors.CodeBadRequest, "an employee file is required", err))
		return
	}
	defer file.Close()
	payload, err := io.ReadAll(file)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(dErrors.CodeBadRequest, "could not read the uploaded file", err))
		return
	}

	employees, err := h.service.Import(r.Context(), src, header.Filename, payload)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"source":    src.Key,
		"employees": employees,
		"count":     len(employees),
	})
}

type selectRequest struct {
	Source string   `json:"source"`
	UIDs   []string `json:"uids"`
}

func (h *Handler) HandleSelect(w http.ResponseWriter, r *http.Request) {
	req, err := httputil.Decode[selectRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	src, err := h.service.ResolveSource(req.Source)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.service.Select(src, req.UIDs)
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"selected_count": len(req.UIDs)})
}

func (h *Handler) HandleDuplicates(w http.ResponseWriter, r *http.Request) {
	src, err := h.service.ResolveSource(r.URL.Query().Get("source"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	duplicates := h.service.Duplicates(src)
	if duplicates == nil {
		duplicates = []employee.Employee{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"employees": duplicates,
		"count":     len(duplicates),
	})
}

type batchRequest struct {
	Source string   `json:"source"`
	UIDs   []string `json:"uids"`
}

func (h *Handler) HandlePush(w http.ResponseWriter, r *http.Request) {
	req, err := httputil.Decode[batchRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	src, err := h.service.ResolveSource(req.Source)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	uploaded, opErrors, err := h.service.Push(r.Context(), src, req.UIDs)
	h.writeBatchResult(w, r, "uploaded", src, uploaded, opErrors, err)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	req, err := httputil.Decode[batchRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	src, err := h.service.ResolveSource(req.Source)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	deleted, opErrors, err := h.service.Delete(r.Context(), src, req.UIDs)
	h.writeBatchResult(w, r, "deleted", src, deleted, opErrors, err)
}

// writeBatchResult renders the partial-success shape shared by push and
// delete: the succeeded uids, the per-record failures and a one-line
// summary.
func (h *Handler) writeBatchResult(w http.ResponseWriter, r *http.Request, verb string, src Source, done []string, opErrors []terminal.OpError, err error) {
	if err != nil {
		h.logger.ErrorContext(r.Context(), verb+" failed", "source", src.Key, "error", err.Error())
		httputil.WriteError(w, asUnavailable(err, fmt.Sprintf("could not reach terminal %s", src.Key)))
		return
	}
	if done == nil {
		done = []string{}
	}
	if opErrors == nil {
		opErrors = []terminal.OpError{}
	}
	message := fmt.Sprintf("%d %s", len(done), verb)
	if len(opErrors) > 0 {
		message = fmt.Sprintf("%d %s, %d failed", len(done), verb, len(opErrors))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		verb:      done,
		"errors":  opErrors,
		"message": message,
	})
}

type exportRequest struct {
	Source string   `json:"source"`
	UIDs   []string `json:"uids"`
	Format string   `json:"format"`
}

func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	req, err := httputil.Decode[exportRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	src, err := h.service.ResolveSource(req.Source)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	file, err := h.service.Export(r.Context(), src, req.UIDs, exchange.Format(req.Format))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(file.Data)
}

type clearRequest struct {
	Source string `json:"source"`
	All    bool   `json:"all"`
}

func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	req, err := httputil.Decode[clearRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.All {
		h.service.ClearAll(r.Context())
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"cleared": "all"})
		return
	}
	src, err := h.service.ResolveSource(req.Source)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	removed := h.service.Clear(r.Context(), src)
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"cleared": src.Key, "count": removed})
}

func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	src, err := h.service.ResolveSource(r.URL.Query().Get("source"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	report, err := h.service.Status(r.Context(), src)
	if err != nil {
		httputil.WriteError(w, asUnavailable(err, fmt.Sprintf("could not reach terminal %s", src.Key)))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

type syncClockRequest struct {
	Source   string `json:"source"`
	All      bool   `json:"all"`
	ReadOnly bool   `json:"read_only"`
}

func (h *Handler) HandleSyncClock(w http.ResponseWriter, r *http.Request) {
	req, err := httputil.Decode[syncClockRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.All {
		reports, err := h.service.SyncAllClocks(r.Context(), req.ReadOnly)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"reports": reports})
		return
	}
	src, err := h.service.ResolveSource(req.Source)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	report, err := h.service.SyncClock(r.Context(), src, req.ReadOnly)
	if err != nil {
		httputil.WriteError(w, asUnavailable(err, fmt.Sprintf("could not sync clock of %s", src.Key)))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

type copyCardsRequest struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

func (h *Handler) HandleCopyCards(w http.ResponseWriter, r *http.Request) {
	req, err := httputil.Decode[copyCardsRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	src, err := h.service.ResolveSource(req.Source)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	dst, err := h.service.ResolveSource(req.Destination)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	updated, err := h.service.CopyCards(r.Context(), src, dst)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"updated": updated})
}

type updateCardRequest struct {
	Source string `json:"source"`
	UserID string `json:"user_id"`
	Card   string `json:"card"`
}

func (h *Handler) HandleUpdateCard(w http.ResponseWriter, r *http.Request) {
	req, err := httputil.Decode[updateCardRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	src, err := h.service.ResolveSource(req.Source)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	changed, opErrors, err := h.service.UpdateCard(r.Context(), src, req.UserID, req.Card)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if opErrors == nil {
		opErrors = []terminal.OpError{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"changed": changed, "errors": opErrors})
}

func (h *Handler) HandlePushCards(w http.ResponseWriter, r *http.Request) {
	req, err := httputil.Decode[batchRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	src, err := h.service.ResolveSource(req.Source)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	updated, opErrors, err := h.service.PushCards(r.Context(), src, req.UIDs)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if opErrors == nil {
		opErrors = []terminal.OpError{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"updated": updated, "errors": opErrors})
}
