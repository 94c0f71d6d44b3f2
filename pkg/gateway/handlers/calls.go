package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Urzzard/Operador-IA/pkg/core"
	"github.com/Urzzard/Operador-IA/pkg/core/dialogue"
	"github.com/Urzzard/Operador-IA/pkg/gateway/archive"
	"github.com/Urzzard/Operador-IA/pkg/gateway/directory"
	"github.com/Urzzard/Operador-IA/pkg/gateway/lifecycle"
	"github.com/Urzzard/Operador-IA/pkg/gateway/media/calls"
	"github.com/Urzzard/Operador-IA/pkg/gateway/telephony"
)

const (
	maxCallRequestBytes = 4 << 10
	defaultRecentCalls  = 20
	maxRecentCalls      = 200
)

// Dialer places outbound calls.
type Dialer interface {
	PlaceCall(ctx context.Context, to string) (*telephony.Call, error)
}

// CallLister reports live calls.
type CallLister interface {
	List() []calls.Info
}

type placeCallRequest struct {
	Phone string `json:"phone"`
}

type employeeView struct {
	Name     string `json:"name"`
	JobTitle string `json:"job_title,omitempty"`
}

type placeCallResponse struct {
	CallSID  string        `json:"call_sid"`
	Status   string        `json:"status"`
	To       string        `json:"to"`
	From     string        `json:"from,omitempty"`
	Employee *employeeView `json:"employee,omitempty"`
}

// PlaceCallHandler handles POST /calls: it dials an employee from the
// directory. Unknown numbers are refused unless AllowUnknown is set.
type PlaceCallHandler struct {
	Dialer       Dialer
	Directory    directory.Resolver
	AllowUnknown bool
	Lifecycle    *lifecycle.Lifecycle
	Timeout      time.Duration
	Logger       *slog.Logger
}

func (h PlaceCallHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if h.Dialer == nil {
		writeCoreError(w, r, &core.Error{Type: core.ErrAPI, Message: "outbound calls are not configured", Code: "not_configured"}, http.StatusServiceUnavailable)
		return
	}
	if err := h.Lifecycle.Admit(); err != nil {
		writeCoreError(w, r, &core.Error{Type: core.ErrOverloaded, Message: err.Error(), Code: "draining"}, http.StatusServiceUnavailable)
		return
	}

	var req placeCallRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxCallRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeCoreError(w, r, core.NewInvalidRequestError("body must be a JSON object with a phone field"), http.StatusBadRequest)
		return
	}
	phone := directory.NormalizePhone(req.Phone)
	if len(phone) < 8 {
		writeCoreError(w, r, &core.Error{Type: core.ErrInvalidRequest, Message: "phone is required", Code: "invalid_phone"}, http.StatusBadRequest)
		return
	}

	var employee *dialogue.Employee
	if h.Directory != nil {
		e, err := h.Directory.Lookup(r.Context(), phone)
		switch {
		case err == nil:
			employee = &e
			// Dial the number as the directory has it.
			if e.Phone != "" {
				phone = directory.NormalizePhone(e.Phone)
			}
		case errors.Is(err, directory.ErrNotFound) && h.AllowUnknown:
		default:
			writeError(w, r, err)
			return
		}
	}

	ctx := r.Context()
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}
	call, err := h.Dialer.PlaceCall(ctx, phone)
	if err != nil {
		logger.Error("place call failed", "to", phone, "err", err)
		writeError(w, r, err)
		return
	}

	resp := placeCallResponse{CallSID: call.SID, Status: call.Status, To: call.To, From: call.From}
	if employee != nil {
		resp.Employee = &employeeView{Name: employee.Name, JobTitle: employee.JobTitle}
	}
	logger.Info("call placed", "call_sid", call.SID, "to", phone, "status", call.Status)

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(resp)
}

type activeCallView struct {
	CallSID   string    `json:"call_sid"`
	StreamSID string    `json:"stream_sid"`
	StartedAt time.Time `json:"started_at"`
}

type listCallsResponse struct {
	Active []activeCallView     `json:"active"`
	Recent []archive.CallRecord `json:"recent"`
}

// ListCallsHandler handles GET /calls: live calls plus the most recent
// archived ones (?limit=N).
type ListCallsHandler struct {
	Calls   CallLister
	Archive archive.Store
}

func (h ListCallsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentCalls
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeCoreError(w, r, &core.Error{Type: core.ErrInvalidRequest, Message: "limit must be a non-negative integer", Code: "invalid_limit"}, http.StatusBadRequest)
			return
		}
		limit = min(n, maxRecentCalls)
	}

	resp := listCallsResponse{Active: []activeCallView{}, Recent: []archive.CallRecord{}}
	if h.Calls != nil {
		for _, info := range h.Calls.List() {
			resp.Active = append(resp.Active, activeCallView{
				CallSID:   info.CallSID,
				StreamSID: info.StreamSID,
				StartedAt: info.StartedAt,
			})
		}
	}
	if h.Archive != nil && limit > 0 {
		recent, err := h.Archive.Recent(r.Context(), limit)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if recent != nil {
			resp.Recent = recent
		}
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// GetCallHandler handles GET /calls/{sid}: the archived record of one call.
type GetCallHandler struct {
	Archive archive.Store
}

func (h GetCallHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sid := strings.TrimSpace(r.PathValue("sid"))
	if sid == "" {
		writeCoreError(w, r, core.NewInvalidRequestError("call sid is required"), http.StatusBadRequest)
		return
	}
	if h.Archive == nil {
		writeError(w, r, archive.ErrNotFound)
		return
	}
	rec, err := h.Archive.Get(r.Context(), sid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(rec)
}
