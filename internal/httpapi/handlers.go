package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	goerrors "github.com/goliatone/go-errors"

	"firstview-tracker/internal/geo"
	"firstview-tracker/internal/viewport"
)

type sessionResponse struct {
	SignedIn bool   `json:"signedIn"`
	Account  string `json:"account,omitempty"`
}

type signInRequest struct {
	Account  string `json:"account"`
	Password string `json:"password"`
}

type planResponse struct {
	Action  string               `json:"action"`
	Applied bool                 `json:"applied"`
	Region  *geo.Region          `json:"region,omitempty"`
	Points  []geo.Point          `json:"points,omitempty"`
	Options *viewport.FitOptions `json:"options,omitempty"`
}

type errorResponse struct {
	Category string `json:"category"`
	Code     int    `json:"code"`
	TextCode string `json:"textCode,omitempty"`
	Message  string `json:"message"`
}

func GetSession(s SessionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, sessionResponse{SignedIn: s.SignedIn(), Account: s.Account()})
	}
}

// SignIn signs in and asks the tracker for fresh data.
func SignIn(s SessionService, t TrackerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req signInRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, goerrors.Wrap(err, goerrors.CategoryBadInput, "Invalid request body").
				WithCode(http.StatusBadRequest))
			return
		}
		if err := s.SignIn(r.Context(), req.Account, req.Password); err != nil {
			writeError(w, err)
			return
		}
		if t != nil {
			t.Refresh()
		}
		writeJSON(w, http.StatusOK, sessionResponse{SignedIn: true, Account: s.Account()})
	}
}

func SignOut(s SessionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.SignOut(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func GetRiders(t TrackerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, t.Snapshot())
	}
}

func Refresh(t TrackerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !t.Refresh() {
			writeError(w, goerrors.New("Tracker is not running", goerrors.CategoryConflict).
				WithCode(http.StatusConflict))
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func FocusRider(t TrackerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		plan, err := t.Focus(chi.URLParam(r, "riderID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPlanResponse(plan))
	}
}

func TrackVehicle(t TrackerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil {
			writeError(w, goerrors.New("Vehicle index must be a number", goerrors.CategoryBadInput).
				WithCode(http.StatusBadRequest))
			return
		}
		plan, err := t.TrackVehicle(chi.URLParam(r, "riderID"), index)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPlanResponse(plan))
	}
}

func GetViewport(v RegionSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if v == nil {
			writeJSON(w, http.StatusOK, viewport.InitialRegion)
			return
		}
		writeJSON(w, http.StatusOK, v.Region())
	}
}

func GetNotifications(n NotificationSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := n.GetNotifications(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func toPlanResponse(p viewport.Plan) planResponse {
	out := planResponse{Action: p.Action.String(), Applied: p.Applied}
	switch p.Action {
	case viewport.ActionAnimate:
		region := p.Region
		out.Region = &region
	case viewport.ActionFit:
		opts := p.Options
		out.Points = p.Points
		out.Options = &opts
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response error: %v", err)
	}
}

// writeError renders go-errors envelopes with their own code; anything else is a 500.
func writeError(w http.ResponseWriter, err error) {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		log.Printf("unhandled api error: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Category: string(goerrors.CategoryInternal),
			Code:     http.StatusInternalServerError,
			Message:  "Internal server error",
		})
		return
	}
	status := rich.Code
	if status < 400 || status > 599 {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, errorResponse{
		Category: string(rich.Category),
		Code:     status,
		TextCode: rich.TextCode,
		Message:  rich.Message,
	})
}
