package api

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-occupancy/internal/occupancy"
	"github.com/nerrad567/gray-logic-occupancy/internal/panel"
)

// LegacySeat is one row of the /api/attendance response.
type LegacySeat struct {
	Name        string           `json:"name"`
	Status      occupancy.Status `json:"status"`
	StatusText  string           `json:"status_text"`
	LastPresent string           `json:"last_present_time"`
}

// LegacyAttendance is the /api/attendance response. Times use the board's
// display format; a seat never seen shows "----".
type LegacyAttendance struct {
	Seats      []LegacySeat `json:"seats"`
	SearchTime string       `json:"search_time"`
	QueryTime  time.Time    `json:"query_time"`
}

// UpdateAddressRequest is the JSON body accepted by /update_address.
type UpdateAddressRequest struct {
	Name       string `json:"name"`
	NewAddress string `json:"new_address"`
}

// handleSnapshot returns the full occupancy table.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.readSnapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleLegacyAttendance returns the snapshot in the shape older board clients expect.
func (s *Server) handleLegacyAttendance(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.readSnapshot(w, r)
	if !ok {
		return
	}

	board := s.renderer.NewBoard(snap)
	resp := LegacyAttendance{
		Seats:      make([]LegacySeat, 0, len(board.Rows)),
		SearchTime: board.QueryTime,
		QueryTime:  snap.QueryTime,
	}
	for i, row := range board.Rows {
		resp.Seats = append(resp.Seats, LegacySeat{
			Name:        row.Name,
			Status:      snap.Seats[i].Status,
			StatusText:  row.Display,
			LastPresent: row.LastPresent,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleIndex renders the attendance board.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.readSnapshot(w, r)
	if !ok {
		return
	}
	if err := s.renderer.RenderAttendance(w, snap); err != nil {
		s.logger.Error("rendering attendance board", "error", err)
		writeInternalError(w, "failed to render page")
	}
}

// handleEditForm renders the address editing form.
func (s *Server) handleEditForm(w http.ResponseWriter, r *http.Request) {
	names, err := s.admin.ListNames(r.Context())
	if err != nil {
		s.logger.Error("listing seat names", "error", err)
		writeUnavailable(w, "seat list unavailable")
		return
	}
	if err := s.renderer.RenderEdit(w, names); err != nil {
		s.logger.Error("rendering edit form", "error", err)
		writeInternalError(w, "failed to render page")
	}
}

// handleUpdateAddress overwrites a seat's device address.
//
// Form posts redirect back to the board (or the form, if the seat is
// unknown). JSON posts get a JSON reply. The address format is not
// validated; an empty address clears the registration.
func (s *Server) handleUpdateAddress(w http.ResponseWriter, r *http.Request) {
	isJSON := isJSONRequest(r)

	var req UpdateAddressRequest
	if isJSON {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid JSON body")
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			writeBadRequest(w, "invalid form body")
			return
		}
		req.Name = r.PostForm.Get("name")
		req.NewAddress = r.PostForm.Get("new_address")
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeBadRequest(w, "name is required")
		return
	}

	err := s.admin.UpdateAddress(r.Context(), req.Name, req.NewAddress)
	switch {
	case errors.Is(err, occupancy.ErrSeatNotFound):
		if isJSON {
			writeNotFound(w, "seat not found")
		} else {
			http.Redirect(w, r, "/edit", http.StatusSeeOther)
		}
		return
	case err != nil:
		s.logger.Error("updating seat address", "seat", req.Name, "error", err)
		writeUnavailable(w, "failed to update address")
		return
	}

	s.logger.Info("seat address updated",
		"seat", req.Name,
		"cleared", strings.TrimSpace(req.NewAddress) == "",
		"request_id", r.Context().Value(ctxKeyRequestID),
	)

	if isJSON {
		writeJSON(w, http.StatusOK, map[string]string{
			"name":    req.Name,
			"address": strings.TrimSpace(req.NewAddress),
		})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// readSnapshot fetches a snapshot, writing a 503 on failure.
func (s *Server) readSnapshot(w http.ResponseWriter, r *http.Request) (occupancy.Snapshot, bool) {
	snap, err := s.snapshots.Snapshot(r.Context())
	if err != nil {
		s.logger.Error("reading occupancy snapshot",
			"error", err,
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
		writeUnavailable(w, "occupancy data unavailable")
		return occupancy.Snapshot{}, false
	}
	return snap, true
}

func (s *Server) staticHandler() http.Handler {
	return panel.StaticHandler(s.staticDir)
}

func isJSONRequest(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}
