package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	respond "github.com/crossedpaths/crossedpaths/server/internal/api/respond"
	"github.com/crossedpaths/crossedpaths/server/internal/api/validate"
	"github.com/crossedpaths/crossedpaths/server/internal/crossedpaths"
	"github.com/crossedpaths/crossedpaths/server/internal/model"
)

// CrossedPathsHandler is a thin HTTP transport over the recorder and reader.
// Read endpoints never fail the client: backend errors come back as empty data with
// "degraded": true.
type CrossedPathsHandler struct {
	rec    *crossedpaths.Recorder
	reader *crossedpaths.Reader
	log    zerolog.Logger
}

func NewCrossedPathsHandler(rec *crossedpaths.Recorder, reader *crossedpaths.Reader, log zerolog.Logger) *CrossedPathsHandler {
	return &CrossedPathsHandler{rec: rec, reader: reader, log: log}
}

type recordVisitRequest struct {
	AddressLabel string          `json:"address_label"`
	Address      *model.Address  `json:"address"`
	Location     *model.Location `json:"location"`
	SeenAt       *time.Time      `json:"seen_at"`
	ProfileIDs   []string        `json:"profile_ids"`
}

type outcomeResponse struct {
	Outcome crossedpaths.Outcome `json:"outcome"`
}

func (h *CrossedPathsHandler) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := mux.Vars(r)["userId"]
	if err := validate.UserID(id); err != nil {
		respond.WriteValidation(w, err)
		return "", false
	}
	return id, true
}

func (h *CrossedPathsHandler) decodeVisit(w http.ResponseWriter, r *http.Request) (crossedpaths.VisitInput, []string, bool) {
	userID, ok := h.userID(w, r)
	if !ok {
		return crossedpaths.VisitInput{}, nil, false
	}
	var req recordVisitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return crossedpaths.VisitInput{}, nil, false
	}
	in := crossedpaths.VisitInput{
		ViewerID:     userID,
		AddressLabel: req.AddressLabel,
		Address:      req.Address,
		Location:     req.Location,
		SeenAt:       req.SeenAt,
	}
	return in, req.ProfileIDs, true
}

// RecordVisit POST /api/users/{userId}/visits
func (h *CrossedPathsHandler) RecordVisit(w http.ResponseWriter, r *http.Request) {
	in, _, ok := h.decodeVisit(w, r)
	if !ok {
		return
	}
	respond.WriteJSON(w, http.StatusAccepted, outcomeResponse{Outcome: h.rec.RecordVisit(r.Context(), in)})
}

// RecordCrossedPaths POST /api/users/{userId}/crossed-paths
func (h *CrossedPathsHandler) RecordCrossedPaths(w http.ResponseWriter, r *http.Request) {
	in, ids, ok := h.decodeVisit(w, r)
	if !ok {
		return
	}
	out := h.rec.RecordCrossedPaths(r.Context(), crossedpaths.CrossedPathsInput{VisitInput: in, ProfileIDs: ids})
	respond.WriteJSON(w, http.StatusAccepted, outcomeResponse{Outcome: out})
}

// ListCrossedPaths GET /api/users/{userId}/crossed-paths
func (h *CrossedPathsHandler) ListCrossedPaths(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	rows, err := h.reader.CrossedPaths(r.Context(), userID)
	degraded := h.degraded(err, "list crossed paths", userID)
	if rows == nil {
		rows = []model.Edge{}
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"crossed_paths": rows, "count": len(rows), "degraded": degraded})
}

// ListGroups GET /api/users/{userId}/crossed-paths/groups
func (h *CrossedPathsHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	gs, err := h.reader.Groups(r.Context(), userID)
	degraded := h.degraded(err, "list groups", userID)
	if gs == nil {
		gs = []model.Group{}
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"groups": gs, "count": len(gs), "degraded": degraded})
}

type peopleResponse struct {
	People     []model.Person `json:"people"`
	NextCursor string         `json:"next_cursor,omitempty"`
	HasMore    bool           `json:"has_more"`
	Degraded   bool           `json:"degraded"`
}

// ListPeople GET /api/users/{userId}/crossed-paths/groups/{dayKey}/{placeKey}/people?limit=&cursor=
func (h *CrossedPathsHandler) ListPeople(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	q := model.PeopleQuery{DayKey: vars["dayKey"], PlaceKey: vars["placeKey"]}
	if err := validate.DayKey(q.DayKey); err != nil {
		respond.WriteValidation(w, err)
		return
	}
	if err := validate.PlaceKey(q.PlaceKey); err != nil {
		respond.WriteValidation(w, err)
		return
	}
	limit, err := validate.Limit("limit", r.URL.Query().Get("limit"))
	if err != nil {
		respond.WriteValidation(w, err)
		return
	}
	q.Limit = limit
	if q.Cursor, err = validate.Cursor(r.URL.Query().Get("cursor")); err != nil {
		respond.WriteValidation(w, err)
		return
	}

	page, err := h.reader.People(r.Context(), userID, q)
	resp := peopleResponse{People: page.People, HasMore: page.HasMore, Degraded: h.degraded(err, "list people", userID)}
	if resp.People == nil {
		resp.People = []model.Person{}
	}
	if page.NextCursor != nil {
		resp.NextCursor = page.NextCursor.Encode()
	}
	respond.WriteJSON(w, http.StatusOK, resp)
}

// History GET /api/users/{userId}/crossed-paths/history?per_group=
func (h *CrossedPathsHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	perGroup, err := validate.Limit("per_group", r.URL.Query().Get("per_group"))
	if err != nil {
		respond.WriteValidation(w, err)
		return
	}
	groups := h.reader.History(r.Context(), userID, perGroup)
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"groups": groups, "count": len(groups)})
}

func (h *CrossedPathsHandler) degraded(err error, op, userID string) bool {
	if err == nil {
		return false
	}
	h.log.Warn().Err(err).Str("op", op).Str("viewer", userID).Msg("read degraded to empty result")
	return true
}
