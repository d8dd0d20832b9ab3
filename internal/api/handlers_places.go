package api

import (
	"encoding/json"
	"net/http"
	"strings"

	respond "github.com/crossedpaths/crossedpaths/server/internal/api/respond"
	"github.com/crossedpaths/crossedpaths/server/internal/model"
	"github.com/crossedpaths/crossedpaths/server/internal/place"
)

// PlaceHandler exposes the label formatter and place hasher.
type PlaceHandler struct{}

func NewPlaceHandler() *PlaceHandler { return &PlaceHandler{} }

type resolveRequest struct {
	Address  *model.Address  `json:"address"`
	Location *model.Location `json:"location"`
	// Label overrides the formatted label, e.g. a venue name picked by the user.
	Label string `json:"label"`
}

type resolveResponse struct {
	Label      string `json:"label"`
	PlaceKey   string `json:"place_key,omitempty"`
	Recordable bool   `json:"recordable"`
}

// Resolve POST /api/places/resolve
func (h *PlaceHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	label := strings.TrimSpace(req.Label)
	if label == "" {
		label, _ = place.Label(req.Address)
	}
	if label == "" {
		respond.WriteJSON(w, http.StatusOK, resolveResponse{})
		return
	}
	respond.WriteJSON(w, http.StatusOK, resolveResponse{
		Label:      label,
		PlaceKey:   place.Key(label, req.Address, req.Location),
		Recordable: true,
	})
}
