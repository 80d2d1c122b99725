package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hoopvault/milestones-data/internal/api/respond"
	"github.com/hoopvault/milestones-data/internal/slices"
	"github.com/hoopvault/milestones-data/internal/stats"
)

// playerAppearance is one leaderboard the player currently ranks on.
type playerAppearance struct {
	Definition slices.Definition `json:"definition"`
	Label      string            `json:"label"`
	Age        int               `json:"age"`
	Rank       int               `json:"rank"`
	Value      int64             `json:"value"`
}

// GetPlayerMilestones serves GET /api/v1/players/{playerID}/milestones.
// It walks the entire precomputed grid for one player — every definition
// at every age — through a single batched slice read. This endpoint is why
// ReadSliceBatch exists: the grid is dozens to 100+ coordinates and
// per-coordinate queries would dominate latency.
func (h *Handler) GetPlayerMilestones(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")
	includePlayoffs := parseBoolParam(r, "playoffs")
	group := stats.GroupFor(includePlayoffs)

	player, err := stats.PlayerByID(r.Context(), h.pool, playerID)
	if err != nil {
		h.logger.Error("Player lookup failed", "player", playerID, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "STORAGE_ERROR", "Player lookup failed")
		return
	}
	if player == nil {
		respond.WriteError(w, http.StatusNotFound, "NOT_FOUND", "Unknown player")
		return
	}

	version, err := h.slices.CurrentVersion(r.Context())
	if err != nil {
		h.logger.Error("Resolve slices version failed", "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "STORAGE_ERROR", "Could not resolve slices version")
		return
	}

	defs := slices.DefaultDefinitions()
	defByKey := make(map[string]slices.Definition, len(defs))
	items := make([]slices.BatchItem, 0, len(defs)*(h.cfg.SliceAgeMax-h.cfg.SliceAgeMin+1))
	for _, def := range defs {
		key := def.Key()
		defByKey[key] = def
		for age := h.cfg.SliceAgeMin; age <= h.cfg.SliceAgeMax; age++ {
			items = append(items, slices.BatchItem{Key: key, Age: age})
		}
	}

	batch, err := h.slices.ReadSliceBatch(r.Context(), version, items, group)
	if err != nil {
		h.logger.Error("Batched slice read failed", "player", playerID, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "STORAGE_ERROR", "Slice read failed")
		return
	}

	appearances := make([]playerAppearance, 0)
	for _, it := range items {
		rows, ok := batch[slices.BatchKey(it.Key, it.Age)]
		if !ok {
			continue
		}
		for _, row := range rows {
			if row.PlayerID != playerID {
				continue
			}
			def := defByKey[it.Key]
			appearances = append(appearances, playerAppearance{
				Definition: def,
				Label:      def.Label(),
				Age:        it.Age,
				Rank:       row.Rank,
				Value:      row.Value,
			})
			break
		}
	}

	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"player": map[string]interface{}{
			"id":       player.ID,
			"fullName": player.FullName,
			"isActive": player.IsActive,
		},
		"seasonGroup": group,
		"version":     version,
		"coordinates": len(items),
		"computed":    len(batch),
		"appearances": appearances,
	})
}
