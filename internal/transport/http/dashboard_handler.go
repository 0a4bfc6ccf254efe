package http

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	"classquiz-service/internal/app"
	"classquiz-service/internal/domain"
	"github.com/skip2/go-qrcode"
)

// DashboardSource reads the archived aggregates for the teacher view. The
// game core only ever writes to the archive; these reads belong to the
// transport layer.
type DashboardSource interface {
	Dashboard(ctx context.Context) (domain.DashboardData, error)
}

// DashboardHandler serves the read-only surfaces around the live game: the
// teacher dashboard, the post-game leaderboard, and the join-by-QR helper.
type DashboardHandler struct {
	service *app.GameService
	archive DashboardSource
}

func NewDashboardHandler(service *app.GameService, archive DashboardSource) *DashboardHandler {
	return &DashboardHandler{service: service, archive: archive}
}

// Dashboard handles /api/teacher/dashboard.
func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	data, err := h.archive.Dashboard(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

// Leaderboard handles /api/get-leaderboard: final standings once the game is
// over, a polite "not yet" otherwise.
func (h *DashboardHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	snap := h.service.Snapshot(false)
	if snap.Phase != domain.PhaseOver {
		writeJSON(w, http.StatusOK, map[string]any{
			"gameOver": false,
			"message":  "Game is not over yet",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"gameOver":    true,
		"leaderboard": snap.Leaderboard,
		"winners":     snap.Winners,
	})
}

// ServerInfo handles /api/server-info: the client join URL plus a QR code for
// the host screen to project.
func (h *DashboardHandler) ServerInfo(w http.ResponseWriter, r *http.Request) {
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "http"
	}
	baseURL := fmt.Sprintf("%s://%s", scheme, r.Host)
	clientURL := baseURL + "/client"

	png, err := qrcode.Encode(clientURL, qrcode.Medium, 256)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"url":       baseURL,
		"clientUrl": clientURL,
		"qrCode":    "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
	})
}
