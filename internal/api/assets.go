package api

import (
	"net/http"

	"github.com/unifound/unifound/internal/gateway"
)

// AssetsHandler serves item images.
type AssetsHandler struct {
	GW gateway.Gateway
}

// Get handles GET /api/assets/{ref}. Backends that hold asset bytes locally
// serve them directly; hosted backends answer with a redirect to a presigned
// URL.
func (h *AssetsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ref := r.PathValue("ref")

	if reader, ok := h.GW.(gateway.AssetReader); ok {
		data, mime, err := reader.AssetData(r.Context(), ref)
		if err != nil {
			failure(w, err)
			return
		}
		w.Header().Set("Content-Type", mime)
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Write(data)
		return
	}

	url, err := h.GW.AssetURL(r.Context(), ref)
	if err != nil {
		failure(w, err)
		return
	}
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}
