package api

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/unifound/unifound/internal/catalog"
	"github.com/unifound/unifound/internal/gateway"
	"github.com/unifound/unifound/internal/report"
	"github.com/unifound/unifound/internal/workflow"
)

// ItemsHandler handles the listing, submission, and claim endpoints.
type ItemsHandler struct {
	GW      gateway.Gateway
	Reports *report.Engine
	Claims  *workflow.Workflow
}

type listResponse struct {
	Items   []catalog.Entry `json:"items"`
	Page    int             `json:"page"`
	HasMore bool            `json:"has_more"`
	// State continues this view: pass it back with nav=next or nav=prev.
	State string `json:"state"`
}

// List handles GET /api/items. A fresh call carries filter parameters; a
// paginating call carries the state token from the previous response plus
// nav=next or nav=prev. Filter changes start a fresh view, so the two sets
// of parameters never mix.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var eng *catalog.Engine
	if token := q.Get("state"); token != "" {
		state, err := decodeState(token)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "invalid state token")
			return
		}
		eng = catalog.Resume(h.GW, state)
	} else {
		eng = catalog.New(h.GW)
		for _, dim := range []catalog.Dimension{catalog.DimensionKind, catalog.DimensionCategory, catalog.DimensionStatus} {
			if v := q.Get(string(dim)); v != "" {
				eng.SetFilter(dim, v)
			}
		}
		if sort := q.Get("sort"); sort != "" {
			if sort != gateway.SortNewest && sort != gateway.SortOldest {
				jsonError(w, http.StatusBadRequest, "invalid sort order")
				return
			}
			eng.SetSort(sort)
		}
		eng.SetSearch(q.Get("q"))
	}

	var err error
	switch nav := q.Get("nav"); nav {
	case "", "refresh":
		err = eng.Refresh(r.Context())
	case "next":
		err = eng.NextPage(r.Context())
	case "prev":
		err = eng.PrevPage(r.Context())
	default:
		jsonError(w, http.StatusBadRequest, "invalid nav")
		return
	}
	if err != nil {
		failure(w, err)
		return
	}

	entries := eng.List(GetSession(r.Context()))
	if entries == nil {
		entries = []catalog.Entry{}
	}
	jsonResponse(w, http.StatusOK, listResponse{
		Items:   entries,
		Page:    eng.Page(),
		HasMore: eng.HasMore(),
		State:   encodeState(eng.State()),
	})
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.GW.GetItem(r.Context(), r.PathValue("id"))
	if err != nil {
		failure(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Report handles POST /api/items: a multipart submission with the report
// fields and an optional image.
func (h *ItemsHandler) Report(w http.ResponseWriter, r *http.Request) {
	// Limit to 5 MB.
	r.Body = http.MaxBytesReader(w, r.Body, 5<<20)
	if err := r.ParseMultipartForm(5 << 20); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	draft := report.Draft{
		Kind:        r.FormValue("kind"),
		Category:    r.FormValue("category"),
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Location:    r.FormValue("location"),
		OccurredAt:  r.FormValue("occurred_at"),
	}

	if file, header, err := r.FormFile("image"); err == nil {
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			jsonError(w, http.StatusInternalServerError, "failed to read image")
			return
		}
		draft.Image = data
		draft.ImageName = header.Filename
	}

	id, err := h.Reports.Submit(r.Context(), draft, GetSession(r.Context()))
	if err != nil {
		failure(w, err)
		return
	}

	jsonResponse(w, http.StatusCreated, map[string]string{"id": id})
}

// Claim handles POST /api/items/{id}/claim.
func (h *ItemsHandler) Claim(w http.ResponseWriter, r *http.Request) {
	item, err := h.Claims.Claim(r.Context(), r.PathValue("id"), GetSession(r.Context()))
	if err != nil {
		failure(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Resolve handles POST /api/items/{id}/resolve.
func (h *ItemsHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	item, err := h.Claims.Resolve(r.Context(), r.PathValue("id"), GetSession(r.Context()))
	if err != nil {
		failure(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Unresolve handles POST /api/items/{id}/unresolve.
func (h *ItemsHandler) Unresolve(w http.ResponseWriter, r *http.Request) {
	item, err := h.Claims.Unresolve(r.Context(), r.PathValue("id"), GetSession(r.Context()))
	if err != nil {
		failure(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Delete handles DELETE /api/items/{id}.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Claims.Delete(r.Context(), r.PathValue("id"), GetSession(r.Context())); err != nil {
		failure(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "item deleted"})
}

// Watch handles GET /api/items/watch?kind=lost: a server-sent event stream
// of full per-kind snapshots.
func (h *ItemsHandler) Watch(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		jsonError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sub, err := h.GW.Subscribe(r.Context(), r.URL.Query().Get("kind"))
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer sub.Unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case snap, ok := <-sub.C:
			if !ok {
				return
			}
			if snap.Err != nil {
				fmt.Fprintf(w, "event: degraded\ndata: {}\n\n")
				flusher.Flush()
				continue
			}
			raw, err := json.Marshal(snap.Items)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", raw)
			flusher.Flush()
		}
	}
}

func encodeState(s catalog.State) string {
	raw, _ := json.Marshal(s)
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeState(token string) (catalog.State, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return catalog.State{}, err
	}
	var s catalog.State
	if err := json.Unmarshal(raw, &s); err != nil {
		return catalog.State{}, err
	}
	return s, nil
}
