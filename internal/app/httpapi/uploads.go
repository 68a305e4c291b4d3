package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/quickshop/catalog/internal/app/domain/user"
	"github.com/quickshop/catalog/internal/middleware"
)

// canAccessUpload reports whether the caller may read an upload owned by
// ownerID. Admins may read any upload.
func canAccessUpload(r *http.Request, ownerID string) bool {
	if middleware.GetRole(r.Context()) == user.RoleAdmin {
		return true
	}
	return middleware.GetUserID(r.Context()) == ownerID
}

func (h *handler) uploads(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("form field %q is required", "file"))
			return
		}
		defer file.Close()

		ownerID := middleware.GetUserID(r.Context())
		rec, err := h.app.Uploads.Save(r.Context(), ownerID, header.Filename, header.Header.Get("Content-Type"), file)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, rec)

	case http.MethodGet:
		owner := r.URL.Query().Get("owner")
		if owner == "" {
			owner = middleware.GetUserID(r.Context())
		}
		if !canAccessUpload(r, owner) {
			writeError(w, http.StatusForbidden, fmt.Errorf("uploads of another owner are not accessible"))
			return
		}
		recs, err := h.app.Uploads.List(r.Context(), owner)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, recs)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) uploadByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := mux.Vars(r)["id"]

	rec, err := h.app.Uploads.Get(r.Context(), id)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	if !canAccessUpload(r, rec.OwnerID) {
		writeError(w, http.StatusForbidden, fmt.Errorf("upload %s is not accessible", id))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *handler) uploadContent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := mux.Vars(r)["id"]

	f, rec, err := h.app.Uploads.Open(r.Context(), id)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	defer f.Close()

	if !canAccessUpload(r, rec.OwnerID) {
		writeError(w, http.StatusForbidden, fmt.Errorf("upload %s is not accessible", id))
		return
	}

	contentType := rec.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(rec.Size, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rec.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, f)
}
