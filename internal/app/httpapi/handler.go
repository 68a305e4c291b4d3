package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	app "github.com/quickshop/catalog/internal/app"
	"github.com/quickshop/catalog/internal/app/domain/product"
	"github.com/quickshop/catalog/internal/app/metrics"
	"github.com/quickshop/catalog/internal/app/services/products"
	"github.com/quickshop/catalog/internal/app/services/uploads"
	"github.com/quickshop/catalog/internal/app/services/users"
	"github.com/quickshop/catalog/internal/app/storage"
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app *app.Application
}

// NewHandler returns a router exposing the REST API and the websocket echo
// endpoint.
func NewHandler(application *app.Application) http.Handler {
	h := &handler{app: application}
	router := mux.NewRouter()

	router.HandleFunc("/", h.root)
	router.HandleFunc("/healthz", h.health)
	router.Handle("/metrics", metrics.Handler())

	router.HandleFunc("/auth/register", h.register)
	router.HandleFunc("/auth/token", h.token)

	router.HandleFunc("/products", h.products)
	router.HandleFunc("/products/{id}", h.productByID)
	router.HandleFunc("/products/{id}/quote", h.productQuote)
	router.HandleFunc("/products/{id}/reserve", h.productReserve)

	router.HandleFunc("/uploads", h.uploads)
	router.HandleFunc("/uploads/{id}", h.uploadByID)
	router.HandleFunc("/uploads/{id}/content", h.uploadContent)

	router.HandleFunc("/ws/echo", h.wsEcho)

	return router
}

func (h *handler) root(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "catalog",
		"message": "Hello World",
	})
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	u, err := h.app.Users.Register(r.Context(), payload.Email, payload.Password, payload.Role)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (h *handler) token(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	email, password, err := credentials(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	u, err := h.app.Users.Authenticate(r.Context(), email, password)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}

	token, expires, err := h.app.Users.IssueToken(u)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"access_token": token,
		"token_type":   "bearer",
		"expires_at":   expires,
	})
}

// credentials reads the login pair from a JSON body or, for form clients,
// from username/password form fields.
func credentials(r *http.Request) (string, string, error) {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/x-www-form-urlencoded") || strings.HasPrefix(ct, "multipart/form-data") {
		if err := r.ParseForm(); err != nil {
			return "", "", fmt.Errorf("parse form: %w", err)
		}
		email := r.PostFormValue("username")
		if email == "" {
			email = r.PostFormValue("email")
		}
		return email, r.PostFormValue("password"), nil
	}

	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		return "", "", err
	}
	return payload.Email, payload.Password, nil
}

func (h *handler) products(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var payload product.Product
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		payload.ID = ""

		created, err := h.app.Products.Create(r.Context(), payload)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, created)

	case http.MethodGet:
		skip, err := queryInt(r, "skip", 0)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		limit, err := queryInt(r, "limit", products.DefaultListLimit)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		items, err := h.app.Products.List(r.Context(), skip, limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, items)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) productByID(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	switch r.Method {
	case http.MethodGet:
		p, err := h.app.Products.Get(r.Context(), id)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, p)

	case http.MethodPut:
		var payload product.Product
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		payload.ID = id

		updated, err := h.app.Products.Update(r.Context(), payload)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, updated)

	case http.MethodPatch:
		var payload struct {
			SKU         *string   `json:"sku"`
			Name        *string   `json:"name"`
			Description *string   `json:"description"`
			Price       *float64  `json:"price"`
			Tax         *float64  `json:"tax"`
			Stock       *int      `json:"stock"`
			Tags        *[]string `json:"tags"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		updated, err := h.app.Products.Patch(r.Context(), id, products.PatchRequest{
			SKU:         payload.SKU,
			Name:        payload.Name,
			Description: payload.Description,
			Price:       payload.Price,
			Tax:         payload.Tax,
			Stock:       payload.Stock,
			Tags:        payload.Tags,
		})
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, updated)

	case http.MethodDelete:
		if err := h.app.Products.Delete(r.Context(), id); err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) productQuote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := mux.Vars(r)["id"]

	quantity, err := queryInt(r, "quantity", 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	quote, err := h.app.Products.Quote(r.Context(), id, quantity)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (h *handler) productReserve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := mux.Vars(r)["id"]

	var payload struct {
		Quantity int `json:"quantity"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	p, err := h.app.Products.Reserve(r.Context(), id, payload.Quantity)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return v, nil
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrExists):
		return http.StatusConflict
	case errors.Is(err, products.ErrInsufficientStock):
		return http.StatusConflict
	case errors.Is(err, users.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, uploads.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusBadRequest
	}
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
