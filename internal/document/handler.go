package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"mypeeps/internal/document/model"
	"mypeeps/internal/document/service"
	"mypeeps/middleware"
	"mypeeps/pkg/logger"
	"mypeeps/pkg/respond"

	"github.com/gorilla/mux"
)

const maxBodyBytes = 1 << 20

type DocumentHandler struct {
	Service *service.DocumentService
}

func NewDocumentHandler(service *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{Service: service}
}

// Register mounts the collection routes on r.
func (h *DocumentHandler) Register(r *mux.Router) {
	r.HandleFunc("/collections/{collection}", h.ListDocuments).Methods(http.MethodGet)
	r.HandleFunc("/collections/{collection}", h.CreateDocument).Methods(http.MethodPost)
	r.HandleFunc("/collections/{collection}/{id}", h.UpdateDocument).Methods(http.MethodPatch)
	r.HandleFunc("/collections/{collection}/{id}", h.DeleteDocument).Methods(http.MethodDelete)
	r.HandleFunc("/batch", h.CommitBatch).Methods(http.MethodPost)
}

func (h *DocumentHandler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	var req model.InsertRequest
	if !decode(w, r, &req) {
		return
	}

	userID := middleware.GetUserID(r.Context())
	id, err := h.Service.Insert(r.Context(), userID, mux.Vars(r)["collection"], req.Fields)
	if err != nil {
		fail(w, "create document", err)
		return
	}
	respond.JSON(w, http.StatusCreated, model.InsertResponse{ID: id})
}

func (h *DocumentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	q, err := model.ParseQuery(r.URL.Query())
	if err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	q.Collection = mux.Vars(r)["collection"]

	docs, err := h.Service.List(r.Context(), middleware.GetUserID(r.Context()), q)
	if err != nil {
		fail(w, "list documents", err)
		return
	}
	respond.JSON(w, http.StatusOK, docs)
}

func (h *DocumentHandler) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateRequest
	if !decode(w, r, &req) {
		return
	}

	vars := mux.Vars(r)
	userID := middleware.GetUserID(r.Context())
	if err := h.Service.Update(r.Context(), userID, vars["collection"], vars["id"], req.Fields); err != nil {
		fail(w, "update document "+vars["id"], err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID := middleware.GetUserID(r.Context())
	if err := h.Service.Delete(r.Context(), userID, vars["collection"], vars["id"]); err != nil {
		fail(w, "delete document "+vars["id"], err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DocumentHandler) CommitBatch(w http.ResponseWriter, r *http.Request) {
	var req model.BatchRequest
	if !decode(w, r, &req) {
		return
	}

	ids, err := h.Service.Commit(r.Context(), middleware.GetUserID(r.Context()), req.Writes)
	if err != nil {
		fail(w, "commit batch", err)
		return
	}
	respond.JSON(w, http.StatusOK, model.BatchResponse{IDs: ids})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// fail maps service errors to status codes; unexpected ones are logged.
func fail(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		respond.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrForbidden):
		respond.Error(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrUnknownCollection), errors.Is(err, service.ErrInvalidInput):
		respond.Error(w, http.StatusBadRequest, err.Error())
	default:
		logger.Sugar.Errorf("Handler: Failed to %s: %v", action, err)
		respond.Error(w, http.StatusInternalServerError, "failed to "+action)
	}
}
