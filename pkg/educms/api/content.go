package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/tendant/edu-cms/pkg/educms"
)

// Items

func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req educms.CreateItemRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.Kind = kindOf(r, "")

	item, err := h.service.CreateItem(r.Context(), req)
	if err != nil {
		h.writeError(w, r, "Failed to create item", err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, item)
}

func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	item, err := h.service.GetItem(r.Context(), kindOf(r, ""), id)
	if err != nil {
		h.writeError(w, r, "Failed to get item", err)
		return
	}
	render.JSON(w, r, item)
}

func (h *Handler) EditItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req educms.EditItemRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.Kind = kindOf(r, "")
	req.ID = id

	item, err := h.service.EditItem(r.Context(), req)
	if err != nil {
		h.writeError(w, r, "Failed to edit item", err)
		return
	}
	render.JSON(w, r, item)
}

func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	filter, ok := listFilter(w, r)
	if !ok {
		return
	}
	items, err := h.service.ListItems(r.Context(), kindOf(r, ""), filter)
	if err != nil {
		h.writeError(w, r, "Failed to list items", err)
		return
	}
	if items == nil {
		items = []*educms.ItemSummary{}
	}
	render.JSON(w, r, items)
}

// Courses

func (h *Handler) CreateCourse(w http.ResponseWriter, r *http.Request) {
	var req educms.CreateCourseRequest
	if !h.decode(w, r, &req) {
		return
	}
	course, err := h.service.CreateCourse(r.Context(), req)
	if err != nil {
		h.writeError(w, r, "Failed to create course", err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, course)
}

func (h *Handler) GetCourse(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	course, err := h.service.GetCourse(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "Failed to get course", err)
		return
	}
	render.JSON(w, r, course)
}

func (h *Handler) EditCourse(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req educms.EditCourseRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.ID = id

	course, err := h.service.EditCourse(r.Context(), req)
	if err != nil {
		h.writeError(w, r, "Failed to edit course", err)
		return
	}
	render.JSON(w, r, course)
}

func (h *Handler) ListCourses(w http.ResponseWriter, r *http.Request) {
	filter, ok := listFilter(w, r)
	if !ok {
		return
	}
	courses, err := h.service.ListCourses(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, "Failed to list courses", err)
		return
	}
	if courses == nil {
		courses = []*educms.ItemSummary{}
	}
	render.JSON(w, r, courses)
}

// SetContentRequest replaces a course curriculum.
type SetContentRequest struct {
	Content []educms.ContentRef `json:"content"`
}

func (h *Handler) SetCourseContent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req SetContentRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.SetCourseContent(r.Context(), id, req.Content); err != nil {
		h.writeError(w, r, "Failed to set course content", err)
		return
	}
	h.ResolveCourseContent(w, r)
}

func (h *Handler) ResolveCourseContent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	entries, err := h.service.ResolveCourseContent(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "Failed to resolve course content", err)
		return
	}
	if entries == nil {
		entries = []educms.ResolvedEntry{}
	}
	render.JSON(w, r, entries)
}

// Shared record operations

// SetRelatedRequest replaces a related set.
type SetRelatedRequest struct {
	Related []uuid.UUID `json:"related"`
}

func (h *Handler) setRelated(fixed educms.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		var req SetRelatedRequest
		if !h.decode(w, r, &req) {
			return
		}
		if err := h.service.SetRelated(r.Context(), kindOf(r, fixed), id, req.Related); err != nil {
			h.writeError(w, r, "Failed to set related", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) recordVisit(fixed educms.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		if err := h.service.RecordVisit(r.Context(), kindOf(r, fixed), id); err != nil {
			h.writeError(w, r, "Failed to record visit", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// DeletionFailure is returned when a deletion stopped part way. Report
// lists the stages the last attempt reached.
type DeletionFailure struct {
	Error  ErrorBody               `json:"error"`
	Report *educms.DeletionReport `json:"report"`
}

func (h *Handler) deleteRecord(fixed educms.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		kind := kindOf(r, fixed)

		report, err := h.service.DeleteWithReport(r.Context(), kind, id)
		if err != nil {
			if report != nil && errors.Is(err, educms.ErrPartialDeletion) {
				h.logger.Error("Deletion incomplete", "kind", kind, "content_id", id, "attempts", report.Attempts, "error", err)
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, DeletionFailure{
					Error:  ErrorBody{Code: "partial_deletion", Message: err.Error()},
					Report: report,
				})
				return
			}
			h.writeError(w, r, "Failed to delete", err)
			return
		}
		render.JSON(w, r, report)
	}
}
