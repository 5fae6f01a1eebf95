package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"todo-planner/internal/model"
	"todo-planner/internal/service"
)

type createTodoRequest struct {
	Title             string `json:"title"`
	Details           string `json:"details"`
	DueDate           string `json:"due_date"`
	Recurring         bool   `json:"recurring"`
	RecurringSchedule string `json:"recurring_schedule"`
	CategoryID        *uint  `json:"category_id"`
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ListDay serves the per-day view: ?date=YYYY-MM-DD&category_id=&completed=&page=
func (h *Handler) ListDay(c *gin.Context) {
	filter := service.DayFilter{
		Date: c.DefaultQuery("date", model.FormatDate(h.now())),
	}

	if raw := c.Query("category_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			badRequest(c, "Invalid category_id")
			return
		}
		categoryID := uint(id)
		filter.CategoryID = &categoryID
	}
	if raw := c.Query("completed"); raw != "" {
		complete, err := strconv.ParseBool(raw)
		if err != nil {
			badRequest(c, "Invalid completed")
			return
		}
		filter.Complete = &complete
	}
	if raw := c.Query("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			badRequest(c, "Invalid page")
			return
		}
		filter.Page = page
	}

	view, err := h.todos.ListDay(c.Request.Context(), currentUser(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) CreateTodo(c *gin.Context) {
	var req createTodoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	todo, err := h.todos.CreateTodo(c.Request.Context(), currentUser(c), service.TodoInput{
		Title:             req.Title,
		Details:           req.Details,
		DueDate:           strings.TrimSpace(req.DueDate),
		Recurring:         req.Recurring,
		RecurringSchedule: req.RecurringSchedule,
		CategoryID:        req.CategoryID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, todo)
}

func (h *Handler) GetTodo(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	todo, err := h.todos.GetTodo(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, todo)
}

func (h *Handler) ListInstances(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	instances, err := h.todos.Instances(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"instances": instances})
}

func (h *Handler) DeleteTodo(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.todos.DeleteTodo(c.Request.Context(), currentUser(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ToggleTodo(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	todo, err := h.todos.ToggleTodo(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, todo)
}

func (h *Handler) ToggleInstance(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	instance, err := h.todos.ToggleInstance(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, instance)
}
