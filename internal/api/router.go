package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/singleflight"

	"todo-planner/internal/repository"
	"todo-planner/internal/service"
)

// Handler serves the JSON API.
type Handler struct {
	users      *repository.UserRepository
	todos      *service.TodoService
	categories *service.CategoryService
	generator  *service.InstanceGenerator
	operators  []string
	now        func() time.Time

	generateGroup singleflight.Group
}

// NewHandler builds the API. operators lists the auth subjects allowed to call /admin routes.
func NewHandler(users *repository.UserRepository, todos *service.TodoService, categories *service.CategoryService, generator *service.InstanceGenerator, operators []string) *Handler {
	return &Handler{
		users:      users,
		todos:      todos,
		categories: categories,
		generator:  generator,
		operators:  operators,
		now:        time.Now,
	}
}

// Router builds the gin engine with all routes.
func (h *Handler) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), AccessLog())

	router.GET("/health", h.Health)

	api := router.Group("")
	api.Use(Identity(h.users))
	{
		api.GET("/todos", h.ListDay)
		api.POST("/todos", h.CreateTodo)
		api.GET("/todos/:id", h.GetTodo)
		api.GET("/todos/:id/instances", h.ListInstances)
		api.DELETE("/todos/:id", h.DeleteTodo)
		api.POST("/todos/:id/toggle", h.ToggleTodo)
		api.POST("/instances/:id/toggle", h.ToggleInstance)

		api.GET("/categories", h.ListCategories)
		api.POST("/categories", h.CreateCategory)
		api.GET("/categories/:id", h.ShowCategory)
	}

	admin := router.Group("/admin")
	admin.Use(Identity(h.users), RequireOperator(h.operators))
	{
		admin.POST("/generate", h.Generate)
	}

	return router
}
