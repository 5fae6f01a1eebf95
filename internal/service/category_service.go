package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"todo-planner/internal/model"
	"todo-planner/internal/repository"
)

// CategoryService provides helpers around categories.
type CategoryService struct {
	repo *repository.CategoryRepository
}

func NewCategoryService(repo *repository.CategoryRepository) *CategoryService {
	return &CategoryService{repo: repo}
}

func (s *CategoryService) Create(ctx context.Context, user *model.User, name string) (*model.Category, error) {
	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n < 3 || n > 255 {
		return nil, invalid("name", "must be between 3 and 255 characters")
	}
	exists, err := s.repo.ExistsByName(ctx, user.ID, name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, invalid("name", "already exists")
	}
	category := model.Category{UserID: user.ID, Name: name}
	if err := s.repo.Create(ctx, &category); err != nil {
		return nil, err
	}
	return &category, nil
}

func (s *CategoryService) List(ctx context.Context, user *model.User) ([]model.Category, error) {
	return s.repo.ListByUser(ctx, user.ID)
}

// Show returns the category with its todos.
func (s *CategoryService) Show(ctx context.Context, user *model.User, id uint) (*model.Category, error) {
	category, err := s.repo.GetWithTodos(ctx, user.ID, id)
	if err != nil {
		return nil, notFound(err)
	}
	return category, nil
}
