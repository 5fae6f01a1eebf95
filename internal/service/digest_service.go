package service

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"todo-planner/internal/model"
	"todo-planner/internal/repository"
)

const digestLimit = 50

// DigestService builds human-readable summaries for daily notifications.
type DigestService struct {
	todoRepo     *repository.TodoRepository
	categoryRepo *repository.CategoryRepository
}

func NewDigestService(todoRepo *repository.TodoRepository, categoryRepo *repository.CategoryRepository) *DigestService {
	return &DigestService{todoRepo: todoRepo, categoryRepo: categoryRepo}
}

// DaySummary renders the user's todos for the calendar day of now, followed by
// open one-off todos whose date has passed.
func (s *DigestService) DaySummary(ctx context.Context, user model.User, now time.Time) (string, error) {
	date := model.FormatDate(now)
	todos, _, err := s.todoRepo.ListForDay(ctx, repository.DayQuery{UserID: user.ID, Date: date, Limit: digestLimit})
	if err != nil {
		return "", err
	}

	overdue, err := s.todoRepo.ListOverdue(ctx, user.ID, date, digestLimit)
	if err != nil {
		return "", err
	}

	categories, err := s.categoryRepo.ListByUser(ctx, user.ID)
	if err != nil {
		return "", err
	}
	catNames := make(map[uint]string)
	for _, cat := range categories {
		catNames[cat.ID] = cat.Name
	}

	var single []model.Todo
	var recurring []model.Todo
	for _, todo := range todos {
		if todo.Recurring && len(todo.Instances) > 0 {
			recurring = append(recurring, todo)
			continue
		}
		single = append(single, todo)
	}
	sort.SliceStable(single, func(i, j int) bool {
		if single[i].Complete != single[j].Complete {
			return !single[i].Complete
		}
		return single[i].ID < single[j].ID
	})

	var builder strings.Builder
	builder.WriteString("📋 <b>Ежедневный отчёт</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", now.Format("02.01.2006")))

	builder.WriteString("🔥 <b>Задачи на сегодня</b>\n")
	if len(single) == 0 {
		builder.WriteString("— нет задач на сегодня\n")
	} else {
		for _, todo := range single {
			builder.WriteString(formatDigestTodo(todo, todo.Complete, catNames))
		}
	}

	if len(overdue) > 0 {
		builder.WriteString("\n⚠️ <b>Просроченные</b>\n")
		for _, todo := range overdue {
			builder.WriteString(formatDigestTodo(todo, false, catNames))
		}
	}

	builder.WriteString("\n♻️ <b>Регулярные задачи</b>\n")
	if len(recurring) == 0 {
		builder.WriteString("— нет повторов на сегодня\n")
	} else {
		for _, todo := range recurring {
			builder.WriteString(formatDigestTodo(todo, todo.Instances[0].Complete, catNames))
		}
	}

	return strings.TrimSpace(builder.String()), nil
}

func formatDigestTodo(todo model.Todo, complete bool, catNames map[uint]string) string {
	var sb strings.Builder

	icon := "🟢"
	if complete {
		icon = "✅"
	}
	sb.WriteString(fmt.Sprintf("%s <b>#%d</b> %s", icon, todo.ID, html.EscapeString(strings.TrimSpace(todo.Title))))

	if todo.CategoryID != nil {
		if name := strings.TrimSpace(catNames[*todo.CategoryID]); name != "" {
			sb.WriteString(fmt.Sprintf(" <i>(%s)</i>", html.EscapeString(name)))
		}
	}
	if todo.Recurring {
		sb.WriteString(fmt.Sprintf("\n   🔄 %s", ScheduleLabel(todo.RecurringSchedule)))
	}
	if todo.Details != "" {
		sb.WriteString(fmt.Sprintf("\n   📝 %s", html.EscapeString(strings.TrimSpace(todo.Details))))
	}

	sb.WriteByte('\n')
	return sb.String()
}

// ScheduleLabel describes a schedule code for people.
func ScheduleLabel(schedule string) string {
	switch schedule {
	case "daily":
		return "каждый день"
	case "weekly":
		return "каждую неделю"
	case "monthly":
		return "каждый месяц"
	case "yearly":
		return "каждый год"
	case "":
		return "без повтора"
	default:
		return fmt.Sprintf("каждые %s дн.", schedule)
	}
}
