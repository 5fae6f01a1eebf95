package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"todo-planner/internal/config"
	"todo-planner/internal/logging"
	"todo-planner/internal/model"
	"todo-planner/internal/repository"
	"todo-planner/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageTitle
	stageDetails
	stageCategory
	stageDueDate
	stageRecurring
	stageSchedule
)

const (
	cbInstancePrefix = "instance:"
	cbTodoPrefix     = "todo:"
	cbDeletePrefix   = "delete:"
)

const (
	btnSkip             = "⏭️ Пропустить"
	btnYes              = "Да"
	btnNo               = "Нет"
	btnConfirm          = "✅ Подтвердить"
	btnCancel           = "↩️ Отмена"
	btnCancelDialog     = "⏪ Отменить ввод"
	noCategory          = "Без категории"
	iconOpen            = "🟢"
	iconDone            = "✅"
	iconRecurring       = "♻️"
	menuLabelNewTodo    = "➕ Новая задача"
	menuLabelToday      = "📋 Сегодня"
	menuLabelCategories = "📂 Категории"
	menuLabelHelp       = "ℹ️ Помощь"
)

type conversationState struct {
	stage conversationStage
	input service.TodoInput
}

// pendingDelete is a todo waiting for the user to confirm its removal.
type pendingDelete struct {
	todoID uint
}

// sender is the part of the Telegram API the bot talks through.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Bot aggregates Telegram API with services.
type Bot struct {
	api           *tgbotapi.BotAPI
	sender        sender
	userRepo      *repository.UserRepository
	categorySvc   *service.CategoryService
	todoSvc       *service.TodoService
	digestSvc     *service.DigestService
	generator     *service.InstanceGenerator
	now           func() time.Time
	conversations map[int64]*conversationState
	confirmations map[int64]pendingDelete
	mu            sync.Mutex
}

func New(token string, userRepo *repository.UserRepository, categorySvc *service.CategoryService, todoSvc *service.TodoService, digestSvc *service.DigestService, generator *service.InstanceGenerator) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	logging.FromContext(context.Background()).Info("bot authorized", "account", api.Self.UserName)

	b := newBot(api, userRepo, categorySvc, todoSvc, digestSvc, generator)
	b.api = api
	return b, nil
}

func newBot(s sender, userRepo *repository.UserRepository, categorySvc *service.CategoryService, todoSvc *service.TodoService, digestSvc *service.DigestService, generator *service.InstanceGenerator) *Bot {
	return &Bot{
		sender:        s,
		userRepo:      userRepo,
		categorySvc:   categorySvc,
		todoSvc:       todoSvc,
		digestSvc:     digestSvc,
		generator:     generator,
		now:           time.Now,
		conversations: make(map[int64]*conversationState),
		confirmations: make(map[int64]pendingDelete),
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	log := logging.FromContext(ctx)

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	log.Info("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				log.Error("handle callback", "error", err)
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				log.Error("handle message", "error", err)
			}
		}
	}

	return ctx.Err()
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Ввод отменён. Можно начать заново.")
	}

	if !msg.IsCommand() {
		if handled, err := b.handleMenuAlias(ctx, msg); handled {
			return err
		}
	}

	if msg.IsCommand() {
		logging.FromContext(ctx).Info("command", "from", msg.From.ID, "command", msg.Command(), "args", msg.CommandArguments())
		return b.handleCommand(ctx, msg)
	}

	if pending, ok := b.getConfirmation(msg.From.ID); ok {
		return b.handleConfirmationResponse(ctx, msg, pending)
	}

	if b.hasConversation(msg.From.ID) {
		return b.handleConversation(ctx, msg)
	}

	return b.sendText(msg.Chat.ID, "Я пока не понял сообщение. Набери /newtodo, чтобы добавить задачу, или /help для списка команд.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "newtodo":
		return b.startNewTodoConversation(ctx, msg)
	case "today":
		return b.handleToday(ctx, msg)
	case "done":
		return b.handleDone(ctx, msg)
	case "toggle":
		return b.handleToggle(ctx, msg)
	case "delete":
		return b.handleDelete(ctx, msg)
	case "categories":
		return b.handleCategories(ctx, msg)
	case "generate":
		return b.handleGenerate(ctx, msg)
	case "cancel":
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Диалог сброшен.")
	default:
		return b.sendText(msg.Chat.ID, "Неизвестная команда. /help покажет список.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}
	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "друг"
	}
	text := fmt.Sprintf("👋 Привет, %s!\nЯ веду список дел по дням и сам размечаю повторяющиеся задачи в календаре.\n\n/help покажет все команды.", escape(name))
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	text := strings.Join([]string{
		"ℹ️ <b>Команды</b>",
		"/newtodo — новая задача",
		"/today [2025-01-31] — задачи на день",
		"/done &lt;id повтора&gt; — отметить повтор выполненным",
		"/toggle &lt;id задачи&gt; — отметить задачу выполненной",
		"/delete &lt;id задачи&gt; — удалить задачу со всеми повторами",
		"/categories — категории",
		"/generate [дни] — разметить повторы вперёд",
		"/cancel — сбросить ввод",
	}, "\n")
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) startNewTodoConversation(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}
	b.setConversation(msg.From.ID, &conversationState{stage: stageTitle})
	return b.sendWithReplyMarkup(msg.Chat.ID, "🆕 Создаём новую задачу.\n<b>Шаг 1:</b> как её назвать?", cancelKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	state := b.getConversation(msg.From.ID)
	if state == nil {
		return nil
	}

	text := strings.TrimSpace(msg.Text)
	switch state.stage {
	case stageTitle:
		if text == "" {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Название не может быть пустым.", cancelKeyboard())
		}
		state.input.Title = text
		state.stage = stageDetails
		return b.sendWithReplyMarkup(msg.Chat.ID, "✏️ Добавь подробности (или нажми «Пропустить»).", skipKeyboard())
	case stageDetails:
		if !isSkipInput(text) {
			state.input.Details = text
		}
		state.stage = stageCategory
		return b.sendWithReplyMarkup(msg.Chat.ID, "🏷 Укажи категорию (или «Пропустить»).", skipKeyboard())
	case stageCategory:
		if !isSkipInput(text) {
			state.input.Category = text
		}
		state.stage = stageDueDate
		return b.sendWithReplyMarkup(msg.Chat.ID, "⏰ Когда выполнить? Дата в формате <code>2025-11-30</code> («Пропустить» — завтра).", skipKeyboard())
	case stageDueDate:
		if isSkipInput(text) {
			state.input.DueDate = model.FormatDate(b.now().AddDate(0, 0, 1))
		} else {
			if _, err := time.Parse(model.DateLayout, text); err != nil {
				return b.sendWithReplyMarkup(msg.Chat.ID, "Не могу распознать дату. Используй формат <code>2025-11-30</code> или «Пропустить».", skipKeyboard())
			}
			state.input.DueDate = text
		}
		state.stage = stageRecurring
		return b.sendWithReplyMarkup(msg.Chat.ID, "🔁 Сделать задачу повторяющейся?", yesNoKeyboard())
	case stageRecurring:
		lower := strings.ToLower(text)
		if lower == "да" || lower == "yes" || lower == "y" {
			state.input.Recurring = true
			state.stage = stageSchedule
			return b.sendWithReplyMarkup(msg.Chat.ID, "📆 Как часто? daily, weekly, monthly, yearly или число дней.", scheduleKeyboard())
		}
		if lower == "нет" || lower == "no" || lower == "n" || lower == "-" {
			state.input.Recurring = false
			err := b.finishTodoCreation(ctx, msg.From, state.input, msg.Chat.ID)
			b.clearConversation(msg.From.ID)
			return err
		}
		return b.sendWithReplyMarkup(msg.Chat.ID, "Нажми «Да» или «Нет».", yesNoKeyboard())
	case stageSchedule:
		state.input.RecurringSchedule = text
		err := b.finishTodoCreation(ctx, msg.From, state.input, msg.Chat.ID)
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Не понимаю расписание. Выбери вариант на клавиатуре или напиши число дней.", scheduleKeyboard())
		}
		b.clearConversation(msg.From.ID)
		return err
	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Диалог сброшен. Попробуй ещё раз через /newtodo.")
	}
}

// finishTodoCreation stores the todo. An invalid schedule is returned as a
// *service.ValidationError so the conversation can ask again.
func (b *Bot) finishTodoCreation(ctx context.Context, from *tgbotapi.User, input service.TodoInput, chatID int64) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}

	todo, err := b.todoSvc.CreateTodo(ctx, user, input)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) && verr.Field == "recurring_schedule" {
			return err
		}
		return b.sendText(chatID, fmt.Sprintf("Не удалось сохранить задачу: %s", escape(err.Error())))
	}

	var summary strings.Builder
	summary.WriteString("✅ <b>Задача сохранена</b>\n")
	summary.WriteString(fmt.Sprintf("• <b>ID:</b> %d\n", todo.ID))
	summary.WriteString(fmt.Sprintf("• <b>Название:</b> %s\n", escape(normalizeTitle(todo.Title))))
	if todo.Details != "" {
		summary.WriteString(fmt.Sprintf("• <b>Подробности:</b> %s\n", escape(todo.Details)))
	}
	summary.WriteString(fmt.Sprintf("• <b>Дата:</b> %s\n", todo.DueDate))
	if todo.Recurring {
		summary.WriteString(fmt.Sprintf("• <b>Повтор:</b> %s\n", service.ScheduleLabel(todo.RecurringSchedule)))
	}

	return b.sendTextWithRemove(chatID, strings.TrimSpace(summary.String()))
}

func (b *Bot) handleToday(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	date, ok := parseDateArg(msg.CommandArguments(), b.now())
	if !ok {
		return b.sendText(msg.Chat.ID, "Дата должна быть в формате <code>2025-11-30</code>.")
	}
	return b.sendDay(ctx, msg.Chat.ID, user, date)
}

func (b *Bot) sendDay(ctx context.Context, chatID int64, user *model.User, date string) error {
	view, err := b.todoSvc.ListDay(ctx, user, service.DayFilter{Date: date, PageSize: 50})
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Не удалось получить задачи: %s", escape(err.Error())))
	}
	if len(view.Items) == 0 {
		return b.sendText(chatID, fmt.Sprintf("На %s задач нет. Добавь новую через /newtodo.", date))
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("📋 <b>Задачи на %s</b>\n", date))
	builder.WriteString("Нажми на кнопку, чтобы отметить выполнение или удалить задачу.\n\n")

	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, item := range view.Items {
		builder.WriteString(formatDayItem(item))

		toggleData := fmt.Sprintf("%s%d:%s", cbTodoPrefix, item.Todo.ID, date)
		complete := item.Todo.Complete
		if item.Instance != nil {
			toggleData = fmt.Sprintf("%s%d", cbInstancePrefix, item.Instance.ID)
			complete = item.Instance.Complete
		}
		label := fmt.Sprintf("%s #%d · %s", iconDone, item.Todo.ID, shortTitle(item.Todo.Title, 20))
		if complete {
			label = fmt.Sprintf("↩️ #%d · %s", item.Todo.ID, shortTitle(item.Todo.Title, 20))
		}
		buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, toggleData),
			tgbotapi.NewInlineKeyboardButtonData("\U0001F5D1", fmt.Sprintf("%s%d", cbDeletePrefix, item.Todo.ID)),
		))
	}

	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(builder.String()))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err = b.sender.Send(msg)
	return err
}

func (b *Bot) handleDone(ctx context.Context, msg *tgbotapi.Message) error {
	id, err := parseID(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Укажи ID повтора: /done 12")
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	instance, err := b.todoSvc.ToggleInstance(ctx, user, id)
	if err != nil {
		return b.sendServiceError(msg.Chat.ID, err)
	}
	return b.sendText(msg.Chat.ID, instanceToggledText(instance))
}

func (b *Bot) handleToggle(ctx context.Context, msg *tgbotapi.Message) error {
	id, err := parseID(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Укажи ID задачи: /toggle 12")
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	todo, err := b.todoSvc.ToggleTodo(ctx, user, id)
	if err != nil {
		return b.sendServiceError(msg.Chat.ID, err)
	}
	return b.sendText(msg.Chat.ID, todoToggledText(todo))
}

// handleDelete asks to confirm removing a todo together with all its instances.
func (b *Bot) handleDelete(ctx context.Context, msg *tgbotapi.Message) error {
	id, err := parseID(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Укажи ID задачи: /delete 12")
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	return b.askDeleteConfirmation(ctx, msg.Chat.ID, msg.From.ID, user, id)
}

func (b *Bot) askDeleteConfirmation(ctx context.Context, chatID, telegramID int64, user *model.User, todoID uint) error {
	todo, err := b.todoSvc.GetTodo(ctx, user, todoID)
	if err != nil {
		return b.sendServiceError(chatID, err)
	}
	b.setConfirmation(telegramID, pendingDelete{todoID: todo.ID})
	text := fmt.Sprintf("Удалить задачу \"%s\" (#%d) вместе со всеми повторами?", escape(normalizeTitle(todo.Title)), todo.ID)
	return b.sendWithReplyMarkup(chatID, text, confirmKeyboard())
}

func (b *Bot) handleCategories(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	categories, err := b.categorySvc.List(ctx, user)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось получить категории: %s", escape(err.Error())))
	}
	if len(categories) == 0 {
		return b.sendText(msg.Chat.ID, "Категории пока пусты. Добавь их при создании задачи.")
	}
	var builder strings.Builder
	builder.WriteString("📂 <b>Категории</b>\n")
	for _, cat := range categories {
		builder.WriteString(fmt.Sprintf("• %s\n", escape(strings.TrimSpace(cat.Name))))
	}
	return b.sendText(msg.Chat.ID, strings.TrimSpace(builder.String()))
}

func (b *Bot) handleGenerate(ctx context.Context, msg *tgbotapi.Message) error {
	days := config.DefaultManualGenerateDays
	if args := strings.TrimSpace(msg.CommandArguments()); args != "" {
		parsed, err := strconv.Atoi(args)
		if err != nil || parsed <= 0 {
			return b.sendText(msg.Chat.ID, "Количество дней должно быть положительным числом, например /generate 30")
		}
		days = parsed
	}
	if limit := b.generator.MaxHorizon(); days > limit {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Можно разметить не больше %d дн. вперёд.", limit))
	}

	created, err := b.generator.Generate(ctx, days)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Ошибка генерации: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("♻️ Повторы размечены на %d дн. вперёд, создано: %d.", days, created))
}

func (b *Bot) handleConfirmationResponse(ctx context.Context, msg *tgbotapi.Message, req pendingDelete) error {
	text := strings.TrimSpace(msg.Text)
	switch {
	case isConfirmInput(text):
		b.clearConfirmation(msg.From.ID)
		return b.deleteTodoAndRefresh(ctx, msg.Chat.ID, msg.From, req.todoID)
	case isCancelInput(text):
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "🔹 Главное меню")
	default:
		return b.sendWithReplyMarkup(msg.Chat.ID, "Подтверди или отмени удаление задачи.", confirmKeyboard())
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}
	if _, err := b.sender.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		logging.FromContext(ctx).Warn("callback ack", "error", err)
	}

	user, err := b.ensureUser(ctx, cb.From)
	if err != nil {
		return err
	}
	chatID := cb.Message.Chat.ID
	data := cb.Data

	switch {
	case strings.HasPrefix(data, cbInstancePrefix):
		id, err := parseID(strings.TrimPrefix(data, cbInstancePrefix))
		if err != nil {
			return nil
		}
		instance, err := b.todoSvc.ToggleInstance(ctx, user, id)
		if err != nil {
			return b.sendServiceError(chatID, err)
		}
		if err := b.sendText(chatID, instanceToggledText(instance)); err != nil {
			return err
		}
		return b.sendDay(ctx, chatID, user, instance.DueDate)
	case strings.HasPrefix(data, cbTodoPrefix):
		id, date, err := parseTodoCallback(strings.TrimPrefix(data, cbTodoPrefix))
		if err != nil {
			return nil
		}
		todo, err := b.todoSvc.ToggleTodo(ctx, user, id)
		if err != nil {
			return b.sendServiceError(chatID, err)
		}
		if err := b.sendText(chatID, todoToggledText(todo)); err != nil {
			return err
		}
		if date == "" {
			date = todo.DueDate
		}
		return b.sendDay(ctx, chatID, user, date)
	case strings.HasPrefix(data, cbDeletePrefix):
		id, err := parseID(strings.TrimPrefix(data, cbDeletePrefix))
		if err != nil {
			return nil
		}
		return b.askDeleteConfirmation(ctx, chatID, cb.From.ID, user, id)
	default:
		return nil
	}
}

func (b *Bot) deleteTodoAndRefresh(ctx context.Context, chatID int64, from *tgbotapi.User, todoID uint) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}
	todo, err := b.todoSvc.GetTodo(ctx, user, todoID)
	if err != nil {
		return b.sendServiceError(chatID, err)
	}
	if err := b.todoSvc.DeleteTodo(ctx, user, todoID); err != nil {
		return b.sendServiceError(chatID, err)
	}
	return b.sendTextWithRemove(chatID, fmt.Sprintf("\U0001F5D1 Задача \"%s\" удалена.", escape(normalizeTitle(todo.Title))))
}

// SendDailyDigests sends today's summary to every Telegram user.
func (b *Bot) SendDailyDigests(ctx context.Context) error {
	log := logging.FromContext(ctx)
	users, err := b.userRepo.ListTelegramUsers(ctx)
	if err != nil {
		return err
	}
	now := b.now()
	for _, user := range users {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		text, err := b.digestSvc.DaySummary(ctx, user, now)
		if err != nil {
			log.Error("build digest", "user_id", user.ID, "error", err)
			continue
		}
		if err := b.sendText(*user.TelegramID, text); err != nil {
			log.Error("send digest", "user_id", user.ID, "error", err)
		}
	}
	return nil
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	text := strings.TrimSpace(strings.ToLower(msg.Text))
	switch text {
	case strings.ToLower(menuLabelNewTodo):
		return true, b.startNewTodoConversation(ctx, msg)
	case strings.ToLower(menuLabelToday):
		return true, b.handleToday(ctx, msg)
	case strings.ToLower(menuLabelCategories):
		return true, b.handleCategories(ctx, msg)
	case strings.ToLower(menuLabelHelp):
		return true, b.handleHelp(msg)
	default:
		return false, nil
	}
}

func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User) (*model.User, error) {
	return b.userRepo.UpsertFromTelegram(ctx, from.ID, from.FirstName, from.LastName, from.UserName)
}

func (b *Bot) sendServiceError(chatID int64, err error) error {
	if errors.Is(err, service.ErrNotFound) {
		return b.sendText(chatID, "Задача не найдена.")
	}
	return b.sendText(chatID, fmt.Sprintf("Ошибка: %s", escape(err.Error())))
}

func (b *Bot) sendText(chatID int64, text string) error {
	return b.sendWithReplyMarkup(chatID, text, mainMenuKeyboard())
}

func (b *Bot) sendTextWithRemove(chatID int64, text string) error {
	if err := b.sendWithReplyMarkup(chatID, text, tgbotapi.NewRemoveKeyboard(true)); err != nil {
		return err
	}
	return b.sendText(chatID, "🔹 Главное меню")
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.sender.Send(msg)
	return err
}

func (b *Bot) getConfirmation(userID int64) (pendingDelete, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	req, ok := b.confirmations[userID]
	return req, ok
}

func (b *Bot) setConfirmation(userID int64, req pendingDelete) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmations[userID] = req
}

func (b *Bot) clearConfirmation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.confirmations, userID)
}

func (b *Bot) setConversation(userID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[userID] = state
}

func (b *Bot) getConversation(userID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) hasConversation(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.conversations[userID]
	return ok
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}

// parseDateArg reads an optional YYYY-MM-DD argument, defaulting to the day of now.
func parseDateArg(args string, now time.Time) (string, bool) {
	args = strings.TrimSpace(args)
	if args == "" {
		return model.FormatDate(now), true
	}
	if _, err := time.Parse(model.DateLayout, args); err != nil {
		return "", false
	}
	return args, true
}

// parseTodoCallback reads "<id>" or "<id>:<YYYY-MM-DD>", the date being the day the list showed.
func parseTodoCallback(payload string) (uint, string, error) {
	rawID, date, hasDate := strings.Cut(payload, ":")
	id, err := parseID(rawID)
	if err != nil {
		return 0, "", err
	}
	if !hasDate {
		return id, "", nil
	}
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		return 0, "", fmt.Errorf("callback date %q: %w", date, err)
	}
	return id, date, nil
}

func parseID(raw string) (uint, error) {
	value, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, err
	}
	if value == 0 {
		return 0, fmt.Errorf("id must be positive")
	}
	return uint(value), nil
}

func instanceToggledText(instance *model.TodoInstance) string {
	if instance.Complete {
		return fmt.Sprintf("%s Повтор #%d на %s выполнен.", iconDone, instance.ID, instance.DueDate)
	}
	return fmt.Sprintf("↩️ Повтор #%d на %s снова открыт.", instance.ID, instance.DueDate)
}

func todoToggledText(todo *model.Todo) string {
	if todo.Complete {
		return fmt.Sprintf("%s Задача «%s» выполнена.", iconDone, escape(normalizeTitle(todo.Title)))
	}
	return fmt.Sprintf("↩️ Задача «%s» снова открыта.", escape(normalizeTitle(todo.Title)))
}

func formatDayItem(item service.DayItem) string {
	var b strings.Builder
	todo := item.Todo

	icon := iconOpen
	complete := todo.Complete
	if item.Instance != nil {
		complete = item.Instance.Complete
	}
	if complete {
		icon = iconDone
	} else if todo.Recurring {
		icon = iconRecurring
	}

	b.WriteString(fmt.Sprintf("%s <b>#%d</b> %s\n", icon, todo.ID, escape(normalizeTitle(todo.Title))))
	category := noCategory
	if todo.Category != nil && strings.TrimSpace(todo.Category.Name) != "" {
		category = strings.TrimSpace(todo.Category.Name)
	}
	b.WriteString(fmt.Sprintf("   🏷 %s\n", escape(category)))
	if todo.Recurring {
		b.WriteString(fmt.Sprintf("   🔄 %s", service.ScheduleLabel(todo.RecurringSchedule)))
		if item.Instance != nil {
			b.WriteString(fmt.Sprintf(" · повтор #%d", item.Instance.ID))
		}
		b.WriteByte('\n')
	}
	if todo.Details != "" {
		b.WriteString(fmt.Sprintf("   📝 %s\n", escape(todo.Details)))
	}
	b.WriteByte('\n')
	return b.String()
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	clean = normalizeTitle(clean)
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func confirmKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnConfirm),
			tgbotapi.NewKeyboardButton(btnCancel),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelNewTodo),
			tgbotapi.NewKeyboardButton(menuLabelToday),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelCategories),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func skipKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSkip),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func yesNoKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnYes),
			tgbotapi.NewKeyboardButton(btnNo),
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func scheduleKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("daily"),
			tgbotapi.NewKeyboardButton("weekly"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("monthly"),
			tgbotapi.NewKeyboardButton("yearly"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func isSkipInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == "-" || value == strings.ToLower(btnSkip) || value == "пропустить" || value == "skip"
}

func isConfirmInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnConfirm) || value == "подтвердить" || value == "да"
}

func isCancelInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancel) || value == "отмена"
}

func isCancelDialogInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancelDialog) || value == "отменить ввод"
}

func escape(s string) string {
	return html.EscapeString(s)
}

func normalizeTitle(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
