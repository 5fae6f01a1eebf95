package bot

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todo-planner/internal/model"
	"todo-planner/internal/repository"
	"todo-planner/internal/service"
)

type sentMessage struct {
	chatID int64
	text   string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
	acks int
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, sentMessage{chatID: msg.ChatID, text: msg.Text})
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acks++
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1].text
}

func (f *fakeSender) all() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	texts := make([]string, 0, len(f.sent))
	for _, m := range f.sent {
		texts = append(texts, m.text)
	}
	return strings.Join(texts, "\n")
}

type testBot struct {
	*Bot
	sender    *fakeSender
	users     *repository.UserRepository
	instances *repository.InstanceRepository
}

func setupBot(t *testing.T) *testBot {
	t.Helper()
	db, err := repository.NewDB(":memory:")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	users := repository.NewUserRepository(db)
	todos := repository.NewTodoRepository(db)
	instances := repository.NewInstanceRepository(db)
	categories := repository.NewCategoryRepository(db)

	now := func() time.Time { return time.Date(2025, time.January, 1, 10, 30, 0, 0, time.UTC) }
	generator := service.NewInstanceGenerator(todos, instances).WithClock(now)

	fake := &fakeSender{}
	b := newBot(fake, users,
		service.NewCategoryService(categories),
		service.NewTodoService(todos, instances, categories),
		service.NewDigestService(todos, categories),
		generator,
	)
	b.now = now
	return &testBot{Bot: b, sender: fake, users: users, instances: instances}
}

func message(userID int64, text string) *tgbotapi.Message {
	msg := &tgbotapi.Message{
		From: &tgbotapi.User{ID: userID, FirstName: "Sam"},
		Chat: &tgbotapi.Chat{ID: userID, Type: "private"},
		Text: text,
	}
	if strings.HasPrefix(text, "/") {
		length := strings.IndexByte(text, ' ')
		if length < 0 {
			length = len(text)
		}
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: length}}
	}
	return msg
}

func (tb *testBot) say(t *testing.T, userID int64, texts ...string) {
	t.Helper()
	for _, text := range texts {
		require.NoError(t, tb.handleMessage(context.Background(), message(userID, text)))
	}
}

func (tb *testBot) userFor(t *testing.T, telegramID int64) *model.User {
	t.Helper()
	user, err := tb.users.FindByTelegramID(context.Background(), telegramID)
	require.NoError(t, err)
	return user
}

func (tb *testBot) day(t *testing.T, telegramID int64, date string) *service.DayView {
	t.Helper()
	view, err := tb.todoSvc.ListDay(context.Background(), tb.userFor(t, telegramID), service.DayFilter{Date: date})
	require.NoError(t, err)
	return view
}

func TestNewTodoConversationCreatesRecurringTodo(t *testing.T) {
	tb := setupBot(t)

	tb.say(t, 42, "/newtodo", "stretch", btnSkip, "Health", "2025-01-01", btnYes, "Daily")

	assert.Contains(t, tb.sender.all(), "Задача сохранена")
	assert.False(t, tb.hasConversation(42))

	view := tb.day(t, 42, "2025-01-01")
	require.Len(t, view.Items, 1)
	item := view.Items[0]
	assert.Equal(t, "stretch", item.Todo.Title)
	assert.True(t, item.Todo.Recurring)
	assert.Equal(t, "daily", item.Todo.RecurringSchedule)
	require.NotNil(t, item.Todo.Category)
	assert.Equal(t, "Health", item.Todo.Category.Name)
	require.NotNil(t, item.Instance)
	assert.Equal(t, "2025-01-01", item.Instance.DueDate)
}

func TestNewTodoConversationSkipDueDateMeansTomorrow(t *testing.T) {
	tb := setupBot(t)

	tb.say(t, 7, "/newtodo", "call mom", "-", "-", btnSkip, btnNo)

	view := tb.day(t, 7, "2025-01-02")
	require.Len(t, view.Items, 1)
	assert.False(t, view.Items[0].Todo.Recurring)
	assert.Empty(t, view.Items[0].Todo.RecurringSchedule)
	assert.Nil(t, view.Items[0].Instance)
}

func TestNewTodoConversationRepromptsUnknownSchedule(t *testing.T) {
	tb := setupBot(t)

	tb.say(t, 42, "/newtodo", "water plants", btnSkip, btnSkip, "2025-01-01", btnYes, "fortnightly")
	assert.Contains(t, tb.sender.last(), "Не понимаю расписание")
	assert.True(t, tb.hasConversation(42))

	tb.say(t, 42, "3")
	assert.False(t, tb.hasConversation(42))

	view := tb.day(t, 42, "2025-01-01")
	require.Len(t, view.Items, 1)
	assert.Equal(t, "3", view.Items[0].Todo.RecurringSchedule)
}

func TestNewTodoConversationRejectsBadDate(t *testing.T) {
	tb := setupBot(t)

	tb.say(t, 42, "/newtodo", "pay rent", btnSkip, btnSkip, "31.01.2025")
	assert.Contains(t, tb.sender.last(), "Не могу распознать дату")
	assert.Equal(t, stageDueDate, tb.getConversation(42).stage)
}

func TestCancelDialogClearsConversation(t *testing.T) {
	tb := setupBot(t)

	tb.say(t, 42, "/newtodo", "pay rent", btnCancelDialog)
	assert.False(t, tb.hasConversation(42))
	assert.Contains(t, tb.sender.last(), "Ввод отменён")
}

func TestGenerateCommand(t *testing.T) {
	tb := setupBot(t)
	tb.say(t, 42, "/newtodo", "stretch", btnSkip, btnSkip, "2025-01-01", btnYes, "daily")

	tb.say(t, 42, "/generate 5")
	assert.Contains(t, tb.sender.last(), "создано: 4")

	for _, date := range []string{"2025-01-02", "2025-01-05"} {
		view := tb.day(t, 42, date)
		require.Len(t, view.Items, 1, date)
		require.NotNil(t, view.Items[0].Instance, date)
	}
	assert.Empty(t, tb.day(t, 42, "2025-01-06").Items)

	tb.say(t, 42, "/generate 5")
	assert.Contains(t, tb.sender.last(), "создано: 0")
}

func TestGenerateCommandRejectsInvalidDays(t *testing.T) {
	tb := setupBot(t)

	for _, arg := range []string{"0", "-4", "soon"} {
		tb.say(t, 42, "/generate "+arg)
		assert.Contains(t, tb.sender.last(), "положительным", arg)
	}
}

func TestGenerateCommandRejectsHorizonAboveMaximum(t *testing.T) {
	tb := setupBot(t)
	tb.generator.WithMaxHorizon(100)
	tb.say(t, 42, "/newtodo", "stretch", btnSkip, btnSkip, "2025-01-01", btnYes, "daily")
	todoID := tb.day(t, 42, "2025-01-01").Items[0].Todo.ID

	tb.say(t, 42, "/generate 200000")
	assert.Contains(t, tb.sender.last(), "не больше 100")

	instances, err := tb.instances.ListByTodo(context.Background(), todoID)
	require.NoError(t, err)
	assert.Len(t, instances, 1)
}

func TestTodayShowsTodosOfTheDay(t *testing.T) {
	tb := setupBot(t)
	tb.say(t, 42, "/newtodo", "stretch", btnSkip, btnSkip, "2025-01-01", btnYes, "daily")
	tb.say(t, 42, "/generate 5")

	tb.say(t, 42, "/today 2025-01-03")
	assert.Contains(t, tb.sender.last(), "Задачи на 2025-01-03")
	assert.Contains(t, tb.sender.last(), "Stretch")

	tb.say(t, 42, "/today 2025-02-01")
	assert.Contains(t, tb.sender.last(), "задач нет")

	tb.say(t, 42, "/today tomorrow")
	assert.Contains(t, tb.sender.last(), "формате")
}

func TestDoneTogglesInstance(t *testing.T) {
	tb := setupBot(t)
	tb.say(t, 42, "/newtodo", "stretch", btnSkip, btnSkip, "2025-01-01", btnYes, "daily")

	view := tb.day(t, 42, "2025-01-01")
	require.Len(t, view.Items, 1)
	instanceID := view.Items[0].Instance.ID

	tb.say(t, 42, "/done "+strconv.FormatUint(uint64(instanceID), 10))
	assert.Contains(t, tb.sender.all(), "выполнен")

	view = tb.day(t, 42, "2025-01-01")
	assert.True(t, view.Items[0].Instance.Complete)

	tb.say(t, 42, "/done 9999")
	assert.Contains(t, tb.sender.last(), "не найдена")
}

func TestDoneIgnoresOtherUsersInstances(t *testing.T) {
	tb := setupBot(t)
	tb.say(t, 42, "/newtodo", "stretch", btnSkip, btnSkip, "2025-01-01", btnYes, "daily")
	instanceID := tb.day(t, 42, "2025-01-01").Items[0].Instance.ID

	tb.say(t, 43, "/done "+strconv.FormatUint(uint64(instanceID), 10))
	assert.Contains(t, tb.sender.last(), "не найдена")
	assert.False(t, tb.day(t, 42, "2025-01-01").Items[0].Instance.Complete)
}

func TestDeleteCallbackRequiresConfirmation(t *testing.T) {
	tb := setupBot(t)
	tb.say(t, 42, "/newtodo", "stretch", btnSkip, btnSkip, "2025-01-01", btnYes, "daily")
	tb.say(t, 42, "/generate 3")
	todoID := tb.day(t, 42, "2025-01-01").Items[0].Todo.ID

	cb := &tgbotapi.CallbackQuery{
		ID:      "cb-1",
		From:    &tgbotapi.User{ID: 42},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 42, Type: "private"}},
		Data:    cbDeletePrefix + strconv.FormatUint(uint64(todoID), 10),
	}
	require.NoError(t, tb.handleCallback(context.Background(), cb))
	assert.Equal(t, 1, tb.sender.acks)
	assert.Contains(t, tb.sender.last(), "Удалить задачу")

	pending, ok := tb.getConfirmation(42)
	require.True(t, ok)
	assert.Equal(t, todoID, pending.todoID)

	tb.say(t, 42, btnConfirm)
	_, ok = tb.getConfirmation(42)
	assert.False(t, ok)
	assert.Contains(t, tb.sender.all(), "удалена")

	assert.Empty(t, tb.day(t, 42, "2025-01-01").Items)
	instances, err := tb.instances.ListByTodo(context.Background(), todoID)
	require.NoError(t, err)
	assert.Empty(t, instances)
}

func TestDeleteCommandRequiresConfirmation(t *testing.T) {
	tb := setupBot(t)
	tb.say(t, 42, "/newtodo", "stretch", btnSkip, btnSkip, "2025-01-01", btnYes, "daily")
	todoID := tb.day(t, 42, "2025-01-01").Items[0].Todo.ID
	idArg := strconv.FormatUint(uint64(todoID), 10)

	tb.say(t, 42, "/delete "+idArg)
	assert.Contains(t, tb.sender.last(), "Удалить задачу")
	pending, ok := tb.getConfirmation(42)
	require.True(t, ok)
	assert.Equal(t, todoID, pending.todoID)
	assert.Len(t, tb.day(t, 42, "2025-01-01").Items, 1, "nothing is deleted before confirmation")

	tb.say(t, 42, btnCancel)
	_, ok = tb.getConfirmation(42)
	assert.False(t, ok)
	assert.Len(t, tb.day(t, 42, "2025-01-01").Items, 1)

	tb.say(t, 42, "/delete "+idArg, btnConfirm)
	assert.Contains(t, tb.sender.all(), "удалена")
	assert.Empty(t, tb.day(t, 42, "2025-01-01").Items)
}

func TestDeleteCommandUnknownTodo(t *testing.T) {
	tb := setupBot(t)

	tb.say(t, 42, "/delete 404")
	assert.Contains(t, tb.sender.last(), "не найдена")
	_, ok := tb.getConfirmation(42)
	assert.False(t, ok)
}

func TestToggleCallbackRedrawsViewedDay(t *testing.T) {
	tb := setupBot(t)
	tb.say(t, 42, "/newtodo", "call mom", btnSkip, btnSkip, "2025-01-01", btnNo)
	todoID := tb.day(t, 42, "2025-01-01").Items[0].Todo.ID

	cb := &tgbotapi.CallbackQuery{
		ID:      "cb-3",
		From:    &tgbotapi.User{ID: 42},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 42, Type: "private"}},
		Data:    cbTodoPrefix + strconv.FormatUint(uint64(todoID), 10) + ":2025-01-07",
	}
	require.NoError(t, tb.handleCallback(context.Background(), cb))
	assert.True(t, tb.day(t, 42, "2025-01-01").Items[0].Todo.Complete)
	assert.Contains(t, tb.sender.last(), "2025-01-07")
}

func TestParseTodoCallback(t *testing.T) {
	id, date, err := parseTodoCallback("12:2025-01-07")
	require.NoError(t, err)
	assert.Equal(t, uint(12), id)
	assert.Equal(t, "2025-01-07", date)

	id, date, err = parseTodoCallback("12")
	require.NoError(t, err)
	assert.Equal(t, uint(12), id)
	assert.Empty(t, date)

	for _, payload := range []string{"", "x:2025-01-07", "12:tomorrow"} {
		_, _, err := parseTodoCallback(payload)
		assert.Error(t, err, payload)
	}
}

func TestToggleCallbackFlipsTodo(t *testing.T) {
	tb := setupBot(t)
	tb.say(t, 42, "/newtodo", "call mom", btnSkip, btnSkip, "2025-01-01", btnNo)
	todoID := tb.day(t, 42, "2025-01-01").Items[0].Todo.ID

	cb := &tgbotapi.CallbackQuery{
		ID:      "cb-2",
		From:    &tgbotapi.User{ID: 42},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 42, Type: "private"}},
		Data:    cbTodoPrefix + strconv.FormatUint(uint64(todoID), 10),
	}
	require.NoError(t, tb.handleCallback(context.Background(), cb))
	assert.True(t, tb.day(t, 42, "2025-01-01").Items[0].Todo.Complete)
}

func TestSendDailyDigests(t *testing.T) {
	tb := setupBot(t)
	ctx := context.Background()
	tb.say(t, 1, "/start")
	tb.say(t, 2, "/start")
	_, err := tb.users.UpsertByExternalID(ctx, "http-only")
	require.NoError(t, err)

	before := len(tb.sender.sent)
	require.NoError(t, tb.SendDailyDigests(ctx))

	sent := tb.sender.sent[before:]
	require.Len(t, sent, 2)
	chats := []int64{sent[0].chatID, sent[1].chatID}
	assert.ElementsMatch(t, []int64{1, 2}, chats)
}

func TestParseDateArg(t *testing.T) {
	now := time.Date(2025, time.March, 9, 23, 0, 0, 0, time.UTC)

	date, ok := parseDateArg("", now)
	assert.True(t, ok)
	assert.Equal(t, "2025-03-09", date)

	date, ok = parseDateArg(" 2024-02-29 ", now)
	assert.True(t, ok)
	assert.Equal(t, "2024-02-29", date)

	_, ok = parseDateArg("2025-02-30", now)
	assert.False(t, ok)
}

func TestParseID(t *testing.T) {
	id, err := parseID(" 12 ")
	require.NoError(t, err)
	assert.Equal(t, uint(12), id)

	for _, raw := range []string{"", "0", "-1", "abc"} {
		_, err := parseID(raw)
		assert.Error(t, err, raw)
	}
}

func TestShortTitle(t *testing.T) {
	assert.Equal(t, "Short", shortTitle("short", 10))
	assert.Equal(t, "Полить цв…", shortTitle("полить цветы", 10))
}
