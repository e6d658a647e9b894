package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"creator-feed/internal/adapters/telegram"
	"creator-feed/internal/domain"
	"creator-feed/internal/infra/metrics"
	"creator-feed/internal/usecase/creators"
	"creator-feed/internal/usecase/feed"
	"creator-feed/internal/usecase/playback"
)

const clearConfirmWindow = 5 * time.Minute

// Bot — часть Telegram API, которой пользуется обработчик.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Creators — подписки на авторов.
type Creators interface {
	Follow(ctx context.Context, input, name string) (domain.Creator, error)
	List(ctx context.Context, limit, offset int) ([]domain.Creator, error)
	Get(ctx context.Context, input string) (domain.Creator, error)
	Unfollow(ctx context.Context, creatorID string) error
	WipeAll(ctx context.Context) error
}

// Feeds — API лент.
type Feeds interface {
	Queue(ctx context.Context, creatorID string) (playback.QueueView, error)
	Play(ctx context.Context, creatorID string, surface playback.Surface) (playback.Playback, error)
	Stop(ctx context.Context, creatorID string) error
	Ended(ctx context.Context, creatorID, videoID string, cause domain.PlaybackCause) (string, error)
	Refresh(ctx context.Context, creatorID string) (feed.Feed, error)
	Reset(ctx context.Context, creatorID string) (feed.Feed, error)
	Stats(ctx context.Context, creatorID string) (feed.FeedStats, error)
	Recent(ctx context.Context) ([]domain.Creator, error)
	ClearRecent(ctx context.Context) error
	Touch(ctx context.Context, creatorID string) error
}

// Handler обслуживает вебхук бота.
type Handler struct {
	bot         Bot
	log         zerolog.Logger
	creators    Creators
	feeds       Feeds
	events      domain.PlaybackQueue
	listLimit   int
	mu          sync.Mutex
	pendingDrop map[int64]time.Time
	now         func() time.Time
}

// NewHandler создаёт обработчик. Если events не задан, пропуск ролика
// отправляется через API лент.
func NewHandler(bot Bot, log zerolog.Logger, creatorsUC Creators, feeds Feeds, events domain.PlaybackQueue, listLimit int) *Handler {
	if listLimit <= 0 {
		listLimit = 20
	}
	return &Handler{
		bot:         bot,
		log:         log,
		creators:    creatorsUC,
		feeds:       feeds,
		events:      events,
		listLimit:   listLimit,
		pendingDrop: make(map[int64]time.Time),
		now:         time.Now,
	}
}

// HandleUpdate обрабатывает входящий апдейт.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message != nil {
		h.handleMessage(ctx, upd.Message)
	} else if upd.CallbackQuery != nil {
		h.handleCallback(ctx, upd.CallbackQuery)
	}
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	command, args := splitCommand(msg.Text)
	switch command {
	case "/start":
		h.reply(chatID, buildStartMessage(), h.mainKeyboard())
	case "/help":
		h.reply(chatID, buildHelpMessage(), h.mainKeyboard())
	case "/follow":
		handle, name := splitFirst(args)
		h.handleFollow(ctx, chatID, handle, name)
	case "/list":
		h.handleList(ctx, chatID)
	case "/queue":
		h.handleQueue(ctx, chatID, args)
	case "/play":
		handle, rest := splitFirst(args)
		h.handlePlay(ctx, chatID, handle, playback.ParseSurface(strings.ToLower(rest)))
	case "/stop":
		h.handleStop(ctx, chatID, args)
	case "/next":
		h.handleNext(ctx, chatID, args)
	case "/refresh":
		h.handleRefresh(ctx, chatID, args, false)
	case "/reset":
		h.handleRefresh(ctx, chatID, args, true)
	case "/stats":
		h.handleStats(ctx, chatID, args)
	case "/unfollow":
		h.handleUnfollow(ctx, chatID, args)
	case "/recent":
		h.handleRecent(ctx, chatID)
	case "/clear_recent":
		h.handleClearRecent(ctx, chatID)
	case "/clear_data_confirm":
		h.handleClearConfirm(ctx, chatID)
	case "/clear_data":
		h.handleClearRequest(chatID)
	default:
		h.reply(chatID, "Неизвестная команда. Используйте /help", nil)
	}
}

func (h *Handler) handleFollow(ctx context.Context, chatID int64, handle, name string) {
	if handle == "" {
		h.reply(chatID, "Отправьте /follow @handle", nil)
		return
	}
	creator, err := h.creators.Follow(ctx, handle, name)
	if err != nil {
		switch {
		case errors.Is(err, creators.ErrHandleInvalid):
			h.reply(chatID, "Некорректный адрес автора. Пример: /follow @example", nil)
		case errors.Is(err, creators.ErrCreatorLimit):
			h.reply(chatID, "Достигнут лимит авторов. Удалите кого-нибудь через /unfollow.", nil)
		case creator.ID != "":
			h.log.Warn().Err(err).Str("creator", creator.ID).Msg("bot: автор сохранён, лента не создана")
			h.reply(chatID, fmt.Sprintf("%s сохранён, но ленту создать не удалось. Попробуйте /refresh %s позже.", creator.Name, creator.ID), nil)
		default:
			h.reply(chatID, fmt.Sprintf("Ошибка подписки: %v", err), nil)
		}
		return
	}
	h.reply(chatID, fmt.Sprintf("Готово: %s", creator.Name), creatorKeyboard(creator.ID))
}

func (h *Handler) handleList(ctx context.Context, chatID int64) {
	list, err := h.creators.List(ctx, h.listLimit, 0)
	if err != nil {
		h.reply(chatID, fmt.Sprintf("Ошибка: %v", err), nil)
		return
	}
	if len(list) == 0 {
		h.reply(chatID, "Вы пока ни на кого не подписаны. Используйте /follow @handle", nil)
		return
	}
	h.reply(chatID, formatCreators(list), listKeyboard(list))
}

func (h *Handler) handleQueue(ctx context.Context, chatID int64, input string) {
	creator, ok := h.resolve(ctx, chatID, input)
	if !ok {
		return
	}
	queue, err := h.feeds.Queue(ctx, creator.ID)
	if err != nil {
		h.reply(chatID, fmt.Sprintf("Не удалось получить очередь: %v", err), nil)
		return
	}
	if err := h.feeds.Touch(ctx, creator.ID); err != nil {
		h.log.Warn().Err(err).Str("creator", creator.ID).Msg("bot: не удалось обновить недавних")
	}
	h.replyHTML(chatID, playback.FormatQueue(creator.Name, queue.Playback), creatorKeyboard(creator.ID))
}

func (h *Handler) handlePlay(ctx context.Context, chatID int64, input string, surface playback.Surface) {
	creator, ok := h.resolve(ctx, chatID, input)
	if !ok {
		return
	}
	p, err := h.feeds.Play(ctx, creator.ID, surface)
	if errors.Is(err, playback.ErrNothingToPlay) {
		h.reply(chatID, "Очередь пуста. Попробуйте /reset "+creator.ID, nil)
		return
	}
	if err != nil {
		h.reply(chatID, fmt.Sprintf("Не удалось запустить: %v", err), nil)
		return
	}
	h.replyHTML(chatID, playback.FormatQueue(creator.Name, p), creatorKeyboard(creator.ID))
}

func (h *Handler) handleStop(ctx context.Context, chatID int64, input string) {
	creator, ok := h.resolve(ctx, chatID, input)
	if !ok {
		return
	}
	if err := h.feeds.Stop(ctx, creator.ID); err != nil {
		h.reply(chatID, fmt.Sprintf("Не удалось остановить: %v", err), nil)
		return
	}
	h.reply(chatID, "Автопроигрывание остановлено", nil)
}

// handleNext пропускает текущий ролик автора. Событие несёт id ролика,
// поэтому повторное нажатие после смены ролика ничего не снимет.
func (h *Handler) handleNext(ctx context.Context, chatID int64, input string) {
	creator, ok := h.resolve(ctx, chatID, input)
	if !ok {
		return
	}
	queue, err := h.feeds.Queue(ctx, creator.ID)
	if err != nil {
		h.reply(chatID, fmt.Sprintf("Не удалось получить очередь: %v", err), nil)
		return
	}
	current, ok := queue.Current()
	if !ok {
		h.reply(chatID, "Очередь пуста. Попробуйте /reset "+creator.ID, nil)
		return
	}
	if err := h.skip(ctx, creator.ID, current.ID); err != nil {
		h.reply(chatID, fmt.Sprintf("Не удалось пропустить ролик: %v", err), nil)
		return
	}
	text := fmt.Sprintf("⏭ Пропущено: %s", titleOf(current))
	if len(queue.Slots) > 1 {
		text += fmt.Sprintf("\nДальше: %s", titleOf(queue.Slots[1].Video))
	}
	h.reply(chatID, text, creatorKeyboard(creator.ID))
}

func (h *Handler) skip(ctx context.Context, creatorID, videoID string) error {
	if h.events != nil {
		event := domain.NewPlaybackEvent(creatorID, videoID, domain.PlaybackCauseSkip)
		err := h.events.Enqueue(ctx, event)
		if err == nil {
			return nil
		}
		h.log.Warn().Err(err).Str("creator", creatorID).Msg("bot: очередь событий недоступна, шлём в API")
	}
	_, err := h.feeds.Ended(ctx, creatorID, videoID, domain.PlaybackCauseSkip)
	return err
}

func (h *Handler) handleRefresh(ctx context.Context, chatID int64, input string, resetHistory bool) {
	creator, ok := h.resolve(ctx, chatID, input)
	if !ok {
		return
	}
	var (
		snapshot feed.Feed
		err      error
	)
	if resetHistory {
		snapshot, err = h.feeds.Reset(ctx, creator.ID)
	} else {
		snapshot, err = h.feeds.Refresh(ctx, creator.ID)
	}
	switch {
	case errors.Is(err, domain.ErrFeedNotFound):
		h.reply(chatID, "Лента ещё не создана. Дождитесь синхронизации.", nil)
	case err != nil:
		h.reply(chatID, fmt.Sprintf("Ошибка: %v", err), nil)
	case resetHistory:
		h.reply(chatID, fmt.Sprintf("История очищена, в очереди %d роликов", snapshot.Len()), creatorKeyboard(creator.ID))
	default:
		h.reply(chatID, fmt.Sprintf("Очередь перестроена: %d роликов", snapshot.Len()), creatorKeyboard(creator.ID))
	}
}

func (h *Handler) handleStats(ctx context.Context, chatID int64, input string) {
	creator, ok := h.resolve(ctx, chatID, input)
	if !ok {
		return
	}
	stats, err := h.feeds.Stats(ctx, creator.ID)
	if errors.Is(err, domain.ErrFeedNotFound) {
		h.reply(chatID, "Лента ещё не создана", nil)
		return
	}
	if err != nil {
		h.reply(chatID, fmt.Sprintf("Ошибка: %v", err), nil)
		return
	}
	h.reply(chatID, formatStats(stats), nil)
}

func (h *Handler) handleUnfollow(ctx context.Context, chatID int64, input string) {
	creator, ok := h.resolve(ctx, chatID, input)
	if !ok {
		return
	}
	if err := h.creators.Unfollow(ctx, creator.ID); err != nil {
		h.reply(chatID, fmt.Sprintf("Не удалось удалить: %v", err), nil)
		return
	}
	h.reply(chatID, fmt.Sprintf("%s удалён", creator.Name), nil)
}

func (h *Handler) handleRecent(ctx context.Context, chatID int64) {
	list, err := h.feeds.Recent(ctx)
	if err != nil {
		h.reply(chatID, fmt.Sprintf("Ошибка: %v", err), nil)
		return
	}
	if len(list) == 0 {
		h.reply(chatID, "Вы ещё никого не открывали", nil)
		return
	}
	h.reply(chatID, "🕘 Недавние:\n"+formatCreators(list), listKeyboard(list))
}

func (h *Handler) handleClearRecent(ctx context.Context, chatID int64) {
	if err := h.feeds.ClearRecent(ctx); err != nil {
		h.reply(chatID, fmt.Sprintf("Ошибка: %v", err), nil)
		return
	}
	h.reply(chatID, "Список недавних очищен", h.mainKeyboard())
}

// resolve находит автора по вводу и сам отвечает пользователю, если не вышло.
func (h *Handler) resolve(ctx context.Context, chatID int64, input string) (domain.Creator, bool) {
	input = strings.TrimSpace(input)
	if input == "" {
		h.reply(chatID, "Укажите автора, например @example", nil)
		return domain.Creator{}, false
	}
	creator, err := h.creators.Get(ctx, input)
	if errors.Is(err, domain.ErrCreatorNotFound) {
		h.reply(chatID, "Автор не найден среди подписок. Используйте /follow", nil)
		return domain.Creator{}, false
	}
	if err != nil {
		h.reply(chatID, fmt.Sprintf("Ошибка: %v", err), nil)
		return domain.Creator{}, false
	}
	if creator.Name == "" {
		creator.Name = creator.ID
	}
	return creator, true
}

func (h *Handler) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	if _, err := h.bot.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		h.log.Debug().Err(err).Msg("bot: не удалось ответить на callback")
	}
	chatID := cb.Message.Chat.ID
	action, creatorID := parseCallback(cb.Data)
	switch action {
	case "help_menu":
		h.reply(chatID, buildHelpMessage(), h.mainKeyboard())
	case "follow_hint":
		h.reply(chatID, "Отправьте /follow @handle", nil)
	case "my_creators":
		h.handleList(ctx, chatID)
	case "recent":
		h.handleRecent(ctx, chatID)
	case "queue":
		h.handleQueue(ctx, chatID, creatorID)
	case "play":
		h.handlePlay(ctx, chatID, creatorID, playback.SurfaceMobile)
	case "next":
		h.handleNext(ctx, chatID, creatorID)
	case "unfollow":
		h.handleUnfollow(ctx, chatID, creatorID)
	default:
		h.log.Debug().Str("data", cb.Data).Msg("bot: неизвестный callback")
	}
}

func (h *Handler) handleClearRequest(chatID int64) {
	h.mu.Lock()
	h.pendingDrop[chatID] = h.now()
	h.mu.Unlock()
	h.reply(chatID, "Отправьте /clear_data_confirm в течение 5 минут, чтобы удалить всех авторов, ролики и ленты.", nil)
}

func (h *Handler) handleClearConfirm(ctx context.Context, chatID int64) {
	h.mu.Lock()
	requested, ok := h.pendingDrop[chatID]
	delete(h.pendingDrop, chatID)
	h.mu.Unlock()
	if !ok || h.now().Sub(requested) > clearConfirmWindow {
		h.reply(chatID, "Запрос не найден. Сначала отправьте /clear_data", nil)
		return
	}
	if err := h.creators.WipeAll(ctx); err != nil {
		h.reply(chatID, fmt.Sprintf("Не удалось удалить данные: %v", err), nil)
		return
	}
	h.reply(chatID, "Данные удалены. Для продолжения отправьте /follow @handle", nil)
}

func (h *Handler) reply(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	h.send(chatID, text, "", keyboard)
}

func (h *Handler) replyHTML(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	h.send(chatID, text, tgbotapi.ModeHTML, keyboard)
}

func (h *Handler) send(chatID int64, text, parseMode string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	parts := telegram.SplitMessage(text)
	for i, part := range parts {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.ParseMode = parseMode
		msg.DisableWebPagePreview = parseMode != ""
		if i == len(parts)-1 && keyboard != nil {
			msg.ReplyMarkup = keyboard
		}
		start := time.Now()
		_, err := h.bot.Send(msg)
		metrics.ObserveNetworkRequest("telegram_bot", "send_message", strconv.FormatInt(chatID, 10), start, err)
		if err != nil {
			h.log.Error().Err(err).Msg("не удалось отправить сообщение")
			return
		}
	}
}

func (h *Handler) mainKeyboard() *tgbotapi.InlineKeyboardMarkup {
	buttons := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("➕ Подписаться", "follow_hint"),
			tgbotapi.NewInlineKeyboardButtonData("📚 Мои авторы", "my_creators"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🕘 Недавние", "recent"),
			tgbotapi.NewInlineKeyboardButtonData("ℹ️ Помощь", "help_menu"),
		),
	)
	return &buttons
}

func creatorKeyboard(creatorID string) *tgbotapi.InlineKeyboardMarkup {
	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📺 Очередь", "queue:"+creatorID),
			tgbotapi.NewInlineKeyboardButtonData("▶️ Смотреть", "play:"+creatorID),
			tgbotapi.NewInlineKeyboardButtonData("⏭ Дальше", "next:"+creatorID),
		),
	)
	return &markup
}

func listKeyboard(list []domain.Creator) *tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(list))
	for _, c := range list {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📺 "+displayName(c), "queue:"+c.ID),
			tgbotapi.NewInlineKeyboardButtonData("🗑", "unfollow:"+c.ID),
		))
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}

// splitCommand отделяет команду от аргументов; суффикс @bot у команды отбрасывается.
func splitCommand(text string) (string, string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", text
	}
	command, args, _ := strings.Cut(text, " ")
	if at := strings.IndexByte(command, '@'); at > 0 {
		command = command[:at]
	}
	return strings.ToLower(command), strings.TrimSpace(args)
}

func splitFirst(args string) (string, string) {
	first, rest, _ := strings.Cut(strings.TrimSpace(args), " ")
	return first, strings.TrimSpace(rest)
}

func parseCallback(data string) (string, string) {
	action, arg, _ := strings.Cut(data, ":")
	return action, arg
}

func displayName(c domain.Creator) string {
	if strings.TrimSpace(c.Name) != "" {
		return c.Name
	}
	return c.ID
}

func titleOf(v domain.Video) string {
	if t := strings.TrimSpace(v.Title); t != "" {
		return t
	}
	return v.ID
}

func formatCreators(list []domain.Creator) string {
	var b strings.Builder
	for i, c := range list {
		line := fmt.Sprintf("%d. %s", i+1, displayName(c))
		if c.Name != "" && c.Name != c.ID {
			line += fmt.Sprintf(" (%s)", c.ID)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func formatStats(stats feed.FeedStats) string {
	lines := []string{
		fmt.Sprintf("📊 %s", stats.CreatorName),
		fmt.Sprintf("Состояние: %s", stats.State),
		fmt.Sprintf("В очереди: %d, всего роликов: %d, просмотрено: %d", stats.TotalQueueLength, stats.TotalVideosAvailable, stats.PlayedVideosCount),
		"",
	}
	for _, b := range stats.Blocks {
		lines = append(lines, fmt.Sprintf("Блок %d · %s: %d/%d", b.Index, b.Category, b.CurrentSize, b.TargetSize))
	}
	if len(stats.NextVideos) > 0 {
		lines = append(lines, "", "Дальше:")
		for i, v := range stats.NextVideos {
			title := v.Title
			if title == "" {
				title = v.ID
			}
			lines = append(lines, fmt.Sprintf("%d. %s", i+1, title))
		}
	}
	return strings.Join(lines, "\n")
}

func buildStartMessage() string {
	lines := []string{
		"👋 Лента авторов: ролики любимых авторов по порядку, без повторов.",
		"",
		"Как пользоваться ботом:",
		"1. ➕ Подпишитесь на автора: /follow @handle или ссылка на канал.",
		"2. 📺 Откройте очередь: /queue @handle. Сначала короткие ролики, потом видео и записи трансляций.",
		"3. ▶️ Запустите автопроигрывание: /play @handle. Ролики сменяются сами.",
		"4. ⏭ Надоел ролик? /next @handle.",
		"",
		"Под кнопкой \"ℹ️ Помощь\" вы найдёте полный список команд.",
	}
	return strings.Join(lines, "\n")
}

func buildHelpMessage() string {
	sections := []string{
		"📖 Команды:",
		"",
		"Авторы:",
		"• /follow @handle [имя] — подписаться на автора.",
		"• /list — авторы, на которых вы подписаны.",
		"• /recent — недавно открытые авторы.",
		"• /clear_recent — очистить список недавних.",
		"• /unfollow @handle — отписаться.",
		"",
		"Лента:",
		"• /queue @handle — ближайшие ролики с расписанием.",
		"• /play @handle [mobile] — автопроигрывание.",
		"• /stop @handle — остановить автопроигрывание.",
		"• /next @handle — пропустить текущий ролик.",
		"• /refresh @handle — перестроить очередь.",
		"• /reset @handle — начать просмотр заново.",
		"• /stats @handle — состояние ленты.",
		"",
		"Данные:",
		"• /clear_data — удалить всех авторов и ленты.",
	}
	return strings.Join(sections, "\n")
}
