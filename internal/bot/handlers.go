package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"

	"github.com/example/codecycle/internal/database"
	"github.com/example/codecycle/internal/review"
	"github.com/example/codecycle/pkg/models"
)

// Constants for callback data
const (
	callbackToday = "today"
	callbackStats = "stats"

	// Review buttons carry "rv|<problemID>|<code>"; Telegram caps callback data at 64 bytes
	reviewPrefix    = "rv"
	callbackSep     = "|"
	maxCallbackData = 64
)

const problemURL = "https://leetcode.com/problems/%s/"

const helpText = `CodeCycle keeps your solved LeetCode problems fresh.

/today - show the next problem to review
/stats - your review statistics
/settings - show settings
/settings dailyGoal 8 - change a setting (dailyGoal, maxNewPerDay, defaultInterval)
/link <token> - connect this chat to your CodeCycle account
/help - this message`

const linkHint = "This chat is not linked yet. Log in on the CodeCycle web app, copy your session token and send /link <token>."

var outcomeLabels = []struct {
	outcome models.ReviewOutcome
	code    string
	label   string
}{
	{models.OutcomeFailed, "F", "❌ Failed"},
	{models.OutcomeStruggled, "T", "😓 Struggled"},
	{models.OutcomeSolved, "S", "✅ Solved"},
	{models.OutcomeInstant, "I", "⚡ Instant"},
}

// HandleCommand handles bot commands
func (b *Bot) HandleCommand(ctx context.Context, message *tgbotapi.Message) error {
	if message.Chat == nil {
		return errors.New("invalid message: chat is missing")
	}
	chatID := message.Chat.ID

	switch message.Command() {
	case "start":
		return b.handleStart(message)
	case "help":
		b.reply(chatID, helpText)
		return nil
	case "link":
		return b.handleLink(ctx, message)
	case "today":
		return b.showToday(ctx, chatID)
	case "settings":
		return b.handleSettings(ctx, message)
	case "stats":
		return b.showStats(ctx, chatID)
	}
	b.reply(chatID, "Unknown command. Use /help to see the commands.")
	return nil
}

func (b *Bot) handleStart(message *tgbotapi.Message) error {
	msg := tgbotapi.NewMessage(message.Chat.ID, "👋 Welcome to CodeCycle!\n\n"+helpText)
	msg.ReplyMarkup = createKeyboard(MainMenuButtons())
	b.send(msg)
	return nil
}

// MainMenuButtons returns the buttons for the main menu
func MainMenuButtons() [][]MenuButton {
	return [][]MenuButton{
		{
			{Text: "🎯 Today", CallbackData: callbackToday},
			{Text: "📊 Statistics", CallbackData: callbackStats},
		},
	}
}

func (b *Bot) handleLink(ctx context.Context, message *tgbotapi.Message) error {
	chatID := message.Chat.ID
	token := strings.TrimSpace(message.CommandArguments())
	if token == "" {
		b.reply(chatID, "Usage: /link <token>")
		return nil
	}

	// the token is a credential, keep it out of the chat history
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, message.MessageID)); err != nil {
		b.log.Debug("could not delete link message", "error", err)
	}

	user, err := b.sessions.ResolveCurrentUser(ctx, token)
	if errors.Is(err, review.ErrNotAuthenticated) {
		b.reply(chatID, "That token is invalid or expired. Log in again and copy a fresh one.")
		return nil
	}
	if err != nil {
		b.replyError(chatID, err)
		return err
	}
	if err := b.users.LinkTelegram(ctx, user.ID, chatID); err != nil {
		b.replyError(chatID, err)
		return errors.Wrap(err, "failed to link chat")
	}

	b.log.Info("chat linked", "user", user.LeetUsername, "chat", chatID)
	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("✅ Linked to LeetCode account %s.", user.LeetUsername))
	msg.ReplyMarkup = createKeyboard(MainMenuButtons())
	b.send(msg)
	return nil
}

// userForChat returns the user linked to the chat, replying with a hint when there is none
func (b *Bot) userForChat(ctx context.Context, chatID int64) (*models.User, bool) {
	user, err := b.users.GetByTelegramChatID(ctx, chatID)
	if errors.Is(err, database.ErrUserNotFound) {
		b.reply(chatID, linkHint)
		return nil, false
	}
	if err != nil {
		b.log.Warn("failed to load chat user", "chat", chatID, "error", err)
		b.replyError(chatID, errors.Wrap(review.ErrRepositoryUnavailable, err.Error()))
		return nil, false
	}
	return user, true
}

// showToday sends the first item of today's queue with the outcome buttons
func (b *Bot) showToday(ctx context.Context, chatID int64) error {
	user, ok := b.userForChat(ctx, chatID)
	if !ok {
		return nil
	}
	queue, err := b.engine.BuildTodayQueue(ctx, user, b.engine.Now())
	if err != nil {
		b.replyError(chatID, err)
		return err
	}
	if len(queue.Items) == 0 {
		b.reply(chatID, formatDone(queue))
		return nil
	}

	item := queue.Items[0]
	msg := tgbotapi.NewMessage(chatID, formatItem(queue, item))
	msg.DisableWebPagePreview = true
	msg.ReplyMarkup = createKeyboard(outcomeButtons(item.ProblemID))
	b.send(msg)
	return nil
}

func (b *Bot) showStats(ctx context.Context, chatID int64) error {
	user, ok := b.userForChat(ctx, chatID)
	if !ok {
		return nil
	}
	stats, err := b.engine.Stats(ctx, user, b.engine.Now())
	if err != nil {
		b.replyError(chatID, err)
		return err
	}
	msg := tgbotapi.NewMessage(chatID, formatStats(stats))
	msg.ReplyMarkup = createKeyboard([][]MenuButton{{{Text: "🎯 Today", CallbackData: callbackToday}}})
	b.send(msg)
	return nil
}

func (b *Bot) handleSettings(ctx context.Context, message *tgbotapi.Message) error {
	chatID := message.Chat.ID
	user, ok := b.userForChat(ctx, chatID)
	if !ok {
		return nil
	}

	args := strings.TrimSpace(message.CommandArguments())
	if args == "" {
		b.reply(chatID, formatSettings(user.Settings))
		return nil
	}

	update, err := parseSettingsArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return nil
	}
	settings, err := b.engine.UpdateSettings(ctx, user, update)
	if err != nil {
		b.replyError(chatID, err)
		if errors.Is(err, review.ErrInvalidSettings) {
			return nil
		}
		return err
	}
	b.reply(chatID, "✅ Settings updated.\n\n"+formatSettings(*settings))
	return nil
}

// handleCallbackQuery handles callback queries from buttons
func (b *Bot) handleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	if _, err := b.api.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		b.log.Debug("failed to answer callback", "error", err)
	}
	if callback.Message == nil || callback.Message.Chat == nil {
		return nil
	}
	chatID := callback.Message.Chat.ID

	switch callback.Data {
	case callbackToday:
		return b.showToday(ctx, chatID)
	case callbackStats:
		return b.showStats(ctx, chatID)
	}

	problemID, outcome, ok := parseReviewCallback(callback.Data)
	if !ok {
		b.log.Warn("unknown callback data", "data", callback.Data)
		return nil
	}
	user, ok := b.userForChat(ctx, chatID)
	if !ok {
		return nil
	}

	// the button only names the problem id; today's queue maps it back to a slug
	queue, err := b.engine.BuildTodayQueue(ctx, user, b.engine.Now())
	if err != nil {
		b.replyError(chatID, err)
		return err
	}
	item := findItem(queue, problemID)
	if item == nil {
		b.reply(chatID, "That problem is no longer in today's queue.")
		return b.showToday(ctx, chatID)
	}

	result, err := b.engine.SubmitReview(ctx, user, item.Slug, outcome)
	if err != nil {
		b.replyError(chatID, err)
		return err
	}

	// drop the buttons so the same card cannot be answered twice
	strip := tgbotapi.NewEditMessageReplyMarkup(chatID, callback.Message.MessageID,
		tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}})
	if _, err := b.api.Request(strip); err != nil {
		b.log.Debug("failed to clear buttons", "error", err)
	}

	b.reply(chatID, formatSubmit(result))
	return b.showToday(ctx, chatID)
}

// replyError tells the user what went wrong without exposing internals
func (b *Bot) replyError(chatID int64, err error) {
	var text string
	switch {
	case errors.Is(err, review.ErrInvalidSettings):
		text = "❌ " + err.Error()
	case errors.Is(err, review.ErrNotAuthenticated):
		text = linkHint
	case errors.Is(err, review.ErrProblemNotFound):
		text = "That problem is no longer in your catalog."
	case errors.Is(err, review.ErrInvalidOutcome):
		text = "Unknown result. Use the buttons under the problem."
	case errors.Is(err, review.ErrRepositoryUnavailable):
		text = "Storage is temporarily unavailable. Please try again in a minute."
	default:
		text = "Something went wrong. Please try again."
	}
	b.reply(chatID, text)
}

func reviewCallback(problemID int64, outcome models.ReviewOutcome) string {
	for _, o := range outcomeLabels {
		if o.outcome == outcome {
			return strings.Join([]string{reviewPrefix, strconv.FormatInt(problemID, 10), o.code}, callbackSep)
		}
	}
	return ""
}

func parseReviewCallback(data string) (int64, models.ReviewOutcome, bool) {
	parts := strings.Split(data, callbackSep)
	if len(parts) != 3 || parts[0] != reviewPrefix {
		return 0, "", false
	}
	problemID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || problemID <= 0 {
		return 0, "", false
	}
	for _, o := range outcomeLabels {
		if o.code == parts[2] {
			return problemID, o.outcome, true
		}
	}
	return 0, "", false
}

func findItem(queue *models.TodayQueue, problemID int64) *models.ReviewItem {
	for _, item := range queue.Items {
		if item.ProblemID == problemID {
			return item
		}
	}
	return nil
}

func outcomeButtons(problemID int64) [][]MenuButton {
	row := func(from, to int) []MenuButton {
		var buttons []MenuButton
		for _, o := range outcomeLabels[from:to] {
			buttons = append(buttons, MenuButton{Text: o.label, CallbackData: reviewCallback(problemID, o.outcome)})
		}
		return buttons
	}
	return [][]MenuButton{row(0, 2), row(2, 4)}
}

// parseSettingsArgs reads "dailyGoal 8" or "dailyGoal=8 maxNewPerDay=3"
func parseSettingsArgs(args string) (*models.UpdateSettings, error) {
	usage := errors.New("Usage: /settings <dailyGoal|maxNewPerDay|defaultInterval> <number>")
	fields := strings.Fields(strings.ReplaceAll(args, "=", " "))
	if len(fields) == 0 || len(fields)%2 != 0 {
		return nil, usage
	}

	update := &models.UpdateSettings{}
	for i := 0; i < len(fields); i += 2 {
		v, err := strconv.Atoi(fields[i+1])
		if err != nil {
			return nil, usage
		}
		switch strings.ToLower(fields[i]) {
		case "dailygoal", "goal":
			update.DailyGoal = &v
		case "maxnewperday", "maxnew":
			update.MaxNewPerDay = &v
		case "defaultinterval", "interval":
			update.DefaultInterval = &v
		default:
			return nil, usage
		}
	}
	return update, nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func reminderText(count int) string {
	return fmt.Sprintf("⏰ You have %d %s to review today!", count, plural(count, "problem", "problems"))
}

func formatItem(queue *models.TodayQueue, item *models.ReviewItem) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📅 %s · %d/%d done · %d left\n\n", queue.Date, queue.CompletedToday, queue.Total, len(queue.Items))
	fmt.Fprintf(&sb, "%s (%s)\n", item.Title, item.Difficulty)
	if len(item.Tags) > 0 {
		fmt.Fprintf(&sb, "Tags: %s\n", strings.Join(item.Tags, ", "))
	}
	if item.IsNew {
		sb.WriteString("🆕 First review\n")
	} else {
		fmt.Fprintf(&sb, "🔁 Current interval: %d %s\n", item.IntervalDays, plural(item.IntervalDays, "day", "days"))
	}
	fmt.Fprintf(&sb, problemURL+"\n\nHow did it go?", item.Slug)
	return sb.String()
}

func formatDone(queue *models.TodayQueue) string {
	if queue.GoalMet {
		return fmt.Sprintf("🎉 Daily goal reached: %d/%d reviewed. See you tomorrow!", queue.CompletedToday, queue.DailyGoal)
	}
	return fmt.Sprintf("Nothing left to review today (%d/%d). Solve more problems on LeetCode to grow your queue.",
		queue.CompletedToday, queue.DailyGoal)
}

func formatSubmit(result *models.SubmitResult) string {
	return fmt.Sprintf("Recorded %s for %s. Next review in %d %s (%s).",
		result.Outcome, result.Slug, result.NextInterval, plural(result.NextInterval, "day", "days"), result.NextDate)
}

func formatStats(stats *models.ReviewStats) string {
	var sb strings.Builder
	sb.WriteString("📊 Your statistics\n\n")
	fmt.Fprintf(&sb, "Tracked problems: %d of %d\n", stats.Tracked, stats.CatalogSize)
	fmt.Fprintf(&sb, "Due today: %d\n", stats.DueToday)
	fmt.Fprintf(&sb, "Reviewed today: %d\n", stats.ReviewedToday)
	fmt.Fprintf(&sb, "Reviews in the last 7 days: %d\n", stats.ReviewsLast7Days)
	for _, o := range outcomeLabels {
		if n := stats.Outcomes[o.outcome]; n > 0 {
			fmt.Fprintf(&sb, "  %s: %d\n", o.label, n)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatSettings(s models.Settings) string {
	return fmt.Sprintf("⚙️ Settings\n\nDaily goal: %d\nMax new per day: %d\nFreshness cutoff: %d %s\n\nChange with /settings dailyGoal 8",
		s.DailyGoal, s.MaxNewPerDay, s.DefaultInterval, plural(s.DefaultInterval, "day", "days"))
}
