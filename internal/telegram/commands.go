package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/costwise/costwise/internal/budget"
	"github.com/costwise/costwise/internal/orchestrator"
	"github.com/costwise/costwise/internal/store"
)

// CommandHandler handles Telegram bot commands.
type CommandHandler struct {
	database *store.DB
	dailyCap float64
	bot      *Bot
}

// NewCommandHandler creates a CommandHandler. dailyCap of 0 means no
// daily spend cap is configured.
func NewCommandHandler(database *store.DB, dailyCap float64) *CommandHandler {
	return &CommandHandler{database: database, dailyCap: dailyCap}
}

// Handle dispatches incoming messages to the correct command handler.
func (h *CommandHandler) Handle(msg *tgbotapi.Message) {
	if msg == nil || !msg.IsCommand() {
		return
	}
	ctx := context.Background()
	switch msg.Command() {
	case "cost":
		h.handleCost(ctx, msg)
	case "recent":
		h.handleRecent(ctx, msg)
	case "budget":
		h.handleBudget(ctx, msg)
	case "help":
		h.handleHelp(msg)
	default:
		h.bot.reply(msg.Chat.ID, "Unknown command. Use /help for a list of commands.")
	}
}

func (h *CommandHandler) handleCost(ctx context.Context, msg *tgbotapi.Message) {
	total, err := h.database.CumulativeCost(ctx)
	if err != nil {
		h.bot.reply(msg.Chat.ID, "Error fetching cumulative cost.")
		return
	}
	today, err := h.database.CostSince(ctx, budget.MidnightUTC())
	if err != nil {
		h.bot.reply(msg.Chat.ID, "Error fetching today's cost.")
		return
	}
	h.bot.reply(msg.Chat.ID, fmt.Sprintf(
		"*Spend*\n\nToday:      %s\nAll time:   %s",
		orchestrator.FormatCost(today), orchestrator.FormatCost(total)))
}

func (h *CommandHandler) handleRecent(ctx context.Context, msg *tgbotapi.Message) {
	limit := 5
	if args := strings.TrimSpace(msg.CommandArguments()); args != "" {
		if n, err := strconv.Atoi(args); err == nil && n > 0 && n <= 25 {
			limit = n
		}
	}
	runs, err := h.database.RecentRuns(ctx, limit)
	if err != nil {
		h.bot.reply(msg.Chat.ID, "Error fetching recent runs.")
		return
	}

	var sb strings.Builder
	sb.WriteString("*Recent Runs*\n\n")
	for _, r := range runs {
		sb.WriteString(fmt.Sprintf("%s #%d L%d `%s` %s\n",
			runIcon(r), r.ID, r.TaskLevel, r.Model, orchestrator.FormatCost(r.TotalCost)))
	}
	if len(runs) == 0 {
		sb.WriteString("_No runs logged yet._")
	}
	h.bot.reply(msg.Chat.ID, sb.String())
}

func (h *CommandHandler) handleBudget(ctx context.Context, msg *tgbotapi.Message) {
	today, err := h.database.CostSince(ctx, budget.MidnightUTC())
	if err != nil {
		h.bot.reply(msg.Chat.ID, "Error fetching today's spend.")
		return
	}
	if h.dailyCap <= 0 {
		h.bot.reply(msg.Chat.ID, fmt.Sprintf(
			"*Daily Budget*\n\nSpent today: %s\n_No daily cap configured._",
			orchestrator.FormatCost(today)))
		return
	}
	pct := today / h.dailyCap * 100
	h.bot.reply(msg.Chat.ID, fmt.Sprintf(
		"*Daily Budget*\n\n%s Spent today: %s\nCap:           %s\nUsed:          %.0f%%",
		pctIcon(pct), orchestrator.FormatCost(today), orchestrator.FormatCost(h.dailyCap), pct))
}

func (h *CommandHandler) handleHelp(msg *tgbotapi.Message) {
	help := `*CostWise Commands*

/cost — Today's and all-time spend
/recent [n] — Last n runs (default 5)
/budget — Daily budget usage
/help — This help`
	h.bot.reply(msg.Chat.ID, help)
}

func runIcon(r store.Run) string {
	switch {
	case r.Status == "error":
		return "🔴"
	case r.BudgetExceeded:
		return "🟡"
	default:
		return "🟢"
	}
}

func pctIcon(pct float64) string {
	switch {
	case pct >= 100:
		return "🔴"
	case pct >= 70:
		return "🟡"
	default:
		return "🟢"
	}
}

