// Package wizard provides the interactive terminal setup wizard for costwise.
// Invoke with: costwise setup
package wizard

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/costwise/costwise/internal/auth"
	"github.com/costwise/costwise/internal/catalog"
	"github.com/costwise/costwise/internal/webhook"
)

// stdinReader is shared across all prompts. term.ReadPassword bypasses it via raw fd.
var stdinReader = bufio.NewReader(os.Stdin)

// wizardConfig holds all values collected during the wizard.
type wizardConfig struct {
	Port             string
	ProviderKeys     map[string]string // env var name -> key
	RoutingMode      string
	RouterProvider   string
	BudgetPerCall    string
	DailyBudget      string
	QualityEnabled   bool
	QualityThreshold int
	QualityRetries   int
	JudgeModel       string
	APIKeyHash       string
	TelegramToken    string
	TelegramChatID   string
	WebhookURLs      []string
}

// ── Entry point ───────────────────────────────────────────────────────────────

// Run executes the 8-step interactive setup wizard.
// On success it writes .env to the current working directory.
func Run(version string) error {
	printBanner(version)

	cfg := &wizardConfig{ProviderKeys: map[string]string{}}
	cat := catalog.Default()
	var err error

	if cfg.Port, err = stepPort(); err != nil {
		return fmt.Errorf("wizard: port: %w", err)
	}
	if err = stepProviderKeys(cat, cfg); err != nil {
		return fmt.Errorf("wizard: providers: %w", err)
	}
	stepRouting(cat, cfg)
	stepQuality(cfg)
	if cfg.APIKeyHash, err = stepAPIKey(); err != nil {
		return fmt.Errorf("wizard: api key: %w", err)
	}
	if cfg.TelegramToken, cfg.TelegramChatID, err = stepTelegram(); err != nil {
		return fmt.Errorf("wizard: telegram: %w", err)
	}
	cfg.WebhookURLs = stepWebhooks()
	if !stepConfirm(cfg) {
		fmt.Println("\n  Cancelled — no changes made.")
		return nil
	}
	if err := writeEnv(cfg); err != nil {
		return fmt.Errorf("wizard: writeEnv: %w", err)
	}

	fmt.Println()
	fmt.Println("  " + c("\033[32m", "✓") + " .env saved — run 'costwise serve' to start.")
	fmt.Printf("  API → http://localhost:%s\n\n", cfg.Port)
	return nil
}

// ── Banner ────────────────────────────────────────────────────────────────────

func printBanner(version string) {
	const width = 56
	fmt.Println()
	fmt.Println(c("\033[36m", "╔"+strings.Repeat("═", width)+"╗"))
	bannerLine("", width)
	bannerLine("  CostWise "+version, width)
	bannerLine("  Cost-Aware LLM Task Router", width)
	bannerLine("", width)
	fmt.Println(c("\033[36m", "╚"+strings.Repeat("═", width)+"╝"))
	fmt.Println()
	fmt.Println("  Welcome! Let's get you set up in 8 steps.")
	fmt.Println("  Press Enter to accept defaults, Ctrl+C to cancel.")
}

func bannerLine(text string, width int) {
	pad := width - len(text)
	if pad < 0 {
		pad = 0
	}
	fmt.Println(c("\033[36m", "║") + text + strings.Repeat(" ", pad) + c("\033[36m", "║"))
}

// ── Step 1: Port ──────────────────────────────────────────────────────────────

func stepPort() (string, error) {
	for {
		fmt.Println()
		fmt.Println(c("\033[33m", "━━━  1 / 8  —  PORT  ━━━━━━━━━━━━━━━━━━━━━━━━━━━━"))
		fmt.Println()

		defaultPort := "8080"
		if !portFree(8080) {
			for _, p := range []int{8081, 8082, 9000, 9090, 3000} {
				if portFree(p) {
					defaultPort = strconv.Itoa(p)
					break
				}
			}
		}

		portStr := prompt(fmt.Sprintf("Listen port [%s]", defaultPort), defaultPort)
		portNum, err := strconv.Atoi(strings.TrimSpace(portStr))
		if err != nil || portNum < 1 || portNum > 65535 {
			fmt.Println("  " + c("\033[31m", "✗") + " Invalid port — enter a number 1–65535.")
			continue
		}

		if !portFree(portNum) {
			fmt.Printf("  "+c("\033[31m", "✗")+" Port %d is already in use.\n", portNum)
			ans := prompt("Use it anyway? [y/N]", "N")
			if strings.ToUpper(strings.TrimSpace(ans)) != "Y" {
				continue
			}
		}
		return strconv.Itoa(portNum), nil
	}
}

func portFree(port int) bool {
	ln, err := net.Listen("tcp", ":"+strconv.Itoa(port))
	if err != nil {
		return false
	}
	ln.Close()
	return true
}

// ── Step 2: Provider API keys ─────────────────────────────────────────────────

func stepProviderKeys(cat *catalog.Catalog, cfg *wizardConfig) error {
	fmt.Println()
	fmt.Println(c("\033[33m", "━━━  2 / 8  —  PROVIDER KEYS  (Enter to skip)  ━━"))
	fmt.Println()
	fmt.Println("  Keys are stored in .env only. Providers without a key stay")
	fmt.Println("  estimate-only; live runs against them fail as not configured.")
	fmt.Println()

	for _, prov := range cat.Providers() {
		envKey := catalog.EnvKey(prov)
		fmt.Printf("  %s (%s): ", prov, envKey)
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("ReadPassword: %w", err)
		}
		key := strings.TrimSpace(string(raw))
		if key == "" {
			fmt.Println("    " + c("\033[90m", "skipped"))
			continue
		}
		cfg.ProviderKeys[envKey] = key
		fmt.Println("    " + c("\033[32m", "✓") + " saved")
	}

	if len(cfg.ProviderKeys) == 0 {
		fmt.Println()
		fmt.Println("  " + c("\033[90m", "No keys entered — dry-run estimates still work."))
	}
	return nil
}

// ── Step 3: Routing & budget ──────────────────────────────────────────────────

func stepRouting(cat *catalog.Catalog, cfg *wizardConfig) {
	fmt.Println()
	fmt.Println(c("\033[33m", "━━━  3 / 8  —  ROUTING & BUDGET  ━━━━━━━━━━━━━━━━"))
	fmt.Println()
	fmt.Println("  1.  single — one provider's tier ladder (default)")
	fmt.Println("  2.  cross  — cheapest capable model across providers")
	fmt.Println()

	if promptInt("Routing mode [1]", 1, 2, 1) == 2 {
		cfg.RoutingMode = "cross"
	} else {
		cfg.RoutingMode = "single"
		providers := cat.Providers()
		fmt.Println()
		fmt.Println("  Router provider:")
		for i, p := range providers {
			fmt.Printf("  %d.  %s\n", i+1, p)
		}
		fmt.Println()
		sel := promptInt("Select provider [1]", 1, len(providers), 1)
		cfg.RouterProvider = providers[sel-1]
	}

	fmt.Println()
	cfg.BudgetPerCall = promptFloat("Per-call budget in USD [1.0]", "1.0")
	cfg.DailyBudget = promptFloat("Daily budget in USD, 0 = none [0]", "0")
}

// ── Step 4: Quality gate ──────────────────────────────────────────────────────

func stepQuality(cfg *wizardConfig) {
	fmt.Println()
	fmt.Println(c("\033[33m", "━━━  4 / 8  —  QUALITY GATE  ━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println()
	fmt.Println("  A judge model scores each live response 1-10; scores below")
	fmt.Println("  the threshold escalate the task to the next tier.")
	fmt.Println()

	ans := prompt("Enable quality gate? [y/N]", "N")
	if strings.ToUpper(strings.TrimSpace(ans)) != "Y" {
		fmt.Println("  " + c("\033[90m", "Disabled — set QUALITY_EVAL_ENABLED=true in .env later."))
		return
	}
	cfg.QualityEnabled = true
	cfg.QualityThreshold = promptInt("Minimum score 1-10 [7]", 1, 10, 7)
	cfg.QualityRetries = promptInt("Max escalation retries 0-3 [1]", 0, 3, 1)
	cfg.JudgeModel = prompt("Judge model [gemini/gemini-2.0-flash]", "gemini/gemini-2.0-flash")
}

// ── Step 5: API key ───────────────────────────────────────────────────────────

func stepAPIKey() (string, error) {
	fmt.Println()
	fmt.Println(c("\033[33m", "━━━  5 / 8  —  API KEY  ━━━━━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println()

	ans := prompt("Protect the API with a bearer key? [Y/n]", "Y")
	if strings.ToUpper(strings.TrimSpace(ans)) == "N" {
		fmt.Println("  " + c("\033[90m", "Skipped — the API will accept unauthenticated requests."))
		return "", nil
	}

	key, err := auth.GenerateKey()
	if err != nil {
		return "", err
	}
	hash, err := auth.HashKey(key)
	if err != nil {
		return "", err
	}

	fmt.Println()
	fmt.Println("  Your API key (only the hash is stored — save it now):")
	fmt.Println()
	fmt.Println("  " + c("\033[36m", key))
	fmt.Println()
	prompt("Press Enter once you have saved it", "")
	return hash, nil
}

// ── Step 6: Telegram ──────────────────────────────────────────────────────────

func stepTelegram() (token, chatID string, err error) {
	fmt.Println()
	fmt.Println(c("\033[33m", "━━━  6 / 8  —  TELEGRAM  (Enter to skip)  ━━━━━━━"))
	fmt.Println()
	fmt.Println("  Create a bot at https://t.me/BotFather, then paste the token.")
	fmt.Println()

	token = prompt("Bot Token (Enter to skip)", "")
	if token == "" {
		fmt.Println("  " + c("\033[90m", "Skipped — set TELEGRAM_TOKEN in .env later."))
		return "", "", nil
	}

	// Validate token.
	fmt.Print("  Verifying token...")
	botUsername, botName, err := telegramGetMe(token)
	if err != nil {
		fmt.Println()
		fmt.Println("  " + c("\033[31m", "✗") + " Token error: " + err.Error())
		fmt.Println("  " + c("\033[90m", "Saved anyway — fix TELEGRAM_TOKEN in .env later."))
		return token, "", nil
	}
	fmt.Printf("\r  %s Bot: @%s (%s)%s\n",
		c("\033[32m", "✓"), botUsername, botName, strings.Repeat(" ", 20))

	// Auto-capture chat ID.
	fmt.Println()
	fmt.Printf("  Open Telegram and send any message to @%s\n", c("\033[36m", botUsername))
	fmt.Println("  Waiting up to 3 minutes... (press Enter to skip)")
	fmt.Println()

	type result struct {
		id        int64
		firstName string
		skipped   bool
	}
	ch := make(chan result, 1)

	// Poll goroutine.
	go func() {
		id, name, err := telegramPollChatID(token, 3*time.Minute)
		if err != nil || id == 0 {
			ch <- result{skipped: true}
			return
		}
		ch <- result{id: id, firstName: name}
	}()

	// Skip goroutine — user presses Enter.
	go func() {
		stdinReader.ReadString('\n')
		ch <- result{skipped: true}
	}()

	r := <-ch
	if r.skipped || r.id == 0 {
		fmt.Println("  " + c("\033[90m", "Skipped — set TELEGRAM_CHAT_ID in .env later."))
		return token, "", nil
	}

	chatID = strconv.FormatInt(r.id, 10)
	fmt.Printf("  %s Paired with %s  (Chat ID: %s)\n",
		c("\033[32m", "✓"), r.firstName, chatID)
	return token, chatID, nil
}

// ── Step 7: Webhooks ──────────────────────────────────────────────────────────

func stepWebhooks() []string {
	fmt.Println()
	fmt.Println(c("\033[33m", "━━━  7 / 8  —  WEBHOOKS  (Enter to skip)  ━━━━━━━"))
	fmt.Println()
	fmt.Println("  Budget alerts, failed runs and daily digests are POSTed as")
	fmt.Println("  JSON to each URL.")
	fmt.Println()

	var urls []string
	for {
		url := prompt("Webhook URL (Enter to finish)", "")
		if url == "" {
			break
		}
		ans := prompt("Send a test event? [Y/n]", "Y")
		if strings.ToUpper(strings.TrimSpace(ans)) != "N" {
			fmt.Print("  Testing... ")
			if err := webhook.Test(url); err != nil {
				fmt.Println(c("\033[31m", "failed") + ": " + err.Error())
				if strings.ToUpper(strings.TrimSpace(prompt("Keep it anyway? [y/N]", "N"))) != "Y" {
					continue
				}
			} else {
				fmt.Println(c("\033[32m", "ok"))
			}
		}
		urls = append(urls, url)
	}
	if len(urls) == 0 {
		fmt.Println("  " + c("\033[90m", "No webhooks — set WEBHOOK_URLS in .env later."))
	}
	return urls
}

// ── Step 8: Confirm ───────────────────────────────────────────────────────────

func stepConfirm(cfg *wizardConfig) bool {
	fmt.Println()
	fmt.Println(c("\033[33m", "━━━  8 / 8  —  CONFIRM  ━━━━━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println()

	keys := make([]string, 0, len(cfg.ProviderKeys))
	for envKey := range cfg.ProviderKeys {
		keys = append(keys, envKey)
	}

	quality := "disabled"
	if cfg.QualityEnabled {
		quality = fmt.Sprintf("threshold %d, retries %d, judge %s",
			cfg.QualityThreshold, cfg.QualityRetries, cfg.JudgeModel)
	}

	rows := [][2]string{
		{"PORT", cfg.Port},
		{"PROVIDERS", dash(strings.Join(keys, ", "))},
		{"ROUTING", cfg.RoutingMode + dashSuffix(cfg.RouterProvider)},
		{"PER-CALL", "$" + cfg.BudgetPerCall},
		{"DAILY CAP", "$" + cfg.DailyBudget},
		{"QUALITY", quality},
		{"API KEY", onOff(cfg.APIKeyHash != "")},
		{"TELEGRAM", dash(cfg.TelegramToken)},
		{"CHAT ID", dash(cfg.TelegramChatID)},
		{"WEBHOOKS", dash(strings.Join(cfg.WebhookURLs, ", "))},
	}
	for _, r := range rows {
		fmt.Printf("  %-12s %s\n", r[0], r[1])
	}
	fmt.Println()

	ans := prompt("Save to .env? [Y/n]", "Y")
	ans = strings.TrimSpace(strings.ToUpper(ans))
	return ans == "" || ans == "Y" || ans == "YES"
}

func dash(s string) string {
	if s == "" {
		return c("\033[90m", "—")
	}
	return s
}

func dashSuffix(provider string) string {
	if provider == "" {
		return ""
	}
	return " / " + provider
}

func onOff(on bool) string {
	if on {
		return c("\033[32m", "enabled")
	}
	return c("\033[90m", "disabled")
}

// ── Write .env ────────────────────────────────────────────────────────────────

func writeEnv(cfg *wizardConfig) error {
	lines := []string{
		"PORT=" + cfg.Port,
		"TASK_LOG_DB_PATH=task_log.db",
		"ROUTING_MODE=" + cfg.RoutingMode,
		"ROUTER_PROVIDER=" + cfg.RouterProvider,
		"BUDGET_PER_CALL=" + cfg.BudgetPerCall,
		"DAILY_BUDGET=" + cfg.DailyBudget,
		"QUALITY_EVAL_ENABLED=" + strconv.FormatBool(cfg.QualityEnabled),
	}
	if cfg.QualityEnabled {
		lines = append(lines,
			"QUALITY_THRESHOLD="+strconv.Itoa(cfg.QualityThreshold),
			"QUALITY_MAX_RETRIES="+strconv.Itoa(cfg.QualityRetries),
			"JUDGE_MODEL="+cfg.JudgeModel,
		)
	}
	for envKey, key := range cfg.ProviderKeys {
		lines = append(lines, envKey+"="+key)
	}
	// Single-quoted: bcrypt hashes contain $ which must not expand.
	lines = append(lines,
		"API_KEY_HASH='"+cfg.APIKeyHash+"'",
		"TELEGRAM_TOKEN="+cfg.TelegramToken,
		"TELEGRAM_CHAT_ID="+cfg.TelegramChatID,
		"WEBHOOK_URLS="+strings.Join(cfg.WebhookURLs, ","),
		"LOG_LEVEL=info",
		"LOG_JSON=true",
	)
	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(".env", []byte(content), 0600); err != nil {
		return fmt.Errorf("writeEnv WriteFile: %w", err)
	}
	return nil
}

// ── Telegram API ──────────────────────────────────────────────────────────────

type tgEnvelope struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

func telegramGetMe(token string) (username, firstName string, err error) {
	resp, err := http.Get("https://api.telegram.org/bot" + token + "/getMe")
	if err != nil {
		return "", "", fmt.Errorf("getMe: %w", err)
	}
	defer resp.Body.Close()

	var env tgEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return "", "", fmt.Errorf("getMe decode: %w", err)
	}
	if !env.OK {
		return "", "", fmt.Errorf("%s", env.Description)
	}
	var bot struct {
		Username  string `json:"username"`
		FirstName string `json:"first_name"`
	}
	if err := json.Unmarshal(env.Result, &bot); err != nil {
		return "", "", fmt.Errorf("getMe parse: %w", err)
	}
	return bot.Username, bot.FirstName, nil
}

func telegramPollChatID(token string, timeout time.Duration) (chatID int64, firstName string, err error) {
	client := &http.Client{Timeout: 35 * time.Second}
	offset := 0
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		url := fmt.Sprintf(
			"https://api.telegram.org/bot%s/getUpdates?offset=%d&timeout=25&limit=1",
			token, offset,
		)
		resp, err := client.Get(url)
		if err != nil {
			time.Sleep(2 * time.Second)
			continue
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		var result struct {
			OK     bool `json:"ok"`
			Result []struct {
				UpdateID int `json:"update_id"`
				Message  struct {
					From struct {
						ID        int64  `json:"id"`
						FirstName string `json:"first_name"`
					} `json:"from"`
					Chat struct {
						ID int64 `json:"id"`
					} `json:"chat"`
				} `json:"message"`
			} `json:"result"`
		}
		if err := json.Unmarshal(body, &result); err != nil || !result.OK {
			time.Sleep(2 * time.Second)
			continue
		}
		if len(result.Result) == 0 {
			continue
		}
		upd := result.Result[0]
		offset = upd.UpdateID + 1
		return upd.Message.Chat.ID, upd.Message.From.FirstName, nil
	}
	return 0, "", fmt.Errorf("timeout")
}

// ── Input helpers ─────────────────────────────────────────────────────────────

func prompt(label, defaultVal string) string {
	fmt.Printf("  %s: ", label)
	line, _ := stdinReader.ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return defaultVal
	}
	return line
}

func promptInt(label string, min, max, defaultVal int) int {
	for {
		s := prompt(label, strconv.Itoa(defaultVal))
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err == nil && n >= min && n <= max {
			return n
		}
		fmt.Printf("  Enter a number between %d and %d.\n", min, max)
	}
}

func promptFloat(label, defaultVal string) string {
	for {
		s := strings.TrimSpace(prompt(label, defaultVal))
		if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		fmt.Println("  Enter a non-negative number.")
	}
}

func supportsColor() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func c(ansi, text string) string {
	if !supportsColor() {
		return text
	}
	return ansi + text + "\033[0m"
}
