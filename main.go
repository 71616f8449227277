package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"naver_cart_stock/internal/browser"
	"naver_cart_stock/internal/cart"
	"naver_cart_stock/internal/config"
	"naver_cart_stock/internal/notifications"
	"naver_cart_stock/internal/session"
	"naver_cart_stock/internal/sheets"
)

const promptTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to the yaml config file")
	profileFlag := flag.String("profile", "", "Chrome profile directory name (skips the prompt)")
	headlessFlag := flag.Bool("headless", false, "run the browser headless (skips the prompt)")
	flag.Parse()

	setupEnvironment()

	runID := uuid.NewString()[:8]
	log.Logger = log.With().Str("run_id", runID).Logger()
	log.Debug().Msg("Starting cart stock run")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *configPath).Msg("Failed to load config")
	}

	spreadsheetID := getRequiredEnv("SPREADSHEET_ID")
	sheetName := getEnvWithDefault("SHEET_NAME", "daily_stock_")
	credsFile := getEnvWithDefault("GOOGLE_CREDENTIALS_FILE", "credentials.json")
	if v := os.Getenv("CART_URL"); v != "" {
		cfg.CartURL = v
	}

	profile := pickProfile(cfg, *profileFlag)
	headless := resolveHeadless(cfg, *headlessFlag)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := sheets.NewClient(ctx, credsFile, spreadsheetID, sheetName)
	if err != nil {
		log.Fatal().Err(err).
			Str("credentials", credsFile).
			Msg("Failed to create sheets client; check the service account credentials file")
	}
	store := sheets.NewStore(client)

	sess, err := browser.Launch(browser.LaunchOptions{
		UserDataDir: cfg.UserDataDir,
		Profile:     profile,
		Headless:    headless,
	})
	if err != nil {
		log.Fatal().Err(err).
			Str("profile", profile).
			Msg("Failed to launch browser; ensure Chrome is installed and the profile is not already open")
	}
	defer sess.Close()

	log.Info().Str("url", cfg.CartURL).Str("profile", profile).Bool("headless", headless).Msg("Opening cart")
	if err := sess.Navigate(cfg.CartURL); err != nil {
		log.Fatal().Err(err).Msg("Failed to open cart page; the profile may not be signed in")
	}

	notifier := notifications.NewClient(os.Getenv("NTFY_URL"), "", config.DefaultResilienceConfig.Notify)

	var confirm func(string) bool
	if cfg.ConfirmEachStore {
		confirm = promptStoreConfirm
	}

	clock := session.NewClock()
	walker := cart.New(sess.Driver, store, clock, cfg, notifier, confirm)

	summary, err := walker.Run(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Cart walk ended early")
	}

	log.Info().
		Int("stores", summary.Stores).
		Int("products", summary.Products).
		Int("readings", summary.Readings).
		Int("depleted", summary.Depleted).
		Dur("elapsed", summary.Elapsed).
		Msg("Run complete")

	if notifier.Enabled() {
		notifier.NotifyRunSummary(context.Background(), summary.Stores, summary.Products, summary.Readings, summary.Elapsed)
	}
}

// pickProfile chooses the Chrome profile for the run: the --profile flag
// wins, a single discovered profile is used as-is, and multiple profiles
// trigger an interactive pick that falls back to the configured default
// after a few idle seconds.
func pickProfile(cfg *config.Config, flagProfile string) string {
	if flagProfile != "" {
		return flagProfile
	}

	profiles, err := browser.ListProfiles(cfg.UserDataDir)
	if err != nil {
		log.Warn().Err(err).Msg("Could not list browser profiles")
		return cfg.DefaultProfile
	}
	if len(profiles) == 0 {
		return cfg.DefaultProfile
	}
	if len(profiles) == 1 {
		return profiles[0]
	}

	fmt.Println("Available Chrome profiles:")
	for i, p := range profiles {
		fmt.Printf("  %d) %s\n", i+1, p)
	}
	fmt.Printf("Pick a profile [%s]: ", cfg.DefaultProfile)

	answer, ok := readLine(promptTimeout)
	if !ok || answer == "" {
		fmt.Println()
		return cfg.DefaultProfile
	}
	if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(profiles) {
		return profiles[n-1]
	}
	if browser.HasProfile(cfg.UserDataDir, answer) {
		return answer
	}
	log.Warn().Str("answer", answer).Msg("Unknown profile, using default")
	return cfg.DefaultProfile
}

func resolveHeadless(cfg *config.Config, flagHeadless bool) bool {
	if flagHeadless {
		return true
	}
	def := "y/N"
	if cfg.Headless {
		def = "Y/n"
	}
	fmt.Printf("Run headless? [%s]: ", def)
	answer, ok := readLine(promptTimeout)
	if !ok || answer == "" {
		fmt.Println()
		return cfg.Headless
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true
	case "n", "no":
		return false
	}
	return cfg.Headless
}

func promptStoreConfirm(storeName string) bool {
	fmt.Printf("Probe store %q? [Y/n]: ", storeName)
	answer, ok := readLine(promptTimeout)
	if !ok || answer == "" {
		fmt.Println()
		return true
	}
	switch strings.ToLower(answer) {
	case "n", "no":
		return false
	}
	return true
}

// readLine reads one trimmed line from stdin, giving up after timeout so an
// unattended run proceeds with defaults.
func readLine(timeout time.Duration) (string, bool) {
	ch := make(chan string, 1)
	go func() {
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		ch <- strings.TrimSpace(line)
	}()

	select {
	case line := <-ch:
		return line, true
	case <-time.After(timeout):
		return "", false
	}
}
