package browser

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
	"github.com/rs/zerolog/log"
)

// LaunchOptions configure the Chrome session the walk runs in.
type LaunchOptions struct {
	UserDataDir string
	Profile     string
	Headless    bool
}

// Session owns the launched browser and its single cart page.
type Session struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	Driver   *RodDriver
}

// Launch starts Chrome with the given profile and opens a stealth page.
// Failures here are unrecoverable for the run; the returned error carries
// remediation hints where the cause is known.
func Launch(opts LaunchOptions) (*Session, error) {
	// Leakless mode deadlocks on Windows, see go-rod/rod#853.
	useLeakless := runtime.GOOS != "windows"

	l := launcher.New().
		Leakless(useLeakless).
		Headless(opts.Headless)

	if opts.UserDataDir != "" {
		l = l.UserDataDir(opts.UserDataDir)
	}
	if opts.Profile != "" {
		l = l.Set("profile-directory", opts.Profile)
	}

	if chromePath, ok := launcher.LookPath(); ok {
		l = l.Bin(chromePath)
		log.Debug().Str("path", chromePath).Msg("Using system Chrome")
	} else {
		log.Info().Msg("System Chrome not found, rod will download Chromium")
	}

	controlURL, err := l.Launch()
	if err != nil {
		if strings.Contains(err.Error(), "ProcessSingleton") ||
			strings.Contains(err.Error(), "SingletonLock") {
			return nil, fmt.Errorf("chrome is already running with this profile, close it and retry: %w", err)
		}
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	page, err := stealth.Page(b)
	if err != nil {
		b.Close()
		l.Cleanup()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	return &Session{
		browser:  b,
		launcher: l,
		Driver:   NewRodDriver(page),
	}, nil
}

// Navigate loads url in the session page and waits for the load event.
func (s *Session) Navigate(url string) error {
	if err := s.Driver.Page().Navigate(url); err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	if err := s.Driver.Page().WaitLoad(); err != nil {
		return fmt.Errorf("waiting for %s to load: %w", url, err)
	}
	return nil
}

// Close tears the session down. Safe to call on a partially built session.
func (s *Session) Close() {
	if s.Driver != nil && s.Driver.Page() != nil {
		s.Driver.Page().Close()
	}
	if s.browser != nil {
		s.browser.Close()
	}
	if s.launcher != nil {
		s.launcher.Cleanup()
	}
}
