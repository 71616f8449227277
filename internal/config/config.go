package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"naver_cart_stock/internal/browser"
)

// Config is the runtime configuration loaded from a yaml file. Secrets and
// spreadsheet identity stay in the environment; this file carries everything
// a user might tune per machine: the cart URL, browser profile, timing knobs
// and the selector fallback chains for the storefront DOM.
type Config struct {
	CartURL string `yaml:"cart_url"`

	UserDataDir    string `yaml:"user_data_dir"`
	DefaultProfile string `yaml:"default_profile"`
	Headless       bool   `yaml:"headless"`

	PageLoadTimeoutSec int  `yaml:"page_load_timeout_sec"`
	ScrollPauseMs      int  `yaml:"scroll_pause_ms"`
	ScrollStepPx       int  `yaml:"scroll_step_px"`
	MaxIdleScrolls     int  `yaml:"max_idle_scrolls"`
	MaxScrollLoops     int  `yaml:"max_scroll_loops"`
	ConfirmEachStore   bool `yaml:"confirm_each_store"`

	Selectors SelectorConfig `yaml:"selectors"`
}

// SelectorConfig holds the ordered locator strategies for every element the
// walk touches. The class-name strategies match the storefront's generated
// CSS modules and break when the site redeploys; the data-attribute and
// xpath fallbacks have been stable across redesigns.
type SelectorConfig struct {
	StoreContainer  browser.Selector `yaml:"store_container"`
	ModifyButton    browser.Selector `yaml:"modify_button"`
	OptionDropdown  browser.Selector `yaml:"option_dropdown"`
	OptionButtons   browser.Selector `yaml:"option_buttons"`
	LineItems       browser.Selector `yaml:"line_items"`
	LineItemDelete  browser.Selector `yaml:"line_item_delete"`
	QuantityInput   browser.Selector `yaml:"quantity_input"`
	ConfirmButton   browser.Selector `yaml:"confirm_button"`
	OverlayCloseBtn browser.Selector `yaml:"overlay_close_button"`
}

func DefaultConfig() *Config {
	home, err := os.UserHomeDir()
	userDataDir := "./chrome-profile"
	if err == nil {
		userDataDir = home + "/.naver-cart-stock/browser"
	}

	return &Config{
		CartURL:            "https://shopping.naver.com/cart",
		UserDataDir:        userDataDir,
		DefaultProfile:     "Default",
		Headless:           false,
		PageLoadTimeoutSec: 15,
		ScrollPauseMs:      1500,
		ScrollStepPx:       600,
		MaxIdleScrolls:     4,
		MaxScrollLoops:     80,
		ConfirmEachStore:   false,
		Selectors: SelectorConfig{
			StoreContainer: browser.Css(`div[class*="store_container"]`),
			ModifyButton: browser.Selector{
				{Method: "css", Query: `button.btn_modify--3dB-BgyPu5`},
				{Method: "css", Query: `button[data-shp-area-id="pdedit"]`},
				{Method: "xpath", Query: `//button[contains(text(), '주문수정')]`},
			},
			OptionDropdown: browser.Selector{
				{Method: "css", Query: `button[data-shp-area-id="optselect"]`},
				{Method: "css", Query: `div.section_option--hFDfyl08Oc button.btn_select--3QhA_dLbai`},
				{Method: "xpath", Query: `//div[contains(@class, 'title') and contains(text(), '옵션 추가')]/following-sibling::div[contains(@class, 'select_area')]//button[contains(@class, 'btn_select')]`},
			},
			OptionButtons:  browser.Css(`ul.layer_option--3zSn7PQh_Y button.btn_option--32kuYZhMUW`),
			LineItems:      browser.Css(`div.product_item--2Pee8t5uGw`),
			LineItemDelete: browser.Css(`button.btn_delete--3CIK4Aa9LM`),
			QuantityInput:  browser.Css(`input.number--1g-qRSYcjs`),
			ConfirmButton: browser.Selector{
				{Method: "css", Query: `button.btn_confirm--38uPVGg2tB`},
				{Method: "css", Query: `button[data-shp-area-id="editconfirm"]`},
				{Method: "xpath", Query: `//button[contains(text(), '확인')]`},
			},
			OverlayCloseBtn: browser.Selector{
				{Method: "css", Query: `button.btn_close--oP6EO7PIxz`},
				{Method: "css", Query: `button[data-shp-area-id="editclose"]`},
			},
		},
	}
}

// Load reads the yaml config at path, writing the defaults there first when
// the file does not exist yet.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := cfg.Save(path); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
