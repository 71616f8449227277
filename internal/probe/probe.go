// Package probe drives the cart's "modify order" overlay for one product:
// it walks every purchasable option, pushes the quantity to the site's hard
// cap and reads residual stock back out of the validation alert.
package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"naver_cart_stock/internal/browser"
	"naver_cart_stock/internal/config"
	"naver_cart_stock/internal/pricetext"
)

// maxProbeQuantity is the storefront's per-line quantity cap. Asking for it
// makes the site answer with the real remaining stock when fewer are left.
const maxProbeQuantity = 9999

const (
	// settleDelay lets the overlay re-render after an option is selected.
	settleDelay = 800 * time.Millisecond
	// selectAlertWait bounds the wait for a sold-out alert raised directly
	// by option selection.
	selectAlertWait = 3 * time.Second
	// confirmAlertWait bounds the wait for the quantity validation alert
	// after confirm. No alert within this window means the order went
	// through at the cap and the overlay closed itself.
	confirmAlertWait = 5 * time.Second

	pruneDelay = 400 * time.Millisecond
)

// SingleVariantOption is the option_name recorded for products that have no
// option dropdown at all. The literal string keeps those rows keyed
// consistently in the sheet.
const SingleVariantOption = "null"

// Sink receives the readings a probe produces, in option order.
type Sink interface {
	Record(ctx context.Context, optionName string, additionalPrice, stock int) error
}

// Probe operates on an already-open modify overlay. Reopen is called when a
// confirm goes through without an alert, which closes the overlay; the
// caller supplies the click that brings it back.
type Probe struct {
	driver browser.Driver
	sel    config.SelectorConfig
	reopen func(ctx context.Context) error
}

func New(driver browser.Driver, sel config.SelectorConfig, reopen func(ctx context.Context) error) *Probe {
	return &Probe{driver: driver, sel: sel, reopen: reopen}
}

// Run probes every option of the product whose overlay is open and streams
// readings into sink. Option-level failures are logged and skipped; the
// walk only stops early when the context ends. Returns the number of
// readings recorded.
func (p *Probe) Run(ctx context.Context, sink Sink) (int, error) {
	dropdown, err := browser.FirstElement(p.driver, p.sel.OptionDropdown)
	if err != nil {
		return 0, fmt.Errorf("locating option dropdown: %w", err)
	}
	if dropdown == nil {
		// Single-variant product: nothing to select, one synthetic reading
		// at the cap.
		if err := sink.Record(ctx, SingleVariantOption, 0, maxProbeQuantity); err != nil {
			return 0, err
		}
		return 1, nil
	}

	labels, err := p.optionLabels(dropdown)
	if err != nil {
		return 0, err
	}
	if len(labels) < 2 {
		log.Warn().Int("entries", len(labels)).Msg("Option dropdown has no selectable entries")
		return 0, nil
	}

	recorded := 0
	// Entry 0 is the dropdown's no-op placeholder.
	for i := 1; i < len(labels); i++ {
		if err := ctx.Err(); err != nil {
			return recorded, err
		}
		ok, err := p.probeOption(ctx, sink, dropdown, i, labels[i])
		if err != nil {
			log.Warn().Err(err).Str("option", labels[i]).Msg("Skipping option")
			continue
		}
		if ok {
			recorded++
		}
	}
	return recorded, nil
}

// optionLabels opens the dropdown and reads the label text of every entry.
func (p *Probe) optionLabels(dropdown browser.Element) ([]string, error) {
	if err := p.driver.Click(dropdown); err != nil {
		return nil, fmt.Errorf("opening option dropdown: %w", err)
	}
	p.driver.Sleep(settleDelay)

	buttons, err := p.driver.FindElements(p.sel.OptionButtons)
	if err != nil {
		return nil, fmt.Errorf("listing options: %w", err)
	}
	labels := make([]string, 0, len(buttons))
	for _, b := range buttons {
		text, err := p.driver.Text(b)
		if err != nil {
			return nil, fmt.Errorf("reading option label: %w", err)
		}
		labels = append(labels, text)
	}
	return labels, nil
}

func (p *Probe) probeOption(ctx context.Context, sink Sink, dropdown browser.Element, idx int, label string) (bool, error) {
	name := pricetext.OptionName(label)
	addPrice := pricetext.AdditionalPrice(label)

	if err := p.selectOption(dropdown, idx); err != nil {
		return false, err
	}

	// Selecting an out-of-stock option raises the alert immediately, before
	// any quantity is entered.
	if text, ok := p.driver.AcceptAlert(selectAlertWait); ok {
		if pricetext.IsSoldOutAlert(text) {
			return p.record(ctx, sink, name, addPrice, 0)
		}
		log.Warn().Str("alert", text).Str("option", label).Msg("Unrecognized alert on option select")
		return false, nil
	}

	if err := p.pruneLineItems(); err != nil {
		return false, err
	}
	if err := p.enterProbeQuantity(); err != nil {
		return false, err
	}
	if err := p.confirm(); err != nil {
		return false, err
	}

	text, ok := p.driver.AcceptAlert(confirmAlertWait)
	if !ok {
		// The cap was accepted outright: at least 9999 in stock. Accepting
		// the order closed the overlay, so bring it back before the next
		// option.
		recorded, err := p.record(ctx, sink, name, addPrice, maxProbeQuantity)
		if err != nil {
			return recorded, err
		}
		if p.reopen != nil {
			if err := p.reopen(ctx); err != nil {
				return recorded, fmt.Errorf("reopening overlay: %w", err)
			}
		}
		return recorded, nil
	}

	if stock, parsed := pricetext.StockFromAlert(text); parsed {
		if alertName := pricetext.OptionNameFromAlert(text); alertName != "" {
			name = alertName
		}
		return p.record(ctx, sink, name, addPrice, stock)
	}
	if pricetext.IsSoldOutAlert(text) {
		return p.record(ctx, sink, name, addPrice, 0)
	}

	log.Warn().Str("alert", text).Str("option", label).Msg("Unrecognized alert on confirm")
	return false, nil
}

func (p *Probe) record(ctx context.Context, sink Sink, name string, addPrice, stock int) (bool, error) {
	if err := sink.Record(ctx, name, addPrice, stock); err != nil {
		return false, fmt.Errorf("recording reading: %w", err)
	}
	log.Info().Str("option", name).Int("stock", stock).Msg("Stock reading")
	return true, nil
}

// selectOption clicks entry idx of the dropdown, reopening the list when a
// previous selection collapsed it.
func (p *Probe) selectOption(dropdown browser.Element, idx int) error {
	buttons, err := p.driver.FindElements(p.sel.OptionButtons)
	if err != nil {
		return err
	}
	if len(buttons) == 0 {
		if err := p.driver.Click(dropdown); err != nil {
			return fmt.Errorf("reopening option dropdown: %w", err)
		}
		p.driver.Sleep(settleDelay)
		buttons, err = p.driver.FindElements(p.sel.OptionButtons)
		if err != nil {
			return err
		}
	}
	if idx >= len(buttons) {
		return fmt.Errorf("option %d out of range (%d entries)", idx, len(buttons))
	}
	if err := p.driver.Click(buttons[idx]); err != nil {
		return fmt.Errorf("selecting option: %w", err)
	}
	p.driver.Sleep(settleDelay)
	return nil
}

// pruneLineItems removes the line items left over from earlier options so
// the quantity input found below belongs to the freshly added one, which
// the overlay appends last.
func (p *Probe) pruneLineItems() error {
	items, err := p.driver.FindElements(p.sel.LineItems)
	if err != nil {
		return err
	}
	for i := 0; i < len(items)-1; i++ {
		del, err := p.driver.FindElementsIn(items[i], p.sel.LineItemDelete)
		if err != nil {
			return err
		}
		if len(del) == 0 {
			continue
		}
		if err := p.driver.Click(del[0]); err != nil {
			return fmt.Errorf("removing stale line item: %w", err)
		}
		p.driver.Sleep(pruneDelay)
	}
	return nil
}

// enterProbeQuantity rewrites the quantity input to 9999. The input starts
// at "1"; appending a digit, jumping Home and deleting the leading "1"
// sidesteps the field's input-event clamping.
func (p *Probe) enterProbeQuantity() error {
	items, err := p.driver.FindElements(p.sel.LineItems)
	if err != nil {
		return err
	}
	var input browser.Element
	if len(items) > 0 {
		inputs, err := p.driver.FindElementsIn(items[len(items)-1], p.sel.QuantityInput)
		if err != nil {
			return err
		}
		if len(inputs) > 0 {
			input = inputs[0]
		}
	}
	if input == nil {
		input, err = browser.FirstElement(p.driver, p.sel.QuantityInput)
		if err != nil {
			return err
		}
	}
	if input == nil {
		return fmt.Errorf("quantity input not found")
	}

	if err := p.driver.Click(input); err != nil {
		return fmt.Errorf("focusing quantity input: %w", err)
	}
	steps := []func() error{
		func() error { return p.driver.SendText(input, "9") },
		func() error { return p.driver.SendKey(input, browser.KeyHome) },
		func() error { return p.driver.SendKey(input, browser.KeyDelete) },
		func() error { return p.driver.SendText(input, "999") },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return fmt.Errorf("entering probe quantity: %w", err)
		}
	}
	return nil
}

func (p *Probe) confirm() error {
	btn, err := browser.FirstElement(p.driver, p.sel.ConfirmButton)
	if err != nil {
		return err
	}
	if btn == nil {
		return fmt.Errorf("confirm button not found")
	}
	if err := p.driver.Click(btn); err != nil {
		return fmt.Errorf("clicking confirm: %w", err)
	}
	return nil
}
