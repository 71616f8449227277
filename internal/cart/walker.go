// Package cart walks the shopping-cart page: it scrolls store containers
// into existence, scrapes store and product metadata from the page, and
// dispatches the stock probe against each product's modify overlay.
package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"naver_cart_stock/internal/browser"
	"naver_cart_stock/internal/config"
	"naver_cart_stock/internal/pricetext"
	"naver_cart_stock/internal/probe"
	"naver_cart_stock/internal/session"
	"naver_cart_stock/internal/sheets"
)

const overlayDelay = 1200 * time.Millisecond

// collectScript gathers every store container currently in the DOM with its
// products. Store and product ids come from the smartstore link hrefs, the
// only hooks that survive the storefront's class-name churn.
const collectScript = `() => {
	const stores = [];
	document.querySelectorAll('div[class*="store_container"]').forEach((container) => {
		const storeLink = container.querySelector('a[href*="smartstore.naver.com"]');
		let storeId = '';
		let storeName = '';
		if (storeLink) {
			const m = storeLink.href.match(/smartstore\.naver\.com\/([^/?#]+)/);
			if (m) storeId = m[1];
			storeName = storeLink.textContent.trim();
		}
		const products = [];
		container.querySelectorAll('div[class*="product_item"]').forEach((item) => {
			const link = item.querySelector('a[href*="/products/"]');
			let productId = '';
			let productName = '';
			if (link) {
				const m = link.href.match(/\/products\/(\d+)/);
				if (m) productId = m[1];
				productName = link.textContent.trim();
			}
			const nameEl = item.querySelector('[class*="product_name"]');
			if (nameEl) productName = nameEl.textContent.trim();
			let priceText = '';
			const priceEl = item.querySelector('[class*="price"]');
			if (priceEl) priceText = priceEl.textContent.trim();
			products.push({ productId, productName, priceText });
		});
		stores.push({ storeId, storeName, products });
	});
	return stores;
}`

type storeMeta struct {
	StoreID   string        `json:"storeId"`
	StoreName string        `json:"storeName"`
	Products  []productMeta `json:"products"`
}

type productMeta struct {
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	PriceText   string `json:"priceText"`
}

// Store is the persistence surface the walker writes through.
type Store interface {
	UpsertStore(ctx context.Context, storeID, storeName string) error
	UpsertProduct(ctx context.Context, storeID, productID, productName string, price *int) error
	WriteReading(ctx context.Context, r sheets.Reading) error
}

// Notifier receives out-of-stock events as they are discovered.
type Notifier interface {
	NotifyDepleted(ctx context.Context, storeName, productName, optionName string)
}

type Summary struct {
	Stores   int
	Products int
	Readings int
	Depleted int
	Elapsed  time.Duration
}

// Walker drives one full pass over the cart page. Stores already probed
// this run are remembered by id so re-scrolling past them does nothing.
type Walker struct {
	driver   browser.Driver
	store    Store
	clock    *session.Clock
	cfg      *config.Config
	notifier Notifier
	// confirm, when set, is asked before each store is walked.
	confirm func(storeName string) bool
	seen    map[string]bool
}

func New(driver browser.Driver, store Store, clock *session.Clock, cfg *config.Config, notifier Notifier, confirm func(string) bool) *Walker {
	return &Walker{
		driver:   driver,
		store:    store,
		clock:    clock,
		cfg:      cfg,
		notifier: notifier,
		confirm:  confirm,
		seen:     make(map[string]bool),
	}
}

// Run scrolls through the cart until no unseen store shows up for
// MaxIdleScrolls consecutive rounds (or MaxScrollLoops passes), probing every
// product of every newly seen store. The session timestamp is frozen for the
// whole walk so all readings land in one column.
func (w *Walker) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	w.clock.Start()
	defer w.clock.Stop()

	summary := &Summary{}
	idle := 0
	for loops := 0; idle < w.cfg.MaxIdleScrolls && loops < w.cfg.MaxScrollLoops; loops++ {
		if err := ctx.Err(); err != nil {
			summary.Elapsed = time.Since(start)
			return summary, err
		}

		stores, err := w.collect()
		if err != nil {
			summary.Elapsed = time.Since(start)
			return summary, fmt.Errorf("collecting cart stores: %w", err)
		}

		progressed := false
		for si, meta := range stores {
			if meta.StoreID == "" || w.seen[meta.StoreID] {
				continue
			}
			w.seen[meta.StoreID] = true
			progressed = true

			if w.confirm != nil && !w.confirm(meta.StoreName) {
				log.Info().Str("store", meta.StoreName).Msg("Store skipped")
				continue
			}
			w.walkStore(ctx, si, meta, summary)
		}

		if progressed {
			idle = 0
		} else {
			idle++
		}
		w.scrollStep()
		w.driver.Sleep(time.Duration(w.cfg.ScrollPauseMs) * time.Millisecond)
	}

	summary.Elapsed = time.Since(start)
	return summary, nil
}

func (w *Walker) collect() ([]storeMeta, error) {
	var stores []storeMeta
	if err := w.driver.Eval(collectScript, &stores); err != nil {
		return nil, err
	}
	return stores, nil
}

func (w *Walker) scrollStep() {
	err := w.driver.Eval(`(step) => { window.scrollBy(0, step); }`, nil, w.cfg.ScrollStepPx)
	if err != nil {
		log.Warn().Err(err).Msg("Scroll step failed")
	}
}

func (w *Walker) walkStore(ctx context.Context, si int, meta storeMeta, summary *Summary) {
	log.Info().
		Str("store", meta.StoreName).
		Str("store_id", meta.StoreID).
		Int("products", len(meta.Products)).
		Msg("Walking store")
	summary.Stores++

	if err := w.store.UpsertStore(ctx, meta.StoreID, meta.StoreName); err != nil {
		log.Warn().Err(err).Str("store", meta.StoreName).Msg("Store upsert failed")
	}

	for pi, prod := range meta.Products {
		if prod.ProductID == "" {
			log.Warn().Str("store", meta.StoreName).Int("position", pi).Msg("Product without id, skipping")
			continue
		}
		summary.Products++

		var price *int
		if v, ok := pricetext.Price(prod.PriceText); ok {
			price = &v
		}
		if err := w.store.UpsertProduct(ctx, meta.StoreID, prod.ProductID, prod.ProductName, price); err != nil {
			log.Warn().Err(err).Str("product", prod.ProductName).Msg("Product upsert failed")
		}

		if err := w.probeProduct(ctx, si, pi, meta, prod, price, summary); err != nil {
			log.Warn().Err(err).Str("product", prod.ProductName).Msg("Product probe failed")
		}
	}
}

func (w *Walker) probeProduct(ctx context.Context, si, pi int, meta storeMeta, prod productMeta, price *int, summary *Summary) error {
	if err := w.openOverlay(ctx, si, pi); err != nil {
		return err
	}
	defer w.closeOverlay()

	sink := &sheetSink{walker: w, store: meta, product: prod, price: price, summary: summary}
	p := probe.New(w.driver, w.cfg.Selectors, func(ctx context.Context) error {
		return w.openOverlay(ctx, si, pi)
	})
	n, err := p.Run(ctx, sink)
	summary.Readings += n
	return err
}

// openOverlay clicks the product's modify button. Elements are re-located on
// every call: overlay churn invalidates previously held nodes.
func (w *Walker) openOverlay(ctx context.Context, si, pi int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	containers, err := w.driver.FindElements(w.cfg.Selectors.StoreContainer)
	if err != nil {
		return err
	}
	if si >= len(containers) {
		return fmt.Errorf("store container %d gone (%d present)", si, len(containers))
	}
	buttons, err := w.driver.FindElementsIn(containers[si], w.cfg.Selectors.ModifyButton)
	if err != nil {
		return err
	}
	if pi >= len(buttons) {
		return fmt.Errorf("modify button %d gone (%d present)", pi, len(buttons))
	}

	btn := buttons[pi]
	if err := w.driver.ScrollIntoView(btn); err != nil {
		log.Warn().Err(err).Msg("Scroll to modify button failed")
	}
	if err := w.driver.Click(btn); err != nil {
		return fmt.Errorf("opening modify overlay: %w", err)
	}
	w.driver.Sleep(overlayDelay)
	return nil
}

func (w *Walker) closeOverlay() {
	btn, err := browser.FirstElement(w.driver, w.cfg.Selectors.OverlayCloseBtn)
	if err != nil || btn == nil {
		return
	}
	if err := w.driver.Click(btn); err != nil {
		log.Warn().Err(err).Msg("Overlay close failed")
	}
	w.driver.Sleep(overlayDelay / 2)
}

// sheetSink adapts probe readings into sheet rows stamped with the session
// clock.
type sheetSink struct {
	walker  *Walker
	store   storeMeta
	product productMeta
	price   *int
	summary *Summary
}

func (s *sheetSink) Record(ctx context.Context, optionName string, additionalPrice, stock int) error {
	r := sheets.Reading{
		StoreID:         s.store.StoreID,
		ProductID:       s.product.ProductID,
		OptionName:      optionName,
		StoreName:       s.store.StoreName,
		ProductName:     s.product.ProductName,
		Price:           s.price,
		AdditionalPrice: additionalPrice,
		Stock:           stock,
		Timestamp:       s.walker.clock.Now(),
	}
	if err := s.walker.store.WriteReading(ctx, r); err != nil {
		return err
	}
	if stock == 0 {
		s.summary.Depleted++
		if s.walker.notifier != nil {
			s.walker.notifier.NotifyDepleted(ctx, s.store.StoreName, s.product.ProductName, optionName)
		}
	}
	return nil
}
