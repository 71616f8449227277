package browser

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"
)

// RodDriver implements Driver on top of a go-rod page.
type RodDriver struct {
	page    *rod.Page
	dialogs chan *proto.PageJavascriptDialogOpening
}

// NewRodDriver wraps page. It subscribes to dialog-opening events so that
// AcceptAlert can observe alerts raised between calls.
func NewRodDriver(page *rod.Page) *RodDriver {
	d := &RodDriver{
		page:    page,
		dialogs: make(chan *proto.PageJavascriptDialogOpening, 4),
	}
	go page.EachEvent(func(e *proto.PageJavascriptDialogOpening) {
		select {
		case d.dialogs <- e:
		default:
			log.Warn().Str("message", e.Message).Msg("Dropping unobserved dialog event")
		}
	})()
	return d
}

// Page exposes the underlying rod page for navigation.
func (d *RodDriver) Page() *rod.Page {
	return d.page
}

func (d *RodDriver) FindElements(sel Selector) ([]Element, error) {
	return d.resolve(sel, func(s Strategy) (rod.Elements, error) {
		if s.Method == "xpath" {
			return d.page.ElementsX(s.Query)
		}
		return d.page.Elements(s.Query)
	})
}

func (d *RodDriver) FindElementsIn(parent Element, sel Selector) ([]Element, error) {
	el, err := asRodElement(parent)
	if err != nil {
		return nil, err
	}
	return d.resolve(sel, func(s Strategy) (rod.Elements, error) {
		if s.Method == "xpath" {
			return el.ElementsX(s.Query)
		}
		return el.Elements(s.Query)
	})
}

func (d *RodDriver) resolve(sel Selector, find func(Strategy) (rod.Elements, error)) ([]Element, error) {
	for _, strategy := range sel {
		found, err := find(strategy)
		if err != nil {
			log.Debug().Str("query", strategy.Query).Err(err).Msg("Selector strategy failed")
			continue
		}
		if len(found) == 0 {
			continue
		}
		els := make([]Element, len(found))
		for i, e := range found {
			els[i] = e
		}
		return els, nil
	}
	return nil, nil
}

func (d *RodDriver) Click(el Element) error {
	e, err := asRodElement(el)
	if err != nil {
		return err
	}
	return e.Click(proto.InputMouseButtonLeft, 1)
}

func (d *RodDriver) WaitVisible(el Element, timeout time.Duration) error {
	e, err := asRodElement(el)
	if err != nil {
		return err
	}
	return e.Timeout(timeout).WaitVisible()
}

func (d *RodDriver) Text(el Element) (string, error) {
	e, err := asRodElement(el)
	if err != nil {
		return "", err
	}
	return e.Text()
}

func (d *RodDriver) Attribute(el Element, name string) (string, error) {
	e, err := asRodElement(el)
	if err != nil {
		return "", err
	}
	v, err := e.Attribute(name)
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", nil
	}
	return *v, nil
}

func (d *RodDriver) SendText(el Element, text string) error {
	e, err := asRodElement(el)
	if err != nil {
		return err
	}
	return e.Input(text)
}

func (d *RodDriver) SendKey(el Element, key Key) error {
	e, err := asRodElement(el)
	if err != nil {
		return err
	}
	switch key {
	case KeyHome:
		return e.Type(input.Home)
	case KeyDelete:
		return e.Type(input.Delete)
	default:
		return fmt.Errorf("unknown key %d", key)
	}
}

func (d *RodDriver) Eval(js string, out interface{}, args ...interface{}) error {
	res, err := d.page.Eval(js, args...)
	if err != nil {
		return fmt.Errorf("page eval failed: %w", err)
	}
	if out == nil {
		return nil
	}
	raw := res.Value.JSON("", "")
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("decoding eval result: %w", err)
	}
	return nil
}

func (d *RodDriver) ScrollIntoView(el Element) error {
	e, err := asRodElement(el)
	if err != nil {
		return err
	}
	return e.ScrollIntoView()
}

func (d *RodDriver) Sleep(duration time.Duration) {
	time.Sleep(duration)
}

func (d *RodDriver) AcceptAlert(timeout time.Duration) (string, bool) {
	select {
	case e := <-d.dialogs:
		err := proto.PageHandleJavaScriptDialog{Accept: true}.Call(d.page)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to accept dialog")
		}
		return e.Message, true
	case <-time.After(timeout):
		return "", false
	}
}

func asRodElement(el Element) (*rod.Element, error) {
	e, ok := el.(*rod.Element)
	if !ok {
		return nil, fmt.Errorf("element %T does not belong to this driver", el)
	}
	return e, nil
}
