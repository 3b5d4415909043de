package headless

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dop251/goja"
)

// page は1回のスクリプト実行に対応するDOM操作バインディング
type page struct {
	doc  *goquery.Document
	base *url.URL

	// pending はclick/submitで発生した送信。最後のものが有効。
	pending *request
}

func newPage(doc *goquery.Document, base *url.URL) *page {
	return &page{doc: doc, base: base}
}

// run はソースを新しいVMで実行し、結果をGoの値として返す。
func (p *page) run(source string, timeout time.Duration) (any, error) {
	vm := goja.New()
	obj := vm.NewObject()
	_ = obj.Set("exists", p.exists)
	_ = obj.Set("count", p.count)
	_ = obj.Set("text", p.text)
	_ = obj.Set("fill", p.fill)
	_ = obj.Set("select", p.selectOption)
	_ = obj.Set("check", p.check)
	_ = obj.Set("click", p.click)
	_ = obj.Set("submit", p.submit)
	if err := vm.Set("page", obj); err != nil {
		return nil, err
	}

	timer := time.AfterFunc(timeout, func() {
		vm.Interrupt(ErrScriptTimeout)
	})
	defer timer.Stop()

	v, err := vm.RunString(source)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return nil, ErrScriptTimeout
		}
		var ex *goja.Exception
		if errors.As(err, &ex) {
			return nil, fmt.Errorf("%w: %s", ErrScriptException, ex.Value().String())
		}
		return nil, fmt.Errorf("%w: %v", ErrScriptException, err)
	}
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, nil
	}
	return v.Export(), nil
}

func (p *page) exists(sel string) bool {
	return p.doc.Find(sel).Length() > 0
}

func (p *page) count(sel string) int {
	return p.doc.Find(sel).Length()
}

func (p *page) text(sel string) string {
	return strings.TrimSpace(p.doc.Find(sel).First().Text())
}

// fill はinput要素のvalue属性を設定する。
func (p *page) fill(sel, value string) bool {
	el := p.doc.Find(sel).First()
	if el.Length() == 0 || goquery.NodeName(el) != "input" {
		return false
	}
	el.SetAttr("value", value)
	return true
}

// selectOption はselect要素でvalueに一致するoptionを選択状態にする。
func (p *page) selectOption(sel, value string) bool {
	el := p.doc.Find(sel).First()
	if el.Length() == 0 || goquery.NodeName(el) != "select" {
		return false
	}
	options := el.Find("option")
	match := options.FilterFunction(func(_ int, o *goquery.Selection) bool {
		return optionValue(o) == value
	}).First()
	if match.Length() == 0 {
		return false
	}
	options.RemoveAttr("selected")
	match.SetAttr("selected", "selected")
	return true
}

// check は有効なチェックボックス・ラジオを選択状態にし、選択状態の要素数を返す。
func (p *page) check(sel string) int {
	n := 0
	p.doc.Find(sel).Each(func(_ int, el *goquery.Selection) {
		if goquery.NodeName(el) != "input" {
			return
		}
		typ := strings.ToLower(el.AttrOr("type", "text"))
		if typ != "checkbox" && typ != "radio" {
			return
		}
		if _, disabled := el.Attr("disabled"); disabled {
			return
		}
		el.SetAttr("checked", "checked")
		n++
	})
	return n
}

// click はリンクまたは送信ボタンを押下する。押下対象でない要素はfalseを返す。
func (p *page) click(sel string) bool {
	el := p.doc.Find(sel).First()
	if el.Length() == 0 {
		return false
	}

	switch goquery.NodeName(el) {
	case "a":
		href, ok := el.Attr("href")
		if !ok || strings.HasPrefix(strings.ToLower(strings.TrimSpace(href)), "javascript:") {
			return false
		}
		target, err := resolve(p.base, href)
		if err != nil {
			return false
		}
		p.pending = &request{method: "GET", url: target}
		return true
	case "button":
		if typ := strings.ToLower(el.AttrOr("type", "submit")); typ != "submit" {
			return false
		}
	case "input":
		if typ := strings.ToLower(el.AttrOr("type", "text")); typ != "submit" && typ != "image" {
			return false
		}
	default:
		return false
	}

	form := el.Closest("form")
	if form.Length() == 0 {
		return false
	}
	req, err := formRequest(form, el, p.base)
	if err != nil {
		return false
	}
	p.pending = &req
	return true
}

// submit は要素自身または祖先のformを送信する。
func (p *page) submit(sel string) bool {
	el := p.doc.Find(sel).First()
	if el.Length() == 0 {
		return false
	}
	form := el
	if goquery.NodeName(el) != "form" {
		form = el.Closest("form")
	}
	if form.Length() == 0 {
		return false
	}
	req, err := formRequest(form, nil, p.base)
	if err != nil {
		return false
	}
	p.pending = &req
	return true
}
