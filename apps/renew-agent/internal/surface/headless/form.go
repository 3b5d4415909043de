package headless

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// request はworkerが送信するHTTPリクエスト
type request struct {
	method string
	url    string
	form   url.Values
}

// formRequest はform要素と押下された送信ボタンからリクエストを組み立てる。
func formRequest(form, submitter *goquery.Selection, base *url.URL) (request, error) {
	target, err := resolve(base, form.AttrOr("action", ""))
	if err != nil {
		return request{}, err
	}
	method := http.MethodGet
	if strings.EqualFold(form.AttrOr("method", ""), http.MethodPost) {
		method = http.MethodPost
	}
	return request{method: method, url: target, form: serialize(form, submitter)}, nil
}

// serialize はフォームの送信値を組み立てる。
func serialize(form, submitter *goquery.Selection) url.Values {
	values := url.Values{}
	form.Find("input, select, textarea").Each(func(_ int, el *goquery.Selection) {
		name := el.AttrOr("name", "")
		if name == "" {
			return
		}
		if _, disabled := el.Attr("disabled"); disabled {
			return
		}

		switch goquery.NodeName(el) {
		case "input":
			switch strings.ToLower(el.AttrOr("type", "text")) {
			case "checkbox", "radio":
				if _, checked := el.Attr("checked"); checked {
					values.Add(name, el.AttrOr("value", "on"))
				}
			case "submit", "image", "button", "reset", "file":
				// 送信ボタンは押下されたもののみ
			default:
				values.Add(name, el.AttrOr("value", ""))
			}
		case "select":
			selected := el.Find("option[selected]")
			if selected.Length() == 0 {
				selected = el.Find("option").First()
			}
			selected.Each(func(_ int, o *goquery.Selection) {
				values.Add(name, optionValue(o))
			})
		case "textarea":
			values.Add(name, el.Text())
		}
	})

	if submitter != nil {
		if name := submitter.AttrOr("name", ""); name != "" {
			values.Add(name, submitter.AttrOr("value", ""))
		}
	}
	return values
}

// autoSubmitRequest はSAML POSTバインディング等の自動遷移ページから次のリクエストを返す。
func autoSubmitRequest(doc *goquery.Document, base *url.URL) (request, bool) {
	if target, ok := metaRefresh(doc, base); ok {
		return request{method: http.MethodGet, url: target}, true
	}

	onload := strings.ReplaceAll(doc.Find("body").AttrOr("onload", ""), " ", "")
	if !strings.Contains(onload, ".submit()") {
		return request{}, false
	}
	form := doc.Find("form").First()
	if form.Length() == 0 {
		return request{}, false
	}
	req, err := formRequest(form, nil, base)
	if err != nil {
		return request{}, false
	}
	return req, true
}

// metaRefresh は即時のmeta refreshの遷移先を返す。
func metaRefresh(doc *goquery.Document, base *url.URL) (string, bool) {
	var content string
	doc.Find("meta").EachWithBreak(func(_ int, m *goquery.Selection) bool {
		if strings.EqualFold(m.AttrOr("http-equiv", ""), "refresh") {
			content = m.AttrOr("content", "")
			return false
		}
		return true
	})
	if content == "" {
		return "", false
	}

	delay, rest, _ := strings.Cut(content, ";")
	if d, err := strconv.Atoi(strings.TrimSpace(delay)); err != nil || d > 0 {
		return "", false
	}
	rest = strings.TrimSpace(rest)
	if len(rest) < 4 || !strings.EqualFold(rest[:4], "url=") {
		return "", false
	}
	target, err := resolve(base, strings.Trim(strings.TrimSpace(rest[4:]), `'"`))
	if err != nil {
		return "", false
	}
	return target, true
}

func optionValue(o *goquery.Selection) string {
	if v, ok := o.Attr("value"); ok {
		return v
	}
	return strings.TrimSpace(o.Text())
}

// resolve は現在のURLを基準に参照を絶対URLへ解決する。
func resolve(base *url.URL, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if base == nil {
		u, err := url.Parse(ref)
		if err != nil {
			return "", err
		}
		return u.String(), nil
	}
	if ref == "" {
		return base.String(), nil
	}
	u, err := base.Parse(ref)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}
