package chrome

import (
	"encoding/json"
	"fmt"
)

// prelude はpageバインディングのブラウザ実装。
// click/submitはスクリプト結果を返した後に実行されるようsetTimeoutで遅延させる。
const prelude = `
var page = {
	exists: function (s) { return document.querySelector(s) !== null; },
	count: function (s) { return document.querySelectorAll(s).length; },
	text: function (s) {
		var e = document.querySelector(s);
		return e ? e.textContent.trim() : "";
	},
	fill: function (s, v) {
		var e = document.querySelector(s);
		if (!e || e.tagName !== "INPUT") { return false; }
		e.focus();
		e.value = v;
		e.dispatchEvent(new Event("input", { bubbles: true }));
		e.dispatchEvent(new Event("change", { bubbles: true }));
		return true;
	},
	select: function (s, v) {
		var e = document.querySelector(s);
		if (!e || e.tagName !== "SELECT") { return false; }
		for (var i = 0; i < e.options.length; i++) {
			if (e.options[i].value === v) {
				e.selectedIndex = i;
				e.dispatchEvent(new Event("change", { bubbles: true }));
				return true;
			}
		}
		return false;
	},
	check: function (s) {
		var n = 0;
		document.querySelectorAll(s).forEach(function (e) {
			if ((e.type === "checkbox" || e.type === "radio") && !e.disabled) {
				if (!e.checked) { e.click(); }
				n++;
			}
		});
		return n;
	},
	click: function (s) {
		var e = document.querySelector(s);
		if (!e) { return false; }
		setTimeout(function () { e.click(); }, 0);
		return true;
	},
	submit: function (s) {
		var e = document.querySelector(s);
		if (!e) { return false; }
		var f = e.tagName === "FORM" ? e : (e.form || e.closest("form"));
		if (!f) { return false; }
		setTimeout(function () {
			if (f.requestSubmit) { f.requestSubmit(); } else { f.submit(); }
		}, 0);
		return true;
	}
};
`

// wrap はスクリプトをpageバインディングのスコープで評価し、結果をJSON文字列で返す式にする。
func wrap(source string) string {
	return fmt.Sprintf("(function() {%s\nreturn JSON.stringify({v: (%s)});\n})()", prelude, source)
}

// decode はwrapした式の評価結果をGoの値に戻す。
func decode(raw string) (any, error) {
	var envelope struct {
		V any `json:"v"`
	}
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		return nil, fmt.Errorf("decode script result: %w", err)
	}
	return envelope.V, nil
}
