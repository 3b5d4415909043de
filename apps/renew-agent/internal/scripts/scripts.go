// Package scripts はレンダリング面に注入するスクリプトを生成する。
//
// スクリプトは page オブジェクト（exists/count/text/fill/select/check/click/submit）
// のみを使って記述し、headless/chrome のどちらの面でも同じソースを実行する。
package scripts

import (
	"encoding/json"
	"fmt"

	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/school"
)

// Action はスクリプトの種別
type Action string

// スクリプト種別の定数
const (
	ActionSelectSchool   Action = "selectSchool"
	ActionAuthenticate   Action = "authenticate"
	ActionCheckPassCount Action = "checkUpass"
	ActionRenew          Action = "renew"
	ActionVerifyRenewal  Action = "verifyRenew"
)

// UPassBCページのセレクタ
const (
	SchoolSelectSelector = "select#PsiId"
	SchoolSubmitSelector = "#goButton"
	IssuedPassSelector   = "table#upassTable tr.status-issued"
	EligibleSelector     = "input[type=checkbox][name^=Eligibility]"
	RequestSelector      = "#requestButton"
)

// Script は注入スクリプト
type Script struct {
	Action Action
	Source string
	// Sensitive はソースに資格情報を含むかどうか。trueの場合はログに出さない。
	Sensitive bool
}

func (s Script) String() string {
	return string(s.Action)
}

const selectSchoolBody = `
if (!page.exists(args.selectSelector)) { return false; }
if (!page.select(args.selectSelector, args.value)) { return false; }
if (page.click(args.submitSelector)) { return true; }
return page.submit(args.selectSelector);
`

const authenticateBody = `
if (!page.exists(args.usernameSelector) || !page.exists(args.passwordSelector)) {
	throw new Error("login form not found");
}
page.fill(args.usernameSelector, args.username);
page.fill(args.passwordSelector, args.password);
if (page.click(args.submitSelector)) { return true; }
return page.submit(args.passwordSelector);
`

const countIssuedBody = `
return page.count(args.issuedSelector);
`

const renewBody = `
var checked = page.check(args.eligibleSelector);
if (checked === 0) { return false; }
return page.click(args.requestSelector);
`

// SelectSchool はトップページで学校を選択して送信するスクリプトを返す。
// 結果は選択肢が見つかり送信できたかどうかの真偽値。
func SelectSchool(s school.School) Script {
	return build(ActionSelectSchool, selectSchoolBody, map[string]any{
		"selectSelector": SchoolSelectSelector,
		"submitSelector": SchoolSubmitSelector,
		"value":          s.SelectorValue,
	}, false)
}

// Authenticate は学校ログインフォームに資格情報を入力して送信するスクリプトを返す。
func Authenticate(s school.School, username, password string) Script {
	return build(ActionAuthenticate, authenticateBody, map[string]any{
		"usernameSelector": s.Login.UsernameSelector,
		"passwordSelector": s.Login.PasswordSelector,
		"submitSelector":   s.Login.SubmitSelector,
		"username":         username,
		"password":         password,
	}, true)
}

// CheckPassCount は取得済みUPass枚数を返すスクリプトを返す。
func CheckPassCount() Script {
	return build(ActionCheckPassCount, countIssuedBody, map[string]any{
		"issuedSelector": IssuedPassSelector,
	}, false)
}

// Renew は対象月のチェックボックスを選択して更新を送信するスクリプトを返す。
func Renew() Script {
	return build(ActionRenew, renewBody, map[string]any{
		"eligibleSelector": EligibleSelector,
		"requestSelector":  RequestSelector,
	}, false)
}

// VerifyRenewal は更新後の取得済みUPass枚数を返すスクリプトを返す。
func VerifyRenewal() Script {
	return build(ActionVerifyRenewal, countIssuedBody, map[string]any{
		"issuedSelector": IssuedPassSelector,
	}, false)
}

// build は引数をJSONとして埋め込んだ即時関数を組み立てる。
func build(action Action, body string, args map[string]any, sensitive bool) Script {
	encoded, err := json.Marshal(args)
	if err != nil {
		// 引数は文字列のみのため発生しない
		panic(fmt.Sprintf("scripts: marshal args: %v", err))
	}
	return Script{
		Action:    action,
		Source:    fmt.Sprintf("(function(args) {%s})(%s)", body, encoded),
		Sensitive: sensitive,
	}
}
