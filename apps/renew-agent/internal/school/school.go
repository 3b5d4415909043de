// Package school はUPassBC参加校の定義を提供する。
package school

import (
	"errors"
	"sort"
	"strings"
)

// ErrUnknownSchool は登録されていない学校IDが指定された場合のエラー
var ErrUnknownSchool = errors.New("unknown school")

// Login は学校ログインフォームのセレクタ
type Login struct {
	UsernameSelector string
	PasswordSelector string
	SubmitSelector   string
}

// School は参加校の不変な定義
type School struct {
	ID        int
	Name      string
	ShortName string
	// SelectorValue はUPassBCトップページの学校選択肢の値
	SelectorValue string
	// AuthPageIdentifier は学校ログインページのURLに含まれる文字列
	AuthPageIdentifier string
	Login              Login
}

// IsZero は未設定の学校かどうかを返す
func (s School) IsZero() bool {
	return s.ID == 0
}

var defaultLogin = Login{
	UsernameSelector: "#username",
	PasswordSelector: "#password",
	SubmitSelector:   "button[type=submit], input[type=submit]",
}

// registry はID(1-10)をキーとする参加校一覧
var registry = map[int]School{
	1: {
		ID: 1, Name: "Simon Fraser University", ShortName: "SFU",
		SelectorValue: "sfu", AuthPageIdentifier: "cas.sfu.ca",
		Login: Login{UsernameSelector: "#computingId", PasswordSelector: "#password", SubmitSelector: "input[name=submit]"},
	},
	2: {
		ID: 2, Name: "University of British Columbia", ShortName: "UBC",
		SelectorValue: "ubc", AuthPageIdentifier: "authentication.ubc.ca",
		Login: Login{UsernameSelector: "#username", PasswordSelector: "#password", SubmitSelector: "button[name=_eventId_proceed]"},
	},
	3: {
		ID: 3, Name: "Langara College", ShortName: "Langara",
		SelectorValue: "lang", AuthPageIdentifier: "idp.langara.bc.ca",
		Login: defaultLogin,
	},
	4: {
		ID: 4, Name: "British Columbia Institute of Technology", ShortName: "BCIT",
		SelectorValue: "bcit", AuthPageIdentifier: "idp.bcit.ca",
		Login: defaultLogin,
	},
	5: {
		ID: 5, Name: "Capilano University", ShortName: "CapU",
		SelectorValue: "capu", AuthPageIdentifier: "idp.capilanou.ca",
		Login: defaultLogin,
	},
	6: {
		ID: 6, Name: "Douglas College", ShortName: "Douglas",
		SelectorValue: "dc", AuthPageIdentifier: "idp.douglascollege.ca",
		Login: defaultLogin,
	},
	7: {
		ID: 7, Name: "Emily Carr University of Art + Design", ShortName: "ECUAD",
		SelectorValue: "ecuad", AuthPageIdentifier: "idp.ecuad.ca",
		Login: defaultLogin,
	},
	8: {
		ID: 8, Name: "Kwantlen Polytechnic University", ShortName: "KPU",
		SelectorValue: "kpu", AuthPageIdentifier: "idp.kpu.ca",
		Login: defaultLogin,
	},
	9: {
		ID: 9, Name: "Nicola Valley Institute of Technology", ShortName: "NVIT",
		SelectorValue: "nvit", AuthPageIdentifier: "idp.nvit.ca",
		Login: defaultLogin,
	},
	10: {
		ID: 10, Name: "Vancouver Community College", ShortName: "VCC",
		SelectorValue: "vcc", AuthPageIdentifier: "idp.vcc.ca",
		Login: defaultLogin,
	},
}

// ByID はIDから参加校を返す
func ByID(id int) (School, error) {
	s, ok := registry[id]
	if !ok {
		return School{}, ErrUnknownSchool
	}
	return s, nil
}

// ByShortName は略称から参加校を返す。大文字小文字は区別しない。
func ByShortName(name string) (School, error) {
	for _, s := range registry {
		if strings.EqualFold(s.ShortName, name) {
			return s, nil
		}
	}
	return School{}, ErrUnknownSchool
}

// All はID順の参加校一覧を返す
func All() []School {
	list := make([]School, 0, len(registry))
	for _, s := range registry {
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}
