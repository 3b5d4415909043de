// Package fakesite はテスト用にUPassBCと学校IdPのページ遷移を再現するHTTPサーバーを提供する。
package fakesite

import (
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// 固定パス
const (
	AuthPath      = "/idp/login/schoolA"
	RelayPath     = "/saml/relay"
	ACSPath       = "/Shibboleth.sso/SAML2/POST"
	DashboardPath = "/fs/dashboard"
	RequestPath   = "/fs/request"
	SelectPath    = "/SelectSchool"

	// AuthIdentifier はAuthPathを識別する文字列
	AuthIdentifier = "/login/schoolA"

	sessionCookie = "fs_session"
)

// Options はサイトの振る舞いを指定する
type Options struct {
	SchoolValue   string
	Username      string
	Password      string
	Issued        int
	RejectRenewal bool
	// FailDashboard はダッシュボードを500で応答させる
	FailDashboard bool
}

// Site はテスト用サイト
type Site struct {
	*httptest.Server

	mu       sync.Mutex
	opts     Options
	issued   int
	renewals int
	logins   int
}

// New はテスト用サイトを起動する。呼び出し側でCloseすること。
func New(opts Options) *Site {
	s := &Site{opts: opts, issued: opts.Issued}
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.home)
	mux.HandleFunc(SelectPath, s.selectSchool)
	mux.HandleFunc(AuthPath, s.login)
	mux.HandleFunc(RelayPath, s.relay)
	mux.HandleFunc(ACSPath, s.acs)
	mux.HandleFunc(DashboardPath, s.dashboard)
	mux.HandleFunc(RequestPath, s.request)
	s.Server = httptest.NewServer(mux)
	return s
}

// HomeURL はトップページのURLを返す
func (s *Site) HomeURL() string {
	return s.URL + "/"
}

// Issued は発行済み枚数を返す
func (s *Site) Issued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issued
}

// Renewals は更新リクエストの受信回数を返す
func (s *Site) Renewals() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renewals
}

// Logins はログインフォームの送信回数を返す
func (s *Site) Logins() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logins
}

func (s *Site) home(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeHTML(w, `<html><body>
<form id="psiForm" action="`+SelectPath+`" method="get">
<select id="PsiId" name="PsiId">
<option value="">Select your school</option>
<option value="sfu">Simon Fraser University</option>
<option value="`+html.EscapeString(s.opts.SchoolValue)+`">School A</option>
</select>
<button id="goButton" type="submit">Go</button>
</form></body></html>`)
}

func (s *Site) selectSchool(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("PsiId") != s.opts.SchoolValue {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	http.Redirect(w, r, AuthPath+"?service=upassbc", http.StatusFound)
}

func (s *Site) login(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		_ = r.ParseForm()
		s.mu.Lock()
		s.logins++
		s.mu.Unlock()
		if r.PostForm.Get("username") == s.opts.Username &&
			r.PostForm.Get("password") == s.opts.Password &&
			r.PostForm.Get("execution") == "e1s1" {
			http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "ok", Path: "/"})
			http.Redirect(w, r, RelayPath, http.StatusFound)
			return
		}
	}
	writeHTML(w, `<html><body>
<form method="post" action="`+AuthPath+`">
<input id="username" name="username" type="text">
<input id="password" name="password" type="password">
<input type="hidden" name="execution" value="e1s1">
<button type="submit" name="_eventId_proceed">Login</button>
</form></body></html>`)
}

func (s *Site) relay(w http.ResponseWriter, r *http.Request) {
	writeHTML(w, `<html><body onload="document.forms[0].submit()">
<form method="post" action="`+ACSPath+`">
<input type="hidden" name="SAMLResponse" value="PHNhbWw+">
<noscript><button type="submit">Continue</button></noscript>
</form></body></html>`)
}

func (s *Site) acs(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	if r.Method != http.MethodPost || r.PostForm.Get("SAMLResponse") == "" {
		http.Error(w, "missing assertion", http.StatusBadRequest)
		return
	}
	http.Redirect(w, r, DashboardPath, http.StatusFound)
}

func (s *Site) authorized(r *http.Request) bool {
	c, err := r.Cookie(sessionCookie)
	return err == nil && c.Value == "ok"
}

func (s *Site) dashboard(w http.ResponseWriter, r *http.Request) {
	if s.opts.FailDashboard {
		http.Error(w, "unavailable", http.StatusInternalServerError)
		return
	}
	if !s.authorized(r) {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	s.mu.Lock()
	issued := s.issued
	s.mu.Unlock()

	var b strings.Builder
	b.WriteString(`<html><body><table id="upassTable">`)
	for i := 0; i < issued; i++ {
		fmt.Fprintf(&b, `<tr class="status-issued"><td>UPass %d</td></tr>`, i+1)
	}
	b.WriteString(`</table><form method="post" action="` + RequestPath + `">`)
	b.WriteString(`<input type="checkbox" name="Eligibility[0].Selected" value="true">`)
	b.WriteString(`<button id="requestButton" type="submit">Request</button></form></body></html>`)
	writeHTML(w, b.String())
}

func (s *Site) request(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	if !s.authorized(r) || r.PostForm.Get("Eligibility[0].Selected") != "true" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.renewals++
	if !s.opts.RejectRenewal {
		s.issued++
	}
	s.mu.Unlock()
	http.Redirect(w, r, DashboardPath, http.StatusFound)
}

func writeHTML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(body))
}
