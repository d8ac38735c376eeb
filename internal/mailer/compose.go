package mailer

import (
	"bytes"
	"html/template"
	"net/url"
	"strings"
)

var (
	confirmTmpl = template.Must(template.New("confirm").Parse(
		`<p>{{if .Name}}{{.Name}}님, {{end}}AjouNICE 이메일 인증을 완료하려면 아래 링크를 눌러주세요.</p>` +
			`<p><a href="{{.Link}}">{{.Link}}</a></p>`))

	contactTmpl = template.Must(template.New("contact").Parse(
		`<p>From: {{.Name}} &lt;{{.Email}}&gt;</p><pre>{{.Content}}</pre>`))
)

// Composer renders the gateway's outbound messages.
type Composer struct {
	siteURL string
	admin   string
}

// NewComposer creates a Composer. Links in confirmation mail point at
// siteURL; contact mail is addressed to admin.
func NewComposer(siteURL, admin string) *Composer {
	return &Composer{siteURL: strings.TrimSuffix(siteURL, "/"), admin: admin}
}

// Confirm renders the address verification mail. reset selects the wording
// used after resetEmailToken.
func (c *Composer) Confirm(name, email, token string, reset bool) (Message, error) {
	q := url.Values{}
	q.Set("email", email)
	q.Set("auth_token", token)
	link := c.siteURL + "/auth?" + q.Encode()

	var body bytes.Buffer
	if err := confirmTmpl.Execute(&body, map[string]string{"Name": name, "Link": link}); err != nil {
		return Message{}, err
	}

	subject := "[AjouNICE] 회원가입 이메일 인증"
	if reset {
		subject = "[AjouNICE] 이메일 재인증"
	}
	return Message{To: email, Subject: subject, Body: body.String()}, nil
}

// Contact renders a message from the public contact form.
func (c *Composer) Contact(name, email, content string) (Message, error) {
	var body bytes.Buffer
	data := map[string]string{"Name": name, "Email": email, "Content": content}
	if err := contactTmpl.Execute(&body, data); err != nil {
		return Message{}, err
	}
	return Message{
		To:      c.admin,
		ReplyTo: email,
		Subject: "[AjouNICE] 문의: " + name,
		Body:    body.String(),
	}, nil
}
