package pkg

import (
	"crypto/tls"
	"fmt"
	"html"

	"gopkg.in/gomail.v2"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string // 发件人邮箱
	Password string // 授权码/密码
	From     string // 显示的发件人，可与 Username 相同
}

func (c SMTPConfig) Enabled() bool { return c.Host != "" && c.From != "" }

type Mailer struct {
	cfg    SMTPConfig
	dialer *gomail.Dialer
}

func NewMailer(cfg SMTPConfig) *Mailer {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.TLSConfig = &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}
	return &Mailer{cfg: cfg, dialer: d}
}

func (m *Mailer) Send(to, subject, htmlBody string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)
	return m.dialer.DialAndSend(msg)
}

// MembershipJoinedHTML 付费订阅开通通知
func MembershipJoinedHTML(displayName, communityName string) string {
	return fmt.Sprintf(`<p>Hi %s,</p><p>Your membership in <b>%s</b> is now active. Welcome aboard!</p>`,
		html.EscapeString(displayName), html.EscapeString(communityName))
}

// MembershipEndedHTML 订阅取消/退出通知
func MembershipEndedHTML(displayName, communityName string) string {
	return fmt.Sprintf(`<p>Hi %s,</p><p>Your membership in <b>%s</b> has ended. You can re-join at any time.</p>`,
		html.EscapeString(displayName), html.EscapeString(communityName))
}
