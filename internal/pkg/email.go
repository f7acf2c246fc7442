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
	Username string
	Password string
	From     string // 显示的发件人，可与 Username 相同
}

// Enabled 未配置主机时不发邮件
func (c SMTPConfig) Enabled() bool {
	return c.Host != ""
}

func SendEmail(cfg SMTPConfig, to, subject, htmlBody string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.TLSConfig = &tls.Config{ServerName: cfg.Host}
	return d.DialAndSend(m)
}

// BadgeEarnedHTML 获得徽章的邮件正文
func BadgeEarnedHTML(name, icon, badge string, points int64) string {
	return fmt.Sprintf(`<p>Hi %s,</p><p>%s You earned the <b>%s</b> badge!</p><p>Your current total is <b>%d</b> points. Thank you for helping your city.</p>`,
		html.EscapeString(name), html.EscapeString(icon), html.EscapeString(badge), points)
}
