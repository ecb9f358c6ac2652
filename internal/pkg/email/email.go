package email

import (
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
	"time"

	"github.com/qs3c/codemorph_server/config"
)

const brand = "CodeMorph"

type Service struct {
	cfg  *config.EmailConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewService(cfg *config.EmailConfig) *Service {
	return &Service{cfg: cfg, send: smtp.SendMail}
}

// Enabled SMTP 是否已配置
func (s *Service) Enabled() bool {
	return s != nil && s.cfg != nil && s.cfg.SMTPHost != "" && s.cfg.From != ""
}

var verificationTmpl = template.Must(template.New("verify").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2 style="color: #2563eb;">邮箱验证</h2>
        <p>您好，感谢注册 {{.Brand}}。您的验证码为：</p>
        <div style="background-color: #f3f4f6; padding: 15px; text-align: center; font-size: 18px; font-weight: bold; letter-spacing: 2px; margin: 20px 0;">{{.Code}}</div>
        <p>验证码 24 小时内有效。验证后即可领取 {{.Credits}} 个免费积分。</p>
        <p style="color: #6b7280; font-size: 12px;">此邮件由系统自动发送，请勿回复。</p>
    </div>
</body>
</html>`))

var shareTmpl = template.Must(template.New("share").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2 style="color: #2563eb;">{{.Owner}} 与您共享了积分</h2>
        <p>在 {{.EndDate}} 之前，您可以使用 {{.Owner}} 的付费积分进行代码转换。</p>
        <p>登录 {{.Brand}} 后在控制台查看共享积分余额。</p>
        <p style="color: #6b7280; font-size: 12px;">此邮件由系统自动发送，请勿回复。</p>
    </div>
</body>
</html>`))

// SendVerificationCode 发送邮箱验证码
func (s *Service) SendVerificationCode(to, code string, credits int) error {
	body, err := render(verificationTmpl, map[string]interface{}{
		"Brand":   brand,
		"Code":    code,
		"Credits": credits,
	})
	if err != nil {
		return err
	}
	return s.sendHTML(to, "邮箱验证 - "+brand, body)
}

// SendShareNotification 通知接收方收到共享积分
func (s *Service) SendShareNotification(to, ownerName string, endDate time.Time) error {
	body, err := render(shareTmpl, map[string]interface{}{
		"Brand":   brand,
		"Owner":   ownerName,
		"EndDate": endDate.UTC().Format("2006-01-02"),
	})
	if err != nil {
		return err
	}
	return s.sendHTML(to, ownerName+" 与您共享了积分 - "+brand, body)
}

func render(t *template.Template, data interface{}) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render %s mail: %w", t.Name(), err)
	}
	return b.String(), nil
}

// sendHTML 发送 HTML 邮件
func (s *Service) sendHTML(to, subject, body string) error {
	if !s.Enabled() {
		return fmt.Errorf("smtp is not configured")
	}

	msg := buildMessage(s.cfg.From, to, subject, body)
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.SMTPHost)
	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)

	return s.send(addr, auth, s.cfg.From, []string{to}, msg)
}

func buildMessage(from, to, subject, body string) []byte {
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)
	return []byte(msg.String())
}
