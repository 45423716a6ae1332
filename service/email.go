package service

import (
	"context"
	"fmt"
	"html"

	"budget/config"
	"budget/models"

	"gopkg.in/gomail.v2"
)

// EmailService 邮件服务
type EmailService struct {
	cfg *config.EmailConfig
}

// NewEmailService 创建邮件服务
func NewEmailService(cfg *config.EmailConfig) *EmailService {
	return &EmailService{cfg: cfg}
}

// NotifyBudgetExhausted 发送预算用尽提醒
// 邮件服务未启用或用户没有邮箱时直接返回
func (s *EmailService) NotifyBudgetExhausted(_ context.Context, owner *models.User, budget *models.Budget) error {
	if !s.cfg.Enabled || owner == nil || owner.Email == "" {
		return nil
	}

	subject := fmt.Sprintf("【预算助手】预算「%s」已用完", budget.Name)
	body := s.generateExhaustedEmailBody(owner.Username, budget)

	return s.sendEmail(owner.Email, subject, body)
}

// generateExhaustedEmailBody 生成预算用尽邮件内容
func (s *EmailService) generateExhaustedEmailBody(username string, budget *models.Budget) string {
	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: 'Microsoft YaHei', Arial, sans-serif; background: #f5f5f5; margin: 0; padding: 20px; }
        .container { max-width: 600px; margin: 0 auto; background: #fff; border-radius: 12px; overflow: hidden; box-shadow: 0 4px 20px rgba(0,0,0,0.1); }
        .header { background: linear-gradient(135deg, #ef4444, #b91c1c); color: white; padding: 30px; text-align: center; }
        .header h1 { margin: 0; font-size: 24px; }
        .content { padding: 40px 30px; }
        .content p { color: #333; line-height: 1.8; margin: 0 0 20px; }
        .summary { background: #fef2f2; border-left: 4px solid #ef4444; padding: 15px; margin: 20px 0; border-radius: 4px; }
        .summary p { margin: 0; color: #7f1d1d; font-size: 14px; }
        .footer { background: #f8f9fa; padding: 20px 30px; text-align: center; color: #6c757d; font-size: 12px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>💰 预算助手</h1>
        </div>
        <div class="content">
            <p>尊敬的 <strong>%s</strong>，您好！</p>
            <p>您的预算 <strong>%s</strong> 已全部用完，剩余金额为 0。</p>
            <div class="summary">
                <p>预算周期：%s</p>
                <p>预算总额：%s</p>
            </div>
            <p>如需继续记账，请调整预算总额或新建预算。</p>
        </div>
        <div class="footer">
            <p>此邮件由系统自动发送，请勿回复</p>
            <p>© 预算助手 - 您的个人预算管理工具</p>
        </div>
    </div>
</body>
</html>
`, html.EscapeString(username), html.EscapeString(budget.Name), budget.DateRange(), budget.Total.StringFixed(2))
}

// sendEmail 发送邮件
func (s *EmailService) sendEmail(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(s.cfg.Username, s.cfg.From))
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	d := gomail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("发送邮件失败: %w", err)
	}

	return nil
}
