package services

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/coaching-onboarding/internal/lib/sl"
	"github.com/magabrotheeeer/coaching-onboarding/internal/lib/smtp"
	"github.com/magabrotheeeer/coaching-onboarding/internal/models"
)

// SenderService отправляет письма по событиям из очередей coaching.
type SenderService struct {
	transport smtp.TransportInterface
	log       *slog.Logger
}

// NewSenderService создает новый экземпляр SenderService.
func NewSenderService(log *slog.Logger, transport smtp.TransportInterface) *SenderService {
	return &SenderService{
		transport: transport,
		log:       log,
	}
}

// SendInvite отправляет приглашение со ссылкой активации учётной записи.
func (s *SenderService) SendInvite(body []byte) error {
	var message models.InviteEvent
	if !s.decode(body, &message) {
		return nil
	}

	subject := "Вас зачислили в программу коучинга"
	bodyText := fmt.Sprintf("Здравствуйте, %s!\n\nДля вас создана учётная запись в программе коучинга.\n"+
		"Чтобы задать пароль и войти, перейдите по ссылке: %s\n\nСсылка одноразовая и действует ограниченное время.",
		greetingName(message.FirstName), message.ClaimURL)

	return s.sendEmail([]string{message.Email}, subject, bodyText)
}

// SendStatusChanged сообщает клиенту о смене статуса программы.
// Промежуточные статусы без письма подтверждаются молча.
func (s *SenderService) SendStatusChanged(body []byte) error {
	var message models.StatusChangedEvent
	if !s.decode(body, &message) {
		return nil
	}
	if message.Email == "" {
		s.log.Warn("status event without recipient", slog.String("client_id", message.ClientID))
		return nil
	}

	text, ok := statusMessages[message.To]
	if !ok {
		return nil
	}
	subject := "Статус вашей программы коучинга"
	bodyText := fmt.Sprintf("Здравствуйте, %s!\n\n%s", greetingName(message.FirstName), text)
	return s.sendEmail([]string{message.Email}, subject, bodyText)
}

var statusMessages = map[models.Status]string{
	models.StatusPlanReady: "Ваш персональный план готов. Он станет доступен в день начала программы.",
	models.StatusActive:    "Ваша программа началась. Откройте приложение, чтобы увидеть план на неделю.",
	models.StatusPaused:    "Ваша программа поставлена на паузу.",
	models.StatusCompleted: "Поздравляем с завершением программы!",
	models.StatusCancelled: "Ваше участие в программе отменено.",
}

func greetingName(firstName string) string {
	if firstName == "" {
		return "клиент"
	}
	return firstName
}

// decode разбирает тело сообщения. Битое сообщение не возвращается в очередь:
// повторная доставка его не исправит.
func (s *SenderService) decode(body []byte, v any) bool {
	if err := json.Unmarshal(body, v); err != nil {
		s.log.Error("failed to unmarshal message body, dropping", sl.Err(err))
		return false
	}
	return true
}

func (s *SenderService) sendEmail(to []string, subject, bodyText string) error {
	msg := strings.Join([]string{
		"From: " + s.transport.GetSMTPUser(),
		"To: " + strings.Join(to, ";"),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		bodyText,
	}, "\r\n")

	client, err := s.transport.Connect()
	if err != nil {
		s.log.Error("failed to connect to SMTP server", sl.Err(err))
		return err
	}
	defer client.Close()

	if err := client.Mail(s.transport.GetSMTPUser()); err != nil {
		s.log.Error("failed to set MAIL FROM", slog.String("from", s.transport.GetSMTPUser()), sl.Err(err))
		return err
	}

	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			s.log.Error("failed to set RCPT TO", slog.String("recipient", addr), sl.Err(err))
			return err
		}
	}

	wc, err := client.Data()
	if err != nil {
		s.log.Error("failed to get Data writer", sl.Err(err))
		return err
	}

	if _, err = wc.Write([]byte(msg)); err != nil {
		s.log.Error("failed to write email body", sl.Err(err))
		return err
	}

	if err = wc.Close(); err != nil {
		s.log.Error("failed to close Data writer", sl.Err(err))
		return err
	}

	if err = client.Quit(); err != nil {
		s.log.Error("failed to quit SMTP client", sl.Err(err))
		return err
	}

	s.log.Info("email sent successfully", slog.Any("to", to))
	return nil
}
