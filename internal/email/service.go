package email

import (
	"fmt"
	"net/smtp"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Service handles email sending via SMTP
type Service struct {
	host     string
	port     string
	from     string
	sendMail SendFunc
}

// NewService creates a new email service
func NewService(host, port, from string) *Service {
	return &Service{
		host:     host,
		port:     port,
		from:     from,
		sendMail: smtp.SendMail,
	}
}

// WithSender replaces the SMTP transport.
func (s *Service) WithSender(fn SendFunc) *Service {
	s.sendMail = fn
	return s
}

// SendPaymentConfirmation tells the buyer their payment was approved.
func (s *Service) SendPaymentConfirmation(to string, receipt Receipt) error {
	body, err := BuildPaymentConfirmationBody(receipt)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("Recibimos tu pago (pedido #%d)", receipt.OrderID)
	return s.send(to, subject, body)
}

// SendAdminPaymentAlert tells the shop owner a payment settled an order.
func (s *Service) SendAdminPaymentAlert(to string, receipt Receipt) error {
	body, err := BuildAdminPaymentAlertBody(receipt)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("Nuevo pago aprobado: $%s", formatAmount(receipt.Amount))
	return s.send(to, subject, body)
}

func (s *Service) send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.from, to, subject, body)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	return errors.Wrapf(s.sendMail(addr, nil, s.from, []string{to}, []byte(msg)), "send mail to %s", to)
}

// Receipt is the order summary rendered into payment emails.
type Receipt struct {
	OrderID    int64
	Reference  string
	PaymentID  string
	Amount     decimal.Decimal
	PayerEmail string
	Items      []OrderItem
}
