package mail

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"gopkg.in/gomail.v2"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	TLS      bool
	CertFile string
	KeyFile  string
	CAFile   string
}

// SMTPMailSender delivers security alert mail through a single SMTP endpoint.
type SMTPMailSender struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailSender(smtpCfg SMTPConfig, from string) (*SMTPMailSender, error) {
	dialer, err := dialSMTP(smtpCfg)
	if err != nil {
		return nil, err
	}
	return &SMTPMailSender{dialer: dialer, from: from}, nil
}

func (s *SMTPMailSender) Send(message *Message) error {
	from := message.From
	if from == "" {
		from = s.from
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("To", message.To...)
	if len(message.Cc) > 0 {
		msg.SetHeader("Cc", message.Cc...)
	}
	if len(message.Bcc) > 0 {
		msg.SetHeader("Bcc", message.Bcc...)
	}
	msg.SetHeader("Subject", message.Subject)
	contentType := "text/plain"
	if message.IsHTML {
		contentType = "text/html"
	}
	msg.SetBody(contentType, message.Body)
	return s.dialer.DialAndSend(msg)
}

func dialSMTP(smtpCfg SMTPConfig) (*gomail.Dialer, error) {
	dialer := gomail.NewDialer(smtpCfg.Host, smtpCfg.Port, smtpCfg.Username, smtpCfg.Password)
	if !smtpCfg.TLS {
		return dialer, nil
	}
	tlsCfg := &tls.Config{ServerName: smtpCfg.Host}
	if smtpCfg.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(smtpCfg.CertFile, smtpCfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load smtp client certificate: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}
	if smtpCfg.CAFile != "" {
		caCert, err := os.ReadFile(smtpCfg.CAFile)
		if err != nil {
			return nil, err
		}
		caPool := x509.NewCertPool()
		caPool.AppendCertsFromPEM(caCert)
		tlsCfg.RootCAs = caPool
	}
	dialer.TLSConfig = tlsCfg
	return dialer, nil
}
