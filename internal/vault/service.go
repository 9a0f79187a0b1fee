// Package vault manages the user's sensitive records. Sensitive fields are
// run through the field cipher before they reach the database and decrypted
// on the way out; a field that fails to decrypt surfaces as a typed error,
// it is never silently replaced with placeholder output.
package vault

import (
	"context"
	"errors"
	"fmt"

	"github.com/datavault/datavault/internal/audit"
	"github.com/datavault/datavault/internal/fieldcipher"
	"github.com/datavault/datavault/model"
	"gorm.io/gorm"
)

type CardInput struct {
	Label       string
	CardHolder  string
	Brand       string
	Number      string
	ExpiryMonth int
	ExpiryYear  int
	CVV         string
}

type CardView struct {
	ID           uint   `json:"id"`
	Label        string `json:"label"`
	CardHolder   string `json:"cardHolder"`
	Brand        string `json:"brand"`
	Number       string `json:"number,omitempty"`
	MaskedNumber string `json:"maskedNumber"`
	ExpiryMonth  int    `json:"expiryMonth"`
	ExpiryYear   int    `json:"expiryYear"`
	CVV          string `json:"cvv,omitempty"`
}

type ContactInput struct {
	FullName string
	Company  string
	Title    string
	Email    string
	Phone    string
	Notes    string
}

type ContactView struct {
	ID       uint   `json:"id"`
	FullName string `json:"fullName"`
	Company  string `json:"company"`
	Title    string `json:"title"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

// Actor carries the request attribution for audit events.
type Actor struct {
	UserID    uint
	Email     string
	IP        string
	UserAgent string
}

type Service struct {
	cipher      *fieldcipher.Cipher
	cardRepo    CardRepository
	contactRepo ContactRepository
}

func NewService(cipher *fieldcipher.Cipher, cardRepo CardRepository, contactRepo ContactRepository) *Service {
	return &Service{
		cipher:      cipher,
		cardRepo:    cardRepo,
		contactRepo: contactRepo,
	}
}

func (s *Service) auditData(ctx context.Context, actor Actor, action string, success bool, details string) {
	audit.Log(ctx, audit.Record{
		UserID:    actor.UserID,
		Email:     actor.Email,
		Action:    action,
		Method:    model.AuditMethodManual,
		Success:   success,
		IP:        actor.IP,
		UserAgent: actor.UserAgent,
		Details:   details,
	})
}

func (s *Service) CreateCard(ctx context.Context, actor Actor, input CardInput) (*CardView, error) {
	if input.Label == "" || input.Number == "" {
		return nil, ErrInvalidInput
	}
	number, err := s.cipher.Encrypt(actor.UserID, input.Number)
	if err != nil {
		return nil, err
	}
	cvv := ""
	if input.CVV != "" {
		if cvv, err = s.cipher.Encrypt(actor.UserID, input.CVV); err != nil {
			return nil, err
		}
	}
	card := &model.CreditCard{
		UserID:      actor.UserID,
		Label:       input.Label,
		CardHolder:  input.CardHolder,
		Brand:       input.Brand,
		Number:      number,
		ExpiryMonth: input.ExpiryMonth,
		ExpiryYear:  input.ExpiryYear,
		CVV:         cvv,
	}
	if err := s.cardRepo.Create(ctx, card); err != nil {
		s.auditData(ctx, actor, model.AuditActionDataCreate, false, "card create failed")
		return nil, err
	}
	s.auditData(ctx, actor, model.AuditActionDataCreate, true, fmt.Sprintf("card %d created", card.ID))
	return &CardView{
		ID:           card.ID,
		Label:        card.Label,
		CardHolder:   card.CardHolder,
		Brand:        card.Brand,
		MaskedNumber: fieldcipher.MaskCardNumber(input.Number),
		ExpiryMonth:  card.ExpiryMonth,
		ExpiryYear:   card.ExpiryYear,
	}, nil
}

// GetCard returns the decrypted record for its owner. A cross-user id is
// indistinguishable from a missing one.
func (s *Service) GetCard(ctx context.Context, actor Actor, id uint) (*CardView, error) {
	card, err := s.cardRepo.First(ctx, actor.UserID, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}

	number, err := s.cipher.Decrypt(actor.UserID, card.Number)
	if err != nil {
		return nil, err
	}
	cvv := ""
	if card.CVV != "" {
		if cvv, err = s.cipher.Decrypt(actor.UserID, card.CVV); err != nil {
			return nil, err
		}
	}
	s.auditData(ctx, actor, model.AuditActionDataAccess, true, fmt.Sprintf("card %d accessed", card.ID))
	return &CardView{
		ID:           card.ID,
		Label:        card.Label,
		CardHolder:   card.CardHolder,
		Brand:        card.Brand,
		Number:       number,
		MaskedNumber: fieldcipher.MaskCardNumber(number),
		ExpiryMonth:  card.ExpiryMonth,
		ExpiryYear:   card.ExpiryYear,
		CVV:          cvv,
	}, nil
}

// ListCards never returns plaintext numbers, only masked display values.
func (s *Service) ListCards(ctx context.Context, actor Actor) ([]*CardView, error) {
	cards, err := s.cardRepo.Find(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	views := make([]*CardView, 0, len(cards))
	for _, card := range cards {
		number, err := s.cipher.Decrypt(actor.UserID, card.Number)
		if err != nil {
			return nil, fmt.Errorf("card %d: %w", card.ID, err)
		}
		views = append(views, &CardView{
			ID:           card.ID,
			Label:        card.Label,
			CardHolder:   card.CardHolder,
			Brand:        card.Brand,
			MaskedNumber: fieldcipher.MaskCardNumber(number),
			ExpiryMonth:  card.ExpiryMonth,
			ExpiryYear:   card.ExpiryYear,
		})
	}
	return views, nil
}

func (s *Service) UpdateCard(ctx context.Context, actor Actor, id uint, input CardInput) error {
	if input.Label == "" || input.Number == "" {
		return ErrInvalidInput
	}
	number, err := s.cipher.Encrypt(actor.UserID, input.Number)
	if err != nil {
		return err
	}
	columns := map[string]interface{}{
		"label":        input.Label,
		"card_holder":  input.CardHolder,
		"brand":        input.Brand,
		"number":       number,
		"expiry_month": input.ExpiryMonth,
		"expiry_year":  input.ExpiryYear,
	}
	if input.CVV != "" {
		cvv, err := s.cipher.Encrypt(actor.UserID, input.CVV)
		if err != nil {
			return err
		}
		columns["cvv"] = cvv
	}
	affected, err := s.cardRepo.Updates(ctx, actor.UserID, id, columns)
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrRecordNotFound
	}
	s.auditData(ctx, actor, model.AuditActionDataUpdate, true, fmt.Sprintf("card %d updated", id))
	return nil
}

func (s *Service) DeleteCard(ctx context.Context, actor Actor, id uint) error {
	deleted, err := s.cardRepo.Delete(ctx, actor.UserID, id)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrRecordNotFound
	}
	s.auditData(ctx, actor, model.AuditActionDataDelete, true, fmt.Sprintf("card %d deleted", id))
	return nil
}

func (s *Service) CreateContact(ctx context.Context, actor Actor, input ContactInput) (*ContactView, error) {
	if input.FullName == "" {
		return nil, ErrInvalidInput
	}
	contact := &model.Contact{
		UserID:   actor.UserID,
		FullName: input.FullName,
		Company:  input.Company,
		Title:    input.Title,
	}
	var err error
	if contact.Email, err = s.encryptOptional(actor.UserID, input.Email); err != nil {
		return nil, err
	}
	if contact.Phone, err = s.encryptOptional(actor.UserID, input.Phone); err != nil {
		return nil, err
	}
	if contact.Notes, err = s.encryptOptional(actor.UserID, input.Notes); err != nil {
		return nil, err
	}
	if err := s.contactRepo.Create(ctx, contact); err != nil {
		s.auditData(ctx, actor, model.AuditActionDataCreate, false, "contact create failed")
		return nil, err
	}
	s.auditData(ctx, actor, model.AuditActionDataCreate, true, fmt.Sprintf("contact %d created", contact.ID))
	return &ContactView{
		ID:       contact.ID,
		FullName: contact.FullName,
		Company:  contact.Company,
		Title:    contact.Title,
		Email:    input.Email,
		Phone:    input.Phone,
		Notes:    input.Notes,
	}, nil
}

func (s *Service) GetContact(ctx context.Context, actor Actor, id uint) (*ContactView, error) {
	contact, err := s.contactRepo.First(ctx, actor.UserID, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	view := &ContactView{
		ID:       contact.ID,
		FullName: contact.FullName,
		Company:  contact.Company,
		Title:    contact.Title,
	}
	if view.Email, err = s.decryptOptional(actor.UserID, contact.Email); err != nil {
		return nil, err
	}
	if view.Phone, err = s.decryptOptional(actor.UserID, contact.Phone); err != nil {
		return nil, err
	}
	if view.Notes, err = s.decryptOptional(actor.UserID, contact.Notes); err != nil {
		return nil, err
	}
	s.auditData(ctx, actor, model.AuditActionDataAccess, true, fmt.Sprintf("contact %d accessed", contact.ID))
	return view, nil
}

// ListContacts returns only non-sensitive columns; encrypted fields require
// a per-record Get.
func (s *Service) ListContacts(ctx context.Context, actor Actor) ([]*ContactView, error) {
	contacts, err := s.contactRepo.Find(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	views := make([]*ContactView, 0, len(contacts))
	for _, contact := range contacts {
		views = append(views, &ContactView{
			ID:       contact.ID,
			FullName: contact.FullName,
			Company:  contact.Company,
			Title:    contact.Title,
		})
	}
	return views, nil
}

func (s *Service) UpdateContact(ctx context.Context, actor Actor, id uint, input ContactInput) error {
	if input.FullName == "" {
		return ErrInvalidInput
	}
	columns := map[string]interface{}{
		"full_name": input.FullName,
		"company":   input.Company,
		"title":     input.Title,
	}
	for column, plaintext := range map[string]string{
		"email": input.Email,
		"phone": input.Phone,
		"notes": input.Notes,
	} {
		encrypted, err := s.encryptOptional(actor.UserID, plaintext)
		if err != nil {
			return err
		}
		columns[column] = encrypted
	}
	affected, err := s.contactRepo.Updates(ctx, actor.UserID, id, columns)
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrRecordNotFound
	}
	s.auditData(ctx, actor, model.AuditActionDataUpdate, true, fmt.Sprintf("contact %d updated", id))
	return nil
}

func (s *Service) DeleteContact(ctx context.Context, actor Actor, id uint) error {
	deleted, err := s.contactRepo.Delete(ctx, actor.UserID, id)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrRecordNotFound
	}
	s.auditData(ctx, actor, model.AuditActionDataDelete, true, fmt.Sprintf("contact %d deleted", id))
	return nil
}

func (s *Service) encryptOptional(userID uint, plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	return s.cipher.Encrypt(userID, plaintext)
}

func (s *Service) decryptOptional(userID uint, ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}
	return s.cipher.Decrypt(userID, ciphertext)
}
