package vault

import (
	"context"
	"strings"
	"testing"

	"github.com/datavault/datavault/internal/fieldcipher"
	"github.com/datavault/datavault/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeCardRepo struct {
	cards  map[uint]*model.CreditCard
	nextID uint
}

func newFakeCardRepo() *fakeCardRepo {
	return &fakeCardRepo{cards: make(map[uint]*model.CreditCard)}
}

func (r *fakeCardRepo) Create(ctx context.Context, card *model.CreditCard) error {
	r.nextID++
	card.ID = r.nextID
	clone := *card
	r.cards[card.ID] = &clone
	return nil
}

func (r *fakeCardRepo) First(ctx context.Context, userID uint, id uint) (*model.CreditCard, error) {
	card, ok := r.cards[id]
	if !ok || card.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *card
	return &clone, nil
}

func (r *fakeCardRepo) Find(ctx context.Context, userID uint) ([]*model.CreditCard, error) {
	var out []*model.CreditCard
	for _, card := range r.cards {
		if card.UserID == userID {
			clone := *card
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeCardRepo) Updates(ctx context.Context, userID uint, id uint, columns map[string]interface{}) (int64, error) {
	card, ok := r.cards[id]
	if !ok || card.UserID != userID {
		return 0, nil
	}
	if number, ok := columns["number"].(string); ok {
		card.Number = number
	}
	if label, ok := columns["label"].(string); ok {
		card.Label = label
	}
	return 1, nil
}

func (r *fakeCardRepo) Delete(ctx context.Context, userID uint, id uint) (int64, error) {
	card, ok := r.cards[id]
	if !ok || card.UserID != userID {
		return 0, nil
	}
	delete(r.cards, id)
	return 1, nil
}

type fakeContactRepo struct {
	contacts map[uint]*model.Contact
	nextID   uint
}

func newFakeContactRepo() *fakeContactRepo {
	return &fakeContactRepo{contacts: make(map[uint]*model.Contact)}
}

func (r *fakeContactRepo) Create(ctx context.Context, contact *model.Contact) error {
	r.nextID++
	contact.ID = r.nextID
	clone := *contact
	r.contacts[contact.ID] = &clone
	return nil
}

func (r *fakeContactRepo) First(ctx context.Context, userID uint, id uint) (*model.Contact, error) {
	contact, ok := r.contacts[id]
	if !ok || contact.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *contact
	return &clone, nil
}

func (r *fakeContactRepo) Find(ctx context.Context, userID uint) ([]*model.Contact, error) {
	var out []*model.Contact
	for _, contact := range r.contacts {
		if contact.UserID == userID {
			clone := *contact
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeContactRepo) Updates(ctx context.Context, userID uint, id uint, columns map[string]interface{}) (int64, error) {
	contact, ok := r.contacts[id]
	if !ok || contact.UserID != userID {
		return 0, nil
	}
	if email, ok := columns["email"].(string); ok {
		contact.Email = email
	}
	return 1, nil
}

func (r *fakeContactRepo) Delete(ctx context.Context, userID uint, id uint) (int64, error) {
	contact, ok := r.contacts[id]
	if !ok || contact.UserID != userID {
		return 0, nil
	}
	delete(r.contacts, id)
	return 1, nil
}

func newTestService(t *testing.T) (*Service, *fakeCardRepo, *fakeContactRepo) {
	t.Helper()
	cipher, err := fieldcipher.New("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	cardRepo := newFakeCardRepo()
	contactRepo := newFakeContactRepo()
	return NewService(cipher, cardRepo, contactRepo), cardRepo, contactRepo
}

func testActor(userID uint) Actor {
	return Actor{UserID: userID, Email: "alice@example.com", IP: "203.0.113.7", UserAgent: "test"}
}

func TestCardStoredEncryptedAndReadBack(t *testing.T) {
	svc, cardRepo, _ := newTestService(t)
	ctx := context.Background()
	actor := testActor(1)

	created, err := svc.CreateCard(ctx, actor, CardInput{
		Label:       "Personal Visa",
		CardHolder:  "Alice Example",
		Brand:       "visa",
		Number:      "4111111111111111",
		ExpiryMonth: 12,
		ExpiryYear:  2030,
		CVV:         "123",
	})
	require.NoError(t, err)
	assert.Equal(t, "**** **** **** 1111", created.MaskedNumber)
	assert.Empty(t, created.Number, "create response must not echo the plaintext number")

	stored := cardRepo.cards[created.ID]
	require.NotNil(t, stored)
	assert.True(t, strings.HasPrefix(stored.Number, "dv1:"), "number must be stored encrypted")
	assert.NotContains(t, stored.Number, "4111111111111111")
	assert.True(t, strings.HasPrefix(stored.CVV, "dv1:"), "cvv must be stored encrypted")

	view, err := svc.GetCard(ctx, actor, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "4111111111111111", view.Number)
	assert.Equal(t, "123", view.CVV)
	assert.Equal(t, "**** **** **** 1111", view.MaskedNumber)
}

func TestListCardsMasksNumbers(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	actor := testActor(1)

	_, err := svc.CreateCard(ctx, actor, CardInput{Label: "Visa", Number: "4111111111111111"})
	require.NoError(t, err)
	_, err = svc.CreateCard(ctx, actor, CardInput{Label: "Amex", Number: "378282246310005"})
	require.NoError(t, err)

	views, err := svc.ListCards(ctx, actor)
	require.NoError(t, err)
	require.Len(t, views, 2)
	for _, view := range views {
		assert.Empty(t, view.Number, "list view must not carry plaintext numbers")
		assert.Empty(t, view.CVV)
		assert.Contains(t, view.MaskedNumber, "**** **** **** ")
	}
}

func TestGetCardCrossUserHidden(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateCard(ctx, testActor(1), CardInput{Label: "Visa", Number: "4111111111111111"})
	require.NoError(t, err)

	_, err = svc.GetCard(ctx, testActor(2), created.ID)
	assert.ErrorIs(t, err, ErrRecordNotFound, "another user's id must look like a missing record")
}

func TestGetCardSurfacesDecryptionError(t *testing.T) {
	svc, cardRepo, _ := newTestService(t)
	ctx := context.Background()
	actor := testActor(1)

	created, err := svc.CreateCard(ctx, actor, CardInput{Label: "Visa", Number: "4111111111111111"})
	require.NoError(t, err)

	cardRepo.cards[created.ID].Number = "dv1:corrupted-payload"
	_, err = svc.GetCard(ctx, actor, created.ID)
	var decryptErr *fieldcipher.DecryptionError
	require.ErrorAs(t, err, &decryptErr, "corrupt ciphertext must surface a DecryptionError")
}

func TestUpdateCardReencrypts(t *testing.T) {
	svc, cardRepo, _ := newTestService(t)
	ctx := context.Background()
	actor := testActor(1)

	created, err := svc.CreateCard(ctx, actor, CardInput{Label: "Visa", Number: "4111111111111111"})
	require.NoError(t, err)

	err = svc.UpdateCard(ctx, actor, created.ID, CardInput{Label: "Visa Gold", Number: "4222222222222"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(cardRepo.cards[created.ID].Number, "dv1:"))

	view, err := svc.GetCard(ctx, actor, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "4222222222222", view.Number)
	assert.Equal(t, "Visa Gold", view.Label)
}

func TestCardInputValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateCard(ctx, testActor(1), CardInput{Number: "4111111111111111"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.CreateCard(ctx, testActor(1), CardInput{Label: "Visa"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDeleteCardNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)
	err := svc.DeleteCard(context.Background(), testActor(1), 99)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestContactOptionalFieldsEncrypted(t *testing.T) {
	svc, _, contactRepo := newTestService(t)
	ctx := context.Background()
	actor := testActor(1)

	created, err := svc.CreateContact(ctx, actor, ContactInput{
		FullName: "Bob Partner",
		Company:  "Acme",
		Email:    "bob@acme.example",
		Phone:    "+1 555 0100",
	})
	require.NoError(t, err)
	assert.Equal(t, "bob@acme.example", created.Email)

	stored := contactRepo.contacts[created.ID]
	require.NotNil(t, stored)
	assert.Equal(t, "Bob Partner", stored.FullName, "name is not sensitive, stays plaintext")
	assert.True(t, strings.HasPrefix(stored.Email, "dv1:"))
	assert.True(t, strings.HasPrefix(stored.Phone, "dv1:"))
	assert.Empty(t, stored.Notes, "empty optional field stays empty, not encrypted")

	view, err := svc.GetContact(ctx, actor, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob@acme.example", view.Email)
	assert.Equal(t, "+1 555 0100", view.Phone)
	assert.Empty(t, view.Notes)
}

func TestListContactsOmitsSensitiveFields(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	actor := testActor(1)

	_, err := svc.CreateContact(ctx, actor, ContactInput{FullName: "Bob", Email: "bob@acme.example"})
	require.NoError(t, err)

	views, err := svc.ListContacts(ctx, actor)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Empty(t, views[0].Email)
	assert.Equal(t, "Bob", views[0].FullName)
}

func TestContactValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.CreateContact(context.Background(), testActor(1), ContactInput{Company: "Acme"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
