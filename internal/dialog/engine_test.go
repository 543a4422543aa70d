package dialog

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/soporte-digital/whatsapp-bot/internal/errs"
	"github.com/soporte-digital/whatsapp-bot/internal/model"
	"github.com/soporte-digital/whatsapp-bot/internal/osticket"
	"github.com/soporte-digital/whatsapp-bot/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChat struct {
	mu          sync.Mutex
	replies     []string
	media       transport.Media
	downloadErr error
}

func (f *fakeChat) ResolveIdentity(ctx context.Context, e164 string) (string, error) {
	return e164 + "@c.us", nil
}

func (f *fakeChat) SendText(ctx context.Context, to, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, text)
	return nil
}

func (f *fakeChat) SendMedia(ctx context.Context, to string, media transport.Media, caption string) error {
	return nil
}

func (f *fakeChat) DownloadMedia(ctx context.Context, mediaID string) (transport.Media, error) {
	if f.downloadErr != nil {
		return transport.Media{}, f.downloadErr
	}
	return f.media, nil
}

func (f *fakeChat) Ready() bool { return true }

func (f *fakeChat) lastReply() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.replies) == 0 {
		return ""
	}
	return f.replies[len(f.replies)-1]
}

func (f *fakeChat) replyCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.replies)
}

type fakeDirectory struct {
	mu       sync.Mutex
	contacts map[string]*model.Contact
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{contacts: make(map[string]*model.Contact)}
}

func (f *fakeDirectory) GetByPhone(ctx context.Context, phone string) (*model.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.contacts[phone]
	if !ok {
		return nil, errs.ErrContactNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeDirectory) Upsert(ctx context.Context, c *model.Contact) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.contacts[c.Phone]; ok {
		existing.Name = c.Name
		existing.Classification = c.Classification
		return nil
	}
	cp := *c
	f.contacts[c.Phone] = &cp
	return nil
}

func (f *fakeDirectory) SetEmail(ctx context.Context, phone, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.contacts[phone]
	if !ok {
		return errs.ErrContactNotFound
	}
	c.Email = &email
	return nil
}

func (f *fakeDirectory) Touch(ctx context.Context, phone string) error { return nil }

type fakeTickets struct {
	mu        sync.Mutex
	createErr error
	records   []model.Ticket
}

func (f *fakeTickets) Create(ctx context.Context, t *model.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	t.ID = uint64(len(f.records) + 1)
	f.records = append(f.records, *t)
	return nil
}

func (f *fakeTickets) GetByID(ctx context.Context, id uint64) (*model.Ticket, error) {
	return nil, errs.ErrTicketNotFound
}

func (f *fakeTickets) ListByPhone(ctx context.Context, phone string, limit int) ([]model.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Ticket(nil), f.records...), nil
}

type fakeCreator struct {
	mu       sync.Mutex
	err      error
	ticketID string
	requests []osticket.CreateRequest
}

func (f *fakeCreator) Create(ctx context.Context, req osticket.CreateRequest) (*osticket.CreateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &osticket.CreateResult{HTTPStatus: 201, TicketID: f.ticketID}, nil
}

type fakeSink struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeSink) NotifyAsync(origin, dest, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, message)
}

type fakeProducer struct {
	mu       sync.Mutex
	events   []string
	payloads []map[string]interface{}
}

func (f *fakeProducer) ProduceTicketEvent(ctx context.Context, event string, payload map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	f.payloads = append(f.payloads, payload)
}

func (f *fakeProducer) eventCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

type fixture struct {
	engine   *Engine
	chat     *fakeChat
	dir      *fakeDirectory
	tickets  *fakeTickets
	creator  *fakeCreator
	notifier *fakeSink
	events   *fakeProducer
}

func newFixture() *fixture {
	chat := &fakeChat{}
	dir := newFakeDirectory()
	tk := &fakeTickets{}
	cr := &fakeCreator{ticketID: "123456"}
	sink := &fakeSink{}
	prod := &fakeProducer{}
	engine := NewEngine(Deps{
		Contacts: dir,
		Tickets:  tk,
		Creator:  cr,
		Notifier: sink,
		Events:   prod,
		Chat:     chat,
	})
	engine.SetSelfPhone("5215599887766")
	return &fixture{engine: engine, chat: chat, dir: dir, tickets: tk, creator: cr, notifier: sink, events: prod}
}

func (fx *fixture) send(phone, body string) {
	fx.engine.HandleMessage(context.Background(), transport.InboundMessage{Phone: phone, Body: body})
}

func (fx *fixture) sendMedia(phone, mediaID string) {
	fx.engine.HandleMessage(context.Background(), transport.InboundMessage{Phone: phone, HasMedia: true, MediaID: mediaID})
}

func (fx *fixture) state(phone string) State {
	sess := fx.engine.Store().Get(phone)
	if sess == nil {
		return StateNone
	}
	return sess.State
}

func (fx *fixture) registered(phone, name, email string) {
	c := &model.Contact{Phone: phone, Name: name, Classification: model.ClassificationRegistered}
	if email != "" {
		c.Email = &email
	}
	fx.dir.contacts[phone] = c
}

const testPhone = "5218111223344"

func TestMenuUnknownPhoneStartsRegistration(t *testing.T) {
	fx := newFixture()

	fx.send(testPhone, "menu")
	assert.Equal(t, StateSeleccionIngreso, fx.state(testPhone))
	assert.Contains(t, fx.chat.lastReply(), "No te encuentras registrado")

	fx.send(testPhone, "2")
	assert.Equal(t, StateAwaitingName, fx.state(testPhone))

	fx.send(testPhone, "Ana")
	assert.Equal(t, StateMenuPrincipal, fx.state(testPhone))

	c, err := fx.dir.GetByPhone(context.Background(), testPhone)
	require.NoError(t, err)
	assert.Equal(t, "Ana", c.Name)
	assert.Equal(t, model.ClassificationRegistered, c.Classification)
}

func TestMenuCommandIsDiacriticAndCaseInsensitive(t *testing.T) {
	fx := newFixture()
	fx.send(testPhone, "  MENÚ ")
	assert.Equal(t, StateSeleccionIngreso, fx.state(testPhone))
}

func TestGuestEntry(t *testing.T) {
	fx := newFixture()
	fx.send(testPhone, "menu")
	fx.send(testPhone, "1")

	assert.Equal(t, StateMenuPrincipal, fx.state(testPhone))
	c, err := fx.dir.GetByPhone(context.Background(), testPhone)
	require.NoError(t, err)
	assert.Equal(t, model.ClassificationGuest, c.Classification)
	assert.Contains(t, fx.chat.lastReply(), "Invitado")
}

func TestGuestContactGetsRegistrationPromptOnMenu(t *testing.T) {
	fx := newFixture()
	fx.dir.contacts[testPhone] = &model.Contact{
		Phone: testPhone, Name: "Invitado", Classification: model.ClassificationGuest,
	}
	fx.send(testPhone, "menu")
	assert.Equal(t, StateSeleccionIngreso, fx.state(testPhone))
}

func TestRegisteredContactGetsPersonalizedGreeting(t *testing.T) {
	fx := newFixture()
	fx.registered(testPhone, "Ana", "ana@example.com")

	fx.send(testPhone, "menu")
	assert.Equal(t, StateMenuPrincipal, fx.state(testPhone))
	assert.Contains(t, fx.chat.lastReply(), "Ana")
	assert.Contains(t, fx.chat.lastReply(), testPhone)
}

func TestUnrecognizedInputRedisplaysMenu(t *testing.T) {
	fx := newFixture()
	fx.registered(testPhone, "Ana", "ana@example.com")
	fx.send(testPhone, "menu")

	fx.send(testPhone, "9")
	assert.Equal(t, StateMenuPrincipal, fx.state(testPhone))
	assert.Contains(t, fx.chat.lastReply(), "Opción inválida")
	assert.Contains(t, fx.chat.lastReply(), "MENÚ PRINCIPAL")
}

func TestNoStateNoCommandStaysSilent(t *testing.T) {
	fx := newFixture()
	fx.send(testPhone, "hola")

	assert.Equal(t, StateNone, fx.state(testPhone))
	assert.Equal(t, 0, fx.chat.replyCount())
	// The notification still fires for every inbound event.
	assert.Equal(t, []string{"hola"}, fx.notifier.calls)
}

func TestSelfAndGroupMessagesIgnored(t *testing.T) {
	fx := newFixture()
	fx.engine.HandleMessage(context.Background(), transport.InboundMessage{Phone: testPhone, Body: "menu", FromSelf: true})
	fx.engine.HandleMessage(context.Background(), transport.InboundMessage{Phone: testPhone, Body: "menu", IsGroup: true})

	assert.Equal(t, 0, fx.chat.replyCount())
	assert.Empty(t, fx.notifier.calls)
}

func TestMainMenuExitClearsState(t *testing.T) {
	fx := newFixture()
	fx.registered(testPhone, "Ana", "ana@example.com")
	fx.send(testPhone, "menu")
	fx.send(testPhone, "4")

	assert.Nil(t, fx.engine.Store().Get(testPhone))
	assert.Contains(t, fx.chat.lastReply(), "Hasta pronto")
}

func TestSupportMenuBackAndForth(t *testing.T) {
	fx := newFixture()
	fx.registered(testPhone, "Ana", "ana@example.com")
	fx.send(testPhone, "menu")
	fx.send(testPhone, "2")
	assert.Equal(t, StateMenuSoporte, fx.state(testPhone))

	fx.send(testPhone, "0")
	assert.Equal(t, StateMenuPrincipal, fx.state(testPhone))
}

func TestEmailGateRejectsInvalidAndResumes(t *testing.T) {
	fx := newFixture()
	fx.registered(testPhone, "Ana", "") // no email on file
	fx.send(testPhone, "menu")
	fx.send(testPhone, "2")
	fx.send(testPhone, "1")
	fx.send(testPhone, "1") // topic -> email gate
	assert.Equal(t, StateAwaitingEmail, fx.state(testPhone))
	require.True(t, fx.engine.Store().Get(testPhone).PendingEmail)

	fx.send(testPhone, "not-an-email")
	assert.Equal(t, StateAwaitingEmail, fx.state(testPhone))
	assert.Contains(t, fx.chat.lastReply(), "no parece válido")

	fx.send(testPhone, "user@example.com")
	assert.Equal(t, StateCreandoTicket, fx.state(testPhone))
	assert.False(t, fx.engine.Store().Get(testPhone).PendingEmail)

	c, err := fx.dir.GetByPhone(context.Background(), testPhone)
	require.NoError(t, err)
	require.NotNil(t, c.Email)
	assert.Equal(t, "user@example.com", *c.Email)
}

func TestEmailGateCancelReturnsToMainMenu(t *testing.T) {
	fx := newFixture()
	fx.registered(testPhone, "Ana", "")
	fx.send(testPhone, "menu")
	fx.send(testPhone, "2")
	fx.send(testPhone, "1")
	fx.send(testPhone, "1")

	fx.send(testPhone, "0")
	sess := fx.engine.Store().Get(testPhone)
	assert.Equal(t, StateMenuPrincipal, sess.State)
	assert.False(t, sess.PendingEmail)
	assert.Nil(t, sess.Draft)
}

func TestPendingFlagsNeverBothSet(t *testing.T) {
	sess := &Session{}
	sess.setPendingRegistration()
	sess.setPendingEmail(StateCreandoTicket)
	assert.False(t, sess.PendingRegistration)
	assert.True(t, sess.PendingEmail)

	sess.setPendingRegistration()
	assert.True(t, sess.PendingRegistration)
	assert.False(t, sess.PendingEmail)
}

func TestUpstreamErrorSurfacesRetryGuidance(t *testing.T) {
	fx := newFixture()
	fx.registered(testPhone, "Ana", "ana@example.com")
	fx.creator.err = errors.New("boom")
	fx.send(testPhone, "menu")
	fx.send(testPhone, "2")
	fx.send(testPhone, "1")
	fx.send(testPhone, "1")
	fx.send(testPhone, "no enciende")
	fx.send(testPhone, "fin")
	fx.send(testPhone, "2")

	assert.Contains(t, fx.chat.lastReply(), "error al crear el ticket")
}
