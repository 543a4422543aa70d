// Package dialog is the per-conversation finite-state engine: it maps
// (inbound message, current state) to (next state, side effects) and
// emits exactly one reply per inbound event.
package dialog

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/soporte-digital/whatsapp-bot/internal/contacts"
	"github.com/soporte-digital/whatsapp-bot/internal/errs"
	"github.com/soporte-digital/whatsapp-bot/internal/kafka"
	"github.com/soporte-digital/whatsapp-bot/internal/model"
	"github.com/soporte-digital/whatsapp-bot/internal/notify"
	"github.com/soporte-digital/whatsapp-bot/internal/osticket"
	"github.com/soporte-digital/whatsapp-bot/internal/tickets"
	"github.com/soporte-digital/whatsapp-bot/internal/transport"
)

// Deps are the collaborators the engine drives. All of them are
// interfaces so tests run against fakes.
type Deps struct {
	Contacts contacts.Directory
	Tickets  tickets.Store
	Creator  osticket.Creator
	Notifier notify.Sink
	Events   kafka.TicketEventProducer
	Chat     transport.Transport
}

type Engine struct {
	store *Store
	menus *Menus
	deps  Deps

	// selfPhone is the bot's own number, used in notifications.
	selfPhone string
}

func NewEngine(deps Deps) *Engine {
	return &Engine{
		store: NewStore(),
		menus: NewMenus(),
		deps:  deps,
	}
}

// SetSelfPhone records the bot's own number once the transport links.
func (e *Engine) SetSelfPhone(p string) { e.selfPhone = p }

// SetChat injects the chat transport after construction; the engine and
// the bridge client reference each other, so one side is wired late.
func (e *Engine) SetChat(t transport.Transport) { e.deps.Chat = t }

// Store exposes the session store for inspection in tests.
func (e *Engine) Store() *Store { return e.store }

// HandleMessage processes one inbound chat event for its phone,
// serialized against any other in-flight turn for the same phone.
// Failures while computing the reply are logged and the event counts as
// handled: there is no automatic retry, the user resends. The metadata
// notification fires after every event regardless of the outcome.
func (e *Engine) HandleMessage(ctx context.Context, msg transport.InboundMessage) {
	if msg.FromSelf || msg.IsGroup || msg.Phone == "" {
		return
	}
	unlock := e.store.LockTurn(msg.Phone)
	defer unlock()

	original := strings.TrimSpace(msg.Body)
	defer e.deps.Notifier.NotifyAsync(msg.Phone, e.selfPhone, original)
	defer func() {
		if r := recover(); r != nil {
			log.Printf("dialog: panic handling message from %s: %v", msg.Phone, r)
		}
	}()

	reply, err := e.turn(ctx, msg, original, normalizeInput(original))
	if err != nil {
		log.Printf("dialog: turn for %s: %v", msg.Phone, err)
		return
	}
	if reply == "" {
		return
	}
	if err := e.deps.Chat.SendText(ctx, msg.Phone, reply); err != nil {
		log.Printf("dialog: reply to %s: %v", msg.Phone, err)
	}
}

// turn runs one transition. State mutations and persisted-data writes
// happen before the returned reply is sent.
func (e *Engine) turn(ctx context.Context, msg transport.InboundMessage, original, input string) (string, error) {
	// The literal command "menu" always wins, whatever the state.
	if input == "menu" {
		return e.menuCommand(ctx, msg.Phone)
	}

	sess := e.store.Get(msg.Phone)
	if sess == nil {
		// No active dialog and no command: stay silent.
		return "", nil
	}

	if sess.PendingRegistration {
		return e.captureName(ctx, msg.Phone, sess, original)
	}
	if sess.PendingEmail {
		return e.captureEmail(ctx, msg.Phone, sess, original, input)
	}

	switch sess.State {
	case StateSeleccionIngreso:
		return e.seleccionIngreso(ctx, msg.Phone, sess, input)
	case StateMenuPrincipal:
		return e.menuPrincipal(msg.Phone, sess, input), nil
	case StateMenuSoporte:
		return e.menuSoporte(sess, input), nil
	case StateSeleccionarTema:
		return e.seleccionarTema(ctx, msg.Phone, sess, input)
	case StateCreandoTicket:
		return e.creandoTicket(ctx, msg, sess, original, input)
	case StatePreguntaAdjunto:
		return e.preguntaAdjunto(ctx, msg.Phone, sess, input)
	case StateEsperandoArchivo:
		return e.esperandoArchivo(ctx, msg, sess, input)
	case StatePostTicket:
		return e.postTicket(msg.Phone, sess, input), nil
	}
	return "", nil
}

// menuCommand restarts the dialog at its root: registration prompt for
// unknown or guest contacts, personalized main menu otherwise.
func (e *Engine) menuCommand(ctx context.Context, phone string) (string, error) {
	sess := e.store.Ensure(phone)
	sess.clearPending()
	sess.Draft = nil

	contact, err := e.deps.Contacts.GetByPhone(ctx, phone)
	if err != nil && !errors.Is(err, errs.ErrContactNotFound) {
		return "", err
	}
	if contact == nil || contact.Classification == model.ClassificationGuest {
		sess.State = StateSeleccionIngreso
		return e.menus.Registro(), nil
	}

	if err := e.deps.Contacts.Touch(ctx, phone); err != nil {
		log.Printf("dialog: touch %s: %v", phone, err)
	}
	sess.State = StateMenuPrincipal
	return e.menus.Saludo(contact.Name, phone), nil
}

func (e *Engine) seleccionIngreso(ctx context.Context, phone string, sess *Session, input string) (string, error) {
	switch input {
	case "1":
		err := e.deps.Contacts.Upsert(ctx, &model.Contact{
			Phone:          phone,
			Name:           "Invitado",
			Classification: model.ClassificationGuest,
		})
		if err != nil {
			return "", err
		}
		sess.State = StateMenuPrincipal
		return "Entendido, continúas como *Invitado*.\n\n" + e.menus.Principal(), nil
	case "2":
		sess.setPendingRegistration()
		sess.State = StateAwaitingName
		return "Perfecto. Por favor, dime tu nombre para registrarte.", nil
	default:
		return "⚠️ Opción inválida. Responde *1* para Invitado o *2* para Registrarte.", nil
	}
}

func (e *Engine) captureName(ctx context.Context, phone string, sess *Session, original string) (string, error) {
	if original == "" {
		return "Por favor, dime tu nombre para registrarte.", nil
	}
	err := e.deps.Contacts.Upsert(ctx, &model.Contact{
		Phone:          phone,
		Name:           original,
		Classification: model.ClassificationRegistered,
	})
	if err != nil {
		return "", err
	}
	sess.clearPending()
	sess.State = StateMenuPrincipal
	return "Gracias " + original + " 🙌\nTu registro fue exitoso.\n\n" + e.menus.Principal(), nil
}

func (e *Engine) captureEmail(ctx context.Context, phone string, sess *Session, original, input string) (string, error) {
	if input == "0" {
		sess.clearPending()
		sess.Draft = nil
		sess.State = StateMenuPrincipal
		return "Operación cancelada.\n\n" + e.menus.Principal(), nil
	}
	email := strings.TrimSpace(original)
	if !isValidEmail(email) {
		return e.menus.EmailInvalido(), nil
	}

	if err := e.deps.Contacts.SetEmail(ctx, phone, email); err != nil {
		if !errors.Is(err, errs.ErrContactNotFound) {
			return "", err
		}
		// Contact may not exist yet when a guest went straight into
		// support; create it on the fly.
		if err := e.deps.Contacts.Upsert(ctx, &model.Contact{
			Phone:          phone,
			Name:           "Invitado",
			Classification: model.ClassificationGuest,
		}); err != nil {
			return "", err
		}
		if err := e.deps.Contacts.SetEmail(ctx, phone, email); err != nil {
			return "", err
		}
	}

	resume := sess.ResumeState
	if resume == StateNone {
		resume = StateCreandoTicket
	}
	sess.clearPending()
	sess.State = resume

	if sess.Draft != nil && len(sess.Draft.Fragments) > 0 {
		return "✅ Listo, correo guardado.\nEnvía *fin* para enviar tu ticket, o sigue agregando detalles.", nil
	}
	return "✅ Listo, correo guardado.\n" + e.menus.PedirProblema(), nil
}

func (e *Engine) menuPrincipal(phone string, sess *Session, input string) string {
	switch input {
	case "1":
		return "📄 *Información general*\nSomos una empresa dedicada al soporte técnico y soluciones digitales."
	case "2":
		sess.State = StateMenuSoporte
		return e.menus.Soporte()
	case "3":
		return "🕒 *Horarios*\nAtendemos de Lunes a Viernes de 9:00 AM a 6:00 PM."
	case "4":
		e.store.Clear(phone)
		return "¡Hasta pronto! 👋 Si necesitas algo más, solo escribe *menu*."
	default:
		return "⚠️ Opción inválida.\n\n" + e.menus.Principal()
	}
}

func (e *Engine) menuSoporte(sess *Session, input string) string {
	switch input {
	case "1":
		sess.State = StateSeleccionarTema
		return e.menus.Temas()
	case "2":
		return "👨‍💻 Un asesor humano revisará tu chat pronto para ayudarte."
	case "0":
		sess.State = StateMenuPrincipal
		return e.menus.Principal()
	default:
		return "⚠️ Opción inválida.\n\n" + e.menus.Soporte()
	}
}

func (e *Engine) seleccionarTema(ctx context.Context, phone string, sess *Session, input string) (string, error) {
	if input == "0" {
		sess.State = StateMenuSoporte
		return e.menus.Soporte(), nil
	}
	topic, ok := e.menus.TopicByChoice(input)
	if !ok {
		return "⚠️ Opción inválida.\n\n" + e.menus.Temas(), nil
	}
	sess.Draft = &Draft{TopicID: topic.ID}

	contact, err := e.deps.Contacts.GetByPhone(ctx, phone)
	if err != nil && !errors.Is(err, errs.ErrContactNotFound) {
		return "", err
	}
	if contact == nil || contact.Email == nil || *contact.Email == "" {
		sess.setPendingEmail(StateCreandoTicket)
		sess.State = StateAwaitingEmail
		return e.menus.PedirEmail(), nil
	}

	sess.State = StateCreandoTicket
	return e.menus.PedirProblema(), nil
}
