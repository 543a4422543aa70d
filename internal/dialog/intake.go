package dialog

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/soporte-digital/whatsapp-bot/internal/errs"
	"github.com/soporte-digital/whatsapp-bot/internal/model"
	"github.com/soporte-digital/whatsapp-bot/internal/osticket"
	"github.com/soporte-digital/whatsapp-bot/internal/transport"
)

// creandoTicket accumulates description fragments until "fin" closes
// the buffer. "0" cancels the draft; an empty buffer at close time is
// rejected without being cleared.
func (e *Engine) creandoTicket(ctx context.Context, msg transport.InboundMessage, sess *Session, original, input string) (string, error) {
	switch input {
	case "0":
		sess.Draft = nil
		sess.State = StateMenuPrincipal
		return e.menus.Principal(), nil
	case "fin":
		if sess.Draft == nil || len(sess.Draft.Fragments) == 0 {
			return e.menus.SinDescripcion(), nil
		}
		sess.State = StatePreguntaAdjunto
		return e.menus.PreguntaAdjunto(), nil
	}

	if msg.HasMedia && original == "" {
		return "📎 Podrás adjuntar un archivo al final; primero describe tu problema.", nil
	}
	if original == "" {
		return e.menus.SinDescripcion(), nil
	}
	if sess.Draft == nil {
		sess.Draft = &Draft{}
	}
	sess.Draft.Fragments = append(sess.Draft.Fragments, original)
	return e.menus.FragmentoAgregado(), nil
}

// preguntaAdjunto is the binary attachment choice. Declining finalizes
// immediately; anything unrecognized re-asks the choice.
func (e *Engine) preguntaAdjunto(ctx context.Context, phone string, sess *Session, input string) (string, error) {
	switch input {
	case "1", "si":
		sess.State = StateEsperandoArchivo
		return e.menus.PedirArchivo(), nil
	case "2", "no":
		return e.finalize(ctx, phone, sess)
	default:
		return "⚠️ Opción inválida.\n\n" + e.menus.PreguntaAdjunto(), nil
	}
}

// esperandoArchivo waits for exactly one media payload. Declining here
// ("2", "no" or "0") finalizes without an attachment instead of looping
// back to the choice state.
func (e *Engine) esperandoArchivo(ctx context.Context, msg transport.InboundMessage, sess *Session, input string) (string, error) {
	if msg.HasMedia {
		media, err := e.deps.Chat.DownloadMedia(ctx, msg.MediaID)
		if err != nil {
			log.Printf("dialog: download media from %s: %v", msg.Phone, err)
			return "❌ No pude descargar el archivo.\nReenvíalo o responde *2* para continuar sin adjunto.", nil
		}
		if sess.Draft == nil {
			sess.Draft = &Draft{}
		}
		sess.Draft.Attachment = &media
		return e.finalize(ctx, msg.Phone, sess)
	}

	switch input {
	case "2", "no", "0":
		return e.finalize(ctx, msg.Phone, sess)
	default:
		return "⚠️ No recibí un archivo.\n" + e.menus.PedirArchivo(), nil
	}
}

// finalize re-checks the contact, submits the ticket upstream and, only
// on success, persists the local record and advances to POST_TICKET.
// On upstream failure the draft survives and the state returns to
// accumulating, so resending "fin" retries the same submission.
func (e *Engine) finalize(ctx context.Context, phone string, sess *Session) (string, error) {
	name := "Usuario WhatsApp"
	email := ""
	classification := model.ClassificationGuest

	contact, err := e.deps.Contacts.GetByPhone(ctx, phone)
	if err != nil && !errors.Is(err, errs.ErrContactNotFound) {
		sess.State = StateCreandoTicket
		log.Printf("dialog: finalize lookup %s: %v", phone, err)
		return e.menus.ErrorTicket(), nil
	}
	if contact != nil {
		if contact.Name != "" {
			name = contact.Name
		}
		if contact.Email != nil {
			email = *contact.Email
		}
		classification = contact.Classification
	}

	// A ticket record requires an email; re-enter the gate if it went
	// missing between topic selection and now.
	if email == "" {
		sess.setPendingEmail(StateCreandoTicket)
		sess.State = StateAwaitingEmail
		return e.menus.PedirEmail(), nil
	}

	draft := sess.Draft
	if draft == nil || len(draft.Fragments) == 0 {
		sess.State = StateCreandoTicket
		return e.menus.SinDescripcion(), nil
	}
	body := strings.Join(draft.Fragments, "\n")

	req := osticket.CreateRequest{
		Name:    name,
		Email:   email,
		Phone:   phone,
		Message: body,
		TopicID: draft.TopicID,
	}
	if draft.Attachment != nil {
		req.Attachments = append(req.Attachments, osticket.Attachment{
			Data:     draft.Attachment.Data,
			Mime:     draft.Attachment.Mime,
			Filename: draft.Attachment.Filename,
		})
	}

	res, err := e.deps.Creator.Create(ctx, req)
	if err != nil {
		log.Printf("dialog: osticket create for %s: %v", phone, err)
		sess.State = StateCreandoTicket
		return e.menus.ErrorTicket(), nil
	}

	record := &model.Ticket{
		Phone:          phone,
		Name:           name,
		Email:          email,
		TopicID:        draft.TopicID,
		Body:           body,
		Classification: classification,
	}
	if res.TicketID != "" {
		id := res.TicketID
		record.ExternalID = &id
	}
	if err := e.deps.Tickets.Create(ctx, record); err != nil {
		// Upstream already accepted the ticket; losing the local record
		// must not look like a failure to the user.
		log.Printf("dialog: persist ticket record for %s: %v", phone, err)
	} else {
		e.emitTicketCreated(record)
	}

	sess.Draft = nil
	sess.State = StatePostTicket
	return e.menus.PostTicket(res.TicketID), nil
}

func (e *Engine) emitTicketCreated(t *model.Ticket) {
	if e.deps.Events == nil {
		return
	}
	payload := map[string]interface{}{
		"ticket_id":      t.ID,
		"phone":          t.Phone,
		"topic_id":       t.TopicID,
		"classification": string(t.Classification),
	}
	if t.ExternalID != nil {
		payload["external_id"] = *t.ExternalID
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		e.deps.Events.ProduceTicketEvent(ctx, "ticket_created", payload)
	}()
}

// postTicket accepts exactly two outcomes: back to the main menu, or a
// terminal exit that clears all per-phone state.
func (e *Engine) postTicket(phone string, sess *Session, input string) string {
	switch input {
	case "1":
		sess.State = StateMenuPrincipal
		return e.menus.Principal()
	case "2":
		e.store.Clear(phone)
		return "¡Listo! 👋 Si necesitas algo más, escribe *menu*."
	default:
		return "⚠️ Opción inválida.\nResponde con:\n1 Volver al menú\n2 Salir"
	}
}
