package dialog

import (
	"sync"

	"github.com/soporte-digital/whatsapp-bot/internal/transport"
)

// State names the dialog step a phone's conversation is waiting on.
type State string

const (
	StateNone             State = ""
	StateSeleccionIngreso State = "SELECCION_INGRESO"
	StateAwaitingName     State = "AWAITING_NAME"
	StateMenuPrincipal    State = "MENU_PRINCIPAL"
	StateMenuSoporte      State = "MENU_SOPORTE"
	StateSeleccionarTema  State = "SELECCIONAR_TEMA"
	StateAwaitingEmail    State = "AWAITING_EMAIL"
	StateCreandoTicket    State = "CREANDO_TICKET"
	StatePreguntaAdjunto  State = "PREGUNTA_ADJUNTO"
	StateEsperandoArchivo State = "ESPERANDO_ARCHIVO"
	StatePostTicket       State = "POST_TICKET"
)

// Draft accumulates one phone's in-progress ticket: ordered message
// fragments, the chosen topic and an optional captured attachment.
type Draft struct {
	Fragments  []string
	TopicID    int
	Attachment *transport.Media
}

// Session is the ephemeral per-phone conversation record. It only
// exists while a dialog is active and is discarded on terminal exit.
type Session struct {
	State State

	// PendingRegistration and PendingEmail are mutually exclusive;
	// setPending* below keep that invariant.
	PendingRegistration bool
	PendingEmail        bool
	// ResumeState is re-entered once the email gate completes.
	ResumeState State

	Draft *Draft
}

func (s *Session) setPendingRegistration() {
	s.PendingRegistration = true
	s.PendingEmail = false
	s.ResumeState = StateNone
}

func (s *Session) setPendingEmail(resume State) {
	s.PendingEmail = true
	s.PendingRegistration = false
	s.ResumeState = resume
}

func (s *Session) clearPending() {
	s.PendingRegistration = false
	s.PendingEmail = false
	s.ResumeState = StateNone
}

// Store maps phone identifiers to Sessions. Each phone additionally
// owns a turn lock: the handler processing a phone's current message
// holds it for the whole turn, so no second handler starts for that
// phone while the first is in flight. Distinct phones do not contend.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	turns    sync.Map // phone -> *sync.Mutex
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// LockTurn acquires the phone's turn lock and returns its release func.
func (s *Store) LockTurn(phone string) func() {
	v, _ := s.turns.LoadOrStore(phone, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Get returns the phone's session or nil.
func (s *Store) Get(phone string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[phone]
}

// Ensure returns the phone's session, creating an empty one if needed.
func (s *Store) Ensure(phone string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[phone]
	if !ok {
		sess = &Session{}
		s.sessions[phone] = sess
	}
	return sess
}

// Clear drops all ephemeral state for the phone (terminal exit).
func (s *Store) Clear(phone string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, phone)
}
