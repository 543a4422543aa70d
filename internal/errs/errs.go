package errs

import "errors"

var (
	ErrContactNotFound = errors.New("contact not found")
	ErrTicketNotFound  = errors.New("ticket not found")
)

// Reason codes returned by the dispatcher and the control surface.
// The Spanish strings are part of the wire contract with integrators.
const (
	ReasonInvalidNumber    = "numero_invalido"
	ReasonNotOnWhatsApp    = "no_existe_en_whatsapp"
	ReasonLocalFileMissing = "archivo_local_no_existe"
	ReasonSendError        = "error_envio"
)
