package dialog

import (
	"fmt"
	"sort"
	"strings"
)

// Topic is a fixed routing category for tickets in the external system.
type Topic struct {
	ID    int
	Label string
}

// DefaultTopics is the topic table offered at SELECCIONAR_TEMA.
var DefaultTopics = []Topic{
	{1, "Hardware"},
	{2, "Software"},
	{3, "Redes"},
	{4, "Accesos / Cuentas"},
	{5, "Otro"},
}

// Menus bundles every user-facing text and the topic table, so the
// engine carries no package-level mutable globals and tests can swap
// texts deterministically.
type Menus struct {
	Topics []Topic
}

func NewMenus() *Menus {
	return &Menus{Topics: DefaultTopics}
}

func (m *Menus) TopicByChoice(choice string) (Topic, bool) {
	for _, t := range m.Topics {
		if choice == fmt.Sprintf("%d", t.ID) {
			return t, true
		}
	}
	return Topic{}, false
}

func (m *Menus) Principal() string {
	return "*MENÚ PRINCIPAL*\n" +
		"1 Información\n" +
		"2 Soporte\n" +
		"3 Horarios\n" +
		"4 Salir"
}

func (m *Menus) Soporte() string {
	return "*SOPORTE TÉCNICO*\n" +
		"1 Reportar problema\n" +
		"2 Hablar con asesor\n" +
		"0 Volver al menú"
}

func (m *Menus) Temas() string {
	topics := append([]Topic(nil), m.Topics...)
	sort.Slice(topics, func(i, j int) bool { return topics[i].ID < topics[j].ID })
	var b strings.Builder
	b.WriteString("*TEMA DEL TICKET*\n")
	for _, t := range topics {
		fmt.Fprintf(&b, "%d %s\n", t.ID, t.Label)
	}
	b.WriteString("0 Volver al menú de soporte")
	return b.String()
}

func (m *Menus) Registro() string {
	return "Hola 👋\nNo te encuentras registrado en nuestra base de datos.\n\n" +
		"¿Cómo deseas continuar?\n" +
		"1 Entrar como *Invitado*\n" +
		"2 *Registrarme-Entrar*"
}

func (m *Menus) Saludo(nombre, telefono string) string {
	return fmt.Sprintf("Hola *%s* con el número *%s*, es un gusto verte de nuevo.\n"+
		"Por favor escoge una opción del menú.\n\n%s", nombre, telefono, m.Principal())
}

func (m *Menus) PedirEmail() string {
	return "📧 Antes de crear el ticket necesito tu *correo real*.\n" +
		"Escríbelo (ej: nombre@dominio.com) o escribe *0* para cancelar."
}

func (m *Menus) EmailInvalido() string {
	return "❌ Ese correo no parece válido.\n" +
		"Escríbelo de nuevo (ej: nombre@dominio.com) o escribe *0* para cancelar."
}

func (m *Menus) PedirProblema() string {
	return "✉️ Describe tu problema con el mayor detalle posible.\n" +
		"Puedes enviar varios mensajes; escribe *fin* cuando termines, o *0* para cancelar."
}

func (m *Menus) FragmentoAgregado() string {
	return "📝 Anotado. Sigue escribiendo si falta algo, o escribe *fin* para terminar."
}

func (m *Menus) SinDescripcion() string {
	return "⚠️ Aún no has descrito tu problema.\n" +
		"Escríbelo y después envía *fin*, o *0* para cancelar."
}

func (m *Menus) PreguntaAdjunto() string {
	return "📎 ¿Deseas adjuntar un archivo (imagen, PDF, captura)?\n" +
		"1 Sí\n" +
		"2 No, enviar sin adjunto"
}

func (m *Menus) PedirArchivo() string {
	return "📤 Envía el archivo ahora, o responde *2* para continuar sin adjunto."
}

func (m *Menus) PostTicket(ticketID string) string {
	confirm := "✅ Tu ticket ha sido creado correctamente en nuestro sistema.\n"
	if ticketID != "" {
		confirm = fmt.Sprintf("✅ Tu ticket *%s* ha sido creado correctamente en nuestro sistema.\n", ticketID)
	}
	return confirm +
		"Un técnico te contactará pronto.\n\n" +
		"¿Qué deseas hacer ahora?\n" +
		"1 Volver al menú\n" +
		"2 Salir"
}

func (m *Menus) ErrorTicket() string {
	return "❌ Hubo un error al crear el ticket.\n\n" +
		"1. Envía *fin* de nuevo para *reintentar*.\n" +
		"2. Escribe *0* para cancelar y volver al menú."
}
