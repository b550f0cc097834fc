package api

import (
	"encoding/json"

	"github.com/dmc-digital/chat-session-engine/internal/model"
)

// envelope is the response wrapper used by every conversation API endpoint.
type envelope struct {
	ConError       bool            `json:"conError"`
	Mensaje        *string         `json:"mensaje"`
	MensajeTecnico string          `json:"mensajeTecnico,omitempty"`
	Data           json.RawMessage `json:"data"`
}

// Menu mirrors the upstream bot menu record.
type Menu struct {
	ID     int64  `json:"id"`
	Titulo string `json:"titulo"`
	Orden  int    `json:"orden"`
	Slug   string `json:"slug"`
	Estado string `json:"estado"`
}

// Option mirrors the upstream bot option record.
type Option struct {
	ID                  int64  `json:"id"`
	BotMenuID           int64  `json:"bot_menu_id"`
	TextoOpcion         string `json:"texto_opcion"`
	SiguienteMenuID     *int64 `json:"siguiente_menu_id"`
	Orden               int    `json:"orden"`
	Slug                string `json:"slug"`
	TransferirAOperador int    `json:"transferir_a_operador"`
	Estado              string `json:"estado"`
}

// BotResponse mirrors one canned reply row.
type BotResponse struct {
	ID               int64  `json:"id"`
	BotOpcionID      int64  `json:"bot_opcion_id"`
	MensajeRespuesta string `json:"mensaje_respuesta"`
	Tipo             string `json:"tipo"`
	Orden            int    `json:"orden"`
	Slug             string `json:"slug"`
	Estado           string `json:"estado"`
}

// HistoryMessage is one stored conversation message.
type HistoryMessage struct {
	ID             int64  `json:"id"`
	ConversacionID int64  `json:"conversacion_id"`
	Emisor         string `json:"emisor"`
	Mensaje        string `json:"mensaje"`
	Leido          bool   `json:"leido"`
	Estado         string `json:"estado,omitempty"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at,omitempty"`
}

// InitializeData is the session-init response payload.
type InitializeData struct {
	Token            *string          `json:"token"`
	Modo             string           `json:"modo"`
	EsHorarioLaboral bool             `json:"es_horario_laboral"`
	MenusIniciales   []Menu           `json:"menus_iniciales"`
	Historial        []HistoryMessage `json:"historial"`
}

// MenuOptionsData is a menu together with its options.
type MenuOptionsData struct {
	Menu
	Opciones []Option `json:"opciones"`
}

// SelectOptionData is the option-selection response payload.
type SelectOptionData struct {
	Option
	Respuestas []BotResponse `json:"respuestas"`
}

// SendMessageData is the message-send response payload.
type SendMessageData struct {
	NuevoMensaje      HistoryMessage `json:"nuevo_mensaje"`
	Modo              string         `json:"modo"`
	EsperandoOperador bool           `json:"esperando_operador"`
	Token             string         `json:"token,omitempty"`
	MensajeBienvenida string         `json:"mensaje_bienvenida,omitempty"`
}

// FinalizeData is the finalize response payload.
type FinalizeData struct {
	Mensaje string `json:"mensaje"`
}

// ToModel converts an upstream menu to the canonical shape.
func (m Menu) ToModel() model.Menu {
	return model.Menu{
		ID:    m.ID,
		Title: m.Titulo,
		Order: m.Orden,
		Slug:  m.Slug,
		State: m.Estado,
	}
}

// ToModel converts an upstream option to the canonical shape.
func (o Option) ToModel() model.Option {
	return model.Option{
		ID:                 o.ID,
		MenuID:             o.BotMenuID,
		Label:              o.TextoOpcion,
		NextMenuID:         o.SiguienteMenuID,
		Order:              o.Orden,
		Slug:               o.Slug,
		TransferToOperator: o.TransferirAOperador == 1,
		State:              o.Estado,
	}
}

// ToModel converts an upstream bot response to the canonical shape.
func (r BotResponse) ToModel() model.BotResponse {
	return model.BotResponse{
		ID:       r.ID,
		OptionID: r.BotOpcionID,
		Text:     r.MensajeRespuesta,
		Type:     r.Tipo,
		Order:    r.Orden,
	}
}

// Menus converts the root menu list.
func (d *InitializeData) Menus() []model.Menu {
	menus := make([]model.Menu, 0, len(d.MenusIniciales))
	for _, m := range d.MenusIniciales {
		menus = append(menus, m.ToModel())
	}
	return menus
}

// Options converts the option list.
func (d *MenuOptionsData) Options() []model.Option {
	opts := make([]model.Option, 0, len(d.Opciones))
	for _, o := range d.Opciones {
		opts = append(opts, o.ToModel())
	}
	return opts
}

// Mode maps the upstream modo string to a Mode, keeping unknown values out.
func ParseMode(modo string) model.Mode {
	switch modo {
	case string(model.ModeBot):
		return model.ModeBot
	case string(model.ModeOperator):
		return model.ModeOperator
	default:
		return model.ModeNone
	}
}
