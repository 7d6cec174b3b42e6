package domain

// Flash categorias usadas por las plantillas.
const (
	FlashSuccess = "success"
	FlashError   = "error"
	FlashInfo    = "info"
)

// Flash es un mensaje de un solo uso mostrado en la siguiente pagina.
type Flash struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}
