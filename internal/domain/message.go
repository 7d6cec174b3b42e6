package domain

const (
	RoleUser = "user"
	RoleBot  = "bot"
)

// HistoryEntry es un turno de la conversacion guardado por sesion.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
