package dto

// Envelope respuesta uniforme de todas las operaciones: {success, data?, error?}.
// Code permite a la UI distinguir re-autenticación de errores de campo.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Field   string `json:"field,omitempty"`
}

// OK envuelve una respuesta exitosa.
func OK(data any) Envelope {
	return Envelope{Success: true, Data: data}
}

// Fail envuelve un error con su código.
func Fail(code, message string) Envelope {
	return Envelope{Success: false, Code: code, Error: message}
}

// PageResponse metadatos de página en respuestas.
type PageResponse struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}
