package apierror

// Success is the envelope for 2xx responses.
type Success struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// Failure is the envelope for 4xx/5xx responses.
type Failure struct {
	Success bool   `json:"success"`
	Error   Detail `json:"error"`
}

// Detail is the error part of a Failure envelope.
type Detail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func OK(data any) Success { return Success{Success: true, Data: data} }

// Body builds the Failure envelope for e.
func (e *Error) Body() Failure {
	return Failure{Error: Detail{Code: e.Code, Message: e.Message, Status: e.Status()}}
}
