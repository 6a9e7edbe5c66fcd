package apperr

import "net/http"

// ClientError is the error object of a client response body.
type ClientError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Type    string `json:"type"`
}

// ClientResponse is the JSON body returned to clients on failure.
type ClientResponse struct {
	Success    bool        `json:"success"`
	Error      ClientError `json:"error"`
	StatusCode int         `json:"statusCode"`
}

var unknownResponse = ClientResponse{
	Success: false,
	Error: ClientError{
		Message: "An unexpected error occurred",
		Code:    CodeUnknown,
		Type:    "UnknownError",
	},
	StatusCode: http.StatusInternalServerError,
}

// ToClientResponse projects err onto the client body. Anything that was not
// classified collapses into a fixed payload; raw messages never leak.
func ToClientResponse(err error) ClientResponse {
	e, ok := As(err)
	if !ok || e == nil {
		return unknownResponse
	}
	status := e.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return ClientResponse{
		Success: false,
		Error: ClientError{
			Message: e.Message,
			Code:    e.Code,
			Type:    e.Kind.TypeName(),
		},
		StatusCode: status,
	}
}
