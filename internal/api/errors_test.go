package api

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsTokenError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "unauthorized status",
			err:  &Error{Status: 401, Message: "Unauthenticated"},
			want: true,
		},
		{
			name: "forbidden status",
			err:  &Error{Status: 403},
			want: true,
		},
		{
			name: "token text",
			err:  &Error{Status: 422, Message: "El token proporcionado no es válido"},
			want: true,
		},
		{
			name: "session text",
			err:  &Error{Status: 400, Message: "La sesión ha expirado"},
			want: true,
		},
		{
			name: "session text without accent",
			err:  &Error{Status: 400, Message: "La sesion ha expirado"},
			want: true,
		},
		{
			name: "invalid client code",
			err:  &Error{Status: 400, Message: "Código de cliente inválido"},
			want: true,
		},
		{
			name: "pattern in technical detail",
			err:  &Error{Status: 500, Message: "Error interno", Detail: "token mismatch"},
			want: true,
		},
		{
			name: "wrapped api error",
			err:  fmt.Errorf("send: %w", &Error{Status: 401}),
			want: true,
		},
		{
			name: "unrelated api error",
			err:  &Error{Status: 500, Message: "Error interno del servidor"},
			want: false,
		},
		{
			name: "non api error",
			err:  errors.New("connection refused"),
			want: false,
		},
		{
			name: "nil",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTokenError(tt.err); got != tt.want {
				t.Fatalf("IsTokenError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "api error with message",
			err:  &Error{Status: 400, Message: "No hay operadores disponibles"},
			want: "No hay operadores disponibles",
		},
		{
			name: "api error without message",
			err:  &Error{Status: 500},
			want: "No se pudo completar la solicitud de chat.",
		},
		{
			name: "plain error",
			err:  errors.New("timeout"),
			want: "No se pudo completar la solicitud de chat.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.want {
				t.Fatalf("UserMessage = %q, want %q", got, tt.want)
			}
		})
	}
}
