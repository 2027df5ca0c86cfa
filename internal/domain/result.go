package domain

// Result is the success/error shape every public client operation returns
type Result[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// OK builds a successful result carrying data
func OK[T any](data T) Result[T] {
	return Result[T]{Success: true, Data: data}
}

// Fail builds a failed result with a human-readable message
func Fail[T any](msg string) Result[T] {
	return Result[T]{Error: msg}
}
