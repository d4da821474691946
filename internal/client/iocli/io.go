// Package iocli is the terminal surface of the client: prompts, password
// input and printed output.
package iocli

// IO is everything the commands need from the terminal
type IO interface {
	Println(a ...any)
	Printf(format string, a ...any)
	ReadInput(prompt string) (string, error)
	ReadPassword(prompt string) (string, error)
	Write(p []byte) (n int, err error)
}
