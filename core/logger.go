package core

// Logger is any logging backend used by the app.
// args may contain errors, maps of extras and the acting user (for error trackers).
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Person identifies the user an event happened for.
type Person struct {
	ID    string
	Name  string
	Email string
}
