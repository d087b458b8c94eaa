package commands

// Flags holds the global flag values shared by all commands.
type Flags struct {
	LogLevel string
	LogFile  string

	// logCloser releases the active log file once the command finishes.
	logCloser func()
}

// CloseLog releases the log file opened by loadApp, if any. Called from
// the root After hook.
func (f *Flags) CloseLog() {
	if f.logCloser != nil {
		f.logCloser()
	}
}
