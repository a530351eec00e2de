package proto

// Command identifies a protocol operation. Commands are always transmitted
// as numeric codes; names exist only for clients and logs. Codes are fixed
// for wire compatibility and must not be renumbered.
type Command int

const (
	CmdInvalid  Command = 0
	CmdLogin    Command = 1
	CmdUpload   Command = 2
	CmdDownload Command = 3
	CmdMkdir    Command = 4
	CmdRmdir    Command = 5
	CmdCd       Command = 6
	CmdPwd      Command = 7
	CmdRename   Command = 8
	CmdList     Command = 9
	CmdRm       Command = 10
	CmdQuit     Command = 11
	CmdHelp     Command = 12
	CmdResume   Command = 13
)

var commandNames = map[Command]string{
	CmdLogin:    "login",
	CmdUpload:   "upload",
	CmdDownload: "download",
	CmdMkdir:    "mkdir",
	CmdRmdir:    "rmdir",
	CmdCd:       "cd",
	CmdPwd:      "pwd",
	CmdRename:   "rename",
	CmdList:     "list",
	CmdRm:       "rm",
	CmdQuit:     "quit",
	CmdHelp:     "help",
	CmdResume:   "resume",
}

var commandCodes = func() map[string]Command {
	m := make(map[string]Command, len(commandNames)+3)
	for code, name := range commandNames {
		m[name] = code
	}
	// Aliases accepted from user input.
	m["dir"] = CmdPwd
	m["ls"] = CmdList
	m["exit"] = CmdQuit
	return m
}()

// String returns the canonical command name, or "unknown" for
// unrecognized codes.
func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether the code maps to a known command.
func (c Command) Valid() bool {
	_, ok := commandNames[c]
	return ok
}

// ParseCommand resolves a command name (or alias such as "ls", "dir",
// "exit") to its numeric code. The second return value is false for
// unknown names.
func ParseCommand(name string) (Command, bool) {
	c, ok := commandCodes[name]
	return c, ok
}
