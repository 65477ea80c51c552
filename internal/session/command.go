package session

// Kind identifies a parsed command.
type Kind int

const (
	None Kind = iota // empty or unrecognised input, ignored
	Assign
	Quit
	Execute
	ExecuteDelete
	Clear
	AutoUnique
	AutoBest
	DeleteReload
	Reload
	Help
)

var kindNames = map[Kind]string{
	None:          "none",
	Assign:        "assign",
	Quit:          "quit",
	Execute:       "execute",
	ExecuteDelete: "execute-and-delete",
	Clear:         "clear",
	AutoUnique:    "auto-unique",
	AutoBest:      "auto-best",
	DeleteReload:  "delete-and-reload",
	Reload:        "reload",
	Help:          "help",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

var verbs = map[rune]Kind{
	'q': Quit,
	'x': Execute,
	'X': ExecuteDelete,
	'c': Clear,
	'a': AutoUnique,
	'A': AutoBest,
	'd': DeleteReload,
	'r': Reload,
	'h': Help,
}

// Command is one line of user input.
type Command struct {
	Kind   Kind
	Source rune // Assign only
	Target rune // Assign only
}

// Parse interprets a line. Two runes are always an assignment, one rune is
// looked up in the verb set, anything else is None.
func Parse(line string) Command {
	runes := []rune(line)
	switch len(runes) {
	case 2:
		return Command{Kind: Assign, Source: runes[0], Target: runes[1]}
	case 1:
		if kind, ok := verbs[runes[0]]; ok {
			return Command{Kind: kind}
		}
	}
	return Command{Kind: None}
}

// Terminal reports whether the command ends the session.
func (c Command) Terminal() bool {
	switch c.Kind {
	case Quit, Execute, ExecuteDelete:
		return true
	}
	return false
}

const helpText = `
XY: Map source X to target Y, X='a'..'z', Y='1'..'9'. For example, 'a1' maps item a to item 1.
X0: Unmap source X.
q: Quit without extracting
x: Execute, i.e. extract the ZIP files into their mapped target folders
X: Execute, then delete the mapped source files
c: Clear the mapping
a: Auto mapping, only where exactly one target matches
A: Auto mapping, choosing the best match when several targets match
d: Delete the mapped source files, then reload
r: Reload
h: Show this help
`
