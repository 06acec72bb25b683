package engine

// Command is something a consumer wants the client to do. Commands are
// values and are never mutated after submission.
type Command interface {
	CommandName() string
}

type Connect struct {
	Host string
	Port int
	TLS  bool
}

type Join struct {
	Channel string
	Key     string
}

type Part struct {
	Channel string
	Reason  string
}

type SendMessage struct {
	Target string
	Text   string
}

type Notice struct {
	Target string
	Text   string
}

type Action struct {
	Target string
	Text   string
}

type Nick struct {
	Nick string
}

// SendRaw sends Line verbatim after validating it parses.
type SendRaw struct {
	Line string
}

type Quit struct {
	Reason string
}

func (Connect) CommandName() string     { return "Connect" }
func (Join) CommandName() string        { return "Join" }
func (Part) CommandName() string        { return "Part" }
func (SendMessage) CommandName() string { return "SendMessage" }
func (Notice) CommandName() string      { return "Notice" }
func (Action) CommandName() string      { return "Action" }
func (Nick) CommandName() string        { return "Nick" }
func (SendRaw) CommandName() string     { return "SendRaw" }
func (Quit) CommandName() string        { return "Quit" }
