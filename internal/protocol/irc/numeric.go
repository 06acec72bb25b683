package irc

import "strings"

// Numeric replies the client reacts to.
const (
	RplWelcome          = "001"
	RplYourHost         = "002"
	RplCreated          = "003"
	RplMyInfo           = "004"
	RplISupport         = "005"
	RplUModeIs          = "221"
	RplChannelModeIs    = "324"
	RplNoTopic          = "331"
	RplTopic            = "332"
	RplTopicWhoTime     = "333"
	RplNamReply         = "353"
	RplEndOfNames       = "366"
	RplMotdStart        = "375"
	RplMotd             = "372"
	RplEndOfMotd        = "376"
	ErrNoMotd           = "422"
	ErrNoNicknameGiven  = "431"
	ErrErroneusNick     = "432"
	ErrNicknameInUse    = "433"
	ErrNickCollision    = "436"
	ErrUnavailResource  = "437"
	ErrNotRegistered    = "451"
	ErrPasswdMismatch   = "464"
	ErrYoureBannedCreep = "465"
	RplLoggedIn         = "900"
	RplSaslSuccess      = "903"
	ErrSaslFail         = "904"
	ErrSaslTooLong      = "905"
	ErrSaslAborted      = "906"
	ErrSaslAlready      = "907"
	RplSaslMechs        = "908"
)

// Commands.
const (
	CmdCap          = "CAP"
	CmdPass         = "PASS"
	CmdNick         = "NICK"
	CmdUser         = "USER"
	CmdPing         = "PING"
	CmdPong         = "PONG"
	CmdQuit         = "QUIT"
	CmdJoin         = "JOIN"
	CmdPart         = "PART"
	CmdKick         = "KICK"
	CmdMode         = "MODE"
	CmdTopic        = "TOPIC"
	CmdPrivmsg      = "PRIVMSG"
	CmdNotice       = "NOTICE"
	CmdError        = "ERROR"
	CmdAuthenticate = "AUTHENTICATE"
	CmdInvite       = "INVITE"
	CmdAway         = "AWAY"
	CmdAccount      = "ACCOUNT"
	CmdChghost      = "CHGHOST"
	CmdTagmsg       = "TAGMSG"
)

var knownCommands = map[string]bool{
	CmdCap: true, CmdPass: true, CmdNick: true, CmdUser: true,
	CmdPing: true, CmdPong: true, CmdQuit: true, CmdJoin: true,
	CmdPart: true, CmdKick: true, CmdMode: true, CmdTopic: true,
	CmdPrivmsg: true, CmdNotice: true, CmdError: true, CmdAuthenticate: true,
	CmdInvite: true, CmdAway: true, CmdAccount: true, CmdChghost: true,
	CmdTagmsg: true,
}

// KnownCommand reports whether cmd is one of the named verbs, ignoring case.
func KnownCommand(cmd string) bool {
	return knownCommands[strings.ToUpper(cmd)]
}
